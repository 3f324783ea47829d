package series

import (
	"cmp"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"curator/internal/config"
	"curator/internal/episode"
	"curator/internal/quality"
)

// Tracking selects how strictly a series follows its download position.
type Tracking string

const (
	// TrackingOn enforces advancement and season-pack exclusivity.
	TrackingOn Tracking = "on"
	// TrackingOff disables both checks.
	TrackingOff Tracking = "off"
	// TrackingBackfill enforces forward advancement only, letting older
	// seasons and episodes through.
	TrackingBackfill Tracking = "backfill"
)

const (
	defaultGrace         = 5
	defaultLockWindow    = 5
	defaultLockThreshold = 3
)

// ShowConfig is the decoded configuration of one show. Settings given at the
// top level of the plugin section apply to every show unless the show sets
// them itself.
type ShowConfig struct {
	Name            string   `toml:"name"`
	AlternateNames  []string `toml:"alternate_names"`
	NameRegexps     []string `toml:"name_regexps"`
	EpisodeRegexps  []string `toml:"episode_regexps"`
	DateRegexps     []string `toml:"date_regexps"`
	SequenceRegexps []string `toml:"sequence_regexps"`
	IDRegexps       []string `toml:"id_regexps"`
	Begin           string   `toml:"begin"`

	Quality   string   `toml:"quality"`
	Qualities []string `toml:"qualities"`
	Target    string   `toml:"target"`
	Upgrade   bool     `toml:"upgrade"`
	Propers   *bool    `toml:"propers"`
	Timeframe string   `toml:"timeframe"`

	Tracking            string `toml:"tracking"`
	AdvancementGrace    *int   `toml:"advancement_grace"`
	SeasonPacks         bool   `toml:"season_packs"`
	SeasonPackThreshold int    `toml:"season_pack_threshold"`

	IdentifiedBy  string `toml:"identified_by"`
	LockWindow    *int   `toml:"lock_window"`
	LockThreshold *int   `toml:"lock_threshold"`
	DateYearFirst bool   `toml:"date_yearfirst"`
	DateDayFirst  bool   `toml:"date_dayfirst"`
}

// showOnlyKeys may not appear at the top level of the section.
var showOnlyKeys = []string{"name", "begin"}

// Show is a compiled show configuration.
type Show struct {
	Name   string
	parser *episode.Parser

	quality    *quality.Requirement
	qualities  quality.Requirements
	target     *quality.Requirement
	upgrade    bool
	propers    bool
	timeframe  time.Duration
	tracking   Tracking
	grace      int
	packs      bool
	packMin    int
	forced     episode.Kind
	lockWindow int
	lockMin    int
	begin      *episode.Identifier
}

// Parse runs the show's identifier parser over a title.
func (s *Show) Parse(title string) episode.Result { return s.parser.Parse(title) }

// Begin returns the configured begin identifier, if any.
func (s *Show) Begin() (episode.Identifier, bool) {
	if s.begin == nil {
		return episode.Identifier{}, false
	}
	return *s.begin, true
}

// Shows is the compiled plugin configuration, ordered longest name first so
// that "Show Extra" is tried before "Show".
type Shows []*Show

// ByName returns the show with the given configured name.
func (s Shows) ByName(name string) (*Show, bool) {
	for _, show := range s {
		if show.Name == name {
			return show, true
		}
	}
	return nil, false
}

// Match returns the first show whose parser yields a valid result.
func (s Shows) Match(title string) (*Show, episode.Result, bool) {
	for _, show := range s {
		if res := show.Parse(title); res.Valid {
			return show, res, true
		}
	}
	return nil, episode.Result{}, false
}

// Compile decodes the raw plugin section into shows. The section holds shared
// settings and a "shows" list whose items are names or tables.
func Compile(raw any, tables *quality.Tables) (Shows, error) {
	if tables == nil {
		tables = quality.Default()
	}
	section, ok := raw.(map[string]any)
	if !ok {
		return nil, errors.New("series section must be a table with a shows list")
	}
	shared := maps.Clone(section)
	delete(shared, "shows")
	for _, key := range showOnlyKeys {
		if _, ok := shared[key]; ok {
			return nil, fmt.Errorf("%q belongs inside a show", key)
		}
	}
	items, err := showItems(section["shows"])
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, errors.New("series section lists no shows")
	}

	shows := make(Shows, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		merged, ok := config.CloneSection(shared).(map[string]any)
		if !ok || merged == nil {
			merged = map[string]any{}
		}
		maps.Copy(merged, item)
		sc, err := config.DecodeSection[ShowConfig](merged)
		if err != nil {
			return nil, err
		}
		show, err := compileShow(sc, tables)
		if err != nil {
			return nil, err
		}
		key := strings.ToLower(show.Name)
		if seen[key] {
			return nil, fmt.Errorf("show %q listed twice", show.Name)
		}
		seen[key] = true
		shows = append(shows, show)
	}
	slices.SortStableFunc(shows, func(a, b *Show) int {
		return cmp.Compare(len(b.Name), len(a.Name))
	})
	return shows, nil
}

// Validate checks a raw section against the default quality tables.
func Validate(raw any) error {
	_, err := Compile(raw, nil)
	return err
}

func showItems(raw any) ([]map[string]any, error) {
	var list []any
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case []any:
		list = v
	case []string:
		for _, name := range v {
			list = append(list, name)
		}
	case []map[string]any:
		for _, item := range v {
			list = append(list, item)
		}
	default:
		return nil, fmt.Errorf("shows must be a list, got %T", raw)
	}
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		switch v := item.(type) {
		case string:
			out = append(out, map[string]any{"name": v})
		case map[string]any:
			out = append(out, maps.Clone(v))
		default:
			return nil, fmt.Errorf("show entries must be names or tables, got %T", item)
		}
	}
	return out, nil
}

func compileShow(sc ShowConfig, tables *quality.Tables) (*Show, error) {
	name := strings.TrimSpace(sc.Name)
	if name == "" {
		return nil, errors.New("show name is required")
	}
	wrap := func(err error) error { return fmt.Errorf("show %q: %w", name, err) }

	show := &Show{
		Name:       name,
		upgrade:    sc.Upgrade,
		propers:    sc.Propers == nil || *sc.Propers,
		tracking:   TrackingOn,
		grace:      defaultGrace,
		packs:      sc.SeasonPacks,
		packMin:    sc.SeasonPackThreshold,
		lockWindow: defaultLockWindow,
		lockMin:    defaultLockThreshold,
	}
	if sc.Quality != "" {
		req, err := tables.ParseRequirement(sc.Quality)
		if err != nil {
			return nil, wrap(err)
		}
		show.quality = &req
	}
	if len(sc.Qualities) > 0 {
		reqs, err := tables.ParseRequirements(sc.Qualities)
		if err != nil {
			return nil, wrap(err)
		}
		show.qualities = reqs
	}
	if sc.Target != "" {
		req, err := tables.ParseRequirement(sc.Target)
		if err != nil {
			return nil, wrap(err)
		}
		show.target = &req
	}
	if sc.Timeframe != "" {
		d, err := config.ParseDuration(sc.Timeframe)
		if err != nil {
			return nil, wrap(fmt.Errorf("timeframe: %w", err))
		}
		if show.target == nil {
			return nil, wrap(errors.New("timeframe requires a target quality"))
		}
		show.timeframe = d
	}
	switch Tracking(strings.ToLower(sc.Tracking)) {
	case "", TrackingOn:
	case TrackingOff:
		show.tracking = TrackingOff
	case TrackingBackfill:
		show.tracking = TrackingBackfill
	default:
		return nil, wrap(fmt.Errorf("tracking must be on, off or backfill, got %q", sc.Tracking))
	}
	if sc.AdvancementGrace != nil {
		if *sc.AdvancementGrace < 0 {
			return nil, wrap(errors.New("advancement_grace must not be negative"))
		}
		show.grace = *sc.AdvancementGrace
	}
	if sc.SeasonPackThreshold < 0 {
		return nil, wrap(errors.New("season_pack_threshold must not be negative"))
	}
	if sc.LockWindow != nil {
		show.lockWindow = *sc.LockWindow
	}
	if sc.LockThreshold != nil {
		show.lockMin = *sc.LockThreshold
	}
	if show.lockWindow < 1 || show.lockMin < 1 || show.lockMin > show.lockWindow {
		return nil, wrap(fmt.Errorf("lock_threshold %d must be between 1 and lock_window %d", show.lockMin, show.lockWindow))
	}

	kind, err := episode.ParseKind(sc.IdentifiedBy)
	if err != nil {
		return nil, wrap(err)
	}
	show.forced = kind
	if sc.Begin != "" {
		id, err := episode.ParseIdentifier(sc.Begin)
		if err != nil {
			return nil, wrap(fmt.Errorf("begin: %w", err))
		}
		show.begin = &id
	}

	show.parser, err = episode.NewParser(episode.Options{
		Name:            name,
		AlternateNames:  sc.AlternateNames,
		NameRegexps:     sc.NameRegexps,
		EpisodeRegexps:  sc.EpisodeRegexps,
		DateRegexps:     sc.DateRegexps,
		SequenceRegexps: sc.SequenceRegexps,
		IDRegexps:       sc.IDRegexps,
		IdentifiedBy:    kind,
		DateYearFirst:   sc.DateYearFirst,
		DateDayFirst:    sc.DateDayFirst,
		SeasonPacks:     sc.SeasonPacks,
		Tables:          tables,
	})
	if err != nil {
		return nil, err
	}
	return show, nil
}

// wants reports whether q satisfies the quality and qualities settings.
func (s *Show) wants(q quality.Quality) bool {
	if s.quality != nil && !s.quality.Allows(q) {
		return false
	}
	return s.qualities.Allows(q)
}
