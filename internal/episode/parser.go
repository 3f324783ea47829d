package episode

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"curator/internal/quality"
)

// Options configures a Parser for one series.
type Options struct {
	Name           string
	AlternateNames []string

	// Custom patterns, tried before the built-in ones. Name patterns replace
	// name matching. Episode patterns need season and episode groups (named
	// "season"/"episode" or the first two groups), date patterns need year,
	// month and day groups, sequence patterns one number group, and id
	// patterns use their first group or the whole match.
	NameRegexps     []string
	EpisodeRegexps  []string
	DateRegexps     []string
	SequenceRegexps []string
	IDRegexps       []string

	// IdentifiedBy forces one scheme. KindNone tries all of them.
	IdentifiedBy Kind

	// Ordering hints for ambiguous dates.
	DateYearFirst bool
	DateDayFirst  bool

	SeasonPacks bool
	Tables      *quality.Tables
}

// Result is the outcome of parsing one title.
type Result struct {
	Name        string
	Valid       bool
	Reason      string
	Identifier  Identifier
	Quality     quality.Quality
	ProperCount int
	Special     bool
}

// Parser extracts identifiers for a single configured series. A Parser is
// immutable after construction and safe for concurrent use.
type Parser struct {
	opts     Options
	tables   *quality.Tables
	names    []*nameMatcher
	nameRes  []*regexp.Regexp
	episodes []*regexp.Regexp
	dates    []*regexp.Regexp
	seqs     []*regexp.Regexp
	ids      []*regexp.Regexp
}

// NewParser compiles a Parser.
func NewParser(opts Options) (*Parser, error) {
	p := &Parser{opts: opts, tables: opts.Tables}
	if p.tables == nil {
		p.tables = quality.Default()
	}
	if opts.IdentifiedBy == KindSpecial {
		return nil, fmt.Errorf("series %q: identified_by cannot be %s", opts.Name, KindSpecial)
	}
	for _, name := range append([]string{opts.Name}, opts.AlternateNames...) {
		if m, ok := newNameMatcher(name); ok {
			p.names = append(p.names, m)
		}
	}
	var err error
	if p.nameRes, err = compileAll(opts.NameRegexps, 0); err != nil {
		return nil, fmt.Errorf("series %q name pattern: %w", opts.Name, err)
	}
	if len(p.names) == 0 && len(p.nameRes) == 0 {
		return nil, fmt.Errorf("series name %q has no usable tokens", opts.Name)
	}
	if p.episodes, err = compileAll(opts.EpisodeRegexps, 2); err != nil {
		return nil, fmt.Errorf("series %q episode pattern: %w", opts.Name, err)
	}
	if p.dates, err = compileAll(opts.DateRegexps, 3); err != nil {
		return nil, fmt.Errorf("series %q date pattern: %w", opts.Name, err)
	}
	if p.seqs, err = compileAll(opts.SequenceRegexps, 1); err != nil {
		return nil, fmt.Errorf("series %q sequence pattern: %w", opts.Name, err)
	}
	if p.ids, err = compileAll(opts.IDRegexps, 0); err != nil {
		return nil, fmt.Errorf("series %q id pattern: %w", opts.Name, err)
	}
	return p, nil
}

func compileAll(patterns []string, minGroups int) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return nil, fmt.Errorf("compile %q: %w", pattern, err)
		}
		if re.NumSubexp() < minGroups {
			return nil, fmt.Errorf("pattern %q needs %d capture groups, has %d", pattern, minGroups, re.NumSubexp())
		}
		out = append(out, re)
	}
	return out, nil
}

// Name returns the configured series name.
func (p *Parser) Name() string { return p.opts.Name }

// Parse extracts the identifier, quality and markers from a title. The
// result is invalid when the title does not belong to the series or carries
// no identifier.
func (p *Parser) Parse(title string) Result {
	res := Result{Name: p.opts.Name}
	normalized := normalize(title)
	remainder, ok := p.matchName(normalized)
	if !ok {
		res.Reason = "name mismatch"
		return res
	}

	res.Quality = p.tables.Parse(remainder)
	words := tokens(remainder)
	res.ProperCount = countPropers(words)
	special := hasSpecialMarker(words)

	id, ok := p.identify(remainder)
	switch {
	case ok:
		if id.Kind == KindEpisode && id.Season == 0 && !id.SeasonPack {
			special = true
		}
	case special:
		id = Identifier{Kind: KindSpecial, ID: specialID(words)}
	default:
		res.Reason = "no identifier"
		return res
	}
	res.Identifier = id
	res.Special = special
	res.Valid = true
	return res
}

func (p *Parser) matchName(normalized string) (string, bool) {
	for _, re := range p.nameRes {
		if loc := re.FindStringIndex(normalized); loc != nil {
			return normalized[loc[1]:], true
		}
	}
	for _, m := range p.names {
		if rest, ok := m.match(normalized); ok {
			return rest, true
		}
	}
	return "", false
}

func (p *Parser) identify(text string) (Identifier, bool) {
	kinds := []Kind{KindEpisode, KindDate, KindSequence, KindID}
	if p.opts.IdentifiedBy != KindNone {
		kinds = []Kind{p.opts.IdentifiedBy}
	}
	for _, kind := range kinds {
		var (
			id Identifier
			ok bool
		)
		switch kind {
		case KindEpisode:
			id, ok = p.identifyEpisode(text)
		case KindDate:
			id, ok = p.identifyDate(text)
		case KindSequence:
			id, ok = p.identifySequence(text)
		case KindID:
			id, ok = p.identifyID(text)
		}
		if ok {
			return id, true
		}
	}
	return Identifier{}, false
}

func (p *Parser) identifyEpisode(text string) (Identifier, bool) {
	for _, re := range p.episodes {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		season := atoi(group(re, m, "season", 1))
		number := atoi(group(re, m, "episode", 2))
		return Identifier{Kind: KindEpisode, Season: season, Number: number, Count: 1}, true
	}

	if m := builtin.sxxexx.FindStringSubmatch(text); m != nil {
		season, number := atoi(m[1]), atoi(m[2])
		return Identifier{Kind: KindEpisode, Season: season, Number: number, Count: episodeCount(number, m[3])}, true
	}
	if m := builtin.xxyy.FindStringSubmatch(text); m != nil {
		return Identifier{Kind: KindEpisode, Season: atoi(m[1]), Number: atoi(m[2]), Count: 1}, true
	}
	if m := builtin.seasonEpisode.FindStringSubmatch(text); m != nil {
		return Identifier{Kind: KindEpisode, Season: atoi(m[1]), Number: atoi(m[2]), Count: 1}, true
	}
	if !p.opts.SeasonPacks {
		return Identifier{}, false
	}
	for _, re := range []*regexp.Regexp{builtin.packShort, builtin.packLong} {
		if m := re.FindStringSubmatch(text); m != nil {
			return Identifier{Kind: KindEpisode, Season: atoi(m[1]), SeasonPack: true, Count: 1}, true
		}
	}
	return Identifier{}, false
}

// episodeCount derives the number of episodes from the tail of a
// multi-episode marker such as "e03", "-e03e04", or "-03".
func episodeCount(first int, tail string) int {
	numbers := builtin.episodeNumbers.FindAllString(tail, -1)
	if len(numbers) == 0 {
		return 1
	}
	last := atoi(numbers[len(numbers)-1])
	if last <= first || last-first >= 100 {
		return 1
	}
	return last - first + 1
}

func (p *Parser) identifyDate(text string) (Identifier, bool) {
	for _, re := range p.dates {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		year := atoi(group(re, m, "year", 1))
		month := atoi(group(re, m, "month", 2))
		day := atoi(group(re, m, "day", 3))
		if year < 100 {
			year = expandYear(year)
		}
		if d, ok := makeDate(year, month, day); ok {
			return Identifier{Kind: KindDate, Date: d}, true
		}
	}

	if m := builtin.dateYMD.FindStringSubmatch(text); m != nil {
		if d, ok := makeDate(atoi(m[1]), atoi(m[2]), atoi(m[3])); ok {
			return Identifier{Kind: KindDate, Date: d}, true
		}
	}
	if m := builtin.dateCompact.FindStringSubmatch(text); m != nil {
		if d, ok := makeDate(atoi(m[1]), atoi(m[2]), atoi(m[3])); ok {
			return Identifier{Kind: KindDate, Date: d}, true
		}
	}
	if m := builtin.dateXXYYYY.FindStringSubmatch(text); m != nil {
		a, b, year := atoi(m[1]), atoi(m[2]), atoi(m[3])
		day, month := b, a
		if p.opts.DateDayFirst {
			day, month = a, b
		}
		if d, ok := makeDate(year, month, day); ok {
			return Identifier{Kind: KindDate, Date: d}, true
		}
		if d, ok := makeDate(year, day, month); ok {
			return Identifier{Kind: KindDate, Date: d}, true
		}
	}
	if m := builtin.dateShort.FindStringSubmatch(text); m != nil {
		a, b, c := atoi(m[1]), atoi(m[2]), atoi(m[3])
		var year, month, day int
		switch {
		case p.opts.DateYearFirst:
			year, month, day = a, b, c
		case p.opts.DateDayFirst:
			day, month, year = a, b, c
		default:
			month, day, year = a, b, c
		}
		if d, ok := makeDate(expandYear(year), month, day); ok {
			return Identifier{Kind: KindDate, Date: d}, true
		}
	}
	return Identifier{}, false
}

func expandYear(yy int) int {
	if yy < 70 {
		return 2000 + yy
	}
	return 1900 + yy
}

func (p *Parser) identifySequence(text string) (Identifier, bool) {
	for _, re := range p.seqs {
		if m := re.FindStringSubmatch(text); m != nil {
			if n := atoi(m[1]); n > 0 {
				return Identifier{Kind: KindSequence, Sequence: n}, true
			}
		}
	}
	for _, re := range []*regexp.Regexp{builtin.seqMarker, builtin.seqDash} {
		if m := re.FindStringSubmatch(text); m != nil {
			if n := atoi(m[1]); n > 0 {
				return Identifier{Kind: KindSequence, Sequence: n}, true
			}
		}
	}
	cleaned := builtin.noise.ReplaceAllString(text, " ")
	if m := builtin.seqBare.FindStringSubmatch(cleaned); m != nil {
		if n := atoi(m[1]); n > 0 {
			return Identifier{Kind: KindSequence, Sequence: n}, true
		}
	}
	return Identifier{}, false
}

func (p *Parser) identifyID(text string) (Identifier, bool) {
	for _, re := range p.ids {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		value := m[0]
		if len(m) > 1 && m[1] != "" {
			value = m[1]
		}
		value = strings.Trim(value, " ._-")
		if value != "" {
			return Identifier{Kind: KindID, ID: value}, true
		}
	}
	if m := builtin.id.FindStringSubmatch(text); m != nil {
		return Identifier{Kind: KindID, ID: m[1]}, true
	}
	return Identifier{}, false
}

func group(re *regexp.Regexp, m []string, name string, fallback int) string {
	if idx := re.SubexpIndex(name); idx > 0 && idx < len(m) {
		return m[idx]
	}
	if fallback < len(m) {
		return m[fallback]
	}
	return ""
}

func countPropers(words []string) int {
	count := 0
	for _, w := range words {
		if _, ok := properMarkers[w]; ok {
			count++
			continue
		}
		if m := builtin.animeVersion.FindStringSubmatch(w); m != nil {
			if v, err := strconv.Atoi(m[1]); err == nil && v > 1 {
				count += v - 1
			}
		}
	}
	return count
}

func hasSpecialMarker(words []string) bool {
	for _, w := range words {
		if _, ok := specialMarkers[w]; ok {
			return true
		}
	}
	return false
}

// specialID names a special by the words leading up to its last marker,
// e.g. "christmas.special".
func specialID(words []string) string {
	last := -1
	for i, w := range words {
		if _, ok := specialMarkers[w]; ok {
			last = i
		}
	}
	if last < 0 {
		return "special"
	}
	return strings.Join(words[:last+1], ".")
}
