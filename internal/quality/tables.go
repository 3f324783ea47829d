// Package quality models the resolution/source/codec/audio/channels tuple of a
// release and the requirement language used to filter releases by it.
//
// Each component is ranked by a table ordered from worst to best. Qualities
// compare lexicographically over component ranks with resolution most
// significant, which gives a strict total order as long as every table
// assigns distinct ranks (enforced by NewTables). Unknown components rank 0
// and therefore sort below every recognized value.
package quality

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// Component identifies one axis of a Quality.
type Component int

const (
	Resolution Component = iota
	Source
	Codec
	Audio
	Channels
)

const componentCount = 5

var componentNames = [componentCount]string{"resolution", "source", "codec", "audio", "channels"}

func (c Component) String() string {
	if c < 0 || int(c) >= componentCount {
		return "unknown"
	}
	return componentNames[c]
}

// ParseComponent resolves a component by its config name.
func ParseComponent(name string) (Component, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range componentNames {
		if n == name {
			return Component(i), true
		}
	}
	return 0, false
}

// Level is one ranked value of a component. The zero Level is "unknown".
type Level struct {
	Component Component
	Name      string
	Rank      int
}

// Known reports whether the level was recognized.
func (l Level) Known() bool { return l.Rank > 0 }

type levelDef struct {
	name    string
	pattern string
	aliases []string
}

// Default rank order, worst first.
var defaultDefs = [componentCount][]levelDef{
	Resolution: {
		{name: "360p", pattern: `360[pi]`},
		{name: "480p", pattern: `480[pi]|368p|848x480`},
		{name: "576p", pattern: `576[pi]`},
		{name: "hr", pattern: `hr|hires|high[ .]?res`},
		{name: "720i", pattern: `720i`},
		{name: "720p", pattern: `720p|1280x720`},
		{name: "1080i", pattern: `1080i`},
		{name: "1080p", pattern: `1080p|1920x1080|fhd`},
		{name: "1440p", pattern: `1440p|2560x1440`},
		{name: "2160p", pattern: `2160p|3840x2160|4k|uhd`, aliases: []string{"4k", "uhd"}},
	},
	Source: {
		{name: "workprint", pattern: `workprint`},
		{name: "cam", pattern: `(?:hd)?cam(?:rip)?`},
		{name: "ts", pattern: `(?:hd)?ts|telesync|pdvd`},
		{name: "tc", pattern: `tc|telecine`},
		{name: "r5", pattern: `r5`},
		{name: "dvdscr", pattern: `(?:dvd)?scr(?:eener)?`},
		{name: "hdtv", pattern: `a?hdtv(?:rip)?`},
		{name: "preair", pattern: `preair`},
		{name: "sdtv", pattern: `(?:sd)?tv(?:rip)?|pdtv|dvb(?:rip)?`},
		{name: "dsr", pattern: `dsr(?:ip)?|satrip|dthrip`},
		{name: "webrip", pattern: `web[-. ]?rip`, aliases: []string{"web-rip"}},
		{name: "webdl", pattern: `web[-. ]?dl|webhd|web`, aliases: []string{"web-dl", "web"}},
		{name: "dvdrip", pattern: `dvd(?:rip|mux|r|full|5|9)?`, aliases: []string{"dvd"}},
		{name: "hddvd", pattern: `hd[-. ]?dvd(?:rip)?`, aliases: []string{"hd-dvd"}},
		{name: "bluray", pattern: `blu[-. ]?ray|b[dr]rip|bd`, aliases: []string{"blu-ray", "bd", "bdrip"}},
		{name: "remux", pattern: `(?:bd)?remux`},
	},
	Codec: {
		{name: "divx", pattern: `divx`},
		{name: "xvid", pattern: `xvid`},
		{name: "h264", pattern: `[hx][ .]?264|avc`, aliases: []string{"x264", "h.264", "avc"}},
		{name: "h265", pattern: `[hx][ .]?265|hevc`, aliases: []string{"x265", "h.265", "hevc"}},
		{name: "av1", pattern: `av1`},
	},
	Audio: {
		{name: "mp3", pattern: `mp3`},
		{name: "aac", pattern: `aac(?:[ .]?\d[ .]\d)?`},
		{name: "dd5.1", pattern: `dd(?:[ .]?\d[ .]\d)?|ac-?3|dolby[ .]?digital`, aliases: []string{"dd", "ac3"}},
		{name: "ddplus", pattern: `dd[p+](?:[ .]?\d[ .]\d)?|ddplus|e-?ac-?3`, aliases: []string{"dd+", "ddp", "eac3"}},
		{name: "flac", pattern: `flac(?:[ .]?\d[ .]\d)?`},
		{name: "dts", pattern: `dts`},
		{name: "dtshd", pattern: `dts[-. ]?hd(?:[-. ]?ma)?|dts[-. ]?ma`, aliases: []string{"dts-hd"}},
		{name: "truehd", pattern: `true[-. ]?hd`},
		{name: "atmos", pattern: `atmos`},
	},
	Channels: {
		{name: "1.0", pattern: `1[ .]0`},
		{name: "2.0", pattern: `2[ .]0`},
		{name: "5.1", pattern: `5[ .]1|6ch`},
		{name: "7.1", pattern: `7[ .]1|8ch`},
	},
}

type compiledLevel struct {
	level Level
	re    *regexp.Regexp
}

// Tables holds the compiled rank tables for every component. Tables are
// immutable once built and safe for concurrent use.
type Tables struct {
	levels [componentCount][]compiledLevel
	byName map[string]Level
}

var defaultTables = mustTables(nil)

// Default returns the built-in rank tables.
func Default() *Tables { return defaultTables }

func mustTables(order map[Component][]string) *Tables {
	t, err := NewTables(order)
	if err != nil {
		panic(err)
	}
	return t
}

// NewTables compiles the rank tables, applying per-component order overrides.
// An override must list every known name of its component exactly once,
// worst first.
func NewTables(order map[Component][]string) (*Tables, error) {
	t := &Tables{byName: make(map[string]Level)}
	for c := range componentCount {
		defs, err := orderedDefs(Component(c), order[Component(c)])
		if err != nil {
			return nil, err
		}
		compiled := make([]compiledLevel, 0, len(defs))
		for i, def := range defs {
			lvl := Level{Component: Component(c), Name: def.name, Rank: i + 1}
			re, err := regexp.Compile(boundedPattern(Component(c), def.pattern))
			if err != nil {
				return nil, fmt.Errorf("compile %s pattern %q: %w", Component(c), def.name, err)
			}
			compiled = append(compiled, compiledLevel{level: lvl, re: re})
			t.byName[def.name] = lvl
			for _, alias := range def.aliases {
				if _, exists := t.byName[alias]; !exists {
					t.byName[alias] = lvl
				}
			}
		}
		t.levels[c] = compiled
	}
	return t, nil
}

func orderedDefs(c Component, names []string) ([]levelDef, error) {
	defs := defaultDefs[c]
	if len(names) == 0 {
		return defs, nil
	}
	if len(names) != len(defs) {
		return nil, fmt.Errorf("quality rank override for %s must list all %d names, got %d", c, len(defs), len(names))
	}
	ordered := make([]levelDef, 0, len(defs))
	seen := make(map[string]struct{}, len(names))
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("quality rank override for %s lists %q twice", c, name)
		}
		seen[name] = struct{}{}
		idx := slices.IndexFunc(defs, func(d levelDef) bool { return d.name == name })
		if idx < 0 {
			return nil, fmt.Errorf("quality rank override for %s: unknown name %q", c, name)
		}
		ordered = append(ordered, defs[idx])
	}
	return ordered, nil
}

// Channel counts sit directly against letters ("DD5.1", "AAC2.0") so they
// are bounded by digits only; every other component is bounded by any
// non-alphanumeric character.
func boundedPattern(c Component, pattern string) string {
	if c == Channels {
		return `(?i)(?:^|[^0-9])(` + pattern + `)(?:$|[^0-9])`
	}
	return `(?i)(?:^|[^a-z0-9])(` + pattern + `)(?:$|[^a-z0-9])`
}

// Lookup resolves a level by its canonical name or alias.
func (t *Tables) Lookup(name string) (Level, bool) {
	lvl, ok := t.byName[strings.ToLower(strings.TrimSpace(name))]
	return lvl, ok
}

// Levels returns the levels of a component, worst first.
func (t *Tables) Levels(c Component) []Level {
	out := make([]Level, 0, len(t.levels[c]))
	for _, cl := range t.levels[c] {
		out = append(out, cl.level)
	}
	return out
}

// Names returns the canonical names of a component, worst first.
func (t *Tables) Names(c Component) []string {
	out := make([]string, 0, len(t.levels[c]))
	for _, cl := range t.levels[c] {
		out = append(out, cl.level.Name)
	}
	return out
}
