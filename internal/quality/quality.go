package quality

import (
	"cmp"
	"slices"
	"strings"
)

// Quality is the ranked descriptor of one release.
type Quality struct {
	Resolution Level
	Source     Level
	Codec      Level
	Audio      Level
	Channels   Level
}

// Unknown is the zero quality; it sorts below every recognized quality.
var Unknown = Quality{}

func (q Quality) level(c Component) Level {
	switch c {
	case Resolution:
		return q.Resolution
	case Source:
		return q.Source
	case Codec:
		return q.Codec
	case Audio:
		return q.Audio
	case Channels:
		return q.Channels
	}
	return Level{}
}

func (q *Quality) set(lvl Level) {
	switch lvl.Component {
	case Resolution:
		q.Resolution = lvl
	case Source:
		q.Source = lvl
	case Codec:
		q.Codec = lvl
	case Audio:
		q.Audio = lvl
	case Channels:
		q.Channels = lvl
	}
}

// Level returns the level of one component.
func (q Quality) Level(c Component) Level { return q.level(c) }

// IsUnknown reports whether no component was recognized.
func (q Quality) IsUnknown() bool {
	for c := range componentCount {
		if q.level(Component(c)).Known() {
			return false
		}
	}
	return true
}

// Compare orders qualities lexicographically over component ranks with
// resolution most significant. It returns -1, 0, or +1.
func Compare(a, b Quality) int {
	for c := range componentCount {
		if d := cmp.Compare(a.level(Component(c)).Rank, b.level(Component(c)).Rank); d != 0 {
			return d
		}
	}
	return 0
}

// Less reports whether q ranks strictly below other.
func (q Quality) Less(other Quality) bool { return Compare(q, other) < 0 }

// Equal reports whether q and other carry identical ranks.
func (q Quality) Equal(other Quality) bool { return Compare(q, other) == 0 }

// String renders the recognized component names in significance order, or
// "unknown".
func (q Quality) String() string {
	parts := make([]string, 0, componentCount)
	for c := range componentCount {
		if lvl := q.level(Component(c)); lvl.Known() {
			parts = append(parts, lvl.Name)
		}
	}
	if len(parts) == 0 {
		return "unknown"
	}
	return strings.Join(parts, " ")
}

// MarshalText stores the canonical name form.
func (q Quality) MarshalText() ([]byte, error) {
	return []byte(q.String()), nil
}

// UnmarshalText restores a quality written by MarshalText using the default
// tables. Use Tables.FromString when custom rank tables are active.
func (q *Quality) UnmarshalText(text []byte) error {
	*q = Default().FromString(string(text))
	return nil
}

// FromString rebuilds a quality from its canonical name form. Unknown names
// are ignored.
func (t *Tables) FromString(s string) Quality {
	var q Quality
	for _, field := range strings.Fields(s) {
		if lvl, ok := t.Lookup(field); ok {
			q.set(lvl)
		}
	}
	return q
}

type match struct {
	start, end int
	level      Level
}

// Parse extracts a quality from free text. For each component every token
// match is collected; overlapping matches keep the longest, and among the
// remaining matches the best ranked one wins.
func (t *Tables) Parse(text string) Quality {
	var q Quality
	for c := range componentCount {
		var found []match
		for _, cl := range t.levels[c] {
			for _, loc := range cl.re.FindAllStringSubmatchIndex(text, -1) {
				if len(loc) < 4 || loc[2] < 0 {
					continue
				}
				found = append(found, match{start: loc[2], end: loc[3], level: cl.level})
			}
		}
		if len(found) == 0 {
			continue
		}
		slices.SortStableFunc(found, func(a, b match) int {
			if d := cmp.Compare(b.end-b.start, a.end-a.start); d != 0 {
				return d
			}
			return cmp.Compare(a.start, b.start)
		})
		kept := found[:0:0]
		for _, m := range found {
			overlaps := slices.ContainsFunc(kept, func(k match) bool {
				return m.start < k.end && k.start < m.end
			})
			if !overlaps {
				kept = append(kept, m)
			}
		}
		best := kept[0].level
		for _, m := range kept[1:] {
			if m.level.Rank > best.Rank {
				best = m.level
			}
		}
		q.set(best)
	}
	return q
}

// Parse extracts a quality using the default tables.
func Parse(text string) Quality { return Default().Parse(text) }

// Max returns the best of the provided qualities.
func Max(qs ...Quality) Quality {
	var best Quality
	for i, q := range qs {
		if i == 0 || Compare(q, best) > 0 {
			best = q
		}
	}
	return best
}
