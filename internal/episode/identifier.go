// Package episode extracts content identifiers from release titles.
//
// An identifier is one of: a season/episode pair (including season packs),
// an air date, a sequence number, a free-form id, or a special. Parsing first
// confirms the title starts with the configured series name, then tries
// identifier patterns in a fixed order (episode, date, sequence, id) with
// user-supplied patterns tried before the built-in ones.
package episode

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Kind is the identification scheme of an Identifier.
type Kind int

const (
	KindNone Kind = iota
	KindEpisode
	KindDate
	KindSequence
	KindID
	KindSpecial
)

var kindNames = map[Kind]string{
	KindNone:     "none",
	KindEpisode:  "ep",
	KindDate:     "date",
	KindSequence: "sequence",
	KindID:       "id",
	KindSpecial:  "special",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind resolves a kind from its config name. "auto" and "" map to
// KindNone, meaning no scheme is forced.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "auto":
		return KindNone, nil
	case "ep", "episode":
		return KindEpisode, nil
	case "date":
		return KindDate, nil
	case "sequence", "seq":
		return KindSequence, nil
	case "id":
		return KindID, nil
	case "special":
		return KindSpecial, nil
	default:
		return KindNone, fmt.Errorf("unknown identifier kind %q", name)
	}
}

// Identifier is the parsed identity of one release within a series.
type Identifier struct {
	Kind Kind

	// Episode kind. Number is 0 for a season pack. Count is the number of
	// episodes contained in the release (2 for a double episode).
	Season     int
	Number     int
	Count      int
	SeasonPack bool

	// Date kind, midnight UTC.
	Date time.Time

	// Sequence kind.
	Sequence int

	// ID and special kinds.
	ID string
}

// Valid reports whether the identifier carries a scheme.
func (id Identifier) Valid() bool { return id.Kind != KindNone }

// Key is the persisted form of the identifier. Multi-episode releases share
// the key of their first episode so they compete with the single-episode
// releases of the same identifier.
func (id Identifier) Key() string {
	switch id.Kind {
	case KindEpisode:
		if id.SeasonPack {
			return fmt.Sprintf("S%02d", id.Season)
		}
		return fmt.Sprintf("S%02dE%02d", id.Season, id.Number)
	case KindDate:
		return id.Date.Format(time.DateOnly)
	case KindSequence:
		return strconv.Itoa(id.Sequence)
	case KindID, KindSpecial:
		return id.ID
	default:
		return ""
	}
}

func (id Identifier) String() string {
	if id.Kind == KindEpisode && !id.SeasonPack && id.Count > 1 {
		return fmt.Sprintf("S%02dE%02d-E%02d", id.Season, id.Number, id.Number+id.Count-1)
	}
	if id.Kind == KindSpecial {
		return "special " + id.ID
	}
	return id.Key()
}

// Episodes returns the number of episodes the release contains (at least 1).
func (id Identifier) Episodes() int {
	if id.Count < 1 {
		return 1
	}
	return id.Count
}

// Compare orders identifiers of the same comparable kind. ok is false when
// the kinds differ or either side is a special.
func Compare(a, b Identifier) (result int, ok bool) {
	if a.Kind != b.Kind || a.Kind == KindSpecial || a.Kind == KindNone {
		return 0, false
	}
	switch a.Kind {
	case KindEpisode:
		if c := cmpInt(a.Season, b.Season); c != 0 {
			return c, true
		}
		return cmpInt(a.Number, b.Number), true
	case KindDate:
		return a.Date.Compare(b.Date), true
	case KindSequence:
		return cmpInt(a.Sequence, b.Sequence), true
	default:
		return strings.Compare(a.ID, b.ID), true
	}
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

var (
	keyEpisode = regexp.MustCompile(`(?i)^s(\d{1,4})(?:e(\d{1,4}))?$`)
	keyDate    = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})$`)
	keyNumber  = regexp.MustCompile(`^\d+$`)
)

// ParseIdentifier interprets a user supplied identifier such as a series
// begin point: "S02E05", "S03" (season), "2024-01-15", "42", or any other
// text as an id.
func ParseIdentifier(text string) (Identifier, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Identifier{}, fmt.Errorf("empty identifier")
	}
	if m := keyEpisode.FindStringSubmatch(text); m != nil {
		season, _ := strconv.Atoi(m[1])
		if m[2] == "" {
			return Identifier{Kind: KindEpisode, Season: season, SeasonPack: true, Count: 1}, nil
		}
		number, _ := strconv.Atoi(m[2])
		return Identifier{Kind: KindEpisode, Season: season, Number: number, Count: 1}, nil
	}
	if m := keyDate.FindStringSubmatch(text); m != nil {
		d, ok := makeDate(atoi(m[1]), atoi(m[2]), atoi(m[3]))
		if !ok {
			return Identifier{}, fmt.Errorf("invalid date identifier %q", text)
		}
		return Identifier{Kind: KindDate, Date: d}, nil
	}
	if keyNumber.MatchString(text) {
		return Identifier{Kind: KindSequence, Sequence: atoi(text)}, nil
	}
	return Identifier{Kind: KindID, ID: strings.ToLower(text)}, nil
}

// Restore rebuilds an identifier from its persisted kind and key.
func Restore(kind Kind, key string) (Identifier, error) {
	switch kind {
	case KindSpecial:
		return Identifier{Kind: KindSpecial, ID: key}, nil
	case KindID:
		return Identifier{Kind: KindID, ID: key}, nil
	}
	id, err := ParseIdentifier(key)
	if err != nil {
		return Identifier{}, err
	}
	if id.Kind != kind {
		return Identifier{}, fmt.Errorf("identifier %q is not of kind %s", key, kind)
	}
	return id, nil
}

func makeDate(year, month, day int) (time.Time, bool) {
	if year < 1900 || year > 2200 || month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if d.Year() != year || int(d.Month()) != month || d.Day() != day {
		return time.Time{}, false
	}
	return d, true
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
