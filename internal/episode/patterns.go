package episode

import "regexp"

// Boundaries used by the built-in patterns. Titles are case folded before
// matching so the patterns only deal with lower case.
const (
	pre  = `(?:^|[^\p{L}\p{N}])`
	post = `(?:$|[^\p{L}\p{N}])`
)

// patternSet holds the precompiled built-in identifier patterns.
type patternSet struct {
	// Episode patterns, most specific first.
	sxxexx        *regexp.Regexp // s01e02, s01e02e03, s01e02-e03, s01e02-03
	xxyy          *regexp.Regexp // 1x02
	seasonEpisode *regexp.Regexp // season 1 episode 2

	// Season packs, only consulted when packs are allowed.
	packShort *regexp.Regexp // s01
	packLong  *regexp.Regexp // season 1

	// Dates.
	dateYMD     *regexp.Regexp // 2024.01.15, 2024 01 15
	dateXXYYYY  *regexp.Regexp // 15.01.2024 or 01.15.2024
	dateCompact *regexp.Regexp // 20240115
	dateShort   *regexp.Regexp // 24.01.15 (order from preferences)

	// Sequences.
	seqMarker *regexp.Regexp // ep 12, episode 12, e12, part 3, pt 3
	seqDash   *regexp.Regexp // - 12
	seqBare   *regexp.Regexp // 12

	// Generic id fallback.
	id *regexp.Regexp // 2024-05

	// Noise removed before bare sequence matching.
	noise *regexp.Regexp

	episodeNumbers *regexp.Regexp
	animeVersion   *regexp.Regexp
}

var builtin = newPatternSet()

func newPatternSet() *patternSet {
	return &patternSet{
		sxxexx:        regexp.MustCompile(pre + `s(\d{1,4})[ ._]?e(\d{1,4})((?:[ ._]?-?[ ._]?e\d{1,4}|-\d{1,4})*)(?:v\d+)?` + post),
		xxyy:          regexp.MustCompile(pre + `(\d{1,2})x(\d{2,3})` + post),
		seasonEpisode: regexp.MustCompile(pre + `season[ ._-]?(\d{1,4})[ ._-]*(?:episode|ep)[ ._-]?(\d{1,4})` + post),

		packShort: regexp.MustCompile(pre + `s(\d{1,4})` + post),
		packLong:  regexp.MustCompile(pre + `season[ ._-]?(\d{1,4})` + post),

		dateYMD:     regexp.MustCompile(pre + `(\d{4})[ ._-](\d{1,2})[ ._-](\d{1,2})` + post),
		dateXXYYYY:  regexp.MustCompile(pre + `(\d{1,2})[ ._-](\d{1,2})[ ._-](\d{4})` + post),
		dateCompact: regexp.MustCompile(pre + `(\d{4})(\d{2})(\d{2})` + post),
		dateShort:   regexp.MustCompile(pre + `(\d{2})[ ._-](\d{2})[ ._-](\d{2})` + post),

		seqMarker: regexp.MustCompile(pre + `(?:episode|ep|e|part|pt)[ ._-]?(\d{1,4})(?:v\d+)?` + post),
		seqDash:   regexp.MustCompile(`(?:^|[ ._])-[ ._]?(\d{1,4})(?:v\d+)?` + post),
		seqBare:   regexp.MustCompile(`(?:^|[ ._\-\[(])(\d{1,3})(?:v\d+)?(?:$|[ ._\-\])])`),

		id: regexp.MustCompile(pre + `(\d{4}-\d{1,3})` + post),

		noise: regexp.MustCompile(`\[[^\]]*\]|\([^)]*\)|\d{3,4}[pi]|[hx][ .]?26[45]|\d+bit|(?:dd[p+]?|aac|ac3|dts|flac|truehd|opus)?[ .]?\d[ .]\d(?:ch)?|\d+-\d+|mp3`),

		episodeNumbers: regexp.MustCompile(`\d+`),
		animeVersion:   regexp.MustCompile(`^(?:\d+|s\d+e\d+)v(\d+)$`),
	}
}

// Proper and special markers are matched against whole tokens.
var (
	properMarkers  = map[string]struct{}{"proper": {}, "repack": {}, "rerip": {}, "real": {}, "fix": {}}
	specialMarkers = map[string]struct{}{
		"special": {}, "specials": {}, "bonus": {}, "ova": {}, "oad": {},
		"omake": {}, "extra": {}, "extras": {},
	}
)
