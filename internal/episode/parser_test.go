package episode

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func mustParser(t *testing.T, opts Options) *Parser {
	t.Helper()
	p, err := NewParser(opts)
	require.NoError(t, err)
	return p
}

func TestParseEpisodeIdentifiers(t *testing.T) {
	t.Parallel()
	require := require.New(t)
	p := mustParser(t, Options{Name: "Show", SeasonPacks: true})

	tests := []struct {
		title    string
		expected string
		episodes int
	}{
		{"Show.S01E02.720p.HDTV.x264-GRP", "S01E02", 1},
		{"show s1e2", "S01E02", 1},
		{"Show.S01E02E03.1080p", "S01E02", 2},
		{"Show.S01E02-E03.1080p", "S01E02", 2},
		{"Show.S01E02-03.1080p", "S01E02", 2},
		{"Show.1x02.HDTV", "S01E02", 1},
		{"Show Season 2 Episode 5", "S02E05", 1},
		{"Show.S03.1080p.BluRay", "S03", 1},
		{"Show Season 4 Complete", "S04", 1},
		{"[Group] Show - S02E01 [1080p]", "S02E01", 1},
	}

	for _, tc := range tests {
		res := p.Parse(tc.title)
		require.True(res.Valid, "Parse(%q) should be valid: %s", tc.title, res.Reason)
		require.Equal(KindEpisode, res.Identifier.Kind, "Parse(%q)", tc.title)
		require.Equal(tc.expected, res.Identifier.Key(), "Parse(%q)", tc.title)
		require.Equal(tc.episodes, res.Identifier.Episodes(), "Parse(%q) episode count", tc.title)
	}
}

func TestSeasonPacksRequireOptIn(t *testing.T) {
	t.Parallel()
	p := mustParser(t, Options{Name: "Show"})
	res := p.Parse("Show.S03.1080p.BluRay")
	require.False(t, res.Valid)
	require.Equal(t, "no identifier", res.Reason)
}

func TestParseDateIdentifiers(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	tests := []struct {
		name     string
		opts     Options
		title    string
		expected string
	}{
		{"year first", Options{Name: "Daily"}, "Daily.2024.01.15.720p", "2024-01-15"},
		{"spaces", Options{Name: "Daily"}, "Daily 2024 01 15", "2024-01-15"},
		{"compact", Options{Name: "Daily"}, "Daily.20240115.HDTV", "2024-01-15"},
		{"month first default", Options{Name: "Daily"}, "Daily.02.03.2024", "2024-02-03"},
		{"day first", Options{Name: "Daily", DateDayFirst: true}, "Daily.02.03.2024", "2024-03-02"},
		{"unambiguous day", Options{Name: "Daily"}, "Daily.25.12.2023", "2023-12-25"},
		{"short year first", Options{Name: "Daily", DateYearFirst: true}, "Daily.24.01.15", "2024-01-15"},
	}

	for _, tc := range tests {
		res := mustParser(t, tc.opts).Parse(tc.title)
		require.True(res.Valid, "%s: %s", tc.name, res.Reason)
		require.Equal(KindDate, res.Identifier.Kind, tc.name)
		require.Equal(tc.expected, res.Identifier.Key(), tc.name)
	}
}

func TestParseSequenceAndID(t *testing.T) {
	t.Parallel()
	require := require.New(t)
	p := mustParser(t, Options{Name: "Show"})

	tests := []struct {
		title string
		kind  Kind
		key   string
	}{
		{"Show Ep 12 720p", KindSequence, "12"},
		{"Show.Part.3.HDTV", KindSequence, "3"},
		{"[Sub] Show - 07 [1080p][ABCD1234]", KindSequence, "7"},
		{"Show 105 HDTV x264", KindSequence, "105"},
		{"Show.2019-05.720p", KindID, "2019-05"},
	}
	for _, tc := range tests {
		res := p.Parse(tc.title)
		require.True(res.Valid, "Parse(%q): %s", tc.title, res.Reason)
		require.Equal(tc.kind, res.Identifier.Kind, "Parse(%q)", tc.title)
		require.Equal(tc.key, res.Identifier.Key(), "Parse(%q)", tc.title)
	}
}

func TestNameMustBeTokenBoundedPrefix(t *testing.T) {
	t.Parallel()
	require := require.New(t)
	p := mustParser(t, Options{Name: "Show", AlternateNames: []string{"The Show US"}})

	require.False(p.Parse("Showtime.S01E01").Valid)
	require.False(p.Parse("Another.Show.S01E01").Valid)
	require.True(p.Parse("SHOW.S01E01").Valid)
	require.True(p.Parse("The.Show.US.S01E01").Valid)

	apostrophe := mustParser(t, Options{Name: "Grey's Anatomy & Friends"})
	require.True(apostrophe.Parse("Greys.Anatomy.and.Friends.S01E01").Valid)
}

func TestMarkers(t *testing.T) {
	t.Parallel()
	require := require.New(t)
	p := mustParser(t, Options{Name: "Show"})

	res := p.Parse("Show.S01E01.720p.PROPER")
	require.Equal(1, res.ProperCount)
	require.False(res.Special)

	res = p.Parse("Show.S01E01.REAL.PROPER.720p")
	require.Equal(2, res.ProperCount)

	res = p.Parse("Show - 12v3 [720p]")
	require.Equal(KindSequence, res.Identifier.Kind)
	require.Equal(2, res.ProperCount)

	res = p.Parse("Show.S00E03.720p")
	require.True(res.Valid)
	require.True(res.Special)
	require.Equal(KindEpisode, res.Identifier.Kind)

	res = p.Parse("Show.Christmas.Special.720p")
	require.True(res.Valid)
	require.True(res.Special)
	require.Equal(KindSpecial, res.Identifier.Kind)
	require.Equal("christmas.special", res.Identifier.Key())

	res = p.Parse("Show.S02E05.Bonus.Footage")
	require.True(res.Special)
	require.Equal("S02E05", res.Identifier.Key())
}

func TestQualityExtractedFromRemainder(t *testing.T) {
	t.Parallel()
	p := mustParser(t, Options{Name: "Show"})
	res := p.Parse("Show.S01E02.1080p.WEB-DL.DD5.1.H.264-GRP")
	require.Equal(t, "1080p webdl h264 dd5.1 5.1", res.Quality.String())
}

func TestIdentifiedByForcesScheme(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	seq := mustParser(t, Options{Name: "Show", IdentifiedBy: KindSequence})
	require.False(seq.Parse("Show.S01E02").Valid)
	require.Equal("4", seq.Parse("Show.Ep.4").Identifier.Key())

	ep := mustParser(t, Options{Name: "Show", IdentifiedBy: KindEpisode})
	require.False(ep.Parse("Show.2024.01.15").Valid)

	_, err := NewParser(Options{Name: "Show", IdentifiedBy: KindSpecial})
	require.Error(err)
}

func TestCustomPatternsTriedFirst(t *testing.T) {
	t.Parallel()
	require := require.New(t)
	p := mustParser(t, Options{
		Name:           "Show",
		EpisodeRegexps: []string{`chapter (?P<season>\d+)-(?P<episode>\d+)`},
		IDRegexps:      []string{`#(\w+)`},
	})

	res := p.Parse("Show Chapter 3-9")
	require.Equal("S03E09", res.Identifier.Key())

	res = p.Parse("Show #abc")
	require.Equal(KindID, res.Identifier.Kind)
	require.Equal("abc", res.Identifier.Key())

	_, err := NewParser(Options{Name: "Show", EpisodeRegexps: []string{`(\d+)`}})
	require.Error(err)
	_, err = NewParser(Options{Name: "Show", DateRegexps: []string{`(`}})
	require.Error(err)
}

func TestCustomNamePattern(t *testing.T) {
	t.Parallel()
	p := mustParser(t, Options{Name: "Show", NameRegexps: []string{`^sh[o0]w`}})
	require.True(t, p.Parse("Sh0w.S01E01").Valid)
}

func TestParseIsIdempotent(t *testing.T) {
	t.Parallel()
	p := mustParser(t, Options{Name: "Show", SeasonPacks: true})
	for _, title := range []string{
		"Show.S01E02.720p.HDTV.PROPER",
		"Show.2024.01.15.1080p",
		"Show.Special.720p",
		"Show - 12v2",
		"Other.S01E01",
	} {
		first := p.Parse(title)
		second := p.Parse(title)
		require.Equal(t, first.Valid, second.Valid, title)
		require.Equal(t, first.Identifier, second.Identifier, title)
		require.True(t, first.Quality.Equal(second.Quality), title)
		require.Equal(t, first.ProperCount, second.ProperCount, title)
		require.Equal(t, first.Special, second.Special, title)
	}
}

func TestInvalidDatesFallThrough(t *testing.T) {
	t.Parallel()
	p := mustParser(t, Options{Name: "Daily", IdentifiedBy: KindDate})
	require.False(t, p.Parse("Daily.2024.02.30").Valid)
	res := p.Parse("Daily.2024.02.29")
	require.True(t, res.Valid)
	require.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), res.Identifier.Date)
}
