package builtins_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"curator/internal/builtins"
	"curator/internal/entry"
	"curator/internal/logging"
	"curator/internal/plugin"
	"curator/internal/task"
	"curator/internal/testsupport"
)

func runTask(t *testing.T, plugins map[string]any) (*task.Task, *logging.Ring) {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithTask("tv", 0, plugins))
	reg, err := builtins.NewRegistry()
	require.NoError(t, err)
	ring := logging.NewRing(64)
	tk, err := task.New("tv", task.Options{
		Config:   cfg,
		Registry: reg,
		Store:    testsupport.MustOpenStore(t, cfg),
		Logger:   slog.New(ring.Handler()),
		Ring:     ring,
	})
	require.NoError(t, err)
	require.NoError(t, tk.Execute(context.Background()))
	return tk, ring
}

func byTitle(tk *task.Task) map[string]*entry.Entry {
	out := make(map[string]*entry.Entry)
	for _, e := range tk.Entries().All() {
		out[e.Title()] = e
	}
	return out
}

func TestMockFeedsFilters(t *testing.T) {
	tk, _ := runTask(t, map[string]any{
		"mock": map[string]any{
			"titles": []string{"Show.S01E01.720p.HDTV.x264-GRP", "Show.S01E02.CAM.XviD"},
			"entries": []any{
				map[string]any{"title": "Other.S02E03.1080p.WEB-DL", "url": "http://example/3", "fields": map[string]any{"size": 700}},
			},
		},
		"reject_regexp": map[string]any{"regexps": []string{"cam"}},
		"accept_all":    true,
	})
	require := require.New(t)

	entries := byTitle(tk)
	require.Len(entries, 3)

	good := entries["Show.S01E01.720p.HDTV.x264-GRP"]
	require.Equal(entry.Accepted, good.State())
	require.Equal(builtins.NameAcceptAll, good.DecidedBy())
	require.Equal("mock://tv/Show.S01E01.720p.HDTV.x264-GRP", good.URL())
	require.Equal("720p hdtv h264", good.String(builtins.FieldQuality))

	cam := entries["Show.S01E02.CAM.XviD"]
	require.Equal(entry.Rejected, cam.State())
	require.Equal("title matched cam", cam.Reason())
	require.Equal(builtins.NameRejectRegexp, cam.DecidedBy())

	other := entries["Other.S02E03.1080p.WEB-DL"]
	require.Equal("http://example/3", other.URL())
	require.Equal(700, other.Int("size"))
	require.Equal(entry.Accepted, other.State())
}

func TestQualityBuiltinKeepsExistingField(t *testing.T) {
	tk, _ := runTask(t, map[string]any{
		"mock": map[string]any{
			"entries": []any{
				map[string]any{"title": "Show.S01E01.720p.HDTV", "fields": map[string]any{"quality": "1080p bluray"}},
			},
		},
	})
	e := byTitle(tk)["Show.S01E01.720p.HDTV"]
	require.Equal(t, "1080p bluray", e.String(builtins.FieldQuality))
	require.Equal(t, entry.Undecided, e.State())
}

func TestQualityBuiltinCanBeDisabled(t *testing.T) {
	tk, _ := runTask(t, map[string]any{
		"mock":    map[string]any{"titles": []string{"Show.S01E01.720p.HDTV"}},
		"quality": false,
	})
	e := byTitle(tk)["Show.S01E01.720p.HDTV"]
	require.False(t, e.Has(builtins.FieldQuality))
}

func TestReleaseAnnotatesSceneAttributes(t *testing.T) {
	tk, _ := runTask(t, map[string]any{
		"mock":    map[string]any{"titles": []string{"Show.S01E01.720p.HDTV.x264-GRP"}},
		"release": true,
	})
	e := byTitle(tk)["Show.S01E01.720p.HDTV.x264-GRP"]
	require.Equal(t, "GRP", e.String(builtins.FieldReleaseGroup))
	require.Equal(t, "720p", e.String(builtins.FieldReleaseResolution))
}

func TestRejectRegexpMatchesOtherFields(t *testing.T) {
	tk, _ := runTask(t, map[string]any{
		"mock": map[string]any{
			"entries": []any{
				map[string]any{"title": "Show.S01E01", "fields": map[string]any{"uploader": "spammer"}},
				map[string]any{"title": "Show.S01E02", "fields": map[string]any{"uploader": "friend"}},
			},
		},
		"reject_regexp": map[string]any{"regexps": []string{"^spam"}, "fields": []string{"uploader"}},
	})
	entries := byTitle(tk)
	require.Equal(t, entry.Rejected, entries["Show.S01E01"].State())
	require.Equal(t, "uploader matched ^spam", entries["Show.S01E01"].Reason())
	require.Equal(t, entry.Undecided, entries["Show.S01E02"].State())
}

func TestDumpLogsSelectedStates(t *testing.T) {
	_, ring := runTask(t, map[string]any{
		"mock":          map[string]any{"titles": []string{"Keep.S01E01", "Drop.S01E01"}},
		"reject_regexp": map[string]any{"regexps": []string{"^drop"}},
		"dump":          map[string]any{"states": []string{"rejected"}},
	})
	var dumped []logging.LogEvent
	for _, evt := range ring.Tail(64) {
		if evt.Message == "entry" && evt.Plugin == builtins.NameDump {
			dumped = append(dumped, evt)
		}
	}
	require.Len(t, dumped, 1)
	require.Equal(t, "Drop.S01E01", dumped[0].Fields[logging.FieldTitle])
	require.Equal(t, "rejected", dumped[0].Fields["state"])
	require.Equal(t, builtins.NameRejectRegexp, dumped[0].Fields["decided_by"])
}

func TestSchemasRejectBadConfig(t *testing.T) {
	reg, err := builtins.NewRegistry()
	require.NoError(t, err)

	tests := []struct {
		name    string
		plugins map[string]any
	}{
		{"mock without entries", map[string]any{"mock": map[string]any{}}},
		{"mock entry without title", map[string]any{"mock": map[string]any{"entries": []any{map[string]any{"url": "x"}}}}},
		{"mock unknown key", map[string]any{"mock": map[string]any{"titles": []string{"a"}, "bogus": 1}}},
		{"bad pattern", map[string]any{"reject_regexp": map[string]any{"regexps": []string{"("}}}},
		{"empty patterns", map[string]any{"reject_regexp": map[string]any{}}},
		{"accept_all options", map[string]any{"accept_all": map[string]any{"x": 1}}},
		{"dump bad state", map[string]any{"dump": map[string]any{"states": []string{"lost"}}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := reg.Resolve("tv", tc.plugins)
			require.Error(t, err)
		})
	}
}

func TestRegistryWiresShippedComponents(t *testing.T) {
	reg, err := builtins.NewRegistry()
	require.NoError(t, err)
	require.Len(t, reg.ByInterface("backlog"), 1)
	for _, name := range []string{"series", "backlog", builtins.NameMock, builtins.NameQuality, builtins.NameDump} {
		_, ok := reg.Lookup(name)
		require.True(t, ok, name)
	}
	info, _ := reg.Lookup(builtins.NameQuality)
	require.True(t, info.Builtin)
	require.True(t, info.Implements(plugin.PhaseMetainfo))
}
