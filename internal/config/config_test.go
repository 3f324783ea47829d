package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"curator/internal/config"
	"curator/internal/quality"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "curator")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.DatabasePath() != filepath.Join(wantData, "history.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
	if cfg.Engine.MaxReruns != 5 || cfg.Engine.RerunCeiling != config.HardRerunCeiling {
		t.Fatalf("unexpected engine defaults: %+v", cfg.Engine)
	}
	if cfg.Backlog.GraceDuration != 24*time.Hour {
		t.Fatalf("unexpected backlog grace: %v", cfg.Backlog.GraceDuration)
	}
	if cfg.QualityTables() != quality.Default() {
		t.Fatal("expected default quality tables without overrides")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
	}
}

func TestDataDirEnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CURATOR_DATA_DIR", dir)
	cfg, err := config.Parse([]byte(""))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Paths.DataDir != dir {
		t.Fatalf("expected data dir from env, got %q", cfg.Paths.DataDir)
	}
}

func TestParseTasks(t *testing.T) {
	t.Setenv("CURATOR_DATA_DIR", t.TempDir())
	cfg, err := config.Parse([]byte(`
[engine]
max_reruns = 4

[tasks.tv]
priority = 3
max_reruns = 2
schedule = "2 hours"
[tasks.tv.plugins.series]
quality = "720p"
[[tasks.tv.plugins.series.shows]]
name = "Show"

[tasks.movies]
[tasks.movies.plugins.accept_all]
`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got := cfg.TaskNames(); len(got) != 2 || got[0] != "movies" || got[1] != "tv" {
		t.Fatalf("unexpected task names: %v", got)
	}
	tv, ok := cfg.Task("tv")
	if !ok {
		t.Fatal("expected tv task")
	}
	if tv.Priority != 3 || tv.ScheduleInterval != 2*time.Hour {
		t.Fatalf("unexpected tv task: %+v", tv)
	}
	if cfg.MaxReruns("tv") != 2 || cfg.MaxReruns("movies") != 4 {
		t.Fatalf("unexpected max reruns: tv=%d movies=%d", cfg.MaxReruns("tv"), cfg.MaxReruns("movies"))
	}
	if _, ok := tv.Plugins["series"].(map[string]any); !ok {
		t.Fatalf("expected series subtree, got %T", tv.Plugins["series"])
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Setenv("CURATOR_DATA_DIR", t.TempDir())
	cases := map[string]string{
		"rerun ceiling":  "[engine]\nmax_reruns = 150\n",
		"task reruns":    "[tasks.a]\nmax_reruns = -1\n[tasks.a.plugins.x]\n",
		"no plugins":     "[tasks.a]\npriority = 1\n",
		"short schedule": "[tasks.a]\nschedule = \"10s\"\n[tasks.a.plugins.x]\n",
		"bad schedule":   "[tasks.a]\nschedule = \"soon\"\n[tasks.a.plugins.x]\n",
		"log level":      "[logging]\nlevel = \"chatty\"\n",
		"rank override":  "[quality.ranks]\ncodec = [\"h264\"]\n",
		"rank component": "[quality.ranks]\ncolour = [\"red\"]\n",
		"backlog grace":  "[backlog]\ngrace = \"forever\"\n",
	}
	for name, text := range cases {
		if _, err := config.Parse([]byte(text)); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestQualityRankOverride(t *testing.T) {
	t.Setenv("CURATOR_DATA_DIR", t.TempDir())
	cfg, err := config.Parse([]byte(`
[quality.ranks]
codec = ["divx", "xvid", "h264", "av1", "h265"]
`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	tables := cfg.QualityTables()
	if !tables.Parse("av1").Less(tables.Parse("x265")) {
		t.Fatal("expected av1 to rank below h265 after override")
	}
}

func TestParseDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"90m":     90 * time.Minute,
		"2d":      48 * time.Hour,
		"1w12h":   7*24*time.Hour + 12*time.Hour,
		"3 days":  72 * time.Hour,
		"1 week":  7 * 24 * time.Hour,
		"5 hours": 5 * time.Hour,
	}
	for text, want := range cases {
		got, err := config.ParseDuration(text)
		if err != nil {
			t.Fatalf("ParseDuration(%q) error: %v", text, err)
		}
		if got != want {
			t.Fatalf("ParseDuration(%q) = %v, want %v", text, got, want)
		}
	}
	for _, text := range []string{"", "soon", "-1h", "0d"} {
		if _, err := config.ParseDuration(text); err == nil {
			t.Fatalf("ParseDuration(%q) expected error", text)
		}
	}
}

type sectionSample struct {
	Quality string   `toml:"quality"`
	Shows   []string `toml:"shows"`
	Limit   int      `toml:"limit"`
}

func TestDecodeSection(t *testing.T) {
	raw := map[string]any{"quality": "720p", "shows": []any{"a", "b"}, "limit": int64(3)}
	got, err := config.DecodeSection[sectionSample](raw)
	if err != nil {
		t.Fatalf("DecodeSection failed: %v", err)
	}
	if got.Quality != "720p" || len(got.Shows) != 2 || got.Limit != 3 {
		t.Fatalf("unexpected decoded section: %+v", got)
	}

	if _, err := config.DecodeSection[sectionSample](map[string]any{"qualty": "720p"}); err == nil {
		t.Fatal("expected unknown key to be rejected")
	} else if !strings.Contains(err.Error(), "decode section") {
		t.Fatalf("unexpected error: %v", err)
	}

	zero, err := config.DecodeSection[sectionSample](nil)
	if err != nil || zero.Quality != "" {
		t.Fatalf("expected zero value for nil subtree, got %+v, %v", zero, err)
	}
}

func TestCloneSectionIsDeep(t *testing.T) {
	raw := map[string]any{"shows": []any{map[string]any{"name": "a"}}}
	cp := config.CloneSection(raw).(map[string]any)
	cp["shows"].([]any)[0].(map[string]any)["name"] = "b"
	if raw["shows"].([]any)[0].(map[string]any)["name"] != "a" {
		t.Fatal("clone mutation leaked into original")
	}
}

func TestCreateSampleParses(t *testing.T) {
	t.Setenv("CURATOR_DATA_DIR", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config does not load: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if _, ok := cfg.Task("tv"); !ok {
		t.Fatal("expected sample tv task")
	}
}
