package testsupport

import (
	"path/filepath"
	"testing"
	"time"

	"curator/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Logging.File = false
	cfgVal.Tasks = map[string]config.Task{}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithTask adds a task whose plugins section is the given map.
func WithTask(name string, priority int, plugins map[string]any) ConfigOption {
	return func(b *configBuilder) {
		if plugins == nil {
			plugins = map[string]any{}
		}
		b.cfg.Tasks[name] = config.Task{Priority: priority, Plugins: plugins}
	}
}

// WithMaxReruns sets the engine-wide rerun limit.
func WithMaxReruns(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Engine.MaxReruns = n
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}

// WithSchedule gives an existing task a schedule interval.
func WithSchedule(name string, every time.Duration) ConfigOption {
	return func(b *configBuilder) {
		task := b.cfg.Tasks[name]
		task.Schedule = every.String()
		task.ScheduleInterval = every
		b.cfg.Tasks[name] = task
	}
}
