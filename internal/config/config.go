package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"curator/internal/quality"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format          string            `toml:"format"`
	Level           string            `toml:"level"`
	File            bool              `toml:"file"`
	FileMaxMB       int               `toml:"file_max_mb"`
	FileMaxBackups  int               `toml:"file_max_backups"`
	FileMaxAgeDays  int               `toml:"file_max_age_days"`
	PluginOverrides map[string]string `toml:"plugin_overrides"`
}

// Engine contains task execution limits.
type Engine struct {
	MaxReruns    int `toml:"max_reruns"`
	RerunCeiling int `toml:"rerun_ceiling"`
}

// Daemon contains settings for the long-running scheduler.
type Daemon struct {
	MetricsBind string `toml:"metrics_bind"`
	WatchConfig bool   `toml:"watch_config"`
}

// Quality contains rank table overrides keyed by component name.
type Quality struct {
	Ranks map[string][]string `toml:"ranks"`
}

// Backlog contains settings for the builtin backlog plugin.
type Backlog struct {
	Grace string `toml:"grace"`

	GraceDuration time.Duration `toml:"-"`
}

// Task is one named task configuration. Plugins maps plugin names to their
// raw configuration subtree.
type Task struct {
	Priority  int            `toml:"priority"`
	MaxReruns *int           `toml:"max_reruns"`
	Schedule  string         `toml:"schedule"`
	Disabled  bool           `toml:"disabled"`
	Plugins   map[string]any `toml:"plugins"`

	ScheduleInterval time.Duration `toml:"-"`
}

// Config encapsulates all configuration values for curator.
//
// Configuration sections by subsystem:
//   - Paths: data (history database, lock) and log directories
//   - Logging: log format, level, rotation and per-plugin levels
//   - Engine: rerun limits
//   - Daemon: metrics endpoint and config watching
//   - Quality: rank table overrides
//   - Backlog: grace added to every backlog hold
//   - Tasks: named tasks and their plugin configuration
type Config struct {
	Paths   Paths           `toml:"paths"`
	Logging Logging         `toml:"logging"`
	Engine  Engine          `toml:"engine"`
	Daemon  Daemon          `toml:"daemon"`
	Quality Quality         `toml:"quality"`
	Backlog Backlog         `toml:"backlog"`
	Tasks   map[string]Task `toml:"tasks"`

	tables *quality.Tables
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/curator/config.toml")
}

// Load reads the configuration at path, or at the first existing default
// location when path is empty. A missing file yields the defaults. It
// returns the config, the resolved path and whether that file existed.
func Load(path string) (*Config, string, bool, error) {
	resolved, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}
	var data []byte
	if exists {
		if data, err = os.ReadFile(resolved); err != nil {
			return nil, "", false, fmt.Errorf("read config: %w", err)
		}
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, "", false, fmt.Errorf("%s: %w", resolved, err)
	}
	return cfg, resolved, exists, nil
}

// Parse decodes, normalizes and validates configuration text on top of the
// defaults. The daemon uses it directly when reloading.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// resolveConfigPath picks the explicit path, else the user config, else
// ./curator.toml. When nothing exists the user config path is reported.
func resolveConfigPath(path string) (string, bool, error) {
	var candidates []string
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		candidates = []string{expanded}
	} else {
		user, err := DefaultConfigPath()
		if err != nil {
			return "", false, err
		}
		local, err := filepath.Abs("curator.toml")
		if err != nil {
			return "", false, err
		}
		candidates = []string{user, local}
	}
	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		switch {
		case err == nil && !info.IsDir():
			return candidate, true, nil
		case err != nil && !errors.Is(err, fs.ErrNotExist):
			return "", false, fmt.Errorf("stat config: %w", err)
		}
	}
	return candidates[0], false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the location of the history database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "history.db")
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "curator.lock")
}

// LogPath returns the rotating log file location.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.LogDir, "curator.log")
}

// QualityTables returns the rank tables with configured overrides applied.
func (c *Config) QualityTables() *quality.Tables {
	if c.tables == nil {
		return quality.Default()
	}
	return c.tables
}

// TaskNames returns configured task names in sorted order.
func (c *Config) TaskNames() []string {
	names := make([]string, 0, len(c.Tasks))
	for name := range c.Tasks {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Task returns a task configuration by name.
func (c *Config) Task(name string) (Task, bool) {
	t, ok := c.Tasks[name]
	return t, ok
}

// MaxReruns returns the effective rerun limit for a task, capped by the
// global ceiling.
func (c *Config) MaxReruns(task string) int {
	limit := c.Engine.MaxReruns
	if t, ok := c.Tasks[task]; ok && t.MaxReruns != nil {
		limit = *t.MaxReruns
	}
	return min(max(limit, 0), c.Engine.RerunCeiling)
}

// expandPath resolves a leading ~ and makes the path absolute.
func expandPath(p string) (string, error) {
	if p == "" {
		return "", nil
	}
	if p == "~" || strings.HasPrefix(p, "~/") || strings.HasPrefix(p, `~\`) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("home directory: %w", err)
		}
		p = filepath.Join(home, p[1:])
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("absolute path for %q: %w", p, err)
	}
	return abs, nil
}

// ExpandPath applies the same ~ and absolute path rules as the config
// loader.
func ExpandPath(p string) (string, error) {
	return expandPath(p)
}

// SampleConfig returns the embedded sample configuration.
func SampleConfig() string { return sampleConfig }

// CreateSample writes the embedded sample to path, creating parent
// directories.
func CreateSample(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, []byte(sampleConfig), 0o644)
}
