package config

import (
	"fmt"
	"os"
	"strings"

	"curator/internal/quality"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLogging()
	c.normalizeEngine()
	c.Daemon.MetricsBind = strings.TrimSpace(c.Daemon.MetricsBind)
	if err := c.normalizeQuality(); err != nil {
		return err
	}
	if err := c.normalizeBacklog(); err != nil {
		return err
	}
	return c.normalizeTasks()
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv("CURATOR_DATA_DIR"); ok && strings.TrimSpace(value) != "" {
		c.Paths.DataDir = strings.TrimSpace(value)
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.FileMaxMB <= 0 {
		c.Logging.FileMaxMB = defaultLogFileMaxMB
	}
	if c.Logging.FileMaxBackups < 0 {
		c.Logging.FileMaxBackups = 0
	}
	if c.Logging.FileMaxAgeDays < 0 {
		c.Logging.FileMaxAgeDays = 0
	}
	if len(c.Logging.PluginOverrides) > 0 {
		overrides := make(map[string]string, len(c.Logging.PluginOverrides))
		for plugin, level := range c.Logging.PluginOverrides {
			overrides[strings.TrimSpace(plugin)] = strings.ToLower(strings.TrimSpace(level))
		}
		c.Logging.PluginOverrides = overrides
	}
}

func (c *Config) normalizeEngine() {
	if c.Engine.RerunCeiling <= 0 || c.Engine.RerunCeiling > HardRerunCeiling {
		c.Engine.RerunCeiling = HardRerunCeiling
	}
	if c.Engine.MaxReruns < 0 {
		c.Engine.MaxReruns = 0
	}
}

func (c *Config) normalizeQuality() error {
	if len(c.Quality.Ranks) == 0 {
		c.tables = quality.Default()
		return nil
	}
	order := make(map[quality.Component][]string, len(c.Quality.Ranks))
	for name, ranks := range c.Quality.Ranks {
		component, ok := quality.ParseComponent(name)
		if !ok {
			return fmt.Errorf("quality.ranks: unknown component %q", name)
		}
		order[component] = ranks
	}
	tables, err := quality.NewTables(order)
	if err != nil {
		return fmt.Errorf("quality.ranks: %w", err)
	}
	c.tables = tables
	return nil
}

func (c *Config) normalizeBacklog() error {
	c.Backlog.Grace = strings.TrimSpace(c.Backlog.Grace)
	if c.Backlog.Grace == "" {
		c.Backlog.Grace = defaultBacklogGrace
	}
	grace, err := ParseDuration(c.Backlog.Grace)
	if err != nil {
		return fmt.Errorf("backlog.grace: %w", err)
	}
	c.Backlog.GraceDuration = grace
	return nil
}

func (c *Config) normalizeTasks() error {
	if len(c.Tasks) == 0 {
		return nil
	}
	normalized := make(map[string]Task, len(c.Tasks))
	for name, task := range c.Tasks {
		name = strings.TrimSpace(name)
		task.Schedule = strings.TrimSpace(task.Schedule)
		if task.Schedule != "" {
			interval, err := ParseDuration(task.Schedule)
			if err != nil {
				return fmt.Errorf("tasks.%s.schedule: %w", name, err)
			}
			task.ScheduleInterval = interval
		}
		if task.Plugins == nil {
			task.Plugins = map[string]any{}
		}
		normalized[name] = task
	}
	c.Tasks = normalized
	return nil
}
