package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateEngine(); err != nil {
		return err
	}
	if err := c.validateTasks(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	return nil
}

func (c *Config) validateLogging() error {
	if _, err := parseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	for plugin, level := range c.Logging.PluginOverrides {
		if plugin == "" {
			return errors.New("logging.plugin_overrides: empty plugin name")
		}
		if _, err := parseLevel(level); err != nil {
			return fmt.Errorf("logging.plugin_overrides.%s: %w", plugin, err)
		}
	}
	return nil
}

func parseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return 0, fmt.Errorf("unsupported level %q", level)
	}
	return l, nil
}

func (c *Config) validateEngine() error {
	if c.Engine.MaxReruns > c.Engine.RerunCeiling {
		return fmt.Errorf("engine.max_reruns (%d) exceeds engine.rerun_ceiling (%d)", c.Engine.MaxReruns, c.Engine.RerunCeiling)
	}
	return nil
}

func (c *Config) validateTasks() error {
	for _, name := range c.TaskNames() {
		task := c.Tasks[name]
		if name == "" {
			return errors.New("tasks: task name must not be empty")
		}
		if task.MaxReruns != nil && *task.MaxReruns < 0 {
			return fmt.Errorf("tasks.%s.max_reruns must be >= 0", name)
		}
		if task.MaxReruns != nil && *task.MaxReruns > c.Engine.RerunCeiling {
			return fmt.Errorf("tasks.%s.max_reruns (%d) exceeds engine.rerun_ceiling (%d)", name, *task.MaxReruns, c.Engine.RerunCeiling)
		}
		if task.Schedule != "" && task.ScheduleInterval < time.Minute {
			return fmt.Errorf("tasks.%s.schedule must be at least 1m", name)
		}
		if len(task.Plugins) == 0 {
			return fmt.Errorf("tasks.%s.plugins must configure at least one plugin", name)
		}
	}
	return nil
}
