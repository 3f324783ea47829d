package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"gopkg.in/natefinch/lumberjack.v2"

	"curator/internal/config"
)

// Options describes logger construction parameters.
type Options struct {
	Level       string
	Format      string
	OutputPaths []string
	Development bool

	// Rotation applies to every file output path. Zero values fall back to
	// lumberjack defaults.
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int

	// PluginLevels lowers or raises the minimum level for loggers created by
	// ForPlugin.
	PluginLevels map[string]string

	// Ring receives a copy of every record regardless of level.
	Ring *Ring
}

// New constructs a slog logger using the provided options.
func New(opts Options) (*slog.Logger, error) {
	level := parseLevel(opts.Level)
	levelVar := new(slog.LevelVar)
	levelVar.Set(minLevel(level, opts.PluginLevels))

	outputs := opts.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}
	writer, colour, err := openWriters(outputs, opts)
	if err != nil {
		return nil, err
	}

	addSource := opts.Development || level <= slog.LevelDebug

	var handler slog.Handler
	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "json":
		handler = newJSONHandler(writer, levelVar, addSource)
	case "console", "":
		handler = newConsoleHandler(writer, levelVar, addSource, colour)
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	handler = newPluginLevelHandler(handler, level, parsePluginLevels(opts.PluginLevels))
	if opts.Ring != nil {
		handler = TeeHandler(handler, opts.Ring.Handler())
	}
	return slog.New(handler), nil
}

// NewFromConfig creates a logger from the logging section: console or JSON on
// stdout plus, when enabled, a rotating file under the log directory.
func NewFromConfig(cfg *config.Config, ring *Ring) (*slog.Logger, error) {
	if cfg == nil {
		return New(Options{Level: "info", Format: "console", Ring: ring})
	}

	outputs := []string{"stdout"}
	if cfg.Logging.File && cfg.Paths.LogDir != "" {
		if err := os.MkdirAll(cfg.Paths.LogDir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure log directory: %w", err)
		}
		outputs = append(outputs, cfg.LogPath())
	}

	return New(Options{
		Level:        cfg.Logging.Level,
		Format:       cfg.Logging.Format,
		OutputPaths:  outputs,
		MaxSizeMB:    cfg.Logging.FileMaxMB,
		MaxBackups:   cfg.Logging.FileMaxBackups,
		MaxAgeDays:   cfg.Logging.FileMaxAgeDays,
		PluginLevels: cfg.Logging.PluginOverrides,
		Ring:         ring,
	})
}

// ParseLevel converts a textual level into a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	return parseLevel(level)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func parsePluginLevels(raw map[string]string) map[string]slog.Level {
	if len(raw) == 0 {
		return nil
	}
	out := make(map[string]slog.Level, len(raw))
	for plugin, level := range raw {
		out[plugin] = parseLevel(level)
	}
	return out
}

// The shared handler must accept the most verbose level any plugin asks
// for; pluginLevelHandler then filters per record.
func minLevel(base slog.Level, overrides map[string]string) slog.Level {
	lowest := base
	for _, level := range overrides {
		lowest = min(lowest, parseLevel(level))
	}
	return lowest
}

// openWriters resolves output paths. It reports whether colour output is
// appropriate, which is only the case when the sole output is a terminal.
func openWriters(paths []string, opts Options) (io.Writer, bool, error) {
	seen := map[string]struct{}{}
	var writers []io.Writer
	colour := false

	for _, path := range paths {
		trimmed := strings.TrimSpace(path)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}

		switch trimmed {
		case "stdout":
			writers = append(writers, os.Stdout)
			colour = isTerminal(os.Stdout)
		case "stderr":
			writers = append(writers, os.Stderr)
			colour = isTerminal(os.Stderr)
		default:
			if err := ensureLogDir(trimmed); err != nil {
				return nil, false, err
			}
			writers = append(writers, &lumberjack.Logger{
				Filename:   trimmed,
				MaxSize:    opts.MaxSizeMB,
				MaxBackups: opts.MaxBackups,
				MaxAge:     opts.MaxAgeDays,
				Compress:   true,
			})
		}
	}

	switch len(writers) {
	case 0:
		return os.Stdout, isTerminal(os.Stdout), nil
	case 1:
		return writers[0], colour, nil
	default:
		return io.MultiWriter(writers...), false, nil
	}
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func ensureLogDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure log directory %s: %w", dir, err)
	}
	return nil
}
