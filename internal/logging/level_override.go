package logging

import (
	"context"
	"log/slog"

	"curator/internal/runctx"
)

// levelOverrideHandler enforces a per-logger minimum level while delegating
// output to the wrapped handler (which should be configured with the most
// verbose level needed globally).
type levelOverrideHandler struct {
	next  slog.Handler
	level slog.Level
}

func newLevelOverrideHandler(next slog.Handler, level slog.Level) slog.Handler {
	if next == nil {
		return NoopHandler{}
	}
	return &levelOverrideHandler{next: next, level: level}
}

func (h *levelOverrideHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level && h.next.Enabled(ctx, level)
}

func (h *levelOverrideHandler) Handle(ctx context.Context, record slog.Record) error {
	if record.Level < h.level {
		return nil
	}
	return h.next.Handle(ctx, record)
}

func (h *levelOverrideHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelOverrideHandler{next: h.next.WithAttrs(attrs), level: h.level}
}

func (h *levelOverrideHandler) WithGroup(name string) slog.Handler {
	return &levelOverrideHandler{next: h.next.WithGroup(name), level: h.level}
}

// WithLevelOverride returns a logger that enforces the provided minimum level
// while preserving existing attributes and handler wiring.
func WithLevelOverride(logger *slog.Logger, level slog.Level) *slog.Logger {
	if logger == nil {
		return slog.New(NoopHandler{})
	}
	return slog.New(newLevelOverrideHandler(logger.Handler(), level))
}

// pluginLevelHandler applies logging.plugin_overrides. The plugin is taken
// from a bound plugin attribute or, failing that, from the context.
type pluginLevelHandler struct {
	next      slog.Handler
	base      slog.Level
	overrides map[string]slog.Level
	plugin    string
}

func newPluginLevelHandler(next slog.Handler, base slog.Level, overrides map[string]slog.Level) slog.Handler {
	return &pluginLevelHandler{next: next, base: base, overrides: overrides}
}

func (h *pluginLevelHandler) threshold(ctx context.Context) slog.Level {
	plugin := h.plugin
	if plugin == "" && ctx != nil {
		plugin, _ = runctx.PluginFromContext(ctx)
	}
	if level, ok := h.overrides[plugin]; ok && plugin != "" {
		return level
	}
	return h.base
}

func (h *pluginLevelHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.threshold(ctx) && h.next.Enabled(ctx, level)
}

func (h *pluginLevelHandler) Handle(ctx context.Context, record slog.Record) error {
	if record.Level < h.threshold(ctx) {
		return nil
	}
	return h.next.Handle(ctx, record)
}

func (h *pluginLevelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.next = h.next.WithAttrs(attrs)
	for _, attr := range attrs {
		if attr.Key == FieldPlugin {
			clone.plugin = attr.Value.String()
		}
	}
	return &clone
}

func (h *pluginLevelHandler) WithGroup(name string) slog.Handler {
	clone := *h
	clone.next = h.next.WithGroup(name)
	return &clone
}

// ForPlugin returns a logger tagged with the plugin name. Any configured
// plugin level override applies to it.
func ForPlugin(logger *slog.Logger, plugin string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(String(FieldPlugin, plugin))
}
