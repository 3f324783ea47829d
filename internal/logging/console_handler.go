package logging

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiYellow = "\x1b[33m"
	ansiCyan   = "\x1b[36m"
	ansiGrey   = "\x1b[90m"
)

// Header keys are printed before the message instead of as fields.
var headerKeys = []string{FieldComponent, FieldTask, FieldPhase, FieldPlugin}

// consoleHandler prints one line per record:
//
//	2024-05-01 10:00:00.000 INFO [daemon] tv · filter · series - accepted title=... reason="best quality"
type consoleHandler struct {
	mu        *sync.Mutex
	w         io.Writer
	level     *slog.LevelVar
	attrs     []kv
	prefix    []string
	addSource bool
	colour    bool
}

func newConsoleHandler(w io.Writer, lvl *slog.LevelVar, addSource, colour bool) slog.Handler {
	return &consoleHandler{mu: &sync.Mutex{}, w: w, level: lvl, addSource: addSource, colour: colour}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	kvs := append([]kv(nil), h.attrs...)
	record.Attrs(func(attr slog.Attr) bool {
		kvs = appendAttr(kvs, h.prefix, attr)
		return true
	})
	kvs = lastWins(kvs)

	header := make(map[string]string, len(headerKeys))
	var sb strings.Builder
	for _, field := range kvs {
		if isHeaderKey(field.key) {
			header[field.key] = attrString(field.value)
			continue
		}
		sb.WriteByte(' ')
		sb.WriteString(field.key)
		sb.WriteByte('=')
		sb.WriteString(formatValue(field.value))
	}

	var line strings.Builder
	line.WriteString(formatTimestamp(ts))
	line.WriteByte(' ')
	line.WriteString(h.paint(record.Level))
	if c := header[FieldComponent]; c != "" {
		line.WriteString(" [" + c + "]")
	}
	if s := FormatSubject(header[FieldTask], header[FieldPhase], header[FieldPlugin]); s != "" {
		line.WriteString(" " + s)
	}
	msg := strings.TrimSpace(record.Message)
	if msg == "" {
		msg = "(no message)"
	}
	line.WriteString(" - " + msg)
	line.WriteString(sb.String())
	if h.addSource {
		if src := record.Source(); src != nil {
			line.WriteString(" [" + filepath.Base(src.File) + ":" + strconv.Itoa(src.Line) + "]")
		}
	}
	line.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, line.String())
	return err
}

func (h *consoleHandler) paint(level slog.Level) string {
	label := levelLabel(level)
	if !h.colour {
		return label
	}
	colour := ansiGrey
	switch {
	case level >= slog.LevelError:
		colour = ansiRed
	case level >= slog.LevelWarn:
		colour = ansiYellow
	case level >= slog.LevelInfo:
		colour = ansiCyan
	}
	return colour + label + ansiReset
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append([]kv(nil), h.attrs...)
	for _, attr := range attrs {
		clone.attrs = appendAttr(clone.attrs, h.prefix, attr)
	}
	return &clone
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = append(append([]string(nil), h.prefix...), name)
	return &clone
}

func isHeaderKey(key string) bool {
	for _, k := range headerKeys {
		if k == key {
			return true
		}
	}
	return false
}

// FormatSubject joins the task, phase and plugin into the console subject,
// e.g. "tv · filter · series".
func FormatSubject(task, phase, plugin string) string {
	parts := make([]string, 0, 3)
	for _, part := range []string{task, phase, plugin} {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, " · ")
}

type kv struct {
	key   string
	value slog.Value
}

// lastWins keeps the first position of every key with its last value.
func lastWins(kvs []kv) []kv {
	if len(kvs) < 2 {
		return kvs
	}
	index := make(map[string]int, len(kvs))
	out := kvs[:0]
	for _, field := range kvs {
		if i, ok := index[field.key]; ok {
			out[i].value = field.value
			continue
		}
		index[field.key] = len(out)
		out = append(out, field)
	}
	return out
}

// appendAttr flattens groups into dotted keys.
func appendAttr(dst []kv, prefix []string, attr slog.Attr) []kv {
	if attr.Equal(slog.Attr{}) {
		return dst
	}
	value := attr.Value.Resolve()
	if value.Kind() == slog.KindGroup {
		next := prefix
		if attr.Key != "" {
			next = append(append([]string(nil), prefix...), attr.Key)
		}
		for _, member := range value.Group() {
			dst = appendAttr(dst, next, member)
		}
		return dst
	}
	if attr.Key == "" {
		return dst
	}
	key := attr.Key
	if len(prefix) > 0 {
		key = strings.Join(prefix, ".") + "." + key
	}
	return append(dst, kv{key: key, value: value})
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}
