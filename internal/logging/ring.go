package logging

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// LogEvent is one captured log line.
type LogEvent struct {
	Sequence  uint64            `json:"seq"`
	Timestamp time.Time         `json:"ts"`
	Level     string            `json:"level"`
	Message   string            `json:"msg"`
	Task      string            `json:"task,omitempty"`
	Phase     string            `json:"phase,omitempty"`
	Plugin    string            `json:"plugin,omitempty"`
	RunID     string            `json:"run_id,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// Ring keeps the most recent log events in memory so a crash report can
// show what led up to it.
type Ring struct {
	mu       sync.Mutex
	capacity int
	buffer   []LogEvent
	next     int
	full     bool
	seq      uint64
}

// NewRing constructs a bounded ring of log events.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 256
	}
	return &Ring{capacity: capacity, buffer: make([]LogEvent, capacity)}
}

// Publish appends an event, evicting the oldest once full.
func (r *Ring) Publish(evt LogEvent) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	evt.Sequence = r.seq
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	r.buffer[r.next] = evt
	r.next = (r.next + 1) % r.capacity
	if r.next == 0 {
		r.full = true
	}
}

// Tail returns up to limit of the most recent events, oldest first. A
// non-positive limit returns everything retained.
func (r *Ring) Tail(limit int) []LogEvent {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	size := r.next
	if r.full {
		size = r.capacity
	}
	if limit <= 0 || limit > size {
		limit = size
	}
	out := make([]LogEvent, 0, limit)
	start := (r.next - limit + r.capacity) % r.capacity
	for i := range limit {
		out = append(out, r.buffer[(start+i)%r.capacity])
	}
	return out
}

// Handler returns a slog handler that publishes every record into the ring.
func (r *Ring) Handler() slog.Handler {
	return &ringHandler{ring: r}
}

// ringHandler keeps attrs flattened with the group prefix that was open
// when they were attached.
type ringHandler struct {
	ring   *Ring
	attrs  []kv
	groups []string
}

func (h *ringHandler) Enabled(context.Context, slog.Level) bool { return h.ring != nil }

func (h *ringHandler) Handle(ctx context.Context, record slog.Record) error {
	kvs := make([]kv, 0, record.NumAttrs()+len(h.attrs)+5)
	for _, attr := range ContextFields(ctx) {
		kvs = appendAttr(kvs, nil, attr)
	}
	kvs = append(kvs, h.attrs...)
	record.Attrs(func(attr slog.Attr) bool {
		kvs = appendAttr(kvs, h.groups, attr)
		return true
	})
	kvs = lastWins(kvs)

	evt := LogEvent{
		Timestamp: record.Time,
		Level:     strings.ToLower(record.Level.String()),
		Message:   record.Message,
	}
	for _, kv := range kvs {
		value := attrString(kv.value)
		switch kv.key {
		case FieldTask:
			evt.Task = value
		case FieldPhase:
			evt.Phase = value
		case FieldPlugin:
			evt.Plugin = value
		case FieldRunID:
			evt.RunID = value
		default:
			if evt.Fields == nil {
				evt.Fields = make(map[string]string, len(kvs))
			}
			evt.Fields[kv.key] = value
		}
	}
	h.ring.Publish(evt)
	return nil
}

func (h *ringHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := &ringHandler{ring: h.ring, attrs: append([]kv(nil), h.attrs...), groups: h.groups}
	for _, attr := range attrs {
		clone.attrs = appendAttr(clone.attrs, h.groups, attr)
	}
	return clone
}

func (h *ringHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &ringHandler{
		ring:   h.ring,
		attrs:  h.attrs,
		groups: append(append([]string(nil), h.groups...), name),
	}
}
