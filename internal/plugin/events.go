package plugin

import (
	"sync"
	"time"

	"curator/internal/entry"
)

// EventKind names a lifecycle notification published on the bus.
type EventKind string

const (
	EventTaskStarted  EventKind = "task_started"
	EventBeforePlugin EventKind = "before_plugin"
	EventAfterPlugin  EventKind = "after_plugin"
	EventTaskFinished EventKind = "task_finished"
)

// Event describes one notification. Plugin events carry the phase, plugin
// and, for after_plugin, the elapsed time and error. task_finished carries
// the outcome and the final entry counts.
type Event struct {
	Kind     EventKind
	Task     string
	RunID    string
	Pass     int
	Phase    Phase
	Plugin   string
	Duration time.Duration
	Err      error
	Outcome  string
	Counts   entry.Counts
	Reruns   int
}

// Bus fans events out to subscribers in subscription order.
type Bus struct {
	mu   sync.RWMutex
	next int
	subs []subscription
}

type subscription struct {
	id int
	fn func(Event)
}

// Subscribe registers fn and returns a function that removes it.
func (b *Bus) Subscribe(fn func(Event)) func() {
	if fn == nil {
		return func() {}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	id := b.next
	b.subs = append(b.subs, subscription{id: id, fn: fn})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers evt synchronously. A panicking subscriber is skipped so
// the remaining subscribers and the publisher are unaffected.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	subs := append([]subscription(nil), b.subs...)
	b.mu.RUnlock()
	for _, s := range subs {
		deliver(s.fn, evt)
	}
}

func deliver(fn func(Event), evt Event) {
	defer func() { _ = recover() }()
	fn(evt)
}
