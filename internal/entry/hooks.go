package entry

import (
	"fmt"
	"maps"
)

// Event names a lifecycle transition hooks can subscribe to.
type Event string

const (
	OnAccept   Event = "on_accept"
	OnReject   Event = "on_reject"
	OnFail     Event = "on_fail"
	OnComplete Event = "on_complete"
)

// Hook observes a transition. reason is the reason passed to the transition
// (empty for on_complete) and meta carries transition metadata.
type Hook func(e *Entry, reason string, meta map[string]any)

// On registers a hook. Hooks for the same event run in registration order.
func (e *Entry) On(event Event, hook Hook) {
	if hook == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hooks[event] = append(e.hooks[event], hook)
}

// Option adjusts a transition.
type Option func(*transition)

type transition struct {
	by   string
	meta map[string]any
}

// By records the component responsible for a transition.
func By(component string) Option {
	return func(t *transition) { t.by = component }
}

// WithMeta attaches a metadata key to a transition.
func WithMeta(key string, value any) Option {
	return func(t *transition) {
		if t.meta == nil {
			t.meta = make(map[string]any)
		}
		t.meta[key] = value
	}
}

// TransitionError reports an attempted transition out of a terminal state.
type TransitionError struct {
	Title string
	From  State
	To    State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("entry %q: cannot transition from %s to %s", e.Title, e.From, e.To)
}

// Accept marks the entry accepted. Accepting an already accepted entry is a
// no-op; accepting a rejected or failed entry returns a *TransitionError.
func (e *Entry) Accept(reason string, opts ...Option) error {
	return e.transition(Accepted, OnAccept, reason, opts)
}

// Reject marks the entry rejected. Rejecting an already rejected entry is a
// no-op; any other terminal state returns a *TransitionError.
func (e *Entry) Reject(reason string, opts ...Option) error {
	return e.transition(Rejected, OnReject, reason, opts)
}

// Fail marks the entry failed. Failing an already failed entry is a no-op.
func (e *Entry) Fail(reason string, opts ...Option) error {
	return e.transition(Failed, OnFail, reason, opts)
}

func (e *Entry) transition(to State, event Event, reason string, opts []Option) error {
	var t transition
	for _, opt := range opts {
		opt(&t)
	}

	e.mu.Lock()
	if e.state == to {
		e.mu.Unlock()
		return nil
	}
	if e.state.Terminal() {
		from := e.state
		e.mu.Unlock()
		return &TransitionError{Title: e.title, From: from, To: to}
	}
	e.state = to
	e.reason = reason
	e.decidedBy = t.by
	e.meta = t.meta
	e.mu.Unlock()

	e.fire(event, reason, t.meta)
	return nil
}

// Complete fires on_complete hooks. It runs at most once per entry.
func (e *Entry) Complete() {
	e.fire(OnComplete, "", nil)
}

func (e *Entry) fire(event Event, reason string, meta map[string]any) {
	e.mu.Lock()
	if e.fired[event] {
		e.mu.Unlock()
		return
	}
	e.fired[event] = true
	hooks := append([]Hook(nil), e.hooks[event]...)
	e.mu.Unlock()

	for _, hook := range hooks {
		hook(e, reason, maps.Clone(meta))
	}
}
