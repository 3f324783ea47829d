// Package entry models the candidate items flowing through a task.
//
// An Entry carries two immutable identity fields (title and url), an
// insertion-ordered set of additional fields, and a lifecycle state. State
// transitions are monotonic: an undecided entry may become accepted,
// rejected, or failed, and once it reaches one of those terminal states it
// stays there for the rest of the run. Hooks registered against a
// transition fire exactly once, in registration order, at the moment the
// transition happens.
package entry

import (
	"fmt"
	"maps"
	"slices"
	"sync"
)

// State is the lifecycle state of an entry within one run.
type State int

const (
	Undecided State = iota
	Accepted
	Rejected
	Failed
)

func (s State) String() string {
	switch s {
	case Undecided:
		return "undecided"
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool { return s != Undecided }

// Reserved field names backed by the identity accessors.
const (
	FieldTitle = "title"
	FieldURL   = "url"
)

// Resolver computes a lazy field value on first read.
type Resolver func(e *Entry) (any, error)

type field struct {
	value    any
	resolver Resolver
	resolved bool
	err      error
}

// Entry is one candidate item. It is not safe for concurrent mutation; all
// phase execution for a task happens on a single goroutine.
type Entry struct {
	title string
	url   string
	task  string

	keys   []string
	fields map[string]*field

	state     State
	reason    string
	decidedBy string
	meta      map[string]any

	hooks     map[Event][]Hook
	fired     map[Event]bool
	resolving map[string]bool

	mu sync.Mutex
}

// New constructs an undecided entry.
func New(title, url string) *Entry {
	return &Entry{
		title:  title,
		url:    url,
		fields: make(map[string]*field),
		hooks:  make(map[Event][]Hook),
		fired:  make(map[Event]bool),
	}
}

// Title returns the immutable title.
func (e *Entry) Title() string { return e.title }

// URL returns the immutable url.
func (e *Entry) URL() string { return e.url }

// Task returns the name of the task that owns the entry, if attached.
func (e *Entry) Task() string { return e.task }

// Attach records the owning task name. Entries never hold a live task handle.
func (e *Entry) Attach(task string) { e.task = task }

// State returns the current lifecycle state.
func (e *Entry) State() State { return e.state }

// Reason returns the reason given for the last transition.
func (e *Entry) Reason() string { return e.reason }

// DecidedBy returns the component that performed the last transition.
func (e *Entry) DecidedBy() string { return e.decidedBy }

// Accepted reports whether the entry is accepted.
func (e *Entry) Accepted() bool { return e.state == Accepted }

// Rejected reports whether the entry is rejected.
func (e *Entry) Rejected() bool { return e.state == Rejected }

// Failed reports whether the entry failed.
func (e *Entry) Failed() bool { return e.state == Failed }

// Undecided reports whether no decision has been taken yet.
func (e *Entry) Undecided() bool { return e.state == Undecided }

// Set stores a resolved field value. The identity fields cannot be set.
func (e *Entry) Set(key string, value any) error {
	if key == FieldTitle || key == FieldURL {
		return fmt.Errorf("entry field %q is immutable", key)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.put(key, &field{value: value, resolved: true})
	return nil
}

// SetLazy registers a resolver evaluated on the first read of key.
func (e *Entry) SetLazy(key string, resolver Resolver) error {
	if key == FieldTitle || key == FieldURL {
		return fmt.Errorf("entry field %q is immutable", key)
	}
	if resolver == nil {
		return fmt.Errorf("entry field %q: nil resolver", key)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.put(key, &field{resolver: resolver})
	return nil
}

func (e *Entry) put(key string, f *field) {
	if _, exists := e.fields[key]; !exists {
		e.keys = append(e.keys, key)
	}
	e.fields[key] = f
}

// Get returns a field value, resolving lazy fields on first access. A field
// whose resolver failed or is currently being resolved reads as absent.
func (e *Entry) Get(key string) (any, bool) {
	switch key {
	case FieldTitle:
		return e.title, true
	case FieldURL:
		return e.url, true
	}
	e.mu.Lock()
	f, ok := e.fields[key]
	if !ok {
		e.mu.Unlock()
		return nil, false
	}
	if f.resolved {
		e.mu.Unlock()
		return f.value, f.err == nil
	}
	if e.resolving == nil {
		e.resolving = make(map[string]bool)
	}
	if e.resolving[key] {
		e.mu.Unlock()
		return nil, false
	}
	e.resolving[key] = true
	resolver := f.resolver
	e.mu.Unlock()

	value, err := resolver(e)

	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.resolving, key)
	if current, ok := e.fields[key]; ok && current == f {
		f.value, f.err, f.resolved, f.resolver = value, err, true, nil
	}
	if err != nil {
		return nil, false
	}
	return value, true
}

// Has reports whether a field is present (resolved or lazy).
func (e *Entry) Has(key string) bool {
	if key == FieldTitle || key == FieldURL {
		return true
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.fields[key]
	return ok
}

// IsResolved reports whether a field holds a value without further work.
func (e *Entry) IsResolved(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	f, ok := e.fields[key]
	return ok && f.resolved
}

// Delete removes a field.
func (e *Entry) Delete(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.fields[key]; !ok {
		return
	}
	delete(e.fields, key)
	e.keys = slices.DeleteFunc(e.keys, func(k string) bool { return k == key })
}

// Keys returns field names in insertion order, identity fields first.
func (e *Entry) Keys() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.keys)+2)
	out = append(out, FieldTitle, FieldURL)
	return append(out, e.keys...)
}

// String returns a string field or "".
func (e *Entry) String(key string) string {
	v, ok := e.Get(key)
	if !ok {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// Int returns an integer field or 0.
func (e *Entry) Int(key string) int {
	v, ok := e.Get(key)
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

// Bool returns a boolean field or false.
func (e *Entry) Bool(key string) bool {
	v, ok := e.Get(key)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Snapshot resolves every field and returns a copy keyed by name. Fields
// whose resolvers fail are omitted.
func (e *Entry) Snapshot() map[string]any {
	out := map[string]any{FieldTitle: e.title, FieldURL: e.url}
	for _, key := range e.Keys()[2:] {
		if v, ok := e.Get(key); ok {
			out[key] = v
		}
	}
	return out
}

// Clone copies identity and resolved fields into a fresh undecided entry.
// Hooks and decisions are not copied.
func (e *Entry) Clone() *Entry {
	c := New(e.title, e.url)
	c.task = e.task
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, key := range e.keys {
		f := e.fields[key]
		cp := *f
		c.put(key, &cp)
	}
	return c
}

// Meta returns the metadata attached by the last transition.
func (e *Entry) Meta() map[string]any {
	return maps.Clone(e.meta)
}
