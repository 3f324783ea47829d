package plugin

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
)

// Info is the registration record of one component.
type Info struct {
	Name       string
	Component  any
	Builtin    bool
	Interfaces []string
	Requires   []string

	phases     []Phase
	priorities map[Phase]int
	schema     func(raw any) error
	seq        int
}

// Phases returns the phases the component implements, in pipeline order.
func (i *Info) Phases() []Phase { return append([]Phase(nil), i.phases...) }

// Implements reports whether the component participates in phase.
func (i *Info) Implements(phase Phase) bool { return slices.Contains(i.phases, phase) }

// Priority returns the component's priority for phase.
func (i *Info) Priority(phase Phase) int {
	if p, ok := i.priorities[phase]; ok {
		return p
	}
	return DefaultPriority
}

// HasInterface reports whether the component declared the interface tag.
func (i *Info) HasInterface(tag string) bool { return slices.Contains(i.Interfaces, tag) }

// Validate runs the component's schema validator against a raw subtree.
func (i *Info) Validate(raw any) error {
	if i.schema == nil {
		return nil
	}
	return i.schema(raw)
}

// Option adjusts a registration.
type Option func(*Info)

// Builtin makes the component run in every task unless the task disables it.
func Builtin() Option {
	return func(i *Info) { i.Builtin = true }
}

// Priority sets the priority for one phase. Higher runs first.
func Priority(phase Phase, priority int) Option {
	return func(i *Info) {
		if i.priorities == nil {
			i.priorities = make(map[Phase]int)
		}
		i.priorities[phase] = priority
	}
}

// Interfaces declares the interface tags the component provides.
func Interfaces(tags ...string) Option {
	return func(i *Info) { i.Interfaces = append(i.Interfaces, tags...) }
}

// Requires names plugins or interface tags that must be active alongside
// the component.
func Requires(names ...string) Option {
	return func(i *Info) { i.Requires = append(i.Requires, names...) }
}

// Schema installs a validator run against the configuration subtree before
// the task starts.
func Schema(validate func(raw any) error) Option {
	return func(i *Info) { i.schema = validate }
}

// Registry maps plugin names to components. One registry is built at
// startup and passed to the task queue and tasks.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]*Info
	seq     int
	events  Bus
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]*Info)}
}

// Register adds a component under name. The phases it participates in are
// discovered from the handler interfaces it implements.
func (r *Registry) Register(name string, component any, opts ...Option) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("plugin name must not be empty")
	}
	if component == nil {
		return fmt.Errorf("plugin %s: component must not be nil", name)
	}
	phases := implementedPhases(component)
	if len(phases) == 0 {
		return fmt.Errorf("plugin %s implements no phase handler", name)
	}
	info := &Info{Name: name, Component: component, phases: phases}
	for _, opt := range opts {
		opt(info)
	}
	for phase := range info.priorities {
		if !info.Implements(phase) {
			return fmt.Errorf("plugin %s: priority set for unimplemented phase %s", name, phase)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.plugins[name]; exists {
		return fmt.Errorf("plugin %s already registered", name)
	}
	r.seq++
	info.seq = r.seq
	r.plugins[name] = info
	return nil
}

// MustRegister is Register for static wiring; it panics on error.
func (r *Registry) MustRegister(name string, component any, opts ...Option) {
	if err := r.Register(name, component, opts...); err != nil {
		panic(err)
	}
}

// Lookup returns the registration of name.
func (r *Registry) Lookup(name string) (*Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.plugins[name]
	return info, ok
}

// ByInterface returns the components declaring tag, in registration order.
func (r *Registry) ByInterface(tag string) []*Info {
	return r.collect(func(i *Info) bool { return i.HasInterface(tag) })
}

// Builtins returns the builtin components in registration order.
func (r *Registry) Builtins() []*Info {
	return r.collect(func(i *Info) bool { return i.Builtin })
}

// All returns every registration in registration order.
func (r *Registry) All() []*Info {
	return r.collect(func(*Info) bool { return true })
}

// Names returns the registered names sorted alphabetically.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.plugins))
}

// Events returns the registry's event bus.
func (r *Registry) Events() *Bus { return &r.events }

func (r *Registry) collect(keep func(*Info) bool) []*Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Info
	for _, info := range r.plugins {
		if keep(info) {
			out = append(out, info)
		}
	}
	slices.SortFunc(out, func(a, b *Info) int { return a.seq - b.seq })
	return out
}
