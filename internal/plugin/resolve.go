package plugin

import (
	"cmp"
	"fmt"
	"slices"

	"curator/internal/config"
	"curator/internal/taskerr"
)

// Step is one component scheduled in a phase.
type Step struct {
	Info *Info
	raw  any
}

// Name returns the component name.
func (s Step) Name() string { return s.Info.Name }

// Config returns a fresh deep copy of the component's configuration subtree.
func (s Step) Config() any { return config.CloneSection(s.raw) }

// Pipeline is the resolved, ordered component list of one task.
type Pipeline struct {
	task   string
	steps  map[Phase][]Step
	active []string
}

// Steps returns the components of phase ordered by priority, highest first,
// then registration order.
func (p *Pipeline) Steps(phase Phase) []Step {
	return append([]Step(nil), p.steps[phase]...)
}

// Active returns the names of every component taking part, sorted.
func (p *Pipeline) Active() []string { return append([]string(nil), p.active...) }

// Has reports whether the named component takes part.
func (p *Pipeline) Has(name string) bool {
	_, found := slices.BinarySearch(p.active, name)
	return found
}

// Resolve validates a task's plugin configuration against the registry and
// orders the pipeline. Every configured name must be registered and accepted
// by its schema, and every dependency must be active. A plugin configured as
// false is disabled, which is how a task opts out of a builtin.
func (r *Registry) Resolve(task string, plugins map[string]any) (*Pipeline, error) {
	active := make(map[string]*Info)
	raws := make(map[string]any)
	disabled := make(map[string]bool)

	names := make([]string, 0, len(plugins))
	for name := range plugins {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		raw := plugins[name]
		info, ok := r.Lookup(name)
		if !ok {
			return nil, taskerr.Wrap(taskerr.ErrConfiguration, name, "resolve", fmt.Sprintf("task %s: unknown plugin %q", task, name), nil)
		}
		if enabled, flag := raw.(bool); flag {
			if !enabled {
				disabled[name] = true
				continue
			}
			raw = nil
		}
		if err := info.Validate(raw); err != nil {
			return nil, taskerr.Wrap(taskerr.ErrConfiguration, name, "validate", "task "+task, err)
		}
		active[name] = info
		raws[name] = raw
	}
	for _, info := range r.Builtins() {
		if disabled[info.Name] {
			continue
		}
		if _, ok := active[info.Name]; !ok {
			active[info.Name] = info
		}
	}

	for _, name := range sortedKeys(active) {
		for _, dep := range active[name].Requires {
			if !satisfied(active, dep) {
				return nil, taskerr.Wrap(taskerr.ErrDependency, name, "resolve",
					fmt.Sprintf("task %s: requires %q which is not active", task, dep), nil)
			}
		}
	}

	p := &Pipeline{task: task, steps: make(map[Phase][]Step), active: sortedKeys(active)}
	for _, info := range active {
		for _, phase := range info.phases {
			p.steps[phase] = append(p.steps[phase], Step{Info: info, raw: raws[info.Name]})
		}
	}
	for phase, steps := range p.steps {
		slices.SortFunc(steps, func(a, b Step) int {
			if c := cmp.Compare(b.Info.Priority(phase), a.Info.Priority(phase)); c != 0 {
				return c
			}
			return cmp.Compare(a.Info.seq, b.Info.seq)
		})
	}
	return p, nil
}

func satisfied(active map[string]*Info, dep string) bool {
	if _, ok := active[dep]; ok {
		return true
	}
	for _, info := range active {
		if info.HasInterface(dep) {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]*Info) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Decoded is a Schema that decodes the subtree into T, rejecting unknown
// keys, and then runs T's Validate method when it has one.
func Decoded[T any]() Option {
	return Schema(func(raw any) error {
		v, err := config.DecodeSection[T](raw)
		if err != nil {
			return err
		}
		if validator, ok := any(&v).(interface{ Validate() error }); ok {
			return validator.Validate()
		}
		return nil
	})
}
