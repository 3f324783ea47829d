package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"curator/internal/config"
	"curator/internal/entry"
	"curator/internal/history"
	"curator/internal/logging"
	"curator/internal/plugin"
	"curator/internal/taskerr"
)

// State is the lifecycle state of a task.
type State int

const (
	Created State = iota
	Running
	Completed
	Aborted
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Aborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Options wires a task to its collaborators.
type Options struct {
	Config   *config.Config
	Registry *plugin.Registry
	Store    *history.Store
	Logger   *slog.Logger
	// Ring supplies the recent log lines attached to crash diagnostics.
	Ring *logging.Ring
	Now  func() time.Time
}

// Task is one execution of a named task configuration. A Task runs once;
// submit a new Task for the next run.
type Task struct {
	name      string
	cfg       *config.Config
	taskCfg   config.Task
	registry  *plugin.Registry
	store     *history.Store
	base      *slog.Logger
	ring      *logging.Ring
	now       func() time.Time
	maxReruns int

	mu        sync.RWMutex
	state     State
	runID     string
	pass      int
	phase     plugin.Phase
	started   time.Time
	finished  time.Time
	container *entry.Container
	abortErr  *taskerr.AbortError

	plugins       map[string]any
	snapshot      map[string]any
	pipeline      *plugin.Pipeline
	configChanged bool
	configHash    string

	rerunRequested bool
	rerunReason    string
	abortRequested bool
	abortReason    string

	scope scope
}

// scope is the state of the component invocation in progress.
type scope struct {
	ctx     context.Context
	plugin  string
	logger  *slog.Logger
	session *history.Tx
}

// New builds a task for the named configuration entry.
func New(name string, opts Options) (*Task, error) {
	if opts.Config == nil {
		return nil, errors.New("task: config is required")
	}
	if opts.Registry == nil {
		return nil, errors.New("task: plugin registry is required")
	}
	taskCfg, ok := opts.Config.Task(name)
	if !ok {
		return nil, taskerr.Wrap(taskerr.ErrConfiguration, "task", "lookup", fmt.Sprintf("unknown task %q", name), nil)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	plugins, _ := config.CloneSection(taskCfg.Plugins).(map[string]any)
	return &Task{
		name:      name,
		cfg:       opts.Config,
		taskCfg:   taskCfg,
		registry:  opts.Registry,
		store:     opts.Store,
		base:      logger,
		ring:      opts.Ring,
		now:       now,
		maxReruns: opts.Config.MaxReruns(name),
		plugins:   plugins,
		container: entry.NewContainer(name),
	}, nil
}

// Name returns the task name.
func (t *Task) Name() string { return t.name }

// Priority returns the configured queue priority.
func (t *Task) Priority() int { return t.taskCfg.Priority }

// RunID returns the correlation id of the execution, empty before it starts.
func (t *Task) RunID() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.runID
}

// State returns the lifecycle state.
func (t *Task) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Phase returns the phase currently executing.
func (t *Task) Phase() plugin.Phase {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.phase
}

// Pass returns the zero-based pass number; pass 0 is the first run.
func (t *Task) Pass() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.pass
}

// IsRerun reports whether the current pass is a rerun.
func (t *Task) IsRerun() bool { return t.Pass() > 0 }

// Entries returns the container of the current pass.
func (t *Task) Entries() *entry.Container {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.container
}

// Config returns the loaded configuration.
func (t *Task) Config() *config.Config { return t.cfg }

// Registry returns the plugin registry.
func (t *Task) Registry() *plugin.Registry { return t.registry }

// Now returns the task's clock reading.
func (t *Task) Now() time.Time { return t.now() }

// ConfigChanged reports whether the effective configuration differs from
// the one persisted by the last completed run.
func (t *Task) ConfigChanged() bool { return t.configChanged }

// Logger returns the logger of the invocation in progress, annotated with
// task, phase and plugin.
func (t *Task) Logger() *slog.Logger {
	if t.scope.logger != nil {
		return t.scope.logger
	}
	return t.base
}

// Session returns the history scope of the current component invocation,
// beginning it on first use.
func (t *Task) Session() (*history.Tx, error) {
	if t.scope.session != nil && !t.scope.session.Done() {
		return t.scope.session, nil
	}
	if t.store == nil {
		return nil, taskerr.Wrap(taskerr.ErrPersistence, "task", "session", "history store not configured", nil)
	}
	ctx := t.scope.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	tx, err := t.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	t.scope.session = tx
	return tx, nil
}

// RequestRerun asks for another pass. Only the first request of a pass is
// recorded.
func (t *Task) RequestRerun(reason string) {
	if t.rerunRequested {
		return
	}
	t.rerunRequested = true
	t.rerunReason = strings.TrimSpace(reason)
	t.Logger().Info("rerun requested",
		logging.String(logging.FieldEventType, "rerun_requested"),
		logging.String("reason", t.rerunReason),
	)
}

// Abort stops the task once the current component returns.
func (t *Task) Abort(reason string) {
	if t.abortRequested {
		return
	}
	t.abortRequested = true
	t.abortReason = strings.TrimSpace(reason)
}

// SetConfig replaces the subtree of an active plugin during the start phase.
func (t *Task) SetConfig(name string, raw any) error {
	if t.Phase() != plugin.PhaseStart {
		return fmt.Errorf("config of %s can only change during start", name)
	}
	if t.pipeline == nil || !t.pipeline.Has(name) {
		return fmt.Errorf("plugin %s is not active in task %s", name, t.name)
	}
	info, _ := t.registry.Lookup(name)
	if err := info.Validate(raw); err != nil {
		return taskerr.Wrap(taskerr.ErrConfiguration, name, "set config", "", err)
	}
	t.plugins[name] = config.CloneSection(raw)
	return t.resolve()
}

// Summary describes a finished execution.
type Summary struct {
	Task        string
	RunID       string
	State       State
	Reruns      int
	Counts      entry.Counts
	Accepted    []string
	Started     time.Time
	Finished    time.Time
	AbortReason string
}

// Summary reports the outcome of the execution and the final pass's entries.
func (t *Task) Summary() Summary {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s := Summary{
		Task:     t.name,
		RunID:    t.runID,
		State:    t.state,
		Reruns:   t.pass,
		Counts:   t.container.Counts(),
		Started:  t.started,
		Finished: t.finished,
	}
	for _, e := range t.container.Accepted() {
		s.Accepted = append(s.Accepted, e.Title())
	}
	if t.abortErr != nil {
		s.AbortReason = t.abortErr.Reason
	}
	return s
}

func (t *Task) resolve() error {
	pipeline, err := t.registry.Resolve(t.name, t.plugins)
	if err != nil {
		return err
	}
	t.pipeline = pipeline
	return nil
}

func (t *Task) setState(state State) {
	t.mu.Lock()
	t.state = state
	t.mu.Unlock()
}

func (t *Task) setPhase(phase plugin.Phase) {
	t.mu.Lock()
	t.phase = phase
	t.mu.Unlock()
}
