package task

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	"curator/internal/logging"
	"curator/internal/plugin"
	"curator/internal/runctx"
	"curator/internal/taskerr"
)

// Action is what the engine does after a component invocation.
type Action int

const (
	ActionContinue Action = iota
	ActionAbort
	ActionRerun
)

func (a Action) String() string {
	switch a {
	case ActionAbort:
		return "abort"
	case ActionRerun:
		return "rerun"
	default:
		return "continue"
	}
}

// Result is the outcome of one component invocation.
type Result struct {
	Action      Action
	Phase       plugin.Phase
	Plugin      string
	Reason      string
	Diagnostics string
	Err         error
}

// panicError is a recovered component panic.
type panicError struct {
	value any
	stack []byte
}

func (p *panicError) Error() string { return fmt.Sprintf("panic: %v", p.value) }

// invoke runs one component for one phase inside its own history scope and
// error boundary, publishing before/after notifications around it.
func (t *Task) invoke(ctx context.Context, phase plugin.Phase, step plugin.Step) Result {
	name := step.Name()
	pctx := runctx.WithPlugin(ctx, name)
	events := t.registry.Events()
	base := plugin.Event{Task: t.name, RunID: t.runID, Pass: t.Pass(), Phase: phase, Plugin: name}

	before := base
	before.Kind = plugin.EventBeforePlugin
	events.Publish(before)

	started := t.now()
	var added int
	err := t.withScope(pctx, name, func() error {
		entries, err := plugin.Invoke(pctx, phase, step.Info.Component, t, step.Config())
		if err == nil && len(entries) > 0 {
			added = t.Entries().Add(entries...)
		}
		return err
	})

	after := base
	after.Kind = plugin.EventAfterPlugin
	after.Duration = t.now().Sub(started)
	after.Err = err
	events.Publish(after)

	logger := logging.WithContext(pctx, t.base)
	if phase == plugin.PhaseInput && err == nil {
		logger.Debug("input produced entries", logging.Int("added", added))
	}

	if err != nil {
		if taskerr.IsWarning(err) {
			logging.WarnWithContext(logger, "component warning", "plugin_warning",
				logging.String(logging.FieldErrorHint, taskerr.Details(err).Message),
				logging.Error(err),
			)
		} else {
			res := abortResult(phase, name, err)
			var p *panicError
			if errors.As(err, &p) {
				res.Diagnostics = t.diagnostics(p)
			}
			return res
		}
	}
	if t.abortRequested && phase != plugin.PhaseAbort {
		reason := t.abortReason
		if reason == "" {
			reason = "aborted by " + name
		}
		return Result{Action: ActionAbort, Phase: phase, Plugin: name, Reason: reason}
	}
	if t.rerunRequested {
		return Result{Action: ActionRerun, Phase: phase, Plugin: name, Reason: t.rerunReason}
	}
	return Result{Action: ActionContinue, Phase: phase, Plugin: name}
}

// withScope installs the invocation scope, recovers panics from fn, and
// commits the history session when fn succeeds (or only warns) and rolls it
// back otherwise.
func (t *Task) withScope(ctx context.Context, name string, fn func() error) (err error) {
	t.scope = scope{ctx: ctx, plugin: name, logger: logging.WithContext(ctx, t.base)}
	defer func() {
		if r := recover(); r != nil {
			err = taskerr.Wrap(taskerr.ErrComponent, name, "", "", &panicError{value: r, stack: debug.Stack()})
		}
		session := t.scope.session
		t.scope = scope{}
		if session == nil {
			return
		}
		if err == nil || taskerr.IsWarning(err) {
			if commitErr := session.Commit(); commitErr != nil {
				err = commitErr
			}
			return
		}
		_ = session.Rollback()
	}()
	return fn()
}

// diagnostics renders the crash bundle: the stack trace followed by the
// run's most recent log lines.
func (t *Task) diagnostics(p *panicError) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(string(p.stack)))
	if t.ring == nil {
		return b.String()
	}
	var lines []string
	for _, evt := range t.ring.Tail(0) {
		if evt.RunID != t.runID {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s %s %s", evt.Timestamp.Format("15:04:05.000"), strings.ToUpper(evt.Level), evt.Message))
	}
	if len(lines) > diagnosticLines {
		lines = lines[len(lines)-diagnosticLines:]
	}
	if len(lines) > 0 {
		b.WriteString("\n\nrecent log:\n")
		b.WriteString(strings.Join(lines, "\n"))
	}
	return b.String()
}

const diagnosticLines = 20
