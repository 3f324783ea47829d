package task

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"curator/internal/config"
	"curator/internal/entry"
	"curator/internal/logging"
	"curator/internal/plugin"
	"curator/internal/runctx"
	"curator/internal/taskerr"
)

var _ plugin.Task = (*Task)(nil)

// ErrAlreadyExecuted is returned when Execute is called twice.
var ErrAlreadyExecuted = errors.New("task already executed")

// Execute runs the pipeline to completion. Configuration and dependency
// errors are returned before any phase runs. A component error aborts the
// task: the abort phase runs and a *taskerr.AbortError is returned.
func (t *Task) Execute(ctx context.Context) error {
	t.mu.Lock()
	if t.state != Created {
		t.mu.Unlock()
		return ErrAlreadyExecuted
	}
	t.runID = uuid.NewString()
	t.started = t.now()
	t.mu.Unlock()

	ctx = runctx.WithRunID(runctx.WithTask(ctx, t.name), t.runID)
	logger := logging.WithContext(ctx, t.base)

	if err := t.resolve(); err != nil {
		t.finish(Aborted)
		logger.Error("task configuration rejected",
			logging.String(logging.FieldEventType, "task_config_invalid"),
			logging.String(logging.FieldErrorHint, "check the task's plugin configuration"),
			logging.Error(err),
		)
		return err
	}

	t.setState(Running)
	events := t.registry.Events()
	events.Publish(plugin.Event{Kind: plugin.EventTaskStarted, Task: t.name, RunID: t.runID})
	logger.Info("task started",
		logging.String(logging.FieldEventType, "task_start"),
		logging.Int("max_reruns", t.maxReruns),
		logging.Any("plugins", t.pipeline.Active()),
	)

	err := t.run(ctx)

	outcome := Completed
	if err != nil && errors.Is(err, taskerr.ErrAborted) {
		outcome = Aborted
	}
	t.finish(outcome)
	summary := t.Summary()
	events.Publish(plugin.Event{
		Kind:    plugin.EventTaskFinished,
		Task:    t.name,
		RunID:   t.runID,
		Pass:    summary.Reruns,
		Outcome: outcome.String(),
		Counts:  summary.Counts,
		Reruns:  summary.Reruns,
		Err:     err,
	})
	if outcome == Completed {
		logger.Info("task completed",
			logging.String(logging.FieldEventType, "task_complete"),
			logging.Int("reruns", summary.Reruns),
			logging.Int("accepted", summary.Counts.Accepted),
			logging.Int("rejected", summary.Counts.Rejected),
			logging.Int("failed", summary.Counts.Failed),
			logging.Duration("duration", summary.Finished.Sub(summary.Started)),
		)
	}
	return err
}

func (t *Task) run(ctx context.Context) error {
	for {
		pass := t.Pass()
		phases := plugin.ReplayPhases()
		if pass == 0 {
			phases = plugin.Phases()
			phases = phases[:len(phases)-1]
		}
		passCtx := runctx.WithPass(ctx, pass)

		for _, phase := range phases {
			res := t.runPhase(passCtx, phase)
			if res.Action == ActionAbort {
				return t.abort(passCtx, res)
			}
			switch phase {
			case plugin.PhaseStart:
				t.snapshot, _ = config.CloneSection(t.plugins).(map[string]any)
			case plugin.PhasePrepare:
				if err := t.checkConfigHash(passCtx); err != nil {
					return t.abort(passCtx, abortResult(phase, "", err))
				}
			}
		}
		t.completePass(passCtx)

		if !t.rerunRequested {
			break
		}
		logger := logging.WithContext(passCtx, t.base)
		if pass >= t.maxReruns {
			logger.Warn("rerun limit reached; finishing task",
				logging.String(logging.FieldEventType, "rerun_limit"),
				logging.String(logging.FieldErrorHint, "raise max_reruns if the task legitimately needs more passes"),
				logging.Int("max_reruns", t.maxReruns),
				logging.String("reason", t.rerunReason),
			)
			break
		}
		logger.Info("starting rerun",
			logging.String(logging.FieldEventType, "rerun_start"),
			logging.Int("next_pass", pass+1),
			logging.String("reason", t.rerunReason),
		)
		if err := t.beginReplay(pass + 1); err != nil {
			return t.abort(passCtx, abortResult(plugin.PhaseStart, "", err))
		}
	}

	exitCtx := runctx.WithPass(ctx, t.Pass())
	if res := t.runPhase(exitCtx, plugin.PhaseExit); res.Action == ActionAbort {
		return t.abort(exitCtx, res)
	}
	if err := t.saveConfigHash(exitCtx); err != nil {
		return err
	}
	return nil
}

// beginReplay restores the post-start configuration and gives the next pass
// an empty container.
func (t *Task) beginReplay(pass int) error {
	restored, _ := config.CloneSection(t.snapshot).(map[string]any)
	t.plugins = restored
	if err := t.resolve(); err != nil {
		return err
	}
	t.mu.Lock()
	t.pass = pass
	t.container = entry.NewContainer(t.name)
	t.mu.Unlock()
	t.rerunRequested = false
	t.rerunReason = ""
	return nil
}

// runPhase invokes every component of phase in order and stops at the first
// abort.
func (t *Task) runPhase(ctx context.Context, phase plugin.Phase) Result {
	t.setPhase(phase)
	phaseCtx := runctx.WithPhase(ctx, string(phase))
	for _, step := range t.pipeline.Steps(phase) {
		if res := t.invoke(phaseCtx, phase, step); res.Action == ActionAbort {
			return res
		}
	}
	return Result{Action: ActionContinue}
}

// completePass fires on_complete hooks for the pass in a scope of their own.
func (t *Task) completePass(ctx context.Context) {
	hookCtx := runctx.WithPhase(ctx, "complete")
	container := t.Entries()
	err := t.withScope(hookCtx, "", func() error {
		container.Complete()
		return nil
	})
	if err != nil {
		logging.WithContext(hookCtx, t.base).Warn("entry completion hooks failed",
			logging.String(logging.FieldEventType, "complete_hooks_failed"),
			logging.String(logging.FieldErrorHint, "check plugins registering on_complete hooks"),
			logging.Error(err),
		)
	}
}

// abort moves the task to Aborted, runs the abort phase best effort, and
// returns the abort error. Failures inside abort handlers are logged only.
func (t *Task) abort(ctx context.Context, res Result) error {
	abortErr := &taskerr.AbortError{
		Task:        t.name,
		Phase:       string(res.Phase),
		Plugin:      res.Plugin,
		Reason:      res.Reason,
		Diagnostics: res.Diagnostics,
		Cause:       res.Err,
	}
	t.mu.Lock()
	t.abortErr = abortErr
	t.mu.Unlock()

	logger := logging.WithContext(ctx, t.base)
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "task_abort"),
		logging.String("failed_phase", string(res.Phase)),
		logging.String("failed_plugin", res.Plugin),
		logging.String("reason", res.Reason),
		logging.Alert("task_abort"),
	}
	if res.Err != nil {
		attrs = append(attrs, logging.String("error_kind", string(taskerr.KindOf(res.Err))), logging.Error(res.Err))
	}
	if res.Diagnostics != "" {
		attrs = append(attrs, logging.String("diagnostics", res.Diagnostics))
	}
	logger.Error("task aborted", logging.Args(attrs...)...)

	t.setPhase(plugin.PhaseAbort)
	abortCtx := runctx.WithPhase(ctx, string(plugin.PhaseAbort))
	for _, step := range t.pipeline.Steps(plugin.PhaseAbort) {
		if second := t.invoke(abortCtx, plugin.PhaseAbort, step); second.Action == ActionAbort {
			logging.WithContext(runctx.WithPlugin(abortCtx, step.Name()), t.base).Warn("abort handler failed",
				logging.String(logging.FieldEventType, "abort_handler_failed"),
				logging.String(logging.FieldErrorHint, "the original abort reason is preserved"),
				logging.String("reason", second.Reason),
			)
		}
	}
	return abortErr
}

func (t *Task) finish(state State) {
	t.mu.Lock()
	t.state = state
	t.finished = t.now()
	t.mu.Unlock()
}

func abortResult(phase plugin.Phase, pluginName string, err error) Result {
	reason := taskerr.Details(err).Message
	if reason == "" {
		reason = fmt.Sprint(err)
	}
	return Result{Action: ActionAbort, Phase: phase, Plugin: pluginName, Reason: reason, Err: err}
}
