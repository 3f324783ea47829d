package plugin

import (
	"context"
	"iter"
	"log/slog"
	"time"

	"curator/internal/config"
	"curator/internal/entry"
	"curator/internal/history"
)

// Task is the view of a running task handed to components. Components must
// not retain it beyond the invocation.
type Task interface {
	Name() string
	RunID() string
	Entries() *entry.Container

	// Session returns the history scope of the current invocation, opening it
	// on first use. The engine commits it when the component returns without
	// error and rolls it back otherwise.
	Session() (*history.Tx, error)

	Logger() *slog.Logger
	Config() *config.Config
	Registry() *Registry
	Now() time.Time

	// RequestRerun asks for another pass once the current one finishes.
	// Repeated requests within one pass are ignored.
	RequestRerun(reason string)
	// Abort stops the task after the current component returns.
	Abort(reason string)

	// SetConfig replaces the configuration subtree of an active plugin. It is
	// only permitted during the start phase; the configuration as it stands
	// after start is what every rerun pass sees.
	SetConfig(plugin string, raw any) error

	IsRerun() bool
	Pass() int
	ConfigChanged() bool
}

// The per-phase handler contracts. cfg is a private deep copy of the
// component's configuration subtree, nil for unconfigured builtins.

type StartHandler interface {
	OnStart(ctx context.Context, task Task, cfg any) error
}

type PrepareHandler interface {
	OnPrepare(ctx context.Context, task Task, cfg any) error
}

type InputHandler interface {
	OnInput(ctx context.Context, task Task, cfg any) ([]*entry.Entry, error)
}

// StreamInputHandler produces entries lazily. The engine drains the stream
// before the phase moves on; an error yielded mid-stream fails the
// component like a returned error.
type StreamInputHandler interface {
	OnInputStream(ctx context.Context, task Task, cfg any) iter.Seq2[*entry.Entry, error]
}

type MetainfoHandler interface {
	OnMetainfo(ctx context.Context, task Task, cfg any) error
}

type FilterHandler interface {
	OnFilter(ctx context.Context, task Task, cfg any) error
}

type DownloadHandler interface {
	OnDownload(ctx context.Context, task Task, cfg any) error
}

type OutputHandler interface {
	OnOutput(ctx context.Context, task Task, cfg any) error
}

type LearnHandler interface {
	OnLearn(ctx context.Context, task Task, cfg any) error
}

type ExitHandler interface {
	OnExit(ctx context.Context, task Task, cfg any) error
}

type AbortHandler interface {
	OnAbort(ctx context.Context, task Task, cfg any) error
}

// Backlogger accepts entries handed off for re-offering on a later run.
type Backlogger interface {
	AddBacklog(ctx context.Context, task Task, e *entry.Entry, hold time.Duration) error
}

// implementedPhases discovers the phases a component participates in.
func implementedPhases(component any) []Phase {
	var phases []Phase
	if _, ok := component.(StartHandler); ok {
		phases = append(phases, PhaseStart)
	}
	if _, ok := component.(PrepareHandler); ok {
		phases = append(phases, PhasePrepare)
	}
	_, input := component.(InputHandler)
	_, stream := component.(StreamInputHandler)
	if input || stream {
		phases = append(phases, PhaseInput)
	}
	if _, ok := component.(MetainfoHandler); ok {
		phases = append(phases, PhaseMetainfo)
	}
	if _, ok := component.(FilterHandler); ok {
		phases = append(phases, PhaseFilter)
	}
	if _, ok := component.(DownloadHandler); ok {
		phases = append(phases, PhaseDownload)
	}
	if _, ok := component.(OutputHandler); ok {
		phases = append(phases, PhaseOutput)
	}
	if _, ok := component.(LearnHandler); ok {
		phases = append(phases, PhaseLearn)
	}
	if _, ok := component.(ExitHandler); ok {
		phases = append(phases, PhaseExit)
	}
	if _, ok := component.(AbortHandler); ok {
		phases = append(phases, PhaseAbort)
	}
	return phases
}

// Invoke calls the handler of component for phase. Input results are
// returned; other phases return nil entries. A component that does not
// implement the phase is a no-op.
func Invoke(ctx context.Context, phase Phase, component any, task Task, cfg any) ([]*entry.Entry, error) {
	switch phase {
	case PhaseStart:
		if h, ok := component.(StartHandler); ok {
			return nil, h.OnStart(ctx, task, cfg)
		}
	case PhasePrepare:
		if h, ok := component.(PrepareHandler); ok {
			return nil, h.OnPrepare(ctx, task, cfg)
		}
	case PhaseInput:
		if h, ok := component.(StreamInputHandler); ok {
			return drain(h.OnInputStream(ctx, task, cfg))
		}
		if h, ok := component.(InputHandler); ok {
			return h.OnInput(ctx, task, cfg)
		}
	case PhaseMetainfo:
		if h, ok := component.(MetainfoHandler); ok {
			return nil, h.OnMetainfo(ctx, task, cfg)
		}
	case PhaseFilter:
		if h, ok := component.(FilterHandler); ok {
			return nil, h.OnFilter(ctx, task, cfg)
		}
	case PhaseDownload:
		if h, ok := component.(DownloadHandler); ok {
			return nil, h.OnDownload(ctx, task, cfg)
		}
	case PhaseOutput:
		if h, ok := component.(OutputHandler); ok {
			return nil, h.OnOutput(ctx, task, cfg)
		}
	case PhaseLearn:
		if h, ok := component.(LearnHandler); ok {
			return nil, h.OnLearn(ctx, task, cfg)
		}
	case PhaseExit:
		if h, ok := component.(ExitHandler); ok {
			return nil, h.OnExit(ctx, task, cfg)
		}
	case PhaseAbort:
		if h, ok := component.(AbortHandler); ok {
			return nil, h.OnAbort(ctx, task, cfg)
		}
	}
	return nil, nil
}

func drain(seq iter.Seq2[*entry.Entry, error]) ([]*entry.Entry, error) {
	if seq == nil {
		return nil, nil
	}
	var out []*entry.Entry
	for e, err := range seq {
		if err != nil {
			return out, err
		}
		if e != nil {
			out = append(out, e)
		}
	}
	return out, nil
}
