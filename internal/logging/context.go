package logging

import (
	"context"
	"log/slog"

	"curator/internal/runctx"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldTask is the standardized structured logging key for task names.
	FieldTask = "task"
	// FieldRunID is the standardized structured logging key for one task execution.
	FieldRunID = "run_id"
	// FieldPhase is the standardized structured logging key for pipeline phases.
	FieldPhase = "phase"
	// FieldPlugin is the standardized structured logging key for plugin names.
	FieldPlugin = "plugin"
	// FieldPass is the standardized structured logging key for the rerun pass.
	FieldPass = "pass"
	// FieldTitle is the standardized structured logging key for entry titles.
	FieldTitle = "title"
	// FieldSeries is the standardized structured logging key for series names.
	FieldSeries = "series"
	// FieldEpisode is the standardized structured logging key for episode identifiers (e.g. S01E02).
	FieldEpisode = "episode"
	// FieldEventType classifies a log line for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint suggests the next step for an operator.
	FieldErrorHint = "error_hint"
	// FieldDecisionType names the component that took an entry decision.
	FieldDecisionType = "decision_type"
	// FieldDecisionResult is accepted, rejected or failed.
	FieldDecisionResult = "decision_result"
	// FieldDecisionReason is the human readable reason of a decision.
	FieldDecisionReason = "decision_reason"
	// FieldAlert flags warnings or anomalies that should stand out in structured logs.
	FieldAlert = "alert"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 5)
	if task, ok := runctx.TaskFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldTask, task))
	}
	if id, ok := runctx.RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, id))
	}
	if pass, ok := runctx.PassFromContext(ctx); ok {
		fields = append(fields, slog.Int(FieldPass, pass))
	}
	if phase, ok := runctx.PhaseFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldPhase, phase))
	}
	if plugin, ok := runctx.PluginFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldPlugin, plugin))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
