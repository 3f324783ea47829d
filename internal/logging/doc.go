// Package logging assembles structured slog loggers and formatting helpers used
// across curator.
//
// It owns the configurable console/JSON handlers, rotating file output, and
// per-plugin level overrides, and exposes context-aware helpers so engine and
// plugin code automatically tag log lines with the task, run, phase and
// plugin they belong to. A Ring handler keeps recent events in memory for
// crash diagnostics, and a no-op logger serves tests and wiring code that
// cannot fail.
package logging
