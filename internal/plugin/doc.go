// Package plugin defines the component contracts of the task pipeline and the
// registry that resolves a task's configuration into an ordered pipeline.
//
// A component implements one handler interface per phase it takes part in
// (OnInput, OnFilter, ...). The registry discovers those phases when the
// component is registered, records its per-phase priority, interface tags,
// dependencies and schema, and publishes before/after plugin notifications
// on its event bus. Resolve is run once per task execution: unknown plugins,
// schema failures and missing dependencies are reported before the task
// starts.
package plugin
