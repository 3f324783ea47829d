// Package daemon runs configured tasks on their schedules in a long-lived
// process.
//
// It wires configuration, the history store, the plugin registry and the
// task queue into a single lifecycle with flock-based locking to prevent
// multiple instances. A poll loop submits tasks whose schedule interval has
// passed, a file watcher reloads the configuration when it changes on disk,
// and an optional HTTP listener exposes Prometheus metrics.
//
// Keep orchestration logic here: decisions belong to plugins and pass
// handling to the task package, while the daemon focuses on startup,
// shutdown and when to run what.
package daemon
