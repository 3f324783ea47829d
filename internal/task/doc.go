// Package task executes one named task configuration through the phase
// pipeline.
//
// A Task resolves its plugins against the registry, runs start through learn,
// and replays input through learn while components request reruns and the
// rerun budget allows. Exit runs once at the end. Every component invocation
// gets its own history scope and error boundary: warnings are logged and the
// phase continues, other errors and panics abort the task, run the abort
// phase best effort, and surface as a *taskerr.AbortError.
package task
