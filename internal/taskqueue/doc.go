// Package taskqueue runs tasks one at a time on a single worker.
//
// Submissions are safe from any goroutine and are ordered by priority
// (lower runs first) and then by submission order. A failed task, including
// one that hit a persistence error, is logged and the worker moves on.
package taskqueue
