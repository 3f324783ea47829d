// Package history persists the decision engine's state in SQLite.
//
// It stores series, the episodes seen for them and the releases of each
// episode (with their proper counts and download flags), per task tracking
// locks, season-pack markers, timeframe waits, backlog hand-offs and task
// configuration hashes. All access goes through a Tx: a short transactional
// scope opened per component invocation and committed or rolled back before
// the next component runs. Transactions take the write lock on begin and
// busy errors are retried with backoff.
package history
