package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"curator/internal/config"
	"curator/internal/taskerr"
)

// Store manages decision history backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Connection parameters applied to every pooled connection. Transactions
// take the write lock up front so two writers never deadlock on upgrade.
var connParams = []string{
	"_pragma=journal_mode(WAL)",
	"_pragma=foreign_keys(1)",
	"_pragma=busy_timeout(5000)",
	"_txlock=immediate",
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := range busyRetryAttempts {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

// persistenceError tags store failures so the task queue can tell them
// apart from component bugs.
func persistenceError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return taskerr.Wrap(taskerr.ErrPersistence, "history", operation, "", err)
}

// Open initializes or connects to the history database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.DatabasePath())
}

// OpenPath opens the history database at an explicit location.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?"+strings.Join(connParams, "&"))
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	store := &Store{db: db, path: dbPath, now: time.Now}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// SetClock overrides the time source used for first-seen and update stamps.
func (s *Store) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Begin opens a transactional scope. Callers must Commit or Rollback it.
func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	ctx = ensureContext(ctx)
	var tx *sql.Tx
	err := retryOnBusy(ctx, func() error {
		var beginErr error
		tx, beginErr = s.db.BeginTx(ctx, nil)
		return beginErr
	})
	if err != nil {
		return nil, persistenceError("begin", err)
	}
	return &Tx{tx: tx, ctx: ctx, now: s.now}, nil
}

// Update runs fn in a transactional scope, committing when fn succeeds and
// rolling back when it fails.
func (s *Store) Update(ctx context.Context, fn func(*Tx) error) error {
	tx, err := s.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Tx is one transactional scope over the history store. It is not safe for
// concurrent use and must not outlive the component invocation it was
// opened for.
type Tx struct {
	tx   *sql.Tx
	ctx  context.Context
	now  func() time.Time
	done bool
}

// Commit makes the scope's writes durable.
func (t *Tx) Commit() error {
	if t == nil || t.done {
		return nil
	}
	t.done = true
	return persistenceError("commit", t.tx.Commit())
}

// Rollback discards the scope's writes. It is a no-op after Commit.
func (t *Tx) Rollback() error {
	if t == nil || t.done {
		return nil
	}
	t.done = true
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return persistenceError("rollback", err)
	}
	return nil
}

// Done reports whether the scope was committed or rolled back.
func (t *Tx) Done() bool { return t == nil || t.done }

func (t *Tx) exec(query string, args ...any) (sql.Result, error) {
	if t.done {
		return nil, persistenceError("exec", sql.ErrTxDone)
	}
	return t.tx.ExecContext(t.ctx, query, args...)
}

func (t *Tx) queryRow(query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(t.ctx, query, args...)
}

func (t *Tx) query(query string, args ...any) (*sql.Rows, error) {
	if t.done {
		return nil, persistenceError("query", sql.ErrTxDone)
	}
	return t.tx.QueryContext(t.ctx, query, args...)
}

func (t *Tx) stamp() string {
	return formatTime(t.now())
}
