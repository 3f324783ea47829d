package testsupport

import (
	"context"
	"testing"

	"curator/internal/config"
	"curator/internal/history"
)

// MustOpenStore opens a history.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *history.Store {
	t.Helper()

	store, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustUpdate runs fn in a committed history scope and fails the test on error.
func MustUpdate(t testing.TB, store *history.Store, fn func(*history.Tx) error) {
	t.Helper()

	if err := store.Update(context.Background(), fn); err != nil {
		t.Fatalf("store.Update: %v", err)
	}
}
