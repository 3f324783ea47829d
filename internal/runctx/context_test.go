package runctx_test

import (
	"context"
	"testing"

	"curator/internal/runctx"
)

func TestContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	ctx = runctx.WithTask(ctx, "tv")
	ctx = runctx.WithRunID(ctx, "run-1")
	ctx = runctx.WithPhase(ctx, "filter")
	ctx = runctx.WithPlugin(ctx, "series")
	ctx = runctx.WithPass(ctx, 2)

	if v, ok := runctx.TaskFromContext(ctx); !ok || v != "tv" {
		t.Fatalf("unexpected task: %q %v", v, ok)
	}
	if v, ok := runctx.RunIDFromContext(ctx); !ok || v != "run-1" {
		t.Fatalf("unexpected run id: %q %v", v, ok)
	}
	if v, ok := runctx.PhaseFromContext(ctx); !ok || v != "filter" {
		t.Fatalf("unexpected phase: %q %v", v, ok)
	}
	if v, ok := runctx.PluginFromContext(ctx); !ok || v != "series" {
		t.Fatalf("unexpected plugin: %q %v", v, ok)
	}
	if v, ok := runctx.PassFromContext(ctx); !ok || v != 2 {
		t.Fatalf("unexpected pass: %d %v", v, ok)
	}
}

func TestEmptyValuesAreIgnored(t *testing.T) {
	ctx := runctx.WithTask(context.Background(), "")
	if _, ok := runctx.TaskFromContext(ctx); ok {
		t.Fatal("expected empty task name to be ignored")
	}
	if _, ok := runctx.PassFromContext(context.Background()); ok {
		t.Fatal("expected no pass on bare context")
	}
}
