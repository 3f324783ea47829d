package taskerr_test

import (
	"errors"
	"strings"
	"testing"

	"curator/internal/taskerr"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := taskerr.Wrap(taskerr.ErrPersistence, "history", "commit", "write failed", base)
	if !errors.Is(err, taskerr.ErrPersistence) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	for _, fragment := range []string{"history", "commit", "write failed"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Fatalf("expected %q in error string %q", fragment, err.Error())
		}
	}
}

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		want taskerr.Kind
	}{
		{taskerr.Warn("dump", "odd", nil), taskerr.KindWarning},
		{taskerr.Wrap(taskerr.ErrConfiguration, "series", "", "bad", nil), taskerr.KindConfiguration},
		{taskerr.Wrap(taskerr.ErrDependency, "series", "", "missing", nil), taskerr.KindDependency},
		{taskerr.Wrap(taskerr.ErrPersistence, "history", "", "", nil), taskerr.KindPersistence},
		{taskerr.Wrap(nil, "x", "", "", nil), taskerr.KindComponent},
		{errors.New("plain"), taskerr.KindUnknown},
		{nil, ""},
	}
	for _, tc := range cases {
		if got := taskerr.KindOf(tc.err); got != tc.want {
			t.Fatalf("KindOf(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestDetailsStripsMarker(t *testing.T) {
	err := taskerr.Wrap(taskerr.ErrConfiguration, "series", "validate", "quality invalid", nil)
	d := taskerr.Details(err)
	if d.Kind != taskerr.KindConfiguration {
		t.Fatalf("unexpected kind %q", d.Kind)
	}
	if d.Message != "series: validate: quality invalid" {
		t.Fatalf("unexpected message %q", d.Message)
	}
}

func TestAbortErrorUnwrap(t *testing.T) {
	cause := taskerr.Wrap(taskerr.ErrComponent, "mock", "input", "exploded", nil)
	err := &taskerr.AbortError{Task: "tv", Phase: "input", Plugin: "mock", Reason: "exploded", Cause: cause}
	if !errors.Is(err, taskerr.ErrAborted) {
		t.Fatal("expected abort marker")
	}
	if !errors.Is(err, taskerr.ErrComponent) {
		t.Fatal("expected cause marker")
	}
	if !strings.Contains(err.Error(), "during input") {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
