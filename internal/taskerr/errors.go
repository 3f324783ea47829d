// Package taskerr classifies failures raised while executing tasks.
//
// Every error that crosses a component boundary is tagged with one of the
// exported markers so the task engine and the task queue can decide whether
// to keep going (warnings), abort the task (component errors), refuse to
// start it (configuration and dependency errors), or log and move on to the
// next queued task (persistence errors).
package taskerr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrConfiguration = errors.New("configuration error")
	ErrDependency    = errors.New("dependency error")
	ErrComponent     = errors.New("component error")
	ErrPersistence   = errors.New("persistence error")
	ErrAborted       = errors.New("task aborted")
	ErrWarning       = errors.New("warning")
)

// Kind names the taxonomy bucket of an error.
type Kind string

const (
	KindConfiguration Kind = "configuration"
	KindDependency    Kind = "dependency"
	KindComponent     Kind = "component"
	KindPersistence   Kind = "persistence"
	KindAborted       Kind = "aborted"
	KindWarning       Kind = "warning"
	KindUnknown       Kind = "unknown"
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrComponent
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Warn returns a recoverable component error. The engine logs it and lets
// the phase continue with the remaining components.
func Warn(component, message string, err error) error {
	return Wrap(ErrWarning, component, "", message, err)
}

// IsWarning reports whether err only carries a recoverable warning.
func IsWarning(err error) bool {
	return err != nil && errors.Is(err, ErrWarning)
}

// KindOf maps an error to its taxonomy bucket.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrWarning):
		return KindWarning
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrDependency):
		return KindDependency
	case errors.Is(err, ErrPersistence):
		return KindPersistence
	case errors.Is(err, ErrAborted):
		return KindAborted
	case errors.Is(err, ErrComponent):
		return KindComponent
	default:
		return KindUnknown
	}
}

// Detail summarizes a classified error for logging.
type Detail struct {
	Kind    Kind
	Message string
	Cause   error
}

// Details extracts the human-readable message of a wrapped error. The marker
// prefix is stripped so the message reads like the original failure.
func Details(err error) Detail {
	if err == nil {
		return Detail{}
	}
	kind := KindOf(err)
	msg := err.Error()
	for _, marker := range []error{ErrWarning, ErrConfiguration, ErrDependency, ErrPersistence, ErrAborted, ErrComponent} {
		prefix := marker.Error() + ": "
		if strings.HasPrefix(msg, prefix) {
			msg = strings.TrimPrefix(msg, prefix)
			break
		}
	}
	return Detail{Kind: kind, Message: strings.TrimSpace(msg), Cause: errors.Unwrap(err)}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "component failure"
	}
	return strings.Join(parts, ": ")
}
