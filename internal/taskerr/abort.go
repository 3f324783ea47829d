package taskerr

import (
	"fmt"
	"strings"
)

// AbortError is returned to the caller of an aborted task. Reason is the
// human-readable cause; Diagnostics carries the crash bundle (stack trace and
// recent log lines) for panics.
type AbortError struct {
	Task        string
	Phase       string
	Plugin      string
	Reason      string
	Diagnostics string
	Cause       error
}

func (e *AbortError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "task %s aborted", e.Task)
	if e.Phase != "" {
		fmt.Fprintf(&b, " during %s", e.Phase)
	}
	if e.Plugin != "" {
		fmt.Fprintf(&b, " (plugin %s)", e.Plugin)
	}
	if e.Reason != "" {
		fmt.Fprintf(&b, ": %s", e.Reason)
	}
	return b.String()
}

// Unwrap exposes both the abort marker and the underlying cause.
func (e *AbortError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrAborted}
	}
	return []error{ErrAborted, e.Cause}
}
