package session

import (
	"errors"
	"fmt"
)

// ErrUnsupported marks operations this runtime does not implement.
var ErrUnsupported = errors.New("operation not supported")

// UsageError reports an API call made in the wrong state or with invalid
// arguments. Op names the offending call.
type UsageError struct {
	Op     string
	Reason string
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

func usageErr(op, format string, args ...any) *UsageError {
	return &UsageError{Op: op, Reason: fmt.Sprintf(format, args...)}
}

// ExecutionError wraps the first failure observed while running a graph.
// DeviceLost marks failures that invalidate the session permanently.
type ExecutionError struct {
	Err        error
	DeviceLost bool
}

func (e *ExecutionError) Error() string {
	if e.DeviceLost {
		return fmt.Sprintf("execution failed, device lost: %v", e.Err)
	}
	return fmt.Sprintf("execution failed: %v", e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
