package agentloop

import (
	"errors"
	"fmt"
	"time"
)

// DeniedError is a policy refusal: a path outside the project root, a
// sensitive file, or an unregistered capability. It is always recoverable
// and is reported to the model as ordinary tool output.
type DeniedError struct {
	Subject string // path or capability name
	Reason  string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("access denied: %s: %s", e.Subject, e.Reason)
}

// NotFoundError is a typed missing-file result, not a crash.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("not found: %s", e.Path)
}

// MalformedError covers unparsable invocation syntax and invalid arguments.
// Recoverable at turn granularity; reported back to the model as a tool error.
type MalformedError struct {
	Detail string
	Cause  error
}

func (e *MalformedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("malformed invocation: %s: %v", e.Detail, e.Cause)
	}
	return "malformed invocation: " + e.Detail
}

func (e *MalformedError) Unwrap() error { return e.Cause }

// TimeoutError reports a deadline expiry for a single invocation.
type TimeoutError struct {
	Tool  string
	Limit time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Tool, e.Limit)
}

// CancelledError reports that an invocation was cancelled externally.
type CancelledError struct {
	Tool string
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("%s cancelled", e.Tool)
}

// IsDenied reports whether err is a policy denial.
func IsDenied(err error) bool {
	var de *DeniedError
	return errors.As(err, &de)
}

// IsNotFound reports whether err is a typed not-found result.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
