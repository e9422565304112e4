package domain

import (
	"errors"
	"fmt"
)

// ErrTooManyActiveStreams is returned when a user is already at their
// concurrent streaming session limit. It maps to a 429 at the HTTP edge
// and is never retried by the gateway itself.
var ErrTooManyActiveStreams = errors.New("too many active streams for user")

// UpstreamError wraps failures talking to the inference server, either
// before a stream was established (connect, non-2xx) or mid-stream
type UpstreamError struct {
	Err        error
	Operation  string
	URL        string
	StatusCode int
}

func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("upstream %s failed for %s: HTTP %d: %v", e.Operation, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("upstream %s failed for %s: %v", e.Operation, e.URL, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func NewUpstreamError(operation, url string, statusCode int, err error) *UpstreamError {
	return &UpstreamError{
		Operation:  operation,
		URL:        url,
		StatusCode: statusCode,
		Err:        err,
	}
}

// PersistenceError wraps failures writing messages or usage records after a
// stream has completed. These never propagate to the caller - the response
// bytes were already delivered.
type PersistenceError struct {
	Err       error
	Operation string
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s failed: %v", e.Operation, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func NewPersistenceError(operation string, err error) *PersistenceError {
	return &PersistenceError{Operation: operation, Err: err}
}
