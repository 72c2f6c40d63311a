package scheduler

import (
	"errors"
	"fmt"
)

// JobError wraps a failure raised by a job callback during a tick.
//
// JobError is what the scheduler forwards to a root's ErrorReporter.
type JobError struct {
	// RootID identifies the root the job belongs to. Empty for global hooks.
	RootID string

	// JobID identifies the job or hook.
	JobID string

	// Frame is the frame number the failure happened in.
	Frame int64

	// Err is the returned error or a *PanicError.
	Err error
}

// Error implements the error interface.
func (e *JobError) Error() string {
	if e.RootID != "" {
		return fmt.Sprintf("job %s (root=%s, frame=%d): %v", e.JobID, e.RootID, e.Frame, e.Err)
	}
	return fmt.Sprintf("job %s (frame=%d): %v", e.JobID, e.Frame, e.Err)
}

// Unwrap returns the underlying error.
func (e *JobError) Unwrap() error {
	return e.Err
}

// PanicError is a recovered panic from a callback.
type PanicError struct {
	Value any
	Stack []byte
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// IsPanic returns true if err is, or wraps, a recovered panic.
// Uses errors.As to handle wrapped errors.
func IsPanic(err error) bool {
	var pe *PanicError
	return errors.As(err, &pe)
}

// ErrorReporter is the optional error channel of a root snapshot.
// Job failures of that root are passed to SetError.
type ErrorReporter interface {
	SetError(err error)
}
