package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for conditions callers branch on with errors.Is.
var (
	// ErrSessionNotFound is returned for operations on an unknown or
	// already-closed session id. Reported, not fatal.
	ErrSessionNotFound = errors.New("session not found")

	// ErrAlreadyRunning is returned when a second workflow-advancing
	// request arrives while one is in flight for the same session.
	ErrAlreadyRunning = errors.New("session already has an operation in flight")

	// ErrVerificationPending is returned when a second verification
	// request is raised while one is still unresolved.
	ErrVerificationPending = errors.New("a verification request is already pending")

	// ErrNoPendingVerification is returned when an input value arrives
	// for a session that is not awaiting one.
	ErrNoPendingVerification = errors.New("no verification request is pending")

	// ErrVerificationCancelled signals that a pending verification was
	// abandoned because its session closed.
	ErrVerificationCancelled = errors.New("verification cancelled: session closed")
)

// ValidationError marks a malformed request rejected before dispatch.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NewValidationError builds a ValidationError from a format string.
func NewValidationError(format string, a ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, a...)}
}

// InitializationError means a session could not be created because the
// automation capability failed to start. The session is not registered.
type InitializationError struct {
	Cause error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("failed to initialize automation session: %v", e.Cause)
}

func (e *InitializationError) Unwrap() error { return e.Cause }

// InvalidStateError marks an operation attempted in a state that does not
// permit it (terminal, or awaiting input).
type InvalidStateError struct {
	Op    string
	State SessionState
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("operation %q not allowed in state %q", e.Op, e.State)
}

// ActionError wraps a failed automation instruction with the operation
// that issued it. Partial progress is preserved by the caller.
type ActionError struct {
	Op    string
	Cause error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Cause)
}

func (e *ActionError) Unwrap() error { return e.Cause }
