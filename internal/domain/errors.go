package domain

import (
	"errors"
	"fmt"
)

// Business-rule errors. All of them are recovered locally and reported
// only to the originating connection; none are fatal to the process.
var (
	// ErrNotFound means the conversation id is unknown.
	ErrNotFound = errors.New("conversation not found")

	// ErrForbidden means an agent acted outside its assignment.
	ErrForbidden = errors.New("agent is not assigned to this conversation")

	// ErrConflict means the conversation is already assigned to a
	// different agent.
	ErrConflict = errors.New("conversation already assigned to another agent")

	// ErrClosed means a write was attempted on a closed conversation.
	ErrClosed = errors.New("conversation is closed")

	// ErrUnauthorized means the connection presented a bad or missing
	// credential and was refused before any event was processed.
	ErrUnauthorized = errors.New("invalid or missing credential")

	// ErrStore wraps durable-store failures. Transient; the core never
	// retries, callers apply their own policy.
	ErrStore = errors.New("store failure")
)

// ValidationError reports a malformed payload: missing required field,
// empty content, content over length.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// StoreError wraps err so callers can match it with errors.Is(err, ErrStore).
func StoreError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStore, op, err)
}
