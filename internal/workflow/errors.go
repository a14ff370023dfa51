package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAuthenticated occurs when no actor is present.
	ErrNotAuthenticated = errors.New("workflow: not authenticated")
	// ErrNotAuthorized occurs when the actor lacks a capability or is not a designated party.
	ErrNotAuthorized = errors.New("workflow: not authorized")
	// ErrInvalidTransition occurs when a change is illegal from the current status.
	ErrInvalidTransition = errors.New("workflow: invalid transition")
	// ErrConstraintViolation occurs when a dependent total exceeds its parent total.
	ErrConstraintViolation = errors.New("workflow: constraint violation")
	// ErrNotFound indicates a missing document or parent document.
	ErrNotFound = errors.New("workflow: not found")
	// ErrCreationExhausted indicates the numbering retry budget ran out.
	ErrCreationExhausted = errors.New("workflow: creation exhausted")
	// ErrUniqueViolation is raised by persistence when a document number is already taken.
	ErrUniqueViolation = errors.New("workflow: document number already exists")
)

// ConstraintError carries a user facing explanation of a violated rule.
type ConstraintError struct {
	Message string
}

func (e *ConstraintError) Error() string {
	return e.Message
}

// Is makes ConstraintError match ErrConstraintViolation.
func (e *ConstraintError) Is(target error) bool {
	return target == ErrConstraintViolation
}

// ExhaustedError is returned when every creation attempt collided.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("creation failed after %d attempts: %v", e.Attempts, e.Last)
}

// Is makes ExhaustedError match ErrCreationExhausted.
func (e *ExhaustedError) Is(target error) bool {
	return target == ErrCreationExhausted
}

// Unwrap exposes the last underlying error.
func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

func invalidTransition(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidTransition, fmt.Sprintf(format, args...))
}
