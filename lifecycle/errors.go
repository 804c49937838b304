/*
errors.go - Centralized error taxonomy

PURPOSE:
  All error kinds in one place for consistency and discoverability. The
  HTTP layer maps these onto distinct status codes, so the core never
  collapses them into one generic failure:

  1. Validation errors - bad input shape; surfaced synchronously, never retried
  2. Transition errors - illegal FSM move; caller picks a legal transition
  3. Not-found errors  - missing referenced record
  4. Integrity errors  - fatal invariant violations (duplicate loan term)
  5. Lookup errors     - programmer/config mistakes (unknown frequency)

USAGE:
  Domain packages wrap these sentinels with context:

    if line == nil {
        return fmt.Errorf("credit line %s: %w", id, lifecycle.ErrNotFound)
    }

SEE ALSO:
  - machine.go: returns *InvalidTransitionError
  - api: maps categories to HTTP status codes
*/
package lifecycle

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the root of all input-shape failures (negative
	// amounts, digit overflow, invalid enum values, out-of-range rates).
	ErrValidation = errors.New("validation failed")

	// ErrInvalidTransition is the root of all illegal FSM moves.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrIntegrity marks fatal invariant violations, such as a second loan
	// term for the same credit subline. Not user-correctable.
	ErrIntegrity = errors.New("integrity violation")

	// ErrLookup marks programmer/config errors such as an unrecognized
	// enum key reaching the engines. Not user-correctable.
	ErrLookup = errors.New("lookup failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidTransitionError names both endpoints of a rejected transition.
type InvalidTransitionError struct {
	Current   string
	Requested string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition from %s to %s", e.Current, e.Requested)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// ValidationError reports a single rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true when the error is caused by invalid client
// input and maps to a 4xx response.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrInvalidTransition)
}

// IsNotFound returns true when the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsFatal returns true for errors that are not user-correctable.
func IsFatal(err error) bool {
	return errors.Is(err, ErrIntegrity) || errors.Is(err, ErrLookup)
}
