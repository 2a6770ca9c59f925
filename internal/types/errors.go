package types

import "errors"

// Error taxonomy shared across handlers, services and repositories.
// Handlers translate these into HTTP status codes; everything else wraps them
// with context via fmt.Errorf("...: %w", err).
var (
	// ErrValidation marks bad or missing input. No state change happened.
	ErrValidation = errors.New("validation failed")

	// ErrAuth marks a bad credential or an unauthenticated caller.
	ErrAuth = errors.New("authentication failed")

	// ErrForbidden marks a caller that is authenticated but not allowed
	// (wrong role, blocked account).
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound marks a referenced entity that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks duplicate registration data or a state transition
	// that already happened (an already-closed auction is absorbed as a
	// no-op instead, see the scheduler).
	ErrConflict = errors.New("conflict")
)
