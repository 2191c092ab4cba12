// Package errs holds the error taxonomy shared by every layer. Handlers map
// the sentinels to HTTP status codes with errors.Is.
package errs

import (
	"errors"
	"fmt"

	"github.com/samber/oops"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrDuplicateIdentity = errors.New("identity already registered")
	ErrAuthentication    = errors.New("authentication failed")
	ErrNotFound          = errors.New("not found")
	ErrUnavailable       = errors.New("dependency unavailable")
)

// ValidationError names the field that broke an invariant and why.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func (e *ValidationError) Unwrap() error { return e.Err }

// Invalid builds a ValidationError without a cause.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// DuplicateError reports which unique field collided.
type DuplicateError struct {
	Field string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s already registered", e.Field)
}

func (e *DuplicateError) Is(target error) bool { return target == ErrDuplicateIdentity }

// Unavailable wraps an infrastructure failure so callers can tell it is
// retryable.
func Unavailable(op string, err error) error {
	return oops.
		Code("DEPENDENCY_UNAVAILABLE").
		With("operation", op).
		Wrap(fmt.Errorf("%w: %w", ErrUnavailable, err))
}
