package errs

import (
	"context"
	"errors"
	"fmt"

	cr "github.com/cockroachdb/errors"
)

// Sentinels every error returned by the service can be matched against with errors.Is.
var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrConflict          = errors.New("version conflict")
	ErrForbidden         = errors.New("forbidden")
	ErrTimeout           = errors.New("deadline exceeded")
	ErrStorage           = errors.New("storage failure")
)

// ValidationError names the offending input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func Validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// InvalidTransitionError names the current and requested states.
type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool { return target == ErrInvalidTransition }

func InvalidTransition(from, to fmt.Stringer) error {
	return &InvalidTransitionError{From: from.String(), To: to.String()}
}

// StorageError wraps a persistence or collaborator failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// TimeoutError is returned when a store call runs past its deadline.
type TimeoutError struct {
	Op  string
	Err error
}

func (e *TimeoutError) Error() string { return e.Op + ": " + ErrTimeout.Error() }

func (e *TimeoutError) Unwrap() error { return e.Err }

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// Storage classifies a low-level error from op. Nil stays nil and errors that
// already belong to the taxonomy pass through untouched.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	if Classified(err) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Op: op, Err: cr.WithStack(err)}
	}
	return &StorageError{Op: op, Err: cr.WithStack(err)}
}

func NotFound(what, id string) error {
	return cr.Wrapf(ErrNotFound, "%s %s", what, id)
}

func Conflict(what, id string) error {
	return cr.Wrapf(ErrConflict, "%s %s", what, id)
}

func Forbidden(reason string) error {
	return cr.Wrap(ErrForbidden, reason)
}

func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return cr.Wrap(err, msg)
}

// Classified reports whether err already carries one of the taxonomy sentinels.
func Classified(err error) bool {
	for _, s := range []error{ErrValidation, ErrNotFound, ErrInvalidTransition, ErrConflict, ErrForbidden, ErrTimeout, ErrStorage} {
		if errors.Is(err, s) {
			return true
		}
	}
	return false
}

// Retryable reports whether a caller may re-read and try again.
func Retryable(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, ErrTimeout)
}
