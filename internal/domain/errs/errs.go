// Package errs defines the outcome kinds shared by the compliance and
// enrollment services.
//
// Domain-validation outcomes (NotFound, Forbidden, AlreadyEnrolled, ...)
// are sentinel errors that callers branch on with errors.Is. Record store
// failures are wrapped with Storage so they stay distinguishable from
// validation outcomes while keeping the driver error in the chain.
package errs

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound               = errors.New("not found")
	ErrForbidden              = errors.New("forbidden")
	ErrAlreadyEnrolled        = errors.New("volunteer is already enrolled in this initiative")
	ErrNotEnrolled            = errors.New("volunteer is not enrolled in this initiative")
	ErrCapacityExceeded       = errors.New("initiative has reached its volunteer capacity")
	ErrNotAcceptingVolunteers = errors.New("initiative is not accepting volunteers")
	ErrInvalidTransition      = errors.New("invalid initiative status transition")
	ErrInvalid                = errors.New("invalid input")
	ErrStorage                = errors.New("storage failure")
)

// Kind names an outcome for presentation layers.
type Kind string

const (
	KindNone                   Kind = ""
	KindNotFound               Kind = "not_found"
	KindForbidden              Kind = "forbidden"
	KindAlreadyEnrolled        Kind = "already_enrolled"
	KindNotEnrolled            Kind = "not_enrolled"
	KindCapacityExceeded       Kind = "capacity_exceeded"
	KindNotAcceptingVolunteers Kind = "not_accepting_volunteers"
	KindInvalidTransition      Kind = "invalid_transition"
	KindInvalid                Kind = "invalid"
	KindStorage                Kind = "storage_failure"
	KindUnknown                Kind = "unknown"
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrNotFound, KindNotFound},
	{ErrForbidden, KindForbidden},
	{ErrAlreadyEnrolled, KindAlreadyEnrolled},
	{ErrNotEnrolled, KindNotEnrolled},
	{ErrCapacityExceeded, KindCapacityExceeded},
	{ErrNotAcceptingVolunteers, KindNotAcceptingVolunteers},
	{ErrInvalidTransition, KindInvalidTransition},
	{ErrInvalid, KindInvalid},
	{ErrStorage, KindStorage},
}

// KindOf classifies err. Nil yields KindNone; errors outside the taxonomy
// yield KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindUnknown
}

// StorageError records which record store operation failed.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrStorage) true for any StorageError.
func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// Storage wraps a record store error. A nil err returns nil.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// Invalid returns an ErrInvalid-wrapping error with a message.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}
