package shared

import (
	"errors"
	"fmt"
)

// ErrorKind classifies primary-path failures so callers can decide whether
// to retry, prompt re-entry, or show a terminal error.
type ErrorKind string

const (
	// KindValidation marks malformed or missing request fields, rejected
	// before touching the store.
	KindValidation ErrorKind = "validation"

	// KindNotFound marks a referenced session or duel that does not exist.
	KindNotFound ErrorKind = "not_found"

	// KindInvalidState marks an operation that is not legal in the target's
	// current lifecycle state.
	KindInvalidState ErrorKind = "invalid_state"

	// KindForbidden marks a caller identity not authorized for the target.
	KindForbidden ErrorKind = "forbidden"

	// KindTransientStore marks an I/O failure against the store. Logged and
	// surfaced to the caller, never silently swallowed.
	KindTransientStore ErrorKind = "transient_store"
)

// Error carries a taxonomy kind plus a machine-readable reason. The reason
// is safe to return to clients; wrapped internal detail is not.
type Error struct {
	Kind   ErrorKind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewValidationError reports a malformed request.
func NewValidationError(reason string) *Error {
	return &Error{Kind: KindValidation, Reason: reason}
}

// NewNotFoundError reports a missing entity.
func NewNotFoundError(reason string, err error) *Error {
	return &Error{Kind: KindNotFound, Reason: reason, Err: err}
}

// NewInvalidStateError reports an operation illegal in the current state.
func NewInvalidStateError(reason string) *Error {
	return &Error{Kind: KindInvalidState, Reason: reason}
}

// NewForbiddenError reports an unauthorized caller.
func NewForbiddenError(reason string) *Error {
	return &Error{Kind: KindForbidden, Reason: reason}
}

// NewTransientStoreError wraps a store I/O failure.
func NewTransientStoreError(reason string, err error) *Error {
	return &Error{Kind: KindTransientStore, Reason: reason, Err: err}
}

// KindOf extracts the taxonomy kind from err. Unclassified errors are
// treated as transient store failures so no internal detail leaks out.
func KindOf(err error) ErrorKind {
	var taxonomyErr *Error
	if errors.As(err, &taxonomyErr) {
		return taxonomyErr.Kind
	}
	return KindTransientStore
}

// ReasonOf extracts the client-safe reason from err, or a generic message
// for unclassified errors.
func ReasonOf(err error) string {
	var taxonomyErr *Error
	if errors.As(err, &taxonomyErr) {
		return taxonomyErr.Reason
	}
	return "internal error"
}
