// Package graphkeeperr defines the stable error kinds surfaced at every
// boundary of the core (Graph Store, Change Journal, Snapshot Engine,
// Command Broker, Public API Facade), via a sentinel-error plus
// wrapBackendError (internal/graphbackend) convention.
package graphkeeperr

import (
	"errors"
	"fmt"
)

// Kind is a stable, cross-language error classification. Values never
// change meaning once published.
type Kind string

const (
	NotFound    Kind = "NOT_FOUND"
	Validation  Kind = "VALIDATION"
	Conflict    Kind = "CONFLICT"
	WaitTimeout Kind = "WAIT_TIMEOUT"
	WaitCancel  Kind = "WAIT_CANCELLED"
	Backend     Kind = "BACKEND"
	Internal    Kind = "INTERNAL"
)

// Error is the single error type returned across the core's boundaries.
// It never wraps a sentinel-null convention alongside itself: every
// operation either returns (value, nil) or (zero, *Error).
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is supports errors.Is(err, graphkeeperr.ErrNotFound)-style checks by letting
// callers compare against an *Error sentinel of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New constructs an *Error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an *Error of the given kind around a lower-level cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf extracts the Kind from err, defaulting to Internal for errors that
// never passed through this package (a programmer error by definition).
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// sentinel is a comparison target for errors.Is, e.g. errors.Is(err, graphkeeperr.ErrNotFound).
func sentinel(k Kind) error { return &Error{Kind: k, Message: string(k)} }

var (
	ErrNotFound    = sentinel(NotFound)
	ErrValidation  = sentinel(Validation)
	ErrConflict    = sentinel(Conflict)
	ErrWaitTimeout = sentinel(WaitTimeout)
	ErrWaitCancel  = sentinel(WaitCancel)
	ErrBackend     = sentinel(Backend)
	ErrInternal    = sentinel(Internal)
)
