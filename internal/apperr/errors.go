// Package apperr defines the typed, client-facing error taxonomy shared by
// the service and API layers. None of these errors are retried internally;
// callers re-fetch and resubmit.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an error for transport mapping.
type Kind string

const (
	// KindValidation is a schema or shape violation caught before any write.
	KindValidation Kind = "validation"
	// KindConflict covers version-already-exists, stale revision and
	// draft-already-exists.
	KindConflict Kind = "conflict"
	// KindNotFound is a missing template, workflow, draft, instance or step.
	KindNotFound Kind = "not_found"
	// KindForbidden is a non-owner draft mutation or a non-admin write.
	KindForbidden Kind = "forbidden"
	// KindConstraint is an aggregated override-constraint violation.
	KindConstraint Kind = "constraint_violation"
	// KindUpstream means the external execution engine rejected the call.
	KindUpstream Kind = "upstream"
)

// Error is a kinded, client-facing error with a human-readable message.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches errors of the same kind, so sentinel comparisons like
// errors.Is(err, apperr.Conflict("")) work across wrapping.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

// KindOf returns the kind of err, or the empty kind for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Validation creates a validation error.
func Validation(format string, args ...any) *Error {
	return newf(KindValidation, format, args...)
}

// Conflict creates a conflict error.
func Conflict(format string, args ...any) *Error {
	return newf(KindConflict, format, args...)
}

// NotFound creates a not-found error.
func NotFound(format string, args ...any) *Error {
	return newf(KindNotFound, format, args...)
}

// Forbidden creates a forbidden error.
func Forbidden(format string, args ...any) *Error {
	return newf(KindForbidden, format, args...)
}

// Upstream wraps an execution-engine failure, preserving the engine's own
// error text in the message.
func Upstream(err error, format string, args ...any) *Error {
	e := newf(KindUpstream, format, args...)
	e.Err = err
	return e
}

// ConstraintViolation aggregates every violated override key into a single
// error so a client can fix everything in one pass.
func ConstraintViolation(keys []string) *Error {
	return newf(KindConstraint,
		"changes to the following properties are not permitted: %s",
		strings.Join(keys, ", "))
}

// Wrap attaches a cause to a taxonomy error built by one of the constructors.
func Wrap(err error, kind Kind, format string, args ...any) *Error {
	e := newf(kind, format, args...)
	e.Err = err
	return e
}
