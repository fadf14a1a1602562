// Package apperr defines the error taxonomy shared by the service layer and
// the HTTP handlers. Services return *Error values tagged with a Kind; the
// handler layer maps each Kind to an HTTP status in a single place so no raw
// storage error ever reaches a response body.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	KindInternal Kind = iota
	KindUnauthenticated
	KindInvalidCredential
	KindInvalidCode
	KindAttemptsExhausted
	KindForbidden
	KindNotFound
	KindConflict
	KindPreconditionFailed
	KindValidation
	KindArtifactGeneration
)

func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindInvalidCredential:
		return "invalid_credential"
	case KindInvalidCode:
		return "invalid_code"
	case KindAttemptsExhausted:
		return "attempts_exhausted"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindPreconditionFailed:
		return "precondition_failed"
	case KindValidation:
		return "validation_failed"
	case KindArtifactGeneration:
		return "artifact_generation_failed"
	default:
		return "internal"
	}
}

// Error is a classified failure. Message is safe to show to API callers;
// Err carries the underlying cause for logging only.
type Error struct {
	Kind    Kind
	Message string
	Err     error
	// Details is optional structured data returned alongside the message
	// (e.g. remaining verification attempts).
	Details map[string]any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error without an underlying cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap builds an *Error that keeps err as its cause.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// WithDetail returns a copy of e carrying an extra detail entry.
func (e *Error) WithDetail(key string, v any) *Error {
	cp := *e
	cp.Details = make(map[string]any, len(e.Details)+1)
	for k, val := range e.Details {
		cp.Details[k] = val
	}
	cp.Details[key] = v
	return &cp
}

// KindOf reports the Kind of err. Errors that are not *Error are internal.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func NotFound(msg string) *Error     { return New(KindNotFound, msg) }
func Forbidden(msg string) *Error    { return New(KindForbidden, msg) }
func Conflict(msg string) *Error     { return New(KindConflict, msg) }
func Validation(msg string) *Error   { return New(KindValidation, msg) }
func Internal(msg string, err error) *Error {
	return Wrap(KindInternal, msg, err)
}
