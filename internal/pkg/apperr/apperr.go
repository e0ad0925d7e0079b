package apperr

import (
	"errors"
	"fmt"
)

// Kind is the machine-checkable failure category. The API layer maps kinds
// to transport statuses; services never return untyped errors to handlers.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindAuthorization Kind = "authorization"
	KindNotFound      Kind = "not_found"
	KindLedger        Kind = "ledger"
	KindConsistency   Kind = "consistency"
	KindInternal      Kind = "internal"
)

// Error carries a human-readable reason plus a machine-checkable kind.
// Details holds structured payloads (e.g. itemized fraud warnings).
type Error struct {
	Kind    Kind
	Message string
	Details map[string]interface{}
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Validation(message string) *Error    { return New(KindValidation, message) }
func Authorization(message string) *Error { return New(KindAuthorization, message) }
func NotFound(message string) *Error      { return New(KindNotFound, message) }
func Ledger(message string, err error) *Error {
	return Wrap(KindLedger, message, err)
}
func Consistency(message string) *Error { return New(KindConsistency, message) }
func Internal(message string, err error) *Error {
	return Wrap(KindInternal, message, err)
}

// WithDetails attaches a structured payload and returns the same error.
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	e.Details = details
	return e
}

// KindOf returns the kind of err, or KindInternal for untyped errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// DetailsOf returns the structured details of err, if any.
func DetailsOf(err error) map[string]interface{} {
	var e *Error
	if errors.As(err, &e) {
		return e.Details
	}
	return nil
}
