package types

import (
	"errors"
	"fmt"
)

// ErrorKind is the category of an error surfaced to callers. The
// request layer prefixes response messages with the kind so clients
// can branch without parsing prose.
type ErrorKind string

const (
	ErrValidation    ErrorKind = "validation"
	ErrPathEscape    ErrorKind = "path-escape"
	ErrNotFound      ErrorKind = "not-found"
	ErrInvalidUpdate ErrorKind = "invalid-update"
	ErrIO            ErrorKind = "io"
)

// Error is a kinded error. Wrapped causes stay reachable through
// errors.Is / errors.As.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a kinded error with a plain message.
func NewError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Errorf creates a kinded error with a formatted message.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// WrapError attaches a kind to an underlying error.
func WrapError(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// IsKind reports whether any error in the chain carries the kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf returns the kind of the first kinded error in the chain, or
// ErrIO when the chain carries no kind (raw failures are I/O as far
// as callers are concerned).
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrIO
}
