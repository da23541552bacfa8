package core

import (
	"errors"
	"fmt"
)

// Error kinds. Every error produced by the auth and resource layers wraps
// exactly one of these, so callers can branch with errors.Is.
var (
	ErrValidation     = errors.New("validation error")
	ErrConflict       = errors.New("conflict")
	ErrAuthentication = errors.New("authentication error")
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("not found")
	ErrDependency     = errors.New("dependency error")
)

// Error carries a caller-facing message together with its kind and,
// for dependency failures, the underlying cause.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// Validation returns an ErrValidation error with the given message.
func Validation(format string, args ...any) error {
	return &Error{Kind: ErrValidation, Message: fmt.Sprintf(format, args...)}
}

// Conflict returns an ErrConflict error with the given message.
func Conflict(format string, args ...any) error {
	return &Error{Kind: ErrConflict, Message: fmt.Sprintf(format, args...)}
}

// Unauthenticated returns an ErrAuthentication error with the given message.
func Unauthenticated(format string, args ...any) error {
	return &Error{Kind: ErrAuthentication, Message: fmt.Sprintf(format, args...)}
}

// Forbidden returns an ErrForbidden error with the given message.
func Forbidden(format string, args ...any) error {
	return &Error{Kind: ErrForbidden, Message: fmt.Sprintf(format, args...)}
}

// NotFound returns an ErrNotFound error with the given message.
func NotFound(format string, args ...any) error {
	return &Error{Kind: ErrNotFound, Message: fmt.Sprintf(format, args...)}
}

// Dependency wraps a store or broker failure.
func Dependency(message string, err error) error {
	return &Error{Kind: ErrDependency, Message: message, Err: err}
}

// Message returns the caller-facing part of err. Dependency causes are
// stripped so internal details never reach a client by accident.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
