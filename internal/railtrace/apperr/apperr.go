// Package apperr defines the error kinds surfaced by the component lifecycle core.
package apperr

import (
	"errors"
	"fmt"
)

// Kind 错误类别
type Kind string

const (
	NotFound               Kind = "NotFound"
	InvalidIdentifier      Kind = "InvalidIdentifier"
	InvalidArgument        Kind = "InvalidArgument"
	InvalidStateTransition Kind = "InvalidStateTransition"
	AllocationConflict     Kind = "AllocationConflict"
	EncodingError          Kind = "EncodingError"
	Unauthorized           Kind = "Unauthorized"
	Forbidden              Kind = "Forbidden"
	Internal               Kind = "Internal"
)

// Error implements error so a bare Kind can be used as an errors.Is target.
func (k Kind) Error() string {
	return string(k)
}

// Error carries a stable kind plus a human readable message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches either another *Error of the same kind or a bare Kind.
func (e *Error) Is(target error) bool {
	switch t := target.(type) {
	case Kind:
		return e.Kind == t
	case *Error:
		return e.Kind == t.Kind
	}
	return false
}

// New 创建错误
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap keeps err as the cause.
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of err, Internal for foreign errors.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// MessageOf returns the message of an *Error, or err.Error() otherwise.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
