package core

import (
	"errors"
	"fmt"
)

// ErrorKind distinguishes failure classes of an analysis run.
type ErrorKind string

const (
	KindMissingInput      ErrorKind = "MissingInput"
	KindUnsupportedFormat ErrorKind = "UnsupportedFormat"
	KindSchemaError       ErrorKind = "SchemaError"
	KindMalformedAmount   ErrorKind = "MalformedAmount"
	KindRenderingFailure  ErrorKind = "RenderingFailure"
	KindInternal          ErrorKind = "Internal"
)

// Error is a structured analysis failure. Line is the 1-based source line
// when the failure belongs to a single row, zero otherwise.
type Error struct {
	Kind    ErrorKind
	Message string
	Line    int
	Cause   error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	if e.Line > 0 {
		msg = fmt.Sprintf("%s (line %d)", msg, e.Line)
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error with the same Kind, so errors.Is(err, &Error{Kind: k}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Line == 0
}

// NewError builds an *Error without a cause.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError builds an *Error around cause.
func WrapError(kind ErrorKind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf returns the kind carried by err, or KindInternal when err is not an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
