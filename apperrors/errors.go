package apperrors

import (
	"errors"
	"fmt"

	"github.com/mdobak/go-xerrors"
)

// Error is the typed error carried across the core's component boundaries.
// It pairs a Kind (used for HTTP status mapping) with the underlying cause,
// wrapped once at the point of origin via xerrors so a stack trace survives
// up to the handler or CLI command that logs it.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Wrap attaches kind to err, preserving a stack trace via xerrors.New. If err
// is nil, Wrap returns nil.
func Wrap(kind Kind, message string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, cause: xerrors.New(err)}
}

// New constructs a kind error with no underlying cause, for cases where the
// fault originates here rather than in a lower layer.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// KindOf recovers the Kind carried by err, if any, defaulting to StoreFailure
// for an error that did not originate from this package (treated as an
// unclassified internal fault rather than silently reported as a 400).
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return StoreFailure
}

func InputMissingf(format string, args ...any) *Error {
	return New(InputMissing, fmt.Sprintf(format, args...))
}

func UnsupportedFormatf(format string, args ...any) *Error {
	return New(UnsupportedFormat, fmt.Sprintf(format, args...))
}

func NotFoundf(format string, args ...any) *Error {
	return New(NotFound, fmt.Sprintf(format, args...))
}
