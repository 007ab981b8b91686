package errs

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindUnknown      Kind = "UNKNOWN"
	KindInvalidInput Kind = "INVALID_INPUT"
	KindNotFound     Kind = "NOT_FOUND"
	KindUnavailable  Kind = "UNAVAILABLE"
	KindSaturated    Kind = "SATURATED"
	KindMalformed    Kind = "MALFORMED"
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}

	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, message string) error {
	return &Error{
		Kind:    kind,
		Message: message,
	}
}

func Newf(kind Kind, format string, args ...any) error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

func Wrap(err error, kind Kind, message string) error {
	if err == nil {
		return nil
	}

	return &Error{
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// KindOf walks the chain; errors without a Kind are KindUnknown.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}

	return KindUnknown
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Terminal errors are never retried; unknown kinds count as transient.
func IsTerminal(err error) bool {
	switch KindOf(err) {
	case KindInvalidInput, KindNotFound, KindMalformed:
		return true
	default:
		return false
	}
}

var (
	ErrRecordNotFound = New(KindNotFound, "record not found")
	ErrUnknownEvent   = New(KindInvalidInput, "unknown event type")
)
