package booking

import (
	"errors"
	"fmt"
)

// Kind classifies a failure by what retrying could change.
type Kind string

const (
	KindParse          Kind = "parse_failure"
	KindNavigation     Kind = "navigation_failure"
	KindClassification Kind = "classification_unknown"
	KindAction         Kind = "action_failure"
	KindSession        Kind = "session_failure"
)

// Error carries the failing operation and its Kind.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func errorf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the Kind of the outermost *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var bookingError *Error
	if errors.As(err, &bookingError) {
		return bookingError.Kind
	}
	return ""
}

// Retryable reports whether a fresh session could change the outcome.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindSession, KindAction, KindNavigation:
		return true
	default:
		return false
	}
}
