package model

import (
	"context"
	"errors"
)

// Sentinel kinds for quiz errors. Match with errors.Is.
var (
	ErrNetwork      = errors.New("network error")
	ErrDecode       = errors.New("decode error")
	ErrInvalidInput = errors.New("invalid input")
	ErrEmptyCatalog = errors.New("no dog breeds available")
)

// DefaultErrorMessage is shown when an error carries no usable text.
const DefaultErrorMessage = "An unexpected error occurred"

// Error is a classified failure carrying a human-readable message.
type Error struct {
	Kind error  // one of the sentinel kinds above
	Msg  string // message for people; falls back to Err, then Kind
	Err  error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Err.Error()
	case e.Kind != nil:
		return e.Kind.Error()
	default:
		return DefaultErrorMessage
	}
}

// Unwrap exposes both the kind and the cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// NetworkError reports a transport failure.
func NetworkError(msg string, cause error) error {
	return &Error{Kind: ErrNetwork, Msg: msg, Err: cause}
}

// DecodeError reports a malformed upstream response.
func DecodeError(msg string, cause error) error {
	return &Error{Kind: ErrDecode, Msg: msg, Err: cause}
}

// InvalidInputError reports a programmer error such as an empty breed set.
func InvalidInputError(msg string) error {
	return &Error{Kind: ErrInvalidInput, Msg: msg}
}

// Message returns the text a player should see for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Error()
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "request timed out"
	case errors.Is(err, ErrEmptyCatalog):
		return ErrEmptyCatalog.Error()
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return DefaultErrorMessage
}
