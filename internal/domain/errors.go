package domain

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	KindTransport ErrorKind = iota + 1
	KindApplication
	KindValidation
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindApplication:
		return "application"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

var (
	// ErrTransport matches failures to reach the backend or non-2xx responses.
	ErrTransport = errors.New("transport error")
	// ErrApplication matches success:false or malformed envelopes.
	ErrApplication = errors.New("application error")
	// ErrValidation matches rejected user input and malformed payloads.
	ErrValidation = errors.New("validation error")

	ErrCacheMiss = errors.New("no cached presets")
)

type Error struct {
	Kind    ErrorKind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String() + " error"
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	switch target {
	case ErrTransport:
		return e.Kind == KindTransport
	case ErrApplication:
		return e.Kind == KindApplication
	case ErrValidation:
		return e.Kind == KindValidation
	}
	return false
}

func NewTransportError(op string, err error) *Error {
	return &Error{Kind: KindTransport, Op: op, Err: err}
}

func NewApplicationError(op, message string) *Error {
	return &Error{Kind: KindApplication, Op: op, Message: message}
}

func NewValidationError(op, message string) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: message}
}

// UserMessage returns the human-readable part of err for a toast.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return err.Error()
}
