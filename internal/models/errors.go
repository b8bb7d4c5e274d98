package models

import (
	"errors"
	"fmt"
)

// Kind classifies pipeline failures for the user facing shells.
type Kind int

const (
	KindUnknown Kind = iota
	KindFormat
	KindAuth
	KindNetwork
	KindBackend
	KindEmptyContent
	KindInvalidInput
)

func (k Kind) String() string {
	switch k {
	case KindFormat:
		return "FormatError"
	case KindAuth:
		return "AuthError"
	case KindNetwork:
		return "NetworkError"
	case KindBackend:
		return "BackendError"
	case KindEmptyContent:
		return "EmptyContentError"
	case KindInvalidInput:
		return "InvalidInputError"
	default:
		return "Error"
	}
}

// Sentinels for errors.Is. Every *Error matches the sentinel of its kind.
var (
	ErrFormat       = &Error{Kind: KindFormat}
	ErrAuth         = &Error{Kind: KindAuth}
	ErrNetwork      = &Error{Kind: KindNetwork}
	ErrBackend      = &Error{Kind: KindBackend}
	ErrEmptyContent = &Error{Kind: KindEmptyContent}
	ErrInvalidInput = &Error{Kind: KindInvalidInput}
)

// Error carries the kind of a failure, the operation that failed and the cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds an *Error whose cause is formatted from the arguments.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Err == nil && t.Kind == e.Kind
}

// KindOf returns the kind of the outermost *Error in the chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
