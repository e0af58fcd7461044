package txtrace

import "errors"

// Code classifies the failure modes of the tracing API. It replaces the
// thread-local error slot of classic tracing C APIs with values that
// travel inside returned errors; String gives the human-readable text.
type Code uint8

const (
	CodeOK Code = iota
	// CodeInvalidHandle: operation given a freed or unknown entity handle.
	CodeInvalidHandle
	// CodeNilArgument: a required argument is missing.
	CodeNilArgument
	// CodeInvalidName: a name failed validation (for example, empty).
	CodeInvalidName
	// CodeSink: the output sink failed (open, write, or close).
	CodeSink
	// CodeNotOpen: lifecycle operation on an entity that is not open.
	CodeNotOpen
	// CodeAlreadyClosed: mutation attempted after the entity closed.
	CodeAlreadyClosed
	// CodeNotClosed: query that needs a closed entity ran on an open one.
	CodeNotClosed
)

func (c Code) String() string {
	switch c {
	case CodeOK:
		return "success"
	case CodeInvalidHandle:
		return "invalid handle"
	case CodeNilArgument:
		return "nil argument"
	case CodeInvalidName:
		return "invalid name"
	case CodeSink:
		return "sink failure"
	case CodeNotOpen:
		return "not open"
	case CodeAlreadyClosed:
		return "already closed"
	case CodeNotClosed:
		return "not closed"
	default:
		return "unknown error"
	}
}

// Error is a failure with a Code. All sentinel errors of this package
// are of this type, so errors.Is works against them and CodeOf can
// recover the code from wrapped errors.
type Error struct {
	Code Code
}

func (e *Error) Error() string { return e.Code.String() }

var (
	ErrInvalidHandle = &Error{Code: CodeInvalidHandle}
	ErrNilArgument   = &Error{Code: CodeNilArgument}
	ErrInvalidName   = &Error{Code: CodeInvalidName}
	ErrSink          = &Error{Code: CodeSink}
	ErrNotOpen       = &Error{Code: CodeNotOpen}
	ErrAlreadyClosed = &Error{Code: CodeAlreadyClosed}
	ErrNotClosed     = &Error{Code: CodeNotClosed}
)

// CodeOf extracts the Code carried by err, unwrapping as needed.
// It returns CodeOK for nil and CodeSink for errors that originate in
// the underlying sink without further classification.
func CodeOf(err error) Code {
	if err == nil {
		return CodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeSink
}
