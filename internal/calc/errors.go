package calc

import (
	"errors"
	"fmt"

	"sheetcalc/internal/grid"
)

// ErrorKind classifies evaluation failures.
type ErrorKind string

const (
	ErrParse           ErrorKind = "parse"            // malformed call or range
	ErrReference       ErrorKind = "reference"        // token is not a valid A1 reference
	ErrUnknownFunction ErrorKind = "unknown_function" // name missing from the function table
	ErrTypeCoercion    ErrorKind = "type_coercion"    // operand cannot become the required type
	ErrRecursion       ErrorKind = "recursion"        // depth or visit limit exceeded, or a circular reference
	ErrInternal        ErrorKind = "internal"         // recovered panic
)

// Error is the only error type that leaves the evaluator.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// asError tags any error coming out of the descent. Reference errors from
// the grid package keep their identity through Unwrap.
func asError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	var re *grid.RefError
	if errors.As(err, &re) {
		return &Error{Kind: ErrReference, Message: re.Error(), Err: err}
	}
	return &Error{Kind: ErrInternal, Message: err.Error(), Err: err}
}

// KindOf returns the kind of an evaluation error, or "" for nil and
// foreign errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
