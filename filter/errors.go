package filter

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCondition is returned for structurally invalid conditions
	// (empty column, empty value set, inverted range).
	ErrInvalidCondition = errors.New("invalid filter condition")
	// ErrInvalidRegex is returned when a regular expression does not compile.
	ErrInvalidRegex = errors.New("invalid regex pattern")
	// ErrInvalidNumeric is returned for NaN or infinite thresholds and for
	// unparsable numbers in filter expressions.
	ErrInvalidNumeric = errors.New("invalid numeric threshold")
)

// Error describes a filter that could not be constructed.
//
// Both the kind sentinel and the underlying cause (if any) can be matched
// with errors.Is / errors.As.
type Error struct {
	Column string
	Kind   error
	cause  error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("filter on column %q: %v: %v", e.Column, e.Kind, e.cause)
	}
	return fmt.Sprintf("filter on column %q: %v", e.Column, e.Kind)
}

func (e *Error) Unwrap() []error {
	if e.cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.cause}
}

func newError(column string, kind, cause error) *Error {
	return &Error{Column: column, Kind: kind, cause: cause}
}
