// Package ferrors defines the error taxonomy shared by every scheduler
// component (§6/§7 of the frame scheduler design): a small, closed set of
// error kinds that callers can match on with errors.Is, wrapped the same
// way the rest of this codebase wraps errors (fmt.Errorf with %w).
package ferrors

import (
	"errors"
	"fmt"
)

// Kind enumerates the error taxonomy consumed by the scheduler core.
type Kind int

const (
	// OutOfMemory is returned when the Scope Allocator cannot satisfy an
	// allocation within its remaining capacity.
	OutOfMemory Kind = iota
	// InvalidState is returned for programmer errors detected at
	// compile/setup time: a cycle in the DAG, or an operation invoked
	// outside the state it is valid in (e.g. Execute without a successful
	// Compile).
	InvalidState
	// InvalidArgument is returned for malformed caller input (an out of
	// range NodeIndex passed where a valid one is required by a strict
	// API, or a nil callback).
	InvalidArgument
	// ThreadViolation is returned when a thread other than the Scope
	// Allocator's owner attempts to allocate from it.
	ThreadViolation
)

func (k Kind) String() string {
	switch k {
	case OutOfMemory:
		return "OutOfMemory"
	case InvalidState:
		return "InvalidState"
	case InvalidArgument:
		return "InvalidArgument"
	case ThreadViolation:
		return "ThreadViolation"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type carrying a Kind plus a wrapped cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a *Error for op with no wrapped cause.
func New(kind Kind, op string) error {
	return &Error{Kind: kind, Op: op}
}

// Wrap builds a *Error for op wrapping err. Returns nil if err is nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err (or any error it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind == kind
	}
	return false
}

// ErrCycleDetected is an InvalidState sentinel for a cycle among declared
// edges. dagsched.Compile reports cycles with its own InvalidState error
// rather than this value, so cycles are matched with Is(err, InvalidState).
var ErrCycleDetected = New(InvalidState, "compile")
