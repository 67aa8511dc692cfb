// Package fault defines the error kinds the core raises so that callers can
// branch on the kind without matching message strings.
package fault

import (
	"errors"
	"fmt"
)

type Kind int

const (
	// KindInternal is everything unexpected: store connectivity, serialization
	// conflicts, bugs. Details must not leak to clients.
	KindInternal Kind = iota
	KindNotFound
	KindConflict
	KindInsufficientStock
	KindForbidden
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindInsufficientStock:
		return "insufficient_stock"
	case KindForbidden:
		return "forbidden"
	case KindValidation:
		return "validation"
	default:
		return "internal"
	}
}

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes errors.Is(err, fault.NotFound("")) style comparisons work on kind
// alone; two faults match when their kinds match.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func NotFound(msg string) *Error          { return New(KindNotFound, msg) }
func Conflict(msg string) *Error          { return New(KindConflict, msg) }
func InsufficientStock(msg string) *Error { return New(KindInsufficientStock, msg) }
func Forbidden(msg string) *Error         { return New(KindForbidden, msg) }
func Validation(msg string) *Error        { return New(KindValidation, msg) }

// Internal wraps an unexpected error. The message is safe to surface; the
// wrapped cause is for logs only.
func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Msg: msg, Err: err}
}

// KindOf reports the kind carried by err, or KindInternal when err is not a
// fault raised by this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
