// Package failure defines the error kinds surfaced by the fulfillment core.
//
// Every domain sentinel is a *Error carrying one Kind. Callers match either
// the sentinel itself or the whole kind:
//
//	errors.Is(err, cart.ErrAlreadyOpen) // exact
//	errors.Is(err, failure.Conflict)    // any conflict
package failure

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Kind classifies a domain failure.
type Kind uint8

const (
	// NotFound means a referenced product, cart, cart item, order or customer
	// does not exist.
	NotFound Kind = iota + 1
	// BadRequest means the input is invalid for the current state.
	BadRequest
	// Conflict means the operation collides with existing state or lost a race.
	Conflict
	// Forbidden means the caller may not touch the target resource.
	Forbidden
)

func (k Kind) Error() string {
	switch k {
	case NotFound:
		return "not found"
	case BadRequest:
		return "bad request"
	case Conflict:
		return "conflict"
	case Forbidden:
		return "forbidden"
	default:
		return fmt.Sprintf("failure kind %d", uint8(k))
	}
}

// Error is a domain failure with a human-readable message.
type Error struct {
	Kind    Kind
	Message string
}

// New returns a failure of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Errorf formats a failure message.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string { return e.Message }

// Unwrap exposes the kind so errors.Is(err, failure.Conflict) matches.
func (e *Error) Unwrap() error { return e.Kind }

// KindOf reports the kind of the first failure in err's chain, or zero.
func KindOf(err error) Kind {
	var k Kind
	if errors.As(err, &k) {
		return k
	}
	return 0
}
