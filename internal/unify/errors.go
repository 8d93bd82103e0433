package unify

import (
	"errors"
	"fmt"
)

var (
	// ErrNotUnifiable is the ordinary failure of a top-level call.
	ErrNotUnifiable = errors.New("not unifiable")

	// ErrCannotPrune is returned by prune when the requested positions
	// cannot be removed. Callers treat it as an ordinary failure.
	ErrCannotPrune = errors.New("cannot prune")
)

// InvariantError reports caller misuse detected during unification, such
// as an instantiation whose length differs from its evar's context.
//
// Invariant errors abort the whole top-level call. The caller's evar map is
// never modified, so no partial definitions become visible.
type InvariantError struct {
	// Code identifies the violated invariant.
	Code InvariantCode

	// Message is a human-readable description.
	Message string

	// Details contains additional context.
	Details map[string]string
}

// InvariantCode categorizes invariant violations.
type InvariantCode string

const (
	// CodeArityMismatch: an instantiation length differs from the context length.
	CodeArityMismatch InvariantCode = "ARITY_MISMATCH"

	// CodeUnknownEvar: an evar occurrence names an id that was never allocated.
	CodeUnknownEvar InvariantCode = "UNKNOWN_EVAR"

	// CodeMissingDefinition: a definition was expected but is absent.
	CodeMissingDefinition InvariantCode = "MISSING_DEFINITION"

	// CodeUnboundRel: a bound variable points outside the environment.
	CodeUnboundRel InvariantCode = "UNBOUND_REL"
)

// Error implements the error interface.
func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsInvariantError reports whether err is an InvariantError.
// Uses errors.As to handle wrapped errors.
func IsInvariantError(err error) bool {
	var ie *InvariantError
	return errors.As(err, &ie)
}

// violate aborts the current top-level call. Engine.Unify recovers it.
func violate(code InvariantCode, format string, args ...any) {
	panic(&InvariantError{Code: code, Message: fmt.Sprintf(format, args...)})
}

// FuelExhaustedError is returned when a top-level call runs out of fuel.
//
// Exhaustion is terminal: once the budget is spent every pending
// sub-problem fails, so the call reports failure rather than a partial
// answer. It matches ErrNotUnifiable.
type FuelExhaustedError struct {
	Session string
	Steps   int
	Limit   int
}

// Error implements the error interface.
func (e *FuelExhaustedError) Error() string {
	return fmt.Sprintf("session %s exhausted its fuel: %d steps > %d limit",
		e.Session, e.Steps, e.Limit)
}

// Is makes errors.Is(err, ErrNotUnifiable) hold.
func (e *FuelExhaustedError) Is(target error) bool {
	return target == ErrNotUnifiable
}

// IsFuelExhausted reports whether err is a FuelExhaustedError.
func IsFuelExhausted(err error) bool {
	var fe *FuelExhaustedError
	return errors.As(err, &fe)
}
