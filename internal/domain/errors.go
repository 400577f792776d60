package domain

import "errors"

// Core error taxonomy. Callers classify failures with errors.Is; every
// returned error wraps one of these sentinels with operation context.
var (
	// ErrDomainState indicates an operation attempted out of required
	// order, such as adding a layer before a substrate exists.
	ErrDomainState = errors.New("domain state error")

	// ErrValidation indicates malformed numeric input: non-finite, or
	// non-positive where a positive value is required.
	ErrValidation = errors.New("validation error")

	// ErrIndex indicates an interface index outside the current stack.
	ErrIndex = errors.New("interface index out of range")

	// ErrNumericalInstability indicates the solver recursion produced
	// non-finite or inconsistent results, typically from the fast
	// backend on an ill-conditioned stack. Recoverable: callers may
	// retry on the precise backend.
	ErrNumericalInstability = errors.New("numerical instability")

	// ErrConfiguration indicates an unresolvable parameter path, an
	// empty dataset pairing, or a fit with zero varying parameters.
	ErrConfiguration = errors.New("configuration error")
)
