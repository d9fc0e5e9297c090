package compile

import "errors"

// ---------------------------------------------------------------------------
// Error taxonomy
//
// Compilation either produces a complete module or fails with one of these.
// Callers match with errors.Is; the wrapped message carries the offending
// name, so "unbound identifier: x" both classifies and locates the fault.
// ---------------------------------------------------------------------------

var (
	// ErrUnboundIdentifier reports a name that resolves to nothing in the
	// scope where it is read, assigned, or called.
	ErrUnboundIdentifier = errors.New("unbound identifier")

	// ErrUnboundLabel reports a break whose label is not visible from the
	// break site.
	ErrUnboundLabel = errors.New("unbound label")

	// ErrBadAssign reports an assignment to a name that is not assignable:
	// a function, or an immutable global.
	ErrBadAssign = errors.New("target of assignment is not assignable")

	// ErrNotCallable reports a call through a binding whose type is not a
	// function type.
	ErrNotCallable = errors.New("call target is not a function")

	// ErrNoValue reports a call to a function without a result used where
	// a value is required.
	ErrNoValue = errors.New("expression yields no value")

	// ErrMissingRuntime reports that the runtime surface has no entry point
	// for a required operation/element-type combination.
	ErrMissingRuntime = errors.New("runtime does not provide required function")

	// ErrNoMain reports a program without a function named main.
	ErrNoMain = errors.New("program has no main function")

	// ErrMainSignature reports a main that takes parameters.
	ErrMainSignature = errors.New("main must not take parameters")

	// ErrDuplicateName reports two top-level definitions sharing a name.
	ErrDuplicateName = errors.New("duplicate top-level name")

	// ErrGlobalInit reports a global initializer that is not a scalar
	// literal and so has no constant-expression encoding.
	ErrGlobalInit = errors.New("global initializer must be a scalar literal")

	// ErrUnstructuredJump reports a goto with no structured rendering.
	ErrUnstructuredJump = errors.New("jump cannot be structured")

	// ErrTooManyFunctions reports a program whose function count exceeds
	// the call-table index space.
	ErrTooManyFunctions = errors.New("function count exceeds call-table capacity")

	// ErrInternal reports a broken pipeline invariant, such as a raw string
	// literal or a goto surviving into lowering.
	ErrInternal = errors.New("internal error")
)
