package parent

import (
	"errors"
	"fmt"

	"github.com/uberbrodt/parent-go/erl"
)

// Errors returned by the validation and lifecycle APIs. Use [errors.Is] to
// check for specific conditions; the wrapper structs carry detail and are
// reachable with [errors.As].
var (
	// ErrInvalidChildSpec is returned when a child spec cannot be normalized:
	// unknown input shape, missing start function, bad restart policy, or a
	// nonsensical timeout.
	ErrInvalidChildSpec = errors.New("invalid child spec")

	// ErrAlreadyStarted is returned by StartChild when a child with the given
	// ID already exists. The actual error is an [AlreadyStartedError] with
	// the existing PID.
	ErrAlreadyStarted = errors.New("child already started")

	// ErrMissingDeps is returned when a BindsTo reference does not resolve to
	// a known child. The actual error is a [MissingDepsError].
	ErrMissingDeps = errors.New("missing bind dependencies")

	// ErrForbiddenBindings is returned when a child binds to a sibling of
	// weaker restart strength. The actual error is a
	// [ForbiddenBindingsError].
	ErrForbiddenBindings = errors.New("forbidden bindings")

	// ErrNonUniformShutdownGroup is returned when the members of a shutdown
	// group would not all share the same restart policy. The actual error is
	// a [NonUniformGroupError].
	ErrNonUniformShutdownGroup = errors.New("non-uniform shutdown group")

	// ErrNotFound is returned when a Ref does not identify a known child.
	ErrNotFound = errors.New("child not found")

	// ErrAlreadyInitialized is returned by [Initialize] when the owner
	// process already holds a parent state.
	ErrAlreadyInitialized = errors.New("already initialized")

	// ErrReachedMaxRestartIntensity is the shutdown detail when the
	// parent-wide restart ceiling is exceeded and the parent gives up.
	ErrReachedMaxRestartIntensity = errors.New("reached_max_restart_intensity")
)

// AlreadyStartedError reports a StartChild against an ID that is already
// registered; PID is the existing child's handle (UndefinedPID if the
// existing child is ignored).
type AlreadyStartedError struct {
	PID erl.PID
}

func (e AlreadyStartedError) Error() string {
	return fmt.Sprintf("child already started with PID %v", e.PID)
}

func (e AlreadyStartedError) Unwrap() error {
	return ErrAlreadyStarted
}

// MissingDepsError lists the BindsTo references that did not resolve.
type MissingDepsError struct {
	Refs []Ref
}

func (e MissingDepsError) Error() string {
	return fmt.Sprintf("bind dependencies not found: %v", e.Refs)
}

func (e MissingDepsError) Unwrap() error {
	return ErrMissingDeps
}

// ForbiddenBindingsError reports bindings from [From] to siblings of weaker
// restart strength.
type ForbiddenBindingsError struct {
	From string
	To   []Ref
}

func (e ForbiddenBindingsError) Error() string {
	return fmt.Sprintf("forbidden bindings from %q to %v", e.From, e.To)
}

func (e ForbiddenBindingsError) Unwrap() error {
	return ErrForbiddenBindings
}

// NonUniformGroupError reports a shutdown group whose members would not all
// share one restart policy.
type NonUniformGroupError struct {
	Group string
}

func (e NonUniformGroupError) Error() string {
	return fmt.Sprintf("shutdown group %q members must share one restart policy", e.Group)
}

func (e NonUniformGroupError) Unwrap() error {
	return ErrNonUniformShutdownGroup
}
