package kagami

import "errors"

var (
	// ErrNoPermission indicates that the authenticated bot cannot access a resource.
	ErrNoPermission = errors.New("kagami: no permission")
	// ErrNotFound indicates that a remote resource does not exist.
	ErrNotFound = errors.New("kagami: not found")
	// ErrUnresolvableID indicates a value that cannot be coerced to a Snowflake.
	ErrUnresolvableID = errors.New("kagami: unresolvable id")
	// ErrUnknownPredicateKind indicates an await registration for an unregistered event kind.
	ErrUnknownPredicateKind = errors.New("kagami: unknown predicate kind")
	// ErrInvalidEvent indicates that an event does not satisfy envelope invariants.
	ErrInvalidEvent = errors.New("kagami: invalid event")
)
