package hub

import "errors"

// Errors returned by wiring operations (attach/detach). Resolution itself
// never returns an error: a Response with StatusNotFound or StatusError is
// how the core reports failure to callers (see resolver.go).
var (
	// ErrAlreadyAttached is returned by AttachParent when the child already
	// has a parent; re-wiring is forbidden.
	ErrAlreadyAttached = errors.New("hub: already attached to a parent")

	// ErrScopeViolation is returned by AttachParent when the proposed
	// parent's scope is not strictly greater than the child's.
	ErrScopeViolation = errors.New("hub: parent scope must be strictly greater than child scope")

	// ErrCycle is returned by AttachParent when the proposed parent is
	// already a descendant of the child, which would create a cycle.
	ErrCycle = errors.New("hub: attaching would create a cycle")

	// ErrNotAttached is returned by Detach when the hub has no parent.
	ErrNotAttached = errors.New("hub: not attached to a parent")

	// ErrEmptyPath is returned by Register for an empty path. Handle does
	// not return it: a request with an empty Path resolves to StatusNotFound.
	ErrEmptyPath = errors.New("hub: path must not be empty")
)
