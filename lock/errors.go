package lock

import "errors"

// Sentinel errors for lock operations.
var (
	// ErrNotObtained is returned when a lock could not be acquired because
	// another holder owns it. Expected under contention; callers treat it as
	// "someone else is handling this", not as a failure.
	ErrNotObtained = errors.New("lock not obtained")

	// ErrNotHeld is returned when releasing or extending a lock the caller
	// no longer holds.
	ErrNotHeld = errors.New("lock not held")

	// ErrNoNodes is returned when a manager is constructed without store
	// nodes.
	ErrNoNodes = errors.New("at least one lock node is required")
)
