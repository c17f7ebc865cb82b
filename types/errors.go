package types

import "errors"

// Sentinel errors for the coord library.
//
// These errors provide type-safe error checking using errors.Is() and
// errors.As(). Components wrap external errors with context using
// fmt.Errorf("...: %w", err) and reserve these sentinels for known
// conditions.

// Coordinator errors - public API errors returned by the Coordinator.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrStoreRequired is returned when the coordination store is nil.
	ErrStoreRequired = errors.New("coordination store is required")

	// ErrAlreadyStarted is returned when Start is called on a running coordinator.
	ErrAlreadyStarted = errors.New("coordinator already started")

	// ErrNotStarted is returned when operations require a started coordinator.
	ErrNotStarted = errors.New("coordinator not started")

	// ErrMigrationFailed is returned when a guild migration fails mid-way.
	// The guild is left owned by the original instance or unowned, never
	// owned twice.
	ErrMigrationFailed = errors.New("migration failed")

	// ErrUnknownStrategy is returned when the configured selection strategy
	// name is not recognized.
	ErrUnknownStrategy = errors.New("unknown selection strategy")
)

// Registry errors.
var (
	// ErrInstanceNotFound is returned when an instance record does not exist.
	ErrInstanceNotFound = errors.New("instance not found")

	// ErrAssignmentNotFound is returned when a guild has no assignment record.
	ErrAssignmentNotFound = errors.New("guild assignment not found")
)

// Event errors.
var (
	// ErrUnknownEventType is returned when decoding an event whose type tag
	// is not part of the closed event set.
	ErrUnknownEventType = errors.New("unknown event type")
)
