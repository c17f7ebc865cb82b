package coord

import "github.com/Lucascis/coord/types"

// Sentinel errors returned by the Coordinator, re-exported from the types
// subpackage so callers can use errors.Is against either name.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = types.ErrInvalidConfig

	// ErrStoreRequired is returned when the coordination store is nil.
	ErrStoreRequired = types.ErrStoreRequired

	// ErrAlreadyStarted is returned when Start is called on a running coordinator.
	ErrAlreadyStarted = types.ErrAlreadyStarted

	// ErrNotStarted is returned when Stop is called before Start.
	ErrNotStarted = types.ErrNotStarted

	// ErrMigrationFailed is returned when a guild migration fails mid-way.
	ErrMigrationFailed = types.ErrMigrationFailed

	// ErrUnknownStrategy is returned for unrecognized strategy names.
	ErrUnknownStrategy = types.ErrUnknownStrategy

	// ErrInstanceNotFound is returned when an instance record does not exist.
	ErrInstanceNotFound = types.ErrInstanceNotFound

	// ErrAssignmentNotFound is returned when a guild has no assignment record.
	ErrAssignmentNotFound = types.ErrAssignmentNotFound
)
