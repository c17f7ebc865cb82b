package types

import "context"

// SelectionStrategy picks an owning instance for a guild from a pre-filtered
// candidate set.
//
// Candidates are always healthy instances of the right service type with
// spare capacity; strategies only decide preference, never eligibility.
// Implementations must be safe for concurrent use.
type SelectionStrategy interface {
	// Select returns the chosen instance, or nil if candidates is empty.
	//
	// Parameters:
	//   - guildID: Guild being placed (used by deterministic strategies)
	//   - candidates: Eligible instances (any order)
	//
	// Returns:
	//   - *Instance: Chosen candidate, or nil when none are eligible
	Select(guildID string, candidates []*Instance) *Instance
}

// InstanceSelector answers "which instance should own this guild right now".
//
// The coordinator implements it by filtering the registry and delegating to
// its configured SelectionStrategy; the affinity manager depends on this
// narrow interface for failure re-homing instead of on the coordinator.
type InstanceSelector interface {
	// SelectInstanceForGuild returns the chosen instance ID, or "" when no
	// eligible instance exists. An empty result is a soft "assignment
	// deferred" condition, never an error.
	SelectInstanceForGuild(ctx context.Context, guildID string, serviceType ServiceType) (string, error)
}

// EventBus broadcasts cluster events to all coordinators and downstream
// consumers.
type EventBus interface {
	// Publish broadcasts one event. Best-effort: delivery to slow or absent
	// subscribers is not guaranteed.
	Publish(ctx context.Context, event Event) error

	// Subscribe returns a channel of decoded events. The channel closes when
	// ctx is cancelled or the bus shuts down. Events that fail to decode are
	// dropped (counted by the implementation's logger).
	Subscribe(ctx context.Context) (<-chan Event, error)

	// Close releases bus resources and closes all subscriber channels.
	Close() error
}
