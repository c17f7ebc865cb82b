package types

import "time"

// GuildAssignment binds one guild to exactly one owning instance.
//
// An assignment is logically moved, never copied: during migration the old
// record is deleted before the new one is written, so the brief intermediate
// state is "unowned" rather than "owned twice".
type GuildAssignment struct {
	// GuildID is the unit of work being owned.
	GuildID string `json:"guildId"`

	// InstanceID is the current owner.
	InstanceID string `json:"instanceId"`

	// ServiceType is the pool the assignment belongs to.
	ServiceType ServiceType `json:"serviceType"`

	// AssignedAt is when this binding was created.
	AssignedAt time.Time `json:"assignedAt"`

	// LastActivity is the last time the guild saw traffic.
	LastActivity time.Time `json:"lastActivity"`

	// HasActiveSession marks the guild as non-migratable-without-cost.
	// Rebalancing never auto-moves guilds with an active session; only
	// failure and shutdown handling do.
	HasActiveSession bool `json:"hasActiveSession"`

	// IsActivelyServing marks the guild as currently serving requests.
	IsActivelyServing bool `json:"isActivelyServing"`
}

// Sticky reports whether the assignment must not be moved by rebalancing.
func (a *GuildAssignment) Sticky() bool {
	return a.HasActiveSession
}
