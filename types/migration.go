package types

import "time"

// MigrationReason explains why a guild is being moved.
type MigrationReason string

// Migration reasons.
const (
	MigrationRebalance        MigrationReason = "rebalance"
	MigrationInstanceShutdown MigrationReason = "instance_shutdown"
	MigrationInstanceFailure  MigrationReason = "instance_failure"
	MigrationManual           MigrationReason = "manual"
)

// MigrationPriority orders competing migration work.
type MigrationPriority string

// Migration priorities.
const (
	PriorityLow    MigrationPriority = "low"
	PriorityNormal MigrationPriority = "normal"
	PriorityHigh   MigrationPriority = "high"
)

// MigrationRequest describes one in-flight move of a guild between
// instances.
//
// Requests are stored with a timeout TTL and deleted on completion. They are
// never mutated: a failed migration is retried as a brand-new request, not
// resumed.
type MigrationRequest struct {
	GuildID        string            `json:"guildId"`
	FromInstanceID string            `json:"fromInstanceId"`
	ToInstanceID   string            `json:"toInstanceId"`
	Reason         MigrationReason   `json:"reason"`
	Priority       MigrationPriority `json:"priority"`
	RequestedAt    time.Time         `json:"requestedAt"`
}
