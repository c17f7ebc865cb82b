package types

import "context"

// Hooks are optional lifecycle callbacks invoked by the coordinator.
//
// All fields may be nil. Hooks run in their own goroutines so a slow
// callback cannot stall coordination work; errors are logged, not
// propagated.
type Hooks struct {
	// OnStatusChanged fires when this instance's lifecycle status changes.
	OnStatusChanged func(ctx context.Context, from, to InstanceStatus) error

	// OnGuildAssigned fires when a guild is bound to this instance.
	OnGuildAssigned func(ctx context.Context, guildID string) error

	// OnGuildUnassigned fires when a guild binding to this instance clears.
	OnGuildUnassigned func(ctx context.Context, guildID string) error

	// OnMigration fires when a migration started by this coordinator
	// finishes, successfully or not.
	OnMigration func(ctx context.Context, req MigrationRequest, err error) error

	// OnLeadershipChanged fires when this coordinator gains or loses the
	// rebalance leadership lease.
	OnLeadershipChanged func(ctx context.Context, leader bool) error
}
