package types

import "time"

// MetricsCollector receives operational metrics from all components.
//
// Implementations must be safe for concurrent use. The library always holds
// a non-nil collector (a nop implementation by default), so callers never
// need nil checks at record sites.
type MetricsCollector interface {
	// RecordLockAcquired records a successful lock acquisition.
	//
	// Parameters:
	//   - resource: Lock resource name
	//   - attempts: Number of attempts the acquisition took
	RecordLockAcquired(resource string, attempts int)

	// RecordLockContention records a failed acquisition due to contention.
	// Contention is an expected condition, a metric and never an error log.
	RecordLockContention(resource string)

	// RecordLockReleased records a release together with the total duration
	// the lock was held.
	RecordLockReleased(resource string, held time.Duration)

	// RecordLockExtensionFailed records a failed auto-extension. The holder
	// of the lease is fenced after this point.
	RecordLockExtensionFailed(resource string)

	// RecordHeartbeat records a heartbeat publish outcome for an instance.
	RecordHeartbeat(instanceID string, success bool)

	// RecordInstanceStatusChange records a lifecycle transition observed for
	// any instance in the cluster.
	RecordInstanceStatusChange(instanceID string, from, to InstanceStatus)

	// RecordMigration records the outcome of one guild migration.
	RecordMigration(reason MigrationReason, success bool, duration time.Duration)

	// RecordRebalancePass records one rebalance pass and how many guilds it
	// moved.
	RecordRebalancePass(serviceType ServiceType, moves int)
}
