// Package metrics provides types.MetricsCollector implementations.
package metrics

import (
	"time"

	"github.com/Lucascis/coord/types"
)

// NopMetrics implements a no-op metrics collector.
//
// All metrics are discarded. Useful for testing or when external metrics
// collection is used.
type NopMetrics struct{}

// Compile-time assertion that NopMetrics implements MetricsCollector.
var _ types.MetricsCollector = (*NopMetrics)(nil)

// NewNop creates a new no-op metrics collector.
func NewNop() *NopMetrics {
	return &NopMetrics{}
}

// RecordLockAcquired discards the lock acquisition metric.
func (*NopMetrics) RecordLockAcquired(_ string, _ int) {}

// RecordLockContention discards the lock contention metric.
func (*NopMetrics) RecordLockContention(_ string) {}

// RecordLockReleased discards the lock release metric.
func (*NopMetrics) RecordLockReleased(_ string, _ time.Duration) {}

// RecordLockExtensionFailed discards the extension failure metric.
func (*NopMetrics) RecordLockExtensionFailed(_ string) {}

// RecordHeartbeat discards the heartbeat metric.
func (*NopMetrics) RecordHeartbeat(_ string, _ bool) {}

// RecordInstanceStatusChange discards the status change metric.
func (*NopMetrics) RecordInstanceStatusChange(_ string, _, _ types.InstanceStatus) {}

// RecordMigration discards the migration metric.
func (*NopMetrics) RecordMigration(_ types.MigrationReason, _ bool, _ time.Duration) {}

// RecordRebalancePass discards the rebalance pass metric.
func (*NopMetrics) RecordRebalancePass(_ types.ServiceType, _ int) {}
