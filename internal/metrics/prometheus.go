package metrics

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Lucascis/coord/types"
)

// PrometheusCollector implements types.MetricsCollector backed by Prometheus.
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	lockAcquired      *prometheus.CounterVec
	lockContentions   *prometheus.CounterVec
	lockHoldSeconds   *prometheus.HistogramVec
	lockExtendFailed  *prometheus.CounterVec
	heartbeats        *prometheus.CounterVec
	statusChanges     *prometheus.CounterVec
	migrations        *prometheus.CounterVec
	migrationDuration prometheus.Histogram
	rebalanceMoves    *prometheus.CounterVec
	rebalancePasses   *prometheus.CounterVec
}

// Compile-time assertion that PrometheusCollector implements MetricsCollector.
var _ types.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheus creates a new Prometheus-backed metrics collector.
//
// Parameters:
//   - reg: Prometheus registerer (uses prometheus.DefaultRegisterer if nil)
//   - namespace: Metrics namespace (defaults to "coord" if empty)
//
// Returns:
//   - *PrometheusCollector: A MetricsCollector implementation using Prometheus
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "coord"
	}

	return &PrometheusCollector{reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.lockAcquired = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "lock",
			Name:      "acquisitions_total",
			Help:      "Total successful lock acquisitions by resource.",
		}, []string{"resource"})

		p.lockContentions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "lock",
			Name:      "contentions_total",
			Help:      "Total failed acquisitions due to contention by resource.",
		}, []string{"resource"})

		p.lockHoldSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "lock",
			Name:      "hold_seconds",
			Help:      "Lock hold durations in seconds by resource.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"resource"})

		p.lockExtendFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "lock",
			Name:      "extension_failures_total",
			Help:      "Total failed background lease extensions by resource.",
		}, []string{"resource"})

		p.heartbeats = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "coordinator",
			Name:      "heartbeats_total",
			Help:      "Total heartbeat publish attempts by outcome.",
		}, []string{"outcome"})

		p.statusChanges = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "coordinator",
			Name:      "instance_status_changes_total",
			Help:      "Observed instance lifecycle transitions.",
		}, []string{"from", "to"})

		p.migrations = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "coordinator",
			Name:      "migrations_total",
			Help:      "Total guild migrations by reason and outcome.",
		}, []string{"reason", "outcome"})

		p.migrationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "coordinator",
			Name:      "migration_duration_seconds",
			Help:      "Duration of successful guild migrations in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms .. ~10s
		})

		p.rebalanceMoves = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "coordinator",
			Name:      "rebalance_moves_total",
			Help:      "Total guilds moved by rebalance passes per service type.",
		}, []string{"service_type"})

		p.rebalancePasses = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "coordinator",
			Name:      "rebalance_passes_total",
			Help:      "Total rebalance passes per service type.",
		}, []string{"service_type"})

		collectors := []prometheus.Collector{
			p.lockAcquired, p.lockContentions, p.lockHoldSeconds, p.lockExtendFailed,
			p.heartbeats, p.statusChanges,
			p.migrations, p.migrationDuration,
			p.rebalanceMoves, p.rebalancePasses,
		}
		for _, c := range collectors {
			if err := p.reg.Register(c); err != nil {
				// AlreadyRegisteredError means another collector instance
				// registered the same metrics; keep using ours for writes.
				var are prometheus.AlreadyRegisteredError
				if !errors.As(err, &are) {
					panic(err)
				}
			}
		}
	})
}

// RecordLockAcquired increments the acquisition counter.
func (p *PrometheusCollector) RecordLockAcquired(resource string, _ int) {
	p.ensureRegistered()
	p.lockAcquired.WithLabelValues(resource).Inc()
}

// RecordLockContention increments the contention counter.
func (p *PrometheusCollector) RecordLockContention(resource string) {
	p.ensureRegistered()
	p.lockContentions.WithLabelValues(resource).Inc()
}

// RecordLockReleased observes the hold duration.
func (p *PrometheusCollector) RecordLockReleased(resource string, held time.Duration) {
	p.ensureRegistered()
	p.lockHoldSeconds.WithLabelValues(resource).Observe(held.Seconds())
}

// RecordLockExtensionFailed increments the extension failure counter.
func (p *PrometheusCollector) RecordLockExtensionFailed(resource string) {
	p.ensureRegistered()
	p.lockExtendFailed.WithLabelValues(resource).Inc()
}

// RecordHeartbeat counts a heartbeat publish outcome.
func (p *PrometheusCollector) RecordHeartbeat(_ string, success bool) {
	p.ensureRegistered()
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	p.heartbeats.WithLabelValues(outcome).Inc()
}

// RecordInstanceStatusChange counts a lifecycle transition.
func (p *PrometheusCollector) RecordInstanceStatusChange(_ string, from, to types.InstanceStatus) {
	p.ensureRegistered()
	p.statusChanges.WithLabelValues(from.String(), to.String()).Inc()
}

// RecordMigration counts a migration outcome and observes its duration.
func (p *PrometheusCollector) RecordMigration(reason types.MigrationReason, success bool, duration time.Duration) {
	p.ensureRegistered()
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	p.migrations.WithLabelValues(string(reason), outcome).Inc()
	if success {
		p.migrationDuration.Observe(duration.Seconds())
	}
}

// RecordRebalancePass counts a pass and the guilds it moved.
func (p *PrometheusCollector) RecordRebalancePass(serviceType types.ServiceType, moves int) {
	p.ensureRegistered()
	p.rebalancePasses.WithLabelValues(string(serviceType)).Inc()
	p.rebalanceMoves.WithLabelValues(string(serviceType)).Add(float64(moves))
}
