package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/Lucascis/coord/internal/logging"
	"github.com/Lucascis/coord/internal/metrics"
	"github.com/Lucascis/coord/types"
)

// Default tuning values, overridable per manager via options.
const (
	DefaultRetryCount  = 3
	DefaultRetryDelay  = 50 * time.Millisecond
	DefaultDriftFactor = 0.01
)

// Manager acquires, extends, and releases majority locks across a set of
// store nodes.
//
// A Manager is cheap and stateless apart from its configuration; create one
// per process and share it between components. All methods are safe for
// concurrent use.
type Manager struct {
	nodes       []Node
	quorum      int
	driftFactor float64
	retryCount  int
	retryDelay  time.Duration
	autoExtend  bool

	clock   clockwork.Clock
	logger  types.Logger
	metrics types.MetricsCollector
}

// Option configures a Manager.
type Option func(*Manager)

// WithRetry sets the acquisition retry budget: up to count retries after the
// first attempt, with jittered exponential delay starting at delay.
func WithRetry(count int, delay time.Duration) Option {
	return func(m *Manager) {
		m.retryCount = count
		m.retryDelay = delay
	}
}

// WithDriftFactor sets the clock-drift safety margin as a fraction of the
// TTL (default 0.01).
func WithDriftFactor(factor float64) Option {
	return func(m *Manager) {
		m.driftFactor = factor
	}
}

// WithAutoExtend enables or disables background lease extension (default
// enabled).
func WithAutoExtend(enabled bool) Option {
	return func(m *Manager) {
		m.autoExtend = enabled
	}
}

// WithClock sets the clock used for validity arithmetic and extension
// timers. Tests inject a fake clock.
func WithClock(clock clockwork.Clock) Option {
	return func(m *Manager) {
		m.clock = clock
	}
}

// WithLogger sets the logger.
func WithLogger(logger types.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(collector types.MetricsCollector) Option {
	return func(m *Manager) {
		m.metrics = collector
	}
}

// New creates a lock manager over the given store nodes.
//
// Parameters:
//   - nodes: Independent store nodes; a majority must grant each lease
//   - opts: Optional configuration
//
// Returns:
//   - *Manager: Configured manager
//   - error: ErrNoNodes when nodes is empty
func New(nodes []Node, opts ...Option) (*Manager, error) {
	if len(nodes) == 0 {
		return nil, ErrNoNodes
	}

	m := &Manager{
		nodes:       nodes,
		quorum:      len(nodes)/2 + 1,
		driftFactor: DefaultDriftFactor,
		retryCount:  DefaultRetryCount,
		retryDelay:  DefaultRetryDelay,
		autoExtend:  true,
		clock:       clockwork.NewRealClock(),
		logger:      logging.NewNop(),
		metrics:     metrics.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

// Acquire obtains a lease on resource, retrying with jittered exponential
// backoff up to the configured retry count.
//
// Parameters:
//   - ctx: Context for cancellation
//   - resource: Resource name to lock
//   - ttl: Lease duration
//
// Returns:
//   - *Lock: Held lease
//   - error: ErrNotObtained after exhausting retries, or a store error
func (m *Manager) Acquire(ctx context.Context, resource string, ttl time.Duration) (*Lock, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = m.retryDelay
	bo.RandomizationFactor = 0.5
	bo.Reset()

	var lastErr error
	for attempt := 1; attempt <= m.retryCount+1; attempt++ {
		l, err := m.acquireOnce(ctx, resource, ttl)
		if err == nil {
			m.metrics.RecordLockAcquired(resource, attempt)
			return l, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		// Jittered delay between attempts to avoid thundering herds.
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-m.clock.After(bo.NextBackOff()):
		}
	}

	m.metrics.RecordLockContention(resource)

	return nil, fmt.Errorf("failed to acquire %q after %d attempts: %w", resource, m.retryCount+1, lastErr)
}

// TryAcquire attempts to obtain a lease exactly once, without retrying.
//
// Returns:
//   - *Lock: Held lease on success
//   - error: ErrNotObtained when the resource is held elsewhere
func (m *Manager) TryAcquire(ctx context.Context, resource string, ttl time.Duration) (*Lock, error) {
	l, err := m.acquireOnce(ctx, resource, ttl)
	if err != nil {
		m.metrics.RecordLockContention(resource)
		return nil, err
	}

	m.metrics.RecordLockAcquired(resource, 1)

	return l, nil
}

// acquireOnce runs one round of the majority-lock algorithm.
func (m *Manager) acquireOnce(ctx context.Context, resource string, ttl time.Duration) (*Lock, error) {
	token := uuid.NewString()
	start := m.clock.Now()

	granted := 0
	for _, node := range m.nodes {
		ok, err := node.AcquireLock(ctx, resource, token, ttl)
		if err != nil {
			m.logger.Debug("lock node error during acquire", "resource", resource, "error", err)
			continue
		}
		if ok {
			granted++
		}
	}

	// A lease counts as held only if a majority granted it within the TTL,
	// minus the drift margin and the acquisition latency itself.
	drift := time.Duration(float64(ttl) * m.driftFactor)
	elapsed := m.clock.Since(start)
	validity := ttl - elapsed - drift

	if granted < m.quorum || validity <= 0 {
		m.releaseNodes(ctx, resource, token)
		return nil, ErrNotObtained
	}

	lockCtx, cancel := context.WithCancel(context.Background())
	l := &Lock{
		resource:   resource,
		token:      token,
		ttl:        ttl,
		acquiredAt: start,
		validUntil: start.Add(validity),
		ctx:        lockCtx,
		cancel:     cancel,
		stopExtend: make(chan struct{}),
	}

	if m.autoExtend {
		go m.extendLoop(l)
	}

	return l, nil
}

// Release gives up a held lease.
//
// Safe to call after the lease expired; releasing an expired or stolen lease
// returns ErrNotHeld.
func (m *Manager) Release(ctx context.Context, l *Lock) error {
	l.invalidate()

	released := 0
	for _, node := range m.nodes {
		ok, err := node.ReleaseLock(ctx, l.resource, l.token)
		if err != nil {
			m.logger.Debug("lock node error during release", "resource", l.resource, "error", err)
			continue
		}
		if ok {
			released++
		}
	}

	m.metrics.RecordLockReleased(l.resource, m.clock.Since(l.acquiredAt))

	if released == 0 {
		return ErrNotHeld
	}

	return nil
}

// Extend pushes the lease's validity window forward by ttl.
//
// Returns:
//   - error: ErrNotHeld when a majority of nodes no longer hold the token
func (m *Manager) Extend(ctx context.Context, l *Lock, ttl time.Duration) error {
	start := m.clock.Now()

	extended := 0
	for _, node := range m.nodes {
		ok, err := node.ExtendLock(ctx, l.resource, l.token, ttl)
		if err != nil {
			m.logger.Debug("lock node error during extend", "resource", l.resource, "error", err)
			continue
		}
		if ok {
			extended++
		}
	}

	drift := time.Duration(float64(ttl) * m.driftFactor)
	validity := ttl - m.clock.Since(start) - drift

	if extended < m.quorum || validity <= 0 {
		return ErrNotHeld
	}

	l.setValidUntil(start.Add(validity))

	return nil
}

// Do runs fn while holding a lease on resource, releasing it on every exit
// path.
//
// The context passed to fn is cancelled when the parent context is done OR
// when the lease is lost (extension failure or expiry). Critical sections
// that thread this context through their store writes stop writing once
// exclusivity is gone.
//
// Parameters:
//   - ctx: Parent context
//   - resource: Resource name to lock
//   - ttl: Lease duration (auto-extended while fn runs)
//   - fn: Critical section
//
// Returns:
//   - error: Acquisition error, or fn's error
func (m *Manager) Do(ctx context.Context, resource string, ttl time.Duration, fn func(ctx context.Context) error) error {
	l, err := m.Acquire(ctx, resource, ttl)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	stop := make(chan struct{})
	go func() {
		select {
		case <-l.Context().Done():
			cancel()
		case <-stop:
		}
	}()

	defer func() {
		close(stop)
		cancel()

		// Release with a fresh context: the parent may already be done and
		// the lease must still be cleaned up.
		releaseCtx, releaseCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer releaseCancel()
		if err := m.Release(releaseCtx, l); err != nil && err != ErrNotHeld {
			m.logger.Warn("failed to release lock", "resource", resource, "error", err)
		}
	}()

	return fn(runCtx)
}

// extendLoop keeps a held lease alive while the holder is running.
//
// Runs until the lock is released or an extension attempt fails. Extension
// happens when the remaining validity drops below one third of the TTL.
func (m *Manager) extendLoop(l *Lock) {
	ticker := m.clock.NewTicker(l.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopExtend:
			return
		case <-ticker.Chan():
			remaining := l.ValidUntil().Sub(m.clock.Now())
			if remaining > l.ttl/3 {
				continue
			}

			ctx, cancel := context.WithTimeout(context.Background(), l.ttl/3)
			err := m.Extend(ctx, l, l.ttl)
			cancel()

			if err != nil {
				m.metrics.RecordLockExtensionFailed(l.resource)
				m.logger.Warn("lost lock during extension, fencing holder",
					"resource", l.resource, "error", err)
				l.invalidate()

				return
			}
		}
	}
}

// releaseNodes best-effort releases a token on all nodes after a failed
// majority acquisition.
func (m *Manager) releaseNodes(ctx context.Context, resource, token string) {
	for _, node := range m.nodes {
		if _, err := node.ReleaseLock(ctx, resource, token); err != nil {
			m.logger.Debug("lock node error during rollback", "resource", resource, "error", err)
		}
	}
}
