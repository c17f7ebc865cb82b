package coord

import (
	"github.com/jonboulle/clockwork"

	"github.com/Lucascis/coord/types"
)

// Option configures a Coordinator with optional dependencies.
type Option func(*coordinatorOptions)

// coordinatorOptions holds optional Coordinator configuration.
type coordinatorOptions struct {
	bus           types.EventBus
	hooks         *types.Hooks
	metrics       types.MetricsCollector
	logger        types.Logger
	clock         clockwork.Clock
	strategy      types.SelectionStrategy
	resourceProbe func() types.Resources
	sessionProbe  func() int
}

// WithEventBus sets a custom event bus.
//
// By default the coordinator publishes events on the store's pub/sub channel;
// use this to ride an existing NATS fabric instead.
//
// Parameters:
//   - bus: EventBus implementation
//
// Returns:
//   - Option: Functional option for NewCoordinator
//
// Example:
//
//	eventBus := bus.NewNATS(nc, "", logger)
//	c, err := coord.NewCoordinator(cfg, st, coord.WithEventBus(eventBus))
func WithEventBus(bus types.EventBus) Option {
	return func(o *coordinatorOptions) {
		o.bus = bus
	}
}

// WithHooks sets lifecycle event hooks.
//
// Parameters:
//   - hooks: Hooks structure with callback functions
//
// Returns:
//   - Option: Functional option for NewCoordinator
//
// Example:
//
//	hooks := &coord.Hooks{
//	    OnGuildAssigned: func(ctx context.Context, guildID string) error {
//	        return connectGuild(ctx, guildID)
//	    },
//	}
//	c, err := coord.NewCoordinator(cfg, st, coord.WithHooks(hooks))
func WithHooks(hooks *types.Hooks) Option {
	return func(o *coordinatorOptions) {
		o.hooks = hooks
	}
}

// WithMetrics sets a metrics collector.
//
// Parameters:
//   - metrics: MetricsCollector implementation
//
// Returns:
//   - Option: Functional option for NewCoordinator
func WithMetrics(metrics types.MetricsCollector) Option {
	return func(o *coordinatorOptions) {
		o.metrics = metrics
	}
}

// WithLogger sets a logger.
//
// Parameters:
//   - logger: Logger implementation (compatible with slog via internal adapter)
//
// Returns:
//   - Option: Functional option for NewCoordinator
func WithLogger(logger types.Logger) Option {
	return func(o *coordinatorOptions) {
		o.logger = logger
	}
}

// WithClock sets a custom clock, used by tests to drive timing-sensitive
// loops with a fake clock.
func WithClock(clock clockwork.Clock) Option {
	return func(o *coordinatorOptions) {
		o.clock = clock
	}
}

// WithStrategy overrides the selection strategy resolved from
// Config.Balancing.Strategy with a concrete implementation.
//
// Example:
//
//	sel := strategy.NewConsistentHash(strategy.WithVirtualNodes(300))
//	c, err := coord.NewCoordinator(cfg, st, coord.WithStrategy(sel))
func WithStrategy(s types.SelectionStrategy) Option {
	return func(o *coordinatorOptions) {
		o.strategy = s
	}
}

// WithResourceProbe sets the callback sampled on every heartbeat to report
// this instance's resource headroom. Defaults to a zero snapshot.
func WithResourceProbe(probe func() types.Resources) Option {
	return func(o *coordinatorOptions) {
		o.resourceProbe = probe
	}
}

// WithSessionProbe sets the callback sampled on every heartbeat to report
// the number of active sessions this instance serves. Defaults to zero.
func WithSessionProbe(probe func() int) Option {
	return func(o *coordinatorOptions) {
		o.sessionProbe = probe
	}
}
