package coord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Lucascis/coord/affinity"
	"github.com/Lucascis/coord/bus"
	"github.com/Lucascis/coord/internal/hooks"
	"github.com/Lucascis/coord/internal/logging"
	"github.com/Lucascis/coord/internal/metrics"
	"github.com/Lucascis/coord/lock"
	"github.com/Lucascis/coord/registry"
	"github.com/Lucascis/coord/store"
	"github.com/Lucascis/coord/strategy"
	"github.com/Lucascis/coord/types"
)

// Store key prefixes owned by the coordinator.
const (
	heartbeatKeyPrefix = "heartbeats:"
	migrationKeyPrefix = "migrations:"

	leadershipResource    = "rebalance-leader"
	rebalancePassResource = "rebalance-pass"
	deathResourcePrefix   = "death:"
	migrateResourcePrefix = "migrate:"
)

// Coordinator ties the registry, affinity manager, lock manager, and event
// bus together into one per-process coordination endpoint.
//
// Each process runs exactly one Coordinator. Start registers the instance
// and launches the heartbeat, peer-monitor, leadership, and event loops;
// Stop migrates owned guilds away and deregisters.
type Coordinator struct {
	cfg      Config
	store    store.Store
	locks    *lock.Manager
	registry *registry.Registry
	affinity *affinity.Manager
	bus      types.EventBus
	ownBus   bool
	strategy types.SelectionStrategy

	hooks   types.Hooks
	metrics types.MetricsCollector
	logger  types.Logger
	clock   clockwork.Clock

	resourceProbe func() types.Resources
	sessionProbe  func() int

	mu        sync.RWMutex
	self      *types.Instance
	startedAt time.Time

	leaderMu   sync.Mutex
	leaderLock *lock.Lock
	isLeader   atomic.Bool

	started atomic.Bool
	stopped atomic.Bool
	runCtx  context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Coordinator implements InstanceSelector for the affinity manager.
var _ types.InstanceSelector = (*Coordinator)(nil)

// NewCoordinator creates a coordinator over the given store.
//
// The store must also provide the atomic lock primitives (both store.Redis
// and store.Memory do). Missing configuration fields are filled with
// defaults before validation.
//
// Parameters:
//   - cfg: Configuration (zero fields are defaulted)
//   - st: Coordination store
//   - opts: Optional dependencies
//
// Returns:
//   - *Coordinator: Initialized coordinator, not yet started
//   - error: ErrStoreRequired, ErrInvalidConfig, or dependency wiring errors
//
// Example:
//
//	st, err := store.NewRedisClient("redis://localhost:6379", "coord")
//	if err != nil {
//	    return err
//	}
//	c, err := coord.NewCoordinator(coord.Config{ServiceType: coord.ServiceAudio}, st)
func NewCoordinator(cfg Config, st store.Store, opts ...Option) (*Coordinator, error) {
	if st == nil {
		return nil, ErrStoreRequired
	}

	SetDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := coordinatorOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = logging.NewNop()
	}
	cfg.ValidateWithWarnings(logger)

	collector := o.metrics
	if collector == nil {
		collector = metrics.NewNop()
	}

	hks := hooks.NewNop()
	if o.hooks != nil {
		hks = *o.hooks
	}

	clock := o.clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	sel := o.strategy
	if sel == nil {
		var err error
		sel, err = strategy.FromName(cfg.Balancing.Strategy)
		if err != nil {
			return nil, err
		}
	}

	node, ok := st.(lock.Node)
	if !ok {
		return nil, fmt.Errorf("%w: store does not provide lock primitives", ErrStoreRequired)
	}
	locks, err := lock.New([]lock.Node{node},
		lock.WithRetry(cfg.Lock.RetryCount, cfg.Lock.RetryDelay),
		lock.WithDriftFactor(cfg.Lock.DriftFactor),
		lock.WithClock(clock),
		lock.WithLogger(logger),
		lock.WithMetrics(collector),
	)
	if err != nil {
		return nil, err
	}

	eventBus := o.bus
	ownBus := false
	if eventBus == nil {
		eventBus = bus.NewStore(st, "", logger)
		ownBus = true
	}

	reg := registry.New(st, eventBus, registry.Config{
		// An instance record must survive until the death grace period ends
		// even if every peer stops refreshing it.
		InstanceTTL:   time.Duration(cfg.Heartbeat.MissedThreshold)*cfg.Heartbeat.Timeout + cfg.Migration.GracePeriod,
		AssignmentTTL: 24 * time.Hour,
	}, logger)

	c := &Coordinator{
		cfg:           cfg,
		store:         st,
		locks:         locks,
		registry:      reg,
		bus:           eventBus,
		ownBus:        ownBus,
		strategy:      sel,
		hooks:         hks,
		metrics:       collector,
		logger:        logger,
		clock:         clock,
		resourceProbe: o.resourceProbe,
		sessionProbe:  o.sessionProbe,
	}
	if c.resourceProbe == nil {
		c.resourceProbe = func() types.Resources { return types.Resources{} }
	}
	if c.sessionProbe == nil {
		c.sessionProbe = func() int { return 0 }
	}

	aff := affinity.New(reg, st, logger)
	aff.SetSelector(c)
	aff.SetRehomeFunc(func(ctx context.Context, guildID, from, to string) error {
		return c.MigrateGuild(ctx, guildID, from, to, types.MigrationInstanceFailure)
	})
	c.affinity = aff

	return c, nil
}

// Start registers this instance and launches the coordination loops.
//
// Parameters:
//   - ctx: Context bounding startup store operations
//
// Returns:
//   - error: ErrAlreadyStarted, or a registration failure
func (c *Coordinator) Start(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	c.runCtx, c.cancel = context.WithCancel(context.Background())
	now := c.clock.Now().UTC()

	self := &types.Instance{
		ID:            c.cfg.InstanceID,
		ServiceType:   c.cfg.ServiceType,
		Status:        types.StatusStarting,
		Host:          c.cfg.Host,
		Port:          c.cfg.Port,
		StartedAt:     now,
		LastHeartbeat: now,
		Resources:     c.resourceProbe(),
		MaxGuilds:     c.cfg.Balancing.MaxGuildsPerInstance,
	}

	opCtx, cancel := context.WithTimeout(ctx, c.cfg.OperationTimeout)
	defer cancel()

	if err := c.registry.RegisterInstance(opCtx, self); err != nil {
		c.started.Store(false)
		c.cancel()

		return fmt.Errorf("failed to register instance: %w", err)
	}

	c.mu.Lock()
	c.self = self
	c.startedAt = now
	c.mu.Unlock()

	if err := c.setStatus(opCtx, types.StatusHealthy); err != nil {
		return err
	}
	c.publishHeartbeat(opCtx)

	c.wg.Add(4)
	go c.heartbeatLoop()
	go c.monitorLoop()
	go c.leadershipLoop()
	go c.eventLoop()

	c.logger.Info("coordinator started",
		"instance_id", self.ID,
		"service_type", self.ServiceType,
		"strategy", c.cfg.Balancing.Strategy,
	)

	return nil
}

// Stop gracefully shuts the coordinator down.
//
// Owned guilds are migrated to healthy peers (or unbound and marked stale
// when no peer can take them), the leadership lease is released, the
// instance deregisters, and all loops drain within the shutdown timeout.
//
// Parameters:
//   - ctx: Context bounding shutdown store operations
//
// Returns:
//   - error: ErrNotStarted, or the first shutdown failure (shutdown continues
//     past individual failures)
func (c *Coordinator) Stop(ctx context.Context) error {
	if !c.started.Load() {
		return ErrNotStarted
	}
	if !c.stopped.CompareAndSwap(false, true) {
		return nil
	}

	opCtx, cancel := context.WithTimeout(ctx, c.cfg.ShutdownTimeout)
	defer cancel()

	var firstErr error
	if err := c.setStatus(opCtx, types.StatusShuttingDown); err != nil {
		firstErr = err
	}

	if err := c.drainGuilds(opCtx); err != nil && firstErr == nil {
		firstErr = err
	}

	c.releaseLeadership(opCtx)

	c.mu.RLock()
	instanceID := c.self.ID
	c.mu.RUnlock()

	if err := c.registry.DeregisterInstance(opCtx, instanceID); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := c.store.Delete(opCtx, heartbeatKeyPrefix+instanceID); err != nil && firstErr == nil {
		firstErr = err
	}

	c.cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-opCtx.Done():
		c.logger.Warn("shutdown timeout waiting for loops to drain")
		if firstErr == nil {
			firstErr = opCtx.Err()
		}
	}

	if c.ownBus {
		if err := c.bus.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	c.logger.Info("coordinator stopped", "instance_id", instanceID)

	return firstErr
}

// InstanceID returns this coordinator's instance ID.
func (c *Coordinator) InstanceID() string {
	return c.cfg.InstanceID
}

// IsLeader reports whether this coordinator currently holds the rebalance
// leadership lease.
func (c *Coordinator) IsLeader() bool {
	return c.isLeader.Load()
}

// SelectInstanceForGuild picks the instance that should own a guild.
//
// Eligibility filtering (healthy, under capacity) happens here; the
// configured strategy only expresses preference among eligible candidates.
//
// Returns:
//   - string: Chosen instance ID, or "" when no instance is eligible.
//     An empty result means "assignment deferred", never an error.
//   - error: Registry read failure
func (c *Coordinator) SelectInstanceForGuild(ctx context.Context, guildID string, serviceType types.ServiceType) (string, error) {
	healthy, err := c.registry.GetHealthyInstances(ctx, serviceType)
	if err != nil {
		return "", err
	}

	candidates := make([]*types.Instance, 0, len(healthy))
	for _, inst := range healthy {
		if inst.HasCapacity() {
			candidates = append(candidates, inst)
		}
	}

	picked := c.strategy.Select(guildID, candidates)
	if picked == nil {
		c.logger.Debug("no eligible instance, deferring assignment",
			"guild_id", guildID, "service_type", serviceType)

		return "", nil
	}

	return picked.ID, nil
}

// AssignGuildToSelf binds a guild to this instance.
//
// Used by upstream routing when a guild's traffic already arrived here.
//
// Returns:
//   - error: ErrNotStarted before Start, or a capacity/store failure
func (c *Coordinator) AssignGuildToSelf(ctx context.Context, guildID string) error {
	if !c.started.Load() {
		return ErrNotStarted
	}

	self, err := c.registry.GetInstance(ctx, c.cfg.InstanceID)
	if err != nil {
		return err
	}

	if !self.HasCapacity() {
		return fmt.Errorf("instance %s is at capacity (%d guilds)", self.ID, self.GuildCount())
	}

	return c.affinity.SetAffinity(ctx, guildID, self.ID, self.ServiceType)
}

// Affinity returns the session affinity manager for direct use by the
// embedding service (activity updates, lookups).
func (c *Coordinator) Affinity() *affinity.Manager {
	return c.affinity
}

// Registry returns the service registry for read access.
func (c *Coordinator) Registry() *registry.Registry {
	return c.registry
}

// Locks returns the distributed lock manager for application-level critical
// sections (e.g. per-guild session setup).
func (c *Coordinator) Locks() *lock.Manager {
	return c.locks
}

// GetClusterHealth returns the aggregate health view used by operational
// tooling.
func (c *Coordinator) GetClusterHealth(ctx context.Context) (types.ClusterHealth, error) {
	stats, err := c.registry.GetClusterStats(ctx)
	if err != nil {
		return types.ClusterHealth{}, err
	}

	affStats, err := c.affinity.Stats(ctx)
	if err != nil {
		return types.ClusterHealth{}, err
	}

	c.mu.RLock()
	instanceID := c.cfg.InstanceID
	status := types.StatusStarting
	var uptime int64
	if c.self != nil {
		status = c.self.Status
		uptime = int64(c.clock.Since(c.startedAt).Seconds())
	}
	c.mu.RUnlock()

	return types.ClusterHealth{
		InstanceID:    instanceID,
		Status:        status,
		Leader:        c.isLeader.Load(),
		UptimeSeconds: uptime,
		Registry:      stats,
		Affinity:      affStats,
	}, nil
}

// setStatus transitions this instance's lifecycle status, updating the
// registry record and firing hooks/metrics.
func (c *Coordinator) setStatus(ctx context.Context, to types.InstanceStatus) error {
	c.mu.Lock()
	from := c.self.Status
	if from == to {
		c.mu.Unlock()

		return nil
	}
	if !from.CanTransitionTo(to) {
		c.mu.Unlock()

		return fmt.Errorf("invalid status transition %s -> %s", from, to)
	}
	c.self.Status = to
	self := c.self.Clone()
	c.mu.Unlock()

	// Update the stored record in place: its guild list may be ahead of the
	// local copy.
	record, err := c.registry.GetInstance(ctx, self.ID)
	if err != nil {
		if !errors.Is(err, types.ErrInstanceNotFound) {
			return err
		}
		record = self
	}
	record.Status = to

	if err := c.registry.UpdateInstance(ctx, record); err != nil {
		return err
	}

	c.metrics.RecordInstanceStatusChange(self.ID, from, to)
	c.invokeHook("status_changed", func(ctx context.Context) error {
		if c.hooks.OnStatusChanged == nil {
			return nil
		}

		return c.hooks.OnStatusChanged(ctx, from, to)
	})

	return nil
}

// heartbeatLoop publishes this instance's liveness on every interval.
//
// Heartbeats never take locks: liveness publication must not stall behind
// coordination work.
func (c *Coordinator) heartbeatLoop() {
	defer c.wg.Done()

	ticker := c.clock.NewTicker(c.cfg.Heartbeat.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.runCtx.Done():
			return
		case <-ticker.Chan():
			ctx, cancel := context.WithTimeout(c.runCtx, c.cfg.OperationTimeout)
			c.publishHeartbeat(ctx)
			cancel()
		}
	}
}

// publishHeartbeat writes the heartbeat record (TTL = heartbeat timeout),
// refreshes the instance record, and broadcasts on the bus.
func (c *Coordinator) publishHeartbeat(ctx context.Context) {
	now := c.clock.Now().UTC()
	resources := c.resourceProbe()
	sessions := c.sessionProbe()

	c.mu.Lock()
	c.self.LastHeartbeat = now
	c.self.Resources = resources
	self := c.self.Clone()
	startedAt := c.startedAt
	c.mu.Unlock()

	hb := types.Heartbeat{
		InstanceID:        self.ID,
		Timestamp:         now,
		Status:            self.Status,
		GuildCount:        self.GuildCount(),
		ActiveSessions:    sessions,
		AvailableMemoryMB: resources.AvailableMemoryMB,
		CPUPercent:        resources.CPUPercent,
		UptimeSeconds:     int64(now.Sub(startedAt).Seconds()),
	}

	// The stored record's guild list is authoritative; pull the merged view
	// back into the local copy so capacity checks stay accurate.
	merged, err := c.registry.RefreshInstance(ctx, self)
	if err == nil {
		c.mu.Lock()
		c.self.AssignedGuilds = merged.AssignedGuilds
		c.mu.Unlock()
		hb.GuildCount = merged.GuildCount()

		err = c.writeHeartbeat(ctx, hb)
	}
	c.metrics.RecordHeartbeat(self.ID, err == nil)
	if err != nil {
		c.logger.Warn("failed to publish heartbeat", "instance_id", self.ID, "error", err)

		return
	}

	if err := c.bus.Publish(ctx, types.NewEvent(types.HeartbeatBroadcast{Heartbeat: hb})); err != nil {
		c.logger.Debug("failed to broadcast heartbeat", "error", err)
	}
}

// writeHeartbeat stores the heartbeat record with the timeout as its TTL, so
// a crashed instance's heartbeat disappears on its own.
func (c *Coordinator) writeHeartbeat(ctx context.Context, hb types.Heartbeat) error {
	data, err := json.Marshal(hb)
	if err != nil {
		return fmt.Errorf("failed to marshal heartbeat: %w", err)
	}

	return c.store.Set(ctx, heartbeatKeyPrefix+hb.InstanceID, data, c.cfg.Heartbeat.Timeout)
}

// monitorLoop watches peers for missed heartbeats.
func (c *Coordinator) monitorLoop() {
	defer c.wg.Done()

	ticker := c.clock.NewTicker(c.cfg.Heartbeat.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.runCtx.Done():
			return
		case <-ticker.Chan():
			ctx, cancel := context.WithTimeout(c.runCtx, c.cfg.OperationTimeout)
			c.monitorPeers(ctx)
			cancel()
		}
	}
}

// monitorPeers classifies every peer by heartbeat age.
//
// The missed-heartbeat count is derived from elapsed time rather than kept
// as counter state, so all peers independently reach the same verdict:
//
//	elapsed <= timeout                         healthy (restore if unhealthy)
//	elapsed > timeout                          unhealthy
//	elapsed >= timeout + threshold*interval    dead
func (c *Coordinator) monitorPeers(ctx context.Context) {
	peers, err := c.registry.GetAllInstances(ctx)
	if err != nil {
		c.logger.Warn("failed to list instances for monitoring", "error", err)

		return
	}

	c.mu.RLock()
	selfID := c.self.ID
	c.mu.RUnlock()

	for _, peer := range peers {
		if peer.ID == selfID {
			continue
		}
		if peer.Status == types.StatusDead || peer.Status == types.StatusShuttingDown {
			continue
		}

		elapsed := c.clock.Now().UTC().Sub(peer.LastHeartbeat)
		if elapsed <= c.cfg.Heartbeat.Timeout {
			if peer.Status == types.StatusUnhealthy {
				c.transitionPeer(ctx, peer, types.StatusHealthy)
			}

			continue
		}

		missed := int((elapsed - c.cfg.Heartbeat.Timeout) / c.cfg.Heartbeat.Interval)
		if missed >= c.cfg.Heartbeat.MissedThreshold {
			if err := c.handleInstanceDeath(ctx, peer); err != nil {
				c.logger.Warn("failed to handle instance death",
					"instance_id", peer.ID, "error", err)
			}

			continue
		}

		if peer.Status == types.StatusHealthy {
			c.transitionPeer(ctx, peer, types.StatusUnhealthy)
		}
	}
}

// transitionPeer updates a peer's status in the registry.
func (c *Coordinator) transitionPeer(ctx context.Context, peer *types.Instance, to types.InstanceStatus) {
	if !peer.Status.CanTransitionTo(to) {
		return
	}

	from := peer.Status
	peer.Status = to
	if err := c.registry.UpdateInstance(ctx, peer); err != nil {
		c.logger.Warn("failed to update peer status",
			"instance_id", peer.ID, "from", from, "to", to, "error", err)

		return
	}

	c.metrics.RecordInstanceStatusChange(peer.ID, from, to)
	c.logger.Info("peer status changed", "instance_id", peer.ID, "from", from, "to", to)
}

// handleInstanceDeath declares a peer dead and re-homes its guilds.
//
// Guarded by a per-instance lock so exactly one coordinator performs the
// work; losers skip silently (concurrent detection is expected, not an
// error). The winner re-checks the record under the lock, making the whole
// operation idempotent.
func (c *Coordinator) handleInstanceDeath(ctx context.Context, peer *types.Instance) error {
	l, err := c.locks.TryAcquire(ctx, deathResourcePrefix+peer.ID, c.cfg.Lock.TTL)
	if err != nil {
		if errors.Is(err, lock.ErrNotObtained) {
			return nil
		}

		return err
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), c.cfg.OperationTimeout)
		defer cancel()
		if err := c.locks.Release(releaseCtx, l); err != nil && !errors.Is(err, lock.ErrNotHeld) {
			c.logger.Warn("failed to release death lock", "instance_id", peer.ID, "error", err)
		}
	}()

	// Re-check under the lock: another coordinator may have finished first.
	current, err := c.registry.GetInstance(ctx, peer.ID)
	if err != nil {
		if errors.Is(err, types.ErrInstanceNotFound) {
			return nil
		}

		return err
	}
	if current.Status == types.StatusDead {
		return nil
	}

	c.logger.Info("declaring instance dead",
		"instance_id", current.ID,
		"service_type", current.ServiceType,
		"last_heartbeat", current.LastHeartbeat,
		"guilds", current.GuildCount(),
	)

	c.transitionPeer(ctx, current, types.StatusDead)
	if err := c.bus.Publish(ctx, types.NewEvent(types.InstanceDied{
		InstanceID:    current.ID,
		ServiceType:   current.ServiceType,
		LastHeartbeat: current.LastHeartbeat,
	})); err != nil {
		c.logger.Warn("failed to publish death event", "instance_id", current.ID, "error", err)
	}

	rehomed, stale, err := c.affinity.HandleInstanceFailure(ctx, current.ID, current.ServiceType)
	if err != nil {
		return err
	}
	c.logger.Info("re-homed guilds from dead instance",
		"instance_id", current.ID, "rehomed", rehomed, "stale", stale)

	// Keep the dead record visible for the grace period, then clean it up.
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		select {
		case <-c.runCtx.Done():
			return
		case <-c.clock.After(c.cfg.Migration.GracePeriod):
		}

		dctx, cancel := context.WithTimeout(context.Background(), c.cfg.OperationTimeout)
		defer cancel()
		if err := c.registry.DeregisterInstance(dctx, current.ID); err != nil {
			c.logger.Warn("failed to deregister dead instance", "instance_id", current.ID, "error", err)
		}
	}()

	return nil
}

// drainGuilds migrates every guild owned by this instance to a healthy peer
// during shutdown.
func (c *Coordinator) drainGuilds(ctx context.Context) error {
	c.mu.RLock()
	selfID := c.self.ID
	serviceType := c.self.ServiceType
	c.mu.RUnlock()

	// The stored record, not the local copy, knows the current guild list.
	guilds, err := c.registry.GetInstanceGuilds(ctx, selfID)
	if err != nil {
		if errors.Is(err, types.ErrInstanceNotFound) {
			return nil
		}

		return err
	}

	var firstErr error
	for _, guildID := range guilds {
		target, err := c.SelectInstanceForGuild(ctx, guildID, serviceType)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}

			continue
		}

		if target == "" {
			if err := c.affinity.MarkStale(ctx, guildID, serviceType, "instance_shutdown:"+selfID); err != nil && firstErr == nil {
				firstErr = err
			}

			continue
		}

		if err := c.MigrateGuild(ctx, guildID, selfID, target, types.MigrationInstanceShutdown); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			if err := c.affinity.MarkStale(ctx, guildID, serviceType, "instance_shutdown:"+selfID); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

// eventLoop consumes cluster events and fires local hooks for assignments
// touching this instance, so embedding services react without polling.
func (c *Coordinator) eventLoop() {
	defer c.wg.Done()

	events, err := c.bus.Subscribe(c.runCtx)
	if err != nil {
		c.logger.Warn("failed to subscribe to cluster events", "error", err)

		return
	}

	c.mu.RLock()
	selfID := c.self.ID
	c.mu.RUnlock()

	for event := range events {
		switch payload := event.Payload.(type) {
		case *types.GuildAssigned:
			if payload.InstanceID != selfID {
				continue
			}
			guildID := payload.GuildID
			c.invokeHook("guild_assigned", func(ctx context.Context) error {
				if c.hooks.OnGuildAssigned == nil {
					return nil
				}

				return c.hooks.OnGuildAssigned(ctx, guildID)
			})
		case *types.GuildUnassigned:
			if payload.InstanceID != selfID {
				continue
			}
			guildID := payload.GuildID
			c.invokeHook("guild_unassigned", func(ctx context.Context) error {
				if c.hooks.OnGuildUnassigned == nil {
					return nil
				}

				return c.hooks.OnGuildUnassigned(ctx, guildID)
			})
		case *types.InstanceDied:
			c.logger.Debug("peer died", "instance_id", payload.InstanceID)
		default:
		}
	}
}

// invokeHook runs a hook callback in its own goroutine so slow callbacks
// cannot stall coordination work. Hook errors are logged, never propagated.
func (c *Coordinator) invokeHook(name string, fn func(ctx context.Context) error) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.OperationTimeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			c.logger.Warn("hook failed", "hook", name, "error", err)
		}
	}()
}
