package coord

import (
	"context"
	"errors"
	"sort"

	"github.com/Lucascis/coord/lock"
	"github.com/Lucascis/coord/types"
)

// leadershipLoop maintains the rebalance leadership lease and drives
// rebalance passes while this coordinator is the leader.
//
// The lease is a long-TTL lock auto-extended by the lock manager. Non-leaders
// retry acquisition on a LeadershipTTL/3 cadence and take over when the
// current leader's lease lapses. Exactly one coordinator rebalances at a
// time; everyone else stays ready.
func (c *Coordinator) leadershipLoop() {
	defer c.wg.Done()

	leaseTicker := c.clock.NewTicker(c.cfg.Balancing.LeadershipTTL / 3)
	defer leaseTicker.Stop()
	rebalanceTicker := c.clock.NewTicker(c.cfg.Balancing.RebalanceInterval)
	defer rebalanceTicker.Stop()

	c.tryBecomeLeader()

	for {
		select {
		case <-c.runCtx.Done():
			return
		case <-leaseTicker.Chan():
			if c.isLeader.Load() {
				c.checkLeadership()
			} else {
				c.tryBecomeLeader()
			}
		case <-rebalanceTicker.Chan():
			if !c.isLeader.Load() {
				continue
			}
			ctx, cancel := context.WithTimeout(c.runCtx, c.cfg.Balancing.RebalanceInterval)
			c.runRebalance(ctx)
			cancel()
		}
	}
}

// tryBecomeLeader attempts a single leadership acquisition. Contention is the
// steady state for non-leaders and is never logged as an error.
func (c *Coordinator) tryBecomeLeader() {
	ctx, cancel := context.WithTimeout(c.runCtx, c.cfg.OperationTimeout)
	defer cancel()

	l, err := c.locks.TryAcquire(ctx, leadershipResource, c.cfg.Balancing.LeadershipTTL)
	if err != nil {
		if !errors.Is(err, lock.ErrNotObtained) {
			c.logger.Warn("leadership acquisition failed", "error", err)
		}

		return
	}

	c.leaderMu.Lock()
	c.leaderLock = l
	c.leaderMu.Unlock()
	c.isLeader.Store(true)

	c.logger.Info("acquired rebalance leadership", "instance_id", c.cfg.InstanceID)
	c.invokeHook("leadership_changed", func(ctx context.Context) error {
		if c.hooks.OnLeadershipChanged == nil {
			return nil
		}

		return c.hooks.OnLeadershipChanged(ctx, true)
	})
}

// checkLeadership detects a lapsed lease. The lock manager's auto-extension
// keeps the lease alive; if extension failed, the lease context is cancelled
// and leadership is surrendered here.
func (c *Coordinator) checkLeadership() {
	c.leaderMu.Lock()
	l := c.leaderLock
	c.leaderMu.Unlock()

	if l == nil {
		c.isLeader.Store(false)

		return
	}

	select {
	case <-l.Context().Done():
	default:
		return
	}

	c.leaderMu.Lock()
	c.leaderLock = nil
	c.leaderMu.Unlock()
	c.isLeader.Store(false)

	c.logger.Warn("lost rebalance leadership", "instance_id", c.cfg.InstanceID)
	c.invokeHook("leadership_changed", func(ctx context.Context) error {
		if c.hooks.OnLeadershipChanged == nil {
			return nil
		}

		return c.hooks.OnLeadershipChanged(ctx, false)
	})
}

// releaseLeadership gives up the lease during shutdown so a peer can take
// over immediately instead of waiting out the TTL.
func (c *Coordinator) releaseLeadership(ctx context.Context) {
	c.leaderMu.Lock()
	l := c.leaderLock
	c.leaderLock = nil
	c.leaderMu.Unlock()

	if l == nil {
		return
	}
	c.isLeader.Store(false)

	if err := c.locks.Release(ctx, l); err != nil && !errors.Is(err, lock.ErrNotHeld) {
		c.logger.Warn("failed to release leadership lease", "error", err)
	}
}

// runRebalance executes one cluster-wide rebalance pass.
//
// The pass itself is guarded by a short lock independent of the leadership
// lease, so a leadership handover mid-pass cannot produce two concurrent
// passes. Stale guilds are retried first: restoring ownership beats
// improving balance.
func (c *Coordinator) runRebalance(ctx context.Context) {
	l, err := c.locks.TryAcquire(ctx, rebalancePassResource, c.cfg.Lock.TTL)
	if err != nil {
		if !errors.Is(err, lock.ErrNotObtained) {
			c.logger.Warn("rebalance pass lock failed", "error", err)
		}

		return
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), c.cfg.OperationTimeout)
		defer cancel()
		if err := c.locks.Release(releaseCtx, l); err != nil && !errors.Is(err, lock.ErrNotHeld) {
			c.logger.Warn("failed to release rebalance pass lock", "error", err)
		}
	}()

	c.retryStaleGuilds(ctx)

	instances, err := c.registry.GetAllInstances(ctx)
	if err != nil {
		c.logger.Warn("failed to list instances for rebalance", "error", err)

		return
	}

	seen := map[types.ServiceType]bool{}
	for _, inst := range instances {
		if seen[inst.ServiceType] {
			continue
		}
		seen[inst.ServiceType] = true

		moves := c.rebalanceServiceType(ctx, inst.ServiceType)
		c.metrics.RecordRebalancePass(inst.ServiceType, moves)
	}
}

// retryStaleGuilds attempts placement for every guild marked stale by
// earlier failure or shutdown handling.
func (c *Coordinator) retryStaleGuilds(ctx context.Context) {
	markers, err := c.affinity.StaleGuilds(ctx)
	if err != nil {
		c.logger.Warn("failed to list stale guilds", "error", err)

		return
	}

	for _, marker := range markers {
		target, err := c.SelectInstanceForGuild(ctx, marker.GuildID, marker.ServiceType)
		if err != nil {
			c.logger.Warn("stale guild selection failed", "guild_id", marker.GuildID, "error", err)

			continue
		}
		if target == "" {
			// Still no capacity; the marker stays for the next pass.
			continue
		}

		if err := c.affinity.SetAffinity(ctx, marker.GuildID, target, marker.ServiceType); err != nil {
			c.logger.Warn("failed to place stale guild", "guild_id", marker.GuildID, "error", err)

			continue
		}
		c.logger.Info("placed stale guild", "guild_id", marker.GuildID, "instance_id", target)
	}
}

// rebalanceServiceType evaluates one service-type pool and migrates guilds
// from overloaded to underloaded instances.
//
// An instance is overloaded above mean*(1+threshold) and underloaded below
// mean*(1-threshold). Each overloaded source gives up at most
// floor((count-mean)/2) guilds per pass: halving the excess converges
// quickly without oscillating. Sticky guilds (active sessions) are never
// auto-moved.
func (c *Coordinator) rebalanceServiceType(ctx context.Context, serviceType types.ServiceType) int {
	instances, err := c.registry.GetHealthyInstances(ctx, serviceType)
	if err != nil {
		c.logger.Warn("failed to list healthy instances", "service_type", serviceType, "error", err)

		return 0
	}
	if len(instances) < 2 {
		return 0
	}

	total := 0
	for _, inst := range instances {
		total += inst.GuildCount()
	}
	mean := float64(total) / float64(len(instances))
	high := mean * (1 + c.cfg.Balancing.RebalanceThreshold)
	low := mean * (1 - c.cfg.Balancing.RebalanceThreshold)

	counts := make(map[string]int, len(instances))
	var sources, sinks []*types.Instance
	for _, inst := range instances {
		counts[inst.ID] = inst.GuildCount()
		switch {
		case float64(inst.GuildCount()) > high:
			sources = append(sources, inst)
		case float64(inst.GuildCount()) < low:
			sinks = append(sinks, inst)
		}
	}
	if len(sources) == 0 || len(sinks) == 0 {
		return 0
	}

	// Deterministic order keeps passes reproducible for a given snapshot.
	sort.Slice(sources, func(i, j int) bool { return sources[i].ID < sources[j].ID })

	planned := 0
	for _, src := range sources {
		planned += int((float64(counts[src.ID]) - mean) / 2)
	}
	if planned <= 0 {
		return 0
	}

	c.publishEvent(ctx, types.RebalanceTriggered{ServiceType: serviceType, Moves: planned})
	c.logger.Info("rebalance pass starting",
		"service_type", serviceType,
		"instances", len(instances),
		"mean", mean,
		"planned_moves", planned,
	)

	moves := 0
	for _, src := range sources {
		quota := int((float64(counts[src.ID]) - mean) / 2)
		if quota <= 0 {
			continue
		}

		for _, guildID := range append([]string(nil), src.AssignedGuilds...) {
			if quota == 0 {
				break
			}

			assignment, err := c.registry.GetGuildAssignment(ctx, guildID)
			if err != nil {
				continue
			}
			if assignment.Sticky() {
				continue
			}

			dst := pickSink(sinks, counts, mean)
			if dst == nil {
				break
			}

			if err := c.MigrateGuild(ctx, guildID, src.ID, dst.ID, types.MigrationRebalance); err != nil {
				c.logger.Warn("rebalance migration failed",
					"guild_id", guildID, "from", src.ID, "to", dst.ID, "error", err)

				continue
			}

			counts[src.ID]--
			counts[dst.ID]++
			quota--
			moves++
		}
	}

	return moves
}

// pickSink returns the least-loaded sink still below the mean and under
// capacity, or nil when every sink has filled up.
func pickSink(sinks []*types.Instance, counts map[string]int, mean float64) *types.Instance {
	var best *types.Instance
	for _, sink := range sinks {
		if float64(counts[sink.ID]) >= mean {
			continue
		}
		if sink.MaxGuilds > 0 && counts[sink.ID] >= sink.MaxGuilds {
			continue
		}
		if best == nil || counts[sink.ID] < counts[best.ID] ||
			(counts[sink.ID] == counts[best.ID] && sink.ID < best.ID) {
			best = sink
		}
	}

	return best
}
