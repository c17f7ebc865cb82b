package coord

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Lucascis/coord/store"
	"github.com/Lucascis/coord/types"
)

// captureBus records published events for assertions.
type captureBus struct {
	mu     sync.Mutex
	events []types.Event
}

func (b *captureBus) Publish(_ context.Context, event types.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)

	return nil
}

func (b *captureBus) Subscribe(context.Context) (<-chan types.Event, error) {
	ch := make(chan types.Event)
	close(ch)

	return ch, nil
}

func (b *captureBus) Close() error { return nil }

func (b *captureBus) count(eventType types.EventType) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for _, e := range b.events {
		if e.Type == eventType {
			n++
		}
	}

	return n
}

func newTestCoordinator(t *testing.T, mutate func(*Config)) (*Coordinator, store.Store, *captureBus) {
	t.Helper()

	cfg := TestConfig()
	cfg.InstanceID = "audio-self"
	cfg.ServiceType = types.ServiceAudio
	if mutate != nil {
		mutate(&cfg)
	}

	st := store.NewMemory()
	bus := &captureBus{}
	c, err := NewCoordinator(cfg, st, WithEventBus(bus))
	require.NoError(t, err)

	return c, st, bus
}

// seedSelf registers the coordinator's own instance and primes the run state
// without launching the background loops, so tests can drive the internal
// steps deterministically.
func seedSelf(t *testing.T, c *Coordinator) {
	t.Helper()

	now := time.Now().UTC()
	self := &types.Instance{
		ID:            c.cfg.InstanceID,
		ServiceType:   c.cfg.ServiceType,
		Status:        types.StatusHealthy,
		StartedAt:     now,
		LastHeartbeat: now,
		MaxGuilds:     c.cfg.Balancing.MaxGuildsPerInstance,
	}
	require.NoError(t, c.registry.RegisterInstance(context.Background(), self))

	c.runCtx, c.cancel = context.WithCancel(context.Background())
	t.Cleanup(c.cancel)

	c.mu.Lock()
	c.self = self
	c.startedAt = now
	c.mu.Unlock()
	c.started.Store(true)
}

// seedPeer registers a healthy peer record with the given heartbeat age and
// guild count.
func seedPeer(t *testing.T, c *Coordinator, id string, heartbeatAge time.Duration, guilds int) *types.Instance {
	t.Helper()

	ctx := context.Background()
	now := time.Now().UTC()
	peer := &types.Instance{
		ID:            id,
		ServiceType:   c.cfg.ServiceType,
		Status:        types.StatusHealthy,
		StartedAt:     now.Add(-time.Hour),
		LastHeartbeat: now.Add(-heartbeatAge),
	}
	require.NoError(t, c.registry.RegisterInstance(ctx, peer))

	for i := 0; i < guilds; i++ {
		require.NoError(t, c.registry.AssignGuild(ctx, fmt.Sprintf("%s-guild-%d", id, i), id, peer.ServiceType))
	}

	// AssignGuild refreshed the stored record's timestamp fields through
	// writeInstance; rewrite the stale heartbeat the test asked for.
	record, err := c.registry.GetInstance(ctx, id)
	require.NoError(t, err)
	record.LastHeartbeat = now.Add(-heartbeatAge)
	record.Status = types.StatusHealthy
	_, err = c.registry.RefreshInstance(ctx, record)
	require.NoError(t, err)

	return record
}

func TestNewCoordinatorValidation(t *testing.T) {
	t.Parallel()

	_, err := NewCoordinator(TestConfig(), nil)
	require.ErrorIs(t, err, ErrStoreRequired)

	cfg := TestConfig()
	cfg.Heartbeat.Timeout = cfg.Heartbeat.Interval
	_, err = NewCoordinator(cfg, store.NewMemory())
	require.ErrorIs(t, err, ErrInvalidConfig)

	cfg = TestConfig()
	cfg.Balancing.Strategy = "bogus"
	_, err = NewCoordinator(cfg, store.NewMemory())
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestStartStopLifecycle(t *testing.T) {
	t.Parallel()

	c, st, _ := newTestCoordinator(t, nil)
	ctx := context.Background()

	require.NoError(t, c.Start(ctx))
	require.ErrorIs(t, c.Start(ctx), ErrAlreadyStarted)

	self, err := c.registry.GetInstance(ctx, c.InstanceID())
	require.NoError(t, err)
	require.Equal(t, types.StatusHealthy, self.Status)

	_, err = st.Get(ctx, heartbeatKeyPrefix+c.InstanceID())
	require.NoError(t, err, "heartbeat record must exist after start")

	require.NoError(t, c.Stop(ctx))

	_, err = c.registry.GetInstance(ctx, c.InstanceID())
	require.ErrorIs(t, err, types.ErrInstanceNotFound)

	_, err = st.Get(ctx, heartbeatKeyPrefix+c.InstanceID())
	require.ErrorIs(t, err, store.ErrNotFound)

	// Stop is idempotent once started.
	require.NoError(t, c.Stop(ctx))
}

func TestStopBeforeStart(t *testing.T) {
	t.Parallel()

	c, _, _ := newTestCoordinator(t, nil)
	require.ErrorIs(t, c.Stop(context.Background()), ErrNotStarted)
}

func TestAssignGuildToSelf(t *testing.T) {
	t.Parallel()

	c, _, _ := newTestCoordinator(t, func(cfg *Config) {
		cfg.Balancing.MaxGuildsPerInstance = 1
	})
	ctx := context.Background()

	require.ErrorIs(t, c.AssignGuildToSelf(ctx, "guild-1"), ErrNotStarted)

	seedSelf(t, c)
	require.NoError(t, c.AssignGuildToSelf(ctx, "guild-1"))

	assignment, err := c.affinity.GetAffinity(ctx, "guild-1")
	require.NoError(t, err)
	require.Equal(t, c.InstanceID(), assignment.InstanceID)

	err = c.AssignGuildToSelf(ctx, "guild-2")
	require.ErrorContains(t, err, "capacity")
}

func TestSelectInstanceForGuildDeferred(t *testing.T) {
	t.Parallel()

	c, _, _ := newTestCoordinator(t, func(cfg *Config) {
		cfg.Balancing.MaxGuildsPerInstance = 1
	})
	ctx := context.Background()

	// Empty cluster: deferred, not an error.
	target, err := c.SelectInstanceForGuild(ctx, "guild-1", types.ServiceAudio)
	require.NoError(t, err)
	require.Empty(t, target)

	seedSelf(t, c)
	target, err = c.SelectInstanceForGuild(ctx, "guild-1", types.ServiceAudio)
	require.NoError(t, err)
	require.Equal(t, c.InstanceID(), target)

	// A full instance is not a candidate.
	require.NoError(t, c.AssignGuildToSelf(ctx, "guild-1"))
	target, err = c.SelectInstanceForGuild(ctx, "guild-2", types.ServiceAudio)
	require.NoError(t, err)
	require.Empty(t, target)
}

// TestMonitorPeersTransitions walks a peer through the failure-detection
// states: late past the timeout marks it unhealthy, a fresh heartbeat
// restores it, and silence past timeout + threshold*interval kills it.
func TestMonitorPeersTransitions(t *testing.T) {
	t.Parallel()

	c, _, _ := newTestCoordinator(t, nil)
	ctx := context.Background()
	seedSelf(t, c)

	// TestConfig: interval 200ms, timeout 600ms, threshold 3. A heartbeat
	// 700ms old is past the timeout but short of the death bound (1.2s).
	peer := seedPeer(t, c, "audio-peer", 700*time.Millisecond, 0)

	c.monitorPeers(ctx)
	got, err := c.registry.GetInstance(ctx, peer.ID)
	require.NoError(t, err)
	require.Equal(t, types.StatusUnhealthy, got.Status)

	// Heartbeat resumes: restored to healthy.
	got.LastHeartbeat = time.Now().UTC()
	_, err = c.registry.RefreshInstance(ctx, got)
	require.NoError(t, err)
	c.monitorPeers(ctx)
	got, err = c.registry.GetInstance(ctx, peer.ID)
	require.NoError(t, err)
	require.Equal(t, types.StatusHealthy, got.Status)

	// Silent past the death bound: declared dead.
	got.LastHeartbeat = time.Now().UTC().Add(-2 * time.Second)
	_, err = c.registry.RefreshInstance(ctx, got)
	require.NoError(t, err)
	c.monitorPeers(ctx)
	got, err = c.registry.GetInstance(ctx, peer.ID)
	require.NoError(t, err)
	require.Equal(t, types.StatusDead, got.Status)
}

// TestHandleInstanceDeathIdempotent verifies concurrent death detection
// resolves to exactly one declaration: repeat invocations for an
// already-dead peer make no writes and publish no further events.
func TestHandleInstanceDeathIdempotent(t *testing.T) {
	t.Parallel()

	c, _, bus := newTestCoordinator(t, nil)
	ctx := context.Background()
	seedSelf(t, c)

	peer := seedPeer(t, c, "audio-peer", 5*time.Second, 2)

	require.NoError(t, c.handleInstanceDeath(ctx, peer))
	require.NoError(t, c.handleInstanceDeath(ctx, peer))

	require.Equal(t, 1, bus.count(types.EventInstanceDied))

	got, err := c.registry.GetInstance(ctx, peer.ID)
	require.NoError(t, err)
	require.Equal(t, types.StatusDead, got.Status)

	// Both orphaned guilds were re-homed to the surviving instance, once each.
	for _, guildID := range []string{"audio-peer-guild-0", "audio-peer-guild-1"} {
		assignment, err := c.affinity.GetAffinity(ctx, guildID)
		require.NoError(t, err)
		require.Equal(t, c.InstanceID(), assignment.InstanceID)
	}
	require.Equal(t, 2, bus.count(types.EventMigrationCompleted))
}

// TestRebalanceConvergence seeds a [10, 10, 0] pool at threshold 0.2 and
// verifies one pass halves the excess while never touching sticky guilds.
func TestRebalanceConvergence(t *testing.T) {
	t.Parallel()

	c, _, bus := newTestCoordinator(t, func(cfg *Config) {
		cfg.Balancing.RebalanceThreshold = 0.2
	})
	ctx := context.Background()
	seedSelf(t, c)

	// The coordinator's own instance plays no part; the pool under test is
	// three dedicated peers.
	require.NoError(t, c.registry.DeregisterInstance(ctx, c.InstanceID()))

	seedPeer(t, c, "audio-a", 0, 10)
	seedPeer(t, c, "audio-b", 0, 10)
	seedPeer(t, c, "audio-c", 0, 0)

	// An active session pins a guild to its instance.
	require.NoError(t, c.registry.UpdateGuildActivity(ctx, "audio-a-guild-0", true, true))

	// mean 6.67, high 8, low 5.33: a and b are sources, c is the sink, each
	// source gives up floor((10-6.67)/2) = 1 guild.
	moves := c.rebalanceServiceType(ctx, types.ServiceAudio)
	require.Equal(t, 2, moves)
	require.Equal(t, 1, bus.count(types.EventRebalanceTriggered))

	counts := map[string]int{}
	for _, id := range []string{"audio-a", "audio-b", "audio-c"} {
		inst, err := c.registry.GetInstance(ctx, id)
		require.NoError(t, err)
		counts[id] = inst.GuildCount()
	}
	require.Equal(t, map[string]int{"audio-a": 9, "audio-b": 9, "audio-c": 2}, counts)

	// The sticky guild never moved.
	assignment, err := c.registry.GetGuildAssignment(ctx, "audio-a-guild-0")
	require.NoError(t, err)
	require.Equal(t, "audio-a", assignment.InstanceID)
}

func TestRebalanceBalancedPoolNoMoves(t *testing.T) {
	t.Parallel()

	c, _, bus := newTestCoordinator(t, func(cfg *Config) {
		cfg.Balancing.RebalanceThreshold = 0.2
	})
	ctx := context.Background()
	seedSelf(t, c)
	require.NoError(t, c.registry.DeregisterInstance(ctx, c.InstanceID()))

	seedPeer(t, c, "audio-a", 0, 7)
	seedPeer(t, c, "audio-b", 0, 7)
	seedPeer(t, c, "audio-c", 0, 6)

	require.Zero(t, c.rebalanceServiceType(ctx, types.ServiceAudio))
	require.Zero(t, bus.count(types.EventRebalanceTriggered))
}

// TestMigrateGuildMissingTarget verifies atomicity of intent: a failed
// migration leaves the original binding untouched.
func TestMigrateGuildMissingTarget(t *testing.T) {
	t.Parallel()

	c, _, bus := newTestCoordinator(t, func(cfg *Config) {
		cfg.Migration.RetryCount = 1
	})
	ctx := context.Background()
	seedSelf(t, c)
	seedPeer(t, c, "audio-a", 0, 1)

	err := c.MigrateGuild(ctx, "audio-a-guild-0", "audio-a", "ghost", types.MigrationManual)
	require.ErrorIs(t, err, ErrMigrationFailed)

	assignment, err := c.registry.GetGuildAssignment(ctx, "audio-a-guild-0")
	require.NoError(t, err)
	require.Equal(t, "audio-a", assignment.InstanceID)

	require.Zero(t, bus.count(types.EventMigrationCompleted))
	require.Equal(t, 2, bus.count(types.EventMigrationFailed), "initial attempt plus one retry")
}

func TestMigrateGuildPreservesStickiness(t *testing.T) {
	t.Parallel()

	c, _, bus := newTestCoordinator(t, nil)
	ctx := context.Background()
	seedSelf(t, c)
	seedPeer(t, c, "audio-a", 0, 1)
	require.NoError(t, c.registry.UpdateGuildActivity(ctx, "audio-a-guild-0", true, true))

	require.NoError(t, c.MigrateGuild(ctx, "audio-a-guild-0", "audio-a", c.InstanceID(), types.MigrationManual))

	assignment, err := c.registry.GetGuildAssignment(ctx, "audio-a-guild-0")
	require.NoError(t, err)
	require.Equal(t, c.InstanceID(), assignment.InstanceID)
	require.True(t, assignment.HasActiveSession)
	require.True(t, assignment.IsActivelyServing)

	old, err := c.registry.GetInstance(ctx, "audio-a")
	require.NoError(t, err)
	require.Zero(t, old.GuildCount())

	require.Equal(t, 1, bus.count(types.EventMigrationStarted))
	require.Equal(t, 1, bus.count(types.EventMigrationCompleted))
}

func TestDrainGuilds(t *testing.T) {
	t.Parallel()

	c, _, _ := newTestCoordinator(t, nil)
	ctx := context.Background()
	seedSelf(t, c)
	seedPeer(t, c, "audio-peer", 0, 0)

	require.NoError(t, c.AssignGuildToSelf(ctx, "guild-1"))
	require.NoError(t, c.AssignGuildToSelf(ctx, "guild-2"))

	// Shutting down removes self from the candidate pool.
	require.NoError(t, c.setStatus(ctx, types.StatusShuttingDown))
	require.NoError(t, c.drainGuilds(ctx))

	for _, guildID := range []string{"guild-1", "guild-2"} {
		assignment, err := c.registry.GetGuildAssignment(ctx, guildID)
		require.NoError(t, err)
		require.Equal(t, "audio-peer", assignment.InstanceID)
	}
}

func TestDrainGuildsNoPeersMarksStale(t *testing.T) {
	t.Parallel()

	c, _, _ := newTestCoordinator(t, nil)
	ctx := context.Background()
	seedSelf(t, c)

	require.NoError(t, c.AssignGuildToSelf(ctx, "guild-1"))

	require.NoError(t, c.setStatus(ctx, types.StatusShuttingDown))
	require.NoError(t, c.drainGuilds(ctx))

	_, err := c.registry.GetGuildAssignment(ctx, "guild-1")
	require.ErrorIs(t, err, types.ErrAssignmentNotFound)

	markers, err := c.affinity.StaleGuilds(ctx)
	require.NoError(t, err)
	require.Len(t, markers, 1)
	require.Equal(t, "guild-1", markers[0].GuildID)
}

// TestRetryStaleGuilds verifies the rebalance pass restores ownership for
// guilds orphaned earlier, once capacity exists again.
func TestRetryStaleGuilds(t *testing.T) {
	t.Parallel()

	c, _, _ := newTestCoordinator(t, nil)
	ctx := context.Background()
	seedSelf(t, c)

	require.NoError(t, c.affinity.MarkStale(ctx, "guild-1", types.ServiceAudio, "instance_failure:audio-gone"))

	c.retryStaleGuilds(ctx)

	assignment, err := c.affinity.GetAffinity(ctx, "guild-1")
	require.NoError(t, err)
	require.Equal(t, c.InstanceID(), assignment.InstanceID)

	markers, err := c.affinity.StaleGuilds(ctx)
	require.NoError(t, err)
	require.Empty(t, markers)
}

func TestLeadershipExclusive(t *testing.T) {
	t.Parallel()

	st := store.NewMemory()

	newOn := func(id string) *Coordinator {
		cfg := TestConfig()
		cfg.InstanceID = id
		cfg.ServiceType = types.ServiceAudio
		c, err := NewCoordinator(cfg, st, WithEventBus(&captureBus{}))
		require.NoError(t, err)
		seedSelf(t, c)

		return c
	}

	a := newOn("audio-a")
	b := newOn("audio-b")

	a.tryBecomeLeader()
	require.True(t, a.IsLeader())

	b.tryBecomeLeader()
	require.False(t, b.IsLeader(), "leadership lease must be exclusive")

	// Released leadership is immediately available to a peer.
	a.releaseLeadership(context.Background())
	require.False(t, a.IsLeader())

	b.tryBecomeLeader()
	require.True(t, b.IsLeader())
	b.releaseLeadership(context.Background())
}

func TestGetClusterHealth(t *testing.T) {
	t.Parallel()

	c, _, _ := newTestCoordinator(t, nil)
	ctx := context.Background()
	seedSelf(t, c)

	require.NoError(t, c.AssignGuildToSelf(ctx, "guild-1"))
	require.NoError(t, c.affinity.TouchActivity(ctx, "guild-1", true, true))

	health, err := c.GetClusterHealth(ctx)
	require.NoError(t, err)
	require.Equal(t, c.InstanceID(), health.InstanceID)
	require.Equal(t, types.StatusHealthy, health.Status)
	require.False(t, health.Leader)
	require.Equal(t, 1, health.Registry.Instances)
	require.Equal(t, 1, health.Affinity.Total)
	require.Equal(t, 1, health.Affinity.Sticky)
}
