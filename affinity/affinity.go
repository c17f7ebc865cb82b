// Package affinity tracks which instance serves each guild and keeps that
// binding stable while a session is active.
//
// Bindings themselves live in the registry; this package layers the session
// semantics on top: sticky guilds, stale markers for guilds orphaned by an
// instance failure, and a read-through cache for the hot lookup path.
package affinity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/Lucascis/coord/internal/logging"
	"github.com/Lucascis/coord/registry"
	"github.com/Lucascis/coord/store"
	"github.com/Lucascis/coord/types"
)

const (
	stickyIndexKey = "affinity:sticky"
	staleHashKey   = "affinity:stale"
)

// StaleMarker records a guild left unbound after a failure pass. The next
// rebalance pass retries placement for every marked guild.
type StaleMarker struct {
	GuildID     string            `json:"guild_id"`
	ServiceType types.ServiceType `json:"service_type"`
	Reason      string            `json:"reason"`
	Since       time.Time         `json:"since"`
}

// RehomeFunc moves one guild to a chosen target instance. The coordinator
// installs its migration path here so failure re-homing produces the same
// records and events as any other migration.
type RehomeFunc func(ctx context.Context, guildID, fromInstanceID, toInstanceID string) error

// Manager implements session affinity over the registry.
//
// The selector and rehome hooks are installed by the coordinator after
// construction; until then, failure handling marks every orphaned guild
// stale.
type Manager struct {
	reg    *registry.Registry
	store  store.Store
	logger types.Logger

	selector types.InstanceSelector
	rehome   RehomeFunc

	// Read-through cache for GetAffinity. Invalidated on every local
	// mutation; remote mutations are reconciled by the entry TTL check.
	cache *xsync.Map[string, cachedAssignment]

	cacheTTL time.Duration
}

type cachedAssignment struct {
	assignment *types.GuildAssignment
	fetchedAt  time.Time
}

// New creates an affinity manager.
//
// Parameters:
//   - reg: Registry holding the assignment records
//   - st: Coordination store for sticky/stale bookkeeping
//   - logger: Logger (nil for none)
//
// Returns:
//   - *Manager: Initialized manager
func New(reg *registry.Registry, st store.Store, logger types.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}

	return &Manager{
		reg:      reg,
		store:    st,
		logger:   logger,
		cache:    xsync.NewMap[string, cachedAssignment](),
		cacheTTL: time.Second,
	}
}

// SetSelector installs the instance selector used when re-homing guilds
// after a failure.
func (m *Manager) SetSelector(selector types.InstanceSelector) {
	m.selector = selector
}

// SetRehomeFunc installs the migration path used for failure re-homing.
func (m *Manager) SetRehomeFunc(rehome RehomeFunc) {
	m.rehome = rehome
}

// SetAffinity binds a guild to an instance.
//
// Idempotent: re-binding to the same instance refreshes the record;
// re-binding to a different instance moves the guild. Any stale marker for
// the guild is cleared.
func (m *Manager) SetAffinity(ctx context.Context, guildID, instanceID string, serviceType types.ServiceType) error {
	if err := m.reg.AssignGuild(ctx, guildID, instanceID, serviceType); err != nil {
		return err
	}

	if err := m.store.HDel(ctx, staleHashKey, guildID); err != nil {
		m.logger.Warn("failed to clear stale marker", "guild_id", guildID, "error", err)
	}
	m.cache.Delete(guildID)

	return nil
}

// GetAffinity returns a guild's current binding, serving repeated lookups
// from a short-lived local cache.
//
// Returns:
//   - *types.GuildAssignment: Current binding
//   - error: types.ErrAssignmentNotFound when the guild is unbound
func (m *Manager) GetAffinity(ctx context.Context, guildID string) (*types.GuildAssignment, error) {
	if entry, ok := m.cache.Load(guildID); ok && time.Since(entry.fetchedAt) < m.cacheTTL {
		return entry.assignment, nil
	}

	assignment, err := m.reg.GetGuildAssignment(ctx, guildID)
	if err != nil {
		return nil, err
	}

	m.cache.Store(guildID, cachedAssignment{assignment: assignment, fetchedAt: time.Now()})

	return assignment, nil
}

// RemoveAffinity clears a guild's binding and bookkeeping. Removing an
// unbound guild is a no-op.
func (m *Manager) RemoveAffinity(ctx context.Context, guildID string) error {
	if err := m.reg.UnassignGuild(ctx, guildID); err != nil {
		return err
	}

	if err := m.store.SRem(ctx, stickyIndexKey, guildID); err != nil {
		m.logger.Warn("failed to clear sticky index", "guild_id", guildID, "error", err)
	}
	if err := m.store.HDel(ctx, staleHashKey, guildID); err != nil {
		m.logger.Warn("failed to clear stale marker", "guild_id", guildID, "error", err)
	}
	m.cache.Delete(guildID)

	return nil
}

// TouchActivity refreshes a guild's activity timestamp and session flags.
//
// A guild with an active session is sticky: the rebalancer will not move it.
func (m *Manager) TouchActivity(ctx context.Context, guildID string, hasActiveSession, isActivelyServing bool) error {
	if err := m.reg.UpdateGuildActivity(ctx, guildID, hasActiveSession, isActivelyServing); err != nil {
		return err
	}

	if hasActiveSession {
		if err := m.store.SAdd(ctx, stickyIndexKey, guildID); err != nil {
			m.logger.Warn("failed to update sticky index", "guild_id", guildID, "error", err)
		}
	} else {
		if err := m.store.SRem(ctx, stickyIndexKey, guildID); err != nil {
			m.logger.Warn("failed to update sticky index", "guild_id", guildID, "error", err)
		}
	}
	m.cache.Delete(guildID)

	return nil
}

// HandleInstanceFailure re-homes every guild bound to a failed instance.
//
// For each guild a new instance is chosen through the installed selector and
// the move runs through the installed rehome path. Guilds with no eligible
// target, and guilds whose move fails, are unbound and marked stale so the
// next rebalance pass retries them. After the pass no guild still points at
// the failed instance.
//
// Parameters:
//   - ctx: Context for store operations
//   - failedInstanceID: Instance whose guilds are orphaned
//   - serviceType: Service type of the failed instance
//
// Returns:
//   - int: Number of guilds re-homed
//   - int: Number of guilds marked stale
//   - error: Registry read failure; per-guild failures degrade to stale
func (m *Manager) HandleInstanceFailure(ctx context.Context, failedInstanceID string, serviceType types.ServiceType) (rehomed, stale int, err error) {
	guilds, err := m.reg.GetInstanceGuilds(ctx, failedInstanceID)
	if err != nil {
		if errors.Is(err, types.ErrInstanceNotFound) {
			return 0, 0, nil
		}

		return 0, 0, err
	}

	for _, guildID := range guilds {
		target := ""
		if m.selector != nil {
			target, err = m.selector.SelectInstanceForGuild(ctx, guildID, serviceType)
			if err != nil {
				m.logger.Warn("instance selection failed during failure handling",
					"guild_id", guildID, "failed_instance", failedInstanceID, "error", err)
				target = ""
			}
		}

		if target == "" {
			if err := m.MarkStale(ctx, guildID, serviceType, "instance_failure:"+failedInstanceID); err != nil {
				return rehomed, stale, err
			}
			stale++

			continue
		}

		if err := m.rehomeGuild(ctx, guildID, failedInstanceID, target, serviceType); err != nil {
			m.logger.Warn("failed to re-home guild, marking stale",
				"guild_id", guildID, "target", target, "error", err)
			if err := m.MarkStale(ctx, guildID, serviceType, "instance_failure:"+failedInstanceID); err != nil {
				return rehomed, stale, err
			}
			stale++

			continue
		}
		rehomed++
	}

	return rehomed, stale, nil
}

// StaleGuilds returns the guilds currently marked stale.
func (m *Manager) StaleGuilds(ctx context.Context) ([]StaleMarker, error) {
	entries, err := m.store.HGetAll(ctx, staleHashKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read stale markers: %w", err)
	}

	markers := make([]StaleMarker, 0, len(entries))
	for guildID, raw := range entries {
		var marker StaleMarker
		if err := json.Unmarshal(raw, &marker); err != nil {
			m.logger.Warn("dropping malformed stale marker", "guild_id", guildID, "error", err)

			continue
		}
		markers = append(markers, marker)
	}

	return markers, nil
}

// Stats returns affinity counters for cluster health reporting.
func (m *Manager) Stats(ctx context.Context) (types.AffinityStats, error) {
	clusterStats, err := m.reg.GetClusterStats(ctx)
	if err != nil {
		return types.AffinityStats{}, err
	}

	sticky, err := m.store.SMembers(ctx, stickyIndexKey)
	if err != nil {
		return types.AffinityStats{}, fmt.Errorf("failed to read sticky index: %w", err)
	}

	staleEntries, err := m.store.HGetAll(ctx, staleHashKey)
	if err != nil {
		return types.AffinityStats{}, fmt.Errorf("failed to read stale markers: %w", err)
	}

	return types.AffinityStats{
		Total:  clusterStats.Assignments,
		Sticky: len(sticky),
		Stale:  len(staleEntries),
	}, nil
}

// rehomeGuild moves a guild through the installed migration path, falling
// back to a direct re-bind when none is installed.
func (m *Manager) rehomeGuild(ctx context.Context, guildID, from, to string, serviceType types.ServiceType) error {
	if m.rehome != nil {
		return m.rehome(ctx, guildID, from, to)
	}

	return m.SetAffinity(ctx, guildID, to, serviceType)
}

// MarkStale unbinds a guild and records a stale marker so the next rebalance
// pass retries placement.
//
// Parameters:
//   - ctx: Context for store operations
//   - guildID: Guild to mark
//   - serviceType: Pool the guild belongs to (used when retrying placement)
//   - reason: Why placement failed, for operator inspection
func (m *Manager) MarkStale(ctx context.Context, guildID string, serviceType types.ServiceType, reason string) error {
	if err := m.reg.UnassignGuild(ctx, guildID); err != nil {
		return err
	}
	m.cache.Delete(guildID)

	marker := StaleMarker{
		GuildID:     guildID,
		ServiceType: serviceType,
		Reason:      reason,
		Since:       time.Now().UTC(),
	}
	data, err := json.Marshal(marker)
	if err != nil {
		return fmt.Errorf("failed to marshal stale marker %s: %w", guildID, err)
	}
	if err := m.store.HSet(ctx, staleHashKey, guildID, data); err != nil {
		return fmt.Errorf("failed to write stale marker %s: %w", guildID, err)
	}

	return nil
}
