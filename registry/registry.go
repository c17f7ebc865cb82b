// Package registry implements the service registry: the source of truth for
// instance metadata and guild-to-instance assignment records.
//
// The registry is pure state management over the coordination store — CRUD,
// queries, and event publication. It carries no balancing or failure policy;
// that lives in the coordinator. Store failures surface as rejected
// operations and the caller decides whether to retry.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Lucascis/coord/internal/logging"
	"github.com/Lucascis/coord/store"
	"github.com/Lucascis/coord/types"
)

// Store key layout. Instance and assignment records are JSON values with a
// TTL; membership indexes are sets so listing does not require a full key
// scan.
const (
	instanceKeyPrefix   = "instances:"
	assignmentKeyPrefix = "assignments:"
	instanceIndexKey    = "instance-ids"
	typeIndexKeyPrefix  = "instance-ids:"
)

// Config holds the registry's write TTLs.
type Config struct {
	// InstanceTTL is the expiry applied to instance records. Heartbeats
	// refresh the record, so a record older than this indicates a process
	// that stopped heartbeating and whose peers have all missed it.
	InstanceTTL time.Duration

	// AssignmentTTL is the expiry applied to guild assignment records.
	// Refreshed on every activity update.
	AssignmentTTL time.Duration
}

// Registry provides CRUD and query operations over instances and guild
// assignments.
//
// Every mutating call writes with an expiry TTL and publishes a
// corresponding cluster event; reads never publish.
type Registry struct {
	store  store.Store
	bus    types.EventBus
	cfg    Config
	logger types.Logger
}

// New creates a registry over the given store and event bus.
//
// Parameters:
//   - st: Coordination store
//   - bus: Cluster event bus for mutation events
//   - cfg: Write TTL configuration
//   - logger: Logger (nil for none)
//
// Returns:
//   - *Registry: Initialized registry
func New(st store.Store, bus types.EventBus, cfg Config, logger types.Logger) *Registry {
	if logger == nil {
		logger = logging.NewNop()
	}

	return &Registry{store: st, bus: bus, cfg: cfg, logger: logger}
}

// RegisterInstance writes a new instance record and indexes it.
//
// Parameters:
//   - ctx: Context for store operations
//   - inst: Instance to register (stored as-is)
//
// Returns:
//   - error: Store failure
func (r *Registry) RegisterInstance(ctx context.Context, inst *types.Instance) error {
	if err := r.writeInstance(ctx, inst); err != nil {
		return err
	}

	if err := r.store.SAdd(ctx, instanceIndexKey, inst.ID); err != nil {
		return err
	}
	if err := r.store.SAdd(ctx, typeIndexKeyPrefix+string(inst.ServiceType), inst.ID); err != nil {
		return err
	}

	r.publish(ctx, types.InstanceRegistered{Instance: *inst.Clone()})

	return nil
}

// UpdateInstance rewrites an instance record, refreshing its TTL.
func (r *Registry) UpdateInstance(ctx context.Context, inst *types.Instance) error {
	if err := r.writeInstance(ctx, inst); err != nil {
		return err
	}

	r.publish(ctx, types.InstanceUpdated{Instance: *inst.Clone()})

	return nil
}

// RefreshInstance rewrites an instance's liveness fields without publishing
// an event.
//
// Guild assignments on the stored record are authoritative (AssignGuild and
// UnassignGuild mutate it concurrently), so the refresh carries them over
// instead of overwriting them with the caller's view, and returns the merged
// record so the caller can reconcile. No event is published: the heartbeat
// path refreshes every interval, and broadcasting InstanceUpdated for each
// refresh would drown real changes.
func (r *Registry) RefreshInstance(ctx context.Context, inst *types.Instance) (*types.Instance, error) {
	merged := inst.Clone()

	current, err := r.GetInstance(ctx, inst.ID)
	if err != nil && !errors.Is(err, types.ErrInstanceNotFound) {
		return nil, err
	}
	if current != nil {
		merged.AssignedGuilds = current.AssignedGuilds
	}

	if err := r.writeInstance(ctx, merged); err != nil {
		return nil, err
	}

	return merged, nil
}

// DeregisterInstance removes an instance record and its index entries.
//
// Deregistering an unknown instance is not an error; the record may already
// have TTL-expired.
func (r *Registry) DeregisterInstance(ctx context.Context, instanceID string) error {
	inst, err := r.GetInstance(ctx, instanceID)
	if err != nil && !errors.Is(err, types.ErrInstanceNotFound) {
		return err
	}

	if err := r.store.Delete(ctx, instanceKeyPrefix+instanceID); err != nil {
		return err
	}
	if err := r.store.SRem(ctx, instanceIndexKey, instanceID); err != nil {
		return err
	}

	serviceType := types.ServiceType("")
	if inst != nil {
		serviceType = inst.ServiceType
		if err := r.store.SRem(ctx, typeIndexKeyPrefix+string(inst.ServiceType), instanceID); err != nil {
			return err
		}
	}

	r.publish(ctx, types.InstanceDeregistered{InstanceID: instanceID, ServiceType: serviceType})

	return nil
}

// GetInstance returns one instance record.
//
// Returns:
//   - *types.Instance: Deep copy of the record
//   - error: types.ErrInstanceNotFound when missing or expired
func (r *Registry) GetInstance(ctx context.Context, instanceID string) (*types.Instance, error) {
	data, err := r.store.Get(ctx, instanceKeyPrefix+instanceID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", types.ErrInstanceNotFound, instanceID)
		}

		return nil, fmt.Errorf("failed to read instance %s: %w", instanceID, err)
	}

	var inst types.Instance
	if err := json.Unmarshal(data, &inst); err != nil {
		return nil, fmt.Errorf("failed to unmarshal instance %s: %w", instanceID, err)
	}

	return &inst, nil
}

// GetAllInstances returns every live instance record.
//
// Index entries whose record has TTL-expired are pruned as a side effect, so
// the index converges back after crashes.
func (r *Registry) GetAllInstances(ctx context.Context) ([]*types.Instance, error) {
	ids, err := r.store.SMembers(ctx, instanceIndexKey)
	if err != nil {
		return nil, fmt.Errorf("failed to list instance index: %w", err)
	}

	instances := make([]*types.Instance, 0, len(ids))
	for _, id := range ids {
		inst, err := r.GetInstance(ctx, id)
		if err != nil {
			if errors.Is(err, types.ErrInstanceNotFound) {
				// Record expired under the index entry.
				if remErr := r.store.SRem(ctx, instanceIndexKey, id); remErr != nil {
					r.logger.Warn("failed to prune expired instance from index", "instance_id", id, "error", remErr)
				}

				continue
			}

			return nil, err
		}
		instances = append(instances, inst)
	}

	return instances, nil
}

// GetInstancesByType returns live instances of one service type.
func (r *Registry) GetInstancesByType(ctx context.Context, serviceType types.ServiceType) ([]*types.Instance, error) {
	ids, err := r.store.SMembers(ctx, typeIndexKeyPrefix+string(serviceType))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s index: %w", serviceType, err)
	}

	instances := make([]*types.Instance, 0, len(ids))
	for _, id := range ids {
		inst, err := r.GetInstance(ctx, id)
		if err != nil {
			if errors.Is(err, types.ErrInstanceNotFound) {
				if remErr := r.store.SRem(ctx, typeIndexKeyPrefix+string(serviceType), id); remErr != nil {
					r.logger.Warn("failed to prune expired instance from type index", "instance_id", id, "error", remErr)
				}

				continue
			}

			return nil, err
		}
		instances = append(instances, inst)
	}

	return instances, nil
}

// GetHealthyInstances returns instances of one type with status healthy.
func (r *Registry) GetHealthyInstances(ctx context.Context, serviceType types.ServiceType) ([]*types.Instance, error) {
	all, err := r.GetInstancesByType(ctx, serviceType)
	if err != nil {
		return nil, err
	}

	healthy := make([]*types.Instance, 0, len(all))
	for _, inst := range all {
		if inst.IsHealthy() {
			healthy = append(healthy, inst)
		}
	}

	return healthy, nil
}

// AssignGuild binds a guild to an instance.
//
// Idempotent rebind: if the guild is already assigned to another instance,
// the old owner's record is updated before the binding is rewritten. The
// new assignment record is written before the old owner's guild list is
// trimmed, so the race window shows the new owner, never two owners.
func (r *Registry) AssignGuild(ctx context.Context, guildID, instanceID string, serviceType types.ServiceType) error {
	prev, err := r.GetGuildAssignment(ctx, guildID)
	if err != nil && !errors.Is(err, types.ErrAssignmentNotFound) {
		return err
	}

	now := time.Now().UTC()
	assignment := &types.GuildAssignment{
		GuildID:      guildID,
		InstanceID:   instanceID,
		ServiceType:  serviceType,
		AssignedAt:   now,
		LastActivity: now,
	}
	if prev != nil {
		assignment.AssignedAt = prev.AssignedAt
		assignment.HasActiveSession = prev.HasActiveSession
		assignment.IsActivelyServing = prev.IsActivelyServing
	}

	if err := r.writeAssignment(ctx, assignment); err != nil {
		return err
	}

	// Update the owning instance's guild list.
	if inst, err := r.GetInstance(ctx, instanceID); err == nil {
		inst.AddGuild(guildID)
		if err := r.writeInstance(ctx, inst); err != nil {
			return err
		}
	}

	// Trim the previous owner, if different.
	if prev != nil && prev.InstanceID != instanceID {
		if inst, err := r.GetInstance(ctx, prev.InstanceID); err == nil {
			inst.RemoveGuild(guildID)
			if err := r.writeInstance(ctx, inst); err != nil {
				return err
			}
		}
	}

	r.publish(ctx, types.GuildAssigned{GuildID: guildID, InstanceID: instanceID, ServiceType: serviceType})

	return nil
}

// UnassignGuild clears a guild's binding.
//
// Unassigning an unbound guild is a no-op, not an error.
func (r *Registry) UnassignGuild(ctx context.Context, guildID string) error {
	assignment, err := r.GetGuildAssignment(ctx, guildID)
	if err != nil {
		if errors.Is(err, types.ErrAssignmentNotFound) {
			return nil
		}

		return err
	}

	if err := r.store.Delete(ctx, assignmentKeyPrefix+guildID); err != nil {
		return err
	}

	if inst, err := r.GetInstance(ctx, assignment.InstanceID); err == nil {
		inst.RemoveGuild(guildID)
		if err := r.writeInstance(ctx, inst); err != nil {
			return err
		}
	}

	r.publish(ctx, types.GuildUnassigned{GuildID: guildID, InstanceID: assignment.InstanceID})

	return nil
}

// GetGuildAssignment returns a guild's current assignment.
//
// Returns:
//   - *types.GuildAssignment: Current binding
//   - error: types.ErrAssignmentNotFound when the guild is unbound
func (r *Registry) GetGuildAssignment(ctx context.Context, guildID string) (*types.GuildAssignment, error) {
	data, err := r.store.Get(ctx, assignmentKeyPrefix+guildID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", types.ErrAssignmentNotFound, guildID)
		}

		return nil, fmt.Errorf("failed to read assignment %s: %w", guildID, err)
	}

	var assignment types.GuildAssignment
	if err := json.Unmarshal(data, &assignment); err != nil {
		return nil, fmt.Errorf("failed to unmarshal assignment %s: %w", guildID, err)
	}

	return &assignment, nil
}

// GetInstanceGuilds returns the guild IDs owned by an instance.
func (r *Registry) GetInstanceGuilds(ctx context.Context, instanceID string) ([]string, error) {
	inst, err := r.GetInstance(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	return append([]string(nil), inst.AssignedGuilds...), nil
}

// UpdateGuildActivity refreshes a guild's activity timestamp and stickiness
// flags, resetting the assignment TTL.
func (r *Registry) UpdateGuildActivity(ctx context.Context, guildID string, hasActiveSession, isActivelyServing bool) error {
	assignment, err := r.GetGuildAssignment(ctx, guildID)
	if err != nil {
		return err
	}

	assignment.LastActivity = time.Now().UTC()
	assignment.HasActiveSession = hasActiveSession
	assignment.IsActivelyServing = isActivelyServing

	return r.writeAssignment(ctx, assignment)
}

// GetClusterStats aggregates counts by service type and status.
//
// A cheap, derivable view computed on demand; nothing is persisted.
func (r *Registry) GetClusterStats(ctx context.Context) (types.ClusterStats, error) {
	instances, err := r.GetAllInstances(ctx)
	if err != nil {
		return types.ClusterStats{}, err
	}

	stats := types.ClusterStats{
		Instances: len(instances),
		ByType:    make(map[types.ServiceType]types.TypeStats),
		ByStatus:  make(map[types.InstanceStatus]int),
	}

	for _, inst := range instances {
		stats.ByStatus[inst.Status]++
		stats.Assignments += inst.GuildCount()

		ts := stats.ByType[inst.ServiceType]
		ts.Total++
		if inst.IsHealthy() {
			ts.Healthy++
		}
		ts.Guilds += inst.GuildCount()
		ts.MaxCapacity += inst.MaxGuilds
		stats.ByType[inst.ServiceType] = ts
	}

	for serviceType, ts := range stats.ByType {
		if ts.Total > 0 {
			ts.AvgGuilds = float64(ts.Guilds) / float64(ts.Total)
		}
		stats.ByType[serviceType] = ts
	}

	return stats, nil
}

// writeInstance serializes and stores an instance record with TTL.
func (r *Registry) writeInstance(ctx context.Context, inst *types.Instance) error {
	data, err := json.Marshal(inst)
	if err != nil {
		return fmt.Errorf("failed to marshal instance %s: %w", inst.ID, err)
	}
	if err := r.store.Set(ctx, instanceKeyPrefix+inst.ID, data, r.cfg.InstanceTTL); err != nil {
		return fmt.Errorf("failed to write instance %s: %w", inst.ID, err)
	}

	return nil
}

// writeAssignment serializes and stores an assignment record with TTL.
func (r *Registry) writeAssignment(ctx context.Context, assignment *types.GuildAssignment) error {
	data, err := json.Marshal(assignment)
	if err != nil {
		return fmt.Errorf("failed to marshal assignment %s: %w", assignment.GuildID, err)
	}
	if err := r.store.Set(ctx, assignmentKeyPrefix+assignment.GuildID, data, r.cfg.AssignmentTTL); err != nil {
		return fmt.Errorf("failed to write assignment %s: %w", assignment.GuildID, err)
	}

	return nil
}

// publish emits a cluster event, logging (not failing) on bus errors: event
// delivery is observability, not state.
func (r *Registry) publish(ctx context.Context, payload types.EventPayload) {
	if r.bus == nil {
		return
	}
	if err := r.bus.Publish(ctx, types.NewEvent(payload)); err != nil {
		r.logger.Warn("failed to publish cluster event", "type", payload.EventType(), "error", err)
	}
}
