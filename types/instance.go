package types

import "time"

// ServiceType partitions the fleet into independent pools. Guilds are only
// ever balanced between instances of the same service type.
type ServiceType string

// Known service types.
const (
	ServiceGateway ServiceType = "gateway"
	ServiceAudio   ServiceType = "audio"
	ServiceAPI     ServiceType = "api"
	ServiceWorker  ServiceType = "worker"
)

// InstanceStatus is the lifecycle status of a registered instance.
type InstanceStatus string

// Instance lifecycle states.
//
// Transitions:
//
//	starting → healthy                    (successful registration)
//	healthy ⇄ unhealthy                   (missed heartbeats / recovery)
//	healthy|unhealthy → shutting_down     (Stop called)
//	unhealthy → dead                      (missed-heartbeat threshold reached)
//	shutting_down → dead                  (deregistered)
//
// Dead is terminal. A revived process re-registers as a new starting
// instance; there is no automatic revival of a dead record.
const (
	StatusStarting     InstanceStatus = "starting"
	StatusHealthy      InstanceStatus = "healthy"
	StatusUnhealthy    InstanceStatus = "unhealthy"
	StatusShuttingDown InstanceStatus = "shutting_down"
	StatusDead         InstanceStatus = "dead"
)

// validStatusTransitions defines the allowed lifecycle transitions.
var validStatusTransitions = map[InstanceStatus][]InstanceStatus{
	StatusStarting:     {StatusHealthy, StatusShuttingDown, StatusDead},
	StatusHealthy:      {StatusUnhealthy, StatusShuttingDown, StatusDead},
	StatusUnhealthy:    {StatusHealthy, StatusShuttingDown, StatusDead},
	StatusShuttingDown: {StatusDead},
	StatusDead:         {}, // Terminal state - no transitions allowed
}

// CanTransitionTo reports whether a transition from s to next is allowed.
//
// Parameters:
//   - next: Target status
//
// Returns:
//   - bool: true if the transition is valid
func (s InstanceStatus) CanTransitionTo(next InstanceStatus) bool {
	allowed, ok := validStatusTransitions[s]
	if !ok {
		return false
	}

	for _, a := range allowed {
		if a == next {
			return true
		}
	}

	return false
}

// String returns the status as a string.
func (s InstanceStatus) String() string { return string(s) }

// Resources is a point-in-time snapshot of an instance's capacity headroom.
type Resources struct {
	// AvailableMemoryMB is the free memory on the host in megabytes.
	AvailableMemoryMB int64 `json:"availableMemoryMb"`

	// CPUPercent is the current CPU usage in the range [0, 100].
	CPUPercent float64 `json:"cpuPercent"`
}

// Instance is one running process belonging to a service-type pool.
//
// Created by self-registration on process start, mutated on every heartbeat
// and on guild assignment changes, and removed (TTL expiry or explicit
// deregistration) on clean shutdown or after the death grace period.
type Instance struct {
	// ID uniquely identifies the instance across the cluster.
	ID string `json:"id"`

	// ServiceType is the pool this instance belongs to.
	ServiceType ServiceType `json:"serviceType"`

	// Status is the current lifecycle status.
	Status InstanceStatus `json:"status"`

	// Host and Port locate the instance for downstream routing.
	Host string `json:"host"`
	Port int    `json:"port"`

	// StartedAt is when the process registered itself.
	StartedAt time.Time `json:"startedAt"`

	// LastHeartbeat is the timestamp of the most recent heartbeat.
	LastHeartbeat time.Time `json:"lastHeartbeat"`

	// Resources is the latest resource snapshot reported via heartbeat.
	Resources Resources `json:"resources"`

	// AssignedGuilds lists the guild IDs this instance currently owns.
	AssignedGuilds []string `json:"assignedGuilds"`

	// MaxGuilds is the capacity ceiling. Enforced best-effort at assignment
	// time, not as a hard guarantee under concurrent races.
	MaxGuilds int `json:"maxGuilds"`
}

// IsHealthy reports whether the instance can accept new guilds.
func (i *Instance) IsHealthy() bool {
	return i.Status == StatusHealthy
}

// HasCapacity reports whether the instance is below its capacity ceiling.
func (i *Instance) HasCapacity() bool {
	return i.MaxGuilds <= 0 || len(i.AssignedGuilds) < i.MaxGuilds
}

// GuildCount returns the number of guilds currently assigned.
func (i *Instance) GuildCount() int {
	return len(i.AssignedGuilds)
}

// HasGuild reports whether the given guild is assigned to this instance.
func (i *Instance) HasGuild(guildID string) bool {
	for _, g := range i.AssignedGuilds {
		if g == guildID {
			return true
		}
	}

	return false
}

// AddGuild appends a guild to the assigned list if not already present.
func (i *Instance) AddGuild(guildID string) {
	if i.HasGuild(guildID) {
		return
	}
	i.AssignedGuilds = append(i.AssignedGuilds, guildID)
}

// RemoveGuild removes a guild from the assigned list if present.
func (i *Instance) RemoveGuild(guildID string) {
	for idx, g := range i.AssignedGuilds {
		if g == guildID {
			i.AssignedGuilds = append(i.AssignedGuilds[:idx], i.AssignedGuilds[idx+1:]...)
			return
		}
	}
}

// Clone returns a deep copy of the instance.
//
// Registry reads return clones so callers can mutate results without
// corrupting shared state.
func (i *Instance) Clone() *Instance {
	c := *i
	c.AssignedGuilds = append([]string(nil), i.AssignedGuilds...)

	return &c
}
