package coord

import "github.com/Lucascis/coord/types"

// Re-export types from the types subpackage.
//
// This file provides a stable public API for the library's core types and
// interfaces via type aliases. Subpackages depend on `types` without
// depending on the root `coord` package, while users still get a convenient
// `coord.Instance`, `coord.Logger`, etc.
type (
	Instance        = types.Instance
	GuildAssignment = types.GuildAssignment
	Heartbeat       = types.Heartbeat
	Event           = types.Event
	ClusterStats    = types.ClusterStats
	ClusterHealth   = types.ClusterHealth
	AffinityStats   = types.AffinityStats
	Resources       = types.Resources
	ServiceType     = types.ServiceType
	InstanceStatus  = types.InstanceStatus
)

// Re-export interfaces from the types subpackage for convenience.
type (
	SelectionStrategy = types.SelectionStrategy
	InstanceSelector  = types.InstanceSelector
	EventBus          = types.EventBus
	MetricsCollector  = types.MetricsCollector
	Logger            = types.Logger
	Hooks             = types.Hooks
)

// Re-export ServiceType constants from the types subpackage.
const (
	ServiceGateway = types.ServiceGateway
	ServiceAudio   = types.ServiceAudio
	ServiceAPI     = types.ServiceAPI
	ServiceWorker  = types.ServiceWorker
)

// Re-export InstanceStatus constants from the types subpackage.
const (
	StatusStarting     = types.StatusStarting
	StatusHealthy      = types.StatusHealthy
	StatusUnhealthy    = types.StatusUnhealthy
	StatusDead         = types.StatusDead
	StatusShuttingDown = types.StatusShuttingDown
)
