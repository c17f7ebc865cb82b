package types

// TypeStats aggregates instance counts for one service type.
type TypeStats struct {
	Total       int     `json:"total"`
	Healthy     int     `json:"healthy"`
	Guilds      int     `json:"guilds"`
	AvgGuilds   float64 `json:"avgGuilds"`
	MaxCapacity int     `json:"maxCapacity"`
}

// ClusterStats is a cheap, derivable view over the registry. It is computed
// on demand and never persisted.
type ClusterStats struct {
	Instances   int                              `json:"instances"`
	Assignments int                              `json:"assignments"`
	ByType      map[ServiceType]TypeStats        `json:"byType"`
	ByStatus    map[InstanceStatus]int           `json:"byStatus"`
}

// AffinityStats summarizes the affinity manager's bindings for health
// reporting.
type AffinityStats struct {
	Total  int `json:"total"`
	Sticky int `json:"sticky"`
	Stale  int `json:"stale"`
}

// ClusterHealth is the aggregate health view returned by the coordinator.
type ClusterHealth struct {
	InstanceID    string         `json:"instanceId"`
	Status        InstanceStatus `json:"status"`
	Leader        bool           `json:"leader"`
	UptimeSeconds int64          `json:"uptimeSeconds"`
	Registry      ClusterStats   `json:"registry"`
	Affinity      AffinityStats  `json:"affinity"`
}
