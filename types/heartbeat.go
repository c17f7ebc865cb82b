package types

import "time"

// Heartbeat is the ephemeral liveness record an instance writes on every
// heartbeat interval.
//
// Heartbeats expire automatically (TTL = the configured heartbeat timeout)
// and are never read back by the instance that wrote them; they exist for
// peers' failure detection and for pub/sub broadcast.
type Heartbeat struct {
	InstanceID string         `json:"instanceId"`
	Timestamp  time.Time      `json:"timestamp"`
	Status     InstanceStatus `json:"status"`

	// Metrics payload for peers and operational tooling.
	GuildCount        int     `json:"guildCount"`
	ActiveSessions    int     `json:"activeSessions"`
	AvailableMemoryMB int64   `json:"availableMemoryMb"`
	CPUPercent        float64 `json:"cpuPercent"`
	UptimeSeconds     int64   `json:"uptimeSeconds"`
}
