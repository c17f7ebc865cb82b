package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType identifies the kind of a cluster event.
type EventType string

// Cluster event kinds. The set is closed: decoding an unknown type fails
// with ErrUnknownEventType rather than producing an opaque payload.
const (
	EventInstanceRegistered   EventType = "instance_registered"
	EventInstanceUpdated      EventType = "instance_updated"
	EventInstanceDeregistered EventType = "instance_deregistered"
	EventInstanceDied         EventType = "instance_died"
	EventGuildAssigned        EventType = "guild_assigned"
	EventGuildUnassigned      EventType = "guild_unassigned"
	EventMigrationStarted     EventType = "migration_started"
	EventMigrationCompleted   EventType = "migration_completed"
	EventMigrationFailed      EventType = "migration_failed"
	EventRebalanceTriggered   EventType = "rebalance_triggered"
	EventHeartbeat            EventType = "heartbeat"
)

// EventPayload is the closed set of cluster event payloads.
//
// Each payload type reports its own EventType, so an Event can never carry a
// payload that disagrees with its type tag.
type EventPayload interface {
	EventType() EventType
}

// InstanceRegistered is published when an instance registers itself.
type InstanceRegistered struct {
	Instance Instance `json:"instance"`
}

// InstanceUpdated is published when an instance record changes.
type InstanceUpdated struct {
	Instance Instance `json:"instance"`
}

// InstanceDeregistered is published when an instance is removed from the
// registry, either on clean shutdown or after the death grace period.
type InstanceDeregistered struct {
	InstanceID  string      `json:"instanceId"`
	ServiceType ServiceType `json:"serviceType"`
}

// InstanceDied is published by the coordinator that wins the death-handling
// lock for a failed instance.
type InstanceDied struct {
	InstanceID    string      `json:"instanceId"`
	ServiceType   ServiceType `json:"serviceType"`
	LastHeartbeat time.Time   `json:"lastHeartbeat"`
}

// GuildAssigned is published when a guild is bound to an instance.
type GuildAssigned struct {
	GuildID     string      `json:"guildId"`
	InstanceID  string      `json:"instanceId"`
	ServiceType ServiceType `json:"serviceType"`
}

// GuildUnassigned is published when a guild binding is cleared.
type GuildUnassigned struct {
	GuildID    string `json:"guildId"`
	InstanceID string `json:"instanceId"`
}

// MigrationStarted is published before any migration step mutates shared
// state.
type MigrationStarted struct {
	Request MigrationRequest `json:"request"`
}

// MigrationCompleted is published after the new binding is durably written
// and the request record removed.
type MigrationCompleted struct {
	Request  MigrationRequest `json:"request"`
	Duration time.Duration    `json:"duration"`
}

// MigrationFailed is published when any migration step fails. The original
// request is abandoned; retries create a new request.
type MigrationFailed struct {
	Request MigrationRequest `json:"request"`
	Error   string           `json:"error"`
}

// RebalanceTriggered is published by the rebalance leader at the start of a
// pass that will move at least one guild.
type RebalanceTriggered struct {
	ServiceType ServiceType `json:"serviceType"`
	Moves       int         `json:"moves"`
}

// HeartbeatBroadcast carries a heartbeat over the event bus so peers can
// react without polling the store.
type HeartbeatBroadcast struct {
	Heartbeat Heartbeat `json:"heartbeat"`
}

// EventType implementations for each payload kind.
func (InstanceRegistered) EventType() EventType   { return EventInstanceRegistered }
func (InstanceUpdated) EventType() EventType      { return EventInstanceUpdated }
func (InstanceDeregistered) EventType() EventType { return EventInstanceDeregistered }
func (InstanceDied) EventType() EventType         { return EventInstanceDied }
func (GuildAssigned) EventType() EventType        { return EventGuildAssigned }
func (GuildUnassigned) EventType() EventType      { return EventGuildUnassigned }
func (MigrationStarted) EventType() EventType     { return EventMigrationStarted }
func (MigrationCompleted) EventType() EventType   { return EventMigrationCompleted }
func (MigrationFailed) EventType() EventType      { return EventMigrationFailed }
func (RebalanceTriggered) EventType() EventType   { return EventRebalanceTriggered }
func (HeartbeatBroadcast) EventType() EventType   { return EventHeartbeat }

// Event is a typed, timestamped cluster broadcast message.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Payload   EventPayload
}

// NewEvent wraps a payload into an Event stamped with the current time.
//
// Parameters:
//   - payload: One of the EventPayload variants
//
// Returns:
//   - Event: Event with Type derived from the payload
func NewEvent(payload EventPayload) Event {
	return Event{
		Type:      payload.EventType(),
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// eventEnvelope is the wire representation of an Event.
type eventEnvelope struct {
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// MarshalJSON encodes the event as a {type, timestamp, payload} envelope.
func (e Event) MarshalJSON() ([]byte, error) {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}

	return json.Marshal(eventEnvelope{
		Type:      e.Type,
		Timestamp: e.Timestamp,
		Payload:   payload,
	})
}

// UnmarshalJSON decodes the envelope and dispatches on the type tag.
//
// The switch is exhaustive over the closed event set; unknown types return
// ErrUnknownEventType so producers and consumers cannot silently drift.
func (e *Event) UnmarshalJSON(data []byte) error {
	var env eventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("failed to unmarshal event envelope: %w", err)
	}

	var payload EventPayload
	switch env.Type {
	case EventInstanceRegistered:
		payload = &InstanceRegistered{}
	case EventInstanceUpdated:
		payload = &InstanceUpdated{}
	case EventInstanceDeregistered:
		payload = &InstanceDeregistered{}
	case EventInstanceDied:
		payload = &InstanceDied{}
	case EventGuildAssigned:
		payload = &GuildAssigned{}
	case EventGuildUnassigned:
		payload = &GuildUnassigned{}
	case EventMigrationStarted:
		payload = &MigrationStarted{}
	case EventMigrationCompleted:
		payload = &MigrationCompleted{}
	case EventMigrationFailed:
		payload = &MigrationFailed{}
	case EventRebalanceTriggered:
		payload = &RebalanceTriggered{}
	case EventHeartbeat:
		payload = &HeartbeatBroadcast{}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEventType, env.Type)
	}

	if err := json.Unmarshal(env.Payload, payload); err != nil {
		return fmt.Errorf("failed to unmarshal %s payload: %w", env.Type, err)
	}

	e.Type = env.Type
	e.Timestamp = env.Timestamp
	e.Payload = payload

	return nil
}
