// Package mqtt mirrors pump events to an MQTT broker.
//
// The mirror is optional and strictly fire-and-forget: the TCP status
// channel is the primary transport, and a broker outage never affects the
// control loop.
package mqtt

import (
	"encoding/json"
	"time"
)

// Topic is the MQTT topic for pump state events.
const Topic = "basement/sump/sensor/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "basement/sump/sensor/system"

// Event represents a pump state transition.
type Event struct {
	Timestamp time.Time
	Stamp     uint64 // monotonic milliseconds, matches the wire frame
	Active    bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN"
	Reason     string // e.g., "SIGTERM" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a pump event to the broker.
	// Returns error if publishing fails (must not crash the process).
	Publish(event Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Sump SumpPayload `json:"sump"`
}

// SumpPayload contains the pump event details.
type SumpPayload struct {
	Timestamp string `json:"timestamp"`
	State     string `json:"state"`
	StampMs   uint64 `json:"stamp_ms"`
}

// FormatPayload creates the JSON payload for a pump event.
func FormatPayload(event Event) ([]byte, error) {
	state := "off"
	if event.Active {
		state = "on"
	}
	payload := Payload{
		Sump: SumpPayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			State:     state,
			StampMs:   event.Stamp,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
