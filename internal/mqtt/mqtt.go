// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/sweeney/thermostat/internal/logic"
)

// Topic is the MQTT topic for module events.
const Topic = "home/thermostat/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "home/thermostat/system"

var errEmptyPayload = errors.New("mqtt: empty payload")

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a module event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// ModulePayload contains the event details for one module.
type ModulePayload struct {
	Timestamp   string   `json:"timestamp"`
	Event       string   `json:"event"`
	State       string   `json:"state"`
	Temperature *float64 `json:"temperature,omitempty"`
	Timeout     bool     `json:"timeout,omitempty"`
}

// FormatPayload creates the JSON payload for a module event. The payload is
// keyed by module name, e.g. {"thermostat":{...}} or {"alarm":{...}}.
func FormatPayload(event logic.Event) ([]byte, error) {
	inner := ModulePayload{
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
		Event:     event.Type,
		State:     event.State,
		Timeout:   event.Timeout,
	}
	if event.HasTemperature {
		t := event.Temperature
		inner.Temperature = &t
	}
	return json.Marshal(map[logic.Module]ModulePayload{event.Module: inner})
}

// ParsePayload decodes a payload produced by FormatPayload.
func ParsePayload(data []byte) (logic.Module, ModulePayload, error) {
	var m map[logic.Module]ModulePayload
	if err := json.Unmarshal(data, &m); err != nil {
		return "", ModulePayload{}, err
	}
	for module, p := range m {
		return module, p, nil
	}
	return "", ModulePayload{}, errEmptyPayload
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
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
