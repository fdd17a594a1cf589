// Package logic contains pure business logic for the thermostat controller.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import (
	"time"

	"github.com/sweeney/thermostat/internal/fsm"
)

// Module names the control module an event comes from.
type Module string

const (
	ModuleThermostat Module = "thermostat"
	ModuleAlarm      Module = "alarm"
)

// Event represents an effective state transition to be published.
type Event struct {
	Timestamp time.Time
	Module    Module
	Type      string // e.g. "ACTIVATION", "DEACTIVATION", "PRESENCE", "DISARM"
	State     string // state after the transition, "ON" or "OFF"
	Intent    fsm.Intent

	// Thermostat only
	Temperature    float64
	HasTemperature bool
	Timeout        bool // the watchdog forced the deactivation
}

// Level is the debounced logical level of a digital input.
type Level string

const (
	LevelHigh Level = "HIGH"
	LevelLow  Level = "LOW"
)

// ChannelState tracks debounce state for a single digital input.
type ChannelState struct {
	// Current stable (debounced) level
	Stable Level
	// Pending level during debounce
	Pending Level
	// Time when pending level was first observed
	PendingSince time.Time
	// Whether we have established a baseline
	Baselined bool
}

// Input represents a single sample of all controller inputs.
type Input struct {
	// Temperature in Celsius; ignored unless HasTemperature.
	Temperature    float64
	HasTemperature bool

	Presence bool // PIR active
	Disarm   bool // disarm button pressed

	Time time.Time
}

// EventCounts tracks the number of each event type since startup.
type EventCounts struct {
	HeatOn   int
	HeatOff  int
	Timeouts int
	AlarmOn  int
	AlarmOff int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    EventCounts
}

// HistoryEntry is one recorded module event with both clocks.
type HistoryEntry struct {
	Event string
	At    fsm.Timestamp // monotonic, since controller start
	Time  time.Time     // wall clock
}

// ModuleStatus is a point-in-time view of one module.
type ModuleStatus struct {
	State     string
	LastEvent fsm.Timestamp
	History   []HistoryEntry
}

// Status is a point-in-time view of the controller.
type Status struct {
	Thermostat     ModuleStatus
	Alarm          ModuleStatus
	Threshold      float64
	Temperature    float64
	HasTemperature bool
	Baselined      bool
	Counts         EventCounts
}
