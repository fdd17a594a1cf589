// Package thermostat implements the thermostat control module: a two-state
// machine driven by a hysteresis comparator against a temperature threshold,
// with a watchdog that fails safe to OFF.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always supplied by the caller as an fsm.Timestamp.
package thermostat

import (
	"fmt"
	"time"
)

// Build-time configuration.
const (
	// DefaultThreshold is the threshold used when none is given, in Celsius.
	DefaultThreshold = 20.0

	// HistorySize is the number of events kept for diagnostics.
	HistorySize = 10

	// TimeoutSec is how long the thermostat may stay ON without a qualifying event.
	TimeoutSec = 1
	Timeout    = TimeoutSec * time.Second

	// MinThreshold and MaxThreshold bound a physically sane threshold.
	// They match the LM35 measuring range.
	MinThreshold = -55.0
	MaxThreshold = 150.0
)

// State is the thermostat state.
type State int8

const (
	Off State = iota
	On
)

func (s State) String() string {
	switch s {
	case Off:
		return "OFF"
	case On:
		return "ON"
	default:
		return fmt.Sprintf("State(%d)", int8(s))
	}
}

// Event drives thermostat transitions.
type Event int8

const (
	Unknown Event = iota - 1 // no-op sentinel
	Activation
	Deactivation
)

func (e Event) String() string {
	switch e {
	case Unknown:
		return "UNKNOWN"
	case Activation:
		return "ACTIVATION"
	case Deactivation:
		return "DEACTIVATION"
	default:
		return fmt.Sprintf("Event(%d)", int8(e))
	}
}
