// Package status provides a thread-safe status tracker for the thermostat daemon.
// It is read by HTTP handlers and by the MQTT system events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/thermostat/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	PollMs      int64
	DebounceMs  int64
	HeartbeatMs int64
	Threshold   float64
	Broker      string
	HTTPPort    string
	WSBroker    string // Websocket broker URL for browser MQTT (empty = disabled)
	HistoryFile string // empty = journal disabled
}

// PreviousEvent is a module event journaled by an earlier run. This is a
// local copy to avoid importing internal/store from status.
type PreviousEvent struct {
	Module  string
	Event   string
	Timeout bool
	Time    time.Time
}

// Previous is the journaled history of the last session.
type Previous struct {
	Boot   time.Time
	Events []PreviousEvent
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Controller    logic.Status
	Updated       bool // Controller has been set at least once
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Previous      *Previous
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update sets the controller status. Called from runLoop on every tick.
// The history slices in st must not be modified afterwards.
func (t *Tracker) Update(st logic.Status) {
	t.mu.Lock()
	t.snap.Controller = st
	t.snap.Updated = true
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// SetPrevious sets the history recovered from the previous session.
func (t *Tracker) SetPrevious(prev *Previous) {
	t.mu.Lock()
	t.snap.Previous = prev
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
