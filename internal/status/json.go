package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/thermostat/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string         `json:"event,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	Thermostat    ThermostatJSON `json:"thermostat"`
	Alarm         ModuleJSON     `json:"alarm"`
	Ready         bool           `json:"ready"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	StartTime     string         `json:"start_time"`
	Timestamp     string         `json:"timestamp"`
	MQTT          MQTTStatus     `json:"mqtt"`
	Counts        CountsJSON     `json:"event_counts"`
	Network       *NetworkJSON   `json:"network,omitempty"`
	Config        ConfigJSON     `json:"config"`
}

// ModuleJSON reports one module's state.
type ModuleJSON struct {
	State     string `json:"state"`
	LastEvent string `json:"last_event,omitempty"` // RFC3339, omitted before the first event
}

// ThermostatJSON adds the thermostat inputs to ModuleJSON.
type ThermostatJSON struct {
	ModuleJSON
	Temperature *float64 `json:"temperature,omitempty"`
	Threshold   float64  `json:"threshold"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	HeatOn   int `json:"heat_on"`
	HeatOff  int `json:"heat_off"`
	Timeouts int `json:"timeouts"`
	AlarmOn  int `json:"alarm_on"`
	AlarmOff int `json:"alarm_off"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs      int64   `json:"poll_ms"`
	DebounceMs  int64   `json:"debounce_ms"`
	HeartbeatMs int64   `json:"heartbeat_ms"`
	Threshold   float64 `json:"threshold"`
	Broker      string  `json:"broker"`
	HTTPPort    string  `json:"http_port"`
	WSBroker    string  `json:"ws_broker,omitempty"`
	HistoryFile string  `json:"history_file,omitempty"`
}

// StateOrUnknown returns s, or "UNKNOWN" when empty.
func StateOrUnknown(s string) string {
	if s == "" {
		return "UNKNOWN"
	}
	return s
}

// LastEventTime returns the wall-clock time of a module's last event, or
// the zero time if the module has not recorded one.
func (s Snapshot) LastEventTime(m logic.ModuleStatus) time.Time {
	if len(m.History) == 0 {
		return time.Time{}
	}
	return s.StartTime.Add(time.Duration(m.LastEvent))
}

func moduleJSON(snap Snapshot, m logic.ModuleStatus) ModuleJSON {
	out := ModuleJSON{State: StateOrUnknown(m.State)}
	if t := snap.LastEventTime(m); !t.IsZero() {
		out.LastEvent = t.UTC().Format(time.RFC3339)
	}
	return out
}

func buildInner(snap Snapshot) StatusInner {
	c := snap.Controller
	th := ThermostatJSON{
		ModuleJSON: moduleJSON(snap, c.Thermostat),
		Threshold:  c.Threshold,
	}
	if !snap.Updated {
		th.Threshold = snap.Config.Threshold
	}
	if c.HasTemperature {
		t := c.Temperature
		th.Temperature = &t
	}

	return StatusInner{
		Thermostat:    th,
		Alarm:         moduleJSON(snap, c.Alarm),
		Ready:         c.Baselined,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			HeatOn:   c.Counts.HeatOn,
			HeatOff:  c.Counts.HeatOff,
			Timeouts: c.Counts.Timeouts,
			AlarmOn:  c.Counts.AlarmOn,
			AlarmOff: c.Counts.AlarmOff,
		},
		Config: ConfigJSON{
			PollMs:      snap.Config.PollMs,
			DebounceMs:  snap.Config.DebounceMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Threshold:   snap.Config.Threshold,
			Broker:      snap.Config.Broker,
			HTTPPort:    snap.Config.HTTPPort,
			WSBroker:    snap.Config.WSBroker,
			HistoryFile: snap.Config.HistoryFile,
		},
	}
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
