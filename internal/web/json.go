package web

import (
	"encoding/json"
	"time"

	"github.com/sweeney/thermostat/internal/logic"
	"github.com/sweeney/thermostat/internal/status"
)

// HistoryJSON is the JSON representation of the module event histories.
type HistoryJSON struct {
	History HistoryInner `json:"history"`
}

// HistoryInner contains the current and previous session histories.
type HistoryInner struct {
	StartTime  string        `json:"start_time"`
	Thermostat []EntryJSON   `json:"thermostat"`
	Alarm      []EntryJSON   `json:"alarm"`
	Previous   *PreviousJSON `json:"previous,omitempty"`
}

// EntryJSON is one recorded module event, oldest first.
type EntryJSON struct {
	Event     string `json:"event"`
	Timestamp string `json:"timestamp"`
	AtMs      int64  `json:"at_ms"` // monotonic, since daemon start
}

// PreviousJSON is the journaled history of the previous session.
type PreviousJSON struct {
	StartTime string              `json:"start_time,omitempty"`
	Events    []PreviousEventJSON `json:"events"`
}

// PreviousEventJSON is one journaled event from the previous session.
type PreviousEventJSON struct {
	Module    string `json:"module"`
	Event     string `json:"event"`
	Timestamp string `json:"timestamp"`
	Timeout   bool   `json:"timeout,omitempty"`
}

func entriesJSON(entries []logic.HistoryEntry) []EntryJSON {
	out := make([]EntryJSON, len(entries))
	for i, e := range entries {
		out[i] = EntryJSON{
			Event:     e.Event,
			Timestamp: e.Time.UTC().Format(time.RFC3339Nano),
			AtMs:      e.At.Milliseconds(),
		}
	}
	return out
}

func formatHistoryJSON(snap status.Snapshot) []byte {
	hj := HistoryJSON{
		History: HistoryInner{
			StartTime:  snap.StartTime.UTC().Format(time.RFC3339),
			Thermostat: entriesJSON(snap.Controller.Thermostat.History),
			Alarm:      entriesJSON(snap.Controller.Alarm.History),
		},
	}

	if p := snap.Previous; p != nil {
		prev := &PreviousJSON{Events: make([]PreviousEventJSON, len(p.Events))}
		if !p.Boot.IsZero() {
			prev.StartTime = p.Boot.UTC().Format(time.RFC3339)
		}
		for i, e := range p.Events {
			prev.Events[i] = PreviousEventJSON{
				Module:    e.Module,
				Event:     e.Event,
				Timestamp: e.Time.UTC().Format(time.RFC3339Nano),
				Timeout:   e.Timeout,
			}
		}
		hj.History.Previous = prev
	}

	data, _ := json.MarshalIndent(hj, "", "  ")
	return data
}
