// Package alarm implements the presence alarm module: a PIR sensor arms the
// alarm when presence is detected and a button disarms it. It has no
// watchdog; the alarm stays ON until disarmed.
package alarm

import (
	"fmt"

	"github.com/sweeney/thermostat/internal/fsm"
)

// HistorySize is the number of events kept for diagnostics.
const HistorySize = 10

// State is the alarm state.
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

// Event drives alarm transitions.
type Event int8

const (
	Unknown Event = iota - 1
	Presence
	Disarm
)

func (e Event) String() string {
	switch e {
	case Unknown:
		return "UNKNOWN"
	case Presence:
		return "PRESENCE"
	case Disarm:
		return "DISARM"
	default:
		return fmt.Sprintf("Event(%d)", int8(e))
	}
}

// Definition returns the alarm module type:
// OFF x PRESENCE -> ON, ON x DISARM -> OFF.
func Definition() fsm.Definition[State, Event] {
	return fsm.Definition[State, Event]{
		Name:        "alarm",
		States:      []State{Off, On},
		Events:      []Event{Unknown, Presence, Disarm},
		Initial:     Off,
		Active:      On,
		Idle:        Unknown,
		Watched:     On,
		Expire:      Disarm,
		HistorySize: HistorySize,
		Transition: func(s State, e Event) (State, bool) {
			switch {
			case s == Off && e == Presence:
				return On, true
			case s == On && e == Disarm:
				return Off, true
			}
			return s, false
		},
	}
}

// Alarm is a single alarm instance with one owner.
type Alarm struct {
	machine   *fsm.Machine[State, Event]
	lastAlarm fsm.Timestamp // kept outside the history ring, which evicts
}

// New creates an alarm in OFF.
func New() *Alarm {
	m, err := fsm.NewMachine(Definition())
	if err != nil {
		panic(err)
	}
	return &Alarm{machine: m}
}

// Feed evaluates the PIR and button inputs at now.
// Presence only counts as new while the alarm is OFF.
func (a *Alarm) Feed(presence, disarm bool, now fsm.Timestamp) (fsm.Intent, error) {
	before := a.machine.State()

	event := Unknown
	switch {
	case before == Off && presence:
		event = Presence
	case before == On && disarm:
		event = Disarm
	}

	after, err := a.machine.Dispatch(event, now)
	if err != nil {
		return fsm.IntentNone, err
	}
	intent := a.machine.Definition().Intent(before, after)
	if intent == fsm.IntentActivate {
		a.lastAlarm = now
	}
	return intent, nil
}

// Status returns the current state.
func (a *Alarm) Status() State {
	return a.machine.State()
}

// LastTimeAlarm returns when the alarm last went ON, or zero if never.
func (a *Alarm) LastTimeAlarm() fsm.Timestamp {
	return a.lastAlarm
}

// LastTimeEvent returns the instant of the last qualifying event, or zero.
func (a *Alarm) LastTimeEvent() fsm.Timestamp {
	return a.machine.LastTimeEvent()
}

// History returns the recorded events, most recent last.
func (a *Alarm) History() []fsm.Entry[Event] {
	return a.machine.History()
}

// Reader returns a read-only handle safe to use from other goroutines.
func (a *Alarm) Reader() fsm.Reader[State, Event] {
	return a.machine.Reader()
}
