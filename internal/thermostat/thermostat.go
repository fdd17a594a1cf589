package thermostat

import (
	"errors"
	"fmt"
	"math"

	"github.com/sweeney/thermostat/internal/fsm"
)

var (
	// ErrInvalidThreshold is returned when a threshold is outside
	// [MinThreshold, MaxThreshold] or not a number.
	ErrInvalidThreshold = errors.New("thermostat: invalid threshold")

	// ErrInvalidSample is returned for NaN or infinite temperature samples.
	ErrInvalidSample = errors.New("thermostat: invalid sample")
)

// Definition returns the thermostat module type:
// OFF x ACTIVATION -> ON, ON x DEACTIVATION -> OFF, ON x timeout -> OFF.
func Definition() fsm.Definition[State, Event] {
	return fsm.Definition[State, Event]{
		Name:        "thermostat",
		States:      []State{Off, On},
		Events:      []Event{Unknown, Activation, Deactivation},
		Initial:     Off,
		Active:      On,
		Idle:        Unknown,
		Watched:     On,
		Expire:      Deactivation,
		Timeout:     Timeout,
		HistorySize: HistorySize,
		Transition:  transition,
	}
}

func transition(s State, e Event) (State, bool) {
	switch {
	case s == Off && e == Activation:
		return On, true
	case s == On && e == Deactivation:
		return Off, true
	}
	return s, false
}

// Tick is the outcome of one Feed.
type Tick struct {
	// Intent is the net actuation for the tick.
	Intent fsm.Intent
	// Event is the event derived from the sample.
	Event Event
	// TimedOut reports that the watchdog forced a deactivation before the
	// sample was evaluated.
	TimedOut bool
	// State is the state after the tick.
	State State
}

// Thermostat is a single thermostat instance. It has one owner: Feed must
// not be called concurrently. Use Reader for concurrent diagnostics.
type Thermostat struct {
	machine   *fsm.Machine[State, Event]
	threshold float64
}

// New creates a thermostat with DefaultThreshold.
func New() *Thermostat {
	t, err := NewWithThreshold(DefaultThreshold)
	if err != nil {
		panic(err)
	}
	return t
}

// NewWithThreshold creates a thermostat with the given threshold in Celsius.
func NewWithThreshold(threshold float64) (*Thermostat, error) {
	if err := ValidateThreshold(threshold); err != nil {
		return nil, err
	}
	m, err := fsm.NewMachine(Definition())
	if err != nil {
		return nil, fmt.Errorf("thermostat: %w", err)
	}
	return &Thermostat{machine: m, threshold: threshold}, nil
}

// ValidateThreshold reports whether threshold is usable.
func ValidateThreshold(threshold float64) error {
	if math.IsNaN(threshold) || threshold < MinThreshold || threshold > MaxThreshold {
		return fmt.Errorf("%w: %v (want %v..%v)", ErrInvalidThreshold, threshold, MinThreshold, MaxThreshold)
	}
	return nil
}

// Feed evaluates one temperature sample at now and returns the actuation intent.
func (t *Thermostat) Feed(sample float64, now fsm.Timestamp) (fsm.Intent, error) {
	tick, err := t.Tick(sample, now)
	return tick.Intent, err
}

// Tick evaluates one temperature sample at now.
//
// The watchdog is checked first, against the state before the tick. The
// sample is then compared with the threshold against the resulting state, so
// a timeout never suppresses an activation arriving in the same tick.
func (t *Thermostat) Tick(sample float64, now fsm.Timestamp) (Tick, error) {
	before := t.machine.State()
	if math.IsNaN(sample) || math.IsInf(sample, 0) {
		return Tick{State: before, Event: Unknown}, fmt.Errorf("%w: %v", ErrInvalidSample, sample)
	}

	expired, err := t.machine.CheckTimeout(now)
	if err != nil {
		return Tick{State: before, Event: Unknown}, err
	}

	event := t.derive(t.machine.State(), sample)
	after, err := t.machine.Dispatch(event, now)
	if err != nil {
		return Tick{State: after, Event: event}, err
	}

	return Tick{
		Intent:   t.machine.Definition().Intent(before, after),
		Event:    event,
		TimedOut: expired == Deactivation,
		State:    after,
	}, nil
}

// Watch evaluates only the watchdog at now. Callers use it on ticks without a
// usable sample (for example a failed sensor read) so a stuck input still
// fails safe to OFF.
func (t *Thermostat) Watch(now fsm.Timestamp) (Tick, error) {
	before := t.machine.State()
	expired, err := t.machine.CheckTimeout(now)
	if err != nil {
		return Tick{State: before, Event: Unknown}, err
	}
	after := t.machine.State()
	return Tick{
		Intent:   t.machine.Definition().Intent(before, after),
		Event:    expired,
		TimedOut: expired == Deactivation,
		State:    after,
	}, nil
}

// derive is the hysteresis comparator: the trigger direction depends on s.
func (t *Thermostat) derive(s State, sample float64) Event {
	switch {
	case s == Off && sample < t.threshold:
		return Activation
	case s == On && sample >= t.threshold:
		return Deactivation
	default:
		return Unknown
	}
}

// Status returns the current state.
func (t *Thermostat) Status() State {
	return t.machine.State()
}

// LastTimeEvent returns the instant of the last qualifying event, or zero.
func (t *Thermostat) LastTimeEvent() fsm.Timestamp {
	return t.machine.LastTimeEvent()
}

// LastTimeOf returns the instant event was last recorded in the history.
// It returns zero when the event is not in the history.
func (t *Thermostat) LastTimeOf(event Event) fsm.Timestamp {
	at, _ := t.machine.LastTimeOf(event)
	return at
}

// History returns the recorded events, most recent last.
func (t *Thermostat) History() []fsm.Entry[Event] {
	return t.machine.History()
}

// Threshold returns the configured threshold in Celsius.
func (t *Thermostat) Threshold() float64 {
	return t.threshold
}

// Reader returns a read-only handle safe to use from other goroutines.
func (t *Thermostat) Reader() fsm.Reader[State, Event] {
	return t.machine.Reader()
}
