package fsm

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrInvalidEvent is returned when an event outside the declared set is dispatched.
	ErrInvalidEvent = errors.New("fsm: invalid event")

	// ErrNonMonotonic is returned when now is earlier than an already accepted timestamp.
	ErrNonMonotonic = errors.New("fsm: non-monotonic timestamp")
)

// Machine is one running instance of a Definition.
//
// A Machine has a single writer: Dispatch and CheckTimeout must not be called
// concurrently. Reads through the query methods or a Reader may run
// concurrently with the writer; every read is taken under a read lock, so
// status, last event time and history are each a consistent value.
type Machine[S, E comparable] struct {
	mu       sync.RWMutex
	def      Definition[S, E]
	state    S
	watchdog Watchdog
	history  *History[E]

	latest Timestamp // latest accepted now
	seen   bool
}

// NewMachine validates def and returns a machine in def.Initial.
func NewMachine[S, E comparable](def Definition[S, E]) (*Machine[S, E], error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &Machine[S, E]{
		def:      def,
		state:    def.Initial,
		watchdog: NewWatchdog(def.Timeout),
		history:  NewHistory[E](def.HistorySize),
	}, nil
}

// Dispatch applies event at now and returns the resulting state.
//
// Unmapped (state, event) pairs leave the state unchanged. Every accepted
// event is appended to the history, including the idle sentinel; every
// non-idle event re-arms the watchdog. A rejected call changes nothing.
func (m *Machine[S, E]) Dispatch(event E, now Timestamp) (S, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.accept(event, now); err != nil {
		return m.state, err
	}
	m.apply(event, now)
	return m.state, nil
}

// CheckTimeout evaluates the watchdog at now. If the machine is in the
// watched state and the timeout has elapsed since the last qualifying event,
// the expiry event is dispatched and returned; otherwise the idle event is
// returned and nothing is recorded.
func (m *Machine[S, E]) CheckTimeout(now Timestamp) (E, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.accept(m.def.Idle, now); err != nil {
		return m.def.Idle, err
	}
	if m.state != m.def.Watched || !m.watchdog.Expired(now) {
		return m.def.Idle, nil
	}
	m.apply(m.def.Expire, now)
	return m.def.Expire, nil
}

func (m *Machine[S, E]) accept(event E, now Timestamp) error {
	if !m.def.IsEvent(event) {
		return fmt.Errorf("%w: %s: %v", ErrInvalidEvent, m.def.Name, event)
	}
	if m.seen && now < m.latest {
		return fmt.Errorf("%w: %s: %v before %v", ErrNonMonotonic, m.def.Name, now, m.latest)
	}
	return nil
}

func (m *Machine[S, E]) apply(event E, now Timestamp) {
	if next, ok := m.def.Transition(m.state, event); ok {
		m.state = next
	}
	if event != m.def.Idle {
		m.watchdog.Reset(now)
	}
	m.history.Record(Entry[E]{Event: event, At: now})
	m.latest = now
	m.seen = true
}

// Definition returns the module type definition.
func (m *Machine[S, E]) Definition() Definition[S, E] {
	return m.def
}

// State returns the current state.
func (m *Machine[S, E]) State() S {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// LastTimeEvent returns the instant of the last qualifying (non-idle) event,
// or zero if none has occurred.
func (m *Machine[S, E]) LastTimeEvent() Timestamp {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.watchdog.Last()
}

// LastTimeOf returns the instant event was last recorded in the history.
func (m *Machine[S, E]) LastTimeOf(event E) (Timestamp, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.history.LastOf(event)
	return e.At, ok
}

// History returns a copy of the history, most recent last.
func (m *Machine[S, E]) History() []Entry[E] {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.history.Snapshot()
}

// AppendHistory appends the history, most recent last, to dst.
func (m *Machine[S, E]) AppendHistory(dst []Entry[E]) []Entry[E] {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.history.AppendTo(dst)
}

// LastEntry returns the most recent history entry.
func (m *Machine[S, E]) LastEntry() (Entry[E], bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.history.Last()
}

// Reader returns a read-only handle to the machine for diagnostics readers.
func (m *Machine[S, E]) Reader() Reader[S, E] {
	return Reader[S, E]{m: m}
}

// Reader is a read-only view of a Machine. It can be handed to concurrent
// readers; it exposes no way to dispatch events.
type Reader[S, E comparable] struct {
	m *Machine[S, E]
}

// State returns the current state.
func (r Reader[S, E]) State() S { return r.m.State() }

// LastTimeEvent returns the instant of the last qualifying event.
func (r Reader[S, E]) LastTimeEvent() Timestamp { return r.m.LastTimeEvent() }

// LastTimeOf returns the instant event was last recorded.
func (r Reader[S, E]) LastTimeOf(event E) (Timestamp, bool) { return r.m.LastTimeOf(event) }

// History returns a copy of the history, most recent last.
func (r Reader[S, E]) History() []Entry[E] { return r.m.History() }

// LastEntry returns the most recent history entry.
func (r Reader[S, E]) LastEntry() (Entry[E], bool) { return r.m.LastEntry() }
