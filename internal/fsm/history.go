package fsm

import "github.com/sweeney/thermostat/internal/ring"

// Entry is a single dispatched event and the instant it was dispatched.
type Entry[E comparable] struct {
	Event E
	At    Timestamp
}

// History is a fixed-capacity log of recent entries; the oldest entry is
// evicted once full. Not safe for concurrent use on its own: Machine
// serializes access to the History it owns.
type History[E comparable] struct {
	ring *ring.Buffer[Entry[E]]
}

// NewHistory creates a History holding at most capacity entries.
func NewHistory[E comparable](capacity int) *History[E] {
	return &History[E]{ring: ring.New[Entry[E]](capacity)}
}

// Record appends an entry. It never fails.
func (h *History[E]) Record(e Entry[E]) {
	h.ring.Push(e)
}

// Snapshot returns a copy of the entries, most recent last.
func (h *History[E]) Snapshot() []Entry[E] {
	return h.ring.Snapshot()
}

// AppendTo appends the entries, most recent last, to dst.
func (h *History[E]) AppendTo(dst []Entry[E]) []Entry[E] {
	return h.ring.AppendTo(dst)
}

// Last returns the most recent entry.
func (h *History[E]) Last() (Entry[E], bool) {
	return h.ring.Last()
}

// LastOf returns the most recent entry carrying event.
func (h *History[E]) LastOf(event E) (Entry[E], bool) {
	for i := h.ring.Len() - 1; i >= 0; i-- {
		e, _ := h.ring.At(i)
		if e.Event == event {
			return e, true
		}
	}
	return Entry[E]{}, false
}

// Len returns the number of stored entries.
func (h *History[E]) Len() int {
	return h.ring.Len()
}

// Cap returns the fixed capacity.
func (h *History[E]) Cap() int {
	return h.ring.Cap()
}
