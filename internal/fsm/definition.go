// Package fsm implements a small deterministic event-dispatch engine for
// fixed two-level control modules. A Definition describes one module type:
// its closed sets of states and events, a total transition function and an
// optional watchdog that forces a state out of Watched after Timeout without
// qualifying events. Dispatch never allocates after construction.
package fsm

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidDefinition is returned by NewMachine for an inconsistent Definition.
var ErrInvalidDefinition = errors.New("fsm: invalid definition")

// Definition describes a module type. It is fixed for the lifetime of the
// machines built from it.
type Definition[S, E comparable] struct {
	// Name identifies the module type in errors and diagnostics.
	Name string

	// States and Events are the closed enumerations.
	States []S
	Events []E

	// Initial is the state a new machine starts in.
	Initial S
	// Active is the state whose entry means "actuate".
	Active S

	// Idle is the sentinel event; it never changes state and never re-arms the watchdog.
	Idle E

	// Watched is the state subject to watchdog expiry; Expire is the event
	// synthesized when it fires. Timeout of zero disables the watchdog.
	Watched S
	Expire  E
	Timeout time.Duration

	// HistorySize is the history ring capacity.
	HistorySize int

	// Transition maps (state, event) to the next state. ok is false for
	// unmapped pairs, which are treated as identity.
	Transition func(s S, e E) (next S, ok bool)
}

// Validate checks that the definition is internally consistent.
func (d Definition[S, E]) Validate() error {
	switch {
	case len(d.States) == 0:
		return fmt.Errorf("%w: %s: no states", ErrInvalidDefinition, d.Name)
	case len(d.Events) == 0:
		return fmt.Errorf("%w: %s: no events", ErrInvalidDefinition, d.Name)
	case d.Transition == nil:
		return fmt.Errorf("%w: %s: nil transition function", ErrInvalidDefinition, d.Name)
	case d.HistorySize < 1:
		return fmt.Errorf("%w: %s: history size %d", ErrInvalidDefinition, d.Name, d.HistorySize)
	case d.Timeout < 0:
		return fmt.Errorf("%w: %s: negative timeout %v", ErrInvalidDefinition, d.Name, d.Timeout)
	}

	for _, s := range []S{d.Initial, d.Active, d.Watched} {
		if !contains(d.States, s) {
			return fmt.Errorf("%w: %s: state %v not declared", ErrInvalidDefinition, d.Name, s)
		}
	}
	for _, e := range []E{d.Idle, d.Expire} {
		if !contains(d.Events, e) {
			return fmt.Errorf("%w: %s: event %v not declared", ErrInvalidDefinition, d.Name, e)
		}
	}

	for _, s := range d.States {
		if next, ok := d.Transition(s, d.Idle); ok && next != s {
			return fmt.Errorf("%w: %s: idle event changes state %v", ErrInvalidDefinition, d.Name, s)
		}
		for _, e := range d.Events {
			if next, ok := d.Transition(s, e); ok && !contains(d.States, next) {
				return fmt.Errorf("%w: %s: %v x %v leads to undeclared state %v", ErrInvalidDefinition, d.Name, s, e, next)
			}
		}
	}
	return nil
}

// IsEvent reports whether e belongs to the declared event set.
func (d Definition[S, E]) IsEvent(e E) bool {
	return contains(d.Events, e)
}

// Intent returns the actuation implied by moving from before to after.
func (d Definition[S, E]) Intent(before, after S) Intent {
	wasActive, isActive := before == d.Active, after == d.Active
	switch {
	case !wasActive && isActive:
		return IntentActivate
	case wasActive && !isActive:
		return IntentDeactivate
	default:
		return IntentNone
	}
}

func contains[T comparable](set []T, v T) bool {
	for _, x := range set {
		if x == v {
			return true
		}
	}
	return false
}

// Intent is an actuation request produced by a tick.
type Intent int8

const (
	IntentNone Intent = iota
	IntentActivate
	IntentDeactivate
)

func (i Intent) String() string {
	switch i {
	case IntentNone:
		return "NONE"
	case IntentActivate:
		return "ACTIVATE"
	case IntentDeactivate:
		return "DEACTIVATE"
	default:
		return fmt.Sprintf("Intent(%d)", int8(i))
	}
}
