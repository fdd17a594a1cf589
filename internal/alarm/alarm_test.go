package alarm

import (
	"errors"
	"testing"
	"time"

	"github.com/sweeney/thermostat/internal/fsm"
)

func at(ms int) fsm.Timestamp {
	return fsm.Timestamp(time.Duration(ms) * time.Millisecond)
}

func TestNewAlarmIsOff(t *testing.T) {
	a := New()
	if a.Status() != Off {
		t.Errorf("status: got %s, want OFF", a.Status())
	}
	if a.LastTimeAlarm() != 0 {
		t.Errorf("last alarm: got %v, want 0", a.LastTimeAlarm())
	}
}

func TestPresenceArmsAlarm(t *testing.T) {
	a := New()

	intent, err := a.Feed(true, false, at(100))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if intent != fsm.IntentActivate {
		t.Errorf("intent: got %s, want ACTIVATE", intent)
	}
	if a.Status() != On {
		t.Errorf("status: got %s, want ON", a.Status())
	}
	if a.LastTimeAlarm() != at(100) {
		t.Errorf("last alarm: got %v, want 100ms", a.LastTimeAlarm())
	}
}

func TestRepeatedPresenceIsNotNew(t *testing.T) {
	a := New()
	a.Feed(true, false, at(100))

	intent, err := a.Feed(true, false, at(200))
	if err != nil {
		t.Fatal(err)
	}
	if intent != fsm.IntentNone {
		t.Errorf("intent: got %s, want NONE", intent)
	}
	if a.LastTimeAlarm() != at(100) {
		t.Errorf("last alarm moved to %v", a.LastTimeAlarm())
	}
	h := a.History()
	if len(h) != 2 || h[1].Event != Unknown {
		t.Errorf("expected second entry UNKNOWN, got %v", h)
	}
}

func TestLastTimeAlarmOutlivesHistory(t *testing.T) {
	a := New()
	a.Feed(true, false, at(100))

	// Idle ticks push the PRESENCE entry out of the ring
	for i := 1; i <= HistorySize+2; i++ {
		a.Feed(true, false, at(100+i*100))
	}
	if _, ok := a.machine.LastTimeOf(Presence); ok {
		t.Fatal("PRESENCE should have been evicted from history")
	}
	if a.Status() != On {
		t.Errorf("status: got %s, want ON", a.Status())
	}
	if a.LastTimeAlarm() != at(100) {
		t.Errorf("last alarm: got %v, want 100ms", a.LastTimeAlarm())
	}
}

func TestLastTimeAlarmTracksRearm(t *testing.T) {
	a := New()
	a.Feed(true, false, at(100))
	a.Feed(false, true, at(200))
	if a.LastTimeAlarm() != at(100) {
		t.Errorf("disarm moved last alarm to %v", a.LastTimeAlarm())
	}

	a.Feed(true, false, at(300))
	if a.LastTimeAlarm() != at(300) {
		t.Errorf("last alarm: got %v, want 300ms", a.LastTimeAlarm())
	}
}

func TestRejectedFeedKeepsLastAlarm(t *testing.T) {
	a := New()
	a.Feed(true, false, at(500))
	a.Feed(false, true, at(600))

	if _, err := a.Feed(true, false, at(100)); !errors.Is(err, fsm.ErrNonMonotonic) {
		t.Fatalf("expected ErrNonMonotonic, got %v", err)
	}
	if a.LastTimeAlarm() != at(500) {
		t.Errorf("last alarm: got %v, want 500ms", a.LastTimeAlarm())
	}
}

func TestDisarmOnlyWhileOn(t *testing.T) {
	a := New()

	// Button while OFF does nothing
	intent, _ := a.Feed(false, true, at(10))
	if intent != fsm.IntentNone || a.Status() != Off {
		t.Errorf("disarm while OFF: intent %s status %s", intent, a.Status())
	}

	a.Feed(true, false, at(20))
	intent, _ = a.Feed(true, true, at(30))
	if intent != fsm.IntentDeactivate {
		t.Errorf("intent: got %s, want DEACTIVATE", intent)
	}
	if a.Status() != Off {
		t.Errorf("status: got %s, want OFF", a.Status())
	}
	if a.LastTimeEvent() != at(30) {
		t.Errorf("last event: got %v, want 30ms", a.LastTimeEvent())
	}
}

func TestAlarmHasNoWatchdog(t *testing.T) {
	a := New()
	a.Feed(true, false, 0)

	a.Feed(false, false, fsm.Timestamp(24*time.Hour))
	if a.Status() != On {
		t.Errorf("status: got %s, want ON", a.Status())
	}
}

func TestAlarmRejectsNonMonotonic(t *testing.T) {
	a := New()
	a.Feed(true, false, at(50))

	_, err := a.Feed(false, true, at(40))
	if !errors.Is(err, fsm.ErrNonMonotonic) {
		t.Fatalf("expected ErrNonMonotonic, got %v", err)
	}
	if a.Status() != On {
		t.Errorf("status: got %s, want ON", a.Status())
	}
}

func TestAlarmStringers(t *testing.T) {
	if Presence.String() != "PRESENCE" || Disarm.String() != "DISARM" || Unknown.String() != "UNKNOWN" {
		t.Error("unexpected event names")
	}
	if On.String() != "ON" || Off.String() != "OFF" {
		t.Error("unexpected state names")
	}
	if r := New().Reader(); r.State() != Off {
		t.Error("reader should report OFF")
	}
}
