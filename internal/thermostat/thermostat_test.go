package thermostat

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/sweeney/thermostat/internal/fsm"
)

func ms(n int) fsm.Timestamp {
	return fsm.Timestamp(time.Duration(n) * time.Millisecond)
}

func secs(n int) fsm.Timestamp {
	return fsm.Timestamp(time.Duration(n) * time.Second)
}

func mustFeed(t *testing.T, th *Thermostat, sample float64, now fsm.Timestamp) fsm.Intent {
	t.Helper()
	intent, err := th.Feed(sample, now)
	if err != nil {
		t.Fatalf("Feed(%v, %v): unexpected error: %v", sample, now, err)
	}
	return intent
}

func TestNewDefaults(t *testing.T) {
	th := New()
	if th.Threshold() != DefaultThreshold {
		t.Errorf("threshold: got %v, want %v", th.Threshold(), DefaultThreshold)
	}
	if th.Status() != Off {
		t.Errorf("status: got %s, want OFF", th.Status())
	}
	if th.LastTimeEvent() != 0 {
		t.Errorf("last time event: got %v, want 0", th.LastTimeEvent())
	}
	if len(th.History()) != 0 {
		t.Errorf("expected empty history, got %d entries", len(th.History()))
	}
}

func TestNewWithThresholdStartsOff(t *testing.T) {
	for _, threshold := range []float64{MinThreshold, -10, 0, 18.5, 20, 42, MaxThreshold} {
		th, err := NewWithThreshold(threshold)
		if err != nil {
			t.Fatalf("threshold %v: unexpected error: %v", threshold, err)
		}
		if th.Status() != Off {
			t.Errorf("threshold %v: expected OFF, got %s", threshold, th.Status())
		}
	}
}

func TestNewWithThresholdRejectsInvalid(t *testing.T) {
	for _, threshold := range []float64{math.NaN(), math.Inf(1), math.Inf(-1), MinThreshold - 0.1, MaxThreshold + 0.1, 1000} {
		th, err := NewWithThreshold(threshold)
		if !errors.Is(err, ErrInvalidThreshold) {
			t.Errorf("threshold %v: expected ErrInvalidThreshold, got %v", threshold, err)
		}
		if th != nil {
			t.Errorf("threshold %v: expected no instance", threshold)
		}
	}
}

func TestScenarioAboveThresholdStaysOff(t *testing.T) {
	th := New()

	intent := mustFeed(t, th, 25.0, 0)
	if intent != fsm.IntentNone {
		t.Errorf("intent: got %s, want NONE", intent)
	}
	if th.Status() != Off {
		t.Errorf("status: got %s, want OFF", th.Status())
	}
}

func TestScenarioBelowThresholdActivates(t *testing.T) {
	th, err := NewWithThreshold(20.0)
	if err != nil {
		t.Fatal(err)
	}

	intent := mustFeed(t, th, 15.0, 0)
	if intent != fsm.IntentActivate {
		t.Errorf("intent: got %s, want ACTIVATE", intent)
	}
	if th.Status() != On {
		t.Errorf("status: got %s, want ON", th.Status())
	}
	if th.LastTimeEvent() != 0 {
		t.Errorf("last time event: got %v, want 0", th.LastTimeEvent())
	}
}

func TestScenarioWatchdogForcesOff(t *testing.T) {
	th := New()
	mustFeed(t, th, 15.0, 0)
	if th.Status() != On {
		t.Fatalf("setup: expected ON, got %s", th.Status())
	}

	tick, err := th.Tick(25.0, secs(TimeoutSec+1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !tick.TimedOut {
		t.Error("expected watchdog to fire")
	}
	if tick.Intent != fsm.IntentDeactivate {
		t.Errorf("intent: got %s, want DEACTIVATE", tick.Intent)
	}
	if th.Status() != Off {
		t.Errorf("status: got %s, want OFF", th.Status())
	}

	// Synthesized deactivation, then the sample's own (no-op) event
	h := th.History()
	want := []fsm.Entry[Event]{
		{Event: Activation, At: 0},
		{Event: Deactivation, At: secs(TimeoutSec + 1)},
		{Event: Unknown, At: secs(TimeoutSec + 1)},
	}
	if len(h) != len(want) {
		t.Fatalf("history: got %d entries, want %d: %v", len(h), len(want), h)
	}
	for i := range want {
		if h[i] != want[i] {
			t.Errorf("history[%d]: got %+v, want %+v", i, h[i], want[i])
		}
	}
	if got := th.LastTimeOf(Deactivation); got != secs(TimeoutSec+1) {
		t.Errorf("LastTimeOf(DEACTIVATION): got %v, want %v", got, secs(TimeoutSec+1))
	}
}

func TestScenarioSampleDeactivates(t *testing.T) {
	th := New()
	mustFeed(t, th, 15.0, 0)

	intent := mustFeed(t, th, 25.0, secs(1))
	if intent != fsm.IntentDeactivate {
		t.Errorf("intent: got %s, want DEACTIVATE", intent)
	}
	if th.Status() != Off {
		t.Errorf("status: got %s, want OFF", th.Status())
	}
	if th.LastTimeEvent() != secs(1) {
		t.Errorf("last time event: got %v, want 1s", th.LastTimeEvent())
	}
}

func TestThresholdBoundary(t *testing.T) {
	th := New()

	// Equal to threshold is not cold
	mustFeed(t, th, DefaultThreshold, 0)
	if th.Status() != Off {
		t.Errorf("sample == threshold while OFF: got %s, want OFF", th.Status())
	}

	mustFeed(t, th, DefaultThreshold-0.01, ms(1))
	if th.Status() != On {
		t.Fatalf("expected ON, got %s", th.Status())
	}

	// Equal to threshold is comfortable
	mustFeed(t, th, DefaultThreshold, ms(2))
	if th.Status() != Off {
		t.Errorf("sample == threshold while ON: got %s, want OFF", th.Status())
	}
}

func TestTimeoutDoesNotSuppressSameTickActivation(t *testing.T) {
	th := New()
	mustFeed(t, th, 15.0, 0)

	// Still cold after the timeout: watchdog forces OFF, sample re-activates
	tick, err := th.Tick(15.0, secs(TimeoutSec))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !tick.TimedOut {
		t.Error("expected watchdog to fire")
	}
	if tick.Event != Activation {
		t.Errorf("event: got %s, want ACTIVATION", tick.Event)
	}
	if tick.State != On || th.Status() != On {
		t.Errorf("status: got %s, want ON", th.Status())
	}
	if tick.Intent != fsm.IntentNone {
		t.Errorf("intent: got %s, want NONE (net unchanged)", tick.Intent)
	}
	if th.LastTimeEvent() != secs(TimeoutSec) {
		t.Errorf("last time event: got %v, want %v", th.LastTimeEvent(), secs(TimeoutSec))
	}
}

func TestWatchdogNoopWhileOff(t *testing.T) {
	th := New()
	tick, err := th.Tick(25.0, secs(1000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tick.TimedOut {
		t.Error("watchdog must not fire while OFF")
	}
	if len(th.History()) != 1 {
		t.Errorf("expected only the sample's entry, got %v", th.History())
	}
}

func TestWatchWithoutSample(t *testing.T) {
	th := New()
	mustFeed(t, th, 15.0, 0)

	tick, err := th.Watch(ms(500))
	if err != nil {
		t.Fatal(err)
	}
	if tick.TimedOut || tick.Intent != fsm.IntentNone || th.Status() != On {
		t.Errorf("early watch: got %+v, status %s", tick, th.Status())
	}

	tick, err = th.Watch(secs(TimeoutSec))
	if err != nil {
		t.Fatal(err)
	}
	if !tick.TimedOut || tick.Intent != fsm.IntentDeactivate || tick.Event != Deactivation {
		t.Errorf("expired watch: got %+v", tick)
	}
	if th.Status() != Off {
		t.Errorf("status: got %s, want OFF", th.Status())
	}

	// Nothing more to expire while OFF
	tick, err = th.Watch(secs(100))
	if err != nil {
		t.Fatal(err)
	}
	if tick.Event != Unknown || len(th.History()) != 2 {
		t.Errorf("watch while OFF: got %+v, history %v", tick, th.History())
	}
}

func TestWatchdogNotYetExpired(t *testing.T) {
	th := New()
	mustFeed(t, th, 15.0, 0)

	tick, err := th.Tick(15.0, ms(999))
	if err != nil {
		t.Fatal(err)
	}
	if tick.TimedOut {
		t.Error("watchdog fired early")
	}
	if th.Status() != On {
		t.Errorf("status: got %s, want ON", th.Status())
	}
}

func TestUnknownSamplesAreIdempotent(t *testing.T) {
	th := New()
	mustFeed(t, th, 15.0, 0) // ON

	for i := 1; i <= 50; i++ {
		// Cold while ON derives UNKNOWN; keep inside the timeout window
		intent := mustFeed(t, th, 10.0, ms(i*10))
		if intent != fsm.IntentNone {
			t.Fatalf("iteration %d: intent %s", i, intent)
		}
		if th.Status() != On {
			t.Fatalf("iteration %d: status changed to %s", i, th.Status())
		}
	}
	if th.LastTimeEvent() != 0 {
		t.Errorf("UNKNOWN must not move last time event, got %v", th.LastTimeEvent())
	}
}

func TestHistoryCapacityBoundary(t *testing.T) {
	th := New()
	samples := []float64{15.0, 25.0}

	for i := 0; i < HistorySize+3; i++ {
		mustFeed(t, th, samples[i%2], ms(i))
	}

	h := th.History()
	if len(h) != HistorySize {
		t.Fatalf("history length: got %d, want %d", len(h), HistorySize)
	}
	// The 4th fed event (index 3) is the oldest retained
	if h[0].At != ms(3) {
		t.Errorf("oldest entry: got %v, want %v", h[0].At, ms(3))
	}
	if h[0].Event != Deactivation {
		t.Errorf("oldest entry event: got %s, want DEACTIVATION", h[0].Event)
	}
	if h[len(h)-1].At != ms(HistorySize+2) {
		t.Errorf("newest entry: got %v, want %v", h[len(h)-1].At, ms(HistorySize+2))
	}
}

func TestFeedRejectsInvalidSample(t *testing.T) {
	th := New()
	mustFeed(t, th, 15.0, 0)

	for _, sample := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := th.Feed(sample, ms(1))
		if !errors.Is(err, ErrInvalidSample) {
			t.Errorf("sample %v: expected ErrInvalidSample, got %v", sample, err)
		}
	}
	if th.Status() != On {
		t.Errorf("status: got %s, want ON", th.Status())
	}
	if len(th.History()) != 1 {
		t.Errorf("rejected samples must not be recorded, got %v", th.History())
	}
}

func TestFeedRejectsNonMonotonic(t *testing.T) {
	th := New()
	mustFeed(t, th, 15.0, secs(5))

	_, err := th.Feed(25.0, secs(4))
	if !errors.Is(err, fsm.ErrNonMonotonic) {
		t.Fatalf("expected ErrNonMonotonic, got %v", err)
	}
	if th.Status() != On {
		t.Errorf("status: got %s, want ON", th.Status())
	}
	if len(th.History()) != 1 {
		t.Errorf("rejected call must not be recorded, got %v", th.History())
	}
}

func TestStatesAlwaysDeclared(t *testing.T) {
	th := New()
	samples := []float64{30, 10, 10, 21, 19.9, 20, -5, 100, 20, 19}
	now := fsm.Timestamp(0)
	for round := 0; round < 20; round++ {
		for _, s := range samples {
			now += ms(137 * (round + 1))
			if _, err := th.Feed(s, now); err != nil {
				t.Fatal(err)
			}
			if st := th.Status(); st != Off && st != On {
				t.Fatalf("undeclared state %d", st)
			}
		}
	}
}

func TestFeedAllocationFree(t *testing.T) {
	th := New()
	now := fsm.Timestamp(0)
	samples := []float64{15, 25}
	i := 0
	allocs := testing.AllocsPerRun(200, func() {
		now += ms(1)
		th.Feed(samples[i%2], now)
		i++
	})
	if allocs != 0 {
		t.Errorf("Feed allocated %v times per run", allocs)
	}
}

func TestReaderReflectsWrites(t *testing.T) {
	th := New()
	r := th.Reader()
	mustFeed(t, th, 15.0, ms(7))

	if r.State() != On {
		t.Errorf("reader state: got %s, want ON", r.State())
	}
	if r.LastTimeEvent() != ms(7) {
		t.Errorf("reader last time: got %v, want 7ms", r.LastTimeEvent())
	}
	if len(r.History()) != 1 {
		t.Errorf("reader history: got %d entries", len(r.History()))
	}
}

func TestStringers(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{Off.String(), "OFF"},
		{On.String(), "ON"},
		{State(5).String(), "State(5)"},
		{Unknown.String(), "UNKNOWN"},
		{Activation.String(), "ACTIVATION"},
		{Deactivation.String(), "DEACTIVATION"},
		{Event(7).String(), "Event(7)"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}
