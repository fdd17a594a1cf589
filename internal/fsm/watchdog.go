package fsm

import "time"

// Watchdog tracks the instant of the last qualifying event and reports
// expiry once the configured timeout has elapsed since then.
// A zero timeout disables it.
type Watchdog struct {
	timeout time.Duration
	last    Timestamp
}

// NewWatchdog creates a Watchdog armed at the epoch.
func NewWatchdog(timeout time.Duration) Watchdog {
	return Watchdog{timeout: timeout}
}

// Reset re-arms the watchdog at now.
func (w *Watchdog) Reset(now Timestamp) {
	w.last = now
}

// Last returns the instant the watchdog was last re-armed.
func (w *Watchdog) Last() Timestamp {
	return w.last
}

// Timeout returns the configured timeout.
func (w *Watchdog) Timeout() time.Duration {
	return w.timeout
}

// Enabled reports whether the watchdog can ever expire.
func (w *Watchdog) Enabled() bool {
	return w.timeout > 0
}

// Expired reports whether now is at least timeout past the last reset.
func (w *Watchdog) Expired(now Timestamp) bool {
	if !w.Enabled() {
		return false
	}
	return time.Duration(now-w.last) >= w.timeout
}
