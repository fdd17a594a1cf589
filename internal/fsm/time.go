package fsm

import "time"

// Timestamp is a monotonic instant, measured as the elapsed time since an Epoch.
// The zero Timestamp is the epoch itself.
type Timestamp time.Duration

// Seconds returns the timestamp as fractional seconds.
func (t Timestamp) Seconds() float64 {
	return time.Duration(t).Seconds()
}

// Milliseconds returns the timestamp as whole milliseconds.
func (t Timestamp) Milliseconds() int64 {
	return time.Duration(t).Milliseconds()
}

func (t Timestamp) String() string {
	return time.Duration(t).String()
}

// Epoch anchors Timestamps to a wall-clock instant. It relies on the monotonic
// clock reading carried by time.Time, so wall-clock steps do not move stamps.
type Epoch struct {
	start time.Time
}

// NewEpoch returns an Epoch starting at start.
func NewEpoch(start time.Time) Epoch {
	return Epoch{start: start}
}

// Start returns the wall-clock instant of the epoch.
func (e Epoch) Start() time.Time {
	return e.start
}

// Stamp converts t into a Timestamp relative to the epoch.
// Instants before the epoch clamp to zero.
func (e Epoch) Stamp(t time.Time) Timestamp {
	d := t.Sub(e.start)
	if d < 0 {
		return 0
	}
	return Timestamp(d)
}

// Time converts ts back into a wall-clock instant.
func (e Epoch) Time(ts Timestamp) time.Time {
	return e.start.Add(time.Duration(ts))
}
