package logic

import (
	"fmt"
	"math"
	"time"

	"github.com/sweeney/thermostat/internal/alarm"
	"github.com/sweeney/thermostat/internal/fsm"
	"github.com/sweeney/thermostat/internal/thermostat"
)

// Config holds controller settings.
type Config struct {
	// Threshold in Celsius; zero value means thermostat.DefaultThreshold
	// unless HasThreshold is set.
	Threshold    float64
	HasThreshold bool

	// Debounce applies to the PIR and button inputs.
	Debounce time.Duration
}

// Controller drives the thermostat and alarm modules from periodic samples.
// It has a single owner; call Process from one goroutine only.
type Controller struct {
	epoch      fsm.Epoch
	debounce   time.Duration
	thermostat *thermostat.Thermostat
	alarm      *alarm.Alarm

	pir       ChannelState
	button    ChannelState
	baselined bool

	temperature    float64
	hasTemperature bool

	eventCounts   EventCounts
	lastHeartbeat time.Time
}

// NewController creates a controller. The startTime anchors all module
// timestamps and is used for calculating uptime in heartbeat events.
func NewController(cfg Config, startTime time.Time) (*Controller, error) {
	var th *thermostat.Thermostat
	if cfg.HasThreshold {
		var err error
		th, err = thermostat.NewWithThreshold(cfg.Threshold)
		if err != nil {
			return nil, fmt.Errorf("new thermostat: %w", err)
		}
	} else {
		th = thermostat.New()
	}

	return &Controller{
		epoch:         fsm.NewEpoch(startTime),
		debounce:      cfg.Debounce,
		thermostat:    th,
		alarm:         alarm.New(),
		lastHeartbeat: startTime,
	}, nil
}

// Process takes a new input sample and returns the transitions it caused.
// Thermostat events come first, then alarm events. Alarm events are only
// produced after the digital inputs have a stable baseline.
func (c *Controller) Process(input Input) ([]Event, error) {
	now := c.epoch.Stamp(input.Time)
	var events []Event

	// An unusable sample is treated as a missing one so the watchdog still runs
	if math.IsNaN(input.Temperature) || math.IsInf(input.Temperature, 0) {
		input.HasTemperature = false
	}

	var tick thermostat.Tick
	var err error
	if input.HasTemperature {
		tick, err = c.thermostat.Tick(input.Temperature, now)
		if err == nil {
			c.temperature = input.Temperature
			c.hasTemperature = true
		}
	} else {
		tick, err = c.thermostat.Watch(now)
	}
	if err != nil {
		return nil, fmt.Errorf("thermostat: %w", err)
	}
	events = c.appendThermostat(events, tick, input)

	debounce(&c.pir, boolToLevel(input.Presence), input.Time, c.debounce)
	debounce(&c.button, boolToLevel(input.Disarm), input.Time, c.debounce)
	if !c.baselined {
		if c.pir.Baselined && c.button.Baselined {
			c.baselined = true
		}
		return events, nil // No alarm events until baseline established
	}

	intent, err := c.alarm.Feed(c.pir.Stable == LevelHigh, c.button.Stable == LevelHigh, now)
	if err != nil {
		return events, fmt.Errorf("alarm: %w", err)
	}
	switch intent {
	case fsm.IntentActivate:
		c.eventCounts.AlarmOn++
		events = append(events, c.alarmEvent(alarm.Presence, input.Time, intent))
	case fsm.IntentDeactivate:
		c.eventCounts.AlarmOff++
		events = append(events, c.alarmEvent(alarm.Disarm, input.Time, intent))
	}

	return events, nil
}

// appendThermostat emits one event per effective thermostat transition.
// A watchdog expiry followed by a same-tick re-activation yields two events.
func (c *Controller) appendThermostat(events []Event, tick thermostat.Tick, input Input) []Event {
	base := Event{
		Timestamp:      input.Time,
		Module:         ModuleThermostat,
		Temperature:    input.Temperature,
		HasTemperature: input.HasTemperature,
	}

	if tick.TimedOut {
		c.eventCounts.HeatOff++
		c.eventCounts.Timeouts++
		e := base
		e.Type = thermostat.Deactivation.String()
		e.State = thermostat.Off.String()
		e.Intent = fsm.IntentDeactivate
		e.Timeout = true
		events = append(events, e)
	}

	switch tick.Event {
	case thermostat.Activation:
		if tick.State == thermostat.On {
			c.eventCounts.HeatOn++
			e := base
			e.Type = tick.Event.String()
			e.State = tick.State.String()
			e.Intent = fsm.IntentActivate
			events = append(events, e)
		}
	case thermostat.Deactivation:
		if !tick.TimedOut && tick.State == thermostat.Off {
			c.eventCounts.HeatOff++
			e := base
			e.Type = tick.Event.String()
			e.State = tick.State.String()
			e.Intent = fsm.IntentDeactivate
			events = append(events, e)
		}
	}
	return events
}

func (c *Controller) alarmEvent(ev alarm.Event, t time.Time, intent fsm.Intent) Event {
	return Event{
		Timestamp: t,
		Module:    ModuleAlarm,
		Type:      ev.String(),
		State:     c.alarm.Status().String(),
		Intent:    intent,
	}
}

// Heating reports whether the thermostat is ON.
func (c *Controller) Heating() bool {
	return c.thermostat.Status() == thermostat.On
}

// Armed reports whether the alarm is ON.
func (c *Controller) Armed() bool {
	return c.alarm.Status() == alarm.On
}

// IsBaselined returns whether the digital inputs have a stable baseline.
func (c *Controller) IsBaselined() bool {
	return c.baselined
}

// Epoch returns the controller's time anchor.
func (c *Controller) Epoch() fsm.Epoch {
	return c.epoch
}

// EventCountsSnapshot returns a copy of the event counters.
func (c *Controller) EventCountsSnapshot() EventCounts {
	return c.eventCounts
}

// Status returns a point-in-time view of both modules.
func (c *Controller) Status() Status {
	return Status{
		Thermostat:     moduleStatus(c.epoch, c.thermostat.Reader()),
		Alarm:          moduleStatus(c.epoch, c.alarm.Reader()),
		Threshold:      c.thermostat.Threshold(),
		Temperature:    c.temperature,
		HasTemperature: c.hasTemperature,
		Baselined:      c.baselined,
		Counts:         c.eventCounts,
	}
}

func moduleStatus[S, E interface {
	comparable
	fmt.Stringer
}](epoch fsm.Epoch, r fsm.Reader[S, E]) ModuleStatus {
	entries := r.History()
	history := make([]HistoryEntry, len(entries))
	for i, e := range entries {
		history[i] = HistoryEntry{
			Event: e.Event.String(),
			At:    e.At,
			Time:  epoch.Time(e.At),
		}
	}
	return ModuleStatus{
		State:     r.State().String(),
		LastEvent: r.LastTimeEvent(),
		History:   history,
	}
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if the interval has not elapsed,
// or if interval is <= 0 (disabled).
func (c *Controller) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	if now.Sub(c.lastHeartbeat) < interval {
		return nil
	}

	c.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(c.epoch.Start()),
		Counts:    c.eventCounts,
	}
}
