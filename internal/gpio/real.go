//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealReader reads inputs from actual hardware using Linux GPIO character device.
type RealReader struct {
	chip      *gpiocdev.Chip
	pirPin    *gpiocdev.Line
	buttonPin *gpiocdev.Line
}

// NewRealReader requests the PIR and button lines as inputs.
func NewRealReader(pins Pins) (*RealReader, error) {
	chip, err := gpiocdev.NewChip(pins.Chip)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	// PIR output is active high; hold it low while idle.
	pirLine, err := chip.RequestLine(pins.PIR, gpiocdev.AsInput, gpiocdev.WithPullDown)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request PIR pin %d: %w", pins.PIR, err)
	}

	// Button shorts to ground when pressed.
	buttonLine, err := chip.RequestLine(pins.Button, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		pirLine.Close()
		chip.Close()
		return nil, fmt.Errorf("request button pin %d: %w", pins.Button, err)
	}

	return &RealReader{
		chip:      chip,
		pirPin:    pirLine,
		buttonPin: buttonLine,
	}, nil
}

// Read returns the logical states of the PIR sensor and disarm button.
func (r *RealReader) Read() (bool, bool, error) {
	pirRaw, err := r.pirPin.Value()
	if err != nil {
		return false, false, fmt.Errorf("read PIR pin: %w", err)
	}

	buttonRaw, err := r.buttonPin.Value()
	if err != nil {
		return false, false, fmt.Errorf("read button pin: %w", err)
	}

	// Button is active low
	return pirRaw == 1, buttonRaw == 0, nil
}

// Close releases GPIO resources.
// Reconfigures pins to input with pull-down (matching Pi boot defaults) before
// closing to ensure clean state for system shutdown/reboot.
func (r *RealReader) Close() error {
	var errs []error
	for name, line := range map[string]*gpiocdev.Line{"PIR": r.pirPin, "button": r.buttonPin} {
		if line == nil {
			continue
		}
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure %s pin: %w", name, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s pin: %w", name, err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// RealOutputs drives LEDs through the Linux GPIO character device.
type RealOutputs struct {
	chip    *gpiocdev.Chip
	heat    *gpiocdev.Line
	comfort *gpiocdev.Line
	alarm   *gpiocdev.Line
}

// NewRealOutputs requests the LED lines as outputs. Heating starts OFF, so
// the comfort LED starts lit.
func NewRealOutputs(pins Pins) (*RealOutputs, error) {
	chip, err := gpiocdev.NewChip(pins.Chip)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	o := &RealOutputs{chip: chip}

	request := func(name string, offset, initial int) (*gpiocdev.Line, error) {
		line, err := chip.RequestLine(offset, gpiocdev.AsOutput(initial))
		if err != nil {
			o.Close()
			return nil, fmt.Errorf("request %s pin %d: %w", name, offset, err)
		}
		return line, nil
	}

	if o.heat, err = request("heat", pins.Heat, 0); err != nil {
		return nil, err
	}
	if o.comfort, err = request("comfort", pins.Comfort, 1); err != nil {
		return nil, err
	}
	if o.alarm, err = request("alarm", pins.Alarm, 0); err != nil {
		return nil, err
	}
	return o, nil
}

// SetHeating lights the heat LED and darkens the comfort LED, or the reverse.
func (o *RealOutputs) SetHeating(on bool) error {
	if err := o.heat.SetValue(boolToValue(on)); err != nil {
		return fmt.Errorf("set heat pin: %w", err)
	}
	if err := o.comfort.SetValue(boolToValue(!on)); err != nil {
		return fmt.Errorf("set comfort pin: %w", err)
	}
	return nil
}

// SetAlarm lights or darkens the alarm LED.
func (o *RealOutputs) SetAlarm(on bool) error {
	if err := o.alarm.SetValue(boolToValue(on)); err != nil {
		return fmt.Errorf("set alarm pin: %w", err)
	}
	return nil
}

// Close turns every output off and returns the lines to inputs with pull-down.
func (o *RealOutputs) Close() error {
	var errs []error
	for name, line := range map[string]*gpiocdev.Line{"heat": o.heat, "comfort": o.comfort, "alarm": o.alarm} {
		if line == nil {
			continue
		}
		if err := line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("clear %s pin: %w", name, err))
		}
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure %s pin: %w", name, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s pin: %w", name, err))
		}
	}
	if o.chip != nil {
		if err := o.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		o.chip = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

func boolToValue(on bool) int {
	if on {
		return 1
	}
	return 0
}
