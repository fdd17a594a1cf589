// Package gpio provides digital inputs and outputs with hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Reader reads the digital inputs of the controller.
type Reader interface {
	// Read returns the logical states of the PIR sensor and disarm button.
	// Returns (presence, disarm, error).
	Read() (bool, bool, error)

	// Close releases GPIO resources.
	Close() error
}

// Outputs drives the indicator LEDs and the heating relay.
type Outputs interface {
	// SetHeating turns the heat LED (and relay) on and the comfort LED off,
	// or the reverse.
	SetHeating(on bool) error

	// SetAlarm turns the alarm LED on or off.
	SetAlarm(on bool) error

	// Close releases GPIO resources, leaving all outputs off.
	Close() error
}

// Default line offsets on gpiochip0 (BCM numbering).
const (
	DefaultChip       = "gpiochip0"
	DefaultPinPIR     = 17
	DefaultPinButton  = 27
	DefaultPinHeat    = 22
	DefaultPinComfort = 23
	DefaultPinAlarm   = 24
)

// Pins selects the lines used by the real implementation.
type Pins struct {
	Chip    string
	PIR     int
	Button  int
	Heat    int
	Comfort int
	Alarm   int
}

// DefaultPins returns the default line assignment.
func DefaultPins() Pins {
	return Pins{
		Chip:    DefaultChip,
		PIR:     DefaultPinPIR,
		Button:  DefaultPinButton,
		Heat:    DefaultPinHeat,
		Comfort: DefaultPinComfort,
		Alarm:   DefaultPinAlarm,
	}
}
