// Package sensor provides temperature input with hardware abstraction.
// The real implementation reads an LM35 through a Linux IIO ADC channel.
// The fake implementation allows testing without hardware.
package sensor

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Reader reads the current temperature.
type Reader interface {
	// Read returns the temperature in Celsius.
	Read() (float64, error)
}

// ADC and LM35 constants.
const (
	ADCResolutionBits = 12
	ADCVrefMillivolts = 3300

	// LM35 sensor has a linear response of 10mV/°C
	LM35MillivoltsPerCelsius = 10.0
)

// DefaultPath is the raw ADC channel exposed by the IIO subsystem.
const DefaultPath = "/sys/bus/iio/devices/iio:device0/in_voltage0_raw"

// ErrOutOfRange is returned for raw counts outside the ADC resolution.
var ErrOutOfRange = errors.New("sensor: raw count out of range")

// CountsToMillivolts converts an ADC count to millivolts.
func CountsToMillivolts(counts uint32, resolutionBits uint8) uint32 {
	return (ADCVrefMillivolts * counts) / ((1 << resolutionBits) - 1)
}

// CountsToCelsius converts a 12-bit ADC count from an LM35 to Celsius.
func CountsToCelsius(counts uint32) float64 {
	return float64(CountsToMillivolts(counts, ADCResolutionBits)) / LM35MillivoltsPerCelsius
}

// IIOReader reads raw counts from a sysfs IIO voltage channel.
type IIOReader struct {
	path string
}

// NewIIOReader creates a reader for the given in_voltageN_raw file.
func NewIIOReader(path string) *IIOReader {
	return &IIOReader{path: path}
}

// Read returns the temperature in Celsius.
func (r *IIOReader) Read() (float64, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return 0, fmt.Errorf("read adc: %w", err)
	}
	raw, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("parse adc %q: %w", strings.TrimSpace(string(data)), err)
	}
	if raw >= 1<<ADCResolutionBits {
		return 0, fmt.Errorf("%w: %d", ErrOutOfRange, raw)
	}
	return CountsToCelsius(uint32(raw)), nil
}
