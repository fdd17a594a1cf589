// Package config loads daemon settings from a YAML file.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sweeney/thermostat/internal/gpio"
	"github.com/sweeney/thermostat/internal/mqtt"
	"github.com/sweeney/thermostat/internal/sensor"
	"github.com/sweeney/thermostat/internal/store"
	"github.com/sweeney/thermostat/internal/thermostat"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is returned when a loaded or merged config fails validation.
var ErrInvalid = errors.New("config: invalid")

// Config holds every daemon setting. Zero-valued durations disable the
// corresponding feature only where noted.
type Config struct {
	Poll      time.Duration `yaml:"poll"`
	Debounce  time.Duration `yaml:"debounce"`
	Heartbeat time.Duration `yaml:"heartbeat"` // 0 disables
	Threshold float64       `yaml:"threshold"`

	Sensor SensorConfig `yaml:"sensor"`
	GPIO   GPIOConfig   `yaml:"gpio"`
	MQTT   MQTTConfig   `yaml:"mqtt"`

	HTTP        string `yaml:"http"`      // empty disables
	WSBroker    string `yaml:"ws_broker"` // "=broker", "off" or a URL
	HistoryFile string `yaml:"history_file"`
	HistorySize int    `yaml:"history_size"`
}

// SensorConfig selects the temperature input.
type SensorConfig struct {
	Path string `yaml:"path"`
}

// GPIOConfig selects the digital lines.
type GPIOConfig struct {
	Chip       string `yaml:"chip"`
	PIR        int    `yaml:"pir"`
	Button     int    `yaml:"button"`
	LEDHeat    int    `yaml:"led_heat"`
	LEDComfort int    `yaml:"led_comfort"`
	LEDAlarm   int    `yaml:"led_alarm"`
}

// MQTTConfig configures the publisher.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Buffer   int    `yaml:"buffer"`
}

// Default returns the built-in configuration.
func Default() Config {
	pins := gpio.DefaultPins()
	return Config{
		Poll:      100 * time.Millisecond,
		Debounce:  250 * time.Millisecond,
		Heartbeat: 15 * time.Minute,
		Threshold: thermostat.DefaultThreshold,
		Sensor:    SensorConfig{Path: sensor.DefaultPath},
		GPIO: GPIOConfig{
			Chip:       pins.Chip,
			PIR:        pins.PIR,
			Button:     pins.Button,
			LEDHeat:    pins.Heat,
			LEDComfort: pins.Comfort,
			LEDAlarm:   pins.Alarm,
		},
		MQTT: MQTTConfig{
			Broker:   "tcp://192.168.1.200:1883",
			ClientID: mqtt.DefaultClientID,
			Buffer:   mqtt.DefaultBufferSize,
		},
		HTTP:        ":80",
		WSBroker:    "=broker",
		HistoryFile: store.DefaultPath,
		HistorySize: store.DefaultCapacity,
	}
}

// Load reads path over Default(). Keys missing from the file keep their
// default value; unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("yaml unmarshal %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch {
	case c.Poll <= 0:
		return fmt.Errorf("%w: poll must be positive, got %v", ErrInvalid, c.Poll)
	case c.Debounce < 0:
		return fmt.Errorf("%w: debounce must not be negative, got %v", ErrInvalid, c.Debounce)
	case c.Heartbeat < 0:
		return fmt.Errorf("%w: heartbeat must not be negative, got %v", ErrInvalid, c.Heartbeat)
	case c.MQTT.Broker == "":
		return fmt.Errorf("%w: mqtt.broker is required", ErrInvalid)
	case c.MQTT.Buffer < 1:
		return fmt.Errorf("%w: mqtt.buffer must be at least 1, got %d", ErrInvalid, c.MQTT.Buffer)
	case c.HistorySize < 1:
		return fmt.Errorf("%w: history_size must be at least 1, got %d", ErrInvalid, c.HistorySize)
	case c.GPIO.Chip == "":
		return fmt.Errorf("%w: gpio.chip is required", ErrInvalid)
	}

	if err := thermostat.ValidateThreshold(c.Threshold); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	lines := map[int]string{}
	for name, line := range map[string]int{
		"gpio.pir":         c.GPIO.PIR,
		"gpio.button":      c.GPIO.Button,
		"gpio.led_heat":    c.GPIO.LEDHeat,
		"gpio.led_comfort": c.GPIO.LEDComfort,
		"gpio.led_alarm":   c.GPIO.LEDAlarm,
	} {
		if line < 0 {
			return fmt.Errorf("%w: %s must not be negative, got %d", ErrInvalid, name, line)
		}
		if other, ok := lines[line]; ok {
			return fmt.Errorf("%w: %s and %s share line %d", ErrInvalid, name, other, line)
		}
		lines[line] = name
	}
	return nil
}

// Pins returns the GPIO line assignment.
func (c Config) Pins() gpio.Pins {
	return gpio.Pins{
		Chip:    c.GPIO.Chip,
		PIR:     c.GPIO.PIR,
		Button:  c.GPIO.Button,
		Heat:    c.GPIO.LEDHeat,
		Comfort: c.GPIO.LEDComfort,
		Alarm:   c.GPIO.LEDAlarm,
	}
}

// Marshal renders c as YAML.
func (c Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("yaml marshal: %w", err)
	}
	return data, nil
}
