package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sweeney/thermostat/internal/gpio"
	"github.com/sweeney/thermostat/internal/thermostat"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "thermostat.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, thermostat.DefaultThreshold, cfg.Threshold)
	assert.Equal(t, gpio.DefaultPins(), cfg.Pins())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
poll: 50ms
heartbeat: 5m
threshold: 21.5
sensor:
  path: /tmp/adc
gpio:
  pir: 5
mqtt:
  broker: tcp://broker.local:1883
  buffer: 10
http: ""
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 50*time.Millisecond, cfg.Poll)
	assert.Equal(t, 5*time.Minute, cfg.Heartbeat)
	assert.Equal(t, 21.5, cfg.Threshold)
	assert.Equal(t, "/tmp/adc", cfg.Sensor.Path)
	assert.Equal(t, 5, cfg.GPIO.PIR)
	assert.Equal(t, "tcp://broker.local:1883", cfg.MQTT.Broker)
	assert.Equal(t, 10, cfg.MQTT.Buffer)
	assert.Equal(t, "", cfg.HTTP)

	// Untouched keys keep defaults
	def := Default()
	assert.Equal(t, def.Debounce, cfg.Debounce)
	assert.Equal(t, def.GPIO.Button, cfg.GPIO.Button)
	assert.Equal(t, def.MQTT.ClientID, cfg.MQTT.ClientID)
	assert.Equal(t, def.HistorySize, cfg.HistorySize)
}

func TestLoadEmptyFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := Load(writeConfig(t, "thresold: 20\n"))
	assert.Error(t, err)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	_, err := Load(writeConfig(t, "threshold: 500\n"))
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero poll", func(c *Config) { c.Poll = 0 }},
		{"negative debounce", func(c *Config) { c.Debounce = -time.Second }},
		{"negative heartbeat", func(c *Config) { c.Heartbeat = -time.Second }},
		{"no broker", func(c *Config) { c.MQTT.Broker = "" }},
		{"zero buffer", func(c *Config) { c.MQTT.Buffer = 0 }},
		{"zero history", func(c *Config) { c.HistorySize = 0 }},
		{"no chip", func(c *Config) { c.GPIO.Chip = "" }},
		{"threshold too low", func(c *Config) { c.Threshold = -100 }},
		{"negative line", func(c *Config) { c.GPIO.LEDAlarm = -1 }},
		{"shared line", func(c *Config) { c.GPIO.LEDAlarm = c.GPIO.PIR }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Threshold = 18
	data, err := cfg.Marshal()
	require.NoError(t, err)

	loaded, err := Load(writeConfig(t, string(data)))
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
