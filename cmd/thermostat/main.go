// Command thermostat samples a temperature sensor and two digital inputs,
// drives the heating and alarm outputs, and publishes state changes to MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/thermostat/internal/config"
	"github.com/sweeney/thermostat/internal/fsm"
	"github.com/sweeney/thermostat/internal/gpio"
	"github.com/sweeney/thermostat/internal/logic"
	"github.com/sweeney/thermostat/internal/mqtt"
	"github.com/sweeney/thermostat/internal/sensor"
	"github.com/sweeney/thermostat/internal/status"
	"github.com/sweeney/thermostat/internal/store"
	"github.com/sweeney/thermostat/internal/web"
)

func main() {
	def := config.Default()
	configPath := flag.String("config", "", "YAML config file (flags override file values)")
	poll := flag.Duration("poll", def.Poll, "Sampling interval")
	debounce := flag.Duration("debounce", def.Debounce, "Debounce duration for PIR and button")
	threshold := flag.Float64("threshold", def.Threshold, "Heating threshold in Celsius")
	broker := flag.String("broker", def.MQTT.Broker, "MQTT broker address")
	heartbeat := flag.Duration("heartbeat", def.Heartbeat, "Heartbeat interval (0 to disable)")
	httpAddr := flag.String("http", def.HTTP, "HTTP status address (empty to disable)")
	wsBroker := flag.String("ws-broker", def.WSBroker, `MQTT websocket URL for live UI ("=broker" derives from --broker, "off" disables)`)
	historyFile := flag.String("history-file", def.HistoryFile, "Event journal path (empty to disable)")
	printState := flag.Bool("print-state", false, "Print current inputs and exit")
	printConfig := flag.Bool("print-config", false, "Print effective config and exit")

	flag.Parse()

	cfg := def
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("fatal: %v", err)
		}
	}

	// Flags override the file only when given explicitly
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "poll":
			cfg.Poll = *poll
		case "debounce":
			cfg.Debounce = *debounce
		case "threshold":
			cfg.Threshold = *threshold
		case "broker":
			cfg.MQTT.Broker = *broker
		case "heartbeat":
			cfg.Heartbeat = *heartbeat
		case "http":
			cfg.HTTP = *httpAddr
		case "ws-broker":
			cfg.WSBroker = *wsBroker
		case "history-file":
			cfg.HistoryFile = *historyFile
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Fatalf("fatal: %v", err)
	}

	if *printConfig {
		data, err := cfg.Marshal()
		if err != nil {
			log.Fatalf("fatal: %v", err)
		}
		os.Stdout.Write(data)
		return
	}

	if err := run(cfg, *printState); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(cfg config.Config, printState bool) error {
	temps := sensor.NewIIOReader(cfg.Sensor.Path)

	// Initialize GPIO
	inputs, err := gpio.NewRealReader(cfg.Pins())
	if err != nil {
		return fmt.Errorf("init gpio inputs: %w", err)
	}
	defer inputs.Close()

	// Print state mode
	if printState {
		return printInputs(temps, inputs)
	}

	outputs, err := gpio.NewRealOutputs(cfg.Pins())
	if err != nil {
		return fmt.Errorf("init gpio outputs: %w", err)
	}
	defer outputs.Close()

	// Initialize MQTT
	publisher, err := mqtt.NewRealPublisher(mqtt.Options{
		Broker:     cfg.MQTT.Broker,
		ClientID:   cfg.MQTT.ClientID,
		BufferSize: cfg.MQTT.Buffer,
	})
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	ws := resolveWSBroker(cfg.WSBroker, cfg.MQTT.Broker)

	// Initialize status tracker (before STARTUP so snapshot is available)
	startTime := time.Now()
	tracker := status.NewTracker(startTime, status.Config{
		PollMs:      cfg.Poll.Milliseconds(),
		DebounceMs:  cfg.Debounce.Milliseconds(),
		HeartbeatMs: cfg.Heartbeat.Milliseconds(),
		Threshold:   cfg.Threshold,
		Broker:      cfg.MQTT.Broker,
		HTTPPort:    cfg.HTTP,
		WSBroker:    ws,
		HistoryFile: cfg.HistoryFile,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	// Recover the previous session, then start a new one
	var jrnl journal
	if cfg.HistoryFile != "" {
		j, err := openJournal(cfg.HistoryFile, cfg.HistorySize)
		if err != nil {
			log.Printf("history journal disabled: %v", err)
		} else {
			defer j.Close()
			if prev := previousSession(j); prev != nil {
				tracker.SetPrevious(prev)
			}
			if err := j.Reset(startTime); err != nil {
				log.Printf("reset history journal: %v", err)
			}
			jrnl = j
		}
	}

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	// Start HTTP status server
	if cfg.HTTP != "" {
		srv := web.New(cfg.HTTP, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTP)
	}

	log.Printf("started: poll=%v debounce=%v threshold=%.1f broker=%s heartbeat=%v",
		cfg.Poll, cfg.Debounce, cfg.Threshold, cfg.MQTT.Broker, cfg.Heartbeat)

	ticker := time.NewTicker(cfg.Poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(loopDeps{
		temps:      temps,
		inputs:     inputs,
		outputs:    outputs,
		publisher:  publisher,
		mqttStatus: publisher,
		journal:    jrnl,
		tracker:    tracker,
		controller: logic.Config{Threshold: cfg.Threshold, HasThreshold: true, Debounce: cfg.Debounce},
		heartbeat:  cfg.Heartbeat,
		start:      startTime,
		now:        time.Now,
	}, ticker.C, sigCh)
}

// journal is the part of store.Journal the loop writes to.
type journal interface {
	Append(r store.Record) error
	Sync() error
}

// openJournal opens the event journal, recreating it if the file is
// unreadable or was created with another capacity.
func openJournal(path string, capacity int) (*store.Journal, error) {
	j, err := store.Open(path, capacity)
	if errors.Is(err, store.ErrCorrupt) || errors.Is(err, store.ErrCapacity) {
		log.Printf("history journal: %v; recreating", err)
		if rmErr := os.Remove(path); rmErr != nil {
			return nil, fmt.Errorf("remove journal: %w", rmErr)
		}
		j, err = store.Open(path, capacity)
	}
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return j, nil
}

// previousSession returns nil for a journal that never held a session.
func previousSession(j *store.Journal) *status.Previous {
	records := j.Entries()
	if len(records) == 0 && j.Boot().IsZero() {
		return nil
	}
	prev := &status.Previous{
		Boot:   j.Boot(),
		Events: make([]status.PreviousEvent, len(records)),
	}
	for i, r := range records {
		prev.Events[i] = status.PreviousEvent{
			Module:  r.Module,
			Event:   r.Event,
			Timeout: r.Timeout,
			Time:    r.Time,
		}
	}
	log.Printf("history journal: %d events from previous session", len(records))
	return prev
}

type loopDeps struct {
	temps      sensor.Reader
	inputs     gpio.Reader
	outputs    gpio.Outputs
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus // optional
	journal    journal               // optional
	tracker    *status.Tracker       // optional
	controller logic.Config
	heartbeat  time.Duration
	start      time.Time // controller epoch; zero means now() at entry
	now        func() time.Time
}

func runLoop(d loopDeps, tick <-chan time.Time, sig <-chan os.Signal) error {
	startTime := d.start
	if startTime.IsZero() {
		startTime = d.now()
	}
	controller, err := logic.NewController(d.controller, startTime)
	if err != nil {
		return fmt.Errorf("init controller: %w", err)
	}

	var levels outputLevels
	var presence, disarm bool
	sensorFailing := false

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			event := mqtt.SystemEvent{
				Timestamp: d.now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if d.tracker != nil {
				if d.mqttStatus != nil {
					d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
				}
				snap := d.tracker.Snapshot()
				event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", signalName)
			}
			if err := d.publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case <-tick:
			t := d.now()

			input := logic.Input{Time: t}
			if temp, err := d.temps.Read(); err != nil {
				if !sensorFailing {
					log.Printf("sensor read error: %v", err)
					sensorFailing = true
				}
			} else {
				if sensorFailing {
					log.Printf("sensor recovered")
					sensorFailing = false
				}
				input.Temperature = temp
				input.HasTemperature = true
			}

			// A failed GPIO read keeps the last levels so the watchdog still runs
			if p, b, err := d.inputs.Read(); err != nil {
				log.Printf("gpio read error: %v", err)
			} else {
				presence, disarm = p, b
			}
			input.Presence = presence
			input.Disarm = disarm

			events, err := controller.Process(input)
			if err != nil {
				log.Printf("process error: %v", err)
			}

			for _, event := range events {
				logEvent(event)
				if err := d.publisher.Publish(event); err != nil {
					log.Printf("publish error: %v", err)
					// Don't crash on publish failure
				}
				if d.journal != nil {
					if err := d.journal.Append(journalRecord(controller.Epoch(), event)); err != nil {
						log.Printf("journal error: %v", err)
					}
				}
			}
			levels.apply(d.outputs, controller.Heating(), controller.Armed())

			if !controller.IsBaselined() {
				// Still waiting for baseline
				if d.tracker != nil {
					d.tracker.Update(controller.Status())
				}
				continue
			}

			// Check for heartbeat
			if hbData := controller.CheckHeartbeat(t, d.heartbeat); hbData != nil {
				log.Printf("heartbeat: uptime=%v heat_on=%d heat_off=%d timeouts=%d alarm_on=%d alarm_off=%d",
					hbData.Uptime, hbData.Counts.HeatOn, hbData.Counts.HeatOff, hbData.Counts.Timeouts,
					hbData.Counts.AlarmOn, hbData.Counts.AlarmOff)

				hbEvent := mqtt.SystemEvent{
					Timestamp: hbData.Timestamp,
					Event:     "HEARTBEAT",
				}
				if d.tracker != nil {
					if d.mqttStatus != nil {
						d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
					}
					// Refresh network info for heartbeat
					if net := readNetworkInfo(); net != nil {
						d.tracker.SetNetwork(net)
					}
					d.tracker.Update(controller.Status())
					snap := d.tracker.Snapshot()
					hbEvent.RawPayload = status.FormatStatusEvent(snap, "HEARTBEAT", "")
				}
				if err := d.publisher.PublishSystem(hbEvent); err != nil {
					log.Printf("heartbeat publish error: %v", err)
				}
				if d.journal != nil {
					if err := d.journal.Sync(); err != nil {
						log.Printf("journal sync error: %v", err)
					}
				}
			}

			// Update status tracker for HTTP consumers
			if d.tracker != nil {
				d.tracker.Update(controller.Status())
				if d.mqttStatus != nil {
					d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
				}
			}
		}
	}
}

func logEvent(e logic.Event) {
	switch {
	case e.Timeout:
		log.Printf("event: %s %s (state=%s, watchdog timeout)", e.Module, e.Type, e.State)
	case e.HasTemperature:
		log.Printf("event: %s %s (state=%s temperature=%.1f)", e.Module, e.Type, e.State, e.Temperature)
	default:
		log.Printf("event: %s %s (state=%s)", e.Module, e.Type, e.State)
	}
}

// outputLevels holds the levels last written to the outputs. Both start OFF,
// matching how gpio.NewRealOutputs configures the lines.
type outputLevels struct {
	heating bool
	alarm   bool
}

// apply writes the module states once per tick, and only on change, so a
// watchdog expiry followed by a same-tick re-activation leaves the relay
// alone. A failed write is retried on the next tick.
func (l *outputLevels) apply(o gpio.Outputs, heating, alarm bool) {
	if heating != l.heating {
		if err := o.SetHeating(heating); err != nil {
			log.Printf("output error: %v", err)
		} else {
			l.heating = heating
		}
	}
	if alarm != l.alarm {
		if err := o.SetAlarm(alarm); err != nil {
			log.Printf("output error: %v", err)
		} else {
			l.alarm = alarm
		}
	}
}

func journalRecord(epoch fsm.Epoch, e logic.Event) store.Record {
	return store.Record{
		Module:  string(e.Module),
		Event:   e.Type,
		Timeout: e.Timeout,
		Time:    e.Timestamp,
		At:      epoch.Stamp(e.Timestamp),
	}
}

func printInputs(temps sensor.Reader, inputs gpio.Reader) error {
	presence, disarm, err := inputs.Read()
	if err != nil {
		return fmt.Errorf("read gpio: %w", err)
	}
	temp, err := temps.Read()
	if err != nil {
		fmt.Printf("Temperature: unavailable (%v), PIR: %s, Button: %s\n", err, stateString(presence), stateString(disarm))
		return nil
	}
	fmt.Printf("Temperature: %.1f°C, PIR: %s, Button: %s\n", temp, stateString(presence), stateString(disarm))
	return nil
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}

func stateString(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

// resolveWSBroker converts the --ws-broker flag value into a concrete URL.
// "=broker" derives ws://host:9001 from the TCP broker address; empty disables.
func resolveWSBroker(ws, broker string) string {
	if ws == "off" {
		return ""
	}
	if ws != "=broker" {
		return ws
	}
	u, err := url.Parse(broker)
	if err != nil {
		log.Printf("ws-broker: cannot parse --broker %q: %v", broker, err)
		return ""
	}
	u.Scheme = "ws"
	u.Host = u.Hostname() + ":9001"
	return u.String()
}
