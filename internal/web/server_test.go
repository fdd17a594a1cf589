package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/thermostat/internal/fsm"
	"github.com/sweeney/thermostat/internal/logic"
	"github.com/sweeney/thermostat/internal/status"
)

var start = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) (*httptest.Server, *status.Tracker) {
	t.Helper()
	cfg := status.Config{
		PollMs:      100,
		DebounceMs:  250,
		HeartbeatMs: 900000,
		Threshold:   20,
		Broker:      "tcp://192.168.1.200:1883",
		HTTPPort:    ":80",
	}
	tr := status.NewTracker(start, cfg)
	srv := New(":0", tr)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, tr
}

func heating() logic.Status {
	return logic.Status{
		Thermostat: logic.ModuleStatus{
			State:     "ON",
			LastEvent: fsm.Timestamp(2 * time.Second),
			History: []logic.HistoryEntry{
				{Event: "ACTIVATION", At: fsm.Timestamp(time.Second), Time: start.Add(time.Second)},
				{Event: "ACTIVATION", At: fsm.Timestamp(2 * time.Second), Time: start.Add(2 * time.Second)},
			},
		},
		Alarm:          logic.ModuleStatus{State: "OFF"},
		Threshold:      20,
		Temperature:    17.25,
		HasTemperature: true,
		Baselined:      true,
		Counts:         logic.EventCounts{HeatOn: 5, HeatOff: 2},
	}
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, body
}

func TestJSONEndpoint(t *testing.T) {
	ts, tr := newTestServer(t)
	tr.Update(heating())
	tr.SetMQTTConnected(true)

	resp, body := get(t, ts.URL+"/index.json")
	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	var sj status.StatusJSON
	if err := json.Unmarshal(body, &sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if sj.Status.Thermostat.State != "ON" {
		t.Errorf("thermostat: got %q, want ON", sj.Status.Thermostat.State)
	}
	if sj.Status.Alarm.State != "OFF" {
		t.Errorf("alarm: got %q, want OFF", sj.Status.Alarm.State)
	}
	if !sj.Status.Ready {
		t.Error("expected Ready=true")
	}
	if !sj.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if sj.Status.Counts.HeatOn != 5 || sj.Status.Counts.HeatOff != 2 {
		t.Errorf("unexpected counts: %+v", sj.Status.Counts)
	}
	if sj.Status.Config.PollMs != 100 {
		t.Errorf("Config.PollMs: got %d, want 100", sj.Status.Config.PollMs)
	}
}

func TestJSONUnknownStateBeforeFirstTick(t *testing.T) {
	ts, _ := newTestServer(t)

	_, body := get(t, ts.URL+"/index.json")
	var sj status.StatusJSON
	json.Unmarshal(body, &sj)

	if sj.Status.Thermostat.State != "UNKNOWN" {
		t.Errorf("thermostat before first tick: got %q, want UNKNOWN", sj.Status.Thermostat.State)
	}
	if sj.Status.Ready {
		t.Error("expected Ready=false initially")
	}
}

func TestHistoryEndpoint(t *testing.T) {
	ts, tr := newTestServer(t)
	tr.Update(heating())
	tr.SetPrevious(&status.Previous{
		Boot: start.Add(-time.Hour),
		Events: []status.PreviousEvent{
			{Module: "thermostat", Event: "DEACTIVATION", Timeout: true, Time: start.Add(-30 * time.Minute)},
		},
	})

	resp, body := get(t, ts.URL+"/history.json")
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	var hj HistoryJSON
	if err := json.Unmarshal(body, &hj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	h := hj.History
	if len(h.Thermostat) != 2 {
		t.Fatalf("thermostat history: got %d entries, want 2", len(h.Thermostat))
	}
	if h.Thermostat[1].AtMs != 2000 || h.Thermostat[1].Timestamp != "2026-01-01T00:00:02Z" {
		t.Errorf("unexpected entry: %+v", h.Thermostat[1])
	}
	if h.Alarm == nil || len(h.Alarm) != 0 {
		t.Errorf("alarm history should be an empty array, got %v", h.Alarm)
	}
	if h.Previous == nil || len(h.Previous.Events) != 1 || !h.Previous.Events[0].Timeout {
		t.Fatalf("unexpected previous session: %+v", h.Previous)
	}
	if h.Previous.StartTime != "2025-12-31T23:00:00Z" {
		t.Errorf("previous start: got %q", h.Previous.StartTime)
	}
}

func TestHistoryEndpointWithoutPrevious(t *testing.T) {
	ts, _ := newTestServer(t)

	_, body := get(t, ts.URL+"/history.json")
	if strings.Contains(string(body), `"previous"`) {
		t.Error("previous should be omitted when no journal was loaded")
	}
}

func TestHTMLEndpointRoot(t *testing.T) {
	ts, tr := newTestServer(t)
	tr.Update(heating())

	resp, body := get(t, ts.URL+"/")
	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type: got %q, want text/html", ct)
	}
	html := string(body)
	for _, want := range []string{"17.2 °C", "20.0 °C", "ACTIVATION", `class="on">ON`} {
		if !strings.Contains(html, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if strings.Contains(html, "mqtt.min.js") {
		t.Error("live script should be omitted without a websocket broker")
	}
}

func TestHTMLEndpointLiveScript(t *testing.T) {
	tr := status.NewTracker(start, status.Config{WSBroker: "ws://192.168.1.200:9001"})
	ts := httptest.NewServer(New(":0", tr).Handler())
	defer ts.Close()

	_, body := get(t, ts.URL+"/index.html")
	if !strings.Contains(string(body), "mqtt.min.js") {
		t.Error("expected live script with a websocket broker")
	}
	// html/template escapes slashes inside JS strings
	if !strings.Contains(string(body), `home\/thermostat\/events`) {
		t.Error("live script should subscribe to the events topic")
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, _ := get(t, ts.URL+"/nonexistent")
	if resp.StatusCode != 404 {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestStateChangesReflectedInResponse(t *testing.T) {
	ts, tr := newTestServer(t)

	tr.Update(heating())
	st := heating()
	st.Thermostat.State = "OFF"
	st.Alarm.State = "ON"
	tr.Update(st)

	_, body := get(t, ts.URL+"/index.json")
	var sj status.StatusJSON
	json.Unmarshal(body, &sj)

	if sj.Status.Thermostat.State != "OFF" || sj.Status.Alarm.State != "ON" {
		t.Errorf("unexpected states: %+v %+v", sj.Status.Thermostat, sj.Status.Alarm)
	}
}

func TestJSONNotCached(t *testing.T) {
	ts, _ := newTestServer(t)

	for _, path := range []string{"/index.json", "/history.json"} {
		resp, _ := get(t, ts.URL+path)
		if cc := resp.Header.Get("Cache-Control"); cc != "no-store" {
			t.Errorf("%s Cache-Control: got %q, want no-store", path, cc)
		}
	}
}

func TestRejectsNonGET(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/index.json", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status: got %d, want 405", resp.StatusCode)
	}
	if allow := resp.Header.Get("Allow"); allow != "GET, HEAD" {
		t.Errorf("Allow: got %q", allow)
	}
}
