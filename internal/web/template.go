package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/thermostat/internal/mqtt"
	"github.com/sweeney/thermostat/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"stateOrUnknown": status.StateOrUnknown,
	"stateClass": func(s string) string {
		switch s {
		case "ON":
			return "on"
		case "OFF":
			return "off"
		}
		return "unknown"
	},
	"clock": func(t time.Time) string {
		return t.UTC().Format("15:04:05.000")
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Thermostat</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>Thermostat{{if .Config.WSBroker}}<span id="live-dot" class="live-dot pending" title="connecting"></span>{{end}}</h1>

<h2>State</h2>
<table>
<tr><th>Heating</th><td id="thermostat-state" class="{{stateClass .Thermostat}}">{{.Thermostat}}</td></tr>
<tr><th>Temperature</th><td id="temperature">{{if .Controller.HasTemperature}}{{printf "%.1f" .Controller.Temperature}} °C{{else}}-{{end}}</td></tr>
<tr><th>Threshold</th><td>{{printf "%.1f" .Threshold}} °C</td></tr>
<tr><th>Alarm</th><td id="alarm-state" class="{{stateClass .Alarm}}">{{.Alarm}}</td></tr>
<tr><th>Ready</th><td>{{if .Controller.Baselined}}yes{{else}}no{{end}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Heat ON</th><td>{{.Controller.Counts.HeatOn}}</td></tr>
<tr><th>Heat OFF</th><td>{{.Controller.Counts.HeatOff}}</td></tr>
<tr><th>Timeouts</th><td>{{.Controller.Counts.Timeouts}}</td></tr>
<tr><th>Alarm ON</th><td>{{.Controller.Counts.AlarmOn}}</td></tr>
<tr><th>Alarm OFF</th><td>{{.Controller.Counts.AlarmOff}}</td></tr>
</table>

<h2>Thermostat History</h2>
<table>
{{range .Controller.Thermostat.History}}<tr><th>{{clock .Time}}</th><td>{{.Event}}</td></tr>
{{else}}<tr><td>no events</td></tr>
{{end}}</table>

<h2>Alarm History</h2>
<table>
{{range .Controller.Alarm.History}}<tr><th>{{clock .Time}}</th><td>{{.Event}}</td></tr>
{{else}}<tr><td>no events</td></tr>
{{end}}</table>

{{with .Previous}}<h2>Previous Session</h2>
<table>
{{range .Events}}<tr><th>{{.Time.UTC.Format "2006-01-02T15:04:05Z"}}</th><td>{{.Module}} {{.Event}}{{if .Timeout}} (timeout){{end}}</td></tr>
{{else}}<tr><td>no events</td></tr>
{{end}}</table>
{{end}}

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Debounce</th><td>{{.Config.DebounceMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> <a href="/history.json">History</a></p>
{{if .Config.WSBroker}}
<script src="https://unpkg.com/mqtt@5/dist/mqtt.min.js"></script>
<script>
(function() {
  var broker = "{{.Config.WSBroker}}";
  var topic = "{{.Topic}}";
  var dot = document.getElementById("live-dot");
  var thermostatEl = document.getElementById("thermostat-state");
  var alarmEl = document.getElementById("alarm-state");
  var tempEl = document.getElementById("temperature");

  function setState(el, state) {
    el.textContent = state;
    el.className = state === "ON" ? "on" : state === "OFF" ? "off" : "unknown";
  }

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  var client = mqtt.connect(broker, { reconnectPeriod: 5000 });

  client.on("connect", function() {
    setDot("ok", "live");
    client.subscribe(topic);
  });

  client.on("reconnect", function() {
    setDot("pending", "reconnecting");
  });

  client.on("offline", function() {
    setDot("err", "offline");
  });

  client.on("error", function() {
    setDot("err", "error");
  });

  client.on("message", function(t, payload) {
    try {
      var msg = JSON.parse(payload.toString());
      if (msg.thermostat) {
        setState(thermostatEl, msg.thermostat.state);
        if (typeof msg.thermostat.temperature === "number") {
          tempEl.textContent = msg.thermostat.temperature.toFixed(1) + " °C";
        }
      }
      if (msg.alarm) {
        setState(alarmEl, msg.alarm.state);
      }
    } catch (e) {}
  });
})();
</script>
{{end}}
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	threshold := snap.Controller.Threshold
	if !snap.Updated {
		threshold = snap.Config.Threshold
	}
	data := struct {
		status.Snapshot
		Uptime     time.Duration
		Thermostat string
		Alarm      string
		Threshold  float64
		Topic      string
	}{
		Snapshot:   snap,
		Uptime:     snap.Uptime(),
		Thermostat: status.StateOrUnknown(snap.Controller.Thermostat.State),
		Alarm:      status.StateOrUnknown(snap.Controller.Alarm.State),
		Threshold:  threshold,
		Topic:      mqtt.Topic,
	}
	indexTmpl.Execute(w, data)
}
