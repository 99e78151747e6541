package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/sump-sensor/internal/status"
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
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>Sump Sensor</title>
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
.disconnected { color: #888; }
</style>
</head>
<body>
<h1>Sump Sensor</h1>
<table>
<tr><th>Pump</th><td class="{{.PumpClass}}">{{.Pump}}</td></tr>
<tr><th>Last change</th><td>{{.LastChangeMs}} ms</td></tr>
<tr><th>Client</th><td class="{{.ClientClass}}">{{.Client}}</td></tr>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
</table>
<h1>Events</h1>
<table>
<tr><th>Pump on</th><td>{{.Counts.PumpOn}}</td></tr>
<tr><th>Pump off</th><td>{{.Counts.PumpOff}}</td></tr>
<tr><th>Client connects</th><td>{{.Counts.ClientConnects}}</td></tr>
<tr><th>Client disconnects</th><td>{{.Counts.ClientDisconnects}}</td></tr>
</table>
<h1>Config</h1>
<table>
<tr><th>Sample period</th><td>{{.Config.PeriodMs}} ms</td></tr>
<tr><th>Idle grace</th><td>{{.Config.IdleGraceMs}} ms</td></tr>
<tr><th>Listen address</th><td>{{.Config.ListenAddr}}</td></tr>
{{if .Config.Broker}}<tr><th>MQTT mirror</th><td>{{.Config.Broker}}</td></tr>{{end}}
</table>
<p><a href="/index.json">JSON</a> &middot; <a href="/metrics">Metrics</a></p>
</body>
</html>
`

type indexData struct {
	Pump         string
	PumpClass    string
	LastChangeMs uint64
	Client       string
	ClientClass  string
	Uptime       time.Duration
	Counts       status.Counts
	Config       status.Config
}

func renderHTML(w io.Writer, snap status.Snapshot) {
	data := indexData{
		Pump:         "UNKNOWN",
		PumpClass:    "unknown",
		LastChangeMs: snap.Pump.Stamp,
		Client:       "none",
		ClientClass:  "disconnected",
		Uptime:       snap.Uptime(),
		Counts:       snap.Counts,
		Config:       snap.Config,
	}
	if snap.Pump.Observed() {
		data.Pump = snap.Pump.String()
		data.PumpClass = data.Pump
	}
	if snap.ClientConnected {
		data.Client = snap.Peer
		data.ClientClass = "connected"
	}

	// Template errors only come from the writer; nothing useful to do here.
	_ = indexTmpl.Execute(w, data)
}
