package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Pump          string       `json:"pump"`
	LastChangeMs  uint64       `json:"last_change_ms"`
	Ready         bool         `json:"ready"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	Client        ClientStatus `json:"client"`
	Counts        CountsJSON   `json:"event_counts"`
	Config        ConfigJSON   `json:"config"`
}

// ClientStatus reports the connected network client, if any.
type ClientStatus struct {
	Connected bool   `json:"connected"`
	Peer      string `json:"peer,omitempty"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	PumpOn            int `json:"pump_on"`
	PumpOff           int `json:"pump_off"`
	ClientConnects    int `json:"client_connects"`
	ClientDisconnects int `json:"client_disconnects"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PeriodMs    int64  `json:"period_ms"`
	IdleGraceMs int64  `json:"idle_grace_ms"`
	ListenAddr  string `json:"listen_addr"`
	Broker      string `json:"broker,omitempty"`
	HTTPAddr    string `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	state := "UNKNOWN"
	if snap.Pump.Observed() {
		state = snap.Pump.String()
	}

	return StatusInner{
		Pump:          state,
		LastChangeMs:  snap.Pump.Stamp,
		Ready:         snap.Pump.Observed(),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Client:        ClientStatus{Connected: snap.ClientConnected, Peer: snap.Peer},
		Counts: CountsJSON{
			PumpOn:            snap.Counts.PumpOn,
			PumpOff:           snap.Counts.PumpOff,
			ClientConnects:    snap.Counts.ClientConnects,
			ClientDisconnects: snap.Counts.ClientDisconnects,
		},
		Config: ConfigJSON{
			PeriodMs:    snap.Config.PeriodMs,
			IdleGraceMs: snap.Config.IdleGraceMs,
			ListenAddr:  snap.Config.ListenAddr,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
		},
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
