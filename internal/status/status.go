// Package status provides a thread-safe status tracker for the sump-sensor
// daemon. It is written by the control loop and read by HTTP handlers and
// system event payloads.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/sump-sensor/internal/pump"
)

// Config contains daemon configuration for display.
type Config struct {
	PeriodMs    int64
	IdleGraceMs int64
	ListenAddr  string
	Broker      string
	HTTPAddr    string
}

// Counts tracks event totals since startup.
type Counts struct {
	PumpOn            int
	PumpOff           int
	ClientConnects    int
	ClientDisconnects int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Pump            pump.State
	ClientConnected bool
	Peer            string
	Counts          Counts
	StartTime       time.Time
	Now             time.Time
	Config          Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update sets pump state and event counts. Called from the control loop on
// every tick.
func (t *Tracker) Update(state pump.State, counts Counts) {
	t.mu.Lock()
	t.snap.Pump = state
	t.snap.Counts = counts
	t.mu.Unlock()
}

// SetClient sets the client presence and peer address.
func (t *Tracker) SetClient(connected bool, peer string) {
	t.mu.Lock()
	t.snap.ClientConnected = connected
	t.snap.Peer = peer
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
