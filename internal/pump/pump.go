// Package pump contains the sump pump state model and edge detection.
// Edge detection is pure (no GPIO, network, or clock access); the Sensor
// is the only type that touches hardware, through the gpio.Line capability.
package pump

import (
	"fmt"

	"github.com/sweeney/sump-sensor/internal/gpio"
)

// State is the last observed pump state.
type State struct {
	// Active reports whether the pump was drawing current.
	Active bool

	// Stamp is the observation time in monotonic milliseconds since
	// process start. Zero means no observation has been made yet.
	Stamp uint64
}

// Observed reports whether the state has ever been sampled.
func (s State) Observed() bool {
	return s.Stamp != 0
}

// String returns "on" or "off".
func (s State) String() string {
	if s.Active {
		return "on"
	}
	return "off"
}

// Detect compares a fresh sample against the previous state and returns the
// state to record plus whether it represents an edge. The very first sample
// (prev.Stamp == 0) is always an edge, so the initial observation is
// guaranteed to be published. Once set, the stamp only moves forward.
func Detect(prev State, active bool, stamp uint64) (State, bool) {
	if prev.Observed() && prev.Active == active {
		return prev, false
	}
	return State{Active: active, Stamp: stamp}, true
}

// Sensor reads the sense line and applies wiring polarity.
type Sensor struct {
	line gpio.Line
}

// NewSensor creates a Sensor over the given sense line.
func NewSensor(line gpio.Line) *Sensor {
	return &Sensor{line: line}
}

// Read returns the logical pump-active value. The current-switch relay holds
// the line low while the pump draws current, so the raw level is inverted.
// A read failure is returned as-is; a broken sense line cannot be trusted
// and the caller treats it as fatal.
func (s *Sensor) Read() (bool, error) {
	raw, err := s.line.Read()
	if err != nil {
		return false, fmt.Errorf("read sense line: %w", err)
	}
	return !raw, nil
}
