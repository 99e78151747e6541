// Package config holds daemon configuration, loadable from an optional TOML
// file with command-line flags taking precedence.
package config

import (
	"fmt"
	"os"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/sweeney/sump-sensor/internal/gpio"
	"github.com/sweeney/sump-sensor/internal/server"
	"github.com/sweeney/sump-sensor/internal/timebase"
)

// Config is the resolved daemon configuration.
type Config struct {
	Period      time.Duration // sampling cadence
	IdleGrace   time.Duration // extra dwell per cycle while the pump is idle (0 disables)
	ListenAddr  string        // status service endpoint
	Chip        string        // GPIO character device
	PinSense    int
	PinActivity int
	PinClient   int
	Broker      string // MQTT mirror broker URL (empty disables)
	HTTPAddr    string // HTTP status address (empty disables)
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Period:      timebase.DefaultPeriod,
		IdleGrace:   0,
		ListenAddr:  server.DefaultAddr,
		Chip:        gpio.DefaultChip,
		PinSense:    gpio.DefaultPinSense,
		PinActivity: gpio.DefaultPinActivity,
		PinClient:   gpio.DefaultPinClient,
		Broker:      "",
		HTTPAddr:    ":8080",
	}
}

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	Period      string `toml:"period"`
	IdleGrace   string `toml:"idle_grace"`
	ListenAddr  string `toml:"listen_addr"`
	Chip        string `toml:"chip"`
	PinSense    *int   `toml:"pin_sense"`
	PinActivity *int   `toml:"pin_activity"`
	PinClient   *int   `toml:"pin_client"`
	Broker      string `toml:"broker"`
	HTTPAddr    string `toml:"http_addr"`
}

// LoadFile reads and parses a TOML config file from the given path.
func LoadFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// Apply overlays file values onto cfg. Flags the user set explicitly
// (recorded in changed by flag name) win over file values.
func Apply(cfg *Config, fc FileConfig, changed map[string]bool) error {
	if fc.Period != "" && !changed["period"] {
		d, err := time.ParseDuration(fc.Period)
		if err != nil {
			return fmt.Errorf("period: %w", err)
		}
		cfg.Period = d
	}
	if fc.IdleGrace != "" && !changed["idle-grace"] {
		d, err := time.ParseDuration(fc.IdleGrace)
		if err != nil {
			return fmt.Errorf("idle_grace: %w", err)
		}
		cfg.IdleGrace = d
	}
	if fc.ListenAddr != "" && !changed["listen"] {
		cfg.ListenAddr = fc.ListenAddr
	}
	if fc.Chip != "" && !changed["chip"] {
		cfg.Chip = fc.Chip
	}
	if fc.PinSense != nil && !changed["pin-sense"] {
		cfg.PinSense = *fc.PinSense
	}
	if fc.PinActivity != nil && !changed["pin-activity"] {
		cfg.PinActivity = *fc.PinActivity
	}
	if fc.PinClient != nil && !changed["pin-client"] {
		cfg.PinClient = *fc.PinClient
	}
	if fc.Broker != "" && !changed["broker"] {
		cfg.Broker = fc.Broker
	}
	if fc.HTTPAddr != "" && !changed["http"] {
		cfg.HTTPAddr = fc.HTTPAddr
	}
	return nil
}

// Validate rejects configurations the control loop cannot run with.
func (c Config) Validate() error {
	if c.Period <= 0 {
		return fmt.Errorf("period must be positive, got %v", c.Period)
	}
	if c.IdleGrace < 0 {
		return fmt.Errorf("idle grace must not be negative, got %v", c.IdleGrace)
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("listen address must not be empty")
	}
	return nil
}
