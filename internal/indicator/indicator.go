// Package indicator drives the activity and client-connected LEDs.
package indicator

import (
	"github.com/rs/zerolog"

	"github.com/sweeney/sump-sensor/internal/gpio"
)

// Controller drives the two indicator outputs. The LEDs sink current
// through the line, so logical on drives the pin low. Write failures are
// logged as warnings and dropped; indicators are not safety relevant.
type Controller struct {
	activity gpio.Line
	client   gpio.Line
	log      zerolog.Logger
}

// New creates a Controller over the two output lines.
func New(activity, client gpio.Line, log zerolog.Logger) *Controller {
	return &Controller{activity: activity, client: client, log: log}
}

// SetActivity drives the activity LED, pulsed each cycle while processing.
func (c *Controller) SetActivity(on bool) {
	c.set(c.activity, "activity", on)
}

// SetClientPresent drives the client-connected LED.
func (c *Controller) SetClientPresent(on bool) {
	c.set(c.client, "client", on)
}

// Off clears both indicators. Called during teardown.
func (c *Controller) Off() {
	c.SetActivity(false)
	c.SetClientPresent(false)
}

func (c *Controller) set(line gpio.Line, name string, on bool) {
	// Inverted wiring: logical on = physical low.
	if err := line.Write(!on); err != nil {
		c.log.Warn().Err(err).Str("indicator", name).Msg("indicator write failed")
	}
}
