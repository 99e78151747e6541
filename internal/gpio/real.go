//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// Chip requests lines from actual hardware via the Linux GPIO character device.
type Chip struct {
	chip  *gpiocdev.Chip
	lines []*realLine
}

// Open opens the named GPIO character device (e.g. "gpiochip0").
func Open(name string) (*Chip, error) {
	chip, err := gpiocdev.NewChip(name)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", name, err)
	}
	return &Chip{chip: chip}, nil
}

// RequestInput requests the pin as an input with pull-up. The sense line is
// wired through the pump's current-switch relay, which pulls it low while
// the pump draws current.
func (c *Chip) RequestInput(pin int) (Line, error) {
	l, err := c.chip.RequestLine(pin, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		return nil, fmt.Errorf("request input pin %d: %w", pin, err)
	}
	rl := &realLine{line: l}
	c.lines = append(c.lines, rl)
	return rl, nil
}

// RequestOutput requests the pin as an output, initially driven high.
// The indicator LEDs sink current, so high is the off state.
func (c *Chip) RequestOutput(pin int) (Line, error) {
	l, err := c.chip.RequestLine(pin, gpiocdev.AsOutput(1))
	if err != nil {
		return nil, fmt.Errorf("request output pin %d: %w", pin, err)
	}
	rl := &realLine{line: l, output: true}
	c.lines = append(c.lines, rl)
	return rl, nil
}

// Close releases all requested lines and the chip.
// Output pins are reconfigured to input with pull-down (matching Pi boot
// defaults) before closing so external hardware sees a clean state across
// restarts and reboots.
func (c *Chip) Close() error {
	var errs []error

	for _, rl := range c.lines {
		if rl.closed {
			continue
		}
		if rl.output {
			if err := rl.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
				errs = append(errs, fmt.Errorf("reconfigure pin: %w", err))
			}
		}
		if err := rl.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin: %w", err))
		}
		rl.closed = true
	}
	if c.chip != nil {
		if err := c.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// realLine adapts a gpiocdev line to the Line interface.
type realLine struct {
	line   *gpiocdev.Line
	output bool
	closed bool
}

// Read returns the physical level of the line.
func (r *realLine) Read() (bool, error) {
	v, err := r.line.Value()
	if err != nil {
		return false, fmt.Errorf("read pin: %w", err)
	}
	return v != 0, nil
}

// Write drives the line to the given physical level.
func (r *realLine) Write(level bool) error {
	v := 0
	if level {
		v = 1
	}
	if err := r.line.SetValue(v); err != nil {
		return fmt.Errorf("write pin: %w", err)
	}
	return nil
}

// Close releases the line. The owning Chip skips lines already closed here.
func (r *realLine) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.line.Close()
}
