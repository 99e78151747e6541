// Package gpio provides digital line access with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Line is a single digital line. Read and Write operate on raw physical
// levels (true = high); wiring polarity is applied by the callers.
type Line interface {
	// Read returns the current physical level of the line.
	Read() (bool, error)

	// Write drives the line to the given physical level.
	Write(level bool) error

	// Close releases the line.
	Close() error
}

// Pin definitions (BCM numbering).
const (
	DefaultPinSense    = 4  // pump current-switch relay, pull-up, active-low
	DefaultPinActivity = 17 // sampling indicator LED
	DefaultPinClient   = 27 // client-connected indicator LED
)

// DefaultChip is the GPIO character device used on Raspberry Pi hardware.
const DefaultChip = "gpiochip0"
