// Package hardware adapts raw GPIO lines into debounced button events for
// the rest of the appliance. The Chip and Line interfaces keep the poll
// loop testable off the Pi.
package hardware

// Pull selects the internal resistor wired to an input pin.
type Pull int

const (
	PullUp Pull = iota
	PullDown
)

// Line is a single readable GPIO input. Read reports true when the pin is
// electrically high.
type Line interface {
	Read() (bool, error)
}

// Chip opens GPIO input lines by BCM pin number.
type Chip interface {
	OpenInput(pin int, pull Pull) (Line, error)
	Close() error
}
