package hardware

import (
	"fmt"

	rpio "github.com/stianeikeland/go-rpio/v4"
)

// RPiChip drives the Raspberry Pi GPIO header through /dev/gpiomem.
type RPiChip struct{}

// OpenRPi maps the GPIO registers. It fails on non-Pi hosts or without
// gpio group permissions.
func OpenRPi() (*RPiChip, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("failed to open GPIO memory: %w", err)
	}
	return &RPiChip{}, nil
}

func (c *RPiChip) OpenInput(pin int, pull Pull) (Line, error) {
	p := rpio.Pin(pin)
	p.Input()
	switch pull {
	case PullUp:
		p.PullUp()
	case PullDown:
		p.PullDown()
	}
	return &rpiLine{pin: p}, nil
}

func (c *RPiChip) Close() error {
	return rpio.Close()
}

type rpiLine struct {
	pin rpio.Pin
}

func (l *rpiLine) Read() (bool, error) {
	return l.pin.Read() == rpio.High, nil
}
