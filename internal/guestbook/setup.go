package guestbook

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/dialtonelabs/guestbook/internal/hardware"
)

// hookBindings resolves switch wiring into the pull direction and which
// debounced edge means off-hook. A normally-closed switch holds the line
// to ground while the handset rests, so it gets the pull-up; invert swaps
// the edge meaning for cradles wired the other way around.
func hookBindings(switchType string, invert bool) (pullUp, pressIsOffHook bool) {
	pullUp = switchType == "NC"
	pressIsOffHook = pullUp != invert
	return pullUp, pressIsOffHook
}

// SetupHook wires the hook switch. GPIO 0 leaves the appliance without
// one, which bench setups use when driving the state machine directly.
func (g *GuestBook) SetupHook(chip hardware.Chip) error {
	sw := g.cfg.Hook
	if sw.GPIO == 0 {
		slog.Info("Hook switch disabled")
		return nil
	}

	pullUp, pressIsOffHook := hookBindings(sw.Type, sw.Invert)
	btn, err := g.newButton(chip, sw.GPIO, pullUp, sw.BounceTime, 0)
	if err != nil {
		return fmt.Errorf("failed to set up hook switch on GPIO %d: %w", sw.GPIO, err)
	}
	if pressIsOffHook {
		btn.OnPress = g.OffHook
		btn.OnRelease = g.OnHook
	} else {
		btn.OnPress = g.OnHook
		btn.OnRelease = g.OffHook
	}
	btn.Watch()
	g.buttons = append(g.buttons, btn)

	slog.Info("Hook switch ready", "gpio", sw.GPIO, "type", sw.Type, "invert", sw.Invert)
	return nil
}

// SetupRecordGreeting wires the greeting re-record button. GPIO 0 disables
// it.
func (g *GuestBook) SetupRecordGreeting(chip hardware.Chip) error {
	sw := g.cfg.RecordGreeting
	if sw.GPIO == 0 {
		slog.Info("Record-greeting button disabled")
		return nil
	}

	pullUp, pressStarts := hookBindings(sw.Type, sw.Invert)
	btn, err := g.newButton(chip, sw.GPIO, pullUp, sw.BounceTime, 0)
	if err != nil {
		return fmt.Errorf("failed to set up record-greeting button on GPIO %d: %w", sw.GPIO, err)
	}
	if pressStarts {
		btn.OnPress = g.PressedRecordGreeting
		btn.OnRelease = g.ReleasedRecordGreeting
	} else {
		btn.OnPress = g.ReleasedRecordGreeting
		btn.OnRelease = g.PressedRecordGreeting
	}
	btn.Watch()
	g.buttons = append(g.buttons, btn)

	slog.Info("Record-greeting button ready", "gpio", sw.GPIO, "type", sw.Type)
	return nil
}

// SetupShutdown wires the power-off button; holding it for the configured
// time shuts the system down. GPIO 0 disables it.
func (g *GuestBook) SetupShutdown(chip hardware.Chip) error {
	sw := g.cfg.Shutdown
	if sw.GPIO == 0 {
		slog.Info("Shutdown button disabled")
		return nil
	}

	btn, err := g.newButton(chip, sw.GPIO, true, 0, sw.HoldTime)
	if err != nil {
		return fmt.Errorf("failed to set up shutdown button on GPIO %d: %w", sw.GPIO, err)
	}
	btn.OnHold = g.ShutdownHeld
	btn.Watch()
	g.buttons = append(g.buttons, btn)

	slog.Info("Shutdown button ready", "gpio", sw.GPIO, "hold_time", sw.HoldTime)
	return nil
}

func (g *GuestBook) newButton(chip hardware.Chip, pin int, pullUp bool, bounce, hold time.Duration) (*hardware.Button, error) {
	pull := hardware.PullDown
	if pullUp {
		pull = hardware.PullUp
	}
	line, err := chip.OpenInput(pin, pull)
	if err != nil {
		return nil, err
	}
	return hardware.NewButton(line, hardware.ButtonConfig{
		ActiveLow:  pullUp,
		BounceTime: bounce,
		HoldTime:   hold,
	}), nil
}
