package hardware

import (
	"log/slog"
	"time"
)

const defaultPollInterval = 10 * time.Millisecond

// ButtonConfig controls how a raw line becomes button events.
type ButtonConfig struct {
	// ActiveLow maps the electrical level to the logical pressed state.
	// Pull-up wiring closes the switch to ground, so pressed reads low.
	ActiveLow bool

	// BounceTime is how long a new level must persist before it counts as
	// a real edge. Zero commits edges on the next poll.
	BounceTime time.Duration

	// HoldTime, when positive, fires OnHold once per press after the
	// button has been held down this long.
	HoldTime time.Duration

	// PollInterval defaults to 10ms.
	PollInterval time.Duration
}

// Button debounces a GPIO line and reports edges through callbacks. Assign
// OnPress, OnRelease and OnHold before calling Watch; they run on the poll
// goroutine and must not block.
type Button struct {
	line Line
	cfg  ButtonConfig

	OnPress   func()
	OnRelease func()
	OnHold    func()

	stop chan struct{}
	done chan struct{}
}

func NewButton(line Line, cfg ButtonConfig) *Button {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	return &Button{line: line, cfg: cfg}
}

// Watch starts the poll goroutine. The level at start becomes the resting
// state; no event fires until the first real edge.
func (b *Button) Watch() {
	b.stop = make(chan struct{})
	b.done = make(chan struct{})
	go b.watch()
}

// Close stops the poll goroutine and waits for it to finish. Safe to call
// without a prior Watch.
func (b *Button) Close() {
	if b.stop == nil {
		return
	}
	close(b.stop)
	<-b.done
	b.stop = nil
}

func (b *Button) watch() {
	defer close(b.done)

	stable, err := b.readPressed()
	if err != nil {
		slog.Warn("Initial GPIO read failed", "error", err)
		stable = false
	}
	candidate := stable
	var candidateSince time.Time
	var pressedAt time.Time
	if stable {
		pressedAt = time.Now()
	}
	holdFired := false

	ticker := time.NewTicker(b.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stop:
			return
		case <-ticker.C:
			cur, err := b.readPressed()
			if err != nil {
				slog.Debug("GPIO read failed", "error", err)
				continue
			}

			if cur != candidate {
				candidate = cur
				candidateSince = time.Now()
			}
			if candidate != stable && time.Since(candidateSince) >= b.cfg.BounceTime {
				stable = candidate
				if stable {
					pressedAt = time.Now()
					holdFired = false
					if b.OnPress != nil {
						b.OnPress()
					}
				} else {
					pressedAt = time.Time{}
					if b.OnRelease != nil {
						b.OnRelease()
					}
				}
			}

			if stable && !holdFired && b.cfg.HoldTime > 0 &&
				!pressedAt.IsZero() && time.Since(pressedAt) >= b.cfg.HoldTime {
				holdFired = true
				if b.OnHold != nil {
					b.OnHold()
				}
			}
		}
	}
}

func (b *Button) readPressed() (bool, error) {
	high, err := b.line.Read()
	if err != nil {
		return false, err
	}
	if b.cfg.ActiveLow {
		return !high, nil
	}
	return high, nil
}
