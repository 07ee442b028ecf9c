package hardware

import (
	"sync"
	"testing"
	"time"
)

type fakeLine struct {
	mu   sync.Mutex
	high bool
}

func (l *fakeLine) Read() (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.high, nil
}

func (l *fakeLine) set(high bool) {
	l.mu.Lock()
	l.high = high
	l.mu.Unlock()
}

func watchButton(t *testing.T, line Line, cfg ButtonConfig) (*Button, chan string) {
	t.Helper()
	if cfg.PollInterval == 0 {
		cfg.PollInterval = time.Millisecond
	}
	btn := NewButton(line, cfg)
	events := make(chan string, 16)
	btn.OnPress = func() { events <- "press" }
	btn.OnRelease = func() { events <- "release" }
	btn.OnHold = func() { events <- "hold" }
	btn.Watch()
	t.Cleanup(btn.Close)
	return btn, events
}

func expectEvent(t *testing.T, events <-chan string, want string) {
	t.Helper()
	select {
	case got := <-events:
		if got != want {
			t.Fatalf("Expected %q event, got %q", want, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Timed out waiting for %q event", want)
	}
}

func expectNoEvent(t *testing.T, events <-chan string, within time.Duration) {
	t.Helper()
	select {
	case got := <-events:
		t.Fatalf("Expected no event, got %q", got)
	case <-time.After(within):
	}
}

func TestButton_PressAndReleaseActiveLow(t *testing.T) {
	line := &fakeLine{high: true}
	_, events := watchButton(t, line, ButtonConfig{ActiveLow: true})

	line.set(false)
	expectEvent(t, events, "press")

	line.set(true)
	expectEvent(t, events, "release")
}

func TestButton_PressActiveHigh(t *testing.T) {
	line := &fakeLine{high: false}
	_, events := watchButton(t, line, ButtonConfig{ActiveLow: false})

	line.set(true)
	expectEvent(t, events, "press")

	line.set(false)
	expectEvent(t, events, "release")
}

func TestButton_DebounceSuppressesGlitch(t *testing.T) {
	line := &fakeLine{high: true}
	_, events := watchButton(t, line, ButtonConfig{
		ActiveLow:  true,
		BounceTime: 100 * time.Millisecond,
	})

	// A contact bounce far shorter than the bounce time must not produce
	// an edge.
	line.set(false)
	time.Sleep(10 * time.Millisecond)
	line.set(true)

	expectNoEvent(t, events, 200*time.Millisecond)
}

func TestButton_DebouncedPressStillFires(t *testing.T) {
	line := &fakeLine{high: true}
	_, events := watchButton(t, line, ButtonConfig{
		ActiveLow:  true,
		BounceTime: 20 * time.Millisecond,
	})

	line.set(false)
	expectEvent(t, events, "press")
}

func TestButton_HoldFiresOncePerPress(t *testing.T) {
	line := &fakeLine{high: true}
	_, events := watchButton(t, line, ButtonConfig{
		ActiveLow: true,
		HoldTime:  30 * time.Millisecond,
	})

	line.set(false)
	expectEvent(t, events, "press")
	expectEvent(t, events, "hold")
	expectNoEvent(t, events, 100*time.Millisecond)

	line.set(true)
	expectEvent(t, events, "release")

	line.set(false)
	expectEvent(t, events, "press")
	expectEvent(t, events, "hold")
}

func TestButton_NoEventAtRestingState(t *testing.T) {
	// Starting with the switch already closed records the state without
	// synthesizing a press.
	line := &fakeLine{high: false}
	_, events := watchButton(t, line, ButtonConfig{ActiveLow: true})

	expectNoEvent(t, events, 50*time.Millisecond)

	line.set(true)
	expectEvent(t, events, "release")
}

func TestButton_CloseStopsEvents(t *testing.T) {
	line := &fakeLine{high: true}
	btn, events := watchButton(t, line, ButtonConfig{ActiveLow: true})

	btn.Close()
	line.set(false)

	expectNoEvent(t, events, 50*time.Millisecond)

	// Closing again is a no-op.
	btn.Close()
}

func TestButton_CloseWithoutWatch(t *testing.T) {
	btn := NewButton(&fakeLine{}, ButtonConfig{})
	btn.Close()
}
