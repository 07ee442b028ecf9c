package guestbook

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dialtonelabs/guestbook/internal/archive"
	"github.com/dialtonelabs/guestbook/internal/config"
	"github.com/dialtonelabs/guestbook/internal/hardware"
)

type fakeBackend struct {
	mu           sync.Mutex
	calls        []string
	continueFlag bool
	startErr     error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{continueFlag: true}
}

func (f *fakeBackend) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeBackend) SetVolume(level float64) {}

func (f *fakeBackend) Play(path string, volume float64, delay time.Duration) {
	f.record("play:" + filepath.Base(path))
}

func (f *fakeBackend) StopPlayback() {
	f.mu.Lock()
	f.continueFlag = false
	f.calls = append(f.calls, "stop_playback")
	f.mu.Unlock()
}

func (f *fakeBackend) ResumePlayback() {
	f.mu.Lock()
	f.continueFlag = true
	f.mu.Unlock()
}

func (f *fakeBackend) ContinuePlayback() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.continueFlag
}

func (f *fakeBackend) StartRecording(path string) error {
	f.mu.Lock()
	if f.startErr != nil {
		err := f.startErr
		f.calls = append(f.calls, "start_failed")
		f.mu.Unlock()
		return err
	}
	f.calls = append(f.calls, "start:"+path)
	f.mu.Unlock()

	// The real backend leaves a file behind; archiving depends on it.
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte("RIFF"), 0644)
}

func (f *fakeBackend) StopRecording() {
	f.record("stop_recording")
}

func (f *fakeBackend) Cleanup() error {
	f.record("cleanup")
	return nil
}

func (f *fakeBackend) count(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (f *fakeBackend) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

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

type fakeChip struct {
	mu    sync.Mutex
	lines map[int]*fakeLine
	pulls map[int]hardware.Pull
}

func newFakeChip() *fakeChip {
	return &fakeChip{lines: map[int]*fakeLine{}, pulls: map[int]hardware.Pull{}}
}

func (c *fakeChip) OpenInput(pin int, pull hardware.Pull) (hardware.Line, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	line, ok := c.lines[pin]
	if !ok {
		line = &fakeLine{high: true}
		c.lines[pin] = line
	}
	c.pulls[pin] = pull
	return line, nil
}

func (c *fakeChip) Close() error { return nil }

func (c *fakeChip) openCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pulls)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	root := t.TempDir()
	cfg.Recording.Directory = filepath.Join(root, "recordings")
	cfg.Archive.Directory = filepath.Join(root, "archive")
	cfg.Sounds.Greeting.File = filepath.Join(root, "sounds", "greeting.wav")
	cfg.Sounds.Beep.File = filepath.Join(root, "sounds", "beep.wav")
	cfg.Sounds.TimeExceeded.File = filepath.Join(root, "sounds", "time_exceeded.wav")
	return cfg
}

func newTestGuestBook(t *testing.T) (*GuestBook, *fakeBackend, *archive.Archiver) {
	t.Helper()
	cfg := testConfig(t)
	backend := newFakeBackend()
	storage, err := archive.NewFileStorage(cfg.Archive.Directory)
	if err != nil {
		t.Fatalf("NewFileStorage failed: %v", err)
	}
	archiver := archive.NewArchiver(storage)
	g := New(cfg, backend, archiver)
	g.shutdownFunc = func() error { return nil }
	t.Cleanup(g.Close)
	return g, backend, archiver
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

func callIndex(calls []string, prefix string) int {
	for i, c := range calls {
		if strings.HasPrefix(c, prefix) {
			return i
		}
	}
	return -1
}

func timerArmed(g *GuestBook) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.timer != nil
}

// captureActive reports whether the capture has been registered with the
// session, which happens just after the backend call the fakes record.
func captureActive(g *GuestBook) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.capturing
}

func TestHookBindings(t *testing.T) {
	tests := []struct {
		name           string
		switchType     string
		invert         bool
		pullUp         bool
		pressIsOffHook bool
	}{
		{"normally closed", "NC", false, true, true},
		{"normally closed inverted", "NC", true, true, false},
		{"normally open", "NO", false, false, false},
		{"normally open inverted", "NO", true, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pullUp, pressIsOffHook := hookBindings(tt.switchType, tt.invert)
			if pullUp != tt.pullUp {
				t.Errorf("Expected pullUp=%v, got %v", tt.pullUp, pullUp)
			}
			if pressIsOffHook != tt.pressIsOffHook {
				t.Errorf("Expected pressIsOffHook=%v, got %v", tt.pressIsOffHook, pressIsOffHook)
			}
		})
	}
}

func TestNew_StartsIdle(t *testing.T) {
	g, _, _ := newTestGuestBook(t)

	session, info := g.Status()
	if session != SessionNone {
		t.Errorf("Expected session %s, got %s", SessionNone, session)
	}
	if info != nil {
		t.Errorf("Expected no session info, got %+v", info)
	}
}

func TestOffHook_RunsCallerSequence(t *testing.T) {
	g, backend, _ := newTestGuestBook(t)

	g.OffHook()
	waitFor(t, "capture start", func() bool { return backend.count("start:") == 1 })
	waitFor(t, "capture registration", func() bool { return captureActive(g) })

	session, info := g.Status()
	if session != SessionHandset {
		t.Errorf("Expected session %s, got %s", SessionHandset, session)
	}
	if info == nil || info.Source != "handset" {
		t.Fatalf("Expected handset session info, got %+v", info)
	}
	if !strings.HasPrefix(info.OutputFile, g.cfg.Recording.Directory) || !strings.HasSuffix(info.OutputFile, ".wav") {
		t.Errorf("Expected timestamped wav under recording directory, got %q", info.OutputFile)
	}

	calls := backend.callLog()
	greeting := callIndex(calls, "play:greeting.wav")
	beep := callIndex(calls, "play:beep.wav")
	start := callIndex(calls, "start:")
	if greeting == -1 || beep == -1 || start == -1 || !(greeting < beep && beep < start) {
		t.Errorf("Expected greeting, beep, capture in order, got %v", calls)
	}
	if !timerArmed(g) {
		t.Error("Expected limit timer armed for caller capture")
	}
}

func TestOffHook_IgnoredWhileSessionActive(t *testing.T) {
	g, backend, _ := newTestGuestBook(t)

	g.OffHook()
	waitFor(t, "capture start", func() bool { return backend.count("start:") == 1 })

	g.OffHook()

	if got := backend.count("play:greeting.wav"); got != 1 {
		t.Errorf("Expected 1 greeting playback, got %d", got)
	}
	if got := backend.count("start:"); got != 1 {
		t.Errorf("Expected 1 capture start, got %d", got)
	}
}

func TestOffHook_IgnoredDuringGreetingRecording(t *testing.T) {
	g, backend, _ := newTestGuestBook(t)

	g.PressedRecordGreeting()
	waitFor(t, "greeting capture start", func() bool { return backend.count("start:") == 1 })

	g.OffHook()

	session, _ := g.Status()
	if session != SessionGreeting {
		t.Errorf("Expected session %s, got %s", SessionGreeting, session)
	}
	if got := backend.count("play:greeting.wav"); got != 0 {
		t.Errorf("Expected no caller sequence during greeting recording, got %d greeting playbacks", got)
	}
}

func TestOnHook_StopsCaptureAndArchives(t *testing.T) {
	g, backend, archiver := newTestGuestBook(t)

	g.OffHook()
	waitFor(t, "capture start", func() bool { return captureActive(g) })

	g.OnHook()

	session, info := g.Status()
	if session != SessionNone || info != nil {
		t.Errorf("Expected idle state after on-hook, got %s %+v", session, info)
	}
	if got := backend.count("stop_recording"); got != 1 {
		t.Errorf("Expected 1 recording stop, got %d", got)
	}
	if got := backend.count("stop_playback"); got != 1 {
		t.Errorf("Expected 1 playback stop, got %d", got)
	}
	if timerArmed(g) {
		t.Error("Expected limit timer cancelled after on-hook")
	}

	messages, err := archiver.ListAll()
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("Expected 1 archived message, got %d", len(messages))
	}
	if messages[0]["reason"] != "on_hook" {
		t.Errorf("Expected reason on_hook, got %v", messages[0]["reason"])
	}
}

func TestOnHook_IgnoredWhileIdle(t *testing.T) {
	g, backend, _ := newTestGuestBook(t)

	g.OnHook()

	if got := len(backend.callLog()); got != 0 {
		t.Errorf("Expected no backend calls, got %v", backend.callLog())
	}
}

func TestTimeExceeded_StopsOnceAndPlaysNotice(t *testing.T) {
	g, backend, archiver := newTestGuestBook(t)

	g.OffHook()
	waitFor(t, "capture start", func() bool { return captureActive(g) })

	g.timeExceeded()

	if got := backend.count("stop_recording"); got != 1 {
		t.Errorf("Expected 1 recording stop, got %d", got)
	}
	if got := backend.count("play:time_exceeded.wav"); got != 1 {
		t.Errorf("Expected time-exceeded notice played, got %d", got)
	}
	session, _ := g.Status()
	if session != SessionHandset {
		t.Errorf("Expected handset session to survive the limit, got %s", session)
	}
	if timerArmed(g) {
		t.Error("Expected timer cleared after firing")
	}

	messages, err := archiver.ListAll()
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	if len(messages) != 1 || messages[0]["reason"] != "time_limit" {
		t.Errorf("Expected 1 message archived with reason time_limit, got %v", messages)
	}

	// Hanging up afterwards must not stop the capture a second time.
	g.OnHook()
	if got := backend.count("stop_recording"); got != 1 {
		t.Errorf("Expected no second recording stop, got %d", got)
	}
	if got := backend.count("stop_playback"); got != 1 {
		t.Errorf("Expected playback stopped on hang-up, got %d", got)
	}
}

func TestTimeExceeded_IgnoredWithoutCapture(t *testing.T) {
	g, backend, _ := newTestGuestBook(t)

	g.timeExceeded()

	if got := len(backend.callLog()); got != 0 {
		t.Errorf("Expected no backend calls, got %v", backend.callLog())
	}
}

func TestGreetingRecording_CapturesToGreetingFile(t *testing.T) {
	g, backend, archiver := newTestGuestBook(t)

	g.PressedRecordGreeting()
	waitFor(t, "greeting capture start", func() bool { return captureActive(g) })

	calls := backend.callLog()
	beep := callIndex(calls, "play:beep.wav")
	start := callIndex(calls, "start:")
	if beep == -1 || start == -1 || beep > start {
		t.Errorf("Expected beep before capture, got %v", calls)
	}
	if got := backend.count("start:" + g.cfg.Sounds.Greeting.File); got != 1 {
		t.Errorf("Expected capture into greeting file, got %v", calls)
	}
	if timerArmed(g) {
		t.Error("Expected no limit timer for greeting recording")
	}

	g.ReleasedRecordGreeting()

	session, _ := g.Status()
	if session != SessionNone {
		t.Errorf("Expected idle after release, got %s", session)
	}
	if got := backend.count("stop_recording"); got != 1 {
		t.Errorf("Expected 1 recording stop, got %d", got)
	}

	messages, err := archiver.ListAll()
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	if len(messages) != 0 {
		t.Errorf("Expected greeting recordings not archived, got %d messages", len(messages))
	}
}

func TestReleasedRecordGreeting_IgnoredWhileIdle(t *testing.T) {
	g, backend, _ := newTestGuestBook(t)

	g.ReleasedRecordGreeting()

	if got := len(backend.callLog()); got != 0 {
		t.Errorf("Expected no backend calls, got %v", backend.callLog())
	}
}

func TestShutdownHeld_StopsEverythingAndPowersOff(t *testing.T) {
	g, backend, archiver := newTestGuestBook(t)
	shutdowns := 0
	g.shutdownFunc = func() error { shutdowns++; return nil }

	g.OffHook()
	waitFor(t, "capture start", func() bool { return captureActive(g) })

	g.ShutdownHeld()

	if shutdowns != 1 {
		t.Errorf("Expected 1 shutdown invocation, got %d", shutdowns)
	}
	if got := backend.count("stop_recording"); got != 1 {
		t.Errorf("Expected capture stopped, got %d stops", got)
	}
	messages, err := archiver.ListAll()
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	if len(messages) != 1 || messages[0]["reason"] != "shutdown" {
		t.Errorf("Expected interrupted message archived with reason shutdown, got %v", messages)
	}

	// Terminal state: no new sessions, no second power-off.
	g.OffHook()
	g.ShutdownHeld()
	if got := backend.count("play:greeting.wav"); got != 1 {
		t.Errorf("Expected no new session after shutdown, got %d greeting playbacks", got)
	}
	if shutdowns != 1 {
		t.Errorf("Expected no second shutdown invocation, got %d", shutdowns)
	}
}

func TestOffHook_CaptureStartFailure(t *testing.T) {
	g, backend, _ := newTestGuestBook(t)
	backend.startErr = errors.New("arecord: no such device")

	g.OffHook()
	waitFor(t, "capture attempt", func() bool { return backend.count("start_failed") == 1 })

	if timerArmed(g) {
		t.Error("Expected no limit timer after failed capture start")
	}

	g.OnHook()
	if got := backend.count("stop_recording"); got != 0 {
		t.Errorf("Expected no recording stop for a capture that never started, got %d", got)
	}
	if got := backend.count("stop_playback"); got != 1 {
		t.Errorf("Expected playback stopped on hang-up, got %d", got)
	}
}

func TestSetup_DisabledPins(t *testing.T) {
	g, _, _ := newTestGuestBook(t)
	g.cfg.Hook.GPIO = 0
	g.cfg.RecordGreeting.GPIO = 0
	g.cfg.Shutdown.GPIO = 0
	chip := newFakeChip()

	if err := g.SetupHook(chip); err != nil {
		t.Errorf("SetupHook failed: %v", err)
	}
	if err := g.SetupRecordGreeting(chip); err != nil {
		t.Errorf("SetupRecordGreeting failed: %v", err)
	}
	if err := g.SetupShutdown(chip); err != nil {
		t.Errorf("SetupShutdown failed: %v", err)
	}
	if got := chip.openCount(); got != 0 {
		t.Errorf("Expected no GPIO lines opened, got %d", got)
	}
}

func TestSetupHook_PullDirection(t *testing.T) {
	tests := []struct {
		name       string
		switchType string
		pull       hardware.Pull
	}{
		{"normally closed pulls up", "NC", hardware.PullUp},
		{"normally open pulls down", "NO", hardware.PullDown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _, _ := newTestGuestBook(t)
			g.cfg.Hook.Type = tt.switchType
			chip := newFakeChip()

			if err := g.SetupHook(chip); err != nil {
				t.Fatalf("SetupHook failed: %v", err)
			}
			if got := chip.pulls[g.cfg.Hook.GPIO]; got != tt.pull {
				t.Errorf("Expected pull %v, got %v", tt.pull, got)
			}
		})
	}
}

func TestEndToEnd_HandsetMessageFlow(t *testing.T) {
	g, backend, archiver := newTestGuestBook(t)
	g.cfg.Hook.BounceTime = 0
	chip := newFakeChip()

	if err := g.SetupHook(chip); err != nil {
		t.Fatalf("SetupHook failed: %v", err)
	}
	line := chip.lines[g.cfg.Hook.GPIO]

	// Lift the handset.
	line.set(false)
	waitFor(t, "caller session", func() bool {
		session, _ := g.Status()
		return session == SessionHandset
	})
	waitFor(t, "capture start", func() bool { return captureActive(g) })

	// Replace it.
	line.set(true)
	waitFor(t, "idle state", func() bool {
		session, _ := g.Status()
		return session == SessionNone
	})
	waitFor(t, "recording stop", func() bool { return backend.count("stop_recording") == 1 })
	waitFor(t, "archived message", func() bool {
		messages, err := archiver.ListAll()
		return err == nil && len(messages) == 1
	})
}

func TestClose_IsIdempotent(t *testing.T) {
	g, backend, _ := newTestGuestBook(t)

	g.OffHook()
	waitFor(t, "capture start", func() bool { return captureActive(g) })

	g.Close()
	g.Close()

	if got := backend.count("stop_recording"); got != 1 {
		t.Errorf("Expected 1 recording stop across repeated closes, got %d", got)
	}
	if got := backend.count("cleanup"); got < 1 {
		t.Error("Expected backend cleanup on close")
	}
}
