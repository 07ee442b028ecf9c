package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/dialtonelabs/guestbook/internal/config"
)

// silenceFile is where the synthesized start-delay clip lands. It is
// regenerated on every delayed playback.
const silenceFile = "/tmp/silence.wav"

// ALSABackend drives the ALSA userspace tools: amixer for volume, aplay
// for playback, arecord for capture and sox for silence synthesis. One
// playback and one capture process may be alive at a time.
type ALSABackend struct {
	cfg    *config.Config
	runner commandRunner

	mu               sync.Mutex
	playback         process
	recording        process
	recordingPath    string
	continuePlayback bool
}

// NewALSABackend returns a backend ready to play. The continue-playback
// flag starts armed so a first playback without a preceding ResumePlayback
// still runs.
func NewALSABackend(cfg *config.Config) *ALSABackend {
	return &ALSABackend{
		cfg:              cfg,
		runner:           execRunner{},
		continuePlayback: true,
	}
}

// SetVolume clamps level to [0.0, 1.0] and hands the resulting percentage
// to amixer. Mixer failures are logged and swallowed so a bad control name
// never blocks playback.
func (b *ALSABackend) SetVolume(level float64) {
	if level < 0 {
		level = 0
	}
	if level > 1 {
		level = 1
	}
	percent := int(math.Round(level * 100))

	if err := b.runner.Run("amixer", "set", b.cfg.Audio.MixerControl, fmt.Sprintf("%d%%", percent)); err != nil {
		slog.Error("Failed to set mixer volume", "control", b.cfg.Audio.MixerControl, "percent", percent, "error", err)
		return
	}
	slog.Debug("Mixer volume set", "control", b.cfg.Audio.MixerControl, "percent", percent)
}

// Play renders path at the given volume and blocks until the player exits
// or playback is cancelled. A positive startDelay first plays a silence
// clip of that length, which pads out the wake-up lag of slow audio paths.
func (b *ALSABackend) Play(path string, volume float64, startDelay time.Duration) {
	if _, err := os.Stat(path); err != nil {
		slog.Warn("Audio file not found, skipping playback", "file", path)
		return
	}

	b.SetVolume(volume)

	if startDelay > 0 {
		b.playSilence(startDelay)
	}

	b.mu.Lock()
	if !b.continuePlayback {
		b.mu.Unlock()
		slog.Debug("Playback cancelled before start", "file", path)
		return
	}
	b.mu.Unlock()

	proc, err := b.runner.Start("aplay", "-D", b.cfg.Audio.Device, path)
	if err != nil {
		slog.Error("Failed to start playback", "file", path, "error", err)
		return
	}

	b.mu.Lock()
	if !b.continuePlayback {
		b.mu.Unlock()
		b.terminate(proc, path)
		return
	}
	b.playback = proc
	b.mu.Unlock()

	slog.Debug("Playback started", "file", path)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-proc.Done():
			b.takePlayback(proc)
			slog.Debug("Playback finished", "file", path)
			return
		case <-ticker.C:
			if !b.ContinuePlayback() {
				// StopPlayback usually terminates the player itself; only
				// signal here if the handle is still ours.
				if b.takePlayback(proc) {
					b.terminate(proc, path)
				}
				return
			}
		}
	}
}

// playSilence synthesizes a silence clip with sox and plays it. Both steps
// are best-effort; a missing sox just skips the lead-in.
func (b *ALSABackend) playSilence(d time.Duration) {
	secs := strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
	err := b.runner.Run("sox", "-n",
		"-r", strconv.Itoa(b.cfg.Audio.SampleRate),
		"-c", strconv.Itoa(b.cfg.Audio.Channels),
		silenceFile, "trim", "0", secs)
	if err != nil {
		slog.Warn("Failed to synthesize silence clip, skipping start delay", "error", err)
		return
	}
	if err := b.runner.Run("aplay", silenceFile); err != nil {
		slog.Warn("Failed to play silence clip", "error", err)
	}
}

// StopPlayback clears the continue-playback flag and terminates the active
// player, if any. Calling it with nothing playing only clears the flag.
func (b *ALSABackend) StopPlayback() {
	b.mu.Lock()
	b.continuePlayback = false
	proc := b.playback
	b.playback = nil
	b.mu.Unlock()

	if proc == nil {
		return
	}
	slog.Debug("Stopping playback")
	b.terminate(proc, "")
}

// ResumePlayback re-arms the continue-playback flag for a new sequence.
func (b *ALSABackend) ResumePlayback() {
	b.mu.Lock()
	b.continuePlayback = true
	b.mu.Unlock()
}

// ContinuePlayback reports whether the current sequence may keep going.
func (b *ALSABackend) ContinuePlayback() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.continuePlayback
}

// terminate asks a player to exit and kills it if it lingers past the
// grace period.
func (b *ALSABackend) terminate(proc process, path string) {
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		slog.Debug("Playback process already gone", "error", err)
		return
	}
	if err := proc.Wait(graceTimeout); errors.Is(err, errWaitTimeout) {
		slog.Warn("Playback did not exit in time, killing", "file", path)
		if err := proc.Signal(syscall.SIGKILL); err != nil {
			slog.Debug("Playback process already gone", "error", err)
			return
		}
		proc.Wait(graceTimeout)
	}
}

// takePlayback releases the handle if proc still owns it, reporting
// whether this caller won the release.
func (b *ALSABackend) takePlayback(proc process) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.playback == proc {
		b.playback = nil
		return true
	}
	return false
}

// StartRecording spawns arecord in its own process group, capturing to
// path with the configured device parameters and duration bound. The
// destination directory is created first; failure to create it or to spawn
// the tool is returned without leaving any process behind.
func (b *ALSABackend) StartRecording(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		slog.Error("Failed to create recording directory", "dir", dir, "error", err)
		return fmt.Errorf("failed to create recording directory %s: %w", dir, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.recording != nil {
		return fmt.Errorf("recording already in progress: %s", b.recordingPath)
	}

	proc, err := b.runner.StartGroup("arecord",
		"-D", b.cfg.Audio.Device,
		"-f", b.cfg.Audio.Format,
		"-t", b.cfg.Audio.FileType,
		"-d", strconv.Itoa(b.cfg.Recording.Limit),
		"-r", strconv.Itoa(b.cfg.Audio.SampleRate),
		"-c", strconv.Itoa(b.cfg.Audio.Channels),
		path)
	if err != nil {
		slog.Error("Failed to start recording", "file", path, "error", err)
		return fmt.Errorf("failed to start recording: %w", err)
	}

	b.recording = proc
	b.recordingPath = path
	slog.Info("Recording started", "file", path, "limit_seconds", b.cfg.Recording.Limit)
	return nil
}

// StopRecording winds down the capture process group. arecord gets an
// interrupt first so it finalizes the WAV header, then terminate, then
// kill, each after a grace period. The handle is cleared up front, so a
// second call is a no-op regardless of how the ladder went.
func (b *ALSABackend) StopRecording() {
	b.mu.Lock()
	proc := b.recording
	path := b.recordingPath
	b.recording = nil
	b.recordingPath = ""
	b.mu.Unlock()

	if proc == nil {
		return
	}
	slog.Debug("Stopping recording", "file", path)

	if err := proc.SignalGroup(syscall.SIGINT); err != nil {
		slog.Debug("Capture process group already gone", "error", err)
	} else if err := proc.Wait(graceTimeout); errors.Is(err, errWaitTimeout) {
		slog.Warn("Capture did not stop on interrupt, escalating", "file", path)
		if err := proc.SignalGroup(syscall.SIGTERM); err == nil {
			if err := proc.Wait(graceTimeout); errors.Is(err, errWaitTimeout) {
				slog.Warn("Capture did not stop on terminate, killing", "file", path)
				if err := proc.SignalGroup(syscall.SIGKILL); err == nil {
					proc.Wait(graceTimeout)
				}
			}
		}
	}

	b.sweepStrayCaptures()
	slog.Info("Recording stopped", "file", path)
}

// sweepStrayCaptures reaps capture processes left behind by earlier
// crashes. pkill exits nonzero when nothing matched, which is the common
// case and not an error.
func (b *ALSABackend) sweepStrayCaptures() {
	if err := b.runner.Run("pkill", "-x", "arecord"); err != nil {
		slog.Debug("No stray capture processes", "error", err)
	}
}

// Cleanup stops capture and playback. It never fails; both stops are
// idempotent.
func (b *ALSABackend) Cleanup() error {
	b.StopRecording()
	b.StopPlayback()
	return nil
}
