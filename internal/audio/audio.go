package audio

import (
	"time"
)

// graceTimeout is how long a process gets to exit cleanly before the next
// escalation step.
const graceTimeout = 2 * time.Second

// pollInterval paces the playback wait loop's cancellation checks.
const pollInterval = 100 * time.Millisecond

// Backend owns the external audio process lifecycles: playback, capture,
// and mixer volume. Implementations hide signal escalation and timing; the
// state machine only sees the operations below.
//
// All operations are best-effort and log-only except StartRecording, whose
// failure the caller must see so it never arms a timer or stops a recording
// that does not exist.
type Backend interface {
	// SetVolume clamps level to [0.0, 1.0] and applies it to the mixer
	// control.
	SetVolume(level float64)

	// Play renders an audio file at the given volume, optionally after a
	// synthesized silence lead-in. It blocks until playback finishes or is
	// cancelled. A missing file is skipped with a warning.
	Play(path string, volume float64, startDelay time.Duration)

	// StopPlayback terminates any active playback and clears the
	// continue-playback flag so an in-flight sequence stops between
	// stages. No-op when nothing is playing.
	StopPlayback()

	// ResumePlayback re-arms the continue-playback flag at the start of a
	// new sequence.
	ResumePlayback()

	// ContinuePlayback reports whether playback has been cancelled.
	// Sequence workers check it between stages.
	ContinuePlayback() bool

	// StartRecording spawns the capture process writing to path, creating
	// the destination directory first.
	StartRecording(path string) error

	// StopRecording winds down the capture process group, escalating from
	// interrupt to terminate to kill, and sweeps stray capture processes.
	// No-op when nothing is recording.
	StopRecording()

	// Cleanup stops everything. Safe to call repeatedly.
	Cleanup() error
}
