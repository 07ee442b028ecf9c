// Package guestbook is the appliance state machine. It turns debounced
// hook and button events into audio sessions: callers hear the greeting
// and a beep, then their message is captured and archived; the owner can
// re-record the greeting or power the box off.
package guestbook

import (
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dialtonelabs/guestbook/internal/archive"
	"github.com/dialtonelabs/guestbook/internal/audio"
	"github.com/dialtonelabs/guestbook/internal/config"
	"github.com/dialtonelabs/guestbook/internal/hardware"
)

// Session identifies who owns the audio path right now.
type Session string

const (
	SessionNone     Session = "NONE"
	SessionHandset  Session = "HANDSET"
	SessionGreeting Session = "GREETING"
)

// SessionInfo describes the active session for status reporting.
type SessionInfo struct {
	Source     string    `json:"source"`
	StartTime  time.Time `json:"start_time"`
	OutputFile string    `json:"output_file,omitempty"`
}

// GuestBook serializes all session bookkeeping under one mutex. Events
// arrive on the button poll goroutines and the limit timer's goroutine;
// the long greeting/beep/record sequences run on tracked workers so the
// pollers only ever block on the bounded stop ladders.
type GuestBook struct {
	cfg      *config.Config
	audio    audio.Backend
	archiver *archive.Archiver

	shutdownFunc func() error

	mu          sync.Mutex
	session     Session
	info        *SessionInfo
	timer       *time.Timer
	capturing   bool
	capturePath string
	closed      bool

	workers sync.WaitGroup
	buttons []*hardware.Button
}

// New builds the state machine. archiver may be nil to skip archiving,
// which the bench commands use.
func New(cfg *config.Config, backend audio.Backend, archiver *archive.Archiver) *GuestBook {
	return &GuestBook{
		cfg:      cfg,
		audio:    backend,
		archiver: archiver,
		session:  SessionNone,
		shutdownFunc: func() error {
			return exec.Command("shutdown", "-h", "now").Run()
		},
	}
}

// OffHook starts a caller session. It returns immediately; the greeting,
// beep and capture sequence runs on a worker goroutine.
func (g *GuestBook) OffHook() {
	g.mu.Lock()
	if g.closed || g.session != SessionNone {
		session := g.session
		g.mu.Unlock()
		slog.Info("Ignoring off-hook, session already active", "session", session)
		return
	}
	g.session = SessionHandset
	g.info = &SessionInfo{Source: "handset", StartTime: time.Now()}
	g.workers.Add(1)
	g.mu.Unlock()

	slog.Info("Handset lifted, starting caller session")
	g.audio.ResumePlayback()

	go func() {
		defer g.workers.Done()
		g.runCallerSequence()
	}()
}

// OnHook ends the caller session. The event is ignored outside one, which
// also keeps a rattling hook switch harmless while the greeting is being
// re-recorded.
func (g *GuestBook) OnHook() {
	g.mu.Lock()
	if g.session != SessionHandset {
		session := g.session
		g.mu.Unlock()
		slog.Debug("Ignoring on-hook", "session", session)
		return
	}
	g.session = SessionNone
	g.info = nil
	g.mu.Unlock()

	slog.Info("Handset replaced, ending caller session")
	g.endCapture("on_hook", true)
	g.audio.StopPlayback()
}

// PressedRecordGreeting records a new greeting for as long as the button
// is held.
func (g *GuestBook) PressedRecordGreeting() {
	g.mu.Lock()
	if g.closed || g.session != SessionNone {
		session := g.session
		g.mu.Unlock()
		slog.Info("Ignoring record-greeting press, session already active", "session", session)
		return
	}
	g.session = SessionGreeting
	g.info = &SessionInfo{
		Source:     "greeting_button",
		StartTime:  time.Now(),
		OutputFile: g.cfg.Sounds.Greeting.File,
	}
	g.workers.Add(1)
	g.mu.Unlock()

	slog.Info("Recording new greeting", "file", g.cfg.Sounds.Greeting.File)
	g.audio.ResumePlayback()

	go func() {
		defer g.workers.Done()
		g.runGreetingSequence()
	}()
}

// ReleasedRecordGreeting finishes the greeting recording. The capture
// lands directly in the configured greeting file, so there is nothing to
// archive.
func (g *GuestBook) ReleasedRecordGreeting() {
	g.mu.Lock()
	if g.session != SessionGreeting {
		session := g.session
		g.mu.Unlock()
		slog.Debug("Ignoring record-greeting release", "session", session)
		return
	}
	g.session = SessionNone
	g.info = nil
	g.mu.Unlock()

	slog.Info("Greeting recording finished")
	g.endCapture("greeting_done", false)
	g.audio.StopPlayback()
}

// ShutdownHeld powers the appliance off. The state machine goes terminal
// first so no new session starts while the system winds down.
func (g *GuestBook) ShutdownHeld() {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.closed = true
	g.session = SessionNone
	g.info = nil
	g.mu.Unlock()

	slog.Info("Shutdown button held, powering off")
	g.endCapture("shutdown", true)
	g.audio.StopPlayback()

	if err := g.shutdownFunc(); err != nil {
		slog.Error("System shutdown command failed", "error", err)
	}
}

// Status reports the current session. The info copy keeps callers from
// racing the state machine.
func (g *GuestBook) Status() (Session, *SessionInfo) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.info == nil {
		return g.session, nil
	}
	info := *g.info
	return g.session, &info
}

// Close tears everything down: buttons stop delivering events, an active
// capture is stopped and archived, workers are joined.
func (g *GuestBook) Close() {
	g.mu.Lock()
	alreadyClosed := g.closed
	g.closed = true
	g.session = SessionNone
	g.info = nil
	g.mu.Unlock()

	for _, btn := range g.buttons {
		btn.Close()
	}

	if !alreadyClosed {
		g.endCapture("shutdown", true)
	}
	g.audio.StopPlayback()
	g.workers.Wait()
	g.audio.Cleanup()
}

func (g *GuestBook) runCallerSequence() {
	greeting := g.cfg.Sounds.Greeting
	g.audio.Play(greeting.File, greeting.Volume, greeting.StartDelay)
	if !g.audio.ContinuePlayback() {
		slog.Debug("Caller sequence cancelled after greeting")
		return
	}

	beep := g.cfg.Sounds.Beep
	g.audio.Play(beep.File, beep.Volume, beep.StartDelay)
	if !g.audio.ContinuePlayback() {
		slog.Debug("Caller sequence cancelled after beep")
		return
	}

	name := time.Now().Format("2006-01-02_15-04-05") + "." + g.cfg.Audio.FileType
	g.beginCapture(SessionHandset, filepath.Join(g.cfg.Recording.Directory, name), true)
}

func (g *GuestBook) runGreetingSequence() {
	beep := g.cfg.Sounds.Beep
	g.audio.Play(beep.File, beep.Volume, beep.StartDelay)
	if !g.audio.ContinuePlayback() {
		slog.Debug("Greeting recording cancelled after beep")
		return
	}
	g.beginCapture(SessionGreeting, g.cfg.Sounds.Greeting.File, false)
}

// beginCapture starts the capture process and registers it with the
// session, backing out if the session ended while the process spawned.
// The limit timer is armed only for caller messages.
func (g *GuestBook) beginCapture(owner Session, path string, withTimer bool) {
	if err := g.audio.StartRecording(path); err != nil {
		slog.Error("Recording did not start", "file", path, "error", err)
		return
	}

	g.mu.Lock()
	if g.session != owner {
		g.mu.Unlock()
		g.audio.StopRecording()
		return
	}
	g.capturing = true
	g.capturePath = path
	if g.info != nil {
		g.info.OutputFile = path
	}
	if withTimer {
		limit := time.Duration(g.cfg.Recording.Limit) * time.Second
		g.timer = time.AfterFunc(limit, g.timeExceeded)
	}
	g.mu.Unlock()
}

// endCapture cancels the limit timer and stops the capture if it is still
// running. The capturing flag makes the stop single-shot when the timer
// and a hook event race.
func (g *GuestBook) endCapture(reason string, archiveIt bool) {
	g.mu.Lock()
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	wasCapturing := g.capturing
	g.capturing = false
	path := g.capturePath
	g.capturePath = ""
	g.mu.Unlock()

	if !wasCapturing {
		return
	}
	g.audio.StopRecording()
	if archiveIt {
		g.archiveMessage(path, reason)
	}
}

// timeExceeded ends a message that hit the recording limit and tells the
// caller so. The handset session stays open; only hanging up resets it.
func (g *GuestBook) timeExceeded() {
	g.mu.Lock()
	if !g.capturing {
		g.mu.Unlock()
		return
	}
	g.capturing = false
	path := g.capturePath
	g.capturePath = ""
	g.timer = nil
	g.mu.Unlock()

	slog.Info("Recording time limit reached", "file", path)
	g.audio.StopRecording()
	g.archiveMessage(path, "time_limit")

	notice := g.cfg.Sounds.TimeExceeded
	g.audio.Play(notice.File, notice.Volume, notice.StartDelay)
}

func (g *GuestBook) archiveMessage(path, reason string) {
	if g.archiver == nil {
		return
	}
	if _, err := os.Stat(path); err != nil {
		slog.Warn("Recorded message missing, nothing to archive", "file", path)
		return
	}
	format := strings.TrimPrefix(filepath.Ext(path), ".")
	id, err := g.archiver.Archive(path, format, map[string]any{
		"source": "handset",
		"reason": reason,
	})
	if err != nil {
		slog.Error("Failed to archive message", "file", path, "error", err)
		return
	}
	slog.Info("Message archived", "message_id", id, "reason", reason)
}
