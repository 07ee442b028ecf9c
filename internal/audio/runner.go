package audio

import (
	"errors"
	"os/exec"
	"syscall"
	"time"
)

// errWaitTimeout reports that a process outlived the wait deadline. The
// escalation ladders treat it as the cue for the next, harsher signal.
var errWaitTimeout = errors.New("timed out waiting for process to exit")

// commandRunner spawns the external audio tools. The indirection keeps the
// signal and argv handling testable without real processes.
type commandRunner interface {
	// Run executes a command and blocks until it exits.
	Run(name string, args ...string) error

	// Start launches a command without waiting.
	Start(name string, args ...string) (process, error)

	// StartGroup launches a command in its own process group, so group
	// signals reach children the tool forks.
	StartGroup(name string, args ...string) (process, error)
}

// process is a running external command.
type process interface {
	// Signal delivers sig to the process itself.
	Signal(sig syscall.Signal) error

	// SignalGroup delivers sig to the whole process group.
	SignalGroup(sig syscall.Signal) error

	// Wait blocks until the process exits or timeout elapses. It returns
	// errWaitTimeout on timeout, otherwise the process exit status. An
	// exit forced by one of our own signals is still an exit, not an
	// error worth escalating over.
	Wait(timeout time.Duration) error

	// Done is closed once the process has exited.
	Done() <-chan struct{}
}

type execRunner struct{}

func (execRunner) Run(name string, args ...string) error {
	return exec.Command(name, args...).Run()
}

func (execRunner) Start(name string, args ...string) (process, error) {
	return startProcess(false, name, args...)
}

func (execRunner) StartGroup(name string, args ...string) (process, error) {
	return startProcess(true, name, args...)
}

type execProcess struct {
	cmd    *exec.Cmd
	exited chan struct{}
	err    error
}

func startProcess(ownGroup bool, name string, args ...string) (*execProcess, error) {
	cmd := exec.Command(name, args...)
	if ownGroup {
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	p := &execProcess{cmd: cmd, exited: make(chan struct{})}
	go func() {
		p.err = cmd.Wait()
		close(p.exited)
	}()
	return p, nil
}

func (p *execProcess) Signal(sig syscall.Signal) error {
	return p.cmd.Process.Signal(sig)
}

func (p *execProcess) SignalGroup(sig syscall.Signal) error {
	pgid, err := syscall.Getpgid(p.cmd.Process.Pid)
	if err != nil {
		return err
	}
	return syscall.Kill(-pgid, sig)
}

func (p *execProcess) Wait(timeout time.Duration) error {
	select {
	case <-p.exited:
		return p.err
	case <-time.After(timeout):
		return errWaitTimeout
	}
}

func (p *execProcess) Done() <-chan struct{} {
	return p.exited
}
