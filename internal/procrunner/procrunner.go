/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package procrunner spawns and supervises the external tools (ffmpeg,
// ffprobe, the content downloader, the RTMP ingest) the broadcast pipeline
// depends on as child processes.
package procrunner

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/autorj/internal/rjerrors"
)

// Run executes program with args, waits for completion, and captures both
// output streams fully to memory. It fails with *rjerrors.ProcessError on a
// non-zero exit.
func Run(ctx context.Context, program string, args []string, cwd string) (stdout, stderr string, err error) {
	cmd := exec.CommandContext(ctx, program, args...)
	if cwd != "" {
		cmd.Dir = cwd
	}

	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	runErr := cmd.Run()
	stdout, stderr = outBuf.String(), errBuf.String()
	if runErr == nil {
		return stdout, stderr, nil
	}

	exitCode := -1
	var exitErr *exec.ExitError
	if ok := asExitError(runErr, &exitErr); ok {
		exitCode = exitErr.ExitCode()
	}

	return stdout, stderr, &rjerrors.ProcessError{
		Program:  program,
		Args:     args,
		ExitCode: exitCode,
		Stderr:   stderr,
	}
}

func asExitError(err error, target **exec.ExitError) bool {
	if ee, ok := err.(*exec.ExitError); ok {
		*target = ee
		return true
	}
	return false
}

// ProcessState enumerates the lifecycle states of a spawned handle.
type ProcessState string

const (
	StateIdle     ProcessState = "idle"
	StateStarting ProcessState = "starting"
	StateRunning  ProcessState = "running"
	StateStopping ProcessState = "stopping"
	StateStopped  ProcessState = "stopped"
	StateFailed   ProcessState = "failed"
)

// Handle is a supervised long-running child process with an optional
// readable stdout stream, a line-oriented stderr callback, and
// graceful-then-forced termination.
type Handle struct {
	mu       sync.Mutex
	state    ProcessState
	cmd      *exec.Cmd
	exitCode int

	// Stdout is set only when SpawnOptions.CaptureStdout was requested; the
	// caller must drain it, since process exit is not observed until the
	// stream hits EOF or is closed.
	Stdout io.ReadCloser

	onStateChange func(ProcessState)
	onStderrLine  func(string)
	onExit        func(exitCode int)

	logger zerolog.Logger

	stdoutDone chan struct{}
	stderrDone chan struct{}
	done       chan struct{}
}

// SpawnOptions configure a Handle before Start is called.
type SpawnOptions struct {
	// CaptureStdout exposes the child's stdout on Handle.Stdout. The caller
	// is then responsible for reading it to EOF.
	CaptureStdout bool
	OnStateChange func(ProcessState)
	OnStderrLine  func(string)
	OnExit        func(exitCode int)
	Logger        zerolog.Logger
}

// NewHandle constructs an idle handle; Spawn supplies the program and args.
func NewHandle(opts SpawnOptions) *Handle {
	h := &Handle{
		state:         StateIdle,
		onStateChange: opts.OnStateChange,
		onStderrLine:  opts.OnStderrLine,
		onExit:        opts.OnExit,
		logger:        opts.Logger.With().Str("component", "procrunner").Logger(),
		stderrDone:    make(chan struct{}),
		done:          make(chan struct{}),
	}
	if opts.CaptureStdout {
		h.stdoutDone = make(chan struct{})
	}
	return h
}

// Spawn starts program with args and begins supervising it.
func (h *Handle) Spawn(ctx context.Context, program string, args []string) error {
	h.mu.Lock()
	h.setStateLocked(StateStarting)
	cmd := exec.CommandContext(ctx, program, args...)

	if h.stdoutDone != nil {
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			h.setStateLocked(StateFailed)
			h.mu.Unlock()
			return fmt.Errorf("stdout pipe: %w", err)
		}
		h.Stdout = &drainNotifier{rc: stdout, done: h.stdoutDone}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		h.setStateLocked(StateFailed)
		h.mu.Unlock()
		return fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		h.setStateLocked(StateFailed)
		h.mu.Unlock()
		return fmt.Errorf("start %s: %w", program, err)
	}

	h.cmd = cmd
	h.setStateLocked(StateRunning)
	h.mu.Unlock()

	go h.monitorStderr(stderr)
	go h.monitorExit()

	return nil
}

// drainNotifier closes done once the wrapped stream hits EOF/error or is
// closed, so monitorExit knows the pipe has been fully consumed before it
// calls cmd.Wait (Wait closes the pipes and would otherwise race the read).
type drainNotifier struct {
	rc   io.ReadCloser
	once sync.Once
	done chan struct{}
}

func (d *drainNotifier) Read(p []byte) (int, error) {
	n, err := d.rc.Read(p)
	if err != nil {
		d.once.Do(func() { close(d.done) })
	}
	return n, err
}

func (d *drainNotifier) Close() error {
	d.once.Do(func() { close(d.done) })
	return d.rc.Close()
}

func (h *Handle) monitorStderr(r io.ReadCloser) {
	defer close(h.stderrDone)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if h.onStderrLine != nil {
			h.onStderrLine(line)
		}
	}
}

func (h *Handle) monitorExit() {
	// cmd.Wait closes the stdio pipes; both consumers must finish first.
	<-h.stderrDone
	if h.stdoutDone != nil {
		<-h.stdoutDone
	}
	err := h.cmd.Wait()
	exitCode := 0
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok {
			exitCode = ee.ExitCode()
		} else {
			exitCode = -1
		}
	}

	h.mu.Lock()
	h.exitCode = exitCode
	if h.state != StateStopping {
		h.setStateLocked(StateFailed)
	} else {
		h.setStateLocked(StateStopped)
	}
	h.mu.Unlock()

	close(h.done)
	if h.onExit != nil {
		h.onExit(exitCode)
	}
}

func (h *Handle) setStateLocked(s ProcessState) {
	h.state = s
	if h.onStateChange != nil {
		go h.onStateChange(s)
	}
}

// State returns the handle's current lifecycle state.
func (h *Handle) State() ProcessState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Wait blocks until the process has exited.
func (h *Handle) Wait() {
	<-h.done
}

// ExitCode returns the process's exit code; only meaningful after Wait.
func (h *Handle) ExitCode() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exitCode
}

// Terminate sends a graceful stop signal and, if the process has not
// exited within grace, forcibly kills it.
func (h *Handle) Terminate(grace time.Duration) error {
	h.mu.Lock()
	cmd := h.cmd
	if cmd == nil || cmd.Process == nil {
		h.mu.Unlock()
		return nil
	}
	h.setStateLocked(StateStopping)
	h.mu.Unlock()

	if err := cmd.Process.Signal(os.Interrupt); err != nil {
		_ = cmd.Process.Signal(syscall.SIGTERM)
	}

	select {
	case <-h.done:
		return nil
	case <-time.After(grace):
		h.logger.Warn().Msg("graceful stop timed out, killing process")
		return cmd.Process.Kill()
	}
}
