/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package rtmpsink owns the named pipe and ingest process that push raw PCM
// out to the configured RTMP endpoint, one short-lived transcode at a time.
package rtmpsink

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/friendsincode/autorj/internal/events"
	"github.com/friendsincode/autorj/internal/models"
	"github.com/friendsincode/autorj/internal/procrunner"
	"github.com/friendsincode/autorj/internal/rjerrors"
	"github.com/friendsincode/autorj/internal/telemetry"
)

// Sink owns a FIFO inside the work directory and the ingest process that
// reads from it.
type Sink struct {
	fifoPath  string
	rtmpURL   string
	ffmpegBin string

	bus    *events.Bus
	logger zerolog.Logger

	mu             sync.Mutex
	running        bool
	ingest         *procrunner.Handle
	fifoWriter     *os.File
	current        *procrunner.Handle
	startCount     int
	lastExitCode   int
	lastToolOutput string
}

// New constructs a Sink whose FIFO lives at workDir/live.pcm.
func New(workDir, rtmpURL, ffmpegBin string, bus *events.Bus, logger zerolog.Logger) *Sink {
	return &Sink{
		fifoPath:  filepath.Join(workDir, "live.pcm"),
		rtmpURL:   rtmpURL,
		ffmpegBin: ffmpegBin,
		bus:       bus,
		logger:    logger.With().Str("component", "rtmpsink").Logger(),
	}
}

// Start recreates the FIFO, spawns the ingest process, and opens the write
// side of the pipe.
func (s *Sink) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.fifoPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing fifo: %w", err)
	}
	if err := unix.Mkfifo(s.fifoPath, 0o644); err != nil {
		return fmt.Errorf("create fifo: %w", err)
	}

	ingest := procrunner.NewHandle(procrunner.SpawnOptions{
		Logger:       s.logger,
		OnStderrLine: s.onIngestStderr,
		OnExit:       s.onIngestExit,
	})
	if err := ingest.Spawn(ctx, s.ffmpegBin, []string{
		"-re", "-f", "s16le", "-ar", "48000", "-ac", "2", "-i", s.fifoPath,
		"-c:a", "aac", "-b:a", "192k", "-f", "flv", s.rtmpURL,
	}); err != nil {
		return fmt.Errorf("spawn ingest: %w", err)
	}
	s.ingest = ingest

	writer, err := os.OpenFile(s.fifoPath, os.O_WRONLY, 0o644)
	if err != nil {
		_ = ingest.Terminate(time.Second)
		return fmt.Errorf("open fifo for writing: %w", err)
	}
	s.fifoWriter = writer
	s.running = true
	if s.startCount > 0 {
		telemetry.PublisherRestartsTotal.Inc()
	}
	s.startCount++
	telemetry.PublisherUp.Set(1)

	s.bus.Publish(events.EventPublisherStarted, events.Payload{"rtmp_url": s.rtmpURL})
	return nil
}

func (s *Sink) onIngestStderr(line string) {
	s.mu.Lock()
	s.lastToolOutput = line
	s.mu.Unlock()
}

func (s *Sink) onIngestExit(exitCode int) {
	s.mu.Lock()
	s.running = false
	s.lastExitCode = exitCode
	s.mu.Unlock()
	telemetry.PublisherUp.Set(0)

	s.bus.Publish(events.EventPublisherError, events.Payload{
		"message":   "ffmpeg ingest exited",
		"exit_code": exitCode,
	})
}

// Health reports the ingest process's observed status for the dashboard.
func (s *Sink) Health() models.PublisherHealth {
	s.mu.Lock()
	defer s.mu.Unlock()

	reconnects := s.startCount - 1
	if reconnects < 0 {
		reconnects = 0
	}
	return models.PublisherHealth{
		Connected:      s.running,
		ReconnectCount: reconnects,
		LastExitCode:   s.lastExitCode,
		LastToolOutput: s.lastToolOutput,
	}
}

// PushFile spawns a short-lived transcode of path and streams its raw PCM
// output into the FIFO without closing it. It resolves when the transcode
// exits 0 and rejects otherwise. At most one transcode runs at a time.
func (s *Sink) PushFile(ctx context.Context, path string) error {
	s.mu.Lock()
	if s.current != nil {
		s.mu.Unlock()
		return fmt.Errorf("rtmpsink: a transcode is already in flight")
	}
	if !s.running || s.fifoWriter == nil {
		s.mu.Unlock()
		return fmt.Errorf("rtmpsink: not running")
	}

	handle := procrunner.NewHandle(procrunner.SpawnOptions{CaptureStdout: true, Logger: s.logger})
	if err := handle.Spawn(ctx, s.ffmpegBin, []string{
		"-i", path, "-f", "s16le", "-ar", "48000", "-ac", "2", "-",
	}); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("spawn transcode: %w", err)
	}
	s.current = handle
	writer := s.fifoWriter
	s.mu.Unlock()

	_, copyErr := io.Copy(writer, handle.Stdout)
	if copyErr != nil {
		// A failed FIFO write leaves the transcode's stdout undrained;
		// close it so the handle can observe the exit, then stop the child.
		_ = handle.Stdout.Close()
		_ = handle.Terminate(2 * time.Second)
	}
	handle.Wait()

	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()

	if copyErr != nil {
		return fmt.Errorf("pipe transcode to fifo: %w", copyErr)
	}
	if code := handle.ExitCode(); code != 0 {
		return &rjerrors.ProcessError{Program: s.ffmpegBin, Args: []string{"-i", path}, ExitCode: code}
	}
	return nil
}

// AbortCurrent terminates the in-flight transcode, if any, reporting whether
// there was one to abort.
func (s *Sink) AbortCurrent() bool {
	s.mu.Lock()
	current := s.current
	s.mu.Unlock()
	if current == nil {
		return false
	}
	_ = current.Terminate(2 * time.Second)
	return true
}

// Running reports whether the sink believes the ingest process is alive.
func (s *Sink) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Stop terminates any in-flight transcode, closes the FIFO writer, and
// terminates the ingest process.
func (s *Sink) Stop(ctx context.Context) error {
	s.AbortCurrent()

	s.mu.Lock()
	s.running = false
	writer := s.fifoWriter
	s.fifoWriter = nil
	ingest := s.ingest
	s.ingest = nil
	s.mu.Unlock()

	if writer != nil {
		_ = writer.Close()
	}
	if ingest != nil {
		_ = ingest.Terminate(3 * time.Second)
	}
	telemetry.PublisherUp.Set(0)

	s.bus.Publish(events.EventPublisherStopped, events.Payload{})
	return nil
}
