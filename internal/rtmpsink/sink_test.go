package rtmpsink

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/autorj/internal/events"
)

// fakeFFmpegScript writes a shell script masquerading as ffmpeg: the ingest
// invocation drains the FIFO it is given with -i (so the sink's write-side
// open does not block), and the transcode invocation (-i <path> ... -)
// echoes the input file's bytes to stdout.
func fakeFFmpegScript(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "ffmpeg")
	script := "#!/bin/sh\n" +
		"input=\"\"\n" +
		"for a in \"$@\"; do\n" +
		"  if [ \"$prev\" = \"-i\" ]; then input=\"$a\"; fi\n" +
		"  prev=\"$a\"\n" +
		"  last=\"$a\"\n" +
		"done\n" +
		"if [ \"$last\" = \"-\" ]; then\n" +
		"  cat \"$input\"\n" +
		"else\n" +
		"  trap 'exit 0' TERM INT\n" +
		"  cat \"$input\" > /dev/null\n" +
		"fi\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake ffmpeg: %v", err)
	}
	return path
}

func TestStartCreatesFifoAndMarksRunning(t *testing.T) {
	workDir := t.TempDir()
	bus := events.NewBus()
	sink := New(workDir, "rtmp://example/live", fakeFFmpegScript(t), bus, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := bus.Subscribe(events.EventPublisherStarted)
	defer bus.Unsubscribe(events.EventPublisherStarted, started)

	if err := sink.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer sink.Stop(context.Background())

	if !sink.Running() {
		t.Fatal("expected sink to report running after start")
	}

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("expected publisher.started event")
	}

	if _, err := os.Stat(filepath.Join(workDir, "live.pcm")); err != nil {
		t.Fatalf("expected fifo to exist: %v", err)
	}

	health := sink.Health()
	if !health.Connected {
		t.Fatal("expected publisher health to report connected")
	}
	if health.ReconnectCount != 0 {
		t.Fatalf("expected 0 reconnects on first start, got %d", health.ReconnectCount)
	}
}

func TestAbortCurrentReportsWhetherATranscodeWasInFlight(t *testing.T) {
	sink := New(t.TempDir(), "rtmp://example/live", fakeFFmpegScript(t), events.NewBus(), zerolog.Nop())
	if sink.AbortCurrent() {
		t.Fatal("expected no in-flight transcode to abort")
	}
}

func TestPushFileRejectsWhenNotRunning(t *testing.T) {
	sink := New(t.TempDir(), "rtmp://example/live", fakeFFmpegScript(t), events.NewBus(), zerolog.Nop())
	if err := sink.PushFile(context.Background(), "/nonexistent.wav"); err == nil {
		t.Fatal("expected error when sink not running")
	}
}

func TestStopEmitsStoppedEvent(t *testing.T) {
	workDir := t.TempDir()
	bus := events.NewBus()
	sink := New(workDir, "rtmp://example/live", fakeFFmpegScript(t), bus, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := sink.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	stopped := bus.Subscribe(events.EventPublisherStopped)
	defer bus.Unsubscribe(events.EventPublisherStopped, stopped)

	if err := sink.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if sink.Running() {
		t.Fatal("expected running to be false after stop")
	}

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("expected publisher.stopped event")
	}
}
