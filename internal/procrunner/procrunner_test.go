package procrunner

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/autorj/internal/rjerrors"
)

func TestRunCapturesStdout(t *testing.T) {
	stdout, _, err := Run(context.Background(), "echo", []string{"hello"}, "")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stdout != "hello\n" {
		t.Fatalf("unexpected stdout: %q", stdout)
	}
}

func TestRunReturnsProcessErrorOnNonZeroExit(t *testing.T) {
	_, _, err := Run(context.Background(), "sh", []string{"-c", "echo boom >&2; exit 3"}, "")
	if err == nil {
		t.Fatal("expected error for non-zero exit")
	}
	var perr *rjerrors.ProcessError
	if !asProcessError(err, &perr) {
		t.Fatalf("expected *ProcessError, got %T: %v", err, err)
	}
	if perr.ExitCode != 3 {
		t.Fatalf("expected exit code 3, got %d", perr.ExitCode)
	}
}

func asProcessError(err error, target **rjerrors.ProcessError) bool {
	pe, ok := err.(*rjerrors.ProcessError)
	if ok {
		*target = pe
	}
	return ok
}

func TestHandleSpawnAndTerminate(t *testing.T) {
	h := NewHandle(SpawnOptions{Logger: zerolog.Nop()})
	if err := h.Spawn(context.Background(), "sleep", []string{"5"}); err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if h.State() != StateRunning {
		t.Fatalf("expected running state, got %s", h.State())
	}
	if err := h.Terminate(2 * time.Second); err != nil {
		t.Fatalf("terminate: %v", err)
	}
	h.Wait()
	if h.State() != StateStopped && h.State() != StateFailed {
		t.Fatalf("expected terminal state, got %s", h.State())
	}
}
