package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/friendsincode/autorj/internal/api"
	"github.com/friendsincode/autorj/internal/config"
	"github.com/friendsincode/autorj/internal/events"
	"github.com/friendsincode/autorj/internal/models"
	"github.com/friendsincode/autorj/internal/playout"
	"github.com/friendsincode/autorj/internal/queue"
	"github.com/friendsincode/autorj/internal/rtmpsink"
	"github.com/friendsincode/autorj/internal/runtimestate"
	"github.com/friendsincode/autorj/internal/timelinesched"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	bus := events.NewBus()
	q := queue.New()
	state := runtimestate.New(bus)
	sched := timelinesched.New(func() float64 { return 0 })
	sink := rtmpsink.New(t.TempDir(), "rtmp://unused", "ffmpeg", bus, zerolog.Nop())

	engine := playout.New(playout.Options{
		Mode:            playout.ModeTimeline,
		Queue:           q,
		Scheduler:       sched,
		Sink:            sink,
		State:           state,
		Bus:             bus,
		WorkDir:         t.TempDir(),
		TargetBufferSec: 5,
		Logger:          zerolog.Nop(),
	})

	a := api.New(&api.API{
		Engine:    engine,
		Queue:     q,
		Scheduler: sched,
		State:     state,
		Bus:       bus,
		WorkDir:   t.TempDir(),
		Tracks:    []models.Track{{ID: "t1"}},
		Logger:    zerolog.Nop(),
	})

	cfg := &config.Config{HTTPBind: "127.0.0.1", HTTPPort: 0}
	s := New(cfg, zerolog.Nop(), a, nil)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestHealthzIsReachableThroughTheFullMiddlewareStack(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestMetricsEndpointIsMounted(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /metrics, got %d", rec.Code)
	}
}

func TestCloseRunsRegisteredClosersInReverseOrder(t *testing.T) {
	s := newTestServer(t)
	var order []int
	s.DeferClose(func() error { order = append(order, 1); return nil })
	s.DeferClose(func() error { order = append(order, 2); return nil })

	if err := s.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != 2 || order[0] != 2 || order[1] != 1 {
		t.Fatalf("expected reverse-order execution [2 1], got %v", order)
	}
}
