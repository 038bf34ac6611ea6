package runtimestate

import (
	"testing"
	"time"

	"github.com/friendsincode/autorj/internal/events"
	"github.com/friendsincode/autorj/internal/models"
)

func TestRingBoundsToCapacity(t *testing.T) {
	r := NewRing[int](3)
	for i := 0; i < 10; i++ {
		r.Add(i)
	}
	all := r.All()
	if len(all) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(all))
	}
	if all[0] != 7 || all[1] != 8 || all[2] != 9 {
		t.Fatalf("expected [7 8 9] oldest-first, got %v", all)
	}
}

func TestRingBelowCapacityReturnsAllInOrder(t *testing.T) {
	r := NewRing[string](5)
	r.Add("a")
	r.Add("b")
	all := r.All()
	if len(all) != 2 || all[0] != "a" || all[1] != "b" {
		t.Fatalf("unexpected order: %v", all)
	}
}

func TestStateRecordEventBoundsAndRepublishes(t *testing.T) {
	bus := events.NewBus()
	sub := bus.Subscribe(events.EventSegmentStarted)
	defer bus.Unsubscribe(events.EventSegmentStarted, sub)

	s := New(bus)
	for i := 0; i < eventHistoryCapacity+5; i++ {
		s.RecordEvent(events.EventSegmentStarted, events.Payload{"i": i})
	}
	if len(s.RecentEvents()) != eventHistoryCapacity {
		t.Fatalf("expected %d retained events, got %d", eventHistoryCapacity, len(s.RecentEvents()))
	}

	select {
	case <-sub:
	default:
		t.Fatal("expected event to be republished on the bus")
	}
}

func TestStateRecordSegmentAndErrorBounds(t *testing.T) {
	s := New(events.NewBus())
	for i := 0; i < segmentHistoryCapacity+3; i++ {
		s.RecordSegment(models.RenderedSegment{ID: "x"})
	}
	if len(s.RecentSegments()) != segmentHistoryCapacity {
		t.Fatalf("expected %d segments, got %d", segmentHistoryCapacity, len(s.RecentSegments()))
	}

	for i := 0; i < errorHistoryCapacity+3; i++ {
		s.RecordError("boom")
	}
	if len(s.RecentErrors()) != errorHistoryCapacity {
		t.Fatalf("expected %d errors, got %d", errorHistoryCapacity, len(s.RecentErrors()))
	}
}

func TestPublishMetersSuppressesSmallDeltas(t *testing.T) {
	bus := events.NewBus()
	s := New(bus)

	first := []models.ChannelMeter{{Channel: models.ChannelMusic, EnvelopeLevel: 0.5}}
	if !s.PublishMeters(first, 0.5) {
		t.Fatal("expected first publish to succeed")
	}

	s.mu.Lock()
	s.lastMeterPublish = time.Now().Add(-time.Second)
	s.mu.Unlock()

	tiny := []models.ChannelMeter{{Channel: models.ChannelMusic, EnvelopeLevel: 0.505}}
	if s.PublishMeters(tiny, 0.505) {
		t.Fatal("expected tiny delta to be suppressed")
	}
}

func TestPublishMetersRespectsRateLimit(t *testing.T) {
	s := New(events.NewBus())
	m := []models.ChannelMeter{{Channel: models.ChannelMusic, EnvelopeLevel: 0.9}}
	if !s.PublishMeters(m, 0.9) {
		t.Fatal("expected first publish to succeed")
	}
	m2 := []models.ChannelMeter{{Channel: models.ChannelMusic, EnvelopeLevel: 0.1}}
	if s.PublishMeters(m2, 0.1) {
		t.Fatal("expected second immediate publish to be rate-limited")
	}
}

func TestPublishStateUpdateRespectsRateLimit(t *testing.T) {
	s := New(events.NewBus())
	if !s.PublishStateUpdate(models.DashboardSnapshot{}) {
		t.Fatal("expected first publish to succeed")
	}
	if s.PublishStateUpdate(models.DashboardSnapshot{}) {
		t.Fatal("expected immediate second publish to be rate-limited")
	}
}
