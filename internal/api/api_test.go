package api

import (
	"testing"
	"time"

	"github.com/friendsincode/autorj/internal/events"
)

func TestFanInAssignsMonotonicRevisionsAndBroadcastsLive(t *testing.T) {
	a := newTestAPI(t)

	live, unsubscribe := a.subscribeLive()
	defer unsubscribe()

	a.Bus.Publish(events.EventSegmentEnqueued, events.Payload{"segment_id": "s1"})
	a.Bus.Publish(events.EventSegmentEnqueued, events.Payload{"segment_id": "s2"})

	var got []revisionedEvent
	for len(got) < 2 {
		select {
		case ev := <-live:
			got = append(got, ev)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for live events, got %d", len(got))
		}
	}

	if got[0].Revision >= got[1].Revision {
		t.Fatalf("expected strictly increasing revisions, got %d then %d", got[0].Revision, got[1].Revision)
	}
	if a.currentRevision() < got[1].Revision {
		t.Fatalf("currentRevision %d should be >= last broadcast revision %d", a.currentRevision(), got[1].Revision)
	}
}

func TestUnsubscribeLiveStopsDelivery(t *testing.T) {
	a := newTestAPI(t)
	live, unsubscribe := a.subscribeLive()
	unsubscribe()

	a.Bus.Publish(events.EventSegmentEnqueued, events.Payload{"segment_id": "s1"})

	select {
	case _, ok := <-live:
		if ok {
			t.Fatal("expected no delivery after unsubscribe")
		}
	case <-time.After(200 * time.Millisecond):
	}
}
