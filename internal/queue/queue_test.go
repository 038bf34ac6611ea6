package queue

import (
	"errors"
	"testing"

	"github.com/friendsincode/autorj/internal/models"
	"github.com/friendsincode/autorj/internal/rjerrors"
)

func seg(id string, source models.SegmentSource) models.RenderedSegment {
	return models.RenderedSegment{ID: id, Source: source}
}

func TestEnqueueAppliesDefaultPriorities(t *testing.T) {
	q := New()
	autoItem := q.Enqueue(seg("auto-1", models.SourceAuto), false, 0)
	if autoItem.Segment.Priority != defaultAutoPriority {
		t.Fatalf("expected auto default priority %d, got %d", defaultAutoPriority, autoItem.Segment.Priority)
	}

	manualItem := q.Enqueue(seg("manual-1", models.SourceManual), false, 0)
	if manualItem.Segment.Priority != defaultManualPriority {
		t.Fatalf("expected manual default priority %d, got %d", defaultManualPriority, manualItem.Segment.Priority)
	}
}

func TestEnqueueClampsPriority(t *testing.T) {
	q := New()
	item := q.Enqueue(seg("over", models.SourceManual), false, 999)
	if item.Segment.Priority != 200 {
		t.Fatalf("expected clamp to 200, got %d", item.Segment.Priority)
	}
}

func TestOrderingPinnedThenPriorityThenFIFO(t *testing.T) {
	q := New()
	q.Enqueue(seg("low", models.SourceAuto), false, 10)
	q.Enqueue(seg("high", models.SourceAuto), false, 90)
	q.Enqueue(seg("pinned-low", models.SourceManual), true, 5)
	q.Enqueue(seg("high-2", models.SourceAuto), false, 90)

	items := q.List()
	if items[0].Segment.ID != "pinned-low" {
		t.Fatalf("expected pinned item first, got %q", items[0].Segment.ID)
	}
	if items[1].Segment.ID != "high" || items[2].Segment.ID != "high-2" {
		t.Fatalf("expected equal-priority FIFO order high,high-2, got %q,%q", items[1].Segment.ID, items[2].Segment.ID)
	}
	if items[3].Segment.ID != "low" {
		t.Fatalf("expected low-priority item last, got %q", items[3].Segment.ID)
	}
}

func TestArbitrationReasonTagging(t *testing.T) {
	q := New()
	pinned := q.Enqueue(seg("p", models.SourceManual), true, 100)
	if pinned.Arbitration != models.ReasonManualPinned {
		t.Fatalf("expected manual_pinned, got %q", pinned.Arbitration)
	}
	manual := q.Enqueue(seg("m", models.SourceManual), false, 100)
	if manual.Arbitration != models.ReasonManualPriority {
		t.Fatalf("expected manual_priority, got %q", manual.Arbitration)
	}
	auto := q.Enqueue(seg("a", models.SourceAuto), false, 50)
	if auto.Arbitration != models.ReasonAutoPriority {
		t.Fatalf("expected auto_priority, got %q", auto.Arbitration)
	}
}

func TestPopReturnsErrQueueMissWhenEmpty(t *testing.T) {
	q := New()
	_, err := q.Pop()
	if !errors.Is(err, rjerrors.ErrQueueMiss) {
		t.Fatalf("expected ErrQueueMiss, got %v", err)
	}
}

func TestPopRemovesHeadItem(t *testing.T) {
	q := New()
	q.Enqueue(seg("only", models.SourceAuto), false, 50)
	item, err := q.Pop()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item.Segment.ID != "only" {
		t.Fatalf("expected to pop 'only', got %q", item.Segment.ID)
	}
	if q.Len() != 0 {
		t.Fatalf("expected queue empty after pop, got len %d", q.Len())
	}
}

func TestRemoveByID(t *testing.T) {
	q := New()
	q.Enqueue(seg("keep", models.SourceAuto), false, 50)
	q.Enqueue(seg("drop", models.SourceAuto), false, 50)

	if !q.Remove("drop") {
		t.Fatal("expected remove to report found")
	}
	if q.Remove("drop") {
		t.Fatal("expected second remove to report not found")
	}
	if q.Len() != 1 {
		t.Fatalf("expected 1 item remaining, got %d", q.Len())
	}
}

func TestUpdateChangesPinAndPriorityAndResorts(t *testing.T) {
	q := New()
	q.Enqueue(seg("a", models.SourceAuto), false, 50)
	q.Enqueue(seg("b", models.SourceManual), false, 50)

	pinned := true
	priority := 10
	if !q.Update("b", &pinned, &priority) {
		t.Fatal("expected update to find item")
	}

	items := q.List()
	if items[0].Segment.ID != "b" {
		t.Fatalf("expected pinned+updated item first, got %q", items[0].Segment.ID)
	}
	if items[0].Arbitration != models.ReasonManualPinned {
		t.Fatalf("expected re-tagged arbitration reason manual_pinned, got %q", items[0].Arbitration)
	}
}

func TestPinnedAutoItemKeepsAutoReason(t *testing.T) {
	q := New()
	item := q.Enqueue(seg("recovery", models.SourceAuto), true, 200)
	if item.Arbitration != models.ReasonAutoPriority {
		t.Fatalf("expected pinned auto item tagged auto_priority, got %q", item.Arbitration)
	}

	items := q.List()
	if items[0].Segment.ID != "recovery" {
		t.Fatalf("expected pinned auto item sorted first regardless of reason, got %q", items[0].Segment.ID)
	}
}

func TestHeadDoesNotRemove(t *testing.T) {
	q := New()
	q.Enqueue(seg("only", models.SourceAuto), false, 50)
	if _, ok := q.Head(); !ok {
		t.Fatal("expected head to find item")
	}
	if q.Len() != 1 {
		t.Fatalf("expected head to leave item in place, len=%d", q.Len())
	}
}
