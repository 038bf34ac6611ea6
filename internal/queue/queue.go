/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package queue holds operator-enqueued and builder-enqueued segments in
// priority order: pinned first, then priority descending, then FIFO on ties.
package queue

import (
	"sort"
	"sync"
	"time"

	"github.com/friendsincode/autorj/internal/models"
	"github.com/friendsincode/autorj/internal/rjerrors"
)

const (
	defaultManualPriority = 100
	defaultAutoPriority   = 50
)

// Queue is an in-memory, priority-ordered list of QueueItems. There is no
// persistence layer: the queue is a transient planning surface, rebuilt from
// scratch on every process start.
type Queue struct {
	mu    sync.Mutex
	items []models.QueueItem
}

// New constructs an empty Queue.
func New() *Queue {
	return &Queue{}
}

// Enqueue adds segment to the queue. priority is clamped to [0,200]; when
// priority is zero and segment is not manual, the auto default (50) applies,
// and the manual default (100) applies to manual segments left unset.
func (q *Queue) Enqueue(segment models.RenderedSegment, pinned bool, priority int) models.QueueItem {
	q.mu.Lock()
	defer q.mu.Unlock()

	if priority == 0 {
		if segment.Source == models.SourceManual {
			priority = defaultManualPriority
		} else {
			priority = defaultAutoPriority
		}
	}
	segment.Priority = models.ClampPriority(priority)
	segment.Pinned = pinned

	item := models.QueueItem{
		Segment:     segment,
		EnqueuedAt:  time.Now(),
		Arbitration: arbitrationReason(segment),
	}

	q.items = append(q.items, item)
	q.resortLocked()
	return item
}

func arbitrationReason(segment models.RenderedSegment) models.ArbitrationReason {
	if segment.Source == models.SourceManual {
		if segment.Pinned {
			return models.ReasonManualPinned
		}
		return models.ReasonManualPriority
	}
	return models.ReasonAutoPriority
}

// resortLocked reorders items: pinned desc, priority desc, enqueuedAt asc.
// Must be called with mu held.
func (q *Queue) resortLocked() {
	sort.SliceStable(q.items, func(i, j int) bool {
		a, b := q.items[i].Segment, q.items[j].Segment
		if a.Pinned != b.Pinned {
			return a.Pinned
		}
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return q.items[i].EnqueuedAt.Before(q.items[j].EnqueuedAt)
	})
}

// Head returns the highest-priority item without removing it.
func (q *Queue) Head() (models.QueueItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return models.QueueItem{}, false
	}
	return q.items[0], true
}

// Pop removes and returns the highest-priority item.
func (q *Queue) Pop() (models.QueueItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return models.QueueItem{}, rjerrors.ErrQueueMiss
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item, nil
}

// Remove deletes the item with the given segment ID, reporting whether it
// was present.
func (q *Queue) Remove(segmentID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, item := range q.items {
		if item.Segment.ID == segmentID {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return true
		}
	}
	return false
}

// Update mutates the pinned/priority fields of segmentID in place and
// re-sorts the queue, reporting whether the item was found.
func (q *Queue) Update(segmentID string, pinned *bool, priority *int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, item := range q.items {
		if item.Segment.ID != segmentID {
			continue
		}
		if pinned != nil {
			q.items[i].Segment.Pinned = *pinned
		}
		if priority != nil {
			q.items[i].Segment.Priority = models.ClampPriority(*priority)
		}
		q.items[i].Arbitration = arbitrationReason(q.items[i].Segment)
		q.resortLocked()
		return true
	}
	return false
}

// List returns a snapshot copy of the queue in current order.
func (q *Queue) List() []models.QueueItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]models.QueueItem, len(q.items))
	copy(out, q.items)
	return out
}

// Len returns the number of queued items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
