/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package api implements the dashboard-facing HTTP surface: read-only
// snapshots, media retrieval, the SSE/websocket event feeds, manual queue
// mutation, transport control, and engine lifecycle control.
package api

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/friendsincode/autorj/internal/audiocache"
	"github.com/friendsincode/autorj/internal/events"
	"github.com/friendsincode/autorj/internal/models"
	"github.com/friendsincode/autorj/internal/playout"
	"github.com/friendsincode/autorj/internal/queue"
	"github.com/friendsincode/autorj/internal/runtimestate"
	"github.com/friendsincode/autorj/internal/segment"
	"github.com/friendsincode/autorj/internal/timeline"
	"github.com/friendsincode/autorj/internal/timelinesched"
	"github.com/friendsincode/autorj/internal/tts"
)

// API bundles the services the HTTP handlers call into.
type API struct {
	Engine    *playout.Engine
	Queue     *queue.Queue
	Scheduler *timelinesched.Scheduler
	State     *runtimestate.State
	Bus       *events.Bus
	Builder   *segment.Builder
	Cache     *audiocache.Cache
	TTS       *tts.Adapter
	Renderer  *timeline.Renderer

	WorkDir           string
	EmergencyLinerDir string
	Tracks            []models.Track
	StartedAt         time.Time

	Logger zerolog.Logger

	revMu     sync.Mutex
	revision  int64
	revLog    *runtimestate.Ring[revisionedEvent]
	runCtx    context.Context
	runCancel context.CancelFunc
	wg        sync.WaitGroup

	liveMu   sync.Mutex
	liveSubs map[chan revisionedEvent]struct{}
}

type revisionedEvent struct {
	Revision int64            `json:"revision"`
	Type     events.EventType `json:"type"`
	Payload  events.Payload   `json:"payload"`
}

const revisionLogCapacity = 500

// allEventTypes is the set of event categories fanned into the revision log
// used by the SSE and websocket feeds.
var allEventTypes = []events.EventType{
	events.EventSegmentEnqueued,
	events.EventSegmentRemoved,
	events.EventSegmentStarted,
	events.EventSegmentFinished,
	events.EventQueueUpdated,
	events.EventScheduleUpdated,
	events.EventStateUpdated,
	events.EventMetersUpdated,
	events.EventPublisherStarted,
	events.EventPublisherError,
	events.EventPublisherStopped,
	events.EventTransportSkip,
	events.EventEngineStarted,
	events.EventEngineStopped,
}

// New constructs an API and starts its revision-tagging fan-in.
func New(a *API) *API {
	a.revLog = runtimestate.NewRing[revisionedEvent](revisionLogCapacity)
	a.liveSubs = make(map[chan revisionedEvent]struct{})
	a.runCtx, a.runCancel = context.WithCancel(context.Background())

	for _, et := range allEventTypes {
		sub := a.Bus.Subscribe(et)
		a.wg.Add(1)
		go a.fanIn(et, sub)
	}
	return a
}

func (a *API) fanIn(et events.EventType, sub events.Subscriber) {
	defer a.wg.Done()
	for {
		select {
		case <-a.runCtx.Done():
			a.Bus.Unsubscribe(et, sub)
			return
		case payload, ok := <-sub:
			if !ok {
				return
			}
			a.revMu.Lock()
			a.revision++
			rev := a.revision
			a.revMu.Unlock()
			tagged := revisionedEvent{Revision: rev, Type: et, Payload: payload}
			a.revLog.Add(tagged)
			a.broadcastLive(tagged)
		}
	}
}

// subscribeLive registers ch to receive every newly tagged event until
// the returned unsubscribe func is called. An event is skipped for a
// subscriber whose buffer is full rather than blocking the fan-in goroutines.
func (a *API) subscribeLive() (chan revisionedEvent, func()) {
	ch := make(chan revisionedEvent, 64)
	a.liveMu.Lock()
	a.liveSubs[ch] = struct{}{}
	a.liveMu.Unlock()

	return ch, func() {
		a.liveMu.Lock()
		delete(a.liveSubs, ch)
		a.liveMu.Unlock()
		close(ch)
	}
}

func (a *API) broadcastLive(ev revisionedEvent) {
	a.liveMu.Lock()
	defer a.liveMu.Unlock()
	for ch := range a.liveSubs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close stops the revision fan-in goroutines.
func (a *API) Close() {
	a.runCancel()
	a.wg.Wait()
}

func (a *API) currentRevision() int64 {
	a.revMu.Lock()
	defer a.revMu.Unlock()
	return a.revision
}

// eventsSince returns the events with revision > since, or (nil, false) if
// the requested revision has already scrolled out of the retained window.
func (a *API) eventsSince(since int64) ([]revisionedEvent, bool) {
	all := a.revLog.All()
	if len(all) == 0 {
		return nil, since == 0
	}
	if since < all[0].Revision-1 {
		return nil, false
	}
	out := make([]revisionedEvent, 0, len(all))
	for _, e := range all {
		if e.Revision > since {
			out = append(out, e)
		}
	}
	return out, true
}

func newSegmentID() string {
	return uuid.NewString()
}
