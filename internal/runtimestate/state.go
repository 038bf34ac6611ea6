/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package runtimestate

import (
	"math"
	"sync"
	"time"

	"github.com/friendsincode/autorj/internal/events"
	"github.com/friendsincode/autorj/internal/models"
)

const (
	eventHistoryCapacity   = 200
	segmentHistoryCapacity = 50
	errorHistoryCapacity   = 50

	meterPublishInterval = 300 * time.Millisecond
	meterDeltaThreshold  = 0.02
	statePublishInterval = 500 * time.Millisecond
)

// State holds the running broadcaster's bounded diagnostic history and
// rate-limits publication of high-frequency events onto the bus.
type State struct {
	bus *events.Bus

	events   *Ring[events.Payload]
	segments *Ring[models.RenderedSegment]
	errors   *Ring[string]

	mu               sync.Mutex
	lastMeterPublish time.Time
	lastMeterLevels  map[models.Channel]float64
	lastStatePublish time.Time
}

// New constructs a State backed by bus.
func New(bus *events.Bus) *State {
	return &State{
		bus:             bus,
		events:          NewRing[events.Payload](eventHistoryCapacity),
		segments:        NewRing[models.RenderedSegment](segmentHistoryCapacity),
		errors:          NewRing[string](errorHistoryCapacity),
		lastMeterLevels: make(map[models.Channel]float64),
	}
}

// RecordEvent appends eventType/payload to the bounded event history and
// republishes it on the bus.
func (s *State) RecordEvent(eventType events.EventType, payload events.Payload) {
	entry := events.Payload{"type": string(eventType)}
	for k, v := range payload {
		entry[k] = v
	}
	s.events.Add(entry)
	s.bus.Publish(eventType, payload)
}

// RecordSegment appends seg to the bounded segment history.
func (s *State) RecordSegment(seg models.RenderedSegment) {
	s.segments.Add(seg)
}

// RecordError appends msg to the bounded error history.
func (s *State) RecordError(msg string) {
	s.errors.Add(msg)
}

// RecentEvents returns the retained event history, oldest first.
func (s *State) RecentEvents() []events.Payload { return s.events.All() }

// RecentSegments returns the retained segment history, oldest first.
func (s *State) RecentSegments() []models.RenderedSegment { return s.segments.All() }

// RecentErrors returns the retained error history, oldest first.
func (s *State) RecentErrors() []string { return s.errors.All() }

// PublishMeters emits meters.updated when the channel-meter history shows
// enough change (any channel's level moved by more than 0.02) and at most
// once every 300ms. It returns whether the event was actually published.
func (s *State) PublishMeters(meters []models.ChannelMeter, masterMeter float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if now.Sub(s.lastMeterPublish) < meterPublishInterval {
		return false
	}

	changed := false
	for _, m := range meters {
		prev, ok := s.lastMeterLevels[m.Channel]
		if !ok || math.Abs(m.EnvelopeLevel-prev) > meterDeltaThreshold {
			changed = true
		}
	}
	if !changed {
		return false
	}

	for _, m := range meters {
		s.lastMeterLevels[m.Channel] = m.EnvelopeLevel
	}
	s.lastMeterPublish = now

	s.bus.Publish(events.EventMetersUpdated, events.Payload{
		"channel_meters": meters,
		"master_meter":   masterMeter,
	})
	return true
}

// PublishStateUpdate emits state.updated at most once every 500ms. It
// returns whether the event was actually published.
func (s *State) PublishStateUpdate(snapshot models.DashboardSnapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if now.Sub(s.lastStatePublish) < statePublishInterval {
		return false
	}
	s.lastStatePublish = now

	s.bus.Publish(events.EventStateUpdated, events.Payload{"snapshot": snapshot})
	return true
}
