/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package timelinesched places RenderedSegments on a virtual two-deck
// timeline: deck alternation, commentary overlap, station-ID prepending,
// channel gain ramps, and crossfade transition planning.
package timelinesched

import (
	"math"
	"sync"
	"time"

	"github.com/friendsincode/autorj/internal/models"
	"github.com/friendsincode/autorj/internal/telemetry"
)

// Clock returns the current stream-relative time in seconds. Injected so
// tests can drive the scheduler without wall-clock sleeps.
type Clock func() float64

// WallClock returns a Clock backed by time.Now, anchored at construction.
func WallClock() Clock {
	start := time.Now()
	return func() float64 {
		return time.Since(start).Seconds()
	}
}

// StationID describes the jingle prepended ahead of commentary clips.
type StationID struct {
	FilePath    string
	DurationSec float64
}

type placedMusic struct {
	segmentID            string
	priority             int
	startAt              float64
	duration             float64
	precededByCommentary bool
}

// Scheduler maintains a monotonically increasing scheduleCursor and places
// incoming segments onto it.
type Scheduler struct {
	mu sync.Mutex

	clock          Clock
	scheduleCursor float64
	stationID      *StationID
	carryOverSec   float64

	lastKind               models.SegmentKind
	lastDeck               models.Deck
	lastCommentaryStart    float64
	lastCommentaryDuration float64
	lastMusic              *placedMusic

	clips       []models.ScheduledClip
	transitions []models.Transition
}

// New constructs a Scheduler using clock for "now".
func New(clock Clock) *Scheduler {
	if clock == nil {
		clock = WallClock()
	}
	return &Scheduler{clock: clock, lastDeck: models.DeckB}
}

// SetStationID configures (or clears, with duration <= 0) the station-ID jingle.
func (s *Scheduler) SetStationID(filePath string, durationSec float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if durationSec <= 0 {
		s.stationID = nil
		return
	}
	s.stationID = &StationID{FilePath: filePath, DurationSec: durationSec}
}

// SetCarryOver enables the commentary carry-over nudge: a song following a
// commentary starts up to sec seconds earlier beneath the commentary's bed.
// Zero (the default) disables it.
func (s *Scheduler) SetCarryOver(sec float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carryOverSec = math.Max(0, sec)
}

func channelFor(kind models.SegmentKind) models.Channel {
	switch kind {
	case models.SegmentSong:
		return models.ChannelMusic
	case models.SegmentCommentary:
		return models.ChannelVoice
	default:
		return models.ChannelJingle
	}
}

func windowFor(priority int) float64 {
	if priority >= 120 {
		return 2.2
	}
	if priority >= 80 {
		return 2.8
	}
	return 3.6
}

// PlaceSegment schedules seg and returns the ScheduledClips it produced (one,
// or two when a station-ID jingle is prepended).
func (s *Scheduler) PlaceSegment(seg models.RenderedSegment) []models.ScheduledClip {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	baseStart := math.Max(s.scheduleCursor, now)

	startOfSeg := baseStart
	if seg.Kind == models.SegmentSong && s.lastKind == models.SegmentCommentary {
		startOfSeg = math.Max(now, math.Min(baseStart, s.lastCommentaryStart+0.5*s.lastCommentaryDuration))
		if s.carryOverSec > 0 {
			startOfSeg = math.Max(now, startOfSeg-s.carryOverSec)
		}
	}

	var clips []models.ScheduledClip
	voiceStart := startOfSeg

	if seg.Kind == models.SegmentCommentary && s.stationID != nil && s.stationID.DurationSec > 0.05 {
		d := s.stationID.DurationSec
		crossfadeSec := math.Min(0.45, 0.4*d)

		clips = append(clips, models.ScheduledClip{
			SegmentID:       seg.ID + "-stationid",
			Channel:         models.ChannelJingle,
			FilePath:        s.stationID.FilePath,
			StartAtSec:      startOfSeg,
			DurationSec:     d,
			BaseGain:        1.0,
			Ramp:            &models.GainRamp{From: 1.0, To: 0.15, RampSec: d},
			ParentSegmentID: seg.ID,
		})
		voiceStart = startOfSeg + math.Max(0, d-crossfadeSec)
	}

	clip := models.ScheduledClip{
		SegmentID:   seg.ID,
		Channel:     channelFor(seg.Kind),
		FilePath:    seg.FilePath,
		StartAtSec:  voiceStart,
		DurationSec: seg.DurationSec,
		BaseGain:    1.0,
	}

	switch seg.Kind {
	case models.SegmentCommentary:
		clip.Ramp = &models.GainRamp{From: 0.65, To: 1.35, RampSec: 3.5}
	case models.SegmentSong:
		clip.Ramp = &models.GainRamp{From: 0.70, To: 1.00, RampSec: 7.0}
		s.lastDeck = otherDeck(s.lastDeck)
		clip.Deck = s.lastDeck
	}

	clips = append(clips, clip)

	endOfSeg := voiceStart + seg.DurationSec
	s.scheduleCursor = math.Max(s.scheduleCursor, endOfSeg)

	if seg.Kind == models.SegmentSong {
		if s.lastMusic != nil {
			w := windowFor(s.lastMusic.priority)
			curve := "tri"
			if s.lastMusic.precededByCommentary {
				curve = "log"
			} else if s.lastMusic.priority >= 100 {
				curve = "exp"
			}
			s.transitions = append(s.transitions, models.Transition{
				FromSegmentID: s.lastMusic.segmentID,
				ToSegmentID:   seg.ID,
				WindowSec:     w,
				Curve:         curve,
				AtSec:         s.lastMusic.startAt + s.lastMusic.duration - w,
			})
			telemetry.SchedulerTransitionsTotal.WithLabelValues(curve).Inc()
		}
		s.lastMusic = &placedMusic{
			segmentID:            seg.ID,
			priority:             seg.Priority,
			startAt:              voiceStart,
			duration:             seg.DurationSec,
			precededByCommentary: s.lastKind == models.SegmentCommentary,
		}
	}

	if seg.Kind == models.SegmentCommentary {
		s.lastCommentaryStart = voiceStart
		s.lastCommentaryDuration = seg.DurationSec
	}

	s.lastKind = seg.Kind
	s.clips = append(s.clips, clips...)
	return clips
}

func otherDeck(d models.Deck) models.Deck {
	if d == models.DeckA {
		return models.DeckB
	}
	return models.DeckA
}

// ScheduleCursor returns the current schedule cursor, in seconds from stream start.
func (s *Scheduler) ScheduleCursor() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduleCursor
}

// Snapshot returns a read-only view of the scheduled clips grouped by deck
// and the recorded crossfade transitions.
func (s *Scheduler) Snapshot() models.TimelineSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	byDeck := map[models.Deck][]models.ScheduledClip{models.DeckA: {}, models.DeckB: {}}
	for _, c := range s.clips {
		if c.Deck == models.DeckA || c.Deck == models.DeckB {
			byDeck[c.Deck] = append(byDeck[c.Deck], c)
		}
	}

	transitions := make([]models.Transition, len(s.transitions))
	copy(transitions, s.transitions)

	return models.TimelineSnapshot{
		GeneratedAt: time.Now(),
		ByDeck:      byDeck,
		Transitions: transitions,
		Arbitration: map[string]models.ArbitrationReason{},
	}
}

// Clips returns a snapshot copy of every scheduled clip, in placement order.
func (s *Scheduler) Clips() []models.ScheduledClip {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ScheduledClip, len(s.clips))
	copy(out, s.clips)
	return out
}

// Buffered returns max(0, scheduleCursor - now), the timeline mode's
// measure of produced-but-not-yet-elapsed output.
func (s *Scheduler) Buffered(now float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return math.Max(0, s.scheduleCursor-now)
}

// ClipsOverlapping returns clips whose [StartAtSec, EndAtSec) window
// intersects [start, end).
func (s *Scheduler) ClipsOverlapping(start, end float64) []models.ScheduledClip {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.ScheduledClip
	for _, c := range s.clips {
		if c.StartAtSec < end && c.EndAtSec() > start {
			out = append(out, c)
		}
	}
	return out
}

// AdvanceLifecycle marks clips started/finished relative to now and returns
// the ones that just transitioned.
func (s *Scheduler) AdvanceLifecycle(now float64) (started, finished []models.ScheduledClip) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.clips {
		c := &s.clips[i]
		if !c.Started && now >= c.StartAtSec {
			c.Started = true
			started = append(started, *c)
		}
		if !c.Finished && now >= c.EndAtSec() {
			c.Finished = true
			finished = append(finished, *c)
		}
	}
	return started, finished
}

// PruneFinishedBefore drops clips whose end time is more than maxAgeSec
// before now, per the 4-second retention rule.
func (s *Scheduler) PruneFinishedBefore(now, maxAgeSec float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.clips[:0:0]
	for _, c := range s.clips {
		if c.Finished && now-c.EndAtSec() > maxAgeSec {
			continue
		}
		kept = append(kept, c)
	}
	s.clips = kept
}
