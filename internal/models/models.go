/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package models defines the broadcast pipeline's data model: the catalog
// Track, the Builder's RenderedSegment, the Queue's QueueItem, the
// Scheduler's ScheduledClip, and the read-only snapshot types.
package models

import "time"

// SegmentKind enumerates what a RenderedSegment contains.
type SegmentKind string

const (
	SegmentSong       SegmentKind = "song"
	SegmentCommentary SegmentKind = "commentary"
	SegmentLiner      SegmentKind = "liner"
)

// SegmentSource distinguishes builder-produced segments from operator-enqueued ones.
type SegmentSource string

const (
	SourceAuto   SegmentSource = "auto"
	SourceManual SegmentSource = "manual"
)

// Channel is the output bus a ScheduledClip is mixed onto.
type Channel string

const (
	ChannelMusic  Channel = "music"
	ChannelVoice  Channel = "voice"
	ChannelJingle Channel = "jingle"
	ChannelAds    Channel = "ads"
)

// ArbitrationReason explains why a QueueItem sits where it does.
type ArbitrationReason string

const (
	ReasonManualPinned   ArbitrationReason = "manual_pinned"
	ReasonManualPriority ArbitrationReason = "manual_priority"
	ReasonAutoPriority   ArbitrationReason = "auto_priority"
)

// Deck is a virtual stereo slot used to plan music-kind crossfades.
type Deck string

const (
	DeckA Deck = "A"
	DeckB Deck = "B"
)

// Track is a read-only catalog entry.
type Track struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Artist      string   `json:"artist"`
	ContentURL  string   `json:"content_url"`
	DurationSec int      `json:"duration_sec"`
	Tags        []string `json:"tags"`
	Energy      float64  `json:"energy"`
	Mood        string   `json:"mood"`
	Language    string   `json:"language"`
}

// RenderedSegment is a produced audio file ready for playout.
type RenderedSegment struct {
	ID             string        `json:"id"`
	Kind           SegmentKind   `json:"kind"`
	FilePath       string        `json:"file_path"`
	DurationSec    float64       `json:"duration_sec"`
	Note           string        `json:"note,omitempty"`
	CommentaryText string        `json:"commentary_text,omitempty"`
	Source         SegmentSource `json:"source"`
	Priority       int           `json:"priority"`
	Pinned         bool          `json:"pinned"`
	Channel        Channel       `json:"channel,omitempty"`
	ScheduledStart *float64      `json:"scheduled_start,omitempty"`
}

// ClampPriority clamps p to [0, 200].
func ClampPriority(p int) int {
	if p < 0 {
		return 0
	}
	if p > 200 {
		return 200
	}
	return p
}

// QueueItem is a RenderedSegment plus its enqueue timestamp.
type QueueItem struct {
	Segment     RenderedSegment   `json:"segment"`
	EnqueuedAt  time.Time         `json:"enqueued_at"`
	Arbitration ArbitrationReason `json:"arbitration_reason"`
}

// GainRamp is a linear gain envelope applied over a clip's lifetime.
type GainRamp struct {
	From    float64 `json:"from"`
	To      float64 `json:"to"`
	RampSec float64 `json:"ramp_sec"`
}

// ScheduledClip is a single atomic output element placed on the timeline.
type ScheduledClip struct {
	SegmentID       string    `json:"segment_id"`
	Channel         Channel   `json:"channel"`
	FilePath        string    `json:"file_path"`
	StartAtSec      float64   `json:"start_at_sec"`
	SourceOffset    float64   `json:"source_offset"`
	DurationSec     float64   `json:"duration_sec"`
	BaseGain        float64   `json:"base_gain"`
	Ramp            *GainRamp `json:"ramp,omitempty"`
	FadeInSec       float64   `json:"fade_in_sec,omitempty"`
	FadeOutSec      float64   `json:"fade_out_sec,omitempty"`
	ParentSegmentID string    `json:"parent_segment_id,omitempty"`
	Deck            Deck      `json:"deck,omitempty"`

	Started  bool `json:"started"`
	Finished bool `json:"finished"`
}

// EndAtSec returns the clip's wall-clock end time.
func (c ScheduledClip) EndAtSec() float64 {
	return c.StartAtSec + c.DurationSec
}

// Transition records a planned deck-to-deck crossfade.
type Transition struct {
	FromSegmentID string  `json:"from_segment_id"`
	ToSegmentID   string  `json:"to_segment_id"`
	WindowSec     float64 `json:"window_sec"`
	Curve         string  `json:"curve"`
	AtSec         float64 `json:"at_sec"`
}

// TimelineSnapshot is the derived, read-only view of upcoming clips.
type TimelineSnapshot struct {
	GeneratedAt time.Time                    `json:"generated_at"`
	ByDeck      map[Deck][]ScheduledClip     `json:"by_deck"`
	Transitions []Transition                 `json:"transitions"`
	Arbitration map[string]ArbitrationReason `json:"arbitration"`
}

// Phase is the Segment Builder's current intent.
type Phase string

const (
	PhaseSongs      Phase = "songs"
	PhaseCommentary Phase = "commentary"
)

// PublisherHealth reports the RTMP ingest process's observed status.
type PublisherHealth struct {
	Connected      bool   `json:"connected"`
	ReconnectCount int    `json:"reconnect_count"`
	LastExitCode   int    `json:"last_exit_code"`
	LastToolOutput string `json:"last_tool_output"`
}

// ChannelMeter is a single channel's current envelope level.
type ChannelMeter struct {
	Channel       Channel `json:"channel"`
	EnvelopeLevel float64 `json:"envelope_level"`
}

// DashboardSnapshot is the full observable state of the running broadcaster.
type DashboardSnapshot struct {
	Running         bool              `json:"running"`
	StreamStartTime time.Time         `json:"stream_start_time"`
	Phase           Phase             `json:"phase"`
	TracksLoaded    int               `json:"tracks_loaded"`
	BufferedSec     float64           `json:"buffered_sec"`
	LastError       string            `json:"last_error,omitempty"`
	NowPlaying      *RenderedSegment  `json:"now_playing,omitempty"`
	Queue           []QueueItem       `json:"queue"`
	RecentSegments  []RenderedSegment `json:"recent_segments"`
	RecentErrors    []string          `json:"recent_errors"`
	Publisher       PublisherHealth   `json:"publisher"`
	Counters        map[string]int64  `json:"counters"`
	MasterPlayhead  float64           `json:"master_playhead"`
	DeckA           DeckState         `json:"deck_a"`
	DeckB           DeckState         `json:"deck_b"`
	VoiceOverLane   VoiceOverState    `json:"voice_over_lane"`
	Crossfader      CrossfaderState   `json:"crossfader"`
	Ducking         DuckingState      `json:"ducking"`
	LookaheadSec    float64           `json:"lookahead_sec"`
	ChannelMeters   []ChannelMeter    `json:"channel_meters"`
	MasterMeter     float64           `json:"master_meter"`
}

// DeckState describes a single deck's occupancy.
type DeckState struct {
	SegmentID string  `json:"segment_id,omitempty"`
	Active    bool    `json:"active"`
	Position  float64 `json:"position"`
}

// VoiceOverState describes the voice-over overlay lane.
type VoiceOverState struct {
	Active    bool   `json:"active"`
	SegmentID string `json:"segment_id,omitempty"`
}

// CrossfaderState describes an in-progress deck transition.
type CrossfaderState struct {
	Active   bool    `json:"active"`
	Progress float64 `json:"progress"`
	Curve    string  `json:"curve,omitempty"`
}

// DuckingState describes whether music is currently attenuated beneath voice.
type DuckingState struct {
	Active bool    `json:"active"`
	Level  float64 `json:"level"`
}
