/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package segment builds the next rendered segment — music, commentary, or
// liner — alternating phase according to the configured cadence.
package segment

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/friendsincode/autorj/internal/audiocache"
	"github.com/friendsincode/autorj/internal/commentary"
	"github.com/friendsincode/autorj/internal/models"
	"github.com/friendsincode/autorj/internal/procrunner"
	"github.com/friendsincode/autorj/internal/telemetry"
	"github.com/friendsincode/autorj/internal/timeline"
	"github.com/friendsincode/autorj/internal/tts"
)

const (
	songFadeIn      = 0.4
	songFadeOut     = 0.9
	voiceGain       = 1.9
	voiceFadeIn     = 0.25
	voiceLoudnessI  = -15.0
	linerSilenceSec = 3.0
	recentHistoryN  = 5
)

// Builder holds the phase machine and shuffle state for producing the next
// rendered segment on demand.
type Builder struct {
	cache         *audiocache.Cache
	renderer      *timeline.Renderer
	ttsAdapter    *tts.Adapter
	commentaryGen *commentary.Generator

	tracks            []models.Track
	workDir           string
	emergencyLinerDir string
	ffmpegBin         string
	cadence           int

	rng *rand.Rand
	mu  sync.Mutex

	phase                models.Phase
	order                []int
	pointer              int
	songsSinceCommentary int
	lastPlayed           []models.Track
	lastPlayedID         string

	logger zerolog.Logger
}

// Options configures a new Builder.
type Options struct {
	Cache             *audiocache.Cache
	Renderer          *timeline.Renderer
	TTS               *tts.Adapter
	Commentary        *commentary.Generator
	Tracks            []models.Track
	WorkDir           string
	EmergencyLinerDir string
	FfmpegBin         string
	Cadence           int
	Rand              *rand.Rand
	Logger            zerolog.Logger
}

// New constructs a Builder starting in the songs phase with a fresh shuffle.
func New(opts Options) *Builder {
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	cadence := opts.Cadence
	if cadence <= 0 {
		cadence = 2
	}

	b := &Builder{
		cache:             opts.Cache,
		renderer:          opts.Renderer,
		ttsAdapter:        opts.TTS,
		commentaryGen:     opts.Commentary,
		tracks:            opts.Tracks,
		workDir:           opts.WorkDir,
		emergencyLinerDir: opts.EmergencyLinerDir,
		ffmpegBin:         opts.FfmpegBin,
		cadence:           cadence,
		rng:               rng,
		phase:             models.PhaseSongs,
		logger:            opts.Logger.With().Str("component", "segment-builder").Logger(),
	}
	b.reshuffle()
	return b
}

// Phase returns the builder's current intent.
func (b *Builder) Phase() models.Phase {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.phase
}

// SongsSinceCommentary returns the current consecutive-songs counter.
func (b *Builder) SongsSinceCommentary() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.songsSinceCommentary
}

// reshuffle generates a uniformly random permutation of track indices; if
// the previously played track would land at position 0, it is swapped with
// a uniformly chosen position in [1, n-1].
func (b *Builder) reshuffle() {
	n := len(b.tracks)
	order := b.rng.Perm(n)

	if n > 1 && b.lastPlayedID != "" && b.tracks[order[0]].ID == b.lastPlayedID {
		swapWith := 1 + b.rng.Intn(n-1)
		order[0], order[swapWith] = order[swapWith], order[0]
	}

	b.order = order
	b.pointer = 0
}

// peekNextTrack returns the track the shuffle order will serve next without
// consuming it, for commentary's "upcoming track" context.
func (b *Builder) peekNextTrack() *models.Track {
	if b.pointer >= len(b.order) {
		return nil
	}
	t := b.tracks[b.order[b.pointer]]
	return &t
}

func (b *Builder) nextTrack() models.Track {
	if b.pointer >= len(b.order) {
		b.reshuffle()
	}
	t := b.tracks[b.order[b.pointer]]
	b.pointer++
	b.lastPlayedID = t.ID
	return t
}

// BuildNext produces the next RenderedSegment per the current phase.
func (b *Builder) BuildNext(ctx context.Context) (models.RenderedSegment, error) {
	b.mu.Lock()
	phase := b.phase
	b.mu.Unlock()

	ctx, span := telemetry.StartSpan(ctx, "segment-builder", "BuildNext")
	defer span.End()
	telemetry.AddSpanAttributes(span, map[string]any{"phase": string(phase)})

	start := time.Now()
	var seg models.RenderedSegment
	var err error
	if phase == models.PhaseSongs {
		seg, err = b.buildSong(ctx)
	} else {
		seg, err = b.buildCommentary(ctx)
	}
	if err != nil {
		telemetry.RecordError(span, err)
		telemetry.SegmentsBuiltTotal.WithLabelValues(string(phaseKind(phase)), "error").Inc()
		return seg, err
	}

	telemetry.SegmentsBuiltTotal.WithLabelValues(string(seg.Kind), "ok").Inc()
	telemetry.SegmentBuildSeconds.WithLabelValues(string(seg.Kind)).Observe(time.Since(start).Seconds())
	return seg, nil
}

func phaseKind(p models.Phase) models.SegmentKind {
	if p == models.PhaseSongs {
		return models.SegmentSong
	}
	return models.SegmentCommentary
}

func (b *Builder) buildSong(ctx context.Context) (models.RenderedSegment, error) {
	b.mu.Lock()
	track := b.nextTrack()
	b.mu.Unlock()

	wavPath, err := b.cache.FetchTrackWav(ctx, track)
	if err != nil {
		return models.RenderedSegment{}, err
	}

	outPath := filepath.Join(b.workDir, fmt.Sprintf("song-faded-%s.wav", uuid.NewString()))
	songClip := timeline.Clip{
		FilePath:   wavPath,
		FadeInSec:  songFadeIn,
		FadeOutSec: songFadeOut,
	}
	// The renderer places a fade-out only on clips with a known duration.
	if srcDur, _ := b.cache.ProbeDuration(ctx, wavPath); srcDur > 0 {
		songClip.DurationSec = &srcDur
	}
	if err := b.renderer.Render(ctx, timeline.Request{
		Clips:      []timeline.Clip{songClip},
		OutputPath: outPath,
		Master:     false,
	}); err != nil {
		return models.RenderedSegment{}, err
	}

	duration, _ := b.cache.ProbeDuration(ctx, outPath)
	if duration <= 0 {
		duration = float64(track.DurationSec)
	}

	b.mu.Lock()
	b.recordPlayed(track)
	b.songsSinceCommentary++
	if b.songsSinceCommentary >= b.cadence {
		b.phase = models.PhaseCommentary
	}
	b.mu.Unlock()

	return models.RenderedSegment{
		ID:          uuid.NewString(),
		Kind:        models.SegmentSong,
		FilePath:    outPath,
		DurationSec: duration,
		Source:      models.SourceAuto,
		Priority:    50,
		Pinned:      false,
	}, nil
}

func (b *Builder) buildCommentary(ctx context.Context) (models.RenderedSegment, error) {
	b.mu.Lock()
	recent := append([]models.Track(nil), b.lastPlayed...)
	upcoming := b.peekNextTrack()
	b.mu.Unlock()

	seg, err := b.tryBuildCommentary(ctx, recent, upcoming)
	if err != nil {
		b.logger.Warn().Err(err).Msg("segment builder: commentary path failed, falling back to liner")
		telemetry.CommentaryFallbacksTotal.Inc()
		seg, err = b.buildLiner(ctx)
		if err != nil {
			return models.RenderedSegment{}, err
		}
	}

	b.mu.Lock()
	b.phase = models.PhaseSongs
	b.songsSinceCommentary = 0
	b.mu.Unlock()

	return seg, nil
}

func (b *Builder) tryBuildCommentary(ctx context.Context, recent []models.Track, upcoming *models.Track) (models.RenderedSegment, error) {
	text := b.commentaryGen.Generate(ctx, recent, upcoming)

	rawPath := filepath.Join(b.workDir, fmt.Sprintf("talk-raw-%s.wav", uuid.NewString()))
	if err := b.ttsAdapter.Synthesize(ctx, text, rawPath); err != nil {
		return models.RenderedSegment{}, err
	}
	defer os.Remove(rawPath)

	enhancedPath := filepath.Join(b.workDir, fmt.Sprintf("talk-enhanced-%s.wav", uuid.NewString()))
	if err := b.applyVoiceEnhancement(ctx, rawPath, enhancedPath); err != nil {
		return models.RenderedSegment{}, err
	}

	duration, _ := b.cache.ProbeDuration(ctx, enhancedPath)
	if duration <= 0 {
		duration = 0
	}

	return models.RenderedSegment{
		ID:             uuid.NewString(),
		Kind:           models.SegmentCommentary,
		FilePath:       enhancedPath,
		DurationSec:    duration,
		CommentaryText: text,
		Source:         models.SourceAuto,
		Priority:       50,
		Pinned:         false,
	}, nil
}

// applyVoiceEnhancement applies gain x1.9, loudness normalize I=-15, and a
// brief 0.25s fade-in to a synthesized voice clip.
func (b *Builder) applyVoiceEnhancement(ctx context.Context, inputPath, outputPath string) error {
	filter := fmt.Sprintf("volume=%.2f,loudnorm=I=%.1f:TP=-1.5:LRA=11,afade=t=in:st=0:d=%.2f",
		voiceGain, voiceLoudnessI, voiceFadeIn)

	_, stderr, err := procrunner.Run(ctx, b.ffmpegBin, []string{
		"-y", "-i", inputPath, "-af", filter, "-ar", "48000", "-ac", "2", outputPath,
	}, "")
	if err != nil {
		return fmt.Errorf("voice enhancement failed: %w (%s)", err, stderr)
	}
	return nil
}

// buildLiner produces an emergency-liner segment: a random file from the
// liner directory if one is configured and readable, otherwise 3 seconds of
// silence.
func (b *Builder) buildLiner(ctx context.Context) (models.RenderedSegment, error) {
	if path := b.pickRandomLiner(); path != "" {
		duration, _ := b.cache.ProbeDuration(ctx, path)
		if duration <= 0 {
			duration = linerSilenceSec
		}
		return models.RenderedSegment{
			ID:          uuid.NewString(),
			Kind:        models.SegmentLiner,
			FilePath:    path,
			DurationSec: duration,
			Source:      models.SourceAuto,
			Priority:    50,
		}, nil
	}

	outPath := filepath.Join(b.workDir, fmt.Sprintf("recover-%s.wav", uuid.NewString()))
	if err := b.renderer.Render(ctx, timeline.Request{OutputPath: outPath, SilenceSec: linerSilenceSec}); err != nil {
		return models.RenderedSegment{}, err
	}

	return models.RenderedSegment{
		ID:          uuid.NewString(),
		Kind:        models.SegmentLiner,
		FilePath:    outPath,
		DurationSec: linerSilenceSec,
		Source:      models.SourceAuto,
		Priority:    50,
	}, nil
}

func (b *Builder) pickRandomLiner() string {
	if b.emergencyLinerDir == "" {
		return ""
	}
	entries, err := os.ReadDir(b.emergencyLinerDir)
	if err != nil || len(entries) == 0 {
		return ""
	}

	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			files = append(files, e.Name())
		}
	}
	if len(files) == 0 {
		return ""
	}

	b.mu.Lock()
	idx := b.rng.Intn(len(files))
	b.mu.Unlock()

	return filepath.Join(b.emergencyLinerDir, files[idx])
}

func (b *Builder) recordPlayed(t models.Track) {
	b.lastPlayed = append(b.lastPlayed, t)
	if len(b.lastPlayed) > recentHistoryN {
		b.lastPlayed = b.lastPlayed[len(b.lastPlayed)-recentHistoryN:]
	}
}
