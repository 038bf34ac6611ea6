/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package playout is the central control loop: it keeps buffered seconds
// above a target, drives the Scheduler, pushes audio to the RTMP Sink, and
// emits the lifecycle and meter events the dashboard observes.
package playout

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/friendsincode/autorj/internal/events"
	"github.com/friendsincode/autorj/internal/models"
	"github.com/friendsincode/autorj/internal/queue"
	"github.com/friendsincode/autorj/internal/rjerrors"
	"github.com/friendsincode/autorj/internal/rtmpsink"
	"github.com/friendsincode/autorj/internal/runtimestate"
	"github.com/friendsincode/autorj/internal/segment"
	"github.com/friendsincode/autorj/internal/telemetry"
	"github.com/friendsincode/autorj/internal/timeline"
	"github.com/friendsincode/autorj/internal/timelinesched"
)

// Mode selects how rendered segments reach the sink.
type Mode string

const (
	// ModePerSegment pushes each rendered segment whole to the sink.
	ModePerSegment Mode = "per_segment"
	// ModeTimeline schedules clips on the Scheduler and feeds the sink
	// fixed-size windows via the Chunked Renderer.
	ModeTimeline Mode = "timeline"
)

const (
	tickInterval          = 250 * time.Millisecond
	maxBuildsInternalMode = 4
	maxBuildsExternalMode = 1
	finishedRetentionSec  = 4.0
	recoverySilenceSec    = 2.0
	recoverySilencePrio   = 200
)

// Options configures a new Engine.
type Options struct {
	Mode            Mode
	Queue           *queue.Queue
	Builder         *segment.Builder
	Scheduler       *timelinesched.Scheduler
	Sink            *rtmpsink.Sink
	Renderer        *timeline.Renderer
	State           *runtimestate.State
	Bus             *events.Bus
	WorkDir         string
	TargetBufferSec float64
	// MinBufferSec is the threshold below which the engine logs a
	// low-buffer warning; 0 disables the check.
	MinBufferSec float64
	// WindowSec overrides the chunked renderer's window size; 0 keeps the
	// 2-second default.
	WindowSec float64
	// InternalRendering reports whether the chunked renderer (internal
	// mixing) is in use, raising maxBuilds from 1 to 4 per tick.
	InternalRendering bool
	Logger            zerolog.Logger
}

// Engine is the broadcaster's central control loop.
type Engine struct {
	mode            Mode
	queue           *queue.Queue
	builder         *segment.Builder
	scheduler       *timelinesched.Scheduler
	sink            *rtmpsink.Sink
	renderer        *timeline.Renderer
	state           *runtimestate.State
	bus             *events.Bus
	workDir         string
	targetBufferSec float64
	minBufferSec    float64
	windowSec       float64
	maxBuilds       int
	logger          zerolog.Logger

	mu          sync.Mutex
	running     bool
	streamStart time.Time
	counters    map[string]int64
	lastError   string
	nowPlaying  *models.RenderedSegment
	lowBuffer   bool

	pushQueue   chan models.RenderedSegment
	bufferedMu  sync.Mutex
	bufferedSec float64

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs an Engine from opts.
func New(opts Options) *Engine {
	maxBuilds := maxBuildsExternalMode
	if opts.InternalRendering {
		maxBuilds = maxBuildsInternalMode
	}
	target := opts.TargetBufferSec
	if target <= 0 {
		target = 12.0
	}
	windowSec := opts.WindowSec
	if windowSec <= 0 {
		windowSec = chunkWindowSec
	}

	return &Engine{
		mode:            opts.Mode,
		queue:           opts.Queue,
		builder:         opts.Builder,
		scheduler:       opts.Scheduler,
		sink:            opts.Sink,
		renderer:        opts.Renderer,
		state:           opts.State,
		bus:             opts.Bus,
		workDir:         opts.WorkDir,
		targetBufferSec: target,
		minBufferSec:    opts.MinBufferSec,
		windowSec:       windowSec,
		maxBuilds:       maxBuilds,
		logger:          opts.Logger.With().Str("component", "playout").Logger(),
		counters:        make(map[string]int64),
		pushQueue:       make(chan models.RenderedSegment, 16),
	}
}

// Start starts the sink and the control loop.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.running = true
	e.streamStart = time.Now()
	e.mu.Unlock()

	if err := e.sink.Start(runCtx); err != nil {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
		return fmt.Errorf("start sink: %w", err)
	}

	e.wg.Add(1)
	go e.loop(runCtx)

	if e.mode == ModePerSegment {
		e.wg.Add(1)
		go e.pusherLoop(runCtx)
	} else {
		e.wg.Add(1)
		go e.chunkedRenderLoop(runCtx)
	}

	e.bus.Publish(events.EventEngineStarted, events.Payload{"mode": string(e.mode)})
	return nil
}

// Stop halts the control loop and the sink. It cancels the run context, so a
// render or sink transcode in flight is killed through that context rather
// than allowed to finish or sent a graceful signal; it then waits for the
// loops to exit and stops the sink.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	cancel := e.cancel
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	e.wg.Wait()
	_ = e.sink.Stop(context.Background())
	e.bus.Publish(events.EventEngineStopped, events.Payload{})
}

// SkipCurrent terminates the in-flight sink transcode; queued items are
// untouched. In timeline mode this is a best-effort advisory: it aborts the
// current window's transcode, that window is not re-rendered, and the render
// loop moves on to the next window. It reports whether anything was actually
// skipped.
func (e *Engine) SkipCurrent() bool {
	aborted := e.sink.AbortCurrent()
	e.bus.Publish(events.EventTransportSkip, events.Payload{"aborted": aborted})
	return aborted
}

func (e *Engine) now() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return time.Since(e.streamStart).Seconds()
}

func (e *Engine) loop(ctx context.Context) {
	defer e.wg.Done()
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

func (e *Engine) tick(ctx context.Context) {
	now := e.now()

	e.advanceLifecycle(now)
	e.publishMeters(now)
	e.buildAhead(ctx, now)
	e.observeBuffer(now)
}

func (e *Engine) observeBuffer(now float64) {
	buffered := e.buffered(now)
	telemetry.BufferedSeconds.Set(buffered)
	telemetry.QueueDepth.Set(float64(e.queue.Len()))

	if e.minBufferSec <= 0 {
		return
	}
	e.mu.Lock()
	wasLow := e.lowBuffer
	e.lowBuffer = buffered < e.minBufferSec
	isLow := e.lowBuffer
	e.mu.Unlock()

	if isLow && !wasLow {
		e.logger.Warn().Float64("buffered_sec", buffered).Float64("min_sec", e.minBufferSec).
			Msg("playout: buffered seconds below minimum")
	} else if !isLow && wasLow {
		e.logger.Info().Float64("buffered_sec", buffered).Msg("playout: buffer recovered")
	}
}

func (e *Engine) advanceLifecycle(now float64) {
	if e.mode != ModeTimeline {
		return
	}
	started, finished := e.scheduler.AdvanceLifecycle(now)
	for _, c := range started {
		if c.ParentSegmentID != "" {
			continue
		}
		e.state.RecordEvent(events.EventSegmentStarted, events.Payload{"segment_id": c.SegmentID})
	}
	for _, c := range finished {
		if c.ParentSegmentID != "" {
			continue
		}
		e.state.RecordEvent(events.EventSegmentFinished, events.Payload{
			"segment_id":   c.SegmentID,
			"buffered_sec": e.buffered(now),
		})
	}
	e.scheduler.PruneFinishedBefore(now, finishedRetentionSec)
}

func (e *Engine) publishMeters(now float64) {
	var clips []models.ScheduledClip
	if e.mode == ModeTimeline {
		clips = e.scheduler.Clips()
	}
	meters, master := computeMeters(clips, now)
	e.state.PublishMeters(meters, master)
}

func (e *Engine) buffered(now float64) float64 {
	if e.mode == ModeTimeline {
		return e.scheduler.Buffered(now)
	}
	e.bufferedMu.Lock()
	defer e.bufferedMu.Unlock()
	return e.bufferedSec
}

func (e *Engine) buildAhead(ctx context.Context, now float64) {
	builds := 0
	for e.buffered(now) < e.targetBufferSec && builds < e.maxBuilds {
		var seg models.RenderedSegment
		if item, err := e.queue.Pop(); err == nil {
			seg = item.Segment
		} else {
			built, buildErr := e.builder.BuildNext(ctx)
			if buildErr != nil {
				e.recordFailure(buildErr)
				e.enqueueRecoverySilence(ctx)
				break
			}
			seg = built
		}

		e.dispatch(seg)
		e.state.RecordEvent(events.EventSegmentEnqueued, events.Payload{"segment_id": seg.ID})
		builds++
		now = e.now()
	}
}

func (e *Engine) recordFailure(err error) {
	e.mu.Lock()
	e.lastError = err.Error()
	e.counters["build_failures"]++
	e.mu.Unlock()
	telemetry.BuildFailuresTotal.Inc()
	e.state.RecordError(err.Error())
}

func (e *Engine) enqueueRecoverySilence(ctx context.Context) {
	outPath := filepath.Join(e.workDir, fmt.Sprintf("recover-%s.wav", uuid.NewString()))
	if err := e.renderer.Render(ctx, timeline.Request{OutputPath: outPath}); err != nil {
		e.recordFailure(&rjerrors.RenderError{Err: err})
		return
	}
	seg := models.RenderedSegment{
		ID:          uuid.NewString(),
		Kind:        models.SegmentLiner,
		FilePath:    outPath,
		DurationSec: recoverySilenceSec,
		Source:      models.SourceAuto,
		Pinned:      true,
		Priority:    models.ClampPriority(recoverySilencePrio),
	}
	e.dispatch(seg)
	e.state.RecordEvent(events.EventSegmentEnqueued, events.Payload{"segment_id": seg.ID})
}

// dispatch routes a popped segment to its sink path per mode.
func (e *Engine) dispatch(seg models.RenderedSegment) {
	if e.mode == ModeTimeline {
		e.scheduler.PlaceSegment(seg)
		return
	}

	e.bufferedMu.Lock()
	e.bufferedSec += seg.DurationSec
	e.bufferedMu.Unlock()

	select {
	case e.pushQueue <- seg:
	default:
		e.logger.Warn().Str("segment_id", seg.ID).Msg("playout: push queue full, dropping build-ahead tick")
	}
}

func (e *Engine) pusherLoop(ctx context.Context) {
	defer e.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case seg, ok := <-e.pushQueue:
			if !ok {
				return
			}
			e.playPerSegment(ctx, seg)
		}
	}
}

func (e *Engine) playPerSegment(ctx context.Context, seg models.RenderedSegment) {
	e.mu.Lock()
	e.nowPlaying = &seg
	e.mu.Unlock()
	e.state.RecordEvent(events.EventSegmentStarted, events.Payload{"segment_id": seg.ID})

	err := e.sink.PushFile(ctx, seg.FilePath)

	e.mu.Lock()
	e.nowPlaying = nil
	e.mu.Unlock()
	e.bufferedMu.Lock()
	e.bufferedSec -= seg.DurationSec
	if e.bufferedSec < 0 {
		e.bufferedSec = 0
	}
	e.bufferedMu.Unlock()

	if err != nil {
		e.recordFailure(err)
		return
	}
	e.state.RecordSegment(seg)
	e.state.RecordEvent(events.EventSegmentFinished, events.Payload{
		"segment_id":   seg.ID,
		"buffered_sec": e.buffered(e.now()),
	})
}

// Snapshot returns the engine's current dashboard-facing state.
func (e *Engine) Snapshot() models.DashboardSnapshot {
	e.mu.Lock()
	running := e.running
	streamStart := e.streamStart
	lastErr := e.lastError
	nowPlaying := e.nowPlaying
	counters := make(map[string]int64, len(e.counters))
	for k, v := range e.counters {
		counters[k] = v
	}
	e.mu.Unlock()

	phase := models.PhaseSongs
	if e.builder != nil {
		phase = e.builder.Phase()
	}

	var publisher models.PublisherHealth
	if e.sink != nil {
		publisher = e.sink.Health()
	}

	return models.DashboardSnapshot{
		Running:         running,
		StreamStartTime: streamStart,
		Phase:           phase,
		BufferedSec:     e.buffered(e.now()),
		LastError:       lastErr,
		NowPlaying:      nowPlaying,
		Queue:           e.queue.List(),
		RecentSegments:  e.state.RecentSegments(),
		RecentErrors:    e.state.RecentErrors(),
		Publisher:       publisher,
		Counters:        counters,
		MasterPlayhead:  e.now(),
	}
}
