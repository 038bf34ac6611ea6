/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/autorj/internal/events"
	"github.com/friendsincode/autorj/internal/models"
	"github.com/friendsincode/autorj/internal/rjerrors"
)

type okEnvelope struct {
	OK bool `json:"ok"`
}

type errEnvelope struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errEnvelope{OK: false, Error: err.Error()})
}

// Healthz reports liveness.
func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "service": "autorj"})
}

// Status reports a compact operational summary.
func (a *API) Status(w http.ResponseWriter, r *http.Request) {
	snap := a.Engine.Snapshot()

	lastPlayed := make([]string, 0, len(snap.RecentSegments))
	for _, seg := range snap.RecentSegments {
		lastPlayed = append(lastPlayed, seg.ID)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"running":      snap.Running,
		"tracksLoaded": len(a.Tracks),
		"phase":        snap.Phase,
		"bufferedSec":  snap.BufferedSec,
		"lastPlayed":   lastPlayed,
		"lastError":    snap.LastError,
	})
}

// DashboardSnapshot returns the full observable state of the broadcaster.
func (a *API) DashboardSnapshot(w http.ResponseWriter, r *http.Request) {
	snap := a.Engine.Snapshot()
	snap.TracksLoaded = len(a.Tracks)
	writeJSON(w, http.StatusOK, snap)
}

// DashboardQueue returns the current queue in arbitration order.
func (a *API) DashboardQueue(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Queue.List())
}

// TimelineSnapshot returns the scheduler's deck/transition view annotated
// with each queued item's arbitration reason.
func (a *API) TimelineSnapshot(w http.ResponseWriter, r *http.Request) {
	if a.Scheduler == nil {
		writeJSON(w, http.StatusOK, models.TimelineSnapshot{})
		return
	}
	writeJSON(w, http.StatusOK, a.timelineSnapshot())
}

// TimelineRebuild recomputes and returns the timeline snapshot. The
// scheduler is append-only (clips are placed as segments are produced), so
// "rebuild" here means "return the current derived view" rather than
// discarding and replanning already-placed clips.
func (a *API) TimelineRebuild(w http.ResponseWriter, r *http.Request) {
	if a.Scheduler == nil {
		writeError(w, http.StatusInternalServerError, &rjerrors.SchedulerRebuildError{Err: errNoScheduler})
		return
	}
	writeJSON(w, http.StatusOK, a.timelineSnapshot())
}

func (a *API) timelineSnapshot() models.TimelineSnapshot {
	snap := a.Scheduler.Snapshot()
	for _, item := range a.Queue.List() {
		snap.Arbitration[item.Segment.ID] = item.Arbitration
	}
	return snap
}

var errNoScheduler = errors.New("no scheduler configured (per-segment mode)")

// DashboardMediaBySegment streams the WAV bytes of a recently produced
// segment, identified by ID, from the bounded recent-segment history.
func (a *API) DashboardMediaBySegment(w http.ResponseWriter, r *http.Request) {
	segmentID := chi.URLParam(r, "segmentId")
	for _, seg := range a.State.RecentSegments() {
		if seg.ID == segmentID {
			a.serveWav(w, r, seg.FilePath)
			return
		}
	}
	writeError(w, http.StatusNotFound, errNotFound)
}

var errNotFound = errors.New("segment not found")

// DashboardMediaByPath streams WAV bytes for an absolute path, constrained
// to the work directory or the emergency-liner directory.
func (a *API) DashboardMediaByPath(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, http.StatusBadRequest, errMissingPath)
		return
	}
	if !a.pathAllowed(path) {
		writeError(w, http.StatusForbidden, errPathForbidden)
		return
	}
	a.serveWav(w, r, path)
}

var (
	errMissingPath   = errors.New("path is required")
	errPathForbidden = errors.New("path must resolve under the work dir or emergency liner dir")
)

func (a *API) pathAllowed(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	for _, root := range []string{a.WorkDir, a.EmergencyLinerDir} {
		if root == "" {
			continue
		}
		rootAbs, err := filepath.Abs(root)
		if err != nil {
			continue
		}
		if abs == rootAbs || strings.HasPrefix(abs, rootAbs+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (a *API) serveWav(w http.ResponseWriter, r *http.Request, path string) {
	f, err := os.Open(path)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	defer f.Close()
	w.Header().Set("Content-Type", "audio/wav")
	http.ServeContent(w, r, filepath.Base(path), statTime(f), f)
}

type commentaryRequest struct {
	Text string `json:"text"`
}

// QueueCommentary synthesizes text into a voice clip and enqueues it as a
// pinned, priority-120 manual commentary.
func (a *API) QueueCommentary(w http.ResponseWriter, r *http.Request) {
	var req commentaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, errTextRequired)
		return
	}

	rawPath := filepath.Join(a.WorkDir, "talk-manual-"+newSegmentID()+".wav")
	if err := a.TTS.Synthesize(r.Context(), req.Text, rawPath); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	duration, err := a.Cache.ProbeDuration(r.Context(), rawPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	seg := models.RenderedSegment{
		ID:             newSegmentID(),
		Kind:           models.SegmentCommentary,
		FilePath:       rawPath,
		DurationSec:    duration,
		CommentaryText: req.Text,
		Source:         models.SourceManual,
	}
	item := a.Queue.Enqueue(seg, true, 120)
	a.State.RecordEvent(events.EventSegmentEnqueued, events.Payload{"segment_id": item.Segment.ID})
	writeJSON(w, http.StatusOK, item)
}

var errTextRequired = errors.New("text is required")

type trackRequest struct {
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	YoutubeURL string `json:"youtube_url"`
}

// QueueTrack fetches and enqueues a manually requested song at priority 110, pinned.
func (a *API) QueueTrack(w http.ResponseWriter, r *http.Request) {
	var req trackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.YoutubeURL == "" {
		writeError(w, http.StatusBadRequest, errURLRequired)
		return
	}

	track := models.Track{
		ID:         newSegmentID(),
		Title:      req.Title,
		Artist:     req.Artist,
		ContentURL: req.YoutubeURL,
	}
	wavPath, err := a.Cache.FetchTrackWav(r.Context(), track)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	duration, err := a.Cache.ProbeDuration(r.Context(), wavPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	seg := models.RenderedSegment{
		ID:          newSegmentID(),
		Kind:        models.SegmentSong,
		FilePath:    wavPath,
		DurationSec: duration,
		Source:      models.SourceManual,
	}
	item := a.Queue.Enqueue(seg, true, 110)
	a.State.RecordEvent(events.EventSegmentEnqueued, events.Payload{"segment_id": item.Segment.ID})
	writeJSON(w, http.StatusOK, item)
}

var errURLRequired = errors.New("youtube_url is required")

// QueueRemove deletes a queued segment by ID.
func (a *API) QueueRemove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !a.Queue.Remove(id) {
		writeError(w, http.StatusNotFound, rjerrors.ErrQueueMiss)
		return
	}
	a.State.RecordEvent(events.EventSegmentRemoved, events.Payload{"segment_id": id})
	writeJSON(w, http.StatusOK, okEnvelope{OK: true})
}

type queuePatchRequest struct {
	Priority *int  `json:"priority"`
	Pinned   *bool `json:"pinned"`
}

// QueuePatch updates priority and/or pinned state for a queued segment,
// clamping priority to [0, 200] and re-sorting.
func (a *API) QueuePatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req queuePatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Priority != nil {
		clamped := models.ClampPriority(*req.Priority)
		req.Priority = &clamped
	}
	if !a.Queue.Update(id, req.Pinned, req.Priority) {
		writeError(w, http.StatusNotFound, rjerrors.ErrQueueMiss)
		return
	}
	a.State.RecordEvent(events.EventQueueUpdated, events.Payload{"segment_id": id})
	writeJSON(w, http.StatusOK, okEnvelope{OK: true})
}

// TransportSkip terminates the in-flight transcode/push; "skipped" reports
// whether a transcode was actually in flight to abort.
func (a *API) TransportSkip(w http.ResponseWriter, r *http.Request) {
	skipped := a.Engine.SkipCurrent()
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "skipped": skipped})
}

// ControlStart starts the playout engine. The engine derives its run
// context from the one passed in, so this must be a long-lived context —
// the request context would cancel the loop the moment the handler returns.
func (a *API) ControlStart(w http.ResponseWriter, r *http.Request) {
	if err := a.Engine.Start(a.runCtx); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, okEnvelope{OK: true})
}

// ControlStop stops the playout engine.
func (a *API) ControlStop(w http.ResponseWriter, r *http.Request) {
	a.Engine.Stop()
	writeJSON(w, http.StatusOK, okEnvelope{OK: true})
}

func parseLastRevision(r *http.Request) int64 {
	raw := r.URL.Query().Get("lastRevision")
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
