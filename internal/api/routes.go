/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"github.com/go-chi/chi/v5"
)

// Routes mounts the dashboard-facing HTTP surface onto router.
func (a *API) Routes(router chi.Router) {
	router.Get("/healthz", a.Healthz)
	router.Get("/status", a.Status)

	router.Get("/dashboard/snapshot", a.DashboardSnapshot)
	router.Get("/dashboard/queue", a.DashboardQueue)
	router.Get("/dashboard/media/{segmentId}", a.DashboardMediaBySegment)
	router.Get("/dashboard/media-by-path", a.DashboardMediaByPath)
	router.Get("/dashboard/events", a.DashboardEvents)

	router.Post("/dashboard/queue/commentary", a.QueueCommentary)
	router.Post("/dashboard/queue/track", a.QueueTrack)
	router.Delete("/dashboard/queue/{id}", a.QueueRemove)
	router.Patch("/dashboard/queue/{id}", a.QueuePatch)

	router.Post("/dashboard/transport/skip", a.TransportSkip)

	router.Get("/timeline/snapshot", a.TimelineSnapshot)
	router.Post("/timeline/rebuild", a.TimelineRebuild)

	router.Get("/ws", a.Websocket)

	router.Post("/control/start", a.ControlStart)
	router.Post("/control/stop", a.ControlStop)
}
