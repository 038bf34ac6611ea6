/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// APIRequestDuration tracks HTTP request latency by method, route, and status.
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "autorj_api_request_duration_seconds",
		Help:    "Duration of external API HTTP requests in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	// APIRequestsTotal counts HTTP requests by method, route, and status.
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autorj_api_requests_total",
		Help: "Total external API HTTP requests.",
	}, []string{"method", "route", "status"})

	// APIActiveConnections tracks in-flight HTTP requests.
	APIActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "autorj_api_active_connections",
		Help: "Number of HTTP requests currently being served.",
	})

	// SegmentsBuiltTotal counts segments produced by the builder, by kind and outcome.
	SegmentsBuiltTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autorj_segments_built_total",
		Help: "Total segments produced by the segment builder.",
	}, []string{"kind", "outcome"})

	// SegmentBuildSeconds tracks how long it takes to render a segment end to end.
	SegmentBuildSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "autorj_segment_build_seconds",
		Help:    "Time to build a single segment (fetch, render, probe).",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	}, []string{"kind"})

	// QueueDepth reports the number of pending items in the arbitration queue.
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "autorj_queue_depth",
		Help: "Number of segments currently queued for playout.",
	})

	// BufferedSeconds reports how far ahead of real time the playout engine has rendered.
	BufferedSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "autorj_buffered_seconds",
		Help: "Seconds of produced-but-not-yet-elapsed audio ahead of the live edge.",
	})

	// SchedulerTransitionsTotal counts crossfade transitions planned by the scheduler.
	SchedulerTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autorj_scheduler_transitions_total",
		Help: "Total crossfade transitions planned between adjacent music segments.",
	}, []string{"curve"})

	// PublisherUp reports whether the RTMP ingest process is currently running (1) or not (0).
	PublisherUp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "autorj_publisher_up",
		Help: "Whether the RTMP publisher ingest process is currently running.",
	})

	// PublisherRestartsTotal counts publisher ingest starts after the first one.
	PublisherRestartsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "autorj_publisher_restarts_total",
		Help: "Total RTMP publisher ingest process starts after the first.",
	})

	// BuildFailuresTotal counts failures recorded by the playout engine:
	// segment builds, recovery renders, window renders, and sink pushes.
	BuildFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "autorj_build_failures_total",
		Help: "Total playout failures (segment build, render, or sink push) recorded by the engine.",
	})

	// CommentaryFallbacksTotal counts commentary builds that fell back to a liner.
	CommentaryFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "autorj_commentary_fallbacks_total",
		Help: "Total commentary builds that fell back to a liner (TTS or voice-processing failure).",
	})
)

// Handler exposes the Prometheus exposition endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
