/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package server assembles the chi router and net/http.Server that expose
// the broadcaster's dashboard API: tracing and metrics middleware, a
// request-timeout wrapper that exempts the streaming routes, and the
// mounted API surface itself.
package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/friendsincode/autorj/internal/api"
	"github.com/friendsincode/autorj/internal/config"
	"github.com/friendsincode/autorj/internal/telemetry"
)

const requestTimeout = 60 * time.Second

// streamingPathPrefixes lists routes whose handlers hold the connection open
// and must not be subject to the blanket request timeout.
var streamingPathPrefixes = []string{"/dashboard/events", "/ws"}

// Server wires the chi router, HTTP server, and dashboard API together and
// owns their shutdown sequence.
type Server struct {
	cfg    *config.Config
	logger zerolog.Logger

	router     chi.Router
	httpServer *http.Server
	api        *api.API
	tracer     *telemetry.TracerProvider

	closers []func() error
}

// New builds the router (middleware, routes) around api and a *http.Server
// bound to cfg's bind address and port.
func New(cfg *config.Config, logger zerolog.Logger, a *api.API, tracer *telemetry.TracerProvider) *Server {
	s := &Server{
		cfg:    cfg,
		logger: logger.With().Str("component", "server").Logger(),
		api:    a,
		tracer: tracer,
	}

	s.router = s.buildRouter()
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTPBind, cfg.HTTPPort),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // streaming responses manage their own deadlines
		IdleTimeout:  120 * time.Second,
	}

	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(chiLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(telemetry.TracingMiddleware("autorj-api"))
	r.Use(telemetry.MetricsMiddleware)
	r.Use(s.skipTimeoutForStreaming)

	r.Get("/metrics", telemetry.Handler().ServeHTTP)

	s.api.Routes(r)

	return r
}

// skipTimeoutForStreaming applies a 60s request timeout to every route
// except the SSE and websocket feeds, which are expected to stay open for
// the lifetime of the client connection.
func (s *Server) skipTimeoutForStreaming(next http.Handler) http.Handler {
	timeoutHandler := http.TimeoutHandler(next, requestTimeout, `{"ok":false,"error":"request timed out"}`)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, prefix := range streamingPathPrefixes {
			if strings.HasPrefix(r.URL.Path, prefix) {
				next.ServeHTTP(w, r)
				return
			}
		}
		timeoutHandler.ServeHTTP(w, r)
	})
}

func chiLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}

// HTTPServer returns the underlying *http.Server so callers can invoke
// ListenAndServe and Shutdown directly.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// DeferClose registers fn to run, in reverse registration order, when Close
// is called.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

// Close runs every registered closer in reverse order and shuts down the
// event-fan-in goroutines owned by the API.
func (s *Server) Close() error {
	s.api.Close()

	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.tracer != nil {
		if err := s.tracer.Shutdown(context.Background()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
