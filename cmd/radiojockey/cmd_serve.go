/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/friendsincode/autorj/internal/api"
	"github.com/friendsincode/autorj/internal/audiocache"
	"github.com/friendsincode/autorj/internal/catalog"
	"github.com/friendsincode/autorj/internal/commentary"
	"github.com/friendsincode/autorj/internal/events"
	"github.com/friendsincode/autorj/internal/playout"
	"github.com/friendsincode/autorj/internal/queue"
	"github.com/friendsincode/autorj/internal/rtmpsink"
	"github.com/friendsincode/autorj/internal/runtimestate"
	"github.com/friendsincode/autorj/internal/segment"
	"github.com/friendsincode/autorj/internal/server"
	"github.com/friendsincode/autorj/internal/telemetry"
	"github.com/friendsincode/autorj/internal/timeline"
	"github.com/friendsincode/autorj/internal/timelinesched"
	"github.com/friendsincode/autorj/internal/tts"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the broadcaster: build segments, push to RTMP, serve the dashboard API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	logger.Info().Msg("autorj starting")

	ctx := context.Background()

	if err := os.MkdirAll(cfg.WorkDir, 0o755); err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}

	tracer, err := telemetry.InitTracer(ctx, telemetry.TracerConfig{
		ServiceName:    "autorj",
		ServiceVersion: "dev",
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.TracingEnabled,
		SampleRate:     1.0,
	}, logger)
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}

	tracks, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	logger.Info().Int("tracks", len(tracks)).Msg("catalog loaded")

	var s3Mirror *audiocache.S3Storage
	if cfg.S3Enabled() {
		s3Mirror, err = audiocache.NewS3Storage(ctx, audiocache.S3Config{
			Bucket:       cfg.S3Bucket,
			Region:       cfg.S3Region,
			Endpoint:     cfg.S3Endpoint,
			AccessKeyID:  cfg.S3AccessKeyID,
			SecretKey:    cfg.S3SecretAccessKey,
			UsePathStyle: cfg.S3UsePathStyle,
		}, logger)
		if err != nil {
			return fmt.Errorf("init s3 mirror: %w", err)
		}
	}

	cache := audiocache.New(cfg.WorkDir, cfg.DownloaderBin, cfg.FfmpegBin, cfg.FfprobeBin, s3Mirror, logger)
	ttsAdapter := tts.New(cfg.TTSBaseURL, logger)
	commentaryGen := commentary.New(cfg.CommentaryAPIKey, cfg.CommentaryURL, cfg.CommentaryModel, cfg.StationName, logger)
	renderer := timeline.NewRenderer(cfg.FfmpegBin, logger)

	bus := events.NewBus()
	q := queue.New()
	state := runtimestate.New(bus)

	builder := segment.New(segment.Options{
		Cache:             cache,
		Renderer:          renderer,
		TTS:               ttsAdapter,
		Commentary:        commentaryGen,
		Tracks:            tracks,
		WorkDir:           cfg.WorkDir,
		EmergencyLinerDir: cfg.EmergencyLinerDir,
		FfmpegBin:         cfg.FfmpegBin,
		Cadence:           cfg.CommentaryCadence,
		Rand:              rand.New(rand.NewSource(time.Now().UnixNano())),
		Logger:            logger,
	})

	var sched *timelinesched.Scheduler
	mode := playout.ModePerSegment
	if cfg.FeatureTimelineEngineV2 {
		mode = playout.ModeTimeline
		sched = timelinesched.New(timelinesched.WallClock())
		if cfg.FeatureCommentaryCarryOver {
			sched.SetCarryOver(cfg.CommentaryCarryOverSec)
		}
		if cfg.StationIDPath != "" {
			if d, err := cache.ProbeDuration(ctx, cfg.StationIDPath); err == nil {
				sched.SetStationID(cfg.StationIDPath, d)
			} else {
				logger.Warn().Err(err).Msg("could not probe station id jingle, leaving it unset")
			}
		}
	}

	sink := rtmpsink.New(cfg.WorkDir, cfg.RTMPTargetURL, cfg.FfmpegBin, bus, logger)

	engine := playout.New(playout.Options{
		Mode:              mode,
		Queue:             q,
		Builder:           builder,
		Scheduler:         sched,
		Sink:              sink,
		Renderer:          renderer,
		State:             state,
		Bus:               bus,
		WorkDir:           cfg.WorkDir,
		TargetBufferSec:   cfg.TargetBufferedSec,
		MinBufferSec:      cfg.MinBufferedSec,
		WindowSec:         cfg.MasterWindowSec,
		InternalRendering: cfg.FeatureAudioEngineV2,
		Logger:            logger,
	})

	a := api.New(&api.API{
		Engine:            engine,
		Queue:             q,
		Scheduler:         sched,
		State:             state,
		Bus:               bus,
		Builder:           builder,
		Cache:             cache,
		TTS:               ttsAdapter,
		Renderer:          renderer,
		WorkDir:           cfg.WorkDir,
		EmergencyLinerDir: cfg.EmergencyLinerDir,
		Tracks:            tracks,
		StartedAt:         time.Now(),
		Logger:            logger,
	})

	srv := server.New(cfg, logger, a, tracer)
	srv.DeferClose(func() error {
		engine.Stop()
		return nil
	})

	if err := engine.Start(ctx); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}

	httpServer := srv.HTTPServer()
	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	if err := srv.Close(); err != nil {
		logger.Error().Err(err).Msg("shutdown cleanup failed")
	}

	logger.Info().Msg("autorj stopped")
	return nil
}
