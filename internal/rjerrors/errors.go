/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package rjerrors defines the error taxonomy shared across the broadcast
// pipeline.
package rjerrors

import (
	"errors"
	"fmt"
)

// Sentinel errors matched with errors.Is by callers.
var (
	ErrQueueMiss = errors.New("queue: no item with that id")
)

// DependencyMissing indicates no external downloader binary could be resolved.
type DependencyMissing struct {
	Dependency string
}

func (e *DependencyMissing) Error() string {
	return fmt.Sprintf("dependency missing: %s could not be resolved", e.Dependency)
}

// ProcessError indicates a child tool exited non-zero.
type ProcessError struct {
	Program  string
	Args     []string
	ExitCode int
	Stderr   string
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("process %s exited %d: %s", e.Program, e.ExitCode, truncate(e.Stderr, 500))
}

// RenderError indicates the Timeline Renderer's external tool invocation failed.
type RenderError struct {
	Output string
	Err    error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render failed: %v: %s", e.Err, truncate(e.Output, 500))
}

func (e *RenderError) Unwrap() error { return e.Err }

// TtsError indicates the TTS HTTP call itself failed (transport/non-2xx).
type TtsError struct {
	StatusCode int
	Err        error
}

func (e *TtsError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("tts request failed: %v", e.Err)
	}
	return fmt.Sprintf("tts request failed: status %d", e.StatusCode)
}

func (e *TtsError) Unwrap() error { return e.Err }

// TtsUnsupportedPayload indicates the TTS response body matched none of the
// accepted payload shapes.
type TtsUnsupportedPayload struct {
	KeysSeen []string
}

func (e *TtsUnsupportedPayload) Error() string {
	return fmt.Sprintf("tts: unsupported payload, keys seen: %v", e.KeysSeen)
}

// CommentaryError indicates the LLM call failed or returned empty content.
type CommentaryError struct {
	Err error
}

func (e *CommentaryError) Error() string {
	return fmt.Sprintf("commentary generation failed: %v", e.Err)
}

func (e *CommentaryError) Unwrap() error { return e.Err }

// CatalogInvalid indicates the catalog file failed to load or validate.
type CatalogInvalid struct {
	Reason string
}

func (e *CatalogInvalid) Error() string {
	return fmt.Sprintf("catalog invalid: %s", e.Reason)
}

// SchedulerRebuildError indicates a timeline rebuild failed.
type SchedulerRebuildError struct {
	Err error
}

func (e *SchedulerRebuildError) Error() string {
	return fmt.Sprintf("scheduler rebuild failed: %v", e.Err)
}

func (e *SchedulerRebuildError) Unwrap() error { return e.Err }

// PublisherExited indicates the RTMP ingest process ended.
type PublisherExited struct {
	ExitCode int
}

func (e *PublisherExited) Error() string {
	return fmt.Sprintf("rtmp ingest exited with code %d", e.ExitCode)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
