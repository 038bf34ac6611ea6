/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playout

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/friendsincode/autorj/internal/models"
	"github.com/friendsincode/autorj/internal/timeline"
)

const chunkWindowSec = 2.0

// chunkedRenderLoop advances the output horizon in fixed windows, rendering
// and pushing each one through the sink. Pacing comes from the sink's FIFO
// backpressure, not from a ticker: pushFile blocks until the ingest process
// has consumed the window at real-time rate.
func (e *Engine) chunkedRenderLoop(ctx context.Context) {
	defer e.wg.Done()

	horizon := 0.0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := e.renderAndPushWindow(ctx, horizon); err != nil {
			e.recordFailure(err)
			time.Sleep(50 * time.Millisecond)
		}
		horizon += e.windowSec
	}
}

func (e *Engine) renderAndPushWindow(ctx context.Context, horizon float64) error {
	clips := e.scheduler.ClipsOverlapping(horizon, horizon+e.windowSec)

	req := timeline.Request{
		OutputPath: filepath.Join(e.workDir, fmt.Sprintf("engine-chunk-%s.wav", uuid.NewString())),
		SilenceSec: e.windowSec,
	}
	for _, c := range clips {
		req.Clips = append(req.Clips, buildWindowClip(c, horizon, e.windowSec))
	}

	if err := e.renderer.Render(ctx, req); err != nil {
		return err
	}
	defer os.Remove(req.OutputPath)

	return e.sink.PushFile(ctx, req.OutputPath)
}

// buildWindowClip computes the audible sub-window of a scheduled clip within
// [horizon, horizon+windowSec), its source offset, and the gain envelope
// endpoints for that slice.
func buildWindowClip(c models.ScheduledClip, horizon, windowSec float64) timeline.Clip {
	localStart := math.Max(0, horizon-c.StartAtSec)
	localEnd := math.Min(c.DurationSec, horizon+windowSec-c.StartAtSec)
	if localEnd < localStart {
		localEnd = localStart
	}
	duration := localEnd - localStart

	windowClip := timeline.Clip{
		FilePath:        c.FilePath,
		StartOffsetSec:  math.Max(0, c.StartAtSec-horizon),
		SourceOffsetSec: c.SourceOffset + localStart,
		DurationSec:     &duration,
	}

	if c.Ramp != nil {
		from := gainAtOffset(c, localStart)
		to := gainAtOffset(c, localEnd)
		windowClip.GainRamp = &models.GainRamp{From: from, To: to, RampSec: duration}
	} else {
		gain := c.BaseGain
		if gain == 0 {
			gain = 1.0
		}
		windowClip.Gain = &gain
	}

	return windowClip
}

func gainAtOffset(c models.ScheduledClip, offset float64) float64 {
	if c.Ramp == nil {
		return c.BaseGain
	}
	if offset <= 0 {
		return c.Ramp.From
	}
	if offset >= c.Ramp.RampSec {
		return c.Ramp.To
	}
	frac := offset / c.Ramp.RampSec
	return c.Ramp.From + (c.Ramp.To-c.Ramp.From)*frac
}
