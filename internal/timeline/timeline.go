/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package timeline builds and invokes ffmpeg filter_complex graphs that mix
// a set of input clips — each trimmed to a source window, delayed to an
// output start, and shaped by a gain envelope — into a single WAV.
package timeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/friendsincode/autorj/internal/models"
	"github.com/friendsincode/autorj/internal/procrunner"
	"github.com/friendsincode/autorj/internal/rjerrors"
)

// Clip is one input to a render: a file, its placement on the output
// timeline, and its gain/fade envelope.
type Clip struct {
	FilePath        string
	StartOffsetSec  float64
	SourceOffsetSec float64
	DurationSec     *float64
	Gain            *float64
	GainRamp        *models.GainRamp
	FadeInSec       float64
	FadeOutSec      float64
}

// Request describes one render invocation. A request with no clips renders
// silence: SilenceSec long when set, 2 seconds otherwise.
type Request struct {
	Clips      []Clip
	OutputPath string
	Master     bool
	SilenceSec float64
}

// Renderer builds ffmpeg filter_complex graphs, element by element, and
// invokes ffmpeg to mix the result.
type Renderer struct {
	ffmpegBin string
	logger    zerolog.Logger
}

// NewRenderer constructs a Renderer that invokes ffmpegBin.
func NewRenderer(ffmpegBin string, logger zerolog.Logger) *Renderer {
	return &Renderer{ffmpegBin: ffmpegBin, logger: logger.With().Str("component", "timeline").Logger()}
}

// Render mixes req.Clips into req.OutputPath, applying the optional
// mastering chain when req.Master is set. Output is always 48kHz stereo.
func (r *Renderer) Render(ctx context.Context, req Request) error {
	if len(req.Clips) == 0 {
		d := req.SilenceSec
		if d <= 0 {
			d = 2.0
		}
		return r.renderSilence(ctx, req.OutputPath, d)
	}

	args := []string{"-y"}
	for _, c := range req.Clips {
		args = append(args, "-i", c.FilePath)
	}

	graph := buildFilterComplex(req.Clips, req.Master)
	args = append(args, "-filter_complex", graph, "-map", "[aout]",
		"-ar", "48000", "-ac", "2", req.OutputPath)

	if _, stderr, err := procrunner.Run(ctx, r.ffmpegBin, args, ""); err != nil {
		return &rjerrors.RenderError{Output: stderr, Err: err}
	}
	return nil
}

func (r *Renderer) renderSilence(ctx context.Context, outputPath string, durationSec float64) error {
	args := []string{
		"-y", "-f", "lavfi", "-i", "anullsrc=channel_layout=stereo:sample_rate=48000",
		"-t", fmt.Sprintf("%.3f", durationSec), "-ar", "48000", "-ac", "2", outputPath,
	}
	if _, stderr, err := procrunner.Run(ctx, r.ffmpegBin, args, ""); err != nil {
		return &rjerrors.RenderError{Output: stderr, Err: err}
	}
	return nil
}

// buildFilterComplex constructs the per-clip trim/fade/gain/delay chain
// followed by an unnormalized sum and, when master is set, a
// loudnorm+acompressor+alimiter mastering chain.
func buildFilterComplex(clips []Clip, master bool) string {
	var b strings.Builder
	labels := make([]string, 0, len(clips))

	for i, c := range clips {
		label := fmt.Sprintf("c%d", i)
		fmt.Fprintf(&b, "[%d:a]", i)

		var stages []string
		if c.DurationSec != nil {
			stages = append(stages, fmt.Sprintf("atrim=start=%.3f:end=%.3f", c.SourceOffsetSec, c.SourceOffsetSec+*c.DurationSec))
			stages = append(stages, "asetpts=PTS-STARTPTS")
		} else if c.SourceOffsetSec > 0 {
			stages = append(stages, fmt.Sprintf("atrim=start=%.3f", c.SourceOffsetSec))
			stages = append(stages, "asetpts=PTS-STARTPTS")
		}

		if c.FadeInSec > 0 {
			stages = append(stages, fmt.Sprintf("afade=t=in:st=0:d=%.3f", c.FadeInSec))
		}
		if c.FadeOutSec > 0 && c.DurationSec != nil {
			start := *c.DurationSec - c.FadeOutSec
			if start < 0 {
				start = 0
			}
			stages = append(stages, fmt.Sprintf("afade=t=out:st=%.3f:d=%.3f", start, c.FadeOutSec))
		}

		stages = append(stages, gainStage(c))

		delayMs := int(c.StartOffsetSec * 1000)
		if delayMs > 0 {
			stages = append(stages, fmt.Sprintf("adelay=%d|%d", delayMs, delayMs))
		}

		b.WriteString(strings.Join(stages, ","))
		fmt.Fprintf(&b, "[%s];", label)
		labels = append(labels, fmt.Sprintf("[%s]", label))
	}

	b.WriteString(strings.Join(labels, ""))
	fmt.Fprintf(&b, "amix=inputs=%d:duration=longest:normalize=0[mix]", len(clips))

	if !master {
		b.WriteString(";[mix]acopy[aout]")
		return b.String()
	}

	b.WriteString(";[mix]loudnorm=I=-16:TP=-1.5:LRA=11,acompressor=threshold=-18dB:ratio=3:attack=5:release=50,alimiter=limit=0.95[aout]")
	return b.String()
}

func gainStage(c Clip) string {
	if c.GainRamp != nil {
		ramp := c.GainRamp
		expr := fmt.Sprintf("if(lt(t,%.3f),%.4f+(%.4f-%.4f)*t/%.3f,%.4f)",
			ramp.RampSec, ramp.From, ramp.To, ramp.From, ramp.RampSec, ramp.To)
		return fmt.Sprintf("volume=eval=frame:volume='%s'", expr)
	}
	if c.Gain != nil {
		return fmt.Sprintf("volume=%.4f", *c.Gain)
	}
	return "volume=1.0"
}
