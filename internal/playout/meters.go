/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playout

import (
	"math"

	"github.com/friendsincode/autorj/internal/models"
)

// representativeAmplitude stands in for a clip's intrinsic waveform envelope;
// only the gain-ramp component is derived from schedule data.
const representativeAmplitude = 0.75

var meteredChannels = []models.Channel{
	models.ChannelMusic, models.ChannelVoice, models.ChannelJingle, models.ChannelAds,
}

// currentGain evaluates clip's gain envelope at stream time now.
func currentGain(clip models.ScheduledClip, now float64) float64 {
	if clip.Ramp == nil {
		if clip.BaseGain == 0 {
			return 1.0
		}
		return clip.BaseGain
	}
	t := now - clip.StartAtSec
	if t <= 0 {
		return clip.Ramp.From
	}
	if t >= clip.Ramp.RampSec {
		return clip.Ramp.To
	}
	frac := t / clip.Ramp.RampSec
	return clip.Ramp.From + (clip.Ramp.To-clip.Ramp.From)*frac
}

// envelopeLevel returns clip's audible level at now, in [0,1], or 0 when the
// clip is not currently active.
func envelopeLevel(clip models.ScheduledClip, now float64) float64 {
	if now < clip.StartAtSec || now > clip.EndAtSec() {
		return 0
	}
	level := representativeAmplitude * currentGain(clip, now)
	if level > 1 {
		return 1
	}
	if level < 0 {
		return 0
	}
	return level
}

// computeMeters returns the per-channel meter values (max over active clips
// on that channel) and the master meter (square root of the sum of the
// squared channel levels, capped at 1).
func computeMeters(clips []models.ScheduledClip, now float64) ([]models.ChannelMeter, float64) {
	levels := make(map[models.Channel]float64, len(meteredChannels))

	for _, c := range clips {
		lvl := envelopeLevel(c, now)
		if lvl > levels[c.Channel] {
			levels[c.Channel] = lvl
		}
	}

	meters := make([]models.ChannelMeter, 0, len(meteredChannels))
	sumSq := 0.0
	for _, ch := range meteredChannels {
		lvl := levels[ch]
		meters = append(meters, models.ChannelMeter{Channel: ch, EnvelopeLevel: lvl})
		sumSq += lvl * lvl
	}

	master := math.Min(1, math.Sqrt(sumSq))
	return meters, master
}
