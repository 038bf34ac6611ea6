package playout

import (
	"testing"

	"github.com/friendsincode/autorj/internal/models"
)

func TestCurrentGainBeforeRampStartsAtFrom(t *testing.T) {
	clip := models.ScheduledClip{StartAtSec: 10, Ramp: &models.GainRamp{From: 0.5, To: 1.0, RampSec: 4}}
	if g := currentGain(clip, 10); g != 0.5 {
		t.Fatalf("expected ramp 'from' at start, got %v", g)
	}
}

func TestCurrentGainAfterRampHoldsTo(t *testing.T) {
	clip := models.ScheduledClip{StartAtSec: 10, Ramp: &models.GainRamp{From: 0.5, To: 1.0, RampSec: 4}}
	if g := currentGain(clip, 20); g != 1.0 {
		t.Fatalf("expected ramp 'to' after ramp window, got %v", g)
	}
}

func TestCurrentGainMidRampInterpolatesLinearly(t *testing.T) {
	clip := models.ScheduledClip{StartAtSec: 0, Ramp: &models.GainRamp{From: 0.0, To: 1.0, RampSec: 4}}
	if g := currentGain(clip, 2); g != 0.5 {
		t.Fatalf("expected 0.5 at midpoint, got %v", g)
	}
}

func TestCurrentGainNoRampUsesBaseGain(t *testing.T) {
	clip := models.ScheduledClip{BaseGain: 0.8}
	if g := currentGain(clip, 0); g != 0.8 {
		t.Fatalf("expected base gain 0.8, got %v", g)
	}
}

func TestEnvelopeLevelZeroOutsideClipWindow(t *testing.T) {
	clip := models.ScheduledClip{StartAtSec: 10, DurationSec: 5, BaseGain: 1.0}
	if lvl := envelopeLevel(clip, 5); lvl != 0 {
		t.Fatalf("expected 0 before clip starts, got %v", lvl)
	}
	if lvl := envelopeLevel(clip, 20); lvl != 0 {
		t.Fatalf("expected 0 after clip ends, got %v", lvl)
	}
}

func TestComputeMetersMaxPerChannelAndMasterRMS(t *testing.T) {
	clips := []models.ScheduledClip{
		{Channel: models.ChannelMusic, StartAtSec: 0, DurationSec: 10, BaseGain: 1.0},
		{Channel: models.ChannelMusic, StartAtSec: 0, DurationSec: 10, BaseGain: 0.2},
		{Channel: models.ChannelVoice, StartAtSec: 0, DurationSec: 10, BaseGain: 1.0},
	}
	meters, master := computeMeters(clips, 1)

	var musicLevel, voiceLevel float64
	for _, m := range meters {
		if m.Channel == models.ChannelMusic {
			musicLevel = m.EnvelopeLevel
		}
		if m.Channel == models.ChannelVoice {
			voiceLevel = m.EnvelopeLevel
		}
	}
	if musicLevel != representativeAmplitude {
		t.Fatalf("expected max-over-clips music level %v, got %v", representativeAmplitude, musicLevel)
	}
	if voiceLevel != representativeAmplitude {
		t.Fatalf("expected voice level %v, got %v", representativeAmplitude, voiceLevel)
	}
	if master <= 0 || master > 1 {
		t.Fatalf("expected master meter in (0,1], got %v", master)
	}
}

func TestComputeMetersEmptyClipsYieldsZeroMeters(t *testing.T) {
	meters, master := computeMeters(nil, 0)
	if master != 0 {
		t.Fatalf("expected master 0, got %v", master)
	}
	for _, m := range meters {
		if m.EnvelopeLevel != 0 {
			t.Fatalf("expected all channels at 0, got %+v", m)
		}
	}
}
