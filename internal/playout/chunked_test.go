package playout

import (
	"testing"

	"github.com/friendsincode/autorj/internal/models"
)

func TestBuildWindowClipMidClipHasNoDelayAndAdvancedOffset(t *testing.T) {
	clip := models.ScheduledClip{
		FilePath:     "a.wav",
		StartAtSec:   0,
		SourceOffset: 0,
		DurationSec:  10,
		BaseGain:     1.0,
	}
	wc := buildWindowClip(clip, 4, chunkWindowSec)

	if wc.StartOffsetSec != 0 {
		t.Fatalf("expected no delay mid-clip, got %v", wc.StartOffsetSec)
	}
	if wc.SourceOffsetSec != 4 {
		t.Fatalf("expected source offset advanced to 4, got %v", wc.SourceOffsetSec)
	}
	if wc.DurationSec == nil || *wc.DurationSec != 2 {
		t.Fatalf("expected 2s window duration, got %v", wc.DurationSec)
	}
}

func TestBuildWindowClipStartingMidWindowHasDelay(t *testing.T) {
	clip := models.ScheduledClip{
		FilePath:    "a.wav",
		StartAtSec:  1,
		DurationSec: 10,
		BaseGain:    1.0,
	}
	wc := buildWindowClip(clip, 0, chunkWindowSec)

	if wc.StartOffsetSec != 1 {
		t.Fatalf("expected 1s delay into the window, got %v", wc.StartOffsetSec)
	}
	if wc.SourceOffsetSec != 0 {
		t.Fatalf("expected source offset 0, got %v", wc.SourceOffsetSec)
	}
	if wc.DurationSec == nil || *wc.DurationSec != 1 {
		t.Fatalf("expected 1s audible duration within the window, got %v", wc.DurationSec)
	}
}

func TestBuildWindowClipWithRampProducesLocalEndpoints(t *testing.T) {
	clip := models.ScheduledClip{
		FilePath:    "a.wav",
		StartAtSec:  0,
		DurationSec: 10,
		Ramp:        &models.GainRamp{From: 0.0, To: 1.0, RampSec: 10},
	}
	wc := buildWindowClip(clip, 4, chunkWindowSec)
	if wc.GainRamp == nil {
		t.Fatal("expected a localized gain ramp")
	}
	if wc.GainRamp.From != 0.4 || wc.GainRamp.To != 0.6 {
		t.Fatalf("expected local ramp endpoints 0.4->0.6, got %v->%v", wc.GainRamp.From, wc.GainRamp.To)
	}
}

func TestGainAtOffsetClampsToEndpoints(t *testing.T) {
	clip := models.ScheduledClip{Ramp: &models.GainRamp{From: 0.2, To: 0.8, RampSec: 5}}
	if g := gainAtOffset(clip, -1); g != 0.2 {
		t.Fatalf("expected clamp to 'from' for negative offset, got %v", g)
	}
	if g := gainAtOffset(clip, 100); g != 0.8 {
		t.Fatalf("expected clamp to 'to' for large offset, got %v", g)
	}
}
