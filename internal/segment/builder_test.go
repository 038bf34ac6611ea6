package segment

import (
	"math/rand"
	"testing"

	"github.com/friendsincode/autorj/internal/models"
)

func tracksOf(n int) []models.Track {
	out := make([]models.Track, n)
	for i := range out {
		out[i] = models.Track{ID: string(rune('a' + i))}
	}
	return out
}

func TestReshuffleProducesFullPermutation(t *testing.T) {
	b := &Builder{
		tracks: tracksOf(5),
		rng:    rand.New(rand.NewSource(7)),
	}
	b.reshuffle()

	if len(b.order) != 5 {
		t.Fatalf("expected order of length 5, got %d", len(b.order))
	}
	seen := make(map[int]bool)
	for _, idx := range b.order {
		if idx < 0 || idx >= 5 {
			t.Fatalf("index out of range: %d", idx)
		}
		seen[idx] = true
	}
	if len(seen) != 5 {
		t.Fatalf("expected a permutation covering all 5 indices, got %d distinct", len(seen))
	}
}

func TestReshuffleSwapsAwayRepeatAtHead(t *testing.T) {
	tracks := tracksOf(4)
	b := &Builder{
		tracks: tracks,
		rng:    rand.New(rand.NewSource(1)),
	}
	b.reshuffle()
	b.lastPlayedID = tracks[b.order[0]].ID

	for i := 0; i < 20; i++ {
		b.reshuffle()
		if tracks[b.order[0]].ID == b.lastPlayedID {
			t.Fatalf("iteration %d: previous last-played track landed at position 0", i)
		}
	}
}

func TestNextTrackReshufflesAtEndOfOrder(t *testing.T) {
	tracks := tracksOf(3)
	b := &Builder{
		tracks: tracks,
		rng:    rand.New(rand.NewSource(2)),
	}
	b.reshuffle()

	seen := make(map[string]bool)
	for i := 0; i < 3; i++ {
		tr := b.nextTrack()
		seen[tr.ID] = true
	}
	if len(seen) != 3 {
		t.Fatalf("expected all 3 tracks served once before reshuffle, got %d distinct", len(seen))
	}
	if b.pointer != 3 {
		t.Fatalf("expected pointer at 3 after exhausting order, got %d", b.pointer)
	}

	// Triggers a reshuffle.
	_ = b.nextTrack()
	if b.pointer != 1 {
		t.Fatalf("expected pointer reset to 1 after reshuffle-and-serve, got %d", b.pointer)
	}
}

func TestPeekNextTrackDoesNotAdvancePointer(t *testing.T) {
	b := &Builder{
		tracks: tracksOf(3),
		rng:    rand.New(rand.NewSource(3)),
	}
	b.reshuffle()

	before := b.pointer
	peeked := b.peekNextTrack()
	if peeked == nil {
		t.Fatal("expected a peeked track")
	}
	if b.pointer != before {
		t.Fatalf("peek should not advance pointer: before=%d after=%d", before, b.pointer)
	}

	served := b.nextTrack()
	if served.ID != peeked.ID {
		t.Fatalf("peeked track %q did not match next served track %q", peeked.ID, served.ID)
	}
}

func TestSongsSinceCommentaryReachesCadenceOnSecondIncrement(t *testing.T) {
	b := &Builder{
		tracks:  tracksOf(4),
		rng:     rand.New(rand.NewSource(4)),
		cadence: 2,
		phase:   models.PhaseSongs,
	}
	b.reshuffle()

	b.songsSinceCommentary++
	if b.songsSinceCommentary >= b.cadence {
		t.Fatal("should not flip phase before reaching cadence")
	}
	b.songsSinceCommentary++
	if b.songsSinceCommentary < b.cadence {
		t.Fatal("expected to reach cadence")
	}
}

func TestRecordPlayedBoundsHistory(t *testing.T) {
	b := &Builder{}
	for i := 0; i < recentHistoryN+4; i++ {
		b.recordPlayed(models.Track{ID: string(rune('a' + i))})
	}
	if len(b.lastPlayed) != recentHistoryN {
		t.Fatalf("expected history bounded to %d, got %d", recentHistoryN, len(b.lastPlayed))
	}
}

func TestPickRandomLinerEmptyDirReturnsEmptyString(t *testing.T) {
	b := &Builder{
		emergencyLinerDir: t.TempDir(),
		rng:               rand.New(rand.NewSource(5)),
	}
	if got := b.pickRandomLiner(); got != "" {
		t.Fatalf("expected empty string for empty liner dir, got %q", got)
	}
}

func TestPickRandomLinerUnconfiguredReturnsEmptyString(t *testing.T) {
	b := &Builder{rng: rand.New(rand.NewSource(6))}
	if got := b.pickRandomLiner(); got != "" {
		t.Fatalf("expected empty string when no liner dir configured, got %q", got)
	}
}
