package commentary

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/friendsincode/autorj/internal/models"
)

func TestGenerateFallsBackWhenAPIKeyEmpty(t *testing.T) {
	g := New("", "http://unused", "gpt-4o-mini", "Test Radio", zerolog.Nop())

	recent := []models.Track{{Title: "Old Song", Artist: "Old Artist"}}
	next := &models.Track{Title: "New Song", Artist: "New Artist"}

	text := g.Generate(context.Background(), recent, next)
	want := "That was Old Song by Old Artist. Now we roll into New Song by New Artist. You are listening to Test Radio."
	if text != want {
		t.Fatalf("unexpected fallback text:\n got: %q\nwant: %q", text, want)
	}
}

func TestGenerateFallbackEmptySlots(t *testing.T) {
	g := New("", "http://unused", "gpt-4o-mini", "Test Radio", zerolog.Nop())

	text := g.Generate(context.Background(), nil, nil)
	if !strings.Contains(text, "that last track") || !strings.Contains(text, "our next song") {
		t.Fatalf("expected empty-slot substitutions, got: %q", text)
	}
}

func TestGenerateFallsBackOnEmptyLLMResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	g := New("fake-key", srv.URL, "gpt-4o-mini", "Test Radio", zerolog.Nop())
	text := g.Generate(context.Background(), nil, &models.Track{Title: "X", Artist: "Y"})
	if !strings.Contains(text, "You are listening to Test Radio") {
		t.Fatalf("expected fallback text, got: %q", text)
	}
}

func TestGenreVibeTagThresholds(t *testing.T) {
	if got := genreVibeTag(models.Track{Energy: 0.9}); got != "high-energy anthem" {
		t.Fatalf("expected high-energy anthem, got %q", got)
	}
	if got := genreVibeTag(models.Track{Energy: 0.3, Mood: "Chill vibes"}); got != "smooth laid-back" {
		t.Fatalf("expected smooth laid-back, got %q", got)
	}
	if got := genreVibeTag(models.Track{Energy: 0.3, Mood: "neutral"}); got != "rhythmic momentum" {
		t.Fatalf("expected default vibe, got %q", got)
	}
}

func TestHistoryIsBoundedToSix(t *testing.T) {
	g := New("", "http://unused", "gpt-4o-mini", "Test Radio", zerolog.Nop())
	for i := 0; i < 10; i++ {
		g.Generate(context.Background(), nil, nil)
	}
	if len(g.History()) != historySize {
		t.Fatalf("expected history bounded to %d, got %d", historySize, len(g.History()))
	}
}
