/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package commentary composes host-persona prompts from recent-track
// context, calls the chat-completion endpoint, and falls back to a
// deterministic announcement when the call cannot succeed.
package commentary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/autorj/internal/models"
	"github.com/friendsincode/autorj/internal/rjerrors"
)

const historySize = 6

// Generator produces broadcast-ready host commentary text.
type Generator struct {
	apiKey      string
	baseURL     string
	model       string
	stationName string

	client *http.Client
	logger zerolog.Logger

	mu      sync.Mutex
	history []string
}

// New constructs a Generator. apiKey empty disables the LLM call entirely,
// always using the deterministic fallback.
func New(apiKey, baseURL, model, stationName string, logger zerolog.Logger) *Generator {
	return &Generator{
		apiKey:      apiKey,
		baseURL:     baseURL,
		model:       model,
		stationName: stationName,
		client:      &http.Client{Timeout: 20 * time.Second},
		logger:      logger.With().Str("component", "commentary").Logger(),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Generate builds a prompt from recentTracks/upcoming and returns host
// commentary text, falling back to the deterministic announcement when the
// API key is missing, the call fails, or the response is empty.
func (g *Generator) Generate(ctx context.Context, recentTracks []models.Track, upcoming *models.Track) string {
	if g.apiKey == "" {
		return g.record(g.fallback(recentTracks, upcoming))
	}

	text, err := g.callLLM(ctx, recentTracks, upcoming)
	if err != nil || strings.TrimSpace(text) == "" {
		if err != nil {
			g.logger.Warn().Err(err).Msg("commentary: llm call failed, using fallback")
		}
		return g.record(g.fallback(recentTracks, upcoming))
	}
	return g.record(strings.TrimSpace(text))
}

func (g *Generator) callLLM(ctx context.Context, recentTracks []models.Track, upcoming *models.Track) (string, error) {
	system := fmt.Sprintf(
		"You are the host of %s, a rhythmic, broadcast-ready radio jockey. Keep it PG-13 and punchy.",
		g.stationName,
	)

	recentList := make([]string, 0, len(recentTracks))
	for _, t := range recentTracks {
		recentList = append(recentList, fmt.Sprintf("%s by %s", t.Title, t.Artist))
	}

	nextLine := "a surprise drop"
	vibe := "rhythmic momentum"
	if upcoming != nil {
		nextLine = fmt.Sprintf("%s by %s", upcoming.Title, upcoming.Artist)
		vibe = genreVibeTag(*upcoming)
	}

	user := fmt.Sprintf(
		"Station: %s\nRecently played: %s\nUpcoming: %s\nVibe: %s",
		g.stationName, strings.Join(recentList, ", "), nextLine, vibe,
	)

	reqBody, err := json.Marshal(chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: 1.5,
		MaxTokens:   2000,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", &rjerrors.CommentaryError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &rjerrors.CommentaryError{Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", &rjerrors.CommentaryError{Err: err}
	}
	if len(parsed.Choices) == 0 {
		return "", &rjerrors.CommentaryError{Err: fmt.Errorf("empty choices")}
	}

	return parsed.Choices[0].Message.Content, nil
}

// genreVibeTag derives a short vibe tag from the upcoming track's energy and
// mood. Energy is stored on a [0,1] scale; the 0.8 threshold corresponds to
// the "energy >= 8" rule on the source's 0-10 scale.
func genreVibeTag(t models.Track) string {
	if t.Energy >= 0.8 {
		return "high-energy anthem"
	}
	if strings.Contains(strings.ToLower(t.Mood), "chill") {
		return "smooth laid-back"
	}
	return "rhythmic momentum"
}

func (g *Generator) fallback(recentTracks []models.Track, upcoming *models.Track) string {
	lastTitle, lastArtist := "that last track", ""
	if len(recentTracks) > 0 {
		last := recentTracks[len(recentTracks)-1]
		lastTitle, lastArtist = last.Title, last.Artist
	}

	nextTitle, nextArtist := "our next song", ""
	if upcoming != nil {
		nextTitle, nextArtist = upcoming.Title, upcoming.Artist
	}

	lastPart := lastTitle
	if lastArtist != "" {
		lastPart = fmt.Sprintf("%s by %s", lastTitle, lastArtist)
	}
	nextPart := nextTitle
	if nextArtist != "" {
		nextPart = fmt.Sprintf("%s by %s", nextTitle, nextArtist)
	}

	return fmt.Sprintf(
		"That was %s. Now we roll into %s. You are listening to %s.",
		lastPart, nextPart, g.stationName,
	)
}

func (g *Generator) record(text string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.history = append(g.history, text)
	if len(g.history) > historySize {
		g.history = g.history[len(g.history)-historySize:]
	}
	return text
}

// History returns the bounded recent-output diagnostics history.
func (g *Generator) History() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.history))
	copy(out, g.history)
	return out
}
