/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package tts adapts the external text-to-speech HTTP service: it posts
// text and materializes whichever of the four accepted response shapes
// (raw audio bytes, a fetchable URL, a local path, or base64) the service
// returns into a WAV file.
package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/autorj/internal/rjerrors"
)

// Adapter posts text to a TTS endpoint and writes the synthesized audio to disk.
type Adapter struct {
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

// New constructs an Adapter targeting baseURL.
func New(baseURL string, logger zerolog.Logger) *Adapter {
	return &Adapter{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger.With().Str("component", "tts").Logger(),
	}
}

type generateRequest struct {
	Text string `json:"text"`
}

// Synthesize posts text to the TTS endpoint and writes the resulting audio
// to outputPath.
func (a *Adapter) Synthesize(ctx context.Context, text, outputPath string) error {
	body, err := json.Marshal(generateRequest{Text: text})
	if err != nil {
		return fmt.Errorf("marshal tts request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/generate", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build tts request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return &rjerrors.TtsError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &rjerrors.TtsError{StatusCode: resp.StatusCode}
	}

	contentType := resp.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "audio/") {
		p, err := newBytesPayload(resp.Body)
		if err != nil {
			return &rjerrors.TtsError{Err: err}
		}
		return p.materialize(ctx, a.client, outputPath)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &rjerrors.TtsError{Err: err}
	}

	p, keysSeen, err := parseJSONPayload(raw)
	if err != nil {
		return &rjerrors.TtsUnsupportedPayload{KeysSeen: keysSeen}
	}

	return p.materialize(ctx, a.client, outputPath)
}

// payload is a tagged union over the four accepted TTS response shapes. Each
// variant is a total function to file bytes; none mutate a shared record.
type payload interface {
	materialize(ctx context.Context, client *http.Client, outputPath string) error
}

type bytesPayload struct{ data []byte }

func newBytesPayload(r io.Reader) (*bytesPayload, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return &bytesPayload{data: data}, nil
}

func (p *bytesPayload) materialize(_ context.Context, _ *http.Client, outputPath string) error {
	return os.WriteFile(outputPath, p.data, 0o644)
}

type urlPayload struct{ url string }

func (p *urlPayload) materialize(ctx context.Context, client *http.Client, outputPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return os.WriteFile(outputPath, data, 0o644)
}

type localPathPayload struct{ path string }

func (p *localPathPayload) materialize(_ context.Context, _ *http.Client, outputPath string) error {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return err
	}
	return os.WriteFile(outputPath, data, 0o644)
}

type base64Payload struct{ encoded string }

func (p *base64Payload) materialize(_ context.Context, _ *http.Client, outputPath string) error {
	encoded := p.encoded
	if idx := strings.Index(encoded, ","); idx != -1 && strings.HasPrefix(encoded, "data:") {
		encoded = encoded[idx+1:]
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return err
	}
	return os.WriteFile(outputPath, data, 0o644)
}

var urlKeys = []string{"audio_url", "url", "file_url", "download_url"}
var pathKeys = []string{"audio_path", "file_path", "path", "output_path"}
var base64Keys = []string{"audio_base64", "wav_base64", "base64", "audio"}

func parseJSONPayload(raw []byte) (payload, []string, error) {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, nil, err
	}

	keysSeen := make([]string, 0, len(obj))
	for k := range obj {
		keysSeen = append(keysSeen, k)
	}

	for _, k := range urlKeys {
		if v, ok := obj[k].(string); ok && v != "" {
			return &urlPayload{url: v}, keysSeen, nil
		}
	}
	for _, k := range pathKeys {
		if v, ok := obj[k].(string); ok && v != "" {
			return &localPathPayload{path: v}, keysSeen, nil
		}
	}
	for _, k := range base64Keys {
		if v, ok := obj[k].(string); ok && v != "" {
			return &base64Payload{encoded: v}, keysSeen, nil
		}
	}

	return nil, keysSeen, fmt.Errorf("no accepted key present")
}
