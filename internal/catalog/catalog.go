/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package catalog loads and validates the JSON track catalog.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/friendsincode/autorj/internal/models"
	"github.com/friendsincode/autorj/internal/rjerrors"
)

// rawTrack mirrors the JSON wire shape; optional fields get their defaults
// applied in Load.
type rawTrack struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Artist      string   `json:"artist"`
	ContentURL  string   `json:"content_url"`
	DurationSec int      `json:"duration_sec"`
	Tags        []string `json:"tags"`
	Energy      float64  `json:"energy"`
	Mood        string   `json:"mood"`
	Language    string   `json:"language"`
}

// Load reads, parses, and validates the catalog file at path.
func Load(path string) ([]models.Track, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &rjerrors.CatalogInvalid{Reason: fmt.Sprintf("read %s: %v", path, err)}
	}

	var raw []rawTrack
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &rjerrors.CatalogInvalid{Reason: fmt.Sprintf("parse %s: %v", path, err)}
	}

	tracks := make([]models.Track, 0, len(raw))
	for i, rt := range raw {
		if rt.ID == "" {
			return nil, &rjerrors.CatalogInvalid{Reason: fmt.Sprintf("track at index %d is missing an id", i)}
		}
		if rt.DurationSec <= 0 {
			return nil, &rjerrors.CatalogInvalid{Reason: fmt.Sprintf("track %s: duration_sec must be positive", rt.ID)}
		}
		if rt.Energy < 0 || rt.Energy > 1 {
			return nil, &rjerrors.CatalogInvalid{Reason: fmt.Sprintf("track %s: energy must be in [0,1]", rt.ID)}
		}

		mood := rt.Mood
		if mood == "" {
			mood = "neutral"
		}
		language := rt.Language
		if language == "" {
			language = "en"
		}
		tags := rt.Tags
		if tags == nil {
			tags = []string{}
		}

		tracks = append(tracks, models.Track{
			ID:          rt.ID,
			Title:       rt.Title,
			Artist:      rt.Artist,
			ContentURL:  rt.ContentURL,
			DurationSec: rt.DurationSec,
			Tags:        tags,
			Energy:      rt.Energy,
			Mood:        mood,
			Language:    language,
		})
	}

	if len(tracks) == 0 {
		return nil, &rjerrors.CatalogInvalid{Reason: "catalog is empty"}
	}

	return tracks, nil
}
