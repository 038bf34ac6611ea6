/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package audiocache

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/friendsincode/autorj/internal/models"
	"github.com/friendsincode/autorj/internal/procrunner"
	"github.com/friendsincode/autorj/internal/rjerrors"
)

const (
	clipSeconds   = 60
	maxDurationOK = 60.25
)

// Cache resolves track IDs to normalized 48kHz stereo 16-bit WAVs, at most
// 60 seconds, with cache-hit reuse and at-most-one concurrent fetch per key.
type Cache struct {
	fs         *FilesystemStorage
	mirror     *S3Storage
	downloader string
	ffmpegBin  string
	ffprobeBin string

	sf     singleflight.Group
	logger zerolog.Logger
}

// New constructs a Cache rooted at workDir/yt-cache.
func New(workDir, downloaderBin, ffmpegBin, ffprobeBin string, mirror *S3Storage, logger zerolog.Logger) *Cache {
	log := logger.With().Str("component", "audiocache").Logger()
	return &Cache{
		fs:         NewFilesystemStorage(filepath.Join(workDir, "yt-cache"), log),
		mirror:     mirror,
		downloader: downloaderBin,
		ffmpegBin:  ffmpegBin,
		ffprobeBin: ffprobeBin,
		logger:     log,
	}
}

func cacheKey(trackID string) string {
	return trackID + "-60s.wav"
}

// FetchTrackWav resolves track to a normalized WAV path, fetching and
// normalizing it if no valid cache entry exists.
func (c *Cache) FetchTrackWav(ctx context.Context, track models.Track) (string, error) {
	key := cacheKey(track.ID)
	path := c.fs.Path(key)

	if _, err := os.Stat(path); err == nil {
		dur, derr := c.ProbeDuration(ctx, path)
		if derr == nil && dur > 0 && dur <= maxDurationOK {
			return path, nil
		}
		c.logger.Debug().Str("track_id", track.ID).Float64("duration", dur).Msg("audio cache: stale entry, regenerating")
	}

	v, err, _ := c.sf.Do(track.ID, func() (any, error) {
		return c.fetchAndNormalize(ctx, track, path, key)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Cache) fetchAndNormalize(ctx context.Context, track models.Track, destPath, key string) (string, error) {
	bin, baseArgs, err := c.resolveDownloader()
	if err != nil {
		return "", err
	}

	workDir := filepath.Dir(destPath)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return "", fmt.Errorf("create cache directory: %w", err)
	}

	rawPath := destPath + ".raw.download"
	defer os.Remove(rawPath)

	args := append(append([]string{}, baseArgs...),
		"-x", "--audio-format", "wav", "-o", rawPath, track.ContentURL)
	if _, stderr, err := procrunner.Run(ctx, bin, args, ""); err != nil {
		return "", fmt.Errorf("download %s: %w (%s)", track.ID, err, stderr)
	}

	normalizedTmp := destPath + ".normalized.tmp"
	defer os.Remove(normalizedTmp)

	if _, stderr, err := procrunner.Run(ctx, c.ffmpegBin, []string{
		"-y", "-i", rawPath,
		"-t", strconv.Itoa(clipSeconds),
		"-ar", "48000", "-ac", "2", "-sample_fmt", "s16",
		normalizedTmp,
	}, ""); err != nil {
		return "", fmt.Errorf("normalize %s: %w (%s)", track.ID, err, stderr)
	}

	if err := os.Rename(normalizedTmp, destPath); err != nil {
		return "", fmt.Errorf("replace cache entry: %w", err)
	}

	if c.mirror != nil {
		c.mirror.MirrorAsync(key, func() (io.ReadCloser, error) {
			return os.Open(destPath)
		})
	}

	return destPath, nil
}

// resolveDownloader finds the primary downloader binary, falling back to a
// secondary invocation form; fails with DependencyMissing if neither resolves.
// The returned baseArgs must be prepended to any invocation of bin: the
// python3 fallback needs "-m yt_dlp" ahead of the usual download flags, since
// the interpreter itself takes no yt-dlp flags directly.
func (c *Cache) resolveDownloader() (bin string, baseArgs []string, err error) {
	if path, lookErr := exec.LookPath(c.downloader); lookErr == nil {
		return path, nil, nil
	}
	if path, lookErr := exec.LookPath("yt-dlp"); lookErr == nil {
		return path, nil, nil
	}
	if path, lookErr := exec.LookPath("python3"); lookErr == nil {
		return path, []string{"-m", "yt_dlp"}, nil
	}
	return "", nil, &rjerrors.DependencyMissing{Dependency: c.downloader}
}

// ProbeDuration reads a file's duration in seconds via the external probe.
// It never fails into the cache's happy path: any error yields -1.
func (c *Cache) ProbeDuration(ctx context.Context, path string) (float64, error) {
	stdout, _, err := procrunner.Run(ctx, c.ffprobeBin, []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}, "")
	if err != nil {
		return -1, nil
	}

	dur, parseErr := strconv.ParseFloat(strings.TrimSpace(stdout), 64)
	if parseErr != nil {
		return -1, nil
	}
	return dur, nil
}
