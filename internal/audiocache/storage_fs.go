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
	"path/filepath"

	"github.com/rs/zerolog"
)

// FilesystemStorage persists cache entries under a root directory on local
// disk. It is the authoritative backend; the S3 mirror is optional.
type FilesystemStorage struct {
	rootDir string
	logger  zerolog.Logger
}

// NewFilesystemStorage creates a filesystem-backed cache store rooted at rootDir.
func NewFilesystemStorage(rootDir string, logger zerolog.Logger) *FilesystemStorage {
	return &FilesystemStorage{rootDir: rootDir, logger: logger}
}

// Store writes r to rootDir/key, creating parent directories as needed, and
// returns the full path. Writes go to a temp file first so a failed copy
// never leaves a half-written cache entry behind.
func (fs *FilesystemStorage) Store(ctx context.Context, key string, r io.Reader) (string, error) {
	fullPath := filepath.Join(fs.rootDir, key)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("create directories: %w", err)
	}

	tmp := fullPath + ".tmp"
	dest, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}

	if _, err := io.Copy(dest, r); err != nil {
		dest.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("write file: %w", err)
	}
	if err := dest.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("close file: %w", err)
	}
	if err := os.Rename(tmp, fullPath); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("finalize file: %w", err)
	}

	fs.logger.Debug().Str("path", fullPath).Str("key", key).Msg("audio cache: stored entry")
	return fullPath, nil
}

// Path returns the on-disk path for key without checking existence.
func (fs *FilesystemStorage) Path(key string) string {
	return filepath.Join(fs.rootDir, key)
}
