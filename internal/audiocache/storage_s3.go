/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package audiocache

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// S3Storage mirrors normalized cache entries into an S3-compatible bucket.
// It is optional: the filesystem cache is always authoritative, this is a
// write-through durability mirror enabled only when RJ_CACHE_S3_BUCKET is set.
type S3Storage struct {
	client *s3.Client
	bucket string
	logger zerolog.Logger
}

// S3Config configures the optional S3 mirror.
type S3Config struct {
	Bucket       string
	Region       string
	Endpoint     string
	AccessKeyID  string
	SecretKey    string
	UsePathStyle bool
}

// NewS3Storage builds an S3-compatible client from cfg.
func NewS3Storage(ctx context.Context, cfg S3Config, logger zerolog.Logger) (*S3Storage, error) {
	var optFns []func(*awsconfig.LoadOptions) error
	optFns = append(optFns, awsconfig.WithRegion(cfg.Region))
	if cfg.AccessKeyID != "" {
		optFns = append(optFns, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &S3Storage{client: client, bucket: cfg.Bucket, logger: logger.With().Str("component", "audiocache-s3").Logger()}, nil
}

// Store uploads r as an object named key, buffering it in memory since
// cache entries are bounded at ~60s of 48kHz stereo PCM16 (~11MB).
func (s *S3Storage) Store(ctx context.Context, key string, r io.Reader) (string, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read payload: %w", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(buf),
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}

	s.logger.Debug().Str("key", key).Int("bytes", len(buf)).Msg("audio cache: mirrored to s3")
	return key, nil
}

// MirrorAsync uploads the file at path under key without blocking the
// caller; failures are logged, never surfaced, since the mirror is a
// durability nicety and the filesystem cache remains authoritative.
func (s *S3Storage) MirrorAsync(key string, open func() (io.ReadCloser, error)) {
	go func() {
		r, err := open()
		if err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("audio cache: s3 mirror open failed")
			return
		}
		defer r.Close()
		if _, err := s.Store(context.Background(), key, r); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("audio cache: s3 mirror upload failed")
		}
	}()
}
