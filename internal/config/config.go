/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config covers process-level configuration read from environment variables.
type Config struct {
	Environment string
	HTTPBind    string
	HTTPPort    int

	CatalogPath string

	CommentaryAPIKey string
	CommentaryModel  string
	CommentaryURL    string

	TTSBaseURL string

	RTMPTargetURL string

	CommentaryCadence int

	WorkDir           string
	EmergencyLinerDir string
	StationName       string
	StationIDPath     string

	TargetBufferedSec float64
	MinBufferedSec    float64

	FeatureTimelineEngineV2    bool
	FeatureAudioEngineV2       bool
	FeatureCommentaryCarryOver bool
	CommentaryCarryOverSec     float64
	MasterWindowSec            float64

	TracingEnabled bool
	OTLPEndpoint   string

	S3Bucket          string
	S3Region          string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3UsePathStyle    bool

	DownloaderBin string
	FfmpegBin     string
	FfprobeBin    string
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnvAny([]string{"RJ_ENV"}, "development"),
		HTTPBind:    getEnvAny([]string{"RJ_HTTP_BIND"}, "0.0.0.0"),
		HTTPPort:    getEnvIntAny([]string{"RJ_PORT", "PORT"}, 3000),

		CatalogPath: getEnvAny([]string{"RJ_CATALOG_PATH"}, ""),

		CommentaryAPIKey: getEnvAny([]string{"RJ_LLM_API_KEY"}, ""),
		CommentaryModel:  getEnvAny([]string{"RJ_LLM_MODEL"}, "gpt-4o-mini"),
		CommentaryURL:    getEnvAny([]string{"RJ_LLM_BASE_URL"}, "https://api.openai.com/v1"),

		TTSBaseURL: getEnvAny([]string{"RJ_TTS_BASE_URL"}, "http://localhost:8000"),

		RTMPTargetURL: getEnvAny([]string{"RJ_RTMP_URL"}, "rtmp://localhost:1935/live/radio"),

		CommentaryCadence: getEnvIntAny([]string{"RJ_COMMENTARY_CADENCE"}, 2),

		WorkDir:           getEnvAny([]string{"RJ_WORK_DIR"}, "/tmp/rj"),
		EmergencyLinerDir: getEnvAny([]string{"RJ_EMERGENCY_LINER_DIR"}, ""),
		StationName:       getEnvAny([]string{"RJ_STATION_NAME"}, "the station"),
		StationIDPath:     getEnvAny([]string{"RJ_STATION_ID_WAV"}, ""),

		TargetBufferedSec: getEnvFloatAny([]string{"RJ_TARGET_BUFFERED_SEC"}, 600),
		MinBufferedSec:    getEnvFloatAny([]string{"RJ_MIN_BUFFERED_SEC"}, 180),

		FeatureTimelineEngineV2:    getEnvBoolAny([]string{"RJ_FEATURE_TIMELINE_ENGINE_V2"}, true),
		FeatureAudioEngineV2:       getEnvBoolAny([]string{"RJ_FEATURE_AUDIO_ENGINE_V2"}, true),
		FeatureCommentaryCarryOver: getEnvBoolAny([]string{"RJ_FEATURE_COMMENTARY_CARRYOVER"}, false),
		CommentaryCarryOverSec:     getEnvFloatAny([]string{"RJ_COMMENTARY_CARRYOVER_SEC"}, 1.5),
		MasterWindowSec:            getEnvFloatAny([]string{"RJ_MASTER_WINDOW_SEC"}, 2.0),

		TracingEnabled: getEnvBoolAny([]string{"RJ_TRACING_ENABLED"}, false),
		OTLPEndpoint:   getEnvAny([]string{"RJ_OTLP_ENDPOINT"}, "localhost:4317"),

		S3Bucket:          getEnvAny([]string{"RJ_CACHE_S3_BUCKET"}, ""),
		S3Region:          getEnvAny([]string{"RJ_CACHE_S3_REGION", "AWS_REGION"}, "us-east-1"),
		S3Endpoint:        getEnvAny([]string{"RJ_CACHE_S3_ENDPOINT"}, ""),
		S3AccessKeyID:     getEnvAny([]string{"RJ_CACHE_S3_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID"}, ""),
		S3SecretAccessKey: getEnvAny([]string{"RJ_CACHE_S3_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY"}, ""),
		S3UsePathStyle:    getEnvBoolAny([]string{"RJ_CACHE_S3_USE_PATH_STYLE"}, false),

		DownloaderBin: getEnvAny([]string{"RJ_DOWNLOADER_BIN"}, "yt-dlp"),
		FfmpegBin:     getEnvAny([]string{"RJ_FFMPEG_BIN"}, "ffmpeg"),
		FfprobeBin:    getEnvAny([]string{"RJ_FFPROBE_BIN"}, "ffprobe"),
	}

	if cfg.CatalogPath == "" {
		return nil, fmt.Errorf("RJ_CATALOG_PATH must be provided")
	}

	return cfg, nil
}

// S3Enabled reports whether the optional S3 cache mirror is configured.
func (c *Config) S3Enabled() bool {
	return c != nil && c.S3Bucket != ""
}

func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

func getEnvIntAny(keys []string, def int) int {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				return parsed
			}
		}
	}
	return def
}

func getEnvFloatAny(keys []string, def float64) float64 {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				return parsed
			}
		}
	}
	return def
}

func getEnvBoolAny(keys []string, def bool) bool {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "true" || v == "1" || v == "yes" {
				return true
			}
			if v == "false" || v == "0" || v == "no" {
				return false
			}
		}
	}
	return def
}
