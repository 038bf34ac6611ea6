package config

import "testing"

func TestLoadRequiresCatalogPath(t *testing.T) {
	if _, err := Load(); err == nil {
		t.Fatal("expected error when RJ_CATALOG_PATH is unset")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("RJ_CATALOG_PATH", "/tmp/catalog.json")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.HTTPPort != 3000 {
		t.Fatalf("expected default port 3000, got %d", cfg.HTTPPort)
	}
	if cfg.CommentaryCadence != 2 {
		t.Fatalf("expected default cadence 2, got %d", cfg.CommentaryCadence)
	}
	if cfg.TargetBufferedSec != 600 {
		t.Fatalf("expected default target buffer 600, got %v", cfg.TargetBufferedSec)
	}
	if cfg.FeatureCommentaryCarryOver {
		t.Fatal("expected commentary carry-over to default off")
	}
}

func TestS3EnabledRequiresBucket(t *testing.T) {
	cfg := &Config{}
	if cfg.S3Enabled() {
		t.Fatal("expected S3 disabled with no bucket configured")
	}
	cfg.S3Bucket = "radio-cache"
	if !cfg.S3Enabled() {
		t.Fatal("expected S3 enabled once bucket is set")
	}
}
