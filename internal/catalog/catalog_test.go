package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func writeCatalog(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeCatalog(t, `[{"id":"t1","title":"Song","artist":"Artist","content_url":"https://example.com/a.mp3","duration_sec":180,"energy":0.5}]`)

	tracks, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(tracks) != 1 {
		t.Fatalf("expected 1 track, got %d", len(tracks))
	}
	if tracks[0].Mood != "neutral" {
		t.Fatalf("expected default mood neutral, got %q", tracks[0].Mood)
	}
	if tracks[0].Language != "en" {
		t.Fatalf("expected default language en, got %q", tracks[0].Language)
	}
	if tracks[0].Tags == nil {
		t.Fatal("expected tags to default to an empty slice, not nil")
	}
}

func TestLoadRejectsEmptyCatalog(t *testing.T) {
	path := writeCatalog(t, `[]`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for empty catalog")
	}
}

func TestLoadRejectsBadEnergy(t *testing.T) {
	path := writeCatalog(t, `[{"id":"t1","title":"x","artist":"y","content_url":"z","duration_sec":10,"energy":1.5}]`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for out-of-range energy")
	}
}

func TestLoadRejectsMissingID(t *testing.T) {
	path := writeCatalog(t, `[{"title":"x","artist":"y","content_url":"z","duration_sec":10,"energy":0.1}]`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing id")
	}
}
