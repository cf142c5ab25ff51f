package tuning

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadShippedTuningMatchesDefaults(t *testing.T) {
	got, err := Load(filepath.Join("..", "..", "..", "configs", "tuning.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != Defaults() {
		t.Fatalf("tuning.yaml drifted from Defaults():\n got %+v\nwant %+v", got, Defaults())
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte("max_replans: 7\nbuffer_minutes: 2\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.MaxReplans != 7 || got.BufferMinutes != 2 {
		t.Fatalf("overrides not applied: %+v", got)
	}
	// Unset keys keep their defaults.
	if got.TickDurationMs != 600 || got.InventoryPressurePct != 0.90 {
		t.Fatalf("defaults lost: %+v", got)
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
