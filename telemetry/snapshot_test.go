package telemetry

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestSnapshotSaveLoad(t *testing.T) {
	tmpDir := t.TempDir()

	snapshot, err := NewSnapshot("wind", "wind_00.png", 42, 120, "B",
		[]float32{0.1, 0.2, 0.9, 0.8}, []float32{3, 0})
	if err != nil {
		t.Fatal(err)
	}

	path, err := SaveSnapshot(snapshot, tmpDir)
	if err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}
	if filepath.Base(path) != "snapshot_wind_120.json" {
		t.Errorf("unexpected filename: %s", filepath.Base(path))
	}

	loaded, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}
	if loaded.Seed != 42 || loaded.URL != "wind_00.png" || loaded.Generation != "B" {
		t.Errorf("header mismatch: %+v", loaded)
	}
	want := []ParticleState{{0.1, 0.2, 3}, {0.9, 0.8, 0}}
	if len(loaded.Particles) != len(want) {
		t.Fatalf("particles = %d, want %d", len(loaded.Particles), len(want))
	}
	for i := range want {
		if loaded.Particles[i] != want[i] {
			t.Errorf("particle %d = %+v, want %+v", i, loaded.Particles[i], want[i])
		}
	}
}

func TestNewSnapshotMismatch(t *testing.T) {
	if _, err := NewSnapshot("wind", "", 0, 0, "A", []float32{0, 0, 0}, []float32{1, 2}); err == nil {
		t.Error("expected error for mismatched lengths")
	}
}

func TestLoadSnapshotErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadSnapshot(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{"version": 99}`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSnapshot(bad); !errors.Is(err, ErrSnapshotVersion) {
		t.Errorf("LoadSnapshot(version 99) error = %v, want ErrSnapshotVersion", err)
	}
}
