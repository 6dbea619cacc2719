package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// SnapshotVersion is incremented when the format changes.
const SnapshotVersion = 1

// ErrSnapshotVersion is returned for snapshots written by another format version.
var ErrSnapshotVersion = errors.New("snapshot: unsupported version")

// Snapshot holds a particle layer's state at one frame for later inspection
// or comparison between runs.
type Snapshot struct {
	Version int    `json:"version"`
	Seed    int64  `json:"seed"`
	Layer   string `json:"layer"`
	URL     string `json:"url"`

	Frame      int32  `json:"frame"`
	Generation string `json:"generation"`

	Particles []ParticleState `json:"particles"`
}

// ParticleState is one particle in normalized field coordinates.
type ParticleState struct {
	X   float32 `json:"x"`
	Y   float32 `json:"y"`
	Age float32 `json:"age"`
}

// NewSnapshot zips interleaved positions and ages into particles.
func NewSnapshot(layer, url string, seed int64, frame int32, generation string, positions, ages []float32) (*Snapshot, error) {
	if len(positions) != 2*len(ages) {
		return nil, fmt.Errorf("snapshot: %d position components for %d ages", len(positions), len(ages))
	}
	s := &Snapshot{
		Version:    SnapshotVersion,
		Seed:       seed,
		Layer:      layer,
		URL:        url,
		Frame:      frame,
		Generation: generation,
		Particles:  make([]ParticleState, len(ages)),
	}
	for i, age := range ages {
		s.Particles[i] = ParticleState{X: positions[2*i], Y: positions[2*i+1], Age: age}
	}
	return s, nil
}

// SaveSnapshot writes snapshot as snapshot_<layer>_<frame>.json under dir
// and returns the file's path.
func SaveSnapshot(snapshot *Snapshot, dir string) (string, error) {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("snapshot: encoding %s: %w", snapshot.Layer, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("snapshot: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("snapshot_%s_%d.json", snapshot.Layer, snapshot.Frame))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("snapshot: %w", err)
	}
	return path, nil
}

// LoadSnapshot reads a snapshot written by SaveSnapshot.
func LoadSnapshot(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	defer f.Close()

	snap := new(Snapshot)
	if err := json.NewDecoder(f).Decode(snap); err != nil {
		return nil, fmt.Errorf("snapshot: decoding %s: %w", path, err)
	}
	if snap.Version != SnapshotVersion {
		return nil, fmt.Errorf("%w: version %d", ErrSnapshotVersion, snap.Version)
	}
	return snap, nil
}
