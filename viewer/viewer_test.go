package viewer

import (
	"context"
	"image/gif"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pthm-cable/windlayer/config"
	"github.com/pthm-cable/windlayer/gpu/softgpu"
	"github.com/pthm-cable/windlayer/layer"
	"github.com/pthm-cable/windlayer/telemetry"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Particles.Count = 64
	cfg.Sources.Timesteps = []string{"00", "06"}
	cfg.Derived.PlayInterval = 50 * time.Millisecond
	cfg.Derived.StatsInterval = 100 * time.Millisecond
	return cfg
}

func newHeadless(t *testing.T, cfg *config.Config, dir string) *Headless {
	t.Helper()
	const w, h = 64, 32
	dev := softgpu.New(w, h)
	clock := &layer.ManualClock{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	v, err := New(cfg, Options{Seed: 42, OutputDir: dir, Headless: true, Width: w, Height: h}, dev, clock, logger)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(v.Close)
	return NewHeadless(v, dev, clock, HeadlessOptions{
		Frames:        12,
		FrameInterval: 16 * time.Millisecond,
		SnapshotEvery: 5,
		GIF:           true,
	})
}

func TestHeadlessRun(t *testing.T) {
	dir := t.TempDir()
	h := newHeadless(t, testConfig(t), dir)

	if got := h.Host().IDs(); len(got) != 2 || got[0] != "temperature" || got[1] != "wind" {
		t.Fatalf("layer order = %v, want [temperature wind]", got)
	}
	if err := h.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if h.FrameCount() != 12 {
		t.Errorf("FrameCount() = %d, want 12", h.FrameCount())
	}
	if i, _ := h.Timestep(); i == 0 {
		t.Error("playback never advanced the timestep")
	}
	if !h.Wind().SourceLoaded() || !h.Temperature().SourceLoaded() {
		t.Error("sources not loaded after run")
	}

	for _, name := range []string{
		"config.yaml",
		"frames/frame_00001.png",
		"frames/frame_00006.png",
		"frames/frame_00011.png",
		"fields/wind_00.png",
		"snapshots/snapshot_wind_12.json",
	} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}

	f, err := os.Open(filepath.Join(dir, "run.gif"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	g, err := gif.DecodeAll(f)
	if err != nil {
		t.Fatalf("decoding gif: %v", err)
	}
	if len(g.Image) != 3 {
		t.Errorf("gif frames = %d, want 3", len(g.Image))
	}

	sources, err := os.ReadFile(filepath.Join(dir, "sources.csv"))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"frame,layer,kind", "wind,source_loaded", "temperature,source_loaded", "wind_06"} {
		if !strings.Contains(string(sources), want) {
			t.Errorf("sources.csv missing %q:\n%s", want, sources)
		}
	}

	particles, err := os.ReadFile(filepath.Join(dir, "particles.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if lines := strings.Count(strings.TrimSpace(string(particles)), "\n"); lines != 3 {
		t.Errorf("particles.csv has %d records, want 3", lines)
	}

	snap, err := telemetry.LoadSnapshot(filepath.Join(dir, "snapshots", "snapshot_wind_12.json"))
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Particles) != 64 || snap.Seed != 42 {
		t.Errorf("snapshot = %d particles seed %d", len(snap.Particles), snap.Seed)
	}
}

func TestSetTimestepWraps(t *testing.T) {
	h := newHeadless(t, testConfig(t), t.TempDir())
	ctx := context.Background()
	if err := h.AwaitSources(ctx); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		set       int
		wantIndex int
		wantLabel string
	}{
		{1, 1, "06"},
		{2, 0, "00"},
		{-1, 1, "06"},
	}
	for _, tt := range tests {
		if err := h.SetTimestep(tt.set); err != nil {
			t.Fatalf("SetTimestep(%d) error = %v", tt.set, err)
		}
		if err := h.AwaitSources(ctx); err != nil {
			t.Fatal(err)
		}
		i, label := h.Timestep()
		if i != tt.wantIndex || label != tt.wantLabel {
			t.Errorf("SetTimestep(%d) -> (%d, %q), want (%d, %q)", tt.set, i, label, tt.wantIndex, tt.wantLabel)
		}
		if !strings.HasSuffix(h.Wind().URL(), "wind_"+tt.wantLabel+".png") {
			t.Errorf("wind URL = %s", h.Wind().URL())
		}
	}
}

func TestPausedPlaybackHoldsTimestep(t *testing.T) {
	h := newHeadless(t, testConfig(t), "")
	h.SetPlaying(false)
	for range 10 {
		h.clock.Advance(100 * time.Millisecond)
		if h.Update(0.1) {
			t.Fatal("Update() changed timestep while paused")
		}
	}
	if i, _ := h.Timestep(); i != 0 {
		t.Errorf("Timestep() = %d, want 0", i)
	}
}
