package telemetry

import (
	"testing"
	"time"
)

func TestPerfCollector_BasicTiming(t *testing.T) {
	pc := NewPerfCollector(10)

	for range 5 {
		pc.StartFrame()
		pc.StartPhase(PhaseSimulate)
		time.Sleep(100 * time.Microsecond)
		pc.StartPhase(PhaseRender)
		time.Sleep(200 * time.Microsecond)
		pc.EndFrame()
	}

	stats := pc.Stats()
	if stats.Frames != 5 {
		t.Errorf("Frames = %d, want 5", stats.Frames)
	}
	if stats.AvgFrame <= 0 {
		t.Error("expected positive average frame duration")
	}
	if stats.PhaseAvg[PhaseSimulate] <= 0 || stats.PhaseAvg[PhaseRender] <= 0 {
		t.Errorf("phase averages = %v", stats.PhaseAvg)
	}
	if stats.PhasePct[PhaseRender] <= stats.PhasePct[PhaseSimulate] {
		t.Errorf("render %.1f%% should exceed simulate %.1f%%", stats.PhasePct[PhaseRender], stats.PhasePct[PhaseSimulate])
	}
	if stats.MinFrame > stats.P95Frame || stats.P95Frame > stats.MaxFrame {
		t.Errorf("min %v, p95 %v, max %v out of order", stats.MinFrame, stats.P95Frame, stats.MaxFrame)
	}
}

func TestPerfCollector_RollingWindow(t *testing.T) {
	pc := NewPerfCollector(5)

	for range 10 {
		pc.StartFrame()
		pc.StartPhase(PhaseSimulate)
		pc.EndFrame()
	}

	stats := pc.Stats()
	if stats.Frames != 5 {
		t.Errorf("Frames = %d, want window size 5", stats.Frames)
	}
	if stats.AvgFrame <= 0 || stats.FramesPerSec <= 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestPerfCollector_AddPhase(t *testing.T) {
	pc := NewPerfCollector(4)

	pc.StartFrame()
	pc.AddPhase(PhaseApplySource, 3*time.Millisecond)
	pc.AddPhase(PhaseApplySource, time.Millisecond)
	pc.AddPhase(PhaseSimulate, 0)
	pc.AddPhase(Phase(99), time.Second)
	pc.EndFrame()

	stats := pc.Stats()
	if got := stats.PhaseAvg[PhaseApplySource]; got != 4*time.Millisecond {
		t.Errorf("apply_source avg = %v, want 4ms", got)
	}
	if got := stats.PhaseAvg[PhaseSimulate]; got != 0 {
		t.Errorf("simulate avg = %v, want 0", got)
	}
	if row := stats.ToCSV(4); row.WindowEnd != 4 || row.ApplySourcePct <= 0 {
		t.Errorf("csv row = %+v", row)
	}
}

func TestPerfCollector_EmptyStats(t *testing.T) {
	stats := NewPerfCollector(10).Stats()
	if stats.Frames != 0 || stats.AvgFrame != 0 || stats.FramesPerSec != 0 {
		t.Errorf("empty stats = %+v", stats)
	}
}

func TestPerfCollector_FrameTiming(t *testing.T) {
	pc := NewPerfCollector(10)

	pc.RecordFrame()
	time.Sleep(16 * time.Millisecond)
	pc.RecordFrame()

	stats := pc.Stats()
	if stats.FPS <= 0 || stats.FPS > 70 {
		t.Errorf("expected FPS in (0, 70] with 16ms frame time, got %v", stats.FPS)
	}
}

func TestPhaseString(t *testing.T) {
	tests := []struct {
		phase Phase
		want  string
	}{
		{PhaseApplySource, "apply_source"},
		{PhasePresent, "present"},
		{Phase(-1), "unknown"},
		{numPhases, "unknown"},
	}
	for _, tt := range tests {
		if got := tt.phase.String(); got != tt.want {
			t.Errorf("Phase(%d).String() = %q, want %q", tt.phase, got, tt.want)
		}
	}
}
