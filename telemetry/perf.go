// Package telemetry provides frame timing, field and particle statistics,
// run snapshots and CSV output.
package telemetry

import (
	"log/slog"
	"slices"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Phase is one part of a frame.
type Phase int

const (
	PhaseApplySource Phase = iota
	PhaseSimulate
	PhaseRender
	PhasePresent
	numPhases
)

var phaseNames = [numPhases]string{"apply_source", "simulate", "render", "present"}

func (p Phase) String() string {
	if p < 0 || p >= numPhases {
		return "unknown"
	}
	return phaseNames[p]
}

type frameSample struct {
	total  time.Duration
	phases [numPhases]time.Duration
}

// PerfCollector keeps frame timings over a rolling window of frames.
type PerfCollector struct {
	window []frameSample
	next   int
	count  int

	cur        frameSample
	frameStart time.Time
	phaseStart time.Time
	running    Phase
	inPhase    bool

	// Wall time between presented frames (windowed mode)
	lastPresent time.Time
	presentGap  time.Duration
}

// NewPerfCollector creates a collector averaging over size frames.
func NewPerfCollector(size int) *PerfCollector {
	if size < 1 {
		size = 60
	}
	return &PerfCollector{window: make([]frameSample, size)}
}

// StartFrame begins timing a new frame.
func (p *PerfCollector) StartFrame() {
	p.frameStart = time.Now()
	p.cur = frameSample{}
	p.inPhase = false
}

// StartPhase closes the running phase, if any, and starts timing phase.
func (p *PerfCollector) StartPhase(phase Phase) {
	now := time.Now()
	if p.inPhase {
		p.cur.phases[p.running] += now.Sub(p.phaseStart)
	}
	p.phaseStart = now
	p.running = phase
	p.inPhase = true
}

// EndPhase stops the running phase without starting another.
func (p *PerfCollector) EndPhase() {
	if p.inPhase {
		p.cur.phases[p.running] += time.Since(p.phaseStart)
		p.inPhase = false
	}
}

// AddPhase credits d to phase in the current frame. Used for durations
// measured elsewhere, like a layer's own step timing.
func (p *PerfCollector) AddPhase(phase Phase, d time.Duration) {
	if d > 0 && phase >= 0 && phase < numPhases {
		p.cur.phases[phase] += d
	}
}

// EndFrame closes the running phase and stores the frame in the window.
func (p *PerfCollector) EndFrame() {
	p.EndPhase()
	p.cur.total = time.Since(p.frameStart)
	p.window[p.next] = p.cur
	p.next = (p.next + 1) % len(p.window)
	p.count = min(p.count+1, len(p.window))
}

// RecordFrame marks a presented frame; the gap between marks gives FPS.
func (p *PerfCollector) RecordFrame() {
	now := time.Now()
	if !p.lastPresent.IsZero() {
		p.presentGap = now.Sub(p.lastPresent)
	}
	p.lastPresent = now
}

// PerfStats aggregates the window.
type PerfStats struct {
	Frames int

	AvgFrame time.Duration
	MinFrame time.Duration
	MaxFrame time.Duration
	P95Frame time.Duration

	// Average time and share of the average frame per phase
	PhaseAvg [numPhases]time.Duration
	PhasePct [numPhases]float64

	// Frames the CPU side could sustain per second
	FramesPerSec float64

	// Presented frames per second (windowed mode)
	FPS float64
}

// Stats aggregates the frames in the window.
func (p *PerfCollector) Stats() PerfStats {
	s := PerfStats{Frames: p.count}
	if p.presentGap > 0 {
		s.FPS = float64(time.Second) / float64(p.presentGap)
	}
	if p.count == 0 {
		return s
	}

	totals := make([]float64, p.count)
	var sum time.Duration
	var phaseSum [numPhases]time.Duration
	for i, f := range p.window[:p.count] {
		totals[i] = float64(f.total)
		sum += f.total
		for ph, d := range f.phases {
			phaseSum[ph] += d
		}
	}
	slices.Sort(totals)

	n := time.Duration(p.count)
	s.AvgFrame = sum / n
	s.MinFrame = time.Duration(totals[0])
	s.MaxFrame = time.Duration(totals[len(totals)-1])
	s.P95Frame = time.Duration(stat.Quantile(0.95, stat.Empirical, totals, nil))
	for ph := range phaseSum {
		s.PhaseAvg[ph] = phaseSum[ph] / n
		if s.AvgFrame > 0 {
			s.PhasePct[ph] = float64(s.PhaseAvg[ph]) / float64(s.AvgFrame) * 100
		}
	}
	if s.AvgFrame > 0 {
		s.FramesPerSec = float64(time.Second) / float64(s.AvgFrame)
	}
	return s
}

// LogStats logs one "perf" line, omitting phases under 0.1%.
func (s PerfStats) LogStats(logger *slog.Logger) {
	attrs := []any{
		"avg_frame_us", s.AvgFrame.Microseconds(),
		"p95_frame_us", s.P95Frame.Microseconds(),
		"max_frame_us", s.MaxFrame.Microseconds(),
		"frames_per_sec", int(s.FramesPerSec),
	}
	if s.FPS > 0 {
		attrs = append(attrs, "fps", int(s.FPS))
	}
	for ph, pct := range s.PhasePct {
		if pct > 0.1 {
			attrs = append(attrs, Phase(ph).String()+"_pct", float64(int(pct*10))/10)
		}
	}
	logger.Info("perf", attrs...)
}

// LogValue implements slog.LogValuer for structured logging.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int("frames", s.Frames),
		slog.Int64("avg_frame_us", s.AvgFrame.Microseconds()),
		slog.Int64("p95_frame_us", s.P95Frame.Microseconds()),
		slog.Float64("frames_per_sec", s.FramesPerSec),
	}
	if s.FPS > 0 {
		attrs = append(attrs, slog.Float64("fps", s.FPS))
	}
	for ph, pct := range s.PhasePct {
		attrs = append(attrs, slog.Float64(Phase(ph).String()+"_pct", pct))
	}
	return slog.GroupValue(attrs...)
}

// PerfStatsCSV is one perf.csv row.
type PerfStatsCSV struct {
	WindowEnd      int32   `csv:"window_end"`
	AvgFrameUS     int64   `csv:"avg_frame_us"`
	MinFrameUS     int64   `csv:"min_frame_us"`
	MaxFrameUS     int64   `csv:"max_frame_us"`
	P95FrameUS     int64   `csv:"p95_frame_us"`
	FramesPerSec   float64 `csv:"frames_per_sec"`
	FPS            float64 `csv:"fps"`
	ApplySourcePct float64 `csv:"apply_source_pct"`
	SimulatePct    float64 `csv:"simulate_pct"`
	RenderPct      float64 `csv:"render_pct"`
	PresentPct     float64 `csv:"present_pct"`
}

// ToCSV flattens s for the frame that closed the window.
func (s PerfStats) ToCSV(windowEnd int32) PerfStatsCSV {
	return PerfStatsCSV{
		WindowEnd:      windowEnd,
		AvgFrameUS:     s.AvgFrame.Microseconds(),
		MinFrameUS:     s.MinFrame.Microseconds(),
		MaxFrameUS:     s.MaxFrame.Microseconds(),
		P95FrameUS:     s.P95Frame.Microseconds(),
		FramesPerSec:   s.FramesPerSec,
		FPS:            s.FPS,
		ApplySourcePct: s.PhasePct[PhaseApplySource],
		SimulatePct:    s.PhasePct[PhaseSimulate],
		RenderPct:      s.PhasePct[PhaseRender],
		PresentPct:     s.PhasePct[PhasePresent],
	}
}
