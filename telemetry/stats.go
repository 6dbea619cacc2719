package telemetry

import (
	"log/slog"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/windlayer/source"
)

// FieldStats summarises wind speeds in a decoded vector field, in mph.
type FieldStats struct {
	Seq    uint64 `csv:"seq"`
	URL    string `csv:"url"`
	Width  int    `csv:"width"`
	Height int    `csv:"height"`

	SpeedMean float64 `csv:"speed_mean"`
	SpeedStd  float64 `csv:"speed_std"`
	SpeedP10  float64 `csv:"speed_p10"`
	SpeedP50  float64 `csv:"speed_p50"`
	SpeedP90  float64 `csv:"speed_p90"`
	SpeedMax  float64 `csv:"speed_max"`

	// Share of pixels slower than the respawn threshold
	CalmFraction float64 `csv:"calm_fraction"`
}

// Percentile calculates the p-th percentile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	// Linear interpolation
	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// Summary calculates mean, population std and percentiles.
func Summary(values []float64) (mean, std, p10, p50, p90 float64) {
	if len(values) == 0 {
		return 0, 0, 0, 0, 0
	}
	mean, variance := stat.PopMeanVariance(values, nil)
	std = math.Sqrt(variance)

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	return mean, std, Percentile(sorted, 0.10), Percentile(sorted, 0.50), Percentile(sorted, 0.90)
}

// ComputeFieldStats decodes every pixel of f to a speed and summarises it.
// calm is the speed below which particles respawn.
func ComputeFieldStats(f *source.VectorField, calm float64) FieldStats {
	b := f.Image.Bounds()
	speeds := make([]float64, 0, b.Dx()*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			px := f.Image.RGBAAt(x, y)
			u := source.Dequantize(px.R, f.U)
			v := source.Dequantize(px.G, f.V)
			speeds = append(speeds, math.Hypot(u, v))
		}
	}

	s := FieldStats{Width: b.Dx(), Height: b.Dy()}
	if len(speeds) == 0 {
		return s
	}
	s.SpeedMean, s.SpeedStd, s.SpeedP10, s.SpeedP50, s.SpeedP90 = Summary(speeds)
	s.SpeedMax = floats.Max(speeds)

	var calmCount int
	for _, v := range speeds {
		if v < calm {
			calmCount++
		}
	}
	s.CalmFraction = float64(calmCount) / float64(len(speeds))
	return s
}

// LogValue implements slog.LogValuer for structured logging.
func (s FieldStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("seq", s.Seq),
		slog.String("url", s.URL),
		slog.Int("width", s.Width),
		slog.Int("height", s.Height),
		slog.Float64("speed_mean", s.SpeedMean),
		slog.Float64("speed_std", s.SpeedStd),
		slog.Float64("speed_p50", s.SpeedP50),
		slog.Float64("speed_p90", s.SpeedP90),
		slog.Float64("speed_max", s.SpeedMax),
		slog.Float64("calm_fraction", s.CalmFraction),
	)
}

// ParticleStats summarises a particle snapshot.
type ParticleStats struct {
	Frame int32 `csv:"frame"`
	Count int   `csv:"count"`

	AgeMean float64 `csv:"age_mean"`
	AgeStd  float64 `csv:"age_std"`
	AgeP10  float64 `csv:"age_p10"`
	AgeP50  float64 `csv:"age_p50"`
	AgeP90  float64 `csv:"age_p90"`

	// Share of particles past the soft respawn threshold
	AgingFraction float64 `csv:"aging_fraction"`
	// Share of particles with age 0, i.e. respawned this step
	FreshFraction float64 `csv:"fresh_fraction"`

	// Centroid in normalized field coordinates
	MeanX float64 `csv:"mean_x"`
	MeanY float64 `csv:"mean_y"`
}

// ComputeParticleStats summarises positions (x,y pairs) and ages.
func ComputeParticleStats(frame int32, positions, ages []float32, ageThreshold float64) ParticleStats {
	s := ParticleStats{Frame: frame, Count: len(ages)}
	if len(ages) == 0 {
		return s
	}

	a := make([]float64, len(ages))
	var aging, fresh int
	for i, v := range ages {
		a[i] = float64(v)
		if a[i] > ageThreshold {
			aging++
		}
		if v == 0 {
			fresh++
		}
	}
	s.AgeMean, s.AgeStd, s.AgeP10, s.AgeP50, s.AgeP90 = Summary(a)
	s.AgingFraction = float64(aging) / float64(len(ages))
	s.FreshFraction = float64(fresh) / float64(len(ages))

	xs := make([]float64, 0, len(positions)/2)
	ys := make([]float64, 0, len(positions)/2)
	for i := 0; i+1 < len(positions); i += 2 {
		xs = append(xs, float64(positions[i]))
		ys = append(ys, float64(positions[i+1]))
	}
	if len(xs) > 0 {
		s.MeanX = stat.Mean(xs, nil)
		s.MeanY = stat.Mean(ys, nil)
	}
	return s
}

// LogValue implements slog.LogValuer for structured logging.
func (s ParticleStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("frame", int(s.Frame)),
		slog.Int("count", s.Count),
		slog.Float64("age_mean", s.AgeMean),
		slog.Float64("age_p50", s.AgeP50),
		slog.Float64("age_p90", s.AgeP90),
		slog.Float64("aging_fraction", s.AgingFraction),
		slog.Float64("fresh_fraction", s.FreshFraction),
	)
}
