// Package synth generates plausible wind and temperature fields as encoded
// images, for demos, headless runs and tests when no real data is at hand.
package synth

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/pthm-cable/windlayer/colormap"
	"github.com/pthm-cable/windlayer/source"
)

// Params shapes a generated field.
type Params struct {
	Width, Height int
	Seed          int64
	// Phase moves the noise through time; consecutive timesteps should
	// differ by a small amount (e.g. 0.15) to look continuous.
	Phase    float64
	Scale    float64 // noise features across the image
	MaxSpeed float64 // mph
	JetSpeed float64 // mph of the westerly band
	JetLat   float64 // 0 = top row, 1 = bottom row
}

// DefaultParams returns a 360x180 field with a mid-latitude jet.
func DefaultParams() Params {
	return Params{
		Width:    360,
		Height:   180,
		Seed:     1,
		Scale:    3,
		MaxSpeed: 45,
		JetSpeed: 25,
		JetLat:   0.4,
	}
}

// Grid is a row-major field, row 0 northernmost.
type Grid struct {
	Width, Height int
	Data          []float64
}

func newGrid(w, h int) Grid { return Grid{Width: w, Height: h, Data: make([]float64, w*h)} }

func (g Grid) at(x, y int) float64 {
	x = min(max(x, 0), g.Width-1)
	y = min(max(y, 0), g.Height-1)
	return g.Data[y*g.Width+x]
}

// Range returns the smallest and largest value.
func (g Grid) Range() colormap.Range {
	r := colormap.Range{Min: math.Inf(1), Max: math.Inf(-1)}
	for _, v := range g.Data {
		r.Min = math.Min(r.Min, v)
		r.Max = math.Max(r.Max, v)
	}
	return r
}

// Wind returns eastward and northward components in mph. The eddies are the
// curl of a noise stream function, so they neither converge nor diverge.
func Wind(p Params) (u, v Grid) {
	n := NewPerlinNoise(p.Seed)
	psi := newGrid(p.Width, p.Height)
	for y := range p.Height {
		for x := range p.Width {
			nx := float64(x) / float64(p.Width) * p.Scale
			ny := float64(y) / float64(p.Height) * p.Scale
			psi.Data[y*p.Width+x] = n.Fractal(nx, ny, p.Phase, 3)
		}
	}

	u, v = newGrid(p.Width, p.Height), newGrid(p.Width, p.Height)
	var peak float64
	for y := range p.Height {
		for x := range p.Width {
			// y grows southward in the image
			du := -(psi.at(x, y+1) - psi.at(x, y-1)) / 2
			dv := -(psi.at(x+1, y) - psi.at(x-1, y)) / 2
			i := y*p.Width + x
			u.Data[i], v.Data[i] = du, dv
			peak = math.Max(peak, math.Hypot(du, dv))
		}
	}

	eddy := p.MaxSpeed - p.JetSpeed
	if peak == 0 || eddy < 0 {
		eddy = 0
		peak = 1
	}
	for y := range p.Height {
		lat := float64(y) / float64(max(p.Height-1, 1))
		jet := p.JetSpeed * math.Exp(-math.Pow((lat-p.JetLat)/0.12, 2))
		for x := range p.Width {
			i := y*p.Width + x
			u.Data[i] = u.Data[i]/peak*eddy + jet
			v.Data[i] = v.Data[i] / peak * eddy
		}
	}
	return u, v
}

// Temperature returns degrees Fahrenheit: warm in the south, cold in the
// north, with noise on top.
func Temperature(p Params) Grid {
	n := NewPerlinNoise(p.Seed + 1)
	t := newGrid(p.Width, p.Height)
	for y := range p.Height {
		lat := float64(y) / float64(max(p.Height-1, 1))
		for x := range p.Width {
			nx := float64(x) / float64(p.Width) * p.Scale * 2
			ny := float64(y) / float64(p.Height) * p.Scale * 2
			t.Data[y*p.Width+x] = 10 + 70*lat + 15*n.Fractal(nx, ny, p.Phase, 4)
		}
	}
	return t
}

// symmetric widens r to [-m, m] so zero lands mid-range.
func symmetric(r colormap.Range) colormap.Range {
	m := math.Max(math.Abs(r.Min), math.Abs(r.Max))
	if m == 0 {
		m = 1
	}
	return colormap.Range{Min: -m, Max: m}
}

// WindImage quantizes u and v into R and G with speed in B.
func WindImage(u, v Grid) (*image.RGBA, source.VectorRanges) {
	speed := newGrid(u.Width, u.Height)
	for i := range speed.Data {
		speed.Data[i] = math.Hypot(u.Data[i], v.Data[i])
	}
	r := source.VectorRanges{
		U:     symmetric(u.Range()),
		V:     symmetric(v.Range()),
		Speed: colormap.Range{Min: 0, Max: math.Max(speed.Range().Max, 1)},
	}

	img := image.NewRGBA(image.Rect(0, 0, u.Width, u.Height))
	for y := range u.Height {
		for x := range u.Width {
			i := y*u.Width + x
			img.SetRGBA(x, y, color.RGBA{
				R: source.Quantize(u.Data[i], r.U),
				G: source.Quantize(v.Data[i], r.V),
				B: source.Quantize(speed.Data[i], r.Speed),
				A: 255,
			})
		}
	}
	return img, r
}

// ScalarImage quantizes g into a grey image.
func ScalarImage(g Grid) (*image.RGBA, colormap.Range) {
	r := g.Range()
	if !r.Valid() {
		r.Max = r.Min + 1
	}
	img := image.NewRGBA(image.Rect(0, 0, g.Width, g.Height))
	for y := range g.Height {
		for x := range g.Width {
			b := source.Quantize(g.Data[y*g.Width+x], r)
			img.SetRGBA(x, y, color.RGBA{b, b, b, 255})
		}
	}
	return img, r
}

// Format picks the container for encoded fields.
type Format string

const (
	PNG  Format = "png"
	JPEG Format = "jpg"
)

func encode(img image.Image, desc string, f Format) ([]byte, error) {
	if f == JPEG {
		return source.EncodeJPEG(img, desc, 95)
	}
	return source.EncodePNG(img, desc)
}

// EncodeWind generates and encodes one wind timestep.
func EncodeWind(p Params, f Format) ([]byte, error) {
	img, r := WindImage(Wind(p))
	return encode(img, source.FormatVectorRanges(r), f)
}

// EncodeTemperature generates and encodes one temperature timestep.
func EncodeTemperature(p Params, f Format) ([]byte, error) {
	img, r := ScalarImage(Temperature(p))
	return encode(img, source.FormatScalarRange(r), f)
}

// Series is the result of WriteSeries: URL templates with {t} in place of
// the timestep.
type Series struct {
	Wind        string
	Temperature string
	Timesteps   []string
}

// WriteSeries writes wind and temperature images for each timestep into dir,
// advancing Phase by step between them.
func WriteSeries(dir string, p Params, timesteps []string, step float64, f Format) (Series, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return Series{}, fmt.Errorf("synth: creating %s: %w", dir, err)
	}
	s := Series{
		Wind:        filepath.Join(dir, "wind_{t}."+string(f)),
		Temperature: filepath.Join(dir, "temperature_{t}."+string(f)),
		Timesteps:   timesteps,
	}
	base := p.Phase
	for i, ts := range timesteps {
		p.Phase = base + float64(i)*step
		wind, err := EncodeWind(p, f)
		if err != nil {
			return Series{}, fmt.Errorf("synth: wind %s: %w", ts, err)
		}
		temp, err := EncodeTemperature(p, f)
		if err != nil {
			return Series{}, fmt.Errorf("synth: temperature %s: %w", ts, err)
		}
		if err := os.WriteFile(expand(s.Wind, ts), wind, 0644); err != nil {
			return Series{}, fmt.Errorf("synth: %w", err)
		}
		if err := os.WriteFile(expand(s.Temperature, ts), temp, 0644); err != nil {
			return Series{}, fmt.Errorf("synth: %w", err)
		}
	}
	return s, nil
}

func expand(template, ts string) string { return strings.ReplaceAll(template, "{t}", ts) }
