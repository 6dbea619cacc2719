// Package colormap builds 256-entry RGBA lookup tables from sorted colour stops.
package colormap

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"sort"
)

// Size is the number of entries in a LUT.
const Size = 256

var (
	// ErrNoStops is returned when a LUT is requested from an empty stop list.
	ErrNoStops = errors.New("colormap: no stops")
	// ErrInvalidRange is returned when max is not strictly greater than min.
	ErrInvalidRange = errors.New("colormap: invalid value range")
	// ErrUnknownPalette is returned by Lookup for a name with no built-in palette.
	ErrUnknownPalette = errors.New("colormap: unknown palette")
)

// Stop is a colour control point at a physical value.
// Alpha is only honoured when HasAlpha is set; stops without it are opaque.
type Stop struct {
	Value    float64
	Color    [4]uint8
	HasAlpha bool
}

// RGB returns an opaque stop.
func RGB(value float64, r, g, b uint8) Stop {
	return Stop{Value: value, Color: [4]uint8{r, g, b, 255}}
}

// RGBA returns a stop with an explicit alpha.
func RGBA(value float64, r, g, b, a uint8) Stop {
	return Stop{Value: value, Color: [4]uint8{r, g, b, a}, HasAlpha: true}
}

// Range is the physical value span mapped onto the LUT.
type Range struct {
	Min float64
	Max float64
}

// Span returns Max - Min.
func (r Range) Span() float64 { return r.Max - r.Min }

// Valid reports whether the range can be sampled.
func (r Range) Valid() bool {
	return !math.IsNaN(r.Min) && !math.IsNaN(r.Max) && r.Max > r.Min
}

// Normalize maps v into [0,1] over the range, clamped.
func (r Range) Normalize(v float64) float64 {
	if !r.Valid() {
		return 0
	}
	t := (v - r.Min) / r.Span()
	return math.Max(0, math.Min(1, t))
}

// LUT is a 256x1 RGBA8 table, row-major, ready for texture upload.
type LUT [Size * 4]byte

// Entry returns the RGBA colour at index i.
func (l *LUT) Entry(i int) [4]uint8 {
	i = max(0, min(Size-1, i))
	return [4]uint8{l[i*4], l[i*4+1], l[i*4+2], l[i*4+3]}
}

// At returns the entry nearest to normalized coordinate t, clamped to [0,1].
func (l *LUT) At(t float64) [4]uint8 {
	t = math.Max(0, math.Min(1, t))
	return l.Entry(int(math.Floor(t*Size)))
}

// Bytes returns the table as a slice sharing storage with l.
func (l *LUT) Bytes() []byte { return l[:] }

// Image returns the table as a 256x1 RGBA image.
func (l *LUT) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, Size, 1))
	copy(img.Pix, l[:])
	return img
}

// Colors returns the table as a slice of colours, one per entry.
func (l *LUT) Colors() []color.RGBA {
	out := make([]color.RGBA, Size)
	for i := range out {
		e := l.Entry(i)
		out[i] = color.RGBA{R: e[0], G: e[1], B: e[2], A: e[3]}
	}
	return out
}

// Build samples the stop gradient at 256 evenly spaced values across rng.
//
// Values at or below the lowest stop take its colour; values at or above the
// highest stop take that one. Between stops channels are interpolated linearly
// and rounded. Alpha is 255 unless the lower bracketing stop carries an explicit
// non-opaque alpha, in which case that alpha is used as-is.
func Build(stops []Stop, rng Range) (*LUT, error) {
	if len(stops) == 0 {
		return nil, ErrNoStops
	}
	if !rng.Valid() {
		return nil, fmt.Errorf("%w: [%g, %g]", ErrInvalidRange, rng.Min, rng.Max)
	}

	sorted := make([]Stop, len(stops))
	copy(sorted, stops)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Value < sorted[j].Value })

	lut := new(LUT)
	lo := 0
	last := len(sorted) - 1
	for i := range Size {
		value := rng.Min + rng.Span()*float64(i)/float64(Size-1)

		// value increases monotonically so the bracket only moves forward
		for lo < last && sorted[lo+1].Value < value {
			lo++
		}

		var c [4]uint8
		switch {
		case value <= sorted[0].Value:
			c = stopColor(sorted[0])
		case value >= sorted[last].Value:
			c = stopColor(sorted[last])
		default:
			c = lerp(sorted[lo], sorted[lo+1], value)
		}
		copy(lut[i*4:i*4+4], c[:])
	}
	return lut, nil
}

// MustBuild is like Build but panics on error. Intended for the built-in palettes.
func MustBuild(stops []Stop, rng Range) *LUT {
	lut, err := Build(stops, rng)
	if err != nil {
		panic(err)
	}
	return lut
}

func stopColor(s Stop) [4]uint8 {
	c := s.Color
	c[3] = alphaOf(s)
	return c
}

func alphaOf(s Stop) uint8 {
	if s.HasAlpha && s.Color[3] != 255 {
		return s.Color[3]
	}
	return 255
}

func lerp(low, high Stop, value float64) [4]uint8 {
	span := high.Value - low.Value
	var t float64
	if span > 0 {
		t = (value - low.Value) / span
	}
	var c [4]uint8
	for ch := range 3 {
		a, b := float64(low.Color[ch]), float64(high.Color[ch])
		c[ch] = uint8(math.Round(a + (b-a)*t))
	}
	c[3] = alphaOf(low)
	return c
}
