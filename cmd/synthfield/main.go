// Synthetic field tool - writes a series of encoded wind and temperature
// images that the viewer can load through {t} URL templates.
//
// Usage: go run ./cmd/synthfield -out fields -timesteps 00,06,12,18
package main

import (
	"flag"
	"log/slog"
	"os"
	"strings"

	"github.com/pthm-cable/windlayer/synth"
)

func main() {
	d := synth.DefaultParams()
	outDir := flag.String("out", "fields", "Output directory")
	timesteps := flag.String("timesteps", "00,06,12,18", "Comma-separated timestep labels")
	step := flag.Float64("step", 0.15, "Noise phase advance between timesteps")
	format := flag.String("format", "png", "Image format: png or jpg")
	width := flag.Int("width", d.Width, "Field width in pixels")
	height := flag.Int("height", d.Height, "Field height in pixels")
	seed := flag.Int64("seed", d.Seed, "Noise seed")
	scale := flag.Float64("scale", d.Scale, "Noise features across the field")
	maxSpeed := flag.Float64("max-speed", d.MaxSpeed, "Peak wind speed in mph")
	jetSpeed := flag.Float64("jet-speed", d.JetSpeed, "Westerly jet speed in mph")
	jetLat := flag.Float64("jet-lat", d.JetLat, "Jet position, 0 = top row, 1 = bottom row")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	f := synth.Format(*format)
	if f != synth.PNG && f != synth.JPEG {
		logger.Error("unknown format", "format", *format)
		os.Exit(1)
	}

	p := synth.Params{
		Width:    *width,
		Height:   *height,
		Seed:     *seed,
		Scale:    *scale,
		MaxSpeed: *maxSpeed,
		JetSpeed: *jetSpeed,
		JetLat:   *jetLat,
	}
	s, err := synth.WriteSeries(*outDir, p, strings.Split(*timesteps, ","), *step, f)
	if err != nil {
		logger.Error("writing series", "error", err)
		os.Exit(1)
	}
	logger.Info("wrote series",
		"wind", s.Wind,
		"temperature", s.Temperature,
		"timesteps", len(s.Timesteps),
	)
}
