// Field preview tool - interactive view of generated wind and temperature
// fields through the built-in palettes, with sliders for the generator.
//
// Usage: go run ./cmd/fieldpreview [-out fields]
package main

import (
	"flag"
	"fmt"
	"image/color"
	"log/slog"
	"math"
	"os"
	"slices"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/windlayer/colormap"
	"github.com/pthm-cable/windlayer/synth"
)

const (
	windowWidth  = 1100
	windowHeight = 640
	previewW     = 720
	previewH     = 360
	panelX       = previewW + 30
	panelWidth   = windowWidth - panelX - 20
)

type view int

const (
	viewSpeed view = iota
	viewTemperature
)

func main() {
	outDir := flag.String("out", "fields", "Directory for the Write series button")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	rl.InitWindow(windowWidth, windowHeight, "Field Preview")
	defer rl.CloseWindow()
	rl.SetTargetFPS(30)

	params := synth.DefaultParams()
	params.Width, params.Height = previewW/2, previewH/2

	names := colormap.Names()
	palette := max(slices.Index(names, "wind"), 0)
	mode := viewSpeed

	img := rl.GenImageColor(params.Width, params.Height, rl.Black)
	texture := rl.LoadTextureFromImage(img)
	rl.UnloadImage(img)
	defer rl.UnloadTexture(texture)

	var (
		values    []float64
		animating bool
		status    string
	)
	needsRegen := true

	for !rl.WindowShouldClose() {
		if animating {
			params.Phase += float64(rl.GetFrameTime()) * 0.2
			needsRegen = true
		}

		if needsRegen {
			values = generate(params, mode)
			if err := updateTexture(texture, values, names[palette]); err != nil {
				status = err.Error()
			}
			needsRegen = false
		}

		rl.BeginDrawing()
		rl.ClearBackground(rl.RayWhite)

		rl.DrawTexturePro(
			texture,
			rl.Rectangle{X: 0, Y: 0, Width: float32(params.Width), Height: float32(params.Height)},
			rl.Rectangle{X: 10, Y: 10, Width: previewW, Height: previewH},
			rl.Vector2{X: 0, Y: 0},
			0,
			rl.White,
		)
		rl.DrawRectangleLines(10, 10, previewW, previewH, rl.DarkGray)

		minVal, maxVal, avg := summarize(values)
		statsY := int32(previewH + 25)
		unit := "mph"
		if mode == viewTemperature {
			unit = "F"
		}
		rl.DrawText(fmt.Sprintf("Min: %.1f  Max: %.1f  Avg: %.1f %s", minVal, maxVal, avg, unit), 15, statsY, 16, rl.DarkGray)
		rl.DrawText(fmt.Sprintf("Phase: %.2f", params.Phase), 15, statsY+20, 16, rl.DarkGray)
		drawLegend(names[palette], 15, statsY+50)
		if status != "" {
			rl.DrawText(status, 15, windowHeight-30, 14, rl.Maroon)
		}

		y := float32(10)
		rl.DrawText("Generator", panelX, int32(y), 20, rl.DarkGray)
		y += 35

		slider := func(label string, value, lo, hi float64, format string) float64 {
			rl.DrawText(label, panelX, int32(y), 14, rl.Gray)
			y += 18
			v := gui.SliderBar(
				rl.Rectangle{X: panelX, Y: y, Width: panelWidth - 70, Height: 20},
				"", "", float32(value), float32(lo), float32(hi),
			)
			rl.DrawText(fmt.Sprintf(format, value), int32(panelX+panelWidth-60), int32(y+2), 16, rl.DarkGray)
			y += 35
			if float64(v) != value {
				needsRegen = true
			}
			return float64(v)
		}

		params.Scale = slider("Scale (noise features across the field)", params.Scale, 0.5, 12, "%.1f")
		params.MaxSpeed = slider("Max speed (mph)", params.MaxSpeed, 5, 120, "%.0f")
		params.JetSpeed = math.Min(slider("Jet speed (mph)", params.JetSpeed, 0, 80, "%.0f"), params.MaxSpeed)
		params.JetLat = slider("Jet latitude (0 = top)", params.JetLat, 0, 1, "%.2f")
		params.Seed = int64(slider("Seed", float64(params.Seed), 1, 9999, "%.0f"))

		if gui.Button(rl.Rectangle{X: panelX, Y: y, Width: 120, Height: 30}, toggleText(animating, "Stop", "Animate")) {
			animating = !animating
		}
		if gui.Button(rl.Rectangle{X: panelX + 130, Y: y, Width: 120, Height: 30}, toggleText(mode == viewSpeed, "Temperature", "Wind speed")) {
			mode = 1 - mode
			needsRegen = true
		}
		y += 40

		if gui.Button(rl.Rectangle{X: panelX, Y: y, Width: 250, Height: 30}, "Palette: "+names[palette]) {
			palette = (palette + 1) % len(names)
			needsRegen = true
		}
		y += 40

		if gui.Button(rl.Rectangle{X: panelX, Y: y, Width: 120, Height: 30}, "Write series") {
			s, err := synth.WriteSeries(*outDir, seriesParams(params), []string{"00", "06", "12", "18"}, 0.15, synth.PNG)
			if err != nil {
				status = err.Error()
				logger.Error("writing series", "error", err)
			} else {
				status = "wrote " + s.Wind
				logger.Info("wrote series", "wind", s.Wind, "temperature", s.Temperature)
			}
		}
		if gui.Button(rl.Rectangle{X: panelX + 130, Y: y, Width: 120, Height: 30}, "Reset") {
			params = synth.DefaultParams()
			params.Width, params.Height = previewW/2, previewH/2
			needsRegen = true
		}
		y += 50

		rl.DrawText("Press C to copy flags to clipboard", panelX, int32(y), 12, rl.LightGray)
		if rl.IsKeyPressed(rl.KeyC) {
			rl.SetClipboardText(fmt.Sprintf("-scale %.1f -max-speed %.0f -jet-speed %.0f -jet-lat %.2f -seed %d",
				params.Scale, params.MaxSpeed, params.JetSpeed, params.JetLat, params.Seed))
		}

		rl.EndDrawing()
	}
}

// seriesParams restores the full resolution for written fields.
func seriesParams(p synth.Params) synth.Params {
	d := synth.DefaultParams()
	p.Width, p.Height = d.Width, d.Height
	return p
}

func generate(p synth.Params, mode view) []float64 {
	if mode == viewTemperature {
		return synth.Temperature(p).Data
	}
	u, v := synth.Wind(p)
	speed := make([]float64, len(u.Data))
	for i := range speed {
		speed[i] = math.Hypot(u.Data[i], v.Data[i])
	}
	return speed
}

func summarize(values []float64) (lo, hi, avg float64) {
	if len(values) == 0 {
		return 0, 0, 0
	}
	lo, hi = math.Inf(1), math.Inf(-1)
	var sum float64
	for _, v := range values {
		lo, hi = math.Min(lo, v), math.Max(hi, v)
		sum += v
	}
	return lo, hi, sum / float64(len(values))
}

// lut builds the palette over its own value extent so field units line up
// with the stop values.
func lut(name string) (*colormap.LUT, error) {
	stops, err := colormap.Lookup(name)
	if err != nil {
		return nil, err
	}
	return colormap.Build(stops, colormap.Extent(stops))
}

// updateTexture colours values through the named palette.
func updateTexture(texture rl.Texture2D, values []float64, name string) error {
	l, err := lut(name)
	if err != nil {
		return err
	}
	stops, _ := colormap.Lookup(name)
	rng := colormap.Extent(stops)

	pixels := make([]color.RGBA, len(values))
	for i, v := range values {
		e := l.At(rng.Normalize(v))
		pixels[i] = color.RGBA{R: e[0], G: e[1], B: e[2], A: 255}
	}
	rl.UpdateTexture(texture, pixels)
	return nil
}

func drawLegend(name string, x, y int32) {
	l, err := lut(name)
	if err != nil {
		return
	}
	const width = 512
	for i := range int32(width) {
		e := l.At(float64(i) / width)
		rl.DrawLine(x+i, y, x+i, y+16, rl.NewColor(e[0], e[1], e[2], 255))
	}
	stops, _ := colormap.Lookup(name)
	rng := colormap.Extent(stops)
	rl.DrawText(fmt.Sprintf("%.0f", rng.Min), x, y+20, 12, rl.Gray)
	rl.DrawText(fmt.Sprintf("%.0f", rng.Max), x+width-24, y+20, 12, rl.Gray)
}

func toggleText(cond bool, ifTrue, ifFalse string) string {
	if cond {
		return ifTrue
	}
	return ifFalse
}
