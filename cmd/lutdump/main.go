// LUT dump tool - renders a palette's 256-entry lookup table to a PNG strip
// for inspection, and optionally writes its stops as CSV for editing.
//
// Usage: go run ./cmd/lutdump -palette temperature -out temperature.png -csv temperature.csv
package main

import (
	"flag"
	"fmt"
	"image"
	"image/png"
	"os"

	"golang.org/x/image/draw"

	"github.com/pthm-cable/windlayer/colormap"
)

func main() {
	ref := flag.String("palette", "wind", "Built-in palette name or CSV path")
	outPath := flag.String("out", "lut.png", "Output PNG path")
	csvPath := flag.String("csv", "", "Also write the stops to this CSV path")
	height := flag.Int("height", 32, "Strip height in pixels")
	scale := flag.Int("scale", 2, "Horizontal scale factor")
	list := flag.Bool("list", false, "List built-in palettes and exit")
	flag.Parse()

	if *list {
		for _, name := range colormap.Names() {
			fmt.Println(name)
		}
		return
	}

	stops, err := colormap.Resolve(*ref)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load palette: %v\n", err)
		os.Exit(1)
	}
	rng := colormap.Extent(stops)
	lut, err := colormap.Build(stops, rng)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build LUT: %v\n", err)
		os.Exit(1)
	}

	// stretch the 256x1 table into a viewable strip
	dst := image.NewRGBA(image.Rect(0, 0, colormap.Size*max(*scale, 1), max(*height, 1)))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), lut.Image(), lut.Image().Bounds(), draw.Src, nil)

	if err := writePNG(*outPath, dst); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", *outPath, err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s (%d stops, %.1f to %.1f)\n", *outPath, len(stops), rng.Min, rng.Max)

	if *csvPath != "" {
		f, err := os.Create(*csvPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create %s: %v\n", *csvPath, err)
			os.Exit(1)
		}
		defer f.Close()
		if err := colormap.WriteCSV(f, stops); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write CSV: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %s\n", *csvPath)
	}
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
