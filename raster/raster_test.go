package raster

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/pthm-cable/windlayer/colormap"
	"github.com/pthm-cable/windlayer/geo"
	"github.com/pthm-cable/windlayer/gpu"
	"github.com/pthm-cable/windlayer/gpu/softgpu"
	"github.com/pthm-cable/windlayer/layer"
	"github.com/pthm-cable/windlayer/source"
)

var bounds = geo.Bounds{-121, 36, -117, 32}

type mapFetcher map[string][]byte

func (f mapFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	if b, ok := f[url]; ok {
		return b, nil
	}
	return nil, source.ErrStatus
}

type nopHost struct{}

func (nopHost) TriggerRepaint() {}

func uniform(v uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := range 4 {
		for x := range 4 {
			img.SetRGBA(x, y, color.RGBA{v, v, v, 255})
		}
	}
	return img
}

func withRange(t *testing.T, v uint8, desc string) []byte {
	t.Helper()
	data, err := source.EncodePNG(uniform(v), desc)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func bare(t *testing.T, v uint8) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, uniform(v)); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// black to white over the whole byte range
var grey = []colormap.Stop{colormap.RGB(0, 0, 0, 0), colormap.RGB(1, 255, 255, 255)}

func newLayer(t *testing.T, f mapFetcher, mutate func(*Options)) (*Layer, *softgpu.Device) {
	t.Helper()
	opts := DefaultOptions()
	opts.ID = "temperature"
	opts.Colors = grey
	opts.Bounds = bounds
	opts.ReadyForDisplay = true
	opts.Fetcher = f
	if mutate != nil {
		mutate(&opts)
	}
	l, err := New(opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	dev := softgpu.New(32, 32)
	t.Cleanup(func() { l.Detach(dev) })
	if err := l.Attach(dev, nopHost{}); err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	return l, dev
}

func await(t *testing.T, l *Layer, dev gpu.Device) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return l.AwaitSource(ctx, dev)
}

func fullView() gpu.Mat4 {
	minX, minY, maxX, maxY := bounds.MercatorBounds()
	return gpu.Ortho(float32(minX), float32(maxX), float32(maxY), float32(minY))
}

func TestDrawCoversBounds(t *testing.T) {
	// "0,1" range with the grey ramp over [0,1]: byte 255 maps to white
	l, dev := newLayer(t, mapFetcher{"t": withRange(t, 255, "0,1")}, func(o *Options) { o.Source = "t" })
	if err := await(t, l, dev); err != nil {
		t.Fatal(err)
	}
	if l.Degraded() {
		t.Error("layer with metadata reported degraded")
	}

	dev.Clear(color.RGBA{0, 0, 0, 255})
	drawn, err := l.Draw(dev, fullView())
	if err != nil || !drawn {
		t.Fatalf("Draw() = %v, %v", drawn, err)
	}
	for _, p := range [][2]int{{1, 1}, {16, 16}, {30, 30}} {
		px := dev.Pixel(p[0], p[1])
		if px[0] < 0.95 {
			t.Errorf("pixel %v = %v, want white", p, px)
		}
	}
}

func TestOpacityBlends(t *testing.T) {
	l, dev := newLayer(t, mapFetcher{"t": withRange(t, 255, "0,1")}, func(o *Options) {
		o.Source = "t"
		o.Opacity = 0.6
	})
	if err := await(t, l, dev); err != nil {
		t.Fatal(err)
	}
	dev.Clear(color.RGBA{0, 0, 0, 255})
	if _, err := l.Draw(dev, fullView()); err != nil {
		t.Fatal(err)
	}
	// off the quad's diagonal so the pixel is shaded exactly once
	if px := dev.Pixel(6, 24); px[0] < 0.55 || px[0] > 0.65 {
		t.Errorf("blended pixel = %v, want ~0.6", px)
	}
}

func TestDegradedFallback(t *testing.T) {
	l, dev := newLayer(t, mapFetcher{"bare": bare(t, 128)}, func(o *Options) { o.Source = "bare" })
	var degraded, loaded int
	l.On(layer.EventSourceDegraded, func(layer.Event) { degraded++ })
	l.On(layer.EventSourceLoaded, func(layer.Event) { loaded++ })

	if err := await(t, l, dev); err != nil {
		t.Fatalf("AwaitSource() error = %v", err)
	}
	if !l.Degraded() || l.ValueRange() != source.DefaultScalarRange {
		t.Errorf("degraded = %v, range = %v", l.Degraded(), l.ValueRange())
	}
	if degraded != 1 || loaded != 1 {
		t.Errorf("events degraded=%d loaded=%d, want 1 and 1", degraded, loaded)
	}
	if drawn, _ := l.Draw(dev, fullView()); !drawn {
		t.Error("degraded source not displayed")
	}
}

func TestSetSourceReplacesColors(t *testing.T) {
	f := mapFetcher{"t": withRange(t, 255, "0,1")}
	l, dev := newLayer(t, f, func(o *Options) { o.Source = "t" })
	if err := await(t, l, dev); err != nil {
		t.Fatal(err)
	}

	red := []colormap.Stop{colormap.RGB(0, 255, 0, 0), colormap.RGB(1, 255, 0, 0)}
	if err := l.SetSource("t", red); err != nil {
		t.Fatal(err)
	}
	if err := await(t, l, dev); err != nil {
		t.Fatal(err)
	}
	dev.Clear(color.RGBA{0, 0, 0, 255})
	if _, err := l.Draw(dev, fullView()); err != nil {
		t.Fatal(err)
	}
	if px := dev.Pixel(16, 16); px[0] < 0.95 || px[1] > 0.05 {
		t.Errorf("pixel = %v, want red", px)
	}

	if err := l.SetSource("t", []colormap.Stop{}); !errors.Is(err, colormap.ErrNoStops) {
		t.Errorf("empty colour table error = %v", err)
	}
}

func TestFailedLoadKeepsImage(t *testing.T) {
	l, dev := newLayer(t, mapFetcher{"t": withRange(t, 200, "0,10")}, func(o *Options) { o.Source = "t" })
	if err := await(t, l, dev); err != nil {
		t.Fatal(err)
	}
	if err := l.SetSource("gone", nil); err != nil {
		t.Fatal(err)
	}
	if err := await(t, l, dev); !errors.Is(err, source.ErrStatus) {
		t.Fatalf("AwaitSource() error = %v", err)
	}
	if l.ValueRange() != (colormap.Range{Min: 0, Max: 10}) {
		t.Errorf("range = %v after failed load", l.ValueRange())
	}
	if drawn, _ := l.Draw(dev, fullView()); !drawn {
		t.Error("previous image no longer drawn")
	}
}

func TestDetachReleases(t *testing.T) {
	l, dev := newLayer(t, mapFetcher{"t": withRange(t, 10, "0,1")}, func(o *Options) { o.Source = "t" })
	if err := await(t, l, dev); err != nil {
		t.Fatal(err)
	}
	l.Detach(dev)
	l.Detach(dev)
	if live := dev.Live(); live.Total() != 0 {
		t.Errorf("live after Detach = %+v", live)
	}
	if err := l.SetSource("t", nil); !errors.Is(err, ErrDetached) {
		t.Errorf("SetSource after Detach = %v", err)
	}
}

func TestFailedCompile(t *testing.T) {
	opts := DefaultOptions()
	opts.ID = "r"
	opts.Colors = grey
	opts.Bounds = bounds
	l, err := New(opts)
	if err != nil {
		t.Fatal(err)
	}
	dev := softgpu.New(8, 8)
	dev.FailCompile("raster")
	if err := l.Attach(dev, nopHost{}); !errors.Is(err, gpu.ErrProgram) {
		t.Fatalf("Attach() error = %v", err)
	}
	l.Detach(dev)
	if live := dev.Live(); live.Total() != 0 {
		t.Errorf("live = %+v", live)
	}
}

func TestReadyGate(t *testing.T) {
	l, dev := newLayer(t, mapFetcher{"t": withRange(t, 10, "0,1")}, func(o *Options) {
		o.Source = "t"
		o.ReadyForDisplay = false
	})
	if err := await(t, l, dev); err != nil {
		t.Fatal(err)
	}
	if drawn, _ := l.Draw(dev, fullView()); drawn {
		t.Error("drew while hidden")
	}
	l.SetReadyForDisplay(true)
	if drawn, _ := l.Draw(dev, fullView()); !drawn {
		t.Error("did not draw once ready")
	}
}
