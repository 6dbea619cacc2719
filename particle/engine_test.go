package particle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pthm-cable/windlayer/colormap"
	"github.com/pthm-cable/windlayer/gpu"
	"github.com/pthm-cable/windlayer/gpu/softgpu"
	"github.com/pthm-cable/windlayer/layer"
	"github.com/pthm-cable/windlayer/source"
)

// memFetcher serves canned bodies keyed by URL.
type memFetcher struct {
	mu     sync.Mutex
	bodies map[string][]byte
}

func (f *memFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bodies[url]
	if !ok {
		return nil, fmt.Errorf("%w: 404 %s", source.ErrStatus, url)
	}
	return b, nil
}

type countingHost struct{ repaints atomic.Int32 }

func (h *countingHost) TriggerRepaint() { h.repaints.Add(1) }

// windPNG encodes a uniform field. r and g are the normalized U and V samples.
func windPNG(t *testing.T, r, g uint8, ranges string) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := range 8 {
		for x := range 8 {
			img.SetRGBA(x, y, color.RGBA{r, g, 0, 255})
		}
	}
	data, err := source.EncodePNG(img, ranges)
	if err != nil {
		t.Fatalf("EncodePNG() error = %v", err)
	}
	return data
}

// plainPNG has no eXIf chunk at all.
func plainPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return buf.Bytes()
}

type harness struct {
	t     *testing.T
	dev   *softgpu.Device
	host  *countingHost
	clock *layer.ManualClock
	layer *Layer
	m     gpu.Mat4
}

func newHarness(t *testing.T, count int, bodies map[string][]byte, mutate func(*Options)) *harness {
	t.Helper()
	h := &harness{
		t:     t,
		dev:   softgpu.New(64, 64),
		host:  &countingHost{},
		clock: &layer.ManualClock{},
	}
	opts := DefaultOptions()
	opts.ID = "wind"
	opts.Colors = colormap.Wind
	opts.Bounds = demoBounds
	opts.ParticleCount = count
	opts.ReadyForDisplay = true
	opts.Seed = 42
	opts.Fetcher = &memFetcher{bodies: bodies}
	opts.Clock = h.clock
	if mutate != nil {
		mutate(&opts)
	}

	l, err := New(opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	h.layer = l
	t.Cleanup(func() { l.Detach(h.dev) })

	minX, minY, maxX, maxY := demoBounds.MercatorBounds()
	h.m = gpu.Ortho(float32(minX), float32(maxX), float32(maxY), float32(minY))
	return h
}

func (h *harness) attach() {
	h.t.Helper()
	if err := h.layer.Attach(h.dev, h.host); err != nil {
		h.t.Fatalf("Attach() error = %v", err)
	}
}

func (h *harness) await() error {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return h.layer.AwaitSource(ctx, h.dev)
}

func (h *harness) step(at time.Duration) FrameStats {
	h.t.Helper()
	h.clock.Set(at)
	stats, err := h.layer.Step(h.dev, h.m, at)
	if err != nil {
		h.t.Fatalf("Step(%v) error = %v", at, err)
	}
	return stats
}

func (h *harness) snapshot() ([]float32, []float32) {
	h.t.Helper()
	pos, ages, err := h.layer.Snapshot(h.dev)
	if err != nil {
		h.t.Fatalf("Snapshot() error = %v", err)
	}
	return pos, ages
}

const (
	calmRanges  = "-10,10;-10,10;0,15;"
	breezeRange = "0,10;0,10;0,15;"
)

func TestCalmFieldRespawnsEveryParticle(t *testing.T) {
	h := newHarness(t, 4, map[string][]byte{"calm": windPNG(t, 128, 128, calmRanges)}, func(o *Options) {
		o.Source = "calm"
	})
	h.attach()
	if err := h.await(); err != nil {
		t.Fatalf("AwaitSource() error = %v", err)
	}
	if !h.layer.SourceLoaded() {
		t.Fatal("source not loaded")
	}
	if h.layer.PendingReset() {
		t.Error("initial load armed a reset")
	}

	first := h.step(0)
	if first.Simulated || !first.Drawn {
		t.Fatalf("first frame = %+v, want draw only", first)
	}
	if st := h.step(50 * time.Millisecond); !st.Simulated {
		t.Fatal("second frame did not simulate")
	}
	if h.layer.Generation() != GenB {
		t.Errorf("generation = %v, want B", h.layer.Generation())
	}

	pos, ages := h.snapshot()
	for i, a := range ages {
		if a != 0 {
			t.Errorf("particle %d age = %v, want 0 after calm respawn", i, a)
		}
	}
	for i, p := range pos {
		if p < 0 || p > 1 {
			t.Errorf("pos[%d] = %v outside [0,1]", i, p)
		}
	}
}

func TestAgesAdvanceByOne(t *testing.T) {
	// u = 5 mph east, v = 0: a small step that keeps interior particles in bounds
	h := newHarness(t, 100, map[string][]byte{"breeze": windPNG(t, 128, 0, breezeRange)}, func(o *Options) {
		o.Source = "breeze"
		o.UpdateInterval = 0
	})
	h.attach()
	if err := h.await(); err != nil {
		t.Fatalf("AwaitSource() error = %v", err)
	}

	_, before := h.snapshot()
	if st := h.step(time.Second); !st.Simulated {
		t.Fatal("zero interval did not simulate on the first frame")
	}
	pos, after := h.snapshot()

	advanced := 0
	for i := range after {
		switch after[i] {
		case before[i] + 1:
			advanced++
		case 0:
			if x := pos[i*2]; x < 0 || x > 1 {
				t.Errorf("respawned particle %d at x=%v", i, x)
			}
		default:
			t.Errorf("particle %d age %v -> %v", i, before[i], after[i])
		}
	}
	if advanced < len(after)/2 {
		t.Errorf("only %d of %d particles aged", advanced, len(after))
	}
}

func TestResetFractionIsSingleUse(t *testing.T) {
	bodies := map[string][]byte{
		"t0": windPNG(t, 128, 0, breezeRange),
		"t1": windPNG(t, 160, 0, breezeRange),
	}
	h := newHarness(t, 50, bodies, func(o *Options) {
		o.Source = "t0"
		o.UpdateInterval = 0
	})
	h.attach()
	if err := h.await(); err != nil {
		t.Fatalf("AwaitSource() error = %v", err)
	}
	h.step(time.Second)

	if err := h.layer.SetSource("t1", 1); err != nil {
		t.Fatalf("SetSource() error = %v", err)
	}
	if err := h.await(); err != nil {
		t.Fatalf("AwaitSource() error = %v", err)
	}
	if !h.layer.PendingReset() {
		t.Fatal("reset not armed after SetSource(_, 1)")
	}

	h.step(2 * time.Second)
	if h.layer.PendingReset() {
		t.Fatal("reset still armed after one step")
	}
	_, ages := h.snapshot()
	for i, a := range ages {
		if a != 0 {
			t.Fatalf("particle %d age = %v, want every particle respawned", i, a)
		}
	}

	h.step(3 * time.Second)
	_, ages = h.snapshot()
	aged := 0
	for _, a := range ages {
		if a == 1 {
			aged++
		}
	}
	if aged == 0 {
		t.Error("no particle aged on the step after the reset")
	}
}

func TestSetSourceValidatesFraction(t *testing.T) {
	h := newHarness(t, 4, nil, nil)
	for _, f := range []float64{-0.1, 1.5, math.NaN()} {
		if err := h.layer.SetSource("x", f); err == nil {
			t.Errorf("SetSource(_, %v) accepted", f)
		}
	}
}

func TestOnlyLatestSourceApplies(t *testing.T) {
	bodies := map[string][]byte{
		"a": windPNG(t, 128, 0, "0,10;0,10;0,15;"),
		"b": windPNG(t, 128, 0, "0,20;0,20;0,30;"),
	}
	h := newHarness(t, 4, bodies, nil)
	var loaded []string
	h.layer.On(layer.EventSourceLoaded, func(ev layer.Event) { loaded = append(loaded, ev.URL) })
	h.attach()

	if err := h.layer.SetSource("a", 0); err != nil {
		t.Fatal(err)
	}
	if err := h.layer.SetSource("b", 0.5); err != nil {
		t.Fatal(err)
	}
	if err := h.await(); err != nil {
		t.Fatalf("AwaitSource() error = %v", err)
	}
	// drain whatever the stale load left behind
	h.step(0)
	h.step(time.Second)

	if len(loaded) != 1 || loaded[0] != "b" {
		t.Fatalf("loaded events = %v, want [b]", loaded)
	}
	if got := h.layer.Ranges().Speed.Max; got != 30 {
		t.Errorf("speed max = %v, want 30", got)
	}
}

func TestFailedSourceKeepsPreviousField(t *testing.T) {
	bodies := map[string][]byte{
		"good":  windPNG(t, 128, 0, breezeRange),
		"plain": plainPNG(t),
	}
	h := newHarness(t, 4, bodies, func(o *Options) { o.Source = "good" })
	var failures []error
	h.layer.On(layer.EventSourceFailed, func(ev layer.Event) { failures = append(failures, ev.Err) })
	h.attach()
	if err := h.await(); err != nil {
		t.Fatalf("AwaitSource() error = %v", err)
	}
	before := h.layer.Ranges()
	textures := h.dev.Live().Textures

	tests := []struct {
		url  string
		want error
	}{
		{"plain", source.ErrNoMetadata},
		{"missing", source.ErrStatus},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			if err := h.layer.SetSource(tt.url, 0.5); err != nil {
				t.Fatal(err)
			}
			if err := h.await(); !errors.Is(err, tt.want) {
				t.Fatalf("AwaitSource() error = %v, want %v", err, tt.want)
			}
			if h.layer.Ranges() != before {
				t.Error("ranges changed after a failed load")
			}
			if h.layer.PendingReset() {
				t.Error("failed load armed a reset")
			}
			if got := h.dev.Live().Textures; got != textures {
				t.Errorf("live textures = %d, want %d", got, textures)
			}
		})
	}
	if len(failures) != len(tests) {
		t.Errorf("failure events = %d, want %d", len(failures), len(tests))
	}
	if st := h.step(0); !st.Drawn {
		t.Error("layer stopped drawing after a failed load")
	}
}

func TestReadyGate(t *testing.T) {
	h := newHarness(t, 4, map[string][]byte{"w": windPNG(t, 128, 0, breezeRange)}, func(o *Options) {
		o.Source = "w"
		o.ReadyForDisplay = false
	})
	h.attach()

	// not loaded yet and not ready: nothing happens
	if st := h.step(0); st.Drawn || st.Simulated {
		t.Fatalf("frame before load = %+v", st)
	}
	if err := h.await(); err != nil {
		t.Fatal(err)
	}
	if st := h.step(time.Second); st.Drawn {
		t.Fatal("drew while not ready")
	}
	if h.dev.Stats().DrawCalls != 0 {
		t.Fatalf("draw calls = %d", h.dev.Stats().DrawCalls)
	}

	h.layer.SetReadyForDisplay(true)
	if st := h.step(2 * time.Second); !st.Drawn {
		t.Fatal("did not draw once ready")
	}
	if h.host.repaints.Load() == 0 {
		t.Error("no repaint requested")
	}
}

func TestTrailInstancing(t *testing.T) {
	h := newHarness(t, 4, map[string][]byte{"w": windPNG(t, 128, 0, breezeRange)}, func(o *Options) {
		o.Source = "w"
		o.TrailLength = 3
	})
	h.attach()
	if err := h.await(); err != nil {
		t.Fatal(err)
	}
	h.dev.ResetStats()
	h.step(0)

	st := h.dev.Stats()
	if st.DrawCalls != 1 || st.FeedbackPasses != 0 {
		t.Fatalf("stats = %+v, want one draw and no simulation", st)
	}
	if want := 4 * 4; st.Vertices != want {
		t.Errorf("vertices = %d, want %d (count * (trail+1))", st.Vertices, want)
	}
	if st.Fragments == 0 {
		t.Error("no fragments shaded")
	}
}

func TestFailedAttachReleasesEverything(t *testing.T) {
	for _, name := range []string{"particle-update", "particle-render"} {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, 16, nil, nil)
			h.dev.FailCompile(name)
			err := h.layer.Attach(h.dev, h.host)
			if !errors.Is(err, gpu.ErrProgram) {
				t.Fatalf("Attach() error = %v, want ErrProgram", err)
			}
			if live := h.dev.Live(); live.Total() != 0 {
				t.Errorf("live after failed attach = %+v", live)
			}
			h.layer.Detach(h.dev)
			h.layer.Detach(h.dev)
		})
	}
}

func TestDetachReleasesEverything(t *testing.T) {
	h := newHarness(t, 16, map[string][]byte{"w": windPNG(t, 128, 0, breezeRange)}, func(o *Options) {
		o.Source = "w"
	})
	var detached int
	h.layer.On(layer.EventDetached, func(layer.Event) { detached++ })
	h.attach()
	if err := h.await(); err != nil {
		t.Fatal(err)
	}
	h.step(0)
	h.step(time.Second)
	if h.dev.Live().Total() == 0 {
		t.Fatal("nothing allocated while attached")
	}

	h.layer.Detach(h.dev)
	h.layer.Detach(h.dev)
	if live := h.dev.Live(); live.Total() != 0 {
		t.Errorf("live after Detach = %+v", live)
	}
	if detached != 1 {
		t.Errorf("detached events = %d, want 1", detached)
	}
	if err := h.layer.SetSource("w", 0); !errors.Is(err, ErrDetached) {
		t.Errorf("SetSource after Detach = %v", err)
	}
	if err := h.layer.Attach(h.dev, h.host); !errors.Is(err, ErrDetached) {
		t.Errorf("Attach after Detach = %v", err)
	}
}

func TestOptionsValidate(t *testing.T) {
	base := DefaultOptions()
	base.ID = "wind"
	base.Colors = colormap.Wind
	base.Bounds = demoBounds

	tests := []struct {
		name   string
		mutate func(*Options)
		ok     bool
	}{
		{"defaults", func(*Options) {}, true},
		{"no id", func(o *Options) { o.ID = "" }, false},
		{"no colors", func(o *Options) { o.Colors = nil }, false},
		{"no particles", func(o *Options) { o.ParticleCount = 0 }, false},
		{"max below threshold", func(o *Options) { o.MaxAge = 400 }, false},
		{"negative trail", func(o *Options) { o.TrailLength = -1 }, false},
		{"no trail", func(o *Options) { o.TrailLength = 0 }, true},
		{"bad unit", func(o *Options) { o.Unit = "knots" }, false},
		{"kph", func(o *Options) { o.Unit = source.KPH }, true},
		{"empty bounds", func(o *Options) { o.Bounds = [4]float64{} }, false},
		{"opacity", func(o *Options) { o.FadeOpacity = 1.2 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := base
			tt.mutate(&o)
			if err := o.Validate(); (err == nil) != tt.ok {
				t.Errorf("Validate() = %v, ok want %v", err, tt.ok)
			}
		})
	}
}
