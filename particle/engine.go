package particle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/pthm-cable/windlayer/colormap"
	"github.com/pthm-cable/windlayer/gpu"
	"github.com/pthm-cable/windlayer/layer"
	"github.com/pthm-cable/windlayer/source"
)

var (
	// ErrDetached is returned by calls made after Detach.
	ErrDetached = errors.New("particle: layer detached")
	// ErrNotAttached is returned by calls that need GPU resources before Attach.
	ErrNotAttached = errors.New("particle: layer not attached")
)

// DefaultSpeedRange colours particles until the first source supplies its own.
var DefaultSpeedRange = colormap.Range{Min: 0, Max: 100}

// payload is what the loader hands back: the decoded field and the LUT built
// over its speed range.
type payload struct {
	field *source.VectorField
	lut   *colormap.LUT
}

// FrameStats describes one Step.
type FrameStats struct {
	Applied   bool // a source completion was consumed
	Simulated bool
	Drawn     bool

	Apply    time.Duration
	Simulate time.Duration
	Render   time.Duration
}

// Layer is the particle engine. All methods must be called from the render
// thread; only the loader's fetch and decode run elsewhere.
type Layer struct {
	layer.Emitter

	opts   Options
	logger *slog.Logger
	clock  layer.Clock
	rng    *rand.Rand
	loader *source.Loader[*payload]

	host     layer.Host
	sim      *Simulator
	renderer *Renderer
	state    *State
	velocity gpu.Texture
	colors   gpu.Texture
	field    Field
	decoded  *source.VectorField

	attached     bool
	detached     bool
	sourceLoaded bool
	ready        bool
	url          string

	// requested is the reset fraction of the most recent SetSource; it is
	// armed only when that load is the one applied.
	requested     float64
	pendingReset  bool
	resetFraction float64

	timed   bool
	lastSim time.Duration
	last    FrameStats
}

var _ layer.Layer = (*Layer)(nil)

// New validates opts and builds a detached layer.
func New(opts Options) (*Layer, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.Fetcher == nil {
		opts.Fetcher = source.NewAutoFetcher(opts.LoadTimeout)
	}
	if opts.Clock == nil {
		opts.Clock = layer.NewSystemClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	opts.Colors = append([]colormap.Stop(nil), opts.Colors...)

	logger := opts.Logger.With("layer", opts.ID)
	return &Layer{
		opts:   opts,
		logger: logger,
		clock:  opts.Clock,
		rng:    rand.New(rand.NewSource(seed)),
		loader: source.NewLoader[*payload](opts.ID, opts.Fetcher, opts.LoadTimeout, logger),
		ready:  opts.ReadyForDisplay,
	}, nil
}

// ID implements layer.Layer.
func (l *Layer) ID() string { return l.opts.ID }

// Options returns the options the layer was built with.
func (l *Layer) Options() Options { return l.opts }

// Attach compiles both programs, seeds the particle buffers and starts loading
// the configured source. On error nothing stays allocated.
func (l *Layer) Attach(dev gpu.Device, host layer.Host) error {
	switch {
	case l.detached:
		return ErrDetached
	case l.attached:
		return fmt.Errorf("particle %s: already attached", l.opts.ID)
	}
	if err := l.allocate(dev); err != nil {
		l.release(dev)
		return fmt.Errorf("particle %s: %w", l.opts.ID, err)
	}
	l.host = host
	l.attached = true
	l.logger.Info("layer attached",
		"particles", l.opts.ParticleCount,
		"trail", l.opts.TrailLength,
	)
	l.Emit(layer.Event{Kind: layer.EventAttached, Layer: l.opts.ID})

	if l.loader.Latest() == 0 && l.opts.Source != "" {
		l.load(l.opts.Source, 0)
	}
	return nil
}

func (l *Layer) allocate(dev gpu.Device) error {
	var err error
	if l.sim, err = NewSimulator(dev); err != nil {
		return err
	}
	if l.renderer, err = NewRenderer(dev, l.opts.TrailLength); err != nil {
		return err
	}
	if l.state, err = NewState(dev, l.opts.ParticleCount, l.rng); err != nil {
		return err
	}
	lut, err := colormap.Build(l.opts.Colors, DefaultSpeedRange)
	if err != nil {
		return err
	}
	if l.colors, err = dev.NewTexture(gpu.StripTexture(lut.Bytes(), gpu.Linear)); err != nil {
		return fmt.Errorf("uploading colormap: %w", err)
	}
	return nil
}

// SetSource starts loading a new wind field. When it is applied, a fraction
// of the particles (chosen by the shader hash) respawns on the next step.
// Loading the initial source uses a fraction of 0.
func (l *Layer) SetSource(url string, resetFraction float64) error {
	if l.detached {
		return ErrDetached
	}
	if math.IsNaN(resetFraction) || resetFraction < 0 || resetFraction > 1 {
		return fmt.Errorf("particle %s: reset fraction %v outside [0,1]", l.opts.ID, resetFraction)
	}
	l.load(url, resetFraction)
	return nil
}

func (l *Layer) load(url string, fraction float64) {
	unit, stops := l.opts.Unit, l.opts.Colors
	seq := l.loader.Load(url, func(data []byte) (*payload, error) {
		field, err := source.DecodeVector(data, unit)
		if err != nil {
			return nil, err
		}
		lut, err := colormap.Build(stops, field.Speed)
		if err != nil {
			return nil, fmt.Errorf("building colormap: %w", err)
		}
		return &payload{field: field, lut: lut}, nil
	})
	l.url = url
	l.requested = fraction
	l.logger.Debug("loading source", "url", url, "seq", seq, "reset_fraction", fraction)
}

// apply swaps in a completed load. Textures, ranges and the reset request
// change together or not at all.
func (l *Layer) apply(dev gpu.Device, c source.Completion[*payload]) {
	if c.Err != nil {
		l.fail(c, c.Err)
		return
	}
	velocity, err := dev.NewTexture(gpu.ImageTexture(c.Value.field.Image, gpu.Linear))
	if err != nil {
		l.fail(c, fmt.Errorf("uploading velocity: %w", err))
		return
	}
	colors, err := dev.NewTexture(gpu.StripTexture(c.Value.lut.Bytes(), gpu.Linear))
	if err != nil {
		dev.DeleteTexture(velocity)
		l.fail(c, fmt.Errorf("uploading colormap: %w", err))
		return
	}

	if l.velocity != 0 {
		dev.DeleteTexture(l.velocity)
	}
	if l.colors != 0 {
		dev.DeleteTexture(l.colors)
	}
	l.velocity, l.colors = velocity, colors
	l.field = Field{Velocity: velocity, Ranges: c.Value.field.VectorRanges, Bounds: l.opts.Bounds}
	l.decoded = c.Value.field
	l.sourceLoaded = true
	if l.requested > 0 {
		l.pendingReset = true
		l.resetFraction = l.requested
	}

	l.logger.Info("source loaded",
		"url", c.URL,
		"seq", c.Seq,
		"elapsed", c.Elapsed,
		"speed_min", l.field.Ranges.Speed.Min,
		"speed_max", l.field.Ranges.Speed.Max,
	)
	l.Emit(layer.Event{Kind: layer.EventSourceLoaded, Layer: l.opts.ID, URL: c.URL, Seq: c.Seq})
	if l.host != nil {
		l.host.TriggerRepaint()
	}
}

func (l *Layer) fail(c source.Completion[*payload], err error) {
	l.logger.Warn("source load failed", "url", c.URL, "seq", c.Seq, "error", err)
	l.Emit(layer.Event{Kind: layer.EventSourceFailed, Layer: l.opts.ID, URL: c.URL, Seq: c.Seq, Err: err})
}

// AwaitSource blocks until the most recent load completes and applies it.
// It returns the load's error, or ctx's error if ctx ends first. Headless runs
// use it in place of polling frame by frame.
func (l *Layer) AwaitSource(ctx context.Context, dev gpu.Device) error {
	if !l.attached {
		return ErrNotAttached
	}
	c, ok := l.loader.Await(ctx)
	if !ok {
		return ctx.Err()
	}
	l.apply(dev, c)
	return c.Err
}

// Render implements layer.Layer.
func (l *Layer) Render(dev gpu.Device, matrix gpu.Mat4) {
	stats, err := l.Step(dev, matrix, l.clock.Now())
	if err != nil {
		l.logger.Error("frame failed", "error", err)
	}
	l.last = stats
}

// Step runs one frame at time now: apply any finished load, then, once a
// source is loaded and the layer is ready, simulate if the update interval
// has elapsed and draw. The first ready frame only records the time.
func (l *Layer) Step(dev gpu.Device, matrix gpu.Mat4, now time.Duration) (FrameStats, error) {
	var stats FrameStats
	if !l.attached {
		return stats, nil
	}

	start := time.Now()
	if c, ok := l.loader.Poll(); ok {
		l.apply(dev, c)
		stats.Applied = true
	}
	stats.Apply = time.Since(start)

	if !l.sourceLoaded || !l.ready {
		return stats, nil
	}

	if !l.timed {
		l.timed = true
		l.lastSim = now
	}
	if now-l.lastSim >= l.opts.UpdateInterval {
		l.lastSim = now
		start = time.Now()
		p := StepParams{
			SpeedFactor:   l.opts.VelocityFactor,
			TimeSeconds:   now.Seconds(),
			AgeThreshold:  l.opts.AgeThreshold,
			MaxAge:        l.opts.MaxAge,
			ResetFraction: l.resetFraction,
			Reset:         l.pendingReset,
		}
		l.pendingReset = false
		if err := l.sim.Step(dev, l.state, l.field, p); err != nil {
			return stats, err
		}
		stats.Simulated = true
		stats.Simulate = time.Since(start)
	}

	start = time.Now()
	err := l.renderer.Draw(dev, l.state, l.field, l.colors, matrix, Style{
		PointSize:      l.opts.PointSize,
		SpeedFactor:    l.opts.VelocityFactor,
		TrailSizeDecay: l.opts.TrailSizeDecay,
		Opacity:        l.opts.FadeOpacity,
	})
	if err != nil {
		return stats, err
	}
	stats.Drawn = true
	stats.Render = time.Since(start)

	if l.host != nil {
		l.host.TriggerRepaint()
	}
	return stats, nil
}

// Detach stops loading and deletes every GPU resource. Safe to call more than
// once and after a failed Attach.
func (l *Layer) Detach(dev gpu.Device) {
	if l.detached {
		return
	}
	l.detached = true
	l.loader.Close()
	l.release(dev)

	wasAttached := l.attached
	l.attached = false
	l.sourceLoaded = false
	l.pendingReset = false
	if wasAttached {
		l.logger.Info("layer detached")
		l.Emit(layer.Event{Kind: layer.EventDetached, Layer: l.opts.ID})
	}
}

func (l *Layer) release(dev gpu.Device) {
	l.sim.Release(dev)
	l.renderer.Release(dev)
	if l.state != nil {
		l.state.Release(dev)
	}
	if l.velocity != 0 {
		dev.DeleteTexture(l.velocity)
	}
	if l.colors != 0 {
		dev.DeleteTexture(l.colors)
	}
	l.sim, l.renderer, l.state = nil, nil, nil
	l.velocity, l.colors = 0, 0
	l.field = Field{}
}

// SetReadyForDisplay gates simulation and drawing.
func (l *Layer) SetReadyForDisplay(ready bool) {
	l.ready = ready
	if ready && l.host != nil {
		l.host.TriggerRepaint()
	}
}

// ReadyForDisplay reports the display gate.
func (l *Layer) ReadyForDisplay() bool { return l.ready }

// SourceLoaded reports whether a field has been applied.
func (l *Layer) SourceLoaded() bool { return l.sourceLoaded }

// PendingReset reports whether the next step will apply a respawn fraction.
func (l *Layer) PendingReset() bool { return l.pendingReset }

// Generation returns the buffer generation render currently reads.
func (l *Layer) Generation() Generation {
	if l.state == nil {
		return GenA
	}
	return l.state.Generation()
}

// Ranges returns the ranges of the applied field.
func (l *Layer) Ranges() source.VectorRanges { return l.field.Ranges }

// Decoded returns the field behind the current velocity texture, or nil
// before the first load. Callers must not modify it.
func (l *Layer) Decoded() *source.VectorField { return l.decoded }

// URL returns the most recently requested source.
func (l *Layer) URL() string { return l.url }

// LastFrame returns the stats of the most recent Render.
func (l *Layer) LastFrame() FrameStats { return l.last }

// Snapshot reads the current particle generation back from the device.
func (l *Layer) Snapshot(dev gpu.Device) (positions, ages []float32, err error) {
	if l.state == nil {
		return nil, nil, ErrNotAttached
	}
	return l.state.Snapshot(dev)
}
