// Package raster draws a scalar field image over a geographic box, coloured
// through a 256-entry lookup table. It is the static counterpart of the
// particle layer: one textured quad, no simulation.
package raster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pthm-cable/windlayer/colormap"
	"github.com/pthm-cable/windlayer/geo"
	"github.com/pthm-cable/windlayer/gpu"
	"github.com/pthm-cable/windlayer/layer"
	"github.com/pthm-cable/windlayer/source"
)

var (
	ErrDetached    = errors.New("raster: layer detached")
	ErrNotAttached = errors.New("raster: layer not attached")
)

// Options configures a Layer.
type Options struct {
	ID              string
	Source          string
	Colors          []colormap.Stop
	Bounds          geo.Bounds
	Opacity         float64
	ReadyForDisplay bool
	LoadTimeout     time.Duration

	Fetcher source.Fetcher
	Logger  *slog.Logger
}

// DefaultOptions returns a fully opaque, hidden layer.
func DefaultOptions() Options {
	return Options{Opacity: 1, LoadTimeout: 30 * time.Second}
}

// Validate reports the first invalid field.
func (o Options) Validate() error {
	switch {
	case o.ID == "":
		return errors.New("raster: ID is required")
	case len(o.Colors) == 0:
		return fmt.Errorf("raster %s: %w", o.ID, colormap.ErrNoStops)
	case o.Opacity < 0 || o.Opacity > 1:
		return fmt.Errorf("raster %s: opacity %g outside [0,1]", o.ID, o.Opacity)
	}
	if err := o.Bounds.Validate(); err != nil {
		return fmt.Errorf("raster %s: %w", o.ID, err)
	}
	return nil
}

type payload struct {
	field *source.ScalarField
	lut   *colormap.LUT
}

// Layer is a static colour-mapped overlay.
type Layer struct {
	layer.Emitter

	opts   Options
	logger *slog.Logger
	loader *source.Loader[*payload]
	colors []colormap.Stop

	host     layer.Host
	program  gpu.Program
	vertices gpu.Buffer
	image    gpu.Texture
	colormap gpu.Texture
	valueRng colormap.Range

	attached     bool
	detached     bool
	sourceLoaded bool
	degraded     bool
	ready        bool
	url          string
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
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	logger := opts.Logger.With("layer", opts.ID)
	return &Layer{
		opts:   opts,
		logger: logger,
		loader: source.NewLoader[*payload](opts.ID, opts.Fetcher, opts.LoadTimeout, logger),
		colors: append([]colormap.Stop(nil), opts.Colors...),
		ready:  opts.ReadyForDisplay,
	}, nil
}

// ID implements layer.Layer.
func (l *Layer) ID() string { return l.opts.ID }

// Attach compiles the quad program and starts loading the configured source.
func (l *Layer) Attach(dev gpu.Device, host layer.Host) error {
	switch {
	case l.detached:
		return ErrDetached
	case l.attached:
		return fmt.Errorf("raster %s: already attached", l.opts.ID)
	}

	var err error
	l.program, err = dev.CompileProgram(gpu.ProgramSource{
		Name:     "raster",
		Vertex:   vertexShader,
		Fragment: fragmentShader,
		Kernel:   kernel{},
	})
	if err != nil {
		return fmt.Errorf("raster %s: %w", l.opts.ID, err)
	}
	if l.vertices, err = dev.NewBuffer(quad); err != nil {
		l.release(dev)
		return fmt.Errorf("raster %s: allocating quad: %w", l.opts.ID, err)
	}

	l.host = host
	l.attached = true
	l.Emit(layer.Event{Kind: layer.EventAttached, Layer: l.opts.ID})
	if l.loader.Latest() == 0 && l.opts.Source != "" {
		l.load(l.opts.Source)
	}
	return nil
}

// SetSource loads a new image. A non-nil colors replaces the colour table for
// this and every later load.
func (l *Layer) SetSource(url string, colors []colormap.Stop) error {
	if l.detached {
		return ErrDetached
	}
	if colors != nil {
		if len(colors) == 0 {
			return fmt.Errorf("raster %s: %w", l.opts.ID, colormap.ErrNoStops)
		}
		l.colors = append([]colormap.Stop(nil), colors...)
	}
	l.load(url)
	return nil
}

func (l *Layer) load(url string) {
	stops := l.colors
	seq := l.loader.Load(url, func(data []byte) (*payload, error) {
		field, err := source.DecodeScalar(data)
		if err != nil {
			return nil, err
		}
		lut, err := colormap.Build(stops, field.Range)
		if err != nil {
			return nil, fmt.Errorf("building colormap: %w", err)
		}
		return &payload{field: field, lut: lut}, nil
	})
	l.url = url
	l.logger.Debug("loading source", "url", url, "seq", seq)
}

func (l *Layer) apply(dev gpu.Device, c source.Completion[*payload]) {
	if c.Err != nil {
		l.fail(c, c.Err)
		return
	}
	img, err := dev.NewTexture(gpu.ImageTexture(c.Value.field.Image, gpu.Linear))
	if err != nil {
		l.fail(c, fmt.Errorf("uploading image: %w", err))
		return
	}
	lut, err := dev.NewTexture(gpu.StripTexture(c.Value.lut.Bytes(), gpu.Nearest))
	if err != nil {
		dev.DeleteTexture(img)
		l.fail(c, fmt.Errorf("uploading colormap: %w", err))
		return
	}

	if l.image != 0 {
		dev.DeleteTexture(l.image)
	}
	if l.colormap != 0 {
		dev.DeleteTexture(l.colormap)
	}
	l.image, l.colormap = img, lut
	l.valueRng = c.Value.field.Range
	l.degraded = c.Value.field.Degraded
	l.sourceLoaded = true

	if l.degraded {
		l.logger.Warn("source metadata unreadable, using default range",
			"url", c.URL,
			"min", l.valueRng.Min,
			"max", l.valueRng.Max,
		)
		l.Emit(layer.Event{Kind: layer.EventSourceDegraded, Layer: l.opts.ID, URL: c.URL, Seq: c.Seq})
	}
	l.logger.Info("source loaded", "url", c.URL, "seq", c.Seq, "elapsed", c.Elapsed)
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
	if _, err := l.Draw(dev, matrix); err != nil {
		l.logger.Error("frame failed", "error", err)
	}
}

// Draw applies any finished load and draws the quad once a source is loaded
// and the layer is ready. It reports whether anything was drawn.
func (l *Layer) Draw(dev gpu.Device, matrix gpu.Mat4) (bool, error) {
	if !l.attached {
		return false, nil
	}
	if c, ok := l.loader.Poll(); ok {
		l.apply(dev, c)
	}
	if !l.sourceLoaded || !l.ready {
		return false, nil
	}
	err := dev.Draw(gpu.DrawPass{
		Program: l.program,
		Uniforms: gpu.Uniforms{
			"u_matrix":  matrix,
			"u_bounds":  l.opts.Bounds.Vec4(),
			"u_opacity": float32(l.opts.Opacity),
		},
		Textures: []gpu.Binding{
			{Name: "u_image", Texture: l.image},
			{Name: "u_colormap", Texture: l.colormap},
		},
		Attribs: []gpu.Attrib{{Name: "a_pos", Buffer: l.vertices, Size: 2}},
		Mode:    gpu.Triangles,
		Count:   len(quad) / 2,
		Blend:   true,
	})
	return err == nil, err
}

// Detach deletes the program, quad and textures. Idempotent.
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
	if wasAttached {
		l.Emit(layer.Event{Kind: layer.EventDetached, Layer: l.opts.ID})
	}
}

func (l *Layer) release(dev gpu.Device) {
	if l.image != 0 {
		dev.DeleteTexture(l.image)
	}
	if l.colormap != 0 {
		dev.DeleteTexture(l.colormap)
	}
	if l.vertices != 0 {
		dev.DeleteBuffer(l.vertices)
	}
	if l.program != 0 {
		dev.DeleteProgram(l.program)
	}
	l.image, l.colormap, l.vertices, l.program = 0, 0, 0, 0
}

// SetReadyForDisplay gates drawing.
func (l *Layer) SetReadyForDisplay(ready bool) {
	l.ready = ready
	if l.host != nil {
		l.host.TriggerRepaint()
	}
}

func (l *Layer) ReadyForDisplay() bool { return l.ready }
func (l *Layer) SourceLoaded() bool    { return l.sourceLoaded }

// Degraded reports whether the applied source fell back to the default range.
func (l *Layer) Degraded() bool { return l.degraded }

// ValueRange returns the range of the applied source.
func (l *Layer) ValueRange() colormap.Range { return l.valueRng }

// URL returns the most recently requested source.
func (l *Layer) URL() string { return l.url }

// SetOpacity changes the overlay opacity, clamped to [0,1].
func (l *Layer) SetOpacity(v float64) {
	l.opts.Opacity = max(0, min(1, v))
}

// Opacity returns the overlay opacity.
func (l *Layer) Opacity() float64 { return l.opts.Opacity }
