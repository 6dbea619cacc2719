package viewer

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/color/palette"
	"image/gif"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/image/draw"

	"github.com/pthm-cable/windlayer/gpu/softgpu"
	"github.com/pthm-cable/windlayer/layer"
)

// Background is the clear colour behind the layers.
var Background = color.RGBA{R: 18, G: 22, B: 30, A: 255}

// HeadlessOptions controls an offscreen run.
type HeadlessOptions struct {
	Frames        int
	FrameInterval time.Duration // simulated time per frame
	SnapshotEvery int           // 0 = never
	GIF           bool
	GIFDelay      int // hundredths of a second
}

// Headless renders frames with the software device and a manual clock, so a
// run with a fixed seed is reproducible.
type Headless struct {
	*Viewer
	dev   *softgpu.Device
	clock *layer.ManualClock
	opts  HeadlessOptions

	frames []*image.Paletted
	delays []int
}

// NewHeadless builds a viewer on a software device of the configured size.
func NewHeadless(v *Viewer, dev *softgpu.Device, clock *layer.ManualClock, opts HeadlessOptions) *Headless {
	if opts.GIFDelay <= 0 {
		opts.GIFDelay = 4
	}
	return &Headless{Viewer: v, dev: dev, clock: clock, opts: opts}
}

// Run waits for the first sources, then renders opts.Frames frames. Timestep
// changes wait for their sources before the next frame so output does not
// depend on fetch latency.
func (h *Headless) Run(ctx context.Context) error {
	if err := h.AwaitSources(ctx); err != nil {
		return fmt.Errorf("loading initial sources: %w", err)
	}
	h.logger.Info("starting headless run",
		"frames", h.opts.Frames,
		"frame_interval", h.opts.FrameInterval,
		"snapshot_every", h.opts.SnapshotEvery,
	)

	for i := 0; i < h.opts.Frames; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		h.clock.Advance(h.opts.FrameInterval)
		if h.Update(float32(h.opts.FrameInterval.Seconds())) {
			if err := h.AwaitSources(ctx); err != nil {
				h.logger.Warn("timestep sources", "error", err)
			}
		}

		h.dev.Clear(Background)
		h.Render()
		if h.opts.SnapshotEvery > 0 && i%h.opts.SnapshotEvery == 0 {
			if err := h.capture(); err != nil {
				return err
			}
		}
		h.EndFrame()
	}

	if _, err := h.SaveSnapshot(); err != nil {
		h.logger.Warn("saving snapshot", "error", err)
	}
	if h.opts.GIF && len(h.frames) > 0 && h.out != nil {
		path := filepath.Join(h.out.Dir(), "run.gif")
		if err := h.saveGIF(path); err != nil {
			return err
		}
		h.logger.Info("wrote gif", "path", path, "frames", len(h.frames))
	}
	h.logger.Info("headless run complete", "frames", h.frame)
	return nil
}

// capture writes the current frame as PNG, queues it for the GIF and records
// particle statistics.
func (h *Headless) capture() error {
	if _, err := h.RecordParticles(); err != nil {
		h.logger.Warn("recording particles", "error", err)
	}
	if h.out == nil {
		return nil
	}
	img := h.dev.Image()

	dir := filepath.Join(h.out.Dir(), "frames")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating frames dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("frame_%05d.png", h.frame))
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	if h.opts.GIF {
		h.frames = append(h.frames, quantize(img))
		h.delays = append(h.delays, h.opts.GIFDelay)
	}
	return nil
}

// quantize reduces img to the web-safe palette with dithering.
func quantize(img image.Image) *image.Paletted {
	p := image.NewPaletted(img.Bounds(), palette.WebSafe)
	draw.FloydSteinberg.Draw(p, img.Bounds(), img, img.Bounds().Min)
	return p
}

// saveGIF saves the accumulated frames as a GIF file
func (h *Headless) saveGIF(filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	return gif.EncodeAll(f, &gif.GIF{
		Image: h.frames,
		Delay: h.delays,
	})
}
