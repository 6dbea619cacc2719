// Package softgpu is a CPU implementation of gpu.Device. It runs the Kernel
// attached to each program and rasterizes points and triangles into an RGBA
// framebuffer. It backs the headless mode and the layer tests.
package softgpu

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/pthm-cable/windlayer/gpu"
)

// Stats counts work submitted since the last ResetStats.
type Stats struct {
	FeedbackPasses int
	DrawCalls      int
	Vertices       int
	Fragments      int
	Discarded      int
}

// Resources counts live handles per kind.
type Resources struct {
	Programs  int
	Buffers   int
	Textures  int
	Feedbacks int
}

// Total returns the number of live handles.
func (r Resources) Total() int { return r.Programs + r.Buffers + r.Textures + r.Feedbacks }

type program struct {
	name     string
	varyings []string
	kernel   gpu.Kernel
}

type texture struct {
	w, h   int
	pix    []byte
	filter gpu.Filter
}

// Device is a software gpu.Device with a fixed-size framebuffer.
type Device struct {
	width, height int
	fb            []float32

	next      uint32
	programs  map[gpu.Program]*program
	buffers   map[gpu.Buffer][]float32
	textures  map[gpu.Texture]*texture
	feedbacks map[gpu.Feedback]bool

	failing map[string]bool
	stats   Stats
}

// New returns a device with a cleared width x height framebuffer.
func New(width, height int) *Device {
	return &Device{
		width:     width,
		height:    height,
		fb:        make([]float32, width*height*4),
		programs:  make(map[gpu.Program]*program),
		buffers:   make(map[gpu.Buffer][]float32),
		textures:  make(map[gpu.Texture]*texture),
		feedbacks: make(map[gpu.Feedback]bool),
		failing:   make(map[string]bool),
	}
}

// Size returns the framebuffer dimensions.
func (d *Device) Size() (int, int) { return d.width, d.height }

// FailCompile makes every later CompileProgram for name fail, as a driver
// rejecting the shader would.
func (d *Device) FailCompile(name string) { d.failing[name] = true }

// Stats returns counters accumulated since the last ResetStats.
func (d *Device) Stats() Stats { return d.stats }

// ResetStats zeroes the counters.
func (d *Device) ResetStats() { d.stats = Stats{} }

// Live returns the number of handles not yet deleted.
func (d *Device) Live() Resources {
	return Resources{
		Programs:  len(d.programs),
		Buffers:   len(d.buffers),
		Textures:  len(d.textures),
		Feedbacks: len(d.feedbacks),
	}
}

// Clear fills the framebuffer with c.
func (d *Device) Clear(c color.RGBA) {
	v := [4]float32{float32(c.R) / 255, float32(c.G) / 255, float32(c.B) / 255, float32(c.A) / 255}
	for i := 0; i < len(d.fb); i += 4 {
		copy(d.fb[i:i+4], v[:])
	}
}

// Image returns a copy of the framebuffer.
func (d *Device) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, d.width, d.height))
	for i, v := range d.fb {
		img.Pix[i] = uint8(math.Round(float64(clamp01(v)) * 255))
	}
	return img
}

// Pixel returns the framebuffer colour at (x, y), origin top left.
func (d *Device) Pixel(x, y int) [4]float32 {
	i := (y*d.width + x) * 4
	return [4]float32{d.fb[i], d.fb[i+1], d.fb[i+2], d.fb[i+3]}
}

func (d *Device) handle() uint32 {
	d.next++
	return d.next
}

// CompileProgram implements gpu.Device.
func (d *Device) CompileProgram(src gpu.ProgramSource) (gpu.Program, error) {
	if d.failing[src.Name] {
		return 0, fmt.Errorf("%w: %s: compile error: rejected by device", gpu.ErrProgram, src.Name)
	}
	if src.Kernel == nil {
		return 0, fmt.Errorf("%w: %s: no cpu kernel", gpu.ErrProgram, src.Name)
	}
	if len(src.Varyings) > gpu.MaxVaryings {
		return 0, fmt.Errorf("%w: %s: too many varyings", gpu.ErrProgram, src.Name)
	}
	p := gpu.Program(d.handle())
	d.programs[p] = &program{name: src.Name, varyings: src.Varyings, kernel: src.Kernel}
	return p, nil
}

// DeleteProgram implements gpu.Device.
func (d *Device) DeleteProgram(p gpu.Program) { delete(d.programs, p) }

// NewBuffer implements gpu.Device.
func (d *Device) NewBuffer(data []float32) (gpu.Buffer, error) {
	b := gpu.Buffer(d.handle())
	d.buffers[b] = append([]float32(nil), data...)
	return b, nil
}

// WriteBuffer implements gpu.Device. The buffer is resized to len(data).
func (d *Device) WriteBuffer(b gpu.Buffer, data []float32) error {
	if _, ok := d.buffers[b]; !ok {
		return fmt.Errorf("softgpu: unknown buffer %d", b)
	}
	d.buffers[b] = append(d.buffers[b][:0], data...)
	return nil
}

// ReadBuffer implements gpu.Device.
func (d *Device) ReadBuffer(b gpu.Buffer, dst []float32) error {
	buf, ok := d.buffers[b]
	if !ok {
		return fmt.Errorf("softgpu: unknown buffer %d", b)
	}
	if len(dst) > len(buf) {
		return fmt.Errorf("softgpu: read of %d floats from buffer of %d", len(dst), len(buf))
	}
	copy(dst, buf)
	return nil
}

// DeleteBuffer implements gpu.Device.
func (d *Device) DeleteBuffer(b gpu.Buffer) { delete(d.buffers, b) }

// NewTexture implements gpu.Device.
func (d *Device) NewTexture(desc gpu.TextureDesc) (gpu.Texture, error) {
	if desc.Width <= 0 || desc.Height <= 0 || len(desc.Pixels) < desc.Width*desc.Height*4 {
		return 0, fmt.Errorf("softgpu: bad texture %dx%d with %d bytes", desc.Width, desc.Height, len(desc.Pixels))
	}
	t := gpu.Texture(d.handle())
	d.textures[t] = &texture{
		w:      desc.Width,
		h:      desc.Height,
		pix:    append([]byte(nil), desc.Pixels[:desc.Width*desc.Height*4]...),
		filter: desc.Filter,
	}
	return t, nil
}

// DeleteTexture implements gpu.Device.
func (d *Device) DeleteTexture(t gpu.Texture) { delete(d.textures, t) }

// NewFeedback implements gpu.Device.
func (d *Device) NewFeedback() (gpu.Feedback, error) {
	f := gpu.Feedback(d.handle())
	d.feedbacks[f] = true
	return f, nil
}

// DeleteFeedback implements gpu.Device.
func (d *Device) DeleteFeedback(f gpu.Feedback) { delete(d.feedbacks, f) }

func clamp01(v float32) float32 {
	return max(0, min(1, v))
}
