// Package gpu describes the small slice of a GPU API the layers need:
// programs with optional transform-feedback outputs, float vertex buffers,
// RGBA8 textures, and two pass types (capture and instanced draw).
//
// Two devices implement it. glgpu drives OpenGL 3.3 core on the render thread.
// softgpu executes the CPU kernels attached to each ProgramSource and
// rasterizes into an in-memory framebuffer for headless runs and tests.
package gpu

import "errors"

// ErrProgram is wrapped by CompileProgram when a shader fails to compile or link.
var ErrProgram = errors.New("gpu: program build failed")

// Handles are opaque to callers. Zero is never a live handle.
type (
	Program  uint32
	Buffer   uint32
	Texture  uint32
	Feedback uint32
)

// Filter selects texture minification/magnification.
type Filter int

const (
	Nearest Filter = iota
	Linear
)

// Primitive is the draw topology.
type Primitive int

const (
	Points Primitive = iota
	Triangles
)

// ProgramSource is a vertex+fragment pair. Varyings, when set, are captured
// with separate attribs in the listed order. Kernel is the CPU rendition used
// by software devices; GL devices ignore it.
type ProgramSource struct {
	Name     string
	Vertex   string
	Fragment string
	Varyings []string
	Kernel   Kernel
}

// TextureDesc describes an RGBA8 texture upload. Pixels are row-major,
// top row first, 4 bytes per texel.
type TextureDesc struct {
	Width  int
	Height int
	Pixels []byte
	Filter Filter
}

// Binding attaches a texture to a sampler uniform.
type Binding struct {
	Name    string
	Texture Texture
}

// Attrib feeds a float buffer to a vertex attribute. Size is the component
// count (1 to 4). Divisor 0 advances per vertex, 1 per instance.
type Attrib struct {
	Name    string
	Buffer  Buffer
	Size    int
	Divisor int
}

// Output is one transform-feedback target with its component count.
type Output struct {
	Buffer Buffer
	Size   int
}

// FeedbackPass runs the vertex stage over Count points with rasterization
// disabled and writes each captured varying into the matching Output.
type FeedbackPass struct {
	Program  Program
	Feedback Feedback
	Uniforms Uniforms
	Textures []Binding
	Attribs  []Attrib
	Outputs  []Output
	Count    int
}

// DrawPass draws Count vertices, Instances times when Instances > 0.
// Blend enables SRC_ALPHA / ONE_MINUS_SRC_ALPHA for the duration of the pass.
type DrawPass struct {
	Program   Program
	Uniforms  Uniforms
	Textures  []Binding
	Attribs   []Attrib
	Mode      Primitive
	Count     int
	Instances int
	Blend     bool
}

// Device is the resource and pass API. All methods must be called from the
// thread that owns the underlying context.
type Device interface {
	CompileProgram(src ProgramSource) (Program, error)
	DeleteProgram(p Program)

	NewBuffer(data []float32) (Buffer, error)
	WriteBuffer(b Buffer, data []float32) error
	ReadBuffer(b Buffer, dst []float32) error
	DeleteBuffer(b Buffer)

	NewTexture(desc TextureDesc) (Texture, error)
	DeleteTexture(t Texture)

	NewFeedback() (Feedback, error)
	DeleteFeedback(f Feedback)

	RunFeedback(pass FeedbackPass) error
	Draw(pass DrawPass) error
}
