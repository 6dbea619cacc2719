package gpu

// MaxVaryings is the number of float slots a kernel can pass from the vertex
// stage to the fragment stage or to feedback outputs.
const MaxVaryings = 8

// Sampler reads a bound texture at normalized coordinates with the texture's
// filter and clamp-to-edge wrapping. Channels are in [0,1].
type Sampler interface {
	Sample(u, v float32) [4]float32
}

// AttribReader returns the current vertex's attribute, zero-padded to four
// components. Unbound names read as zeros.
type AttribReader interface {
	Attrib(name string) [4]float32
}

// VertexIn is the per-vertex input of a Kernel.
type VertexIn struct {
	Uniforms   Uniforms
	Samplers   map[string]Sampler
	Attribs    AttribReader
	VertexID   int
	InstanceID int
}

// VertexOut is the per-vertex result. For feedback passes Varying holds the
// captured outputs back to back, in Output order.
type VertexOut struct {
	Position  [4]float32
	PointSize float32
	Varying   [MaxVaryings]float32
}

// FragmentIn is the per-fragment input. PointCoord follows gl_PointCoord:
// origin at the upper left of the sprite.
type FragmentIn struct {
	Uniforms   Uniforms
	Samplers   map[string]Sampler
	Varying    [MaxVaryings]float32
	PointCoord [2]float32
}

// Kernel mirrors a GLSL program on the CPU.
type Kernel interface {
	Vertex(in *VertexIn) VertexOut
	// Fragment returns a non-premultiplied colour and false to discard.
	Fragment(in *FragmentIn) ([4]float32, bool)
}
