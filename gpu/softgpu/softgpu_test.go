package softgpu

import (
	"errors"
	"image/color"
	"math"
	"testing"

	"github.com/pthm-cable/windlayer/gpu"
)

// doubler captures 2*a_value and a_value+1 through feedback.
type doubler struct{}

func (doubler) Vertex(in *gpu.VertexIn) gpu.VertexOut {
	v := in.Attribs.Attrib("a_value")[0]
	var out gpu.VertexOut
	out.Varying[0] = 2 * v
	out.Varying[1] = v + in.Uniforms.Float("u_add")
	return out
}

func (doubler) Fragment(*gpu.FragmentIn) ([4]float32, bool) { return [4]float32{}, false }

// flat draws opaque-ish red points at attribute positions given in clip space.
type flat struct{}

func (flat) Vertex(in *gpu.VertexIn) gpu.VertexOut {
	p := in.Attribs.Attrib("a_pos")
	off := in.Attribs.Attrib("a_offset")[0]
	return gpu.VertexOut{
		Position:  [4]float32{p[0] + off, p[1], 0, 1},
		PointSize: in.Uniforms.Float("u_size"),
		Varying:   [gpu.MaxVaryings]float32{p[0]},
	}
}

func (flat) Fragment(in *gpu.FragmentIn) ([4]float32, bool) {
	dx := in.PointCoord[0] - 0.5
	dy := in.PointCoord[1] - 0.5
	if math.Sqrt(float64(dx*dx+dy*dy)) > 0.5 {
		return [4]float32{}, false
	}
	return [4]float32{1, 0, 0, in.Uniforms.Float("u_alpha")}, true
}

// texquad samples a texture over a quad given in [0,1] space.
type texquad struct{}

func (texquad) Vertex(in *gpu.VertexIn) gpu.VertexOut {
	p := in.Attribs.Attrib("a_pos")
	return gpu.VertexOut{
		Position: [4]float32{p[0]*2 - 1, 1 - p[1]*2, 0, 1},
		Varying:  [gpu.MaxVaryings]float32{p[0], p[1]},
	}
}

func (texquad) Fragment(in *gpu.FragmentIn) ([4]float32, bool) {
	return in.Samplers["u_tex"].Sample(in.Varying[0], in.Varying[1]), true
}

func TestFeedbackPass(t *testing.T) {
	d := New(4, 4)
	prog, err := d.CompileProgram(gpu.ProgramSource{Name: "doubler", Varyings: []string{"v_a", "v_b"}, Kernel: doubler{}})
	if err != nil {
		t.Fatal(err)
	}
	in, _ := d.NewBuffer([]float32{1, 2, 3})
	outA, _ := d.NewBuffer(make([]float32, 3))
	outB, _ := d.NewBuffer(make([]float32, 3))
	fb, _ := d.NewFeedback()

	err = d.RunFeedback(gpu.FeedbackPass{
		Program:  prog,
		Feedback: fb,
		Uniforms: gpu.Uniforms{"u_add": float32(10)},
		Attribs:  []gpu.Attrib{{Name: "a_value", Buffer: in, Size: 1}},
		Outputs:  []gpu.Output{{Buffer: outA, Size: 1}, {Buffer: outB, Size: 1}},
		Count:    3,
	})
	if err != nil {
		t.Fatal(err)
	}

	a := make([]float32, 3)
	b := make([]float32, 3)
	d.ReadBuffer(outA, a)
	d.ReadBuffer(outB, b)
	if a[0] != 2 || a[1] != 4 || a[2] != 6 {
		t.Errorf("outA = %v", a)
	}
	if b[0] != 11 || b[2] != 13 {
		t.Errorf("outB = %v", b)
	}
	if d.Stats().FeedbackPasses != 1 {
		t.Errorf("stats = %+v", d.Stats())
	}
}

func TestFeedbackOutputMismatch(t *testing.T) {
	d := New(1, 1)
	prog, _ := d.CompileProgram(gpu.ProgramSource{Name: "doubler", Varyings: []string{"v_a", "v_b"}, Kernel: doubler{}})
	out, _ := d.NewBuffer(make([]float32, 1))
	fb, _ := d.NewFeedback()
	err := d.RunFeedback(gpu.FeedbackPass{Program: prog, Feedback: fb, Outputs: []gpu.Output{{Buffer: out, Size: 1}}, Count: 1})
	if err == nil {
		t.Error("expected error for missing output")
	}
}

func TestInstancedPoints(t *testing.T) {
	d := New(20, 10)
	d.Clear(color.RGBA{0, 0, 0, 255})
	prog, _ := d.CompileProgram(gpu.ProgramSource{Name: "flat", Kernel: flat{}})
	pos, _ := d.NewBuffer([]float32{-0.5, 0})
	offsets, _ := d.NewBuffer([]float32{0, 1})

	err := d.Draw(gpu.DrawPass{
		Program:  prog,
		Uniforms: gpu.Uniforms{"u_size": float32(4), "u_alpha": float32(1)},
		Attribs: []gpu.Attrib{
			{Name: "a_pos", Buffer: pos, Size: 2},
			{Name: "a_offset", Buffer: offsets, Size: 1, Divisor: 1},
		},
		Mode:      gpu.Points,
		Count:     1,
		Instances: 2,
		Blend:     true,
	})
	if err != nil {
		t.Fatal(err)
	}

	// clip x -0.5 -> pixel 5, clip x 0.5 -> pixel 15, both on row 5
	for _, x := range []int{5, 15} {
		if p := d.Pixel(x, 5); p[0] < 0.99 {
			t.Errorf("pixel (%d,5) = %v, want red", x, p)
		}
	}
	if p := d.Pixel(10, 5); p[0] != 0 {
		t.Errorf("pixel between sprites = %v", p)
	}
	// corners of the 4px sprite fall outside the circle
	if d.Stats().Discarded == 0 {
		t.Error("expected discarded corner fragments")
	}
	if d.Stats().Vertices != 2 {
		t.Errorf("vertices = %d, want 2", d.Stats().Vertices)
	}
}

func TestBlending(t *testing.T) {
	d := New(4, 4)
	d.Clear(color.RGBA{0, 0, 255, 255})
	prog, _ := d.CompileProgram(gpu.ProgramSource{Name: "flat", Kernel: flat{}})
	pos, _ := d.NewBuffer([]float32{0, 0})
	offsets, _ := d.NewBuffer([]float32{0})

	d.Draw(gpu.DrawPass{
		Program:  prog,
		Uniforms: gpu.Uniforms{"u_size": float32(2), "u_alpha": float32(0.5)},
		Attribs:  []gpu.Attrib{{Name: "a_pos", Buffer: pos, Size: 2}, {Name: "a_offset", Buffer: offsets, Size: 1, Divisor: 1}},
		Mode:     gpu.Points,
		Count:    1,
		Blend:    true,
	})
	p := d.Pixel(2, 2)
	if math.Abs(float64(p[0]-0.5)) > 1e-6 || math.Abs(float64(p[2]-0.5)) > 1e-6 {
		t.Errorf("blended pixel = %v, want half red half blue", p)
	}
}

func TestTexturedQuad(t *testing.T) {
	d := New(2, 2)
	prog, _ := d.CompileProgram(gpu.ProgramSource{Name: "texquad", Kernel: texquad{}})
	quad, _ := d.NewBuffer([]float32{0, 0, 1, 0, 0, 1, 0, 1, 1, 0, 1, 1})
	tex, err := d.NewTexture(gpu.TextureDesc{
		Width:  2,
		Height: 2,
		Pixels: []byte{
			255, 0, 0, 255, 0, 255, 0, 255,
			0, 0, 255, 255, 255, 255, 255, 255,
		},
		Filter: gpu.Nearest,
	})
	if err != nil {
		t.Fatal(err)
	}

	err = d.Draw(gpu.DrawPass{
		Program:  prog,
		Textures: []gpu.Binding{{Name: "u_tex", Texture: tex}},
		Attribs:  []gpu.Attrib{{Name: "a_pos", Buffer: quad, Size: 2}},
		Mode:     gpu.Triangles,
		Count:    6,
	})
	if err != nil {
		t.Fatal(err)
	}

	img := d.Image()
	want := map[[2]int]color.RGBA{
		{0, 0}: {255, 0, 0, 255},
		{1, 0}: {0, 255, 0, 255},
		{0, 1}: {0, 0, 255, 255},
		{1, 1}: {255, 255, 255, 255},
	}
	for xy, c := range want {
		if got := img.RGBAAt(xy[0], xy[1]); got != c {
			t.Errorf("pixel %v = %v, want %v", xy, got, c)
		}
	}
}

func TestLinearSampling(t *testing.T) {
	tex := &texture{w: 2, h: 1, pix: []byte{0, 0, 0, 255, 255, 255, 255, 255}, filter: gpu.Linear}
	s := sampler{tex: tex}
	if got := s.Sample(0.5, 0.5)[0]; math.Abs(float64(got-0.5)) > 1e-6 {
		t.Errorf("midpoint = %v, want 0.5", got)
	}
	if got := s.Sample(0, 0.5)[0]; got != 0 {
		t.Errorf("left edge = %v, want clamp to 0", got)
	}
	if got := s.Sample(1, 0.5)[0]; got != 1 {
		t.Errorf("right edge = %v, want clamp to 1", got)
	}
}

func TestResourceLifecycle(t *testing.T) {
	d := New(1, 1)
	d.FailCompile("broken")
	if _, err := d.CompileProgram(gpu.ProgramSource{Name: "broken", Kernel: flat{}}); !errors.Is(err, gpu.ErrProgram) {
		t.Errorf("err = %v, want ErrProgram", err)
	}
	if _, err := d.CompileProgram(gpu.ProgramSource{Name: "nokernel"}); !errors.Is(err, gpu.ErrProgram) {
		t.Errorf("err = %v, want ErrProgram", err)
	}

	p, _ := d.CompileProgram(gpu.ProgramSource{Name: "flat", Kernel: flat{}})
	b, _ := d.NewBuffer([]float32{1})
	tex, _ := d.NewTexture(gpu.TextureDesc{Width: 1, Height: 1, Pixels: []byte{1, 2, 3, 4}})
	f, _ := d.NewFeedback()
	if got := d.Live().Total(); got != 4 {
		t.Fatalf("live = %d, want 4", got)
	}
	d.DeleteProgram(p)
	d.DeleteBuffer(b)
	d.DeleteTexture(tex)
	d.DeleteFeedback(f)
	if got := d.Live(); got.Total() != 0 {
		t.Errorf("live after delete = %+v", got)
	}
}
