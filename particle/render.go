package particle

import (
	"errors"
	"fmt"

	"github.com/pthm-cable/windlayer/gpu"
)

// Style is the per-draw appearance.
type Style struct {
	PointSize      float64
	SpeedFactor    float64
	TrailSizeDecay float64
	Opacity        float64
}

// Renderer owns the render program and the per-instance trail offsets
// 0..trailLength.
type Renderer struct {
	program   gpu.Program
	trail     gpu.Buffer
	instances int
}

// TrailOffsets returns the per-instance offsets for a trail of n segments.
func TrailOffsets(n int) []float32 {
	out := make([]float32, n+1)
	for i := range out {
		out[i] = float32(i)
	}
	return out
}

// NewRenderer compiles the render program and uploads the trail offsets.
func NewRenderer(dev gpu.Device, trailLength int) (*Renderer, error) {
	prog, err := dev.CompileProgram(gpu.ProgramSource{
		Name:     "particle-render",
		Vertex:   renderVertexShader,
		Fragment: renderFragmentShader,
		Kernel:   renderKernel{},
	})
	if err != nil {
		return nil, err
	}
	trail, err := dev.NewBuffer(TrailOffsets(trailLength))
	if err != nil {
		dev.DeleteProgram(prog)
		return nil, fmt.Errorf("allocating trail offsets: %w", err)
	}
	return &Renderer{program: prog, trail: trail, instances: trailLength + 1}, nil
}

// Instances is the number of sprites drawn per particle.
func (r *Renderer) Instances() int { return r.instances }

// Draw renders every particle of st.Current with its trail in one instanced
// call, blended over whatever the host has drawn.
func (r *Renderer) Draw(dev gpu.Device, st *State, f Field, colors gpu.Texture, matrix gpu.Mat4, s Style) error {
	if r == nil || st == nil {
		return errors.New("particle: renderer not initialized")
	}
	u := gpu.Uniforms{
		"u_matrix":           matrix,
		"u_point_size":       float32(s.PointSize),
		"u_speed_factor":     float32(s.SpeedFactor),
		"u_trail_size_decay": float32(s.TrailSizeDecay),
		"u_opacity":          float32(s.Opacity),
		"u_speed_range":      [2]float32{float32(f.Ranges.Speed.Min), float32(f.Ranges.Speed.Max)},
	}
	f.uniforms(u)

	cur := st.Current()
	return dev.Draw(gpu.DrawPass{
		Program:  r.program,
		Uniforms: u,
		Textures: []gpu.Binding{
			{Name: "u_velocity_texture", Texture: f.Velocity},
			{Name: "u_wind_color", Texture: colors},
		},
		Attribs: []gpu.Attrib{
			{Name: "a_position", Buffer: cur.Positions, Size: 2},
			{Name: "a_trail_offset", Buffer: r.trail, Size: 1, Divisor: 1},
		},
		Mode:      gpu.Points,
		Count:     st.Count(),
		Instances: r.instances,
		Blend:     true,
	})
}

// Release deletes the program and trail buffer.
func (r *Renderer) Release(dev gpu.Device) {
	if r == nil {
		return
	}
	if r.trail != 0 {
		dev.DeleteBuffer(r.trail)
		r.trail = 0
	}
	if r.program != 0 {
		dev.DeleteProgram(r.program)
		r.program = 0
	}
}
