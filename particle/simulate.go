package particle

import (
	"errors"
	"fmt"

	"github.com/pthm-cable/windlayer/geo"
	"github.com/pthm-cable/windlayer/gpu"
	"github.com/pthm-cable/windlayer/source"
)

// Field is the uploaded wind field both stages sample.
type Field struct {
	Velocity gpu.Texture
	Ranges   source.VectorRanges
	Bounds   geo.Bounds
}

func (f Field) uniforms(u gpu.Uniforms) {
	u["u_bounds"] = f.Bounds.Vec4()
	u["u_value_range_u"] = [2]float32{float32(f.Ranges.U.Min), float32(f.Ranges.U.Max)}
	u["u_value_range_v"] = [2]float32{float32(f.Ranges.V.Min), float32(f.Ranges.V.Max)}
}

// StepParams are the per-step simulation inputs.
type StepParams struct {
	SpeedFactor  float64
	TimeSeconds  float64
	AgeThreshold float64
	MaxAge       float64
	// ResetFraction is applied only when Reset is set.
	ResetFraction float64
	Reset         bool
}

// Simulator owns the update program and the feedback object.
type Simulator struct {
	program  gpu.Program
	feedback gpu.Feedback
}

// NewSimulator compiles the update program.
func NewSimulator(dev gpu.Device) (*Simulator, error) {
	prog, err := dev.CompileProgram(gpu.ProgramSource{
		Name:     "particle-update",
		Vertex:   updateVertexShader,
		Fragment: updateFragmentShader,
		Varyings: []string{"v_position", "v_age"},
		Kernel:   updateKernel{},
	})
	if err != nil {
		return nil, err
	}
	fb, err := dev.NewFeedback()
	if err != nil {
		dev.DeleteProgram(prog)
		return nil, fmt.Errorf("creating feedback: %w", err)
	}
	return &Simulator{program: prog, feedback: fb}, nil
}

// Step reads st.Current, writes st.Next and advances the generation. On error
// the generation is left unchanged.
func (s *Simulator) Step(dev gpu.Device, st *State, f Field, p StepParams) error {
	if s == nil || st == nil {
		return errors.New("particle: simulator not initialized")
	}
	u := gpu.Uniforms{
		"u_speed_factor":  float32(p.SpeedFactor),
		"u_time":          float32(p.TimeSeconds),
		"u_age_threshold": float32(p.AgeThreshold),
		"u_max_age":       float32(p.MaxAge),
		"u_percent_reset": float32(p.ResetFraction),
		"u_should_reset":  p.Reset,
	}
	f.uniforms(u)

	cur, next := st.Current(), st.Next()
	err := dev.RunFeedback(gpu.FeedbackPass{
		Program:  s.program,
		Feedback: s.feedback,
		Uniforms: u,
		Textures: []gpu.Binding{{Name: "u_velocity_texture", Texture: f.Velocity}},
		Attribs: []gpu.Attrib{
			{Name: "a_position", Buffer: cur.Positions, Size: 2},
			{Name: "a_age", Buffer: cur.Ages, Size: 1},
		},
		Outputs: []gpu.Output{
			{Buffer: next.Positions, Size: 2},
			{Buffer: next.Ages, Size: 1},
		},
		Count: st.Count(),
	})
	if err != nil {
		return fmt.Errorf("simulating %s->%s: %w", st.Generation(), st.Generation().Other(), err)
	}
	st.Advance()
	return nil
}

// Release deletes the program and feedback object.
func (s *Simulator) Release(dev gpu.Device) {
	if s == nil {
		return
	}
	if s.feedback != 0 {
		dev.DeleteFeedback(s.feedback)
		s.feedback = 0
	}
	if s.program != 0 {
		dev.DeleteProgram(s.program)
		s.program = 0
	}
}
