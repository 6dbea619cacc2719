package particle

import (
	"math"
	"testing"

	"github.com/pthm-cable/windlayer/geo"
	"github.com/pthm-cable/windlayer/gpu"
)

var demoBounds = geo.Bounds{-121, 36, -117, 32}

func TestRandomRange(t *testing.T) {
	for i := range 1000 {
		x := float64(i%37) / 37
		y := float64(i/37) / 29
		r := Random(x, y, float64(i)*0.05)
		if r < 0 || r >= 1 {
			t.Fatalf("Random(%v,%v) = %v, want [0,1)", x, y, r)
		}
	}
	if Random(0.3, 0.7, 12.5) != Random(0.3, 0.7, 12.5) {
		t.Error("Random is not pure")
	}
}

func TestResetProbability(t *testing.T) {
	tests := []struct {
		name string
		age  float64
		want float64
	}{
		{"young", 10, 0},
		{"at threshold", 500, 0},
		{"midway", 750, 0.5},
		{"at max", 1000, 1},
		{"past max", 1200, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResetProbability(tt.age, 500, 1000); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("ResetProbability(%v) = %v, want %v", tt.age, got, tt.want)
			}
		})
	}
}

func TestDegreesPerFrame(t *testing.T) {
	dx, dy := DegreesPerFrame(1, 1, 0)
	if math.Abs(dx-MphToDegrees) > 1e-12 || math.Abs(dy+MphToDegrees) > 1e-12 {
		t.Errorf("equator: got %v,%v", dx, dy)
	}

	// longitude degrees shrink towards the pole, so the same wind covers more
	dx60, _ := DegreesPerFrame(1, 0, 60)
	if math.Abs(dx60-2*MphToDegrees) > 1e-5 {
		t.Errorf("60N: dx = %v, want ~%v", dx60, 2*MphToDegrees)
	}
}

func stepDefaults() stepParams {
	return stepParams{
		bounds:       demoBounds,
		speedFactor:  0.05,
		time:         3.25,
		ageThreshold: 500,
		maxAge:       1000,
	}
}

func TestStep(t *testing.T) {
	tests := []struct {
		name     string
		x, y     float64
		age      float64
		u, v     float64
		p        func(*stepParams)
		reason   ResetReason
		wantMove bool
	}{
		{name: "advects", x: 0.5, y: 0.5, age: 10, u: 20, v: 10, reason: ResetNone, wantMove: true},
		{name: "calm", x: 0.5, y: 0.5, age: 10, u: 1, v: 1, reason: ResetCalm},
		{name: "leaves east edge", x: 1, y: 0.5, age: 10, u: 20, reason: ResetOutOfBounds},
		{name: "leaves north edge", x: 0.5, y: 0, age: 10, v: 20, reason: ResetOutOfBounds},
		{name: "expired", x: 0.5, y: 0.5, age: 1000, u: 20, reason: ResetExpired, p: func(p *stepParams) {
			// keep the soft rule from firing first
			p.ageThreshold = 2000
			p.maxAge = 1000
		}},
		{name: "source change", x: 0.5, y: 0.5, age: 10, u: 20, reason: ResetSourceChange, p: func(p *stepParams) {
			p.shouldReset = true
			p.percentReset = 1
		}},
		{name: "source change off", x: 0.5, y: 0.5, age: 10, u: 20, reason: ResetNone, wantMove: true, p: func(p *stepParams) {
			p.shouldReset = true
			p.percentReset = 0
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := stepDefaults()
			if tt.p != nil {
				tt.p(&p)
			}
			nx, ny, nage, reason := step(tt.x, tt.y, tt.age, tt.u, tt.v, p)
			if reason != tt.reason {
				t.Fatalf("reason = %v, want %v", reason, tt.reason)
			}
			if nx < 0 || nx > 1 || ny < 0 || ny > 1 {
				t.Errorf("position (%v,%v) outside unit square", nx, ny)
			}
			if reason != ResetNone {
				if nage != 0 {
					t.Errorf("respawned age = %v, want 0", nage)
				}
				return
			}
			if nage != tt.age+1 {
				t.Errorf("age = %v, want %v", nage, tt.age+1)
			}
			if tt.wantMove && nx <= tt.x {
				t.Errorf("eastward wind moved x from %v to %v", tt.x, nx)
			}
			if tt.v > 0 && ny >= tt.y {
				t.Errorf("northward wind moved y from %v to %v", tt.y, ny)
			}
		})
	}
}

func TestStepSoftAgingBoundaries(t *testing.T) {
	p := stepDefaults()
	// age'=threshold: probability 0, never resets
	for i := range 200 {
		x := float64(i) / 200
		_, _, _, reason := step(x, 0.5, p.ageThreshold-1, 20, 0, p)
		if reason != ResetNone {
			t.Fatalf("particle at threshold reset (%v)", reason)
		}
	}
	// age'=maxAge: probability 1, always resets
	for i := range 200 {
		x := float64(i) / 200
		_, _, nage, reason := step(x, 0.5, p.maxAge-1, 20, 0, p)
		if reason == ResetNone || nage != 0 {
			t.Fatalf("particle at max age survived")
		}
	}
}

type constSampler [4]float32

func (s constSampler) Sample(float32, float32) [4]float32 { return s }

type attribMap map[string][4]float32

func (m attribMap) Attrib(name string) [4]float32 { return m[name] }

func TestRenderKernelTrail(t *testing.T) {
	minX, minY, maxX, maxY := demoBounds.MercatorBounds()
	u := gpu.Uniforms{
		"u_matrix":           gpu.Ortho(float32(minX), float32(maxX), float32(maxY), float32(minY)),
		"u_bounds":           demoBounds.Vec4(),
		"u_point_size":       float32(5),
		"u_speed_factor":     float32(0.05),
		"u_trail_size_decay": float32(0.8),
		"u_value_range_u":    [2]float32{-20, 20},
		"u_value_range_v":    [2]float32{-20, 20},
		"u_speed_range":      [2]float32{0, 30},
	}
	samplers := map[string]gpu.Sampler{"u_velocity_texture": constSampler{1, 0.5, 0, 1}}

	var outs []gpu.VertexOut
	for offset := range 4 {
		in := gpu.VertexIn{
			Uniforms: u,
			Samplers: samplers,
			Attribs: attribMap{
				"a_position":     {0.5, 0.5},
				"a_trail_offset": {float32(offset)},
			},
		}
		outs = append(outs, renderKernel{}.Vertex(&in))
	}

	head := outs[0]
	if head.PointSize != 5 {
		t.Errorf("head size = %v, want 5", head.PointSize)
	}
	if want := float32(5 * math.Pow(0.8, 3)); math.Abs(float64(outs[3].PointSize-want)) > 1e-5 {
		t.Errorf("tail size = %v, want %v", outs[3].PointSize, want)
	}
	for i, o := range outs {
		if o.Varying[0] != head.Varying[0] {
			t.Errorf("segment %d colour coordinate %v differs from head %v", i, o.Varying[0], head.Varying[0])
		}
	}
	// u=+20 mph (eastward): each trail segment sits further west
	for i := 1; i < len(outs); i++ {
		if outs[i].Position[0] >= outs[i-1].Position[0] {
			t.Errorf("segment %d x=%v not west of %v", i, outs[i].Position[0], outs[i-1].Position[0])
		}
	}
	if want := float32(20.0 / 30.0); math.Abs(float64(head.Varying[0]-want)) > 1e-5 {
		t.Errorf("normalized speed = %v, want %v", head.Varying[0], want)
	}
}

func TestRenderKernelFragment(t *testing.T) {
	in := gpu.FragmentIn{
		Uniforms: gpu.Uniforms{"u_opacity": float32(0.9)},
		Samplers: map[string]gpu.Sampler{"u_wind_color": constSampler{0, 0.5, 1, 1}},
	}

	in.PointCoord = [2]float32{0.5, 0.5}
	c, ok := renderKernel{}.Fragment(&in)
	if !ok {
		t.Fatal("centre fragment discarded")
	}
	if c[0] != 0.2 || c[1] != 0.5 || c[2] != 1 {
		t.Errorf("colour = %v, want channels floored at 0.2", c)
	}
	if math.Abs(float64(c[3]-0.9)) > 1e-6 {
		t.Errorf("alpha = %v, want 0.9", c[3])
	}

	in.PointCoord = [2]float32{0.95, 0.95}
	if _, ok := (renderKernel{}).Fragment(&in); ok {
		t.Error("corner fragment kept")
	}
}
