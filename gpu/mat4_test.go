package gpu

import (
	"math"
	"testing"
)

func near(a, b float32) bool { return math.Abs(float64(a-b)) < 1e-5 }

func TestOrthoCorners(t *testing.T) {
	m := Ortho(0, 1, 1, 0) // y down, like mercator space
	tests := []struct {
		in   [4]float32
		want [2]float32
	}{
		{[4]float32{0, 0, 0, 1}, [2]float32{-1, 1}},
		{[4]float32{1, 1, 0, 1}, [2]float32{1, -1}},
		{[4]float32{0.5, 0.5, 0, 1}, [2]float32{0, 0}},
	}
	for _, tt := range tests {
		got := m.Transform(tt.in)
		if !near(got[0], tt.want[0]) || !near(got[1], tt.want[1]) || !near(got[3], 1) {
			t.Errorf("Transform(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestMulIdentity(t *testing.T) {
	m := Ortho(-3, 5, -2, 7)
	if got := m.Mul(Identity()); got != m {
		t.Errorf("m*I = %v", got)
	}
	if got := Identity().Mul(m); got != m {
		t.Errorf("I*m = %v", got)
	}
}

func TestMulComposes(t *testing.T) {
	a := Ortho(0, 2, 0, 2)
	b := Ortho(-1, 1, -1, 1)
	v := [4]float32{0.25, 0.75, 0, 1}
	got := a.Mul(b).Transform(v)
	want := a.Transform(b.Transform(v))
	for i := range 4 {
		if !near(got[i], want[i]) {
			t.Fatalf("(a*b)v = %v, a(bv) = %v", got, want)
		}
	}
	if a.At(0, 3) != a[12] {
		t.Error("At(0,3) should read the translation column")
	}
}

func TestUniformsDefaults(t *testing.T) {
	u := Uniforms{"f": float32(2), "flag": true}
	if u.Float("f") != 2 || !u.Bool("flag") {
		t.Error("stored values not returned")
	}
	if u.Float("missing") != 0 || u.Vec2("missing") != ([2]float32{}) {
		t.Error("missing values should be zero")
	}
	if u.Mat4("missing") != Identity() {
		t.Error("missing matrix should be identity")
	}
}
