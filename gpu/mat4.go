package gpu

// Mat4 is a column-major 4x4 matrix, the layout glUniformMatrix4fv expects
// with transpose disabled. Element (row r, column c) lives at index c*4+r.
type Mat4 [16]float32

// Identity returns the identity matrix.
func Identity() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// At returns element (row, col).
func (m Mat4) At(row, col int) float32 { return m[col*4+row] }

// Mul returns m*n.
func (m Mat4) Mul(n Mat4) Mat4 {
	var out Mat4
	for c := range 4 {
		for r := range 4 {
			var s float32
			for k := range 4 {
				s += m[k*4+r] * n[c*4+k]
			}
			out[c*4+r] = s
		}
	}
	return out
}

// Transform returns m*v.
func (m Mat4) Transform(v [4]float32) [4]float32 {
	var out [4]float32
	for r := range 4 {
		out[r] = m[r]*v[0] + m[4+r]*v[1] + m[8+r]*v[2] + m[12+r]*v[3]
	}
	return out
}

// Ortho maps the rectangle [left,right]x[bottom,top] to clip space.
func Ortho(left, right, bottom, top float32) Mat4 {
	m := Identity()
	m[0] = 2 / (right - left)
	m[5] = 2 / (top - bottom)
	m[10] = -1
	m[12] = -(right + left) / (right - left)
	m[13] = -(top + bottom) / (top - bottom)
	return m
}
