package gpu

// Uniforms maps uniform names to values. Supported value types are float32,
// [2]float32, [4]float32, Mat4, bool and int32.
type Uniforms map[string]any

// Float returns a float32 uniform, or 0.
func (u Uniforms) Float(name string) float32 {
	v, _ := u[name].(float32)
	return v
}

// Vec2 returns a [2]float32 uniform, or zeros.
func (u Uniforms) Vec2(name string) [2]float32 {
	v, _ := u[name].([2]float32)
	return v
}

// Vec4 returns a [4]float32 uniform, or zeros.
func (u Uniforms) Vec4(name string) [4]float32 {
	v, _ := u[name].([4]float32)
	return v
}

// Mat4 returns a matrix uniform, or identity when unset.
func (u Uniforms) Mat4(name string) Mat4 {
	if v, ok := u[name].(Mat4); ok {
		return v
	}
	return Identity()
}

// Bool returns a bool uniform, or false.
func (u Uniforms) Bool(name string) bool {
	v, _ := u[name].(bool)
	return v
}

// Int returns an int32 uniform, or 0.
func (u Uniforms) Int(name string) int32 {
	v, _ := u[name].(int32)
	return v
}
