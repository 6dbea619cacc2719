package glgpu

import (
	"fmt"

	"github.com/go-gl/gl/v3.3-core/gl"

	"github.com/pthm-cable/windlayer/gpu"
)

func (d *Device) setUniforms(p gpu.Program, info *programInfo, u gpu.Uniforms) error {
	for name, value := range u {
		loc := info.uniform(p, name)
		if loc < 0 {
			// optimized out by the driver
			continue
		}
		switch v := value.(type) {
		case float32:
			gl.Uniform1f(loc, v)
		case [2]float32:
			gl.Uniform2f(loc, v[0], v[1])
		case [4]float32:
			gl.Uniform4f(loc, v[0], v[1], v[2], v[3])
		case gpu.Mat4:
			gl.UniformMatrix4fv(loc, 1, false, &v[0])
		case bool:
			var i int32
			if v {
				i = 1
			}
			gl.Uniform1i(loc, i)
		case int32:
			gl.Uniform1i(loc, v)
		default:
			return fmt.Errorf("glgpu: %s: uniform %s has unsupported type %T", info.name, name, value)
		}
	}
	return nil
}

func (d *Device) bindTextures(p gpu.Program, info *programInfo, bindings []gpu.Binding) {
	for i, b := range bindings {
		gl.ActiveTexture(gl.TEXTURE0 + uint32(i))
		gl.BindTexture(gl.TEXTURE_2D, uint32(b.Texture))
		if loc := info.uniform(p, b.Name); loc >= 0 {
			gl.Uniform1i(loc, int32(i))
		}
	}
}

func (d *Device) unbindTextures(bindings []gpu.Binding) {
	for i := range bindings {
		gl.ActiveTexture(gl.TEXTURE0 + uint32(i))
		gl.BindTexture(gl.TEXTURE_2D, 0)
	}
	gl.ActiveTexture(gl.TEXTURE0)
}

// bindAttribs enables the given attributes and returns their locations so
// they can be disabled afterwards.
func (d *Device) bindAttribs(p gpu.Program, info *programInfo, attribs []gpu.Attrib) []uint32 {
	locs := make([]uint32, 0, len(attribs))
	for _, a := range attribs {
		loc := info.attrib(p, a.Name)
		if loc < 0 {
			continue
		}
		l := uint32(loc)
		gl.BindBuffer(gl.ARRAY_BUFFER, uint32(a.Buffer))
		gl.EnableVertexAttribArray(l)
		gl.VertexAttribPointer(l, int32(a.Size), gl.FLOAT, false, 0, gl.PtrOffset(0))
		gl.VertexAttribDivisor(l, uint32(a.Divisor))
		locs = append(locs, l)
	}
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	return locs
}

func (d *Device) unbindAttribs(locs []uint32) {
	for _, l := range locs {
		gl.VertexAttribDivisor(l, 0)
		gl.DisableVertexAttribArray(l)
	}
}

func (d *Device) begin(p gpu.Program, u gpu.Uniforms, textures []gpu.Binding, attribs []gpu.Attrib) (*programInfo, []uint32, error) {
	info, ok := d.programs[p]
	if !ok {
		return nil, nil, fmt.Errorf("glgpu: unknown program %d", p)
	}
	gl.UseProgram(uint32(p))
	gl.BindVertexArray(d.vao)
	if err := d.setUniforms(p, info, u); err != nil {
		gl.BindVertexArray(0)
		gl.UseProgram(0)
		return nil, nil, err
	}
	d.bindTextures(p, info, textures)
	return info, d.bindAttribs(p, info, attribs), nil
}

func (d *Device) end(textures []gpu.Binding, locs []uint32) {
	d.unbindAttribs(locs)
	d.unbindTextures(textures)
	gl.BindVertexArray(0)
	gl.UseProgram(0)
}

// RunFeedback implements gpu.Device.
func (d *Device) RunFeedback(pass gpu.FeedbackPass) error {
	_, locs, err := d.begin(pass.Program, pass.Uniforms, pass.Textures, pass.Attribs)
	if err != nil {
		return err
	}
	defer d.end(pass.Textures, locs)

	gl.Enable(gl.RASTERIZER_DISCARD)
	gl.BindTransformFeedback(gl.TRANSFORM_FEEDBACK, uint32(pass.Feedback))
	for i, o := range pass.Outputs {
		gl.BindBufferBase(gl.TRANSFORM_FEEDBACK_BUFFER, uint32(i), uint32(o.Buffer))
	}

	gl.BeginTransformFeedback(gl.POINTS)
	gl.DrawArrays(gl.POINTS, 0, int32(pass.Count))
	gl.EndTransformFeedback()

	for i := range pass.Outputs {
		gl.BindBufferBase(gl.TRANSFORM_FEEDBACK_BUFFER, uint32(i), 0)
	}
	gl.BindTransformFeedback(gl.TRANSFORM_FEEDBACK, 0)
	gl.Disable(gl.RASTERIZER_DISCARD)
	return nil
}

type blendState struct {
	enabled                    bool
	srcRGB, dstRGB, srcA, dstA int32
}

func saveBlend() blendState {
	var s blendState
	s.enabled = gl.IsEnabled(gl.BLEND)
	gl.GetIntegerv(gl.BLEND_SRC_RGB, &s.srcRGB)
	gl.GetIntegerv(gl.BLEND_DST_RGB, &s.dstRGB)
	gl.GetIntegerv(gl.BLEND_SRC_ALPHA, &s.srcA)
	gl.GetIntegerv(gl.BLEND_DST_ALPHA, &s.dstA)
	return s
}

func (s blendState) restore() {
	gl.BlendFuncSeparate(uint32(s.srcRGB), uint32(s.dstRGB), uint32(s.srcA), uint32(s.dstA))
	if !s.enabled {
		gl.Disable(gl.BLEND)
	}
}

// Draw implements gpu.Device. Blend state is restored on return.
func (d *Device) Draw(pass gpu.DrawPass) error {
	_, locs, err := d.begin(pass.Program, pass.Uniforms, pass.Textures, pass.Attribs)
	if err != nil {
		return err
	}
	defer d.end(pass.Textures, locs)

	if pass.Blend {
		saved := saveBlend()
		defer saved.restore()
		gl.Enable(gl.BLEND)
		gl.BlendFunc(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA)
	}

	mode := uint32(gl.POINTS)
	if pass.Mode == gpu.Triangles {
		mode = gl.TRIANGLES
	}
	if pass.Instances > 0 {
		gl.DrawArraysInstanced(mode, 0, int32(pass.Count), int32(pass.Instances))
	} else {
		gl.DrawArrays(mode, 0, int32(pass.Count))
	}
	return nil
}
