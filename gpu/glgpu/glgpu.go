// Package glgpu implements gpu.Device on OpenGL 3.3 core. The context must be
// current on the calling thread; when sharing a context with raylib, flush
// raylib's batch before issuing passes.
package glgpu

import (
	"fmt"
	"strings"
	"unsafe"

	"github.com/go-gl/gl/v3.3-core/gl"

	"github.com/pthm-cable/windlayer/gpu"
)

type programInfo struct {
	name     string
	shaders  []uint32
	uniforms map[string]int32
	attribs  map[string]int32
}

// Device owns one VAO used for every pass.
type Device struct {
	vao      uint32
	programs map[gpu.Program]*programInfo
	sizes    map[gpu.Buffer]int
}

// New initializes the GL function pointers and creates the shared VAO.
func New() (*Device, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("gl.Init: %w", err)
	}
	d := &Device{
		programs: make(map[gpu.Program]*programInfo),
		sizes:    make(map[gpu.Buffer]int),
	}
	gl.GenVertexArrays(1, &d.vao)
	gl.Enable(gl.PROGRAM_POINT_SIZE)
	return d, nil
}

// Version returns the GL_VERSION string.
func (d *Device) Version() string {
	return gl.GoStr(gl.GetString(gl.VERSION))
}

// Close deletes the VAO. Programs and buffers belong to their layers.
func (d *Device) Close() {
	if d.vao != 0 {
		gl.DeleteVertexArrays(1, &d.vao)
		d.vao = 0
	}
}

func compileShader(shaderType uint32, source string) (uint32, error) {
	shader := gl.CreateShader(shaderType)
	csources, free := gl.Strs(source + "\x00")
	gl.ShaderSource(shader, 1, csources, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLength)
		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetShaderInfoLog(shader, logLength, nil, gl.Str(log))
		gl.DeleteShader(shader)
		return 0, fmt.Errorf("compile error: %s", strings.TrimRight(log, "\x00"))
	}
	return shader, nil
}

// CompileProgram implements gpu.Device.
func (d *Device) CompileProgram(src gpu.ProgramSource) (gpu.Program, error) {
	vs, err := compileShader(gl.VERTEX_SHADER, src.Vertex)
	if err != nil {
		return 0, fmt.Errorf("%w: %s vertex: %v", gpu.ErrProgram, src.Name, err)
	}
	fs, err := compileShader(gl.FRAGMENT_SHADER, src.Fragment)
	if err != nil {
		gl.DeleteShader(vs)
		return 0, fmt.Errorf("%w: %s fragment: %v", gpu.ErrProgram, src.Name, err)
	}

	program := gl.CreateProgram()
	gl.AttachShader(program, vs)
	gl.AttachShader(program, fs)
	if len(src.Varyings) > 0 {
		names := make([]string, len(src.Varyings))
		for i, v := range src.Varyings {
			names[i] = v + "\x00"
		}
		cvaryings, free := gl.Strs(names...)
		gl.TransformFeedbackVaryings(program, int32(len(names)), cvaryings, gl.SEPARATE_ATTRIBS)
		free()
	}
	gl.LinkProgram(program)

	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLength)
		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetProgramInfoLog(program, logLength, nil, gl.Str(log))
		gl.DeleteProgram(program)
		gl.DeleteShader(vs)
		gl.DeleteShader(fs)
		return 0, fmt.Errorf("%w: %s: link error: %s", gpu.ErrProgram, src.Name, strings.TrimRight(log, "\x00"))
	}

	p := gpu.Program(program)
	d.programs[p] = &programInfo{
		name:     src.Name,
		shaders:  []uint32{vs, fs},
		uniforms: make(map[string]int32),
		attribs:  make(map[string]int32),
	}
	return p, nil
}

// DeleteProgram implements gpu.Device. Shaders are detached and deleted too.
func (d *Device) DeleteProgram(p gpu.Program) {
	info, ok := d.programs[p]
	if !ok {
		return
	}
	for _, s := range info.shaders {
		gl.DetachShader(uint32(p), s)
		gl.DeleteShader(s)
	}
	gl.DeleteProgram(uint32(p))
	delete(d.programs, p)
}

func (info *programInfo) uniform(p gpu.Program, name string) int32 {
	if loc, ok := info.uniforms[name]; ok {
		return loc
	}
	loc := gl.GetUniformLocation(uint32(p), gl.Str(name+"\x00"))
	info.uniforms[name] = loc
	return loc
}

func (info *programInfo) attrib(p gpu.Program, name string) int32 {
	if loc, ok := info.attribs[name]; ok {
		return loc
	}
	loc := gl.GetAttribLocation(uint32(p), gl.Str(name+"\x00"))
	info.attribs[name] = loc
	return loc
}

// NewBuffer implements gpu.Device.
func (d *Device) NewBuffer(data []float32) (gpu.Buffer, error) {
	var id uint32
	gl.GenBuffers(1, &id)
	if id == 0 {
		return 0, fmt.Errorf("glgpu: glGenBuffers returned 0")
	}
	b := gpu.Buffer(id)
	d.upload(b, data)
	return b, nil
}

func (d *Device) upload(b gpu.Buffer, data []float32) {
	gl.BindBuffer(gl.ARRAY_BUFFER, uint32(b))
	var ptr unsafe.Pointer
	if len(data) > 0 {
		ptr = gl.Ptr(data)
	}
	gl.BufferData(gl.ARRAY_BUFFER, len(data)*4, ptr, gl.DYNAMIC_COPY)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	d.sizes[b] = len(data)
}

// WriteBuffer implements gpu.Device.
func (d *Device) WriteBuffer(b gpu.Buffer, data []float32) error {
	if _, ok := d.sizes[b]; !ok {
		return fmt.Errorf("glgpu: unknown buffer %d", b)
	}
	d.upload(b, data)
	return nil
}

// ReadBuffer implements gpu.Device. It stalls until the GPU has finished
// writing the buffer.
func (d *Device) ReadBuffer(b gpu.Buffer, dst []float32) error {
	n, ok := d.sizes[b]
	if !ok {
		return fmt.Errorf("glgpu: unknown buffer %d", b)
	}
	if len(dst) > n {
		return fmt.Errorf("glgpu: read of %d floats from buffer of %d", len(dst), n)
	}
	if len(dst) == 0 {
		return nil
	}
	gl.BindBuffer(gl.ARRAY_BUFFER, uint32(b))
	gl.GetBufferSubData(gl.ARRAY_BUFFER, 0, len(dst)*4, gl.Ptr(dst))
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	return nil
}

// DeleteBuffer implements gpu.Device.
func (d *Device) DeleteBuffer(b gpu.Buffer) {
	id := uint32(b)
	gl.DeleteBuffers(1, &id)
	delete(d.sizes, b)
}

// NewTexture implements gpu.Device.
func (d *Device) NewTexture(desc gpu.TextureDesc) (gpu.Texture, error) {
	if desc.Width <= 0 || desc.Height <= 0 || len(desc.Pixels) < desc.Width*desc.Height*4 {
		return 0, fmt.Errorf("glgpu: bad texture %dx%d with %d bytes", desc.Width, desc.Height, len(desc.Pixels))
	}
	filter := int32(gl.NEAREST)
	if desc.Filter == gpu.Linear {
		filter = gl.LINEAR
	}

	var id uint32
	gl.GenTextures(1, &id)
	gl.BindTexture(gl.TEXTURE_2D, id)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, filter)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, filter)
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(desc.Width), int32(desc.Height), 0, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(desc.Pixels))
	gl.BindTexture(gl.TEXTURE_2D, 0)
	return gpu.Texture(id), nil
}

// DeleteTexture implements gpu.Device.
func (d *Device) DeleteTexture(t gpu.Texture) {
	id := uint32(t)
	gl.DeleteTextures(1, &id)
}

// NewFeedback implements gpu.Device.
func (d *Device) NewFeedback() (gpu.Feedback, error) {
	var id uint32
	gl.GenTransformFeedbacks(1, &id)
	if id == 0 {
		return 0, fmt.Errorf("glgpu: glGenTransformFeedbacks returned 0")
	}
	return gpu.Feedback(id), nil
}

// DeleteFeedback implements gpu.Device.
func (d *Device) DeleteFeedback(f gpu.Feedback) {
	id := uint32(f)
	gl.DeleteTransformFeedbacks(1, &id)
}
