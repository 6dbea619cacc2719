package softgpu

import (
	"fmt"
	"math"

	"github.com/pthm-cable/windlayer/gpu"
)

// sampler reads a texture with clamp-to-edge wrapping.
type sampler struct{ tex *texture }

func (s sampler) texel(x, y int) [4]float32 {
	x = max(0, min(s.tex.w-1, x))
	y = max(0, min(s.tex.h-1, y))
	i := (y*s.tex.w + x) * 4
	p := s.tex.pix[i : i+4 : i+4]
	return [4]float32{float32(p[0]) / 255, float32(p[1]) / 255, float32(p[2]) / 255, float32(p[3]) / 255}
}

// Sample implements gpu.Sampler. Texel centres sit at (i+0.5)/size.
func (s sampler) Sample(u, v float32) [4]float32 {
	fx := u*float32(s.tex.w) - 0.5
	fy := v*float32(s.tex.h) - 0.5
	if s.tex.filter == gpu.Nearest {
		return s.texel(int(math.Floor(float64(fx+0.5))), int(math.Floor(float64(fy+0.5))))
	}

	x0 := int(math.Floor(float64(fx)))
	y0 := int(math.Floor(float64(fy)))
	tx := fx - float32(x0)
	ty := fy - float32(y0)

	a, b := s.texel(x0, y0), s.texel(x0+1, y0)
	c, d := s.texel(x0, y0+1), s.texel(x0+1, y0+1)
	var out [4]float32
	for i := range 4 {
		top := a[i] + (b[i]-a[i])*tx
		bot := c[i] + (d[i]-c[i])*tx
		out[i] = top + (bot-top)*ty
	}
	return out
}

type boundAttrib struct {
	name    string
	data    []float32
	size    int
	divisor int
}

// attribReader resolves attributes for the current vertex and instance.
type attribReader struct {
	attribs  []boundAttrib
	vertex   int
	instance int
}

func (r *attribReader) Attrib(name string) [4]float32 {
	var out [4]float32
	for _, a := range r.attribs {
		if a.name != name {
			continue
		}
		idx := r.vertex
		if a.divisor > 0 {
			idx = r.instance / a.divisor
		}
		base := idx * a.size
		if base+a.size <= len(a.data) {
			copy(out[:a.size], a.data[base:base+a.size])
		}
		break
	}
	return out
}

func (d *Device) bind(progID gpu.Program, textures []gpu.Binding, attribs []gpu.Attrib) (*program, map[string]gpu.Sampler, *attribReader, error) {
	prog, ok := d.programs[progID]
	if !ok {
		return nil, nil, nil, fmt.Errorf("softgpu: unknown program %d", progID)
	}

	samplers := make(map[string]gpu.Sampler, len(textures))
	for _, b := range textures {
		tex, ok := d.textures[b.Texture]
		if !ok {
			return nil, nil, nil, fmt.Errorf("softgpu: %s: unknown texture %d bound to %s", prog.name, b.Texture, b.Name)
		}
		samplers[b.Name] = sampler{tex: tex}
	}

	reader := &attribReader{attribs: make([]boundAttrib, 0, len(attribs))}
	for _, a := range attribs {
		buf, ok := d.buffers[a.Buffer]
		if !ok {
			return nil, nil, nil, fmt.Errorf("softgpu: %s: unknown buffer %d bound to %s", prog.name, a.Buffer, a.Name)
		}
		if a.Size < 1 || a.Size > 4 {
			return nil, nil, nil, fmt.Errorf("softgpu: %s: attribute %s has size %d", prog.name, a.Name, a.Size)
		}
		reader.attribs = append(reader.attribs, boundAttrib{name: a.Name, data: buf, size: a.Size, divisor: a.Divisor})
	}
	return prog, samplers, reader, nil
}

// RunFeedback implements gpu.Device.
func (d *Device) RunFeedback(pass gpu.FeedbackPass) error {
	if !d.feedbacks[pass.Feedback] {
		return fmt.Errorf("softgpu: unknown feedback object %d", pass.Feedback)
	}
	prog, samplers, reader, err := d.bind(pass.Program, pass.Textures, pass.Attribs)
	if err != nil {
		return err
	}
	if len(pass.Outputs) != len(prog.varyings) {
		return fmt.Errorf("softgpu: %s: %d outputs for %d varyings", prog.name, len(pass.Outputs), len(prog.varyings))
	}

	outs := make([][]float32, len(pass.Outputs))
	for i, o := range pass.Outputs {
		buf, ok := d.buffers[o.Buffer]
		if !ok {
			return fmt.Errorf("softgpu: %s: unknown output buffer %d", prog.name, o.Buffer)
		}
		if len(buf) < pass.Count*o.Size {
			return fmt.Errorf("softgpu: %s: output %d holds %d floats, need %d", prog.name, i, len(buf), pass.Count*o.Size)
		}
		outs[i] = buf
	}

	in := gpu.VertexIn{Uniforms: pass.Uniforms, Samplers: samplers, Attribs: reader}
	for v := range pass.Count {
		reader.vertex = v
		in.VertexID = v
		out := prog.kernel.Vertex(&in)

		slot := 0
		for i, o := range pass.Outputs {
			copy(outs[i][v*o.Size:(v+1)*o.Size], out.Varying[slot:slot+o.Size])
			slot += o.Size
		}
	}
	d.stats.FeedbackPasses++
	d.stats.Vertices += pass.Count
	return nil
}

// Draw implements gpu.Device.
func (d *Device) Draw(pass gpu.DrawPass) error {
	prog, samplers, reader, err := d.bind(pass.Program, pass.Textures, pass.Attribs)
	if err != nil {
		return err
	}

	instances := max(1, pass.Instances)
	vin := gpu.VertexIn{Uniforms: pass.Uniforms, Samplers: samplers, Attribs: reader}
	fin := gpu.FragmentIn{Uniforms: pass.Uniforms, Samplers: samplers}

	var tri [3]gpu.VertexOut
	for inst := range instances {
		reader.instance = inst
		vin.InstanceID = inst
		for v := range pass.Count {
			reader.vertex = v
			vin.VertexID = v
			out := prog.kernel.Vertex(&vin)
			d.stats.Vertices++

			switch pass.Mode {
			case gpu.Points:
				d.rasterPoint(prog.kernel, &fin, out, pass.Blend)
			case gpu.Triangles:
				tri[v%3] = out
				if v%3 == 2 {
					d.rasterTriangle(prog.kernel, &fin, tri, pass.Blend)
				}
			}
		}
	}
	d.stats.DrawCalls++
	return nil
}

// toWindow maps clip space to framebuffer pixels, y down.
func (d *Device) toWindow(p [4]float32) (float32, float32, bool) {
	if p[3] == 0 {
		return 0, 0, false
	}
	x := p[0] / p[3]
	y := p[1] / p[3]
	return (x + 1) / 2 * float32(d.width), (1 - y) / 2 * float32(d.height), true
}

func (d *Device) rasterPoint(k gpu.Kernel, fin *gpu.FragmentIn, v gpu.VertexOut, blend bool) {
	size := max(1, v.PointSize)
	cx, cy, ok := d.toWindow(v.Position)
	if !ok {
		return
	}
	half := size / 2
	x0 := max(0, int(math.Floor(float64(cx-half))))
	x1 := min(d.width-1, int(math.Ceil(float64(cx+half))))
	y0 := max(0, int(math.Floor(float64(cy-half))))
	y1 := min(d.height-1, int(math.Ceil(float64(cy+half))))

	fin.Varying = v.Varying
	for y := y0; y <= y1; y++ {
		py := float32(y) + 0.5
		if py < cy-half || py >= cy+half {
			continue
		}
		for x := x0; x <= x1; x++ {
			px := float32(x) + 0.5
			if px < cx-half || px >= cx+half {
				continue
			}
			fin.PointCoord = [2]float32{(px - (cx - half)) / size, (py - (cy - half)) / size}
			d.shade(k, fin, x, y, blend)
		}
	}
}

func edge(ax, ay, bx, by, px, py float32) float32 {
	return (bx-ax)*(py-ay) - (by-ay)*(px-ax)
}

func (d *Device) rasterTriangle(k gpu.Kernel, fin *gpu.FragmentIn, tri [3]gpu.VertexOut, blend bool) {
	var xs, ys [3]float32
	for i, v := range tri {
		x, y, ok := d.toWindow(v.Position)
		if !ok {
			return
		}
		xs[i], ys[i] = x, y
	}
	area := edge(xs[0], ys[0], xs[1], ys[1], xs[2], ys[2])
	if area == 0 {
		return
	}

	x0 := max(0, int(math.Floor(float64(min(xs[0], xs[1], xs[2])))))
	x1 := min(d.width-1, int(math.Ceil(float64(max(xs[0], xs[1], xs[2])))))
	y0 := max(0, int(math.Floor(float64(min(ys[0], ys[1], ys[2])))))
	y1 := min(d.height-1, int(math.Ceil(float64(max(ys[0], ys[1], ys[2])))))

	for y := y0; y <= y1; y++ {
		py := float32(y) + 0.5
		for x := x0; x <= x1; x++ {
			px := float32(x) + 0.5
			w0 := edge(xs[1], ys[1], xs[2], ys[2], px, py) / area
			w1 := edge(xs[2], ys[2], xs[0], ys[0], px, py) / area
			w2 := 1 - w0 - w1
			if w0 < 0 || w1 < 0 || w2 < 0 {
				continue
			}
			for i := range fin.Varying {
				fin.Varying[i] = w0*tri[0].Varying[i] + w1*tri[1].Varying[i] + w2*tri[2].Varying[i]
			}
			fin.PointCoord = [2]float32{}
			d.shade(k, fin, x, y, blend)
		}
	}
}

func (d *Device) shade(k gpu.Kernel, fin *gpu.FragmentIn, x, y int, blend bool) {
	c, keep := k.Fragment(fin)
	if !keep {
		d.stats.Discarded++
		return
	}
	d.stats.Fragments++

	i := (y*d.width + x) * 4
	dst := d.fb[i : i+4 : i+4]
	if !blend {
		copy(dst, c[:])
		return
	}
	a := clamp01(c[3])
	for ch := range 4 {
		dst[ch] = c[ch]*a + dst[ch]*(1-a)
	}
}
