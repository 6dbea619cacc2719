package raster

import (
	"math"

	"github.com/pthm-cable/windlayer/geo"
	"github.com/pthm-cable/windlayer/gpu"
)

const vertexShader = `#version 330 core
in vec2 a_pos;
out vec2 v_tex_pos;

uniform mat4 u_matrix;
uniform vec4 u_bounds;

const float PI = 3.141592653589793;

vec2 latLngToMercator(vec2 lnglat) {
	float x = (lnglat.x + 180.0) / 360.0;
	float latRad = lnglat.y * PI / 180.0;
	float y = 0.5 - log(tan(PI / 4.0 + latRad / 2.0)) / (2.0 * PI);
	return vec2(x, y);
}

void main() {
	float lng = mix(u_bounds.x, u_bounds.z, a_pos.x);
	float lat = mix(u_bounds.w, u_bounds.y, a_pos.y);
	v_tex_pos = vec2(a_pos.x, 1.0 - a_pos.y);
	gl_Position = u_matrix * vec4(latLngToMercator(vec2(lng, lat)), 0.0, 1.0);
}
`

const fragmentShader = `#version 330 core
in vec2 v_tex_pos;
out vec4 fragColor;

uniform sampler2D u_image;
uniform sampler2D u_colormap;
uniform float u_opacity;

void main() {
	vec4 pixel = texture(u_image, v_tex_pos);
	vec4 color = texture(u_colormap, vec2(pixel.r, 0.5));
	fragColor = vec4(color.rgb, color.a * u_opacity);
}
`

// quad covers the unit square with y pointing north.
var quad = []float32{
	0, 0,
	1, 0,
	0, 1,
	0, 1,
	1, 0,
	1, 1,
}

// kernel mirrors the shaders. Varying 0..1 carry the texture coordinate.
type kernel struct{}

func (kernel) Vertex(in *gpu.VertexIn) gpu.VertexOut {
	p := in.Attribs.Attrib("a_pos")
	b := in.Uniforms.Vec4("u_bounds")
	x, y := float64(p[0]), float64(p[1])

	lng := float64(b[0]) + (float64(b[2])-float64(b[0]))*x
	lat := float64(b[3]) + (float64(b[1])-float64(b[3]))*y
	mx, my := geo.Mercator(lng, math.Max(-geo.MaxLatitude, math.Min(geo.MaxLatitude, lat)))

	var out gpu.VertexOut
	out.Position = in.Uniforms.Mat4("u_matrix").Transform([4]float32{float32(mx), float32(my), 0, 1})
	out.Varying[0] = p[0]
	out.Varying[1] = 1 - p[1]
	return out
}

func (kernel) Fragment(in *gpu.FragmentIn) ([4]float32, bool) {
	pixel := in.Samplers["u_image"].Sample(in.Varying[0], in.Varying[1])
	c := in.Samplers["u_colormap"].Sample(pixel[0], 0.5)
	return [4]float32{c[0], c[1], c[2], c[3] * in.Uniforms.Float("u_opacity")}, true
}
