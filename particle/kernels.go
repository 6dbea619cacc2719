package particle

import (
	"math"

	"github.com/pthm-cable/windlayer/geo"
	"github.com/pthm-cable/windlayer/gpu"
)

// MphToDegrees converts miles per hour to degrees of latitude per frame.
const MphToDegrees = 1.60934 / 111.32

// MinSpeed is the wind speed below which a particle respawns.
const MinSpeed = 1.5

// ResetReason records why a step respawned a particle.
type ResetReason uint8

const (
	ResetNone ResetReason = iota
	ResetOutOfBounds
	ResetCalm
	ResetAged
	ResetExpired
	ResetSourceChange
)

func (r ResetReason) String() string {
	switch r {
	case ResetOutOfBounds:
		return "out_of_bounds"
	case ResetCalm:
		return "calm"
	case ResetAged:
		return "aged"
	case ResetExpired:
		return "expired"
	case ResetSourceChange:
		return "source_change"
	default:
		return "none"
	}
}

// Random is the shader's hash: a pseudo-random value in [0,1) derived from a
// 2D seed and the frame time in seconds.
func Random(x, y, t float64) float64 {
	dt := x*12.9898 + y*78.233
	sn := dt - 3.14*math.Floor(dt/3.14)
	return fract(math.Sin(sn)*43758.5453 + t)
}

func fract(v float64) float64 { return v - math.Floor(v) }

// ResetProbability is the chance that a particle of the given age respawns on
// this step from ageing alone.
func ResetProbability(age, threshold, maxAge float64) float64 {
	switch {
	case age <= threshold:
		return 0
	case age > maxAge:
		return 1
	}
	return (age - threshold) / (maxAge - threshold)
}

// DegreesPerFrame converts a wind vector in mph at the given latitude to a
// degree offset. The y component is negated so that northward wind moves
// towards smaller layer y.
func DegreesPerFrame(u, v, lat float64) (dx, dy float64) {
	latScale := math.Cos(lat * 3.14159 / 180)
	return u * MphToDegrees / latScale, -v * MphToDegrees
}

// stepParams are the update uniforms in CPU form.
type stepParams struct {
	bounds       geo.Bounds
	speedFactor  float64
	time         float64
	ageThreshold float64
	maxAge       float64
	percentReset float64
	shouldReset  bool
}

func velocity(b geo.Bounds, x, y, u, v float64) (vx, vy float64) {
	_, lat := b.ToLngLat(x, y)
	dx, dy := DegreesPerFrame(u, v, lat)
	return dx / (b.East() - b.West()), dy / (b.North() - b.South())
}

// step advances one particle by one frame. wind is the sampled (u, v) in mph.
func step(x, y, age, u, v float64, p stepParams) (nx, ny, nage float64, reason ResetReason) {
	vx, vy := velocity(p.bounds, x, y, u, v)
	nx = x + vx*p.speedFactor
	ny = y + vy*p.speedFactor
	nage = age + 1

	switch {
	case nx < 0 || nx > 1 || ny < 0 || ny > 1:
		reason = ResetOutOfBounds
	case math.Hypot(u, v) < MinSpeed:
		reason = ResetCalm
	}
	if nage > p.ageThreshold {
		prob := (nage - p.ageThreshold) / (p.maxAge - p.ageThreshold)
		if Random(x+p.time*0.1, y+nage*0.01, p.time) < prob && reason == ResetNone {
			reason = ResetAged
		}
	}
	if nage > p.maxAge && reason == ResetNone {
		reason = ResetExpired
	}
	if reason == ResetNone && p.shouldReset && Random(x+p.time, y+p.time, p.time) < p.percentReset {
		reason = ResetSourceChange
	}

	if reason != ResetNone {
		sx, sy := x+p.time, y+p.time
		nx = Random(sx+1.23, sy+4.56, p.time)
		ny = Random(sx+7.89, sy+0.12, p.time)
		nage = 0
	}
	return nx, ny, nage, reason
}

// windAt decodes the velocity texture at a layer position.
func windAt(s gpu.Sampler, rangeU, rangeV [2]float32, x, y float64) (u, v float64) {
	texel := s.Sample(float32(x), float32(y))
	u = mix(float64(rangeU[0]), float64(rangeU[1]), float64(texel[0]))
	v = mix(float64(rangeV[0]), float64(rangeV[1]), float64(texel[1]))
	return u, v
}

func mix(a, b, t float64) float64 { return a + (b-a)*t }

func boundsOf(u gpu.Uniforms) geo.Bounds {
	v := u.Vec4("u_bounds")
	return geo.Bounds{float64(v[0]), float64(v[1]), float64(v[2]), float64(v[3])}
}

// updateKernel mirrors updateVertexShader. Captured varyings are
// v_position (2 floats) then v_age (1 float).
type updateKernel struct{}

func (updateKernel) Vertex(in *gpu.VertexIn) gpu.VertexOut {
	pos := in.Attribs.Attrib("a_position")
	age := in.Attribs.Attrib("a_age")[0]
	u := in.Uniforms

	x, y := float64(pos[0]), float64(pos[1])
	wu, wv := windAt(in.Samplers["u_velocity_texture"], u.Vec2("u_value_range_u"), u.Vec2("u_value_range_v"), x, y)
	nx, ny, nage, _ := step(x, y, float64(age), wu, wv, stepParams{
		bounds:       boundsOf(u),
		speedFactor:  float64(u.Float("u_speed_factor")),
		time:         float64(u.Float("u_time")),
		ageThreshold: float64(u.Float("u_age_threshold")),
		maxAge:       float64(u.Float("u_max_age")),
		percentReset: float64(u.Float("u_percent_reset")),
		shouldReset:  u.Bool("u_should_reset"),
	})

	var out gpu.VertexOut
	out.Varying[0] = float32(nx)
	out.Varying[1] = float32(ny)
	out.Varying[2] = float32(nage)
	return out
}

func (updateKernel) Fragment(*gpu.FragmentIn) ([4]float32, bool) { return [4]float32{}, false }

// renderKernel mirrors renderVertexShader and renderFragmentShader.
// Varying[0] carries the head's normalized speed.
type renderKernel struct{}

func (renderKernel) Vertex(in *gpu.VertexIn) gpu.VertexOut {
	head := in.Attribs.Attrib("a_position")
	offset := float64(in.Attribs.Attrib("a_trail_offset")[0])
	u := in.Uniforms
	b := boundsOf(u)

	hx, hy := float64(head[0]), float64(head[1])
	wu, wv := windAt(in.Samplers["u_velocity_texture"], u.Vec2("u_value_range_u"), u.Vec2("u_value_range_v"), hx, hy)
	vx, vy := velocity(b, hx, hy, wu, wv)
	k := float64(u.Float("u_speed_factor")) * offset * 1.5
	x, y := hx-vx*k, hy-vy*k

	mx, my := geo.Mercator(b.ToLngLat(x, y))
	var out gpu.VertexOut
	out.Position = u.Mat4("u_matrix").Transform([4]float32{float32(mx), float32(my), 0, 1})
	out.PointSize = u.Float("u_point_size") * float32(math.Pow(float64(u.Float("u_trail_size_decay")), offset))

	sr := u.Vec2("u_speed_range")
	speed := (math.Hypot(wu, wv) - float64(sr[0])) / float64(sr[1]-sr[0])
	out.Varying[0] = float32(math.Max(0, math.Min(1, speed)))
	return out
}

func (renderKernel) Fragment(in *gpu.FragmentIn) ([4]float32, bool) {
	dx := float64(in.PointCoord[0]) - 0.5
	dy := float64(in.PointCoord[1]) - 0.5
	dist := math.Hypot(dx, dy)
	if dist > 0.5 {
		return [4]float32{}, false
	}
	edge := 1 - smoothstep(0.45, 0.5, dist)
	c := in.Samplers["u_wind_color"].Sample(in.Varying[0], 0.5)
	return [4]float32{
		max(c[0], 0.2),
		max(c[1], 0.2),
		max(c[2], 0.2),
		float32(edge) * in.Uniforms.Float("u_opacity"),
	}, true
}

func smoothstep(e0, e1, x float64) float64 {
	t := math.Max(0, math.Min(1, (x-e0)/(e1-e0)))
	return t * t * (3 - 2*t)
}
