package synth

import (
	"math"
	"math/rand"
)

// PerlinNoise generates coherent noise values.
type PerlinNoise struct {
	perm [512]int
}

// NewPerlinNoise creates a new Perlin noise generator.
func NewPerlinNoise(seed int64) *PerlinNoise {
	p := &PerlinNoise{}
	rng := rand.New(rand.NewSource(seed))

	var perm [256]int
	for i := range perm {
		perm[i] = i
	}
	for i := len(perm) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		perm[i], perm[j] = perm[j], perm[i]
	}
	for i := 0; i < 256; i++ {
		p.perm[i] = perm[i]
		p.perm[i+256] = perm[i]
	}

	return p
}

// Noise3D returns a noise value in roughly [-1,1].
func (p *PerlinNoise) Noise3D(x, y, z float64) float64 {
	fx, fy, fz := math.Floor(x), math.Floor(y), math.Floor(z)
	cx, cy, cz := int(fx)&255, int(fy)&255, int(fz)&255
	dx, dy, dz := x-fx, y-fy, z-fz

	// gradient contributions of the eight cell corners, indexed by bit
	// 0 = x, bit 1 = y, bit 2 = z
	var c [8]float64
	for i := range c {
		ox, oy, oz := i&1, i>>1&1, i>>2&1
		h := p.perm[p.perm[p.perm[cx+ox]+cy+oy]+cz+oz]
		c[i] = grad3D(h, dx-float64(ox), dy-float64(oy), dz-float64(oz))
	}

	u, v, w := fade(dx), fade(dy), fade(dz)
	front := lerp(v, lerp(u, c[0], c[1]), lerp(u, c[2], c[3]))
	back := lerp(v, lerp(u, c[4], c[5]), lerp(u, c[6], c[7]))
	return lerp(w, front, back)
}

// Fractal sums octaves of noise with halving amplitude.
func (p *PerlinNoise) Fractal(x, y, z float64, octaves int) float64 {
	var sum, amp, norm float64 = 0, 1, 0
	for range octaves {
		sum += amp * p.Noise3D(x, y, z)
		norm += amp
		amp /= 2
		x, y = x*2, y*2
	}
	if norm == 0 {
		return 0
	}
	return sum / norm
}

func fade(t float64) float64 {
	return t * t * t * (t*(t*6-15) + 10)
}

func lerp(t, a, b float64) float64 {
	return a + t*(b-a)
}

func grad3D(hash int, x, y, z float64) float64 {
	h := hash & 15
	u := x
	if h >= 8 {
		u = y
	}
	v := y
	if h >= 4 {
		if h == 12 || h == 14 {
			v = x
		} else {
			v = z
		}
	}
	if h&1 != 0 {
		u = -u
	}
	if h&2 != 0 {
		v = -v
	}
	return u + v
}
