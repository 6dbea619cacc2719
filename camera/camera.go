// Package camera provides a Web Mercator map camera: a center, a zoom level
// and a viewport, producing the projection matrix layers render with.
package camera

import (
	"math"

	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
	"gonum.org/v1/gonum/mat"

	"github.com/pthm-cable/windlayer/geo"
	"github.com/pthm-cable/windlayer/gpu"
)

// TileSize is the world width in pixels at zoom 0.
const TileSize = 512

// Camera views the Mercator unit square. The world wraps horizontally across
// the antimeridian; latitude is clamped.
type Camera struct {
	// Center in Mercator coordinates, x east, y south, both in [0,1].
	X, Y float64

	Zoom float64

	// Viewport dimensions (screen size)
	ViewportW, ViewportH float64

	MinZoom, MaxZoom float64

	flight *flight
}

// flight is an active FlyTo.
type flight struct {
	x, y, zoom *gween.Tween
	done       [3]bool
}

// New creates a camera centered on (lng, lat).
func New(viewportW, viewportH, lng, lat, zoom float64) *Camera {
	x, y := geo.Mercator(lng, clampLat(lat))
	c := &Camera{
		X:         x,
		Y:         y,
		ViewportW: viewportW,
		ViewportH: viewportH,
		MinZoom:   0,
		MaxZoom:   22,
	}
	c.SetZoom(zoom)
	return c
}

// WorldSize returns the world width in pixels at the current zoom.
func (c *Camera) WorldSize() float64 { return TileSize * math.Exp2(c.Zoom) }

// screen is the affine map from Mercator to screen pixels (y down) as a
// homogeneous 3x3.
func (c *Camera) screen() *mat.Dense {
	s := c.WorldSize()
	return mat.NewDense(3, 3, []float64{
		s, 0, c.ViewportW/2 - c.X*s,
		0, s, c.ViewportH/2 - c.Y*s,
		0, 0, 1,
	})
}

// Matrix returns the clip-space projection for Mercator coordinates, ready
// for a layer's u_matrix.
func (c *Camera) Matrix() gpu.Mat4 {
	s := c.WorldSize()
	// Mercator -> pixels offset from the viewport center
	view := mat.NewDense(4, 4, []float64{
		s, 0, 0, -c.X * s,
		0, s, 0, -c.Y * s,
		0, 0, 1, 0,
		0, 0, 0, 1,
	})
	// pixels -> clip, flipping y so north is up
	proj := mat.NewDense(4, 4, []float64{
		2 / c.ViewportW, 0, 0, 0,
		0, -2 / c.ViewportH, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	})
	var m mat.Dense
	m.Mul(proj, view)
	return toMat4(&m)
}

// toMat4 converts a 4x4 dense matrix to column-major float32.
func toMat4(m mat.Matrix) gpu.Mat4 {
	var out gpu.Mat4
	for col := range 4 {
		for row := range 4 {
			out[col*4+row] = float32(m.At(row, col))
		}
	}
	return out
}

// MercatorToScreen converts Mercator coordinates to screen pixels. x is taken
// through the shortest horizontal path from the center.
func (c *Camera) MercatorToScreen(mx, my float64) (sx, sy float64) {
	mx = c.X + wrapDelta(mx, c.X)
	v := mat.NewVecDense(3, []float64{mx, my, 1})
	var out mat.VecDense
	out.MulVec(c.screen(), v)
	return out.AtVec(0), out.AtVec(1)
}

// ScreenToMercator converts screen pixels to Mercator coordinates, x wrapped
// into [0,1).
func (c *Camera) ScreenToMercator(sx, sy float64) (mx, my float64) {
	var inv mat.Dense
	if err := inv.Inverse(c.screen()); err != nil {
		return c.X, c.Y
	}
	v := mat.NewVecDense(3, []float64{sx, sy, 1})
	var out mat.VecDense
	out.MulVec(&inv, v)
	return wrap(out.AtVec(0)), out.AtVec(1)
}

// LngLatToScreen projects degrees to screen pixels.
func (c *Camera) LngLatToScreen(lng, lat float64) (sx, sy float64) {
	return c.MercatorToScreen(geo.Mercator(lng, clampLat(lat)))
}

// ScreenToLngLat unprojects screen pixels to degrees.
func (c *Camera) ScreenToLngLat(sx, sy float64) (lng, lat float64) {
	return geo.InverseMercator(c.ScreenToMercator(sx, sy))
}

// IsVisible reports whether any part of b could be on screen.
func (c *Camera) IsVisible(b geo.Bounds) bool {
	minX, minY, maxX, maxY := b.MercatorBounds()
	s := c.WorldSize()
	halfW := c.ViewportW / (2 * s)
	halfH := c.ViewportH / (2 * s)

	cx := (minX + maxX) / 2
	dx := math.Abs(wrapDelta(cx, c.X))
	return dx <= halfW+(maxX-minX)/2 && maxY >= c.Y-halfH && minY <= c.Y+halfH
}

// VisibleBounds returns the on-screen area as geographic bounds. West may
// exceed east when the view crosses the antimeridian.
func (c *Camera) VisibleBounds() geo.Bounds {
	west, north := c.ScreenToLngLat(0, 0)
	east, south := c.ScreenToLngLat(c.ViewportW, c.ViewportH)
	return geo.Bounds{west, north, east, south}
}

// Resize updates viewport dimensions.
func (c *Camera) Resize(viewportW, viewportH float64) {
	c.ViewportW = viewportW
	c.ViewportH = viewportH
}

// Pan moves the camera by the given delta in screen pixels.
func (c *Camera) Pan(dx, dy float64) {
	s := c.WorldSize()
	c.X = wrap(c.X + dx/s)
	c.Y = clampY(c.Y + dy/s)
}

// SetZoom sets the zoom level, clamped to min/max.
func (c *Camera) SetZoom(zoom float64) {
	c.Zoom = clamp(zoom, c.MinZoom, c.MaxZoom)
}

// ZoomAt changes zoom by delta while keeping the point under (sx, sy) fixed.
func (c *Camera) ZoomAt(sx, sy, delta float64) {
	mx, my := c.ScreenToMercator(sx, sy)
	c.SetZoom(c.Zoom + delta)
	s := c.WorldSize()
	c.X = wrap(mx - (sx-c.ViewportW/2)/s)
	c.Y = clampY(my - (sy-c.ViewportH/2)/s)
}

// FitBounds centers on b and picks the largest zoom that shows all of it
// with padding pixels to spare on each side.
func (c *Camera) FitBounds(b geo.Bounds, padding float64) {
	minX, minY, maxX, maxY := b.MercatorBounds()
	c.X = (minX + maxX) / 2
	c.Y = (minY + maxY) / 2
	w := math.Max(c.ViewportW-2*padding, 1)
	h := math.Max(c.ViewportH-2*padding, 1)
	scale := math.Min(w/(maxX-minX), h/(maxY-minY))
	c.SetZoom(math.Log2(scale / TileSize))
}

// FlyTo animates center and zoom to the target over duration seconds.
func (c *Camera) FlyTo(lng, lat, zoom float64, duration float32) {
	x, y := geo.Mercator(lng, clampLat(lat))
	// go the short way round
	x = c.X + wrapDelta(x, c.X)
	zoom = clamp(zoom, c.MinZoom, c.MaxZoom)
	c.flight = &flight{
		x:    gween.New(float32(c.X), float32(x), duration, ease.InOutCubic),
		y:    gween.New(float32(c.Y), float32(y), duration, ease.InOutCubic),
		zoom: gween.New(float32(c.Zoom), float32(zoom), duration, ease.InOutQuad),
	}
}

// Flying reports whether a FlyTo is in progress.
func (c *Camera) Flying() bool { return c.flight != nil }

// Update advances any active FlyTo by dt seconds. It reports whether the
// camera moved.
func (c *Camera) Update(dt float32) bool {
	f := c.flight
	if f == nil {
		return false
	}
	vals := [3]*float64{&c.X, &c.Y, &c.Zoom}
	for i, tw := range [3]*gween.Tween{f.x, f.y, f.zoom} {
		if f.done[i] {
			continue
		}
		v, done := tw.Update(dt)
		*vals[i] = float64(v)
		f.done[i] = done
	}
	c.X = wrap(c.X)
	c.Y = clampY(c.Y)
	if f.done[0] && f.done[1] && f.done[2] {
		c.flight = nil
	}
	return true
}

// Reset centers on (lng, lat) at the given zoom and cancels any flight.
func (c *Camera) Reset(lng, lat, zoom float64) {
	c.X, c.Y = geo.Mercator(lng, clampLat(lat))
	c.SetZoom(zoom)
	c.flight = nil
}

// wrapDelta computes the shortest signed distance from 'from' to 'to' on the
// horizontally wrapping unit world.
func wrapDelta(to, from float64) float64 {
	d := to - from
	if d > 0.5 {
		d -= 1
	} else if d < -0.5 {
		d += 1
	}
	return d
}

// wrap computes the positive modulo 1.
func wrap(x float64) float64 {
	r := math.Mod(x, 1)
	if r < 0 {
		r += 1
	}
	return r
}

func clampY(y float64) float64 { return clamp(y, 0, 1) }

func clampLat(lat float64) float64 { return clamp(lat, -geo.MaxLatitude, geo.MaxLatitude) }

// clamp restricts a value to a range.
func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
