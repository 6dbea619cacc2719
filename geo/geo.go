// Package geo holds the coordinate conventions shared by the layers and the
// camera: geographic bounds, normalized layer space and Web Mercator.
//
// Normalized layer space maps the bounds onto [0,1]^2 with x growing east and
// y growing south, so (0,0) is the north-west corner and matches the first
// texel row of a field image.
package geo

import (
	"fmt"
	"math"
)

// Bounds is [west, north, east, south] in degrees.
type Bounds [4]float64

// West, North, East and South name the edges.
func (b Bounds) West() float64  { return b[0] }
func (b Bounds) North() float64 { return b[1] }
func (b Bounds) East() float64  { return b[2] }
func (b Bounds) South() float64 { return b[3] }

// Validate checks that the box is non-empty and within Web Mercator limits.
func (b Bounds) Validate() error {
	if !(b.East() > b.West()) || !(b.North() > b.South()) {
		return fmt.Errorf("geo: empty bounds %v", [4]float64(b))
	}
	if b.North() > MaxLatitude || b.South() < -MaxLatitude {
		return fmt.Errorf("geo: bounds %v exceed mercator latitude limit", [4]float64(b))
	}
	return nil
}

// Vec4 returns the bounds as a shader uniform.
func (b Bounds) Vec4() [4]float32 {
	return [4]float32{float32(b[0]), float32(b[1]), float32(b[2]), float32(b[3])}
}

// Center returns the midpoint in degrees.
func (b Bounds) Center() (lng, lat float64) {
	return (b.West() + b.East()) / 2, (b.North() + b.South()) / 2
}

// ToLngLat maps a normalized layer position to degrees.
func (b Bounds) ToLngLat(x, y float64) (lng, lat float64) {
	lng = b.West() + (b.East()-b.West())*x
	lat = b.South() + (b.North()-b.South())*(1-y)
	return lng, lat
}

// FromLngLat maps degrees to a normalized layer position.
func (b Bounds) FromLngLat(lng, lat float64) (x, y float64) {
	x = (lng - b.West()) / (b.East() - b.West())
	y = 1 - (lat-b.South())/(b.North()-b.South())
	return x, y
}

// MaxLatitude is the Web Mercator cutoff.
const MaxLatitude = 85.0511287798066

// Mercator projects degrees into the unit square used by the map camera:
// x in [0,1] west to east, y in [0,1] north to south.
func Mercator(lng, lat float64) (x, y float64) {
	x = (lng + 180) / 360
	latRad := lat * math.Pi / 180
	y = 0.5 - math.Log(math.Tan(math.Pi/4+latRad/2))/(2*math.Pi)
	return x, y
}

// InverseMercator maps unit-square Mercator coordinates back to degrees.
func InverseMercator(x, y float64) (lng, lat float64) {
	lng = x*360 - 180
	lat = (2*math.Atan(math.Exp((0.5-y)*2*math.Pi)) - math.Pi/2) * 180 / math.Pi
	return lng, lat
}

// MercatorBounds returns the bounds' corners in Mercator space as
// (minX, minY, maxX, maxY).
func (b Bounds) MercatorBounds() (minX, minY, maxX, maxY float64) {
	minX, minY = Mercator(b.West(), b.North())
	maxX, maxY = Mercator(b.East(), b.South())
	return minX, minY, maxX, maxY
}
