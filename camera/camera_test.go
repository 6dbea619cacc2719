package camera

import (
	"math"
	"testing"

	"github.com/pthm-cable/windlayer/geo"
)

const (
	sbLng = -119.699944
	sbLat = 34.432546
)

func near(a, b, eps float64) bool { return math.Abs(a-b) <= eps }

func TestNew(t *testing.T) {
	cam := New(1280, 720, sbLng, sbLat, 7)

	lng, lat := geo.InverseMercator(cam.X, cam.Y)
	if !near(lng, sbLng, 1e-9) || !near(lat, sbLat, 1e-9) {
		t.Errorf("expected center (%v,%v), got (%v,%v)", sbLng, sbLat, lng, lat)
	}
	if cam.WorldSize() != 512*128 {
		t.Errorf("world size at zoom 7 = %v", cam.WorldSize())
	}
}

func TestCenterMapsToScreenCenter(t *testing.T) {
	cam := New(1280, 720, sbLng, sbLat, 7)

	sx, sy := cam.LngLatToScreen(sbLng, sbLat)
	if !near(sx, 640, 1e-6) || !near(sy, 360, 1e-6) {
		t.Errorf("expected screen center (640, 360), got (%f, %f)", sx, sy)
	}

	// clip space agrees with screen space
	clip := cam.Matrix().Transform([4]float32{float32(cam.X), float32(cam.Y), 0, 1})
	if !near(float64(clip[0]), 0, 1e-4) || !near(float64(clip[1]), 0, 1e-4) {
		t.Errorf("center in clip space = %v", clip)
	}
}

func TestMatrixOrientation(t *testing.T) {
	cam := New(800, 600, sbLng, sbLat, 7)
	m := cam.Matrix()

	// a point to the north-east of center lands up and right in clip space
	x, y := geo.Mercator(sbLng+0.5, sbLat+0.5)
	clip := m.Transform([4]float32{float32(x), float32(y), 0, 1})
	if clip[0] <= 0 || clip[1] <= 0 {
		t.Errorf("north-east point in clip = %v, want positive x and y", clip)
	}

	// screen edge at x=800 is clip x=1
	mx, my := cam.ScreenToMercator(800, 300)
	clip = m.Transform([4]float32{float32(mx), float32(my), 0, 1})
	if !near(float64(clip[0]), 1, 1e-3) || !near(float64(clip[1]), 0, 1e-3) {
		t.Errorf("right edge in clip = %v", clip)
	}
}

func TestScreenToMercatorRoundtrip(t *testing.T) {
	cam := New(1280, 720, sbLng, sbLat, 7)

	testCases := []struct{ sx, sy float64 }{
		{640, 360},  // center
		{100, 100},  // top-left
		{1200, 600}, // near bottom-right
	}

	for _, tc := range testCases {
		mx, my := cam.ScreenToMercator(tc.sx, tc.sy)
		sx, sy := cam.MercatorToScreen(mx, my)
		if !near(sx, tc.sx, 1e-6) || !near(sy, tc.sy, 1e-6) {
			t.Errorf("roundtrip failed: (%f,%f) -> (%f,%f) -> (%f,%f)",
				tc.sx, tc.sy, mx, my, sx, sy)
		}
	}
}

func TestAntimeridianWrap(t *testing.T) {
	cam := New(1024, 512, 179.5, 0, 4)

	// a point just east of the antimeridian is on screen to the right
	sx, _ := cam.LngLatToScreen(-179.5, 0)
	if sx <= 512 || sx > 1024 {
		t.Errorf("expected wrapped point right of center, got sx=%f", sx)
	}

	cam.Pan(cam.WorldSize(), 0)
	if cam.X < 0 || cam.X >= 1 {
		t.Errorf("pan by a whole world left X=%v", cam.X)
	}
}

func TestZoomAtKeepsAnchor(t *testing.T) {
	cam := New(1280, 720, sbLng, sbLat, 7)
	before, _ := cam.ScreenToLngLat(200, 150)
	cam.ZoomAt(200, 150, 1.5)
	after, _ := cam.ScreenToLngLat(200, 150)
	if !near(before, after, 1e-9) {
		t.Errorf("anchor moved from %v to %v", before, after)
	}
	if cam.Zoom != 8.5 {
		t.Errorf("zoom = %v, want 8.5", cam.Zoom)
	}
}

func TestZoomClamp(t *testing.T) {
	cam := New(800, 600, 0, 0, 3)
	cam.SetZoom(40)
	if cam.Zoom != cam.MaxZoom {
		t.Errorf("zoom = %v, want max %v", cam.Zoom, cam.MaxZoom)
	}
	cam.SetZoom(-3)
	if cam.Zoom != cam.MinZoom {
		t.Errorf("zoom = %v, want min %v", cam.Zoom, cam.MinZoom)
	}
}

func TestFitBounds(t *testing.T) {
	b := geo.Bounds{-121, 36, -117, 32}
	cam := New(1280, 720, 0, 0, 1)
	cam.FitBounds(b, 20)

	if !cam.IsVisible(b) {
		t.Fatal("fitted bounds not visible")
	}
	for _, corner := range [][2]float64{{b.West(), b.North()}, {b.East(), b.South()}} {
		sx, sy := cam.LngLatToScreen(corner[0], corner[1])
		if sx < 19.9 || sx > 1260.1 || sy < 19.9 || sy > 700.1 {
			t.Errorf("corner %v at (%v,%v) outside padded viewport", corner, sx, sy)
		}
	}
	if cam.IsVisible(geo.Bounds{10, 50, 12, 48}) {
		t.Error("bounds in Europe reported visible")
	}
}

func TestFlyTo(t *testing.T) {
	cam := New(800, 600, 0, 0, 2)
	cam.FlyTo(sbLng, sbLat, 7, 1)
	if !cam.Flying() {
		t.Fatal("not flying after FlyTo")
	}

	cam.Update(0.5)
	if cam.Zoom <= 2 || cam.Zoom >= 7 {
		t.Errorf("mid-flight zoom = %v", cam.Zoom)
	}
	for range 10 {
		cam.Update(0.1)
	}
	if cam.Flying() {
		t.Fatal("still flying after the duration")
	}
	lng, lat := geo.InverseMercator(cam.X, cam.Y)
	if !near(lng, sbLng, 1e-3) || !near(lat, sbLat, 1e-3) || !near(cam.Zoom, 7, 1e-5) {
		t.Errorf("landed at (%v,%v) z%v", lng, lat, cam.Zoom)
	}
	if cam.Update(0.1) {
		t.Error("Update after landing reported movement")
	}
}
