package viewer

import (
	"fmt"
	"path/filepath"
	"time"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/windlayer/camera"
	"github.com/pthm-cable/windlayer/geo"
	"github.com/pthm-cable/windlayer/gpu/glgpu"
	"github.com/pthm-cable/windlayer/inspector"
	"github.com/pthm-cable/windlayer/telemetry"
)

const panelWidth = 220

// Window drives a Viewer from a raylib window. The GL device shares raylib's
// context.
type Window struct {
	*Viewer
	gl       *glgpu.Device
	ins      *inspector.Inspector
	showHelp bool
	showPerf bool
}

// NewWindow wraps v. The window and GL context must already exist.
func NewWindow(v *Viewer, dev *glgpu.Device) *Window {
	ins := inspector.NewInspector(int32(rl.GetScreenWidth()), int32(rl.GetScreenHeight()))
	return &Window{Viewer: v, gl: dev, ins: ins, showHelp: true}
}

// Run processes frames until the window is closed.
func (w *Window) Run() {
	w.logger.Info("starting viewer",
		"gl", w.gl.Version(),
		"width", rl.GetScreenWidth(),
		"height", rl.GetScreenHeight(),
	)
	for !rl.WindowShouldClose() {
		w.Frame()
	}
}

// Frame handles input, draws one frame and presents it.
func (w *Window) Frame() {
	w.handleInput()
	w.Update(rl.GetFrameTime())

	rl.BeginDrawing()
	rl.ClearBackground(rl.NewColor(Background.R, Background.G, Background.B, Background.A))
	w.drawGraticule()
	// layers issue raw GL; flush raylib's batch first
	rl.DrawRenderBatchActive()
	w.Render()

	w.drawPanel()
	w.drawHUD()
	w.ins.Draw(w.sections())
	rl.EndDrawing()
	w.perf.RecordFrame()
	w.EndFrame()
}

// handleInput processes keyboard and mouse input.
func (w *Window) handleInput() {
	w.handleResize()

	if rl.IsKeyPressed(rl.KeyF11) {
		rl.ToggleFullscreen()
	}
	if rl.IsKeyPressed(rl.KeySpace) {
		w.SetPlaying(!w.Playing())
	}
	if rl.IsKeyPressed(rl.KeyPeriod) {
		w.step(1)
	}
	if rl.IsKeyPressed(rl.KeyComma) {
		w.step(-1)
	}
	if rl.IsKeyPressed(rl.KeyH) {
		w.showHelp = !w.showHelp
	}
	if rl.IsKeyPressed(rl.KeyP) {
		w.showPerf = !w.showPerf
	}
	if rl.IsKeyPressed(rl.KeyT) {
		w.toggle(w.cfg.Raster.ID)
	}
	if rl.IsKeyPressed(rl.KeyW) {
		w.toggle(w.cfg.Particles.ID)
	}
	if rl.IsKeyPressed(rl.KeyF) {
		w.fit()
	}
	if rl.IsKeyPressed(rl.KeyTab) {
		w.ins.Cycle(w.host.IDs())
	}
	if rl.IsKeyPressed(rl.KeyHome) {
		c := w.cfg.Map
		w.cam.FlyTo(c.Center[0], c.Center[1], c.Zoom, float32(c.FlySeconds))
	}

	w.handleCameraInput()
}

// handleResize propagates window size changes to the camera.
func (w *Window) handleResize() {
	if !rl.IsWindowResized() {
		return
	}
	width, height := float64(rl.GetScreenWidth()), float64(rl.GetScreenHeight())
	w.cam.Resize(width, height)
	w.ins.Resize(int32(width), int32(height))
	w.host.TriggerRepaint()
}

// handleCameraInput processes pan and zoom.
func (w *Window) handleCameraInput() {
	cx, cy := float64(rl.GetScreenWidth())/2, float64(rl.GetScreenHeight())/2
	if rl.IsKeyPressed(rl.KeyEqual) || rl.IsKeyPressed(rl.KeyKpAdd) {
		w.cam.ZoomAt(cx, cy, 0.5)
	}
	if rl.IsKeyPressed(rl.KeyMinus) || rl.IsKeyPressed(rl.KeyKpSubtract) {
		w.cam.ZoomAt(cx, cy, -0.5)
	}

	// arrows pan a fixed number of pixels whatever the zoom
	const panStep = 8.0
	if rl.IsKeyDown(rl.KeyRight) {
		w.cam.Pan(panStep, 0)
	}
	if rl.IsKeyDown(rl.KeyLeft) {
		w.cam.Pan(-panStep, 0)
	}
	if rl.IsKeyDown(rl.KeyDown) {
		w.cam.Pan(0, panStep)
	}
	if rl.IsKeyDown(rl.KeyUp) {
		w.cam.Pan(0, -panStep)
	}

	// the panel owns the mouse while over it
	mouse := rl.GetMousePosition()
	if mouse.X < panelWidth || w.ins.HandleInput(mouse.X, mouse.Y) {
		return
	}
	if rl.IsMouseButtonDown(rl.MouseButtonLeft) {
		d := rl.GetMouseDelta()
		if d.X != 0 || d.Y != 0 {
			w.cam.Pan(-float64(d.X), -float64(d.Y))
		}
	}

	if wheel := rl.GetMouseWheelMove(); wheel != 0 {
		w.cam.ZoomAt(float64(mouse.X), float64(mouse.Y), float64(wheel)*0.25)
	}
}

func (w *Window) step(delta int) {
	i, _ := w.Timestep()
	if err := w.SetTimestep(i + delta); err != nil {
		w.logger.Warn("changing timestep", "error", err)
	}
	// a manual change restarts the playback interval
	w.SetPlaying(w.Playing())
}

func (w *Window) toggle(id string) {
	w.host.SetVisible(id, !w.host.Visible(id))
}

// fit flies the camera to the data bounds.
func (w *Window) fit() {
	b := w.cfg.Map.Bounds
	target := camera.New(w.cam.ViewportW, w.cam.ViewportH, 0, 0, w.cam.Zoom)
	target.MinZoom, target.MaxZoom = w.cam.MinZoom, w.cam.MaxZoom
	target.FitBounds(b, 40)
	lng, lat := geo.InverseMercator(target.X, target.Y)
	w.cam.FlyTo(lng, lat, target.Zoom, float32(w.cfg.Map.FlySeconds))
}

// drawGraticule draws meridians and parallels every 10 degrees as a minimal
// basemap.
func (w *Window) drawGraticule() {
	line := rl.NewColor(60, 70, 86, 255)
	edge := rl.NewColor(110, 120, 140, 255)
	const step = 10.0

	for lng := -180.0; lng <= 180; lng += step {
		x0, y0 := w.cam.LngLatToScreen(lng, geo.MaxLatitude)
		x1, y1 := w.cam.LngLatToScreen(lng, -geo.MaxLatitude)
		rl.DrawLine(int32(x0), int32(y0), int32(x1), int32(y1), line)
	}
	for lat := -80.0; lat <= 80; lat += step {
		x0, y0 := w.cam.LngLatToScreen(-180, lat)
		x1, y1 := w.cam.LngLatToScreen(180, lat)
		rl.DrawLine(int32(x0), int32(y0), int32(x1), int32(y1), line)
	}

	// data extent
	b := w.cfg.Map.Bounds
	x0, y0 := w.cam.LngLatToScreen(b.West(), b.North())
	x1, y1 := w.cam.LngLatToScreen(b.East(), b.South())
	rl.DrawRectangleLines(int32(x0), int32(y0), int32(x1-x0), int32(y1-y0), edge)
}

// drawPanel renders the control panel on the left edge.
func (w *Window) drawPanel() {
	height := int32(rl.GetScreenHeight())
	rl.DrawRectangle(0, 0, panelWidth, height, rl.Fade(rl.Black, 0.6))

	x := float32(10)
	y := float32(100)

	i, label := w.Timestep()
	rl.DrawText(fmt.Sprintf("Timestep %s (%d/%d)", label, i+1, w.Timesteps()), int32(x), int32(y), 14, rl.LightGray)
	y += 22

	if gui.Button(rl.Rectangle{X: x, Y: y, Width: 60, Height: 26}, "<") {
		w.step(-1)
	}
	if gui.Button(rl.Rectangle{X: x + 70, Y: y, Width: 60, Height: 26}, playLabel(w.Playing())) {
		w.SetPlaying(!w.Playing())
	}
	if gui.Button(rl.Rectangle{X: x + 140, Y: y, Width: 60, Height: 26}, ">") {
		w.step(1)
	}
	y += 40

	if w.temp != nil {
		rl.DrawText("Temperature opacity", int32(x), int32(y), 14, rl.Gray)
		y += 18
		opacity := gui.SliderBar(
			rl.Rectangle{X: x, Y: y, Width: panelWidth - 60, Height: 18},
			"", fmt.Sprintf("%.2f", w.temp.Opacity()),
			float32(w.temp.Opacity()), 0, 1,
		)
		if float64(opacity) != w.temp.Opacity() {
			w.temp.SetOpacity(float64(opacity))
		}
		y += 30
	}

	for _, id := range w.host.IDs() {
		visible := w.host.Visible(id)
		if gui.Button(rl.Rectangle{X: x, Y: y, Width: panelWidth - 20, Height: 26}, toggleLabel(id, visible)) {
			w.host.SetVisible(id, !visible)
		}
		y += 32
	}

	if gui.Button(rl.Rectangle{X: x, Y: y, Width: panelWidth - 20, Height: 26}, "Fit data bounds") {
		w.fit()
	}
	y += 32
	if gui.Button(rl.Rectangle{X: x, Y: y, Width: panelWidth - 20, Height: 26}, "Save snapshot") {
		path, err := w.SaveSnapshot()
		if err != nil {
			w.logger.Warn("saving snapshot", "error", err)
		} else if path != "" {
			w.logger.Info("saved snapshot", "path", path)
		}
	}
}

// drawHUD renders status text.
func (w *Window) drawHUD() {
	rl.DrawText("Wind", 10, 10, 20, rl.White)

	status := "Loading"
	switch {
	case w.wind.ReadyForDisplay() && w.wind.SourceLoaded():
		status = "Ready"
	case !w.wind.ReadyForDisplay():
		status = "Hidden"
	}
	rl.DrawText(
		fmt.Sprintf("FPS: %d | Particles: %d | %s", rl.GetFPS(), w.wind.Options().ParticleCount, status),
		10, 35, 16, rl.LightGray,
	)
	lng, lat := geo.InverseMercator(w.cam.X, w.cam.Y)
	rl.DrawText(fmt.Sprintf("%.2f, %.2f  z%.2f", lng, lat, w.cam.Zoom), 10, 55, 14, rl.Gray)
	if w.temp != nil && w.temp.Degraded() {
		rl.DrawText("Temperature range unavailable", 10, 72, 14, rl.Orange)
	}

	if w.showPerf {
		stats := w.perf.Stats()
		rl.DrawText(
			fmt.Sprintf("frame %s | sim %.0f%% | draw %.0f%%", stats.AvgFrame,
				stats.PhasePct[telemetry.PhaseSimulate], stats.PhasePct[telemetry.PhaseRender]),
			panelWidth+10, 10, 14, rl.Yellow,
		)
	}
	if w.showHelp {
		rl.DrawText("Drag/arrows: pan | Wheel/+/-: zoom | Space: play | ,/.: timestep | T/W: layers | F: fit | Home: reset | Tab: inspect | P: perf | H: help",
			panelWidth+10, int32(rl.GetScreenHeight())-25, 14, rl.Gray)
	}
}

func playLabel(playing bool) string {
	if playing {
		return "Pause"
	}
	return "Play"
}

func toggleLabel(id string, visible bool) string {
	if visible {
		return "Hide " + id
	}
	return "Show " + id
}

// windStatus is the particle layer as shown in the inspector.
type windStatus struct {
	URL          string  `inspect:"label"`
	Generation   string  `inspect:"label"`
	Particles    int     `inspect:"label"`
	Loaded       bool    `inspect:"bool"`
	PendingReset bool    `inspect:"bool"`
	SpeedMax     float64 `inspect:"label,fmt:%.1f"`
	Simulated    bool    `inspect:"bool"`
	Simulate     time.Duration
	Render       time.Duration
}

// rasterStatus is the raster layer as shown in the inspector.
type rasterStatus struct {
	URL      string  `inspect:"label"`
	Loaded   bool    `inspect:"bool"`
	Degraded bool    `inspect:"bool"`
	Opacity  float64 `inspect:"bar,max:1"`
	Min      float64 `inspect:"label,fmt:%.1f"`
	Max      float64 `inspect:"label,fmt:%.1f"`
}

// sections describes the layer selected in the inspector.
func (w *Window) sections() []inspector.Section {
	id, ok := w.ins.Selected()
	if !ok {
		return nil
	}
	comps, ok := w.host.Components(id)
	if !ok {
		w.ins.Deselect()
		return nil
	}
	out := make([]inspector.Section, 0, len(comps)+1)
	for _, c := range comps {
		out = append(out, inspector.Section{Title: fmt.Sprintf("%T", c), Value: c})
	}

	switch {
	case id == w.wind.ID():
		last := w.wind.LastFrame()
		out = append(out, inspector.Section{Title: "Particles", Value: windStatus{
			URL:          filepath.Base(w.wind.URL()),
			Generation:   w.wind.Generation().String(),
			Particles:    w.wind.Options().ParticleCount,
			Loaded:       w.wind.SourceLoaded(),
			PendingReset: w.wind.PendingReset(),
			SpeedMax:     w.wind.Ranges().Speed.Max,
			Simulated:    last.Simulated,
			Simulate:     last.Simulate,
			Render:       last.Render,
		}})
	case w.temp != nil && id == w.temp.ID():
		rng := w.temp.ValueRange()
		out = append(out, inspector.Section{Title: "Raster", Value: rasterStatus{
			URL:      filepath.Base(w.temp.URL()),
			Loaded:   w.temp.SourceLoaded(),
			Degraded: w.temp.Degraded(),
			Opacity:  w.temp.Opacity(),
			Min:      rng.Min,
			Max:      rng.Max,
		}})
	}
	return out
}
