// Package inspector draws a panel describing one map layer: its host
// components and whatever status structs the caller supplies. Struct fields
// are laid out by reflection, guided by `inspect` tags.
package inspector

import (
	"slices"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// Panel dimensions
const (
	PanelWidth   = 320
	PanelPadding = 10
	HeaderHeight = 30
	lineHeight   = 18
)

// Panel colors
var (
	ColorPanelBg     = rl.Color{R: 30, G: 30, B: 35, A: 240}
	ColorPanelHeader = rl.Color{R: 45, G: 45, B: 55, A: 255}
	ColorPanelBorder = rl.Color{R: 70, G: 70, B: 80, A: 255}
	ColorHeaderText  = rl.Color{R: 255, G: 255, B: 255, A: 255}
	ColorCloseBtn    = rl.Color{R: 180, G: 80, B: 80, A: 255}
	ColorSectionText = rl.Color{R: 200, G: 200, B: 220, A: 255}
)

// Section is a titled struct value to list.
type Section struct {
	Title string
	Value any
}

// Inspector tracks which layer is selected and draws its panel.
type Inspector struct {
	selected     string
	hasSelected  bool
	panelX       int32
	panelY       int32
	screenWidth  int32
	screenHeight int32
}

// NewInspector creates an inspector docked to the right edge.
func NewInspector(screenWidth, screenHeight int32) *Inspector {
	ins := &Inspector{panelY: 10}
	ins.Resize(screenWidth, screenHeight)
	return ins
}

// Resize re-docks the panel.
func (ins *Inspector) Resize(screenWidth, screenHeight int32) {
	ins.screenWidth = screenWidth
	ins.screenHeight = screenHeight
	ins.panelX = screenWidth - PanelWidth - 10
}

// Select shows the layer with the given id.
func (ins *Inspector) Select(id string) {
	ins.selected = id
	ins.hasSelected = true
}

// Deselect closes the panel.
func (ins *Inspector) Deselect() {
	ins.selected = ""
	ins.hasSelected = false
}

// Selected returns the selected layer id.
func (ins *Inspector) Selected() (string, bool) {
	return ins.selected, ins.hasSelected
}

// Cycle selects the layer after the current one in ids. Past the last layer
// the panel closes; from closed it opens on the first.
func (ins *Inspector) Cycle(ids []string) {
	if len(ids) == 0 {
		ins.Deselect()
		return
	}
	if !ins.hasSelected {
		ins.Select(ids[0])
		return
	}
	i := slices.Index(ids, ins.selected)
	if i < 0 || i+1 >= len(ids) {
		ins.Deselect()
		return
	}
	ins.Select(ids[i+1])
}

// HandleInput closes the panel on Escape or a click on its close button.
// It reports whether the mouse is over the panel, so callers can skip their
// own mouse handling.
func (ins *Inspector) HandleInput(mouseX, mouseY float32) bool {
	if !ins.hasSelected {
		return false
	}
	if rl.IsKeyPressed(rl.KeyEscape) {
		ins.Deselect()
		return false
	}

	mx, my := int32(mouseX), int32(mouseY)
	closeX := ins.panelX + PanelWidth - 25
	closeY := ins.panelY + 5
	if rl.IsMouseButtonPressed(rl.MouseButtonLeft) &&
		mx >= closeX && mx <= closeX+20 && my >= closeY && my <= closeY+20 {
		ins.Deselect()
		return true
	}
	return mx >= ins.panelX && mx <= ins.panelX+PanelWidth && my >= ins.panelY
}

// PanelHeight returns the height needed to list sections.
func PanelHeight(sections []Section) int32 {
	h := int32(HeaderHeight + PanelPadding)
	for _, s := range sections {
		h += lineHeight + 4
		h += int32(len(ExtractFields(s.Value))) * lineHeight
		h += 6
	}
	return h
}

// Draw renders the panel for the selected layer.
func (ins *Inspector) Draw(sections []Section) {
	if !ins.hasSelected {
		return
	}

	height := PanelHeight(sections)
	rl.DrawRectangle(ins.panelX, ins.panelY, PanelWidth, height, ColorPanelBg)
	rl.DrawRectangleLinesEx(
		rl.Rectangle{X: float32(ins.panelX), Y: float32(ins.panelY), Width: PanelWidth, Height: float32(height)},
		1,
		ColorPanelBorder,
	)

	// Header
	rl.DrawRectangle(ins.panelX, ins.panelY, PanelWidth, HeaderHeight, ColorPanelHeader)
	rl.DrawText("Layer: "+ins.selected, ins.panelX+PanelPadding, ins.panelY+8, 16, ColorHeaderText)
	closeX := ins.panelX + PanelWidth - 25
	rl.DrawRectangle(closeX, ins.panelY+5, 20, 20, ColorCloseBtn)
	rl.DrawText("x", closeX+6, ins.panelY+7, 16, ColorHeaderText)

	x := ins.panelX + PanelPadding
	y := ins.panelY + HeaderHeight + PanelPadding
	for _, s := range sections {
		rl.DrawText(s.Title, x, y, 14, ColorSectionText)
		y += lineHeight + 4
		for _, f := range ExtractFields(s.Value) {
			y += DrawField(x+8, y, f)
		}
		y += 6
	}
}
