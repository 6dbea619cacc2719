// Package maphost is a minimal map: it owns the device, keeps custom layers
// in draw order and drives their lifecycle. Layers are stored as ECS
// entities so visibility and ordering are plain component updates.
package maphost

import (
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/windlayer/gpu"
	"github.com/pthm-cable/windlayer/layer"
)

// Map hosts layers on one device.
type Map struct {
	dev    gpu.Device
	logger *slog.Logger

	world  *ecs.World
	mapper *ecs.Map3[Slot, Visible, LayerRef]
	filter *ecs.Filter3[Slot, Visible, LayerRef]
	ids    map[string]ecs.Entity
	next   int

	repaint atomic.Bool
	drawn   []layer.Layer
}

var _ layer.Host = (*Map)(nil)

// New creates an empty map drawing to dev. A nil logger uses slog.Default.
func New(dev gpu.Device, logger *slog.Logger) *Map {
	if logger == nil {
		logger = slog.Default()
	}
	world := ecs.NewWorld()
	return &Map{
		dev:    dev,
		logger: logger,
		world:  world,
		mapper: ecs.NewMap3[Slot, Visible, LayerRef](world),
		filter: ecs.NewFilter3[Slot, Visible, LayerRef](world),
		ids:    make(map[string]ecs.Entity),
	}
}

// Device returns the map's device.
func (m *Map) Device() gpu.Device { return m.dev }

// AddLayer attaches l on top of the existing layers. If Attach fails the
// layer is not added.
func (m *Map) AddLayer(l layer.Layer) error {
	id := l.ID()
	if _, ok := m.ids[id]; ok {
		return fmt.Errorf("maphost: layer %q already added", id)
	}
	if err := l.Attach(m.dev, m); err != nil {
		return fmt.Errorf("maphost: attaching %q: %w", id, err)
	}
	e := m.mapper.NewEntity(&Slot{Order: m.next}, &Visible{On: true}, &LayerRef{Layer: l, ID: id})
	m.ids[id] = e
	m.next++
	m.logger.Info("layer added", "layer", id, "slot", m.next-1)
	m.TriggerRepaint()
	return nil
}

// RemoveLayer detaches and forgets the layer with the given id.
func (m *Map) RemoveLayer(id string) bool {
	e, ok := m.ids[id]
	if !ok {
		return false
	}
	_, _, ref := m.mapper.Get(e)
	ref.Layer.Detach(m.dev)
	m.mapper.Remove(e)
	delete(m.ids, id)
	m.logger.Info("layer removed", "layer", id)
	m.TriggerRepaint()
	return true
}

// Layer returns the layer with the given id.
func (m *Map) Layer(id string) (layer.Layer, bool) {
	e, ok := m.ids[id]
	if !ok {
		return nil, false
	}
	_, _, ref := m.mapper.Get(e)
	return ref.Layer, true
}

// Components returns copies of the layer's components for display.
func (m *Map) Components(id string) ([]any, bool) {
	e, ok := m.ids[id]
	if !ok {
		return nil, false
	}
	slot, vis, ref := m.mapper.Get(e)
	return []any{*ref, *slot, *vis}, true
}

// SetVisible shows or hides a layer. Hidden layers stay attached.
func (m *Map) SetVisible(id string, on bool) bool {
	e, ok := m.ids[id]
	if !ok {
		return false
	}
	_, vis, _ := m.mapper.Get(e)
	if vis.On != on {
		vis.On = on
		m.TriggerRepaint()
	}
	return true
}

// Visible reports whether the layer is drawn.
func (m *Map) Visible(id string) bool {
	e, ok := m.ids[id]
	if !ok {
		return false
	}
	_, vis, _ := m.mapper.Get(e)
	return vis.On
}

// MoveToTop draws the layer above all others.
func (m *Map) MoveToTop(id string) bool {
	e, ok := m.ids[id]
	if !ok {
		return false
	}
	slot, _, _ := m.mapper.Get(e)
	slot.Order = m.next
	m.next++
	m.TriggerRepaint()
	return true
}

type entry struct {
	order   int
	visible bool
	layer   layer.Layer
}

// sorted returns every layer in draw order.
func (m *Map) sorted() []entry {
	var out []entry
	query := m.filter.Query()
	for query.Next() {
		slot, vis, ref := query.Get()
		out = append(out, entry{order: slot.Order, visible: vis.On, layer: ref.Layer})
	}
	slices.SortFunc(out, func(a, b entry) int { return a.order - b.order })
	return out
}

// IDs returns layer ids bottom to top.
func (m *Map) IDs() []string {
	entries := m.sorted()
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.layer.ID()
	}
	return ids
}

// Frame renders every visible layer bottom to top with the given projection
// and returns how many were rendered. Layers may add or remove others from
// their event handlers; the change applies next frame.
func (m *Map) Frame(matrix gpu.Mat4) int {
	m.drawn = m.drawn[:0]
	for _, e := range m.sorted() {
		if e.visible {
			m.drawn = append(m.drawn, e.layer)
		}
	}
	for _, l := range m.drawn {
		l.Render(m.dev, matrix)
	}
	return len(m.drawn)
}

// TriggerRepaint implements layer.Host.
func (m *Map) TriggerRepaint() { m.repaint.Store(true) }

// RepaintRequested reports and clears a pending repaint request.
func (m *Map) RepaintRequested() bool { return m.repaint.Swap(false) }

// Close detaches every layer.
func (m *Map) Close() {
	for _, e := range m.sorted() {
		id := e.layer.ID()
		e.layer.Detach(m.dev)
		m.mapper.Remove(m.ids[id])
		delete(m.ids, id)
	}
	m.logger.Info("map closed")
}
