// Package layer defines the contract between custom map layers and the host
// that drives them.
package layer

import (
	"github.com/pthm-cable/windlayer/gpu"
)

// Host is what a layer can ask of the map it is attached to.
type Host interface {
	// TriggerRepaint schedules another frame. Safe from any goroutine.
	TriggerRepaint()
}

// Layer is a custom layer. The host calls Attach once, Render every frame
// with the current projection matrix, and Detach once on removal. All three
// run on the render thread.
type Layer interface {
	ID() string
	On(kind EventKind, fn Handler)
	Attach(dev gpu.Device, host Host) error
	Render(dev gpu.Device, matrix gpu.Mat4)
	Detach(dev gpu.Device)
}
