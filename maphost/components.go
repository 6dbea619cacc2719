package maphost

import "github.com/pthm-cable/windlayer/layer"

// Slot orders layers bottom to top.
type Slot struct {
	Order int `inspect:"label"`
}

// Visible toggles drawing without detaching.
type Visible struct {
	On bool `inspect:"label"`
}

// LayerRef holds the attached layer.
type LayerRef struct {
	Layer layer.Layer `inspect:"skip"`
	ID    string      `inspect:"label"`
}
