package render

import "github.com/OCAP2/locationmarker/internal/marker"

// Fanout groups renderers so one engine transaction reaches all of them.
// The writes run once and are replayed into each renderer's own
// transaction, in order.
type Fanout []marker.Renderer

// Transaction implements marker.Renderer.
func (f Fanout) Transaction(suppressAnimation bool, writes func(marker.Layer)) {
	var ops recording
	writes(&ops)

	for _, r := range f {
		if r == nil {
			continue
		}
		r.Transaction(suppressAnimation, ops.replay)
	}
}

// recording is a Layer that keeps the writes for replay
type recording []func(marker.Layer)

func (r *recording) SetDot(size, opacity float64) {
	*r = append(*r, func(l marker.Layer) { l.SetDot(size, opacity) })
}

func (r *recording) SetArrow(rotation, scale float64) {
	*r = append(*r, func(l marker.Layer) { l.SetArrow(rotation, scale) })
}

func (r *recording) HideArrow() {
	*r = append(*r, func(l marker.Layer) { l.HideArrow() })
}

func (r recording) replay(l marker.Layer) {
	for _, op := range r {
		op(l)
	}
}
