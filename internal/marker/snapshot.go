package marker

import (
	"sync"

	"github.com/OCAP2/locationmarker/pkg/core"
)

// InitialGeometry is the resting marker: minimum dot, no arrow and the
// tap target centered in the canvas.
func InitialGeometry(p Params) core.MarkerGeometry {
	offset := p.CanvasSize/2 - p.HitTestSize/2
	return core.MarkerGeometry{
		DotSize:       p.MinDotSize,
		DotOpacity:    clamp(p.OpacityFloor+(p.MaxDotSize()-p.MinDotSize)/p.MaxDotSize(), 0, 1),
		ArrowScale:    1,
		HitTestRegion: core.Rect{X: offset, Y: offset, Width: p.HitTestSize, Height: p.HitTestSize},
	}
}

// Snapshot rebuilds the full committed geometry on the renderer side of
// the boundary, where transactions only carry changed properties.
type Snapshot struct {
	mu sync.RWMutex
	g  core.MarkerGeometry
}

// NewSnapshot starts from the resting geometry for p
func NewSnapshot(p Params) *Snapshot {
	return &Snapshot{g: InitialGeometry(p)}
}

// Geometry returns a copy of the rebuilt geometry
func (s *Snapshot) Geometry() core.MarkerGeometry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.g.Clone()
}

// Layer returns a Layer that applies every write to the snapshot before
// forwarding it to inner. inner may be nil.
func (s *Snapshot) Layer(inner Layer) Layer {
	return &snapshotLayer{s: s, inner: inner}
}

type snapshotLayer struct {
	s     *Snapshot
	inner Layer
}

func (l *snapshotLayer) SetDot(size, opacity float64) {
	l.s.mu.Lock()
	l.s.g.DotSize = size
	l.s.g.DotOpacity = opacity
	l.s.mu.Unlock()
	if l.inner != nil {
		l.inner.SetDot(size, opacity)
	}
}

func (l *snapshotLayer) SetArrow(rotation, scale float64) {
	l.s.mu.Lock()
	r := rotation
	l.s.g.ArrowRotation = &r
	l.s.g.ArrowScale = scale
	l.s.mu.Unlock()
	if l.inner != nil {
		l.inner.SetArrow(rotation, scale)
	}
}

func (l *snapshotLayer) HideArrow() {
	l.s.mu.Lock()
	l.s.g.ArrowRotation = nil
	l.s.mu.Unlock()
	if l.inner != nil {
		l.inner.HideArrow()
	}
}
