// pkg/core/marker.go
package core

// Point is a position in marker canvas coordinates (screen units, origin top-left)
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is an axis-aligned rectangle in marker canvas coordinates
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the midpoint of the rectangle
func (r Rect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// MarkerGeometry is the committed visual state of the user location marker.
// ArrowRotation is nil exactly when no heading is available.
type MarkerGeometry struct {
	DotSize       float64  `json:"dotSize"`
	DotOpacity    float64  `json:"dotOpacity"`
	ArrowRotation *float64 `json:"arrowRotation,omitempty"` // radians
	ArrowScale    float64  `json:"arrowScale"`
	HitTestRegion Rect     `json:"hitTestRegion"`
}

// ArrowVisible reports whether the heading arrow is drawn
func (g MarkerGeometry) ArrowVisible() bool {
	return g.ArrowRotation != nil
}

// Clone returns a copy that shares no pointers with g
func (g MarkerGeometry) Clone() MarkerGeometry {
	out := g
	if g.ArrowRotation != nil {
		r := *g.ArrowRotation
		out.ArrowRotation = &r
	}
	return out
}

// TrackingMode is the camera behavior of the map relative to the user
type TrackingMode int

const (
	TrackingNone TrackingMode = iota
	TrackingFollow
	TrackingFollowWithHeading
)

func (m TrackingMode) String() string {
	switch m {
	case TrackingFollow:
		return "follow"
	case TrackingFollowWithHeading:
		return "followWithHeading"
	default:
		return "none"
	}
}
