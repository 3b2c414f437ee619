package geo

import (
	"math"
	"sync"
	"time"

	"github.com/OCAP2/locationmarker/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// Projection answers the two scale questions the marker needs from the map.
// Both report false while no map surface is attached.
type Projection interface {
	MetersPerScreenUnit(latitude float64) (float64, bool)
	Bearing() (float64, bool)
}

// Camera is the command side of the map service
type Camera interface {
	// SetBearing rotates the camera over duration and calls done once the
	// animation has finished. done may be nil.
	SetBearing(bearing float64, duration time.Duration, done func())
	SetTrackingMode(mode core.TrackingMode)
}

// DefaultTileSize is the edge length of one map tile in screen units
const DefaultTileSize = 512.0

// MaxMercatorLatitude is the latitude at which the Web Mercator world
// becomes square. The projection has no usable scale beyond it.
const MaxMercatorLatitude = 85.05112878

// Viewport is an in-process map camera: zoom, bearing, center and whether a
// drawing surface is currently attached. It is safe for concurrent use.
type Viewport struct {
	mu       sync.RWMutex
	attached bool
	zoom     float64
	bearing  float64
	center   core.Coordinate
	tileSize float64
	tracking core.TrackingMode

	worldWidth float64
	afterFunc  func(time.Duration, func())
}

// NewViewport creates a detached viewport with the given tile size.
// A non-positive tile size falls back to DefaultTileSize.
func NewViewport(tileSize float64) *Viewport {
	if tileSize <= 0 {
		tileSize = DefaultTileSize
	}
	return &Viewport{
		tileSize:   tileSize,
		worldWidth: WorldWidth(),
		afterFunc: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
}

// Attach marks the map surface as laid out and ready for queries
func (v *Viewport) Attach() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.attached = true
}

// Detach marks the map surface as gone; projection queries become unavailable
func (v *Viewport) Detach() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.attached = false
}

// Attached reports whether a map surface is attached
func (v *Viewport) Attached() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.attached
}

// SetZoom sets the zoom level, clamped to [0, 24]
func (v *Viewport) SetZoom(zoom float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.zoom = math.Max(0, math.Min(24, zoom))
}

// Zoom returns the current zoom level
func (v *Viewport) Zoom() float64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.zoom
}

// SetCenter moves the camera center
func (v *Viewport) SetCenter(c core.Coordinate) error {
	if !ValidCoordinate(c) {
		return ErrInvalidCoordinates
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.center = c
	return nil
}

// ProjectedCenter returns the camera center in EPSG:3857
func (v *Viewport) ProjectedCenter() (geom.Point, error) {
	v.mu.RLock()
	c := v.center
	v.mu.RUnlock()
	return Coords3857From4326(c.Longitude, c.Latitude)
}

// MetersPerScreenUnit returns the ground distance covered by one screen unit
// at the given latitude for the current zoom. Latitudes past
// MaxMercatorLatitude are unavailable.
func (v *Viewport) MetersPerScreenUnit(latitude float64) (float64, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if !v.attached || math.Abs(latitude) > MaxMercatorLatitude {
		return 0, false
	}
	resolution := v.worldWidth / (v.tileSize * math.Exp2(v.zoom))
	mpp := resolution * math.Cos(DegreesToRadians(latitude))
	if mpp <= 0 || math.IsNaN(mpp) || math.IsInf(mpp, 0) {
		return 0, false
	}
	return mpp, true
}

// Bearing returns the camera bearing in degrees
func (v *Viewport) Bearing() (float64, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if !v.attached {
		return 0, false
	}
	return v.bearing, true
}

// SetBearing sets the camera bearing. The renderer interpolates the rotation
// over duration; done fires after it.
func (v *Viewport) SetBearing(bearing float64, duration time.Duration, done func()) {
	bearing = math.Mod(bearing, 360)
	if bearing < 0 {
		bearing += 360
	}

	v.mu.Lock()
	v.bearing = bearing
	after := v.afterFunc
	v.mu.Unlock()

	if done == nil {
		return
	}
	if duration <= 0 {
		done()
		return
	}
	after(duration, done)
}

// SetTrackingMode switches how the camera follows the user
func (v *Viewport) SetTrackingMode(mode core.TrackingMode) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tracking = mode
}

// TrackingMode returns the current camera tracking mode
func (v *Viewport) TrackingMode() core.TrackingMode {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.tracking
}

// State samples the projection at latitude in one call. A scale that is not
// a positive finite number counts as unavailable.
func State(p Projection, latitude float64) (core.ProjectionState, bool) {
	mpp, ok := p.MetersPerScreenUnit(latitude)
	if !ok || mpp <= 0 || math.IsNaN(mpp) || math.IsInf(mpp, 0) {
		return core.ProjectionState{}, false
	}
	bearing, ok := p.Bearing()
	if !ok || math.IsNaN(bearing) || math.IsInf(bearing, 0) {
		return core.ProjectionState{}, false
	}
	return core.ProjectionState{MetersPerScreenUnit: mpp, Bearing: bearing}, true
}
