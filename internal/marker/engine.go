package marker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/OCAP2/locationmarker/internal/geo"
	"github.com/OCAP2/locationmarker/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Layer receives the property writes of one render transaction
type Layer interface {
	SetDot(size, opacity float64)
	SetArrow(rotation, scale float64)
	HideArrow()
}

// Renderer materializes committed geometry. All writes made inside one
// Transaction call must become visible together. When suppressAnimation is
// set the new values are applied without implicit interpolation.
type Renderer interface {
	Transaction(suppressAnimation bool, writes func(Layer))
}

// LocationService is the part of the location provider the marker controls
type LocationService interface {
	StopUpdatingLocation()
	StopUpdatingHeading()
}

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Dependencies holds the collaborators of an Engine
type Dependencies struct {
	Params     Params
	Projection geo.Projection
	Camera     geo.Camera
	Renderer   Renderer
	Locations  LocationService
	Logger     Logger
}

// Engine owns the marker geometry and recomputes it from location, heading
// and projection. Calls that mutate state (Update, OnLocation, OnHeading,
// Refresh, Close) must be serialized by the caller; Geometry, HitTest and
// ArrowOutline may be called from any goroutine.
type Engine struct {
	params     Params
	policy     Policy
	projection geo.Projection
	camera     geo.Camera
	renderer   Renderer
	locations  LocationService
	logger     Logger

	hitRegion geom.Envelope

	mu       sync.RWMutex
	geometry core.MarkerGeometry
	location *core.LocationFix
	heading  *core.HeadingFix
	closed   bool

	committed  metric.Int64Counter
	skipped    metric.Int64Counter
	recentered metric.Int64Counter
}

// New creates an Engine with the marker at its resting size and no arrow.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(deps Dependencies) (*Engine, error) {
	if err := deps.Params.Validate(); err != nil {
		return nil, err
	}
	if deps.Projection == nil {
		return nil, fmt.Errorf("marker: projection is required")
	}
	if deps.Renderer == nil {
		return nil, fmt.Errorf("marker: renderer is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p := deps.Params
	initial := InitialGeometry(p)
	region := initial.HitTestRegion
	hitRegion, err := geom.NewEnvelope([]geom.XY{
		{X: region.X, Y: region.Y},
		{X: region.X + region.Width, Y: region.Y + region.Height},
	})
	if err != nil {
		return nil, fmt.Errorf("hit-test region: %w", err)
	}

	e := &Engine{
		params:     p,
		policy:     Policy{DotThreshold: p.DotThreshold},
		projection: deps.Projection,
		camera:     deps.Camera,
		renderer:   deps.Renderer,
		locations:  deps.Locations,
		logger:     logger,
		hitRegion:  hitRegion,
		geometry:   initial,
	}

	m := meter()

	e.committed, err = m.Int64Counter(
		"marker.updates.committed",
		metric.WithDescription("Updates that produced a render transaction"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating committed counter: %w", err)
	}

	e.skipped, err = m.Int64Counter(
		"marker.updates.skipped",
		metric.WithDescription("Updates that left the geometry untouched"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating skipped counter: %w", err)
	}

	e.recentered, err = m.Int64Counter(
		"marker.taps.recentered",
		metric.WithDescription("Taps that rotated the camera to the user heading"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating recentered counter: %w", err)
	}

	return e, nil
}

// Params returns the tuning the engine was built with
func (e *Engine) Params() Params {
	return e.params
}

// Geometry returns a copy of the committed geometry
func (e *Engine) Geometry() core.MarkerGeometry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.geometry.Clone()
}

// OnLocation records a new location fix and updates the marker
func (e *Engine) OnLocation(fix core.LocationFix) bool {
	e.mu.RLock()
	heading := e.heading
	e.mu.RUnlock()
	return e.Update(&fix, heading)
}

// OnHeading records a new heading fix and updates the marker
func (e *Engine) OnHeading(fix core.HeadingFix) bool {
	e.mu.RLock()
	location := e.location
	e.mu.RUnlock()
	return e.Update(location, &fix)
}

// Refresh re-evaluates the latest fixes, e.g. after the map zoomed or rotated
func (e *Engine) Refresh() bool {
	e.mu.RLock()
	location, heading := e.location, e.heading
	e.mu.RUnlock()
	return e.Update(location, heading)
}

// Update recomputes the marker from the given fixes and the current
// projection. It reports whether a render transaction was issued. Missing
// location or an unavailable projection leave the geometry untouched.
func (e *Engine) Update(location *core.LocationFix, heading *core.HeadingFix) bool {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return false
	}
	if location != nil {
		fix := *location
		e.location = &fix
	}
	e.heading = nil
	if heading != nil && heading.Valid() {
		fix := *heading
		e.heading = &fix
	}
	prev := e.geometry
	e.mu.Unlock()

	if location == nil {
		e.skip("no_location")
		return false
	}

	state, ok := geo.State(e.projection, location.Coordinate.Latitude)
	if !ok {
		e.logger.Debug("projection unavailable, keeping marker geometry")
		e.skip("projection_unavailable")
		return false
	}

	next := Compute(e.params, prev, *location, heading, state)
	changes := e.policy.Classify(prev, next)
	if changes.Empty() {
		e.skip("unchanged")
		return false
	}

	e.commit(next, changes)
	return true
}

func (e *Engine) commit(next core.MarkerGeometry, changes ChangeSet) {
	e.mu.Lock()
	e.geometry = next.Clone()
	e.mu.Unlock()

	e.renderer.Transaction(!changes.Animated(), func(l Layer) {
		if changes.Has(DotSize) || changes.Has(DotOpacity) {
			l.SetDot(next.DotSize, next.DotOpacity)
		}
		switch {
		case next.ArrowVisible() && (changes.Has(ArrowRotation) || changes.Has(ArrowScale)):
			l.SetArrow(*next.ArrowRotation, next.ArrowScale)
		case !next.ArrowVisible() && changes.Has(ArrowVisibility):
			l.HideArrow()
		}
	})

	e.committed.Add(context.Background(), 1,
		metric.WithAttributes(attribute.Bool("animated", changes.Animated())))
	e.logger.Debug("marker committed",
		"dotSize", next.DotSize,
		"dotOpacity", next.DotOpacity,
		"arrowVisible", next.ArrowVisible(),
		"arrowScale", next.ArrowScale,
		"changes", len(changes),
		"animated", changes.Animated(),
	)
}

func (e *Engine) skip(reason string) {
	e.skipped.Add(context.Background(), 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// HitTestRegion returns the fixed tap target in canvas coordinates
func (e *Engine) HitTestRegion() core.Rect {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.geometry.HitTestRegion
}

// HitTest reports whether point lies inside the tap target
func (e *Engine) HitTest(point core.Point) bool {
	return e.hitRegion.Contains(geom.XY{X: point.X, Y: point.Y})
}

// OnTap rotates the camera to the current heading when the tap hits the
// marker, then switches the map into heading-follow tracking. It reports
// whether a recenter was requested.
func (e *Engine) OnTap(point core.Point) bool {
	if !e.HitTest(point) || e.camera == nil {
		return false
	}

	e.mu.RLock()
	heading := e.heading
	closed := e.closed
	e.mu.RUnlock()
	if heading == nil || closed {
		return false
	}

	camera := e.camera
	e.camera.SetBearing(heading.Normalized(), e.params.RecenterDuration, func() {
		camera.SetTrackingMode(core.TrackingFollowWithHeading)
	})
	e.recentered.Add(context.Background(), 1)
	e.logger.Info("recentering on user heading", "heading", heading.Normalized())
	return true
}

// Close tears the marker down and stops the location provider. Later
// updates are ignored.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()

	if e.locations != nil {
		e.locations.StopUpdatingLocation()
		e.locations.StopUpdatingHeading()
	}
	e.logger.Info("marker closed")
}
