package marker

import (
	"fmt"
	"time"

	"github.com/OCAP2/locationmarker/pkg/core"
)

type fakeProjection struct {
	mpp       float64
	bearing   float64
	available bool
}

func (p *fakeProjection) MetersPerScreenUnit(float64) (float64, bool) {
	return p.mpp, p.available
}

func (p *fakeProjection) Bearing() (float64, bool) {
	return p.bearing, p.available
}

type transaction struct {
	suppressAnimation bool
	writes            []string
}

// fakeRenderer records every transaction and the layer writes inside it
type fakeRenderer struct {
	transactions []transaction
	open         *transaction
}

func (r *fakeRenderer) Transaction(suppressAnimation bool, writes func(Layer)) {
	r.open = &transaction{suppressAnimation: suppressAnimation}
	writes(r)
	r.transactions = append(r.transactions, *r.open)
	r.open = nil
}

func (r *fakeRenderer) SetDot(size, opacity float64) {
	r.open.writes = append(r.open.writes, fmt.Sprintf("dot %.3f %.3f", size, opacity))
}

func (r *fakeRenderer) SetArrow(rotation, scale float64) {
	r.open.writes = append(r.open.writes, fmt.Sprintf("arrow %.3f %.3f", rotation, scale))
}

func (r *fakeRenderer) HideArrow() {
	r.open.writes = append(r.open.writes, "hide")
}

func (r *fakeRenderer) last() transaction {
	return r.transactions[len(r.transactions)-1]
}

type fakeCamera struct {
	bearing  float64
	duration time.Duration
	calls    int
	mode     core.TrackingMode
	pending  func()
}

func (c *fakeCamera) SetBearing(bearing float64, duration time.Duration, done func()) {
	c.bearing = bearing
	c.duration = duration
	c.calls++
	c.pending = done
}

func (c *fakeCamera) SetTrackingMode(mode core.TrackingMode) {
	c.mode = mode
}

type fakeLocations struct {
	locationStopped bool
	headingStopped  bool
}

func (l *fakeLocations) StopUpdatingLocation() { l.locationStopped = true }
func (l *fakeLocations) StopUpdatingHeading()  { l.headingStopped = true }

type discardLogger struct{}

func (discardLogger) Debug(string, ...any) {}
func (discardLogger) Info(string, ...any)  {}
func (discardLogger) Error(string, ...any) {}

func fix(accuracy float64) *core.LocationFix {
	return &core.LocationFix{
		Coordinate:         core.Coordinate{Latitude: 52.52, Longitude: 13.405},
		HorizontalAccuracy: accuracy,
		Timestamp:          time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func heading(deg float64) *core.HeadingFix {
	return &core.HeadingFix{TrueHeading: deg}
}
