package provider

import (
	"context"
	"time"

	"github.com/OCAP2/locationmarker/internal/geo"
	"github.com/OCAP2/locationmarker/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// Step is one scripted delivery. Either field may be nil.
type Step struct {
	Location *core.LocationFix
	Heading  *core.HeadingFix
}

// Replay is a Source that plays back a fixed script
type Replay struct {
	Steps    []Step
	Interval time.Duration
	Loop     bool
}

// NewTrackReplay walks a track vertex by vertex, facing the next vertex.
// The last vertex keeps the previous heading.
func NewTrackReplay(track geom.LineString, accuracy float64, interval time.Duration) *Replay {
	coords := geo.TrackCoordinates(track)
	steps := make([]Step, 0, len(coords))

	var heading float64
	for i, c := range coords {
		if i+1 < len(coords) {
			heading = geo.InitialBearing(c, coords[i+1])
		}
		steps = append(steps, Step{
			Location: &core.LocationFix{Coordinate: c, HorizontalAccuracy: accuracy},
			Heading:  &core.HeadingFix{TrueHeading: heading},
		})
	}
	return &Replay{Steps: steps, Interval: interval}
}

// Run implements Source. Fixes are stamped with the delivery time.
func (r *Replay) Run(ctx context.Context, sink Sink) error {
	for {
		for _, step := range r.Steps {
			if err := ctx.Err(); err != nil {
				return err
			}

			now := time.Now()
			if step.Location != nil {
				fix := *step.Location
				fix.Timestamp = now
				sink.Location(fix)
			}
			if step.Heading != nil {
				fix := *step.Heading
				fix.Timestamp = now
				sink.Heading(fix)
			}

			if r.Interval > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(r.Interval):
				}
			}
		}
		if !r.Loop || len(r.Steps) == 0 {
			return nil
		}
	}
}
