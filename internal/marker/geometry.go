package marker

import (
	"math"

	"github.com/OCAP2/locationmarker/internal/geo"
	"github.com/OCAP2/locationmarker/pkg/core"
)

// Compute derives the marker geometry for one set of inputs. It never looks
// at previously committed state; prev only supplies the arrow scale to keep
// while the arrow is hidden and the fixed hit-test region.
func Compute(p Params, prev core.MarkerGeometry, loc core.LocationFix, heading *core.HeadingFix, proj core.ProjectionState) core.MarkerGeometry {
	mpp := proj.MetersPerScreenUnit
	maxDot := p.MaxDotSize()

	accuracy := loc.HorizontalAccuracy
	if accuracy < 0 || math.IsNaN(accuracy) {
		accuracy = 0
	}

	accuracySize := accuracy / mpp * 2.0
	minVisible := p.MinDotMeters / mpp

	next := core.MarkerGeometry{
		DotSize:       math.Min(maxDot, math.Max(accuracySize, math.Max(minVisible, p.MinDotSize))),
		DotOpacity:    clamp(p.OpacityFloor+(maxDot-accuracySize)/maxDot, 0, 1),
		ArrowScale:    prev.ArrowScale,
		HitTestRegion: prev.HitTestRegion,
	}

	if heading != nil && heading.Valid() {
		rotation := -geo.DegreesToRadians(proj.Bearing - heading.Normalized())
		next.ArrowRotation = &rotation

		scale := math.Max(1.0, (p.ArrowMeters/mpp)/p.MinArrowSize)
		if limit := p.MaxArrowScale(); limit > 0 {
			scale = math.Min(scale, limit)
		}
		next.ArrowScale = scale
	}
	if next.ArrowScale < 1 {
		next.ArrowScale = 1
	}

	return next
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
