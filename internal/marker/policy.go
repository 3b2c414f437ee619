package marker

import (
	"math"

	"github.com/OCAP2/locationmarker/pkg/core"
)

// Property names one animatable attribute of the marker
type Property int

const (
	DotSize Property = iota
	DotOpacity
	ArrowRotation
	ArrowScale
	ArrowVisibility
)

func (p Property) String() string {
	switch p {
	case DotSize:
		return "dotSize"
	case DotOpacity:
		return "dotOpacity"
	case ArrowRotation:
		return "arrowRotation"
	case ArrowScale:
		return "arrowScale"
	case ArrowVisibility:
		return "arrowVisibility"
	default:
		return "unknown"
	}
}

// Transition is how a property change reaches the screen
type Transition int

const (
	// Jump applies the new value in the next frame
	Jump Transition = iota
	// Animate lets the compositor interpolate from the old value
	Animate
)

// Change is one property that differs between committed and candidate geometry
type Change struct {
	Property   Property
	Transition Transition
}

// ChangeSet is everything one update commits together
type ChangeSet []Change

// Empty reports whether nothing changed
func (c ChangeSet) Empty() bool {
	return len(c) == 0
}

// Has reports whether p is part of the change set
func (c ChangeSet) Has(p Property) bool {
	for _, ch := range c {
		if ch.Property == p {
			return true
		}
	}
	return false
}

// Animated reports whether any change should be interpolated
func (c ChangeSet) Animated() bool {
	for _, ch := range c {
		if ch.Transition == Animate {
			return true
		}
	}
	return false
}

// Policy decides which changes are committed and how they are shown
type Policy struct {
	// DotThreshold is the smallest dot size delta, in screen units, that is
	// animated. Smaller deltas are applied without interpolation.
	DotThreshold float64
}

// Classify compares committed geometry with a candidate. The hit-test
// region is never part of the result.
func (p Policy) Classify(prev, next core.MarkerGeometry) ChangeSet {
	var changes ChangeSet

	dotTransition := Jump
	if next.DotSize != prev.DotSize {
		if math.Abs(next.DotSize-prev.DotSize) >= p.DotThreshold {
			dotTransition = Animate
		}
		changes = append(changes, Change{Property: DotSize, Transition: dotTransition})
	}
	if next.DotOpacity != prev.DotOpacity {
		changes = append(changes, Change{Property: DotOpacity, Transition: dotTransition})
	}

	if prev.ArrowVisible() != next.ArrowVisible() {
		changes = append(changes, Change{Property: ArrowVisibility, Transition: Jump})
	}
	if next.ArrowVisible() {
		if !prev.ArrowVisible() || *prev.ArrowRotation != *next.ArrowRotation {
			changes = append(changes, Change{Property: ArrowRotation, Transition: Jump})
		}
		if next.ArrowScale != prev.ArrowScale {
			changes = append(changes, Change{Property: ArrowScale, Transition: Jump})
		}
	}

	return changes
}
