// pkg/core/location.go
package core

import (
	"math"
	"time"
)

// Coordinate is a WGS84 position in decimal degrees
type Coordinate struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

// LocationFix is a single position sample delivered by a location provider.
// A newer fix always supersedes an older one.
type LocationFix struct {
	Coordinate         Coordinate `json:"coordinate"`
	HorizontalAccuracy float64    `json:"horizontalAccuracy"` // meters
	Timestamp          time.Time  `json:"timestamp"`
}

// HeadingFix is a single compass sample delivered by a location provider.
type HeadingFix struct {
	TrueHeading float64   `json:"trueHeading"` // degrees, [0, 360)
	Timestamp   time.Time `json:"timestamp"`
}

// Valid reports whether the heading carries a usable direction.
// Providers report a negative heading when the compass has no fix.
func (h HeadingFix) Valid() bool {
	return h.TrueHeading >= 0 && !math.IsInf(h.TrueHeading, 0) && !math.IsNaN(h.TrueHeading)
}

// Normalized returns the heading wrapped into [0, 360).
func (h HeadingFix) Normalized() float64 {
	deg := math.Mod(h.TrueHeading, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

// ProjectionState is the map scale and rotation sampled for one update
type ProjectionState struct {
	MetersPerScreenUnit float64
	Bearing             float64 // degrees
}

// AuthorizationStatus mirrors the permission states a location provider can be in
type AuthorizationStatus int

const (
	AuthorizationNotDetermined AuthorizationStatus = iota
	AuthorizationRestricted
	AuthorizationDenied
	AuthorizationAlways
	AuthorizationWhenInUse
)

// Authorized reports whether the provider may deliver fixes.
func (s AuthorizationStatus) Authorized() bool {
	return s == AuthorizationAlways || s == AuthorizationWhenInUse
}

func (s AuthorizationStatus) String() string {
	switch s {
	case AuthorizationRestricted:
		return "restricted"
	case AuthorizationDenied:
		return "denied"
	case AuthorizationAlways:
		return "always"
	case AuthorizationWhenInUse:
		return "whenInUse"
	default:
		return "notDetermined"
	}
}

// ParseAuthorizationStatus maps the String form back to a status.
// Unknown names resolve to AuthorizationNotDetermined with ok false.
func ParseAuthorizationStatus(s string) (AuthorizationStatus, bool) {
	switch s {
	case "restricted":
		return AuthorizationRestricted, true
	case "denied":
		return AuthorizationDenied, true
	case "always":
		return AuthorizationAlways, true
	case "whenInUse":
		return AuthorizationWhenInUse, true
	case "notDetermined":
		return AuthorizationNotDetermined, true
	}
	return AuthorizationNotDetermined, false
}
