package core

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeadingFix_Valid(t *testing.T) {
	tests := []struct {
		heading float64
		want    bool
	}{
		{0, true},
		{359.9, true},
		{720, true},
		{-1, false},
		{math.NaN(), false},
		{math.Inf(1), false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, HeadingFix{TrueHeading: tt.heading}.Valid(), "heading %v", tt.heading)
	}
}

func TestHeadingFix_Normalized(t *testing.T) {
	assert.Equal(t, 90.0, HeadingFix{TrueHeading: 90}.Normalized())
	assert.Equal(t, 10.0, HeadingFix{TrueHeading: 370}.Normalized())
	assert.Equal(t, 0.0, HeadingFix{TrueHeading: 360}.Normalized())
}

func TestAuthorizationStatus_RoundTrip(t *testing.T) {
	for _, s := range []AuthorizationStatus{
		AuthorizationNotDetermined,
		AuthorizationRestricted,
		AuthorizationDenied,
		AuthorizationAlways,
		AuthorizationWhenInUse,
	} {
		parsed, ok := ParseAuthorizationStatus(s.String())
		assert.True(t, ok, s.String())
		assert.Equal(t, s, parsed)
	}

	parsed, ok := ParseAuthorizationStatus("sometimes")
	assert.False(t, ok)
	assert.Equal(t, AuthorizationNotDetermined, parsed)
}

func TestAuthorizationStatus_Authorized(t *testing.T) {
	assert.True(t, AuthorizationAlways.Authorized())
	assert.True(t, AuthorizationWhenInUse.Authorized())
	assert.False(t, AuthorizationDenied.Authorized())
	assert.False(t, AuthorizationRestricted.Authorized())
	assert.False(t, AuthorizationNotDetermined.Authorized())
}

func TestMarkerGeometry_Clone(t *testing.T) {
	rotation := 0.5
	g := MarkerGeometry{DotSize: 30, ArrowRotation: &rotation}

	c := g.Clone()
	rotation = 1.5

	assert.True(t, c.ArrowVisible())
	assert.Equal(t, 0.5, *c.ArrowRotation)
	assert.False(t, MarkerGeometry{}.Clone().ArrowVisible())
}

func TestRect_Center(t *testing.T) {
	r := Rect{X: 88, Y: 88, Width: 24, Height: 24}
	assert.Equal(t, Point{X: 100, Y: 100}, r.Center())
}

func TestTrackingMode_String(t *testing.T) {
	assert.Equal(t, "none", TrackingNone.String())
	assert.Equal(t, "follow", TrackingFollow.String())
	assert.Equal(t, "followWithHeading", TrackingFollowWithHeading.String())
}
