package geo

import (
	"math"
	"testing"
	"time"

	"github.com/OCAP2/locationmarker/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAttachedViewport(zoom float64) *Viewport {
	v := NewViewport(DefaultTileSize)
	v.Attach()
	v.SetZoom(zoom)
	return v
}

func TestViewport_UnavailableWhenDetached(t *testing.T) {
	v := NewViewport(0)

	_, ok := v.MetersPerScreenUnit(10)
	assert.False(t, ok)
	_, ok = v.Bearing()
	assert.False(t, ok)

	_, ok = State(v, 10)
	assert.False(t, ok)
}

func TestViewport_MetersPerScreenUnit(t *testing.T) {
	v := newAttachedViewport(0)

	mpp, ok := v.MetersPerScreenUnit(0)
	require.True(t, ok)
	assert.InDelta(t, WorldWidth()/DefaultTileSize, mpp, 1e-6)

	// one zoom level halves the scale
	v.SetZoom(1)
	mpp1, ok := v.MetersPerScreenUnit(0)
	require.True(t, ok)
	assert.InDelta(t, mpp/2, mpp1, 1e-6)

	// mercator scale shrinks with latitude
	mpp60, ok := v.MetersPerScreenUnit(60)
	require.True(t, ok)
	assert.InDelta(t, mpp1*0.5, mpp60, 1e-6)
}

func TestViewport_PoleIsUnavailable(t *testing.T) {
	v := newAttachedViewport(10)

	_, ok := v.MetersPerScreenUnit(90)
	assert.False(t, ok)
	_, ok = v.MetersPerScreenUnit(120)
	assert.False(t, ok)
}

func TestViewport_MercatorLatitudeLimit(t *testing.T) {
	v := newAttachedViewport(10)

	tests := []struct {
		latitude float64
		ok       bool
	}{
		{MaxMercatorLatitude, true},
		{-MaxMercatorLatitude, true},
		{85.06, false},
		{-85.06, false},
		{89.9, false},
	}
	for _, tt := range tests {
		mpp, ok := v.MetersPerScreenUnit(tt.latitude)
		assert.Equal(t, tt.ok, ok, "latitude %v", tt.latitude)
		if ok {
			assert.Greater(t, mpp, 0.0)
		}
	}

	_, ok := State(v, 85.06)
	assert.False(t, ok)
}

func TestViewport_SetZoomClamps(t *testing.T) {
	v := newAttachedViewport(30)
	assert.Equal(t, 24.0, v.Zoom())
	v.SetZoom(-3)
	assert.Equal(t, 0.0, v.Zoom())
}

func TestViewport_SetBearingCompletes(t *testing.T) {
	v := newAttachedViewport(15)

	var scheduled time.Duration
	v.afterFunc = func(d time.Duration, f func()) {
		scheduled = d
		f()
	}

	done := false
	v.SetBearing(-90, 300*time.Millisecond, func() { done = true })

	bearing, ok := v.Bearing()
	require.True(t, ok)
	assert.Equal(t, 270.0, bearing)
	assert.Equal(t, 300*time.Millisecond, scheduled)
	assert.True(t, done)
}

func TestViewport_SetBearingWithoutDuration(t *testing.T) {
	v := newAttachedViewport(15)
	v.afterFunc = func(time.Duration, func()) {
		t.Fatal("zero duration must not schedule")
	}

	done := false
	v.SetBearing(45, 0, func() { done = true })
	assert.True(t, done)
}

func TestViewport_TrackingMode(t *testing.T) {
	v := newAttachedViewport(15)
	assert.Equal(t, core.TrackingNone, v.TrackingMode())

	v.SetTrackingMode(core.TrackingFollowWithHeading)
	assert.Equal(t, core.TrackingFollowWithHeading, v.TrackingMode())
}

func TestViewport_ProjectedCenter(t *testing.T) {
	v := newAttachedViewport(15)
	require.NoError(t, v.SetCenter(core.Coordinate{Latitude: 0, Longitude: 90}))

	p, err := v.ProjectedCenter()
	require.NoError(t, err)
	xy, ok := p.XY()
	require.True(t, ok)
	assert.InDelta(t, WorldWidth()/4, xy.X, 1)

	assert.ErrorIs(t, v.SetCenter(core.Coordinate{Latitude: 100}), ErrInvalidCoordinates)
}

type fixedProjection struct {
	mpp     float64
	bearing float64
}

func (p fixedProjection) MetersPerScreenUnit(float64) (float64, bool) { return p.mpp, true }
func (p fixedProjection) Bearing() (float64, bool)                    { return p.bearing, true }

func TestState_RejectsDegenerateScale(t *testing.T) {
	for _, mpp := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		_, ok := State(fixedProjection{mpp: mpp}, 0)
		assert.False(t, ok, "mpp=%v", mpp)
	}

	s, ok := State(fixedProjection{mpp: 2, bearing: 30}, 0)
	require.True(t, ok)
	assert.Equal(t, core.ProjectionState{MetersPerScreenUnit: 2, Bearing: 30}, s)
}
