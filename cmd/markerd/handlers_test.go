package main

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/OCAP2/locationmarker/internal/config"
	"github.com/OCAP2/locationmarker/internal/dispatcher"
	"github.com/OCAP2/locationmarker/internal/geo"
	"github.com/OCAP2/locationmarker/internal/provider"
	"github.com/OCAP2/locationmarker/internal/session"
	"github.com/OCAP2/locationmarker/internal/storage/memory"
	"github.com/OCAP2/locationmarker/pkg/core"
	"github.com/OCAP2/locationmarker/pkg/streaming"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testLogger struct{}

func (testLogger) Debug(string, ...any) {}
func (testLogger) Info(string, ...any)  {}
func (testLogger) Error(string, ...any) {}

type fakeEngine struct {
	locations []core.LocationFix
	headings  []core.HeadingFix
	refreshes int
	taps      []core.Point
	tapHits   bool
}

func (f *fakeEngine) OnLocation(fix core.LocationFix) bool {
	f.locations = append(f.locations, fix)
	return true
}

func (f *fakeEngine) OnHeading(fix core.HeadingFix) bool {
	f.headings = append(f.headings, fix)
	return true
}

func (f *fakeEngine) Refresh() bool {
	f.refreshes++
	return true
}

func (f *fakeEngine) OnTap(point core.Point) bool {
	f.taps = append(f.taps, point)
	return f.tapHits
}

type fakeProvider struct {
	locationStarts int
	headingStarts  int
}

func (p *fakeProvider) SetDelegate(provider.Delegate) {}
func (p *fakeProvider) AuthorizationStatus() core.AuthorizationStatus {
	return core.AuthorizationWhenInUse
}
func (p *fakeProvider) RequestWhenInUseAuthorization() {}
func (p *fakeProvider) RequestAlwaysAuthorization()    {}
func (p *fakeProvider) StartUpdatingLocation()         { p.locationStarts++ }
func (p *fakeProvider) StopUpdatingLocation()          {}
func (p *fakeProvider) StartUpdatingHeading()          { p.headingStarts++ }
func (p *fakeProvider) StopUpdatingHeading()           {}

type harness struct {
	d        *dispatcher.Dispatcher
	engine   *fakeEngine
	provider *fakeProvider
	backend  *memory.Backend
	viewport *geo.Viewport
}

// newHarness registers the handlers on an unbuffered dispatcher so every
// Dispatch runs the handler before returning.
func newHarness(t *testing.T) *harness {
	t.Helper()
	d, err := dispatcher.New(testLogger{})
	require.NoError(t, err)
	t.Cleanup(d.Close)

	h := &harness{
		d:        d,
		engine:   &fakeEngine{},
		provider: &fakeProvider{},
		backend:  memory.New(config.MemoryConfig{}, session.NewContext()),
		viewport: geo.NewViewport(0),
	}
	h.viewport.Attach()
	h.viewport.SetTrackingMode(core.TrackingFollow)

	registerMarkerHandlers(d, handlerDeps{
		Engine:   h.engine,
		Provider: h.provider,
		Backend:  h.backend,
		Viewport: h.viewport,
		Logger:   testLogger{},
	})
	return h
}

func fixAt(lat, lon float64) core.LocationFix {
	return core.LocationFix{
		Coordinate:         core.Coordinate{Latitude: lat, Longitude: lon},
		HorizontalAccuracy: 10,
		Timestamp:          time.Now(),
	}
}

func TestLocationHandler_UsesNewestFix(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.backend.StartSession(&core.Session{Name: "walk"}))

	delegate := dispatchDelegate{d: h.d, logger: testLogger{}}
	delegate.DidUpdateLocations([]core.LocationFix{fixAt(52.5, 13.4), fixAt(52.6, 13.5)})

	require.Len(t, h.engine.locations, 1)
	assert.Equal(t, 52.6, h.engine.locations[0].Coordinate.Latitude)

	current, ok := h.backend.Current()
	require.True(t, ok)
	assert.Len(t, current.Locations, 2, "every fix is recorded")

	center, err := h.viewport.ProjectedCenter()
	require.NoError(t, err)
	want, err := geo.Coords3857From4326(13.5, 52.6)
	require.NoError(t, err)
	assert.Equal(t, want, center, "following camera centers on the fix")
}

func TestLocationHandler_NoSessionStillUpdates(t *testing.T) {
	h := newHarness(t)

	_, err := h.d.Dispatch(dispatcher.Event{Command: dispatcher.CommandLocation, Payload: []core.LocationFix{fixAt(1, 2)}})
	require.NoError(t, err)
	assert.Len(t, h.engine.locations, 1)
}

func TestLocationHandler_RejectsPayload(t *testing.T) {
	h := newHarness(t)

	_, err := h.d.Dispatch(dispatcher.Event{Command: dispatcher.CommandLocation, Payload: "nope"})
	assert.Error(t, err)
	assert.Empty(t, h.engine.locations)
}

func TestHeadingHandler(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.backend.StartSession(&core.Session{}))

	dispatchDelegate{d: h.d, logger: testLogger{}}.DidUpdateHeading(core.HeadingFix{TrueHeading: 45})

	require.Len(t, h.engine.headings, 1)
	assert.Equal(t, 45.0, h.engine.headings[0].TrueHeading)
	current, _ := h.backend.Current()
	assert.Len(t, current.Headings, 1)
}

func TestHeadingHandler_FollowWithHeadingTurnsCamera(t *testing.T) {
	h := newHarness(t)
	h.viewport.SetTrackingMode(core.TrackingFollowWithHeading)
	delegate := dispatchDelegate{d: h.d, logger: testLogger{}}

	for _, heading := range []float64{45, 90, 180} {
		delegate.DidUpdateHeading(core.HeadingFix{TrueHeading: heading})

		bearing, ok := h.viewport.Bearing()
		require.True(t, ok)
		assert.Equal(t, heading, bearing)
	}
	assert.Len(t, h.engine.headings, 3)

	// an unusable sample leaves the camera where it was
	delegate.DidUpdateHeading(core.HeadingFix{TrueHeading: -1})
	bearing, _ := h.viewport.Bearing()
	assert.Equal(t, 180.0, bearing)
}

func TestHeadingHandler_FollowKeepsBearing(t *testing.T) {
	h := newHarness(t)
	delegate := dispatchDelegate{d: h.d, logger: testLogger{}}

	delegate.DidUpdateHeading(core.HeadingFix{TrueHeading: 90})

	bearing, ok := h.viewport.Bearing()
	require.True(t, ok)
	assert.Zero(t, bearing)
	assert.Len(t, h.engine.headings, 1)
}

func TestAuthorizationHandler(t *testing.T) {
	h := newHarness(t)
	delegate := dispatchDelegate{d: h.d, logger: testLogger{}}

	delegate.DidChangeAuthorization(core.AuthorizationDenied)
	assert.Zero(t, h.provider.locationStarts)

	delegate.DidChangeAuthorization(core.AuthorizationWhenInUse)
	assert.Equal(t, 1, h.provider.locationStarts)
	assert.Equal(t, 1, h.provider.headingStarts)
}

func TestFailureHandler(t *testing.T) {
	h := newHarness(t)

	for _, err := range []error{provider.ErrNotAuthorized, &provider.DeviceError{Message: "gps lost"}, errors.New("boom"), nil} {
		result, dispatchErr := h.d.Dispatch(dispatcher.Event{Command: dispatcher.CommandFailure, Payload: err})
		assert.NoError(t, dispatchErr)
		assert.Nil(t, result)
	}
}

func TestTapHandler_RefreshesOnHit(t *testing.T) {
	h := newHarness(t)

	result, err := h.d.Dispatch(dispatcher.Event{Command: dispatcher.CommandTap, Payload: core.Point{X: 1, Y: 1}})
	require.NoError(t, err)
	assert.Equal(t, false, result)
	assert.Zero(t, h.engine.refreshes)

	h.engine.tapHits = true
	result, err = h.d.Dispatch(dispatcher.Event{Command: dispatcher.CommandTap, Payload: core.Point{X: 100, Y: 100}})
	require.NoError(t, err)
	assert.Equal(t, true, result)
	assert.Equal(t, 1, h.engine.refreshes)
}

func TestApplyCamera(t *testing.T) {
	v := geo.NewViewport(0)
	v.SetTrackingMode(core.TrackingFollowWithHeading)

	attached := true
	zoom := 30.0
	bearing := -90.0
	require.NoError(t, applyCamera(v, streaming.CameraPayload{Attached: &attached, Zoom: &zoom, Bearing: &bearing}))

	assert.True(t, v.Attached())
	assert.Equal(t, 24.0, v.Zoom())
	got, ok := v.Bearing()
	require.True(t, ok)
	assert.Equal(t, 270.0, got)
	assert.Equal(t, core.TrackingFollow, v.TrackingMode())

	detached := false
	require.NoError(t, applyCamera(v, streaming.CameraPayload{Attached: &detached}))
	assert.False(t, v.Attached())

	bad := core.Coordinate{Latitude: 95}
	assert.ErrorIs(t, applyCamera(v, streaming.CameraPayload{Center: &bad}), geo.ErrInvalidCoordinates)
}

func TestInboundHandler(t *testing.T) {
	h := newHarness(t)
	inbound := inboundHandler(h.d, h.viewport, testLogger{})

	camera, err := streaming.Encode(streaming.TypeCamera, map[string]any{"zoom": 12})
	require.NoError(t, err)
	env, err := streaming.Decode(camera)
	require.NoError(t, err)
	inbound(env)
	assert.Equal(t, 12.0, h.viewport.Zoom())
	assert.Equal(t, 1, h.engine.refreshes)

	tap, err := streaming.Encode(streaming.TypeTap, streaming.TapPayload{Point: core.Point{X: 90, Y: 95}})
	require.NoError(t, err)
	env, err = streaming.Decode(tap)
	require.NoError(t, err)
	inbound(env)
	require.Len(t, h.engine.taps, 1)
	assert.Equal(t, core.Point{X: 90, Y: 95}, h.engine.taps[0])

	inbound(streaming.Envelope{Type: "unknown"})
	inbound(streaming.Envelope{Type: streaming.TypeCamera, Payload: json.RawMessage(`"bad"`)})
	assert.Equal(t, 1, h.engine.refreshes)
}

func TestCreateSource(t *testing.T) {
	Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	src, err := createSource(config.ProviderConfig{Source: "replay", Accuracy: 5, Loop: true})
	require.NoError(t, err)
	replay, ok := src.(*provider.Replay)
	require.True(t, ok)
	assert.True(t, replay.Loop)
	assert.Len(t, replay.Steps, 6)

	src, err = createSource(config.ProviderConfig{Source: "websocket", URL: "ws://localhost:1/feed"})
	require.NoError(t, err)
	assert.IsType(t, &provider.WebsocketSource{}, src)

	_, err = createSource(config.ProviderConfig{Source: "replay", Track: "[[0,0]]"})
	assert.Error(t, err)

	_, err = createSource(config.ProviderConfig{Source: "carrier-pigeon"})
	assert.Error(t, err)
}

func TestNewSession(t *testing.T) {
	start := time.Date(2026, 5, 4, 7, 30, 0, 0, time.UTC)

	assert.Equal(t, "markerd 2026-05-04 07:30:00", newSession("", start).Name)
	s := newSession("commute", start)
	assert.Equal(t, "commute", s.Name)
	assert.Equal(t, start, s.StartTime)
}

func TestWriteSessions(t *testing.T) {
	start := time.Date(2026, 5, 4, 7, 30, 0, 0, time.UTC)
	var buf bytes.Buffer

	require.NoError(t, writeSessions(&buf, []core.Session{
		{ID: 2, Name: "evening", StartTime: start},
		{ID: 1, Name: "morning", StartTime: start, EndTime: start.Add(90 * time.Second)},
	}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "2\t2026-05-04T07:30:00Z\trunning\tevening", lines[0])
	assert.Equal(t, "1\t2026-05-04T07:30:00Z\t1m30s\tmorning", lines[1])
}

func TestWriteExport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session_1.json.gz")
	require.NoError(t, writeExport(path, sessionExport{
		Session: core.Session{ID: 1, Name: "walk"},
		Commits: []core.Commit{{Frame: 1, Geometry: core.MarkerGeometry{DotSize: 24}}},
	}))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)

	var got sessionExport
	require.NoError(t, json.NewDecoder(gz).Decode(&got))
	assert.Equal(t, "walk", got.Session.Name)
	require.Len(t, got.Commits, 1)
	assert.Equal(t, 24.0, got.Commits[0].Geometry.DotSize)
}
