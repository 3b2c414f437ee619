package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/OCAP2/locationmarker/internal/dispatcher"
	"github.com/OCAP2/locationmarker/internal/geo"
	"github.com/OCAP2/locationmarker/internal/marker"
	"github.com/OCAP2/locationmarker/internal/provider"
	"github.com/OCAP2/locationmarker/internal/session"
	"github.com/OCAP2/locationmarker/internal/storage"
	"github.com/OCAP2/locationmarker/pkg/core"
	"github.com/OCAP2/locationmarker/pkg/streaming"
)

// markerEngine is the part of marker.Engine the handlers drive
type markerEngine interface {
	OnLocation(fix core.LocationFix) bool
	OnHeading(fix core.HeadingFix) bool
	Refresh() bool
	OnTap(point core.Point) bool
}

var _ markerEngine = (*marker.Engine)(nil)

type handlerDeps struct {
	Engine   markerEngine
	Provider provider.Provider
	Backend  storage.Backend
	Viewport *geo.Viewport
	Logger   dispatcher.Logger
}

// registerMarkerHandlers routes provider and render client events to the
// marker. All handlers run on the dispatcher lane, one at a time.
func registerMarkerHandlers(d *dispatcher.Dispatcher, deps handlerDeps) {
	d.Register(dispatcher.CommandLocation, func(e dispatcher.Event) (any, error) {
		fixes, ok := e.Payload.([]core.LocationFix)
		if !ok {
			return nil, fmt.Errorf("location: unexpected payload %T", e.Payload)
		}
		if len(fixes) == 0 {
			return nil, nil
		}
		for i := range fixes {
			record(deps.Logger, "location", deps.Backend.RecordLocation(&fixes[i]))
		}

		// the newest fix supersedes the rest
		latest := fixes[len(fixes)-1]
		if deps.Viewport != nil && deps.Viewport.TrackingMode() != core.TrackingNone {
			if err := deps.Viewport.SetCenter(latest.Coordinate); err != nil {
				deps.Logger.Debug("not centering on fix", "error", err)
			}
		}
		return deps.Engine.OnLocation(latest), nil
	}, dispatcher.Logged())

	d.Register(dispatcher.CommandHeading, func(e dispatcher.Event) (any, error) {
		fix, ok := e.Payload.(core.HeadingFix)
		if !ok {
			return nil, fmt.Errorf("heading: unexpected payload %T", e.Payload)
		}
		record(deps.Logger, "heading", deps.Backend.RecordHeading(&fix))

		// the camera turns with the user before the marker is redrawn
		if deps.Viewport != nil && fix.Valid() &&
			deps.Viewport.TrackingMode() == core.TrackingFollowWithHeading {
			deps.Viewport.SetBearing(fix.Normalized(), 0, nil)
		}
		return deps.Engine.OnHeading(fix), nil
	}, dispatcher.Logged())

	d.Register(dispatcher.CommandProjection, func(e dispatcher.Event) (any, error) {
		return deps.Engine.Refresh(), nil
	}, dispatcher.Logged(), dispatcher.Coalesced())

	d.Register(dispatcher.CommandTap, func(e dispatcher.Event) (any, error) {
		point, ok := e.Payload.(core.Point)
		if !ok {
			return nil, fmt.Errorf("tap: unexpected payload %T", e.Payload)
		}
		if !deps.Engine.OnTap(point) {
			return false, nil
		}
		// the camera bearing moved; rotate the arrow with it
		deps.Engine.Refresh()
		return true, nil
	}, dispatcher.Logged())

	d.Register(dispatcher.CommandAuthorization, func(e dispatcher.Event) (any, error) {
		status, ok := e.Payload.(core.AuthorizationStatus)
		if !ok {
			return nil, fmt.Errorf("authorization: unexpected payload %T", e.Payload)
		}
		if !status.Authorized() {
			deps.Logger.Info("location updates not authorized", "status", status.String())
			return false, nil
		}
		deps.Provider.StartUpdatingLocation()
		deps.Provider.StartUpdatingHeading()
		deps.Logger.Info("location updates started", "status", status.String())
		return true, nil
	})

	d.Register(dispatcher.CommandFailure, func(e dispatcher.Event) (any, error) {
		err, _ := e.Payload.(error)
		var deviceErr *provider.DeviceError
		switch {
		case errors.As(err, &deviceErr):
			deps.Logger.Info("device reported an error", "error", err)
		case errors.Is(err, provider.ErrNotAuthorized):
			deps.Logger.Error("location provider refused to start", "error", err)
		default:
			deps.Logger.Error("location provider failed", "error", err)
		}
		return nil, nil
	})
}

// record logs storage failures. Samples outside a session are expected
// during shutdown.
func record(logger dispatcher.Logger, kind string, err error) {
	switch {
	case err == nil:
	case errors.Is(err, session.ErrNoSession):
		logger.Debug("sample not recorded", "kind", kind, "error", err)
	default:
		logger.Error("failed to record sample", "kind", kind, "error", err)
	}
}

// dispatchDelegate turns provider callbacks into dispatcher events so the
// marker only ever runs on the dispatcher lane.
type dispatchDelegate struct {
	d      *dispatcher.Dispatcher
	logger dispatcher.Logger
}

func (a dispatchDelegate) DidUpdateLocations(fixes []core.LocationFix) {
	a.dispatch(dispatcher.CommandLocation, fixes)
}

func (a dispatchDelegate) DidUpdateHeading(fix core.HeadingFix) {
	a.dispatch(dispatcher.CommandHeading, fix)
}

func (a dispatchDelegate) DidChangeAuthorization(status core.AuthorizationStatus) {
	a.dispatch(dispatcher.CommandAuthorization, status)
}

func (a dispatchDelegate) DidFail(err error) {
	a.dispatch(dispatcher.CommandFailure, err)
}

func (a dispatchDelegate) dispatch(command string, payload any) {
	_, err := a.d.Dispatch(dispatcher.Event{Command: command, Payload: payload, Timestamp: time.Now()})
	if err != nil && !errors.Is(err, dispatcher.ErrClosed) {
		a.logger.Error("failed to dispatch event", "command", command, "error", err)
	}
}

// applyCamera changes the viewport. Nil fields are left alone.
func applyCamera(v *geo.Viewport, c streaming.CameraPayload) error {
	if c.Center != nil {
		if err := v.SetCenter(*c.Center); err != nil {
			return err
		}
	}
	if c.Attached != nil {
		if *c.Attached {
			v.Attach()
		} else {
			v.Detach()
		}
	}
	if c.Zoom != nil {
		v.SetZoom(*c.Zoom)
	}
	if c.Bearing != nil {
		// a manual rotation ends heading-follow
		v.SetBearing(*c.Bearing, 0, nil)
		if v.TrackingMode() == core.TrackingFollowWithHeading {
			v.SetTrackingMode(core.TrackingFollow)
		}
	}
	return nil
}

// inboundHandler serves camera and tap messages from render clients
func inboundHandler(d *dispatcher.Dispatcher, v *geo.Viewport, logger dispatcher.Logger) func(streaming.Envelope) {
	delegate := dispatchDelegate{d: d, logger: logger}
	return func(env streaming.Envelope) {
		switch env.Type {
		case streaming.TypeCamera:
			var c streaming.CameraPayload
			if err := json.Unmarshal(env.Payload, &c); err != nil {
				logger.Debug("invalid camera message", "error", err)
				return
			}
			if err := applyCamera(v, c); err != nil {
				logger.Debug("camera change rejected", "error", err)
				return
			}
			delegate.dispatch(dispatcher.CommandProjection, nil)

		case streaming.TypeTap:
			var tap streaming.TapPayload
			if err := json.Unmarshal(env.Payload, &tap); err != nil {
				logger.Debug("invalid tap message", "error", err)
				return
			}
			delegate.dispatch(dispatcher.CommandTap, tap.Point)

		default:
			logger.Debug("ignoring render client message", "type", env.Type)
		}
	}
}
