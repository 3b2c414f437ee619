package storage

import (
	"errors"
	"time"

	"github.com/OCAP2/locationmarker/internal/marker"
	"github.com/OCAP2/locationmarker/internal/session"
	"github.com/OCAP2/locationmarker/pkg/core"
)

// Recorder is a marker.Renderer that stores every committed transaction
// before handing it on to the next renderer.
type Recorder struct {
	next     marker.Renderer
	backend  Backend
	sessions *session.Context
	params   marker.Params
	snapshot *marker.Snapshot
	logger   Logger
	now      func() time.Time
}

// NewRecorder wraps next. next may be nil when nothing is drawn.
func NewRecorder(next marker.Renderer, backend Backend, sessions *session.Context, params marker.Params, logger Logger) *Recorder {
	return &Recorder{
		next:     next,
		backend:  backend,
		sessions: sessions,
		params:   params,
		snapshot: marker.NewSnapshot(params),
		logger:   logger,
		now:      time.Now,
	}
}

// Transaction implements marker.Renderer.
func (r *Recorder) Transaction(suppressAnimation bool, writes func(marker.Layer)) {
	if r.next != nil {
		r.next.Transaction(suppressAnimation, func(l marker.Layer) {
			writes(r.snapshot.Layer(l))
		})
	} else {
		writes(r.snapshot.Layer(nil))
	}

	g := r.snapshot.Geometry()
	c := &core.Commit{
		Frame:             r.sessions.NextFrame(),
		Time:              r.now(),
		Geometry:          g,
		SuppressAnimation: suppressAnimation,
		ArrowOutline:      marker.ArrowOutlineJSON(r.params, g),
	}
	if err := r.backend.RecordCommit(c); err != nil {
		if errors.Is(err, session.ErrNoSession) {
			r.logger.Debug("commit outside session not recorded", "frame", c.Frame)
			return
		}
		r.logger.Error("failed to record commit", "frame", c.Frame, "error", err)
	}
}

// Geometry returns the last recorded geometry
func (r *Recorder) Geometry() core.MarkerGeometry {
	return r.snapshot.Geometry()
}
