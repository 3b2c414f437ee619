package convert

import (
	"encoding/json"
	"fmt"

	"github.com/OCAP2/locationmarker/internal/model"
	"github.com/OCAP2/locationmarker/pkg/core"
)

// SessionToCore converts a GORM Session to a core.Session
func SessionToCore(s model.Session) core.Session {
	out := core.Session{
		ID:        s.ID,
		Name:      s.Name,
		StartTime: s.StartTime,
	}
	if s.EndTime.Valid {
		out.EndTime = s.EndTime.Time
	}
	return out
}

// LocationToCore converts a GORM LocationSample to a core.LocationFix
func LocationToCore(l model.LocationSample) core.LocationFix {
	return core.LocationFix{
		Coordinate: core.Coordinate{
			Latitude:  l.Latitude,
			Longitude: l.Longitude,
		},
		HorizontalAccuracy: l.HorizontalAccuracy,
		Timestamp:          l.Time,
	}
}

// HeadingToCore converts a GORM HeadingSample to a core.HeadingFix
func HeadingToCore(h model.HeadingSample) core.HeadingFix {
	return core.HeadingFix{
		TrueHeading: h.TrueHeading,
		Timestamp:   h.Time,
	}
}

// CommitToCore converts a GORM MarkerCommit to a core.Commit. The stored
// geometry document is authoritative; the flat columns exist for querying.
func CommitToCore(c model.MarkerCommit) (core.Commit, error) {
	var g core.MarkerGeometry
	if len(c.Geometry) > 0 {
		if err := json.Unmarshal(c.Geometry, &g); err != nil {
			return core.Commit{}, fmt.Errorf("decode geometry of commit %d: %w", c.ID, err)
		}
	}

	out := core.Commit{
		Frame:             c.Frame,
		Time:              c.Time,
		Geometry:          g,
		SuppressAnimation: c.SuppressAnimation,
	}
	if len(c.ArrowOutline) > 0 && string(c.ArrowOutline) != "null" {
		out.ArrowOutline = []byte(c.ArrowOutline)
	}
	return out, nil
}
