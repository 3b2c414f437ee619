// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"database/sql"
	"encoding/json"

	"github.com/OCAP2/locationmarker/internal/geo"
	"github.com/OCAP2/locationmarker/internal/model"
	"github.com/OCAP2/locationmarker/pkg/core"
	"gorm.io/datatypes"
)

var jsonNull = datatypes.JSON("null")

// projectedJSON encodes the fix position as a GeoJSON point in EPSG:3857.
func projectedJSON(c core.Coordinate) datatypes.JSON {
	pt, err := geo.Coords3857From4326(c.Longitude, c.Latitude)
	if err != nil {
		return jsonNull
	}
	data, err := pt.MarshalJSON()
	if err != nil {
		// poles project to infinity
		return jsonNull
	}
	return datatypes.JSON(data)
}

// rawJSON wraps pre-encoded JSON, mapping empty input to null.
func rawJSON(data []byte) datatypes.JSON {
	if len(data) == 0 {
		return jsonNull
	}
	return datatypes.JSON(data)
}

// SessionToGorm converts a core.Session to a GORM Session
func SessionToGorm(s core.Session) model.Session {
	out := model.Session{
		Name:      s.Name,
		StartTime: s.StartTime,
	}
	out.ID = s.ID
	if !s.EndTime.IsZero() {
		out.EndTime = sql.NullTime{Time: s.EndTime, Valid: true}
	}
	return out
}

// LocationToGorm converts a core.LocationFix to a GORM LocationSample
func LocationToGorm(sessionID uint, fix core.LocationFix) model.LocationSample {
	return model.LocationSample{
		SessionID:          sessionID,
		Time:               fix.Timestamp,
		Latitude:           fix.Coordinate.Latitude,
		Longitude:          fix.Coordinate.Longitude,
		HorizontalAccuracy: fix.HorizontalAccuracy,
		Projected:          projectedJSON(fix.Coordinate),
	}
}

// HeadingToGorm converts a core.HeadingFix to a GORM HeadingSample
func HeadingToGorm(sessionID uint, fix core.HeadingFix) model.HeadingSample {
	return model.HeadingSample{
		SessionID:   sessionID,
		Time:        fix.Timestamp,
		TrueHeading: fix.TrueHeading,
		Valid:       fix.Valid(),
	}
}

// CommitToGorm converts a core.Commit to a GORM MarkerCommit
func CommitToGorm(sessionID uint, c core.Commit) (model.MarkerCommit, error) {
	geometry, err := json.Marshal(c.Geometry)
	if err != nil {
		return model.MarkerCommit{}, err
	}

	out := model.MarkerCommit{
		SessionID:         sessionID,
		Frame:             c.Frame,
		Time:              c.Time,
		DotSize:           c.Geometry.DotSize,
		DotOpacity:        c.Geometry.DotOpacity,
		ArrowScale:        c.Geometry.ArrowScale,
		SuppressAnimation: c.SuppressAnimation,
		Geometry:          datatypes.JSON(geometry),
		ArrowOutline:      rawJSON(c.ArrowOutline),
	}
	if c.Geometry.ArrowRotation != nil {
		out.ArrowRotation = sql.NullFloat64{Float64: *c.Geometry.ArrowRotation, Valid: true}
	}
	return out, nil
}
