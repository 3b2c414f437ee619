// pkg/core/session.go
package core

import (
	"encoding/json"
	"time"
)

// Session is one marker lifetime, from the marker becoming visible until teardown
type Session struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
}

// Commit is one render transaction as issued by the marker engine
type Commit struct {
	Frame             uint            `json:"frame"`
	Time              time.Time       `json:"time"`
	Geometry          MarkerGeometry  `json:"geometry"`
	SuppressAnimation bool            `json:"suppressAnimation"`
	ArrowOutline      json.RawMessage `json:"arrowOutline,omitempty"` // GeoJSON polygon in canvas coordinates, nil when hidden
}
