package model

import (
	"database/sql"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Session{},
	&LocationSample{},
	&HeadingSample{},
	&MarkerCommit{},
}

// Session is one recorded marker lifetime
type Session struct {
	gorm.Model
	Name      string       `json:"name" gorm:"size:200"`
	StartTime time.Time    `json:"startTime" gorm:"index:idx_session_start"`
	EndTime   sql.NullTime `json:"endTime"`
}

func (*Session) TableName() string {
	return "sessions"
}

// LocationSample is one location fix delivered to the marker
type LocationSample struct {
	ID                 uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	SessionID          uint      `json:"sessionId" gorm:"index:idx_location_session_id"`
	Session            Session   `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Time               time.Time `json:"time"`
	Latitude           float64   `json:"latitude"`
	Longitude          float64   `json:"longitude"`
	HorizontalAccuracy float64   `json:"horizontalAccuracy"`
	// GeoJSON point in EPSG:3857, null outside the Mercator range
	Projected datatypes.JSON `json:"projected"`
}

func (*LocationSample) TableName() string {
	return "location_samples"
}

// HeadingSample is one heading fix delivered to the marker
type HeadingSample struct {
	ID          uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	SessionID   uint      `json:"sessionId" gorm:"index:idx_heading_session_id"`
	Session     Session   `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Time        time.Time `json:"time"`
	TrueHeading float64   `json:"trueHeading"`
	Valid       bool      `json:"valid" gorm:"default:true"`
}

func (*HeadingSample) TableName() string {
	return "heading_samples"
}

// MarkerCommit is one render transaction issued by the marker engine
type MarkerCommit struct {
	ID                uint            `json:"id" gorm:"primarykey;autoIncrement;"`
	SessionID         uint            `json:"sessionId" gorm:"index:idx_commit_session_id"`
	Session           Session         `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Frame             uint            `json:"frame" gorm:"index:idx_commit_frame"`
	Time              time.Time       `json:"time"`
	DotSize           float64         `json:"dotSize"`
	DotOpacity        float64         `json:"dotOpacity"`
	ArrowRotation     sql.NullFloat64 `json:"arrowRotation"`
	ArrowScale        float64         `json:"arrowScale"`
	SuppressAnimation bool            `json:"suppressAnimation" gorm:"default:false"`
	Geometry          datatypes.JSON  `json:"geometry"`     // full core.MarkerGeometry
	ArrowOutline      datatypes.JSON  `json:"arrowOutline"` // GeoJSON polygon, null when hidden
}

func (*MarkerCommit) TableName() string {
	return "marker_commits"
}
