package gormstorage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/OCAP2/locationmarker/internal/database"
	"github.com/OCAP2/locationmarker/internal/model"
	"github.com/OCAP2/locationmarker/internal/session"
	"github.com/OCAP2/locationmarker/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testLogger struct{}

func (testLogger) Debug(string, ...any) {}
func (testLogger) Info(string, ...any)  {}
func (testLogger) Error(string, ...any) {}

// newTestBackend creates a Backend on a throwaway SQLite file. The flush
// interval is long so tests control writes through Flush.
func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "sessions.db"), testLogger{})
	require.NoError(t, err)

	b := New(Dependencies{
		DB:            db,
		Sessions:      session.NewContext(),
		Logger:        testLogger{},
		FlushInterval: time.Hour,
	})
	require.NoError(t, b.Init())
	t.Cleanup(func() {
		_ = b.Close()
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return b
}

func TestInit_RequiresDB(t *testing.T) {
	b := New(Dependencies{})
	assert.Error(t, b.Init())
}

func TestRecordWithoutSession(t *testing.T) {
	b := newTestBackend(t)

	assert.ErrorIs(t, b.RecordLocation(&core.LocationFix{}), session.ErrNoSession)
	assert.ErrorIs(t, b.RecordHeading(&core.HeadingFix{}), session.ErrNoSession)
	assert.ErrorIs(t, b.RecordCommit(&core.Commit{}), session.ErrNoSession)
	assert.ErrorIs(t, b.EndSession(), session.ErrNoSession)
}

func TestStartSession_AssignsID(t *testing.T) {
	b := newTestBackend(t)

	s := &core.Session{Name: "walk"}
	require.NoError(t, b.StartSession(s))
	assert.NotZero(t, s.ID)
	assert.False(t, s.StartTime.IsZero())
	assert.Equal(t, s.ID, b.deps.Sessions.Session().ID)
}

func TestRecord_QueuesUntilFlush(t *testing.T) {
	b := newTestBackend(t)
	require.NoError(t, b.StartSession(&core.Session{Name: "walk"}))

	fix := &core.LocationFix{
		Coordinate:         core.Coordinate{Latitude: 52.52, Longitude: 13.405},
		HorizontalAccuracy: 8,
		Timestamp:          time.Now(),
	}
	require.NoError(t, b.RecordLocation(fix))
	require.NoError(t, b.RecordHeading(&core.HeadingFix{TrueHeading: 90, Timestamp: time.Now()}))
	assert.Equal(t, 1, b.queues.Locations.Len())
	assert.Equal(t, 1, b.queues.Headings.Len())

	assert.Equal(t, map[string]int{"locations": 1, "headings": 1, "commits": 0}, b.QueueLengths())

	require.NoError(t, b.Flush())
	assert.True(t, b.queues.Locations.Empty())

	var count int64
	require.NoError(t, b.deps.DB.Model(&model.LocationSample{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	require.NoError(t, b.deps.DB.Model(&model.HeadingSample{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	var stored model.LocationSample
	require.NoError(t, b.deps.DB.First(&stored).Error)
	assert.Equal(t, 52.52, stored.Latitude)
	assert.Contains(t, string(stored.Projected), "Point")
}

func TestCommits_RoundTrip(t *testing.T) {
	b := newTestBackend(t)
	s := &core.Session{Name: "walk"}
	require.NoError(t, b.StartSession(s))

	rotation := -0.25
	for frame := uint(1); frame <= 3; frame++ {
		require.NoError(t, b.RecordCommit(&core.Commit{
			Frame: frame,
			Time:  time.Now(),
			Geometry: core.MarkerGeometry{
				DotSize:       24 + float64(frame),
				DotOpacity:    1,
				ArrowRotation: &rotation,
				ArrowScale:    1,
			},
			ArrowOutline: []byte(`{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}`),
		}))
	}
	require.NoError(t, b.Flush())

	commits, err := b.Commits(s.ID)
	require.NoError(t, err)
	require.Len(t, commits, 3)
	for i, c := range commits {
		assert.Equal(t, uint(i+1), c.Frame)
		assert.Equal(t, 25+float64(i), c.Geometry.DotSize)
		require.True(t, c.Geometry.ArrowVisible())
		assert.Equal(t, rotation, *c.Geometry.ArrowRotation)
		assert.JSONEq(t, `{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}`, string(c.ArrowOutline))
	}
}

func TestEndSession_StampsEndTime(t *testing.T) {
	b := newTestBackend(t)
	s := &core.Session{Name: "walk"}
	require.NoError(t, b.StartSession(s))
	require.NoError(t, b.RecordLocation(&core.LocationFix{Timestamp: time.Now()}))

	require.NoError(t, b.EndSession())
	assert.Zero(t, b.sessionID.Load())
	assert.True(t, b.queues.Locations.Empty(), "EndSession must flush")

	sessions, err := b.Sessions()
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "walk", sessions[0].Name)
	assert.False(t, sessions[0].EndTime.IsZero())

	assert.ErrorIs(t, b.RecordLocation(&core.LocationFix{}), session.ErrNoSession)
}

func TestClose_FlushesAndEnds(t *testing.T) {
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "sessions.db"), testLogger{})
	require.NoError(t, err)

	b := New(Dependencies{DB: db, Logger: testLogger{}, FlushInterval: time.Hour})
	require.NoError(t, b.Init())
	require.NoError(t, b.StartSession(&core.Session{Name: "walk"}))
	require.NoError(t, b.RecordCommit(&core.Commit{Frame: 1, Time: time.Now()}))

	require.NoError(t, b.Close())
	require.NoError(t, b.Close(), "second Close is a no-op")

	var count int64
	require.NoError(t, db.Model(&model.MarkerCommit{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	var row model.Session
	require.NoError(t, db.First(&row).Error)
	assert.True(t, row.EndTime.Valid)
}

func TestQueueLimit_DropsOldest(t *testing.T) {
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "sessions.db"), testLogger{})
	require.NoError(t, err)

	b := New(Dependencies{DB: db, Logger: testLogger{}, FlushInterval: time.Hour, QueueLimit: 2})
	require.NoError(t, b.Init())
	defer b.Close()
	require.NoError(t, b.StartSession(&core.Session{}))

	for i := 0; i < 5; i++ {
		require.NoError(t, b.RecordHeading(&core.HeadingFix{TrueHeading: float64(i)}))
	}
	assert.Equal(t, 2, b.queues.Headings.Len())
	assert.Equal(t, uint64(3), b.queues.Headings.Dropped())
}
