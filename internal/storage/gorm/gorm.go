// Package gormstorage implements the storage.Backend interface using GORM
// with internal write queues and a background DB writer goroutine. It runs
// on any dialector; the factory hands it SQLite or Postgres.
package gormstorage

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OCAP2/locationmarker/internal/database"
	"github.com/OCAP2/locationmarker/internal/model"
	"github.com/OCAP2/locationmarker/internal/model/convert"
	"github.com/OCAP2/locationmarker/internal/queue"
	"github.com/OCAP2/locationmarker/internal/session"
	"github.com/OCAP2/locationmarker/pkg/core"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultFlushInterval = time.Second
	flushBatchSize       = 500
)

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB            *gorm.DB
	Sessions      *session.Context
	Logger        Logger
	FlushInterval time.Duration
	QueueLimit    int
}

// queues holds all the write queues for batch DB insertion.
type queues struct {
	Locations *queue.Queue[model.LocationSample]
	Headings  *queue.Queue[model.HeadingSample]
	Commits   *queue.Queue[model.MarkerCommit]
}

func newQueues(limit int) *queues {
	return &queues{
		Locations: queue.New[model.LocationSample](limit),
		Headings:  queue.New[model.HeadingSample](limit),
		Commits:   queue.New[model.MarkerCommit](limit),
	}
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
type Backend struct {
	deps      Dependencies
	queues    *queues
	sessionID atomic.Uint64
	stopChan  chan struct{}
	wg        sync.WaitGroup
	flushMu   sync.Mutex
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.Sessions == nil {
		deps.Sessions = session.NewContext()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = defaultFlushInterval
	}
	return &Backend{
		deps: deps,
	}
}

// Init creates internal queues, runs schema migration, and starts the DB writer goroutine.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return fmt.Errorf("gorm backend: no database")
	}

	b.queues = newQueues(b.deps.QueueLimit)
	b.stopChan = make(chan struct{})

	if err := database.Migrate(b.deps.DB, b.deps.Logger); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}

	b.wg.Add(1)
	go b.writeLoop()
	return nil
}

// Close stops the writer, flushes what is left and ends a running session.
func (b *Backend) Close() error {
	if b.stopChan == nil {
		return nil
	}
	close(b.stopChan)
	b.wg.Wait()
	b.stopChan = nil

	if b.sessionID.Load() != 0 {
		if err := b.EndSession(); err != nil {
			return err
		}
	}
	return b.Flush()
}

func (b *Backend) writeLoop() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			start := time.Now()
			if err := b.Flush(); err != nil {
				b.deps.Logger.Error("Error writing session data", "error", err)
			} else {
				b.deps.Logger.Debug("Flushed session data", "duration", time.Since(start))
			}
		}
	}
}

// Flush writes every queued row. Rows of a failed batch are put back.
func (b *Backend) Flush() error {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	if err := flushQueue(b.deps.DB, b.queues.Locations); err != nil {
		return fmt.Errorf("writing locations: %w", err)
	}
	if err := flushQueue(b.deps.DB, b.queues.Headings); err != nil {
		return fmt.Errorf("writing headings: %w", err)
	}
	if err := flushQueue(b.deps.DB, b.queues.Commits); err != nil {
		return fmt.Errorf("writing commits: %w", err)
	}
	return nil
}

func flushQueue[T any](db *gorm.DB, q *queue.Queue[T]) error {
	for !q.Empty() {
		batch := q.Drain(flushBatchSize)
		if err := db.Omit(clause.Associations).Create(&batch).Error; err != nil {
			q.Requeue(batch...)
			return err
		}
	}
	return nil
}

// StartSession writes the session row synchronously so the ID is known
// before any sample is queued.
func (b *Backend) StartSession(s *core.Session) error {
	if s.StartTime.IsZero() {
		s.StartTime = time.Now()
	}
	row := convert.SessionToGorm(*s)
	row.ID = 0
	if err := b.deps.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	s.ID = row.ID
	b.sessionID.Store(uint64(row.ID))
	b.deps.Sessions.Start(s)
	b.deps.Logger.Info("Session started", "id", row.ID, "name", s.Name)
	return nil
}

// EndSession flushes the queues and stamps the end time.
func (b *Backend) EndSession() error {
	id := uint(b.sessionID.Load())
	if id == 0 {
		return session.ErrNoSession
	}
	if err := b.Flush(); err != nil {
		return err
	}

	ended := b.deps.Sessions.End(time.Now())
	err := b.deps.DB.Model(&model.Session{}).
		Where("id = ?", id).
		Update("end_time", sql.NullTime{Time: ended.EndTime, Valid: true}).Error
	if err != nil {
		return fmt.Errorf("failed to end session %d: %w", id, err)
	}

	b.sessionID.Store(0)
	b.deps.Logger.Info("Session ended", "id", id)
	return nil
}

func (b *Backend) currentSession() (uint, error) {
	id := uint(b.sessionID.Load())
	if id == 0 {
		return 0, session.ErrNoSession
	}
	return id, nil
}

// RecordLocation queues a location sample
func (b *Backend) RecordLocation(fix *core.LocationFix) error {
	id, err := b.currentSession()
	if err != nil {
		return err
	}
	b.push(b.queues.Locations.Push(convert.LocationToGorm(id, *fix)), "location")
	return nil
}

// RecordHeading queues a heading sample
func (b *Backend) RecordHeading(fix *core.HeadingFix) error {
	id, err := b.currentSession()
	if err != nil {
		return err
	}
	b.push(b.queues.Headings.Push(convert.HeadingToGorm(id, *fix)), "heading")
	return nil
}

// RecordCommit queues a render transaction
func (b *Backend) RecordCommit(c *core.Commit) error {
	id, err := b.currentSession()
	if err != nil {
		return err
	}
	row, err := convert.CommitToGorm(id, *c)
	if err != nil {
		return fmt.Errorf("failed to convert commit: %w", err)
	}
	b.push(b.queues.Commits.Push(row), "commit")
	return nil
}

func (b *Backend) push(dropped int, kind string) {
	if dropped > 0 {
		b.deps.Logger.Error("Write queue full, dropped oldest rows", "kind", kind, "dropped", dropped)
	}
}

// QueueLengths reports how many rows wait for the next flush
func (b *Backend) QueueLengths() map[string]int {
	if b.queues == nil {
		return nil
	}
	return map[string]int{
		"locations": b.queues.Locations.Len(),
		"headings":  b.queues.Headings.Len(),
		"commits":   b.queues.Commits.Len(),
	}
}

// Commits loads the stored commits of a session in frame order.
func (b *Backend) Commits(sessionID uint) ([]core.Commit, error) {
	var rows []model.MarkerCommit
	err := b.deps.DB.Where("session_id = ?", sessionID).Order("frame").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load commits: %w", err)
	}

	out := make([]core.Commit, 0, len(rows))
	for _, r := range rows {
		c, err := convert.CommitToCore(r)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Sessions loads all recorded sessions, newest first.
func (b *Backend) Sessions() ([]core.Session, error) {
	var rows []model.Session
	if err := b.deps.DB.Order("start_time desc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load sessions: %w", err)
	}
	out := make([]core.Session, len(rows))
	for i, r := range rows {
		out[i] = convert.SessionToCore(r)
	}
	return out, nil
}
