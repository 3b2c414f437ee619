// internal/storage/memory/memory.go
package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/OCAP2/locationmarker/internal/config"
	"github.com/OCAP2/locationmarker/internal/session"
	"github.com/OCAP2/locationmarker/pkg/core"
)

// SessionRecord groups a session with everything recorded during it
type SessionRecord struct {
	Session   core.Session       `json:"session"`
	Locations []core.LocationFix `json:"locations"`
	Headings  []core.HeadingFix  `json:"headings"`
	Commits   []core.Commit      `json:"commits"`
}

// Backend keeps sessions in memory and optionally exports each finished
// session to JSON
type Backend struct {
	cfg      config.MemoryConfig
	sessions *session.Context

	current  *SessionRecord
	finished []SessionRecord

	idCounter      uint
	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig, sessions *session.Context) *Backend {
	if sessions == nil {
		sessions = session.NewContext()
	}
	return &Backend{
		cfg:      cfg,
		sessions: sessions,
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close ends a session still running
func (b *Backend) Close() error {
	b.mu.RLock()
	running := b.current != nil
	b.mu.RUnlock()
	if running {
		return b.EndSession()
	}
	return nil
}

// StartSession begins recording a new session
func (b *Backend) StartSession(s *core.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.idCounter++
	s.ID = b.idCounter
	if s.StartTime.IsZero() {
		s.StartTime = time.Now()
	}

	b.current = &SessionRecord{
		Session:   *s,
		Locations: make([]core.LocationFix, 0),
		Headings:  make([]core.HeadingFix, 0),
		Commits:   make([]core.Commit, 0),
	}
	b.sessions.Start(s)
	return nil
}

// EndSession finalizes the running session and exports it when an output
// directory is configured
func (b *Backend) EndSession() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current == nil {
		return session.ErrNoSession
	}
	b.current.Session = b.sessions.End(time.Now())
	record := *b.current
	b.finished = append(b.finished, record)
	b.current = nil

	if b.cfg.OutputDir == "" {
		return nil
	}
	return b.exportJSON(record)
}

// RecordLocation records a location fix
func (b *Backend) RecordLocation(fix *core.LocationFix) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil {
		return session.ErrNoSession
	}
	b.current.Locations = append(b.current.Locations, *fix)
	return nil
}

// RecordHeading records a heading fix
func (b *Backend) RecordHeading(fix *core.HeadingFix) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil {
		return session.ErrNoSession
	}
	b.current.Headings = append(b.current.Headings, *fix)
	return nil
}

// RecordCommit records a render transaction
func (b *Backend) RecordCommit(c *core.Commit) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil {
		return session.ErrNoSession
	}
	commit := *c
	commit.Geometry = c.Geometry.Clone()
	b.current.Commits = append(b.current.Commits, commit)
	return nil
}

// Current returns a copy of the running session, if any
func (b *Backend) Current() (SessionRecord, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.current == nil {
		return SessionRecord{}, false
	}
	return copyRecord(*b.current), true
}

// Sessions returns copies of all finished sessions, oldest first
func (b *Backend) Sessions() []SessionRecord {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]SessionRecord, len(b.finished))
	for i, r := range b.finished {
		out[i] = copyRecord(r)
	}
	return out
}

// LastExportPath is the file written by the most recent EndSession
func (b *Backend) LastExportPath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

func copyRecord(r SessionRecord) SessionRecord {
	out := SessionRecord{
		Session:   r.Session,
		Locations: append([]core.LocationFix(nil), r.Locations...),
		Headings:  append([]core.HeadingFix(nil), r.Headings...),
		Commits:   make([]core.Commit, len(r.Commits)),
	}
	for i, c := range r.Commits {
		out.Commits[i] = c
		out.Commits[i].Geometry = c.Geometry.Clone()
	}
	return out
}

// exportJSON writes one session to <outputDir>/<name>_<start>.json.
// Caller holds b.mu.
func (b *Backend) exportJSON(record SessionRecord) error {
	name := record.Session.Name
	if name == "" {
		name = "session"
	}
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, ":", "_")
	filename := fmt.Sprintf("%s_%s.json", name, record.Session.StartTime.Format("20060102_150405"))
	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session %d: %w", record.Session.ID, err)
	}
	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write session export: %w", err)
	}

	b.lastExportPath = outputPath
	return nil
}
