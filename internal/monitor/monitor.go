package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/OCAP2/locationmarker/internal/session"
	"github.com/OCAP2/locationmarker/pkg/core"
)

const defaultInterval = 5 * time.Second

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Dependencies holds all dependencies for the monitor service. Only
// Sessions is required.
type Dependencies struct {
	Sessions   *session.Context
	Geometry   func() core.MarkerGeometry
	Clients    func() int
	Queues     func() map[string]int
	StatusPath string // status file rewritten every tick, empty disables
	Interval   time.Duration
	Logger     Logger
}

// Status is a point-in-time view of the running marker
type Status struct {
	Time          time.Time           `json:"time"`
	Session       core.Session        `json:"session"`
	RenderClients int                 `json:"renderClients"`
	WriteQueues   map[string]int      `json:"writeQueues,omitempty"`
	Geometry      core.MarkerGeometry `json:"geometry"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = defaultInterval
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{deps: deps}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetStatus samples the current status
func (s *Service) GetStatus() Status {
	st := Status{
		Time:    time.Now(),
		Session: s.deps.Sessions.Session(),
	}
	if s.deps.Clients != nil {
		st.RenderClients = s.deps.Clients()
	}
	if s.deps.Queues != nil {
		st.WriteQueues = s.deps.Queues()
	}
	if s.deps.Geometry != nil {
		st.Geometry = s.deps.Geometry()
	}
	return st
}

// WriteStatus replaces the status file with the current status
func (s *Service) WriteStatus(st Status) error {
	if s.deps.StatusPath == "" {
		return nil
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding status: %w", err)
	}
	tmp := s.deps.StatusPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing status: %w", err)
	}
	return os.Rename(tmp, s.deps.StatusPath)
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.stopChan != nil {
		s.mu.Unlock()
		return nil
	}
	if s.deps.Sessions == nil {
		s.mu.Unlock()
		return fmt.Errorf("monitor: no session context")
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		s.deps.Logger.Debug("Starting status monitor", "interval", s.deps.Interval, "path", s.deps.StatusPath)

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				st := s.GetStatus()
				if st.Session.ID == 0 {
					continue
				}
				if err := s.WriteStatus(st); err != nil {
					s.deps.Logger.Error("Error writing status file", "error", err)
				}
				s.deps.Logger.Debug("Marker status",
					"clients", st.RenderClients,
					"queues", st.WriteQueues,
					"dotSize", st.Geometry.DotSize,
					"arrow", st.Geometry.ArrowVisible(),
				)
			}
		}
	}()

	return nil
}

// Stop stops the status monitor and waits for it to exit
func (s *Service) Stop() {
	s.mu.Lock()
	if s.stopChan == nil {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	s.stopChan = nil
	done := s.done
	s.mu.Unlock()
	<-done
}
