package session

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/OCAP2/locationmarker/pkg/core"
)

// ErrNoSession is returned when recording outside a started session
var ErrNoSession = errors.New("no session started")

// Context holds the session currently being recorded
type Context struct {
	mu      sync.RWMutex
	session *core.Session
	frame   uint
}

// NewContext creates a Context with no session running
func NewContext() *Context {
	return &Context{
		session: &core.Session{Name: "No session running"},
	}
}

// Session returns a copy of the current session
func (c *Context) Session() core.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return *c.session
}

// Start replaces the current session and resets the commit counter
func (c *Context) Start(s *core.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = s
	c.frame = 0
}

// End stamps the end time on the current session
func (c *Context) End(at time.Time) core.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session.EndTime = at
	return *c.session
}

// NextFrame numbers commits within the session, starting at 1
func (c *Context) NextFrame() uint {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frame++
	return c.frame
}

// Attrs is a logging.AttrFunc tagging records with the session
func (c *Context) Attrs() []slog.Attr {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session.ID == 0 {
		return nil
	}
	return []slog.Attr{
		slog.Uint64("session", uint64(c.session.ID)),
		slog.Uint64("frame", uint64(c.frame)),
	}
}
