// internal/storage/storage.go
package storage

import "github.com/OCAP2/locationmarker/pkg/core"

// Backend is the interface all session recorders must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Session management (assigns ID to the passed pointer)
	StartSession(s *core.Session) error
	EndSession() error

	// Input recording
	RecordLocation(fix *core.LocationFix) error
	RecordHeading(fix *core.HeadingFix) error

	// Output recording
	RecordCommit(c *core.Commit) error
}

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}
