package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// stdout is swapped in tests
var stdout io.Writer = os.Stdout

// Options selects where records go and how they look
type Options struct {
	// File receives every record. Console output is used when nil.
	File io.Writer
	// Level is one of debug, info, warn or error. Unknown levels mean info.
	Level string
	// Format is "text" (default) or "json".
	Format string
	// OTel, when set, receives every record through the otelslog bridge.
	OTel *sdklog.LoggerProvider
}

// SlogManager owns the marker's handler chain. Setup may be called again
// once the log file and telemetry are known; the previous chain is dropped.
type SlogManager struct {
	name     string
	logger   *slog.Logger
	attrs    AttrFunc
	provider *sdklog.LoggerProvider
}

// NewSlogManager creates a manager whose OTel records use the given
// instrumentation scope name.
func NewSlogManager(name string) *SlogManager {
	return &SlogManager{name: name}
}

func parseLevel(level string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// SetContext registers attributes stamped on every record. Takes effect on
// the next Setup.
func (m *SlogManager) SetContext(attrs AttrFunc) {
	m.attrs = attrs
}

// Setup builds the handler chain from opts.
func (m *SlogManager) Setup(opts Options) {
	handlerOpts := &slog.HandlerOptions{
		Level: parseLevel(opts.Level),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
				}
			}
			return a
		},
	}

	out := opts.File
	if out == nil {
		out = stdout
	}
	format := strings.ToLower(opts.Format)
	var local slog.Handler
	if format == "json" {
		local = slog.NewJSONHandler(out, handlerOpts)
	} else {
		format = "text"
		local = slog.NewTextHandler(out, handlerOpts)
	}

	var bridge slog.Handler
	if opts.OTel != nil {
		bridge = otelslog.NewHandler(m.name, otelslog.WithLoggerProvider(opts.OTel))
	}
	m.provider = opts.OTel

	m.logger = slog.New(Stamp(Fanout(local, bridge), m.attrs))
	m.logger.Info("Logging initialized", "logLevel", handlerOpts.Level, "format", format)
}

// Logger returns the configured logger, or slog.Default before Setup.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		return slog.Default()
	}
	return m.logger
}

// Flush pushes buffered OTel records out.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.provider == nil {
		return nil
	}
	return m.provider.ForceFlush(ctx)
}
