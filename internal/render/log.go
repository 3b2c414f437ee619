package render

import (
	"context"
	"log/slog"

	"github.com/OCAP2/locationmarker/internal/marker"
)

// Log is a renderer that writes every committed transaction to slog.
type Log struct {
	logger   *slog.Logger
	level    slog.Level
	snapshot *marker.Snapshot
}

// NewLog creates a Log renderer logging at level.
func NewLog(logger *slog.Logger, level slog.Level, params marker.Params) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{
		logger:   logger.With("component", "render"),
		level:    level,
		snapshot: marker.NewSnapshot(params),
	}
}

// Transaction implements marker.Renderer.
func (r *Log) Transaction(suppressAnimation bool, writes func(marker.Layer)) {
	layer := &logLayer{}
	writes(r.snapshot.Layer(layer))

	g := r.snapshot.Geometry()
	args := []any{
		"suppressAnimation", suppressAnimation,
		"writes", layer.ops,
		"dotSize", g.DotSize,
		"dotOpacity", g.DotOpacity,
	}
	if g.ArrowVisible() {
		args = append(args, "arrowRotation", *g.ArrowRotation, "arrowScale", g.ArrowScale)
	}
	r.logger.Log(context.Background(), r.level, "marker transaction", args...)
}

// logLayer names the properties written in a transaction
type logLayer struct {
	ops []string
}

func (l *logLayer) SetDot(float64, float64)   { l.ops = append(l.ops, "dot") }
func (l *logLayer) SetArrow(float64, float64) { l.ops = append(l.ops, "arrow") }
func (l *logLayer) HideArrow()                { l.ops = append(l.ops, "hideArrow") }
