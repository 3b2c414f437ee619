package render

import (
	"bytes"
	"fmt"
	"log/slog"
	"testing"

	"github.com/OCAP2/locationmarker/internal/marker"
	"github.com/stretchr/testify/assert"
)

// traceRenderer records writes as strings per transaction
type traceRenderer struct {
	transactions [][]string
	suppressed   []bool
}

func (r *traceRenderer) Transaction(suppressAnimation bool, writes func(marker.Layer)) {
	layer := &traceLayer{}
	writes(layer)
	r.transactions = append(r.transactions, layer.ops)
	r.suppressed = append(r.suppressed, suppressAnimation)
}

type traceLayer struct{ ops []string }

func (l *traceLayer) SetDot(size, opacity float64) {
	l.ops = append(l.ops, fmt.Sprintf("dot %.1f %.1f", size, opacity))
}

func (l *traceLayer) SetArrow(rotation, scale float64) {
	l.ops = append(l.ops, fmt.Sprintf("arrow %.1f %.1f", rotation, scale))
}

func (l *traceLayer) HideArrow() { l.ops = append(l.ops, "hide") }

func TestFanout_ReplaysWritesInOrder(t *testing.T) {
	a, b := &traceRenderer{}, &traceRenderer{}
	f := Fanout{a, nil, b}

	calls := 0
	f.Transaction(true, func(l marker.Layer) {
		calls++
		l.SetDot(30, 0.5)
		l.SetArrow(1, 2)
		l.HideArrow()
	})

	assert.Equal(t, 1, calls, "writes must run once")
	want := []string{"dot 30.0 0.5", "arrow 1.0 2.0", "hide"}
	for _, r := range []*traceRenderer{a, b} {
		assert.Equal(t, [][]string{want}, r.transactions)
		assert.Equal(t, []bool{true}, r.suppressed)
	}
}

func TestFanout_EmptyTransaction(t *testing.T) {
	a := &traceRenderer{}
	Fanout{a}.Transaction(false, func(marker.Layer) {})

	assert.Len(t, a.transactions, 1)
	assert.Empty(t, a.transactions[0])
}

func TestLog_WritesTransaction(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	r := NewLog(logger, slog.LevelInfo, marker.DefaultParams())

	r.Transaction(false, func(l marker.Layer) {
		l.SetDot(50, 0.8)
		l.SetArrow(0.5, 1)
	})

	out := buf.String()
	assert.Contains(t, out, "marker transaction")
	assert.Contains(t, out, "component=render")
	assert.Contains(t, out, "dotSize=50")
	assert.Contains(t, out, "arrowRotation=0.5")
	assert.Contains(t, out, "writes=\"[dot arrow]\"")

	buf.Reset()
	r.Transaction(true, func(l marker.Layer) { l.HideArrow() })
	assert.NotContains(t, buf.String(), "arrowRotation")
	assert.Contains(t, buf.String(), "suppressAnimation=true")
}

func TestLog_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	r := NewLog(logger, slog.LevelDebug, marker.DefaultParams())

	r.Transaction(false, func(l marker.Layer) { l.SetDot(50, 0.8) })
	assert.Empty(t, buf.String())
}
