package marker

import (
	"errors"
	"fmt"
	"time"
)

// Params are the tunable constants of the marker. Sizes are in screen units,
// distances in meters.
type Params struct {
	CanvasSize       float64       `json:"canvasSize" mapstructure:"canvasSize"`
	LineWidth        float64       `json:"lineWidth" mapstructure:"lineWidth"`
	MinDotSize       float64       `json:"minDotSize" mapstructure:"minDotSize"`
	MinDotMeters     float64       `json:"minDotMeters" mapstructure:"minDotMeters"`
	ArrowMeters      float64       `json:"arrowMeters" mapstructure:"arrowMeters"`
	MinArrowSize     float64       `json:"minArrowSize" mapstructure:"minArrowSize"`
	MaxArrowSize     float64       `json:"maxArrowSize" mapstructure:"maxArrowSize"`
	OpacityFloor     float64       `json:"opacityFloor" mapstructure:"opacityFloor"`
	DotThreshold     float64       `json:"dotThreshold" mapstructure:"dotThreshold"`
	HitTestSize      float64       `json:"hitTestSize" mapstructure:"hitTestSize"`
	RecenterDuration time.Duration `json:"recenterDuration" mapstructure:"recenterDuration"`
}

// DefaultParams returns the stock marker tuning
func DefaultParams() Params {
	return Params{
		CanvasSize:       200,
		LineWidth:        2,
		MinDotSize:       24,
		MinDotMeters:     8,
		ArrowMeters:      4,
		MinArrowSize:     12,
		MaxArrowSize:     0,
		OpacityFloor:     0.2,
		DotThreshold:     4,
		HitTestSize:      24,
		RecenterDuration: 500 * time.Millisecond,
	}
}

// MaxDotSize is the largest dot that fits the canvas including its stroke
func (p Params) MaxDotSize() float64 {
	return p.CanvasSize - p.LineWidth
}

// MaxArrowScale is the scale at which the arrow reaches MaxArrowSize.
// Zero means the arrow grows without bound.
func (p Params) MaxArrowScale() float64 {
	if p.MaxArrowSize <= 0 {
		return 0
	}
	return p.MaxArrowSize / p.MinArrowSize
}

// ErrInvalidParams is returned when marker parameters are inconsistent
var ErrInvalidParams = errors.New("invalid marker parameters")

// Validate checks that the parameters describe a drawable marker
func (p Params) Validate() error {
	switch {
	case p.CanvasSize <= 0:
		return fmt.Errorf("%w: canvasSize must be positive", ErrInvalidParams)
	case p.LineWidth < 0 || p.LineWidth >= p.CanvasSize:
		return fmt.Errorf("%w: lineWidth must be in [0, canvasSize)", ErrInvalidParams)
	case p.MinDotSize <= 0 || p.MinDotSize > p.MaxDotSize():
		return fmt.Errorf("%w: minDotSize must be in (0, canvasSize-lineWidth]", ErrInvalidParams)
	case p.MinDotMeters < 0 || p.ArrowMeters < 0:
		return fmt.Errorf("%w: meter sizes must not be negative", ErrInvalidParams)
	case p.MinArrowSize <= 0:
		return fmt.Errorf("%w: minArrowSize must be positive", ErrInvalidParams)
	case p.MaxArrowSize > 0 && p.MaxArrowSize < p.MinArrowSize:
		return fmt.Errorf("%w: maxArrowSize must not be below minArrowSize", ErrInvalidParams)
	case p.OpacityFloor < 0 || p.OpacityFloor > 1:
		return fmt.Errorf("%w: opacityFloor must be in [0, 1]", ErrInvalidParams)
	case p.DotThreshold < 0:
		return fmt.Errorf("%w: dotThreshold must not be negative", ErrInvalidParams)
	case p.HitTestSize <= 0 || p.HitTestSize > p.CanvasSize:
		return fmt.Errorf("%w: hitTestSize must be in (0, canvasSize]", ErrInvalidParams)
	case p.RecenterDuration < 0:
		return fmt.Errorf("%w: recenterDuration must not be negative", ErrInvalidParams)
	}
	return nil
}
