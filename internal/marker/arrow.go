package marker

import (
	"encoding/json"
	"math"

	"github.com/OCAP2/locationmarker/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// ArrowOutline returns the committed arrow as a polygon in canvas
// coordinates. The polygon is empty while the arrow is hidden.
func (e *Engine) ArrowOutline() geom.Polygon {
	return ArrowOutline(e.params, e.Geometry())
}

// ArrowOutline builds the arrow shape for g: a chevron pointing up before
// rotation, scaled from MinArrowSize and centered on the canvas.
func ArrowOutline(p Params, g core.MarkerGeometry) geom.Polygon {
	if !g.ArrowVisible() {
		return geom.Polygon{}
	}

	half := p.MinArrowSize * g.ArrowScale / 2
	const pad = 0.8

	// center, left, top, right, back to center
	shape := [][2]float64{
		{0, half * 0.4},
		{-half * pad, half},
		{0, -half * 1.1},
		{half * pad, half},
		{0, half * 0.4},
	}

	sin, cos := math.Sincos(*g.ArrowRotation)
	offset := p.CanvasSize / 2

	flat := make([]float64, 0, len(shape)*2)
	for _, pt := range shape {
		x := pt[0]*cos - pt[1]*sin + offset
		y := pt[0]*sin + pt[1]*cos + offset
		flat = append(flat, x, y)
	}

	ring, err := geom.NewLineString(geom.NewSequence(flat, geom.DimXY))
	if err != nil {
		return geom.Polygon{}
	}
	poly, err := geom.NewPolygon([]geom.LineString{ring})
	if err != nil {
		return geom.Polygon{}
	}
	return poly
}

// ArrowOutlineJSON encodes the arrow outline as a GeoJSON polygon, or nil
// while the arrow is hidden.
func ArrowOutlineJSON(p Params, g core.MarkerGeometry) json.RawMessage {
	if !g.ArrowVisible() {
		return nil
	}
	data, err := ArrowOutline(p, g).MarshalJSON()
	if err != nil {
		return nil
	}
	return data
}
