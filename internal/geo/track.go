package geo

import (
	"encoding/json"
	"fmt"

	"github.com/OCAP2/locationmarker/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// ParseTrack parses a JSON array of [lon,lat] pairs into a geom.LineString.
// Input format: "[[lon1,lat1],[lon2,lat2],...]"
func ParseTrack(input string) (geom.LineString, error) {
	var coords [][]float64
	if err := json.Unmarshal([]byte(input), &coords); err != nil {
		return geom.LineString{}, fmt.Errorf("failed to parse track JSON: %w", err)
	}

	if len(coords) < 2 {
		return geom.LineString{}, fmt.Errorf("track must have at least 2 points, got %d", len(coords))
	}

	flatCoords := make([]float64, 0, len(coords)*2)
	for i, coord := range coords {
		if len(coord) < 2 {
			return geom.LineString{}, fmt.Errorf("coordinate %d has insufficient values", i)
		}
		if !ValidCoordinate(core.Coordinate{Latitude: coord[1], Longitude: coord[0]}) {
			return geom.LineString{}, fmt.Errorf("coordinate %d: %w", i, ErrInvalidCoordinates)
		}
		flatCoords = append(flatCoords, coord[0], coord[1])
	}

	seq := geom.NewSequence(flatCoords, geom.DimXY)
	return geom.NewLineString(seq)
}

// TrackCoordinates returns the vertices of a track in order
func TrackCoordinates(ls geom.LineString) []core.Coordinate {
	seq := ls.Coordinates()
	out := make([]core.Coordinate, seq.Length())
	for i := 0; i < seq.Length(); i++ {
		xy := seq.GetXY(i)
		out[i] = core.Coordinate{Latitude: xy.Y, Longitude: xy.X}
	}
	return out
}

// TrackLength returns the ground length of a track in meters
func TrackLength(ls geom.LineString) float64 {
	coords := TrackCoordinates(ls)
	var total float64
	for i := 1; i < len(coords); i++ {
		total += Distance(coords[i-1], coords[i])
	}
	return total
}
