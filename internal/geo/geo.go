package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/OCAP2/locationmarker/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// Coordinates arrive as WGS84 (EPSG:4326). Map math happens in Web Mercator
// (EPSG:3857), which is what the map surface renders in.

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// EarthRadius is the WGS84 semi-major axis in meters
const EarthRadius = 6378137.0

// CoordinateFromString parses a string in the format "lat,lon" into a core.Coordinate
func CoordinateFromString(coords string) (core.Coordinate, error) {
	coordsSplit := strings.Split(coords, ",")
	if len(coordsSplit) != 2 {
		return core.Coordinate{}, ErrInvalidCoordinates
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(coordsSplit[0]), 64)
	if err != nil {
		return core.Coordinate{}, ErrInvalidCoordinates
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(coordsSplit[1]), 64)
	if err != nil {
		return core.Coordinate{}, ErrInvalidCoordinates
	}
	c := core.Coordinate{Latitude: lat, Longitude: lon}
	if !ValidCoordinate(c) {
		return core.Coordinate{}, ErrInvalidCoordinates
	}
	return c, nil
}

// ValidCoordinate reports whether c lies within WGS84 bounds
func ValidCoordinate(c core.Coordinate) bool {
	return c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180
}

// Coords3857From4326 creates a Web Mercator point from a longitude and latitude
func Coords3857From4326(
	longitude float64,
	latitude float64,
) (
	point geom.Point,
	err error,
) {
	if !ValidCoordinate(core.Coordinate{Latitude: latitude, Longitude: longitude}) {
		return geom.NewEmptyPoint(geom.DimXY), ErrInvalidCoordinates
	}
	f := wgs84.EPSG().Transform(4326, 3857)
	x, y, _ := f(longitude, latitude, 0)
	point, err = geom.NewPoint(
		geom.Coordinates{
			XY:   geom.XY{X: x, Y: y},
			Type: geom.DimXY,
		},
	)
	if err != nil {
		return geom.NewEmptyPoint(geom.DimXY), fmt.Errorf("projecting %f,%f: %w", longitude, latitude, err)
	}
	return point, nil
}

// WorldWidth returns the width of the Web Mercator plane in projected meters,
// i.e. the distance between the antimeridians at the equator.
func WorldWidth() float64 {
	f := wgs84.EPSG().Transform(4326, 3857)
	east, _, _ := f(180, 0, 0)
	west, _, _ := f(-180, 0, 0)
	return east - west
}

// Distance returns the great-circle distance between a and b in meters
func Distance(a, b core.Coordinate) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := lat2 - lat1
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * EarthRadius * math.Asin(math.Min(1, math.Sqrt(h)))
}

// DegreesToRadians converts an angle in degrees to radians
func DegreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// InitialBearing returns the compass bearing in degrees [0, 360) of the
// great-circle path from a towards b.
func InitialBearing(a, b core.Coordinate) float64 {
	lat1 := DegreesToRadians(a.Latitude)
	lat2 := DegreesToRadians(b.Latitude)
	dLon := DegreesToRadians(b.Longitude - a.Longitude)

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	deg := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(deg+360, 360)
}
