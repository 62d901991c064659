package geo_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/saferoute/saferoute/internal/geo"
)

func TestDistance_KnownValues(t *testing.T) {
	// Amsterdam Centraal to Rotterdam Centraal, roughly 57 km.
	ams := geo.Coordinate{Lat: 52.3791, Lon: 4.9003}
	rtd := geo.Coordinate{Lat: 51.9244, Lon: 4.4777}

	d := geo.Distance(ams, rtd)
	assert.InDelta(t, 57500, d, 1500, "Amsterdam-Rotterdam should be ~57.5km")
}

func TestDistance_ZeroForSamePoint(t *testing.T) {
	p := geo.Coordinate{Lat: 40.7128, Lon: -74.0060}
	assert.Equal(t, 0.0, geo.Distance(p, p))
}

func TestDistance_OneDegreeLongitudeAtEquator(t *testing.T) {
	a := geo.Coordinate{Lat: 0, Lon: 0}
	b := geo.Coordinate{Lat: 0, Lon: 1}

	// One degree of longitude at the equator is ~111.19 km.
	assert.InDelta(t, 111195, geo.Distance(a, b), 100)
}

func TestInterpolate(t *testing.T) {
	a := geo.Coordinate{Lat: 0, Lon: 0}
	b := geo.Coordinate{Lat: 10, Lon: 20}

	mid := geo.Interpolate(a, b, 0.5)
	assert.Equal(t, geo.Coordinate{Lat: 5, Lon: 10}, mid)

	assert.Equal(t, a, geo.Interpolate(a, b, 0))
	assert.Equal(t, b, geo.Interpolate(a, b, 1))
}

func TestDistanceToPolyline(t *testing.T) {
	line := []geo.Coordinate{
		{Lat: 0, Lon: 0},
		{Lat: 0, Lon: 0.02},
	}

	// Point on the line.
	on := geo.Coordinate{Lat: 0, Lon: 0.01}
	assert.Less(t, geo.DistanceToPolyline(on, line), 60.0)

	// Point ~1.1km north of the line's midpoint.
	off := geo.Coordinate{Lat: 0.01, Lon: 0.01}
	d := geo.DistanceToPolyline(off, line)
	assert.InDelta(t, 1112, d, 60)

	// Empty polyline is infinitely far away.
	assert.True(t, math.IsInf(geo.DistanceToPolyline(on, nil), 1))
}

func TestPointInPolygon(t *testing.T) {
	square := []geo.Coordinate{
		{Lat: 0, Lon: 0},
		{Lat: 0, Lon: 1},
		{Lat: 1, Lon: 1},
		{Lat: 1, Lon: 0},
	}

	assert.True(t, geo.PointInPolygon(geo.Coordinate{Lat: 0.5, Lon: 0.5}, square))
	assert.False(t, geo.PointInPolygon(geo.Coordinate{Lat: 1.5, Lon: 0.5}, square))
	assert.False(t, geo.PointInPolygon(geo.Coordinate{Lat: 0.5, Lon: 0.5}, square[:2]), "degenerate polygon")
}

func TestPolygonIntersectsRadius(t *testing.T) {
	square := []geo.Coordinate{
		{Lat: 0, Lon: 0},
		{Lat: 0, Lon: 0.01},
		{Lat: 0.01, Lon: 0.01},
		{Lat: 0.01, Lon: 0},
	}

	// Center inside the polygon.
	assert.True(t, geo.PolygonIntersectsRadius(geo.Coordinate{Lat: 0.005, Lon: 0.005}, 10, square))

	// Center outside but a vertex within radius (vertex at 0,0 is ~556m away).
	near := geo.Coordinate{Lat: -0.005, Lon: 0}
	assert.True(t, geo.PolygonIntersectsRadius(near, 600, square))
	assert.False(t, geo.PolygonIntersectsRadius(near, 300, square))
}
