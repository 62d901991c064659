// Package geo provides geographic math for route scoring and alert dispatch:
// great-circle distances, point interpolation and polygon containment.
package geo

import "math"

// EarthRadiusMeters is the mean Earth radius used for haversine distances.
const EarthRadiusMeters = 6371000

// Coordinate represents a WGS84 geographic coordinate in degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Distance calculates the great-circle distance between two coordinates in
// meters using the Haversine formula.
func Distance(a, b Coordinate) float64 {
	lat1Rad := a.Lat * math.Pi / 180
	lat2Rad := b.Lat * math.Pi / 180
	deltaLat := (b.Lat - a.Lat) * math.Pi / 180
	deltaLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusMeters * c
}

// Interpolate returns the point at fraction t along the straight line from a
// to b in lat/lon space. Linear interpolation is an acceptable approximation
// at sub-kilometer leg lengths.
func Interpolate(a, b Coordinate, t float64) Coordinate {
	return Coordinate{
		Lat: a.Lat + (b.Lat-a.Lat)*t,
		Lon: a.Lon + (b.Lon-a.Lon)*t,
	}
}

// Midpoint returns the point halfway between a and b in lat/lon space.
func Midpoint(a, b Coordinate) Coordinate {
	return Interpolate(a, b, 0.5)
}

// DistanceToPolyline returns the minimum haversine distance in meters from
// point p to any vertex or sampled edge point of the polyline. Edges are
// sampled rather than projected; at the distances that matter here (hundreds
// of meters) the error is negligible.
func DistanceToPolyline(p Coordinate, polyline []Coordinate) float64 {
	if len(polyline) == 0 {
		return math.Inf(1)
	}

	min := math.Inf(1)
	for i, v := range polyline {
		if d := Distance(p, v); d < min {
			min = d
		}
		if i == 0 {
			continue
		}
		// Sample interior points of the edge proportional to its length.
		prev := polyline[i-1]
		edgeLen := Distance(prev, v)
		samples := int(edgeLen / 100)
		for s := 1; s < samples; s++ {
			q := Interpolate(prev, v, float64(s)/float64(samples))
			if d := Distance(p, q); d < min {
				min = d
			}
		}
	}
	return min
}

// PointInPolygon reports whether p lies inside the polygon using the ray
// casting algorithm. The polygon is treated as closed.
func PointInPolygon(p Coordinate, polygon []Coordinate) bool {
	if len(polygon) < 3 {
		return false
	}

	inside := false
	j := len(polygon) - 1
	for i := 0; i < len(polygon); i++ {
		vi, vj := polygon[i], polygon[j]
		if (vi.Lon > p.Lon) != (vj.Lon > p.Lon) &&
			p.Lat < (vj.Lat-vi.Lat)*(p.Lon-vi.Lon)/(vj.Lon-vi.Lon)+vi.Lat {
			inside = !inside
		}
		j = i
	}
	return inside
}

// PolygonIntersectsRadius reports whether any part of the polygon lies within
// radiusMeters of center. True when the center is inside the polygon or any
// vertex falls within the radius.
func PolygonIntersectsRadius(center Coordinate, radiusMeters float64, polygon []Coordinate) bool {
	if PointInPolygon(center, polygon) {
		return true
	}
	for _, v := range polygon {
		if Distance(center, v) <= radiusMeters {
			return true
		}
	}
	return false
}
