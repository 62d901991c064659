package scoring

import (
	"math"

	"github.com/saferoute/saferoute/internal/geo"
)

// SegmentLengthMeters is the maximum length of a route segment. Legs longer
// than this are split into equal sub-legs.
const SegmentLengthMeters = 1000.0

// SegmentRoute splits an ordered coordinate polyline into segments no longer
// than SegmentLengthMeters. Sub-leg boundaries are linearly interpolated in
// lat/lon space, an acceptable approximation at this granularity. The sum of
// segment distances equals the polyline length within floating-point
// tolerance.
//
// Returns ErrInvalidRoute for fewer than two coordinates or duplicate
// adjacent coordinates.
func SegmentRoute(coords []geo.Coordinate) ([]RouteSegment, error) {
	if len(coords) < 2 {
		return nil, ErrInvalidRoute
	}

	var segments []RouteSegment
	for i := 1; i < len(coords); i++ {
		start, end := coords[i-1], coords[i]
		legDistance := geo.Distance(start, end)
		if legDistance == 0 {
			return nil, ErrInvalidRoute
		}

		if legDistance <= SegmentLengthMeters {
			segments = append(segments, newSegment(start, end, legDistance))
			continue
		}

		parts := int(math.Ceil(legDistance / SegmentLengthMeters))
		for p := 0; p < parts; p++ {
			subStart := geo.Interpolate(start, end, float64(p)/float64(parts))
			subEnd := geo.Interpolate(start, end, float64(p+1)/float64(parts))
			segments = append(segments, newSegment(subStart, subEnd, legDistance/float64(parts)))
		}
	}

	return segments, nil
}

func newSegment(start, end geo.Coordinate, distance float64) RouteSegment {
	return RouteSegment{
		Start:          start,
		End:            end,
		Center:         geo.Midpoint(start, end),
		DistanceMeters: distance,
	}
}
