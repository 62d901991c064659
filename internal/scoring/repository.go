package scoring

import (
	"context"

	"github.com/saferoute/saferoute/internal/geo"
)

// GeoRepository provides read access to the geospatial safety datastore.
type GeoRepository interface {
	// NearbyLocations returns reviewed locations within radiusMeters of the
	// point, capped at limit, each with its score records attached.
	NearbyLocations(ctx context.Context, point geo.Coordinate, radiusMeters float64, limit int) ([]NearbyLocation, error)

	// DangerZones returns danger zones intersecting the radius around the point.
	DangerZones(ctx context.Context, point geo.Coordinate, radiusMeters float64) ([]DangerZone, error)

	// NeighborhoodStats returns area statistics for the point, or nil when no
	// statistics cover it. Absence is not an error.
	NeighborhoodStats(ctx context.Context, point geo.Coordinate) (*NeighborhoodStats, error)
}

// VoteTally counts accuracy votes cast on a point prediction.
type VoteTally struct {
	Accurate int
	Total    int
}

// VoteRepository provides read access to prediction accuracy votes.
type VoteRepository interface {
	// PredictionVotes returns the vote tally for predictions at the point.
	PredictionVotes(ctx context.Context, point geo.Coordinate) (VoteTally, error)
}
