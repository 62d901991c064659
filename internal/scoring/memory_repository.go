package scoring

import (
	"context"
	"fmt"
	"sync"

	"github.com/saferoute/saferoute/internal/geo"
)

// InMemoryRepository is an in-memory implementation of GeoRepository and
// VoteRepository for testing and local development.
type InMemoryRepository struct {
	mu        sync.RWMutex
	locations []NearbyLocation
	zones     []DangerZone
	stats     []statsArea
	votes     map[string]VoteTally
}

type statsArea struct {
	center geo.Coordinate
	radius float64
	stats  NeighborhoodStats
}

// NewInMemoryRepository creates a new empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{votes: make(map[string]VoteTally)}
}

// AddLocation adds a reviewed location.
func (r *InMemoryRepository) AddLocation(loc NearbyLocation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locations = append(r.locations, loc)
}

// AddDangerZone adds a danger zone.
func (r *InMemoryRepository) AddDangerZone(zone DangerZone) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.zones = append(r.zones, zone)
}

// SetStats registers neighborhood statistics covering a circular area.
func (r *InMemoryRepository) SetStats(center geo.Coordinate, radiusMeters float64, stats NeighborhoodStats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats = append(r.stats, statsArea{center: center, radius: radiusMeters, stats: stats})
}

// SetVotes registers a vote tally for predictions at a point.
func (r *InMemoryRepository) SetVotes(point geo.Coordinate, tally VoteTally) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.votes[voteKey(point)] = tally
}

// NearbyLocations returns locations within radiusMeters of the point.
func (r *InMemoryRepository) NearbyLocations(_ context.Context, point geo.Coordinate, radiusMeters float64, limit int) ([]NearbyLocation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []NearbyLocation
	for _, loc := range r.locations {
		if geo.Distance(point, loc.Location) <= radiusMeters {
			out = append(out, loc)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// DangerZones returns zones intersecting the radius around the point.
func (r *InMemoryRepository) DangerZones(_ context.Context, point geo.Coordinate, radiusMeters float64) ([]DangerZone, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []DangerZone
	for _, zone := range r.zones {
		if geo.PolygonIntersectsRadius(point, radiusMeters, zone.Polygon) {
			out = append(out, zone)
		}
	}
	return out, nil
}

// NeighborhoodStats returns the first statistics area covering the point, or
// nil when none does.
func (r *InMemoryRepository) NeighborhoodStats(_ context.Context, point geo.Coordinate) (*NeighborhoodStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, area := range r.stats {
		if geo.Distance(point, area.center) <= area.radius {
			stats := area.stats
			return &stats, nil
		}
	}
	return nil, nil
}

// PredictionVotes returns the vote tally for the point.
func (r *InMemoryRepository) PredictionVotes(_ context.Context, point geo.Coordinate) (VoteTally, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.votes[voteKey(point)], nil
}

// voteKey buckets a coordinate to ~11m precision, matching how prediction
// votes are keyed in storage.
func voteKey(point geo.Coordinate) string {
	return fmt.Sprintf("%.4f:%.4f", point.Lat, point.Lon)
}

// Ensure interface conformance.
var (
	_ GeoRepository  = (*InMemoryRepository)(nil)
	_ VoteRepository = (*InMemoryRepository)(nil)
)
