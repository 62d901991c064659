package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/saferoute/saferoute/internal/geo"
)

// PostgresRepository is a PostgreSQL/PostGIS implementation of GeoRepository
// and VoteRepository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL scoring repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// NearbyLocations returns reviewed locations within radiusMeters of the
// point, nearest first, with their score records attached.
func (r *PostgresRepository) NearbyLocations(ctx context.Context, point geo.Coordinate, radiusMeters float64, limit int) ([]NearbyLocation, error) {
	if limit <= 0 {
		limit = NearbyLocationLimit
	}

	query := `
		SELECT id, name, place_type, lat, lon
		FROM locations
		WHERE ST_DWithin(
			geography(ST_MakePoint(lon, lat)),
			geography(ST_MakePoint($2, $1)),
			$3
		)
		ORDER BY geography(ST_MakePoint(lon, lat)) <-> geography(ST_MakePoint($2, $1))
		LIMIT $4
	`

	rows, err := r.pool.Query(ctx, query, point.Lat, point.Lon, radiusMeters, limit)
	if err != nil {
		return nil, fmt.Errorf("query nearby locations: %w", err)
	}
	defer rows.Close()

	var locations []NearbyLocation
	var ids []string
	for rows.Next() {
		var loc NearbyLocation
		if err := rows.Scan(&loc.ID, &loc.Name, &loc.PlaceType, &loc.Location.Lat, &loc.Location.Lon); err != nil {
			return nil, err
		}
		locations = append(locations, loc)
		ids = append(ids, loc.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(locations) == 0 {
		return nil, nil
	}

	if err := r.attachScores(ctx, locations, ids); err != nil {
		return nil, err
	}
	return locations, nil
}

// attachScores loads the per-demographic score records for a set of locations.
func (r *PostgresRepository) attachScores(ctx context.Context, locations []NearbyLocation, ids []string) error {
	query := `
		SELECT location_id, demographic_type, COALESCE(demographic_value, ''),
			avg_safety_score, avg_comfort_score, avg_overall_score, review_count
		FROM location_safety_scores
		WHERE location_id = ANY($1)
	`

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("query safety scores: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]*NearbyLocation, len(locations))
	for i := range locations {
		byID[locations[i].ID] = &locations[i]
	}

	for rows.Next() {
		var locationID string
		var rec SafetyScoreRecord
		if err := rows.Scan(
			&locationID,
			&rec.DemographicType,
			&rec.DemographicValue,
			&rec.AvgSafetyScore,
			&rec.AvgComfortScore,
			&rec.AvgOverallScore,
			&rec.ReviewCount,
		); err != nil {
			return err
		}
		if loc, ok := byID[locationID]; ok {
			loc.Scores = append(loc.Scores, rec)
		}
	}
	return rows.Err()
}

// DangerZones returns danger zones intersecting the radius around the point.
func (r *PostgresRepository) DangerZones(ctx context.Context, point geo.Coordinate, radiusMeters float64) ([]DangerZone, error) {
	query := `
		SELECT id, polygon, severity_multiplier, description
		FROM danger_zones
		WHERE ST_DWithin(
			geography(boundary),
			geography(ST_MakePoint($2, $1)),
			$3
		)
	`

	rows, err := r.pool.Query(ctx, query, point.Lat, point.Lon, radiusMeters)
	if err != nil {
		return nil, fmt.Errorf("query danger zones: %w", err)
	}
	defer rows.Close()

	var zones []DangerZone
	for rows.Next() {
		var zone DangerZone
		var polygonJSON []byte
		if err := rows.Scan(&zone.ID, &polygonJSON, &zone.SeverityMultiplier, &zone.Description); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(polygonJSON, &zone.Polygon); err != nil {
			return nil, fmt.Errorf("decode zone polygon %s: %w", zone.ID, err)
		}
		zones = append(zones, zone)
	}
	return zones, rows.Err()
}

// NeighborhoodStats returns area statistics covering the point, or nil when
// no statistics row covers it.
func (r *PostgresRepository) NeighborhoodStats(ctx context.Context, point geo.Coordinate) (*NeighborhoodStats, error) {
	query := `
		SELECT crime_rate_per_1000, violent_crime_rate, hate_crime_incidents,
			diversity_index, pct_minority
		FROM neighborhood_stats
		WHERE ST_Contains(boundary, ST_MakePoint($2, $1))
		LIMIT 1
	`

	var stats NeighborhoodStats
	err := r.pool.QueryRow(ctx, query, point.Lat, point.Lon).Scan(
		&stats.CrimeRatePer1000,
		&stats.ViolentCrimeRate,
		&stats.HateCrimeIncidents,
		&stats.DiversityIndex,
		&stats.PctMinority,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query neighborhood stats: %w", err)
	}
	return &stats, nil
}

// PredictionVotes returns the accuracy vote tally for predictions at the
// point. Votes are keyed by coordinate bucketed to four decimal places.
func (r *PostgresRepository) PredictionVotes(ctx context.Context, point geo.Coordinate) (VoteTally, error) {
	query := `
		SELECT COUNT(*) FILTER (WHERE vote = 'accurate'), COUNT(*)
		FROM prediction_votes
		WHERE point_key = $1
	`

	var tally VoteTally
	err := r.pool.QueryRow(ctx, query, voteKey(point)).Scan(&tally.Accurate, &tally.Total)
	if err != nil {
		return VoteTally{}, fmt.Errorf("query prediction votes: %w", err)
	}
	return tally, nil
}

// Ensure interface conformance.
var (
	_ GeoRepository  = (*PostgresRepository)(nil)
	_ VoteRepository = (*PostgresRepository)(nil)
)
