package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
//
// The notification_log table carries a unique index on
// (user_id, route_id, notification_type, window_bucket); WriteNotificationLog
// relies on it to keep the rate-limit invariant under concurrent or replayed
// trigger delivery.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL dispatch repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// ActiveRoutes returns all currently navigating routes whose rider has a
// push token, with demographics and preferences attached.
func (r *PostgresRepository) ActiveRoutes(ctx context.Context) ([]ActiveRoute, error) {
	query := `
		SELECT ar.id, ar.user_id, ar.coordinates, ar.notified_since,
			d.push_token,
			COALESCE(p.demographics, '{}'::jsonb),
			COALESCE(p.notification_preferences, '{"routeSafetyAlerts": true}'::jsonb)
		FROM active_routes ar
		JOIN devices d ON d.user_id = ar.user_id AND d.push_token IS NOT NULL
		LEFT JOIN profiles p ON p.user_id = ar.user_id
		WHERE ar.ended_at IS NULL
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query active routes: %w", err)
	}
	defer rows.Close()

	var routes []ActiveRoute
	for rows.Next() {
		var route ActiveRoute
		var coordsJSON, demoJSON, prefsJSON []byte
		if err := rows.Scan(
			&route.ID,
			&route.UserID,
			&coordsJSON,
			&route.NotifiedSince,
			&route.PushToken,
			&demoJSON,
			&prefsJSON,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(coordsJSON, &route.Coordinates); err != nil {
			return nil, fmt.Errorf("decode route coordinates %s: %w", route.ID, err)
		}
		if err := json.Unmarshal(demoJSON, &route.Demographics); err != nil {
			return nil, fmt.Errorf("decode demographics for route %s: %w", route.ID, err)
		}
		if err := json.Unmarshal(prefsJSON, &route.Preferences); err != nil {
			return nil, fmt.Errorf("decode preferences for route %s: %w", route.ID, err)
		}
		routes = append(routes, route)
	}
	return routes, rows.Err()
}

// RecentLowRatingReports returns hazard reports in (since, until] rated
// below the hazard threshold, restricted to locations with an open
// navigation context.
func (r *PostgresRepository) RecentLowRatingReports(ctx context.Context, since, until time.Time) ([]HazardReport, error) {
	query := `
		SELECT hr.id, hr.location_id, l.name, hr.safety_rating, hr.reporter_id,
			COALESCE(rp.demographics, '{}'::jsonb), l.lat, l.lon, hr.created_at
		FROM hazard_reports hr
		JOIN locations l ON l.id = hr.location_id
		LEFT JOIN profiles rp ON rp.user_id = hr.reporter_id
		WHERE hr.created_at > $1
			AND hr.created_at <= $2
			AND hr.safety_rating < $3
			AND EXISTS (
				SELECT 1 FROM active_routes ar
				WHERE ar.ended_at IS NULL
			)
	`

	rows, err := r.pool.Query(ctx, query, since, until, HazardRatingThreshold)
	if err != nil {
		return nil, fmt.Errorf("query recent reports: %w", err)
	}
	defer rows.Close()

	var reports []HazardReport
	for rows.Next() {
		var report HazardReport
		var demoJSON []byte
		if err := rows.Scan(
			&report.ID,
			&report.LocationID,
			&report.LocationName,
			&report.SafetyRating,
			&report.ReporterID,
			&demoJSON,
			&report.Location.Lat,
			&report.Location.Lon,
			&report.CreatedAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(demoJSON, &report.Reporter); err != nil {
			return nil, fmt.Errorf("decode reporter demographics %s: %w", report.ID, err)
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}

// HasRecentNotification reports whether a notification of the given type was
// logged for the rider-route pair at or after since.
func (r *PostgresRepository) HasRecentNotification(ctx context.Context, userID, routeID, notificationType string, since time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM notification_log
			WHERE user_id = $1 AND route_id = $2
				AND notification_type = $3 AND sent_at >= $4
		)
	`

	var exists bool
	err := r.pool.QueryRow(ctx, query, userID, routeID, notificationType, since).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query notification log: %w", err)
	}
	return exists, nil
}

// WriteNotificationLog appends a log entry. The unique index on the
// idempotency key turns a replayed write into ErrDuplicateNotification.
func (r *PostgresRepository) WriteNotificationLog(ctx context.Context, entry NotificationLogEntry) error {
	query := `
		INSERT INTO notification_log (
			user_id, route_id, notification_type, sent_at,
			window_bucket, report_ids, severity
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, route_id, notification_type, window_bucket) DO NOTHING
	`

	result, err := r.pool.Exec(ctx, query,
		entry.UserID,
		entry.RouteID,
		entry.NotificationType,
		entry.SentAt,
		entry.WindowBucket,
		entry.ReportIDs,
		string(entry.Severity),
	)
	if err != nil {
		return fmt.Errorf("write notification log: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrDuplicateNotification
	}
	return nil
}

// Ensure interface conformance.
var _ Repository = (*PostgresRepository)(nil)
