package dispatch

import (
	"context"
	"errors"
	"time"
)

// Repository errors.
var (
	// ErrDuplicateNotification is returned by WriteNotificationLog when an
	// entry for the same (user, route, type, window bucket) already exists.
	ErrDuplicateNotification = errors.New("notification already logged for this window")
)

// Repository provides the dispatch side of the datastore.
type Repository interface {
	// ActiveRoutes returns every currently navigating route whose rider has
	// a push token registered.
	ActiveRoutes(ctx context.Context) ([]ActiveRoute, error)

	// RecentLowRatingReports returns hazard reports created in (since, until]
	// with a safety rating below the hazard threshold, restricted to
	// locations whose navigation context is still open.
	RecentLowRatingReports(ctx context.Context, since, until time.Time) ([]HazardReport, error)

	// HasRecentNotification reports whether a notification of the given type
	// was logged for the rider-route pair at or after since.
	HasRecentNotification(ctx context.Context, userID, routeID, notificationType string, since time.Time) (bool, error)

	// WriteNotificationLog appends a log entry. Returns
	// ErrDuplicateNotification when the idempotency key already exists.
	WriteNotificationLog(ctx context.Context, entry NotificationLogEntry) error
}
