package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// InMemoryRepository is an in-memory implementation of Repository for
// testing. The idempotency key is enforced the same way the Postgres
// implementation enforces it, via uniqueness on
// (user, route, type, window bucket).
type InMemoryRepository struct {
	mu      sync.Mutex
	routes  []ActiveRoute
	reports []HazardReport
	log     []NotificationLogEntry
	keys    map[string]struct{}
}

// NewInMemoryRepository creates a new empty in-memory dispatch repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{keys: make(map[string]struct{})}
}

// AddActiveRoute registers an active route.
func (r *InMemoryRepository) AddActiveRoute(route ActiveRoute) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = append(r.routes, route)
}

// AddReport registers a hazard report for batch-window lookups.
func (r *InMemoryRepository) AddReport(report HazardReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, report)
}

// Log returns a copy of the written notification log.
func (r *InMemoryRepository) Log() []NotificationLogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]NotificationLogEntry, len(r.log))
	copy(out, r.log)
	return out
}

// ActiveRoutes returns every registered active route.
func (r *InMemoryRepository) ActiveRoutes(_ context.Context) ([]ActiveRoute, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ActiveRoute, len(r.routes))
	copy(out, r.routes)
	return out, nil
}

// RecentLowRatingReports returns reports in (since, until] rated below the
// hazard threshold.
func (r *InMemoryRepository) RecentLowRatingReports(_ context.Context, since, until time.Time) ([]HazardReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []HazardReport
	for _, report := range r.reports {
		if report.SafetyRating >= HazardRatingThreshold {
			continue
		}
		if report.CreatedAt.After(since) && !report.CreatedAt.After(until) {
			out = append(out, report)
		}
	}
	return out, nil
}

// HasRecentNotification reports whether a matching log entry exists at or
// after since.
func (r *InMemoryRepository) HasRecentNotification(_ context.Context, userID, routeID, notificationType string, since time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, entry := range r.log {
		if entry.UserID == userID && entry.RouteID == routeID &&
			entry.NotificationType == notificationType && !entry.SentAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

// WriteNotificationLog appends an entry, enforcing the idempotency key.
func (r *InMemoryRepository) WriteNotificationLog(_ context.Context, entry NotificationLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fmt.Sprintf("%s|%s|%s|%d", entry.UserID, entry.RouteID, entry.NotificationType, entry.WindowBucket.UnixNano())
	if _, exists := r.keys[key]; exists {
		return ErrDuplicateNotification
	}
	r.keys[key] = struct{}{}
	r.log = append(r.log, entry)
	return nil
}

// Ensure interface conformance.
var _ Repository = (*InMemoryRepository)(nil)
