package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/saferoute/saferoute/internal/geo"
	"github.com/saferoute/saferoute/internal/push"
	"github.com/saferoute/saferoute/internal/scoring"
)

// Config holds configuration for the alert dispatcher.
type Config struct {
	// BatchWindow is the lookback span within which co-occurring hazard
	// reports are merged into one notification. Default: 30s.
	BatchWindow time.Duration

	// RateLimitWindow is the span within which a rider-route pair receives
	// at most one notification of a given type. Default: 15m.
	RateLimitWindow time.Duration

	// MaxDistanceMeters is the maximum distance between a report and a route
	// polyline for the report to be relevant. Default: 500.
	MaxDistanceMeters float64

	// Concurrency bounds the parallel per-route evaluation. Default: 4.
	Concurrency int
}

func (c Config) withDefaults() Config {
	if c.BatchWindow <= 0 {
		c.BatchWindow = 30 * time.Second
	}
	if c.RateLimitWindow <= 0 {
		c.RateLimitWindow = 15 * time.Minute
	}
	if c.MaxDistanceMeters <= 0 {
		c.MaxDistanceMeters = 500
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	return c
}

// Plan is the pure outcome of evaluating one hazard report: the
// notifications to deliver and the log entries that must be committed before
// sending. Building a plan performs reads only.
type Plan struct {
	Severity         Severity
	Notifications    []Notification
	RoutesConsidered int
	RoutesSkipped    int
}

// Service dispatches hazard alerts to riders on affected active routes.
type Service struct {
	repo    Repository
	gateway push.Gateway
	config  Config
	logger  zerolog.Logger
}

// NewService creates a new alert dispatch service.
func NewService(repo Repository, gateway push.Gateway, cfg Config, logger zerolog.Logger) *Service {
	return &Service{repo: repo, gateway: gateway, config: cfg.withDefaults(), logger: logger}
}

// DispatchHazardAlerts runs the full dispatch cycle for one newly inserted
// report: plan, commit log entries, send the push batch. Idempotent with
// respect to the rate-limit window; a push gateway failure is reported but
// never rolls back committed log entries, preferring suppression over
// duplicate alerts.
func (s *Service) DispatchHazardAlerts(ctx context.Context, report HazardReport) (*Result, error) {
	plan, err := s.PlanDispatch(ctx, report)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Severity:         plan.Severity,
		RoutesConsidered: plan.RoutesConsidered,
		RoutesSkipped:    plan.RoutesSkipped,
	}
	if len(plan.Notifications) == 0 {
		return result, nil
	}

	// Commit log entries before sending so a retry cannot double-send
	// within the window.
	var messages []push.Message
	for _, n := range plan.Notifications {
		if err := s.repo.WriteNotificationLog(ctx, n.Log); err != nil {
			if errors.Is(err, ErrDuplicateNotification) {
				s.logger.Debug().
					Str("user_id", n.Log.UserID).
					Str("route_id", n.Log.RouteID).
					Msg("notification suppressed by idempotency key")
				continue
			}
			s.logger.Warn().Err(err).
				Str("user_id", n.Log.UserID).
				Str("route_id", n.Log.RouteID).
				Msg("notification log write failed, skipping route")
			continue
		}
		messages = append(messages, push.Message{
			To:       n.Token,
			Title:    n.Title,
			Body:     n.Body,
			Priority: n.Priority,
			Data:     n.Data,
		})
	}

	if len(messages) > 0 {
		if _, err := s.gateway.SendBatch(ctx, messages); err != nil {
			// Log entries stay committed: at-most-once delivery.
			s.logger.Error().Err(err).
				Int("messages", len(messages)).
				Msg("push gateway batch failed")
		}
	}

	result.NotificationsSent = len(messages)

	s.logger.Info().
		Str("report_id", report.ID).
		Str("severity", string(plan.Severity)).
		Int("routes_considered", plan.RoutesConsidered).
		Int("routes_skipped", plan.RoutesSkipped).
		Int("notifications_sent", result.NotificationsSent).
		Msg("hazard dispatch completed")

	return result, nil
}

// PlanDispatch evaluates a hazard report against all active routes without
// side effects. A failure to list active routes fails the run (the trigger
// infrastructure retries); any per-route failure skips only that route.
func (s *Service) PlanDispatch(ctx context.Context, report HazardReport) (*Plan, error) {
	severity, hazardous := ClassifySeverity(report.SafetyRating)
	if !hazardous {
		return &Plan{}, nil
	}

	batch, err := s.repo.RecentLowRatingReports(ctx, report.CreatedAt.Add(-s.config.BatchWindow), report.CreatedAt)
	if err != nil {
		s.logger.Warn().Err(err).Msg("batch window lookup failed, dispatching single report")
		batch = nil
	}
	batch = ensureIncluded(batch, report)

	routes, err := s.repo.ActiveRoutes(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch active routes: %w", err)
	}

	plan := &Plan{Severity: severity, RoutesConsidered: len(routes)}

	type routeOutcome struct {
		notification *Notification
	}
	outcomes := make([]routeOutcome, len(routes))

	indexes := make(chan int, len(routes))
	for i := range routes {
		indexes <- i
	}
	close(indexes)

	var wg sync.WaitGroup
	workers := s.config.Concurrency
	if workers > len(routes) {
		workers = len(routes)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				outcomes[i].notification = s.evaluateRoute(ctx, routes[i], report, severity, batch)
			}
		}()
	}
	wg.Wait()

	for _, o := range outcomes {
		if o.notification != nil {
			plan.Notifications = append(plan.Notifications, *o.notification)
		} else {
			plan.RoutesSkipped++
		}
	}
	return plan, nil
}

// relevantReport pairs a batch report with its distance to a specific route.
type relevantReport struct {
	report   HazardReport
	distance float64
}

// evaluateRoute decides whether one active route should be notified about
// the report and builds the notification if so. Returns nil when the route
// is filtered out; failures are logged and treated as a skip.
func (s *Service) evaluateRoute(ctx context.Context, route ActiveRoute, report HazardReport, severity Severity, batch []HazardReport) *Notification {
	if !route.Preferences.RouteSafetyAlerts {
		return nil
	}
	if len(route.Coordinates) < 2 {
		s.logger.Warn().
			Str("route_id", route.ID).
			Msg("active route has malformed coordinates, skipping")
		return nil
	}

	limited, err := s.repo.HasRecentNotification(ctx, route.UserID, route.ID,
		NotificationTypeRouteSafety, report.CreatedAt.Add(-s.config.RateLimitWindow))
	if err != nil {
		s.logger.Warn().Err(err).
			Str("route_id", route.ID).
			Msg("rate limit lookup failed, skipping route")
		return nil
	}
	if limited {
		return nil
	}

	distance := geo.DistanceToPolyline(report.Location, route.Coordinates)
	if distance > s.config.MaxDistanceMeters {
		return nil
	}

	if !scoring.Relevant(report.Reporter, route.Demographics) {
		return nil
	}

	// Re-filter the batch candidates for this specific route: a report may
	// be relevant to one rider and not another.
	relevant := []relevantReport{{report: report, distance: distance}}
	highest := severity
	for _, other := range batch {
		if other.ID == report.ID {
			continue
		}
		d := geo.DistanceToPolyline(other.Location, route.Coordinates)
		if d > s.config.MaxDistanceMeters {
			continue
		}
		if !scoring.Relevant(other.Reporter, route.Demographics) {
			continue
		}
		relevant = append(relevant, relevantReport{report: other, distance: d})
		if sev, ok := ClassifySeverity(other.SafetyRating); ok && sev.rank() > highest.rank() {
			highest = sev
		}
	}

	return s.buildNotification(route, relevant, highest, report.CreatedAt)
}

// buildNotification renders one push message for the route: a single
// incident message when only one report is relevant, a batched summary
// otherwise. Full detail is carried in the structured payload.
func (s *Service) buildNotification(route ActiveRoute, relevant []relevantReport, severity Severity, at time.Time) *Notification {
	sort.Slice(relevant, func(a, b int) bool {
		return relevant[a].distance < relevant[b].distance
	})
	nearest := relevant[0]

	reportIDs := make([]string, 0, len(relevant))
	details := make([]map[string]any, 0, len(relevant))
	for _, r := range relevant {
		reportIDs = append(reportIDs, r.report.ID)
		details = append(details, map[string]any{
			"reportId":       r.report.ID,
			"locationId":     r.report.LocationID,
			"locationName":   r.report.LocationName,
			"safetyRating":   r.report.SafetyRating,
			"distanceMeters": r.distance,
		})
	}

	title := fmt.Sprintf("%s %s", severity.Emoji(), severity.Label())
	var body string
	if len(relevant) == 1 {
		body = fmt.Sprintf("Low safety reported at %s, %.0f m from your route (rated %.1f/5)",
			nearest.report.LocationName, nearest.distance, nearest.report.SafetyRating)
	} else {
		body = fmt.Sprintf("%d safety reports near your route in the last few moments; nearest at %s (%.0f m)",
			len(relevant), nearest.report.LocationName, nearest.distance)
	}

	return &Notification{
		Token:    route.PushToken,
		Title:    title,
		Body:     body,
		Priority: severity.Priority(),
		Data: map[string]any{
			"type":     NotificationTypeRouteSafety,
			"routeId":  route.ID,
			"severity": string(severity),
			"count":    len(relevant),
			"reports":  details,
		},
		Log: NotificationLogEntry{
			UserID:           route.UserID,
			RouteID:          route.ID,
			NotificationType: NotificationTypeRouteSafety,
			SentAt:           at,
			WindowBucket:     at.Truncate(s.config.RateLimitWindow),
			ReportIDs:        reportIDs,
			Severity:         severity,
		},
	}
}

// ensureIncluded guarantees the triggering report is part of the batch even
// when the lookback query missed it (e.g. replication lag).
func ensureIncluded(batch []HazardReport, report HazardReport) []HazardReport {
	for _, r := range batch {
		if r.ID == report.ID {
			return batch
		}
	}
	return append(batch, report)
}
