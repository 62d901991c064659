package dispatch_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saferoute/saferoute/internal/dispatch"
	"github.com/saferoute/saferoute/internal/geo"
	"github.com/saferoute/saferoute/internal/push"
	"github.com/saferoute/saferoute/internal/scoring"
)

var reportTime = time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

type fakeGateway struct {
	mu      sync.Mutex
	batches [][]push.Message
	err     error
}

func (g *fakeGateway) SendBatch(_ context.Context, messages []push.Message) ([]push.Receipt, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	g.batches = append(g.batches, messages)
	receipts := make([]push.Receipt, len(messages))
	for i := range receipts {
		receipts[i] = push.Receipt{Status: push.DeliveryOK}
	}
	return receipts, nil
}

func (g *fakeGateway) sent() []push.Message {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []push.Message
	for _, batch := range g.batches {
		out = append(out, batch...)
	}
	return out
}

func newTestService(repo dispatch.Repository, gateway push.Gateway) *dispatch.Service {
	return dispatch.NewService(repo, gateway, dispatch.Config{}, zerolog.Nop())
}

func testRoute(id, userID string) dispatch.ActiveRoute {
	return dispatch.ActiveRoute{
		ID:     id,
		UserID: userID,
		Coordinates: []geo.Coordinate{
			{Lat: 0, Lon: 0},
			{Lat: 0, Lon: 0.01},
		},
		PushToken:   "ExponentPushToken[" + userID + "]",
		Preferences: dispatch.NotificationPreferences{RouteSafetyAlerts: true},
	}
}

func testReport(id string, rating float64, at time.Time) dispatch.HazardReport {
	return dispatch.HazardReport{
		ID:           id,
		LocationID:   "loc-" + id,
		LocationName: "Corner Store",
		SafetyRating: rating,
		ReporterID:   "reporter-1",
		Location:     geo.Coordinate{Lat: 0, Lon: 0.005},
		CreatedAt:    at,
	}
}

func TestClassifySeverity(t *testing.T) {
	tests := []struct {
		rating    float64
		severity  dispatch.Severity
		hazardous bool
	}{
		{1.0, dispatch.SeverityCritical, true},
		{1.9, dispatch.SeverityCritical, true},
		{2.0, dispatch.SeverityWarning, true},
		{2.4, dispatch.SeverityWarning, true},
		{2.5, dispatch.SeverityNotice, true},
		{2.9, dispatch.SeverityNotice, true},
		{3.0, dispatch.Severity(""), false},
		{4.5, dispatch.Severity(""), false},
	}

	for _, tt := range tests {
		severity, hazardous := dispatch.ClassifySeverity(tt.rating)
		assert.Equal(t, tt.severity, severity, "rating %.1f", tt.rating)
		assert.Equal(t, tt.hazardous, hazardous, "rating %.1f", tt.rating)
	}
}

func TestDispatch_NonHazardousReportIsIgnored(t *testing.T) {
	repo := dispatch.NewInMemoryRepository()
	repo.AddActiveRoute(testRoute("route-1", "user-1"))
	gateway := &fakeGateway{}
	svc := newTestService(repo, gateway)

	result, err := svc.DispatchHazardAlerts(context.Background(), testReport("rep-1", 4.2, reportTime))
	require.NoError(t, err)

	assert.Equal(t, 0, result.NotificationsSent)
	assert.Empty(t, gateway.sent())
	assert.Empty(t, repo.Log())
}

func TestDispatch_SendsAlertToNearbyRoute(t *testing.T) {
	repo := dispatch.NewInMemoryRepository()
	repo.AddActiveRoute(testRoute("route-1", "user-1"))
	gateway := &fakeGateway{}
	svc := newTestService(repo, gateway)

	report := testReport("rep-1", 1.5, reportTime)
	result, err := svc.DispatchHazardAlerts(context.Background(), report)
	require.NoError(t, err)

	assert.Equal(t, 1, result.NotificationsSent)
	assert.Equal(t, dispatch.SeverityCritical, result.Severity)

	messages := gateway.sent()
	require.Len(t, messages, 1)
	assert.Equal(t, "ExponentPushToken[user-1]", messages[0].To)
	assert.Equal(t, "🚨 Critical safety alert", messages[0].Title)
	assert.Equal(t, "Low safety reported at Corner Store, 0 m from your route (rated 1.5/5)", messages[0].Body)
	assert.Equal(t, "high", messages[0].Priority)
	assert.Equal(t, dispatch.NotificationTypeRouteSafety, messages[0].Data["type"])

	entries := repo.Log()
	require.Len(t, entries, 1)
	assert.Equal(t, "user-1", entries[0].UserID)
	assert.Equal(t, "route-1", entries[0].RouteID)
	assert.Equal(t, dispatch.NotificationTypeRouteSafety, entries[0].NotificationType)
	assert.Equal(t, []string{"rep-1"}, entries[0].ReportIDs)
	assert.Equal(t, dispatch.SeverityCritical, entries[0].Severity)
	assert.Equal(t, reportTime, entries[0].SentAt)
}

func TestDispatch_RateLimitsPerRiderRoutePair(t *testing.T) {
	repo := dispatch.NewInMemoryRepository()
	repo.AddActiveRoute(testRoute("route-1", "user-1"))
	gateway := &fakeGateway{}
	svc := newTestService(repo, gateway)

	first, err := svc.DispatchHazardAlerts(context.Background(), testReport("rep-1", 1.5, reportTime))
	require.NoError(t, err)
	assert.Equal(t, 1, first.NotificationsSent)

	// A second hazard five minutes later hits the 15 minute window.
	second, err := svc.DispatchHazardAlerts(context.Background(), testReport("rep-2", 1.2, reportTime.Add(5*time.Minute)))
	require.NoError(t, err)
	assert.Equal(t, 0, second.NotificationsSent)
	assert.Len(t, repo.Log(), 1)

	// Past the window the same pair can be alerted again.
	third, err := svc.DispatchHazardAlerts(context.Background(), testReport("rep-3", 1.2, reportTime.Add(20*time.Minute)))
	require.NoError(t, err)
	assert.Equal(t, 1, third.NotificationsSent)
}

func TestDispatch_SkipsDistantRoute(t *testing.T) {
	repo := dispatch.NewInMemoryRepository()
	farRoute := testRoute("route-1", "user-1")
	farRoute.Coordinates = []geo.Coordinate{
		{Lat: 1, Lon: 0},
		{Lat: 1, Lon: 0.01},
	}
	repo.AddActiveRoute(farRoute)
	gateway := &fakeGateway{}
	svc := newTestService(repo, gateway)

	result, err := svc.DispatchHazardAlerts(context.Background(), testReport("rep-1", 1.5, reportTime))
	require.NoError(t, err)

	assert.Equal(t, 0, result.NotificationsSent)
	assert.Equal(t, 1, result.RoutesConsidered)
	assert.Equal(t, 1, result.RoutesSkipped)
}

func TestDispatch_HonorsNotificationPreferences(t *testing.T) {
	repo := dispatch.NewInMemoryRepository()
	optedOut := testRoute("route-1", "user-1")
	optedOut.Preferences.RouteSafetyAlerts = false
	repo.AddActiveRoute(optedOut)
	gateway := &fakeGateway{}
	svc := newTestService(repo, gateway)

	result, err := svc.DispatchHazardAlerts(context.Background(), testReport("rep-1", 1.5, reportTime))
	require.NoError(t, err)

	assert.Equal(t, 0, result.NotificationsSent)
	assert.Empty(t, repo.Log())
}

func TestDispatch_SkipsMalformedRoute(t *testing.T) {
	repo := dispatch.NewInMemoryRepository()
	malformed := testRoute("route-1", "user-1")
	malformed.Coordinates = []geo.Coordinate{{Lat: 0, Lon: 0}}
	repo.AddActiveRoute(malformed)
	repo.AddActiveRoute(testRoute("route-2", "user-2"))
	gateway := &fakeGateway{}
	svc := newTestService(repo, gateway)

	result, err := svc.DispatchHazardAlerts(context.Background(), testReport("rep-1", 1.5, reportTime))
	require.NoError(t, err)

	// The malformed route is skipped; the healthy one is still alerted.
	assert.Equal(t, 1, result.NotificationsSent)
	assert.Equal(t, 1, result.RoutesSkipped)
}

func TestDispatch_FiltersByDemographicRelevance(t *testing.T) {
	reporter := scoring.UserDemographics{
		Gender:           "woman",
		RaceEthnicity:    []string{"black"},
		LGBTQStatus:      boolPtr(true),
		Religion:         "muslim",
		DisabilityStatus: []string{"mobility"},
	}

	disjointRider := testRoute("route-1", "user-1")
	disjointRider.Demographics = scoring.UserDemographics{
		Gender:           "man",
		RaceEthnicity:    []string{"white"},
		LGBTQStatus:      boolPtr(false),
		Religion:         "christian",
		DisabilityStatus: []string{"hearing"},
	}

	sharedGenderRider := testRoute("route-2", "user-2")
	sharedGenderRider.Demographics = scoring.UserDemographics{
		Gender:           "woman",
		RaceEthnicity:    []string{"asian"},
		LGBTQStatus:      boolPtr(false),
		Religion:         "buddhist",
		DisabilityStatus: []string{"none"},
	}

	repo := dispatch.NewInMemoryRepository()
	repo.AddActiveRoute(disjointRider)
	repo.AddActiveRoute(sharedGenderRider)
	gateway := &fakeGateway{}
	svc := newTestService(repo, gateway)

	report := testReport("rep-1", 1.5, reportTime)
	report.Reporter = reporter

	result, err := svc.DispatchHazardAlerts(context.Background(), report)
	require.NoError(t, err)

	assert.Equal(t, 1, result.NotificationsSent)
	messages := gateway.sent()
	require.Len(t, messages, 1)
	assert.Equal(t, "ExponentPushToken[user-2]", messages[0].To)
}

func TestDispatch_BatchesCoOccurringReports(t *testing.T) {
	repo := dispatch.NewInMemoryRepository()
	repo.AddActiveRoute(testRoute("route-1", "user-1"))

	// Two earlier reports inside the 30s batch window, one of them critical.
	repo.AddReport(testReport("rep-1", 1.5, reportTime.Add(-20*time.Second)))
	repo.AddReport(testReport("rep-2", 2.8, reportTime.Add(-10*time.Second)))

	gateway := &fakeGateway{}
	svc := newTestService(repo, gateway)

	result, err := svc.DispatchHazardAlerts(context.Background(), testReport("rep-3", 2.7, reportTime))
	require.NoError(t, err)

	assert.Equal(t, 1, result.NotificationsSent)

	messages := gateway.sent()
	require.Len(t, messages, 1)

	// Batched body and the highest severity in the batch.
	assert.Equal(t, "🚨 Critical safety alert", messages[0].Title)
	assert.Contains(t, messages[0].Body, "3 safety reports near your route")
	assert.Equal(t, 3, messages[0].Data["count"])

	entries := repo.Log()
	require.Len(t, entries, 1)
	assert.Len(t, entries[0].ReportIDs, 3)
	assert.Equal(t, dispatch.SeverityCritical, entries[0].Severity)
}

func TestDispatch_GatewayFailureKeepsLogEntries(t *testing.T) {
	repo := dispatch.NewInMemoryRepository()
	repo.AddActiveRoute(testRoute("route-1", "user-1"))
	gateway := &fakeGateway{err: errors.New("gateway unreachable")}
	svc := newTestService(repo, gateway)

	result, err := svc.DispatchHazardAlerts(context.Background(), testReport("rep-1", 1.5, reportTime))
	require.NoError(t, err)

	// The log write committed before the send; delivery is at-most-once.
	assert.Equal(t, 1, result.NotificationsSent)
	assert.Len(t, repo.Log(), 1)
}

func TestWriteNotificationLog_IdempotencyKey(t *testing.T) {
	repo := dispatch.NewInMemoryRepository()

	entry := dispatch.NotificationLogEntry{
		UserID:           "user-1",
		RouteID:          "route-1",
		NotificationType: dispatch.NotificationTypeRouteSafety,
		SentAt:           reportTime,
		WindowBucket:     reportTime.Truncate(15 * time.Minute),
		ReportIDs:        []string{"rep-1"},
		Severity:         dispatch.SeverityCritical,
	}

	require.NoError(t, repo.WriteNotificationLog(context.Background(), entry))

	err := repo.WriteNotificationLog(context.Background(), entry)
	assert.ErrorIs(t, err, dispatch.ErrDuplicateNotification)
}

func boolPtr(b bool) *bool { return &b }

func TestPlanDispatch_IsReadOnly(t *testing.T) {
	repo := dispatch.NewInMemoryRepository()
	repo.AddActiveRoute(testRoute("route-1", "user-1"))
	svc := newTestService(repo, &fakeGateway{})

	plan, err := svc.PlanDispatch(context.Background(), testReport("rep-1", 1.5, reportTime))
	require.NoError(t, err)

	require.Len(t, plan.Notifications, 1)
	assert.Empty(t, repo.Log(), "planning must not write log entries")
}
