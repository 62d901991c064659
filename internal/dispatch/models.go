// Package dispatch reacts to newly inserted hazard reports: it finds active
// routes that are geographically and demographically relevant, batches
// co-occurring reports, rate limits per rider-route pair and emits push
// notifications.
package dispatch

import (
	"time"

	"github.com/saferoute/saferoute/internal/geo"
	"github.com/saferoute/saferoute/internal/scoring"
)

// HazardRatingThreshold is the safety rating below which a report triggers
// dispatch.
const HazardRatingThreshold = 3.0

// NotificationTypeRouteSafety tags route safety alert log entries.
const NotificationTypeRouteSafety = "route_safety_alert"

// Severity classifies a hazard report by its safety rating.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityWarning  Severity = "WARNING"
	SeverityNotice   Severity = "NOTICE"
)

// severityInfo carries the presentation attributes of a severity band.
type severityInfo struct {
	Emoji    string
	Label    string
	Priority string
}

var severityTable = map[Severity]severityInfo{
	SeverityCritical: {Emoji: "🚨", Label: "Critical safety alert", Priority: "high"},
	SeverityWarning:  {Emoji: "⚠️", Label: "Safety warning", Priority: "high"},
	SeverityNotice:   {Emoji: "📢", Label: "Safety notice", Priority: "default"},
}

// Emoji returns the emoji shown in push titles for this severity.
func (s Severity) Emoji() string { return severityTable[s].Emoji }

// Label returns the human-readable label for this severity.
func (s Severity) Label() string { return severityTable[s].Label }

// Priority returns the push delivery priority for this severity.
func (s Severity) Priority() string { return severityTable[s].Priority }

// rank orders severities for picking the highest in a batch.
func (s Severity) rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityWarning:
		return 2
	case SeverityNotice:
		return 1
	default:
		return 0
	}
}

// ClassifySeverity maps a safety rating to a severity band. The second
// return value is false when the rating is not hazardous at all.
func ClassifySeverity(safetyRating float64) (Severity, bool) {
	switch {
	case safetyRating < 2.0:
		return SeverityCritical, true
	case safetyRating < 2.5:
		return SeverityWarning, true
	case safetyRating < HazardRatingThreshold:
		return SeverityNotice, true
	default:
		return "", false
	}
}

// HazardReport is a newly submitted safety report. Reports with a safety
// rating below HazardRatingThreshold trigger alert dispatch.
type HazardReport struct {
	ID           string                   `json:"id"`
	LocationID   string                   `json:"locationId"`
	LocationName string                   `json:"locationName"`
	SafetyRating float64                  `json:"safetyRating"`
	ReporterID   string                   `json:"reporterId"`
	Reporter     scoring.UserDemographics `json:"reporterDemographics"`
	Location     geo.Coordinate           `json:"location"`
	CreatedAt    time.Time                `json:"createdAt"`
}

// NotificationPreferences holds the rider's opt-in flags relevant to this
// core. Preferences management itself is an external surface.
type NotificationPreferences struct {
	RouteSafetyAlerts bool `json:"routeSafetyAlerts"`
}

// ActiveRoute is a currently navigating rider's route, read-only input to
// dispatch. Riders arrive pre-filtered to those holding a push token.
type ActiveRoute struct {
	ID            string
	UserID        string
	Coordinates   []geo.Coordinate
	Demographics  scoring.UserDemographics
	PushToken     string
	Preferences   NotificationPreferences
	NotifiedSince time.Time
}

// NotificationLogEntry is the append-only record enforcing the per
// rider-route rate limit. WindowBucket is the idempotency key component: the
// storage layer holds a unique constraint on
// (user_id, route_id, notification_type, window_bucket) so replayed trigger
// delivery cannot double-send.
type NotificationLogEntry struct {
	UserID           string
	RouteID          string
	NotificationType string
	SentAt           time.Time
	WindowBucket     time.Time
	ReportIDs        []string
	Severity         Severity
}

// Notification is one push message planned for a rider, paired with the log
// entry that must be committed before or atomically with sending.
type Notification struct {
	Token    string
	Title    string
	Body     string
	Priority string
	Data     map[string]any
	Log      NotificationLogEntry
}

// Result summarizes one dispatch run.
type Result struct {
	NotificationsSent int      `json:"notificationsSent"`
	Severity          Severity `json:"severity"`
	RoutesConsidered  int      `json:"-"`
	RoutesSkipped     int      `json:"-"`
}
