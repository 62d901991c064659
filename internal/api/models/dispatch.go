package models

import "github.com/saferoute/saferoute/internal/dispatch"

// DispatchReportRequest is the request body for the internal dispatch
// trigger endpoint. The report mirrors the event payload published by the
// report-insert trigger.
type DispatchReportRequest struct {
	Report dispatch.HazardReport `json:"report" validate:"required"`
}

// DispatchReportResponse is the response body of a dispatch run.
type DispatchReportResponse struct {
	NotificationsSent int    `json:"notificationsSent"`
	Severity          string `json:"severity"`
}
