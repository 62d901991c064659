package handler

import (
	"encoding/json"
	"net/http"

	"github.com/saferoute/saferoute/internal/api/models"
	"github.com/saferoute/saferoute/internal/api/response"
	"github.com/saferoute/saferoute/internal/dispatch"
)

// DispatchHandler handles the internal dispatch trigger endpoint. In normal
// operation dispatch runs off the Pub/Sub trigger; this endpoint exists for
// backfills and manual replays by internal services.
type DispatchHandler struct {
	service *dispatch.Service
}

// NewDispatchHandler creates a new DispatchHandler.
func NewDispatchHandler(service *dispatch.Service) *DispatchHandler {
	return &DispatchHandler{service: service}
}

// DispatchReport handles POST /v1/internal/reports:dispatch - run alert
// dispatch for one hazard report.
func (h *DispatchHandler) DispatchReport(w http.ResponseWriter, r *http.Request) {
	var input models.DispatchReportRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	if fieldErrors := validateDispatchRequest(input); len(fieldErrors) > 0 {
		response.BadRequest(w, r, "request validation failed", fieldErrors)
		return
	}

	result, err := h.service.DispatchHazardAlerts(r.Context(), input.Report)
	if err != nil {
		response.InternalError(w, r, "alert dispatch failed")
		return
	}

	response.JSON(w, r, http.StatusOK, models.DispatchReportResponse{
		NotificationsSent: result.NotificationsSent,
		Severity:          string(result.Severity),
	})
}

func validateDispatchRequest(input models.DispatchReportRequest) []models.FieldError {
	var fieldErrors []models.FieldError
	if input.Report.ID == "" {
		fieldErrors = append(fieldErrors, models.FieldError{
			Field:   "report.id",
			Message: "report id is required",
			Code:    "required",
		})
	}
	if input.Report.CreatedAt.IsZero() {
		fieldErrors = append(fieldErrors, models.FieldError{
			Field:   "report.createdAt",
			Message: "report createdAt is required",
			Code:    "required",
		})
	}
	if input.Report.SafetyRating < 1.0 || input.Report.SafetyRating > 5.0 {
		fieldErrors = append(fieldErrors, models.FieldError{
			Field:   "report.safetyRating",
			Message: "safetyRating must be between 1 and 5",
			Code:    "range",
		})
	}
	return fieldErrors
}
