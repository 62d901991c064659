package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/saferoute/saferoute/internal/api/models"
	"github.com/saferoute/saferoute/internal/api/response"
	"github.com/saferoute/saferoute/internal/provider/resilience"
)

// Pinger checks connectivity of a backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	db        Pinger
	providers *resilience.Registry
}

// NewOpsHandler creates a new OpsHandler. db may be nil when the service runs
// without a database (in-memory mode); providers may be nil to skip provider
// health reporting.
func NewOpsHandler(version, buildTime string, db Pinger, providers *resilience.Registry) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		db:        db,
		providers: providers,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check. Fails when the
// database is unreachable.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	}

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			health.Status = models.HealthStatusFail
			health.Details = map[string]interface{}{"database": err.Error()}
			response.JSON(w, r, http.StatusServiceUnavailable, health)
			return
		}
	}

	response.JSON(w, r, http.StatusOK, health)
}

// SystemStatus handles GET /v1/ops/status - subsystem and provider status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	now := models.Timestamp(time.Now())
	status := models.SystemStatus{
		Status: models.HealthStatusOK,
		Time:   now,
	}

	dbStatus := models.SubsystemStatus{Name: "postgres", Status: models.HealthStatusOK}
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			detail := err.Error()
			dbStatus.Status = models.HealthStatusFail
			dbStatus.Detail = &detail
			status.Status = models.HealthStatusDegraded
		}
	}
	status.Subsystems = append(status.Subsystems, dbStatus)

	if h.providers != nil {
		for _, health := range h.providers.GetAllHealth() {
			provider := models.ProviderStatus{
				Provider: health.Name,
				Status:   models.HealthStatusOK,
			}
			switch {
			case health.IsUnhealthy():
				provider.Status = models.HealthStatusFail
				status.Status = models.HealthStatusDegraded
			case health.IsDegraded():
				provider.Status = models.HealthStatusDegraded
			}
			if health.LastSuccessAt != nil {
				ts := models.Timestamp(*health.LastSuccessAt)
				provider.LastSuccessAt = &ts
			}
			if health.LastFailureAt != nil {
				ts := models.Timestamp(*health.LastFailureAt)
				provider.LastFailureAt = &ts
			}
			if health.LastError != "" {
				msg := health.LastError
				provider.Message = &msg
			}
			status.Providers = append(status.Providers, provider)
		}
	}

	response.JSON(w, r, http.StatusOK, status)
}
