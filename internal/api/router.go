// Package api provides the HTTP API for SafeRoute.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/saferoute/saferoute/internal/api/handler"
	"github.com/saferoute/saferoute/internal/api/middleware"
	"github.com/saferoute/saferoute/internal/dispatch"
	"github.com/saferoute/saferoute/internal/provider/resilience"
	"github.com/saferoute/saferoute/internal/scoring"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version         string
	BuildTime       string
	Logger          zerolog.Logger
	ServiceName     string
	Metrics         *middleware.Metrics
	ScoringService  *scoring.Service
	Predictor       *scoring.Predictor
	DispatchService *dispatch.Service
	ServiceToken    middleware.ServiceTokenConfig
	DB              handler.Pinger
	Providers       *resilience.Registry
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Set default service name if not provided
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "saferoute-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)            // Real IP extraction
	r.Use(middleware.SecurityHeaders)      // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS)           // TLS enforcement (enabled via REQUIRE_TLS=true)
	r.Use(middleware.ContentTypeJSON)      // JSON content type

	// Initialize handlers
	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.DB, cfg.Providers)
	scoreHandler := handler.NewScoreHandler(cfg.ScoringService, cfg.Predictor)
	dispatchHandler := handler.NewDispatchHandler(cfg.DispatchService)

	// Service token middleware for internal endpoints
	serviceToken := middleware.ServiceToken(cfg.ServiceToken)

	// Create rate limit middleware for different endpoint categories
	internalRateLimit := middleware.RateLimitByIP(middleware.InternalRateLimit)   // 10 req/min
	expensiveRateLimit := middleware.RateLimitByIP(middleware.ExpensiveRateLimit) // 30 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)   // 100 req/min

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			// Status endpoint is for internal callers
			r.With(serviceToken).Get("/status", opsHandler.SystemStatus)
		})

		// Route scoring - expensive compute, strict rate limiting
		r.With(expensiveRateLimit).Post("/routes:score", scoreHandler.ScoreRoute)

		// Point prediction - standard rate limiting
		r.With(standardRateLimit).Post("/points:predict", scoreHandler.PredictPoint)

		// Internal endpoints (service-to-service)
		r.Route("/internal", func(r chi.Router) {
			r.Use(serviceToken)
			r.Use(internalRateLimit)
			r.Post("/reports:dispatch", dispatchHandler.DispatchReport)
		})
	})

	return r
}
