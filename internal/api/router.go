// Package api provides the HTTP API of the route quality service.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/breatheroute/routequality/internal/api/handler"
	"github.com/breatheroute/routequality/internal/api/middleware"
	"github.com/breatheroute/routequality/internal/api/models"
	"github.com/breatheroute/routequality/internal/api/response"
	"github.com/breatheroute/routequality/internal/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string

	// Service computes the scores. Required.
	Service ScoreService

	// Ops serves /v1/ops. Created from the other fields when nil.
	Ops *handler.OpsHandler

	// Registry lists circuit breakers on the status endpoint. Optional.
	Registry *resilience.Registry

	// Metrics records HTTP metrics. Optional.
	Metrics *middleware.Metrics

	// Gatherer backs /metrics. Defaults to the Prometheus default registry.
	Gatherer prometheus.Gatherer

	// RateLimit applies per client IP to the scoring endpoints.
	RateLimit middleware.RateLimitConfig

	// RequireTLS rejects requests forwarded over plain HTTP.
	RequireTLS bool
}

// ScoreService is everything the router needs from the scoring layer.
type ScoreService interface {
	handler.ScoreService
	handler.StatusSource
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "routequality-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(middleware.ContentTypeJSON)

	r.NotFound(notFound)
	r.MethodNotAllowed(methodNotAllowed)

	scoreHandler := handler.NewScoreHandler(cfg.Service)
	opsHandler := cfg.Ops
	if opsHandler == nil {
		opsHandler = handler.NewOpsHandler(handler.OpsConfig{
			Version:   cfg.Version,
			BuildTime: cfg.BuildTime,
			Registry:  cfg.Registry,
			Status:    cfg.Service,
		})
	}

	metricsHandler := promhttp.Handler()
	if cfg.Gatherer != nil {
		metricsHandler = promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})
	}
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	// Legacy surface kept for existing clients
	r.Get("/healthCheck", scoreHandler.HealthCheck)
	r.Get("/api/health", scoreHandler.Health)
	r.Get("/api/health/", scoreHandler.Health)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(cfg.RateLimit))
		r.Post("/api/compute-scores", scoreHandler.ComputeScores)
		r.Post("/api/compute-scores/", scoreHandler.ComputeScores)
		r.Post("/api/compute-score", scoreHandler.ComputeScore)
		r.Post("/api/compute-score/", scoreHandler.ComputeScore)
	})

	r.Route("/v1/ops", func(r chi.Router) {
		r.Get("/health", opsHandler.HealthCheck)
		r.Get("/ready", opsHandler.ReadinessCheck)
		r.Get("/status", opsHandler.SystemStatus)
	})

	return r
}

func notFound(w http.ResponseWriter, r *http.Request) {
	if models.IsLegacyPath(r.URL.Path) {
		response.Legacy(w, r, http.StatusNotFound, "Not found.")
		return
	}
	response.NotFound(w, r, "no route matches "+r.URL.Path)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	if models.IsLegacyPath(r.URL.Path) {
		response.Legacy(w, r, http.StatusMethodNotAllowed, "Method "+r.Method+" not allowed.")
		return
	}
	response.MethodNotAllowed(w, r, "method "+r.Method+" is not allowed on "+r.URL.Path)
}
