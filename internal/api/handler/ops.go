package handler

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/breatheroute/routequality/internal/api/models"
	"github.com/breatheroute/routequality/internal/api/response"
	"github.com/breatheroute/routequality/internal/resilience"
)

// StatusSource reports the engine and pipeline state shown on the status endpoint.
type StatusSource interface {
	DefaultEngine() string
	PipelineMetrics() map[string]interface{}
}

// OpsConfig holds configuration for the OpsHandler.
type OpsConfig struct {
	Version   string
	BuildTime string

	// Registry lists the circuit breaker guarded dependencies. Optional.
	Registry *resilience.Registry

	// Status provides engine information. Optional.
	Status StatusSource

	// Now overrides the clock in tests.
	Now func() time.Time
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	registry  *resilience.Registry
	status    StatusSource
	now       func() time.Time
	ready     atomic.Bool
}

// NewOpsHandler creates a new OpsHandler. It starts out ready.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	h := &OpsHandler{
		version:   cfg.Version,
		buildTime: cfg.BuildTime,
		registry:  cfg.Registry,
		status:    cfg.Status,
		now:       now,
	}
	h.ready.Store(true)
	return h
}

// SetReady flips the readiness reported by ReadinessCheck. The server marks
// itself unready while draining on shutdown.
func (h *OpsHandler) SetReady(ready bool) {
	h.ready.Store(ready)
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check.
// Scoring has no hard dependencies, so only shutdown makes the service unready.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if !h.ready.Load() {
		response.JSON(w, r, http.StatusServiceUnavailable, models.Health{
			Status: models.HealthStatusFail,
			Time:   models.Timestamp(h.now()),
		})
		return
	}
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.now()),
	})
}

// SystemStatus handles GET /v1/ops/status - engine and subsystem status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       models.Timestamp(h.now()),
		Subsystems: []models.SubsystemStatus{},
	}

	if h.status != nil {
		status.Engine = h.status.DefaultEngine()
		status.Pipeline = h.status.PipelineMetrics()
	}

	if h.registry != nil {
		for _, health := range h.registry.GetAllHealth() {
			sub := subsystemStatus(health)
			// Breakers only guard optional integrations, so they degrade the service at worst.
			if sub.Status != models.HealthStatusOK {
				status.Status = models.HealthStatusDegraded
			}
			status.Subsystems = append(status.Subsystems, sub)
		}
	}

	response.JSON(w, r, http.StatusOK, status)
}

func subsystemStatus(health *resilience.Health) models.SubsystemStatus {
	sub := models.SubsystemStatus{
		Name:                health.Name,
		Status:              models.HealthStatusOK,
		CircuitState:        health.CircuitState.String(),
		ConsecutiveFailures: health.Counts.ConsecutiveFailures,
	}

	switch {
	case health.IsUnhealthy():
		sub.Status = models.HealthStatusFail
	case health.IsDegraded():
		sub.Status = models.HealthStatusDegraded
	}

	if health.LastSuccessAt != nil {
		sub.LastSuccessAt = models.TimestampPtr(*health.LastSuccessAt)
	}
	if health.LastFailureAt != nil {
		sub.LastFailureAt = models.TimestampPtr(*health.LastFailureAt)
	}
	if health.LastError != "" {
		detail := health.LastError
		sub.Detail = &detail
	}
	return sub
}
