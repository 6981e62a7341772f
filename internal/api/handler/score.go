// Package handler provides HTTP handlers for the route quality API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/breatheroute/routequality/internal/api/models"
	"github.com/breatheroute/routequality/internal/api/response"
	"github.com/breatheroute/routequality/internal/routescore"
	"github.com/breatheroute/routequality/internal/scoring"
)

// ServiceName is reported by the legacy health endpoint.
const ServiceName = "BreathClean Data Processing Server"

// DefaultMaxBodyBytes caps request bodies of the scoring endpoints.
const DefaultMaxBodyBytes = 1 << 20

// Legacy response messages.
const (
	msgInvalidJSON     = "Invalid JSON in request body"
	msgNoRoutes        = "No routes provided. 'routes' array is required."
	msgRoutesNotArray  = "'routes' must be an array."
	msgBodyRequired    = "Request body is required."
	msgBodyNotObject   = "Request body must be a JSON object."
	msgBodyTooLarge    = "Request body too large."
	msgMaxRoutes       = "Maximum %d routes allowed per batch."
	msgRouteNotObject  = "Route at index %d must be an object."
	msgRouteInvalid    = "Route at index %d is invalid: %s"
	msgInvalidRoute    = "Invalid route: %s"
	msgInternalFailure = "Internal server error: %s"
)

// ScoreService is the scoring surface the handlers depend on.
type ScoreService interface {
	ComputeRoute(ctx context.Context, in scoring.RouteInput) scoring.RouteScore
	ComputeBatch(ctx context.Context, routes []scoring.RouteInput, opts routescore.BatchOptions) (*scoring.BatchResult, error)
	Settings() routescore.Settings
	DefaultEngine() string
}

// ScoreHandler serves the legacy /api/ scoring endpoints.
type ScoreHandler struct {
	service      ScoreService
	maxBodyBytes int64
}

// NewScoreHandler creates a new ScoreHandler.
func NewScoreHandler(service ScoreService) *ScoreHandler {
	return &ScoreHandler{
		service:      service,
		maxBodyBytes: DefaultMaxBodyBytes,
	}
}

// ComputeScores handles POST /api/compute-scores/ - score a batch of routes.
func (h *ScoreHandler) ComputeScores(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}

	var req models.ComputeScoresRequest
	if err := json.Unmarshal(body, &req); err != nil {
		response.Legacy(w, r, http.StatusBadRequest, msgInvalidJSON)
		return
	}

	if models.IsEmptyJSON(req.Routes) {
		response.Legacy(w, r, http.StatusBadRequest, msgNoRoutes)
		return
	}
	if !models.IsJSONArray(req.Routes) {
		response.Legacy(w, r, http.StatusBadRequest, msgRoutesNotArray)
		return
	}

	var rawRoutes []json.RawMessage
	if err := json.Unmarshal(req.Routes, &rawRoutes); err != nil {
		response.Legacy(w, r, http.StatusBadRequest, msgRoutesNotArray)
		return
	}

	if limit := h.service.Settings().MaxBatchRoutes; limit > 0 && len(rawRoutes) > limit {
		response.Legacy(w, r, http.StatusBadRequest, fmt.Sprintf(msgMaxRoutes, limit))
		return
	}

	routes := make([]scoring.RouteInput, 0, len(rawRoutes))
	for i, raw := range rawRoutes {
		if !models.IsJSONObject(raw) {
			response.Legacy(w, r, http.StatusBadRequest, fmt.Sprintf(msgRouteNotObject, i))
			return
		}
		in, err := models.DecodeRoute(raw)
		if err != nil {
			response.Legacy(w, r, http.StatusBadRequest, fmt.Sprintf(msgRouteInvalid, i, models.ValidationMessage(err)))
			return
		}
		routes = append(routes, in)
	}

	result, err := h.service.ComputeBatch(r.Context(), routes, routescore.BatchOptions{
		UsePipeline: req.PipelineFlag(),
	})
	if err != nil {
		h.batchError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.NewBatchScoresResponse(result))
}

func (h *ScoreHandler) batchError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, scoring.ErrNoRoutes):
		response.Legacy(w, r, http.StatusBadRequest, msgNoRoutes)
	case errors.Is(err, routescore.ErrBatchTooLarge):
		response.Legacy(w, r, http.StatusBadRequest, fmt.Sprintf(msgMaxRoutes, h.service.Settings().MaxBatchRoutes))
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("batch scoring failed")
		response.Legacy(w, r, http.StatusInternalServerError, fmt.Sprintf(msgInternalFailure, err))
	}
}

// ComputeScore handles POST /api/compute-score/ - score a single route.
func (h *ScoreHandler) ComputeScore(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}

	if len(body) > 0 && !json.Valid(body) {
		response.Legacy(w, r, http.StatusBadRequest, msgInvalidJSON)
		return
	}
	if models.IsEmptyJSON(body) {
		response.Legacy(w, r, http.StatusBadRequest, msgBodyRequired)
		return
	}
	if !models.IsJSONObject(body) {
		response.Legacy(w, r, http.StatusBadRequest, msgBodyNotObject)
		return
	}

	in, err := models.DecodeRoute(body)
	if err != nil {
		response.Legacy(w, r, http.StatusBadRequest, fmt.Sprintf(msgInvalidRoute, models.ValidationMessage(err)))
		return
	}

	score := h.service.ComputeRoute(r.Context(), in)

	response.JSON(w, r, http.StatusOK, models.SingleScoreResponse{
		Success: true,
		Route:   models.NewRouteScoreResponse(score),
	})
}

// Health handles GET /api/health/ - legacy service health.
func (h *ScoreHandler) Health(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.LegacyHealth{
		Status:  "healthy",
		Service: ServiceName,
		Engine:  h.service.DefaultEngine(),
	})
}

// HealthCheck handles GET /healthCheck - plain text liveness check.
func (h *ScoreHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.Text(w, r, http.StatusOK, "Hello World!")
}

// readBody reads the whole request body within the size cap. On failure it
// writes the error response and returns false.
func (h *ScoreHandler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Legacy(w, r, http.StatusRequestEntityTooLarge, msgBodyTooLarge)
			return nil, false
		}
		response.Legacy(w, r, http.StatusBadRequest, msgInvalidJSON)
		return nil, false
	}
	return body, true
}
