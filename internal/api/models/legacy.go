package models

import (
	"encoding/json"
	"net/http"
	"strings"
)

// LegacyPrefix is the path prefix of the endpoints that keep the
// {"success":..., "message":...} envelope existing clients depend on.
const LegacyPrefix = "/api/"

// IsLegacyPath reports whether path belongs to the legacy /api/ surface.
func IsLegacyPath(path string) bool {
	return strings.HasPrefix(path, LegacyPrefix)
}

// LegacyError is the error body of the legacy /api/ surface.
type LegacyError struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// NewLegacyError creates a failed envelope carrying message.
func NewLegacyError(message string) *LegacyError {
	return &LegacyError{Success: false, Message: message}
}

// Write writes the envelope as JSON with the given status code.
func (e *LegacyError) Write(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(e)
}

// LegacyHealth is returned by GET /api/health/.
type LegacyHealth struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Engine  string `json:"engine"`
}
