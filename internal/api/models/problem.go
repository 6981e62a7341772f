package models

import (
	"encoding/json"
	"net/http"
)

// Problem is an RFC 7807 error body. Everything outside the legacy /api/
// surface reports errors this way, as application/problem+json.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
	TraceID  string `json:"traceId"`
}

// Problem type URIs.
const (
	ProblemTypeNotFound         = "https://routes.breatheroute.nl/problems/not-found"
	ProblemTypeMethodNotAllowed = "https://routes.breatheroute.nl/problems/method-not-allowed"
	ProblemTypeTooManyRequests  = "https://routes.breatheroute.nl/problems/too-many-requests"
	ProblemTypeTLSRequired      = "https://routes.breatheroute.nl/problems/tls-required"
	ProblemTypeInternal         = "https://routes.breatheroute.nl/problems/internal-error"
)

// NewProblem builds a problem without detail.
func NewProblem(problemType, title string, status int, traceID string) *Problem {
	return &Problem{
		Type:    problemType,
		Title:   title,
		Status:  status,
		TraceID: traceID,
	}
}

func newProblemWithDetail(problemType, title string, status int, traceID, detail string) *Problem {
	p := NewProblem(problemType, title, status, traceID)
	p.Detail = detail
	return p
}

// Write sends the problem with its status code. The trace ID is echoed as
// X-Request-Id when set.
func (p *Problem) Write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/problem+json")
	if p.TraceID != "" {
		w.Header().Set("X-Request-Id", p.TraceID)
	}
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// NewNotFound is the 404 problem for unknown routes.
func NewNotFound(traceID, detail string) *Problem {
	return newProblemWithDetail(ProblemTypeNotFound, "Not found", http.StatusNotFound, traceID, detail)
}

// NewMethodNotAllowed is the 405 problem for a known path with the wrong method.
func NewMethodNotAllowed(traceID, detail string) *Problem {
	return newProblemWithDetail(ProblemTypeMethodNotAllowed, "Method not allowed", http.StatusMethodNotAllowed, traceID, detail)
}

// NewTooManyRequests is the 429 problem written by the rate limiter.
func NewTooManyRequests(traceID, detail string) *Problem {
	return newProblemWithDetail(ProblemTypeTooManyRequests, "Too many requests", http.StatusTooManyRequests, traceID, detail)
}

// NewInternalError is the 500 problem written after a recovered panic.
func NewInternalError(traceID, detail string) *Problem {
	return newProblemWithDetail(ProblemTypeInternal, "Internal server error", http.StatusInternalServerError, traceID, detail)
}
