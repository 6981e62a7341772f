// Package events publishes notifications about computed route scores to a
// message broker.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/breatheroute/routequality/internal/scoring"
)

// TypeScoresComputed is the event type emitted after a batch was scored.
const TypeScoresComputed = "route_scores.computed"

// Event is the message body published after a batch computation.
type Event struct {
	ID           string     `json:"id"`
	Type         string     `json:"type"`
	OccurredAt   time.Time  `json:"occurredAt"`
	Engine       string     `json:"engine"`
	TotalRoutes  int        `json:"totalRoutes"`
	AverageScore float64    `json:"averageScore"`
	BestRoute    EventBest  `json:"bestRoute"`
	ScoreRange   EventRange `json:"scoreRange"`
}

// EventBest identifies the winning route of the batch.
type EventBest struct {
	Index   int     `json:"index"`
	RouteID *string `json:"routeId"`
	Score   float64 `json:"score"`
}

// EventRange is the span of overall scores in the batch.
type EventRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// NewScoresComputed builds the event describing a batch result.
func NewScoresComputed(result *scoring.BatchResult) Event {
	return Event{
		ID:           uuid.New().String(),
		Type:         TypeScoresComputed,
		OccurredAt:   result.ComputedAt,
		Engine:       result.Engine,
		TotalRoutes:  result.Summary.TotalRoutes,
		AverageScore: result.Summary.AverageScore,
		BestRoute: EventBest{
			Index:   result.BestRoute.Index,
			RouteID: result.BestRoute.RouteID,
			Score:   result.BestRoute.Score,
		},
		ScoreRange: EventRange{
			Min: result.Summary.ScoreRange.Min,
			Max: result.Summary.ScoreRange.Max,
		},
	}
}

// Encode returns the JSON wire form of the event.
func (e Event) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encoding event %s: %w", e.ID, err)
	}
	return data, nil
}

// Publisher delivers events to a broker.
type Publisher interface {
	// Publish sends the event and waits until the broker accepted it.
	Publish(ctx context.Context, event Event) error

	// Close releases broker resources.
	Close() error
}

// NoopPublisher discards every event.
type NoopPublisher struct{}

// Publish implements Publisher.
func (NoopPublisher) Publish(context.Context, Event) error { return nil }

// Close implements Publisher.
func (NoopPublisher) Close() error { return nil }
