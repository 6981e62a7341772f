package events

import (
	"context"

	"github.com/breatheroute/routequality/internal/resilience"
)

// ResilientPublisher retries publishing through a resilience executor.
type ResilientPublisher struct {
	next     Publisher
	executor *resilience.Executor
}

// NewResilientPublisher wraps next with the executor's retry and circuit breaker.
func NewResilientPublisher(next Publisher, executor *resilience.Executor) *ResilientPublisher {
	return &ResilientPublisher{next: next, executor: executor}
}

// Publish implements Publisher.
func (p *ResilientPublisher) Publish(ctx context.Context, event Event) error {
	return p.executor.Execute(ctx, func(ctx context.Context) error {
		return p.next.Publish(ctx, event)
	})
}

// Close implements Publisher.
func (p *ResilientPublisher) Close() error {
	return p.next.Close()
}
