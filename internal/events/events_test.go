package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breatheroute/routequality/internal/events"
	"github.com/breatheroute/routequality/internal/resilience"
	"github.com/breatheroute/routequality/internal/scoring"
)

func sampleBatch() *scoring.BatchResult {
	routeID := "r-1"
	return &scoring.BatchResult{
		BestRoute: scoring.BestRoute{Index: 1, RouteID: &routeID, Score: 88.2},
		Summary: scoring.Summary{
			TotalRoutes:  3,
			AverageScore: 71.4,
			ScoreRange:   scoring.ScoreRange{Min: 55, Max: 88.2},
		},
		ComputedAt: time.Date(2026, 4, 2, 7, 15, 0, 0, time.UTC),
		Engine:     "pipeline",
	}
}

func TestNewScoresComputed(t *testing.T) {
	event := events.NewScoresComputed(sampleBatch())

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, events.TypeScoresComputed, event.Type)
	assert.Equal(t, "pipeline", event.Engine)
	assert.Equal(t, 3, event.TotalRoutes)
	assert.Equal(t, 71.4, event.AverageScore)
	assert.Equal(t, 1, event.BestRoute.Index)
	assert.Equal(t, 88.2, event.BestRoute.Score)
	assert.Equal(t, events.EventRange{Min: 55, Max: 88.2}, event.ScoreRange)

	other := events.NewScoresComputed(sampleBatch())
	assert.NotEqual(t, event.ID, other.ID)
}

func TestEvent_Encode(t *testing.T) {
	event := events.NewScoresComputed(sampleBatch())

	data, err := event.Encode()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "route_scores.computed", decoded["type"])
	assert.Equal(t, "2026-04-02T07:15:00Z", decoded["occurredAt"])
	assert.Equal(t, "r-1", decoded["bestRoute"].(map[string]any)["routeId"])
}

func TestNoopPublisher(t *testing.T) {
	var p events.Publisher = events.NoopPublisher{}

	assert.NoError(t, p.Publish(context.Background(), events.Event{}))
	assert.NoError(t, p.Close())
}

type fakeConn struct {
	mu        sync.Mutex
	published map[string][][]byte
	pubErr    error
	flushErr  error
	closed    bool
}

func (c *fakeConn) Publish(subject string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pubErr != nil {
		return c.pubErr
	}
	if c.published == nil {
		c.published = make(map[string][][]byte)
	}
	c.published[subject] = append(c.published[subject], data)
	return nil
}

func (c *fakeConn) FlushWithContext(context.Context) error { return c.flushErr }

func (c *fakeConn) Close() { c.closed = true }

func TestNATSPublisher_Publish(t *testing.T) {
	conn := &fakeConn{}
	p := events.NewNATSPublisherWithConn(conn, "routes.scores", zerolog.New(io.Discard))

	event := events.NewScoresComputed(sampleBatch())
	require.NoError(t, p.Publish(context.Background(), event))

	require.Len(t, conn.published["routes.scores"], 1)
	var decoded events.Event
	require.NoError(t, json.Unmarshal(conn.published["routes.scores"][0], &decoded))
	assert.Equal(t, event.ID, decoded.ID)

	require.NoError(t, p.Close())
	assert.True(t, conn.closed)
}

func TestNATSPublisher_Errors(t *testing.T) {
	t.Run("publish", func(t *testing.T) {
		conn := &fakeConn{pubErr: errors.New("connection closed")}
		p := events.NewNATSPublisherWithConn(conn, "s", zerolog.New(io.Discard))

		err := p.Publish(context.Background(), events.Event{ID: "x"})
		assert.ErrorIs(t, err, conn.pubErr)
	})

	t.Run("flush", func(t *testing.T) {
		conn := &fakeConn{flushErr: errors.New("timeout")}
		p := events.NewNATSPublisherWithConn(conn, "s", zerolog.New(io.Discard))

		err := p.Publish(context.Background(), events.Event{ID: "x"})
		assert.ErrorIs(t, err, conn.flushErr)
	})
}

type flakyPublisher struct {
	failures int
	calls    int
	closed   bool
}

func (p *flakyPublisher) Publish(context.Context, events.Event) error {
	p.calls++
	if p.calls <= p.failures {
		return errors.New("unavailable")
	}
	return nil
}

func (p *flakyPublisher) Close() error {
	p.closed = true
	return nil
}

func testExecutor(retries uint64) *resilience.Executor {
	cbConfig := resilience.DefaultCircuitBreakerConfig("events")
	cbConfig.ReadyToTrip = func(counts gobreaker.Counts) bool { return counts.Requests >= 100 }

	return resilience.NewExecutor(resilience.ExecutorConfig{
		Name:            "events",
		MaxRetries:      retries,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		CircuitBreaker:  &cbConfig,
	})
}

func TestResilientPublisher_Retries(t *testing.T) {
	next := &flakyPublisher{failures: 2}
	p := events.NewResilientPublisher(next, testExecutor(3))

	require.NoError(t, p.Publish(context.Background(), events.Event{ID: "x"}))
	assert.Equal(t, 3, next.calls)

	require.NoError(t, p.Close())
	assert.True(t, next.closed)
}

func TestResilientPublisher_GivesUp(t *testing.T) {
	next := &flakyPublisher{failures: 10}
	p := events.NewResilientPublisher(next, testExecutor(1))

	err := p.Publish(context.Background(), events.Event{ID: "x"})
	assert.EqualError(t, err, "unavailable")
	assert.Equal(t, 2, next.calls)
}
