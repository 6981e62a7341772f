// Package routescore orchestrates route score requests: it picks the batch
// engine, records telemetry and emits score events.
package routescore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/breatheroute/routequality/internal/events"
	"github.com/breatheroute/routequality/internal/pipeline"
	"github.com/breatheroute/routequality/internal/scoring"
)

// ErrBatchTooLarge is returned when a batch exceeds Settings.MaxBatchRoutes.
var ErrBatchTooLarge = errors.New("batch too large")

// Settings are the runtime-tunable parts of the service.
type Settings struct {
	// PipelineDefault selects the pipeline engine when a request does not choose.
	PipelineDefault bool

	// MaxBatchRoutes caps the number of routes per batch. Zero disables the cap.
	MaxBatchRoutes int
}

// BatchOptions are per-request batch options.
type BatchOptions struct {
	// UsePipeline overrides Settings.PipelineDefault when non-nil.
	UsePipeline *bool
}

// ServiceConfig holds configuration for the route score service.
type ServiceConfig struct {
	Engine   *scoring.Engine
	Pipeline *pipeline.Runner

	// Publisher receives an event after each successful batch. Optional.
	Publisher events.Publisher

	// Metrics records domain metrics. Optional.
	Metrics *Metrics

	Logger   zerolog.Logger
	Settings Settings

	// PublishTimeout bounds event publishing. Default: 10 seconds
	PublishTimeout time.Duration
}

// Service scores routes and batches.
type Service struct {
	engine         *scoring.Engine
	pipeline       *pipeline.Runner
	publisher      events.Publisher
	metrics        *Metrics
	logger         zerolog.Logger
	tracer         trace.Tracer
	publishTimeout time.Duration

	settings atomic.Pointer[Settings]

	// mu guards draining and inflight.Add so no publish starts once Wait runs.
	mu       sync.Mutex
	draining bool
	inflight sync.WaitGroup
}

// NewService creates a new route score service.
func NewService(cfg ServiceConfig) *Service {
	engine := cfg.Engine
	if engine == nil {
		engine = scoring.NewEngine(scoring.EngineConfig{})
	}

	runner := cfg.Pipeline
	if runner == nil {
		runner = pipeline.NewRunner(pipeline.RunnerConfig{
			Engine: engine,
			Logger: cfg.Logger,
		})
	}

	publishTimeout := cfg.PublishTimeout
	if publishTimeout == 0 {
		publishTimeout = 10 * time.Second
	}

	s := &Service{
		engine:         engine,
		pipeline:       runner,
		publisher:      cfg.Publisher,
		metrics:        cfg.Metrics,
		logger:         cfg.Logger,
		tracer:         otel.Tracer(instrumentationName),
		publishTimeout: publishTimeout,
	}
	s.UpdateSettings(cfg.Settings)

	return s
}

// Settings returns the current runtime settings.
func (s *Service) Settings() Settings {
	return *s.settings.Load()
}

// UpdateSettings atomically replaces the runtime settings.
func (s *Service) UpdateSettings(settings Settings) {
	s.settings.Store(&settings)
}

// DefaultEngine names the engine used when a request does not choose one.
func (s *Service) DefaultEngine() string {
	if s.Settings().PipelineDefault {
		return pipeline.EngineName
	}
	return scoring.EngineDirect
}

// PipelineMetrics returns the pipeline runner's counters.
func (s *Service) PipelineMetrics() map[string]interface{} {
	return s.pipeline.MetricsSnapshot()
}

// ComputeRoute scores a single route.
func (s *Service) ComputeRoute(ctx context.Context, in scoring.RouteInput) scoring.RouteScore {
	ctx, span := s.tracer.Start(ctx, "routescore.ComputeRoute",
		trace.WithAttributes(attribute.Int("route.index", in.RouteIndex)),
	)
	defer span.End()

	score := s.engine.ComputeRoute(in)

	span.SetAttributes(attribute.Float64("route.overall_score", score.OverallScore))
	s.metrics.recordRoute(ctx, "single", score.OverallScore)

	return score
}

// ComputeBatch scores a batch with the engine chosen by opts, falling back to
// the configured default. Returns scoring.ErrNoRoutes for an empty batch and
// ErrBatchTooLarge when the batch exceeds the configured cap.
func (s *Service) ComputeBatch(ctx context.Context, routes []scoring.RouteInput, opts BatchOptions) (*scoring.BatchResult, error) {
	settings := s.Settings()

	usePipeline := settings.PipelineDefault
	if opts.UsePipeline != nil {
		usePipeline = *opts.UsePipeline
	}

	engine := scoring.EngineDirect
	if usePipeline {
		engine = pipeline.EngineName
	}

	ctx, span := s.tracer.Start(ctx, "routescore.ComputeBatch",
		trace.WithAttributes(
			attribute.String("routescore.engine", engine),
			attribute.Int("routescore.routes", len(routes)),
		),
	)
	defer span.End()

	start := time.Now()
	result, err := s.computeBatch(ctx, routes, settings, usePipeline)
	took := time.Since(start)

	s.metrics.recordBatch(ctx, engine, took, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Warn().
			Err(err).
			Str("engine", engine).
			Int("routes", len(routes)).
			Msg("batch scoring failed")
		return nil, err
	}

	for _, route := range result.Routes {
		s.metrics.recordRoute(ctx, engine, route.OverallScore)
	}

	s.logger.Info().
		Str("engine", result.Engine).
		Int("routes", result.Summary.TotalRoutes).
		Int("best_route", result.BestRoute.Index).
		Float64("average_score", result.Summary.AverageScore).
		Dur("duration", took).
		Msg("batch scores computed")

	s.publish(ctx, result)

	return result, nil
}

func (s *Service) computeBatch(ctx context.Context, routes []scoring.RouteInput, settings Settings, usePipeline bool) (*scoring.BatchResult, error) {
	if len(routes) == 0 {
		return nil, scoring.ErrNoRoutes
	}
	if settings.MaxBatchRoutes > 0 && len(routes) > settings.MaxBatchRoutes {
		return nil, fmt.Errorf("%w: %d routes, maximum %d", ErrBatchTooLarge, len(routes), settings.MaxBatchRoutes)
	}

	if usePipeline {
		return s.pipeline.Run(ctx, routes)
	}
	return s.engine.ComputeBatch(routes)
}

// publish sends the batch event in the background. Failures are logged only.
func (s *Service) publish(ctx context.Context, result *scoring.BatchResult) {
	if s.publisher == nil {
		return
	}

	event := events.NewScoresComputed(result)
	ctx = context.WithoutCancel(ctx)

	s.mu.Lock()
	if s.draining {
		s.mu.Unlock()
		s.logger.Warn().Str("event_id", event.ID).Msg("service draining, scores event dropped")
		return
	}
	s.inflight.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.inflight.Done()

		ctx, cancel := context.WithTimeout(ctx, s.publishTimeout)
		defer cancel()

		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Error().
				Err(err).
				Str("event_id", event.ID).
				Msg("failed to publish scores event")
			return
		}
		s.logger.Debug().Str("event_id", event.ID).Msg("scores event published")
	}()
}

// Wait stops accepting new event publishes and blocks until those already
// started have finished. Scoring keeps working afterwards without events.
func (s *Service) Wait() {
	s.mu.Lock()
	s.draining = true
	s.mu.Unlock()

	s.inflight.Wait()
}
