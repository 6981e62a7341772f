package pipeline

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/breatheroute/routequality/internal/scoring"
)

// Runner executes batch scoring as a worker pool over route rows.
type Runner struct {
	config Config
	engine *scoring.Engine
	logger zerolog.Logger

	metrics *Metrics
}

// Metrics tracks pipeline run statistics.
type Metrics struct {
	mu sync.RWMutex

	TotalRuns     int64
	FailedRuns    int64
	RoutesScored  int64
	LastRunAt     time.Time
	LastRunTook   time.Duration
	TotalDuration time.Duration
}

// RunnerConfig holds configuration for creating a Runner.
type RunnerConfig struct {
	Config Config
	Engine *scoring.Engine
	Logger zerolog.Logger
}

// NewRunner creates a new pipeline runner.
func NewRunner(cfg RunnerConfig) *Runner {
	config := cfg.Config
	if config.Concurrency <= 0 {
		config = DefaultConfig()
	}

	engine := cfg.Engine
	if engine == nil {
		engine = scoring.NewEngine(scoring.EngineConfig{})
	}

	return &Runner{
		config:  config,
		engine:  engine,
		logger:  cfg.Logger,
		metrics: &Metrics{},
	}
}

type row struct {
	position int
	input    scoring.RouteInput
}

type rowResult struct {
	position int
	score    scoring.RouteScore
}

// Run scores every route and returns the batch sorted by route index.
// Returns scoring.ErrNoRoutes for an empty batch and the context error if ctx
// is cancelled before every row was scored.
func (r *Runner) Run(ctx context.Context, routes []scoring.RouteInput) (*scoring.BatchResult, error) {
	if len(routes) == 0 {
		return nil, scoring.ErrNoRoutes
	}

	start := time.Now()
	workers := r.config.workers(len(routes))

	r.logger.Debug().
		Int("routes", len(routes)).
		Int("workers", workers).
		Msg("starting pipeline run")

	rows := make(chan row, len(routes))
	results := make(chan rowResult, len(routes))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.worker(ctx, rows, results)
		}()
	}

dispatch:
	for i, route := range routes {
		select {
		case <-ctx.Done():
			break dispatch
		case rows <- row{position: i, input: route}:
		}
	}
	close(rows)

	go func() {
		wg.Wait()
		close(results)
	}()

	collected := make([]rowResult, 0, len(routes))
	for res := range results {
		collected = append(collected, res)
	}

	if err := ctx.Err(); err != nil {
		r.record(time.Since(start), 0, false)
		r.logger.Warn().Err(err).Int("scored", len(collected)).Msg("pipeline run cancelled")
		return nil, err
	}

	sort.SliceStable(collected, func(i, j int) bool {
		a, b := collected[i], collected[j]
		if a.score.RouteIndex != b.score.RouteIndex {
			return a.score.RouteIndex < b.score.RouteIndex
		}
		return a.position < b.position
	})

	scores := make([]scoring.RouteScore, len(collected))
	for i, res := range collected {
		scores[i] = res.score
	}

	result, err := r.engine.Aggregate(scores, EngineName)
	if err != nil {
		r.record(time.Since(start), 0, false)
		return nil, err
	}

	took := time.Since(start)
	r.record(took, len(scores), true)

	r.logger.Debug().
		Dur("duration", took).
		Int("routes", len(scores)).
		Msg("pipeline run completed")

	return result, nil
}

func (r *Runner) worker(ctx context.Context, rows <-chan row, results chan<- rowResult) {
	for rw := range rows {
		select {
		case <-ctx.Done():
			return
		default:
			results <- rowResult{
				position: rw.position,
				score:    r.engine.ComputeRoute(rw.input),
			}
		}
	}
}

func (r *Runner) record(took time.Duration, scored int, ok bool) {
	r.metrics.mu.Lock()
	defer r.metrics.mu.Unlock()

	r.metrics.TotalRuns++
	if !ok {
		r.metrics.FailedRuns++
	}
	r.metrics.RoutesScored += int64(scored)
	r.metrics.LastRunAt = time.Now()
	r.metrics.LastRunTook = took
	r.metrics.TotalDuration += took
}

// GetMetrics returns a copy of the current metrics.
func (r *Runner) GetMetrics() Metrics {
	r.metrics.mu.RLock()
	defer r.metrics.mu.RUnlock()

	return Metrics{
		TotalRuns:     r.metrics.TotalRuns,
		FailedRuns:    r.metrics.FailedRuns,
		RoutesScored:  r.metrics.RoutesScored,
		LastRunAt:     r.metrics.LastRunAt,
		LastRunTook:   r.metrics.LastRunTook,
		TotalDuration: r.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (r *Runner) MetricsSnapshot() map[string]interface{} {
	m := r.GetMetrics()
	return map[string]interface{}{
		"total_runs":     m.TotalRuns,
		"failed_runs":    m.FailedRuns,
		"routes_scored":  m.RoutesScored,
		"last_run_at":    m.LastRunAt,
		"last_run_took":  m.LastRunTook.String(),
		"total_duration": m.TotalDuration.String(),
		"concurrency":    r.config.Concurrency,
	}
}
