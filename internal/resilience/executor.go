package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned when the circuit breaker rejects an operation.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Operation is a unit of work run by an Executor. It should honour ctx.
type Operation func(ctx context.Context) error

// ExecutorConfig holds configuration for an Executor.
type ExecutorConfig struct {
	// Name identifies the executor in the registry and on its circuit breaker.
	Name string

	// Timeout bounds each individual attempt. Zero means no per-attempt deadline.
	// Default: 10 seconds
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt.
	// Default: 3
	MaxRetries uint64

	// InitialInterval is the initial retry backoff interval.
	// Default: 100ms
	InitialInterval time.Duration

	// MaxInterval is the maximum retry backoff interval.
	// Default: 5 seconds
	MaxInterval time.Duration

	// CircuitBreaker is the circuit breaker configuration.
	// If nil, uses DefaultCircuitBreakerConfig.
	CircuitBreaker *CircuitBreakerConfig

	// Registry, when set, receives the executor and its success/failure outcomes.
	Registry *Registry
}

// DefaultExecutorConfig returns the default executor configuration.
func DefaultExecutorConfig(name string) ExecutorConfig {
	cbConfig := DefaultCircuitBreakerConfig(name)
	return ExecutorConfig{
		Name:            name,
		Timeout:         10 * time.Second,
		MaxRetries:      3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		CircuitBreaker:  &cbConfig,
	}
}

// Executor runs operations with retry and circuit breaker protection.
type Executor struct {
	circuitBreaker *gobreaker.CircuitBreaker[struct{}]
	config         ExecutorConfig
}

// NewExecutor creates a new executor. Zero intervals are replaced by defaults.
func NewExecutor(cfg ExecutorConfig) *Executor {
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = 100 * time.Millisecond
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = 5 * time.Second
	}

	cbConfig := DefaultCircuitBreakerConfig(cfg.Name)
	if cfg.CircuitBreaker != nil {
		cbConfig = *cfg.CircuitBreaker
		if cbConfig.Name == "" {
			cbConfig.Name = cfg.Name
		}
	}

	e := &Executor{
		circuitBreaker: NewCircuitBreaker[struct{}](cbConfig),
		config:         cfg,
	}

	if cfg.Registry != nil {
		cfg.Registry.Register(cfg.Name, e)
	}

	return e
}

// Name returns the executor name.
func (e *Executor) Name() string {
	return e.config.Name
}

// Execute runs op through the circuit breaker, retrying failures with
// exponential backoff. Returns ErrCircuitOpen without retrying when the breaker
// rejects the call, the context error when ctx ends, or the last op error once
// retries are exhausted. Errors wrapped with backoff.Permanent are not retried.
func (e *Executor) Execute(ctx context.Context, op Operation) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.config.InitialInterval
	bo.MaxInterval = e.config.MaxInterval
	bo.MaxElapsedTime = 0 // retries are bounded by WithMaxRetries

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, e.config.MaxRetries), ctx)

	attempt := func() error {
		_, err := e.circuitBreaker.Execute(func() (struct{}, error) {
			attemptCtx := ctx
			if e.config.Timeout > 0 {
				var cancel context.CancelFunc
				attemptCtx, cancel = context.WithTimeout(ctx, e.config.Timeout)
				defer cancel()
			}
			return struct{}{}, op(attemptCtx)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return backoff.Permanent(ErrCircuitOpen)
		}
		return err
	}

	err := backoff.Retry(attempt, policy)

	if e.config.Registry != nil {
		if err != nil {
			e.config.Registry.RecordFailure(e.config.Name, err)
		} else {
			e.config.Registry.RecordSuccess(e.config.Name)
		}
	}

	return err
}

// CircuitBreakerState returns the current state of the circuit breaker.
func (e *Executor) CircuitBreakerState() gobreaker.State {
	return e.circuitBreaker.State()
}

// CircuitBreakerCounts returns the current counts of the circuit breaker.
func (e *Executor) CircuitBreakerCounts() gobreaker.Counts {
	return e.circuitBreaker.Counts()
}
