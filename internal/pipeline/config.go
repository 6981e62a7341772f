// Package pipeline provides the table-style batch execution path for route
// scoring. Routes are treated as rows, fanned out to a bounded pool of workers
// and collected back in route index order.
package pipeline

// EngineName is reported in batch results produced by the pipeline.
const EngineName = "pipeline"

// Config holds configuration for the pipeline runner.
type Config struct {
	// Concurrency is the number of workers scoring rows in parallel.
	// Default: 4
	Concurrency int
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() Config {
	return Config{
		Concurrency: 4,
	}
}

// workers returns the number of workers to start for a run of n rows.
func (c Config) workers(n int) int {
	w := c.Concurrency
	if w <= 0 {
		w = DefaultConfig().Concurrency
	}
	return min(w, n)
}
