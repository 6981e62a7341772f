package routescore

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/breatheroute/routequality/internal/routescore"

// Metrics holds the domain metric instruments.
type Metrics struct {
	routesComputed metric.Int64Counter
	overallScore   metric.Float64Histogram
	batchDuration  metric.Float64Histogram
}

// NewMetrics creates the instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	routesComputed, err := meter.Int64Counter(
		"routescore.routes.computed",
		metric.WithDescription("Number of routes scored"),
		metric.WithUnit("{route}"),
	)
	if err != nil {
		return nil, err
	}

	overallScore, err := meter.Float64Histogram(
		"routescore.overall_score",
		metric.WithDescription("Distribution of overall route scores"),
		metric.WithUnit("1"),
		metric.WithExplicitBucketBoundaries(10, 20, 30, 40, 50, 60, 70, 80, 90, 100),
	)
	if err != nil {
		return nil, err
	}

	batchDuration, err := meter.Float64Histogram(
		"routescore.batch.duration",
		metric.WithDescription("Duration of batch score computations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		routesComputed: routesComputed,
		overallScore:   overallScore,
		batchDuration:  batchDuration,
	}, nil
}

func (m *Metrics) recordRoute(ctx context.Context, engine string, overall float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("engine", engine))
	m.routesComputed.Add(ctx, 1, attrs)
	m.overallScore.Record(ctx, overall, attrs)
}

func (m *Metrics) recordBatch(ctx context.Context, engine string, took time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{attribute.String("engine", engine)}
	if err != nil {
		attrs = append(attrs, attribute.Bool("error", true))
	}
	m.batchDuration.Record(ctx, took.Seconds(), metric.WithAttributes(attrs...))
}
