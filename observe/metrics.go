package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records outcome metrics for auth operations.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordOutcome records one operation with its outcome label and duration.
	// A non-nil err counts as a rejection.
	RecordOutcome(ctx context.Context, meta OpMeta, outcome string, duration time.Duration, err error)
}

type metricsImpl struct {
	totalCount     metric.Int64Counter
	rejectionCount metric.Int64Counter
	durationHist   metric.Float64Histogram
}

// NewMetrics creates the auth.op.* instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	return newMetrics(meter)
}

func newMetrics(meter metric.Meter) (*metricsImpl, error) {
	totalCount, err := meter.Int64Counter(
		"auth.op.total",
		metric.WithDescription("Total number of auth operations"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	rejectionCount, err := meter.Int64Counter(
		"auth.op.rejections",
		metric.WithDescription("Total number of rejected auth operations"),
		metric.WithUnit("{rejection}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"auth.op.duration_ms",
		metric.WithDescription("Auth operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		totalCount:     totalCount,
		rejectionCount: rejectionCount,
		durationHist:   durationHist,
	}, nil
}

func (m *metricsImpl) RecordOutcome(ctx context.Context, meta OpMeta, outcome string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("auth.op", meta.OpID()),
		attribute.String("auth.outcome", outcome),
	}
	opt := metric.WithAttributes(attrs...)

	m.totalCount.Add(ctx, 1, opt)
	if err != nil {
		m.rejectionCount.Add(ctx, 1, opt)
	}
	m.durationHist.Record(ctx, float64(duration.Microseconds())/1000, opt)
}

type noopMetrics struct{}

func (noopMetrics) RecordOutcome(context.Context, OpMeta, string, time.Duration, error) {}
