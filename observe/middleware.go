package observe

import (
	"context"
	"time"
)

// OpFunc is an instrumented operation. It reports a short outcome label
// ("issued", "rejected", "allowed", ...) alongside its error.
type OpFunc func(ctx context.Context) (outcome string, err error)

// Middleware wraps auth operations with tracing, metrics and logging.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Context: the span context is passed to the wrapped function.
//   - Errors: errors from the wrapped function are recorded and returned unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a new Middleware with the given observability components.
// Nil components fall back to no-ops.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = newNoopTracer()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// NopMiddleware returns a Middleware that only runs the wrapped function.
func NopMiddleware() *Middleware {
	return NewMiddleware(nil, nil, nil)
}

// Wrap binds fn to meta and returns the instrumented function.
func (m *Middleware) Wrap(meta OpMeta, fn OpFunc) OpFunc {
	return func(ctx context.Context) (string, error) {
		ctx, span := m.tracer.StartSpan(ctx, meta)
		start := time.Now()

		outcome, err := fn(ctx)

		duration := time.Since(start)
		m.tracer.EndSpan(span, outcome, err)
		m.metrics.RecordOutcome(ctx, meta, outcome, duration, err)

		opLogger := m.logger.With(Field{Key: "op", Value: meta.OpID()})
		fields := []Field{
			{Key: "outcome", Value: outcome},
			{Key: "duration_ms", Value: float64(duration.Microseconds()) / 1000},
		}
		// Rejections are routine; the caller logs them once at its own level.
		if err != nil {
			fields = append(fields, Field{Key: "error", Value: err.Error()})
		}
		opLogger.Debug(ctx, "auth operation completed", fields...)

		return outcome, err
	}
}

// Instrument runs fn once under meta and returns its error.
func (m *Middleware) Instrument(ctx context.Context, meta OpMeta, fn OpFunc) error {
	_, err := m.Wrap(meta, fn)(ctx)
	return err
}

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}

	metrics, err := newMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}

	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}
