package observe

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records request metrics for outgoing calls.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordRequest counts a request about to be sent.
	RecordRequest(ctx context.Context, meta RequestMeta)

	// RecordDuration records how long a request took. status is zero when no
	// response was received.
	RecordDuration(ctx context.Context, meta RequestMeta, status int, duration time.Duration)

	// RecordFailure counts a request that ended in an error.
	RecordFailure(ctx context.Context, meta RequestMeta, err error)
}

type metricsImpl struct {
	requestCount metric.Int64Counter
	failureCount metric.Int64Counter
	durationHist metric.Float64Histogram
}

// NewMetrics creates request instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	requestCount, err := meter.Int64Counter(
		"http.client.requests",
		metric.WithDescription("Total number of outgoing requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	failureCount, err := meter.Int64Counter(
		"http.client.failures",
		metric.WithDescription("Total number of outgoing requests that failed without a response"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"http.client.duration_ms",
		metric.WithDescription("Outgoing request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		requestCount: requestCount,
		failureCount: failureCount,
		durationHist: durationHist,
	}, nil
}

func (m *metricsImpl) RecordRequest(ctx context.Context, meta RequestMeta) {
	m.requestCount.Add(ctx, 1, metric.WithAttributes(meta.Attributes()...))
}

func (m *metricsImpl) RecordDuration(ctx context.Context, meta RequestMeta, status int, duration time.Duration) {
	attrs := meta.Attributes()
	if status > 0 {
		attrs = append(attrs, attribute.Int("http.response.status_code", status))
	}
	m.durationHist.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
}

func (m *metricsImpl) RecordFailure(ctx context.Context, meta RequestMeta, err error) {
	attrs := meta.Attributes()
	if err != nil {
		attrs = append(attrs, attribute.String("error.type", errorType(err)))
	}
	m.failureCount.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// errorType returns a low-cardinality label for err.
func errorType(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "deadline_exceeded"
	default:
		return "error"
	}
}

// NopMetrics returns a Metrics that records nothing.
func NopMetrics() Metrics {
	return noopMetrics{}
}

type noopMetrics struct{}

func (noopMetrics) RecordRequest(context.Context, RequestMeta)                      {}
func (noopMetrics) RecordDuration(context.Context, RequestMeta, int, time.Duration) {}
func (noopMetrics) RecordFailure(context.Context, RequestMeta, error)               {}
