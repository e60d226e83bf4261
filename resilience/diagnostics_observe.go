package resilience

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jonwraymond/httpchain/observe"
)

// LoggingDiagnostics writes one log entry per policy event.
func LoggingDiagnostics(logger observe.Logger) Diagnostics {
	if logger == nil {
		return NoopDiagnostics{}
	}
	return &logDiagnostics{logger: logger}
}

type logDiagnostics struct {
	logger observe.Logger
}

func requestFields(req *http.Request) []observe.Field {
	if req == nil {
		return nil
	}
	meta := observe.MetaFromRequest("", req)
	return []observe.Field{
		observe.F("method", meta.Method),
		observe.F("host", meta.Host),
		observe.F("path", meta.Path),
	}
}

func requestCtx(req *http.Request) context.Context {
	if req == nil {
		return context.Background()
	}
	return req.Context()
}

func errField(err error) observe.Field {
	if err == nil {
		return observe.F("error", nil)
	}
	return observe.F("error", err.Error())
}

func (d *logDiagnostics) OnRetry(req *http.Request, attempt int, err error) {
	fields := append(requestFields(req), observe.F("attempt", attempt), errField(err))
	d.logger.Warn(requestCtx(req), "retrying request", fields...)
}

func (d *logDiagnostics) OnTimeout(req *http.Request, timeout time.Duration) {
	fields := append(requestFields(req), observe.F("timeout_ms", timeout.Milliseconds()))
	d.logger.Warn(requestCtx(req), "request timed out", fields...)
}

func (d *logDiagnostics) OnCircuitBreak(req *http.Request, err error) {
	fields := append(requestFields(req), errField(err))
	d.logger.Error(requestCtx(req), "circuit opened", fields...)
}

func (d *logDiagnostics) OnCircuitReset(req *http.Request) {
	d.logger.Info(requestCtx(req), "circuit closed", requestFields(req)...)
}

func (d *logDiagnostics) OnBulkheadRejected(req *http.Request, err error) {
	fields := append(requestFields(req), errField(err))
	d.logger.Warn(requestCtx(req), "request rejected", fields...)
}

func (d *logDiagnostics) OnFallback(req *http.Request, outcome Outcome) {
	fields := append(requestFields(req), errField(outcome.Err))
	if outcome.Response != nil {
		fields = append(fields, observe.F("status", outcome.Response.StatusCode))
	}
	d.logger.Warn(requestCtx(req), "fallback engaged", fields...)
}

// Event names recorded by MetricsDiagnostics.
const (
	EventRetry        = "retry"
	EventTimeout      = "timeout"
	EventCircuitBreak = "circuit_break"
	EventCircuitReset = "circuit_reset"
	EventRejected     = "rejected"
	EventFallback     = "fallback"
)

// MetricsDiagnostics counts policy events on the
// resilience.events counter, labeled by event and client name.
func MetricsDiagnostics(meter metric.Meter, client string) (Diagnostics, error) {
	events, err := meter.Int64Counter(
		"resilience.events",
		metric.WithDescription("Resiliency policy events"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}
	return &metricDiagnostics{events: events, client: client}, nil
}

type metricDiagnostics struct {
	events metric.Int64Counter
	client string
}

func (d *metricDiagnostics) add(req *http.Request, event string) {
	attrs := []attribute.KeyValue{attribute.String("event", event)}
	if d.client != "" {
		attrs = append(attrs, attribute.String("http.client.name", d.client))
	}
	d.events.Add(requestCtx(req), 1, metric.WithAttributes(attrs...))
}

func (d *metricDiagnostics) OnRetry(req *http.Request, _ int, _ error) {
	d.add(req, EventRetry)
}

func (d *metricDiagnostics) OnTimeout(req *http.Request, _ time.Duration) {
	d.add(req, EventTimeout)
}

func (d *metricDiagnostics) OnCircuitBreak(req *http.Request, _ error) {
	d.add(req, EventCircuitBreak)
}

func (d *metricDiagnostics) OnCircuitReset(req *http.Request) {
	d.add(req, EventCircuitReset)
}

func (d *metricDiagnostics) OnBulkheadRejected(req *http.Request, _ error) {
	d.add(req, EventRejected)
}

func (d *metricDiagnostics) OnFallback(req *http.Request, _ Outcome) {
	d.add(req, EventFallback)
}
