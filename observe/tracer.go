package observe

import (
	"context"
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// RequestMeta contains metadata about an outgoing request for telemetry purposes.
type RequestMeta struct {
	Client string // Named client issuing the request (may be empty)
	Method string // HTTP method
	Host   string // Target host (host[:port])
	Path   string // URL path without query
}

// MetaFromRequest extracts telemetry metadata from req.
func MetaFromRequest(client string, req *http.Request) RequestMeta {
	meta := RequestMeta{Client: client, Method: req.Method}
	if meta.Method == "" {
		meta.Method = http.MethodGet
	}
	if req.URL != nil {
		meta.Host = req.URL.Host
		meta.Path = req.URL.Path
	}
	if meta.Host == "" {
		meta.Host = req.Host
	}
	return meta
}

// SpanName returns the deterministic span name for this request.
// Format: <client> <METHOD> or <METHOD>
func (m RequestMeta) SpanName() string {
	if m.Client != "" {
		return m.Client + " " + m.Method
	}
	return m.Method
}

// Attributes returns the common telemetry attributes for the request.
func (m RequestMeta) Attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("http.request.method", m.Method),
		attribute.String("server.address", m.Host),
	}
	if m.Client != "" {
		attrs = append(attrs, attribute.String("http.client.name", m.Client))
	}
	return attrs
}

// Tracer starts and stops client spans around outgoing requests.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a client span for the request.
	StartSpan(ctx context.Context, meta RequestMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording the response status and any error.
	// status is zero when no response was received.
	EndSpan(span trace.Span, status int, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer wraps an OpenTelemetry tracer. A nil tracer yields a no-op Tracer.
func NewTracer(t trace.Tracer) Tracer {
	if t == nil {
		return NopTracer()
	}
	return &tracerImpl{tracer: t}
}

func (t *tracerImpl) StartSpan(ctx context.Context, meta RequestMeta) (context.Context, trace.Span) {
	attrs := meta.Attributes()
	if meta.Path != "" {
		attrs = append(attrs, attribute.String("url.path", meta.Path))
	}

	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

func (t *tracerImpl) EndSpan(span trace.Span, status int, err error) {
	if status > 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", status))
	}
	switch {
	case err != nil:
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	case status >= http.StatusBadRequest:
		span.SetStatus(codes.Error, strconv.Itoa(status))
	default:
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// NopTracer returns a tracer whose spans record nothing.
func NopTracer() Tracer {
	return &noopTracer{
		noop: tracenoop.NewTracerProvider().Tracer("noop"),
	}
}

type noopTracer struct {
	noop trace.Tracer
}

func (t *noopTracer) StartSpan(ctx context.Context, meta RequestMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, _ int, _ error) {
	span.End()
}
