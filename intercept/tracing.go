package intercept

import (
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/jonwraymond/httpchain/observe"
)

type tracingInterceptor struct {
	tracer     observe.Tracer
	propagator propagation.TextMapPropagator
}

// Tracing starts a client span per request and injects the span context
// into the outgoing headers. A nil tracer records nothing; a nil
// propagator uses the global one.
func Tracing(tracer observe.Tracer, propagator propagation.TextMapPropagator) Interceptor {
	if tracer == nil {
		tracer = observe.NopTracer()
	}
	if propagator == nil {
		propagator = otel.GetTextMapPropagator()
	}
	return &tracingInterceptor{tracer: tracer, propagator: propagator}
}

func (*tracingInterceptor) OrderingKey() OrderingKey { return KeyTracing }

func (t *tracingInterceptor) Intercept(req *http.Request, next http.RoundTripper) (*http.Response, error) {
	ctx, span := t.tracer.StartSpan(req.Context(), metaOf(req))

	out := req.Clone(ctx)
	t.propagator.Inject(ctx, propagation.HeaderCarrier(out.Header))

	resp, err := next.RoundTrip(out)
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	t.tracer.EndSpan(span, status, err)
	return resp, err
}
