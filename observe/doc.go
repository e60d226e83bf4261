// Package observe provides the logging, metrics and tracing sinks used by the
// client interceptors and the resilience diagnostics adapters.
//
// It is a pure instrumentation library: it never sends requests itself.
// NewObserver wires OpenTelemetry providers and a structured logger from a
// Config; NewTracer, NewMetrics and NewRequestLogger adapt those primitives to
// the per-request sink interfaces the intercept package calls.
//
// # Usage
//
//	obs, err := observe.NewObserver(ctx, observe.Config{
//	    ServiceName: "billing",
//	    Tracing:     observe.TracingConfig{Enabled: true, Exporter: "stdout", SamplePct: 1},
//	    Metrics:     observe.MetricsConfig{Enabled: true, Exporter: "prometheus"},
//	    Logging:     observe.LoggingConfig{Enabled: true, Level: "info"},
//	})
//	defer obs.Shutdown(ctx)
//
//	metrics, err := observe.NewMetrics(obs.Meter())
//	tracer := observe.NewTracer(obs.Tracer())
//	requests := observe.NewRequestLogger(obs.Logger(), observe.RequestLogConfig{})
package observe
