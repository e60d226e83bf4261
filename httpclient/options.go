package httpclient

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel/propagation"

	"github.com/jonwraymond/httpchain/auth"
	"github.com/jonwraymond/httpchain/intercept"
	"github.com/jonwraymond/httpchain/observe"
	"github.com/jonwraymond/httpchain/resilience"
	"github.com/jonwraymond/httpchain/secret"
)

// Option configures a Client.
type Option func(*options)

type options struct {
	transport http.RoundTripper
	timeout   time.Duration
	baseURL   string

	presets  *resilience.PresetRegistry
	preset   string
	policies []resilience.PolicyDefinition

	source   auth.CredentialSource
	headers  *intercept.HeadersConfig
	resolver *secret.Resolver

	logger     observe.RequestLogger
	logging    intercept.LoggingConfig
	metrics    observe.Metrics
	tracer     observe.Tracer
	propagator propagation.TextMapPropagator
	hooks      *intercept.HooksConfig

	diagnostics []resilience.Diagnostics
	observer    observe.Observer
	extra       []intercept.Entry
}

func newOptions(opts ...Option) *options {
	o := &options{}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// WithTransport sets the base transport.
// Default: http.DefaultTransport
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) {
		o.transport = rt
	}
}

// WithTimeout sets the http.Client timeout, which bounds a whole call
// including reading the body. Zero means no limit.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithBaseURL resolves relative request URLs against base. Keep a trailing
// slash on base to resolve below its path.
func WithBaseURL(base string) Option {
	return func(o *options) {
		o.baseURL = base
	}
}

// WithPresetRegistry sets the registry presets are looked up in.
// Default: resilience.DefaultPresets()
func WithPresetRegistry(r *resilience.PresetRegistry) Option {
	return func(o *options) {
		o.presets = r
	}
}

// WithPreset selects a named resiliency preset.
func WithPreset(name string) Option {
	return func(o *options) {
		o.preset = name
	}
}

// WithPolicies adds explicit policy definitions. They replace the preset's
// definitions of the same kind.
func WithPolicies(defs ...resilience.PolicyDefinition) Option {
	return func(o *options) {
		o.policies = append(o.policies, defs...)
	}
}

// WithAuth authenticates every request with source.
func WithAuth(source auth.CredentialSource) Option {
	return func(o *options) {
		o.source = source
	}
}

// WithHeaders adds default headers.
func WithHeaders(cfg intercept.HeadersConfig) Option {
	return func(o *options) {
		o.headers = &cfg
	}
}

// WithSecretResolver sets the resolver for header values that do not
// name their own.
func WithSecretResolver(r *secret.Resolver) Option {
	return func(o *options) {
		o.resolver = r
	}
}

// WithLogging logs every request.
func WithLogging(logger observe.RequestLogger, cfg intercept.LoggingConfig) Option {
	return func(o *options) {
		o.logger = logger
		o.logging = cfg
	}
}

// WithMetrics records request metrics.
func WithMetrics(m observe.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithTracing starts a client span per request. A nil propagator uses the
// global one.
func WithTracing(tracer observe.Tracer, propagator propagation.TextMapPropagator) Option {
	return func(o *options) {
		o.tracer = tracer
		o.propagator = propagator
	}
}

// WithHooks runs lifecycle callbacks on every attempt.
func WithHooks(cfg intercept.HooksConfig) Option {
	return func(o *options) {
		o.hooks = &cfg
	}
}

// WithDiagnostics adds resiliency diagnostics sinks.
func WithDiagnostics(d ...resilience.Diagnostics) Option {
	return func(o *options) {
		o.diagnostics = append(o.diagnostics, d...)
	}
}

// WithObserver enables tracing, metrics, logging and resiliency
// diagnostics from obs. Signals set explicitly by other options win.
func WithObserver(obs observe.Observer) Option {
	return func(o *options) {
		o.observer = obs
	}
}

// WithInterceptor adds a custom interceptor at the order of its category.
func WithInterceptor(i intercept.Interceptor) Option {
	return func(o *options) {
		if i == nil {
			o.extra = append(o.extra, intercept.Entry{})
			return
		}
		o.extra = append(o.extra, intercept.EntryFor(i))
	}
}

// WithInterceptorOrder adds a custom interceptor at a raw order.
func WithInterceptorOrder(name string, order int, i intercept.Interceptor) Option {
	return func(o *options) {
		o.extra = append(o.extra, intercept.EntryWithOrder(name, order, i))
	}
}
