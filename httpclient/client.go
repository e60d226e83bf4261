package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/jonwraymond/httpchain/intercept"
	"github.com/jonwraymond/httpchain/observe"
	"github.com/jonwraymond/httpchain/resilience"
)

// Client is a named HTTP client whose requests run through an ordered
// interceptor chain.
type Client struct {
	name     string
	baseURL  *url.URL
	http     *http.Client
	chain    *intercept.Chain
	pipeline *resilience.Pipeline
}

// New builds a client. Invalid options, an unknown preset and invalid
// policy definitions fail with an error wrapping ErrInvalidConfig.
func New(name string, opts ...Option) (*Client, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: client name is required", ErrInvalidConfig)
	}
	o := newOptions(opts...)

	if o.timeout < 0 {
		return nil, fmt.Errorf("%w: %s: timeout must not be negative", ErrInvalidConfig, name)
	}
	var base *url.URL
	if o.baseURL != "" {
		u, err := parseBaseURL(o.baseURL)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, name, err)
		}
		base = u
	}
	if err := o.applyObserver(name); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, name, err)
	}

	pipeline, err := o.compile()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, name, err)
	}
	chain, err := o.assemble(name, pipeline)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, name, err)
	}

	transport := o.transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &Client{
		name:     name,
		baseURL:  base,
		chain:    chain,
		pipeline: pipeline,
		http: &http.Client{
			Transport: chain.RoundTripper(transport),
			Timeout:   o.timeout,
		},
	}, nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", raw)
	}
	return u, nil
}

// applyObserver fills the signals not set explicitly from the observer.
func (o *options) applyObserver(client string) error {
	if o.observer == nil {
		return nil
	}
	if o.tracer == nil {
		o.tracer = observe.NewTracer(o.observer.Tracer())
	}
	if o.metrics == nil {
		m, err := observe.NewMetrics(o.observer.Meter())
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		o.metrics = m
	}
	if o.logger == nil {
		o.logger = observe.NewRequestLogger(o.observer.Logger(), observe.RequestLogConfig{})
	}

	diag, err := resilience.MetricsDiagnostics(o.observer.Meter(), client)
	if err != nil {
		return fmt.Errorf("diagnostics: %w", err)
	}
	o.diagnostics = append(o.diagnostics, resilience.LoggingDiagnostics(o.observer.Logger()), diag)
	return nil
}

// compile merges the preset with the explicit policies. It returns nil
// when no policy is configured.
func (o *options) compile() (*resilience.Pipeline, error) {
	b := resilience.NewBuilder()
	if o.preset != "" {
		registry := o.presets
		if registry == nil {
			registry = resilience.DefaultPresets()
		}
		preset, err := registry.Get(o.preset)
		if err != nil {
			return nil, err
		}
		b.Apply(preset)
	}
	for _, def := range o.policies {
		b.Add(def)
	}
	if b.Len() == 0 {
		return nil, nil
	}

	set, err := b.Build()
	if err != nil {
		return nil, err
	}
	return resilience.Compile(set, resilience.MultiDiagnostics(o.diagnostics...)), nil
}

func (o *options) assemble(client string, pipeline *resilience.Pipeline) (*intercept.Chain, error) {
	a := intercept.NewAssembler().Named(client)

	// The built-in constructors return nil for an unset dependency; such a
	// layer is left out rather than rejected.
	add := func(i intercept.Interceptor) {
		if i != nil {
			a.Add(i)
		}
	}

	if o.hooks != nil {
		hooks, err := intercept.Hooks(*o.hooks)
		if err != nil {
			return nil, err
		}
		a.Add(hooks)
	}
	add(intercept.Resiliency(pipeline))
	add(intercept.Metrics(o.metrics))
	add(intercept.Logging(o.logger, o.logging))
	if o.headers != nil {
		cfg := *o.headers
		if cfg.Resolver == nil {
			cfg.Resolver = o.resolver
		}
		headers, err := intercept.Headers(cfg)
		if err != nil {
			return nil, err
		}
		a.Add(headers)
	}
	add(intercept.Authentication(o.source))
	if o.tracer != nil {
		a.Add(intercept.Tracing(o.tracer, o.propagator))
	}
	for _, e := range o.extra {
		a.AddEntry(e)
	}
	return a.Build()
}

// Name returns the client name.
func (c *Client) Name() string {
	return c.name
}

// HTTPClient returns the underlying *http.Client. Requests sent through it
// run the full chain but do not resolve relative URLs.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

// Chain returns the assembled interceptor chain.
func (c *Client) Chain() *intercept.Chain {
	return c.chain
}

// Pipeline returns the compiled resiliency pipeline, or nil.
func (c *Client) Pipeline() *resilience.Pipeline {
	return c.pipeline
}

// CircuitState returns the circuit breaker state and whether the client
// has a breaker.
func (c *Client) CircuitState() (resilience.State, bool) {
	if c.pipeline == nil || c.pipeline.CircuitBreaker() == nil {
		return resilience.StateClosed, false
	}
	return c.pipeline.CircuitBreaker().State(), true
}

// Do sends req. A relative URL is resolved against the base URL.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if req.URL != nil && !req.URL.IsAbs() {
		if c.baseURL == nil {
			return nil, fmt.Errorf("httpclient: %s: relative url %q without a base url", c.name, req.URL)
		}
		req = req.Clone(req.Context())
		req.URL = c.baseURL.ResolveReference(req.URL)
		req.Host = ""
	}
	return c.http.Do(req)
}

// NewRequest creates a request for ref, resolved against the base URL.
func (c *Client) NewRequest(ctx context.Context, method, ref string, body io.Reader) (*http.Request, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("httpclient: %s: %w", c.name, err)
	}
	if !u.IsAbs() && c.baseURL != nil {
		u = c.baseURL.ResolveReference(u)
	}
	return http.NewRequestWithContext(ctx, method, u.String(), body)
}

// Get sends a GET request for ref.
func (c *Client) Get(ctx context.Context, ref string) (*http.Response, error) {
	req, err := c.NewRequest(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}
