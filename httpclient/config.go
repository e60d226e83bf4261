package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/httpchain/auth"
	"github.com/jonwraymond/httpchain/intercept"
	"github.com/jonwraymond/httpchain/observe"
	"github.com/jonwraymond/httpchain/resilience"
	"github.com/jonwraymond/httpchain/secret"
)

const instrumentationName = "github.com/jonwraymond/httpchain"

// Config describes a set of named clients.
type Config struct {
	// Observe creates the observer that clients with logging, metrics or
	// tracing enabled report to. Without it the global OpenTelemetry
	// providers and a stderr logger are used.
	Observe *observe.Config `yaml:"observe"`

	// Secrets lists secret providers for header and auth values. The env
	// provider is always available.
	Secrets []SecretConfig `yaml:"secrets"`

	// Presets are registered next to the built-in presets.
	Presets map[string]resilience.PolicySpec `yaml:"presets"`

	Clients map[string]ClientConfig `yaml:"clients"`
}

// SecretConfig selects a provider from secret.DefaultRegistry.
type SecretConfig struct {
	Type    string         `yaml:"type"`
	Options map[string]any `yaml:"options"`
}

// ClientConfig describes one client.
type ClientConfig struct {
	// BaseURL may reference environment variables and secrets. It is
	// checked once resolved.
	BaseURL string `yaml:"base_url"`

	// Timeout bounds a whole call. Zero means no limit.
	Timeout time.Duration `yaml:"timeout"`

	// Headers are added to requests lacking them. Values may reference
	// environment variables and secrets.
	Headers map[string]string `yaml:"headers"`

	// RequestID adds an X-Request-ID header to each request.
	RequestID bool `yaml:"request_id"`

	Auth    *AuthConfig    `yaml:"auth"`
	Logging *LoggingConfig `yaml:"logging"`
	Metrics bool           `yaml:"metrics"`
	Tracing bool           `yaml:"tracing"`

	// Preset names a built-in or configured preset.
	Preset string `yaml:"preset"`

	// Policies override the preset's definitions of the same kind.
	Policies *resilience.PolicySpec `yaml:"policies"`
}

// AuthConfig selects a source from auth.DefaultRegistry. String option
// values may reference environment variables and secrets.
type AuthConfig struct {
	Type    string         `yaml:"type"`
	Options map[string]any `yaml:"options"`
}

// LoggingConfig enables request logging.
type LoggingConfig struct {
	// Level applies when no observer is configured.
	// Default: "info"
	Level      string   `yaml:"level"`
	LogHeaders bool     `yaml:"log_headers"`
	SkipPaths  []string `yaml:"skip_paths"`
}

// LoadConfig reads and validates a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("httpclient: read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes and validates a YAML configuration. Unknown fields
// are rejected.
func ParseConfig(data []byte) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	cfg := &Config{}
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: decode: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the whole configuration and reports every problem.
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if c.Observe != nil {
		if err := c.Observe.Validate(); err != nil {
			fail("observe: %v", err)
		}
	}
	for i, s := range c.Secrets {
		if strings.TrimSpace(s.Type) == "" {
			fail("secrets[%d]: type is required", i)
		}
	}
	for _, name := range sortedKeys(c.Presets) {
		if _, err := c.Presets[name].Definitions(); err != nil {
			fail("preset %q: %v", name, err)
		}
	}
	for _, name := range sortedKeys(c.Clients) {
		if err := c.Clients[name].validate(); err != nil {
			fail("client %q: %v", name, err)
		}
	}
	return errors.Join(errs...)
}

func (cc ClientConfig) validate() error {
	var errs []error
	if cc.BaseURL != "" && !strings.Contains(cc.BaseURL, "$") && !strings.Contains(cc.BaseURL, "secretref:") {
		if _, err := parseBaseURL(cc.BaseURL); err != nil {
			errs = append(errs, err)
		}
	}
	if cc.Timeout < 0 {
		errs = append(errs, errors.New("timeout must not be negative"))
	}
	if cc.Auth != nil && strings.TrimSpace(cc.Auth.Type) == "" {
		errs = append(errs, errors.New("auth: type is required"))
	}
	if cc.Policies != nil {
		if _, err := cc.Policies.Definitions(); err != nil {
			errs = append(errs, fmt.Errorf("policies: %w", err))
		}
	}
	return errors.Join(errs...)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// telemetry is where configured clients send their signals.
type telemetry struct {
	logger observe.Logger
	tracer trace.Tracer
	meter  metric.Meter
}

func globalTelemetry(level string) telemetry {
	if level == "" {
		level = "info"
	}
	return telemetry{
		logger: observe.NewLogger(level),
		tracer: otel.Tracer(instrumentationName),
		meter:  otel.Meter(instrumentationName),
	}
}

// NewFromConfig builds the client name from cc. presets may be nil to use
// the built-in presets. Header and auth values are resolved with the
// resolver set by WithSecretResolver, or from the environment. opts are
// applied after the configuration.
func NewFromConfig(ctx context.Context, name string, cc ClientConfig, presets *resilience.PresetRegistry, opts ...Option) (*Client, error) {
	level := ""
	if cc.Logging != nil {
		level = cc.Logging.Level
	}
	return newFromConfig(ctx, name, cc, presets, globalTelemetry(level), opts)
}

func newFromConfig(ctx context.Context, name string, cc ClientConfig, presets *resilience.PresetRegistry, tel telemetry, opts []Option) (*Client, error) {
	if err := cc.validate(); err != nil {
		return nil, fmt.Errorf("%w: client %q: %v", ErrInvalidConfig, name, err)
	}

	resolver := newOptions(opts...).resolver
	if resolver == nil {
		resolver = secret.NewResolver(true, secret.EnvProvider{})
	}

	var cfgOpts []Option
	if presets != nil {
		cfgOpts = append(cfgOpts, WithPresetRegistry(presets))
	}
	if cc.BaseURL != "" {
		base, err := resolver.ResolveValue(ctx, cc.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("%w: client %q: base_url: %w", ErrInvalidConfig, name, err)
		}
		cfgOpts = append(cfgOpts, WithBaseURL(base))
	}
	if cc.Timeout > 0 {
		cfgOpts = append(cfgOpts, WithTimeout(cc.Timeout))
	}
	if len(cc.Headers) > 0 || cc.RequestID {
		cfgOpts = append(cfgOpts, WithHeaders(intercept.HeadersConfig{
			Static:    cc.Headers,
			Resolver:  resolver,
			RequestID: cc.RequestID,
		}))
	}
	if cc.Auth != nil {
		resolved, err := resolveOptions(ctx, resolver, cc.Auth.Options)
		if err != nil {
			return nil, fmt.Errorf("%w: client %q: auth: %w", ErrInvalidConfig, name, err)
		}
		source, err := auth.DefaultRegistry.Create(cc.Auth.Type, resolved)
		if err != nil {
			return nil, fmt.Errorf("%w: client %q: auth: %w", ErrInvalidConfig, name, err)
		}
		cfgOpts = append(cfgOpts, WithAuth(source))
	}
	if cc.Logging != nil {
		logger := observe.NewRequestLogger(tel.logger, observe.RequestLogConfig{LogHeaders: cc.Logging.LogHeaders})
		cfgOpts = append(cfgOpts,
			WithLogging(logger, intercept.LoggingConfig{SkipPaths: cc.Logging.SkipPaths}),
			WithDiagnostics(resilience.LoggingDiagnostics(tel.logger)),
		)
	}
	if cc.Metrics {
		m, err := observe.NewMetrics(tel.meter)
		if err != nil {
			return nil, fmt.Errorf("httpclient: client %q: metrics: %w", name, err)
		}
		diag, err := resilience.MetricsDiagnostics(tel.meter, name)
		if err != nil {
			return nil, fmt.Errorf("httpclient: client %q: diagnostics: %w", name, err)
		}
		cfgOpts = append(cfgOpts, WithMetrics(m), WithDiagnostics(diag))
	}
	if cc.Tracing {
		cfgOpts = append(cfgOpts, WithTracing(observe.NewTracer(tel.tracer), nil))
	}
	if cc.Preset != "" {
		cfgOpts = append(cfgOpts, WithPreset(cc.Preset))
	}
	if cc.Policies != nil {
		defs, err := cc.Policies.Definitions()
		if err != nil {
			return nil, fmt.Errorf("%w: client %q: policies: %w", ErrInvalidConfig, name, err)
		}
		cfgOpts = append(cfgOpts, WithPolicies(defs...))
	}

	return New(name, append(cfgOpts, opts...)...)
}

// resolveOptions resolves every string in opts, including those nested in
// maps and lists.
func resolveOptions(ctx context.Context, r *secret.Resolver, opts map[string]any) (map[string]any, error) {
	if opts == nil {
		return nil, nil
	}
	out := make(map[string]any, len(opts))
	for k, v := range opts {
		resolved, err := resolveAny(ctx, r, v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		out[k] = resolved
	}
	return out, nil
}

func resolveAny(ctx context.Context, r *secret.Resolver, v any) (any, error) {
	switch val := v.(type) {
	case string:
		return r.ResolveValue(ctx, val)
	case map[string]any:
		return resolveOptions(ctx, r, val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			resolved, err := resolveAny(ctx, r, item)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return v, nil
	}
}
