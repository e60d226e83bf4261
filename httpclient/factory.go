package httpclient

import (
	"context"
	"fmt"
	"sync"

	"github.com/jonwraymond/httpchain/health"
	"github.com/jonwraymond/httpchain/observe"
	"github.com/jonwraymond/httpchain/resilience"
	"github.com/jonwraymond/httpchain/secret"
)

// Factory builds and caches the clients of a Config.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Each client is built once, on first use.
type Factory struct {
	cfg      *Config
	presets  *resilience.PresetRegistry
	resolver *secret.Resolver
	observer observe.Observer
	opts     []Option
	health   *health.Aggregator

	mu      sync.Mutex
	clients map[string]*Client
}

// NewFactory prepares the presets, secret providers and observer of cfg.
// opts apply to every client after its configuration.
func NewFactory(ctx context.Context, cfg *Config, opts ...Option) (*Factory, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	presets := resilience.DefaultPresets()
	if err := resilience.RegisterPresets(presets, cfg.Presets); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	resolver := secret.NewResolver(true, secret.EnvProvider{})
	for i, sc := range cfg.Secrets {
		p, err := secret.DefaultRegistry.Create(sc.Type, sc.Options)
		if err != nil {
			return nil, fmt.Errorf("%w: secrets[%d]: %w", ErrInvalidConfig, i, err)
		}
		resolver.Register(p)
	}

	f := &Factory{
		cfg:      cfg,
		presets:  presets,
		resolver: resolver,
		opts:     opts,
		health:   health.NewAggregator(health.AggregatorConfig{}),
		clients:  make(map[string]*Client),
	}
	if cfg.Observe != nil {
		obs, err := observe.NewObserver(ctx, *cfg.Observe)
		if err != nil {
			return nil, fmt.Errorf("httpclient: observer: %w", err)
		}
		f.observer = obs
	}
	return f, nil
}

// Client returns the client configured under name.
func (f *Factory) Client(ctx context.Context, name string) (*Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.clients[name]; ok {
		return c, nil
	}
	cc, ok := f.cfg.Clients[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownClient, name)
	}

	opts := append([]Option{WithSecretResolver(f.resolver)}, f.opts...)
	c, err := newFromConfig(ctx, name, cc, f.presets, f.telemetry(cc), opts)
	if err != nil {
		return nil, err
	}
	f.clients[name] = c
	f.health.Register(name, health.PipelineChecker(name, c.Pipeline()))
	return c, nil
}

func (f *Factory) telemetry(cc ClientConfig) telemetry {
	if f.observer == nil {
		level := ""
		if cc.Logging != nil {
			level = cc.Logging.Level
		}
		return globalTelemetry(level)
	}
	return telemetry{
		logger: f.observer.Logger(),
		tracer: f.observer.Tracer(),
		meter:  f.observer.Meter(),
	}
}

// Names returns the configured client names in sorted order.
func (f *Factory) Names() []string {
	return sortedKeys(f.cfg.Clients)
}

// Health returns an aggregator holding a pipeline check for every client
// built so far.
func (f *Factory) Health() *health.Aggregator {
	return f.health
}

// Presets returns the registry holding the built-in and configured presets.
func (f *Factory) Presets() *resilience.PresetRegistry {
	return f.presets
}

// Shutdown flushes and stops the observer, if one was configured.
func (f *Factory) Shutdown(ctx context.Context) error {
	if f.observer == nil {
		return nil
	}
	if err := f.observer.Shutdown(ctx); err != nil {
		return fmt.Errorf("httpclient: shutdown: %w", err)
	}
	return nil
}
