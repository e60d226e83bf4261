package resilience

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

// ConfigureFunc populates a builder with the definitions of a preset.
type ConfigureFunc func(b *Builder)

// Preset is a named, reusable policy configuration.
type Preset struct {
	name      string
	configure ConfigureFunc
}

// Name returns the name the preset was registered under.
func (p *Preset) Name() string {
	return p.name
}

// Configure adds the preset's definitions to b as its preset layer.
func (p *Preset) Configure(b *Builder) {
	prev := b.mode
	b.mode = layerPreset
	defer func() { b.mode = prev }()
	p.configure(b)
}

// PresetRegistry maps preset names to configuration functions. Names are
// matched case-insensitively.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Registering a name twice is allowed; looking it up afterwards fails
//   with ErrPresetAmbiguous.
type PresetRegistry struct {
	mu      sync.RWMutex
	presets []*Preset
}

// NewPresetRegistry returns an empty registry.
func NewPresetRegistry() *PresetRegistry {
	return &PresetRegistry{}
}

// Register adds a preset.
func (r *PresetRegistry) Register(name string, fn ConfigureFunc) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: preset name is required", ErrInvalidConfig)
	}
	if fn == nil {
		return fmt.Errorf("%w: preset %q has no configure function", ErrInvalidConfig, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.presets = append(r.presets, &Preset{name: name, configure: fn})
	return nil
}

// Get returns the preset registered under name.
func (r *PresetRegistry) Get(name string) (*Preset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var found *Preset
	for _, p := range r.presets {
		if !strings.EqualFold(p.name, name) {
			continue
		}
		if found != nil {
			return nil, fmt.Errorf("%w: %q", ErrPresetAmbiguous, name)
		}
		found = p
	}
	if found == nil {
		return nil, fmt.Errorf("%w: %q", ErrPresetNotFound, name)
	}
	return found, nil
}

// Names returns the registered names in sorted order.
func (r *PresetRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.presets))
	for _, p := range r.presets {
		names = append(names, p.name)
	}
	sort.Strings(names)
	return names
}

// Built-in preset names.
const (
	PresetStandard = "standard"
	PresetCritical = "critical"
)

// DefaultPresets returns a registry holding the built-in presets.
//
// standard: 30s overall timeout, 3 exponential retries, a breaker opening
// after 5 consecutive failures for 30s and a 10s attempt timeout.
//
// critical: standard plus a bulkhead of 20 calls with a queue of 50 and a
// fallback answering 503 while the circuit is open.
func DefaultPresets() *PresetRegistry {
	r := NewPresetRegistry()
	_ = r.Register(PresetStandard, standardPreset)
	_ = r.Register(PresetCritical, func(b *Builder) {
		standardPreset(b)
		b.Add(BulkheadPolicy(BulkheadOptions{MaxConcurrent: 20, MaxQueue: 50, MaxWait: 5 * time.Second}))
		b.Add(FallbackOnBreakPolicy(FallbackOptions{
			Action: StaticResponse(http.StatusServiceUnavailable, "circuit open", nil),
		}))
	})
	return r
}

func standardPreset(b *Builder) {
	b.Add(TimeoutOverallPolicy(30 * time.Second))
	b.Add(RetryPolicy(RetryOptions{
		MaxRetries: DefaultMaxRetries,
		Delay:      200 * time.Millisecond,
		Backoff:    BackoffExponential,
		Jitter:     true,
	}))
	b.Add(CircuitBreakerPolicy(CircuitBreakerOptions{
		MaxFailures:   5,
		BreakDuration: 30 * time.Second,
	}))
	b.Add(TimeoutPerAttemptPolicy(10 * time.Second))
}
