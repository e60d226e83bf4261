package resilience

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// PresetDocument is the YAML form of a set of named presets:
//
//	presets:
//	  payments:
//	    timeout: {timeout: 20s}
//	    retry: {max_retries: 2, delay: 100ms, backoff: exponential}
//	    circuit_breaker: {max_failures: 3, break_duration: 15s}
//	    bulkhead: {max_concurrent: 10, max_queue: 20}
type PresetDocument struct {
	Presets map[string]PolicySpec `yaml:"presets"`
}

// PolicySpec is the YAML form of a policy set. Every section is optional.
type PolicySpec struct {
	Timeout         *TimeoutSpec        `yaml:"timeout"`
	Retry           *RetrySpec          `yaml:"retry"`
	CircuitBreaker  *CircuitBreakerSpec `yaml:"circuit_breaker"`
	AttemptTimeout  *TimeoutSpec        `yaml:"attempt_timeout"`
	Bulkhead        *BulkheadSpec       `yaml:"bulkhead"`
	RateLimit       *RateLimitSpec      `yaml:"rate_limit"`
	FallbackOnBreak *FallbackSpec       `yaml:"fallback_on_break"`
	Fallback        *FallbackSpec       `yaml:"fallback"`
}

// TimeoutSpec configures either timeout policy.
type TimeoutSpec struct {
	Timeout time.Duration `yaml:"timeout"`
	Order   *int          `yaml:"order"`
}

// RetrySpec configures the retry policy.
type RetrySpec struct {
	MaxRetries  *int          `yaml:"max_retries"` // nil means DefaultMaxRetries
	Delay       time.Duration `yaml:"delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
	Backoff     string        `yaml:"backoff"` // fixed|linear|exponential
	Multiplier  float64       `yaml:"multiplier"`
	Jitter      bool          `yaml:"jitter"`
	StatusCodes []int         `yaml:"status_codes"`
	Order       *int          `yaml:"order"`
}

// CircuitBreakerSpec configures the circuit breaker policy.
type CircuitBreakerSpec struct {
	MaxFailures      int           `yaml:"max_failures"`
	BreakDuration    time.Duration `yaml:"break_duration"`
	HalfOpenRequests int           `yaml:"half_open_requests"`
	FailureRatio     float64       `yaml:"failure_ratio"`
	SamplingWindow   time.Duration `yaml:"sampling_window"`
	MinThroughput    int           `yaml:"min_throughput"`
	Order            *int          `yaml:"order"`
}

// BulkheadSpec configures the bulkhead policy.
type BulkheadSpec struct {
	MaxConcurrent int           `yaml:"max_concurrent"`
	MaxQueue      int           `yaml:"max_queue"`
	MaxWait       time.Duration `yaml:"max_wait"`
	Order         *int          `yaml:"order"`
}

// RateLimitSpec configures the rate limit policy.
type RateLimitSpec struct {
	Rate    float64       `yaml:"rate"`
	Burst   int           `yaml:"burst"`
	MaxWait time.Duration `yaml:"max_wait"`
	Order   *int          `yaml:"order"`
}

// FallbackSpec configures a static fallback response.
type FallbackSpec struct {
	Status  int               `yaml:"status"`
	Body    string            `yaml:"body"`
	Headers map[string]string `yaml:"headers"`
	Order   *int              `yaml:"order"`
}

// ParseBackoff parses a backoff strategy name. The empty string is exponential.
func ParseBackoff(s string) (BackoffStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "exponential":
		return BackoffExponential, nil
	case "linear":
		return BackoffLinear, nil
	case "fixed", "constant":
		return BackoffConstant, nil
	default:
		return 0, configErr(KindRetry, "backoff", fmt.Sprintf("%q is unknown", s))
	}
}

// Definitions converts the spec into validated policy definitions.
func (s PolicySpec) Definitions() ([]PolicyDefinition, error) {
	var defs []PolicyDefinition
	add := func(def PolicyDefinition, order *int) {
		if order != nil {
			def = def.WithOrder(*order)
		}
		defs = append(defs, def)
	}

	if s.Timeout != nil {
		add(TimeoutOverallPolicy(s.Timeout.Timeout), s.Timeout.Order)
	}
	if r := s.Retry; r != nil {
		backoff, err := ParseBackoff(r.Backoff)
		if err != nil {
			return nil, err
		}
		retries := DefaultMaxRetries
		if r.MaxRetries != nil {
			retries = *r.MaxRetries
		}
		add(RetryPolicy(RetryOptions{
			MaxRetries:  retries,
			Delay:       r.Delay,
			MaxDelay:    r.MaxDelay,
			Backoff:     backoff,
			Multiplier:  r.Multiplier,
			Jitter:      r.Jitter,
			StatusCodes: r.StatusCodes,
		}), r.Order)
	}
	if c := s.CircuitBreaker; c != nil {
		add(CircuitBreakerPolicy(CircuitBreakerOptions{
			MaxFailures:      c.MaxFailures,
			BreakDuration:    c.BreakDuration,
			HalfOpenRequests: c.HalfOpenRequests,
			FailureRatio:     c.FailureRatio,
			SamplingWindow:   c.SamplingWindow,
			MinThroughput:    c.MinThroughput,
		}), c.Order)
	}
	if s.AttemptTimeout != nil {
		add(TimeoutPerAttemptPolicy(s.AttemptTimeout.Timeout), s.AttemptTimeout.Order)
	}
	if bh := s.Bulkhead; bh != nil {
		add(BulkheadPolicy(BulkheadOptions{
			MaxConcurrent: bh.MaxConcurrent,
			MaxQueue:      bh.MaxQueue,
			MaxWait:       bh.MaxWait,
		}), bh.Order)
	}
	if rl := s.RateLimit; rl != nil {
		add(RateLimitPolicy(RateLimitOptions{
			Rate:    rl.Rate,
			Burst:   rl.Burst,
			MaxWait: rl.MaxWait,
		}), rl.Order)
	}
	if f := s.FallbackOnBreak; f != nil {
		add(FallbackOnBreakPolicy(FallbackOptions{Action: f.action()}), f.Order)
	}
	if f := s.Fallback; f != nil {
		add(FallbackPolicy(FallbackOptions{Action: f.action()}), f.Order)
	}

	var errs []error
	for _, d := range defs {
		if err := d.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return defs, nil
}

// Apply adds the spec's definitions to b in its current layer.
func (s PolicySpec) Apply(b *Builder) error {
	defs, err := s.Definitions()
	if err != nil {
		return err
	}
	for _, d := range defs {
		b.Add(d)
	}
	return nil
}

func (f *FallbackSpec) action() FallbackAction {
	status := f.Status
	if status == 0 {
		status = http.StatusServiceUnavailable
	}
	var header http.Header
	if len(f.Headers) > 0 {
		header = make(http.Header, len(f.Headers))
		for k, v := range f.Headers {
			header.Set(k, v)
		}
	}
	return StaticResponse(status, f.Body, header)
}

// LoadPresets decodes a PresetDocument from r and registers each preset in
// registry. Nothing is registered if any preset is invalid.
func LoadPresets(r io.Reader, registry *PresetRegistry) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc PresetDocument
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: decode presets: %v", ErrInvalidConfig, err)
	}

	return RegisterPresets(registry, doc.Presets)
}

// RegisterPresets validates every spec and registers it under its name.
// Nothing is registered if any spec is invalid.
func RegisterPresets(registry *PresetRegistry, specs map[string]PolicySpec) error {
	names := make([]string, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	sort.Strings(names)

	sets := make(map[string][]PolicyDefinition, len(names))
	for _, name := range names {
		defs, err := specs[name].Definitions()
		if err != nil {
			return fmt.Errorf("preset %q: %w", name, err)
		}
		sets[name] = defs
	}

	for _, name := range names {
		defs := sets[name]
		if err := registry.Register(name, func(b *Builder) {
			for _, d := range defs {
				b.Add(d)
			}
		}); err != nil {
			return err
		}
	}
	return nil
}
