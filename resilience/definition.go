package resilience

import (
	"strings"
	"time"
)

// PolicyDefinition describes one resiliency behavior and where it nests.
// Definitions are values; building one does not modify it.
type PolicyDefinition struct {
	Kind   Kind
	Order  int
	Params Parameters
}

// Parameters carries the kind-specific settings of a definition. It is
// implemented by the option types of this package only.
type Parameters interface {
	validate(kind Kind) error
	build(kind Kind, diag Diagnostics, env *compileEnv) Policy
}

// compileEnv carries what a definition needs to know about the pipeline it
// is compiled into, and collects the stateful engines it creates.
type compileEnv struct {
	// retryInside is set once a Retry has been placed closer to the transport.
	retryInside bool

	breaker  *CircuitBreaker
	bulkhead *Bulkhead
	limiter  *RateLimiter
}

// Name returns the merge key of the definition: the kind name, or the
// policy name for custom definitions.
func (d PolicyDefinition) Name() string {
	if c, ok := d.Params.(CustomOptions); ok && d.Kind == KindCustom {
		return c.Name
	}
	return d.Kind.String()
}

// WithOrder returns a copy of d with a different order.
func (d PolicyDefinition) WithOrder(order int) PolicyDefinition {
	d.Order = order
	return d
}

// Validate reports the first problem with d as a *ConfigError.
func (d PolicyDefinition) Validate() error {
	if d.Params == nil {
		return configErr(d.Kind, "parameters", "are required")
	}
	return d.Params.validate(d.Kind)
}

// BuildPolicy validates d and returns its policy. diag receives the policy's
// events; nil means no diagnostics. Stateful policies (circuit breaker,
// bulkhead, rate limit) get fresh state on every call.
func (d PolicyDefinition) BuildPolicy(diag Diagnostics) (Policy, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d.Params.build(d.Kind, guard(diag), &compileEnv{}), nil
}

// DefaultMaxRetries is the retry count presets use when none is given.
const DefaultMaxRetries = 3

// RetryOptions configures a Retry policy.
type RetryOptions struct {
	// MaxRetries is the number of retries after the first attempt. Zero
	// disables retrying; presets use DefaultMaxRetries.
	MaxRetries int

	// Delay is the base delay before the first retry.
	// Default: 200ms
	Delay time.Duration

	// MaxDelay caps a single delay.
	// Default: 30s
	MaxDelay time.Duration

	// Backoff selects how delays grow.
	// Default: BackoffExponential
	Backoff BackoffStrategy

	// Multiplier is the exponential growth factor.
	// Default: 2.0
	Multiplier float64

	// Jitter randomizes each delay by up to 25%.
	Jitter bool

	// StatusCodes, when set, replaces the transient status set (408, 429, 5xx).
	StatusCodes []int

	// ShouldHandle decides which outcomes are retried. It takes precedence
	// over StatusCodes.
	// Default: IsTransient
	ShouldHandle Predicate
}

// TimeoutOptions configures the overall and per-attempt timeout policies.
type TimeoutOptions struct {
	// Timeout is required and must be positive.
	Timeout time.Duration
}

// CircuitBreakerOptions configures a CircuitBreaker policy.
type CircuitBreakerOptions struct {
	// MaxFailures is the consecutive failure threshold.
	// Default: 5
	MaxFailures int

	// BreakDuration is how long the circuit stays open.
	// Default: 30s
	BreakDuration time.Duration

	// HalfOpenRequests is the number of probes allowed while half-open.
	// Default: 1
	HalfOpenRequests int

	// FailureRatio switches to sampled mode when in (0, 1].
	FailureRatio float64

	// SamplingWindow is the sampled mode period.
	// Default: 30s
	SamplingWindow time.Duration

	// MinThroughput is the sampled mode minimum call count.
	// Default: 10
	MinThroughput int

	// ShouldHandle decides which outcomes count as failures.
	// Default: IsFailure, excluding admission rejections
	ShouldHandle Predicate
}

// BulkheadOptions configures a Bulkhead policy.
type BulkheadOptions struct {
	// MaxConcurrent is the number of calls allowed in flight.
	// Default: 10
	MaxConcurrent int

	// MaxQueue is the number of calls allowed to wait for a slot.
	// Default: 0
	MaxQueue int

	// MaxWait bounds how long a queued call waits.
	// Default: 0 (until the context is done)
	MaxWait time.Duration
}

// RateLimitOptions configures a RateLimit policy.
type RateLimitOptions struct {
	// Rate is the sustained number of calls per second. Required.
	Rate float64

	// Burst is the bucket size.
	// Default: 10
	Burst int

	// MaxWait lets a call wait up to this long for a token. Zero rejects
	// immediately.
	MaxWait time.Duration
}

// CustomOptions configures a user-supplied policy.
type CustomOptions struct {
	// Name identifies the policy; it is the merge key.
	Name string

	// Build creates the policy. It may return nil for a pass-through.
	Build func(diag Diagnostics) Policy
}

// TimeoutOverallPolicy bounds the total time of a request across all retries.
func TimeoutOverallPolicy(timeout time.Duration) PolicyDefinition {
	return PolicyDefinition{Kind: KindTimeoutOverall, Order: OrderTimeoutOverall, Params: TimeoutOptions{Timeout: timeout}}
}

// TimeoutPerAttemptPolicy bounds each attempt separately.
func TimeoutPerAttemptPolicy(timeout time.Duration) PolicyDefinition {
	return PolicyDefinition{Kind: KindTimeoutPerAttempt, Order: OrderTimeoutPerAttempt, Params: TimeoutOptions{Timeout: timeout}}
}

// RetryPolicy re-invokes the inner pipeline on transient faults.
func RetryPolicy(opts RetryOptions) PolicyDefinition {
	return PolicyDefinition{Kind: KindRetry, Order: OrderRetry, Params: opts}
}

// CircuitBreakerPolicy fails fast while the downstream keeps failing.
func CircuitBreakerPolicy(opts CircuitBreakerOptions) PolicyDefinition {
	return PolicyDefinition{Kind: KindCircuitBreaker, Order: OrderCircuitBreaker, Params: opts}
}

// BulkheadPolicy caps concurrent calls.
func BulkheadPolicy(opts BulkheadOptions) PolicyDefinition {
	return PolicyDefinition{Kind: KindBulkhead, Order: OrderBulkhead, Params: opts}
}

// RateLimitPolicy caps the call rate with a token bucket.
func RateLimitPolicy(opts RateLimitOptions) PolicyDefinition {
	return PolicyDefinition{Kind: KindRateLimit, Order: OrderRateLimit, Params: opts}
}

// FallbackPolicy substitutes a result when the inner pipeline fails.
func FallbackPolicy(opts FallbackOptions) PolicyDefinition {
	return PolicyDefinition{Kind: KindFallback, Order: OrderFallback, Params: opts}
}

// FallbackOnBreakPolicy substitutes a result when the circuit is open.
func FallbackOnBreakPolicy(opts FallbackOptions) PolicyDefinition {
	return PolicyDefinition{Kind: KindFallbackOnBreak, Order: OrderFallbackOnBreak, Params: opts}
}

// CustomPolicy inserts user middleware at an explicit order.
func CustomPolicy(name string, order int, build func(diag Diagnostics) Policy) PolicyDefinition {
	return PolicyDefinition{Kind: KindCustom, Order: order, Params: CustomOptions{Name: name, Build: build}}
}

func (o RetryOptions) withDefaults() RetryOptions {
	if o.Delay == 0 {
		o.Delay = 200 * time.Millisecond
	}
	if o.MaxDelay == 0 {
		o.MaxDelay = 30 * time.Second
	}
	if o.Multiplier == 0 {
		o.Multiplier = 2.0
	}
	return o
}

func (o RetryOptions) validate(kind Kind) error {
	if kind != KindRetry {
		return configErr(kind, "parameters", "must not be retry options")
	}
	switch {
	case o.MaxRetries < 0:
		return configErr(kind, "max_retries", "must not be negative")
	case o.Delay < 0:
		return configErr(kind, "delay", "must not be negative")
	case o.MaxDelay < 0:
		return configErr(kind, "max_delay", "must not be negative")
	case o.Multiplier < 0:
		return configErr(kind, "multiplier", "must not be negative")
	case o.Backoff < BackoffExponential || o.Backoff > BackoffConstant:
		return configErr(kind, "backoff", "is unknown")
	}
	for _, code := range o.StatusCodes {
		if code < 100 || code > 599 {
			return configErr(kind, "status_codes", "must be valid HTTP status codes")
		}
	}
	return nil
}

func (o TimeoutOptions) validate(kind Kind) error {
	if kind != KindTimeoutOverall && kind != KindTimeoutPerAttempt {
		return configErr(kind, "parameters", "must not be timeout options")
	}
	if o.Timeout <= 0 {
		return configErr(kind, "timeout", "must be positive")
	}
	return nil
}

func (o CircuitBreakerOptions) validate(kind Kind) error {
	if kind != KindCircuitBreaker {
		return configErr(kind, "parameters", "must not be circuit breaker options")
	}
	switch {
	case o.MaxFailures < 0:
		return configErr(kind, "max_failures", "must not be negative")
	case o.BreakDuration < 0:
		return configErr(kind, "break_duration", "must not be negative")
	case o.HalfOpenRequests < 0:
		return configErr(kind, "half_open_requests", "must not be negative")
	case o.FailureRatio < 0 || o.FailureRatio > 1:
		return configErr(kind, "failure_ratio", "must be between 0 and 1")
	case o.SamplingWindow < 0:
		return configErr(kind, "sampling_window", "must not be negative")
	case o.MinThroughput < 0:
		return configErr(kind, "min_throughput", "must not be negative")
	}
	return nil
}

func (o BulkheadOptions) validate(kind Kind) error {
	if kind != KindBulkhead {
		return configErr(kind, "parameters", "must not be bulkhead options")
	}
	switch {
	case o.MaxConcurrent < 0:
		return configErr(kind, "max_concurrent", "must not be negative")
	case o.MaxQueue < 0:
		return configErr(kind, "max_queue", "must not be negative")
	case o.MaxWait < 0:
		return configErr(kind, "max_wait", "must not be negative")
	}
	return nil
}

func (o RateLimitOptions) validate(kind Kind) error {
	if kind != KindRateLimit {
		return configErr(kind, "parameters", "must not be rate limit options")
	}
	switch {
	case o.Rate <= 0:
		return configErr(kind, "rate", "must be positive")
	case o.Burst < 0:
		return configErr(kind, "burst", "must not be negative")
	case o.MaxWait < 0:
		return configErr(kind, "max_wait", "must not be negative")
	}
	return nil
}

func (o CustomOptions) validate(kind Kind) error {
	if kind != KindCustom {
		return configErr(kind, "parameters", "must not be custom options")
	}
	if strings.TrimSpace(o.Name) == "" {
		return configErr(kind, "name", "is required")
	}
	if _, builtin := ParseKind(o.Name); builtin {
		return configErr(kind, "name", "must not be a built-in kind name")
	}
	if o.Build == nil {
		return configErr(kind, "build", "is required")
	}
	return nil
}
