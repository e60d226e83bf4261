package resilience

import (
	"context"
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed means the circuit is operating normally.
	StateClosed State = iota
	// StateOpen means the circuit is blocking all requests.
	StateOpen
	// StateHalfOpen means the circuit is testing if the service recovered.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Transition is a state change produced by recording an outcome.
type Transition struct {
	From State
	To   State
}

// Changed reports whether the state actually moved.
func (t Transition) Changed() bool {
	return t.From != t.To
}

// Opened reports whether the transition tripped the circuit.
func (t Transition) Opened() bool {
	return t.To == StateOpen && t.From != StateOpen
}

// Reset reports whether a probe closed the circuit.
func (t Transition) Reset() bool {
	return t.From == StateHalfOpen && t.To == StateClosed
}

// CircuitBreakerConfig configures the circuit breaker.
//
// The circuit trips in one of two modes. With FailureRatio zero it opens after
// MaxFailures consecutive failures. With FailureRatio set it samples outcomes
// over SamplingWindow and opens once at least MinThroughput calls were seen
// and the failure share reaches FailureRatio.
type CircuitBreakerConfig struct {
	// MaxFailures is the number of consecutive failures before opening the circuit.
	// Default: 5
	MaxFailures int

	// ResetTimeout is how long the circuit stays open before a probe is allowed.
	// Default: 30 seconds
	ResetTimeout time.Duration

	// HalfOpenMaxRequests is the max requests allowed in half-open state.
	// Default: 1
	HalfOpenMaxRequests int

	// FailureRatio enables sampled mode when in (0, 1].
	FailureRatio float64

	// SamplingWindow is the length of one sampling period.
	// Default: 30 seconds (sampled mode only)
	SamplingWindow time.Duration

	// MinThroughput is the fewest calls in a window that may trip the circuit.
	// Default: 10 (sampled mode only)
	MinThroughput int

	// OnStateChange is called when the circuit state changes.
	// It runs with the breaker lock held and must not call back into it.
	OnStateChange func(from, to State)

	// IsFailure determines if an error should count as a failure.
	// Default: all non-nil errors are failures.
	IsFailure func(err error) bool

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// CircuitBreaker implements the circuit breaker pattern.
type CircuitBreaker struct {
	config CircuitBreakerConfig

	mu            sync.Mutex
	state         State
	failures      int
	successes     int
	samples       int
	windowStart   time.Time
	openedAt      time.Time
	lastFailure   time.Time
	halfOpenCount int
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.MaxFailures <= 0 {
		config.MaxFailures = 5
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 30 * time.Second
	}
	if config.HalfOpenMaxRequests <= 0 {
		config.HalfOpenMaxRequests = 1
	}
	if config.FailureRatio > 0 {
		if config.SamplingWindow <= 0 {
			config.SamplingWindow = 30 * time.Second
		}
		if config.MinThroughput <= 0 {
			config.MinThroughput = 10
		}
	}
	if config.IsFailure == nil {
		config.IsFailure = func(err error) bool { return err != nil }
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return &CircuitBreaker{
		config:      config,
		state:       StateClosed,
		windowStart: config.Now(),
	}
}

// Execute runs the operation through the circuit breaker. Cancellation of ctx
// is not counted as an outcome.
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := cb.Allow(); err != nil {
		return err
	}

	err := op(ctx)
	if ctx.Err() != nil && err != nil {
		cb.Abandon()
		return err
	}
	cb.Record(cb.config.IsFailure(err))
	return err
}

// Allow admits a call or returns ErrCircuitOpen. Every admitted call must be
// followed by exactly one Record or Abandon.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.currentStateLocked() {
	case StateOpen:
		return ErrCircuitOpen
	case StateHalfOpen:
		if cb.halfOpenCount >= cb.config.HalfOpenMaxRequests {
			return ErrCircuitOpen
		}
		cb.halfOpenCount++
	}

	return nil
}

// Record registers the outcome of an admitted call and returns the resulting
// state change.
func (cb *CircuitBreaker) Record(failure bool) Transition {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.config.Now()
	from := cb.state

	switch cb.state {
	case StateClosed:
		if cb.config.FailureRatio > 0 {
			cb.sampleLocked(now, failure)
		} else {
			cb.countLocked(now, failure)
		}

	case StateHalfOpen:
		if cb.halfOpenCount > 0 {
			cb.halfOpenCount--
		}
		if failure {
			cb.lastFailure = now
			cb.openLocked(now)
		} else {
			cb.successes++
			cb.closeLocked(now)
		}

	case StateOpen:
		// A call admitted before the circuit opened finished late.
		if failure {
			cb.lastFailure = now
		}
	}

	tr := Transition{From: from, To: cb.state}
	if tr.Changed() && cb.config.OnStateChange != nil {
		cb.config.OnStateChange(tr.From, tr.To)
	}
	return tr
}

// Abandon releases an admitted call without recording an outcome, so a
// canceled half-open probe does not hold the probe slot.
func (cb *CircuitBreaker) Abandon() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen && cb.halfOpenCount > 0 {
		cb.halfOpenCount--
	}
}

func (cb *CircuitBreaker) countLocked(now time.Time, failure bool) {
	if !failure {
		cb.failures = 0
		cb.successes++
		return
	}
	cb.failures++
	cb.lastFailure = now
	if cb.failures >= cb.config.MaxFailures {
		cb.openLocked(now)
	}
}

func (cb *CircuitBreaker) sampleLocked(now time.Time, failure bool) {
	if now.Sub(cb.windowStart) >= cb.config.SamplingWindow {
		cb.windowStart = now
		cb.samples = 0
		cb.failures = 0
		cb.successes = 0
	}

	cb.samples++
	if failure {
		cb.failures++
		cb.lastFailure = now
	} else {
		cb.successes++
	}

	if cb.samples < cb.config.MinThroughput {
		return
	}
	if float64(cb.failures)/float64(cb.samples) >= cb.config.FailureRatio {
		cb.openLocked(now)
	}
}

func (cb *CircuitBreaker) openLocked(now time.Time) {
	cb.state = StateOpen
	cb.openedAt = now
	cb.halfOpenCount = 0
}

func (cb *CircuitBreaker) closeLocked(now time.Time) {
	cb.state = StateClosed
	cb.failures = 0
	cb.successes = 0
	cb.samples = 0
	cb.windowStart = now
	cb.halfOpenCount = 0
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentStateLocked()
}

// Reset resets the circuit breaker to closed state.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	oldState := cb.state
	cb.closeLocked(cb.config.Now())

	if oldState != StateClosed && cb.config.OnStateChange != nil {
		cb.config.OnStateChange(oldState, StateClosed)
	}
}

func (cb *CircuitBreaker) currentStateLocked() State {
	if cb.state == StateOpen && cb.config.Now().Sub(cb.openedAt) >= cb.config.ResetTimeout {
		cb.state = StateHalfOpen
		cb.halfOpenCount = 0
		if cb.config.OnStateChange != nil {
			cb.config.OnStateChange(StateOpen, StateHalfOpen)
		}
	}
	return cb.state
}

// Metrics returns current circuit breaker metrics.
func (cb *CircuitBreaker) Metrics() CircuitBreakerMetrics {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return CircuitBreakerMetrics{
		State:       cb.currentStateLocked(),
		Failures:    cb.failures,
		Successes:   cb.successes,
		Samples:     cb.samples,
		LastFailure: cb.lastFailure,
	}
}

// CircuitBreakerMetrics contains circuit breaker statistics.
type CircuitBreakerMetrics struct {
	State       State
	Failures    int
	Successes   int
	Samples     int
	LastFailure time.Time
}
