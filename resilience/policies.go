package resilience

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// Context keys private to the built-in policies.
const (
	keyOverallBudget   = "resilience.overall_budget"
	keyOverallReported = "resilience.overall_reported"
	keyAttemptBudget   = "resilience.attempt_budget"
)

// overallBudget is the per-request deadline shared by every entry into an
// overall timeout policy.
type overallBudget struct {
	deadline time.Time
	timeout  time.Duration
}

func overallBudgetOf(rc *Context) (overallBudget, bool) {
	v, ok := rc.Get(keyOverallBudget)
	if !ok {
		return overallBudget{}, false
	}
	b, ok := v.(overallBudget)
	return b, ok
}

// expireOverall reports the overall timeout once per request and returns
// its error.
func expireOverall(rc *Context, diag Diagnostics, b overallBudget) error {
	if rc.once(keyOverallReported) {
		diag.OnTimeout(rc.Request(), b.timeout)
	}
	return &TimeoutError{Scope: ScopeOverall, Timeout: b.timeout}
}

func (o TimeoutOptions) build(kind Kind, diag Diagnostics, env *compileEnv) Policy {
	if kind == KindTimeoutOverall {
		return overallTimeout(o.Timeout, diag)
	}
	if env.retryInside {
		// The retry nested inside applies the budget to each of its attempts.
		return func(next Handler) Handler {
			return func(ctx context.Context, rc *Context) (*http.Response, error) {
				rc.Set(keyAttemptBudget, o.Timeout)
				return next(ctx, rc)
			}
		}
	}
	return func(next Handler) Handler {
		return func(ctx context.Context, rc *Context) (*http.Response, error) {
			return boundAttempt(ctx, rc, next, diag, o.Timeout)
		}
	}
}

func overallTimeout(timeout time.Duration, diag Diagnostics) Policy {
	return func(next Handler) Handler {
		return func(ctx context.Context, rc *Context) (*http.Response, error) {
			b := rc.loadOrStore(keyOverallBudget, overallBudget{
				deadline: time.Now().Add(timeout),
				timeout:  timeout,
			}).(overallBudget)

			remaining := time.Until(b.deadline)
			if remaining <= 0 {
				return nil, expireOverall(rc, diag, b)
			}

			resp, err := within(ctx, remaining, func(ctx context.Context) (*http.Response, error) {
				return next(ctx, rc)
			}, drain, holdBody)
			if errors.Is(err, errExpired) {
				return nil, expireOverall(rc, diag, b)
			}
			return resp, err
		}
	}
}

// boundAttempt runs next under a per-attempt timeout.
func boundAttempt(ctx context.Context, rc *Context, next Handler, diag Diagnostics, timeout time.Duration) (*http.Response, error) {
	resp, err := within(ctx, timeout, func(ctx context.Context) (*http.Response, error) {
		return next(ctx, rc)
	}, drain, holdBody)
	if errors.Is(err, errExpired) {
		diag.OnTimeout(rc.Request(), timeout)
		return nil, &TimeoutError{Scope: ScopeAttempt, Timeout: timeout}
	}
	return resp, err
}

func (o RetryOptions) predicate() Predicate {
	switch {
	case o.ShouldHandle != nil:
		return o.ShouldHandle
	case len(o.StatusCodes) > 0:
		return StatusIn(o.StatusCodes...)
	default:
		return IsTransient
	}
}

func (o RetryOptions) build(_ Kind, diag Diagnostics, _ *compileEnv) Policy {
	o = o.withDefaults()
	handle := o.predicate()

	engine := NewRetry(RetryConfig{
		MaxAttempts:  o.MaxRetries + 1,
		InitialDelay: o.Delay,
		MaxDelay:     o.MaxDelay,
		Multiplier:   o.Multiplier,
		Strategy:     o.Backoff,
		Jitter:       o.Jitter,
		RetryIf: func(err error) bool {
			var se *StatusError
			if errors.As(err, &se) {
				return true // already accepted by handle
			}
			return handle(nil, err)
		},
	})

	return func(next Handler) Handler {
		return func(ctx context.Context, rc *Context) (*http.Response, error) {
			rctx, cancel := context.WithCancelCause(ctx)

			var (
				last  *http.Response
				timer *time.Timer
				held  bool
			)
			defer func() {
				if timer != nil {
					timer.Stop()
				}
				if !held {
					cancel(nil)
				}
			}()

			err := engine.Do(rctx, func(actx context.Context, attempt int) error {
				drain(last)
				last = nil

				if attempt > 1 {
					if b, ok := overallBudgetOf(rc); ok && !time.Now().Before(b.deadline) {
						return expireOverall(rc, diag, b)
					}
				}

				resp, err := runAttempt(actx, rc, next, diag)

				// An overall timeout nested inside also bounds the delays between attempts.
				if timer == nil {
					if b, ok := overallBudgetOf(rc); ok {
						timer = time.AfterFunc(time.Until(b.deadline), func() {
							cancel(&TimeoutError{Scope: ScopeOverall, Timeout: b.timeout})
						})
					}
				}

				if err != nil {
					return err
				}
				last = resp
				if handle(resp, nil) {
					return &StatusError{StatusCode: resp.StatusCode}
				}
				return nil
			}, func(attempt int, err error, _ time.Duration) {
				diag.OnRetry(rc.Request(), attempt, err)
			})

			if err != nil && ctx.Err() == nil {
				var te *TimeoutError
				if errors.As(context.Cause(rctx), &te) {
					drain(last)
					b, _ := overallBudgetOf(rc)
					return nil, expireOverall(rc, diag, b)
				}
			}

			var se *StatusError
			if err == nil || (errors.As(err, &se) && last != nil) {
				held = holdBody(last, func() { cancel(nil) })
				return last, nil
			}
			drain(last)
			return nil, err
		}
	}
}

// runAttempt invokes next once, applying a per-attempt budget published by
// an enclosing timeout policy.
func runAttempt(ctx context.Context, rc *Context, next Handler, diag Diagnostics) (*http.Response, error) {
	v, ok := rc.Get(keyAttemptBudget)
	if !ok {
		return next(ctx, rc)
	}
	timeout, _ := v.(time.Duration)
	if timeout <= 0 {
		return next(ctx, rc)
	}
	return boundAttempt(ctx, rc, next, diag, timeout)
}

func (o CircuitBreakerOptions) build(_ Kind, diag Diagnostics, env *compileEnv) Policy {
	handle := o.ShouldHandle
	if handle == nil {
		handle = func(resp *http.Response, err error) bool {
			return IsFailure(resp, err) && !IsRejection(err)
		}
	}

	cb := NewCircuitBreaker(CircuitBreakerConfig{
		MaxFailures:         o.MaxFailures,
		ResetTimeout:        o.BreakDuration,
		HalfOpenMaxRequests: o.HalfOpenRequests,
		FailureRatio:        o.FailureRatio,
		SamplingWindow:      o.SamplingWindow,
		MinThroughput:       o.MinThroughput,
	})
	env.breaker = cb

	return func(next Handler) Handler {
		return func(ctx context.Context, rc *Context) (*http.Response, error) {
			if err := cb.Allow(); err != nil {
				rc.Set(KeyCircuitRejected, true)
				return nil, err
			}

			resp, err := next(ctx, rc)
			if rc.Canceled() || IsCancellation(err) {
				cb.Abandon()
				return resp, err
			}

			tr := cb.Record(handle(resp, err))
			if tr.Opened() {
				diag.OnCircuitBreak(rc.Request(), outcomeErr(resp, err))
			}
			if tr.Reset() {
				diag.OnCircuitReset(rc.Request())
			}
			return resp, err
		}
	}
}

func (o BulkheadOptions) build(_ Kind, diag Diagnostics, env *compileEnv) Policy {
	bh := NewBulkhead(BulkheadConfig{
		MaxConcurrent: o.MaxConcurrent,
		MaxQueue:      o.MaxQueue,
		MaxWait:       o.MaxWait,
	})
	env.bulkhead = bh

	return func(next Handler) Handler {
		return func(ctx context.Context, rc *Context) (*http.Response, error) {
			if err := bh.Acquire(ctx); err != nil {
				if errors.Is(err, ErrBulkheadFull) {
					diag.OnBulkheadRejected(rc.Request(), err)
				}
				return nil, err
			}
			defer bh.Release()

			return next(ctx, rc)
		}
	}
}

func (o RateLimitOptions) build(_ Kind, diag Diagnostics, env *compileEnv) Policy {
	rl := NewRateLimiter(RateLimiterConfig{
		Rate:        o.Rate,
		Burst:       o.Burst,
		WaitOnLimit: o.MaxWait > 0,
		MaxWait:     o.MaxWait,
	})
	env.limiter = rl

	return func(next Handler) Handler {
		return func(ctx context.Context, rc *Context) (*http.Response, error) {
			if err := rl.Acquire(ctx); err != nil {
				if errors.Is(err, ErrRateLimitExceeded) {
					diag.OnBulkheadRejected(rc.Request(), err)
				}
				return nil, err
			}
			return next(ctx, rc)
		}
	}
}

func (o CustomOptions) build(_ Kind, diag Diagnostics, _ *compileEnv) Policy {
	if p := o.Build(diag); p != nil {
		return p
	}
	return func(next Handler) Handler { return next }
}
