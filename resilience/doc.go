// Package resilience composes resiliency policies around outgoing HTTP calls.
//
// A policy set is described by PolicyDefinition values (overall timeout,
// retry, circuit breaker, per-attempt timeout, bulkhead, rate limit,
// fallback on break, fallback and custom middleware), merged by a Builder
// from a named Preset and explicit overrides, and compiled into a Pipeline.
//
// # Nesting
//
// Every definition has an order. Compile nests definitions so that the
// lowest order runs closest to the transport and the highest order is the
// outermost wrapper. Ties nest the earlier registered definition closer to
// the transport. The default orders are:
//
//	timeout_overall       0
//	retry               100
//	circuit_breaker     200
//	timeout_per_attempt 300
//	bulkhead            300
//	rate_limit          350
//	fallback_on_break   400
//	fallback            500
//
// The overall timeout stores its deadline in the per-request Context on
// first entry, so every retry attempt shares it and it bounds the whole
// call. A per-attempt timeout placed outside a retry hands its budget to
// that retry, which applies it to each attempt.
//
// # Merge
//
// Definitions added while a preset configures the builder form the preset
// layer. An explicit definition of the same kind replaces the preset's;
// kinds only the preset sets are kept and kinds only the user sets are added.
//
//	registry := resilience.DefaultPresets()
//	preset, _ := registry.Get("standard")
//	set, err := resilience.NewBuilder().
//	    Apply(preset).
//	    Add(resilience.RetryPolicy(resilience.RetryOptions{MaxRetries: 1})).
//	    Build()
//	pipeline := resilience.Compile(set, resilience.LoggingDiagnostics(logger))
//	resp, err := pipeline.Execute(req, http.DefaultTransport)
//
// # Failures
//
// Cancellation of the caller's context is never retried, never replaced by
// a fallback and never counted by the circuit breaker. Admission rejections
// (ErrCircuitOpen, ErrBulkheadFull, ErrRateLimitExceeded) are not retried.
// Status codes a policy treats as faults are returned as the final response
// once retries run out. Diagnostics callbacks that panic are recovered.
//
// The engines the policies run on (Retry, CircuitBreaker, Bulkhead,
// RateLimiter, Timeout) are usable on their own with plain functions.
package resilience
