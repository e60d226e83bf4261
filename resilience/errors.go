package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for resilience operations.
var (
	// ErrCircuitOpen is returned when the circuit breaker is open.
	ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

	// ErrRateLimitExceeded is returned when the rate limit is exceeded.
	ErrRateLimitExceeded = errors.New("resilience: rate limit exceeded")

	// ErrBulkheadFull is returned when the bulkhead and its queue are at capacity.
	ErrBulkheadFull = errors.New("resilience: bulkhead at capacity")

	// ErrTimeout is returned when an operation times out.
	ErrTimeout = errors.New("resilience: operation timed out")

	// ErrBodyNotReplayable is returned when a request body cannot be resent on retry.
	ErrBodyNotReplayable = errors.New("resilience: request body cannot be replayed")
)

// Configuration errors.
var (
	// ErrInvalidConfig is the base error for rejected policy configuration.
	ErrInvalidConfig = errors.New("resilience: invalid configuration")

	// ErrPresetNotFound is returned when a preset name is not registered.
	ErrPresetNotFound = errors.New("resilience: preset not found")

	// ErrPresetAmbiguous is returned when a preset name matches more than one registration.
	ErrPresetAmbiguous = errors.New("resilience: preset name is ambiguous")
)

// ConfigError describes a policy definition that failed validation.
type ConfigError struct {
	Kind   Kind
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("resilience: invalid %s policy: %s %s", e.Kind, e.Field, e.Reason)
}

// Unwrap allows errors.Is(err, ErrInvalidConfig).
func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}

func configErr(kind Kind, field, reason string) error {
	return &ConfigError{Kind: kind, Field: field, Reason: reason}
}

// TimeoutScope distinguishes the two timeout policies.
type TimeoutScope string

const (
	ScopeOverall TimeoutScope = "overall"
	ScopeAttempt TimeoutScope = "attempt"
)

// TimeoutError is returned when a timeout policy expires.
type TimeoutError struct {
	Scope   TimeoutScope
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("resilience: %s timeout of %s exceeded", e.Scope, e.Timeout)
}

// Unwrap allows errors.Is(err, ErrTimeout).
func (e *TimeoutError) Unwrap() error {
	return ErrTimeout
}

// IsRejection reports whether err is an admission rejection (circuit open,
// bulkhead full, rate limited). Rejections are never retried.
func IsRejection(err error) bool {
	return errors.Is(err, ErrCircuitOpen) ||
		errors.Is(err, ErrBulkheadFull) ||
		errors.Is(err, ErrRateLimitExceeded)
}

// IsCancellation reports whether err is a caller cancellation.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled)
}

func isOverallTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te) && te.Scope == ScopeOverall
}
