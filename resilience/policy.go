package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// Kind identifies a resiliency policy type.
type Kind int

const (
	KindTimeoutOverall Kind = iota
	KindRetry
	KindCircuitBreaker
	KindTimeoutPerAttempt
	KindBulkhead
	KindRateLimit
	KindFallbackOnBreak
	KindFallback
	KindCustom
)

var kindNames = [...]string{
	KindTimeoutOverall:    "timeout_overall",
	KindRetry:             "retry",
	KindCircuitBreaker:    "circuit_breaker",
	KindTimeoutPerAttempt: "timeout_per_attempt",
	KindBulkhead:          "bulkhead",
	KindRateLimit:         "rate_limit",
	KindFallbackOnBreak:   "fallback_on_break",
	KindFallback:          "fallback",
	KindCustom:            "custom",
}

// String returns the configuration name of the kind.
func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind returns the kind with the given configuration name.
func ParseKind(s string) (Kind, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range kindNames {
		if name == s {
			return Kind(k), true
		}
	}
	return 0, false
}

// Default composition orders. A lower order sits closer to the transport.
const (
	OrderTimeoutOverall    = 0
	OrderRetry             = 100
	OrderCircuitBreaker    = 200
	OrderTimeoutPerAttempt = 300
	OrderBulkhead          = 300
	OrderRateLimit         = 350
	OrderFallbackOnBreak   = 400
	OrderFallback          = 500
)

// DefaultOrder returns the built-in order for kind. Custom policies have no
// default and report false.
func DefaultOrder(kind Kind) (int, bool) {
	switch kind {
	case KindTimeoutOverall:
		return OrderTimeoutOverall, true
	case KindRetry:
		return OrderRetry, true
	case KindCircuitBreaker:
		return OrderCircuitBreaker, true
	case KindTimeoutPerAttempt:
		return OrderTimeoutPerAttempt, true
	case KindBulkhead:
		return OrderBulkhead, true
	case KindRateLimit:
		return OrderRateLimit, true
	case KindFallbackOnBreak:
		return OrderFallbackOnBreak, true
	case KindFallback:
		return OrderFallback, true
	default:
		return 0, false
	}
}

// Handler executes one request under the policies nested inside it.
// A Handler returns either a response or an error, never both.
type Handler func(ctx context.Context, rc *Context) (*http.Response, error)

// Policy wraps a Handler with resiliency behavior.
type Policy func(next Handler) Handler

// Predicate classifies the outcome of a call.
type Predicate func(resp *http.Response, err error) bool

// StatusError reports a response whose status a policy treated as a fault.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("resilience: unsuccessful status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// IsTransient is the default retry predicate. It accepts transport errors
// and 408, 429 and 5xx responses. Cancellation, overall timeouts, admission
// rejections and unreplayable bodies are never transient.
func IsTransient(resp *http.Response, err error) bool {
	if err != nil {
		return !IsCancellation(err) &&
			!IsRejection(err) &&
			!isOverallTimeout(err) &&
			!errors.Is(err, ErrBodyNotReplayable)
	}
	if resp == nil {
		return false
	}
	switch {
	case resp.StatusCode == http.StatusRequestTimeout,
		resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode >= http.StatusInternalServerError:
		return true
	}
	return false
}

// IsFailure is the default circuit breaker and fallback predicate. It
// accepts any error except cancellation, and any 5xx response.
func IsFailure(resp *http.Response, err error) bool {
	if err != nil {
		return !IsCancellation(err)
	}
	return resp != nil && resp.StatusCode >= http.StatusInternalServerError
}

// StatusIn returns a predicate matching errors accepted by IsTransient and
// the listed status codes.
func StatusIn(codes ...int) Predicate {
	set := make(map[int]struct{}, len(codes))
	for _, c := range codes {
		set[c] = struct{}{}
	}
	return func(resp *http.Response, err error) bool {
		if err != nil {
			return IsTransient(nil, err)
		}
		if resp == nil {
			return false
		}
		_, ok := set[resp.StatusCode]
		return ok
	}
}

// outcomeErr returns err, or a StatusError describing resp.
func outcomeErr(resp *http.Response, err error) error {
	if err != nil || resp == nil {
		return err
	}
	return &StatusError{StatusCode: resp.StatusCode}
}

// drain discards up to 4KiB of the body so the connection can be reused,
// then closes it.
func drain(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	_ = resp.Body.Close()
}

// holdBody ties release to the lifetime of resp's body: it runs once the
// body reaches EOF or is closed. It reports false when resp has no body,
// leaving release to the caller.
func holdBody(resp *http.Response, release context.CancelFunc) bool {
	if resp == nil || resp.Body == nil || resp.Body == http.NoBody {
		return false
	}
	resp.Body = &releasingBody{ReadCloser: resp.Body, release: release}
	return true
}

// releasingBody runs release after the wrapped body is exhausted or closed.
type releasingBody struct {
	io.ReadCloser
	release context.CancelFunc
	once    sync.Once
}

func (b *releasingBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	if errors.Is(err, io.EOF) {
		b.once.Do(b.release)
	}
	return n, err
}

func (b *releasingBody) Close() error {
	err := b.ReadCloser.Close()
	b.once.Do(b.release)
	return err
}
