package health

import (
	"context"
	"fmt"

	"github.com/jonwraymond/httpchain/resilience"
)

// PipelineChecker reports the health of a resiliency pipeline from the
// state of its circuit breaker and bulkhead.
//
// An open circuit is unhealthy. A half-open circuit, or a bulkhead with
// no free slot and waiting calls, is degraded. A nil pipeline, or one
// without breaker and bulkhead, is always healthy.
func PipelineChecker(name string, p *resilience.Pipeline) Checker {
	return NewCheckerFunc(name, func(ctx context.Context) Result {
		if err := ctx.Err(); err != nil {
			return Unhealthy("context cancelled", err)
		}
		if p == nil {
			return Healthy("no resiliency policies")
		}

		details := map[string]any{"policies": p.Kinds()}
		result := Healthy("ok")

		if bh := p.Bulkhead(); bh != nil {
			m := bh.Metrics()
			details["bulkhead_active"] = m.Active
			details["bulkhead_queued"] = m.Queued
			details["bulkhead_rejected"] = m.Rejected
			if m.Available == 0 && m.Queued > 0 {
				result = Degraded(fmt.Sprintf("bulkhead saturated: %d queued", m.Queued))
			}
		}
		if rl := p.RateLimiter(); rl != nil {
			details["rate_limit_tokens"] = rl.Tokens()
		}
		if cb := p.CircuitBreaker(); cb != nil {
			m := cb.Metrics()
			details["circuit_state"] = m.State.String()
			details["circuit_failures"] = m.Failures
			switch m.State {
			case resilience.StateOpen:
				result = Unhealthy("circuit open", ErrCircuitOpen)
			case resilience.StateHalfOpen:
				result = Degraded("circuit half-open")
			}
		}
		return result.WithDetails(details)
	})
}
