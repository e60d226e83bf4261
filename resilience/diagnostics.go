package resilience

import (
	"net/http"
	"time"
)

// Outcome is the result a fallback policy replaced.
type Outcome struct {
	Response *http.Response
	Err      error
}

// Diagnostics observes policy events.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Calls are synchronous and best-effort; a panicking callback is recovered
//   and discarded and never changes the outcome of the call.
// - req may be nil in OnFallback when no request was available.
type Diagnostics interface {
	// OnRetry is called before the retry numbered attempt (1-based) with the fault that triggered it.
	OnRetry(req *http.Request, attempt int, err error)

	// OnTimeout is called when a timeout policy expires.
	OnTimeout(req *http.Request, timeout time.Duration)

	// OnCircuitBreak is called when a call opens the circuit.
	OnCircuitBreak(req *http.Request, err error)

	// OnCircuitReset is called when a probe closes the circuit again.
	OnCircuitReset(req *http.Request)

	// OnBulkheadRejected is called when a call is refused admission.
	OnBulkheadRejected(req *http.Request, err error)

	// OnFallback is called after a fallback substituted the outcome.
	OnFallback(req *http.Request, outcome Outcome)
}

// NoopDiagnostics discards every event.
type NoopDiagnostics struct{}

func (NoopDiagnostics) OnRetry(*http.Request, int, error)       {}
func (NoopDiagnostics) OnTimeout(*http.Request, time.Duration)  {}
func (NoopDiagnostics) OnCircuitBreak(*http.Request, error)     {}
func (NoopDiagnostics) OnCircuitReset(*http.Request)            {}
func (NoopDiagnostics) OnBulkheadRejected(*http.Request, error) {}
func (NoopDiagnostics) OnFallback(*http.Request, Outcome)       {}

// MultiDiagnostics fans every event out to each sink in order.
func MultiDiagnostics(sinks ...Diagnostics) Diagnostics {
	out := make(multiDiagnostics, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, guard(s))
		}
	}
	return out
}

type multiDiagnostics []Diagnostics

func (m multiDiagnostics) OnRetry(req *http.Request, attempt int, err error) {
	for _, d := range m {
		d.OnRetry(req, attempt, err)
	}
}

func (m multiDiagnostics) OnTimeout(req *http.Request, timeout time.Duration) {
	for _, d := range m {
		d.OnTimeout(req, timeout)
	}
}

func (m multiDiagnostics) OnCircuitBreak(req *http.Request, err error) {
	for _, d := range m {
		d.OnCircuitBreak(req, err)
	}
}

func (m multiDiagnostics) OnCircuitReset(req *http.Request) {
	for _, d := range m {
		d.OnCircuitReset(req)
	}
}

func (m multiDiagnostics) OnBulkheadRejected(req *http.Request, err error) {
	for _, d := range m {
		d.OnBulkheadRejected(req, err)
	}
}

func (m multiDiagnostics) OnFallback(req *http.Request, outcome Outcome) {
	for _, d := range m {
		d.OnFallback(req, outcome)
	}
}

// guard wraps a sink so that a panicking callback cannot reach the pipeline.
// A nil sink becomes NoopDiagnostics.
func guard(d Diagnostics) Diagnostics {
	switch d.(type) {
	case nil:
		return NoopDiagnostics{}
	case NoopDiagnostics, guarded:
		return d
	}
	return guarded{inner: d}
}

type guarded struct {
	inner Diagnostics
}

func swallow() {
	_ = recover()
}

func (g guarded) OnRetry(req *http.Request, attempt int, err error) {
	defer swallow()
	g.inner.OnRetry(req, attempt, err)
}

func (g guarded) OnTimeout(req *http.Request, timeout time.Duration) {
	defer swallow()
	g.inner.OnTimeout(req, timeout)
}

func (g guarded) OnCircuitBreak(req *http.Request, err error) {
	defer swallow()
	g.inner.OnCircuitBreak(req, err)
}

func (g guarded) OnCircuitReset(req *http.Request) {
	defer swallow()
	g.inner.OnCircuitReset(req)
}

func (g guarded) OnBulkheadRejected(req *http.Request, err error) {
	defer swallow()
	g.inner.OnBulkheadRejected(req, err)
}

func (g guarded) OnFallback(req *http.Request, outcome Outcome) {
	defer swallow()
	g.inner.OnFallback(req, outcome)
}
