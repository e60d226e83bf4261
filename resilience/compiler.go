package resilience

import (
	"context"
	"fmt"
	"net/http"
)

// Pipeline is a compiled, immutable policy set. It is safe for concurrent
// use; the circuit breaker, bulkhead and rate limiter it holds are shared by
// every request it executes.
type Pipeline struct {
	policies []Policy // innermost first
	names    []string // outermost first

	breaker  *CircuitBreaker
	bulkhead *Bulkhead
	limiter  *RateLimiter
}

// Compile builds the policies of set in nesting order. The definition with
// the lowest order runs closest to the transport; ties nest the earlier
// registered definition closer. Every policy reports to diag, guarded so a
// panicking sink cannot affect a call. A nil set compiles to a pass-through.
func Compile(set *PolicySet, diag Diagnostics) *Pipeline {
	diag = guard(diag)
	defs := set.Definitions()

	env := &compileEnv{}
	p := &Pipeline{
		policies: make([]Policy, 0, len(defs)),
		names:    make([]string, len(defs)),
	}
	for i, def := range defs {
		p.policies = append(p.policies, def.Params.build(def.Kind, diag, env))
		p.names[len(defs)-1-i] = def.Name()
		if def.Kind == KindRetry {
			env.retryInside = true
		}
	}
	p.breaker = env.breaker
	p.bulkhead = env.bulkhead
	p.limiter = env.limiter
	return p
}

// Handler composes the policies over the terminal handler.
func (p *Pipeline) Handler(terminal Handler) Handler {
	h := terminal
	for _, policy := range p.policies {
		h = policy(h)
	}
	return h
}

// Execute sends req through the policies and then through transport. It
// creates a fresh Context for the request.
func (p *Pipeline) Execute(req *http.Request, transport http.RoundTripper) (*http.Response, error) {
	caller := req.Context()
	rc := newContext(caller, req)
	ctx := rc.attach(caller)

	resp, err := p.Handler(transportHandler(transport))(ctx, rc)
	if err != nil {
		drain(resp)
		return nil, err
	}
	return resp, nil
}

// Kinds returns the policy names from outermost to innermost.
func (p *Pipeline) Kinds() []string {
	out := make([]string, len(p.names))
	copy(out, p.names)
	return out
}

// Len returns the number of compiled policies.
func (p *Pipeline) Len() int {
	return len(p.policies)
}

// CircuitBreaker returns the pipeline's breaker, or nil.
func (p *Pipeline) CircuitBreaker() *CircuitBreaker {
	return p.breaker
}

// Bulkhead returns the pipeline's bulkhead, or nil.
func (p *Pipeline) Bulkhead() *Bulkhead {
	return p.bulkhead
}

// RateLimiter returns the pipeline's rate limiter, or nil.
func (p *Pipeline) RateLimiter() *RateLimiter {
	return p.limiter
}

// transportHandler sends the request. From the second send on the body is
// rewound through GetBody.
func transportHandler(rt http.RoundTripper) Handler {
	if rt == nil {
		rt = http.DefaultTransport
	}
	return func(ctx context.Context, rc *Context) (*http.Response, error) {
		req := rc.Request()
		out := req.WithContext(ctx)

		if rc.nextSend() > 1 && req.Body != nil && req.Body != http.NoBody {
			if req.GetBody == nil {
				return nil, ErrBodyNotReplayable
			}
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("resilience: rewind request body: %w", err)
			}
			out.Body = body
		}

		resp, err := rt.RoundTrip(out)
		if err != nil {
			drain(resp)
			return nil, err
		}
		return resp, nil
	}
}
