package resilience

import (
	"context"
	"net/http"
	"sync"
)

// Well-known Context keys.
const (
	// KeyFallbackEngaged is set to true once a fallback policy substitutes a result.
	KeyFallbackEngaged = "resilience.fallback_engaged"

	// KeyCircuitRejected is set to true when a circuit breaker short-circuits the call.
	KeyCircuitRejected = "resilience.circuit_rejected"
)

// Context is the per-request store carried through a compiled pipeline.
// It holds the original request, the caller's context (the cancellation
// signal) and arbitrary values nested policies use to exchange state.
//
// A Context is created by Pipeline.Execute and discarded when it returns.
// It is safe for concurrent use because a timed-out attempt may still be
// running while the outer policies continue.
type Context struct {
	req    *http.Request
	caller context.Context

	mu     sync.Mutex
	values map[string]any
	sends  int
}

type contextKey struct{}

func newContext(caller context.Context, req *http.Request) *Context {
	return &Context{
		req:    req,
		caller: caller,
		values: make(map[string]any),
	}
}

// FromContext returns the resiliency Context carried by ctx, or nil.
// Transports and fallback actions can use it to inspect markers.
func FromContext(ctx context.Context) *Context {
	rc, _ := ctx.Value(contextKey{}).(*Context)
	return rc
}

func (c *Context) attach(ctx context.Context) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

// Request returns the original outgoing request.
func (c *Context) Request() *http.Request {
	return c.req
}

// Canceled reports whether the caller canceled the request or its deadline
// passed. Timeouts created by policies do not count.
func (c *Context) Canceled() bool {
	return c.caller.Err() != nil
}

// CallerErr returns the caller context's error, if any.
func (c *Context) CallerErr() error {
	return c.caller.Err()
}

// Set stores a value under key.
func (c *Context) Set(key string, value any) {
	c.mu.Lock()
	c.values[key] = value
	c.mu.Unlock()
}

// Get returns the value stored under key.
func (c *Context) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	return v, ok
}

// Bool returns the boolean marker stored under key, false if absent.
func (c *Context) Bool(key string) bool {
	v, _ := c.Get(key)
	b, _ := v.(bool)
	return b
}

// Sends returns how many times the request has been handed to the transport.
func (c *Context) Sends() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sends
}

func (c *Context) nextSend() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sends++
	return c.sends
}

// loadOrStore returns the existing value for key or stores and returns value.
func (c *Context) loadOrStore(key string, value any) any {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.values[key]; ok {
		return v
	}
	c.values[key] = value
	return value
}

// once reports true the first time it is called with key for this request.
func (c *Context) once(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.values[key]; ok {
		return false
	}
	c.values[key] = true
	return true
}
