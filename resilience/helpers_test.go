package resilience

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// trackedBody records whether it was closed.
type trackedBody struct {
	io.Reader
	closed *atomic.Int32
}

func (b trackedBody) Close() error {
	b.closed.Add(1)
	return nil
}

func respond(req *http.Request, status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    req,
	}
}

// statusTransport answers every request with status and counts sends.
func statusTransport(status int, sends *atomic.Int32, closed *atomic.Int32) http.RoundTripper {
	return roundTripFunc(func(req *http.Request) (*http.Response, error) {
		sends.Add(1)
		resp := respond(req, status, "")
		if closed != nil {
			resp.Body = trackedBody{Reader: strings.NewReader("payload"), closed: closed}
		}
		return resp, nil
	})
}

func newRequest(ctx context.Context) *http.Request {
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, "http://upstream.test/items", nil)
	return req
}

// recordingDiagnostics counts every event.
type recordingDiagnostics struct {
	mu        sync.Mutex
	retries   []int
	retryErrs []error
	timeouts  []time.Duration
	breaks    int
	resets    int
	rejected  int
	fallbacks []Outcome
}

func (d *recordingDiagnostics) OnRetry(_ *http.Request, attempt int, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.retries = append(d.retries, attempt)
	d.retryErrs = append(d.retryErrs, err)
}

func (d *recordingDiagnostics) OnTimeout(_ *http.Request, timeout time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.timeouts = append(d.timeouts, timeout)
}

func (d *recordingDiagnostics) OnCircuitBreak(*http.Request, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.breaks++
}

func (d *recordingDiagnostics) OnCircuitReset(*http.Request) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resets++
}

func (d *recordingDiagnostics) OnBulkheadRejected(*http.Request, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rejected++
}

func (d *recordingDiagnostics) OnFallback(_ *http.Request, outcome Outcome) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fallbacks = append(d.fallbacks, outcome)
}

func (d *recordingDiagnostics) retryCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.retries)
}

// compile builds a pipeline from defs added in order.
func compile(diag Diagnostics, defs ...PolicyDefinition) *Pipeline {
	b := NewBuilder()
	for _, d := range defs {
		b.Add(d)
	}
	set, err := b.Build()
	if err != nil {
		panic(err)
	}
	return Compile(set, diag)
}
