package httpclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonwraymond/httpchain/auth"
	"github.com/jonwraymond/httpchain/intercept"
	"github.com/jonwraymond/httpchain/observe"
	"github.com/jonwraymond/httpchain/resilience"
)

func fastRetry(n int) resilience.PolicyDefinition {
	return resilience.RetryPolicy(resilience.RetryOptions{
		MaxRetries: n,
		Delay:      time.Millisecond,
		Backoff:    resilience.BackoffConstant,
	})
}

func TestNew_InvalidOptions(t *testing.T) {
	tests := []struct {
		name   string
		client string
		opts   []Option
	}{
		{"empty name", " ", nil},
		{"negative timeout", "a", []Option{WithTimeout(-time.Second)}},
		{"relative base url", "a", []Option{WithBaseURL("/v1")}},
		{"unknown preset", "a", []Option{WithPreset("nope")}},
		{"invalid policy", "a", []Option{WithPolicies(resilience.TimeoutOverallPolicy(0))}},
		{"hooks without callbacks", "a", []Option{WithHooks(intercept.HooksConfig{})}},
		{"nil interceptor", "a", []Option{WithInterceptor(nil)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.client, tt.opts...)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("New() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestNew_UnknownPresetKeepsCause(t *testing.T) {
	_, err := New("a", WithPreset("nope"))
	if !errors.Is(err, resilience.ErrPresetNotFound) {
		t.Errorf("New() error = %v, want ErrPresetNotFound", err)
	}
}

func TestNew_ChainOrder(t *testing.T) {
	source, _ := auth.Bearer("t")
	c, err := New("billing",
		WithHooks(intercept.HooksConfig{OnError: func(*http.Request, error) {}}),
		WithPreset(resilience.PresetStandard),
		WithMetrics(observe.NopMetrics()),
		WithHeaders(intercept.HeadersConfig{RequestID: true}),
		WithAuth(source),
		WithTracing(observe.NopTracer(), nil),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	want := []intercept.OrderingKey{
		intercept.KeyTracing,
		intercept.KeyAuthentication,
		intercept.KeyHeaders,
		intercept.KeyMetrics,
		intercept.KeyResiliency,
		intercept.KeyHooks,
	}
	if got := c.Chain().Keys(); !slices.Equal(got, want) {
		t.Errorf("Keys() = %v, want %v", got, want)
	}
	if c.Chain().Client() != "billing" {
		t.Errorf("Client() = %q", c.Chain().Client())
	}
}

func TestNew_NoPoliciesNoPipeline(t *testing.T) {
	c, err := New("plain")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if c.Pipeline() != nil {
		t.Error("expected no pipeline")
	}
	if c.Chain().Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Chain().Len())
	}
	if _, ok := c.CircuitState(); ok {
		t.Error("expected no circuit breaker")
	}
}

func TestClient_RetriesThroughChain(t *testing.T) {
	srv := newStatusServer(t, http.StatusServiceUnavailable, http.StatusServiceUnavailable)

	var attempts atomic.Int32
	c, err := New("inventory",
		WithBaseURL(srv.URL),
		WithPolicies(fastRetry(2)),
		WithHooks(intercept.HooksConfig{
			Before: func(*http.Request) error {
				attempts.Add(1)
				return nil
			},
		}),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	resp, err := c.Get(context.Background(), "/items")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if srv.hits.Load() != 3 {
		t.Errorf("server hits = %d, want 3", srv.hits.Load())
	}
	if attempts.Load() != 3 {
		t.Errorf("hook attempts = %d, want 3", attempts.Load())
	}
}

func TestClient_ExhaustedRetriesReturnLastResponse(t *testing.T) {
	srv := newStatusServer(t,
		http.StatusBadGateway, http.StatusBadGateway, http.StatusBadGateway)

	c, err := New("inventory", WithBaseURL(srv.URL), WithPolicies(fastRetry(1)))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	resp, err := c.Get(context.Background(), "/items")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", resp.StatusCode)
	}
	if srv.hits.Load() != 2 {
		t.Errorf("server hits = %d, want 2", srv.hits.Load())
	}
}

func TestClient_PolicyOverridesPreset(t *testing.T) {
	c, err := New("a",
		WithPreset(resilience.PresetStandard),
		WithPolicies(fastRetry(1)),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	want := []string{"timeout_per_attempt", "circuit_breaker", "retry", "timeout_overall"}
	if got := c.Pipeline().Kinds(); !slices.Equal(got, want) {
		t.Errorf("Kinds() = %v, want %v", got, want)
	}
	state, ok := c.CircuitState()
	if !ok || state != resilience.StateClosed {
		t.Errorf("CircuitState() = %v, %v", state, ok)
	}
}

func TestClient_AuthAndHeaders(t *testing.T) {
	t.Setenv("HTTPCLIENT_TEAM", "payments")
	srv := newStatusServer(t)

	source, _ := auth.Bearer("s3cr3t")
	c, err := New("billing",
		WithBaseURL(srv.URL+"/v1/"),
		WithAuth(source),
		WithHeaders(intercept.HeadersConfig{
			Static:    map[string]string{"X-Team": "${HTTPCLIENT_TEAM}"},
			RequestID: true,
		}),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	resp, err := c.Get(context.Background(), "invoices/42")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	resp.Body.Close()

	if got := srv.lastHeader("Authorization"); got != "Bearer s3cr3t" {
		t.Errorf("Authorization = %q", got)
	}
	if got := srv.lastHeader("X-Team"); got != "payments" {
		t.Errorf("X-Team = %q", got)
	}
	if srv.lastHeader(intercept.DefaultRequestIDHeader) == "" {
		t.Error("request id header missing")
	}
	if got := srv.lastPath(); got != "/v1/invoices/42" {
		t.Errorf("path = %q, want /v1/invoices/42", got)
	}
}

func TestClient_RelativeURLWithoutBase(t *testing.T) {
	c, err := New("a")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	req, _ := http.NewRequest(http.MethodGet, "/items", nil)
	if _, err := c.Do(req); err == nil || !strings.Contains(err.Error(), "without a base url") {
		t.Errorf("Do() error = %v", err)
	}
}

func TestClient_HTTPClientCarriesClientName(t *testing.T) {
	srv := newStatusServer(t)

	var seen string
	c, err := New("search", WithHooks(intercept.HooksConfig{
		Before: func(req *http.Request) error {
			seen = intercept.ClientName(req.Context())
			return nil
		},
	}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	resp, err := c.HTTPClient().Get(srv.URL)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	resp.Body.Close()
	if seen != "search" {
		t.Errorf("ClientName() = %q, want search", seen)
	}
}

func TestClient_CustomInterceptorOrder(t *testing.T) {
	var calls []string
	record := func(name string) intercept.Interceptor {
		return intercept.InterceptorFunc(func(req *http.Request, next http.RoundTripper) (*http.Response, error) {
			calls = append(calls, name)
			return next.RoundTrip(req)
		})
	}

	srv := newStatusServer(t)
	c, err := New("a",
		WithInterceptorOrder("late", int(intercept.KeyHooks), record("late")),
		WithInterceptorOrder("early", int(intercept.KeyTracing), record("early")),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	resp, err := c.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	resp.Body.Close()

	if want := []string{"early", "late"}; !slices.Equal(calls, want) {
		t.Errorf("calls = %v, want %v", calls, want)
	}
}

func TestClient_OpenCircuit(t *testing.T) {
	srv := newStatusServer(t,
		http.StatusInternalServerError, http.StatusInternalServerError)

	c, err := New("fragile",
		WithBaseURL(srv.URL),
		WithPolicies(resilience.CircuitBreakerPolicy(resilience.CircuitBreakerOptions{
			MaxFailures:   2,
			BreakDuration: time.Minute,
		})),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	for range 2 {
		resp, err := c.Get(context.Background(), "/")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		resp.Body.Close()
	}
	if state, _ := c.CircuitState(); state != resilience.StateOpen {
		t.Fatalf("CircuitState() = %v, want open", state)
	}

	_, err = c.Get(context.Background(), "/")
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Errorf("Get() error = %v, want ErrCircuitOpen", err)
	}
	if srv.hits.Load() != 2 {
		t.Errorf("server hits = %d, want 2", srv.hits.Load())
	}
}

func TestNew_NilDependenciesAreLeftOut(t *testing.T) {
	c, err := New("a",
		WithLogging(nil, intercept.LoggingConfig{}),
		WithMetrics(nil),
		WithAuth(nil),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if n := c.Chain().Len(); n != 0 {
		t.Errorf("Chain().Len() = %d, want 0", n)
	}
}

func TestClient_ReadsSlowBodyThroughPreset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		time.Sleep(50 * time.Millisecond)
		_, _ = io.WriteString(w, "tail")
	}))
	defer srv.Close()

	for _, opt := range []Option{
		WithPreset(resilience.PresetStandard),
		WithPolicies(fastRetry(2)),
		WithPolicies(resilience.TimeoutOverallPolicy(5 * time.Second)),
	} {
		c, err := New("slow", WithBaseURL(srv.URL), opt)
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		resp, err := c.Get(context.Background(), "/")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		body, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil || string(body) != "tail" {
			t.Errorf("%v: body = %q, err = %v, want %q", c.Pipeline().Kinds(), body, err, "tail")
		}
	}
}
