package resilience

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestPresetRegistry_Get(t *testing.T) {
	r := NewPresetRegistry()
	if err := r.Register("Standard-API", func(*Builder) {}); err != nil {
		t.Fatal(err)
	}

	p, err := r.Get("standard-api")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if p.Name() != "Standard-API" {
		t.Errorf("Name() = %q", p.Name())
	}

	if _, err := r.Get("missing"); !errors.Is(err, ErrPresetNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrPresetNotFound", err)
	}
}

func TestPresetRegistry_Ambiguous(t *testing.T) {
	r := NewPresetRegistry()
	_ = r.Register("edge", func(*Builder) {})
	_ = r.Register("EDGE", func(*Builder) {})

	if _, err := r.Get("Edge"); !errors.Is(err, ErrPresetAmbiguous) {
		t.Errorf("Get() error = %v, want ErrPresetAmbiguous", err)
	}
}

func TestPresetRegistry_RegisterValidation(t *testing.T) {
	r := NewPresetRegistry()
	if err := r.Register(" ", func(*Builder) {}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Register(blank) error = %v", err)
	}
	if err := r.Register("x", nil); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Register(nil fn) error = %v", err)
	}
}

func TestDefaultPresets(t *testing.T) {
	r := DefaultPresets()
	if got := r.Names(); len(got) != 2 || got[0] != PresetCritical || got[1] != PresetStandard {
		t.Fatalf("Names() = %v", got)
	}

	tests := []struct {
		name  string
		kinds []string
	}{
		{PresetStandard, []string{"timeout_per_attempt", "circuit_breaker", "retry", "timeout_overall"}},
		{PresetCritical, []string{"fallback_on_break", "bulkhead", "timeout_per_attempt", "circuit_breaker", "retry", "timeout_overall"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := r.Get(tt.name)
			if err != nil {
				t.Fatal(err)
			}
			set, err := NewBuilder().Apply(p).Build()
			if err != nil {
				t.Fatal(err)
			}
			got := Compile(set, nil).Kinds()
			if strings.Join(got, ",") != strings.Join(tt.kinds, ",") {
				t.Errorf("Kinds() = %v, want %v", got, tt.kinds)
			}
		})
	}
}

const presetYAML = `
presets:
  payments:
    timeout:
      timeout: 20s
    retry:
      max_retries: 2
      delay: 100ms
      backoff: linear
      status_codes: [502, 503]
    circuit_breaker:
      failure_ratio: 0.5
      min_throughput: 20
      order: 250
    bulkhead:
      max_concurrent: 4
      max_queue: 8
      max_wait: 2s
    fallback_on_break:
      status: 503
      body: '{"error":"unavailable"}'
      headers:
        Content-Type: application/json
  search:
    rate_limit:
      rate: 50
      burst: 5
`

func TestLoadPresets(t *testing.T) {
	r := NewPresetRegistry()
	if err := LoadPresets(strings.NewReader(presetYAML), r); err != nil {
		t.Fatalf("LoadPresets() error = %v", err)
	}

	p, err := r.Get("payments")
	if err != nil {
		t.Fatal(err)
	}
	set, err := NewBuilder().Apply(p).Build()
	if err != nil {
		t.Fatal(err)
	}
	if set.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", set.Len())
	}

	timeout, _ := set.Get(KindTimeoutOverall)
	if timeout.Params.(TimeoutOptions).Timeout != 20*time.Second {
		t.Errorf("timeout = %v", timeout.Params)
	}
	retry, _ := set.Get(KindRetry)
	ro := retry.Params.(RetryOptions)
	if ro.MaxRetries != 2 || ro.Delay != 100*time.Millisecond || ro.Backoff != BackoffLinear || len(ro.StatusCodes) != 2 {
		t.Errorf("retry = %+v", ro)
	}
	breaker, _ := set.Get(KindCircuitBreaker)
	if breaker.Order != 250 || breaker.Params.(CircuitBreakerOptions).FailureRatio != 0.5 {
		t.Errorf("breaker = %+v", breaker)
	}
	bh, _ := set.Get(KindBulkhead)
	if bh.Params.(BulkheadOptions).MaxWait != 2*time.Second {
		t.Errorf("bulkhead = %+v", bh.Params)
	}

	if _, err := r.Get("search"); err != nil {
		t.Errorf("Get(search) error = %v", err)
	}
}

func TestLoadPresets_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown field", "presets:\n  a:\n    retries: {}\n"},
		{"bad backoff", "presets:\n  a:\n    retry: {backoff: fibonacci}\n"},
		{"bad timeout", "presets:\n  a:\n    timeout: {timeout: 0s}\n"},
		{"bad duration", "presets:\n  a:\n    timeout: {timeout: soon}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewPresetRegistry()
			err := LoadPresets(strings.NewReader(tt.doc), r)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("LoadPresets() error = %v, want ErrInvalidConfig", err)
			}
			if len(r.Names()) != 0 {
				t.Error("presets registered despite an error")
			}
		})
	}
}

func TestLoadPresets_Empty(t *testing.T) {
	if err := LoadPresets(strings.NewReader(""), NewPresetRegistry()); err != nil {
		t.Errorf("LoadPresets(empty) error = %v", err)
	}
}

func TestRegisterPresets_AllOrNothing(t *testing.T) {
	r := NewPresetRegistry()
	err := RegisterPresets(r, map[string]PolicySpec{
		"good": {Retry: &RetrySpec{Delay: time.Millisecond}},
		"bad":  {Bulkhead: &BulkheadSpec{MaxConcurrent: -1}},
	})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("RegisterPresets() error = %v, want ErrInvalidConfig", err)
	}
	if names := r.Names(); len(names) != 0 {
		t.Errorf("Names() = %v, want none registered", names)
	}

	if err := RegisterPresets(r, map[string]PolicySpec{
		"good": {Retry: &RetrySpec{Delay: time.Millisecond}},
	}); err != nil {
		t.Fatalf("RegisterPresets() error = %v", err)
	}
	p, err := r.Get("good")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	set, err := NewBuilder().Apply(p).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if _, ok := set.Get(KindRetry); !ok || set.Len() != 1 {
		t.Errorf("set = %v", set.Definitions())
	}
}

func TestLoadPresets_MaxRetries(t *testing.T) {
	const doc = `
presets:
  implicit:
    retry: {delay: 1ms}
  none:
    retry: {max_retries: 0}
`
	r := NewPresetRegistry()
	if err := LoadPresets(strings.NewReader(doc), r); err != nil {
		t.Fatalf("LoadPresets() error = %v", err)
	}

	for name, want := range map[string]int{"implicit": DefaultMaxRetries, "none": 0} {
		p, err := r.Get(name)
		if err != nil {
			t.Fatal(err)
		}
		set, err := NewBuilder().Apply(p).Build()
		if err != nil {
			t.Fatal(err)
		}
		retry, _ := set.Get(KindRetry)
		if got := retry.Params.(RetryOptions).MaxRetries; got != want {
			t.Errorf("%s: MaxRetries = %d, want %d", name, got, want)
		}
	}
}
