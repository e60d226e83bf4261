package resilience

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
	"sync/atomic"
	"testing"
	"time"
)

func TestBuilder_MergeSemantics(t *testing.T) {
	presetRetry := RetryPolicy(RetryOptions{MaxRetries: 5})
	presetBreaker := CircuitBreakerPolicy(CircuitBreakerOptions{MaxFailures: 10})
	userRetry := RetryPolicy(RetryOptions{MaxRetries: 1})
	userBulkhead := BulkheadPolicy(BulkheadOptions{MaxConcurrent: 2})

	registry := NewPresetRegistry()
	_ = registry.Register("base", func(b *Builder) {
		b.Add(presetRetry)
		b.Add(presetBreaker)
	})
	preset, err := registry.Get("base")
	if err != nil {
		t.Fatal(err)
	}

	// User definitions win regardless of whether they come before or after the preset.
	for _, userFirst := range []bool{false, true} {
		b := NewBuilder()
		if userFirst {
			b.Add(userRetry).Add(userBulkhead)
			b.Apply(preset)
		} else {
			b.Apply(preset)
			b.Add(userRetry).Add(userBulkhead)
		}

		set, err := b.Build()
		if err != nil {
			t.Fatalf("Build() error = %v", err)
		}
		if set.Len() != 3 {
			t.Fatalf("Len() = %d, want 3", set.Len())
		}

		retry, _ := set.Get(KindRetry)
		if retry.Params.(RetryOptions).MaxRetries != 1 {
			t.Errorf("userFirst=%v: retry came from the preset", userFirst)
		}
		breaker, ok := set.Get(KindCircuitBreaker)
		if !ok || breaker.Params.(CircuitBreakerOptions).MaxFailures != 10 {
			t.Errorf("userFirst=%v: preset-only breaker lost", userFirst)
		}
		if _, ok := set.Get(KindBulkhead); !ok {
			t.Errorf("userFirst=%v: user-only bulkhead lost", userFirst)
		}
	}
}

func TestBuilder_LastWriterWinsWithinLayer(t *testing.T) {
	b := NewBuilder().
		Add(TimeoutOverallPolicy(time.Second)).
		Add(TimeoutOverallPolicy(2 * time.Second))

	set, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	def, _ := set.Get(KindTimeoutOverall)
	if got := def.Params.(TimeoutOptions).Timeout; got != 2*time.Second {
		t.Errorf("timeout = %v, want 2s", got)
	}
}

func TestBuilder_BuildIsIdempotent(t *testing.T) {
	b := NewBuilder().Add(RetryPolicy(RetryOptions{}))

	first, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	second, _ := b.Build()
	if first != second {
		t.Error("Build() without changes returned a different set")
	}

	b.Add(BulkheadPolicy(BulkheadOptions{}))
	third, _ := b.Build()
	if third == first || third.Len() != 2 {
		t.Error("Build() after Add did not rebuild")
	}
	if first.Len() != 1 {
		t.Error("earlier set was mutated")
	}
}

func TestBuilder_OrdersByOrderThenRegistration(t *testing.T) {
	set, err := NewBuilder().
		Add(FallbackPolicy(FallbackOptions{Action: StaticResponse(200, "", nil)})).
		Add(BulkheadPolicy(BulkheadOptions{})).
		Add(TimeoutPerAttemptPolicy(time.Second)).
		Add(RetryPolicy(RetryOptions{})).
		Add(TimeoutOverallPolicy(time.Second)).
		Add(CustomPolicy("audit", 150, func(Diagnostics) Policy { return nil })).
		Build()
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"timeout_overall", "retry", "audit", "bulkhead", "timeout_per_attempt", "fallback"}
	defs := set.Definitions()
	if len(defs) != len(want) {
		t.Fatalf("len = %d, want %d", len(defs), len(want))
	}
	for i, d := range defs {
		if d.Name() != want[i] {
			t.Errorf("position %d = %s, want %s", i, d.Name(), want[i])
		}
	}
}

func TestBuilder_ValidationErrors(t *testing.T) {
	tests := []struct {
		name  string
		def   PolicyDefinition
		field string
	}{
		{"zero timeout", TimeoutOverallPolicy(0), "timeout"},
		{"negative attempt timeout", TimeoutPerAttemptPolicy(-time.Second), "timeout"},
		{"negative retries", RetryPolicy(RetryOptions{MaxRetries: -1}), "max_retries"},
		{"bad status", RetryPolicy(RetryOptions{StatusCodes: []int{42}}), "status_codes"},
		{"ratio", CircuitBreakerPolicy(CircuitBreakerOptions{FailureRatio: 1.5}), "failure_ratio"},
		{"queue", BulkheadPolicy(BulkheadOptions{MaxQueue: -1}), "max_queue"},
		{"rate", RateLimitPolicy(RateLimitOptions{}), "rate"},
		{"no action", FallbackPolicy(FallbackOptions{}), "action"},
		{"custom name", CustomPolicy("", 1, func(Diagnostics) Policy { return nil }), "name"},
		{"custom builtin name", CustomPolicy("retry", 1, func(Diagnostics) Policy { return nil }), "name"},
		{"mismatched params", PolicyDefinition{Kind: KindRetry, Params: TimeoutOptions{Timeout: 1}}, "parameters"},
		{"missing params", PolicyDefinition{Kind: KindBulkhead}, "parameters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBuilder().Add(tt.def).Build()
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("Build() error = %v, want ErrInvalidConfig", err)
			}
			var ce *ConfigError
			if !errors.As(err, &ce) || ce.Field != tt.field {
				t.Errorf("ConfigError = %+v, want field %q", ce, tt.field)
			}
		})
	}
}

func TestBuilder_MergeProperty(t *testing.T) {
	all := []PolicyDefinition{
		TimeoutOverallPolicy(time.Second),
		RetryPolicy(RetryOptions{}),
		CircuitBreakerPolicy(CircuitBreakerOptions{}),
		TimeoutPerAttemptPolicy(time.Second),
		BulkheadPolicy(BulkheadOptions{}),
		RateLimitPolicy(RateLimitOptions{Rate: 1}),
	}
	rng := rand.New(rand.NewPCG(1, 2))

	for iter := 0; iter < 200; iter++ {
		var presetDefs, userDefs []PolicyDefinition
		for _, d := range all {
			if rng.IntN(2) == 0 {
				presetDefs = append(presetDefs, d.WithOrder(rng.IntN(1000)))
			}
			if rng.IntN(2) == 0 {
				userDefs = append(userDefs, d.WithOrder(rng.IntN(1000)))
			}
		}

		p := &Preset{name: "p", configure: func(b *Builder) {
			for _, d := range presetDefs {
				b.Add(d)
			}
		}}
		b := NewBuilder().Apply(p)
		for _, d := range userDefs {
			b.Add(d)
		}
		set, err := b.Build()
		if err != nil {
			t.Fatal(err)
		}

		for _, d := range all {
			got, ok := set.Get(d.Kind)
			want, inUser := find(userDefs, d.Kind)
			if !inUser {
				want, ok = find(presetDefs, d.Kind)
				if !ok {
					if _, present := set.Get(d.Kind); present {
						t.Fatalf("iter %d: %s present but in neither layer", iter, d.Kind)
					}
					continue
				}
			}
			if got.Order != want.Order {
				t.Fatalf("iter %d: %s order = %d, want %d", iter, d.Kind, got.Order, want.Order)
			}
		}

		defs := set.Definitions()
		for i := 1; i < len(defs); i++ {
			if defs[i-1].Order > defs[i].Order {
				t.Fatalf("iter %d: definitions not sorted by order", iter)
			}
		}
	}
}

func find(defs []PolicyDefinition, kind Kind) (PolicyDefinition, bool) {
	for _, d := range defs {
		if d.Kind == kind {
			return d, true
		}
	}
	return PolicyDefinition{}, false
}

func TestPolicyDefinition_BuildPolicy(t *testing.T) {
	if _, err := TimeoutOverallPolicy(0).BuildPolicy(nil); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("BuildPolicy() error = %v, want ErrInvalidConfig", err)
	}
	p, err := RetryPolicy(RetryOptions{}).BuildPolicy(nil)
	if err != nil || p == nil {
		t.Errorf("BuildPolicy() = %v, %v", p, err)
	}
}

func TestKind_StringAndParse(t *testing.T) {
	for k := KindTimeoutOverall; k <= KindCustom; k++ {
		got, ok := ParseKind(k.String())
		if !ok || got != k {
			t.Errorf("ParseKind(%q) = %v, %v", k.String(), got, ok)
		}
	}
	if _, ok := ParseKind("nope"); ok {
		t.Error("ParseKind accepted an unknown name")
	}
	if order, ok := DefaultOrder(KindCustom); ok || order != 0 {
		t.Error("custom kind has a default order")
	}
}

func TestBuilder_ZeroRetriesOverridesPreset(t *testing.T) {
	standard, err := DefaultPresets().Get("standard")
	if err != nil {
		t.Fatal(err)
	}
	set, err := NewBuilder().Apply(standard).Add(RetryPolicy(RetryOptions{MaxRetries: 0})).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	var sends atomic.Int32
	boom := errors.New("connection reset")
	_, err = Compile(set, nil).Execute(newRequest(context.Background()), roundTripFunc(func(*http.Request) (*http.Response, error) {
		sends.Add(1)
		return nil, boom
	}))
	if !errors.Is(err, boom) {
		t.Fatalf("Execute() error = %v, want %v", err, boom)
	}
	if got := sends.Load(); got != 1 {
		t.Errorf("sends = %d, want 1", got)
	}
}
