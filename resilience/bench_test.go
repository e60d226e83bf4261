package resilience

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"
)

func BenchmarkCircuitBreaker_AllowRecord(b *testing.B) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{MaxFailures: 100})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if cb.Allow() == nil {
			cb.Record(false)
		}
	}
}

func BenchmarkBulkhead_AcquireRelease(b *testing.B) {
	bh := NewBulkhead(BulkheadConfig{MaxConcurrent: 100})
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = bh.Acquire(ctx)
		bh.Release()
	}
}

func BenchmarkRateLimiter_Allow(b *testing.B) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 1e9, Burst: 1e9})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = rl.Allow()
	}
}

func BenchmarkPipeline_Standard(b *testing.B) {
	set, err := NewBuilder().Apply(mustPresetB(b, PresetStandard)).Build()
	if err != nil {
		b.Fatal(err)
	}
	p := Compile(set, nil)
	transport := statusTransport(http.StatusOK, new(atomic.Int32), nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		resp, err := p.Execute(newRequest(context.Background()), transport)
		if err == nil {
			resp.Body.Close()
		}
	}
}

func BenchmarkPipeline_Concurrent(b *testing.B) {
	set, _ := NewBuilder().
		Add(BulkheadPolicy(BulkheadOptions{MaxConcurrent: 1000, MaxQueue: 1000})).
		Add(CircuitBreakerPolicy(CircuitBreakerOptions{MaxFailures: 1000})).
		Add(TimeoutOverallPolicy(time.Second)).
		Build()
	p := Compile(set, nil)
	transport := statusTransport(http.StatusOK, new(atomic.Int32), nil)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			resp, err := p.Execute(newRequest(context.Background()), transport)
			if err == nil {
				resp.Body.Close()
			}
		}
	})
}

func BenchmarkBuilder_Build(b *testing.B) {
	preset := mustPresetB(b, PresetCritical)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = NewBuilder().Apply(preset).Add(RetryPolicy(RetryOptions{MaxRetries: 1})).Build()
	}
}

func mustPresetB(b *testing.B, name string) *Preset {
	b.Helper()
	p, err := DefaultPresets().Get(name)
	if err != nil {
		b.Fatal(err)
	}
	return p
}
