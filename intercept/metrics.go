package intercept

import (
	"net/http"
	"time"

	"github.com/jonwraymond/httpchain/observe"
)

type metricsInterceptor struct {
	metrics observe.Metrics
}

// Metrics records request counts, failures and durations. A nil recorder
// returns nil, which Assembler.Add rejects with ErrNilInterceptor.
func Metrics(m observe.Metrics) Interceptor {
	if m == nil {
		return nil
	}
	return &metricsInterceptor{metrics: m}
}

func (*metricsInterceptor) OrderingKey() OrderingKey { return KeyMetrics }

func (m *metricsInterceptor) Intercept(req *http.Request, next http.RoundTripper) (*http.Response, error) {
	ctx := req.Context()
	meta := metaOf(req)
	m.metrics.RecordRequest(ctx, meta)

	start := time.Now()
	resp, err := next.RoundTrip(req)

	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	m.metrics.RecordDuration(ctx, meta, status, time.Since(start))
	if err != nil {
		m.metrics.RecordFailure(ctx, meta, err)
	}
	return resp, err
}
