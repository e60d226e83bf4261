package intercept

import (
	"net/http"

	"github.com/jonwraymond/httpchain/resilience"
)

type resiliencyInterceptor struct {
	pipeline *resilience.Pipeline
}

// Resiliency runs the rest of the chain through a compiled policy
// pipeline. Every retry attempt sends through the interceptors nested
// inside it. A nil pipeline returns nil, which Assembler.Add rejects with
// ErrNilInterceptor.
func Resiliency(p *resilience.Pipeline) Interceptor {
	if p == nil {
		return nil
	}
	return &resiliencyInterceptor{pipeline: p}
}

func (*resiliencyInterceptor) OrderingKey() OrderingKey { return KeyResiliency }

func (r *resiliencyInterceptor) Intercept(req *http.Request, next http.RoundTripper) (*http.Response, error) {
	return r.pipeline.Execute(req, next)
}
