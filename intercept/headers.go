package intercept

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"github.com/google/uuid"

	"github.com/jonwraymond/httpchain/secret"
)

// DefaultRequestIDHeader is the header that carries generated request IDs.
const DefaultRequestIDHeader = "X-Request-ID"

// HeadersConfig configures the headers interceptor.
type HeadersConfig struct {
	// Static headers added to every request. Values may reference
	// environment variables (${NAME}) and secrets (secretref:<provider>:<ref>).
	Static map[string]string

	// Resolver resolves Static values. A nil resolver expands environment
	// variables only.
	Resolver *secret.Resolver

	// RequestID adds a random UUID header to each request.
	// Default: false
	RequestID bool

	// RequestIDHeader names the request ID header.
	// Default: "X-Request-ID"
	RequestIDHeader string
}

type headerValue struct {
	name  string
	value string
}

type headersInterceptor struct {
	values    []headerValue
	requestID string
}

// Headers resolves the configured values once and returns an interceptor
// that adds them to requests lacking them. Headers already present on a
// request are never replaced.
func Headers(cfg HeadersConfig) (Interceptor, error) {
	resolved, err := cfg.Resolver.ResolveMap(context.Background(), cfg.Static)
	if err != nil {
		return nil, fmt.Errorf("intercept: headers: %w", err)
	}

	h := &headersInterceptor{values: make([]headerValue, 0, len(resolved))}
	for name, value := range resolved {
		h.values = append(h.values, headerValue{name: http.CanonicalHeaderKey(name), value: value})
	}
	sort.Slice(h.values, func(i, j int) bool { return h.values[i].name < h.values[j].name })

	if cfg.RequestID {
		h.requestID = cfg.RequestIDHeader
		if h.requestID == "" {
			h.requestID = DefaultRequestIDHeader
		}
	}
	return h, nil
}

func (*headersInterceptor) OrderingKey() OrderingKey { return KeyHeaders }

func (h *headersInterceptor) Intercept(req *http.Request, next http.RoundTripper) (*http.Response, error) {
	out := req.Clone(req.Context())
	for _, hv := range h.values {
		if out.Header.Get(hv.name) == "" {
			out.Header.Set(hv.name, hv.value)
		}
	}
	if h.requestID != "" && out.Header.Get(h.requestID) == "" {
		out.Header.Set(h.requestID, uuid.NewString())
	}
	return next.RoundTrip(out)
}
