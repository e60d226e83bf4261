package intercept

import (
	"fmt"
	"net/http"
)

// HooksConfig holds request lifecycle callbacks. At least one must be set.
type HooksConfig struct {
	// Before runs on a clone of the request before it is sent and may
	// change it. An error aborts the request.
	Before func(req *http.Request) error

	// After runs on each response. An error discards the response.
	After func(req *http.Request, resp *http.Response) error

	// OnError runs when the request ends in an error.
	OnError func(req *http.Request, err error)
}

type hooksInterceptor struct {
	cfg HooksConfig
}

// Hooks returns an interceptor running the configured callbacks.
func Hooks(cfg HooksConfig) (Interceptor, error) {
	if cfg.Before == nil && cfg.After == nil && cfg.OnError == nil {
		return nil, ErrMissingHook
	}
	return &hooksInterceptor{cfg: cfg}, nil
}

func (*hooksInterceptor) OrderingKey() OrderingKey { return KeyHooks }

func (h *hooksInterceptor) Intercept(req *http.Request, next http.RoundTripper) (*http.Response, error) {
	out := req
	if h.cfg.Before != nil {
		out = req.Clone(req.Context())
		if err := h.cfg.Before(out); err != nil {
			return nil, h.fail(out, fmt.Errorf("intercept: before hook: %w", err))
		}
	}

	resp, err := next.RoundTrip(out)
	if err != nil {
		discard(resp)
		return nil, h.fail(out, err)
	}

	if h.cfg.After != nil {
		if err := h.cfg.After(out, resp); err != nil {
			discard(resp)
			return nil, h.fail(out, fmt.Errorf("intercept: after hook: %w", err))
		}
	}
	return resp, nil
}

func (h *hooksInterceptor) fail(req *http.Request, err error) error {
	if h.cfg.OnError != nil {
		h.cfg.OnError(req, err)
	}
	return err
}
