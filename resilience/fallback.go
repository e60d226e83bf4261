package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// FallbackAction produces the substitute result for a failed call. outcome
// is what the inner pipeline returned; its response body is closed after
// the action returns unless the action returns that same response.
type FallbackAction func(ctx context.Context, rc *Context, outcome Outcome) (*http.Response, error)

// FallbackOptions configures the Fallback and FallbackOnBreak policies.
type FallbackOptions struct {
	// Action is required.
	Action FallbackAction

	// ShouldHandle decides which outcomes are replaced.
	// Default: IsFailure for Fallback, an open circuit for FallbackOnBreak
	ShouldHandle Predicate
}

// IsCircuitOpen matches calls rejected by an open circuit breaker.
func IsCircuitOpen(_ *http.Response, err error) bool {
	return errors.Is(err, ErrCircuitOpen)
}

func (o FallbackOptions) validate(kind Kind) error {
	if kind != KindFallback && kind != KindFallbackOnBreak {
		return configErr(kind, "parameters", "must not be fallback options")
	}
	if o.Action == nil {
		return configErr(kind, "action", "is required")
	}
	return nil
}

func (o FallbackOptions) build(kind Kind, diag Diagnostics, _ *compileEnv) Policy {
	handle := o.ShouldHandle
	if handle == nil {
		if kind == KindFallbackOnBreak {
			handle = IsCircuitOpen
		} else {
			handle = IsFailure
		}
	}

	return func(next Handler) Handler {
		return func(ctx context.Context, rc *Context) (*http.Response, error) {
			resp, err := next(ctx, rc)
			if rc.Canceled() || IsCancellation(err) {
				return resp, err
			}
			if !handle(resp, err) {
				return resp, err
			}

			outcome := Outcome{Response: resp, Err: err}
			rc.Set(KeyFallbackEngaged, true)

			fresp, ferr := o.Action(ctx, rc, outcome)
			if resp != nil && resp != fresp {
				drain(resp)
			}
			diag.OnFallback(rc.Request(), outcome)

			if ferr != nil {
				return nil, fmt.Errorf("resilience: fallback action: %w", ferr)
			}
			return fresp, nil
		}
	}
}

// StaticResponse returns an action that answers with a fixed status, body
// and headers.
func StaticResponse(status int, body string, header http.Header) FallbackAction {
	return func(_ context.Context, rc *Context, _ Outcome) (*http.Response, error) {
		h := header.Clone()
		if h == nil {
			h = make(http.Header)
		}
		if body != "" && h.Get("Content-Type") == "" {
			h.Set("Content-Type", "text/plain; charset=utf-8")
		}
		return &http.Response{
			Status:        strconv.Itoa(status) + " " + http.StatusText(status),
			StatusCode:    status,
			Proto:         "HTTP/1.1",
			ProtoMajor:    1,
			ProtoMinor:    1,
			Header:        h,
			Body:          io.NopCloser(strings.NewReader(body)),
			ContentLength: int64(len(body)),
			Request:       rc.Request(),
		}, nil
	}
}
