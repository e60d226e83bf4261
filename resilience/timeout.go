package resilience

import (
	"context"
	"errors"
	"time"
)

// TimeoutConfig configures the timeout wrapper.
type TimeoutConfig struct {
	// Timeout is the maximum duration for the operation.
	// Default: 30 seconds
	Timeout time.Duration
}

// Timeout wraps operations with a timeout.
type Timeout struct {
	config TimeoutConfig
}

// NewTimeout creates a new timeout wrapper.
func NewTimeout(config TimeoutConfig) *Timeout {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	return &Timeout{config: config}
}

// Execute runs the operation with a timeout. It returns ErrTimeout promptly
// when the timeout expires, even if op has not returned yet.
func (t *Timeout) Execute(ctx context.Context, op func(context.Context) error) error {
	_, err := within(ctx, t.config.Timeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	}, nil, nil)
	if errors.Is(err, errExpired) {
		return ErrTimeout
	}
	return err
}

// Config returns the timeout configuration.
func (t *Timeout) Config() TimeoutConfig {
	return t.config
}

// ExecuteWithTimeout is a convenience function to run an operation with timeout.
func ExecuteWithTimeout(ctx context.Context, timeout time.Duration, op func(context.Context) error) error {
	t := NewTimeout(TimeoutConfig{Timeout: timeout})
	return t.Execute(ctx, op)
}

// errExpired is returned by within when its own bound expired. Callers
// translate it into ErrTimeout or a *TimeoutError.
var errExpired = errors.New("resilience: bound expired")

// within runs op bounded by d. When d expires first it returns errExpired
// without waiting for op; a value op produces afterwards is handed to
// discard. If ctx itself is done, ctx's error is returned instead.
//
// The bound is released when within returns unless hold takes ownership of
// it for a successful value; hold reports whether it did.
func within[T any](
	ctx context.Context,
	d time.Duration,
	op func(context.Context) (T, error),
	discard func(T),
	hold func(T, context.CancelFunc) bool,
) (T, error) {
	tctx, cancel := context.WithTimeout(ctx, d)
	held := false
	defer func() {
		if !held {
			cancel()
		}
	}()

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)

	go func() {
		v, err := op(tctx)
		done <- result{v: v, err: err}
	}()

	var zero T
	select {
	case r := <-done:
		if r.err != nil && ctx.Err() == nil && errors.Is(tctx.Err(), context.DeadlineExceeded) {
			if discard != nil {
				discard(r.v)
			}
			return zero, errExpired
		}
		if r.err == nil && hold != nil {
			held = hold(r.v, cancel)
		}
		return r.v, r.err
	case <-tctx.Done():
		go func() {
			r := <-done
			if discard != nil {
				discard(r.v)
			}
		}()
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		return zero, errExpired
	}
}
