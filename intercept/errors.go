package intercept

import "errors"

// Sentinel errors for chain assembly.
var (
	// ErrNilInterceptor is returned when a nil interceptor is added.
	ErrNilInterceptor = errors.New("intercept: nil interceptor")

	// ErrMissingHook is returned by Hooks when no callback is configured.
	ErrMissingHook = errors.New("intercept: hooks configured without callbacks")
)
