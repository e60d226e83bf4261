package httpclient

import "errors"

// Sentinel errors for client construction.
var (
	// ErrInvalidConfig is returned when options or configuration are invalid.
	ErrInvalidConfig = errors.New("httpclient: invalid configuration")

	// ErrUnknownClient is returned by Factory.Client for unconfigured names.
	ErrUnknownClient = errors.New("httpclient: unknown client")
)
