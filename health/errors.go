package health

import "errors"

var (
	// ErrCircuitOpen is the error of a pipeline check whose circuit is open.
	ErrCircuitOpen = errors.New("health: circuit open")

	// ErrCheckTimeout indicates a health check timed out.
	ErrCheckTimeout = errors.New("health: check timeout")

	// ErrCheckerNotFound indicates a checker was not found.
	ErrCheckerNotFound = errors.New("health: checker not found")
)
