package auth

import "errors"

// Sentinel errors for credential sources.
var (
	ErrMissingCredentials = errors.New("auth: missing credentials")
	ErrInvalidConfig      = errors.New("auth: invalid configuration")
	ErrTokenRequest       = errors.New("auth: token request failed")
	ErrTokenMalformed     = errors.New("auth: token response malformed")
	ErrUnknownSource      = errors.New("auth: unknown credential source")
)
