package secret

import "errors"

// Sentinel errors for secret resolution.
var (
	ErrMissingEnv       = errors.New("secret: missing environment variable")
	ErrProviderNotFound = errors.New("secret: provider not registered")
	ErrNotFound         = errors.New("secret: not found")
	ErrEmptySecret      = errors.New("secret: empty value")
	ErrInvalidRef       = errors.New("secret: invalid reference")
)
