package auth

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
)

// CredentialSource applies credentials to an outgoing request.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Apply modifies req in place; callers pass a clone they own.
// - Errors: a source that cannot produce credentials returns an error
//   wrapping ErrMissingCredentials or ErrTokenRequest.
type CredentialSource interface {
	// Name identifies the source in logs and errors.
	Name() string

	// Apply sets the credentials on req.
	Apply(ctx context.Context, req *http.Request) error
}

// SourceFunc adapts a function to a CredentialSource.
type SourceFunc struct {
	SourceName string
	Fn         func(ctx context.Context, req *http.Request) error
}

// Name returns SourceName.
func (s SourceFunc) Name() string { return s.SourceName }

// Apply calls Fn.
func (s SourceFunc) Apply(ctx context.Context, req *http.Request) error {
	return s.Fn(ctx, req)
}

type headerSource struct {
	name   string
	header string
	value  string
}

func (s *headerSource) Name() string { return s.name }

func (s *headerSource) Apply(_ context.Context, req *http.Request) error {
	req.Header.Set(s.header, s.value)
	return nil
}

// Bearer returns a source that sends "Authorization: Bearer <token>".
func Bearer(token string) (CredentialSource, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: bearer token is empty", ErrMissingCredentials)
	}
	return &headerSource{name: "bearer", header: "Authorization", value: "Bearer " + token}, nil
}

// DefaultAPIKeyHeader is the header APIKey uses when none is given.
const DefaultAPIKeyHeader = "X-API-Key"

// APIKey returns a source that sends key in header.
// Default header: "X-API-Key"
func APIKey(header, key string) (CredentialSource, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: api key is empty", ErrMissingCredentials)
	}
	if header == "" {
		header = DefaultAPIKeyHeader
	}
	return &headerSource{name: "api_key", header: http.CanonicalHeaderKey(header), value: key}, nil
}

// Basic returns a source that sends HTTP basic credentials.
func Basic(username, password string) (CredentialSource, error) {
	if username == "" {
		return nil, fmt.Errorf("%w: basic auth username is empty", ErrMissingCredentials)
	}
	encoded := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
	return &headerSource{name: "basic", header: "Authorization", value: "Basic " + encoded}, nil
}
