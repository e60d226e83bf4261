package auth

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Token is an access token with an optional expiry.
type Token struct {
	Value string

	// Type is the Authorization scheme.
	// Default: "Bearer"
	Type string

	// Expiry is zero for tokens that do not expire.
	Expiry time.Time
}

// Valid reports whether the token is set and not expired at now, allowing
// for leeway.
func (t Token) Valid(now time.Time, leeway time.Duration) bool {
	if t.Value == "" {
		return false
	}
	return t.Expiry.IsZero() || now.Add(leeway).Before(t.Expiry)
}

// HeaderValue returns the Authorization header value.
func (t Token) HeaderValue() string {
	typ := t.Type
	if typ == "" {
		typ = "Bearer"
	}
	return typ + " " + t.Value
}

// TokenProvider fetches tokens.
type TokenProvider interface {
	Token(ctx context.Context) (Token, error)
}

// TokenProviderFunc adapts a function to TokenProvider.
type TokenProviderFunc func(ctx context.Context) (Token, error)

// Token calls f.
func (f TokenProviderFunc) Token(ctx context.Context) (Token, error) {
	return f(ctx)
}

// DefaultLeeway is how long before expiry a cached token is refreshed.
const DefaultLeeway = 30 * time.Second

// CachingProvider caches a token from an underlying provider until it is
// about to expire. Concurrent refreshes share a single fetch.
type CachingProvider struct {
	provider TokenProvider
	leeway   time.Duration
	now      func() time.Time

	mu    sync.RWMutex
	token Token
	group singleflight.Group
}

// NewCachingProvider wraps provider. A leeway <= 0 uses DefaultLeeway.
func NewCachingProvider(provider TokenProvider, leeway time.Duration) *CachingProvider {
	if leeway <= 0 {
		leeway = DefaultLeeway
	}
	return &CachingProvider{provider: provider, leeway: leeway, now: time.Now}
}

// Token returns the cached token or fetches a new one.
func (c *CachingProvider) Token(ctx context.Context) (Token, error) {
	c.mu.RLock()
	tok := c.token
	c.mu.RUnlock()
	if tok.Valid(c.now(), c.leeway) {
		return tok, nil
	}

	v, err, _ := c.group.Do("token", func() (any, error) {
		c.mu.RLock()
		cached := c.token
		c.mu.RUnlock()
		if cached.Valid(c.now(), c.leeway) {
			return cached, nil
		}

		fresh, err := c.provider.Token(ctx)
		if err != nil {
			return Token{}, err
		}
		c.mu.Lock()
		c.token = fresh
		c.mu.Unlock()
		return fresh, nil
	})
	if err != nil {
		return Token{}, err
	}
	return v.(Token), nil
}

// Invalidate drops the cached token.
func (c *CachingProvider) Invalidate() {
	c.mu.Lock()
	c.token = Token{}
	c.mu.Unlock()
}

type tokenSource struct {
	name     string
	provider TokenProvider
}

// NewTokenSource returns a source that sets the Authorization header from
// provider.
func NewTokenSource(name string, provider TokenProvider) CredentialSource {
	return &tokenSource{name: name, provider: provider}
}

func (s *tokenSource) Name() string { return s.name }

func (s *tokenSource) Apply(ctx context.Context, req *http.Request) error {
	tok, err := s.provider.Token(ctx)
	if err != nil {
		return err
	}
	if tok.Value == "" {
		return fmt.Errorf("%w: %s returned an empty token", ErrMissingCredentials, s.name)
	}
	req.Header.Set("Authorization", tok.HeaderValue())
	return nil
}
