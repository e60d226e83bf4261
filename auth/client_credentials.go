package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client authentication methods for the token endpoint.
const (
	ClientSecretBasic = "client_secret_basic"
	ClientSecretPost  = "client_secret_post"
)

// ClientCredentialsConfig configures the OAuth2 client credentials grant.
type ClientCredentialsConfig struct {
	// TokenURL is the token endpoint.
	TokenURL string

	ClientID     string
	ClientSecret string

	// Scopes are sent space-separated in the scope parameter.
	Scopes []string

	// Audience is sent as the audience parameter when not empty.
	Audience string

	// AuthMethod is how the client authenticates to the token endpoint.
	// Options: "client_secret_basic" (default), "client_secret_post"
	AuthMethod string

	// Timeout bounds each token request.
	// Default: 10 seconds
	Timeout time.Duration

	// Leeway is how long before expiry the token is refreshed.
	// Default: 30 seconds
	Leeway time.Duration

	// HTTPClient sends token requests. If nil, a client with Timeout is used.
	HTTPClient *http.Client
}

// Validate checks the configuration.
func (c ClientCredentialsConfig) Validate() error {
	if c.TokenURL == "" {
		return fmt.Errorf("%w: token_url is required", ErrInvalidConfig)
	}
	if _, err := url.ParseRequestURI(c.TokenURL); err != nil {
		return fmt.Errorf("%w: token_url: %v", ErrInvalidConfig, err)
	}
	if c.ClientID == "" {
		return fmt.Errorf("%w: client_id is required", ErrMissingCredentials)
	}
	switch c.AuthMethod {
	case "", ClientSecretBasic, ClientSecretPost:
	default:
		return fmt.Errorf("%w: unknown auth method %q", ErrInvalidConfig, c.AuthMethod)
	}
	return nil
}

// ClientCredentialsProvider fetches access tokens from a token endpoint.
type ClientCredentialsProvider struct {
	config     ClientCredentialsConfig
	httpClient *http.Client
	now        func() time.Time
}

// NewClientCredentialsProvider validates config and returns a provider.
func NewClientCredentialsProvider(config ClientCredentialsConfig) (*ClientCredentialsProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.AuthMethod == "" {
		config.AuthMethod = ClientSecretBasic
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}
	return &ClientCredentialsProvider{config: config, httpClient: httpClient, now: time.Now}, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Token requests a new access token.
func (p *ClientCredentialsProvider) Token(ctx context.Context) (Token, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	if len(p.config.Scopes) > 0 {
		form.Set("scope", strings.Join(p.config.Scopes, " "))
	}
	if p.config.Audience != "" {
		form.Set("audience", p.config.Audience)
	}
	if p.config.AuthMethod == ClientSecretPost {
		form.Set("client_id", p.config.ClientID)
		form.Set("client_secret", p.config.ClientSecret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Token{}, fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if p.config.AuthMethod == ClientSecretBasic {
		req.SetBasicAuth(url.QueryEscape(p.config.ClientID), url.QueryEscape(p.config.ClientSecret))
	}

	issued := p.now()
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return Token{}, fmt.Errorf("%w: %v", ErrTokenRequest, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return Token{}, fmt.Errorf("%w: status %d", ErrTokenRequest, resp.StatusCode)
	}

	var body tokenResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return Token{}, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
	if body.AccessToken == "" {
		return Token{}, fmt.Errorf("%w: access_token is empty", ErrTokenMalformed)
	}

	tok := Token{Value: body.AccessToken, Type: tokenType(body.TokenType)}
	if body.ExpiresIn > 0 {
		tok.Expiry = issued.Add(time.Duration(body.ExpiresIn) * time.Second)
	}
	return tok, nil
}

// tokenType normalizes the scheme; servers commonly answer "bearer".
func tokenType(t string) string {
	if t == "" || strings.EqualFold(t, "bearer") {
		return "Bearer"
	}
	return t
}

// NewClientCredentialsSource returns a source sending cached access tokens
// obtained with the client credentials grant.
func NewClientCredentialsSource(config ClientCredentialsConfig) (CredentialSource, error) {
	provider, err := NewClientCredentialsProvider(config)
	if err != nil {
		return nil, err
	}
	return NewTokenSource("client_credentials", NewCachingProvider(provider, config.Leeway)), nil
}
