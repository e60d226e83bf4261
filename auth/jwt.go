package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// JWTConfig configures a source that signs its own short-lived JWT
// assertions.
type JWTConfig struct {
	// Issuer is the iss claim.
	Issuer string

	// Subject is the sub claim.
	// Default: Issuer
	Subject string

	// Audience is the aud claim.
	Audience string

	// KeyID is set as the kid header when not empty.
	KeyID string

	// Method is the signing algorithm name.
	// Default: "HS256"
	Method string

	// Key signs the token: []byte for HMAC methods, a private key for
	// RSA, ECDSA and EdDSA methods.
	Key any

	// TTL is the lifetime of each token.
	// Default: 5 minutes
	TTL time.Duration

	// Leeway is how long before expiry a new token is signed.
	// Default: 30 seconds
	Leeway time.Duration

	// Claims are added to every token. Registered claims set above win.
	Claims map[string]any
}

// JWTProvider signs a new token on every call.
type JWTProvider struct {
	config JWTConfig
	method jwt.SigningMethod
	now    func() time.Time
}

// NewJWTProvider validates config and returns a provider.
func NewJWTProvider(config JWTConfig) (*JWTProvider, error) {
	if config.Method == "" {
		config.Method = jwt.SigningMethodHS256.Alg()
	}
	if config.TTL <= 0 {
		config.TTL = 5 * time.Minute
	}
	if config.Subject == "" {
		config.Subject = config.Issuer
	}

	method := jwt.GetSigningMethod(config.Method)
	if method == nil {
		return nil, fmt.Errorf("%w: unknown jwt signing method %q", ErrInvalidConfig, config.Method)
	}
	if config.Key == nil {
		return nil, fmt.Errorf("%w: jwt signing key is required", ErrMissingCredentials)
	}
	if key, ok := config.Key.([]byte); ok {
		if !strings.HasPrefix(method.Alg(), "HS") {
			return nil, fmt.Errorf("%w: %s needs a private key, not a byte secret", ErrInvalidConfig, method.Alg())
		}
		if len(key) == 0 {
			return nil, fmt.Errorf("%w: jwt signing key is empty", ErrMissingCredentials)
		}
	}

	return &JWTProvider{config: config, method: method, now: time.Now}, nil
}

// Token signs a token valid for the configured TTL.
func (p *JWTProvider) Token(_ context.Context) (Token, error) {
	now := p.now()
	exp := now.Add(p.config.TTL)

	claims := jwt.MapClaims{}
	for k, v := range p.config.Claims {
		claims[k] = v
	}
	claims["iat"] = now.Unix()
	claims["nbf"] = now.Unix()
	claims["exp"] = exp.Unix()
	claims["jti"] = uuid.NewString()
	if p.config.Issuer != "" {
		claims["iss"] = p.config.Issuer
	}
	if p.config.Subject != "" {
		claims["sub"] = p.config.Subject
	}
	if p.config.Audience != "" {
		claims["aud"] = p.config.Audience
	}

	token := jwt.NewWithClaims(p.method, claims)
	if p.config.KeyID != "" {
		token.Header["kid"] = p.config.KeyID
	}

	signed, err := token.SignedString(p.config.Key)
	if err != nil {
		return Token{}, fmt.Errorf("%w: sign jwt: %v", ErrTokenRequest, err)
	}
	return Token{Value: signed, Type: "Bearer", Expiry: time.Unix(exp.Unix(), 0)}, nil
}

// NewJWTSource returns a source sending cached self-signed JWTs.
func NewJWTSource(config JWTConfig) (CredentialSource, error) {
	provider, err := NewJWTProvider(config)
	if err != nil {
		return nil, err
	}
	return NewTokenSource("jwt", NewCachingProvider(provider, config.Leeway)), nil
}
