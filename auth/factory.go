package auth

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// SourceFactory creates a credential source from configuration.
type SourceFactory func(cfg map[string]any) (CredentialSource, error)

// Registry maps source type names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]SourceFactory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]SourceFactory)}
}

// Register adds a factory.
func (r *Registry) Register(name string, factory SourceFactory) error {
	if name == "" || factory == nil {
		return errors.New("auth: invalid source registration")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("auth: source %q already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// Create instantiates a source by type name.
func (r *Registry) Create(name string, cfg map[string]any) (CredentialSource, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, name)
	}
	return factory(cfg)
}

// List returns the registered type names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry holds the built-in source types.
var DefaultRegistry = NewRegistry()

func init() {
	_ = DefaultRegistry.Register("bearer", func(cfg map[string]any) (CredentialSource, error) {
		return Bearer(stringOpt(cfg, "token"))
	})

	_ = DefaultRegistry.Register("api_key", func(cfg map[string]any) (CredentialSource, error) {
		return APIKey(stringOpt(cfg, "header"), stringOpt(cfg, "key"))
	})

	_ = DefaultRegistry.Register("basic", func(cfg map[string]any) (CredentialSource, error) {
		return Basic(stringOpt(cfg, "username"), stringOpt(cfg, "password"))
	})

	_ = DefaultRegistry.Register("jwt", func(cfg map[string]any) (CredentialSource, error) {
		config := JWTConfig{
			Issuer:   stringOpt(cfg, "issuer"),
			Subject:  stringOpt(cfg, "subject"),
			Audience: stringOpt(cfg, "audience"),
			KeyID:    stringOpt(cfg, "key_id"),
			Method:   stringOpt(cfg, "method"),
		}
		if secret := stringOpt(cfg, "secret"); secret != "" {
			config.Key = []byte(secret)
		}
		var err error
		if config.TTL, err = durationOpt(cfg, "ttl"); err != nil {
			return nil, err
		}
		if config.Leeway, err = durationOpt(cfg, "leeway"); err != nil {
			return nil, err
		}
		if claims, ok := cfg["claims"].(map[string]any); ok {
			config.Claims = claims
		}
		return NewJWTSource(config)
	})

	_ = DefaultRegistry.Register("client_credentials", func(cfg map[string]any) (CredentialSource, error) {
		config := ClientCredentialsConfig{
			TokenURL:     stringOpt(cfg, "token_url"),
			ClientID:     stringOpt(cfg, "client_id"),
			ClientSecret: stringOpt(cfg, "client_secret"),
			Audience:     stringOpt(cfg, "audience"),
			AuthMethod:   stringOpt(cfg, "auth_method"),
		}
		if scopes, ok := cfg["scopes"].([]any); ok {
			for _, s := range scopes {
				if str, ok := s.(string); ok {
					config.Scopes = append(config.Scopes, str)
				}
			}
		}
		var err error
		if config.Timeout, err = durationOpt(cfg, "timeout"); err != nil {
			return nil, err
		}
		if config.Leeway, err = durationOpt(cfg, "leeway"); err != nil {
			return nil, err
		}
		return NewClientCredentialsSource(config)
	})
}

func stringOpt(cfg map[string]any, key string) string {
	s, _ := cfg[key].(string)
	return s
}

func durationOpt(cfg map[string]any, key string) (time.Duration, error) {
	s, ok := cfg[key].(string)
	if !ok || s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
	}
	return d, nil
}
