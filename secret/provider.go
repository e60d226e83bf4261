package secret

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Provider resolves secrets by reference.
//
// Implementations must be safe for concurrent use and must not log secret
// values.
type Provider interface {
	Name() string
	Resolve(ctx context.Context, ref string) (string, error)
}

// EnvProvider resolves a reference as an environment variable name.
type EnvProvider struct{}

// Name returns "env".
func (EnvProvider) Name() string { return "env" }

// Resolve returns the value of the variable ref.
func (EnvProvider) Resolve(_ context.Context, ref string) (string, error) {
	v, ok := os.LookupEnv(ref)
	if !ok {
		return "", fmt.Errorf("%w: env %s", ErrNotFound, ref)
	}
	return v, nil
}

// FileProvider resolves a reference as a file below Dir, the layout used
// by mounted secret volumes. Trailing newlines are trimmed.
type FileProvider struct {
	Dir string
}

// Name returns "file".
func (p FileProvider) Name() string { return "file" }

// Resolve reads the file ref. References may not leave Dir.
func (p FileProvider) Resolve(_ context.Context, ref string) (string, error) {
	clean := filepath.Clean("/" + ref)
	if clean == "/" {
		return "", fmt.Errorf("%w: empty file reference", ErrInvalidRef)
	}
	if filepath.Clean(ref) != strings.TrimPrefix(clean, "/") {
		return "", fmt.Errorf("%w: file reference %q escapes its directory", ErrInvalidRef, ref)
	}

	data, err := os.ReadFile(filepath.Join(p.Dir, clean))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: file %s", ErrNotFound, ref)
		}
		return "", fmt.Errorf("secret: read %s: %w", ref, err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

// MapProvider resolves references from a fixed map.
type MapProvider struct {
	ProviderName string

	mu     sync.RWMutex
	values map[string]string
}

// NewMapProvider returns a provider named name holding a copy of values.
func NewMapProvider(name string, values map[string]string) *MapProvider {
	p := &MapProvider{ProviderName: name, values: make(map[string]string, len(values))}
	for k, v := range values {
		p.values[k] = v
	}
	return p
}

// Name returns ProviderName.
func (p *MapProvider) Name() string { return p.ProviderName }

// Set stores a value.
func (p *MapProvider) Set(ref, value string) {
	p.mu.Lock()
	p.values[ref] = value
	p.mu.Unlock()
}

// Resolve returns the value stored for ref.
func (p *MapProvider) Resolve(_ context.Context, ref string) (string, error) {
	p.mu.RLock()
	v, ok := p.values[ref]
	p.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s:%s", ErrNotFound, p.ProviderName, ref)
	}
	return v, nil
}
