package auth

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

func newRequest(t *testing.T) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, "https://api.example.com/v1/items", nil)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	return req
}

func TestStaticSources(t *testing.T) {
	bearer, err := Bearer(" tok-123 ")
	if err != nil {
		t.Fatalf("Bearer() error = %v", err)
	}
	apiKey, err := APIKey("", "k-1")
	if err != nil {
		t.Fatalf("APIKey() error = %v", err)
	}
	custom, err := APIKey("x-service-key", "k-2")
	if err != nil {
		t.Fatalf("APIKey() error = %v", err)
	}
	basic, err := Basic("alice", "pw")
	if err != nil {
		t.Fatalf("Basic() error = %v", err)
	}

	tests := []struct {
		name   string
		source CredentialSource
		header string
		want   string
	}{
		{name: "bearer", source: bearer, header: "Authorization", want: "Bearer tok-123"},
		{name: "api_key", source: apiKey, header: "X-API-Key", want: "k-1"},
		{name: "api_key", source: custom, header: "X-Service-Key", want: "k-2"},
		{name: "basic", source: basic, header: "Authorization", want: "Basic YWxpY2U6cHc="},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			req := newRequest(t)
			if err := tt.source.Apply(context.Background(), req); err != nil {
				t.Fatalf("Apply() error = %v", err)
			}
			if got := req.Header.Get(tt.header); got != tt.want {
				t.Errorf("%s = %q, want %q", tt.header, got, tt.want)
			}
			if tt.source.Name() != tt.name {
				t.Errorf("Name() = %q, want %q", tt.source.Name(), tt.name)
			}
		})
	}
}

func TestStaticSources_MissingCredentials(t *testing.T) {
	if _, err := Bearer("  "); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("Bearer(empty) error = %v, want ErrMissingCredentials", err)
	}
	if _, err := APIKey("X-Key", ""); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("APIKey(empty) error = %v, want ErrMissingCredentials", err)
	}
	if _, err := Basic("", "pw"); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("Basic(empty) error = %v, want ErrMissingCredentials", err)
	}
}

func TestSourceFunc(t *testing.T) {
	src := SourceFunc{
		SourceName: "signed",
		Fn: func(_ context.Context, req *http.Request) error {
			req.Header.Set("X-Signature", "abc")
			return nil
		},
	}
	req := newRequest(t)
	if err := src.Apply(context.Background(), req); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if req.Header.Get("X-Signature") != "abc" || src.Name() != "signed" {
		t.Errorf("unexpected result: header=%q name=%q", req.Header.Get("X-Signature"), src.Name())
	}
}
