package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func tokenServer(t *testing.T, hits *atomic.Int32, check func(r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm() error = %v", err)
		}
		if r.PostForm.Get("grant_type") != "client_credentials" {
			t.Errorf("grant_type = %q", r.PostForm.Get("grant_type"))
		}
		if check != nil {
			check(r)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at-1","token_type":"bearer","expires_in":3600}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClientCredentials_BasicAuth(t *testing.T) {
	var hits atomic.Int32
	srv := tokenServer(t, &hits, func(r *http.Request) {
		id, secret, ok := r.BasicAuth()
		if !ok || id != "svc" || secret != "s3cret" {
			t.Errorf("BasicAuth() = %q %q %v", id, secret, ok)
		}
		if got := r.PostForm.Get("scope"); got != "read write" {
			t.Errorf("scope = %q", got)
		}
		if r.PostForm.Get("client_secret") != "" {
			t.Error("client_secret must not be posted with client_secret_basic")
		}
	})

	src, err := NewClientCredentialsSource(ClientCredentialsConfig{
		TokenURL:     srv.URL + "/oauth/token",
		ClientID:     "svc",
		ClientSecret: "s3cret",
		Scopes:       []string{"read", "write"},
	})
	if err != nil {
		t.Fatalf("NewClientCredentialsSource() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		req := newRequest(t)
		if err := src.Apply(context.Background(), req); err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
		if got := req.Header.Get("Authorization"); got != "Bearer at-1" {
			t.Errorf("Authorization = %q, want Bearer at-1", got)
		}
	}
	if hits.Load() != 1 {
		t.Errorf("token endpoint hit %d times, want 1", hits.Load())
	}
}

func TestClientCredentials_PostAuth(t *testing.T) {
	var hits atomic.Int32
	srv := tokenServer(t, &hits, func(r *http.Request) {
		if _, _, ok := r.BasicAuth(); ok {
			t.Error("unexpected basic auth with client_secret_post")
		}
		if r.PostForm.Get("client_id") != "svc" || r.PostForm.Get("client_secret") != "s3cret" {
			t.Errorf("form credentials = %q %q", r.PostForm.Get("client_id"), r.PostForm.Get("client_secret"))
		}
		if r.PostForm.Get("audience") != "ledger" {
			t.Errorf("audience = %q", r.PostForm.Get("audience"))
		}
	})

	p, err := NewClientCredentialsProvider(ClientCredentialsConfig{
		TokenURL:     srv.URL,
		ClientID:     "svc",
		ClientSecret: "s3cret",
		Audience:     "ledger",
		AuthMethod:   ClientSecretPost,
	})
	if err != nil {
		t.Fatalf("NewClientCredentialsProvider() error = %v", err)
	}
	issued := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return issued }

	tok, err := p.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if tok.Type != "Bearer" || tok.Value != "at-1" {
		t.Errorf("Token() = %+v", tok)
	}
	if !tok.Expiry.Equal(issued.Add(time.Hour)) {
		t.Errorf("Expiry = %v, want %v", tok.Expiry, issued.Add(time.Hour))
	}
}

func TestClientCredentials_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    error
	}{
		{
			name: "status",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
			},
			want: ErrTokenRequest,
		},
		{
			name: "malformed",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`not json`))
			},
			want: ErrTokenMalformed,
		},
		{
			name: "empty token",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"token_type":"bearer"}`))
			},
			want: ErrTokenMalformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			p, err := NewClientCredentialsProvider(ClientCredentialsConfig{TokenURL: srv.URL, ClientID: "svc"})
			if err != nil {
				t.Fatalf("NewClientCredentialsProvider() error = %v", err)
			}
			if _, err := p.Token(context.Background()); !errors.Is(err, tt.want) {
				t.Errorf("Token() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestClientCredentialsConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		config ClientCredentialsConfig
		want   error
	}{
		{name: "missing url", config: ClientCredentialsConfig{ClientID: "svc"}, want: ErrInvalidConfig},
		{name: "bad url", config: ClientCredentialsConfig{TokenURL: "::", ClientID: "svc"}, want: ErrInvalidConfig},
		{name: "missing client", config: ClientCredentialsConfig{TokenURL: "https://idp/token"}, want: ErrMissingCredentials},
		{name: "bad method", config: ClientCredentialsConfig{TokenURL: "https://idp/token", ClientID: "svc", AuthMethod: "mtls"}, want: ErrInvalidConfig},
		{name: "valid", config: ClientCredentialsConfig{TokenURL: "https://idp/token", ClientID: "svc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.want == nil {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Validate() error = %v, want %v", err, tt.want)
			}
		})
	}
}
