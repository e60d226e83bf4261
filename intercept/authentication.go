package intercept

import (
	"fmt"
	"net/http"

	"github.com/jonwraymond/httpchain/auth"
)

type authInterceptor struct {
	source auth.CredentialSource
}

// Authentication applies credentials from source to every request. It
// returns nil for a nil source, which Assembler.Add rejects with
// ErrNilInterceptor.
func Authentication(source auth.CredentialSource) Interceptor {
	if source == nil {
		return nil
	}
	return &authInterceptor{source: source}
}

func (*authInterceptor) OrderingKey() OrderingKey { return KeyAuthentication }

func (a *authInterceptor) Name() string {
	return "authentication:" + a.source.Name()
}

func (a *authInterceptor) Intercept(req *http.Request, next http.RoundTripper) (*http.Response, error) {
	out := req.Clone(req.Context())
	if err := a.source.Apply(out.Context(), out); err != nil {
		return nil, fmt.Errorf("intercept: %s credentials: %w", a.source.Name(), err)
	}
	return next.RoundTrip(out)
}
