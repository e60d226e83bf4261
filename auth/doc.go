// Package auth provides credential sources that authenticate outgoing
// HTTP requests.
//
// A CredentialSource applies credentials to a request: a static bearer
// token, an API key header, HTTP basic credentials, a self-signed JWT
// assertion or an OAuth2 client-credentials access token. Token based
// sources cache the token until shortly before it expires and collapse
// concurrent refreshes into one.
//
//	source, err := auth.NewJWTSource(auth.JWTConfig{
//	    Issuer:   "billing-service",
//	    Audience: "https://ledger.internal",
//	    Key:      []byte(os.Getenv("LEDGER_SIGNING_KEY")),
//	})
//	if err != nil {
//	    return err
//	}
//	err = source.Apply(ctx, req)
//
// Sources can also be created by name from configuration maps through a
// Registry; DefaultRegistry knows "bearer", "api_key", "basic", "jwt" and
// "client_credentials".
package auth
