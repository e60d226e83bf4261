// Package httpclient builds named HTTP clients from interceptors and
// resiliency policies.
//
// New assembles the interceptor chain a client needs from its options
// (tracing, authentication, headers, logging, metrics, resiliency and
// hooks), merges the selected resiliency preset with explicit policy
// overrides and compiles the result into the chain:
//
//	client, err := httpclient.New("billing",
//	    httpclient.WithBaseURL("https://billing.internal/v1/"),
//	    httpclient.WithPreset(resilience.PresetStandard),
//	    httpclient.WithPolicies(resilience.RetryPolicy(resilience.RetryOptions{MaxRetries: 1})),
//	    httpclient.WithAuth(source),
//	    httpclient.WithObserver(obs),
//	)
//	resp, err := client.Get(ctx, "invoices/42")
//
// Clients can also be described in YAML and built by a Factory:
//
//	secrets:
//	  - type: file
//	    options: {dir: /run/secrets}
//	presets:
//	  payments:
//	    timeout: {timeout: 20s}
//	    retry: {max_retries: 2, delay: 100ms}
//	clients:
//	  billing:
//	    base_url: https://billing.internal/v1/
//	    preset: payments
//	    headers: {X-Team: payments}
//	    auth:
//	      type: bearer
//	      options: {token: "secretref:file:billing/token"}
//	    metrics: true
//
// A Client is safe for concurrent use. Its circuit breaker, bulkhead and
// rate limiter are shared by all of its requests.
package httpclient
