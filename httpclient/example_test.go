package httpclient_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/jonwraymond/httpchain/auth"
	"github.com/jonwraymond/httpchain/httpclient"
	"github.com/jonwraymond/httpchain/resilience"
)

func ExampleNew() {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Println("authorization:", r.Header.Get("Authorization"))
	}))
	defer srv.Close()

	source, _ := auth.Bearer("token")
	client, err := httpclient.New("billing",
		httpclient.WithBaseURL(srv.URL),
		httpclient.WithAuth(source),
		httpclient.WithPolicies(resilience.RetryPolicy(resilience.RetryOptions{
			MaxRetries: 2,
			Delay:      time.Millisecond,
		})),
	)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(client.Chain().Keys())

	resp, err := client.Get(context.Background(), "/invoices")
	if err != nil {
		fmt.Println(err)
		return
	}
	resp.Body.Close()
	fmt.Println(resp.StatusCode, calls)
	// Output:
	// [authentication resiliency]
	// authorization: Bearer token
	// 200 2
}

func ExampleParseConfig() {
	cfg, err := httpclient.ParseConfig([]byte(`
clients:
  billing:
    base_url: https://billing.example.com/v1/
    preset: standard
    headers: {X-Team: payments}
`))
	if err != nil {
		fmt.Println(err)
		return
	}

	client, err := httpclient.NewFromConfig(context.Background(), "billing", cfg.Clients["billing"], nil)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(client.Chain().Keys())
	fmt.Println(client.Pipeline().Kinds())
	// Output:
	// [headers resiliency]
	// [timeout_per_attempt circuit_breaker retry timeout_overall]
}
