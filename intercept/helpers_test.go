package intercept

import (
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
)

type roundTripFunc func(req *http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func respond(req *http.Request, status int) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader(http.StatusText(status))),
		Request:    req,
	}
}

func okTransport() http.RoundTripper {
	return roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return respond(req, http.StatusOK), nil
	})
}

func newRequest(t *testing.T) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, "https://api.example.com/v1/items", nil)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	return req
}

// callLog records the order in which interceptors run.
type callLog struct {
	mu    sync.Mutex
	names []string
}

func (tr *callLog) add(name string) {
	tr.mu.Lock()
	tr.names = append(tr.names, name)
	tr.mu.Unlock()
}

func (tr *callLog) list() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]string(nil), tr.names...)
}

type keyedStub struct {
	key  OrderingKey
	name string
	log  *callLog
}

func (k *keyedStub) OrderingKey() OrderingKey { return k.key }

func (k *keyedStub) Name() string { return k.name }

func (k *keyedStub) Intercept(req *http.Request, next http.RoundTripper) (*http.Response, error) {
	if k.log != nil {
		k.log.add(k.name)
	}
	return next.RoundTrip(req)
}

func stub(key OrderingKey, name string) *keyedStub {
	return &keyedStub{key: key, name: name}
}
