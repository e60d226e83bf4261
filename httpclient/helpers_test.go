package httpclient

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

// statusServer answers with the listed statuses in turn, then 200.
type statusServer struct {
	*httptest.Server
	hits     atomic.Int32
	statuses []int
	last     atomic.Pointer[http.Request]
}

func newStatusServer(t *testing.T, statuses ...int) *statusServer {
	t.Helper()
	s := &statusServer{statuses: statuses}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(s.hits.Add(1))
		s.last.Store(r.Clone(r.Context()))
		if n <= len(s.statuses) {
			w.WriteHeader(s.statuses[n-1])
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *statusServer) lastHeader(key string) string {
	r := s.last.Load()
	if r == nil {
		return ""
	}
	return r.Header.Get(key)
}

func (s *statusServer) lastPath() string {
	r := s.last.Load()
	if r == nil {
		return ""
	}
	return r.URL.Path
}

func retries(n int) *int { return &n }
