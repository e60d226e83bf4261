package intercept

import (
	"net/http"
	"strings"
	"time"

	"github.com/jonwraymond/httpchain/observe"
)

// LoggingConfig configures the logging interceptor.
type LoggingConfig struct {
	// SkipPaths lists URL path prefixes that are not logged.
	SkipPaths []string
}

type loggingInterceptor struct {
	logger observe.RequestLogger
	skip   []string
}

// Logging logs each request and its outcome. A nil logger returns nil,
// which Assembler.Add rejects with ErrNilInterceptor; leave the layer out
// instead.
func Logging(logger observe.RequestLogger, cfg LoggingConfig) Interceptor {
	if logger == nil {
		return nil
	}
	return &loggingInterceptor{logger: logger, skip: cfg.SkipPaths}
}

func (*loggingInterceptor) OrderingKey() OrderingKey { return KeyLogging }

func (l *loggingInterceptor) Intercept(req *http.Request, next http.RoundTripper) (*http.Response, error) {
	if l.skipped(req) {
		return next.RoundTrip(req)
	}

	ctx := req.Context()
	meta := metaOf(req)
	l.logger.LogRequest(ctx, meta, req.Header)

	start := time.Now()
	resp, err := next.RoundTrip(req)
	elapsed := time.Since(start)

	if err != nil {
		l.logger.LogError(ctx, meta, err, elapsed)
		return resp, err
	}
	l.logger.LogResponse(ctx, meta, resp.StatusCode, elapsed)
	return resp, nil
}

func (l *loggingInterceptor) skipped(req *http.Request) bool {
	if req.URL == nil {
		return false
	}
	for _, prefix := range l.skip {
		if strings.HasPrefix(req.URL.Path, prefix) {
			return true
		}
	}
	return false
}
