package observe

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// RequestLogger logs the lifecycle of outgoing requests.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: logging is best-effort and must not panic.
type RequestLogger interface {
	LogRequest(ctx context.Context, meta RequestMeta, header http.Header)
	LogResponse(ctx context.Context, meta RequestMeta, status int, duration time.Duration)
	LogError(ctx context.Context, meta RequestMeta, err error, duration time.Duration)
}

// RequestLogConfig controls what the request logger emits.
type RequestLogConfig struct {
	// LogHeaders includes request headers (sensitive ones redacted).
	// Default: false
	LogHeaders bool

	// ErrorStatus is the lowest response status logged at error level.
	// Default: 500
	ErrorStatus int
}

type requestLogger struct {
	logger Logger
	config RequestLogConfig
}

// NewRequestLogger adapts a Logger into a RequestLogger.
func NewRequestLogger(logger Logger, config RequestLogConfig) RequestLogger {
	if logger == nil {
		logger = NopLogger()
	}
	if config.ErrorStatus <= 0 {
		config.ErrorStatus = http.StatusInternalServerError
	}
	return &requestLogger{logger: logger, config: config}
}

func metaFields(meta RequestMeta) []Field {
	fields := []Field{
		F("http.method", meta.Method),
		F("http.host", meta.Host),
		F("http.path", meta.Path),
	}
	if meta.Client != "" {
		fields = append(fields, F("client", meta.Client))
	}
	return fields
}

func (l *requestLogger) LogRequest(ctx context.Context, meta RequestMeta, header http.Header) {
	fields := metaFields(meta)
	if l.config.LogHeaders {
		for name, values := range header {
			fields = append(fields, F("header."+strings.ToLower(name), strings.Join(values, ",")))
		}
	}
	l.logger.Debug(ctx, "sending request", fields...)
}

func (l *requestLogger) LogResponse(ctx context.Context, meta RequestMeta, status int, duration time.Duration) {
	fields := append(metaFields(meta),
		F("http.status", status),
		F("duration_ms", float64(duration.Milliseconds())),
	)
	switch {
	case status >= l.config.ErrorStatus:
		l.logger.Error(ctx, "request completed with server error", fields...)
	case status >= http.StatusBadRequest:
		l.logger.Warn(ctx, "request completed with client error", fields...)
	default:
		l.logger.Info(ctx, "request completed", fields...)
	}
}

func (l *requestLogger) LogError(ctx context.Context, meta RequestMeta, err error, duration time.Duration) {
	fields := append(metaFields(meta),
		F("duration_ms", float64(duration.Milliseconds())),
		F("error", err.Error()),
	)
	l.logger.Error(ctx, "request failed", fields...)
}
