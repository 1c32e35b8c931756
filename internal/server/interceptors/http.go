package interceptors

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// StatusRecorder captures the status code written by the wrapped handler.
type StatusRecorder struct {
	http.ResponseWriter
	status int
}

// NewStatusRecorder wraps w. Status is 200 until WriteHeader is called.
func NewStatusRecorder(w http.ResponseWriter) *StatusRecorder {
	if rec, ok := w.(*StatusRecorder); ok {
		return rec
	}
	return &StatusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (r *StatusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *StatusRecorder) Status() int { return r.status }

// HTTPClientIP returns the client IP from X-Forwarded-For, X-Real-IP or the remote address.
func HTTPClientIP(r *http.Request) string {
	if s := FirstForwarded(r.Header.Get("X-Forwarded-For")); s != "" {
		return s
	}
	if s := strings.TrimSpace(r.Header.Get("X-Real-IP")); s != "" {
		return s
	}
	return HostOnly(r.RemoteAddr)
}

// HTTPMiddleware is the HTTP counterpart of RequestUnary and LoggingUnary. It sets the request id
// and client ip in the request context, echoes X-Request-Id, and logs each request with its status.
// Paths in skipPaths are served but not logged.
func HTTPMiddleware(logger *zap.Logger, skipPaths map[string]bool, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := NormalizeRequestID(r.Header.Get(RequestIDHeader))
		ip := HTTPClientIP(r)
		ctx := WithClientIP(WithRequestID(r.Context(), id), ip)
		w.Header().Set(RequestIDHeader, id)

		rec := NewStatusRecorder(w)
		next.ServeHTTP(rec, r.WithContext(ctx))
		if skipPaths[r.URL.Path] {
			return
		}
		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", id),
			zap.String("client_ip", ip),
		}
		switch {
		case rec.Status() >= 500:
			logger.Error("http request", fields...)
		case rec.Status() >= 400:
			logger.Warn("http request", fields...)
		default:
			logger.Info("http request", fields...)
		}
	})
}
