package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	healthhandler "identity-service/backend/internal/health/handler"
	identityhandler "identity-service/backend/internal/identity/handler"
	"identity-service/backend/internal/server/interceptors"
)

// readHeaderTimeout bounds how long a client may take to send request headers.
const readHeaderTimeout = 10 * time.Second

// HTTPMetrics are the Prometheus metrics of the HTTP surface.
type HTTPMetrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewRegistry returns a registry with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// NewHTTPMetrics creates and registers the HTTP metrics.
func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	m := &HTTPMetrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "identity_http_requests_total",
				Help: "Total number of HTTP requests by route and status",
			},
			[]string{"route", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "identity_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds by route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}
	reg.MustRegister(m.RequestsTotal)
	reg.MustRegister(m.RequestDuration)
	return m
}

// Middleware records each request under the ServeMux pattern that matched it.
func (m *HTTPMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := interceptors.NewStatusRecorder(w)
		next.ServeHTTP(rec, r)
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		m.RequestsTotal.WithLabelValues(route, strconv.Itoa(rec.Status())).Inc()
		m.RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// NewHTTPHandler returns the HTTP surface: the auth routes under /api/v2/auth and /health, plus
// /metrics when reg is not nil. Every request goes through the request id and logging middleware.
func NewHTTPHandler(deps Deps, reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	if deps.Auth != nil {
		identityhandler.NewHTTPHandler(deps.Auth, deps.logger()).Routes(mux)
	}
	mux.Handle("GET /health", healthhandler.NewServer(deps.HealthPinger, deps.HealthPolicyChecker))

	var h http.Handler = mux
	if reg != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true}))
		h = NewHTTPMetrics(reg).Middleware(mux)
	}
	return interceptors.HTTPMiddleware(deps.logger(), map[string]bool{"/health": true, "/metrics": true}, h)
}

// NewHTTPServer returns an *http.Server for h on addr.
func NewHTTPServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}
