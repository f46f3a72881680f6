package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/freekieb7/go-drawer/internal/logger"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

const RequestIDHeader = "X-Request-ID"

// HTTPMetrics holds the request collectors.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewHTTPMetrics creates the collectors and registers them with reg when it is not nil.
func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	m := &HTTPMetrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "drawer_http_requests_total",
				Help: "HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "drawer_http_request_duration_seconds",
				Help:    "HTTP request latency by method and route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	if reg != nil {
		reg.MustRegister(m.requests, m.duration)
	}
	return m
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	size       int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	size, err := rw.ResponseWriter.Write(b)
	rw.size += size
	return size, err
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// MetricsMiddleware records every request. It must run inside the mux so the
// matched route pattern is known; unmatched requests are labelled "unmatched".
func MetricsMiddleware(metrics *HTTPMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapper := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapper, r)

			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			metrics.requests.WithLabelValues(r.Method, route, strconv.Itoa(wrapper.statusCode)).Inc()
			metrics.duration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// RequestLogger tags the request with an id, stores a request-scoped logger in the
// context and logs one line per completed request.
func RequestLogger(log *slog.Logger, slowThreshold time.Duration) func(http.Handler) http.Handler {
	if slowThreshold <= 0 {
		slowThreshold = time.Second
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" || len(requestID) > 64 {
				requestID = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, requestID)

			reqLogger := log.With(slog.String("request_id", requestID))
			ctx := logger.WithRequestID(r.Context(), requestID)
			ctx = logger.NewContext(ctx, reqLogger)

			wrapper := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapper, r.WithContext(ctx))

			duration := time.Since(start)
			level := slog.LevelInfo
			switch {
			case wrapper.statusCode >= 500:
				level = slog.LevelError
			case duration > slowThreshold:
				level = slog.LevelWarn
			}

			reqLogger.Log(ctx, level, "Request completed",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", GetClientIP(r)),
				slog.Int("status_code", wrapper.statusCode),
				slog.Int("response_size", wrapper.size),
				slog.Float64("duration_ms", float64(duration.Nanoseconds())/1e6),
				slog.Bool("slow_request", duration > slowThreshold))
		})
	}
}
