package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/freekieb7/go-drawer/internal/web/response"
)

// TimeoutConfig represents timeout configuration
type TimeoutConfig struct {
	Timeout time.Duration
	Message string
	Logger  *slog.Logger
}

// TimeoutMiddleware answers 503 with a JSON body when the handler does not finish
// in time. The handler's context is cancelled at the deadline.
func TimeoutMiddleware(config TimeoutConfig) func(http.Handler) http.Handler {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.Message == "" {
		config.Message = "Request timeout"
	}

	body, _ := json.Marshal(response.APIResponse{
		Code:    http.StatusServiceUnavailable,
		Status:  "error",
		Message: config.Message,
		Data:    map[string]string{"error_code": "TIMEOUT"},
	})

	return func(next http.Handler) http.Handler {
		logged := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)
			if r.Context().Err() != nil && config.Logger != nil {
				config.Logger.WarnContext(r.Context(), "Request timeout",
					slog.Duration("timeout", config.Timeout),
					slog.String("path", r.URL.Path),
					slog.String("method", r.Method))
			}
		})
		th := http.TimeoutHandler(logged, config.Timeout, string(body))

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			th.ServeHTTP(w, r)
		})
	}
}

// APITimeoutMiddleware creates timeout middleware for the storage API
func APITimeoutMiddleware(timeout time.Duration, logger *slog.Logger) func(http.Handler) http.Handler {
	return TimeoutMiddleware(TimeoutConfig{
		Timeout: timeout,
		Message: "API request timeout",
		Logger:  logger,
	})
}

// OAuthTimeoutMiddleware creates timeout middleware for the login endpoints
func OAuthTimeoutMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return TimeoutMiddleware(TimeoutConfig{
		Timeout: 10 * time.Second,
		Message: "OAuth request timeout",
		Logger:  logger,
	})
}
