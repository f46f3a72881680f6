package middleware

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/freekieb7/go-drawer/internal/config"
	"github.com/freekieb7/go-drawer/internal/web/response"
)

// RateLimit defines rate limiting parameters for a specific endpoint or global config
type RateLimit struct {
	Requests int           // Number of requests allowed
	Window   time.Duration // Time window for the requests
	KeyFunc  KeyFunction   // Function to generate the rate limiting key
}

// KeyFunction defines how to generate the rate limiting key from the request
type KeyFunction func(r *http.Request) string

var (
	// KeyByIP generates keys based on client IP address
	KeyByIP KeyFunction = func(r *http.Request) string {
		return GetClientIP(r)
	}

	// KeyByUserAgent generates keys based on User-Agent header
	KeyByUserAgent KeyFunction = func(r *http.Request) string {
		return r.Header.Get("User-Agent")
	}

	// KeyGlobal uses a single global key for all requests
	KeyGlobal KeyFunction = func(r *http.Request) string {
		return "global"
	}
)

// KeyWithPrefix namespaces keys so route groups do not share buckets.
func KeyWithPrefix(prefix string, fn KeyFunction) KeyFunction {
	return func(r *http.Request) string {
		return prefix + ":" + fn(r)
	}
}

// GetClientIP extracts the real client IP from the request
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ips := strings.Split(xff, ","); len(ips) > 0 {
			if ip := strings.TrimSpace(ips[0]); ip != "" {
				return ip
			}
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	if cfIP := r.Header.Get("CF-Connecting-IP"); cfIP != "" {
		return strings.TrimSpace(cfIP)
	}

	if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return ip
	}

	return r.RemoteAddr
}

func setRateLimitHeaders(w http.ResponseWriter, limit RateLimit, remaining int) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit.Requests))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	w.Header().Set("X-RateLimit-Window", limit.Window.String())
}

// RateLimitMiddleware creates a rate limiting middleware. Limiter failures let
// the request through.
func RateLimitMiddleware(rateLimiter RateLimiter, limit RateLimit, logger *slog.Logger) func(http.Handler) http.Handler {
	return MultiRateLimitMiddleware(rateLimiter, logger, limit)
}

// MultiRateLimitMiddleware applies multiple rate limits to the same handler
func MultiRateLimitMiddleware(rateLimiter RateLimiter, logger *slog.Logger, limits ...RateLimit) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for i, limit := range limits {
				key := limit.KeyFunc(r)
				if key == "" {
					key = "unknown"
				}

				allowed, err := rateLimiter.Allow(r.Context(), key, limit.Requests, limit.Window)
				if err != nil {
					if logger != nil {
						logger.WarnContext(r.Context(), "Rate limiter unavailable", "error", err)
					}
					continue
				}

				remaining, _ := rateLimiter.GetRemaining(r.Context(), key, limit.Requests, limit.Window)
				if !allowed {
					setRateLimitHeaders(w, limit, remaining)
					if len(limits) > 1 {
						w.Header().Set("X-RateLimit-Policy", fmt.Sprintf("policy-%d", i))
					}
					w.Header().Set("Retry-After", strconv.Itoa(int(limit.Window.Seconds())))

					response.JSONResponse(w, http.StatusTooManyRequests, response.APIResponse{
						Code:    http.StatusTooManyRequests,
						Message: fmt.Sprintf("Rate limit exceeded: %d requests per %s", limit.Requests, limit.Window),
						Status:  "RATE_LIMITED",
					})
					return
				}

				// The first limit is reported on successful responses.
				if i == 0 {
					setRateLimitHeaders(w, limit, remaining)
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// CommonRateLimits provides rate limiting configurations per route group
type CommonRateLimits struct {
	// Auth covers login and callback.
	Auth RateLimit
	// API covers the storage and summary endpoints.
	API RateLimit
	// Public covers health and session status.
	Public RateLimit
}

// DefaultRateLimits returns sensible default rate limits for different endpoint types
func DefaultRateLimits() CommonRateLimits {
	return RateLimitsFromConfig(config.RateLimit{
		AuthRequests:   10,
		APIRequests:    120,
		PublicRequests: 60,
		WindowDuration: time.Minute,
	})
}

func RateLimitsFromConfig(cfg config.RateLimit) CommonRateLimits {
	return CommonRateLimits{
		Auth: RateLimit{
			Requests: cfg.AuthRequests,
			Window:   cfg.WindowDuration,
			KeyFunc:  KeyWithPrefix("auth", KeyByIP),
		},
		API: RateLimit{
			Requests: cfg.APIRequests,
			Window:   cfg.WindowDuration,
			KeyFunc:  KeyWithPrefix("api", KeyByIP),
		},
		Public: RateLimit{
			Requests: cfg.PublicRequests,
			Window:   cfg.WindowDuration,
			KeyFunc:  KeyWithPrefix("public", KeyByIP),
		},
	}
}
