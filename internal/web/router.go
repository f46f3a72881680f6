package web

import (
	"log/slog"
	"net/http"

	"github.com/freekieb7/go-drawer/internal/config"
	"github.com/freekieb7/go-drawer/internal/health"
	"github.com/freekieb7/go-drawer/internal/storage"
	"github.com/freekieb7/go-drawer/internal/summary"
	"github.com/freekieb7/go-drawer/internal/web/handler"
	"github.com/freekieb7/go-drawer/internal/web/handler/api"
	"github.com/freekieb7/go-drawer/internal/web/handler/api/shared"
	"github.com/freekieb7/go-drawer/internal/web/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Tokens is what the routes need from the token coordinator.
type Tokens interface {
	middleware.TokenSource
	handler.TokenLifecycle
}

type Dependencies struct {
	Config      *config.Config
	Logger      *slog.Logger
	Registry    *prometheus.Registry
	Sessions    middleware.SessionConfig
	Tokens      Tokens
	Provider    handler.AuthURLBuilder
	Storage     storage.Client
	Summarizer  summary.Summarizer
	Health      *health.Checker
	RateLimiter middleware.RateLimiter
}

// NewRouter builds the HTTP handler serving the dashboard API.
func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config
	log := deps.Logger
	mux := http.NewServeMux()

	metrics := middleware.NewHTTPMetrics(deps.Registry)
	measured := middleware.MetricsMiddleware(metrics)

	limits := middleware.RateLimitsFromConfig(cfg.RateLimit)
	limit := func(l middleware.RateLimit) func(http.Handler) http.Handler {
		if !cfg.RateLimit.Enabled {
			return middleware.Chain()
		}
		return middleware.RateLimitMiddleware(deps.RateLimiter, l, log)
	}

	sessions := middleware.Session(deps.Sessions)

	public := middleware.Chain(measured, limit(limits.Public), sessions)
	auth := middleware.Chain(measured, limit(limits.Auth), middleware.OAuthTimeoutMiddleware(log), sessions)
	protect := middleware.Chain(
		measured,
		limit(limits.API),
		sessions,
		middleware.CSRF(log),
		middleware.RequireAccessToken(deps.Tokens, log),
	)
	timeout := middleware.APITimeoutMiddleware(cfg.Server.RequestTimeout, log)

	authHandler := handler.NewAuthHandler(cfg, log, deps.Sessions, deps.Tokens, deps.Provider)
	authHandler.RegisterRoutes(mux, auth, public)

	apiHandler := api.NewHandler(shared.NewBaseHandler(cfg, log, deps.Storage, deps.Summarizer))
	apiHandler.RegisterRoutes(mux, protect, timeout)

	healthHandler := handler.NewHealthHandler(deps.Health)
	healthHandler.RegisterRoutes(mux)

	mux.Handle("GET /metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{Registry: deps.Registry}))

	return middleware.Chain(
		middleware.HandlePanic(log),
		middleware.RequestLogger(log, 0),
		middleware.SecureMiddleware(
			middleware.SecurityHeadersFromConfig(cfg.Security, cfg.Server.IsProduction()),
			cfg.Storage.MaxUploadBytes,
		),
	)(mux)
}
