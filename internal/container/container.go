package container

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/freekieb7/go-drawer/internal/cache"
	"github.com/freekieb7/go-drawer/internal/config"
	"github.com/freekieb7/go-drawer/internal/database"
	"github.com/freekieb7/go-drawer/internal/health"
	"github.com/freekieb7/go-drawer/internal/logger"
	"github.com/freekieb7/go-drawer/internal/session"
	"github.com/freekieb7/go-drawer/internal/storage"
	"github.com/freekieb7/go-drawer/internal/summary"
	"github.com/freekieb7/go-drawer/internal/token"
	"github.com/freekieb7/go-drawer/internal/upstream"
	"github.com/freekieb7/go-drawer/internal/web"
	"github.com/freekieb7/go-drawer/internal/web/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const serviceName = "drawer"

type Container struct {
	Config      *config.Config
	Logger      *slog.Logger
	Sessions    session.Store
	Purger      session.Purger
	RateLimiter *middleware.InMemoryRateLimiter
	HttpServer  *http.Server

	closers []func()
}

// New wires the application for cfg. Close releases what it opened.
func New(ctx context.Context, cfg config.Config) (*Container, error) {
	log := logger.New(serviceName, cfg.Log.Level)
	c := &Container{Config: &cfg, Logger: log}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Session backend
	var locker token.Locker = token.LocalLocker{}
	switch cfg.Session.Backend {
	case config.BackendRedis:
		redisCfg := cache.DefaultConfig()
		redisCfg.Addr = cfg.Redis.Addr
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		redisCfg.PoolSize = cfg.Redis.PoolSize
		redisCfg.Prefix = cfg.Redis.Prefix

		redis, err := cache.NewService(ctx, redisCfg, log)
		if err != nil {
			return nil, err
		}
		c.onClose(func() { _ = redis.Close() })

		c.Sessions = cache.NewSessionStore(redis, log)
		locker = cache.NewRefreshLock(redis, log)

	case config.BackendPostgres:
		db := database.NewDatabase()
		if err := db.Connect(ctx, cfg.Database); err != nil {
			return nil, err
		}
		c.onClose(db.Close)

		if err := database.Migrate(ctx, db, database.Migrations); err != nil {
			c.Close()
			return nil, fmt.Errorf("migrate session schema: %w", err)
		}
		store := session.NewPostgresStore(db)
		c.Sessions, c.Purger = store, store

	default:
		store := session.NewMemoryStore()
		c.Sessions, c.Purger = store, store
	}

	secret := []byte(cfg.Session.Secret)
	sealer, err := session.NewSealer(secret)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("create grant sealer: %w", err)
	}
	codec, err := session.NewCookieCodec(secret)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("create cookie codec: %w", err)
	}

	// Token lifecycle
	provider := token.NewOAuth2Provider(token.ProviderConfig{
		ClientID:     cfg.OAuth.ClientID,
		ClientSecret: cfg.OAuth.ClientSecret,
		AuthURL:      cfg.OAuth.AuthURL,
		TokenURL:     cfg.OAuth.TokenURL,
		RedirectURL:  cfg.OAuth.RedirectURL,
		Scopes:       cfg.OAuth.Scopes,
		SubjectField: cfg.OAuth.SubjectField,
	})
	coordinator := token.NewCoordinator(session.NewTokenRepository(c.Sessions, sealer), provider, log, token.CoordinatorConfig{
		ExpiryMargin:   cfg.Token.ExpiryMargin,
		RefreshTimeout: cfg.Token.RefreshTimeout,
		LockPoll:       cfg.Token.LockPoll,
		Locker:         locker,
		Metrics:        token.NewMetrics(registry),
	})

	// Upstream services
	upstreamMetrics := upstream.NewMetrics(registry)
	storageHTTP := upstream.NewClient(&http.Client{}, upstream.DefaultBreakerConfig("storage"), log, upstreamMetrics)
	summaryHTTP := upstream.NewClient(&http.Client{Timeout: 90 * time.Second}, upstream.DefaultBreakerConfig("summarizer"), log, upstreamMetrics)

	storageClient := storage.NewHTTPClient(cfg.Storage.APIURL, cfg.Storage.ContentURL, storageHTTP, log)
	summarizer := summary.NewHTTPSummarizer(cfg.Summarizer.URL, cfg.Summarizer.APIKey, cfg.Summarizer.Model, summaryHTTP, log)

	checker := health.NewChecker(c.Sessions, cfg.Session.Backend, []health.Breaker{storageHTTP, summaryHTTP}, string(cfg.Server.Environment), log)

	c.RateLimiter = middleware.NewInMemoryRateLimiter()
	c.onClose(func() { _ = c.RateLimiter.Close() })

	router := web.NewRouter(web.Dependencies{
		Config:   c.Config,
		Logger:   log,
		Registry: registry,
		Sessions: middleware.SessionConfig{
			Store:  c.Sessions,
			Codec:  codec,
			TTL:    cfg.Session.TTL,
			Secure: cfg.Server.IsProduction(),
			Logger: log,
		},
		Tokens:      coordinator,
		Provider:    provider,
		Storage:     storageClient,
		Summarizer:  summarizer,
		Health:      &checker,
		RateLimiter: c.RateLimiter,
	})

	c.HttpServer = &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
		ErrorLog:       slog.NewLogLogger(log.Handler(), slog.LevelError),
	}

	return c, nil
}

func (c *Container) onClose(fn func()) {
	c.closers = append(c.closers, fn)
}

// Close releases resources in reverse order of acquisition.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}
