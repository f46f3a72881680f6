package web

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/freekieb7/go-drawer/internal/config"
	"github.com/freekieb7/go-drawer/internal/health"
	"github.com/freekieb7/go-drawer/internal/session"
	"github.com/freekieb7/go-drawer/internal/storage/storagetest"
	"github.com/freekieb7/go-drawer/internal/token"
	"github.com/freekieb7/go-drawer/internal/web/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type stubTokens struct {
	accessToken string
	err         error
}

func (s stubTokens) GetValidToken(context.Context, string) (string, error) {
	return s.accessToken, s.err
}

func (s stubTokens) Initialize(context.Context, string, string, ...oauth2.AuthCodeOption) (token.Record, token.Grant, error) {
	return token.Record{}, token.Grant{}, token.ErrAuthExchange
}

func (s stubTokens) Status(context.Context, string) (token.State, token.Record, error) {
	if s.err != nil {
		return token.StateNone, token.Record{}, nil
	}
	return token.StateFresh, token.Record{AccessToken: s.accessToken}, nil
}

func newTestRouter(t *testing.T, tokens stubTokens) (http.Handler, *storagetest.Fake) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := session.NewMemoryStore()
	codec, err := session.NewCookieCodec([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	cfg := &config.Config{
		Server:     config.Server{Environment: config.EnvTesting, RequestTimeout: 5 * time.Second},
		RateLimit:  config.RateLimit{Enabled: true, AuthRequests: 10, APIRequests: 100, PublicRequests: 100, WindowDuration: time.Minute},
		Storage:    config.Storage{AppFolder: "/.drawer", MaxUploadBytes: 1 << 20},
		Summarizer: config.Summarizer{MaxInputBytes: 1024},
	}

	rl := middleware.NewInMemoryRateLimiter()
	t.Cleanup(func() { _ = rl.Close() })

	checker := health.NewChecker(store, config.BackendMemory, nil, "testing", logger)
	fake := storagetest.NewFake()

	router := NewRouter(Dependencies{
		Config:      cfg,
		Logger:      logger,
		Registry:    prometheus.NewRegistry(),
		Sessions:    middleware.SessionConfig{Store: store, Codec: codec, TTL: time.Hour, Logger: logger},
		Tokens:      tokens,
		Provider:    &oauth2.Config{ClientID: "drawer", Endpoint: oauth2.Endpoint{AuthURL: "https://idp.example.test/authorize"}},
		Storage:     fake,
		Summarizer:  nil,
		Health:      &checker,
		RateLimiter: rl,
	})
	return router, fake
}

// signIn fetches the session status, returning the session cookie and CSRF token.
func signIn(t *testing.T, router http.Handler) (*http.Cookie, string) {
	t.Helper()
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/session", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var env struct {
		Data struct {
			CSRFToken string `json:"csrf_token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	return cookies[0], env.Data.CSRFToken
}

func TestRouter_ProtectedRoutes(t *testing.T) {
	t.Run("no token", func(t *testing.T) {
		router, fake := newTestRouter(t, stubTokens{err: token.ErrNoSession})

		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/files", nil))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.NotEmpty(t, rr.Header().Get(middleware.RequestIDHeader))
		assert.Empty(t, fake.Tokens)
	})

	t.Run("valid token", func(t *testing.T) {
		router, fake := newTestRouter(t, stubTokens{accessToken: "A1"})

		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/files", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.NotEmpty(t, rr.Header().Get("ETag"))
		assert.Equal(t, []string{"A1"}, fake.Tokens)
	})
}

func TestRouter_MutationsRequireCSRF(t *testing.T) {
	router, fake := newTestRouter(t, stubTokens{accessToken: "A1"})
	cookie, csrfToken := signIn(t, router)

	newRequest := func() *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/api/folders", strings.NewReader(`{"path":"/Courses"}`))
		req.Header.Set("Content-Type", "application/json")
		req.AddCookie(cookie)
		return req
	}

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, newRequest())
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Empty(t, fake.Tokens)

	req := newRequest()
	req.Header.Set(middleware.CSRFHeader, csrfToken)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusCreated, rr.Code)
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	router, _ := newTestRouter(t, stubTokens{err: token.ErrNoSession})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/session", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `drawer_http_requests_total{method="GET",route="GET /api/session",status="200"} 1`)
}

func TestRouter_LoginRedirects(t *testing.T) {
	router, _ := newTestRouter(t, stubTokens{err: token.ErrNoSession})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/auth/login", nil))

	assert.Equal(t, http.StatusFound, rr.Code)
	assert.True(t, strings.HasPrefix(rr.Header().Get("Location"), "https://idp.example.test/authorize?"))
}
