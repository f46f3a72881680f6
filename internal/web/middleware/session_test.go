package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/freekieb7/go-drawer/internal/session"
	"github.com/freekieb7/go-drawer/internal/token"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newSessionConfig(t *testing.T, store session.Store) SessionConfig {
	t.Helper()
	codec, err := session.NewCookieCodec(testSecret)
	require.NoError(t, err)
	return SessionConfig{Store: store, Codec: codec, TTL: time.Hour, Logger: testLogger()}
}

// captureSession records the session seen by the handler.
func captureSession(seen **session.Session) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := session.FromContext(r.Context())
		if ok {
			*seen = sess
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestSession_CreatesSessionWithoutCookie(t *testing.T) {
	store := session.NewMemoryStore()
	cfg := newSessionConfig(t, store)

	var seen *session.Session
	rr := httptest.NewRecorder()
	Session(cfg)(captureSession(&seen)).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/session", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, seen)

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, session.CookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)

	id, err := cfg.Codec.Decode(cookies[0].Value)
	require.NoError(t, err)
	assert.Equal(t, seen.ID, id)

	_, err = store.GetSession(context.Background(), id)
	assert.NoError(t, err)
}

func TestSession_LoadsExistingSession(t *testing.T) {
	store := session.NewMemoryStore()
	cfg := newSessionConfig(t, store)

	existing := session.New(time.Hour)
	existing.Subject = "dbid:1"
	existing, err := store.SaveSession(context.Background(), existing)
	require.NoError(t, err)

	value, err := cfg.Codec.Encode(existing.ID, existing.ExpiresAt)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/files", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: value})

	var seen *session.Session
	rr := httptest.NewRecorder()
	Session(cfg)(captureSession(&seen)).ServeHTTP(rr, req)

	require.NotNil(t, seen)
	assert.Equal(t, existing.ID, seen.ID)
	assert.Equal(t, "dbid:1", seen.Subject)
	assert.Empty(t, rr.Result().Cookies(), "no new cookie for a known session")
}

func TestSession_ReplacesInvalidOrUnknownCookie(t *testing.T) {
	store := session.NewMemoryStore()
	cfg := newSessionConfig(t, store)

	unknown, err := cfg.Codec.Encode(uuid.New(), time.Now().Add(time.Hour))
	require.NoError(t, err)

	for name, value := range map[string]string{
		"tampered": "not-a-jwt",
		"unknown":  unknown,
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.AddCookie(&http.Cookie{Name: session.CookieName, Value: value})

			var seen *session.Session
			rr := httptest.NewRecorder()
			Session(cfg)(captureSession(&seen)).ServeHTTP(rr, req)

			require.NotNil(t, seen)
			require.Len(t, rr.Result().Cookies(), 1)
		})
	}
}

type failingStore struct {
	session.Store
}

func (failingStore) SaveSession(context.Context, session.Session) (session.Session, error) {
	return session.Session{}, errors.New("connection refused")
}

func TestSession_StoreFailure(t *testing.T) {
	cfg := newSessionConfig(t, failingStore{session.NewMemoryStore()})

	called := false
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true })

	rr := httptest.NewRecorder()
	Session(cfg)(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.False(t, called)
}

func TestClearSessionCookie(t *testing.T) {
	rr := httptest.NewRecorder()
	ClearSessionCookie(rr, SessionConfig{Secure: true})

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
	assert.True(t, cookies[0].Secure)
}

type stubTokens struct {
	token string
	err   error
	got   string
}

func (s *stubTokens) GetValidToken(_ context.Context, sessionID string) (string, error) {
	s.got = sessionID
	return s.token, s.err
}

func withSession(r *http.Request, sess session.Session) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), session.ContextKey, &sess))
}

func TestRequireAccessToken(t *testing.T) {
	sess := session.New(time.Hour)

	tests := []struct {
		name       string
		tokens     *stubTokens
		wantStatus int
	}{
		{"valid token", &stubTokens{token: "A1"}, http.StatusOK},
		{"no session record", &stubTokens{err: token.ErrNoSession}, http.StatusUnauthorized},
		{"refresh rejected", &stubTokens{err: token.ErrRefreshRejected}, http.StatusUnauthorized},
		{"store failure", &stubTokens{err: errors.New("redis down")}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got, _ = AccessTokenFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			rr := httptest.NewRecorder()
			req := withSession(httptest.NewRequest(http.MethodGet, "/api/files", nil), sess)
			RequireAccessToken(tt.tokens, testLogger())(next).ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, sess.ID.String(), tt.tokens.got)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "A1", got)
			} else {
				assert.Contains(t, rr.Body.String(), `"error_code"`)
			}
		})
	}
}

func TestRequireAccessToken_WithoutSession(t *testing.T) {
	rr := httptest.NewRecorder()
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { t.Fatal("handler must not run") })

	RequireAccessToken(&stubTokens{token: "A1"}, testLogger())(next).
		ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/files", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestCSRF(t *testing.T) {
	sess := session.New(time.Hour)
	sess.Set(session.KeyCSRFToken, "csrf-123")

	tests := []struct {
		name       string
		method     string
		header     string
		wantStatus int
	}{
		{"safe method skips check", http.MethodGet, "", http.StatusOK},
		{"matching header", http.MethodPost, "csrf-123", http.StatusOK},
		{"missing header", http.MethodDelete, "", http.StatusForbidden},
		{"wrong header", http.MethodPut, "csrf-999", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

			req := withSession(httptest.NewRequest(tt.method, "/api/files", nil), sess)
			if tt.header != "" {
				req.Header.Set(CSRFHeader, tt.header)
			}

			rr := httptest.NewRecorder()
			CSRF(testLogger())(next).ServeHTTP(rr, req)
			assert.Equal(t, tt.wantStatus, rr.Code)
		})
	}
}

func TestCSRF_SessionWithoutToken(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	req := withSession(httptest.NewRequest(http.MethodPost, "/api/folders", nil), session.New(time.Hour))
	req.Header.Set(CSRFHeader, "")

	rr := httptest.NewRecorder()
	CSRF(testLogger())(next).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}
