package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/freekieb7/go-drawer/internal/session"
	"github.com/freekieb7/go-drawer/internal/web/response"

	apperrors "github.com/freekieb7/go-drawer/internal/errors"
)

// SessionConfig configures the Session middleware.
type SessionConfig struct {
	Store  session.Store
	Codec  *session.CookieCodec
	TTL    time.Duration
	Secure bool
	Logger *slog.Logger
}

// Session loads the session named by the signed cookie, or starts a new one, and
// stores a *session.Session in the request context.
func Session(cfg SessionConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			sess, err := loadSession(ctx, cfg, r)
			if errors.Is(err, session.ErrSessionNotFound) {
				sess = session.New(cfg.TTL)
				sess, err = cfg.Store.SaveSession(ctx, sess)
				if err == nil {
					err = SetSessionCookie(w, cfg, sess)
				}
			}
			if err != nil {
				cfg.Logger.ErrorContext(ctx, "Failed to establish session", "error", err)
				response.ErrorResponse(w, apperrors.InternalError("Session unavailable", err), cfg.Logger)
				return
			}

			ctx = context.WithValue(ctx, session.ContextKey, &sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func loadSession(ctx context.Context, cfg SessionConfig, r *http.Request) (session.Session, error) {
	cookie, err := r.Cookie(session.CookieName)
	if err != nil {
		return session.Session{}, session.ErrSessionNotFound
	}

	id, err := cfg.Codec.Decode(cookie.Value)
	if err != nil {
		cfg.Logger.DebugContext(ctx, "Discarding session cookie", "error", err)
		return session.Session{}, session.ErrSessionNotFound
	}
	return cfg.Store.GetSession(ctx, id)
}

// SetSessionCookie writes the cookie naming sess.
func SetSessionCookie(w http.ResponseWriter, cfg SessionConfig, sess session.Session) error {
	value, err := cfg.Codec.Encode(sess.ID, sess.ExpiresAt)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    value,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// ClearSessionCookie expires the session cookie in the browser.
func ClearSessionCookie(w http.ResponseWriter, cfg SessionConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
