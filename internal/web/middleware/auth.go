package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/freekieb7/go-drawer/internal/session"
	"github.com/freekieb7/go-drawer/internal/token"
	"github.com/freekieb7/go-drawer/internal/web/response"

	apperrors "github.com/freekieb7/go-drawer/internal/errors"
)

type accessTokenKey struct{}

// TokenSource hands out a valid access token for a session.
type TokenSource interface {
	GetValidToken(ctx context.Context, sessionID string) (string, error)
}

// RequireAccessToken rejects requests whose session cannot produce a valid access
// token. The token is stored in the request context for the handler.
func RequireAccessToken(tokens TokenSource, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			sess, ok := session.FromContext(ctx)
			if !ok {
				logger.ErrorContext(ctx, "Session not found in context")
				response.ErrorResponse(w, apperrors.InternalError("Session unavailable", nil), logger)
				return
			}

			accessToken, err := tokens.GetValidToken(ctx, sess.ID.String())
			if errors.Is(err, token.ErrUnauthorized) {
				response.ErrorResponse(w, apperrors.UnauthorizedError("Not signed in to storage", err), logger)
				return
			}
			if err != nil {
				response.ErrorResponse(w, apperrors.InternalError("Failed to obtain access token", err), logger)
				return
			}

			ctx = context.WithValue(ctx, accessTokenKey{}, accessToken)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AccessTokenFromContext returns the token stored by RequireAccessToken.
func AccessTokenFromContext(ctx context.Context) (string, bool) {
	t, ok := ctx.Value(accessTokenKey{}).(string)
	return t, ok && t != ""
}

// WithAccessToken stores an access token in ctx, as RequireAccessToken does.
func WithAccessToken(ctx context.Context, accessToken string) context.Context {
	return context.WithValue(ctx, accessTokenKey{}, accessToken)
}
