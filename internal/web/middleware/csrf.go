package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/freekieb7/go-drawer/internal/session"
	"github.com/freekieb7/go-drawer/internal/web/response"

	apperrors "github.com/freekieb7/go-drawer/internal/errors"
)

const CSRFHeader = "X-CSRF-Token"

// CSRF requires unsafe methods to echo the session's CSRF token in the X-CSRF-Token
// header. The token is handed out by GET /api/session.
func CSRF(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			sess, ok := session.FromContext(r.Context())
			if !ok {
				logger.ErrorContext(r.Context(), "Session not found in context")
				response.ErrorResponse(w, apperrors.InternalError("Session unavailable", nil), logger)
				return
			}

			expected := sess.GetString(session.KeyCSRFToken)
			received := r.Header.Get(CSRFHeader)
			if expected == "" || received == "" ||
				subtle.ConstantTimeCompare([]byte(expected), []byte(received)) != 1 {
				logger.WarnContext(r.Context(), "CSRF token mismatch", "path", r.URL.Path, "method", r.Method)
				response.ErrorResponse(w, apperrors.ForbiddenError("Invalid CSRF token", nil), logger)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
