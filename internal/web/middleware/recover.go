package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/freekieb7/go-drawer/internal/logger"
	"github.com/freekieb7/go-drawer/internal/web/response"

	apperrors "github.com/freekieb7/go-drawer/internal/errors"
)

// HandlePanic turns a panicking handler into a 500 response.
func HandlePanic(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				log.ErrorContext(r.Context(), "Handler panicked",
					"panic", rec,
					"request_id", logger.RequestIDFromContext(r.Context()),
					"stack", string(debug.Stack()))
				response.ErrorResponse(w, apperrors.InternalError("Something went wrong, please try again", nil), nil)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
