package shared

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/freekieb7/go-drawer/internal/config"
	"github.com/freekieb7/go-drawer/internal/logger"
	"github.com/freekieb7/go-drawer/internal/storage"
	"github.com/freekieb7/go-drawer/internal/summary"
	"github.com/freekieb7/go-drawer/internal/web/middleware"
	"github.com/freekieb7/go-drawer/internal/web/response"
	"github.com/go-playground/validator/v10"

	apperrors "github.com/freekieb7/go-drawer/internal/errors"
)

// MaxJSONBodyBytes bounds JSON request bodies other than app data documents.
const MaxJSONBodyBytes = 64 << 10

// BaseHandler contains the common dependencies for all API handlers
type BaseHandler struct {
	Config     *config.Config
	Logger     *slog.Logger
	Storage    storage.Client
	Summarizer summary.Summarizer
	Validate   *validator.Validate
}

// NewBaseHandler creates a new base handler with all dependencies
func NewBaseHandler(cfg *config.Config, logger *slog.Logger, storageClient storage.Client, summarizer summary.Summarizer) BaseHandler {
	return BaseHandler{
		Config:     cfg,
		Logger:     logger,
		Storage:    storageClient,
		Summarizer: summarizer,
		Validate:   validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Log returns the request-scoped logger.
func (h BaseHandler) Log(r *http.Request) *slog.Logger {
	if l := logger.FromContext(r.Context()); l != slog.Default() {
		return l
	}
	return h.Logger
}

// AccessToken returns the token obtained for this request by RequireAccessToken.
func (h BaseHandler) AccessToken(r *http.Request) (string, error) {
	accessToken, ok := middleware.AccessTokenFromContext(r.Context())
	if !ok {
		return "", apperrors.UnauthorizedError("Not signed in to storage", nil)
	}
	return accessToken, nil
}

// DecodeJSON decodes a bounded JSON body into dst and validates it.
func (h BaseHandler) DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxJSONBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperrors.InvalidRequestError(ErrInvalidRequestBody, err)
	}
	return h.ValidateStruct(dst)
}

func (h BaseHandler) ValidateStruct(v any) error {
	if err := h.Validate.Struct(v); err != nil {
		return validationError(err)
	}
	return nil
}

// PathParam reads a storage path from the query string. An empty optional path
// is the root folder.
func (h BaseHandler) PathParam(r *http.Request, name string, required bool) (string, error) {
	p := strings.TrimSpace(r.URL.Query().Get(name))
	if p == "" && !required {
		return "/", nil
	}
	if err := h.Validate.Var(p, "required,startswith=/,max=4096"); err != nil {
		return "", apperrors.ValidationError(fmt.Sprintf("Query parameter %q must be an absolute path", name), err)
	}
	return p, nil
}

// WriteError renders err, mapping storage and summarizer failures to HTTP statuses.
func (h BaseHandler) WriteError(w http.ResponseWriter, r *http.Request, err error) {
	response.ErrorResponse(w, MapError(err), h.Log(r))
}

// MapError converts domain errors into application errors.
func MapError(err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, storage.ErrUnauthorized):
		return apperrors.UnauthorizedError("Storage rejected the access token", err)
	case errors.Is(err, storage.ErrNotFound):
		return apperrors.NotFoundError(ErrPathNotFound, err)
	case errors.Is(err, storage.ErrConflict):
		return apperrors.ConflictError(ErrPathConflict, err)
	case errors.Is(err, storage.ErrRateLimited):
		return apperrors.RateLimitedError("Storage rate limit reached", err)
	case errors.Is(err, storage.ErrUnavailable), errors.Is(err, summary.ErrUnavailable):
		return apperrors.ServiceUnavailableError("Upstream service unavailable", err)
	case errors.Is(err, summary.ErrNotConfigured):
		return apperrors.ServiceUnavailableError("Summaries are not enabled", err)
	case errors.Is(err, storage.ErrUpstream), errors.Is(err, summary.ErrUpstream):
		return apperrors.UpstreamError("Upstream request failed", err)
	}
	return apperrors.InternalError("An internal error occurred", err)
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.ValidationError(ErrInvalidRequest, err)
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[strings.ToLower(fe.Field())] = fe.Tag()
	}
	return apperrors.FieldValidationError(ErrInvalidFields, fields, err)
}
