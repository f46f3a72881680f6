package handler

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/freekieb7/go-drawer/internal/config"
	"github.com/freekieb7/go-drawer/internal/session"
	"github.com/freekieb7/go-drawer/internal/token"
	"github.com/freekieb7/go-drawer/internal/util"
	"github.com/freekieb7/go-drawer/internal/web/middleware"
	"github.com/freekieb7/go-drawer/internal/web/response"
	"golang.org/x/oauth2"

	apperrors "github.com/freekieb7/go-drawer/internal/errors"
)

// TokenLifecycle is the part of token.Coordinator the login flow needs.
type TokenLifecycle interface {
	Initialize(ctx context.Context, sessionID, code string, opts ...oauth2.AuthCodeOption) (token.Record, token.Grant, error)
	Status(ctx context.Context, sessionID string) (token.State, token.Record, error)
}

// AuthURLBuilder builds the identity provider's authorization URL.
type AuthURLBuilder interface {
	AuthCodeURL(state string, opts ...oauth2.AuthCodeOption) string
}

type SessionStatusResponse struct {
	Authenticated bool        `json:"authenticated"`
	State         token.State `json:"state"`
	Subject       string      `json:"subject,omitempty"`
	ExpiresAt     *time.Time  `json:"expires_at,omitempty"`
	CSRFToken     string      `json:"csrf_token"`
}

// AuthHandler runs the authorization code flow against the storage provider.
type AuthHandler struct {
	Config   *config.Config
	Logger   *slog.Logger
	Store    session.Store
	Sessions middleware.SessionConfig
	Tokens   TokenLifecycle
	Provider AuthURLBuilder
}

func NewAuthHandler(cfg *config.Config, logger *slog.Logger, sessions middleware.SessionConfig, tokens TokenLifecycle, provider AuthURLBuilder) AuthHandler {
	return AuthHandler{
		Config:   cfg,
		Logger:   logger,
		Store:    sessions.Store,
		Sessions: sessions,
		Tokens:   tokens,
		Provider: provider,
	}
}

// RegisterRoutes registers the login routes behind auth, and the session status
// route behind public. Both must run the session middleware.
func (h *AuthHandler) RegisterRoutes(mux *http.ServeMux, auth, public func(http.Handler) http.Handler) {
	mux.Handle("GET /auth/login", auth(http.HandlerFunc(h.HandleLogin)))
	mux.Handle("GET /auth/callback", auth(http.HandlerFunc(h.HandleCallback)))
	mux.Handle("POST /auth/logout", auth(middleware.CSRF(h.Logger)(http.HandlerFunc(h.HandleLogout))))
	mux.Handle("GET /api/session", public(http.HandlerFunc(h.HandleSessionStatus)))
}

func (h *AuthHandler) currentSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		h.Logger.ErrorContext(r.Context(), "Session not found in context")
		response.ErrorResponse(w, apperrors.InternalError("Session unavailable", nil), h.Logger)
	}
	return sess, ok
}

// HandleLogin handles GET /auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sess, ok := h.currentSession(w, r)
	if !ok {
		return
	}

	state, err := util.GenerateRandomString(32)
	if err != nil {
		response.ErrorResponse(w, apperrors.InternalError("Failed to start login", err), h.Logger)
		return
	}
	verifier := oauth2.GenerateVerifier()

	sess.Set(session.KeyOAuthState, state)
	sess.Set(session.KeyPKCEVerifier, verifier)
	if _, err := h.Store.SaveSession(ctx, *sess); err != nil {
		response.ErrorResponse(w, apperrors.InternalError("Failed to start login", err), h.Logger)
		return
	}

	opts := []oauth2.AuthCodeOption{oauth2.S256ChallengeOption(verifier)}
	for key, value := range h.Config.OAuth.AuthParams {
		opts = append(opts, oauth2.SetAuthURLParam(key, value))
	}

	response.Redirect(w, http.StatusFound, h.Provider.AuthCodeURL(state, opts...))
}

// HandleCallback handles GET /auth/callback
func (h *AuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	sess, ok := h.currentSession(w, r)
	if !ok {
		return
	}

	expectedState := sess.GetString(session.KeyOAuthState)
	verifier := sess.GetString(session.KeyPKCEVerifier)

	if providerErr := query.Get("error"); providerErr != "" {
		h.Logger.WarnContext(ctx, "Authorization denied by provider",
			"error", providerErr,
			"error_description", query.Get("error_description"))
		response.ErrorResponse(w, apperrors.UnauthorizedError("Authorization was not granted", nil), h.Logger)
		return
	}

	state := query.Get("state")
	if expectedState == "" || subtle.ConstantTimeCompare([]byte(state), []byte(expectedState)) != 1 {
		response.ErrorResponse(w, apperrors.OAuthError("Invalid or expired login state", nil), h.Logger)
		return
	}

	code := query.Get("code")
	if code == "" {
		response.ErrorResponse(w, apperrors.OAuthError("Missing authorization code", nil), h.Logger)
		return
	}

	// The state is single use, whatever the outcome.
	sess.Delete(session.KeyOAuthState)
	sess.Delete(session.KeyPKCEVerifier)

	rotated, err := session.Rotate(ctx, h.Store, *sess)
	if err != nil {
		response.ErrorResponse(w, apperrors.InternalError("Failed to rotate session", err), h.Logger)
		return
	}
	if err := middleware.SetSessionCookie(w, h.Sessions, rotated); err != nil {
		response.ErrorResponse(w, apperrors.InternalError("Failed to set session cookie", err), h.Logger)
		return
	}

	_, grant, err := h.Tokens.Initialize(ctx, rotated.ID.String(), code, oauth2.VerifierOption(verifier))
	if errors.Is(err, token.ErrAuthExchange) {
		response.ErrorResponse(w, apperrors.UnauthorizedError("Authorization code was rejected", err), h.Logger)
		return
	}
	if err != nil {
		response.ErrorResponse(w, apperrors.InternalError("Failed to store token", err), h.Logger)
		return
	}

	rotated.Subject = grant.Subject
	if csrfToken, err := util.GenerateRandomString(32); err == nil {
		rotated.Set(session.KeyCSRFToken, csrfToken)
	}
	if _, err := h.Store.SaveSession(ctx, rotated); err != nil {
		response.ErrorResponse(w, apperrors.InternalError("Failed to save session", err), h.Logger)
		return
	}

	h.Logger.InfoContext(ctx, "User signed in", "subject", grant.Subject)
	response.Redirect(w, http.StatusFound, "/")
}

// HandleLogout handles POST /auth/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.currentSession(w, r)
	if !ok {
		return
	}

	// Deleting the session deletes its token record with it.
	if err := h.Store.DeleteSession(r.Context(), sess.ID); err != nil {
		response.ErrorResponse(w, apperrors.InternalError("Failed to end session", err), h.Logger)
		return
	}

	middleware.ClearSessionCookie(w, h.Sessions)
	response.NoContent(w)
}

// HandleSessionStatus handles GET /api/session. It never refreshes the token.
func (h *AuthHandler) HandleSessionStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sess, ok := h.currentSession(w, r)
	if !ok {
		return
	}

	csrfToken := sess.GetString(session.KeyCSRFToken)
	if csrfToken == "" {
		var err error
		if csrfToken, err = util.GenerateRandomString(32); err != nil {
			response.ErrorResponse(w, apperrors.InternalError("Failed to issue CSRF token", err), h.Logger)
			return
		}
		sess.Set(session.KeyCSRFToken, csrfToken)
		if _, err := h.Store.SaveSession(ctx, *sess); err != nil {
			response.ErrorResponse(w, apperrors.InternalError("Failed to save session", err), h.Logger)
			return
		}
	}

	state, rec, err := h.Tokens.Status(ctx, sess.ID.String())
	if err != nil {
		response.ErrorResponse(w, apperrors.InternalError("Failed to read session state", err), h.Logger)
		return
	}

	status := SessionStatusResponse{
		Authenticated: state != token.StateNone && state != token.StateFailed,
		State:         state,
		Subject:       sess.Subject,
		CSRFToken:     csrfToken,
	}
	if !rec.ExpiresAt.IsZero() {
		status.ExpiresAt = &rec.ExpiresAt
	}

	response.SuccessResponse(w, status)
}
