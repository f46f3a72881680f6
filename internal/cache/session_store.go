package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/freekieb7/go-drawer/internal/session"
	"github.com/google/uuid"

	apperrors "github.com/freekieb7/go-drawer/internal/errors"
)

type storedSession struct {
	Subject   string         `json:"subject,omitempty"`
	Data      map[string]any `json:"data"`
	ExpiresAt time.Time      `json:"expires_at"`
	CreatedAt time.Time      `json:"created_at"`
}

// SessionStore keeps sessions in Redis. Every write completes before the call
// returns, so a committed grant is visible to all replicas immediately.
type SessionStore struct {
	cache  *Service
	logger *slog.Logger
}

func NewSessionStore(cache *Service, logger *slog.Logger) *SessionStore {
	return &SessionStore{
		cache:  cache,
		logger: logger,
	}
}

func (s *SessionStore) GetSession(ctx context.Context, id uuid.UUID) (session.Session, error) {
	raw, err := s.cache.Get(ctx, sessionKey(id))
	if errors.Is(err, ErrCacheMiss) {
		return session.Session{}, session.ErrSessionNotFound
	}
	if err != nil {
		return session.Session{}, apperrors.CacheError("failed to get session", err)
	}

	var stored storedSession
	if err := json.Unmarshal(raw, &stored); err != nil {
		return session.Session{}, apperrors.CacheError("failed to unmarshal session", err)
	}
	if stored.Data == nil {
		stored.Data = map[string]any{}
	}

	return session.Session{
		ID:        id,
		Subject:   stored.Subject,
		Data:      stored.Data,
		ExpiresAt: stored.ExpiresAt,
		CreatedAt: stored.CreatedAt,
	}, nil
}

func (s *SessionStore) SaveSession(ctx context.Context, sess session.Session) (session.Session, error) {
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now()
	}
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return session.Session{}, fmt.Errorf("session %s already expired", sess.ID)
	}

	raw, err := json.Marshal(storedSession{
		Subject:   sess.Subject,
		Data:      sess.Data,
		ExpiresAt: sess.ExpiresAt,
		CreatedAt: sess.CreatedAt,
	})
	if err != nil {
		return session.Session{}, fmt.Errorf("failed to marshal session: %w", err)
	}

	// The grant lives exactly as long as its session.
	if err := s.cache.SetWithDependent(ctx, sessionKey(sess.ID), grantKey(sess.ID), raw, ttl); err != nil {
		return session.Session{}, apperrors.CacheError("failed to save session", err)
	}

	s.logger.DebugContext(ctx, "Session saved", "session", maskToken(sess.ID.String()))
	return sess, nil
}

func (s *SessionStore) DeleteSession(ctx context.Context, id uuid.UUID) error {
	if err := s.cache.Delete(ctx, sessionKey(id), grantKey(id)); err != nil {
		return apperrors.CacheError("failed to delete session", err)
	}
	s.logger.DebugContext(ctx, "Session deleted", "session", maskToken(id.String()))
	return nil
}

func (s *SessionStore) GetGrant(ctx context.Context, id uuid.UUID) ([]byte, error) {
	raw, err := s.cache.Get(ctx, grantKey(id))
	if err == nil {
		return raw, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		return nil, apperrors.CacheError("failed to get session grant", err)
	}

	exists, err := s.cache.Exists(ctx, sessionKey(id))
	if err != nil {
		return nil, apperrors.CacheError("failed to check session", err)
	}
	if !exists {
		return nil, session.ErrSessionNotFound
	}
	return nil, session.ErrGrantNotFound
}

func (s *SessionStore) SaveGrant(ctx context.Context, id uuid.UUID, grant []byte) error {
	ok, err := s.cache.SetWithOwner(ctx, sessionKey(id), grantKey(id), grant)
	if err != nil {
		return apperrors.CacheError("failed to save session grant", err)
	}
	if !ok {
		return session.ErrSessionNotFound
	}
	return nil
}

func (s *SessionStore) Ping(ctx context.Context) error {
	return s.cache.Health(ctx)
}

func sessionKey(id uuid.UUID) string {
	return "session:" + id.String()
}

func grantKey(id uuid.UUID) string {
	return "grant:" + id.String()
}

// maskToken masks a token for logging (shows only first 8 characters)
func maskToken(token string) string {
	if len(token) <= 8 {
		return "***"
	}
	return token[:8] + "***"
}
