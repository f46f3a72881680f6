package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

const CookieName string = "SID"

type contextKey string

// ContextKey holds the *Session of the current request.
const ContextKey contextKey = "session"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrGrantNotFound   = errors.New("session has no token grant")
)

// Store persists sessions and, separately from the session data, the sealed token
// grant of each session. Saving a session never touches its grant.
type Store interface {
	GetSession(ctx context.Context, id uuid.UUID) (Session, error)
	SaveSession(ctx context.Context, sess Session) (Session, error)
	DeleteSession(ctx context.Context, id uuid.UUID) error
	GetGrant(ctx context.Context, id uuid.UUID) ([]byte, error)
	// SaveGrant fails with ErrSessionNotFound when the session does not exist.
	SaveGrant(ctx context.Context, id uuid.UUID, grant []byte) error
	Ping(ctx context.Context) error
}

// FromContext returns the session stored by the session middleware.
func FromContext(ctx context.Context) (*Session, bool) {
	sess, ok := ctx.Value(ContextKey).(*Session)
	return sess, ok && sess != nil
}

// Rotate moves sess to a fresh id and removes the old one, grant included.
// Used on login so a pre-login session id is never authenticated.
func Rotate(ctx context.Context, store Store, sess Session) (Session, error) {
	oldID := sess.ID
	sess.ID = uuid.New()

	saved, err := store.SaveSession(ctx, sess)
	if err != nil {
		return Session{}, fmt.Errorf("failed to save rotated session: %w", err)
	}
	if oldID != uuid.Nil {
		if err := store.DeleteSession(ctx, oldID); err != nil {
			return Session{}, fmt.Errorf("failed to delete previous session: %w", err)
		}
	}
	return saved, nil
}
