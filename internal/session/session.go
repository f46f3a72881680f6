package session

import (
	"maps"
	"time"

	"github.com/google/uuid"
)

// Keys of values kept in Session.Data.
const (
	KeyOAuthState   = "oauth_state"
	KeyPKCEVerifier = "pkce_verifier"
	KeyCSRFToken    = "csrf_token"
)

type Session struct {
	ID uuid.UUID
	// Subject is the storage provider account id, empty until login completes.
	Subject   string
	Data      map[string]any
	ExpiresAt time.Time
	CreatedAt time.Time
}

// New returns an unsaved session living for ttl.
func New(ttl time.Duration) Session {
	now := time.Now()
	return Session{
		ID:        uuid.New(),
		Data:      map[string]any{},
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
}

func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

func (s Session) GetString(key string) string {
	v, _ := s.Data[key].(string)
	return v
}

func (s *Session) Set(key string, value any) {
	if s.Data == nil {
		s.Data = map[string]any{}
	}
	s.Data[key] = value
}

func (s *Session) Delete(key string) {
	delete(s.Data, key)
}

func (s Session) clone() Session {
	s.Data = maps.Clone(s.Data)
	if s.Data == nil {
		s.Data = map[string]any{}
	}
	return s
}
