package session

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryEntry struct {
	sess  Session
	grant []byte
}

// MemoryStore keeps sessions in process memory. Suitable for a single replica.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*memoryEntry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[uuid.UUID]*memoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryStore) GetSession(_ context.Context, id uuid.UUID) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.live(id)
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return e.sess.clone(), nil
}

func (s *MemoryStore) SaveSession(_ context.Context, sess Session) (Session, error) {
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = s.now()
	}
	sess = sess.clone()

	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[sess.ID]; ok {
		e.sess = sess
	} else {
		s.entries[sess.ID] = &memoryEntry{sess: sess}
	}
	return sess.clone(), nil
}

func (s *MemoryStore) DeleteSession(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, id)
	return nil
}

func (s *MemoryStore) GetGrant(_ context.Context, id uuid.UUID) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.live(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	if e.grant == nil {
		return nil, ErrGrantNotFound
	}
	return bytes.Clone(e.grant), nil
}

func (s *MemoryStore) SaveGrant(_ context.Context, id uuid.UUID, grant []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.live(id)
	if !ok {
		return ErrSessionNotFound
	}
	e.grant = bytes.Clone(grant)
	return nil
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

// PurgeExpired drops expired sessions and returns how many were removed.
func (s *MemoryStore) PurgeExpired(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var n int64
	for id, e := range s.entries {
		if e.sess.Expired(now) {
			delete(s.entries, id)
			n++
		}
	}
	return n, nil
}

// live must be called with the lock held.
func (s *MemoryStore) live(id uuid.UUID) (*memoryEntry, bool) {
	e, ok := s.entries[id]
	if !ok || e.sess.Expired(s.now()) {
		return nil, false
	}
	return e, true
}
