package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/freekieb7/go-drawer/internal/token"
	"github.com/google/uuid"
)

// TokenRepository stores token records as sealed grants of a Store.
type TokenRepository struct {
	store  Store
	sealer *Sealer
}

// NewTokenRepository returns a repository over store. A nil sealer stores records as plain JSON.
func NewTokenRepository(store Store, sealer *Sealer) *TokenRepository {
	return &TokenRepository{store: store, sealer: sealer}
}

func (r *TokenRepository) Read(ctx context.Context, sessionID string) (token.Record, error) {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return token.Record{}, token.ErrNoRecord
	}

	raw, err := r.store.GetGrant(ctx, id)
	if errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrGrantNotFound) {
		return token.Record{}, token.ErrNoRecord
	}
	if err != nil {
		return token.Record{}, err
	}

	if r.sealer != nil {
		if raw, err = r.sealer.Open(raw, id[:]); err != nil {
			return token.Record{}, err
		}
	}

	var rec token.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return token.Record{}, fmt.Errorf("failed to unmarshal token record: %w", err)
	}
	return rec, nil
}

func (r *TokenRepository) Commit(ctx context.Context, sessionID string, rec token.Record) error {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return fmt.Errorf("invalid session id %q: %w", sessionID, err)
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal token record: %w", err)
	}
	if r.sealer != nil {
		if raw, err = r.sealer.Seal(raw, id[:]); err != nil {
			return err
		}
	}

	return r.store.SaveGrant(ctx, id, raw)
}
