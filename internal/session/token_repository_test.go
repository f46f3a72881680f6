package session

import (
	"context"
	"testing"
	"time"

	"github.com/freekieb7/go-drawer/internal/token"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestTokenRepository(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	sealer, err := NewSealer(testSecret)
	require.NoError(t, err)
	repo := NewTokenRepository(store, sealer)

	sess, err := store.SaveSession(ctx, New(time.Hour))
	require.NoError(t, err)
	id := sess.ID.String()

	_, err = repo.Read(ctx, id)
	require.ErrorIs(t, err, token.ErrNoRecord)

	rec := token.Record{AccessToken: "A1", RefreshToken: "R1", ExpiresAt: time.Unix(1_700_003_600, 0)}
	require.NoError(t, repo.Commit(ctx, id, rec))

	got, err := repo.Read(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, rec.AccessToken, got.AccessToken)
	assert.Equal(t, rec.RefreshToken, got.RefreshToken)
	assert.True(t, rec.ExpiresAt.Equal(got.ExpiresAt))

	raw, err := store.GetGrant(ctx, sess.ID)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "A1")
}

func TestTokenRepository_UnknownSessions(t *testing.T) {
	ctx := context.Background()
	repo := NewTokenRepository(NewMemoryStore(), nil)

	_, err := repo.Read(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, token.ErrNoRecord)

	_, err = repo.Read(ctx, uuid.NewString())
	assert.ErrorIs(t, err, token.ErrNoRecord)

	err = repo.Commit(ctx, uuid.NewString(), token.Record{AccessToken: "A1"})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestTokenRepository_DrivesCoordinator(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	repo := NewTokenRepository(store, nil)
	sess, err := store.SaveSession(ctx, New(time.Hour))
	require.NoError(t, err)

	coordinator := token.NewCoordinator(repo, staticProvider{}, nil, token.CoordinatorConfig{})
	_, _, err = coordinator.Initialize(ctx, sess.ID.String(), "code123")
	require.NoError(t, err)

	got, err := coordinator.GetValidToken(ctx, sess.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "A1", got)
}

type staticProvider struct{}

func (staticProvider) AuthCodeURL(state string, _ ...oauth2.AuthCodeOption) string { return state }

func (staticProvider) Exchange(context.Context, string, ...oauth2.AuthCodeOption) (token.Grant, error) {
	return token.Grant{AccessToken: "A1", RefreshToken: "R1", ExpiresIn: time.Hour}, nil
}

func (staticProvider) Refresh(context.Context, string) (token.Grant, error) {
	return token.Grant{AccessToken: "A2", ExpiresIn: time.Hour}, nil
}
