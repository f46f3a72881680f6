package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/freekieb7/go-drawer/internal/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	apperrors "github.com/freekieb7/go-drawer/internal/errors"
)

// Querier is the subset of pgxpool.Pool used by PostgresStore.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// PostgresStore keeps sessions in tbl_session. The grant lives in its own column.
type PostgresStore struct {
	DB Querier
}

func NewPostgresStore(db Querier) *PostgresStore {
	return &PostgresStore{
		DB: db,
	}
}

func (s *PostgresStore) GetSession(ctx context.Context, id uuid.UUID) (Session, error) {
	sess := Session{ID: id}
	var dataBytes []byte

	query := `SELECT subject, data, expires_at, created_at FROM tbl_session WHERE id = $1 AND expires_at > NOW()`
	row := s.DB.QueryRow(ctx, query, id)
	if err := row.Scan(&sess.Subject, &dataBytes, &sess.ExpiresAt, &sess.CreatedAt); err != nil {
		if errors.Is(err, database.ErrNoRows) {
			return Session{}, ErrSessionNotFound
		}
		return Session{}, apperrors.DatabaseError("failed to get session", err)
	}

	if err := json.Unmarshal(dataBytes, &sess.Data); err != nil {
		return Session{}, fmt.Errorf("failed to unmarshal session data: %w", err)
	}
	if sess.Data == nil {
		sess.Data = make(map[string]any)
	}

	return sess, nil
}

func (s *PostgresStore) SaveSession(ctx context.Context, sess Session) (Session, error) {
	data, err := json.Marshal(sess.Data)
	if err != nil {
		return Session{}, fmt.Errorf("failed to marshal session data: %w", err)
	}

	query := `INSERT INTO tbl_session (id, subject, data, expires_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET subject = EXCLUDED.subject, data = EXCLUDED.data, expires_at = EXCLUDED.expires_at
		RETURNING created_at`
	if err := s.DB.QueryRow(ctx, query, sess.ID, sess.Subject, data, sess.ExpiresAt).Scan(&sess.CreatedAt); err != nil {
		return Session{}, apperrors.DatabaseError("failed to save session", err)
	}
	return sess, nil
}

func (s *PostgresStore) DeleteSession(ctx context.Context, id uuid.UUID) error {
	if _, err := s.DB.Exec(ctx, `DELETE FROM tbl_session WHERE id = $1`, id); err != nil {
		return apperrors.DatabaseError("failed to delete session", err)
	}
	return nil
}

func (s *PostgresStore) GetGrant(ctx context.Context, id uuid.UUID) ([]byte, error) {
	var grant []byte

	row := s.DB.QueryRow(ctx, `SELECT grant_data FROM tbl_session WHERE id = $1 AND expires_at > NOW()`, id)
	if err := row.Scan(&grant); err != nil {
		if errors.Is(err, database.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, apperrors.DatabaseError("failed to get session grant", err)
	}
	if grant == nil {
		return nil, ErrGrantNotFound
	}
	return grant, nil
}

func (s *PostgresStore) SaveGrant(ctx context.Context, id uuid.UUID, grant []byte) error {
	tag, err := s.DB.Exec(ctx, `UPDATE tbl_session SET grant_data = $1 WHERE id = $2 AND expires_at > NOW()`, grant, id)
	if err != nil {
		return apperrors.DatabaseError("failed to save session grant", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.DB.Ping(ctx)
}

// PurgeExpired deletes expired sessions and returns how many were removed.
func (s *PostgresStore) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := s.DB.Exec(ctx, `DELETE FROM tbl_session WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, apperrors.DatabaseError("failed to purge expired sessions", err)
	}
	return tag.RowsAffected(), nil
}
