package database

import (
	"context"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	apperrors "github.com/freekieb7/go-drawer/internal/errors"
)

type Migration struct {
	// ID orders migrations; a timestamp prefix keeps them chronological.
	ID string
	Up string
}

// Migrations creates the schema of the postgres session backend.
var Migrations = []Migration{
	{
		ID: "20250101000000_create_session",
		Up: `CREATE TABLE IF NOT EXISTS tbl_session (
			id UUID NOT NULL,
			subject TEXT NOT NULL DEFAULT '',
			data JSONB NOT NULL DEFAULT '{}',
			grant_data BYTEA,
			expires_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (id)
		);
		CREATE INDEX IF NOT EXISTS idx_session_expires_at ON tbl_session (expires_at);`,
	},
}

type Migrator interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Migrate applies every migration newer than the last one recorded in tbl_migration.
func Migrate(ctx context.Context, db Migrator, migrations []Migration) error {
	if _, err := db.Exec(ctx, `CREATE TABLE IF NOT EXISTS tbl_migration (id TEXT NOT NULL, performed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(), PRIMARY KEY (id))`); err != nil {
		return apperrors.DatabaseError("failed to create migration table", err)
	}

	var current string
	if err := db.QueryRow(ctx, `SELECT COALESCE(MAX(id), '') FROM tbl_migration`).Scan(&current); err != nil {
		return apperrors.DatabaseError("failed to read migration version", err)
	}

	pending := slices.Clone(migrations)
	slices.SortFunc(pending, func(a, b Migration) int { return strings.Compare(a.ID, b.ID) })

	for _, m := range pending {
		if m.ID <= current {
			continue
		}
		if err := apply(ctx, db, m); err != nil {
			return err
		}
	}
	return nil
}

func apply(ctx context.Context, db Migrator, m Migration) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return apperrors.DatabaseError("failed to start migration "+m.ID, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, m.Up); err != nil {
		return apperrors.DatabaseError("migration "+m.ID+" failed", err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO tbl_migration (id) VALUES ($1)`, m.ID); err != nil {
		return apperrors.DatabaseError("failed to record migration "+m.ID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return apperrors.DatabaseError("failed to commit migration "+m.ID, err)
	}
	return nil
}
