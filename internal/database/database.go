package database

import (
	"context"

	"github.com/freekieb7/go-drawer/internal/config"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	apperrors "github.com/freekieb7/go-drawer/internal/errors"
)

var (
	ErrNoRows = pgx.ErrNoRows
)

type Database struct {
	*pgxpool.Pool
}

func NewDatabase() Database {
	return Database{}
}

func (db *Database) Connect(ctx context.Context, cfg config.Database) error {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return apperrors.ConfigError("failed to parse database url", err)
	}

	poolConfig.MaxConns = cfg.MaxOpenConns
	poolConfig.MinConns = cfg.MaxIdleConns
	poolConfig.MaxConnIdleTime = cfg.ConnMaxIdleTime
	poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return apperrors.DatabaseError("failed to create database pool", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return apperrors.DatabaseError("failed to ping database", err)
	}

	db.Pool = pool
	return nil
}

func (db *Database) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}
