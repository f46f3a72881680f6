package token

import "context"

// Repository persists the record of each session.
//
// Commit must be write-through: a Read issued after Commit returns observes the
// committed record.
type Repository interface {
	Read(ctx context.Context, sessionID string) (Record, error)
	Commit(ctx context.Context, sessionID string, rec Record) error
}
