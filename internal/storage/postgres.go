package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createSessionsTable = `CREATE TABLE IF NOT EXISTS client_sessions (
    profile    TEXT        NOT NULL,
    key        TEXT        NOT NULL,
    value      TEXT        NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (profile, key)
)`

// PostgresStore keeps session keys as rows of client_sessions, one row per
// (profile, key).
type PostgresStore struct {
	db      *pgxpool.Pool
	profile string
}

// NewPostgresStore builds a Postgres-backed store for the given profile.
func NewPostgresStore(db *pgxpool.Pool, profile string) *PostgresStore {
	if profile == "" {
		profile = "default"
	}
	return &PostgresStore{db: db, profile: profile}
}

// EnsureSchema creates the client_sessions table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createSessionsTable); err != nil {
		return fmt.Errorf("create client_sessions: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, key string) (string, bool, error) {
	row := s.db.QueryRow(ctx, `SELECT value FROM client_sessions WHERE profile = $1 AND key = $2`, s.profile, key)
	var value string
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: postgres get %s: %v", ErrUnavailable, key, err)
	}
	return value, true, nil
}

func (s *PostgresStore) Set(ctx context.Context, key, value string) error {
	_, err := s.db.Exec(ctx, `INSERT INTO client_sessions (profile, key, value, updated_at)
        VALUES ($1, $2, $3, now())
        ON CONFLICT (profile, key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		s.profile, key, value)
	if err != nil {
		return fmt.Errorf("%w: postgres set %s: %v", ErrUnavailable, key, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM client_sessions WHERE profile = $1 AND key = $2`, s.profile, key); err != nil {
		return fmt.Errorf("%w: postgres delete %s: %v", ErrUnavailable, key, err)
	}
	return nil
}

// Ping checks connectivity to Postgres.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
