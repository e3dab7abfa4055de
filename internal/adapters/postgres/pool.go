// Package postgres stores rooms, participants and messages with pgx.
package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect creates a pool for dsn and pings it.
func Connect(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(normalizeDSN(dsn))
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	cfg.MaxConns = 4
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.MaxConnLifetime = 60 * time.Minute
	cfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: new pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return pool, nil
}

// normalizeDSN accepts driver-suffixed schemes such as postgresql+pgx://.
func normalizeDSN(dsn string) string {
	s := strings.TrimSpace(dsn)
	for _, prefix := range []string{"postgresql+asyncpg://", "postgresql+pgx://"} {
		s = strings.Replace(s, prefix, "postgresql://", 1)
	}
	for _, prefix := range []string{"postgres+asyncpg://", "postgres+pgx://"} {
		s = strings.Replace(s, prefix, "postgres://", 1)
	}
	return s
}

const schema = `
CREATE TABLE IF NOT EXISTS rooms (
	id                  TEXT PRIMARY KEY,
	owner_id            TEXT NOT NULL,
	title               TEXT NOT NULL,
	description         TEXT NOT NULL,
	visibility          TEXT NOT NULL,
	password_hash       TEXT NOT NULL DEFAULT '',
	max_participants    INT NOT NULL,
	speaker_seat_count  INT NOT NULL,
	allow_seat_requests BOOLEAN NOT NULL DEFAULT TRUE,
	status              TEXT NOT NULL,
	tags                TEXT[] NOT NULL DEFAULT '{}',
	cover_url           TEXT NOT NULL DEFAULT '',
	created_at          TIMESTAMPTZ NOT NULL,
	updated_at          TIMESTAMPTZ NOT NULL,
	CHECK (speaker_seat_count <= max_participants)
);
CREATE INDEX IF NOT EXISTS rooms_public_idx ON rooms (created_at DESC, id DESC)
	WHERE visibility = 'PUBLIC' AND status = 'ACTIVE';

CREATE TABLE IF NOT EXISTS participants (
	room_id    TEXT NOT NULL REFERENCES rooms(id),
	user_id    TEXT NOT NULL,
	role       TEXT NOT NULL,
	seat_index INT,
	is_muted   BOOLEAN NOT NULL DEFAULT FALSE,
	joined_at  TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (room_id, user_id)
);
CREATE UNIQUE INDEX IF NOT EXISTS participants_seat_idx ON participants (room_id, seat_index)
	WHERE seat_index IS NOT NULL;

CREATE TABLE IF NOT EXISTS messages (
	id           TEXT PRIMARY KEY,
	room_id      TEXT NOT NULL REFERENCES rooms(id),
	sender_id    TEXT NOT NULL,
	content      TEXT NOT NULL,
	message_type TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS messages_room_idx ON messages (room_id, created_at, id);
`

// Migrate creates the tables if they do not exist.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

// snapshot runs fn in a read-only repeatable-read transaction, so a page and
// its total count come from the same view of the table.
func snapshot(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
