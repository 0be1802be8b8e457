package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const createCountersSQL = `
CREATE TABLE IF NOT EXISTS rate_limit_counters (
	scope_key text NOT NULL,
	bucket text NOT NULL,
	count bigint NOT NULL DEFAULT 0,
	window_reset_at timestamptz NOT NULL,
	PRIMARY KEY (scope_key, bucket)
)`

// The row lock taken by ON CONFLICT serializes concurrent writers on the same window.
const incrementSQL = `
INSERT INTO rate_limit_counters AS c (scope_key, bucket, count, window_reset_at)
VALUES ($1, $2, 1, now() + make_interval(secs => $3))
ON CONFLICT (scope_key, bucket) DO UPDATE SET
	count = CASE WHEN c.window_reset_at <= now() THEN 1 ELSE c.count + 1 END,
	window_reset_at = CASE WHEN c.window_reset_at <= now() THEN EXCLUDED.window_reset_at ELSE c.window_reset_at END
RETURNING count, window_reset_at`

const peekSQL = `
SELECT count, window_reset_at FROM rate_limit_counters
WHERE scope_key = $1 AND bucket = $2 AND window_reset_at > now()`

const resetSQL = `
UPDATE rate_limit_counters SET count = 0, window_reset_at = now()
WHERE scope_key = $1 AND bucket = $2`

// Querier is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore uses database time, so every instance shares one clock.
type PostgresStore struct {
	db Querier
}

var _ CounterStore = (*PostgresStore)(nil)

func NewPostgresStore(db Querier) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createCountersSQL); err != nil {
		return fmt.Errorf("ratelimit: create counters table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Increment(ctx context.Context, scopeKey, bucket string, window time.Duration) (Counter, error) {
	var c Counter
	err := s.db.QueryRow(ctx, incrementSQL, scopeKey, bucket, window.Seconds()).Scan(&c.Count, &c.ResetAt)
	if err != nil {
		return Counter{}, fmt.Errorf("ratelimit: postgres increment: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) Peek(ctx context.Context, scopeKey, bucket string) (Counter, error) {
	var c Counter
	err := s.db.QueryRow(ctx, peekSQL, scopeKey, bucket).Scan(&c.Count, &c.ResetAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Counter{}, nil
	}
	if err != nil {
		return Counter{}, fmt.Errorf("ratelimit: postgres peek: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) Reset(ctx context.Context, scopeKey, bucket string) error {
	if _, err := s.db.Exec(ctx, resetSQL, scopeKey, bucket); err != nil {
		return fmt.Errorf("ratelimit: postgres reset: %w", err)
	}
	return nil
}
