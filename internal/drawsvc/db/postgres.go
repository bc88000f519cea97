package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens the pool and pings it once.
func Connect(dsn string) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL DEFAULT '',
	phone       TEXT NOT NULL UNIQUE,
	role        TEXT NOT NULL DEFAULT 'user',
	ticket_ids  TEXT[] NOT NULL DEFAULT '{}',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS draws (
	id                 TEXT PRIMARY KEY,
	name               TEXT NOT NULL DEFAULT '',
	description        TEXT NOT NULL DEFAULT '',
	prize              TEXT NOT NULL DEFAULT '',
	ticket_price       NUMERIC(12,2) NOT NULL DEFAULT 0,
	start_date         TIMESTAMPTZ NOT NULL,
	end_date           TIMESTAMPTZ NOT NULL,
	announcement_date  TIMESTAMPTZ NOT NULL,
	status             TEXT NOT NULL DEFAULT 'upcoming',
	round_winners      JSONB NOT NULL DEFAULT '{}'::jsonb,
	winning_ticket_id  TEXT,
	winner_id          TEXT,
	prize_status       TEXT NOT NULL DEFAULT '',
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS draws_status_announcement ON draws (status, announcement_date);

CREATE TABLE IF NOT EXISTS tickets (
	id             TEXT PRIMARY KEY,
	draw_id        TEXT NOT NULL REFERENCES draws(id),
	user_id        TEXT NOT NULL,
	numbers        CHAR(6) NOT NULL,
	purchase_date  TIMESTAMPTZ NOT NULL DEFAULT now(),
	is_referral    BOOLEAN NOT NULL DEFAULT false,
	CONSTRAINT unique_draw_numbers UNIQUE (draw_id, numbers)
);
`

// EnsureSchema creates the tables when they do not exist yet.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schema)
	return err
}
