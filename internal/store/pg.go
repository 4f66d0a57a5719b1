package store

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// OpenPool creates a Postgres connection pool, retrying the initial
// connect with exponential backoff: the database and this service
// frequently start concurrently in a container orchestrator, and a bare
// fatal-on-first-failure (the teacher's original behavior) turns a
// five-second race into a crash loop.
func OpenPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}

	cfg.MaxConns = 20
	cfg.MinConns = 2
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute
	cfg.HealthCheckPeriod = time.Minute

	var pool *pgxpool.Pool
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 30 * time.Second

	connect := func() error {
		p, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return err
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return err
		}
		pool = p
		return nil
	}

	if err := backoff.Retry(connect, backoff.WithContext(b, ctx)); err != nil {
		return nil, err
	}

	log.Info().
		Int32("max_conns", cfg.MaxConns).
		Int32("min_conns", cfg.MinConns).
		Msg("postgres connection pool created")

	return pool, nil
}

// Migrate creates the control-plane and registry tables if they do not
// already exist. The broker's own tables are created by
// internal/broker's PgStore, kept separate so the two stores can evolve
// independently.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS ifttt_user (
			subdomain    TEXT PRIMARY KEY,
			connected    BOOLEAN NOT NULL DEFAULT FALSE,
			connected_at TIMESTAMPTZ
		);

		CREATE TABLE IF NOT EXISTS action_secret (
			subdomain  TEXT PRIMARY KEY,
			secret     TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE TABLE IF NOT EXISTS auth_code (
			code                   TEXT PRIMARY KEY,
			subdomain              TEXT NOT NULL,
			redirect_uri           TEXT NOT NULL,
			created_at             TIMESTAMPTZ NOT NULL DEFAULT now(),
			code_challenge         TEXT NOT NULL DEFAULT '',
			code_challenge_method  TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS link_token (
			token                  TEXT PRIMARY KEY,
			subdomain              TEXT NOT NULL,
			redirect_uri           TEXT NOT NULL,
			state                  TEXT NOT NULL,
			created_at             TIMESTAMPTZ NOT NULL DEFAULT now(),
			code_challenge         TEXT NOT NULL DEFAULT '',
			code_challenge_method  TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS tenant_registry (
			subdomain           TEXT PRIMARY KEY,
			tunnel_id           TEXT NOT NULL,
			created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
			management_key_hash TEXT NOT NULL,
			otp_email           BOOLEAN NOT NULL DEFAULT FALSE,
			ifttt_secret        TEXT
		);
	`)
	return err
}
