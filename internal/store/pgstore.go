package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore is the Postgres-backed GlobalStore used in production.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore wraps an already-connected pool (see OpenPool).
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func (s *PgStore) SetConnected(ctx context.Context, subdomain string, connected bool) error {
	var connectedAt interface{}
	if connected {
		connectedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ifttt_user (subdomain, connected, connected_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (subdomain) DO UPDATE
		SET connected = EXCLUDED.connected,
		    connected_at = CASE WHEN EXCLUDED.connected THEN EXCLUDED.connected_at ELSE ifttt_user.connected_at END
	`, subdomain, connected, connectedAt)
	return err
}

func (s *PgStore) GetConnected(ctx context.Context, subdomain string) (IftttUser, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT subdomain, connected, connected_at FROM ifttt_user WHERE subdomain = $1
	`, subdomain)

	var u IftttUser
	if err := row.Scan(&u.Subdomain, &u.Connected, &u.ConnectedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return IftttUser{Subdomain: subdomain, Connected: false}, nil
		}
		return IftttUser{}, err
	}
	return u, nil
}

func (s *PgStore) PutActionSecret(ctx context.Context, subdomain, secret string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO action_secret (subdomain, secret, created_at)
		VALUES ($1, $2, now())
		ON CONFLICT (subdomain) DO UPDATE SET secret = EXCLUDED.secret, created_at = now()
	`, subdomain, secret)
	return err
}

func (s *PgStore) GetActionSecret(ctx context.Context, subdomain string) (ActionSecret, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT subdomain, secret, created_at FROM action_secret WHERE subdomain = $1
	`, subdomain)

	var a ActionSecret
	if err := row.Scan(&a.Subdomain, &a.Secret, &a.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ActionSecret{}, false, nil
		}
		return ActionSecret{}, false, err
	}
	return a, true, nil
}

func (s *PgStore) DeleteActionSecret(ctx context.Context, subdomain string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM action_secret WHERE subdomain = $1`, subdomain)
	return err
}

func (s *PgStore) CreateAuthCode(ctx context.Context, code AuthCode) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO auth_code (code, subdomain, redirect_uri, created_at, code_challenge, code_challenge_method)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, code.Code, code.Subdomain, code.RedirectURI, code.CreatedAt, code.CodeChallenge, code.CodeChallengeMethod)
	return err
}

// ConsumeAuthCode deletes-then-returns in a single round trip so two
// concurrent redemptions of the same code can never both succeed.
func (s *PgStore) ConsumeAuthCode(ctx context.Context, code string) (AuthCode, bool, error) {
	row := s.pool.QueryRow(ctx, `
		DELETE FROM auth_code WHERE code = $1
		RETURNING code, subdomain, redirect_uri, created_at, code_challenge, code_challenge_method
	`, code)

	var c AuthCode
	if err := row.Scan(&c.Code, &c.Subdomain, &c.RedirectURI, &c.CreatedAt, &c.CodeChallenge, &c.CodeChallengeMethod); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AuthCode{}, false, nil
		}
		return AuthCode{}, false, err
	}
	if time.Since(c.CreatedAt) > CodeTTL {
		return AuthCode{}, false, nil
	}
	return c, true, nil
}

func (s *PgStore) CreateLinkToken(ctx context.Context, lt LinkToken) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO link_token (token, subdomain, redirect_uri, state, created_at, code_challenge, code_challenge_method)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, lt.Token, lt.Subdomain, lt.RedirectURI, lt.State, lt.CreatedAt, lt.CodeChallenge, lt.CodeChallengeMethod)
	return err
}

func (s *PgStore) ConsumeLinkToken(ctx context.Context, token string) (LinkToken, bool, error) {
	row := s.pool.QueryRow(ctx, `
		DELETE FROM link_token WHERE token = $1
		RETURNING token, subdomain, redirect_uri, state, created_at, code_challenge, code_challenge_method
	`, token)

	var lt LinkToken
	if err := row.Scan(&lt.Token, &lt.Subdomain, &lt.RedirectURI, &lt.State, &lt.CreatedAt, &lt.CodeChallenge, &lt.CodeChallengeMethod); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LinkToken{}, false, nil
		}
		return LinkToken{}, false, err
	}
	if time.Since(lt.CreatedAt) > LinkTokenTTL {
		return LinkToken{}, false, nil
	}
	return lt, true, nil
}

var _ GlobalStore = (*PgStore)(nil)
