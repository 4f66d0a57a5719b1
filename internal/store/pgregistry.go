package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgRegistry is the Postgres-backed Registry. In production this table
// is owned and populated by the tenant-provisioning pipeline; this
// service only ever reads it, except for the action-secret write-back.
type PgRegistry struct {
	pool *pgxpool.Pool
}

// NewPgRegistry wraps an already-connected pool.
func NewPgRegistry(pool *pgxpool.Pool) *PgRegistry {
	return &PgRegistry{pool: pool}
}

func (r *PgRegistry) GetTenant(ctx context.Context, subdomain string) (TenantRecord, bool, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT subdomain, tunnel_id, created_at, management_key_hash
		FROM tenant_registry WHERE subdomain = $1
	`, subdomain)

	var rec TenantRecord
	if err := row.Scan(&rec.Subdomain, &rec.TunnelID, &rec.CreatedAt, &rec.ManagementKeyHash); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TenantRecord{}, false, nil
		}
		return TenantRecord{}, false, err
	}
	return rec, true, nil
}

func (r *PgRegistry) HasOTPEmail(ctx context.Context, subdomain string) (bool, error) {
	row := r.pool.QueryRow(ctx, `SELECT otp_email FROM tenant_registry WHERE subdomain = $1`, subdomain)

	var has bool
	if err := row.Scan(&has); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return has, nil
}

func (r *PgRegistry) PutActionSecretCopy(ctx context.Context, subdomain, secret string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE tenant_registry SET ifttt_secret = $2 WHERE subdomain = $1
	`, subdomain, secret)
	return err
}

func (r *PgRegistry) DeleteActionSecretCopy(ctx context.Context, subdomain string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE tenant_registry SET ifttt_secret = NULL WHERE subdomain = $1
	`, subdomain)
	return err
}

var _ Registry = (*PgRegistry)(nil)
