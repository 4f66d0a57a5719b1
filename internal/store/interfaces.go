package store

import "context"

// GlobalStore is the cross-tenant control-plane store: connection state,
// action secrets, and one-time OAuth codes/link tokens.
type GlobalStore interface {
	// SetConnected upserts the tenant's IftttUser.connected flag.
	SetConnected(ctx context.Context, subdomain string, connected bool) error
	// GetConnected reports whether the tenant has completed the OAuth
	// flow. A tenant with no row is treated as not connected.
	GetConnected(ctx context.Context, subdomain string) (IftttUser, error)

	// PutActionSecret creates or overwrites the tenant's action secret.
	PutActionSecret(ctx context.Context, subdomain, secret string) error
	// GetActionSecret returns the tenant's current action secret, if any.
	GetActionSecret(ctx context.Context, subdomain string) (ActionSecret, bool, error)
	// DeleteActionSecret clears the tenant's action secret (disconnect).
	DeleteActionSecret(ctx context.Context, subdomain string) error

	// CreateAuthCode persists a freshly minted one-time auth code.
	CreateAuthCode(ctx context.Context, code AuthCode) error
	// ConsumeAuthCode atomically reads and deletes the auth code,
	// enforcing one-time use. ok is false if the code is unknown or
	// already consumed; expired codes are also treated as not found.
	ConsumeAuthCode(ctx context.Context, code string) (AuthCode, bool, error)

	// CreateLinkToken persists a freshly minted one-time link token.
	CreateLinkToken(ctx context.Context, lt LinkToken) error
	// ConsumeLinkToken atomically reads and deletes the link token.
	ConsumeLinkToken(ctx context.Context, token string) (LinkToken, bool, error)
}

// Registry is the read-mostly external tenant-provisioning registry
// (spec.md §3, §6). Everything but the action-secret write-back is
// populated by an out-of-scope collaborator.
type Registry interface {
	// GetTenant looks up a tenant's registry record by subdomain.
	GetTenant(ctx context.Context, subdomain string) (TenantRecord, bool, error)
	// HasOTPEmail reports whether the tenant has a configured OTP email
	// on file (proof of mailbox ownership for the OAuth flow).
	HasOTPEmail(ctx context.Context, subdomain string) (bool, error)
	// PutActionSecretCopy writes the registry's copy of the tenant's
	// action secret ("ifttt-secret:<sub>"), so the origin gate can
	// verify proxied calls without calling back into this service.
	PutActionSecretCopy(ctx context.Context, subdomain, secret string) error
	// DeleteActionSecretCopy removes the registry's action-secret copy
	// on disconnect.
	DeleteActionSecretCopy(ctx context.Context, subdomain string) error
}
