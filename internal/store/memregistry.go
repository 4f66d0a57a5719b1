package store

import (
	"context"
	"sync"
)

// MemRegistry is an in-memory Registry, standing in for the real
// tenant-provisioning pipeline in tests.
type MemRegistry struct {
	mu             sync.Mutex
	tenants        map[string]TenantRecord
	otpEmails      map[string]bool
	secretsByTunnel map[string]string
}

// NewMemRegistry creates an empty in-memory Registry.
func NewMemRegistry() *MemRegistry {
	return &MemRegistry{
		tenants:         make(map[string]TenantRecord),
		otpEmails:       make(map[string]bool),
		secretsByTunnel: make(map[string]string),
	}
}

// Seed registers a tenant record, as the out-of-scope provisioning job
// would. hasOTPEmail mirrors whether "otp-email:<sub>" is present.
func (r *MemRegistry) Seed(rec TenantRecord, hasOTPEmail bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tenants[rec.Subdomain] = rec
	r.otpEmails[rec.Subdomain] = hasOTPEmail
}

func (r *MemRegistry) GetTenant(_ context.Context, subdomain string) (TenantRecord, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.tenants[subdomain]
	return rec, ok, nil
}

func (r *MemRegistry) HasOTPEmail(_ context.Context, subdomain string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.otpEmails[subdomain], nil
}

func (r *MemRegistry) PutActionSecretCopy(_ context.Context, subdomain, secret string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.secretsByTunnel[subdomain] = secret
	return nil
}

func (r *MemRegistry) DeleteActionSecretCopy(_ context.Context, subdomain string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.secretsByTunnel, subdomain)
	return nil
}

var _ Registry = (*MemRegistry)(nil)
