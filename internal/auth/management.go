package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/eclosion-dev/ifttt-core/internal/store"
	"github.com/rs/zerolog/log"
)

// managementCtxKey is the request-context key populated by
// ManagementMiddleware.
type managementCtxKey string

const managementSubdomainKey managementCtxKey = "mgmt_subdomain"

// TenantLookup resolves a tenant's registry record. store.Registry
// satisfies this directly.
type TenantLookup interface {
	GetTenant(ctx context.Context, subdomain string) (store.TenantRecord, bool, error)
}

// HashManagementKey derives the stored form of a management key. The
// registry stores only this hash, never the key itself.
func HashManagementKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// ManagementMiddleware authenticates the Tenant Admin API: every request
// must carry X-Subdomain and X-Management-Key, and the key's hash must
// match the registry's management_key_hash for that subdomain.
func ManagementMiddleware(registry TenantLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subdomain := r.Header.Get("X-Subdomain")
			key := r.Header.Get("X-Management-Key")
			if subdomain == "" || key == "" {
				writeManagementUnauthorized(w)
				return
			}

			rec, ok, err := registry.GetTenant(r.Context(), subdomain)
			if err != nil {
				log.Error().Err(err).Str("subdomain", subdomain).Msg("registry lookup failed")
				writeManagementUnauthorized(w)
				return
			}
			if !ok {
				writeManagementUnauthorized(w)
				return
			}

			got := HashManagementKey(key)
			if subtle.ConstantTimeCompare([]byte(got), []byte(rec.ManagementKeyHash)) != 1 {
				log.Debug().Str("subdomain", subdomain).Msg("management key rejected")
				writeManagementUnauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), managementSubdomainKey, subdomain)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeManagementUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
}

// ManagementSubdomain extracts the authenticated tenant subdomain set by
// ManagementMiddleware.
func ManagementSubdomain(ctx context.Context) string {
	if s, ok := ctx.Value(managementSubdomainKey).(string); ok {
		return s
	}
	return ""
}
