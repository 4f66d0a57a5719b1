package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/eclosion-dev/ifttt-core/internal/store"
)

func seededRegistry(t *testing.T, subdomain, managementKey string) *store.MemRegistry {
	t.Helper()
	reg := store.NewMemRegistry()
	reg.Seed(store.TenantRecord{
		Subdomain:         subdomain,
		TunnelID:          "tun_" + subdomain,
		CreatedAt:         time.Now(),
		ManagementKeyHash: HashManagementKey(managementKey),
	}, false)
	return reg
}

func TestManagementMiddlewareAcceptsValidKey(t *testing.T) {
	reg := seededRegistry(t, "acme", "s3cret")

	var gotSubdomain string
	h := ManagementMiddleware(reg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSubdomain = ManagementSubdomain(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/events/push", nil)
	req.Header.Set("X-Subdomain", "acme")
	req.Header.Set("X-Management-Key", "s3cret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}
	if gotSubdomain != "acme" {
		t.Fatalf("got subdomain %q, want acme", gotSubdomain)
	}
}

func TestManagementMiddlewareRejectsWrongKey(t *testing.T) {
	reg := seededRegistry(t, "acme", "s3cret")

	h := ManagementMiddleware(reg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/events/push", nil)
	req.Header.Set("X-Subdomain", "acme")
	req.Header.Set("X-Management-Key", "wrong")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("got status %d, want 401", rec.Code)
	}
}

func TestManagementMiddlewareRejectsUnknownTenant(t *testing.T) {
	reg := store.NewMemRegistry()

	h := ManagementMiddleware(reg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/events/push", nil)
	req.Header.Set("X-Subdomain", "ghost")
	req.Header.Set("X-Management-Key", "anything")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("got status %d, want 401", rec.Code)
	}
}

func TestManagementMiddlewareRejectsMissingHeaders(t *testing.T) {
	reg := seededRegistry(t, "acme", "s3cret")

	h := ManagementMiddleware(reg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/events/push", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("got status %d, want 401", rec.Code)
	}
}
