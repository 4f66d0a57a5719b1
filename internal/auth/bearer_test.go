package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/eclosion-dev/ifttt-core/internal/store"
)

const testSecret = "test-hmac-secret"

func TestMintVerifyRoundTrip(t *testing.T) {
	tok, err := Mint(testSecret, "acme")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	sub, err := Verify(testSecret, tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if sub != "acme" {
		t.Fatalf("got subdomain %q, want acme", sub)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	tok, err := Mint(testSecret, "acme")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	if _, err := Verify("other-secret", tok); err == nil {
		t.Fatal("expected verification failure with wrong secret")
	}
}

func TestVerifyRejectsMissingToken(t *testing.T) {
	if _, err := Verify(testSecret, ""); err != ErrMissingBearer {
		t.Fatalf("got %v, want ErrMissingBearer", err)
	}
}

func TestMiddlewareRejectsDisconnectedTenant(t *testing.T) {
	st := store.NewMemStore()
	tok, err := Mint(testSecret, "acme")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	// acme has never been marked connected.

	var called bool
	h := Middleware(testSecret, st)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/ifttt/v1/user/info", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if called {
		t.Fatal("handler should not run for a disconnected tenant")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("got status %d, want 401", rec.Code)
	}
}

func TestMiddlewareAcceptsConnectedTenant(t *testing.T) {
	st := store.NewMemStore()
	if err := st.SetConnected(context.Background(), "acme", true); err != nil {
		t.Fatalf("SetConnected: %v", err)
	}
	tok, err := Mint(testSecret, "acme")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	var gotSub string
	h := Middleware(testSecret, st)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSub = Subdomain(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/ifttt/v1/user/info", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}
	if gotSub != "acme" {
		t.Fatalf("got subdomain %q, want acme", gotSub)
	}
}

func TestDisconnectInvalidatesToken(t *testing.T) {
	st := store.NewMemStore()
	ctx := context.Background()
	if err := st.SetConnected(ctx, "acme", true); err != nil {
		t.Fatalf("SetConnected: %v", err)
	}
	tok, err := Mint(testSecret, "acme")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	h := Middleware(testSecret, st)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/ifttt/v1/user/info", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 before disconnect, got %d", rec.Code)
	}

	if err := st.SetConnected(ctx, "acme", false); err != nil {
		t.Fatalf("SetConnected(false): %v", err)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after disconnect, got %d", rec.Code)
	}
}
