package httpapi

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/eclosion-dev/ifttt-core/internal/auth"
	"github.com/eclosion-dev/ifttt-core/internal/broker"
	"github.com/eclosion-dev/ifttt-core/internal/realtime"
	"github.com/eclosion-dev/ifttt-core/internal/store"
	"github.com/eclosion-dev/ifttt-core/internal/tunnel"
)

// dialingTo builds an http.Client that ignores the hostname in any
// request URL and always dials srv's real listener, skipping TLS
// verification — lets tests use a realistic "%s.origin.invalid" host
// template against a single local httptest.Server.
func dialingTo(srv *httptest.Server) *http.Client {
	addr := srv.Listener.Addr().String()
	return &http.Client{
		Transport: &http.Transport{
			DialTLSContext: func(ctx context.Context, network, _ string) (net.Conn, error) {
				d := tls.Dialer{Config: &tls.Config{InsecureSkipVerify: true}}
				return d.DialContext(ctx, network, addr)
			},
		},
	}
}

const (
	testHMACSecret = "test-hmac-secret"
	testServiceKey = "test-service-key"
)

type testHarness struct {
	handler  http.Handler
	global   *store.MemStore
	registry *store.MemRegistry
	mgr      *broker.Manager
}

func newTestHarness(t *testing.T, proxyHandler http.Handler) *testHarness {
	t.Helper()

	global := store.NewMemStore()
	registry := store.NewMemRegistry()
	mgr := broker.NewManager(func(subdomain string) broker.Store { return broker.NewMemStore() })

	if proxyHandler == nil {
		proxyHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"success":true}`))
		})
	}
	srv := httptest.NewTLSServer(proxyHandler)
	t.Cleanup(srv.Close)
	client := dialingTo(srv)
	originTemplate := "%s.origin.invalid"

	proxy := tunnel.NewProxy(client, originTemplate)
	notifier := realtime.NewNotifier(nil, "", "")

	oauthSvc := auth.NewService(auth.Config{
		HMACSecret:         testHMACSecret,
		OAuthClientID:      "client-id",
		OAuthClientSecret:  "client-secret",
		DemoPassword:       "letmein",
		OriginHostTemplate: originTemplate,
		DemoLoginURL:       "https://example.test/demo",
	}, global, registry, SeedDemoData(mgr))

	deps := &Deps{
		ServiceKey: testServiceKey,
		HMACSecret: testHMACSecret,
		Global:     global,
		Registry:   registry,
		Broker:     mgr,
		Proxy:      proxy,
		Notifier:   notifier,
		OAuth:      oauthSvc,
	}

	return &testHarness{handler: Routes(deps), global: global, registry: registry, mgr: mgr}
}

func (h *testHarness) bearerFor(t *testing.T, subdomain string) string {
	t.Helper()
	if err := h.global.SetConnected(context.Background(), subdomain, true); err != nil {
		t.Fatalf("SetConnected: %v", err)
	}
	tok, err := auth.Mint(testHMACSecret, subdomain)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	return tok
}

func (h *testHarness) do(t *testing.T, method, path, bearer string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

// httpRequest builds a request the caller can add extra headers to
// before calling serve, for cases do's shorthand doesn't cover.
func httpRequest(t *testing.T, method, path, bearer string, body interface{}) *http.Request {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	return req
}

func serve(h *testHarness, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func reqCtx() context.Context { return context.Background() }
