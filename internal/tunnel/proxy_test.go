package tunnel

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// clientDialingTo builds an http.Client that ignores the hostname in
// any request URL and always dials srv's real listener address,
// skipping TLS verification. This lets tests use a realistic
// subdomain-prefixed origin host template ("acme.tunnels.example.com")
// against a single local httptest.Server.
func clientDialingTo(srv *httptest.Server) *http.Client {
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

func TestProxyClassifiesOfflineStatusCodes(t *testing.T) {
	for _, code := range []int{502, 504, 521, 522, 523, 530} {
		srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
		}))
		p := NewProxy(clientDialingTo(srv), "%s.tunnels.example.com")

		result := p.Post(context.Background(), "acme", "secret", "/ifttt/actions/move-funds", []byte(`{}`))
		if result.Online {
			t.Errorf("status %d: expected Online=false", code)
		}
		if result.ProxyError == "" {
			t.Errorf("status %d: expected a non-empty ProxyError", code)
		}
		srv.Close()
	}
}

func TestProxySucceedsOnOK(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-IFTTT-Action-Secret"); got != "secret" {
			t.Errorf("got action secret %q, want secret", got)
		}
		if r.Host != "acme.tunnels.example.com" {
			t.Errorf("got Host header %q, want acme.tunnels.example.com", r.Host)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	p := NewProxy(clientDialingTo(srv), "%s.tunnels.example.com")
	result := p.Post(context.Background(), "acme", "secret", "/ifttt/actions/move-funds", []byte(`{}`))
	if !result.Online {
		t.Fatalf("expected Online=true, got offline with proxyError=%q", result.ProxyError)
	}

	if err := Decode(result, nil); err != nil {
		t.Fatalf("Decode: %v", err)
	}
}

func TestDecodeSurfacesOriginFailure(t *testing.T) {
	result := Result{Online: true, Body: []byte(`{"success":false,"error":"boom"}`)}
	err := Decode(result, nil)
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected origin failure error mentioning boom, got %v", err)
	}
}
