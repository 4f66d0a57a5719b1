// Package tunnel implements the one-shot HTTPS call from this service
// to a tenant's self-hosted origin, reached through its per-subdomain
// tunnel.
package tunnel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// offlineStatusCodes are the tunnel-layer codes that mean the origin is
// unreachable rather than merely returning an application error.
var offlineStatusCodes = map[int]bool{
	502: true,
	504: true,
	521: true,
	522: true,
	523: true,
	530: true,
}

// Result is the outcome of one proxied call.
type Result struct {
	// Online is false when the origin could not be reached at all
	// (network error or one of the 52x/504/502 gateway codes). The
	// caller is responsible for deciding what to do next — queue,
	// fall back to cache, or surface an error — the proxy itself never
	// retries or queues.
	Online bool
	// ProxyError holds "network" or the offending status code as a
	// string, set only when Online is false.
	ProxyError string
	// StatusCode is the origin's HTTP status, set only when Online.
	StatusCode int
	// Body is the raw response body, set only when Online.
	Body []byte
}

// Proxy posts JSON to a tenant's origin tunnel, authenticated with the
// tenant's action secret. It performs no retries and relies entirely on
// ctx / the http.Client's own defaults for timeout behavior: per
// spec.md, a 502/504/52x response *is* the timeout signal, not
// something this package works around.
type Proxy struct {
	client             *http.Client
	originHostTemplate string
}

// NewProxy builds a Proxy. originHostTemplate formats a subdomain into
// the tenant's origin host, e.g. "%s.tunnels.example.com".
func NewProxy(client *http.Client, originHostTemplate string) *Proxy {
	if client == nil {
		client = http.DefaultClient
	}
	return &Proxy{client: client, originHostTemplate: originHostTemplate}
}

func (p *Proxy) originURL(subdomain, path string) string {
	host := fmt.Sprintf(p.originHostTemplate, subdomain)
	return fmt.Sprintf("https://%s%s", host, path)
}

// Post sends body (already-marshaled JSON) to path on the tenant's
// origin, authenticated with actionSecret.
func (p *Proxy) Post(ctx context.Context, subdomain, actionSecret, path string, body []byte) Result {
	return p.do(ctx, subdomain, actionSecret, path, body)
}

// PostEmpty sends an empty JSON object body, used by the read-only
// field-options variant.
func (p *Proxy) PostEmpty(ctx context.Context, subdomain, actionSecret, path string) Result {
	return p.do(ctx, subdomain, actionSecret, path, []byte("{}"))
}

// PingResult is the outcome of a diagnostic GET against a tenant's
// origin, used by the admin API's tunnel-test endpoint.
type PingResult struct {
	Online     bool
	ProxyError string
	StatusCode int
	Latency    time.Duration
	Headers    http.Header
	Body       []byte
}

// Ping issues a diagnostic GET to path (spec.md §4.9's "/ifttt/ping"),
// authenticated the same way as Post, and times the round trip.
func (p *Proxy) Ping(ctx context.Context, subdomain, actionSecret, path string) PingResult {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.originURL(subdomain, path), nil)
	if err != nil {
		return PingResult{Online: false, ProxyError: "network"}
	}
	req.Header.Set("X-IFTTT-Action-Secret", actionSecret)

	resp, err := p.client.Do(req)
	if err != nil {
		return PingResult{Online: false, ProxyError: "network", Latency: time.Since(start)}
	}
	defer resp.Body.Close()

	if offlineStatusCodes[resp.StatusCode] {
		return PingResult{Online: false, ProxyError: fmt.Sprintf("%d", resp.StatusCode), Latency: time.Since(start)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return PingResult{Online: false, ProxyError: "network", Latency: time.Since(start)}
	}

	return PingResult{
		Online:     true,
		StatusCode: resp.StatusCode,
		Latency:    time.Since(start),
		Headers:    resp.Header,
		Body:       body,
	}
}

func (p *Proxy) do(ctx context.Context, subdomain, actionSecret, path string, body []byte) Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.originURL(subdomain, path), bytes.NewReader(body))
	if err != nil {
		return Result{Online: false, ProxyError: "network"}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-IFTTT-Action-Secret", actionSecret)

	resp, err := p.client.Do(req)
	if err != nil {
		return Result{Online: false, ProxyError: "network"}
	}
	defer resp.Body.Close()

	if offlineStatusCodes[resp.StatusCode] {
		return Result{Online: false, ProxyError: fmt.Sprintf("%d", resp.StatusCode)}
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{Online: false, ProxyError: "network"}
	}

	return Result{Online: true, StatusCode: resp.StatusCode, Body: respBody}
}

// ErrOriginFailed is returned by Decode when the origin replied
// {success:false}: the tunnel itself was reachable, but the tenant's
// application rejected the call.
var ErrOriginFailed = errors.New("origin reported failure")

// Decode parses r.Body as the origin envelope and, on success, unmarshals
// the remaining payload into out (which may be nil if the caller only
// cares whether the call succeeded).
func Decode(r Result, out interface{}) error {
	var env struct {
		Success bool            `json:"success"`
		Error   string          `json:"error"`
		Raw     json.RawMessage `json:"-"`
	}
	if err := json.Unmarshal(r.Body, &env); err != nil {
		return fmt.Errorf("decode origin response: %w", err)
	}
	if !env.Success {
		if env.Error == "" {
			env.Error = "unknown origin error"
		}
		return fmt.Errorf("%w: %s", ErrOriginFailed, env.Error)
	}
	if out != nil {
		return json.Unmarshal(r.Body, out)
	}
	return nil
}
