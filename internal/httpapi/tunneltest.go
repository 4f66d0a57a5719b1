package httpapi

import "net/http"

const tunnelTestMaxBody = 2048

var tunnelTestSafeHeaders = []string{"Content-Type", "Server", "Date"}

// tunnelTest answers GET /api/tunnel-test: a diagnostic ping against the
// tenant's own origin, used by the desktop client to confirm the tunnel
// is reachable and correctly configured (spec.md §4.9).
func (a *adminAPI) tunnelTest(w http.ResponseWriter, r *http.Request) {
	subdomain := a.subdomain(r)

	secret, found, err := a.d.Global.GetActionSecret(r.Context(), subdomain)
	if err != nil {
		writeAdminError(w, errInternal())
		return
	}
	if !found {
		writeAdminError(w, errNotConfigured())
		return
	}

	result := a.d.Proxy.Ping(r.Context(), subdomain, secret.Secret, "/ifttt/ping")

	headers := map[string]string{}
	if result.Headers != nil {
		for _, h := range tunnelTestSafeHeaders {
			if v := result.Headers.Get(h); v != "" {
				headers[h] = v
			}
		}
	}

	body := result.Body
	truncated := false
	if len(body) > tunnelTestMaxBody {
		body = body[:tunnelTestMaxBody]
		truncated = true
	}

	writeJSONOK(w, map[string]interface{}{
		"online":         result.Online,
		"proxy_error":    result.ProxyError,
		"status":         result.StatusCode,
		"latency_ms":     result.Latency.Milliseconds(),
		"headers":        headers,
		"body":           string(body),
		"body_truncated": truncated,
	})
}
