// Package realtime notifies IFTTT's realtime endpoint so it can
// short-circuit polling when a new trigger event arrives. Failures here
// are swallowed: IFTTT's own poller is the fallback path, so a realtime
// notification failure costs latency, not correctness.
package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Notifier posts to IFTTT's realtime URL after a trigger event arrives.
type Notifier struct {
	client     *http.Client
	url        string
	serviceKey string
}

// NewNotifier builds a Notifier. An empty url disables notification
// entirely (Notify becomes a no-op), useful for local dev.
func NewNotifier(client *http.Client, url, serviceKey string) *Notifier {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &Notifier{client: client, url: url, serviceKey: serviceKey}
}

// Notify fires a background POST {data:[{user_id: subdomain}]} to the
// realtime endpoint. It returns immediately; the request runs in its
// own goroutine with no ordering obligation to the caller, matching the
// fire-and-forget semantics spec.md requires for follow-up work after a
// trigger push.
func (n *Notifier) Notify(subdomain string) {
	if n.url == "" {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		body, err := json.Marshal(map[string]interface{}{
			"data": []map[string]string{{"user_id": subdomain}},
		})
		if err != nil {
			log.Error().Err(err).Msg("failed to marshal realtime notify payload")
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
		if err != nil {
			log.Warn().Err(err).Msg("failed to build realtime notify request")
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("IFTTT-Service-Key", n.serviceKey)

		resp, err := n.client.Do(req)
		if err != nil {
			log.Warn().Err(err).Str("subdomain", subdomain).Msg("realtime notify failed")
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			log.Warn().Int("status", resp.StatusCode).Str("subdomain", subdomain).Msg("realtime notify rejected")
		}
	}()
}
