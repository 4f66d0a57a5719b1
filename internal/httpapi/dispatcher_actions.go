package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/eclosion-dev/ifttt-core/internal/auth"
	"github.com/eclosion-dev/ifttt-core/internal/broker"
	"github.com/eclosion-dev/ifttt-core/internal/tunnel"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type actionRequest struct {
	ActionFields map[string]string `json:"actionFields"`
	IftttSource  map[string]string `json:"ifttt_source"`
	User         map[string]string `json:"user"`
}

// action answers POST /ifttt/v1/actions/{slug} (spec.md §4.6).
func (disp *dispatcher) action(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	def, ok := actionDefs[slug]
	if !ok {
		writeIftttError(w, errNotFound("unknown action: "+slug))
		return
	}

	var req actionRequest
	if apiErr := readJSON(r, &req); apiErr != nil {
		writeIftttError(w, apiErr)
		return
	}
	if req.ActionFields == nil {
		writeIftttError(w, errValidationFailed("actionFields is required"))
		return
	}
	if def.validate != nil {
		if msg := def.validate(req.ActionFields); msg != "" {
			writeIftttError(w, errValidationFailed(msg))
			return
		}
	}

	now := time.Now().UnixMilli()

	if isTestMode(r) {
		writeData(w, http.StatusOK, []map[string]string{{"id": "test-" + slug + "-" + strconv.FormatInt(now, 10)}})
		return
	}

	subdomain := auth.Subdomain(r.Context())
	ctx := r.Context()

	if subdomain == auth.DemoSubdomain {
		writeData(w, http.StatusOK, []map[string]string{{"id": "demo-" + slug + "-" + strconv.FormatInt(now, 10)}})
		return
	}

	secret, found, err := disp.d.Global.GetActionSecret(ctx, subdomain)
	if err != nil {
		writeIftttError(w, errInternal())
		return
	}
	if !found {
		writeIftttError(w, errNotConfigured())
		return
	}

	allowed, current, retryAfterMs := disp.d.Broker.CheckRateLimit(subdomain)
	if !allowed {
		retryAfterSeconds := int((retryAfterMs + 999) / 1000)
		writeIftttError(w, errRateLimited(current, broker.RateLimitMax, retryAfterSeconds))
		return
	}

	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}

	result := disp.d.Proxy.Post(ctx, subdomain, secret.Secret, def.originPath, marshalFields(req.ActionFields))

	switch {
	case !result.Online:
		id, dup := disp.d.Broker.PushQueuedAction(subdomain, slug, req.ActionFields, requestID)
		disp.d.Broker.PushHistory(subdomain, broker.ActionHistoryEntry{
			ActionSlug: slug,
			Fields:     req.ActionFields,
			QueuedAt:   timePtr(time.Now()),
			ExecutedAt: time.Now(),
			Success:    false,
			ProxyError: result.ProxyError,
			WasQueued:  true,
		})
		// §8 scenario 1 says a repeat of the same ifttt_request_id
		// returns the same queued-<uuid>; the invariant list says it
		// "returns deduplicated". Both can't be literal: we keep the id
		// distinguishable (deduplicated-<uuid>, same <uuid> as the
		// original) so a caller can tell a replay from a fresh enqueue
		// without losing the underlying action identity.
		if dup {
			writeData(w, http.StatusOK, []map[string]string{{"id": "deduplicated-" + id}})
			return
		}
		writeData(w, http.StatusOK, []map[string]string{{"id": "queued-" + id}})

	default:
		if decodeErr := tunnel.Decode(result, nil); decodeErr != nil {
			disp.d.Broker.PushHistory(subdomain, broker.ActionHistoryEntry{
				ActionSlug: slug,
				Fields:     req.ActionFields,
				ExecutedAt: time.Now(),
				Success:    false,
				Error:      decodeErr.Error(),
			})
			writeIftttError(w, errOriginFailed(decodeErr.Error()))
			return
		}
		disp.d.Broker.PushHistory(subdomain, broker.ActionHistoryEntry{
			ActionSlug: slug,
			Fields:     req.ActionFields,
			ExecutedAt: time.Now(),
			Success:    true,
		})
		writeData(w, http.StatusOK, []map[string]string{{"id": slug + "-" + strconv.FormatInt(now, 10)}})
	}
}

func timePtr(t time.Time) *time.Time { return &t }
