package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/eclosion-dev/ifttt-core/internal/auth"
	"github.com/eclosion-dev/ifttt-core/internal/broker"
	"github.com/eclosion-dev/ifttt-core/internal/pagination"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type triggerRequest struct {
	TriggerIdentity string            `json:"trigger_identity"`
	TriggerFields   map[string]string `json:"triggerFields"`
	Limit           int               `json:"limit"`
	Cursor          string            `json:"cursor"`
	IftttSource     map[string]string `json:"ifttt_source"`
}

// trigger answers POST /ifttt/v1/triggers/{slug} (spec.md §4.5).
func (disp *dispatcher) trigger(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	def, ok := triggerDefs[slug]
	if !ok {
		writeIftttError(w, errNotFound("unknown trigger: "+slug))
		return
	}

	var req triggerRequest
	if apiErr := readJSON(r, &req); apiErr != nil {
		writeIftttError(w, apiErr)
		return
	}
	if req.TriggerFields == nil {
		writeIftttError(w, errValidationFailed("triggerFields is required"))
		return
	}
	for _, field := range def.requiredFields {
		if req.TriggerFields[field] == "" {
			writeIftttError(w, errValidationFailed("missing required field: "+field))
			return
		}
	}

	limit := req.Limit
	if limit <= 0 || limit > 50 {
		limit = 50
	}

	subdomain := auth.Subdomain(r.Context())
	testMode := isTestMode(r)

	if !testMode && req.TriggerIdentity != "" {
		disp.d.Broker.SetSubscription(subdomain, broker.TriggerSubscription{
			TriggerIdentity: req.TriggerIdentity,
			TriggerSlug:     slug,
			Fields:          req.TriggerFields,
		})
	}

	events := disp.d.Broker.TriggerEvents(subdomain, slug, broker.MaxEventsPerSlug)

	filtered := events
	if def.filter != nil {
		filtered = make([]broker.TriggerEvent, 0, len(events))
		for _, e := range events {
			if def.filter(req.TriggerFields, e.Data) {
				filtered = append(filtered, e)
			}
		}
	}

	if testMode && len(filtered) == 0 {
		filtered = syntheticTriggerEvents(slug, def)
	}

	start := 0
	if cursor, ok := pagination.Decode(req.Cursor); ok {
		for i, e := range filtered {
			if e.ID == cursor.EventID.String() {
				start = i + 1
				break
			}
		}
	}
	if start > len(filtered) {
		start = len(filtered)
	}
	page := filtered[start:]

	var nextCursor string
	if len(page) > limit {
		last := page[limit-1]
		id, err := uuid.Parse(last.ID)
		if err == nil {
			nextCursor = pagination.Encode(pagination.Cursor{TimestampSec: last.Timestamp.Unix(), EventID: id})
		}
		page = page[:limit]
	}

	items := make([]map[string]interface{}, 0, len(page))
	for _, e := range page {
		item := map[string]interface{}{
			"meta": map[string]interface{}{"id": e.ID, "timestamp": e.Timestamp.Unix()},
		}
		for k, v := range e.Data {
			item[k] = v
		}
		items = append(items, item)
	}

	resp := map[string]interface{}{"data": items}
	if nextCursor != "" {
		resp["cursor"] = nextCursor
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = writeJSONBody(w, resp)
}

// deleteTriggerIdentity answers DELETE
// /ifttt/v1/triggers/{slug}/trigger_identity/{id}.
func (disp *dispatcher) deleteTriggerIdentity(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	id := chi.URLParam(r, "id")
	subdomain := auth.Subdomain(r.Context())
	disp.d.Broker.DeleteSubscription(subdomain, slug, id)
	w.WriteHeader(http.StatusOK)
}

// syntheticTriggerEvents fabricates a fixed 3-item sample feed for test
// mode, shaped exactly like real broker.TriggerEvents so it flows
// through the same cursor/limit pipeline as live data (the slug filter
// has already run by then and is not applied to the samples) — this is
// what makes pagination (and its cursor) observable under
// IFTTT-Test-Mode against an otherwise-empty tenant.
func syntheticTriggerEvents(slug string, def triggerDef) []broker.TriggerEvent {
	const count = 3
	out := make([]broker.TriggerEvent, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.NewMD5(uuid.Nil, []byte(slug+"-sample-"+strconv.Itoa(i)))
		var data map[string]string
		if def.sample != nil {
			data = def.sample()
		}
		out = append(out, broker.TriggerEvent{
			ID:          id.String(),
			TriggerSlug: slug,
			Timestamp:   time.Unix(int64(1700000000-i), 0),
			Data:        data,
		})
	}
	return out
}
