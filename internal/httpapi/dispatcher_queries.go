package httpapi

import (
	"net/http"

	"github.com/eclosion-dev/ifttt-core/internal/auth"
	"github.com/eclosion-dev/ifttt-core/internal/broker"
	"github.com/eclosion-dev/ifttt-core/internal/pagination"
	"github.com/eclosion-dev/ifttt-core/internal/tunnel"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type queryRequest struct {
	Limit  int               `json:"limit"`
	Cursor string            `json:"cursor"`
	User   map[string]string `json:"user"`
}

// query answers POST /ifttt/v1/queries/{slug} (spec.md §4.8).
func (disp *dispatcher) query(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	def, ok := queryDefs[slug]
	if !ok {
		writeIftttError(w, errNotFound("unknown query: "+slug))
		return
	}

	var req queryRequest
	if apiErr := readJSON(r, &req); apiErr != nil {
		writeIftttError(w, apiErr)
		return
	}
	limit := req.Limit
	if limit <= 0 || limit > 50 {
		limit = 50
	}

	subdomain := auth.Subdomain(r.Context())
	testMode := isTestMode(r)

	if def.triggerSlug != "" {
		disp.brokerBackedQuery(w, r, def, subdomain, req, limit, testMode)
		return
	}

	if testMode {
		writeData(w, http.StatusOK, staticQuerySamples(slug))
		return
	}

	secret, found, err := disp.d.Global.GetActionSecret(r.Context(), subdomain)
	if err != nil {
		writeIftttError(w, errInternal())
		return
	}
	if !found {
		writeData(w, http.StatusOK, []interface{}{})
		return
	}

	result := disp.d.Proxy.PostEmpty(r.Context(), subdomain, secret.Secret, def.originPath)
	if !result.Online {
		writeData(w, http.StatusOK, []interface{}{})
		return
	}

	var payload struct {
		Data interface{} `json:"data"`
	}
	if err := tunnel.Decode(result, &payload); err != nil {
		writeData(w, http.StatusOK, []interface{}{})
		return
	}
	writeData(w, http.StatusOK, payload.Data)
}

func (disp *dispatcher) brokerBackedQuery(w http.ResponseWriter, r *http.Request, def queryDef, subdomain string, req queryRequest, limit int, testMode bool) {
	events := disp.d.Broker.TriggerEvents(subdomain, def.triggerSlug, broker.MaxEventsPerSlug)

	start := 0
	if cursor, ok := pagination.Decode(req.Cursor); ok {
		for i, e := range events {
			if e.ID == cursor.EventID.String() {
				start = i + 1
				break
			}
		}
	}
	if start > len(events) {
		start = len(events)
	}
	page := events[start:]

	var nextCursor string
	if len(page) > limit {
		last := page[limit-1]
		if id, err := uuid.Parse(last.ID); err == nil {
			nextCursor = pagination.Encode(pagination.Cursor{TimestampSec: last.Timestamp.Unix(), EventID: id})
		}
		page = page[:limit]
	}

	items := make([]map[string]interface{}, 0, len(page))
	for _, e := range page {
		item := map[string]interface{}{"id": e.ID, "timestamp": e.Timestamp.Unix()}
		for k, v := range e.Data {
			item[k] = v
		}
		items = append(items, item)
	}

	if testMode && len(items) == 0 {
		items = []map[string]interface{}{
			{"id": "sample-1", "goal_name": "Emergency Fund", "amount": "5000"},
		}
	}

	resp := map[string]interface{}{"data": items}
	if nextCursor != "" {
		resp["cursor"] = nextCursor
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = writeJSONBody(w, resp)
}

func staticQuerySamples(slug string) []map[string]string {
	switch slug {
	case "list_category_budgets":
		return []map[string]string{{"category": "Groceries", "budgeted": "400", "spent": "120.50"}}
	case "list_under_budget_categories":
		return []map[string]string{{"category": "Dining Out", "remaining": "75.00"}}
	case "budget_summary":
		return []map[string]string{{"total_budgeted": "3200", "total_spent": "1840.22"}}
	default:
		return []map[string]string{}
	}
}
