package httpapi

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/eclosion-dev/ifttt-core/internal/broker"
)

func TestStatusRequiresServiceKey(t *testing.T) {
	h := newTestHarness(t, nil)

	req := httpRequest(t, http.MethodGet, "/ifttt/v1/status", "", nil)
	rec := serve(h, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no service key: got %d, want 401", rec.Code)
	}

	req = httpRequest(t, http.MethodGet, "/ifttt/v1/status", "", nil)
	req.Header.Set("IFTTT-Service-Key", testServiceKey)
	rec = serve(h, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("with service key: got %d, want 200", rec.Code)
	}
}

func TestUserInfoReturnsSubdomainAsID(t *testing.T) {
	h := newTestHarness(t, nil)
	token := h.bearerFor(t, "acme")

	rec := h.do(t, http.MethodGet, "/ifttt/v1/user/info", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.ID != "acme" {
		t.Fatalf("got id %q, want acme", body.Data.ID)
	}
}

func TestTriggerRejectsMissingRequiredField(t *testing.T) {
	h := newTestHarness(t, nil)
	token := h.bearerFor(t, "acme")

	rec := h.do(t, http.MethodPost, "/ifttt/v1/triggers/goal_achieved", token, map[string]interface{}{
		"triggerFields": map[string]string{},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got %d, want 400: %s", rec.Code, rec.Body.String())
	}
}

func TestTriggerPaginatesWithCursor(t *testing.T) {
	h := newTestHarness(t, nil)
	token := h.bearerFor(t, "acme")

	for i := 0; i < 60; i++ {
		h.mgr.PushTriggerEvent("acme", "goal_achieved", map[string]string{"goal_name": "Fund"})
	}

	rec := h.do(t, http.MethodPost, "/ifttt/v1/triggers/goal_achieved", token, map[string]interface{}{
		"triggerFields": map[string]string{"goal_name": "Fund"},
		"limit":         50,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Data   []map[string]interface{} `json:"data"`
		Cursor string                   `json:"cursor"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Data) != 50 {
		t.Fatalf("got %d items, want 50", len(body.Data))
	}
	if body.Cursor == "" {
		t.Fatal("expected a cursor since more events remain")
	}
}

func TestTriggerTestModeSynthesizesSamples(t *testing.T) {
	h := newTestHarness(t, nil)
	token := h.bearerFor(t, "acme")

	req := httpRequest(t, http.MethodPost, "/ifttt/v1/triggers/goal_achieved", token, map[string]interface{}{
		"triggerFields": map[string]string{"goal_name": "Fund"},
	})
	req.Header.Set("IFTTT-Test-Mode", "1")
	rec := serve(h, req)

	var body struct {
		Data []map[string]interface{} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Data) != 3 {
		t.Fatalf("got %d sample items, want 3", len(body.Data))
	}
}

func TestActionOfflineEnqueuesAndDedupsByRequestID(t *testing.T) {
	h := newTestHarness(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	token := h.bearerFor(t, "acme")
	if err := h.global.PutActionSecret(reqCtx(), "acme", "secret"); err != nil {
		t.Fatalf("PutActionSecret: %v", err)
	}

	req := httpRequest(t, http.MethodPost, "/ifttt/v1/actions/budget_to", token, map[string]interface{}{
		"actionFields": map[string]string{"category": "groceries", "amount": "50"},
	})
	req.Header.Set("X-Request-ID", "req-1")
	rec := serve(h, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var first struct {
		Data []map[string]string `json:"data"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &first)
	if len(first.Data) != 1 || first.Data[0]["id"][:7] != "queued-" {
		t.Fatalf("unexpected first response: %+v", first)
	}

	req2 := httpRequest(t, http.MethodPost, "/ifttt/v1/actions/budget_to", token, map[string]interface{}{
		"actionFields": map[string]string{"category": "groceries", "amount": "50"},
	})
	req2.Header.Set("X-Request-ID", "req-1")
	rec2 := serve(h, req2)
	var second struct {
		Data []map[string]string `json:"data"`
	}
	_ = json.Unmarshal(rec2.Body.Bytes(), &second)
	if len(second.Data) != 1 || second.Data[0]["id"][:13] != "deduplicated-" {
		t.Fatalf("expected deduplicated id, got %+v", second)
	}

	pending := h.mgr.PendingQueuedActions("acme")
	if len(pending) != 1 {
		t.Fatalf("got %d pending actions, want 1", len(pending))
	}
}

func TestActionRejectsInvalidFieldsBeforeTestModeShortcut(t *testing.T) {
	h := newTestHarness(t, nil)
	token := h.bearerFor(t, "acme")

	req := httpRequest(t, http.MethodPost, "/ifttt/v1/actions/move_funds", token, map[string]interface{}{
		"actionFields": map[string]string{"source_category": "groceries", "destination_category": "groceries", "amount": "10"},
	})
	req.Header.Set("IFTTT-Test-Mode", "1")
	rec := serve(h, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got %d, want 400: %s", rec.Code, rec.Body.String())
	}
}

func TestActionMissingSecretReturns403(t *testing.T) {
	h := newTestHarness(t, nil)
	token := h.bearerFor(t, "acme")

	rec := h.do(t, http.MethodPost, "/ifttt/v1/actions/budget_to", token, map[string]interface{}{
		"actionFields": map[string]string{"category": "groceries", "amount": "50"},
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("got %d, want 403: %s", rec.Code, rec.Body.String())
	}
}

func TestActionRateLimitTripsAtSixteenth(t *testing.T) {
	h := newTestHarness(t, nil)
	token := h.bearerFor(t, "acme")
	if err := h.global.PutActionSecret(reqCtx(), "acme", "secret"); err != nil {
		t.Fatalf("PutActionSecret: %v", err)
	}

	var last int
	for i := 0; i < broker.RateLimitMax+1; i++ {
		req := httpRequest(t, http.MethodPost, "/ifttt/v1/actions/budget_to", token, map[string]interface{}{
			"actionFields": map[string]string{"category": "groceries", "amount": "50"},
		})
		rec := serve(h, req)
		last = rec.Code
		if i < broker.RateLimitMax && rec.Code == http.StatusTooManyRequests {
			t.Fatalf("rate limited too early at request %d", i)
		}
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("got %d on the 16th request, want 429", last)
	}
}

func TestQueryListAchievedGoalsReadsBroker(t *testing.T) {
	h := newTestHarness(t, nil)
	token := h.bearerFor(t, "acme")
	h.mgr.PushTriggerEvent("acme", "goal_achieved", map[string]string{"goal_name": "Fund"})

	rec := h.do(t, http.MethodPost, "/ifttt/v1/queries/list_achieved_goals", token, map[string]interface{}{})
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Data []map[string]interface{} `json:"data"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if len(body.Data) != 1 {
		t.Fatalf("got %d items, want 1", len(body.Data))
	}
}

func TestFieldValidateThresholdAmountBoundaries(t *testing.T) {
	h := newTestHarness(t, nil)
	token := h.bearerFor(t, "acme")

	cases := []struct {
		value string
		valid bool
	}{
		{"1", true}, {"0", false}, {"-1", false}, {"abc", false},
	}
	for _, c := range cases {
		rec := h.do(t, http.MethodPost, "/ifttt/v1/triggers/category_balance_threshold/fields/threshold_amount/validate", token, map[string]string{
			"value": c.value,
		})
		var body struct {
			Data struct {
				Valid bool `json:"valid"`
			} `json:"data"`
		}
		_ = json.Unmarshal(rec.Body.Bytes(), &body)
		if body.Data.Valid != c.valid {
			t.Errorf("value %q: got valid=%v, want %v", c.value, body.Data.Valid, c.valid)
		}
	}
}
