package realtime

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func TestNotifyPostsExpectedPayload(t *testing.T) {
	var mu sync.Mutex
	var gotBody map[string]interface{}
	var gotServiceKey string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		gotServiceKey = r.Header.Get("IFTTT-Service-Key")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewNotifier(srv.Client(), srv.URL, "svc-key")
	n.Notify("acme")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		done := gotBody != nil
		mu.Unlock()
		if done {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if gotServiceKey != "svc-key" {
		t.Fatalf("got service key %q, want svc-key", gotServiceKey)
	}
	data, ok := gotBody["data"].([]interface{})
	if !ok || len(data) != 1 {
		t.Fatalf("unexpected payload shape: %+v", gotBody)
	}
	entry, ok := data[0].(map[string]interface{})
	if !ok || entry["user_id"] != "acme" {
		t.Fatalf("unexpected data entry: %+v", entry)
	}
}

func TestNotifyNoopWithEmptyURL(t *testing.T) {
	n := NewNotifier(nil, "", "svc-key")
	// Must not panic or block.
	n.Notify("acme")
}
