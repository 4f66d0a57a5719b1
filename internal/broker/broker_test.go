package broker

import (
	"fmt"
	"testing"
	"time"
)

func newTestManager() *Manager {
	return NewManager(func(subdomain string) Store { return NewMemStore() })
}

func TestTriggerEventsSortedDescendingAndCapped(t *testing.T) {
	m := newTestManager()
	base := time.Now()
	nowFunc = func() time.Time { return base }
	defer func() { nowFunc = time.Now }()

	for i := 0; i < 205; i++ {
		nowFunc = func(i int) func() time.Time {
			return func() time.Time { return base.Add(time.Duration(i) * time.Second) }
		}(i)
		m.PushTriggerEvent("acme", "goal_achieved", map[string]string{"n": fmt.Sprintf("%d", i)})
	}

	events := m.TriggerEvents("acme", "goal_achieved", 50)
	if len(events) != 50 {
		t.Fatalf("got %d events, want 50", len(events))
	}
	for i := 1; i < len(events); i++ {
		if !events[i-1].Timestamp.After(events[i].Timestamp) {
			t.Fatalf("events not strictly descending by timestamp at index %d", i)
		}
	}

	all := m.TriggerEvents("acme", "goal_achieved", 1000)
	if len(all) != MaxEventsPerSlug {
		t.Fatalf("got %d stored events, want exactly %d after 205 pushes", len(all), MaxEventsPerSlug)
	}
}

func TestQueuePushDedupByRequestID(t *testing.T) {
	m := newTestManager()

	id1, dup1 := m.PushQueuedAction("acme", "move_funds", map[string]string{"amount": "5"}, "req-1")
	if dup1 {
		t.Fatal("first push should not be a duplicate")
	}

	id2, dup2 := m.PushQueuedAction("acme", "move_funds", map[string]string{"amount": "5"}, "req-1")
	if !dup2 {
		t.Fatal("second push with same ifttt_request_id should be deduplicated")
	}
	if id1 != id2 {
		t.Fatalf("deduplicated push returned different id: %q vs %q", id1, id2)
	}

	pending := m.PendingQueuedActions("acme")
	if len(pending) != 1 {
		t.Fatalf("got %d pending actions, want 1", len(pending))
	}
}

func TestQueueAckIsIdempotent(t *testing.T) {
	m := newTestManager()
	id, _ := m.PushQueuedAction("acme", "move_funds", nil, "req-1")

	m.AckQueuedAction("acme", id)
	if len(m.PendingQueuedActions("acme")) != 0 {
		t.Fatal("expected queue to be empty after ack")
	}

	// Acking again, or an unknown id, must not error or panic.
	m.AckQueuedAction("acme", id)
	m.AckQueuedAction("acme", "never-existed")
}

func TestRateLimitAllows15ThenDeniesThe16th(t *testing.T) {
	m := newTestManager()
	base := time.Now()
	nowFunc = func() time.Time { return base }
	defer func() { nowFunc = time.Now }()

	for i := 0; i < RateLimitMax; i++ {
		allowed, current, _ := m.CheckRateLimit("acme")
		if !allowed {
			t.Fatalf("request %d should be allowed, current=%d", i+1, current)
		}
	}

	allowed, _, retryAfterMs := m.CheckRateLimit("acme")
	if allowed {
		t.Fatal("16th request within the window should be denied")
	}
	if retryAfterMs <= 0 || retryAfterMs > RateLimitWindow.Milliseconds() {
		t.Fatalf("retryAfterMs=%d out of expected (0, %d] range", retryAfterMs, RateLimitWindow.Milliseconds())
	}
}

func TestRateLimitIsPerTenant(t *testing.T) {
	m := newTestManager()
	for i := 0; i < RateLimitMax; i++ {
		if allowed, _, _ := m.CheckRateLimit("acme"); !allowed {
			t.Fatalf("acme request %d should be allowed", i+1)
		}
	}
	if allowed, _, _ := m.CheckRateLimit("acme"); allowed {
		t.Fatal("acme should now be rate-limited")
	}
	if allowed, _, _ := m.CheckRateLimit("other-tenant"); !allowed {
		t.Fatal("a different tenant must not share acme's rate-limit window")
	}
}

func TestSubscriptionsUpsertAndDelete(t *testing.T) {
	m := newTestManager()
	m.SetSubscription("acme", TriggerSubscription{TriggerSlug: "goal_achieved", TriggerIdentity: "id-1"})
	m.SetSubscription("acme", TriggerSubscription{TriggerSlug: "goal_achieved", TriggerIdentity: "id-1", Fields: map[string]string{"a": "b"}})

	subs := m.ListSubscriptions("acme")
	if len(subs) != 1 {
		t.Fatalf("got %d subscriptions, want 1 after upsert", len(subs))
	}
	if subs[0].Fields["a"] != "b" {
		t.Fatal("expected the second SetSubscription call to overwrite the first")
	}

	m.DeleteSubscription("acme", "goal_achieved", "id-1")
	if len(m.ListSubscriptions("acme")) != 0 {
		t.Fatal("expected subscription to be removed")
	}
}

func TestFieldOptionsFullOverwrite(t *testing.T) {
	m := newTestManager()
	m.SetFieldOptions("acme", "category", []FieldOption{{Label: "Food", Value: "food"}})
	m.SetFieldOptions("acme", "category", []FieldOption{{Label: "Rent", Value: "rent"}})

	opts := m.FieldOptions("acme", "category")
	if len(opts) != 1 || opts[0].Value != "rent" {
		t.Fatalf("expected overwrite to leave exactly the rent option, got %+v", opts)
	}
}
