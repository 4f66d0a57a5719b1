package broker

import (
	"sync"

	"github.com/google/uuid"
)

// StoreFactory constructs a fresh, empty Store for a newly seen tenant.
// Production wires a factory backed by PgStore; tests use NewMemStore.
type StoreFactory func(subdomain string) Store

// Manager is the tenant broker: a map of per-subdomain actors, each
// guarded by its own mutex so that operations on one tenant never block
// another, while operations within one tenant are fully serialized —
// the "single-writer actor" spec.md calls for.
type Manager struct {
	factory StoreFactory

	mu      sync.Mutex
	tenants map[string]*tenantActor
}

type tenantActor struct {
	mu    sync.Mutex
	store Store
}

// NewManager creates a Manager that lazily constructs a Store per
// subdomain on first use via factory.
func NewManager(factory StoreFactory) *Manager {
	return &Manager{factory: factory, tenants: make(map[string]*tenantActor)}
}

func (m *Manager) actor(subdomain string) *tenantActor {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.tenants[subdomain]
	if !ok {
		a = &tenantActor{store: m.factory(subdomain)}
		m.tenants[subdomain] = a
	}
	return a
}

// Subdomains returns every tenant the manager currently has an actor
// for, for use by the compaction sweep.
func (m *Manager) Subdomains() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.tenants))
	for sub := range m.tenants {
		out = append(out, sub)
	}
	return out
}

// with runs fn against subdomain's Store under its dedicated lock.
func (m *Manager) with(subdomain string, fn func(Store)) {
	a := m.actor(subdomain)
	a.mu.Lock()
	defer a.mu.Unlock()
	fn(a.store)
}

// PushQueuedAction enqueues an action, returning its id and whether it
// was a duplicate of an already-queued entry.
func (m *Manager) PushQueuedAction(subdomain, actionSlug string, fields map[string]string, iftttRequestID string) (id string, dup bool) {
	a := QueuedAction{
		ID:             uuid.NewString(),
		ActionSlug:     actionSlug,
		Fields:         fields,
		QueuedAt:       nowFunc(),
		IftttRequestID: iftttRequestID,
	}
	m.with(subdomain, func(s Store) {
		existing, isDup := s.PushQueuedAction(a)
		dup = isDup
		if isDup {
			id = existing.ID
		} else {
			id = a.ID
		}
	})
	return id, dup
}

// PendingQueuedActions returns every unexpired queued action for
// subdomain, FIFO by QueuedAt.
func (m *Manager) PendingQueuedActions(subdomain string) []QueuedAction {
	var out []QueuedAction
	m.with(subdomain, func(s Store) { out = s.PendingQueuedActions() })
	return out
}

// AckQueuedAction removes a queued action. Acking an unknown id is not
// an error: spec.md requires idempotent acks.
func (m *Manager) AckQueuedAction(subdomain, id string) {
	m.with(subdomain, func(s Store) { s.AckQueuedAction(id) })
}

// PushTriggerEvent records a trigger occurrence and returns its id.
func (m *Manager) PushTriggerEvent(subdomain, slug string, data map[string]string) string {
	e := TriggerEvent{
		ID:          uuid.NewString(),
		TriggerSlug: slug,
		Timestamp:   nowFunc(),
		Data:        data,
	}
	m.with(subdomain, func(s Store) { s.PushTriggerEvent(e) })
	return e.ID
}

// TriggerEvents returns up to limit events for slug, descending by
// timestamp, purging expired entries first.
func (m *Manager) TriggerEvents(subdomain, slug string, limit int) []TriggerEvent {
	var out []TriggerEvent
	m.with(subdomain, func(s Store) { out = s.TriggerEvents(slug, limit) })
	return out
}

// TriggerHistory returns up to 100 most recent events across every
// slug for subdomain.
func (m *Manager) TriggerHistory(subdomain string) []TriggerEvent {
	var out []TriggerEvent
	m.with(subdomain, func(s Store) { out = s.TriggerHistory() })
	return out
}

// SetFieldOptions overwrites the cached options for fieldSlug.
func (m *Manager) SetFieldOptions(subdomain, fieldSlug string, opts []FieldOption) {
	m.with(subdomain, func(s Store) { s.SetFieldOptions(fieldSlug, opts) })
}

// FieldOptions returns the cached options for fieldSlug, nil if none.
func (m *Manager) FieldOptions(subdomain, fieldSlug string) []FieldOption {
	var out []FieldOption
	m.with(subdomain, func(s Store) { out = s.FieldOptions(fieldSlug) })
	return out
}

// PushHistory records an action-history entry.
func (m *Manager) PushHistory(subdomain string, h ActionHistoryEntry) {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	m.with(subdomain, func(s Store) { s.PushHistory(h) })
}

// History returns action history, descending by executed time.
func (m *Manager) History(subdomain string) []ActionHistoryEntry {
	var out []ActionHistoryEntry
	m.with(subdomain, func(s Store) { out = s.History() })
	return out
}

// SetSubscription upserts a trigger subscription.
func (m *Manager) SetSubscription(subdomain string, sub TriggerSubscription) {
	m.with(subdomain, func(s Store) { s.SetSubscription(sub) })
}

// ListSubscriptions returns every subscription for subdomain.
func (m *Manager) ListSubscriptions(subdomain string) []TriggerSubscription {
	var out []TriggerSubscription
	m.with(subdomain, func(s Store) { out = s.ListSubscriptions() })
	return out
}

// DeleteSubscription removes a subscription by (slug, identity).
func (m *Manager) DeleteSubscription(subdomain, slug, identity string) {
	m.with(subdomain, func(s Store) { s.DeleteSubscription(slug, identity) })
}

// CheckRateLimit enforces the 15-actions-per-60s sliding window.
func (m *Manager) CheckRateLimit(subdomain string) (allowed bool, current int, retryAfterMs int64) {
	now := nowFunc().UnixMilli()
	m.with(subdomain, func(s Store) { allowed, current, retryAfterMs = s.CheckRateLimit(now) })
	return allowed, current, retryAfterMs
}

// CompactAll runs Store.Compact for every tenant currently known to the
// manager. Called periodically by the compaction ticker in
// compaction.go.
func (m *Manager) CompactAll() {
	for _, sub := range m.Subdomains() {
		m.with(sub, func(s Store) { s.Compact() })
	}
}
