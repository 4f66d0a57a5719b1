// Package broker implements the per-tenant, single-writer actor that
// owns a subdomain's queued actions, trigger events, field-option
// cache, action history, trigger subscriptions, and rate-limit window.
// Nothing in this package is shared across tenants.
package broker

import "time"

// Capacity caps and TTLs, tunable but fixed at these values for now.
const (
	MaxQueuedActions  = 100
	QueuedActionTTL   = 7 * 24 * time.Hour
	MaxEventsPerSlug  = 200
	TriggerTTL        = 30 * 24 * time.Hour
	MaxHistoryEntries = 50
	HistoryTTL        = 30 * 24 * time.Hour
	RateLimitMax      = 15
	RateLimitWindow   = 60 * time.Second
	CompactionPeriod  = 6 * time.Hour
)

// QueuedAction is an action forwarded to the origin tunnel that could
// not be delivered immediately and must be replayed later.
type QueuedAction struct {
	ID             string
	ActionSlug     string
	Fields         map[string]string
	QueuedAt       time.Time
	IftttRequestID string
}

// TriggerEvent is one occurrence pushed by the tenant's desktop client
// for a given trigger slug.
type TriggerEvent struct {
	ID          string
	TriggerSlug string
	Timestamp   time.Time
	Data        map[string]string
}

// FieldOption is one dropdown entry IFTTT shows for a dynamic field.
type FieldOption struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// CachedFieldOptions is the last-known set of options for one field
// slug, overwritten wholesale on every push.
type CachedFieldOptions struct {
	Options   []FieldOption
	UpdatedAt time.Time
}

// ActionHistoryEntry records the outcome of one action attempt, queued
// or direct, for the tenant admin UI's diagnostics view.
type ActionHistoryEntry struct {
	ID         string
	ActionSlug string
	Fields     map[string]string
	QueuedAt   *time.Time
	ExecutedAt time.Time
	Success    bool
	Error      string
	ProxyError string
	WasQueued  bool
}

// TriggerSubscription tracks one (slug, trigger_identity) pair IFTTT
// has registered interest in, so the broker knows which triggers are
// still being polled.
type TriggerSubscription struct {
	TriggerIdentity string
	TriggerSlug     string
	Fields          map[string]string
	SubscribedAt    time.Time
}
