package broker

// Store is the durable state one tenant's Broker operates on. A
// MemStore instance backs tests and local dev; PgStore backs
// production. Every method operates on a single tenant — the Manager
// in broker.go is what maps subdomains to Store instances and
// serializes access to each.
type Store interface {
	// PushQueuedAction inserts a, evicting the oldest entry if the
	// tenant is already at MaxQueuedActions. If an existing entry
	// shares a.IftttRequestID, the existing entry is returned unchanged
	// with dup=true and a is not inserted.
	PushQueuedAction(a QueuedAction) (existing QueuedAction, dup bool)
	// PendingQueuedActions purges entries older than QueuedActionTTL
	// and returns the remainder, FIFO by QueuedAt.
	PendingQueuedActions() []QueuedAction
	// AckQueuedAction removes the entry with the given id, if present.
	// Removing an unknown id is not an error.
	AckQueuedAction(id string)

	// PushTriggerEvent inserts e, evicting the oldest event for that
	// slug if already at MaxEventsPerSlug.
	PushTriggerEvent(e TriggerEvent)
	// TriggerEvents purges entries older than TriggerTTL for slug and
	// returns up to limit remaining events (all of them when limit <= 0),
	// descending by Timestamp. MemStore keeps events with equal
	// timestamps in insertion order; PgStore leaves their order undefined.
	TriggerEvents(slug string, limit int) []TriggerEvent
	// TriggerHistory returns up to 100 most recent events across every
	// slug, descending by Timestamp.
	TriggerHistory() []TriggerEvent

	// SetFieldOptions overwrites the cached options for fieldSlug.
	SetFieldOptions(fieldSlug string, opts []FieldOption)
	// FieldOptions returns the cached options for fieldSlug, or nil if
	// none have been pushed.
	FieldOptions(fieldSlug string) []FieldOption

	// PushHistory inserts h, evicting the oldest entry if already at
	// MaxHistoryEntries.
	PushHistory(h ActionHistoryEntry)
	// History purges entries older than HistoryTTL and returns the
	// remainder, descending by ExecutedAt.
	History() []ActionHistoryEntry

	// SetSubscription upserts a subscription keyed by (slug, identity).
	SetSubscription(s TriggerSubscription)
	// ListSubscriptions returns every subscription for the tenant.
	ListSubscriptions() []TriggerSubscription
	// DeleteSubscription removes the subscription for (slug, identity),
	// if present.
	DeleteSubscription(slug, identity string)

	// CheckRateLimit atomically evaluates and, if allowed, records a
	// new rate-limit timestamp at now. allowed is false once current
	// reaches RateLimitMax within the trailing RateLimitWindow; in that
	// case retryAfter is the duration until the oldest timestamp in the
	// window ages out.
	CheckRateLimit(now int64) (allowed bool, current int, retryAfter int64)

	// Compact purges every expired entry across all collections and
	// trims the rate-limit window. Called by the Manager's periodic
	// compaction sweep, and safe to call redundantly from any read
	// path that already purges its own collection.
	Compact()
}
