package broker

import "sort"

// MemStore is an in-memory, single-tenant Store. It performs no
// internal locking: the Manager serializes every call to one tenant's
// Store through a per-tenant mutex, so MemStore can stay a plain data
// structure.
type MemStore struct {
	queue         []QueuedAction
	eventsBySlug  map[string][]TriggerEvent
	fieldOptions  map[string][]FieldOption
	history       []ActionHistoryEntry
	subscriptions map[string]TriggerSubscription // key: slug + "\x00" + identity
	rateWindow    []int64                        // millisecond timestamps, oldest first
}

// NewMemStore creates an empty in-memory per-tenant Store.
func NewMemStore() *MemStore {
	return &MemStore{
		eventsBySlug:  make(map[string][]TriggerEvent),
		fieldOptions:  make(map[string][]FieldOption),
		subscriptions: make(map[string]TriggerSubscription),
	}
}

func (s *MemStore) PushQueuedAction(a QueuedAction) (QueuedAction, bool) {
	for _, existing := range s.queue {
		if a.IftttRequestID != "" && existing.IftttRequestID == a.IftttRequestID {
			return existing, true
		}
	}

	s.queue = append(s.queue, a)
	if len(s.queue) > MaxQueuedActions {
		s.queue = s.queue[len(s.queue)-MaxQueuedActions:]
	}
	return a, false
}

func (s *MemStore) PendingQueuedActions() []QueuedAction {
	s.purgeQueue()
	out := make([]QueuedAction, len(s.queue))
	copy(out, s.queue)
	return out
}

func (s *MemStore) AckQueuedAction(id string) {
	for i, a := range s.queue {
		if a.ID == id {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return
		}
	}
}

func (s *MemStore) purgeQueue() {
	cutoff := nowFunc().Add(-QueuedActionTTL)
	kept := s.queue[:0]
	for _, a := range s.queue {
		if a.QueuedAt.After(cutoff) {
			kept = append(kept, a)
		}
	}
	s.queue = kept
}

func (s *MemStore) PushTriggerEvent(e TriggerEvent) {
	events := append(s.eventsBySlug[e.TriggerSlug], e)
	if len(events) > MaxEventsPerSlug {
		events = events[len(events)-MaxEventsPerSlug:]
	}
	s.eventsBySlug[e.TriggerSlug] = events
}

func (s *MemStore) TriggerEvents(slug string, limit int) []TriggerEvent {
	s.purgeTriggers(slug)
	events := append([]TriggerEvent(nil), s.eventsBySlug[slug]...)
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.After(events[j].Timestamp)
	})
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events
}

func (s *MemStore) purgeTriggers(slug string) {
	cutoff := nowFunc().Add(-TriggerTTL)
	kept := s.eventsBySlug[slug][:0]
	for _, e := range s.eventsBySlug[slug] {
		if e.Timestamp.After(cutoff) {
			kept = append(kept, e)
		}
	}
	s.eventsBySlug[slug] = kept
}

func (s *MemStore) TriggerHistory() []TriggerEvent {
	var all []TriggerEvent
	for _, events := range s.eventsBySlug {
		all = append(all, events...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Timestamp.After(all[j].Timestamp)
	})
	if len(all) > 100 {
		all = all[:100]
	}
	return all
}

func (s *MemStore) SetFieldOptions(fieldSlug string, opts []FieldOption) {
	s.fieldOptions[fieldSlug] = opts
}

func (s *MemStore) FieldOptions(fieldSlug string) []FieldOption {
	return s.fieldOptions[fieldSlug]
}

func (s *MemStore) PushHistory(h ActionHistoryEntry) {
	s.history = append(s.history, h)
	if len(s.history) > MaxHistoryEntries {
		s.history = s.history[len(s.history)-MaxHistoryEntries:]
	}
}

func (s *MemStore) History() []ActionHistoryEntry {
	s.purgeHistory()
	out := append([]ActionHistoryEntry(nil), s.history...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ExecutedAt.After(out[j].ExecutedAt)
	})
	return out
}

func (s *MemStore) purgeHistory() {
	cutoff := nowFunc().Add(-HistoryTTL)
	kept := s.history[:0]
	for _, h := range s.history {
		if h.ExecutedAt.After(cutoff) {
			kept = append(kept, h)
		}
	}
	s.history = kept
}

func subscriptionKey(slug, identity string) string {
	return slug + "\x00" + identity
}

func (s *MemStore) SetSubscription(sub TriggerSubscription) {
	s.subscriptions[subscriptionKey(sub.TriggerSlug, sub.TriggerIdentity)] = sub
}

func (s *MemStore) ListSubscriptions() []TriggerSubscription {
	out := make([]TriggerSubscription, 0, len(s.subscriptions))
	for _, sub := range s.subscriptions {
		out = append(out, sub)
	}
	return out
}

func (s *MemStore) DeleteSubscription(slug, identity string) {
	delete(s.subscriptions, subscriptionKey(slug, identity))
}

// CheckRateLimit implements the sliding-window check: trims timestamps
// older than RateLimitWindow, then allows iff fewer than RateLimitMax
// remain, recording now on success.
func (s *MemStore) CheckRateLimit(now int64) (allowed bool, current int, retryAfter int64) {
	cutoff := now - RateLimitWindow.Milliseconds()
	kept := s.rateWindow[:0]
	for _, ts := range s.rateWindow {
		if ts > cutoff {
			kept = append(kept, ts)
		}
	}
	s.rateWindow = kept

	if len(s.rateWindow) >= RateLimitMax {
		oldest := s.rateWindow[0]
		retryAfter = (oldest + RateLimitWindow.Milliseconds()) - now
		if retryAfter < 0 {
			retryAfter = 0
		}
		return false, len(s.rateWindow), retryAfter
	}

	s.rateWindow = append(s.rateWindow, now)
	return true, len(s.rateWindow), 0
}

func (s *MemStore) Compact() {
	s.purgeQueue()
	for slug := range s.eventsBySlug {
		s.purgeTriggers(slug)
	}
	s.purgeHistory()
	cutoff := nowFunc().Add(-RateLimitWindow).UnixMilli()
	kept := s.rateWindow[:0]
	for _, ts := range s.rateWindow {
		if ts > cutoff {
			kept = append(kept, ts)
		}
	}
	s.rateWindow = kept
}

var _ Store = (*MemStore)(nil)
