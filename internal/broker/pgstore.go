package broker

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// PgStore is the Postgres-backed, single-tenant Store. Every query is
// scoped by subdomain; the Manager still serializes calls per tenant,
// so PgStore does not need its own locking, only its own connection
// pool access.
type PgStore struct {
	pool      *pgxpool.Pool
	subdomain string
}

// NewPgStore returns a Store scoped to one tenant's rows.
func NewPgStore(pool *pgxpool.Pool, subdomain string) *PgStore {
	return &PgStore{pool: pool, subdomain: subdomain}
}

// MigrateBrokerTables creates the broker's tables if they do not
// already exist. Kept separate from internal/store's Migrate so the
// control-plane and broker schemas can evolve independently.
func MigrateBrokerTables(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS broker_queued_action (
			id               TEXT PRIMARY KEY,
			subdomain        TEXT NOT NULL,
			action_slug      TEXT NOT NULL,
			fields           JSONB NOT NULL,
			queued_at        TIMESTAMPTZ NOT NULL,
			ifttt_request_id TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS broker_queued_action_sub_idx ON broker_queued_action (subdomain, queued_at);

		CREATE TABLE IF NOT EXISTS broker_trigger_event (
			id           TEXT PRIMARY KEY,
			subdomain    TEXT NOT NULL,
			trigger_slug TEXT NOT NULL,
			ts           TIMESTAMPTZ NOT NULL,
			data         JSONB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS broker_trigger_event_sub_slug_idx ON broker_trigger_event (subdomain, trigger_slug, ts DESC);

		CREATE TABLE IF NOT EXISTS broker_field_options (
			subdomain   TEXT NOT NULL,
			field_slug  TEXT NOT NULL,
			options     JSONB NOT NULL,
			updated_at  TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (subdomain, field_slug)
		);

		CREATE TABLE IF NOT EXISTS broker_history (
			id          TEXT PRIMARY KEY,
			subdomain   TEXT NOT NULL,
			action_slug TEXT NOT NULL,
			fields      JSONB NOT NULL,
			queued_at   TIMESTAMPTZ,
			executed_at TIMESTAMPTZ NOT NULL,
			success     BOOLEAN NOT NULL,
			error       TEXT NOT NULL DEFAULT '',
			proxy_error TEXT NOT NULL DEFAULT '',
			was_queued  BOOLEAN NOT NULL
		);
		CREATE INDEX IF NOT EXISTS broker_history_sub_idx ON broker_history (subdomain, executed_at);

		CREATE TABLE IF NOT EXISTS broker_subscription (
			subdomain        TEXT NOT NULL,
			trigger_slug     TEXT NOT NULL,
			trigger_identity TEXT NOT NULL,
			fields           JSONB NOT NULL,
			subscribed_at    TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (subdomain, trigger_slug, trigger_identity)
		);

		CREATE TABLE IF NOT EXISTS broker_rate_window (
			subdomain TEXT NOT NULL,
			ts_ms     BIGINT NOT NULL,
			PRIMARY KEY (subdomain, ts_ms)
		);
	`)
	return err
}

func (s *PgStore) PushQueuedAction(a QueuedAction) (QueuedAction, bool) {
	ctx := context.Background()

	if a.IftttRequestID != "" {
		row := s.pool.QueryRow(ctx, `
			SELECT id, action_slug, fields, queued_at, ifttt_request_id
			FROM broker_queued_action
			WHERE subdomain = $1 AND ifttt_request_id = $2
			LIMIT 1
		`, s.subdomain, a.IftttRequestID)

		var existing QueuedAction
		var fieldsJSON []byte
		if err := row.Scan(&existing.ID, &existing.ActionSlug, &fieldsJSON, &existing.QueuedAt, &existing.IftttRequestID); err == nil {
			_ = json.Unmarshal(fieldsJSON, &existing.Fields)
			return existing, true
		}
	}

	fieldsJSON, err := json.Marshal(a.Fields)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal queued action fields")
		return a, false
	}
	if _, err := s.pool.Exec(ctx, `
		INSERT INTO broker_queued_action (id, subdomain, action_slug, fields, queued_at, ifttt_request_id)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, a.ID, s.subdomain, a.ActionSlug, fieldsJSON, a.QueuedAt, a.IftttRequestID); err != nil {
		log.Error().Err(err).Str("subdomain", s.subdomain).Msg("failed to insert queued action")
	}

	s.evictQueueOverflow(ctx)
	return a, false
}

func (s *PgStore) evictQueueOverflow(ctx context.Context) {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM broker_queued_action
		WHERE subdomain = $1 AND id NOT IN (
			SELECT id FROM broker_queued_action
			WHERE subdomain = $1
			ORDER BY queued_at DESC
			LIMIT $2
		)
	`, s.subdomain, MaxQueuedActions)
	if err != nil {
		log.Error().Err(err).Str("subdomain", s.subdomain).Msg("failed to evict overflow queued actions")
	}
}

func (s *PgStore) PendingQueuedActions() []QueuedAction {
	ctx := context.Background()
	s.purgeQueue(ctx)

	rows, err := s.pool.Query(ctx, `
		SELECT id, action_slug, fields, queued_at, ifttt_request_id
		FROM broker_queued_action WHERE subdomain = $1 ORDER BY queued_at ASC
	`, s.subdomain)
	if err != nil {
		log.Error().Err(err).Str("subdomain", s.subdomain).Msg("failed to list pending queued actions")
		return nil
	}
	defer rows.Close()

	var out []QueuedAction
	for rows.Next() {
		var a QueuedAction
		var fieldsJSON []byte
		if err := rows.Scan(&a.ID, &a.ActionSlug, &fieldsJSON, &a.QueuedAt, &a.IftttRequestID); err != nil {
			continue
		}
		_ = json.Unmarshal(fieldsJSON, &a.Fields)
		out = append(out, a)
	}
	return out
}

func (s *PgStore) purgeQueue(ctx context.Context) {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM broker_queued_action WHERE subdomain = $1 AND queued_at < now() - $2::interval
	`, s.subdomain, QueuedActionTTL.String())
	if err != nil {
		log.Error().Err(err).Str("subdomain", s.subdomain).Msg("failed to purge expired queued actions")
	}
}

func (s *PgStore) AckQueuedAction(id string) {
	_, err := s.pool.Exec(context.Background(), `
		DELETE FROM broker_queued_action WHERE subdomain = $1 AND id = $2
	`, s.subdomain, id)
	if err != nil {
		log.Error().Err(err).Str("subdomain", s.subdomain).Msg("failed to ack queued action")
	}
}

func (s *PgStore) PushTriggerEvent(e TriggerEvent) {
	ctx := context.Background()
	dataJSON, err := json.Marshal(e.Data)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal trigger event data")
		return
	}
	if _, err := s.pool.Exec(ctx, `
		INSERT INTO broker_trigger_event (id, subdomain, trigger_slug, ts, data)
		VALUES ($1, $2, $3, $4, $5)
	`, e.ID, s.subdomain, e.TriggerSlug, e.Timestamp, dataJSON); err != nil {
		log.Error().Err(err).Str("subdomain", s.subdomain).Msg("failed to insert trigger event")
		return
	}

	if _, err := s.pool.Exec(ctx, `
		DELETE FROM broker_trigger_event
		WHERE subdomain = $1 AND trigger_slug = $2 AND id NOT IN (
			SELECT id FROM broker_trigger_event
			WHERE subdomain = $1 AND trigger_slug = $2
			ORDER BY ts DESC
			LIMIT $3
		)
	`, s.subdomain, e.TriggerSlug, MaxEventsPerSlug); err != nil {
		log.Error().Err(err).Str("subdomain", s.subdomain).Msg("failed to evict overflow trigger events")
	}
}

func (s *PgStore) TriggerEvents(slug string, limit int) []TriggerEvent {
	ctx := context.Background()
	s.purgeTriggers(ctx, slug)

	if limit <= 0 || limit > MaxEventsPerSlug {
		limit = MaxEventsPerSlug
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, trigger_slug, ts, data FROM broker_trigger_event
		WHERE subdomain = $1 AND trigger_slug = $2
		ORDER BY ts DESC LIMIT $3
	`, s.subdomain, slug, limit)
	if err != nil {
		log.Error().Err(err).Str("subdomain", s.subdomain).Msg("failed to query trigger events")
		return nil
	}
	defer rows.Close()

	return scanTriggerEvents(rows)
}

func (s *PgStore) purgeTriggers(ctx context.Context, slug string) {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM broker_trigger_event WHERE subdomain = $1 AND trigger_slug = $2 AND ts < now() - $3::interval
	`, s.subdomain, slug, TriggerTTL.String())
	if err != nil {
		log.Error().Err(err).Str("subdomain", s.subdomain).Msg("failed to purge expired trigger events")
	}
}

func (s *PgStore) TriggerHistory() []TriggerEvent {
	rows, err := s.pool.Query(context.Background(), `
		SELECT id, trigger_slug, ts, data FROM broker_trigger_event
		WHERE subdomain = $1 ORDER BY ts DESC LIMIT 100
	`, s.subdomain)
	if err != nil {
		log.Error().Err(err).Str("subdomain", s.subdomain).Msg("failed to query trigger history")
		return nil
	}
	defer rows.Close()
	return scanTriggerEvents(rows)
}

type triggerEventRows interface {
	Next() bool
	Scan(dest ...any) error
}

func scanTriggerEvents(rows triggerEventRows) []TriggerEvent {
	var out []TriggerEvent
	for rows.Next() {
		var e TriggerEvent
		var dataJSON []byte
		if err := rows.Scan(&e.ID, &e.TriggerSlug, &e.Timestamp, &dataJSON); err != nil {
			continue
		}
		_ = json.Unmarshal(dataJSON, &e.Data)
		out = append(out, e)
	}
	return out
}

func (s *PgStore) SetFieldOptions(fieldSlug string, opts []FieldOption) {
	optsJSON, err := json.Marshal(opts)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal field options")
		return
	}
	if _, err := s.pool.Exec(context.Background(), `
		INSERT INTO broker_field_options (subdomain, field_slug, options, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (subdomain, field_slug) DO UPDATE SET options = EXCLUDED.options, updated_at = now()
	`, s.subdomain, fieldSlug, optsJSON); err != nil {
		log.Error().Err(err).Str("subdomain", s.subdomain).Msg("failed to store field options")
	}
}

func (s *PgStore) FieldOptions(fieldSlug string) []FieldOption {
	row := s.pool.QueryRow(context.Background(), `
		SELECT options FROM broker_field_options WHERE subdomain = $1 AND field_slug = $2
	`, s.subdomain, fieldSlug)

	var optsJSON []byte
	if err := row.Scan(&optsJSON); err != nil {
		return nil
	}
	var opts []FieldOption
	_ = json.Unmarshal(optsJSON, &opts)
	return opts
}

func (s *PgStore) PushHistory(h ActionHistoryEntry) {
	ctx := context.Background()
	fieldsJSON, err := json.Marshal(h.Fields)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal history fields")
		return
	}
	if _, err := s.pool.Exec(ctx, `
		INSERT INTO broker_history (id, subdomain, action_slug, fields, queued_at, executed_at, success, error, proxy_error, was_queued)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, h.ID, s.subdomain, h.ActionSlug, fieldsJSON, h.QueuedAt, h.ExecutedAt, h.Success, h.Error, h.ProxyError, h.WasQueued); err != nil {
		log.Error().Err(err).Str("subdomain", s.subdomain).Msg("failed to insert history entry")
		return
	}

	if _, err := s.pool.Exec(ctx, `
		DELETE FROM broker_history
		WHERE subdomain = $1 AND id NOT IN (
			SELECT id FROM broker_history WHERE subdomain = $1 ORDER BY executed_at DESC LIMIT $2
		)
	`, s.subdomain, MaxHistoryEntries); err != nil {
		log.Error().Err(err).Str("subdomain", s.subdomain).Msg("failed to evict overflow history")
	}
}

func (s *PgStore) History() []ActionHistoryEntry {
	ctx := context.Background()
	s.purgeHistory(ctx)

	rows, err := s.pool.Query(ctx, `
		SELECT id, action_slug, fields, queued_at, executed_at, success, error, proxy_error, was_queued
		FROM broker_history WHERE subdomain = $1 ORDER BY executed_at DESC
	`, s.subdomain)
	if err != nil {
		log.Error().Err(err).Str("subdomain", s.subdomain).Msg("failed to query history")
		return nil
	}
	defer rows.Close()

	var out []ActionHistoryEntry
	for rows.Next() {
		var h ActionHistoryEntry
		var fieldsJSON []byte
		if err := rows.Scan(&h.ID, &h.ActionSlug, &fieldsJSON, &h.QueuedAt, &h.ExecutedAt, &h.Success, &h.Error, &h.ProxyError, &h.WasQueued); err != nil {
			continue
		}
		_ = json.Unmarshal(fieldsJSON, &h.Fields)
		out = append(out, h)
	}
	return out
}

func (s *PgStore) purgeHistory(ctx context.Context) {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM broker_history WHERE subdomain = $1 AND executed_at < now() - $2::interval
	`, s.subdomain, HistoryTTL.String())
	if err != nil {
		log.Error().Err(err).Str("subdomain", s.subdomain).Msg("failed to purge expired history")
	}
}

func (s *PgStore) SetSubscription(sub TriggerSubscription) {
	fieldsJSON, err := json.Marshal(sub.Fields)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal subscription fields")
		return
	}
	if _, err := s.pool.Exec(context.Background(), `
		INSERT INTO broker_subscription (subdomain, trigger_slug, trigger_identity, fields, subscribed_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (subdomain, trigger_slug, trigger_identity)
		DO UPDATE SET fields = EXCLUDED.fields, subscribed_at = EXCLUDED.subscribed_at
	`, s.subdomain, sub.TriggerSlug, sub.TriggerIdentity, fieldsJSON, sub.SubscribedAt); err != nil {
		log.Error().Err(err).Str("subdomain", s.subdomain).Msg("failed to upsert subscription")
	}
}

func (s *PgStore) ListSubscriptions() []TriggerSubscription {
	rows, err := s.pool.Query(context.Background(), `
		SELECT trigger_slug, trigger_identity, fields, subscribed_at
		FROM broker_subscription WHERE subdomain = $1
	`, s.subdomain)
	if err != nil {
		log.Error().Err(err).Str("subdomain", s.subdomain).Msg("failed to list subscriptions")
		return nil
	}
	defer rows.Close()

	var out []TriggerSubscription
	for rows.Next() {
		var sub TriggerSubscription
		var fieldsJSON []byte
		if err := rows.Scan(&sub.TriggerSlug, &sub.TriggerIdentity, &fieldsJSON, &sub.SubscribedAt); err != nil {
			continue
		}
		_ = json.Unmarshal(fieldsJSON, &sub.Fields)
		out = append(out, sub)
	}
	return out
}

func (s *PgStore) DeleteSubscription(slug, identity string) {
	_, err := s.pool.Exec(context.Background(), `
		DELETE FROM broker_subscription WHERE subdomain = $1 AND trigger_slug = $2 AND trigger_identity = $3
	`, s.subdomain, slug, identity)
	if err != nil {
		log.Error().Err(err).Str("subdomain", s.subdomain).Msg("failed to delete subscription")
	}
}

func (s *PgStore) CheckRateLimit(now int64) (allowed bool, current int, retryAfter int64) {
	ctx := context.Background()
	cutoff := now - RateLimitWindow.Milliseconds()

	if _, err := s.pool.Exec(ctx, `DELETE FROM broker_rate_window WHERE subdomain = $1 AND ts_ms <= $2`, s.subdomain, cutoff); err != nil {
		log.Error().Err(err).Str("subdomain", s.subdomain).Msg("failed to trim rate window")
	}

	row := s.pool.QueryRow(ctx, `SELECT count(*), coalesce(min(ts_ms), 0) FROM broker_rate_window WHERE subdomain = $1`, s.subdomain)
	var count int
	var oldest int64
	if err := row.Scan(&count, &oldest); err != nil {
		log.Error().Err(err).Str("subdomain", s.subdomain).Msg("failed to count rate window")
		return true, 0, 0
	}

	if count >= RateLimitMax {
		retryAfter = (oldest + RateLimitWindow.Milliseconds()) - now
		if retryAfter < 0 {
			retryAfter = 0
		}
		return false, count, retryAfter
	}

	if _, err := s.pool.Exec(ctx, `INSERT INTO broker_rate_window (subdomain, ts_ms) VALUES ($1, $2)`, s.subdomain, now); err != nil {
		log.Error().Err(err).Str("subdomain", s.subdomain).Msg("failed to record rate window entry")
	}
	return true, count + 1, 0
}

func (s *PgStore) Compact() {
	ctx := context.Background()
	s.purgeQueue(ctx)
	s.purgeHistory(ctx)

	rows, err := s.pool.Query(ctx, `SELECT DISTINCT trigger_slug FROM broker_trigger_event WHERE subdomain = $1`, s.subdomain)
	if err != nil {
		log.Error().Err(err).Str("subdomain", s.subdomain).Msg("failed to list trigger slugs for compaction")
		return
	}
	var slugs []string
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err == nil {
			slugs = append(slugs, slug)
		}
	}
	rows.Close()
	sort.Strings(slugs)
	for _, slug := range slugs {
		s.purgeTriggers(ctx, slug)
	}

	cutoff := nowFunc().Add(-RateLimitWindow).UnixMilli()
	if _, err := s.pool.Exec(ctx, `DELETE FROM broker_rate_window WHERE subdomain = $1 AND ts_ms <= $2`, s.subdomain, cutoff); err != nil {
		log.Error().Err(err).Str("subdomain", s.subdomain).Msg("failed to trim rate window during compaction")
	}
}

var _ Store = (*PgStore)(nil)
