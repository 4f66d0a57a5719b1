package broker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// RunCompaction blocks, running Store.Compact across every known
// tenant every CompactionPeriod, until ctx is cancelled. This stands in
// for the self-refreshing per-tenant alarm spec.md describes: one
// process-wide ticker sweeping every tenant is equivalent in effect and
// far simpler to run outside a durable-object runtime.
func (m *Manager) RunCompaction(ctx context.Context) {
	ticker := time.NewTicker(CompactionPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			start := nowFunc()
			m.CompactAll()
			log.Debug().
				Int("tenants", len(m.Subdomains())).
				Dur("elapsed", nowFunc().Sub(start)).
				Msg("broker compaction sweep complete")
		}
	}
}
