package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/exposehub/expose-gateway/internal/api/metrics"
	"github.com/exposehub/expose-gateway/internal/core/domain"
	"github.com/exposehub/expose-gateway/internal/core/ports"
)

// placeholderDoc is served when a backend is unreachable and no snapshot has
// ever been cached. It signals "no data available", not an error.
var placeholderDoc = json.RawMessage(`{"status":"unavailable"}`)

// SnapshotCache mirrors backend-exposed read views into the registry record,
// realizing stale-while-revalidate degradation: a fetch failure falls back to
// the stored snapshot (or a placeholder) and is never propagated to the
// caller.
type SnapshotCache struct {
	fetcher ports.SnapshotFetcher
	repo    ports.InstanceRepository
	log     zerolog.Logger
}

func NewSnapshotCache(fetcher ports.SnapshotFetcher, repo ports.InstanceRepository, log zerolog.Logger) *SnapshotCache {
	return &SnapshotCache{fetcher: fetcher, repo: repo, log: log}
}

// Fetch attempts a live read of kind from the instance's backend. On success
// the document is persisted into the record and returned with fresh=true. On
// any transport failure the cached copy (or placeholder) is returned with
// fresh=false.
func (c *SnapshotCache) Fetch(ctx context.Context, inst *domain.Instance, kind string) (json.RawMessage, bool, time.Time) {
	data, err := c.fetcher.Fetch(ctx, inst, kind)
	if err != nil {
		c.log.Debug().Err(err).Str("username", inst.Username).Str("kind", kind).Msg("snapshot fetch failed, serving cached")
		return c.Cached(inst, kind)
	}

	now := time.Now().UTC()
	if err := c.repo.UpdateSnapshot(ctx, inst.Username, kind, data, now); err != nil {
		// The fresh document is still valid for this response; only the
		// mirror write is lost.
		c.log.Warn().Err(err).Str("username", inst.Username).Str("kind", kind).Msg("snapshot persist failed")
	}

	metrics.SnapshotServesTotal.WithLabelValues(kind, "fresh").Inc()
	return data, true, now
}

// Cached returns the stored snapshot for kind without touching the network,
// or the placeholder when none has ever been synced.
func (c *SnapshotCache) Cached(inst *domain.Instance, kind string) (json.RawMessage, bool, time.Time) {
	if snap, ok := inst.Snapshots[kind]; ok {
		metrics.SnapshotServesTotal.WithLabelValues(kind, "stale").Inc()
		return snap.Data, false, snap.LastSync
	}
	metrics.SnapshotServesTotal.WithLabelValues(kind, "placeholder").Inc()
	return placeholderDoc, false, time.Time{}
}
