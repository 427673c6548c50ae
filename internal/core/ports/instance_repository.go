package ports

import (
	"context"
	"encoding/json"
	"time"

	"github.com/exposehub/expose-gateway/internal/core/domain"
)

// InstanceRepository defines persistence operations for the registry record.
// All mutations are single-record writes with last-write-wins semantics;
// concurrent heartbeats or re-registrations for the same username may
// interleave and the store provides no versioning.
type InstanceRepository interface {
	Create(ctx context.Context, inst *domain.Instance) error
	FindByUsername(ctx context.Context, username string) (*domain.Instance, error)
	FindByToken(ctx context.Context, token string) (*domain.Instance, error)

	// UpdateEndpoint overwrites endpoint and refreshes last_heartbeat on the
	// record identified by username, preserving token and owner_id. Returns
	// the updated record.
	UpdateEndpoint(ctx context.Context, username, endpoint string, now time.Time) (*domain.Instance, error)

	// TouchHeartbeat sets last_heartbeat = now on the record identified by
	// token and overwrites each named snapshot (with last_sync = now). Fails
	// with domain.ErrInstanceNotFound without mutating when token is unknown.
	TouchHeartbeat(ctx context.Context, token string, now time.Time, snapshots map[string]json.RawMessage) (*domain.Instance, error)

	// UpdateSnapshot overwrites a single cached snapshot on the record
	// identified by username.
	UpdateSnapshot(ctx context.Context, username, kind string, data json.RawMessage, now time.Time) error

	// DeleteByToken removes the record; returns false when token is unknown.
	DeleteByToken(ctx context.Context, token string) (bool, error)

	// ListHeartbeatedSince returns records whose last_heartbeat is at or after
	// cutoff (the online set for cutoff = now - TTL).
	ListHeartbeatedSince(ctx context.Context, cutoff time.Time) ([]*domain.Instance, error)

	ListByOwner(ctx context.Context, ownerID string) ([]*domain.Instance, error)

	// DeleteHeartbeatedBefore removes records whose last_heartbeat is strictly
	// before cutoff. Used only by the periodic sweep, never by request paths.
	DeleteHeartbeatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
