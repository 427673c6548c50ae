package ports

import (
	"context"
	"encoding/json"

	"github.com/exposehub/expose-gateway/internal/core/domain"
)

// RegisterInput carries all data needed to register (or re-register) an
// instance under a public username.
type RegisterInput struct {
	OwnerID          string
	Username         string
	Endpoint         string
	InitialSnapshots map[string]json.RawMessage // optional
}

// InstanceSummary is the public listing view. It never carries the token.
type InstanceSummary struct {
	Username string `json:"username"`
	Endpoint string `json:"endpoint"`
}

// RegistryService defines use-case operations on the instance registry.
type RegistryService interface {
	// Register upserts by username: on create it generates a fresh unique
	// token; on update it preserves the existing token and owner and
	// overwrites the endpoint, refreshing last_heartbeat.
	Register(ctx context.Context, input RegisterInput) (*domain.Instance, error)

	// Heartbeat refreshes last_heartbeat for the token's record and applies
	// any snapshot updates supplied inline.
	Heartbeat(ctx context.Context, token string, snapshots map[string]json.RawMessage) (*domain.Instance, error)

	// Deregister removes the record. Only the holder of the secret token may
	// deregister; there is no username-based removal.
	Deregister(ctx context.Context, token string) error

	// Lookup resolves a public username to its registry record.
	Lookup(ctx context.Context, username string) (*domain.Instance, error)

	// ListOnline returns the currently-online instances.
	ListOnline(ctx context.Context) ([]InstanceSummary, error)

	// ListByOwner returns all instances registered by an operator, including
	// their tokens (the owner already holds them).
	ListByOwner(ctx context.Context, ownerID string) ([]*domain.Instance, error)
}
