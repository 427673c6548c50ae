package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/exposehub/expose-gateway/internal/api/metrics"
	"github.com/exposehub/expose-gateway/internal/core/domain"
	"github.com/exposehub/expose-gateway/internal/core/ports"
)

// InstanceCache abstracts the read-through lookup cache (Redis) sitting in
// front of the durable store on the hot proxy path. A miss is (nil, nil).
type InstanceCache interface {
	Get(ctx context.Context, username string) (*domain.Instance, error)
	Set(ctx context.Context, inst *domain.Instance) error
	Invalidate(ctx context.Context, username string) error
}

// RegistryService implements ports.RegistryService on top of the durable
// instance repository. It is constructed once at startup and passed by
// reference into the handlers; there is no ambient global registry state.
type RegistryService struct {
	repo  ports.InstanceRepository
	cache InstanceCache
	ttl   time.Duration
	log   zerolog.Logger
}

func NewRegistryService(repo ports.InstanceRepository, cache InstanceCache, ttl time.Duration, log zerolog.Logger) *RegistryService {
	if ttl <= 0 {
		ttl = domain.DefaultLivenessTTL
	}
	return &RegistryService{repo: repo, cache: cache, ttl: ttl, log: log}
}

// Register upserts by username. On create a fresh unique token is generated;
// on update the existing token and owner are preserved and only the endpoint
// and last_heartbeat change.
func (s *RegistryService) Register(ctx context.Context, input ports.RegisterInput) (*domain.Instance, error) {
	if input.OwnerID == "" || input.Username == "" || input.Endpoint == "" {
		return nil, fmt.Errorf("register: %w", domain.ErrValidation)
	}
	if err := validateSnapshotKinds(input.InitialSnapshots); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	now := time.Now().UTC()

	existing, err := s.repo.FindByUsername(ctx, input.Username)
	switch {
	case err == nil && existing != nil:
		updated, err := s.repo.UpdateEndpoint(ctx, input.Username, input.Endpoint, now)
		if err != nil {
			return nil, fmt.Errorf("register: update endpoint: %w", err)
		}
		s.invalidate(ctx, input.Username)
		s.log.Info().Str("username", input.Username).Str("endpoint", input.Endpoint).Msg("instance re-registered")
		metrics.RegistrationsTotal.WithLabelValues("update").Inc()
		return updated, nil

	case isNotFound(err):
		inst := &domain.Instance{
			OwnerID:       input.OwnerID,
			Username:      input.Username,
			Endpoint:      input.Endpoint,
			Token:         uuid.NewString(),
			LastHeartbeat: now,
			CreatedAt:     now,
		}
		if len(input.InitialSnapshots) > 0 {
			inst.Snapshots = make(map[string]domain.Snapshot, len(input.InitialSnapshots))
			for kind, data := range input.InitialSnapshots {
				inst.Snapshots[kind] = domain.Snapshot{Data: data, LastSync: now}
			}
		}
		if err := s.repo.Create(ctx, inst); err != nil {
			return nil, fmt.Errorf("register: %w", err)
		}
		s.log.Info().Str("username", input.Username).Str("owner_id", input.OwnerID).Msg("instance registered")
		metrics.RegistrationsTotal.WithLabelValues("create").Inc()
		return inst, nil

	default:
		return nil, fmt.Errorf("register: %w", err)
	}
}

// Heartbeat refreshes last_heartbeat for the token's record and applies any
// inline snapshot updates. Unknown tokens leave the store unmodified.
func (s *RegistryService) Heartbeat(ctx context.Context, token string, snapshots map[string]json.RawMessage) (*domain.Instance, error) {
	if token == "" {
		return nil, fmt.Errorf("heartbeat: %w", domain.ErrInstanceNotFound)
	}
	if err := validateSnapshotKinds(snapshots); err != nil {
		return nil, fmt.Errorf("heartbeat: %w", err)
	}

	inst, err := s.repo.TouchHeartbeat(ctx, token, time.Now().UTC(), snapshots)
	if err != nil {
		return nil, fmt.Errorf("heartbeat: %w", err)
	}

	s.invalidate(ctx, inst.Username)
	metrics.HeartbeatsTotal.Inc()
	s.log.Debug().Str("username", inst.Username).Int("snapshots", len(snapshots)).Msg("heartbeat")
	return inst, nil
}

// Deregister removes the record identified by token.
func (s *RegistryService) Deregister(ctx context.Context, token string) error {
	inst, err := s.repo.FindByToken(ctx, token)
	if err != nil {
		return fmt.Errorf("deregister: %w", err)
	}

	ok, err := s.repo.DeleteByToken(ctx, token)
	if err != nil {
		return fmt.Errorf("deregister: %w", err)
	}
	if !ok {
		return fmt.Errorf("deregister: %w", domain.ErrInstanceNotFound)
	}

	s.invalidate(ctx, inst.Username)
	s.log.Info().Str("username", inst.Username).Msg("instance deregistered")
	return nil
}

// Lookup resolves a username, consulting the cache first. Cache failures are
// logged and fall through to the durable store.
func (s *RegistryService) Lookup(ctx context.Context, username string) (*domain.Instance, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, username)
		if err != nil {
			s.log.Warn().Err(err).Str("username", username).Msg("instance cache read failed")
		} else if cached != nil {
			return cached, nil
		}
	}

	inst, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, inst); err != nil {
			s.log.Warn().Err(err).Str("username", username).Msg("instance cache write failed")
		}
	}
	return inst, nil
}

// ListOnline returns the public summaries of currently-online instances.
func (s *RegistryService) ListOnline(ctx context.Context) ([]ports.InstanceSummary, error) {
	cutoff := time.Now().UTC().Add(-s.ttl)
	records, err := s.repo.ListHeartbeatedSince(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list online: %w", err)
	}

	summaries := make([]ports.InstanceSummary, 0, len(records))
	for _, r := range records {
		summaries = append(summaries, ports.InstanceSummary{Username: r.Username, Endpoint: r.Endpoint})
	}
	return summaries, nil
}

// ListByOwner returns an operator's own instances, tokens included.
func (s *RegistryService) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Instance, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

func (s *RegistryService) invalidate(ctx context.Context, username string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, username); err != nil {
		s.log.Warn().Err(err).Str("username", username).Msg("instance cache invalidation failed")
	}
}

func validateSnapshotKinds(snapshots map[string]json.RawMessage) error {
	for kind := range snapshots {
		if !domain.KnownSnapshotKind(kind) {
			return fmt.Errorf("%w: %q", domain.ErrUnknownSnapshotKind, kind)
		}
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrInstanceNotFound)
}
