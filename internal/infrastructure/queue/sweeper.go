package queue

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/exposehub/expose-gateway/internal/api/metrics"
	"github.com/exposehub/expose-gateway/internal/core/ports"
)

// Sweeper periodically removes records whose heartbeat is long past dead.
// It is deliberately decoupled from any request path: a failed forward never
// evicts a record, only the sweep (or an explicit deregistration) does.
// Disabled unless wired in by config.
type Sweeper struct {
	repo     ports.InstanceRepository
	interval time.Duration
	after    time.Duration
	log      zerolog.Logger
}

const (
	defaultSweepInterval = 10 * time.Minute
	defaultSweepAfter    = 24 * time.Hour
)

func NewSweeper(repo ports.InstanceRepository, interval, after time.Duration, log zerolog.Logger) *Sweeper {
	// A zero interval would panic the ticker in Start.
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	if after <= 0 {
		after = defaultSweepAfter
	}
	return &Sweeper{repo: repo, interval: interval, after: after, log: log}
}

// Start runs the sweep loop until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep(ctx)
			}
		}
	}()
}

func (s *Sweeper) sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.after)
	removed, err := s.repo.DeleteHeartbeatedBefore(ctx, cutoff)
	if err != nil {
		s.log.Error().Err(err).Msg("sweep failed")
		return
	}
	if removed > 0 {
		metrics.InstancesSweptTotal.Add(float64(removed))
		s.log.Info().Int64("removed", removed).Time("cutoff", cutoff).Msg("swept stale instances")
	}
}
