package queue

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"time"

	"github.com/rs/zerolog"

	"github.com/exposehub/expose-gateway/internal/api/metrics"
	"github.com/exposehub/expose-gateway/internal/core/domain"
)

const (
	defaultWorkers = 4
	channelBuffer  = 128
)

// RefreshJob asks the refresher to re-mirror the named snapshot kinds for one
// username. Heartbeats enqueue these when they name kinds without carrying
// payloads.
type RefreshJob struct {
	Username string
	Kinds    []string
}

// Resolver resolves a username to its registry record.
type Resolver interface {
	Lookup(ctx context.Context, username string) (*domain.Instance, error)
}

// SnapshotSyncer fetches and persists one snapshot kind (the snapshot cache).
type SnapshotSyncer interface {
	Fetch(ctx context.Context, inst *domain.Instance, kind string) (json.RawMessage, bool, time.Time)
}

// Refresher routes snapshot refresh jobs to a fixed set of workers using
// consistent hashing on the username, so refreshes for one instance never
// interleave while unrelated instances proceed in parallel.
type Refresher struct {
	workers []chan RefreshJob
	resolve Resolver
	cache   SnapshotSyncer
	log     zerolog.Logger
}

// NewRefresher creates a Refresher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewRefresher(numWorkers int, resolve Resolver, cache SnapshotSyncer, log zerolog.Logger) *Refresher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	r := &Refresher{
		workers: make([]chan RefreshJob, numWorkers),
		resolve: resolve,
		cache:   cache,
		log:     log,
	}
	for i := range r.workers {
		r.workers[i] = make(chan RefreshJob, channelBuffer)
	}
	return r
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled.
func (r *Refresher) Start(ctx context.Context) {
	for i, ch := range r.workers {
		go r.runWorker(ctx, i, ch)
	}
}

// Enqueue sends a job to the worker responsible for its username.
// Non-blocking up to channelBuffer capacity.
func (r *Refresher) Enqueue(job RefreshJob) {
	r.workers[r.shardIndex(job.Username)] <- job
}

// shardIndex maps a username deterministically to a worker index.
func (r *Refresher) shardIndex(username string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(username))
	return int(h.Sum32()) % len(r.workers)
}

func (r *Refresher) runWorker(ctx context.Context, id int, ch <-chan RefreshJob) {
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-ch:
			if !ok {
				return
			}
			r.process(ctx, id, job)
		}
	}
}

func (r *Refresher) process(ctx context.Context, id int, job RefreshJob) {
	inst, err := r.resolve.Lookup(ctx, job.Username)
	if err != nil {
		// The record may have been deregistered since the job was enqueued.
		r.log.Debug().Err(err).Str("username", job.Username).Int("worker_id", id).Msg("refresh skipped")
		return
	}

	for _, kind := range job.Kinds {
		if !domain.KnownSnapshotKind(kind) {
			continue
		}
		if _, fresh, _ := r.cache.Fetch(ctx, inst, kind); fresh {
			metrics.SnapshotRefreshTotal.WithLabelValues("ok").Inc()
		} else {
			metrics.SnapshotRefreshTotal.WithLabelValues("error").Inc()
			r.log.Warn().
				Str("username", job.Username).
				Str("kind", kind).
				Int("worker_id", id).
				Msg("snapshot refresh failed")
		}
	}
}
