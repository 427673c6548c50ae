package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/exposehub/expose-gateway/internal/api/metrics"
	"github.com/exposehub/expose-gateway/internal/core/domain"
	"github.com/exposehub/expose-gateway/internal/core/ports"
)

// Gateway composes the registry lookup, liveness check, access gate, and
// proxy forwarder (or snapshot cache) per inbound request. Liveness never
// deletes a record here: a failed forward leaves the registry untouched, and
// eviction happens only via token-authenticated deregistration or the
// decoupled sweep.
type Gateway struct {
	registry  ports.RegistryService
	forwarder ports.Forwarder
	snapshots *SnapshotCache
	gate      ports.AccessGate
	ttl       time.Duration
	log       zerolog.Logger
}

func NewGateway(
	registry ports.RegistryService,
	forwarder ports.Forwarder,
	snapshots *SnapshotCache,
	gate ports.AccessGate,
	ttl time.Duration,
	log zerolog.Logger,
) *Gateway {
	if ttl <= 0 {
		ttl = domain.DefaultLivenessTTL
	}
	return &Gateway{
		registry:  registry,
		forwarder: forwarder,
		snapshots: snapshots,
		gate:      gate,
		ttl:       ttl,
		log:       log,
	}
}

// Proxy forwards one opaque request to the backend registered under username.
// An offline instance is reported without any network attempt.
func (g *Gateway) Proxy(ctx context.Context, username, requester string, req *ports.ForwardRequest) (*ports.ForwardResult, error) {
	inst, err := g.registry.Lookup(ctx, username)
	if err != nil {
		metrics.ProxyRequestsTotal.WithLabelValues(lookupOutcome(err)).Inc()
		return nil, err
	}

	if !inst.Online(time.Now().UTC(), g.ttl) {
		metrics.ProxyRequestsTotal.WithLabelValues("offline").Inc()
		return nil, fmt.Errorf("proxy %s: %w", username, domain.ErrInstanceOffline)
	}

	if !g.gate.Allowed(ctx, inst, requester) {
		metrics.ProxyRequestsTotal.WithLabelValues("denied").Inc()
		return nil, fmt.Errorf("proxy %s: %w", username, domain.ErrAccessDenied)
	}

	result, err := g.forwarder.Forward(ctx, inst, req)
	if err != nil {
		metrics.ProxyRequestsTotal.WithLabelValues(upstreamOutcome(err)).Inc()
		return nil, err
	}

	metrics.ProxyRequestsTotal.WithLabelValues("forwarded").Inc()
	return result, nil
}

// View serves one cached read view. The access gate applies here exactly as
// on the proxy path: a denied requester gets no data, cached or live. Online
// backends are read live (and the mirror refreshed); offline backends degrade
// straight to the stored snapshot so stale views survive outages.
func (g *Gateway) View(ctx context.Context, username, requester, kind string) (*ports.SnapshotView, error) {
	if !domain.KnownSnapshotKind(kind) {
		return nil, fmt.Errorf("view: %w: %q", domain.ErrUnknownSnapshotKind, kind)
	}

	inst, err := g.registry.Lookup(ctx, username)
	if err != nil {
		return nil, err
	}

	if !g.gate.Allowed(ctx, inst, requester) {
		return nil, fmt.Errorf("view %s: %w", username, domain.ErrAccessDenied)
	}

	online := inst.Online(time.Now().UTC(), g.ttl)

	var (
		data     json.RawMessage
		fresh    bool
		lastSync time.Time
	)
	if online {
		data, fresh, lastSync = g.snapshots.Fetch(ctx, inst, kind)
	} else {
		data, fresh, lastSync = g.snapshots.Cached(inst, kind)
	}

	return &ports.SnapshotView{
		Username: username,
		Kind:     kind,
		Data:     data,
		Fresh:    fresh,
		LastSync: lastSync,
		Online:   online,
	}, nil
}

func upstreamOutcome(err error) string {
	if errors.Is(err, domain.ErrUpstreamTimeout) {
		return "timeout"
	}
	return "unreachable"
}

// lookupOutcome keeps storage faults out of the not_found bucket.
func lookupOutcome(err error) string {
	if errors.Is(err, domain.ErrInstanceNotFound) {
		return "not_found"
	}
	return "error"
}
