// Package metrics defines and registers all custom Prometheus metrics for the
// expose gateway. It is the single source of truth for metric names, labels,
// and help strings.
//
// Metrics register with the default Prometheus registry at import time via
// promauto; the router exposes them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "expose"

// ── Registry metrics ──────────────────────────────────────────────────────────

// RegistrationsTotal counts instance registrations.
// Label:
//   - op: "create" (new username) or "update" (re-registration upsert)
var RegistrationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "registrations_total",
		Help:      "Total number of instance registrations, by upsert outcome.",
	},
	[]string{"op"},
)

// HeartbeatsTotal counts accepted liveness proofs.
var HeartbeatsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "heartbeats_total",
		Help:      "Total number of accepted heartbeats.",
	},
)

// InstancesSweptTotal counts records removed by the periodic sweep.
var InstancesSweptTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "instances_swept_total",
		Help:      "Total number of stale instance records removed by the sweep.",
	},
)

// ── Proxy metrics ─────────────────────────────────────────────────────────────

// ProxyRequestsTotal counts proxied requests by terminal outcome.
// Label:
//   - outcome: "forwarded", "not_found", "offline", "denied", "unreachable",
//     "timeout", or "error" (registry lookup failed for a reason other than
//     an unknown username)
var ProxyRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "proxy_requests_total",
		Help:      "Total number of proxied requests, by outcome.",
	},
	[]string{"outcome"},
)

// UpstreamDuration measures the outbound forward call end-to-end.
// Label:
//   - method: the HTTP method forwarded upstream
var UpstreamDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "upstream_duration_seconds",
		Help:      "Duration of outbound forward calls against registered backends.",
		Buckets:   prometheus.DefBuckets, // .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10
	},
	[]string{"method"},
)

// ── Snapshot metrics ──────────────────────────────────────────────────────────

// SnapshotServesTotal counts snapshot view serves by data source.
// Labels:
//   - kind: "home", "files", or "behaviors"
//   - source: "fresh" (live fetch), "stale" (cached fallback), "placeholder"
var SnapshotServesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "snapshot_serves_total",
		Help:      "Total number of snapshot view serves, by kind and data source.",
	},
	[]string{"kind", "source"},
)

// SnapshotRefreshTotal counts background refresher outcomes.
// Label:
//   - result: "ok" or "error"
var SnapshotRefreshTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "snapshot_refresh_total",
		Help:      "Total number of background snapshot refresh attempts, by result.",
	},
	[]string{"result"},
)

// ── Access gate metrics ───────────────────────────────────────────────────────

// AccessChecksTotal counts access gate decisions.
// Label:
//   - decision: "allowed", "denied", or "default" (allow-list empty or
//     unreachable, configured default applied)
var AccessChecksTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "access_checks_total",
		Help:      "Total number of access gate decisions.",
	},
	[]string{"decision"},
)
