package ports

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/exposehub/expose-gateway/internal/core/domain"
)

// ForwardRequest is the transport-agnostic description of one inbound request
// to be replayed against a registered backend.
type ForwardRequest struct {
	Method   string
	Subpath  string      // path below /{username}, no leading slash
	RawQuery string      // carried to the backend unmodified
	Header   http.Header // inbound headers before hop-by-hop stripping
	Body     []byte

	// Original request context, injected as X-Forwarded-* so the backend can
	// reconstruct it.
	RemoteAddr string
	Proto      string // "http" or "https"
	Host       string
}

// ForwardResult carries the backend's response back to the gateway. Body is
// streamed; the caller owns closing it.
type ForwardResult struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}

// Forwarder translates one inbound HTTP request into one outbound request
// against the instance's endpoint. Transport faults are mapped to
// domain.ErrUpstreamUnreachable / domain.ErrUpstreamTimeout and never raise
// past the gateway.
type Forwarder interface {
	Forward(ctx context.Context, inst *domain.Instance, req *ForwardRequest) (*ForwardResult, error)
}

// SnapshotFetcher performs the short-timeout read call for one snapshot kind.
// It is transport only; caching and fallback live in the snapshot cache.
type SnapshotFetcher interface {
	Fetch(ctx context.Context, inst *domain.Instance, kind string) (json.RawMessage, error)
}

// AccessGate decides whether a requester may reach an instance, by asking the
// backend for its allow-list. The unreachable/empty-list default is a
// configured policy, not a hard-coded one.
type AccessGate interface {
	Allowed(ctx context.Context, inst *domain.Instance, requester string) bool
}

// SnapshotView is what the gateway's read views serve: possibly-stale data
// plus enough context for an "offline / cached" indicator.
type SnapshotView struct {
	Username string          `json:"username"`
	Kind     string          `json:"kind"`
	Data     json.RawMessage `json:"data"`
	Fresh    bool            `json:"fresh"`
	LastSync time.Time       `json:"last_sync,omitempty"`
	Online   bool            `json:"online"`
}

// GatewayService composes lookup, liveness, access check, and forwarding (or
// cache-backed read views) per inbound request.
type GatewayService interface {
	// Proxy forwards one opaque request to the backend registered under
	// username. Returns domain.ErrInstanceNotFound, domain.ErrInstanceOffline,
	// domain.ErrAccessDenied, or the forwarder's upstream errors.
	Proxy(ctx context.Context, username, requester string, req *ForwardRequest) (*ForwardResult, error)

	// View serves one cached read view, degrading to the stored snapshot (or
	// a placeholder) when the backend cannot be reached. The access gate
	// applies to views the same way it applies to proxied traffic.
	View(ctx context.Context, username, requester, kind string) (*SnapshotView, error)
}
