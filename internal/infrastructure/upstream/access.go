package upstream

import (
	"context"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/exposehub/expose-gateway/internal/api/metrics"
	"github.com/exposehub/expose-gateway/internal/core/domain"
)

const defaultAccessTimeout = 3 * time.Second

// AccessClient asks a backend for its allow-list (GET {endpoint}/allowed_users)
// and applies the configured default when the list is empty or the backend
// cannot answer. Fail-open is the source-compatible default; fail-closed is a
// config switch, never a code change.
type AccessClient struct {
	client       *resty.Client
	defaultAllow bool
	log          zerolog.Logger
}

func NewAccessClient(timeout time.Duration, defaultAllow bool, log zerolog.Logger) *AccessClient {
	if timeout <= 0 {
		timeout = defaultAccessTimeout
	}
	return &AccessClient{
		client:       resty.New().SetTimeout(timeout),
		defaultAllow: defaultAllow,
		log:          log,
	}
}

type allowListResponse struct {
	AllowedUsers []string `json:"allowed_users"`
}

// Allowed reports whether requester may reach the instance. The decision
// never surfaces a transport error: an unreachable backend resolves to the
// configured default.
func (c *AccessClient) Allowed(ctx context.Context, inst *domain.Instance, requester string) bool {
	var list allowListResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&list).
		Get(strings.TrimRight(inst.Endpoint, "/") + "/allowed_users")

	if err != nil || resp.IsError() {
		c.log.Debug().Err(err).Str("username", inst.Username).Msg("allow-list unreachable, applying default")
		metrics.AccessChecksTotal.WithLabelValues("default").Inc()
		return c.defaultAllow
	}

	if len(list.AllowedUsers) == 0 {
		metrics.AccessChecksTotal.WithLabelValues("default").Inc()
		return c.defaultAllow
	}

	for _, u := range list.AllowedUsers {
		if u == requester {
			metrics.AccessChecksTotal.WithLabelValues("allowed").Inc()
			return true
		}
	}

	metrics.AccessChecksTotal.WithLabelValues("denied").Inc()
	return false
}
