package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/exposehub/expose-gateway/internal/core/domain"
)

const defaultSnapshotTimeout = 4 * time.Second

// SnapshotClient performs the short-timeout read calls behind the snapshot
// cache. Backends expose each read view as a flat route: GET {endpoint}/{kind}.
type SnapshotClient struct {
	client *resty.Client
}

func NewSnapshotClient(timeout time.Duration) *SnapshotClient {
	if timeout <= 0 {
		timeout = defaultSnapshotTimeout
	}
	return &SnapshotClient{
		client: resty.New().SetTimeout(timeout),
	}
}

// Fetch reads one snapshot kind from the instance's backend. Any transport
// fault or non-2xx status is an error; the cache layer decides the fallback.
func (c *SnapshotClient) Fetch(ctx context.Context, inst *domain.Instance, kind string) (json.RawMessage, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		Get(strings.TrimRight(inst.Endpoint, "/") + "/" + kind)
	if err != nil {
		return nil, fmt.Errorf("snapshot fetch %s/%s: %w", inst.Username, kind, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("snapshot fetch %s/%s: status %d", inst.Username, kind, resp.StatusCode())
	}
	return json.RawMessage(resp.Body()), nil
}
