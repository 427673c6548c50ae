// Package upstream holds the outbound HTTP side of the gateway: the proxy
// forwarder for opaque pass-through traffic and the short-timeout readers for
// snapshots and allow-lists.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"

	"github.com/exposehub/expose-gateway/internal/api/metrics"
	"github.com/exposehub/expose-gateway/internal/core/domain"
	"github.com/exposehub/expose-gateway/internal/core/ports"
)

const defaultForwardTimeout = 15 * time.Second

// Inbound headers that must not travel upstream: hop-by-hop framing plus the
// identity-defeating Host (Go carries Host on the Request, not the header map,
// but inbound copies may still name it).
var strippedRequestHeaders = []string{
	"Host",
	"Content-Length",
	"Connection",
	"Transfer-Encoding",
}

// Response framing headers the gateway re-derives itself.
var strippedResponseHeaders = []string{
	"Content-Encoding",
	"Content-Length",
	"Transfer-Encoding",
	"Connection",
}

// Forwarder translates one inbound request into one outbound request against
// a registered endpoint, with redirects disabled and transport faults mapped
// to the gateway's error taxonomy. Transient connection failures are retried
// for idempotent methods only; a proxy must never replay a write.
type Forwarder struct {
	retrying *retryablehttp.Client // GET/HEAD: bounded transport-level retries
	single   *retryablehttp.Client // everything else: one attempt
	log      zerolog.Logger
}

func NewForwarder(timeout time.Duration, log zerolog.Logger) *Forwarder {
	if timeout <= 0 {
		timeout = defaultForwardTimeout
	}
	return &Forwarder{
		retrying: newClient(timeout, 2),
		single:   newClient(timeout, 0),
		log:      log,
	}
}

func newClient(timeout time.Duration, retryMax int) *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = retryMax
	c.RetryWaitMin = 100 * time.Millisecond
	c.RetryWaitMax = 1 * time.Second
	c.Logger = nil
	// Retry transport errors only, never status codes: a response that made
	// it back must be relayed verbatim, 5xx included.
	c.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return err != nil, nil
	}
	// Timeout on the http.Client so it also bounds body streaming, and
	// redirects disabled: the forwarder never follows one on the backend's
	// behalf.
	c.HTTPClient.Timeout = timeout
	c.HTTPClient.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return c
}

// Forward issues the outbound call and translates the result back. The
// response body is streamed; the caller closes it.
func (f *Forwarder) Forward(ctx context.Context, inst *domain.Instance, req *ports.ForwardRequest) (*ports.ForwardResult, error) {
	target := strings.TrimRight(inst.Endpoint, "/") + "/" + strings.TrimLeft(req.Subpath, "/")
	if req.RawQuery != "" {
		target += "?" + req.RawQuery
	}

	out, err := retryablehttp.NewRequestWithContext(ctx, req.Method, target, req.Body)
	if err != nil {
		return nil, fmt.Errorf("forward: build request: %v: %w", err, domain.ErrUpstreamUnreachable)
	}

	copyRequestHeaders(out.Header, req.Header)
	injectForwardedHeaders(out.Header, req)

	client := f.single
	if isIdempotent(req.Method) {
		client = f.retrying
	}

	start := time.Now()
	resp, err := client.Do(out)
	metrics.UpstreamDuration.WithLabelValues(req.Method).Observe(time.Since(start).Seconds())
	if err != nil {
		mapped := mapTransportError(ctx, err)
		f.log.Warn().Err(err).
			Str("username", inst.Username).
			Str("target", target).
			Msg("forward failed")
		return nil, fmt.Errorf("forward %s %s: %w", req.Method, target, mapped)
	}

	header := make(http.Header, len(resp.Header))
	for k, vs := range resp.Header {
		header[k] = append([]string(nil), vs...)
	}
	for _, h := range strippedResponseHeaders {
		header.Del(h)
	}

	rewriteRedirect(header, resp.StatusCode, inst.Username)

	return &ports.ForwardResult{
		StatusCode: resp.StatusCode,
		Header:     header,
		Body:       resp.Body,
	}, nil
}

func copyRequestHeaders(dst, src http.Header) {
	for k, vs := range src {
		dst[http.CanonicalHeaderKey(k)] = append([]string(nil), vs...)
	}
	for _, h := range strippedRequestHeaders {
		dst.Del(h)
	}
}

// injectForwardedHeaders lets the backend reconstruct the original request
// context from behind the gateway.
func injectForwardedHeaders(h http.Header, req *ports.ForwardRequest) {
	if req.RemoteAddr != "" {
		h.Set("X-Forwarded-For", req.RemoteAddr)
	}
	if req.Proto != "" {
		h.Set("X-Forwarded-Proto", req.Proto)
	}
	if req.Host != "" {
		h.Set("X-Forwarded-Host", req.Host)
	}
}

// rewriteRedirect re-prefixes a path-absolute Location with /{username} so a
// backend redirect keeps pointing through the gateway.
func rewriteRedirect(h http.Header, status int, username string) {
	if status < 300 || status >= 400 {
		return
	}
	loc := h.Get("Location")
	if loc == "" || !strings.HasPrefix(loc, "/") {
		return
	}
	h.Set("Location", "/"+username+loc)
}

func isIdempotent(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}

// mapTransportError folds transport faults into the gateway taxonomy:
// deadline exceeded means the backend was too slow (504), anything else means
// it could not be reached (502).
func mapTransportError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return domain.ErrUpstreamTimeout
	}
	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.Timeout() {
		return domain.ErrUpstreamTimeout
	}
	return domain.ErrUpstreamUnreachable
}
