package handler

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/exposehub/expose-gateway/internal/core/ports"
)

// maxProxyBodyBytes bounds how much of an inbound body the gateway will
// buffer for forwarding (and replay on retry).
const maxProxyBodyBytes = 32 << 20 // 32 MiB

// ProxyHandler relays opaque pass-through traffic: any method, any subpath,
// body and headers forwarded verbatim up to the hop-by-hop strip set.
type ProxyHandler struct {
	gateway ports.GatewayService
}

func NewProxyHandler(gateway ports.GatewayService) *ProxyHandler {
	return &ProxyHandler{gateway: gateway}
}

// Forward handles /:username/* for all proxied methods. The request context
// is the inbound request's, so a client disconnect cancels the outbound call.
func (h *ProxyHandler) Forward(c echo.Context) error {
	req := c.Request()

	body, err := io.ReadAll(io.LimitReader(req.Body, maxProxyBodyBytes+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable request body")
	}
	if len(body) > maxProxyBodyBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "request body too large")
	}

	requester, _ := c.Get("requester").(string)

	result, err := h.gateway.Proxy(req.Context(), c.Param("username"), requester, &ports.ForwardRequest{
		Method:     req.Method,
		Subpath:    c.Param("*"),
		RawQuery:   c.QueryString(),
		Header:     req.Header,
		Body:       body,
		RemoteAddr: c.RealIP(),
		Proto:      c.Scheme(),
		Host:       req.Host,
	})
	if err != nil {
		return err
	}
	defer result.Body.Close()

	respHeader := c.Response().Header()
	for k, vs := range result.Header {
		for _, v := range vs {
			respHeader.Add(k, v)
		}
	}

	c.Response().WriteHeader(result.StatusCode)
	_, err = io.Copy(c.Response(), result.Body)
	return err
}
