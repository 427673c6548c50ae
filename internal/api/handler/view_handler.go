package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/exposehub/expose-gateway/internal/core/ports"
)

// ViewHandler serves the gateway's own cached read views. These degrade to
// the stored snapshot when a backend is down, so the "fresh" and "online"
// fields double as the offline/cached indicator for the caller.
type ViewHandler struct {
	gateway ports.GatewayService
}

func NewViewHandler(gateway ports.GatewayService) *ViewHandler {
	return &ViewHandler{gateway: gateway}
}

// Get handles GET /view/:username/:kind.
//
// @Summary      Serve a cached read view for an instance
// @Tags         views
// @Produce      json
// @Param        username  path      string  true  "Public username"
// @Param        kind      path      string  true  "Snapshot kind"  Enums(home, files, behaviors)
// @Success      200       {object}  ports.SnapshotView
// @Failure      400       {object}  map[string]string
// @Failure      403       {object}  map[string]string
// @Failure      404       {object}  map[string]string
// @Router       /view/{username}/{kind} [get]
func (h *ViewHandler) Get(c echo.Context) error {
	requester, _ := c.Get("requester").(string)

	view, err := h.gateway.View(c.Request().Context(), c.Param("username"), requester, c.Param("kind"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}
