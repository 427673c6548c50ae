package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/exposehub/expose-gateway/internal/core/ports"
	"github.com/exposehub/expose-gateway/internal/infrastructure/queue"
)

// RefreshQueue is the interface the handler uses to enqueue background
// snapshot refreshes.
type RefreshQueue interface {
	Enqueue(job queue.RefreshJob)
}

// RegistryHandler handles instance registration, heartbeat, and
// deregistration.
type RegistryHandler struct {
	service   ports.RegistryService
	refresher RefreshQueue
}

func NewRegistryHandler(service ports.RegistryService, refresher RefreshQueue) *RegistryHandler {
	return &RegistryHandler{service: service, refresher: refresher}
}

// --- Response types ---

type instanceResponse struct {
	OwnerID       string    `json:"owner_id"`
	Username      string    `json:"username"`
	Endpoint      string    `json:"endpoint"`
	Token         string    `json:"token"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
}

type statusResponse struct {
	Status string `json:"status"`
}

// Register handles POST /register.
//
// @Summary      Register (or re-register) an instance under a public username
// @Tags         registry
// @Accept       json
// @Produce      json
// @Param        body  body      registerRequest  true  "Instance details"
// @Success      200   {object}  instanceResponse
// @Failure      400   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /register [post]
func (h *RegistryHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	inst, err := h.service.Register(c.Request().Context(), ports.RegisterInput{
		OwnerID:          req.OwnerID,
		Username:         req.Username,
		Endpoint:         req.Endpoint,
		InitialSnapshots: req.InitialSnapshots,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, instanceResponse{
		OwnerID:       inst.OwnerID,
		Username:      inst.Username,
		Endpoint:      inst.Endpoint,
		Token:         inst.Token,
		LastHeartbeat: inst.LastHeartbeat,
	})
}

// Heartbeat handles POST /heartbeat/:token. The body is optional: it may
// carry inline snapshot documents, and it may name kinds for the background
// refresher to re-mirror.
//
// @Summary      Prove liveness for an instance
// @Tags         registry
// @Accept       json
// @Produce      json
// @Param        token  path      string            true   "Instance token"
// @Param        body   body      heartbeatRequest  false  "Optional snapshot updates"
// @Success      200    {object}  statusResponse
// @Failure      404    {object}  map[string]string
// @Router       /heartbeat/{token} [post]
func (h *RegistryHandler) Heartbeat(c echo.Context) error {
	var req heartbeatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	inst, err := h.service.Heartbeat(c.Request().Context(), c.Param("token"), req.Snapshots)
	if err != nil {
		return err
	}

	if len(req.Refresh) > 0 && h.refresher != nil {
		h.refresher.Enqueue(queue.RefreshJob{Username: inst.Username, Kinds: req.Refresh})
	}

	return c.JSON(http.StatusOK, statusResponse{Status: "ok"})
}

// Deregister handles DELETE /deregister/:token.
//
// @Summary      Remove an instance registration
// @Tags         registry
// @Produce      json
// @Param        token  path      string  true  "Instance token"
// @Success      200    {object}  statusResponse
// @Failure      404    {object}  map[string]string
// @Router       /deregister/{token} [delete]
func (h *RegistryHandler) Deregister(c echo.Context) error {
	if err := h.service.Deregister(c.Request().Context(), c.Param("token")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, statusResponse{Status: "deregistered"})
}

// ListOnline handles GET / — the public directory of online instances.
//
// @Summary      List online instances
// @Tags         registry
// @Produce      json
// @Success      200  {array}  ports.InstanceSummary
// @Router       / [get]
func (h *RegistryHandler) ListOnline(c echo.Context) error {
	summaries, err := h.service.ListOnline(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, summaries)
}

// ListMine handles GET /instances/mine — the authenticated owner's own
// instances, tokens included.
//
// @Summary      List the caller's own instances
// @Tags         registry
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   instanceResponse
// @Failure      401  {object}  map[string]string
// @Router       /instances/mine [get]
func (h *RegistryHandler) ListMine(c echo.Context) error {
	ownerID, _ := c.Get("operator_id").(string)

	records, err := h.service.ListByOwner(c.Request().Context(), ownerID)
	if err != nil {
		return err
	}

	out := make([]instanceResponse, 0, len(records))
	for _, inst := range records {
		out = append(out, instanceResponse{
			OwnerID:       inst.OwnerID,
			Username:      inst.Username,
			Endpoint:      inst.Endpoint,
			Token:         inst.Token,
			LastHeartbeat: inst.LastHeartbeat,
		})
	}
	return c.JSON(http.StatusOK, out)
}
