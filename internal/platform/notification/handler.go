package notification

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// Handler exposes the delivery history to administrators.
type Handler struct {
	mgr *Manager
}

func NewHandler(mgr *Manager) *Handler {
	return &Handler{mgr: mgr}
}

// RegisterRoutes mounts the routes on g; callers guard g with the admin role.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/notifications", h.List)
	g.GET("/notifications/stats", h.Stats)
	g.GET("/notifications/:id", h.Get)
	g.POST("/notifications/:id/retry", h.Retry)
}

func (h *Handler) List(c echo.Context) error {
	limit := 100
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return c.JSON(http.StatusUnprocessableEntity, map[string]string{
				"kind": "validation", "field": "limit", "message": "must be a positive integer",
			})
		}
		limit = n
	}
	return c.JSON(http.StatusOK, h.mgr.List(c.QueryParam("recipient"), limit))
}

func (h *Handler) Get(c echo.Context) error {
	n, ok := h.mgr.Get(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"kind": "not_found", "message": "notification not found"})
	}
	return c.JSON(http.StatusOK, n)
}

func (h *Handler) Retry(c echo.Context) error {
	if _, ok := h.mgr.Get(c.Param("id")); !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"kind": "not_found", "message": "notification not found"})
	}
	n, err := h.mgr.Retry(c.Request().Context(), c.Param("id"))
	if n == nil {
		return c.JSON(http.StatusConflict, map[string]string{"kind": "invalid_transition", "message": err.Error()})
	}
	// a failed retry still reports the updated record
	return c.JSON(http.StatusOK, n)
}

func (h *Handler) Stats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.mgr.Stats())
}
