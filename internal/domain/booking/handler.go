package booking

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medsched/scheduler/internal/domain/appointment"
	"github.com/medsched/scheduler/internal/platform/auth"
)

type Handler struct {
	wf *Workflow
}

func NewHandler(wf *Workflow) *Handler {
	return &Handler{wf: wf}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/booking", auth.RequireRole(auth.RoleStaff, auth.RoleDoctor))
	g.POST("/advance", h.Advance)
	g.POST("/submit", h.Submit)
}

type advanceRequest struct {
	Draft Draft `json:"draft"`
	Step  Step  `json:"step" validate:"required"`
	Input Input `json:"input"`
}

type submitRequest struct {
	Draft Draft `json:"draft"`
}

// draftResponse always carries the draft, including on failure, so the client
// can re-render the step the error points at.
type draftResponse struct {
	Draft       Draft                    `json:"draft"`
	Appointment *appointment.Appointment `json:"appointment,omitempty"`
	Error       *appointment.ErrorBody   `json:"error,omitempty"`
}

func (h *Handler) Advance(c echo.Context) error {
	var req advanceRequest
	if err := appointment.Bind(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	d, err := h.wf.Apply(ctx, appointment.CallerFromContext(ctx), req.Draft, req.Step, req.Input)
	if err != nil {
		return failed(c, d, err)
	}
	return c.JSON(http.StatusOK, draftResponse{Draft: d})
}

func (h *Handler) Submit(c echo.Context) error {
	var req submitRequest
	if err := appointment.Bind(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	d, appt, err := h.wf.Submit(ctx, appointment.CallerFromContext(ctx), req.Draft)
	if err != nil {
		return failed(c, d, err)
	}
	return c.JSON(http.StatusCreated, draftResponse{Draft: d, Appointment: appt})
}

func failed(c echo.Context, d Draft, err error) error {
	status, body := appointment.ErrorResponse(err)
	if status == http.StatusInternalServerError {
		return appointment.HTTPError(err)
	}
	return c.JSON(status, draftResponse{Draft: d, Error: &body})
}
