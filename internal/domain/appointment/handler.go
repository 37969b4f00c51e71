package appointment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medsched/scheduler/internal/platform/auth"
	"github.com/medsched/scheduler/pkg/pagination"
)

type Handler struct {
	ctrl  *Controller
	query *QueryService
}

func NewHandler(ctrl *Controller, query *QueryService) *Handler {
	return &Handler{ctrl: ctrl, query: query}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole(auth.RoleStaff, auth.RoleDoctor))
	g.POST("/appointments", h.Create)
	g.GET("/appointments", h.List)
	g.GET("/appointments/:id", h.Get)
	g.POST("/appointments/:id/confirm", h.Confirm)
	g.POST("/appointments/:id/cancel", h.Cancel)
	g.POST("/appointments/:id/check-in", h.CheckIn)
	g.POST("/appointments/:id/complete", h.Complete)
	g.POST("/appointments/:id/no-show", h.MarkNoShow)
	g.GET("/doctors/:id/availability", h.Availability)
}

// CallerFromContext builds the scheduling caller from the authenticated
// request identity.
func CallerFromContext(ctx context.Context) Caller {
	return Caller{
		UserID:                auth.UserIDFromContext(ctx),
		IsDoctor:              auth.IsDoctor(ctx),
		IsAdministrativeStaff: auth.IsAdministrative(ctx),
		DoctorID:              auth.DoctorIDFromContext(ctx),
	}
}

type createAppointmentRequest struct {
	PatientID       string    `json:"patientId" validate:"required"`
	DoctorID        string    `json:"doctorId" validate:"required"`
	SpecialtyID     string    `json:"specialtyId" validate:"required"`
	ScheduledAt     time.Time `json:"scheduledAt" validate:"required"`
	DurationMinutes int       `json:"durationMinutes" validate:"omitempty,min=1,max=480"`
	Reason          string    `json:"reason" validate:"required"`
	Priority        string    `json:"priority" validate:"omitempty,oneof=normal high urgent"`
	Notes           *string   `json:"notes"`
}

type cancelRequest struct {
	CancelReason string `json:"cancelReason" validate:"required"`
}

type completeRequest struct {
	Notes *string `json:"notes"`
}

func (h *Handler) Create(c echo.Context) error {
	var body createAppointmentRequest
	if err := Bind(c, &body); err != nil {
		return err
	}
	a, err := h.ctrl.Create(c.Request().Context(), CallerFromContext(c.Request().Context()), CreateRequest{
		PatientID:       body.PatientID,
		DoctorID:        body.DoctorID,
		SpecialtyID:     body.SpecialtyID,
		ScheduledAt:     body.ScheduledAt,
		DurationMinutes: body.DurationMinutes,
		Reason:          body.Reason,
		Priority:        Priority(body.Priority),
		Notes:           body.Notes,
	})
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

// appointmentView is the single-record response. AllowedActions lists the
// transitions defined from the current status; role and time preconditions
// are still checked when an action is requested.
type appointmentView struct {
	*Appointment
	AllowedActions []Action `json:"allowedActions"`
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	a, err := h.ctrl.Get(c.Request().Context(), CallerFromContext(c.Request().Context()), id)
	if err != nil {
		return HTTPError(err)
	}
	actions := AllowedActions(a.Status)
	if actions == nil {
		actions = []Action{}
	}
	return c.JSON(http.StatusOK, appointmentView{Appointment: a, AllowedActions: actions})
}

func (h *Handler) List(c echo.Context) error {
	from, err := parseTimeParam(c, "from")
	if err != nil {
		return err
	}
	to, err := parseTimeParam(c, "to")
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)

	page, err := h.query.Query(c.Request().Context(), Criteria{
		Caller:      CallerFromContext(c.Request().Context()),
		Search:      c.QueryParam("search"),
		Status:      Status(c.QueryParam("status")),
		SpecialtyID: c.QueryParam("specialty_id"),
		DoctorID:    c.QueryParam("doctor_id"),
		From:        from,
		To:          to,
		Page:        pg.Page,
		PageSize:    pg.PageSize,
	})
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(page.Items, page.Total,
		pagination.Params{Page: page.Page, PageSize: page.PageSize}))
}

func (h *Handler) Confirm(c echo.Context) error {
	return h.act(c, func(ctx context.Context, caller Caller, id uuid.UUID) (*Appointment, error) {
		return h.ctrl.Confirm(ctx, caller, id)
	})
}

func (h *Handler) Cancel(c echo.Context) error {
	var body cancelRequest
	if err := Bind(c, &body); err != nil {
		return err
	}
	return h.act(c, func(ctx context.Context, caller Caller, id uuid.UUID) (*Appointment, error) {
		return h.ctrl.Cancel(ctx, caller, id, body.CancelReason)
	})
}

func (h *Handler) CheckIn(c echo.Context) error {
	return h.act(c, func(ctx context.Context, caller Caller, id uuid.UUID) (*Appointment, error) {
		return h.ctrl.CheckIn(ctx, caller, id)
	})
}

func (h *Handler) Complete(c echo.Context) error {
	var body completeRequest
	if c.Request().ContentLength != 0 {
		if err := Bind(c, &body); err != nil {
			return err
		}
	}
	return h.act(c, func(ctx context.Context, caller Caller, id uuid.UUID) (*Appointment, error) {
		return h.ctrl.Complete(ctx, caller, id, body.Notes)
	})
}

func (h *Handler) MarkNoShow(c echo.Context) error {
	return h.act(c, func(ctx context.Context, caller Caller, id uuid.UUID) (*Appointment, error) {
		return h.ctrl.MarkNoShow(ctx, caller, id)
	})
}

func (h *Handler) act(c echo.Context, fn func(context.Context, Caller, uuid.UUID) (*Appointment, error)) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	a, err := fn(ctx, CallerFromContext(ctx), id)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Availability(c echo.Context) error {
	raw := c.QueryParam("date")
	if raw == "" {
		return HTTPError(invalid("date", "is required"))
	}
	date, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return HTTPError(invalid("date", "must be YYYY-MM-DD"))
	}
	ctx := c.Request().Context()
	slots, err := h.ctrl.Availability(ctx, CallerFromContext(ctx), c.Param("id"), date)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, slots)
}

// ErrorBody is the JSON error payload for domain errors.
type ErrorBody struct {
	Kind    Kind   `json:"kind"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// ErrorResponse maps the domain error taxonomy onto an HTTP status and body.
func ErrorResponse(err error) (int, ErrorBody) {
	body := ErrorBody{Kind: KindOf(err), Message: err.Error()}

	switch body.Kind {
	case KindValidation:
		var ve *ValidationError
		errors.As(err, &ve)
		body.Field = ve.Field
		body.Message = ve.Message
		return http.StatusUnprocessableEntity, body
	case KindSlotConflict, KindInvalidTransition:
		return http.StatusConflict, body
	case KindAuthorization:
		return http.StatusForbidden, body
	case KindNotFound:
		return http.StatusNotFound, body
	}
	body.Message = "internal error"
	return http.StatusInternalServerError, body
}

// HTTPError wraps ErrorResponse in an *echo.HTTPError, keeping err as the
// internal cause for logging.
func HTTPError(err error) error {
	status, body := ErrorResponse(err)
	return echo.NewHTTPError(status, body).SetInternal(err)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Bind decodes the request body into v and validates it, reporting the first
// failing field as a *ValidationError.
func Bind(c echo.Context, v interface{}) error {
	if err := c.Bind(v); err != nil {
		return HTTPError(invalid("body", "malformed request body"))
	}
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return HTTPError(fieldError(verrs[0]))
		}
		return HTTPError(err)
	}
	return nil
}

func fieldError(fe validator.FieldError) *ValidationError {
	switch fe.Tag() {
	case "required":
		return invalid(fe.Field(), "is required")
	case "oneof":
		return invalid(fe.Field(), "must be one of "+fe.Param())
	case "min":
		return invalid(fe.Field(), "must be at least "+fe.Param())
	case "max":
		return invalid(fe.Field(), "must be at most "+fe.Param())
	}
	return invalid(fe.Field(), fmt.Sprintf("failed %s validation", fe.Tag()))
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, HTTPError(&NotFoundError{Resource: "appointment", ID: c.Param("id")})
	}
	return id, nil
}

// parseTimeParam accepts RFC 3339 timestamps or plain dates.
func parseTimeParam(c echo.Context, name string) (time.Time, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, nil
	}
	return time.Time{}, HTTPError(invalid(name, "must be an RFC 3339 timestamp or YYYY-MM-DD"))
}
