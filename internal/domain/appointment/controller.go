package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	DefaultBookingHorizon = 90 * 24 * time.Hour
	DefaultGraceWindow    = 15 * time.Minute
)

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) ControllerOption {
	return func(c *Controller) { c.now = now }
}

// WithBookingHorizon limits how far ahead appointments can be created.
func WithBookingHorizon(d time.Duration) ControllerOption {
	return func(c *Controller) { c.horizon = d }
}

// WithGraceWindow sets the check-in and no-show tolerance around scheduledAt.
func WithGraceWindow(d time.Duration) ControllerOption {
	return func(c *Controller) { c.grace = d }
}

// WithEventSink registers a sink for lifecycle events.
func WithEventSink(s EventSink) ControllerOption {
	return func(c *Controller) { c.sinks = append(c.sinks, s) }
}

// WithLogger sets the controller's logger.
func WithLogger(l zerolog.Logger) ControllerOption {
	return func(c *Controller) { c.logger = l }
}

// Controller owns every write to appointments. It enforces the transition
// table, role preconditions and visibility, and relies on the repository for
// the atomic conflict check.
type Controller struct {
	repo     Repository
	calendar Calendar
	sinks    MultiSink
	logger   zerolog.Logger
	now      func() time.Time
	horizon  time.Duration
	grace    time.Duration
}

// NewController wires a controller. calendar may be nil, in which case
// working-hours checks are skipped and Availability is unavailable.
func NewController(repo Repository, calendar Calendar, opts ...ControllerOption) *Controller {
	c := &Controller{
		repo:     repo,
		calendar: calendar,
		logger:   zerolog.Nop(),
		now:      time.Now,
		horizon:  DefaultBookingHorizon,
		grace:    DefaultGraceWindow,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// DoctorLocation returns the time zone of the doctor's calendar, UTC when no
// calendar is configured.
func (c *Controller) DoctorLocation(ctx context.Context, doctorID string) (*time.Location, error) {
	if c.calendar == nil {
		return time.UTC, nil
	}
	wh, err := c.calendar.WorkingHours(ctx, doctorID, c.now())
	if err != nil {
		return nil, err
	}
	return wh.loc(), nil
}

// CreateRequest carries the fields a caller supplies when booking.
type CreateRequest struct {
	PatientID       string
	DoctorID        string
	SpecialtyID     string
	ScheduledAt     time.Time
	DurationMinutes int
	Reason          string
	Priority        Priority
	Notes           *string
}

func (c *Controller) validateCreate(req *CreateRequest, now time.Time) error {
	req.PatientID = strings.TrimSpace(req.PatientID)
	req.DoctorID = strings.TrimSpace(req.DoctorID)
	req.SpecialtyID = strings.TrimSpace(req.SpecialtyID)
	req.Reason = strings.TrimSpace(req.Reason)

	switch {
	case req.PatientID == "":
		return invalid("patientId", "is required")
	case req.SpecialtyID == "":
		return invalid("specialtyId", "is required")
	case req.DoctorID == "":
		return invalid("doctorId", "is required")
	case req.ScheduledAt.IsZero():
		return invalid("scheduledAt", "is required")
	case !req.ScheduledAt.After(now):
		return invalid("scheduledAt", "must be in the future")
	case c.horizon > 0 && req.ScheduledAt.After(now.Add(c.horizon)):
		return invalid("scheduledAt", fmt.Sprintf("must be within %d days", int(c.horizon.Hours()/24)))
	case req.DurationMinutes < 0:
		return invalid("durationMinutes", "must be positive")
	case req.Reason == "":
		return invalid("reason", "is required")
	}

	if req.Priority == "" {
		req.Priority = PriorityNormal
	}
	if !req.Priority.Valid() {
		return invalid("priority", "must be one of normal, high, urgent")
	}
	return nil
}

// Create books a new pending appointment. The repository re-checks the slot
// at commit; a lost race surfaces as *SlotConflictError.
func (c *Controller) Create(ctx context.Context, caller Caller, req CreateRequest) (*Appointment, error) {
	now := c.now()
	log := c.logger.With().Str("action", string(ActionCreate)).Str("doctor_id", req.DoctorID).Logger()

	policy, err := PolicyFor(caller)
	if err != nil {
		return nil, c.reject(log, err)
	}
	if err := c.validateCreate(&req, now); err != nil {
		return nil, c.reject(log, err)
	}
	if err := policy.AuthorizeDoctor(req.DoctorID); err != nil {
		return nil, c.reject(log, err)
	}

	if c.calendar != nil {
		wh, err := c.calendar.WorkingHours(ctx, req.DoctorID, req.ScheduledAt)
		if err != nil {
			return nil, c.reject(log, err)
		}
		// The doctor's local date can differ from the one written in the
		// request; closures are per local date.
		if local := req.ScheduledAt.In(wh.loc()); local.YearDay() != req.ScheduledAt.YearDay() {
			if wh, err = c.calendar.WorkingHours(ctx, req.DoctorID, local); err != nil {
				return nil, c.reject(log, err)
			}
		}
		if req.DurationMinutes == 0 {
			req.DurationMinutes = int(wh.slot() / time.Minute)
		}
		if !wh.Contains(req.ScheduledAt, req.DurationMinutes) {
			return nil, c.reject(log, invalid("scheduledAt", "outside the doctor's working hours"))
		}
	}
	if req.DurationMinutes == 0 {
		req.DurationMinutes = DefaultSlotMinutes
	}

	a := &Appointment{
		PatientID:       req.PatientID,
		DoctorID:        req.DoctorID,
		SpecialtyID:     req.SpecialtyID,
		ScheduledAt:     req.ScheduledAt,
		DurationMinutes: req.DurationMinutes,
		Status:          StatusPending,
		Reason:          req.Reason,
		Priority:        req.Priority,
		Notes:           req.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := c.repo.Create(ctx, a); err != nil {
		if errors.Is(err, ErrSlotTaken) {
			err = &SlotConflictError{DoctorID: a.DoctorID, Start: a.ScheduledAt, End: a.EndsAt()}
		}
		return nil, c.reject(log, err)
	}

	log.Info().Str("appointment_id", a.ID.String()).
		Time("scheduled_at", a.ScheduledAt).
		Msg("appointment created")
	c.emit(ActionCreate, caller, a, now)
	return a, nil
}

// Confirm moves a pending appointment to confirmed. Administrative staff only.
func (c *Controller) Confirm(ctx context.Context, caller Caller, id uuid.UUID) (*Appointment, error) {
	return c.transition(ctx, caller, id, ActionConfirm, func(*Appointment, time.Time, *StatusChange) error {
		if !caller.IsAdministrativeStaff {
			return &AuthorizationError{Reason: "only administrative staff can confirm appointments"}
		}
		return nil
	})
}

// Cancel cancels a pending or confirmed appointment. A non-blank reason is
// required and stored on the record.
func (c *Controller) Cancel(ctx context.Context, caller Caller, id uuid.UUID, reason string) (*Appointment, error) {
	return c.transition(ctx, caller, id, ActionCancel, func(_ *Appointment, _ time.Time, ch *StatusChange) error {
		reason = strings.TrimSpace(reason)
		if reason == "" {
			return invalid("cancelReason", "is required to cancel")
		}
		ch.CancelReason = &reason
		return nil
	})
}

// CheckIn starts a confirmed appointment once now is within the grace window
// before scheduledAt.
func (c *Controller) CheckIn(ctx context.Context, caller Caller, id uuid.UUID) (*Appointment, error) {
	return c.transition(ctx, caller, id, ActionCheckIn, func(a *Appointment, now time.Time, _ *StatusChange) error {
		if now.Before(a.ScheduledAt.Add(-c.grace)) {
			return invalid("scheduledAt", "too early to check in")
		}
		return nil
	})
}

// Complete finishes an in-progress appointment. Only the appointment's own
// doctor may complete it; notes are optional.
func (c *Controller) Complete(ctx context.Context, caller Caller, id uuid.UUID, notes *string) (*Appointment, error) {
	return c.transition(ctx, caller, id, ActionComplete, func(a *Appointment, _ time.Time, ch *StatusChange) error {
		if !caller.IsDoctor || caller.DoctorID != a.DoctorID {
			return &AuthorizationError{Reason: "only the attending doctor can complete an appointment"}
		}
		if notes != nil && strings.TrimSpace(*notes) != "" {
			n := strings.TrimSpace(*notes)
			if a.Notes != nil && *a.Notes != "" {
				n = *a.Notes + "\n" + n
			}
			ch.Notes = &n
		}
		return nil
	})
}

// MarkNoShow closes a confirmed appointment whose patient never arrived. It is
// accepted only after the grace window has elapsed.
func (c *Controller) MarkNoShow(ctx context.Context, caller Caller, id uuid.UUID) (*Appointment, error) {
	return c.transition(ctx, caller, id, ActionMarkNoShow, func(a *Appointment, now time.Time, _ *StatusChange) error {
		if !now.After(a.ScheduledAt.Add(c.grace)) {
			return invalid("scheduledAt", "grace window has not elapsed")
		}
		return nil
	})
}

// precondition checks role and input for one action and may fill in the
// change payload.
type precondition func(a *Appointment, now time.Time, change *StatusChange) error

func (c *Controller) transition(ctx context.Context, caller Caller, id uuid.UUID, action Action, check precondition) (*Appointment, error) {
	now := c.now()
	log := c.logger.With().Str("action", string(action)).Str("appointment_id", id.String()).Logger()

	policy, err := PolicyFor(caller)
	if err != nil {
		return nil, c.reject(log, err)
	}
	a, err := c.load(ctx, id)
	if err != nil {
		return nil, c.reject(log, err)
	}
	log = log.With().Str("doctor_id", a.DoctorID).Logger()

	if err := policy.Authorize(a); err != nil {
		return nil, c.reject(log, err)
	}
	to, ok := Next(a.Status, action)
	if !ok {
		return nil, c.reject(log, &InvalidTransitionError{From: a.Status, Action: action})
	}

	change := StatusChange{To: to, UpdatedAt: now}
	if err := check(a, now, &change); err != nil {
		return nil, c.reject(log, err)
	}

	updated, err := c.repo.UpdateStatus(ctx, a.ID, a.Status, change)
	switch {
	case errors.Is(err, ErrStatusChanged):
		current, lerr := c.load(ctx, id)
		if lerr != nil {
			return nil, c.reject(log, lerr)
		}
		return nil, c.reject(log, &InvalidTransitionError{From: current.Status, Action: action})
	case errors.Is(err, ErrNotFound):
		return nil, c.reject(log, &NotFoundError{Resource: "appointment", ID: id.String()})
	case err != nil:
		return nil, c.reject(log, fmt.Errorf("update appointment %s: %w", id, err))
	}

	log.Info().Str("from", string(a.Status)).Str("to", string(to)).Msg("appointment transitioned")
	c.emit(action, caller, updated, now)
	return updated, nil
}

// Get returns one appointment visible to the caller.
func (c *Controller) Get(ctx context.Context, caller Caller, id uuid.UUID) (*Appointment, error) {
	policy, err := PolicyFor(caller)
	if err != nil {
		return nil, err
	}
	a, err := c.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(a); err != nil {
		return nil, err
	}
	return a, nil
}

// Availability resolves the doctor's slots for the calendar date of date.
func (c *Controller) Availability(ctx context.Context, caller Caller, doctorID string, date time.Time) ([]Slot, error) {
	policy, err := PolicyFor(caller)
	if err != nil {
		return nil, err
	}
	if doctorID == "" {
		return nil, invalid("doctorId", "is required")
	}
	if err := policy.AuthorizeDoctor(doctorID); err != nil {
		return nil, err
	}
	if c.calendar == nil {
		return nil, errors.New("no schedule calendar configured")
	}

	wh, err := c.calendar.WorkingHours(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}
	day := wh.Day(date)
	active, err := c.repo.FindActiveByDoctorAndDate(ctx, doctorID, day)
	if err != nil {
		return nil, fmt.Errorf("load appointments for %s: %w", doctorID, err)
	}
	return ResolveSlots(wh, day, active, c.now()), nil
}

func (c *Controller) load(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := c.repo.FindByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, &NotFoundError{Resource: "appointment", ID: id.String()}
	}
	if err != nil {
		return nil, fmt.Errorf("load appointment %s: %w", id, err)
	}
	return a, nil
}

func (c *Controller) reject(log zerolog.Logger, err error) error {
	kind := KindOf(err)
	ev := log.Warn()
	if kind == KindInternal {
		ev = log.Error()
	}
	ev.Err(err).Str("kind", string(kind)).Msg("appointment operation rejected")
	return err
}

func (c *Controller) emit(action Action, caller Caller, a *Appointment, at time.Time) {
	if len(c.sinks) == 0 {
		return
	}
	c.sinks.Publish(Event{
		Type:        actionEvents[action],
		Appointment: clone(a),
		ActorID:     caller.UserID,
		OccurredAt:  at,
	})
}
