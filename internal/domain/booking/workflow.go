package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/medsched/scheduler/internal/domain/appointment"
)

// Scheduler is the part of the lifecycle controller the workflow drives.
type Scheduler interface {
	Availability(ctx context.Context, caller appointment.Caller, doctorID string, date time.Time) ([]appointment.Slot, error)
	Create(ctx context.Context, caller appointment.Caller, req appointment.CreateRequest) (*appointment.Appointment, error)
	DoctorLocation(ctx context.Context, doctorID string) (*time.Location, error)
}

// Directory answers the reference-data questions asked while choosing a
// patient, specialty and doctor.
type Directory interface {
	HasPatient(ctx context.Context, id string) bool
	HasSpecialty(ctx context.Context, id string) bool
	DoctorPractices(ctx context.Context, doctorID, specialtyID string) bool
}

// Workflow wraps Advance with the lookups a real booking needs: directory
// checks, availability for the chosen date, and the final create.
type Workflow struct {
	sched  Scheduler
	dir    Directory
	logger zerolog.Logger
	now    func() time.Time
}

func NewWorkflow(sched Scheduler, dir Directory, logger zerolog.Logger) *Workflow {
	return &Workflow{sched: sched, dir: dir, logger: logger, now: time.Now}
}

// Apply advances the draft, checks the new choice against the directory, and
// refreshes availability when the date changes. Chosen times must be
// available according to the latest fetch; the store still has the final
// word. On error the draft comes back unchanged, positioned at its first
// incomplete step.
func (w *Workflow) Apply(ctx context.Context, caller appointment.Caller, d Draft, step Step, in Input) (Draft, error) {
	d.Step = d.FirstIncomplete()

	now, err := w.localNow(ctx, d, step)
	if err != nil {
		return d, err
	}
	next, err := Advance(d, step, in, now)
	if err != nil {
		return d, err
	}
	if err := w.checkDirectory(ctx, next, step); err != nil {
		return d, err
	}
	if step != StepSlot {
		return next, nil
	}

	if next.Date != "" && (next.Date != d.Date || len(next.Slots) == 0) {
		slots, err := w.fetch(ctx, caller, next)
		if err != nil {
			return d, err
		}
		if len(slots) == 0 {
			return d, &appointment.ValidationError{Field: "date", Message: "doctor is not working on this date"}
		}
		next.Slots = slots
	}

	if next.Time != "" {
		slot, ok := findSlot(next.Slots, next.Time)
		switch {
		case !ok:
			return d, &appointment.ValidationError{Field: "time", Message: "is not a slot start"}
		case !slot.Available:
			return d, &appointment.ValidationError{Field: "time", Message: "slot is not available"}
		}
	}
	return next, nil
}

// localNow is the current time in the doctor's zone for the slot step, so
// that "today" means the doctor's today.
func (w *Workflow) localNow(ctx context.Context, d Draft, step Step) (time.Time, error) {
	now := w.now()
	if step != StepSlot || d.DoctorID == "" {
		return now, nil
	}
	loc, err := w.sched.DoctorLocation(ctx, d.DoctorID)
	if err != nil {
		return now, err
	}
	return now.In(loc), nil
}

// checkDirectory validates the choice made at step against the advanced
// draft.
func (w *Workflow) checkDirectory(ctx context.Context, d Draft, step Step) error {
	if w.dir == nil {
		return nil
	}
	switch step {
	case StepPatient:
		if !w.dir.HasPatient(ctx, d.PatientID) {
			return &appointment.ValidationError{Field: "patientId", Message: "unknown patient"}
		}
	case StepSpecialty:
		if !w.dir.HasSpecialty(ctx, d.SpecialtyID) {
			return &appointment.ValidationError{Field: "specialtyId", Message: "unknown specialty"}
		}
	case StepDoctor:
		if !w.dir.DoctorPractices(ctx, d.DoctorID, d.SpecialtyID) {
			return &appointment.ValidationError{Field: "doctorId", Message: "doctor does not practise this specialty"}
		}
	}
	return nil
}

// Submit creates the appointment described by a complete draft. The slot
// is looked up in availability fetched now for the draft's doctor and date;
// the slots carried in the draft are not trusted.
//
// On a slot conflict the draft goes back to the slot step with the time
// cleared and availability re-fetched. On a validation error it goes back to
// the step owning the field. On success it is marked done.
func (w *Workflow) Submit(ctx context.Context, caller appointment.Caller, d Draft) (Draft, *appointment.Appointment, error) {
	d.Step = d.FirstIncomplete()
	if _, err := Advance(d, StepSubmit, Input{}, w.now()); err != nil {
		return d, nil, err
	}

	slots, err := w.fetch(ctx, caller, d)
	if err != nil {
		return d, nil, err
	}
	d.Slots = slots
	slot, ok := findSlot(slots, d.Time)
	if !ok {
		d.Time = ""
		d.Step = StepSlot
		return d, nil, &appointment.ValidationError{Field: "time", Message: "is not a slot start"}
	}

	appt, err := w.sched.Create(ctx, caller, appointment.CreateRequest{
		PatientID:   d.PatientID,
		DoctorID:    d.DoctorID,
		SpecialtyID: d.SpecialtyID,
		ScheduledAt: slot.Start,
		Reason:      d.Reason,
		Priority:    d.Priority,
		Notes:       d.Notes,
	})

	var conflict *appointment.SlotConflictError
	var invalid *appointment.ValidationError
	switch {
	case errors.As(err, &conflict):
		d.Time = ""
		d.Step = StepSlot
		if slots, ferr := w.fetch(ctx, caller, d); ferr == nil {
			d.Slots = slots
		} else {
			d.Slots = nil
			w.logger.Warn().Err(ferr).Str("doctor_id", d.DoctorID).Msg("refresh availability after conflict")
		}
		return d, nil, err
	case errors.As(err, &invalid):
		d.Step = StepForField(invalid.Field)
		return d, nil, err
	case err != nil:
		return d, nil, err
	}

	d.AppointmentID = &appt.ID
	d.Step = StepDone
	return d, appt, nil
}

func (w *Workflow) fetch(ctx context.Context, caller appointment.Caller, d Draft) ([]appointment.Slot, error) {
	day, err := time.Parse(time.DateOnly, d.Date)
	if err != nil {
		return nil, &appointment.ValidationError{Field: "date", Message: "must be YYYY-MM-DD"}
	}
	slots, err := w.sched.Availability(ctx, caller, d.DoctorID, day)
	if err != nil {
		return nil, fmt.Errorf("availability for %s on %s: %w", d.DoctorID, d.Date, err)
	}
	return slots, nil
}

func findSlot(slots []appointment.Slot, tod string) (appointment.Slot, bool) {
	for _, s := range slots {
		if s.Start.Format(timeOfDay) == tod {
			return s, true
		}
	}
	return appointment.Slot{}, false
}
