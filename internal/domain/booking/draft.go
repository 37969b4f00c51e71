package booking

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medsched/scheduler/internal/domain/appointment"
)

// Step is a stage of the booking flow.
type Step string

const (
	StepPatient   Step = "patient"
	StepSpecialty Step = "specialty"
	StepDoctor    Step = "doctor"
	StepSlot      Step = "slot"
	StepDetails   Step = "details"
	StepSubmit    Step = "submit"
	StepDone      Step = "done"
)

var stepOrder = []Step{StepPatient, StepSpecialty, StepDoctor, StepSlot, StepDetails, StepSubmit, StepDone}

func (s Step) index() int {
	for i, st := range stepOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// Valid reports whether s is a known step.
func (s Step) Valid() bool { return s.index() >= 0 }

const timeOfDay = "15:04"

// Draft is the in-progress booking. It is a plain value: every change goes
// through Advance, which returns a new Draft. Date is a calendar date
// (YYYY-MM-DD) in the doctor's time zone and Time a slot start (HH:MM) on it.
// Slots caches the last availability fetched for DoctorID on Date.
type Draft struct {
	Step          Step                 `json:"step"`
	PatientID     string               `json:"patientId,omitempty"`
	SpecialtyID   string               `json:"specialtyId,omitempty"`
	DoctorID      string               `json:"doctorId,omitempty"`
	Date          string               `json:"date,omitempty"`
	Time          string               `json:"time,omitempty"`
	Reason        string               `json:"reason,omitempty"`
	Priority      appointment.Priority `json:"priority,omitempty"`
	Notes         *string              `json:"notes,omitempty"`
	Slots         []appointment.Slot   `json:"slots,omitempty"`
	AppointmentID *uuid.UUID           `json:"appointmentId,omitempty"`
}

// Input carries the values supplied for one step. Only the fields owned by
// the step being advanced are read.
type Input struct {
	PatientID   string               `json:"patientId"`
	SpecialtyID string               `json:"specialtyId"`
	DoctorID    string               `json:"doctorId"`
	Date        string               `json:"date"`
	Time        string               `json:"time"`
	Reason      string               `json:"reason"`
	Priority    appointment.Priority `json:"priority"`
	Notes       *string              `json:"notes"`
}

// New returns an empty draft positioned at the first step.
func New() Draft {
	return Draft{Step: StepPatient}
}

// FirstIncomplete returns the earliest step whose data is missing.
func (d Draft) FirstIncomplete() Step {
	switch {
	case d.AppointmentID != nil:
		return StepDone
	case d.PatientID == "":
		return StepPatient
	case d.SpecialtyID == "":
		return StepSpecialty
	case d.DoctorID == "":
		return StepDoctor
	case d.Date == "" || d.Time == "":
		return StepSlot
	case d.Reason == "":
		return StepDetails
	}
	return StepSubmit
}

// StepForField returns the step that owns an appointment field, so a
// rejected submit can send the user back to fix it.
func StepForField(field string) Step {
	switch field {
	case "patientId":
		return StepPatient
	case "specialtyId":
		return StepSpecialty
	case "doctorId":
		return StepDoctor
	case "scheduledAt", "date", "time", "durationMinutes":
		return StepSlot
	case "reason", "priority", "notes":
		return StepDetails
	}
	return StepSubmit
}

func (d *Draft) clearSlot() {
	d.Date = ""
	d.Time = ""
	d.Slots = nil
}

// Advance applies in to step and returns the updated draft. Changing an
// earlier choice clears the choices that depended on it:
//
//	specialty -> doctor, date, time
//	doctor    -> date, time
//	date      -> time
//
// A step past the first incomplete one cannot be advanced. On error the draft
// is returned unchanged. A date before the calendar date of now, read in
// now's location, is rejected; callers pass now in the doctor's zone.
func Advance(d Draft, step Step, in Input, now time.Time) (Draft, error) {
	if d.AppointmentID != nil {
		return d, &appointment.ValidationError{Field: "step", Message: "booking already submitted"}
	}
	if !step.Valid() || step == StepDone {
		return d, &appointment.ValidationError{Field: "step", Message: fmt.Sprintf("unknown step %q", step)}
	}
	if step.index() > d.FirstIncomplete().index() {
		return d, &appointment.ValidationError{
			Field:   "step",
			Message: fmt.Sprintf("complete %s before %s", d.FirstIncomplete(), step),
		}
	}

	next := d
	switch step {
	case StepPatient:
		id := strings.TrimSpace(in.PatientID)
		if id == "" {
			return d, &appointment.ValidationError{Field: "patientId", Message: "is required"}
		}
		next.PatientID = id

	case StepSpecialty:
		id := strings.TrimSpace(in.SpecialtyID)
		if id == "" {
			return d, &appointment.ValidationError{Field: "specialtyId", Message: "is required"}
		}
		if id != next.SpecialtyID {
			next.SpecialtyID = id
			next.DoctorID = ""
			next.clearSlot()
		}

	case StepDoctor:
		id := strings.TrimSpace(in.DoctorID)
		if id == "" {
			return d, &appointment.ValidationError{Field: "doctorId", Message: "is required"}
		}
		if id != next.DoctorID {
			next.DoctorID = id
			next.clearSlot()
		}

	case StepSlot:
		if err := advanceSlot(&next, in, now); err != nil {
			return d, err
		}

	case StepDetails:
		reason := strings.TrimSpace(in.Reason)
		if reason == "" {
			return d, &appointment.ValidationError{Field: "reason", Message: "is required"}
		}
		priority := in.Priority
		if priority == "" {
			priority = appointment.PriorityNormal
		}
		if !priority.Valid() {
			return d, &appointment.ValidationError{Field: "priority", Message: "must be one of normal, high, urgent"}
		}
		next.Reason = reason
		next.Priority = priority
		next.Notes = in.Notes

	case StepSubmit:
		if first := d.FirstIncomplete(); first != StepSubmit {
			return d, &appointment.ValidationError{Field: "step", Message: fmt.Sprintf("complete %s before submitting", first)}
		}
	}

	next.Step = next.FirstIncomplete()
	return next, nil
}

func advanceSlot(d *Draft, in Input, now time.Time) error {
	date := strings.TrimSpace(in.Date)
	tod := strings.TrimSpace(in.Time)
	if date == "" && tod == "" {
		return &appointment.ValidationError{Field: "date", Message: "is required"}
	}

	if date != "" {
		day, err := time.Parse(time.DateOnly, date)
		if err != nil {
			return &appointment.ValidationError{Field: "date", Message: "must be YYYY-MM-DD"}
		}
		if day.Format(time.DateOnly) < now.Format(time.DateOnly) {
			return &appointment.ValidationError{Field: "date", Message: "is in the past"}
		}
		if date != d.Date {
			d.Date = date
			d.Time = ""
			d.Slots = nil
		}
	}

	if tod != "" {
		if d.Date == "" {
			return &appointment.ValidationError{Field: "date", Message: "choose a date before a time"}
		}
		if _, err := time.Parse(timeOfDay, tod); err != nil {
			return &appointment.ValidationError{Field: "time", Message: "must be HH:MM"}
		}
		d.Time = tod
	}
	return nil
}
