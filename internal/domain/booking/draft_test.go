package booking

import (
	"errors"
	"testing"
	"time"

	"github.com/medsched/scheduler/internal/domain/appointment"
)

var now = time.Date(2025, time.March, 3, 8, 0, 0, 0, time.UTC)

func mustAdvance(t *testing.T, d Draft, step Step, in Input) Draft {
	t.Helper()
	next, err := Advance(d, step, in, now)
	if err != nil {
		t.Fatalf("Advance(%s) error: %v", step, err)
	}
	return next
}

func completeDraft(t *testing.T) Draft {
	t.Helper()
	d := New()
	d = mustAdvance(t, d, StepPatient, Input{PatientID: "pat-1"})
	d = mustAdvance(t, d, StepSpecialty, Input{SpecialtyID: "cardio"})
	d = mustAdvance(t, d, StepDoctor, Input{DoctorID: "dr-1"})
	d = mustAdvance(t, d, StepSlot, Input{Date: "2025-03-04"})
	d = mustAdvance(t, d, StepSlot, Input{Time: "10:00"})
	d = mustAdvance(t, d, StepDetails, Input{Reason: "follow-up"})
	return d
}

func fieldOf(t *testing.T, err error) string {
	t.Helper()
	var ve *appointment.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	return ve.Field
}

func TestAdvance_HappyPath(t *testing.T) {
	d := completeDraft(t)
	if d.Step != StepSubmit {
		t.Errorf("expected submit step, got %s", d.Step)
	}
	if d.Priority != appointment.PriorityNormal {
		t.Errorf("expected default priority, got %s", d.Priority)
	}
	if _, err := Advance(d, StepSubmit, Input{}, now); err != nil {
		t.Errorf("complete draft should be submittable: %v", err)
	}
}

func TestAdvance_StepOrdering(t *testing.T) {
	d := New()
	_, err := Advance(d, StepDoctor, Input{DoctorID: "dr-1"}, now)
	if fieldOf(t, err) != "step" {
		t.Errorf("expected step error for skipping ahead")
	}

	d = mustAdvance(t, d, StepPatient, Input{PatientID: "pat-1"})
	if d.Step != StepSpecialty {
		t.Errorf("expected specialty next, got %s", d.Step)
	}
	if _, err := Advance(d, StepSubmit, Input{}, now); fieldOf(t, err) != "step" {
		t.Errorf("incomplete draft must not submit")
	}
	if _, err := Advance(d, StepDone, Input{}, now); fieldOf(t, err) != "step" {
		t.Errorf("done is not an advanceable step")
	}
}

func TestAdvance_Invalidation(t *testing.T) {
	tests := []struct {
		name     string
		step     Step
		in       Input
		wantDoc  string
		wantDate string
		wantTime string
		wantStep Step
	}{
		{"specialty change", StepSpecialty, Input{SpecialtyID: "derm"}, "", "", "", StepDoctor},
		{"same specialty", StepSpecialty, Input{SpecialtyID: "cardio"}, "dr-1", "2025-03-04", "10:00", StepSubmit},
		{"doctor change", StepDoctor, Input{DoctorID: "dr-2"}, "dr-2", "", "", StepSlot},
		{"date change", StepSlot, Input{Date: "2025-03-05"}, "dr-1", "2025-03-05", "", StepSlot},
		{"same date", StepSlot, Input{Date: "2025-03-04"}, "dr-1", "2025-03-04", "10:00", StepSubmit},
		{"time change", StepSlot, Input{Time: "11:30"}, "dr-1", "2025-03-04", "11:30", StepSubmit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := mustAdvance(t, completeDraft(t), tt.step, tt.in)
			if d.DoctorID != tt.wantDoc || d.Date != tt.wantDate || d.Time != tt.wantTime {
				t.Errorf("got doctor=%q date=%q time=%q", d.DoctorID, d.Date, d.Time)
			}
			if d.Step != tt.wantStep {
				t.Errorf("expected step %s, got %s", tt.wantStep, d.Step)
			}
			if d.Reason != "follow-up" {
				t.Error("details must survive slot changes")
			}
		})
	}
}

func TestAdvance_InvalidInputLeavesDraft(t *testing.T) {
	base := completeDraft(t)
	tests := []struct {
		name  string
		step  Step
		in    Input
		field string
	}{
		{"blank patient", StepPatient, Input{PatientID: "  "}, "patientId"},
		{"blank specialty", StepSpecialty, Input{}, "specialtyId"},
		{"blank doctor", StepDoctor, Input{}, "doctorId"},
		{"no date or time", StepSlot, Input{}, "date"},
		{"bad date", StepSlot, Input{Date: "04/03/2025"}, "date"},
		{"past date", StepSlot, Input{Date: "2025-03-02"}, "date"},
		{"bad time", StepSlot, Input{Time: "25:00"}, "time"},
		{"blank reason", StepDetails, Input{Reason: " "}, "reason"},
		{"bad priority", StepDetails, Input{Reason: "x", Priority: "later"}, "priority"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Advance(base, tt.step, tt.in, now)
			if fieldOf(t, err) != tt.field {
				t.Errorf("expected field %s, got %v", tt.field, err)
			}
			if got.DoctorID != base.DoctorID || got.Date != base.Date || got.Time != base.Time || got.Step != base.Step {
				t.Errorf("draft changed on invalid input: %+v", got)
			}
		})
	}
}

func TestAdvance_TimeNeedsDate(t *testing.T) {
	d := New()
	d = mustAdvance(t, d, StepPatient, Input{PatientID: "pat-1"})
	d = mustAdvance(t, d, StepSpecialty, Input{SpecialtyID: "cardio"})
	d = mustAdvance(t, d, StepDoctor, Input{DoctorID: "dr-1"})

	if _, err := Advance(d, StepSlot, Input{Time: "10:00"}, now); fieldOf(t, err) != "date" {
		t.Error("expected date error when choosing a time first")
	}
	d = mustAdvance(t, d, StepSlot, Input{Date: "2025-03-04", Time: "10:00"})
	if d.Step != StepDetails {
		t.Errorf("expected details after choosing date and time together, got %s", d.Step)
	}
}

func TestStepForField(t *testing.T) {
	cases := map[string]Step{
		"patientId":   StepPatient,
		"specialtyId": StepSpecialty,
		"doctorId":    StepDoctor,
		"scheduledAt": StepSlot,
		"reason":      StepDetails,
		"other":       StepSubmit,
	}
	for field, want := range cases {
		if got := StepForField(field); got != want {
			t.Errorf("StepForField(%q) = %s, want %s", field, got, want)
		}
	}
}
