package appointment

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusNoShow     Status = "no_show"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []Status{
	StatusPending, StatusConfirmed, StatusInProgress,
	StatusCompleted, StatusCancelled, StatusNoShow,
}

// ActiveStatuses count against slot availability.
var ActiveStatuses = []Status{StatusPending, StatusConfirmed, StatusInProgress}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusInProgress,
		StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Active reports whether the status holds a slot.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusConfirmed || s == StatusInProgress
}

// Terminal reports whether no further transition is defined from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

// Priority is the triage priority attached at booking time.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Appointment maps to the appointment table.
type Appointment struct {
	ID              uuid.UUID `db:"id" json:"id"`
	PatientID       string    `db:"patient_id" json:"patientId"`
	DoctorID        string    `db:"doctor_id" json:"doctorId"`
	SpecialtyID     string    `db:"specialty_id" json:"specialtyId"`
	ScheduledAt     time.Time `db:"scheduled_at" json:"scheduledAt"`
	DurationMinutes int       `db:"duration_minutes" json:"durationMinutes"`
	Status          Status    `db:"status" json:"status"`
	Reason          string    `db:"reason" json:"reason"`
	Priority        Priority  `db:"priority" json:"priority"`
	Notes           *string   `db:"notes" json:"notes,omitempty"`
	CancelReason    *string   `db:"cancel_reason" json:"cancelReason,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time `db:"updated_at" json:"updatedAt"`
}

// EndsAt returns the exclusive end of the appointment interval.
func (a *Appointment) EndsAt() time.Time {
	return a.ScheduledAt.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

// Overlaps reports whether the half-open interval [start, end) intersects the
// appointment's interval.
func (a *Appointment) Overlaps(start, end time.Time) bool {
	return overlaps(a.ScheduledAt, a.EndsAt(), start, end)
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// StatusChange is the payload of a compare-and-swap status update.
type StatusChange struct {
	To           Status
	CancelReason *string
	Notes        *string
	UpdatedAt    time.Time
}

// Filter narrows a repository query. Zero values mean "no constraint".
type Filter struct {
	// DoctorIDs restricts to the listed doctors; nil means all doctors.
	DoctorIDs   []string
	Status      Status
	SpecialtyID string
	From        time.Time
	To          time.Time
	// Match, when non-nil, keeps appointments whose patient, doctor or
	// specialty id appears in the corresponding set.
	Match *NameMatches
}

// NameMatches holds ids whose display names matched a free-text search.
type NameMatches struct {
	PatientIDs   []string
	DoctorIDs    []string
	SpecialtyIDs []string
}

// Empty reports whether nothing matched.
func (m *NameMatches) Empty() bool {
	return len(m.PatientIDs) == 0 && len(m.DoctorIDs) == 0 && len(m.SpecialtyIDs) == 0
}

func strPtr(s string) *string { return &s }

func strVal(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
