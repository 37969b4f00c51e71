package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistent store behind the lifecycle controller.
//
// Create must check for overlapping active appointments of the same doctor and
// insert in one atomic step, returning ErrSlotTaken on conflict. UpdateStatus
// must only apply when the stored status still equals expected, returning
// ErrStatusChanged otherwise.
type Repository interface {
	// FindActiveByDoctorAndDate returns the doctor's active appointments that
	// overlap the 24h day starting at day (a local midnight).
	FindActiveByDoctorAndDate(ctx context.Context, doctorID string, day time.Time) ([]*Appointment, error)
	Create(ctx context.Context, a *Appointment) error
	UpdateStatus(ctx context.Context, id uuid.UUID, expected Status, change StatusChange) (*Appointment, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// Query returns a page ordered by scheduled_at then id, plus the total
	// number of matching rows.
	Query(ctx context.Context, f Filter, limit, offset int) ([]*Appointment, int, error)
}
