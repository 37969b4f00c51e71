package appointment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is an in-process Repository. A single mutex serialises the
// conflict check and insert so concurrent creates cannot both win.
type MemoryRepository struct {
	mu    sync.RWMutex
	appts map[uuid.UUID]*Appointment
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{appts: make(map[uuid.UUID]*Appointment)}
}

func (m *MemoryRepository) FindActiveByDoctorAndDate(_ context.Context, doctorID string, day time.Time) ([]*Appointment, error) {
	end := day.AddDate(0, 0, 1)

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Appointment
	for _, a := range m.appts {
		if a.DoctorID != doctorID || !a.Status.Active() {
			continue
		}
		if a.Overlaps(day, end) {
			out = append(out, clone(a))
		}
	}
	sortAppointments(out)
	return out, nil
}

func (m *MemoryRepository) Create(_ context.Context, a *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.appts {
		if existing.DoctorID == a.DoctorID && existing.Status.Active() &&
			existing.Overlaps(a.ScheduledAt, a.EndsAt()) {
			return ErrSlotTaken
		}
	}

	a.ID = uuid.New()
	m.appts[a.ID] = clone(a)
	return nil
}

func (m *MemoryRepository) UpdateStatus(_ context.Context, id uuid.UUID, expected Status, change StatusChange) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.appts[id]
	if !ok {
		return nil, ErrNotFound
	}
	if a.Status != expected {
		return nil, ErrStatusChanged
	}
	a.Status = change.To
	if change.CancelReason != nil {
		a.CancelReason = strPtr(*change.CancelReason)
	}
	if change.Notes != nil {
		a.Notes = strPtr(*change.Notes)
	}
	a.UpdatedAt = change.UpdatedAt
	return clone(a), nil
}

func (m *MemoryRepository) FindByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.appts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(a), nil
}

func (m *MemoryRepository) Query(_ context.Context, f Filter, limit, offset int) ([]*Appointment, int, error) {
	m.mu.RLock()
	var matched []*Appointment
	for _, a := range m.appts {
		if f.matches(a) {
			matched = append(matched, clone(a))
		}
	}
	m.mu.RUnlock()

	sortAppointments(matched)
	total := len(matched)
	if offset >= total {
		return []*Appointment{}, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

// matches evaluates the filter in memory; the SQL stores express the same
// predicate in their WHERE clauses.
func (f Filter) matches(a *Appointment) bool {
	if f.DoctorIDs != nil && !contains(f.DoctorIDs, a.DoctorID) {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.SpecialtyID != "" && a.SpecialtyID != f.SpecialtyID {
		return false
	}
	if !f.From.IsZero() && a.ScheduledAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !a.ScheduledAt.Before(f.To) {
		return false
	}
	if f.Match != nil {
		return contains(f.Match.PatientIDs, a.PatientID) ||
			contains(f.Match.DoctorIDs, a.DoctorID) ||
			contains(f.Match.SpecialtyIDs, a.SpecialtyID)
	}
	return true
}

func sortAppointments(items []*Appointment) {
	sort.Slice(items, func(i, j int) bool {
		if !items[i].ScheduledAt.Equal(items[j].ScheduledAt) {
			return items[i].ScheduledAt.Before(items[j].ScheduledAt)
		}
		return items[i].ID.String() < items[j].ID.String()
	})
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func clone(a *Appointment) *Appointment {
	c := *a
	if a.Notes != nil {
		c.Notes = strPtr(*a.Notes)
	}
	if a.CancelReason != nil {
		c.CancelReason = strPtr(*a.CancelReason)
	}
	return &c
}
