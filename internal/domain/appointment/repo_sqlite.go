package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// appointmentRow is the gorm model for the SQLite store. Times are stored in
// UTC so that SQLite's text comparison orders them correctly.
type appointmentRow struct {
	ID              string    `gorm:"primaryKey;type:text"`
	PatientID       string    `gorm:"not null;index"`
	DoctorID        string    `gorm:"not null;index:idx_appointment_doctor_time"`
	SpecialtyID     string    `gorm:"not null;index"`
	ScheduledAt     time.Time `gorm:"not null;index:idx_appointment_doctor_time"`
	EndsAt          time.Time `gorm:"not null"`
	DurationMinutes int       `gorm:"not null"`
	Status          string    `gorm:"type:varchar(20);not null;index"`
	Reason          string    `gorm:"type:text;not null"`
	Priority        string    `gorm:"type:varchar(10);not null;default:'normal'"`
	Notes           *string   `gorm:"type:text"`
	CancelReason    *string   `gorm:"type:text"`
	CreatedAt       time.Time `gorm:"not null"`
	UpdatedAt       time.Time `gorm:"not null"`
}

func (appointmentRow) TableName() string { return "appointment" }

func toRow(a *Appointment) *appointmentRow {
	return &appointmentRow{
		ID:              a.ID.String(),
		PatientID:       a.PatientID,
		DoctorID:        a.DoctorID,
		SpecialtyID:     a.SpecialtyID,
		ScheduledAt:     a.ScheduledAt.UTC(),
		EndsAt:          a.EndsAt().UTC(),
		DurationMinutes: a.DurationMinutes,
		Status:          string(a.Status),
		Reason:          a.Reason,
		Priority:        string(a.Priority),
		Notes:           a.Notes,
		CancelReason:    a.CancelReason,
		CreatedAt:       a.CreatedAt.UTC(),
		UpdatedAt:       a.UpdatedAt.UTC(),
	}
}

func (r *appointmentRow) toAppointment() (*Appointment, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, fmt.Errorf("stored appointment id %q: %w", r.ID, err)
	}
	return &Appointment{
		ID:              id,
		PatientID:       r.PatientID,
		DoctorID:        r.DoctorID,
		SpecialtyID:     r.SpecialtyID,
		ScheduledAt:     r.ScheduledAt,
		DurationMinutes: r.DurationMinutes,
		Status:          Status(r.Status),
		Reason:          r.Reason,
		Priority:        Priority(r.Priority),
		Notes:           r.Notes,
		CancelReason:    r.CancelReason,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}, nil
}

type appointmentRepoGorm struct{ db *gorm.DB }

// NewAppointmentRepoGorm migrates the appointment table and returns a
// Repository backed by gorm. Atomic create relies on the database serialising
// write transactions (see db.OpenSQLite).
func NewAppointmentRepoGorm(db *gorm.DB) (Repository, error) {
	if err := db.AutoMigrate(&appointmentRow{}); err != nil {
		return nil, fmt.Errorf("migrate appointment table: %w", err)
	}
	return &appointmentRepoGorm{db: db}, nil
}

func (r *appointmentRepoGorm) activeOverlap(tx *gorm.DB, doctorID string, start, end time.Time) *gorm.DB {
	return tx.Model(&appointmentRow{}).
		Where("doctor_id = ? AND status IN ? AND scheduled_at < ? AND ends_at > ?",
			doctorID, activeStatusStrings(), end.UTC(), start.UTC())
}

func (r *appointmentRepoGorm) FindActiveByDoctorAndDate(ctx context.Context, doctorID string, day time.Time) ([]*Appointment, error) {
	var rows []appointmentRow
	err := r.activeOverlap(r.db.WithContext(ctx), doctorID, day, day.AddDate(0, 0, 1)).
		Order("scheduled_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query active appointments: %w", err)
	}
	return rowsToAppointments(rows)
}

func (r *appointmentRepoGorm) Create(ctx context.Context, a *Appointment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := r.activeOverlap(tx, a.DoctorID, a.ScheduledAt, a.EndsAt()).Count(&n).Error; err != nil {
			return fmt.Errorf("check overlap: %w", err)
		}
		if n > 0 {
			return ErrSlotTaken
		}
		a.ID = uuid.New()
		if err := tx.Create(toRow(a)).Error; err != nil {
			return fmt.Errorf("insert appointment: %w", err)
		}
		return nil
	})
}

func (r *appointmentRepoGorm) UpdateStatus(ctx context.Context, id uuid.UUID, expected Status, change StatusChange) (*Appointment, error) {
	var updated *Appointment
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fields := map[string]interface{}{
			"status":     string(change.To),
			"updated_at": change.UpdatedAt.UTC(),
		}
		if change.CancelReason != nil {
			fields["cancel_reason"] = *change.CancelReason
		}
		if change.Notes != nil {
			fields["notes"] = *change.Notes
		}

		res := tx.Model(&appointmentRow{}).
			Where("id = ? AND status = ?", id.String(), string(expected)).
			Updates(fields)
		if res.Error != nil {
			return fmt.Errorf("update appointment status: %w", res.Error)
		}

		var row appointmentRow
		if err := tx.Where("id = ?", id.String()).First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("reload appointment: %w", err)
		}
		if res.RowsAffected == 0 {
			return ErrStatusChanged
		}

		a, err := row.toAppointment()
		if err != nil {
			return err
		}
		updated = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *appointmentRepoGorm) FindByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	var row appointmentRow
	if err := r.db.WithContext(ctx).Where("id = ?", id.String()).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find appointment: %w", err)
	}
	return row.toAppointment()
}

func (r *appointmentRepoGorm) Query(ctx context.Context, f Filter, limit, offset int) ([]*Appointment, int, error) {
	q := r.db.WithContext(ctx).Model(&appointmentRow{})
	if f.DoctorIDs != nil {
		q = q.Where("doctor_id IN ?", f.DoctorIDs)
	}
	if f.Status != "" {
		q = q.Where("status = ?", string(f.Status))
	}
	if f.SpecialtyID != "" {
		q = q.Where("specialty_id = ?", f.SpecialtyID)
	}
	if !f.From.IsZero() {
		q = q.Where("scheduled_at >= ?", f.From.UTC())
	}
	if !f.To.IsZero() {
		q = q.Where("scheduled_at < ?", f.To.UTC())
	}
	if f.Match != nil {
		q = q.Where("(patient_id IN ? OR doctor_id IN ? OR specialty_id IN ?)",
			nonNil(f.Match.PatientIDs), nonNil(f.Match.DoctorIDs), nonNil(f.Match.SpecialtyIDs))
	}

	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}

	var rows []appointmentRow
	if err := q.Order("scheduled_at ASC, id ASC").Limit(limit).Offset(offset).Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("query appointments: %w", err)
	}
	items, err := rowsToAppointments(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, int(total), nil
}

func rowsToAppointments(rows []appointmentRow) ([]*Appointment, error) {
	items := make([]*Appointment, 0, len(rows))
	for i := range rows {
		a, err := rows[i].toAppointment()
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, nil
}
