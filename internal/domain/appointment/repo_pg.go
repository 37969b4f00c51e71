package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// exclusionViolation is the SQLSTATE raised by the appointment_no_overlap
// constraint.
const exclusionViolation = "23P01"

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type appointmentRepoPG struct{ pool *pgxpool.Pool }

func NewAppointmentRepoPG(pool *pgxpool.Pool) Repository { return &appointmentRepoPG{pool: pool} }

const apptCols = `id, patient_id, doctor_id, specialty_id, scheduled_at, duration_minutes,
	status, reason, priority, notes, cancel_reason, created_at, updated_at`

func (r *appointmentRepoPG) scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var status, priority string
	err := row.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.SpecialtyID, &a.ScheduledAt, &a.DurationMinutes,
		&status, &a.Reason, &priority, &a.Notes, &a.CancelReason, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.Status = Status(status)
	a.Priority = Priority(priority)
	return &a, nil
}

func (r *appointmentRepoPG) scanAll(rows pgx.Rows) ([]*Appointment, error) {
	defer rows.Close()
	items := []*Appointment{}
	for rows.Next() {
		a, err := r.scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func activeStatusStrings() []string {
	out := make([]string, len(ActiveStatuses))
	for i, s := range ActiveStatuses {
		out[i] = string(s)
	}
	return out
}

func (r *appointmentRepoPG) FindActiveByDoctorAndDate(ctx context.Context, doctorID string, day time.Time) ([]*Appointment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+apptCols+` FROM appointment
		WHERE doctor_id = $1 AND status = ANY($2) AND scheduled_at < $4 AND ends_at > $3
		ORDER BY scheduled_at ASC, id ASC`,
		doctorID, activeStatusStrings(), day, day.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("query active appointments: %w", err)
	}
	return r.scanAll(rows)
}

// Create serialises creates per doctor with a transaction-scoped advisory
// lock, re-checks for overlap, then inserts. The EXCLUDE constraint on the
// table backs this up if a writer bypasses the lock.
func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, a.DoctorID); err != nil {
		return fmt.Errorf("lock doctor schedule: %w", err)
	}

	taken, err := r.overlapExists(ctx, tx, a)
	if err != nil {
		return err
	}
	if taken {
		return ErrSlotTaken
	}

	a.ID = uuid.New()
	_, err = tx.Exec(ctx, `
		INSERT INTO appointment (id, patient_id, doctor_id, specialty_id, scheduled_at, ends_at,
			duration_minutes, status, reason, priority, notes, cancel_reason, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		a.ID, a.PatientID, a.DoctorID, a.SpecialtyID, a.ScheduledAt, a.EndsAt(),
		a.DurationMinutes, string(a.Status), a.Reason, string(a.Priority), a.Notes, a.CancelReason,
		a.CreatedAt, a.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == exclusionViolation {
			return ErrSlotTaken
		}
		return fmt.Errorf("insert appointment: %w", err)
	}
	return tx.Commit(ctx)
}

func (r *appointmentRepoPG) overlapExists(ctx context.Context, q queryable, a *Appointment) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx, `SELECT EXISTS (
		SELECT 1 FROM appointment
		WHERE doctor_id = $1 AND status = ANY($2) AND scheduled_at < $4 AND ends_at > $3)`,
		a.DoctorID, activeStatusStrings(), a.ScheduledAt, a.EndsAt()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check overlap: %w", err)
	}
	return exists, nil
}

func (r *appointmentRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, expected Status, change StatusChange) (*Appointment, error) {
	a, err := r.scanAppointment(r.pool.QueryRow(ctx, `
		UPDATE appointment SET status = $3,
			cancel_reason = COALESCE($4, cancel_reason),
			notes = COALESCE($5, notes),
			updated_at = $6
		WHERE id = $1 AND status = $2
		RETURNING `+apptCols,
		id, string(expected), string(change.To), change.CancelReason, change.Notes, change.UpdatedAt))
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("update appointment status: %w", err)
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM appointment WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check appointment: %w", err)
	}
	if !exists {
		return nil, ErrNotFound
	}
	return nil, ErrStatusChanged
}

func (r *appointmentRepoPG) FindByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := r.scanAppointment(r.pool.QueryRow(ctx, `SELECT `+apptCols+` FROM appointment WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

func (r *appointmentRepoPG) Query(ctx context.Context, f Filter, limit, offset int) ([]*Appointment, int, error) {
	where, args := f.sqlWhere()

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM appointment`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}

	idx := len(args) + 1
	query := `SELECT ` + apptCols + ` FROM appointment` + where +
		fmt.Sprintf(` ORDER BY scheduled_at ASC, id ASC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query appointments: %w", err)
	}
	items, err := r.scanAll(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// sqlWhere renders the filter as a WHERE clause with positional arguments.
func (f Filter) sqlWhere() (string, []interface{}) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1

	if f.DoctorIDs != nil {
		where += fmt.Sprintf(` AND doctor_id = ANY($%d)`, idx)
		args = append(args, f.DoctorIDs)
		idx++
	}
	if f.Status != "" {
		where += fmt.Sprintf(` AND status = $%d`, idx)
		args = append(args, string(f.Status))
		idx++
	}
	if f.SpecialtyID != "" {
		where += fmt.Sprintf(` AND specialty_id = $%d`, idx)
		args = append(args, f.SpecialtyID)
		idx++
	}
	if !f.From.IsZero() {
		where += fmt.Sprintf(` AND scheduled_at >= $%d`, idx)
		args = append(args, f.From)
		idx++
	}
	if !f.To.IsZero() {
		where += fmt.Sprintf(` AND scheduled_at < $%d`, idx)
		args = append(args, f.To)
		idx++
	}
	if f.Match != nil {
		where += fmt.Sprintf(` AND (patient_id = ANY($%d) OR doctor_id = ANY($%d) OR specialty_id = ANY($%d))`, idx, idx+1, idx+2)
		args = append(args, nonNil(f.Match.PatientIDs), nonNil(f.Match.DoctorIDs), nonNil(f.Match.SpecialtyIDs))
	}
	return where, args
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
