package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// activeStatuses is inlined into every overlap guard; keep it in sync with
// AppointmentStatus.IsTerminal.
const activeStatuses = `('planned', 'confirmed', 'in_progress')`

const appointmentColumns = `id, patient_id, practitioner_id, start_time, duration_min, status, motif, notes, reminded_at, created_at, updated_at`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var email *string

	err := row.Scan(
		&p.ID,
		&p.FullName,
		&email,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	p.Email = email
	return &p, nil
}

func scanPractitioner(row pgx.Row) (*Practitioner, error) {
	var p Practitioner
	var specialty *string

	err := row.Scan(
		&p.ID,
		&p.FullName,
		&specialty,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPractitionerNotFound
		}
		return nil, err
	}

	p.Specialty = specialty
	return &p, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var remindedAt *time.Time

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.PractitionerID,
		&a.StartTime,
		&a.DurationMin,
		&a.Status,
		&a.Motif,
		&a.Notes,
		&remindedAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.RemindedAt = remindedAt
	return &a, nil
}

// Interface methods

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, full_name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetPractitionerByID(ctx context.Context, id uuid.UUID) (*Practitioner, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, full_name, specialty, created_at, updated_at
		FROM practitioners
		WHERE id = $1
	`, id)
	return scanPractitioner(row)
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListActiveBetween(ctx context.Context, practitionerID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE practitioner_id = $1
		  AND status IN `+activeStatuses+`
		  AND start_time < $3
		  AND start_time + (duration_min * interval '1 minute') > $2
		ORDER BY start_time
	`, practitionerID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) CreateIfSlotFree(ctx context.Context, a Appointment) (*Appointment, error) {
	id := a.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	// The NOT EXISTS guard is the authoritative double-booking check: two
	// concurrent inserts for overlapping windows cannot both pass it.
	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, practitioner_id, start_time, duration_min, status, motif, notes, created_at, updated_at)
		SELECT $1, $2, $3, $4, $5, 'planned', $6, $7, now(), now()
		WHERE NOT EXISTS (
			SELECT 1 FROM appointments
			WHERE practitioner_id = $3
			  AND status IN `+activeStatuses+`
			  AND start_time < $4 + ($5 * interval '1 minute')
			  AND start_time + (duration_min * interval '1 minute') > $4
		)
		RETURNING `+appointmentColumns+`
	`, id, a.PatientID, a.PractitionerID, a.StartTime, a.DurationMin, a.Motif, a.Notes)

	created, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrSlotTaken
		}
		return nil, err
	}
	return created, nil
}

func (r *PgRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from)

	return scanAppointment(row)
}

func (r *PgRepository) Reschedule(ctx context.Context, id uuid.UUID, start time.Time, durationMin int) (*Appointment, error) {
	// Same overlap guard as CreateIfSlotFree, excluding the row being moved.
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments a
		SET start_time = $2,
		    duration_min = $3,
		    updated_at = now()
		WHERE a.id = $1
		  AND a.status IN `+activeStatuses+`
		  AND NOT EXISTS (
			SELECT 1 FROM appointments b
			WHERE b.practitioner_id = a.practitioner_id
			  AND b.id <> a.id
			  AND b.status IN `+activeStatuses+`
			  AND b.start_time < $2 + ($3 * interval '1 minute')
			  AND b.start_time + (b.duration_min * interval '1 minute') > $2
		  )
		RETURNING `+appointmentColumns+`
	`, id, start, durationMin)

	moved, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrSlotTaken
		}
		return nil, err
	}
	return moved, nil
}

func (r *PgRepository) UpdateDetails(ctx context.Context, id uuid.UUID, motif, notes *string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET motif = COALESCE($2, motif),
		    notes = COALESCE($3, notes),
		    updated_at = now()
		WHERE id = $1
		RETURNING `+appointmentColumns+`
	`, id, motif, notes)

	return scanAppointment(row)
}

func (r *PgRepository) FindDueReminders(ctx context.Context, from, to time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status IN ('planned', 'confirmed')
		  AND reminded_at IS NULL
		  AND start_time >= $1
		  AND start_time < $2
		ORDER BY start_time
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) MarkReminded(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET reminded_at = $2
		WHERE id = $1
		  AND reminded_at IS NULL
	`, id, at)
	if err != nil {
		return fmt.Errorf("mark reminded: %w", err)
	}
	return nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
