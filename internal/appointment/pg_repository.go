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

	"github.com/hackgods/clinic-appointment-scheduling/internal/db"
)

const (
	pgUniqueViolation    = "23505"
	pgExclusionViolation = "23P01"

	doctorOverlapConstraint  = "appointments_no_doctor_overlap"
	patientOverlapConstraint = "appointments_no_patient_overlap"
)

const appointmentColumns = `id, patient_id, clinic_id, doctor_id, specialty, type,
	appointment_date, duration, appointment_end_date, status, created_at, updated_at`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.ClinicID,
		&a.DoctorID,
		&a.Specialty,
		&a.Type,
		&a.AppointmentDate,
		&a.Duration,
		&a.AppointmentEndDate,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
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

// translateWriteError turns constraint violations into domain errors. The
// exclusion constraints are the storage-level guard against two concurrent
// bookings that both passed validation.
func translateWriteError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgExclusionViolation:
		switch pgErr.ConstraintName {
		case doctorOverlapConstraint:
			return ErrDoctorConflict
		case patientOverlapConstraint:
			return ErrPatientConflict
		}
	case pgUniqueViolation:
		return ErrAppointmentExists
	}
	return err
}

// Interface methods

func (r *PgRepository) Create(ctx context.Context, a *Appointment) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, clinic_id, doctor_id, specialty, type,
			appointment_date, duration, appointment_end_date, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())
		RETURNING `+appointmentColumns,
		a.ID, a.PatientID, a.ClinicID, a.DoctorID, a.Specialty, a.Type,
		a.AppointmentDate, a.Duration, a.AppointmentEndDate, a.Status)

	created, err := scanAppointment(row)
	if err != nil {
		return nil, translateWriteError(err)
	}
	return created, nil
}

func (r *PgRepository) CreateMany(ctx context.Context, as []*Appointment) error {
	if len(as) == 0 {
		return nil
	}

	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, a := range as {
			batch.Queue(`
				INSERT INTO appointments (id, patient_id, clinic_id, doctor_id, specialty, type,
					appointment_date, duration, appointment_end_date, status, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())
			`, a.ID, a.PatientID, a.ClinicID, a.DoctorID, a.Specialty, a.Type,
				a.AppointmentDate, a.Duration, a.AppointmentEndDate, a.Status)
		}

		results := tx.SendBatch(ctx, batch)
		for i := range as {
			if _, err := results.Exec(); err != nil {
				_ = results.Close()
				return fmt.Errorf("insert appointment %s: %w", as[i].ID, translateWriteError(err))
			}
		}
		return results.Close()
	})
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		ORDER BY appointment_date
	`, patientID)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) Update(ctx context.Context, a *Appointment, prev Status) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET patient_id = $2,
		    clinic_id = $3,
		    doctor_id = $4,
		    specialty = $5,
		    type = $6,
		    appointment_date = $7,
		    duration = $8,
		    appointment_end_date = $9,
		    status = $10,
		    updated_at = now()
		WHERE id = $1
		  AND status = $11
		RETURNING `+appointmentColumns,
		a.ID, a.PatientID, a.ClinicID, a.DoctorID, a.Specialty, a.Type,
		a.AppointmentDate, a.Duration, a.AppointmentEndDate, a.Status, prev)

	updated, err := scanAppointment(row)
	if errors.Is(err, ErrAppointmentNotFound) {
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM appointments WHERE id = $1)`, a.ID).Scan(&exists); err != nil {
			return nil, err
		}
		if exists {
			return nil, fmt.Errorf("%w: status is no longer %s", ErrInvalidStatusTransition, prev)
		}
		return nil, ErrAppointmentNotFound
	}
	if err != nil {
		return nil, translateWriteError(err)
	}
	return updated, nil
}

func (r *PgRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns,
		id, to, from)

	return scanAppointment(row)
}

func (r *PgRepository) ListOverlapping(ctx context.Context, field OwnerField, ownerID uuid.UUID, start, end time.Time) ([]Appointment, error) {
	if !field.Valid() {
		return nil, fmt.Errorf("invalid owner field %q", field)
	}

	// candidate starts inside, ends inside, or contains an existing appointment
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE `+string(field)+` = $1
		  AND status <> 'canceled'
		  AND (
		        (appointment_date <= $2 AND appointment_end_date > $2)
		     OR (appointment_date < $3 AND appointment_end_date >= $3)
		     OR (appointment_date >= $2 AND appointment_end_date <= $3)
		  )
		ORDER BY appointment_date
	`, ownerID, start, end)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) ListPendingForDoctorDay(ctx context.Context, clinicID, doctorID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1
		  AND clinic_id = $2
		  AND status = 'pending'
		  AND appointment_date >= $3
		  AND appointment_date <= $4
		ORDER BY appointment_date
	`, doctorID, clinicID, from, to)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO appointment_events (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert appointment event: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
