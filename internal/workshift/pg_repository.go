package workshift

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-appointment-scheduling/internal/db"
)

const workshiftColumns = `id, doctor_id, clinic_id, start_date, duration, end_date, created_at, updated_at`

const upsertSQL = `
	INSERT INTO workshifts (id, doctor_id, clinic_id, start_date, duration, end_date, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, now(), now())
	ON CONFLICT (id) DO UPDATE
	SET doctor_id = EXCLUDED.doctor_id,
	    clinic_id = EXCLUDED.clinic_id,
	    start_date = EXCLUDED.start_date,
	    duration = EXCLUDED.duration,
	    end_date = EXCLUDED.end_date,
	    updated_at = now()
`

type PgRepository struct {
	pool *pgxpool.Pool
}

var _ Store = (*PgRepository)(nil)

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanWorkshift(row pgx.Row) (*Workshift, error) {
	var w Workshift

	err := row.Scan(
		&w.ID,
		&w.DoctorID,
		&w.ClinicID,
		&w.StartDate,
		&w.Duration,
		&w.EndDate,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWorkshiftNotFound
		}
		return nil, err
	}

	return &w, nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Workshift, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+workshiftColumns+`
		FROM workshifts
		WHERE id = $1
	`, id)
	return scanWorkshift(row)
}

func (r *PgRepository) ListOverlapping(ctx context.Context, clinicID, doctorID uuid.UUID, from, to time.Time) ([]Workshift, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+workshiftColumns+`
		FROM workshifts
		WHERE doctor_id = $1
		  AND clinic_id = $2
		  AND start_date <= $4
		  AND start_date + make_interval(mins => duration) > $3
		ORDER BY start_date
	`, doctorID, clinicID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Workshift
	for rows.Next() {
		w, err := scanWorkshift(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *w)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) ReplaceAll(ctx context.Context, shifts []Workshift) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM workshifts`); err != nil {
			return fmt.Errorf("truncate workshifts: %w", err)
		}
		return upsertBatch(ctx, tx, shifts)
	})
}

func (r *PgRepository) InsertIfAbsent(ctx context.Context, w Workshift) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO workshifts (id, doctor_id, clinic_id, start_date, duration, end_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		ON CONFLICT (id) DO NOTHING
	`, w.ID, w.DoctorID, w.ClinicID, w.StartDate, w.Duration, w.EndDate)
	if err != nil {
		return false, fmt.Errorf("insert workshift %s: %w", w.ID, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PgRepository) Upsert(ctx context.Context, w Workshift) error {
	if _, err := r.pool.Exec(ctx, upsertSQL, w.ID, w.DoctorID, w.ClinicID, w.StartDate, w.Duration, w.EndDate); err != nil {
		return fmt.Errorf("upsert workshift %s: %w", w.ID, err)
	}
	return nil
}

func (r *PgRepository) UpsertMany(ctx context.Context, shifts []Workshift) error {
	if len(shifts) == 0 {
		return nil
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return upsertBatch(ctx, tx, shifts)
	})
}

func (r *PgRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM workshifts WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete workshift %s: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PgRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM workshifts`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// upsertBatch sends every shift in one round trip. Statements run in order,
// so a later record with a repeated id wins.
func upsertBatch(ctx context.Context, tx pgx.Tx, shifts []Workshift) error {
	if len(shifts) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, w := range shifts {
		batch.Queue(upsertSQL, w.ID, w.DoctorID, w.ClinicID, w.StartDate, w.Duration, w.EndDate)
	}

	results := tx.SendBatch(ctx, batch)
	for i := range shifts {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("upsert workshift %s: %w", shifts[i].ID, err)
		}
	}
	return results.Close()
}
