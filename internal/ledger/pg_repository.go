package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vaccicare/vaccination-scheduling/internal/db"
	"github.com/vaccicare/vaccination-scheduling/internal/errs"
)

const uniqueViolation = "23505"

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const profileColumns = `id, child_id, vaccine_id, disease_id, dose_num, status, actual_date, expected_date_for_next_dose, appointment_id, note, created_at, updated_at`

func scanProfile(row pgx.Row) (*VaccineProfile, error) {
	var p VaccineProfile

	err := row.Scan(
		&p.ID,
		&p.ChildID,
		&p.VaccineID,
		&p.DiseaseID,
		&p.DoseNum,
		&p.Status,
		&p.ActualDate,
		&p.ExpectedDateForNextDose,
		&p.AppointmentID,
		&p.Note,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.NotFound("vaccine profile not found")
		}
		return nil, err
	}

	return &p, nil
}

func collectProfiles(rows pgx.Rows) ([]VaccineProfile, error) {
	defer rows.Close()

	var result []VaccineProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) ListCompletedByTriple(ctx context.Context, childID, diseaseID, vaccineID uuid.UUID) ([]VaccineProfile, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+profileColumns+`
		FROM vaccine_profiles
		WHERE child_id = $1 AND disease_id = $2 AND vaccine_id = $3 AND status = 'completed'
		ORDER BY dose_num
	`, childID, diseaseID, vaccineID)
	if err != nil {
		return nil, err
	}
	return collectProfiles(rows)
}

func (r *PgRepository) ListByChild(ctx context.Context, childID uuid.UUID) ([]VaccineProfile, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+profileColumns+`
		FROM vaccine_profiles
		WHERE child_id = $1
		ORDER BY created_at
	`, childID)
	if err != nil {
		return nil, err
	}
	return collectProfiles(rows)
}

func (r *PgRepository) InsertScheduled(ctx context.Context, p *VaccineProfile) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO vaccine_profiles
			(id, child_id, vaccine_id, disease_id, dose_num, status, appointment_id, note, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'scheduled', $6, $7, now(), now())
	`, p.ID, p.ChildID, p.VaccineID, p.DiseaseID, p.DoseNum, p.AppointmentID, p.Note)
	if err != nil {
		return fmt.Errorf("insert scheduled profile: %w", err)
	}
	return nil
}

func (r *PgRepository) FindScheduledForAppointment(ctx context.Context, q db.Querier, appointmentID, vaccineID, diseaseID uuid.UUID) (*VaccineProfile, error) {
	row := q.QueryRow(ctx, `
		SELECT `+profileColumns+`
		FROM vaccine_profiles
		WHERE appointment_id = $1 AND vaccine_id = $2 AND disease_id = $3 AND status = 'scheduled'
	`, appointmentID, vaccineID, diseaseID)
	return scanProfile(row)
}

func (r *PgRepository) MarkCompleted(ctx context.Context, q db.Querier, id uuid.UUID, doseNum int, actualDate, expectedNext time.Time, note string) (*VaccineProfile, error) {
	row := q.QueryRow(ctx, `
		UPDATE vaccine_profiles
		SET status = 'completed',
		    dose_num = $2,
		    actual_date = $3,
		    expected_date_for_next_dose = $4,
		    note = $5,
		    updated_at = now()
		WHERE id = $1
		  AND status = 'scheduled'
		RETURNING `+profileColumns+`
	`, id, doseNum, actualDate, expectedNext, note)

	p, err := scanProfile(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, errs.DoseSequence("dose %d already recorded for this vaccine", doseNum)
		}
		return nil, err
	}

	return p, nil
}

func (r *PgRepository) InsertCompleted(ctx context.Context, q db.Querier, p *VaccineProfile) error {
	_, err := q.Exec(ctx, `
		INSERT INTO vaccine_profiles
			(id, child_id, vaccine_id, disease_id, dose_num, status, actual_date,
			 expected_date_for_next_dose, appointment_id, note, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'completed', $6, $7, $8, $9, now(), now())
	`, p.ID, p.ChildID, p.VaccineID, p.DiseaseID, p.DoseNum, p.ActualDate,
		p.ExpectedDateForNextDose, p.AppointmentID, p.Note)
	if err != nil {
		if isUniqueViolation(err) {
			return errs.DoseSequence("dose %d already recorded for this vaccine", p.DoseNum)
		}
		return fmt.Errorf("insert completed profile: %w", err)
	}
	return nil
}

func (r *PgRepository) Reassign(ctx context.Context, q db.Querier, profileID, appointmentID uuid.UUID) error {
	tag, err := q.Exec(ctx, `
		UPDATE vaccine_profiles
		SET appointment_id = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = 'scheduled'
	`, profileID, appointmentID)
	if err != nil {
		return fmt.Errorf("reassign vaccine profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.NotFound("no scheduled vaccine profile %s to carry over", profileID)
	}
	return nil
}

func (r *PgRepository) FindDueNextDose(ctx context.Context, onDate time.Time) ([]VaccineProfile, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+profileColumns+`
		FROM vaccine_profiles
		WHERE status = 'completed'
		  AND expected_date_for_next_dose IS NOT NULL
		  AND expected_date_for_next_dose <= $1
	`, onDate)
	if err != nil {
		return nil, err
	}
	return collectProfiles(rows)
}

// isUniqueViolation detects a collision with the partial unique index
// on completed (child, disease, vaccine, dose_num) rows.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
