package appointment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vaccicare/vaccination-scheduling/internal/db"
	"github.com/vaccicare/vaccination-scheduling/internal/errs"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const appointmentColumns = `id, child_id, member_id, facility_id, slot_id, order_id, status, note, cancel_reason, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.ChildID,
		&a.MemberID,
		&a.FacilityID,
		&a.SlotID,
		&a.OrderID,
		&a.Status,
		&a.Note,
		&a.CancelReason,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.NotFound("appointment not found")
		}
		return nil, err
	}

	return &a, nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListByChild(ctx context.Context, childID uuid.UUID, limit, offset int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE child_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, childID, limit, offset)
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

func (r *PgRepository) Create(ctx context.Context, q db.Querier, a *Appointment) (*Appointment, error) {
	row := q.QueryRow(ctx, `
		INSERT INTO appointments
			(id, child_id, member_id, facility_id, slot_id, order_id, status, note, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		RETURNING `+appointmentColumns+`
	`, a.ID, a.ChildID, a.MemberID, a.FacilityID, a.SlotID, a.OrderID, a.Status, a.Note)

	return scanAppointment(row)
}

func (r *PgRepository) UpdateStatus(ctx context.Context, q db.Querier, id uuid.UUID, from, to Status) (*Appointment, error) {
	row := q.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from)

	return scanAppointment(row)
}

func (r *PgRepository) CancelWithReason(ctx context.Context, q db.Querier, id uuid.UUID, from Status, reason string) (*Appointment, error) {
	row := q.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'cancelled',
		    cancel_reason = NULLIF($3, ''),
		    updated_at = now()
		WHERE id = $1
		  AND status = $2
		RETURNING `+appointmentColumns+`
	`, id, from, reason)

	return scanAppointment(row)
}

func (r *PgRepository) AdHocSelections(ctx context.Context, appointmentID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT facility_vaccine_id
		FROM appointment_vaccines
		WHERE appointment_id = $1
	`, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return ids, nil
}

func (r *PgRepository) AddAdHocSelections(ctx context.Context, q db.Querier, appointmentID uuid.UUID, facilityVaccineIDs []uuid.UUID) error {
	for _, fvID := range facilityVaccineIDs {
		_, err := q.Exec(ctx, `
			INSERT INTO appointment_vaccines (appointment_id, facility_vaccine_id)
			VALUES ($1, $2)
		`, appointmentID, fvID)
		if err != nil {
			return fmt.Errorf("insert ad-hoc selection: %w", err)
		}
	}
	return nil
}

func (r *PgRepository) InTx(ctx context.Context, fn func(q db.Querier) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
