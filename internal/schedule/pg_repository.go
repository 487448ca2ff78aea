package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vaccicare/vaccination-scheduling/internal/errs"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanTemplate(row pgx.Row) (*WorkingHoursTemplate, error) {
	var t WorkingHoursTemplate

	err := row.Scan(
		&t.ID,
		&t.FacilityID,
		&t.Name,
		&t.StartMinute,
		&t.EndMinute,
		&t.SlotDurationMinutes,
		&t.LunchStartMinute,
		&t.LunchEndMinute,
		&t.MaxCapacity,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.NotFound("working hours template not found")
		}
		return nil, err
	}

	return &t, nil
}

func scanSlot(row pgx.Row) (*ScheduleSlot, error) {
	var s ScheduleSlot

	err := row.Scan(
		&s.ID,
		&s.FacilityID,
		&s.Date,
		&s.StartMinute,
		&s.EndMinute,
		&s.MaxCapacity,
		&s.BookedCount,
		&s.Status,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.NotFound("schedule slot not found")
		}
		return nil, err
	}

	return &s, nil
}

const slotColumns = `id, facility_id, slot_date, start_minute, end_minute, max_capacity, booked_count, status, created_at, updated_at`

// Interface methods

func (r *PgRepository) InsertTemplate(ctx context.Context, t *WorkingHoursTemplate) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO working_hours_templates
			(id, facility_id, name, start_minute, end_minute, slot_duration_minutes,
			 lunch_start_minute, lunch_end_minute, max_capacity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
	`, t.ID, t.FacilityID, t.Name, t.StartMinute, t.EndMinute, t.SlotDurationMinutes,
		t.LunchStartMinute, t.LunchEndMinute, t.MaxCapacity)
	if err != nil {
		return fmt.Errorf("insert working hours template: %w", err)
	}
	return nil
}

func (r *PgRepository) GetTemplateByID(ctx context.Context, id uuid.UUID) (*WorkingHoursTemplate, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, facility_id, name, start_minute, end_minute, slot_duration_minutes,
		       lunch_start_minute, lunch_end_minute, max_capacity, created_at, updated_at
		FROM working_hours_templates
		WHERE id = $1
	`, id)
	return scanTemplate(row)
}

func (r *PgRepository) CountSlotsForDate(ctx context.Context, facilityID uuid.UUID, date time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM schedule_slots
		WHERE facility_id = $1 AND slot_date = $2
	`, facilityID, date).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count slots for date: %w", err)
	}
	return count, nil
}

func (r *PgRepository) InsertSlots(ctx context.Context, slots []ScheduleSlot) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, s := range slots {
		_, err := tx.Exec(ctx, `
			INSERT INTO schedule_slots
				(id, facility_id, slot_date, start_minute, end_minute, max_capacity, booked_count, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, 0, 'available', now(), now())
		`, s.ID, s.FacilityID, s.Date, s.StartMinute, s.EndMinute, s.MaxCapacity)
		if err != nil {
			return fmt.Errorf("insert schedule slot: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (r *PgRepository) GetSlotByID(ctx context.Context, id uuid.UUID) (*ScheduleSlot, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+slotColumns+`
		FROM schedule_slots
		WHERE id = $1
	`, id)
	return scanSlot(row)
}

func (r *PgRepository) ListByFacilityDate(ctx context.Context, facilityID uuid.UUID, date time.Time) ([]ScheduleSlot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+slotColumns+`
		FROM schedule_slots
		WHERE facility_id = $1 AND slot_date = $2
		ORDER BY start_minute
	`, facilityID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ScheduleSlot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// ReserveSlot does the capacity check and the increment in a single
// conditional update. No matching row means either the slot is full or
// it does not exist; a follow-up read disambiguates.
func (r *PgRepository) ReserveSlot(ctx context.Context, id uuid.UUID) (*ScheduleSlot, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE schedule_slots
		SET booked_count = booked_count + 1,
		    status = CASE WHEN booked_count + 1 >= max_capacity THEN 'full' ELSE 'available' END,
		    updated_at = now()
		WHERE id = $1
		  AND booked_count < max_capacity
		RETURNING `+slotColumns+`
	`, id)

	slot, err := scanSlot(row)
	if err != nil {
		if errs.IsKind(err, errs.KindNotFound) {
			if _, getErr := r.GetSlotByID(ctx, id); getErr != nil {
				return nil, getErr
			}
			return nil, errs.CapacityExceeded("slot %s is at capacity", id)
		}
		return nil, err
	}

	return slot, nil
}

func (r *PgRepository) ReleaseSlot(ctx context.Context, id uuid.UUID) (*ScheduleSlot, bool, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE schedule_slots
		SET booked_count = booked_count - 1,
		    status = 'available',
		    updated_at = now()
		WHERE id = $1
		  AND booked_count > 0
		RETURNING `+slotColumns+`
	`, id)

	slot, err := scanSlot(row)
	if err != nil {
		if errs.IsKind(err, errs.KindNotFound) {
			existing, getErr := r.GetSlotByID(ctx, id)
			if getErr != nil {
				return nil, false, getErr
			}
			// Already at zero: idempotent no-op.
			return existing, false, nil
		}
		return nil, false, err
	}

	return slot, true, nil
}
