package screening

import (
	"context"
	"encoding/json"
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

func (r *PgRepository) Insert(ctx context.Context, q db.Querier, rec *Record) error {
	answers, err := json.Marshal(rec.Answers)
	if err != nil {
		return fmt.Errorf("marshal survey answers: %w", err)
	}

	_, err = q.Exec(ctx, `
		INSERT INTO screening_records
			(id, appointment_id, consent, temperature_c, heart_rate_bpm,
			 systolic_mmhg, diastolic_mmhg, spo2_percent, answers, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
	`, rec.ID, rec.AppointmentID, rec.Consent,
		rec.Vitals.TemperatureC, rec.Vitals.HeartRateBPM,
		rec.Vitals.SystolicMmHg, rec.Vitals.DiastolicMmHg,
		rec.Vitals.SpO2Percent, answers)
	if err != nil {
		return fmt.Errorf("insert screening record: %w", err)
	}
	return nil
}

func (r *PgRepository) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Record, error) {
	var rec Record
	var answers []byte

	err := r.pool.QueryRow(ctx, `
		SELECT id, appointment_id, consent, temperature_c, heart_rate_bpm,
		       systolic_mmhg, diastolic_mmhg, spo2_percent, answers, created_at
		FROM screening_records
		WHERE appointment_id = $1
	`, appointmentID).Scan(
		&rec.ID,
		&rec.AppointmentID,
		&rec.Consent,
		&rec.Vitals.TemperatureC,
		&rec.Vitals.HeartRateBPM,
		&rec.Vitals.SystolicMmHg,
		&rec.Vitals.DiastolicMmHg,
		&rec.Vitals.SpO2Percent,
		&answers,
		&rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.NotFound("no screening record for appointment")
		}
		return nil, err
	}

	if len(answers) > 0 {
		if err := json.Unmarshal(answers, &rec.Answers); err != nil {
			return nil, fmt.Errorf("unmarshal survey answers: %w", err)
		}
	}

	return &rec, nil
}
