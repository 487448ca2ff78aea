package catalog

import (
	"context"
	"errors"

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

func (r *PgRepository) GetVaccineByID(ctx context.Context, id uuid.UUID) (*Vaccine, error) {
	var v Vaccine
	var manufacturer *string

	err := r.pool.QueryRow(ctx, `
		SELECT id, name, manufacturer, dose_count, min_interval_days
		FROM vaccines
		WHERE id = $1
	`, id).Scan(&v.ID, &v.Name, &manufacturer, &v.DoseCount, &v.MinIntervalDays)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.NotFound("vaccine %s not found", id)
		}
		return nil, err
	}

	v.Manufacturer = manufacturer
	return &v, nil
}

func (r *PgRepository) GetFacilityVaccineByID(ctx context.Context, id uuid.UUID) (*FacilityVaccine, error) {
	var fv FacilityVaccine

	err := r.pool.QueryRow(ctx, `
		SELECT id, facility_id, vaccine_id, disease_id, price, quantity
		FROM facility_vaccines
		WHERE id = $1
	`, id).Scan(&fv.ID, &fv.FacilityID, &fv.VaccineID, &fv.DiseaseID, &fv.Price, &fv.Quantity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.NotFound("facility vaccine %s not found", id)
		}
		return nil, err
	}

	return &fv, nil
}

func (r *PgRepository) GetChildByID(ctx context.Context, id uuid.UUID) (*Child, error) {
	var c Child

	err := r.pool.QueryRow(ctx, `
		SELECT id, member_id, full_name, birth_date
		FROM children
		WHERE id = $1
	`, id).Scan(&c.ID, &c.MemberID, &c.FullName, &c.BirthDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.NotFound("child %s not found", id)
		}
		return nil, err
	}

	return &c, nil
}
