package order

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

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order

	err := row.Scan(
		&o.ID,
		&o.MemberID,
		&o.PackageID,
		&o.Status,
		&o.TotalAmount,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.NotFound("order not found")
		}
		return nil, err
	}

	return &o, nil
}

func (r *PgRepository) GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, member_id, package_id, status, total_amount, created_at, updated_at
		FROM orders
		WHERE id = $1
	`, id)

	o, err := scanOrder(row)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, order_id, facility_vaccine_id, disease_id, remaining_quantity, price
		FROM order_details
		WHERE order_id = $1
		ORDER BY id
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var d Detail
		if err := rows.Scan(&d.ID, &d.OrderID, &d.FacilityVaccineID, &d.DiseaseID, &d.RemainingQuantity, &d.Price); err != nil {
			return nil, err
		}
		o.Details = append(o.Details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return o, nil
}

// ReplaceDetails swaps the order's detail rows and total in one
// transaction, guarded on the order still being pending.
func (r *PgRepository) ReplaceDetails(ctx context.Context, orderID uuid.UUID, details []Detail, total int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE orders
		SET total_amount = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = 'pending'
	`, orderID, total)
	if err != nil {
		return fmt.Errorf("update order total: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, getErr := r.GetOrderByID(ctx, orderID); getErr != nil {
			return getErr
		}
		return errs.InvalidTransition("order %s is no longer pending", orderID)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM order_details WHERE order_id = $1`, orderID); err != nil {
		return fmt.Errorf("delete order details: %w", err)
	}

	for _, d := range details {
		_, err := tx.Exec(ctx, `
			INSERT INTO order_details (id, order_id, facility_vaccine_id, disease_id, remaining_quantity, price)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, d.ID, orderID, d.FacilityVaccineID, d.DiseaseID, d.RemainingQuantity, d.Price)
		if err != nil {
			return fmt.Errorf("insert order detail: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (r *PgRepository) DecrementRemaining(ctx context.Context, q db.Querier, orderID, facilityVaccineID uuid.UUID) error {
	tag, err := q.Exec(ctx, `
		UPDATE order_details
		SET remaining_quantity = remaining_quantity - 1
		WHERE order_id = $1
		  AND facility_vaccine_id = $2
		  AND remaining_quantity > 0
	`, orderID, facilityVaccineID)
	if err != nil {
		return fmt.Errorf("decrement remaining quantity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.Validation("order has no remaining quantity for this vaccine")
	}
	return nil
}

func (r *PgRepository) MarkPaid(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE orders
		SET status = 'paid',
		    updated_at = now()
		WHERE id = $1
		  AND status = 'pending'
		RETURNING id, member_id, package_id, status, total_amount, created_at, updated_at
	`, orderID)

	o, err := scanOrder(row)
	if err != nil {
		if errs.IsKind(err, errs.KindNotFound) {
			if _, getErr := r.GetOrderByID(ctx, orderID); getErr != nil {
				return nil, getErr
			}
			return nil, errs.InvalidTransition("order %s is no longer pending", orderID)
		}
		return nil, err
	}

	return o, nil
}
