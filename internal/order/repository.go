package order

import (
	"context"

	"github.com/google/uuid"

	"github.com/vaccicare/vaccination-scheduling/internal/db"
)

// Repository contains all DB interactions for orders. ReplaceDetails
// re-checks the pending status inside its own transaction so a payment
// racing an adjustment cannot interleave. DecrementRemaining runs under
// the caller's transaction (the complete-vaccination transition).
type Repository interface {
	GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error)
	ReplaceDetails(ctx context.Context, orderID uuid.UUID, details []Detail, total int64) error
	DecrementRemaining(ctx context.Context, q db.Querier, orderID, facilityVaccineID uuid.UUID) error
	MarkPaid(ctx context.Context, orderID uuid.UUID) (*Order, error)
}
