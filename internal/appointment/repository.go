package appointment

import (
	"context"

	"github.com/google/uuid"

	"github.com/vaccicare/vaccination-scheduling/internal/db"
)

// Repository contains all DB interactions needed by the state machine.
// UpdateStatus and CancelWithReason are compare-and-swap updates
// conditioned on the expected current status: when two transitions race
// on one appointment, exactly one matches the row and the loser gets a
// not-found result to disambiguate against the reloaded status.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListByChild(ctx context.Context, childID uuid.UUID, limit, offset int) ([]Appointment, error)

	Create(ctx context.Context, q db.Querier, a *Appointment) (*Appointment, error)
	UpdateStatus(ctx context.Context, q db.Querier, id uuid.UUID, from, to Status) (*Appointment, error)
	CancelWithReason(ctx context.Context, q db.Querier, id uuid.UUID, from Status, reason string) (*Appointment, error)

	AdHocSelections(ctx context.Context, appointmentID uuid.UUID) ([]uuid.UUID, error)
	AddAdHocSelections(ctx context.Context, q db.Querier, appointmentID uuid.UUID, facilityVaccineIDs []uuid.UUID) error

	// InTx runs fn inside one transaction; every write a transition
	// performs goes through the querier handed to fn.
	InTx(ctx context.Context, fn func(q db.Querier) error) error
}
