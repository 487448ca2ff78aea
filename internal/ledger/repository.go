package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vaccicare/vaccination-scheduling/internal/db"
)

// Repository contains all DB interactions for the dose ledger. Methods
// taking a db.Querier participate in a caller-owned transaction: the
// "complete vaccination" transition writes the ledger, the order detail
// and the appointment status atomically.
type Repository interface {
	ListCompletedByTriple(ctx context.Context, childID, diseaseID, vaccineID uuid.UUID) ([]VaccineProfile, error)
	ListByChild(ctx context.Context, childID uuid.UUID) ([]VaccineProfile, error)

	InsertScheduled(ctx context.Context, p *VaccineProfile) error

	FindScheduledForAppointment(ctx context.Context, q db.Querier, appointmentID, vaccineID, diseaseID uuid.UUID) (*VaccineProfile, error)
	MarkCompleted(ctx context.Context, q db.Querier, id uuid.UUID, doseNum int, actualDate, expectedNext time.Time, note string) (*VaccineProfile, error)
	InsertCompleted(ctx context.Context, q db.Querier, p *VaccineProfile) error

	// Reassign moves a still-scheduled profile to another appointment,
	// used by rebooking to keep the dose linkage across the new booking.
	Reassign(ctx context.Context, q db.Querier, profileID, appointmentID uuid.UUID) error

	// FindDueNextDose feeds the reminder worker: completed entries whose
	// expected next dose date has arrived.
	FindDueNextDose(ctx context.Context, onDate time.Time) ([]VaccineProfile, error)
}
