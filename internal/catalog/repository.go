package catalog

import (
	"context"

	"github.com/google/uuid"
)

// Repository contains the read-only lookups the core needs from the
// catalog and member registries.
type Repository interface {
	GetVaccineByID(ctx context.Context, id uuid.UUID) (*Vaccine, error)
	GetFacilityVaccineByID(ctx context.Context, id uuid.UUID) (*FacilityVaccine, error)
	GetChildByID(ctx context.Context, id uuid.UUID) (*Child, error)
}
