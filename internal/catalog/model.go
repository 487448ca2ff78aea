// Package catalog exposes read-only lookups against entities owned by
// the catalog service (vaccines, facilities, stock) and the member
// registry (children). The scheduling engine never mutates these.
package catalog

import (
	"time"

	"github.com/google/uuid"
)

type Vaccine struct {
	ID              uuid.UUID
	Name            string
	Manufacturer    *string
	DoseCount       int
	MinIntervalDays int
}

type FacilityVaccine struct {
	ID         uuid.UUID
	FacilityID uuid.UUID
	VaccineID  uuid.UUID
	DiseaseID  uuid.UUID
	Price      int64
	Quantity   int
}

type Child struct {
	ID        uuid.UUID
	MemberID  uuid.UUID
	FullName  string
	BirthDate time.Time
}
