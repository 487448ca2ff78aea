package order

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
)

type Order struct {
	ID          uuid.UUID
	MemberID    uuid.UUID
	PackageID   *uuid.UUID // nil means ad-hoc vaccine selection
	Status      Status
	TotalAmount int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Details     []Detail
}

type Detail struct {
	ID                uuid.UUID
	OrderID           uuid.UUID
	FacilityVaccineID uuid.UUID
	DiseaseID         uuid.UUID
	RemainingQuantity int
	Price             int64
}
