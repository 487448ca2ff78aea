package ledger

import (
	"time"

	"github.com/google/uuid"
)

type ProfileStatus string

const (
	ProfileScheduled ProfileStatus = "scheduled"
	ProfileCompleted ProfileStatus = "completed"
)

// VaccineProfile is one dose-ledger entry: a dose a child is scheduled
// to receive or has received, per disease/vaccine.
type VaccineProfile struct {
	ID                      uuid.UUID
	ChildID                 uuid.UUID
	VaccineID               uuid.UUID
	DiseaseID               uuid.UUID
	DoseNum                 int
	Status                  ProfileStatus
	ActualDate              *time.Time
	ExpectedDateForNextDose *time.Time
	AppointmentID           *uuid.UUID
	Note                    *string
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// DoseProjection is the answer to "what dose is this child due, and
// from when".
type DoseProjection struct {
	DoseNum      int
	EarliestDate time.Time
}
