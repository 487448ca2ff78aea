package schedule

import (
	"time"

	"github.com/google/uuid"
)

type SlotStatus string

const (
	SlotAvailable SlotStatus = "available"
	SlotFull      SlotStatus = "full"
)

// WorkingHoursTemplate describes a facility's bookable day: a working
// window cut into fixed-duration slots around a lunch break. Minutes
// are counted from midnight.
type WorkingHoursTemplate struct {
	ID                  uuid.UUID
	FacilityID          uuid.UUID
	Name                string
	StartMinute         int
	EndMinute           int
	SlotDurationMinutes int
	LunchStartMinute    int
	LunchEndMinute      int
	MaxCapacity         int
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

type ScheduleSlot struct {
	ID          uuid.UUID
	FacilityID  uuid.UUID
	Date        time.Time
	StartMinute int
	EndMinute   int
	MaxCapacity int
	BookedCount int
	Status      SlotStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SlotWindow is one bookable interval produced from a template.
type SlotWindow struct {
	StartMinute int
	EndMinute   int
}

// AssignmentResult reports the slots materialized for one day.
type AssignmentResult struct {
	FacilityID uuid.UUID
	TemplateID uuid.UUID
	Date       time.Time
	SlotIDs    []uuid.UUID
}

// ReservationToken is the proof of a successful capacity claim.
type ReservationToken struct {
	SlotID      uuid.UUID
	BookedCount int
}
