package schedule

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository contains all DB interactions needed by the slot store.
// ReserveSlot and ReleaseSlot must be single conditional updates: the
// capacity check and the counter change happen in one statement so two
// concurrent callers against a near-full slot cannot both win.
type Repository interface {
	InsertTemplate(ctx context.Context, t *WorkingHoursTemplate) error
	GetTemplateByID(ctx context.Context, id uuid.UUID) (*WorkingHoursTemplate, error)

	CountSlotsForDate(ctx context.Context, facilityID uuid.UUID, date time.Time) (int, error)
	InsertSlots(ctx context.Context, slots []ScheduleSlot) error

	GetSlotByID(ctx context.Context, id uuid.UUID) (*ScheduleSlot, error)
	ListByFacilityDate(ctx context.Context, facilityID uuid.UUID, date time.Time) ([]ScheduleSlot, error)

	// ReserveSlot increments booked_count iff below capacity.
	ReserveSlot(ctx context.Context, id uuid.UUID) (*ScheduleSlot, error)
	// ReleaseSlot decrements booked_count floored at zero. The bool is
	// false when the slot was already fully released.
	ReleaseSlot(ctx context.Context, id uuid.UUID) (*ScheduleSlot, bool, error)
}
