package appointment

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproval  Status = "approval"
	StatusPaid      Status = "paid"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

type Action string

const (
	ActionSubmitScreening     Action = "submit_screening"
	ActionConfirmPayment      Action = "confirm_payment"
	ActionCompleteVaccination Action = "complete_vaccination"
	ActionCancel              Action = "cancel"
)

// transitions is the single source of truth for the appointment
// lifecycle. Cancellation is legal from every non-terminal state; all
// other actions move strictly forward.
var transitions = map[Status]map[Action]Status{
	StatusPending: {
		ActionSubmitScreening: StatusApproval,
		ActionCancel:          StatusCancelled,
	},
	StatusApproval: {
		ActionConfirmPayment: StatusPaid,
		ActionCancel:         StatusCancelled,
	},
	StatusPaid: {
		ActionCompleteVaccination: StatusCompleted,
		ActionCancel:              StatusCancelled,
	},
}

// NextStatus resolves the target status for an action from the current
// status. ok is false when the transition table has no such edge.
func NextStatus(from Status, action Action) (Status, bool) {
	to, ok := transitions[from][action]
	return to, ok
}

// Terminal reports whether no action can move the appointment further.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type Appointment struct {
	ID           uuid.UUID
	ChildID      uuid.UUID
	MemberID     uuid.UUID
	FacilityID   uuid.UUID
	SlotID       uuid.UUID
	OrderID      *uuid.UUID
	Status       Status
	Note         *string
	CancelReason *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// VaccineToInject is one entry of the derived "what does this visit
// administer" list: order details with remaining quantity, or the
// appointment's ad-hoc selections.
type VaccineToInject struct {
	FacilityVaccineID uuid.UUID
	VaccineID         uuid.UUID
	DiseaseID         uuid.UUID
	Source            string // "order" or "ad_hoc"
	RemainingQuantity int
}

type Detail struct {
	Appointment
	VaccinesToInject []VaccineToInject
}

// Event types written to the outbox on successful transitions.
const (
	EventAppointmentBooked    = "APPOINTMENT_BOOKED"
	EventScreeningApproved    = "SCREENING_APPROVED"
	EventPaymentConfirmed     = "PAYMENT_CONFIRMED"
	EventVaccinationCompleted = "VACCINATION_COMPLETED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventAppointmentRebooked  = "APPOINTMENT_REBOOKED"
)
