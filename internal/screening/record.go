package screening

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vaccicare/vaccination-scheduling/internal/db"
	"github.com/vaccicare/vaccination-scheduling/internal/errs"
)

type Record struct {
	ID            uuid.UUID
	AppointmentID uuid.UUID
	Consent       bool
	Vitals        Vitals
	Answers       map[string]string
	CreatedAt     time.Time
}

// Required survey questions. An answer must be present and non-empty
// for each before an appointment can advance to approval.
var RequiredQuestions = []string{
	"allergy_history",
	"recent_illness",
	"previous_reactions",
}

// Validate checks consent, required answers and vitals ranges.
func (r *Record) Validate() error {
	if !r.Consent {
		return errs.Validation("guardian consent is required")
	}
	for _, q := range RequiredQuestions {
		if r.Answers[q] == "" {
			return errs.Validation("survey answer %q is required", q)
		}
	}
	return r.Vitals.Validate()
}

// Repository persists screening records. Insert runs under the
// caller-owned transaction of the intake-to-approval transition.
type Repository interface {
	Insert(ctx context.Context, q db.Querier, rec *Record) error
	GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Record, error)
}
