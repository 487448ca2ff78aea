package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vaccicare/vaccination-scheduling/internal/catalog"
	"github.com/vaccicare/vaccination-scheduling/internal/db"
	"github.com/vaccicare/vaccination-scheduling/internal/errs"
)

// VaccineCatalog is the slice of the catalog service the ledger needs:
// the configured minimum interval between doses.
type VaccineCatalog interface {
	GetVaccineByID(ctx context.Context, id uuid.UUID) (*catalog.Vaccine, error)
}

type Service struct {
	repo     Repository
	vaccines VaccineCatalog
	log      zerolog.Logger
}

func NewService(repo Repository, vaccines VaccineCatalog, log zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		vaccines: vaccines,
		log:      log.With().Str("component", "ledger").Logger(),
	}
}

// NextEligibleDose scans completed entries for the child/disease/vaccine
// triple and returns the next dose number with the earliest permitted
// date. A child with no prior dose is due dose 1 immediately.
func (s *Service) NextEligibleDose(ctx context.Context, childID, vaccineID, diseaseID uuid.UUID) (*DoseProjection, error) {
	vaccine, err := s.vaccines.GetVaccineByID(ctx, vaccineID)
	if err != nil {
		return nil, err
	}

	completed, err := s.repo.ListCompletedByTriple(ctx, childID, diseaseID, vaccineID)
	if err != nil {
		return nil, fmt.Errorf("list completed doses: %w", err)
	}

	if len(completed) == 0 {
		return &DoseProjection{DoseNum: 1, EarliestDate: time.Now()}, nil
	}

	last := completed[len(completed)-1]
	earliest := time.Now()
	if last.ActualDate != nil {
		earliest = last.ActualDate.AddDate(0, 0, vaccine.MinIntervalDays)
	}

	return &DoseProjection{DoseNum: last.DoseNum + 1, EarliestDate: earliest}, nil
}

type CompletionParams struct {
	AppointmentID           uuid.UUID
	ChildID                 uuid.UUID
	VaccineID               uuid.UUID
	DiseaseID               uuid.UUID
	DoseNumber              int
	ActualDate              time.Time
	ExpectedDateForNextDose time.Time
	Note                    string
}

// RecordCompletion writes a completed dose into the ledger. Doses must
// arrive in sequence and no earlier than the vaccine's minimum interval
// allows; both violations fail hard (the early-dose policy is a
// deliberate choice, there is no clinician override path).
//
// The write runs against q so the caller can bundle it with the
// appointment status flip and the order decrement in one transaction.
func (s *Service) RecordCompletion(ctx context.Context, q db.Querier, p CompletionParams) (*VaccineProfile, error) {
	if p.DoseNumber < 1 {
		return nil, errs.Validation("dose number must be at least 1")
	}

	proj, err := s.NextEligibleDose(ctx, p.ChildID, p.VaccineID, p.DiseaseID)
	if err != nil {
		return nil, err
	}

	if p.DoseNumber != proj.DoseNum {
		return nil, errs.DoseSequence("expected dose %d for this vaccine, got %d", proj.DoseNum, p.DoseNumber)
	}
	if dateOnly(p.ActualDate).Before(dateOnly(proj.EarliestDate)) {
		return nil, errs.TooEarly("dose %d is not due before %s", p.DoseNumber, proj.EarliestDate.Format("2006-01-02"))
	}

	// Prefer completing the profile provisioned at booking; fall back to
	// a fresh completed entry for walk-in doses.
	scheduled, err := s.repo.FindScheduledForAppointment(ctx, q, p.AppointmentID, p.VaccineID, p.DiseaseID)
	if err != nil && !errs.IsKind(err, errs.KindNotFound) {
		return nil, fmt.Errorf("find scheduled profile: %w", err)
	}

	if scheduled != nil {
		profile, err := s.repo.MarkCompleted(ctx, q, scheduled.ID, p.DoseNumber, p.ActualDate, p.ExpectedDateForNextDose, p.Note)
		if err != nil {
			return nil, err
		}
		return profile, nil
	}

	actual := p.ActualDate
	expected := p.ExpectedDateForNextDose
	apptID := p.AppointmentID
	note := p.Note
	profile := &VaccineProfile{
		ID:                      uuid.New(),
		ChildID:                 p.ChildID,
		VaccineID:               p.VaccineID,
		DiseaseID:               p.DiseaseID,
		DoseNum:                 p.DoseNumber,
		Status:                  ProfileCompleted,
		ActualDate:              &actual,
		ExpectedDateForNextDose: &expected,
		AppointmentID:           &apptID,
		Note:                    &note,
	}
	if err := s.repo.InsertCompleted(ctx, q, profile); err != nil {
		return nil, err
	}

	return profile, nil
}

type DoseSelection struct {
	VaccineID uuid.UUID
	DiseaseID uuid.UUID
	DoseNum   int
}

// ScheduleDoses provisions scheduled ledger entries when an appointment
// gains vaccines to inject.
func (s *Service) ScheduleDoses(ctx context.Context, appointmentID, childID uuid.UUID, selections []DoseSelection) error {
	for _, sel := range selections {
		apptID := appointmentID
		p := &VaccineProfile{
			ID:            uuid.New(),
			ChildID:       childID,
			VaccineID:     sel.VaccineID,
			DiseaseID:     sel.DiseaseID,
			DoseNum:       sel.DoseNum,
			Status:        ProfileScheduled,
			AppointmentID: &apptID,
		}
		if err := s.repo.InsertScheduled(ctx, p); err != nil {
			return fmt.Errorf("schedule dose: %w", err)
		}
	}
	return nil
}

// ReassignProfile carries a scheduled dose entry over to a new
// appointment during rebooking.
func (s *Service) ReassignProfile(ctx context.Context, q db.Querier, profileID, appointmentID uuid.UUID) error {
	return s.repo.Reassign(ctx, q, profileID, appointmentID)
}

func (s *Service) ChildHistory(ctx context.Context, childID uuid.UUID) ([]VaccineProfile, error) {
	profiles, err := s.repo.ListByChild(ctx, childID)
	if err != nil {
		return nil, fmt.Errorf("child dose history: %w", err)
	}
	return profiles, nil
}

// DueReminders lists completed entries whose next dose has come due.
func (s *Service) DueReminders(ctx context.Context, onDate time.Time) ([]VaccineProfile, error) {
	return s.repo.FindDueNextDose(ctx, onDate)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
