package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vaccicare/vaccination-scheduling/internal/errs"
	"github.com/vaccicare/vaccination-scheduling/internal/metrics"
)

type Service struct {
	repo Repository
	log  zerolog.Logger
}

func NewService(repo Repository, log zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With().Str("component", "schedule").Logger(),
	}
}

type CreateTemplateParams struct {
	FacilityID          uuid.UUID
	Name                string
	StartMinute         int
	EndMinute           int
	SlotDurationMinutes int
	LunchStartMinute    int
	LunchEndMinute      int
	MaxCapacity         int
}

// CreateTemplate validates and stores a working-hours template. Slots
// are not materialized until BulkAssign binds the template to a date.
func (s *Service) CreateTemplate(ctx context.Context, p CreateTemplateParams) (*WorkingHoursTemplate, error) {
	tpl := &WorkingHoursTemplate{
		ID:                  uuid.New(),
		FacilityID:          p.FacilityID,
		Name:                p.Name,
		StartMinute:         p.StartMinute,
		EndMinute:           p.EndMinute,
		SlotDurationMinutes: p.SlotDurationMinutes,
		LunchStartMinute:    p.LunchStartMinute,
		LunchEndMinute:      p.LunchEndMinute,
		MaxCapacity:         p.MaxCapacity,
	}

	if err := tpl.Validate(); err != nil {
		return nil, err
	}
	if len(tpl.SlotWindows()) == 0 {
		return nil, errs.Validation("working hours produce no bookable slots")
	}

	if err := s.repo.InsertTemplate(ctx, tpl); err != nil {
		return nil, fmt.Errorf("create template: %w", err)
	}

	s.log.Info().
		Str("template_id", tpl.ID.String()).
		Str("facility_id", tpl.FacilityID.String()).
		Int("windows", len(tpl.SlotWindows())).
		Msg("working hours template created")

	return tpl, nil
}

// BulkAssign materializes a day's slots from a template. A date that
// already has slots for the facility is rejected rather than merged.
func (s *Service) BulkAssign(ctx context.Context, facilityID, templateID uuid.UUID, date time.Time) (*AssignmentResult, error) {
	tpl, err := s.repo.GetTemplateByID(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if tpl.FacilityID != facilityID {
		return nil, errs.Validation("template %s does not belong to facility %s", templateID, facilityID)
	}

	existing, err := s.repo.CountSlotsForDate(ctx, facilityID, date)
	if err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, errs.Conflict("facility %s already has slots on %s", facilityID, date.Format("2006-01-02"))
	}

	windows := tpl.SlotWindows()
	slots := make([]ScheduleSlot, 0, len(windows))
	ids := make([]uuid.UUID, 0, len(windows))
	for _, w := range windows {
		id := uuid.New()
		ids = append(ids, id)
		slots = append(slots, ScheduleSlot{
			ID:          id,
			FacilityID:  facilityID,
			Date:        date,
			StartMinute: w.StartMinute,
			EndMinute:   w.EndMinute,
			MaxCapacity: tpl.MaxCapacity,
			Status:      SlotAvailable,
		})
	}

	if err := s.repo.InsertSlots(ctx, slots); err != nil {
		return nil, fmt.Errorf("bulk assign slots: %w", err)
	}

	s.log.Info().
		Str("facility_id", facilityID.String()).
		Str("template_id", templateID.String()).
		Time("date", date).
		Int("slots", len(slots)).
		Msg("slots assigned for date")

	return &AssignmentResult{
		FacilityID: facilityID,
		TemplateID: templateID,
		Date:       date,
		SlotIDs:    ids,
	}, nil
}

// Reserve claims one unit of slot capacity. The repository performs the
// check-and-increment atomically, so concurrent callers against the
// same near-full slot get exactly one winner.
func (s *Service) Reserve(ctx context.Context, slotID uuid.UUID) (*ReservationToken, error) {
	slot, err := s.repo.ReserveSlot(ctx, slotID)
	if err != nil {
		if errs.IsKind(err, errs.KindCapacityExceeded) {
			metrics.SlotReservations.WithLabelValues("reserve", "capacity_exceeded").Inc()
		} else {
			metrics.SlotReservations.WithLabelValues("reserve", "error").Inc()
		}
		return nil, err
	}

	metrics.SlotReservations.WithLabelValues("reserve", "ok").Inc()

	return &ReservationToken{SlotID: slot.ID, BookedCount: slot.BookedCount}, nil
}

// Release returns one unit of slot capacity. Releasing a slot that is
// already at zero is a logged no-op, not an error.
func (s *Service) Release(ctx context.Context, slotID uuid.UUID) error {
	_, released, err := s.repo.ReleaseSlot(ctx, slotID)
	if err != nil {
		metrics.SlotReservations.WithLabelValues("release", "error").Inc()
		return err
	}

	if !released {
		metrics.SlotReservations.WithLabelValues("release", "noop").Inc()
		s.log.Warn().
			Str("slot_id", slotID.String()).
			Msg("release on already-released slot, ignoring")
		return nil
	}

	metrics.SlotReservations.WithLabelValues("release", "ok").Inc()
	return nil
}

func (s *Service) ListByFacilityDate(ctx context.Context, facilityID uuid.UUID, date time.Time) ([]ScheduleSlot, error) {
	slots, err := s.repo.ListByFacilityDate(ctx, facilityID, date)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	return slots, nil
}

func (s *Service) GetSlot(ctx context.Context, slotID uuid.UUID) (*ScheduleSlot, error) {
	return s.repo.GetSlotByID(ctx, slotID)
}
