package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vaccicare/vaccination-scheduling/internal/catalog"
	"github.com/vaccicare/vaccination-scheduling/internal/db"
	"github.com/vaccicare/vaccination-scheduling/internal/errs"
	"github.com/vaccicare/vaccination-scheduling/internal/ledger"
	"github.com/vaccicare/vaccination-scheduling/internal/metrics"
	"github.com/vaccicare/vaccination-scheduling/internal/order"
	"github.com/vaccicare/vaccination-scheduling/internal/redisclient"
	"github.com/vaccicare/vaccination-scheduling/internal/schedule"
	"github.com/vaccicare/vaccination-scheduling/internal/screening"
)

// SlotStore is the slice of the schedule service the state machine
// needs: capacity claims and releases.
type SlotStore interface {
	Reserve(ctx context.Context, slotID uuid.UUID) (*schedule.ReservationToken, error)
	Release(ctx context.Context, slotID uuid.UUID) error
	GetSlot(ctx context.Context, slotID uuid.UUID) (*schedule.ScheduleSlot, error)
}

type LedgerStore interface {
	RecordCompletion(ctx context.Context, q db.Querier, p ledger.CompletionParams) (*ledger.VaccineProfile, error)
	ReassignProfile(ctx context.Context, q db.Querier, profileID, appointmentID uuid.UUID) error
	NextEligibleDose(ctx context.Context, childID, vaccineID, diseaseID uuid.UUID) (*ledger.DoseProjection, error)
	ScheduleDoses(ctx context.Context, appointmentID, childID uuid.UUID, selections []ledger.DoseSelection) error
}

type OrderStore interface {
	GetOrderByID(ctx context.Context, id uuid.UUID) (*order.Order, error)
	DecrementRemaining(ctx context.Context, q db.Querier, orderID, facilityVaccineID uuid.UUID) error
}

type Catalog interface {
	GetFacilityVaccineByID(ctx context.Context, id uuid.UUID) (*catalog.FacilityVaccine, error)
	GetChildByID(ctx context.Context, id uuid.UUID) (*catalog.Child, error)
}

type ScreeningStore interface {
	Insert(ctx context.Context, q db.Querier, rec *screening.Record) error
	GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*screening.Record, error)
}

// EventSink records state-change events; outbox.Store satisfies it.
type EventSink interface {
	Insert(ctx context.Context, q db.Querier, eventType string, aggregateID uuid.UUID, payload map[string]any) error
}

type Service struct {
	repo       Repository
	slots      SlotStore
	doses      LedgerStore
	orders     OrderStore
	cat        Catalog
	screenings ScreeningStore
	events     EventSink
	locker     redisclient.Locker
	log        zerolog.Logger
}

func NewService(
	repo Repository,
	slots SlotStore,
	doses LedgerStore,
	orders OrderStore,
	cat Catalog,
	screenings ScreeningStore,
	events EventSink,
	locker redisclient.Locker,
	log zerolog.Logger,
) *Service {
	return &Service{
		repo:       repo,
		slots:      slots,
		doses:      doses,
		orders:     orders,
		cat:        cat,
		screenings: screenings,
		events:     events,
		locker:     locker,
		log:        log.With().Str("component", "appointment").Logger(),
	}
}

type BookParams struct {
	ChildID         uuid.UUID
	MemberID        uuid.UUID
	FacilityID      uuid.UUID
	SlotID          uuid.UUID
	OrderID         *uuid.UUID
	AdHocVaccineIDs []uuid.UUID
	Note            string
}

// Book reserves slot capacity and creates a pending appointment.
// Exactly one of order / ad-hoc selection supplies the vaccines to
// inject. The reservation is compensated if the insert fails.
func (s *Service) Book(ctx context.Context, p BookParams) (*Appointment, error) {
	hasOrder := p.OrderID != nil
	hasAdHoc := len(p.AdHocVaccineIDs) > 0
	if hasOrder == hasAdHoc {
		return nil, errs.Validation("exactly one of order or ad-hoc vaccine selection is required")
	}

	if _, err := s.cat.GetChildByID(ctx, p.ChildID); err != nil {
		return nil, err
	}

	if _, err := s.slots.Reserve(ctx, p.SlotID); err != nil {
		return nil, err
	}

	var created *Appointment
	err := s.repo.InTx(ctx, func(q db.Querier) error {
		note := p.Note
		appt := &Appointment{
			ID:         uuid.New(),
			ChildID:    p.ChildID,
			MemberID:   p.MemberID,
			FacilityID: p.FacilityID,
			SlotID:     p.SlotID,
			OrderID:    p.OrderID,
			Status:     StatusPending,
			Note:       &note,
		}

		var err error
		created, err = s.repo.Create(ctx, q, appt)
		if err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}

		if hasAdHoc {
			if err := s.repo.AddAdHocSelections(ctx, q, created.ID, p.AdHocVaccineIDs); err != nil {
				return err
			}
		}

		return s.events.Insert(ctx, q, EventAppointmentBooked, created.ID, map[string]any{
			"child_id": p.ChildID.String(),
			"slot_id":  p.SlotID.String(),
		})
	})
	if err != nil {
		// Roll the capacity claim back so the slot is not stranded.
		if relErr := s.slots.Release(ctx, p.SlotID); relErr != nil {
			s.log.Error().Err(relErr).Str("slot_id", p.SlotID.String()).Msg("compensating release failed")
		}
		metrics.Transitions.WithLabelValues("book", "error").Inc()
		return nil, err
	}

	// Provision scheduled ledger entries for the doses this visit will
	// administer. The booking stands even if provisioning fails; the
	// completion path falls back to inserting a fresh completed row.
	s.scheduleDoses(ctx, created)

	metrics.Transitions.WithLabelValues("book", "ok").Inc()
	return created, nil
}

func (s *Service) scheduleDoses(ctx context.Context, appt *Appointment) {
	fvIDs, err := s.vaccineIDsFor(ctx, appt)
	if err != nil {
		s.log.Warn().Err(err).Str("appointment_id", appt.ID.String()).Msg("dose provisioning skipped")
		return
	}

	var selections []ledger.DoseSelection
	for _, fvID := range fvIDs {
		fv, err := s.cat.GetFacilityVaccineByID(ctx, fvID)
		if err != nil {
			s.log.Warn().Err(err).Str("facility_vaccine_id", fvID.String()).Msg("dose provisioning skipped for vaccine")
			continue
		}
		proj, err := s.doses.NextEligibleDose(ctx, appt.ChildID, fv.VaccineID, fv.DiseaseID)
		if err != nil {
			s.log.Warn().Err(err).Str("vaccine_id", fv.VaccineID.String()).Msg("dose projection failed")
			continue
		}
		selections = append(selections, ledger.DoseSelection{
			VaccineID: fv.VaccineID,
			DiseaseID: fv.DiseaseID,
			DoseNum:   proj.DoseNum,
		})
	}

	if len(selections) == 0 {
		return
	}
	if err := s.doses.ScheduleDoses(ctx, appt.ID, appt.ChildID, selections); err != nil {
		s.log.Warn().Err(err).Str("appointment_id", appt.ID.String()).Msg("dose provisioning failed")
	}
}

// vaccineIDsFor resolves the facility vaccines a visit administers:
// order details that still have remaining quantity, or the ad-hoc
// selections stored with the appointment.
func (s *Service) vaccineIDsFor(ctx context.Context, appt *Appointment) ([]uuid.UUID, error) {
	if appt.OrderID == nil {
		return s.repo.AdHocSelections(ctx, appt.ID)
	}

	o, err := s.orders.GetOrderByID(ctx, *appt.OrderID)
	if err != nil {
		return nil, err
	}
	var ids []uuid.UUID
	for _, d := range o.Details {
		if d.RemainingQuantity > 0 {
			ids = append(ids, d.FacilityVaccineID)
		}
	}
	return ids, nil
}

type ScreeningParams struct {
	AppointmentID uuid.UUID
	Consent       bool
	Vitals        screening.Vitals
	Answers       map[string]string
}

// SubmitScreening records the doctor's health survey and advances the
// appointment from pending to approval. The record insert and the
// status flip commit together.
func (s *Service) SubmitScreening(ctx context.Context, p ScreeningParams) (*Appointment, error) {
	rec := &screening.Record{
		ID:            uuid.New(),
		AppointmentID: p.AppointmentID,
		Consent:       p.Consent,
		Vitals:        p.Vitals,
		Answers:       p.Answers,
	}
	if err := rec.Validate(); err != nil {
		metrics.Transitions.WithLabelValues(string(ActionSubmitScreening), "rejected").Inc()
		return nil, err
	}

	appt, err := s.repo.GetByID(ctx, p.AppointmentID)
	if err != nil {
		return nil, err
	}

	to, ok := NextStatus(appt.Status, ActionSubmitScreening)
	if !ok {
		metrics.Transitions.WithLabelValues(string(ActionSubmitScreening), "rejected").Inc()
		return nil, errs.InvalidTransition("health screening is not allowed while appointment is %s", appt.Status)
	}

	var updated *Appointment
	err = s.repo.InTx(ctx, func(q db.Querier) error {
		if err := s.screenings.Insert(ctx, q, rec); err != nil {
			return err
		}

		var err error
		updated, err = s.casUpdate(ctx, q, appt.ID, appt.Status, to)
		if err != nil {
			return err
		}

		return s.events.Insert(ctx, q, EventScreeningApproved, appt.ID, map[string]any{
			"consent": p.Consent,
		})
	})
	if err != nil {
		metrics.Transitions.WithLabelValues(string(ActionSubmitScreening), "error").Inc()
		return nil, err
	}

	metrics.Transitions.WithLabelValues(string(ActionSubmitScreening), "ok").Inc()
	return updated, nil
}

// ConfirmPayment advances approval to paid once the external payment
// signal arrives. Appointments with a linked order additionally require
// the order itself to report paid.
func (s *Service) ConfirmPayment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	to, ok := NextStatus(appt.Status, ActionConfirmPayment)
	if !ok {
		metrics.Transitions.WithLabelValues(string(ActionConfirmPayment), "rejected").Inc()
		return nil, errs.InvalidTransition("payment confirmation is not allowed while appointment is %s", appt.Status)
	}

	// Health survey gate: approval must actually carry a screening
	// record, even if the status was reached some other way.
	if _, err := s.screenings.GetByAppointment(ctx, id); err != nil {
		if errs.IsKind(err, errs.KindNotFound) {
			metrics.Transitions.WithLabelValues(string(ActionConfirmPayment), "rejected").Inc()
			return nil, errs.Validation("health survey is incomplete for this appointment")
		}
		return nil, err
	}

	if appt.OrderID != nil {
		o, err := s.orders.GetOrderByID(ctx, *appt.OrderID)
		if err != nil {
			return nil, err
		}
		if o.Status != order.StatusPaid {
			metrics.Transitions.WithLabelValues(string(ActionConfirmPayment), "rejected").Inc()
			return nil, errs.Conflict("linked order %s is not paid", o.ID)
		}
	}

	var updated *Appointment
	err = s.repo.InTx(ctx, func(q db.Querier) error {
		var err error
		updated, err = s.casUpdate(ctx, q, appt.ID, appt.Status, to)
		if err != nil {
			return err
		}
		return s.events.Insert(ctx, q, EventPaymentConfirmed, appt.ID, map[string]any{})
	})
	if err != nil {
		metrics.Transitions.WithLabelValues(string(ActionConfirmPayment), "error").Inc()
		return nil, err
	}

	metrics.Transitions.WithLabelValues(string(ActionConfirmPayment), "ok").Inc()
	return updated, nil
}

type CompleteParams struct {
	AppointmentID           uuid.UUID
	FacilityVaccineID       uuid.UUID
	DoseNumber              int
	ActualDate              time.Time
	ExpectedDateForNextDose time.Time
	Note                    string
}

// CompleteVaccination records the administered dose and closes the
// appointment. Ledger write, order decrement and status flip share one
// transaction; any failure leaves every record untouched.
func (s *Service) CompleteVaccination(ctx context.Context, p CompleteParams) (*Appointment, error) {
	if p.FacilityVaccineID == uuid.Nil {
		return nil, errs.Validation("a facility vaccine must be selected")
	}
	if p.DoseNumber < 1 {
		return nil, errs.Validation("dose number must be at least 1")
	}
	if p.ExpectedDateForNextDose.IsZero() {
		return nil, errs.Validation("expected date for next dose is required")
	}
	if p.ActualDate.IsZero() {
		p.ActualDate = time.Now()
	}

	appt, err := s.repo.GetByID(ctx, p.AppointmentID)
	if err != nil {
		return nil, err
	}

	to, ok := NextStatus(appt.Status, ActionCompleteVaccination)
	if !ok {
		metrics.Transitions.WithLabelValues(string(ActionCompleteVaccination), "rejected").Inc()
		return nil, errs.InvalidTransition("vaccination can only be completed from paid, appointment is %s", appt.Status)
	}

	fv, err := s.cat.GetFacilityVaccineByID(ctx, p.FacilityVaccineID)
	if err != nil {
		return nil, err
	}

	var updated *Appointment
	err = s.repo.InTx(ctx, func(q db.Querier) error {
		profile, err := s.doses.RecordCompletion(ctx, q, ledger.CompletionParams{
			AppointmentID:           appt.ID,
			ChildID:                 appt.ChildID,
			VaccineID:               fv.VaccineID,
			DiseaseID:               fv.DiseaseID,
			DoseNumber:              p.DoseNumber,
			ActualDate:              p.ActualDate,
			ExpectedDateForNextDose: p.ExpectedDateForNextDose,
			Note:                    p.Note,
		})
		if err != nil {
			return err
		}

		if appt.OrderID != nil {
			if err := s.orders.DecrementRemaining(ctx, q, *appt.OrderID, p.FacilityVaccineID); err != nil {
				return err
			}
		}

		updated, err = s.casUpdate(ctx, q, appt.ID, appt.Status, to)
		if err != nil {
			return err
		}

		return s.events.Insert(ctx, q, EventVaccinationCompleted, appt.ID, map[string]any{
			"vaccine_profile_id": profile.ID.String(),
			"dose_num":           profile.DoseNum,
		})
	})
	if err != nil {
		metrics.Transitions.WithLabelValues(string(ActionCompleteVaccination), "error").Inc()
		return nil, err
	}

	metrics.Transitions.WithLabelValues(string(ActionCompleteVaccination), "ok").Inc()
	return updated, nil
}

// Cancel moves any non-terminal appointment to cancelled and frees its
// slot. The reason is free text, kept for the audit trail.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if _, ok := NextStatus(appt.Status, ActionCancel); !ok {
		metrics.Transitions.WithLabelValues(string(ActionCancel), "rejected").Inc()
		return nil, errs.InvalidTransition("appointment is already %s and cannot be cancelled", appt.Status)
	}

	var cancelled *Appointment
	err = s.repo.InTx(ctx, func(q db.Querier) error {
		var err error
		cancelled, err = s.casCancel(ctx, q, appt.ID, appt.Status, reason)
		if err != nil {
			return err
		}
		return s.events.Insert(ctx, q, EventAppointmentCancelled, appt.ID, map[string]any{
			"reason": reason,
		})
	})
	if err != nil {
		metrics.Transitions.WithLabelValues(string(ActionCancel), "error").Inc()
		return nil, err
	}

	if err := s.slots.Release(ctx, appt.SlotID); err != nil {
		s.log.Error().Err(err).Str("slot_id", appt.SlotID.String()).Msg("slot release after cancel failed")
	}

	metrics.Transitions.WithLabelValues(string(ActionCancel), "ok").Inc()
	return cancelled, nil
}

type RebookParams struct {
	AppointmentID    uuid.UUID
	NewSlotID        uuid.UUID
	VaccineProfileID uuid.UUID
	Reason           string
	Note             string
}

// CancelAndRebook atomically moves a booking to a different slot:
// reserve the new slot first, then cancel the old appointment and
// create the new one in a single transaction, carrying the scheduled
// dose profile over. If anything fails after the reserve, the new
// slot's capacity claim is rolled back so no capacity is stranded.
func (s *Service) CancelAndRebook(ctx context.Context, p RebookParams) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, p.AppointmentID)
	if err != nil {
		return nil, err
	}

	if _, ok := NextStatus(appt.Status, ActionCancel); !ok {
		return nil, errs.InvalidTransition("appointment is already %s and cannot be rebooked", appt.Status)
	}
	if p.NewSlotID == appt.SlotID {
		return nil, errs.Validation("rebooking requires a different slot")
	}

	var rebooked *Appointment
	err = s.locker.WithSlotLock(ctx, p.NewSlotID, func(lockCtx context.Context) error {
		if _, err := s.slots.Reserve(lockCtx, p.NewSlotID); err != nil {
			return err
		}

		txErr := s.repo.InTx(lockCtx, func(q db.Querier) error {
			if _, err := s.casCancel(lockCtx, q, appt.ID, appt.Status, p.Reason); err != nil {
				return err
			}

			note := p.Note
			var err error
			rebooked, err = s.repo.Create(lockCtx, q, &Appointment{
				ID:         uuid.New(),
				ChildID:    appt.ChildID,
				MemberID:   appt.MemberID,
				FacilityID: appt.FacilityID,
				SlotID:     p.NewSlotID,
				OrderID:    appt.OrderID,
				Status:     StatusPending,
				Note:       &note,
			})
			if err != nil {
				return fmt.Errorf("create rebooked appointment: %w", err)
			}

			if appt.OrderID == nil {
				selections, err := s.repo.AdHocSelections(lockCtx, appt.ID)
				if err != nil {
					return err
				}
				if err := s.repo.AddAdHocSelections(lockCtx, q, rebooked.ID, selections); err != nil {
					return err
				}
			}

			if p.VaccineProfileID != uuid.Nil {
				if err := s.doses.ReassignProfile(lockCtx, q, p.VaccineProfileID, rebooked.ID); err != nil {
					return err
				}
			}

			return s.events.Insert(lockCtx, q, EventAppointmentRebooked, rebooked.ID, map[string]any{
				"previous_appointment_id": appt.ID.String(),
				"new_slot_id":             p.NewSlotID.String(),
				"reason":                  p.Reason,
			})
		})
		if txErr != nil {
			// Compensation: the new slot was reserved but the rebooking
			// did not commit.
			if relErr := s.slots.Release(lockCtx, p.NewSlotID); relErr != nil {
				s.log.Error().Err(relErr).Str("slot_id", p.NewSlotID.String()).Msg("compensating release failed")
			}
			return txErr
		}

		if err := s.slots.Release(lockCtx, appt.SlotID); err != nil {
			s.log.Error().Err(err).Str("slot_id", appt.SlotID.String()).Msg("old slot release after rebook failed")
		}

		return nil
	})
	if err != nil {
		if err == redisclient.ErrLockNotAcquired {
			metrics.Transitions.WithLabelValues("rebook", "conflict").Inc()
			return nil, errs.Conflict("slot is currently being booked, please retry")
		}
		metrics.Transitions.WithLabelValues("rebook", "error").Inc()
		return nil, err
	}

	metrics.Transitions.WithLabelValues("rebook", "ok").Inc()
	return rebooked, nil
}

// GetDetail hydrates an appointment with its derived vaccines to
// inject: order details with remaining quantity, or ad-hoc selections.
func (s *Service) GetDetail(ctx context.Context, id uuid.UUID) (*Detail, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &Detail{Appointment: *appt}

	if appt.OrderID != nil {
		o, err := s.orders.GetOrderByID(ctx, *appt.OrderID)
		if err != nil {
			return nil, err
		}
		for _, d := range o.Details {
			if d.RemainingQuantity <= 0 {
				continue
			}
			fv, err := s.cat.GetFacilityVaccineByID(ctx, d.FacilityVaccineID)
			if err != nil {
				return nil, err
			}
			detail.VaccinesToInject = append(detail.VaccinesToInject, VaccineToInject{
				FacilityVaccineID: d.FacilityVaccineID,
				VaccineID:         fv.VaccineID,
				DiseaseID:         d.DiseaseID,
				Source:            "order",
				RemainingQuantity: d.RemainingQuantity,
			})
		}
		return detail, nil
	}

	selections, err := s.repo.AdHocSelections(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, fvID := range selections {
		fv, err := s.cat.GetFacilityVaccineByID(ctx, fvID)
		if err != nil {
			return nil, err
		}
		detail.VaccinesToInject = append(detail.VaccinesToInject, VaccineToInject{
			FacilityVaccineID: fvID,
			VaccineID:         fv.VaccineID,
			DiseaseID:         fv.DiseaseID,
			Source:            "ad_hoc",
			RemainingQuantity: 1,
		})
	}

	return detail, nil
}

func (s *Service) ListByChild(ctx context.Context, childID uuid.UUID, limit, offset int) ([]Appointment, error) {
	if limit <= 0 {
		limit = 20 // default
	}
	if limit > 100 {
		limit = 100 // max
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByChild(ctx, childID, limit, offset)
}

// casUpdate applies the conditional status update and turns a missed
// compare-and-swap into a conflict naming the actual current status.
func (s *Service) casUpdate(ctx context.Context, q db.Querier, id uuid.UUID, from, to Status) (*Appointment, error) {
	updated, err := s.repo.UpdateStatus(ctx, q, id, from, to)
	if err != nil {
		if errs.IsKind(err, errs.KindNotFound) {
			return nil, s.casConflict(ctx, id, from)
		}
		return nil, err
	}
	return updated, nil
}

func (s *Service) casCancel(ctx context.Context, q db.Querier, id uuid.UUID, from Status, reason string) (*Appointment, error) {
	cancelled, err := s.repo.CancelWithReason(ctx, q, id, from, reason)
	if err != nil {
		if errs.IsKind(err, errs.KindNotFound) {
			return nil, s.casConflict(ctx, id, from)
		}
		return nil, err
	}
	return cancelled, nil
}

func (s *Service) casConflict(ctx context.Context, id uuid.UUID, expected Status) error {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return errs.Conflict("appointment moved from %s to %s by a concurrent update", expected, current.Status)
}
