package appointment

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vaccicare/vaccination-scheduling/internal/catalog"
	"github.com/vaccicare/vaccination-scheduling/internal/db"
	"github.com/vaccicare/vaccination-scheduling/internal/errs"
	"github.com/vaccicare/vaccination-scheduling/internal/ledger"
	"github.com/vaccicare/vaccination-scheduling/internal/order"
	"github.com/vaccicare/vaccination-scheduling/internal/redisclient"
	"github.com/vaccicare/vaccination-scheduling/internal/schedule"
	"github.com/vaccicare/vaccination-scheduling/internal/screening"
)

// fakeApptRepo keeps appointments in memory. InTx snapshots state and
// restores it when fn fails, mirroring a rolled-back transaction.
type fakeApptRepo struct {
	appointments map[uuid.UUID]*Appointment
	adHoc        map[uuid.UUID][]uuid.UUID
	createErr    error
}

func newFakeApptRepo() *fakeApptRepo {
	return &fakeApptRepo{
		appointments: make(map[uuid.UUID]*Appointment),
		adHoc:        make(map[uuid.UUID][]uuid.UUID),
	}
}

func (f *fakeApptRepo) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, ok := f.appointments[id]
	if !ok {
		return nil, errs.NotFound("appointment not found")
	}
	copied := *a
	return &copied, nil
}

func (f *fakeApptRepo) ListByChild(ctx context.Context, childID uuid.UUID, limit, offset int) ([]Appointment, error) {
	var result []Appointment
	for _, a := range f.appointments {
		if a.ChildID == childID {
			result = append(result, *a)
		}
	}
	return result, nil
}

func (f *fakeApptRepo) Create(ctx context.Context, q db.Querier, a *Appointment) (*Appointment, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	copied := *a
	copied.CreatedAt = time.Now()
	copied.UpdatedAt = time.Now()
	f.appointments[a.ID] = &copied
	result := copied
	return &result, nil
}

func (f *fakeApptRepo) UpdateStatus(ctx context.Context, q db.Querier, id uuid.UUID, from, to Status) (*Appointment, error) {
	a, ok := f.appointments[id]
	if !ok || a.Status != from {
		return nil, errs.NotFound("appointment not found")
	}
	a.Status = to
	copied := *a
	return &copied, nil
}

func (f *fakeApptRepo) CancelWithReason(ctx context.Context, q db.Querier, id uuid.UUID, from Status, reason string) (*Appointment, error) {
	a, ok := f.appointments[id]
	if !ok || a.Status != from {
		return nil, errs.NotFound("appointment not found")
	}
	a.Status = StatusCancelled
	if reason != "" {
		a.CancelReason = &reason
	}
	copied := *a
	return &copied, nil
}

func (f *fakeApptRepo) AdHocSelections(ctx context.Context, appointmentID uuid.UUID) ([]uuid.UUID, error) {
	return f.adHoc[appointmentID], nil
}

func (f *fakeApptRepo) AddAdHocSelections(ctx context.Context, q db.Querier, appointmentID uuid.UUID, facilityVaccineIDs []uuid.UUID) error {
	f.adHoc[appointmentID] = append(f.adHoc[appointmentID], facilityVaccineIDs...)
	return nil
}

func (f *fakeApptRepo) InTx(ctx context.Context, fn func(q db.Querier) error) error {
	apptSnap := make(map[uuid.UUID]*Appointment, len(f.appointments))
	for k, v := range f.appointments {
		copied := *v
		apptSnap[k] = &copied
	}
	adHocSnap := make(map[uuid.UUID][]uuid.UUID, len(f.adHoc))
	for k, v := range f.adHoc {
		adHocSnap[k] = append([]uuid.UUID(nil), v...)
	}

	if err := fn(nil); err != nil {
		f.appointments = apptSnap
		f.adHoc = adHocSnap
		return err
	}
	return nil
}

type fakeSlots struct {
	capacity map[uuid.UUID]int
	booked   map[uuid.UUID]int
	releases []uuid.UUID
}

func newFakeSlots() *fakeSlots {
	return &fakeSlots{
		capacity: make(map[uuid.UUID]int),
		booked:   make(map[uuid.UUID]int),
	}
}

func (f *fakeSlots) addSlot(capacity, booked int) uuid.UUID {
	id := uuid.New()
	f.capacity[id] = capacity
	f.booked[id] = booked
	return id
}

func (f *fakeSlots) Reserve(ctx context.Context, slotID uuid.UUID) (*schedule.ReservationToken, error) {
	cap, ok := f.capacity[slotID]
	if !ok {
		return nil, errs.NotFound("slot not found")
	}
	if f.booked[slotID] >= cap {
		return nil, errs.CapacityExceeded("slot %s is fully booked", slotID)
	}
	f.booked[slotID]++
	return &schedule.ReservationToken{SlotID: slotID, BookedCount: f.booked[slotID]}, nil
}

func (f *fakeSlots) Release(ctx context.Context, slotID uuid.UUID) error {
	if _, ok := f.capacity[slotID]; !ok {
		return errs.NotFound("slot not found")
	}
	if f.booked[slotID] > 0 {
		f.booked[slotID]--
	}
	f.releases = append(f.releases, slotID)
	return nil
}

func (f *fakeSlots) GetSlot(ctx context.Context, slotID uuid.UUID) (*schedule.ScheduleSlot, error) {
	cap, ok := f.capacity[slotID]
	if !ok {
		return nil, errs.NotFound("slot not found")
	}
	return &schedule.ScheduleSlot{ID: slotID, MaxCapacity: cap, BookedCount: f.booked[slotID]}, nil
}

type fakeLedger struct {
	completions   []ledger.CompletionParams
	completionErr error
	reassigned    map[uuid.UUID]uuid.UUID
	scheduled     []ledger.DoseSelection
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{reassigned: make(map[uuid.UUID]uuid.UUID)}
}

func (f *fakeLedger) NextEligibleDose(ctx context.Context, childID, vaccineID, diseaseID uuid.UUID) (*ledger.DoseProjection, error) {
	return &ledger.DoseProjection{DoseNum: 1, EarliestDate: time.Now()}, nil
}

func (f *fakeLedger) ScheduleDoses(ctx context.Context, appointmentID, childID uuid.UUID, selections []ledger.DoseSelection) error {
	f.scheduled = append(f.scheduled, selections...)
	return nil
}

func (f *fakeLedger) RecordCompletion(ctx context.Context, q db.Querier, p ledger.CompletionParams) (*ledger.VaccineProfile, error) {
	if f.completionErr != nil {
		return nil, f.completionErr
	}
	f.completions = append(f.completions, p)
	return &ledger.VaccineProfile{
		ID:        uuid.New(),
		ChildID:   p.ChildID,
		VaccineID: p.VaccineID,
		DiseaseID: p.DiseaseID,
		DoseNum:   p.DoseNumber,
		Status:    ledger.ProfileCompleted,
	}, nil
}

func (f *fakeLedger) ReassignProfile(ctx context.Context, q db.Querier, profileID, appointmentID uuid.UUID) error {
	f.reassigned[profileID] = appointmentID
	return nil
}

type fakeOrders struct {
	orders     map[uuid.UUID]*order.Order
	decrements []uuid.UUID
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{orders: make(map[uuid.UUID]*order.Order)}
}

func (f *fakeOrders) GetOrderByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, errs.NotFound("order not found")
	}
	copied := *o
	return &copied, nil
}

func (f *fakeOrders) DecrementRemaining(ctx context.Context, q db.Querier, orderID, facilityVaccineID uuid.UUID) error {
	if _, ok := f.orders[orderID]; !ok {
		return errs.NotFound("order not found")
	}
	f.decrements = append(f.decrements, facilityVaccineID)
	return nil
}

type fakeCatalog struct {
	facilityVaccines map[uuid.UUID]*catalog.FacilityVaccine
	children         map[uuid.UUID]*catalog.Child
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		facilityVaccines: make(map[uuid.UUID]*catalog.FacilityVaccine),
		children:         make(map[uuid.UUID]*catalog.Child),
	}
}

func (f *fakeCatalog) GetFacilityVaccineByID(ctx context.Context, id uuid.UUID) (*catalog.FacilityVaccine, error) {
	fv, ok := f.facilityVaccines[id]
	if !ok {
		return nil, errs.NotFound("facility vaccine not found")
	}
	return fv, nil
}

func (f *fakeCatalog) GetChildByID(ctx context.Context, id uuid.UUID) (*catalog.Child, error) {
	c, ok := f.children[id]
	if !ok {
		return nil, errs.NotFound("child not found")
	}
	return c, nil
}

type fakeScreenings struct {
	records map[uuid.UUID]*screening.Record
}

func newFakeScreenings() *fakeScreenings {
	return &fakeScreenings{records: make(map[uuid.UUID]*screening.Record)}
}

func (f *fakeScreenings) Insert(ctx context.Context, q db.Querier, rec *screening.Record) error {
	f.records[rec.AppointmentID] = rec
	return nil
}

func (f *fakeScreenings) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*screening.Record, error) {
	rec, ok := f.records[appointmentID]
	if !ok {
		return nil, errs.NotFound("no screening record for appointment")
	}
	return rec, nil
}

type fakeEvents struct {
	types   []string
	failOn  string
	failErr error
}

func (f *fakeEvents) Insert(ctx context.Context, q db.Querier, eventType string, aggregateID uuid.UUID, payload map[string]any) error {
	if f.failOn != "" && eventType == f.failOn {
		return f.failErr
	}
	f.types = append(f.types, eventType)
	return nil
}

func (f *fakeEvents) has(eventType string) bool {
	for _, t := range f.types {
		if t == eventType {
			return true
		}
	}
	return false
}

type fakeLocker struct {
	denied   bool
	acquired int
}

func (f *fakeLocker) WithSlotLock(ctx context.Context, slotID uuid.UUID, fn func(ctx context.Context) error) error {
	if f.denied {
		return redisclient.ErrLockNotAcquired
	}
	f.acquired++
	return fn(ctx)
}

type fixture struct {
	svc        *Service
	repo       *fakeApptRepo
	slots      *fakeSlots
	doses      *fakeLedger
	orders     *fakeOrders
	cat        *fakeCatalog
	screenings *fakeScreenings
	events     *fakeEvents
	locker     *fakeLocker
}

func newFixture() *fixture {
	f := &fixture{
		repo:       newFakeApptRepo(),
		slots:      newFakeSlots(),
		doses:      newFakeLedger(),
		orders:     newFakeOrders(),
		cat:        newFakeCatalog(),
		screenings: newFakeScreenings(),
		events:     &fakeEvents{},
		locker:     &fakeLocker{},
	}
	log := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	f.svc = NewService(f.repo, f.slots, f.doses, f.orders, f.cat, f.screenings, f.events, f.locker, log)
	return f
}

func (f *fixture) addChild() uuid.UUID {
	id := uuid.New()
	f.cat.children[id] = &catalog.Child{ID: id, BirthDate: time.Now().AddDate(-2, 0, 0)}
	return id
}

func (f *fixture) addFacilityVaccine() *catalog.FacilityVaccine {
	fv := &catalog.FacilityVaccine{
		ID:        uuid.New(),
		VaccineID: uuid.New(),
		DiseaseID: uuid.New(),
		Price:     250_000,
		Quantity:  10,
	}
	f.cat.facilityVaccines[fv.ID] = fv
	return fv
}

func (f *fixture) addAppointment(status Status, slotID uuid.UUID, orderID *uuid.UUID) *Appointment {
	a := &Appointment{
		ID:         uuid.New(),
		ChildID:    f.addChild(),
		MemberID:   uuid.New(),
		FacilityID: uuid.New(),
		SlotID:     slotID,
		OrderID:    orderID,
		Status:     status,
	}
	f.repo.appointments[a.ID] = a
	return a
}

func validVitals() screening.Vitals {
	return screening.Vitals{
		TemperatureC:  36.8,
		HeartRateBPM:  110,
		SystolicMmHg:  95,
		DiastolicMmHg: 60,
		SpO2Percent:   98,
	}
}

func validAnswers() map[string]string {
	return map[string]string{
		"allergy_history":    "none",
		"recent_illness":     "none",
		"previous_reactions": "none",
	}
}

func TestBookRequiresExactlyOneVaccineSource(t *testing.T) {
	f := newFixture()
	childID := f.addChild()
	slotID := f.slots.addSlot(5, 0)
	orderID := uuid.New()

	tests := []struct {
		name   string
		params BookParams
	}{
		{
			name: "neither order nor ad-hoc",
			params: BookParams{
				ChildID: childID, MemberID: uuid.New(), FacilityID: uuid.New(), SlotID: slotID,
			},
		},
		{
			name: "both order and ad-hoc",
			params: BookParams{
				ChildID: childID, MemberID: uuid.New(), FacilityID: uuid.New(), SlotID: slotID,
				OrderID: &orderID, AdHocVaccineIDs: []uuid.UUID{uuid.New()},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Book(context.Background(), tc.params)
			if !errs.IsKind(err, errs.KindValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if f.slots.booked[slotID] != 0 {
				t.Fatal("slot should not be reserved on rejected booking")
			}
		})
	}
}

func TestBookReservesSlotAndCreatesPending(t *testing.T) {
	f := newFixture()
	childID := f.addChild()
	slotID := f.slots.addSlot(5, 0)
	fv := f.addFacilityVaccine()

	appt, err := f.svc.Book(context.Background(), BookParams{
		ChildID:         childID,
		MemberID:        uuid.New(),
		FacilityID:      uuid.New(),
		SlotID:          slotID,
		AdHocVaccineIDs: []uuid.UUID{fv.ID},
	})
	if err != nil {
		t.Fatalf("book: %v", err)
	}

	if appt.Status != StatusPending {
		t.Fatalf("status %s, want pending", appt.Status)
	}
	if f.slots.booked[slotID] != 1 {
		t.Fatalf("slot booked count %d, want 1", f.slots.booked[slotID])
	}
	if got := f.repo.adHoc[appt.ID]; len(got) != 1 || got[0] != fv.ID {
		t.Fatalf("ad-hoc selections %v, want [%s]", got, fv.ID)
	}
	if !f.events.has(EventAppointmentBooked) {
		t.Fatal("expected booked event")
	}
	if len(f.doses.scheduled) != 1 || f.doses.scheduled[0].VaccineID != fv.VaccineID {
		t.Fatalf("scheduled doses %v, want one for %s", f.doses.scheduled, fv.VaccineID)
	}
}

func TestBookCompensatesReservationOnCreateFailure(t *testing.T) {
	f := newFixture()
	childID := f.addChild()
	slotID := f.slots.addSlot(5, 0)
	f.repo.createErr = errs.Conflict("insert failed")

	orderID := uuid.New()
	f.orders.orders[orderID] = &order.Order{ID: orderID, Status: order.StatusPending}

	_, err := f.svc.Book(context.Background(), BookParams{
		ChildID: childID, MemberID: uuid.New(), FacilityID: uuid.New(),
		SlotID: slotID, OrderID: &orderID,
	})
	if err == nil {
		t.Fatal("expected error")
	}

	if f.slots.booked[slotID] != 0 {
		t.Fatalf("slot booked count %d after compensation, want 0", f.slots.booked[slotID])
	}
	if len(f.slots.releases) != 1 {
		t.Fatalf("expected one compensating release, got %d", len(f.slots.releases))
	}
}

func TestSubmitScreeningAdvancesToApproval(t *testing.T) {
	f := newFixture()
	slotID := f.slots.addSlot(5, 1)
	appt := f.addAppointment(StatusPending, slotID, nil)

	updated, err := f.svc.SubmitScreening(context.Background(), ScreeningParams{
		AppointmentID: appt.ID,
		Consent:       true,
		Vitals:        validVitals(),
		Answers:       validAnswers(),
	})
	if err != nil {
		t.Fatalf("submit screening: %v", err)
	}

	if updated.Status != StatusApproval {
		t.Fatalf("status %s, want approval", updated.Status)
	}
	if _, err := f.screenings.GetByAppointment(context.Background(), appt.ID); err != nil {
		t.Fatalf("screening record not stored: %v", err)
	}
	if !f.events.has(EventScreeningApproved) {
		t.Fatal("expected screening event")
	}
}

func TestSubmitScreeningRejectsBadVitals(t *testing.T) {
	f := newFixture()
	slotID := f.slots.addSlot(5, 1)
	appt := f.addAppointment(StatusPending, slotID, nil)

	vitals := validVitals()
	vitals.TemperatureC = 41.2

	_, err := f.svc.SubmitScreening(context.Background(), ScreeningParams{
		AppointmentID: appt.ID,
		Consent:       true,
		Vitals:        vitals,
		Answers:       validAnswers(),
	})
	if !errs.IsKind(err, errs.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	current, _ := f.repo.GetByID(context.Background(), appt.ID)
	if current.Status != StatusPending {
		t.Fatalf("status %s, appointment must stay pending", current.Status)
	}
}

func TestSubmitScreeningOnlyFromPending(t *testing.T) {
	f := newFixture()
	slotID := f.slots.addSlot(5, 1)
	appt := f.addAppointment(StatusPaid, slotID, nil)

	_, err := f.svc.SubmitScreening(context.Background(), ScreeningParams{
		AppointmentID: appt.ID,
		Consent:       true,
		Vitals:        validVitals(),
		Answers:       validAnswers(),
	})
	if !errs.IsKind(err, errs.KindInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestConfirmPaymentRequiresScreeningRecord(t *testing.T) {
	f := newFixture()
	slotID := f.slots.addSlot(5, 1)
	appt := f.addAppointment(StatusApproval, slotID, nil)

	_, err := f.svc.ConfirmPayment(context.Background(), appt.ID)
	if !errs.IsKind(err, errs.KindValidation) {
		t.Fatalf("expected validation error for missing survey, got %v", err)
	}
}

func TestConfirmPaymentRequiresPaidOrder(t *testing.T) {
	f := newFixture()
	slotID := f.slots.addSlot(5, 1)
	orderID := uuid.New()
	f.orders.orders[orderID] = &order.Order{ID: orderID, Status: order.StatusPending}
	appt := f.addAppointment(StatusApproval, slotID, &orderID)
	f.screenings.records[appt.ID] = &screening.Record{AppointmentID: appt.ID, Consent: true}

	_, err := f.svc.ConfirmPayment(context.Background(), appt.ID)
	if !errs.IsKind(err, errs.KindConflict) {
		t.Fatalf("expected conflict for unpaid order, got %v", err)
	}

	f.orders.orders[orderID].Status = order.StatusPaid
	updated, err := f.svc.ConfirmPayment(context.Background(), appt.ID)
	if err != nil {
		t.Fatalf("confirm payment: %v", err)
	}
	if updated.Status != StatusPaid {
		t.Fatalf("status %s, want paid", updated.Status)
	}
}

func TestCompleteVaccinationFromPendingRejected(t *testing.T) {
	f := newFixture()
	slotID := f.slots.addSlot(5, 1)
	appt := f.addAppointment(StatusPending, slotID, nil)
	fv := f.addFacilityVaccine()

	_, err := f.svc.CompleteVaccination(context.Background(), CompleteParams{
		AppointmentID:           appt.ID,
		FacilityVaccineID:       fv.ID,
		DoseNumber:              1,
		ExpectedDateForNextDose: time.Now().AddDate(0, 1, 0),
	})
	if !errs.IsKind(err, errs.KindInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}

	if len(f.doses.completions) != 0 {
		t.Fatal("no dose may be recorded for a rejected transition")
	}
	current, _ := f.repo.GetByID(context.Background(), appt.ID)
	if current.Status != StatusPending {
		t.Fatalf("status %s, appointment must stay pending", current.Status)
	}
}

func TestCompleteVaccinationFromPaidSucceeds(t *testing.T) {
	f := newFixture()
	slotID := f.slots.addSlot(5, 1)
	orderID := uuid.New()
	f.orders.orders[orderID] = &order.Order{ID: orderID, Status: order.StatusPaid}
	appt := f.addAppointment(StatusPaid, slotID, &orderID)
	fv := f.addFacilityVaccine()

	updated, err := f.svc.CompleteVaccination(context.Background(), CompleteParams{
		AppointmentID:           appt.ID,
		FacilityVaccineID:       fv.ID,
		DoseNumber:              1,
		ActualDate:              time.Now(),
		ExpectedDateForNextDose: time.Now().AddDate(0, 1, 0),
	})
	if err != nil {
		t.Fatalf("complete vaccination: %v", err)
	}

	if updated.Status != StatusCompleted {
		t.Fatalf("status %s, want completed", updated.Status)
	}
	if len(f.doses.completions) != 1 {
		t.Fatalf("recorded %d doses, want 1", len(f.doses.completions))
	}
	if got := f.doses.completions[0]; got.VaccineID != fv.VaccineID || got.DoseNumber != 1 {
		t.Fatalf("unexpected completion params %+v", got)
	}
	if len(f.orders.decrements) != 1 || f.orders.decrements[0] != fv.ID {
		t.Fatalf("order decrement calls %v, want [%s]", f.orders.decrements, fv.ID)
	}
	if !f.events.has(EventVaccinationCompleted) {
		t.Fatal("expected completion event")
	}
}

func TestCompleteVaccinationRollsBackOnLedgerRejection(t *testing.T) {
	f := newFixture()
	slotID := f.slots.addSlot(5, 1)
	appt := f.addAppointment(StatusPaid, slotID, nil)
	fv := f.addFacilityVaccine()
	f.doses.completionErr = errs.DoseSequence("expected dose 1 for this vaccine, got 2")

	_, err := f.svc.CompleteVaccination(context.Background(), CompleteParams{
		AppointmentID:           appt.ID,
		FacilityVaccineID:       fv.ID,
		DoseNumber:              2,
		ExpectedDateForNextDose: time.Now().AddDate(0, 1, 0),
	})
	if !errs.IsKind(err, errs.KindDoseSequence) {
		t.Fatalf("expected dose sequence error, got %v", err)
	}

	current, _ := f.repo.GetByID(context.Background(), appt.ID)
	if current.Status != StatusPaid {
		t.Fatalf("status %s, appointment must stay paid when ledger rejects", current.Status)
	}
}

func TestCancelReleasesSlot(t *testing.T) {
	f := newFixture()
	slotID := f.slots.addSlot(5, 1)
	appt := f.addAppointment(StatusApproval, slotID, nil)

	cancelled, err := f.svc.Cancel(context.Background(), appt.ID, "family emergency")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}

	if cancelled.Status != StatusCancelled {
		t.Fatalf("status %s, want cancelled", cancelled.Status)
	}
	if cancelled.CancelReason == nil || *cancelled.CancelReason != "family emergency" {
		t.Fatal("cancel reason not stored")
	}
	if f.slots.booked[slotID] != 0 {
		t.Fatalf("slot booked count %d after cancel, want 0", f.slots.booked[slotID])
	}
	if !f.events.has(EventAppointmentCancelled) {
		t.Fatal("expected cancelled event")
	}
}

func TestCancelForbiddenFromTerminalStates(t *testing.T) {
	f := newFixture()
	slotID := f.slots.addSlot(5, 1)

	for _, status := range []Status{StatusCompleted, StatusCancelled} {
		appt := f.addAppointment(status, slotID, nil)
		_, err := f.svc.Cancel(context.Background(), appt.ID, "too late")
		if !errs.IsKind(err, errs.KindInvalidTransition) {
			t.Fatalf("cancel from %s: expected invalid transition, got %v", status, err)
		}
	}
}

func TestRebookAbortsWhenNewSlotFull(t *testing.T) {
	f := newFixture()
	oldSlot := f.slots.addSlot(5, 1)
	newSlot := f.slots.addSlot(1, 1) // full
	appt := f.addAppointment(StatusApproval, oldSlot, nil)

	_, err := f.svc.CancelAndRebook(context.Background(), RebookParams{
		AppointmentID: appt.ID,
		NewSlotID:     newSlot,
		Reason:        "clinic closure",
	})
	if !errs.IsKind(err, errs.KindCapacityExceeded) {
		t.Fatalf("expected capacity exceeded, got %v", err)
	}

	current, _ := f.repo.GetByID(context.Background(), appt.ID)
	if current.Status != StatusApproval {
		t.Fatalf("status %s, original appointment must be untouched", current.Status)
	}
	if f.slots.booked[oldSlot] != 1 {
		t.Fatalf("old slot booked count %d, want 1", f.slots.booked[oldSlot])
	}
	if len(f.repo.appointments) != 1 {
		t.Fatal("no new appointment may exist after an aborted rebook")
	}
}

func TestRebookCompensatesWhenTransactionFails(t *testing.T) {
	f := newFixture()
	oldSlot := f.slots.addSlot(5, 1)
	newSlot := f.slots.addSlot(3, 0)
	appt := f.addAppointment(StatusApproval, oldSlot, nil)
	f.events.failOn = EventAppointmentRebooked
	f.events.failErr = errs.Conflict("event store unavailable")

	_, err := f.svc.CancelAndRebook(context.Background(), RebookParams{
		AppointmentID: appt.ID,
		NewSlotID:     newSlot,
	})
	if err == nil {
		t.Fatal("expected error")
	}

	if f.slots.booked[newSlot] != 0 {
		t.Fatalf("new slot booked count %d after compensation, want 0", f.slots.booked[newSlot])
	}
	current, _ := f.repo.GetByID(context.Background(), appt.ID)
	if current.Status != StatusApproval {
		t.Fatalf("status %s, original appointment must be restored", current.Status)
	}
	if f.slots.booked[oldSlot] != 1 {
		t.Fatalf("old slot booked count %d, want 1", f.slots.booked[oldSlot])
	}
}

func TestRebookMovesAppointmentAndCarriesLinks(t *testing.T) {
	f := newFixture()
	oldSlot := f.slots.addSlot(5, 1)
	newSlot := f.slots.addSlot(3, 0)
	orderID := uuid.New()
	f.orders.orders[orderID] = &order.Order{ID: orderID, Status: order.StatusPaid}
	appt := f.addAppointment(StatusApproval, oldSlot, &orderID)
	profileID := uuid.New()

	rebooked, err := f.svc.CancelAndRebook(context.Background(), RebookParams{
		AppointmentID:    appt.ID,
		NewSlotID:        newSlot,
		VaccineProfileID: profileID,
		Reason:           "earlier opening",
	})
	if err != nil {
		t.Fatalf("rebook: %v", err)
	}

	if rebooked.Status != StatusPending {
		t.Fatalf("status %s, new appointment starts over at pending", rebooked.Status)
	}
	if rebooked.OrderID == nil || *rebooked.OrderID != orderID {
		t.Fatal("order link must carry over")
	}
	if rebooked.SlotID != newSlot {
		t.Fatal("new appointment must sit on the new slot")
	}

	old, _ := f.repo.GetByID(context.Background(), appt.ID)
	if old.Status != StatusCancelled {
		t.Fatalf("old status %s, want cancelled", old.Status)
	}

	if f.slots.booked[oldSlot] != 0 {
		t.Fatalf("old slot booked count %d, want 0", f.slots.booked[oldSlot])
	}
	if f.slots.booked[newSlot] != 1 {
		t.Fatalf("new slot booked count %d, want 1", f.slots.booked[newSlot])
	}
	if got := f.doses.reassigned[profileID]; got != rebooked.ID {
		t.Fatalf("profile reassigned to %s, want %s", got, rebooked.ID)
	}
	if f.locker.acquired != 1 {
		t.Fatalf("lock acquired %d times, want 1", f.locker.acquired)
	}
	if !f.events.has(EventAppointmentRebooked) {
		t.Fatal("expected rebooked event")
	}
}

func TestRebookLockContentionMapsToConflict(t *testing.T) {
	f := newFixture()
	oldSlot := f.slots.addSlot(5, 1)
	newSlot := f.slots.addSlot(3, 0)
	appt := f.addAppointment(StatusApproval, oldSlot, nil)
	f.locker.denied = true

	_, err := f.svc.CancelAndRebook(context.Background(), RebookParams{
		AppointmentID: appt.ID,
		NewSlotID:     newSlot,
	})
	if !errs.IsKind(err, errs.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestRebookRejectsSameSlot(t *testing.T) {
	f := newFixture()
	slotID := f.slots.addSlot(5, 1)
	appt := f.addAppointment(StatusApproval, slotID, nil)

	_, err := f.svc.CancelAndRebook(context.Background(), RebookParams{
		AppointmentID: appt.ID,
		NewSlotID:     slotID,
	})
	if !errs.IsKind(err, errs.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGetDetailDerivesVaccinesFromOrder(t *testing.T) {
	f := newFixture()
	slotID := f.slots.addSlot(5, 1)
	fv1 := f.addFacilityVaccine()
	fv2 := f.addFacilityVaccine()
	orderID := uuid.New()
	f.orders.orders[orderID] = &order.Order{
		ID:     orderID,
		Status: order.StatusPaid,
		Details: []order.Detail{
			{FacilityVaccineID: fv1.ID, DiseaseID: fv1.DiseaseID, RemainingQuantity: 2},
			{FacilityVaccineID: fv2.ID, DiseaseID: fv2.DiseaseID, RemainingQuantity: 0},
		},
	}
	appt := f.addAppointment(StatusPaid, slotID, &orderID)

	detail, err := f.svc.GetDetail(context.Background(), appt.ID)
	if err != nil {
		t.Fatalf("get detail: %v", err)
	}

	if len(detail.VaccinesToInject) != 1 {
		t.Fatalf("got %d vaccines to inject, want 1 (exhausted details excluded)", len(detail.VaccinesToInject))
	}
	v := detail.VaccinesToInject[0]
	if v.FacilityVaccineID != fv1.ID || v.Source != "order" || v.RemainingQuantity != 2 {
		t.Fatalf("unexpected entry %+v", v)
	}
}

func TestGetDetailDerivesVaccinesFromAdHocSelection(t *testing.T) {
	f := newFixture()
	slotID := f.slots.addSlot(5, 1)
	fv := f.addFacilityVaccine()
	appt := f.addAppointment(StatusPending, slotID, nil)
	f.repo.adHoc[appt.ID] = []uuid.UUID{fv.ID}

	detail, err := f.svc.GetDetail(context.Background(), appt.ID)
	if err != nil {
		t.Fatalf("get detail: %v", err)
	}

	if len(detail.VaccinesToInject) != 1 {
		t.Fatalf("got %d vaccines to inject, want 1", len(detail.VaccinesToInject))
	}
	if detail.VaccinesToInject[0].Source != "ad_hoc" {
		t.Fatalf("source %s, want ad_hoc", detail.VaccinesToInject[0].Source)
	}
}
