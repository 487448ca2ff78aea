package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/vaccicare/vaccination-scheduling/internal/appointment"
	"github.com/vaccicare/vaccination-scheduling/internal/ledger"
	"github.com/vaccicare/vaccination-scheduling/internal/order"
	"github.com/vaccicare/vaccination-scheduling/internal/schedule"
	"github.com/vaccicare/vaccination-scheduling/internal/screening"
)

type BookAppointmentRequest struct {
	ChildID         string   `json:"child_id"`
	FacilityID      string   `json:"facility_id"`
	SlotID          string   `json:"slot_id"`
	OrderID         string   `json:"order_id,omitempty"`
	AdHocVaccineIDs []string `json:"ad_hoc_vaccine_ids,omitempty"`
	Note            string   `json:"note,omitempty"`
}

type SubmitScreeningRequest struct {
	Consent bool              `json:"consent"`
	Vitals  VitalsPayload     `json:"vitals"`
	Answers map[string]string `json:"answers"`
}

type VitalsPayload struct {
	TemperatureC  float64 `json:"temperature_c"`
	HeartRateBPM  int     `json:"heart_rate_bpm"`
	SystolicMmHg  int     `json:"systolic_mmhg"`
	DiastolicMmHg int     `json:"diastolic_mmhg"`
	SpO2Percent   int     `json:"spo2_percent"`
}

type CompleteVaccinationRequest struct {
	FacilityVaccineID       string `json:"facility_vaccine_id"`
	DoseNumber              int    `json:"dose_number"`
	ActualDate              string `json:"actual_date,omitempty"`
	ExpectedDateForNextDose string `json:"expected_date_for_next_dose"`
	Note                    string `json:"note,omitempty"`
}

type CancelAppointmentRequest struct {
	Reason string `json:"reason,omitempty"`
}

type RebookAppointmentRequest struct {
	NewSlotID        string `json:"new_slot_id"`
	VaccineProfileID string `json:"vaccine_profile_id,omitempty"`
	Reason           string `json:"reason,omitempty"`
	Note             string `json:"note,omitempty"`
}

type CreateTemplateRequest struct {
	FacilityID          string `json:"facility_id"`
	Name                string `json:"name"`
	StartMinute         int    `json:"start_minute"`
	EndMinute           int    `json:"end_minute"`
	SlotDurationMinutes int    `json:"slot_duration_minutes"`
	LunchStartMinute    int    `json:"lunch_start_minute"`
	LunchEndMinute      int    `json:"lunch_end_minute"`
	MaxCapacity         int    `json:"max_capacity"`
}

type BulkAssignRequest struct {
	FacilityID string `json:"facility_id"`
	TemplateID string `json:"template_id"`
	Date       string `json:"date"` // YYYY-MM-DD
}

type AdjustOrderRequest struct {
	Details []OrderRevisionPayload `json:"details"`
}

type OrderRevisionPayload struct {
	DiseaseID         string `json:"disease_id"`
	FacilityVaccineID string `json:"facility_vaccine_id"`
	Quantity          int    `json:"quantity"`
}

type AppointmentResponse struct {
	ID           uuid.UUID  `json:"id"`
	ChildID      uuid.UUID  `json:"child_id"`
	MemberID     uuid.UUID  `json:"member_id"`
	FacilityID   uuid.UUID  `json:"facility_id"`
	SlotID       uuid.UUID  `json:"slot_id"`
	OrderID      *uuid.UUID `json:"order_id,omitempty"`
	Status       string     `json:"status"`
	Note         *string    `json:"note,omitempty"`
	CancelReason *string    `json:"cancel_reason,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:           a.ID,
		ChildID:      a.ChildID,
		MemberID:     a.MemberID,
		FacilityID:   a.FacilityID,
		SlotID:       a.SlotID,
		OrderID:      a.OrderID,
		Status:       string(a.Status),
		Note:         a.Note,
		CancelReason: a.CancelReason,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

type VaccineToInjectResponse struct {
	FacilityVaccineID uuid.UUID `json:"facility_vaccine_id"`
	VaccineID         uuid.UUID `json:"vaccine_id"`
	DiseaseID         uuid.UUID `json:"disease_id"`
	Source            string    `json:"source"`
	RemainingQuantity int       `json:"remaining_quantity"`
}

type AppointmentDetailResponse struct {
	AppointmentResponse
	VaccinesToInject []VaccineToInjectResponse `json:"vaccines_to_inject"`
}

func toDetailResponse(d *appointment.Detail) AppointmentDetailResponse {
	resp := AppointmentDetailResponse{
		AppointmentResponse: toAppointmentResponse(&d.Appointment),
		VaccinesToInject:    make([]VaccineToInjectResponse, 0, len(d.VaccinesToInject)),
	}
	for _, v := range d.VaccinesToInject {
		resp.VaccinesToInject = append(resp.VaccinesToInject, VaccineToInjectResponse{
			FacilityVaccineID: v.FacilityVaccineID,
			VaccineID:         v.VaccineID,
			DiseaseID:         v.DiseaseID,
			Source:            v.Source,
			RemainingQuantity: v.RemainingQuantity,
		})
	}
	return resp
}

type SlotResponse struct {
	ID          uuid.UUID `json:"id"`
	FacilityID  uuid.UUID `json:"facility_id"`
	Date        string    `json:"date"`
	StartMinute int       `json:"start_minute"`
	EndMinute   int       `json:"end_minute"`
	MaxCapacity int       `json:"max_capacity"`
	BookedCount int       `json:"booked_count"`
	Status      string    `json:"status"`
}

func toSlotResponse(s *schedule.ScheduleSlot) SlotResponse {
	return SlotResponse{
		ID:          s.ID,
		FacilityID:  s.FacilityID,
		Date:        s.Date.Format("2006-01-02"),
		StartMinute: s.StartMinute,
		EndMinute:   s.EndMinute,
		MaxCapacity: s.MaxCapacity,
		BookedCount: s.BookedCount,
		Status:      string(s.Status),
	}
}

type TemplateResponse struct {
	ID                  uuid.UUID `json:"id"`
	FacilityID          uuid.UUID `json:"facility_id"`
	Name                string    `json:"name"`
	StartMinute         int       `json:"start_minute"`
	EndMinute           int       `json:"end_minute"`
	SlotDurationMinutes int       `json:"slot_duration_minutes"`
	LunchStartMinute    int       `json:"lunch_start_minute"`
	LunchEndMinute      int       `json:"lunch_end_minute"`
	MaxCapacity         int       `json:"max_capacity"`
}

type AssignmentResponse struct {
	FacilityID uuid.UUID   `json:"facility_id"`
	TemplateID uuid.UUID   `json:"template_id"`
	Date       string      `json:"date"`
	SlotIDs    []uuid.UUID `json:"slot_ids"`
}

type OrderDetailResponse struct {
	ID                uuid.UUID `json:"id"`
	FacilityVaccineID uuid.UUID `json:"facility_vaccine_id"`
	DiseaseID         uuid.UUID `json:"disease_id"`
	RemainingQuantity int       `json:"remaining_quantity"`
	Price             int64     `json:"price"`
}

type OrderResponse struct {
	ID          uuid.UUID             `json:"id"`
	Status      string                `json:"status"`
	TotalAmount int64                 `json:"total_amount"`
	Details     []OrderDetailResponse `json:"details"`
}

func toOrderResponse(o *order.Order) OrderResponse {
	resp := OrderResponse{
		ID:          o.ID,
		Status:      string(o.Status),
		TotalAmount: o.TotalAmount,
		Details:     make([]OrderDetailResponse, 0, len(o.Details)),
	}
	for _, d := range o.Details {
		resp.Details = append(resp.Details, OrderDetailResponse{
			ID:                d.ID,
			FacilityVaccineID: d.FacilityVaccineID,
			DiseaseID:         d.DiseaseID,
			RemainingQuantity: d.RemainingQuantity,
			Price:             d.Price,
		})
	}
	return resp
}

type VaccineProfileResponse struct {
	ID                      uuid.UUID  `json:"id"`
	ChildID                 uuid.UUID  `json:"child_id"`
	VaccineID               uuid.UUID  `json:"vaccine_id"`
	DiseaseID               uuid.UUID  `json:"disease_id"`
	DoseNum                 int        `json:"dose_num"`
	Status                  string     `json:"status"`
	ActualDate              *time.Time `json:"actual_date,omitempty"`
	ExpectedDateForNextDose *time.Time `json:"expected_date_for_next_dose,omitempty"`
	AppointmentID           *uuid.UUID `json:"appointment_id,omitempty"`
	Note                    *string    `json:"note,omitempty"`
}

func toProfileResponse(p *ledger.VaccineProfile) VaccineProfileResponse {
	return VaccineProfileResponse{
		ID:                      p.ID,
		ChildID:                 p.ChildID,
		VaccineID:               p.VaccineID,
		DiseaseID:               p.DiseaseID,
		DoseNum:                 p.DoseNum,
		Status:                  string(p.Status),
		ActualDate:              p.ActualDate,
		ExpectedDateForNextDose: p.ExpectedDateForNextDose,
		AppointmentID:           p.AppointmentID,
		Note:                    p.Note,
	}
}

type DoseProjectionResponse struct {
	DoseNum      int    `json:"dose_num"`
	EarliestDate string `json:"earliest_date"`
}

type ChildAgeResponse struct {
	Value int    `json:"value"`
	Unit  string `json:"unit"`
}

func toVitals(p VitalsPayload) screening.Vitals {
	return screening.Vitals{
		TemperatureC:  p.TemperatureC,
		HeartRateBPM:  p.HeartRateBPM,
		SystolicMmHg:  p.SystolicMmHg,
		DiastolicMmHg: p.DiastolicMmHg,
		SpO2Percent:   p.SpO2Percent,
	}
}
