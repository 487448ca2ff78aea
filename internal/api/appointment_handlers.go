package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vaccicare/vaccination-scheduling/internal/appointment"
)

func bookAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		claims, ok := GetClaims(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing credentials")
			return
		}

		childID, err := uuid.Parse(req.ChildID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_child_id", "child_id must be a valid UUID")
			return
		}
		facilityID, err := uuid.Parse(req.FacilityID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_facility_id", "facility_id must be a valid UUID")
			return
		}
		slotID, err := uuid.Parse(req.SlotID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_slot_id", "slot_id must be a valid UUID")
			return
		}

		params := appointment.BookParams{
			ChildID:    childID,
			MemberID:   claims.SubjectID,
			FacilityID: facilityID,
			SlotID:     slotID,
			Note:       req.Note,
		}

		if req.OrderID != "" {
			orderID, err := uuid.Parse(req.OrderID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_order_id", "order_id must be a valid UUID")
				return
			}
			params.OrderID = &orderID
		}
		for _, raw := range req.AdHocVaccineIDs {
			fvID, err := uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_vaccine_id", "ad_hoc_vaccine_ids must be valid UUIDs")
				return
			}
			params.AdHocVaccineIDs = append(params.AdHocVaccineIDs, fvID)
		}

		appt, err := svc.Book(r.Context(), params)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func getAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		detail, err := svc.GetDetail(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toDetailResponse(detail))
	}
}

func listAppointmentsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		childID, err := uuid.Parse(r.URL.Query().Get("child_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_child_id", "child_id query parameter must be a valid UUID")
			return
		}

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

		appts, err := svc.ListByChild(r.Context(), childID, limit, offset)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		resp := make([]AppointmentResponse, 0, len(appts))
		for i := range appts {
			resp = append(resp, toAppointmentResponse(&appts[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func submitScreeningHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req SubmitScreeningRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		appt, err := svc.SubmitScreening(r.Context(), appointment.ScreeningParams{
			AppointmentID: id,
			Consent:       req.Consent,
			Vitals:        toVitals(req.Vitals),
			Answers:       req.Answers,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func confirmPaymentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		appt, err := svc.ConfirmPayment(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func completeVaccinationHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req CompleteVaccinationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		fvID, err := uuid.Parse(req.FacilityVaccineID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_facility_vaccine_id", "facility_vaccine_id must be a valid UUID")
			return
		}

		expectedNext, err := time.Parse("2006-01-02", req.ExpectedDateForNextDose)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "expected_date_for_next_dose must be YYYY-MM-DD")
			return
		}

		params := appointment.CompleteParams{
			AppointmentID:           id,
			FacilityVaccineID:       fvID,
			DoseNumber:              req.DoseNumber,
			ExpectedDateForNextDose: expectedNext,
			Note:                    req.Note,
		}
		if req.ActualDate != "" {
			actual, err := time.Parse("2006-01-02", req.ActualDate)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_date", "actual_date must be YYYY-MM-DD")
				return
			}
			params.ActualDate = actual
		}

		appt, err := svc.CompleteVaccination(r.Context(), params)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func cancelAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req CancelAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		appt, err := svc.Cancel(r.Context(), id, req.Reason)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func rebookAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req RebookAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		newSlotID, err := uuid.Parse(req.NewSlotID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_slot_id", "new_slot_id must be a valid UUID")
			return
		}

		params := appointment.RebookParams{
			AppointmentID: id,
			NewSlotID:     newSlotID,
			Reason:        req.Reason,
			Note:          req.Note,
		}
		if req.VaccineProfileID != "" {
			profileID, err := uuid.Parse(req.VaccineProfileID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_vaccine_profile_id", "vaccine_profile_id must be a valid UUID")
				return
			}
			params.VaccineProfileID = profileID
		}

		appt, err := svc.CancelAndRebook(r.Context(), params)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}
