package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vaccicare/vaccination-scheduling/internal/schedule"
)

func createTemplateHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateTemplateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		facilityID, err := uuid.Parse(req.FacilityID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_facility_id", "facility_id must be a valid UUID")
			return
		}

		tpl, err := svc.CreateTemplate(r.Context(), schedule.CreateTemplateParams{
			FacilityID:          facilityID,
			Name:                req.Name,
			StartMinute:         req.StartMinute,
			EndMinute:           req.EndMinute,
			SlotDurationMinutes: req.SlotDurationMinutes,
			LunchStartMinute:    req.LunchStartMinute,
			LunchEndMinute:      req.LunchEndMinute,
			MaxCapacity:         req.MaxCapacity,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, TemplateResponse{
			ID:                  tpl.ID,
			FacilityID:          tpl.FacilityID,
			Name:                tpl.Name,
			StartMinute:         tpl.StartMinute,
			EndMinute:           tpl.EndMinute,
			SlotDurationMinutes: tpl.SlotDurationMinutes,
			LunchStartMinute:    tpl.LunchStartMinute,
			LunchEndMinute:      tpl.LunchEndMinute,
			MaxCapacity:         tpl.MaxCapacity,
		})
	}
}

func bulkAssignHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BulkAssignRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		facilityID, err := uuid.Parse(req.FacilityID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_facility_id", "facility_id must be a valid UUID")
			return
		}
		templateID, err := uuid.Parse(req.TemplateID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_template_id", "template_id must be a valid UUID")
			return
		}
		date, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		result, err := svc.BulkAssign(r.Context(), facilityID, templateID, date)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, AssignmentResponse{
			FacilityID: result.FacilityID,
			TemplateID: result.TemplateID,
			Date:       result.Date.Format("2006-01-02"),
			SlotIDs:    result.SlotIDs,
		})
	}
}

func listSlotsHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		facilityID, err := uuid.Parse(r.URL.Query().Get("facility_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_facility_id", "facility_id query parameter must be a valid UUID")
			return
		}
		date, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date query parameter must be YYYY-MM-DD")
			return
		}

		slots, err := svc.ListByFacilityDate(r.Context(), facilityID, date)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		resp := make([]SlotResponse, 0, len(slots))
		for i := range slots {
			resp = append(resp, toSlotResponse(&slots[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func getSlotHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_slot_id", "id must be a valid UUID")
			return
		}

		slot, err := svc.GetSlot(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toSlotResponse(slot))
	}
}
