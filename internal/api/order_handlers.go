package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vaccicare/vaccination-scheduling/internal/order"
)

func adjustOrderHandler(svc *order.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_order_id", "id must be a valid UUID")
			return
		}

		var req AdjustOrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		revisions := make([]order.Revision, 0, len(req.Details))
		for _, d := range req.Details {
			diseaseID, err := uuid.Parse(d.DiseaseID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_disease_id", "disease_id must be a valid UUID")
				return
			}
			fvID, err := uuid.Parse(d.FacilityVaccineID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_facility_vaccine_id", "facility_vaccine_id must be a valid UUID")
				return
			}
			revisions = append(revisions, order.Revision{
				DiseaseID:         diseaseID,
				FacilityVaccineID: fvID,
				Quantity:          d.Quantity,
			})
		}

		adjusted, err := svc.Adjust(r.Context(), id, revisions)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toOrderResponse(adjusted))
	}
}

func payOrderHandler(svc *order.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_order_id", "id must be a valid UUID")
			return
		}

		paid, err := svc.MarkPaid(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toOrderResponse(paid))
	}
}

func getOrderHandler(svc *order.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_order_id", "id must be a valid UUID")
			return
		}

		o, err := svc.Get(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toOrderResponse(o))
	}
}
