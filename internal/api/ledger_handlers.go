package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vaccicare/vaccination-scheduling/internal/catalog"
	"github.com/vaccicare/vaccination-scheduling/internal/ledger"
)

func nextDoseHandler(svc *ledger.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		childID, err := uuid.Parse(chi.URLParam(r, "childID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_child_id", "childID must be a valid UUID")
			return
		}
		vaccineID, err := uuid.Parse(r.URL.Query().Get("vaccine_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_vaccine_id", "vaccine_id query parameter must be a valid UUID")
			return
		}
		diseaseID, err := uuid.Parse(r.URL.Query().Get("disease_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_disease_id", "disease_id query parameter must be a valid UUID")
			return
		}

		proj, err := svc.NextEligibleDose(r.Context(), childID, vaccineID, diseaseID)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, DoseProjectionResponse{
			DoseNum:      proj.DoseNum,
			EarliestDate: proj.EarliestDate.Format("2006-01-02"),
		})
	}
}

func childHistoryHandler(svc *ledger.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		childID, err := uuid.Parse(chi.URLParam(r, "childID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_child_id", "childID must be a valid UUID")
			return
		}

		profiles, err := svc.ChildHistory(r.Context(), childID)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		resp := make([]VaccineProfileResponse, 0, len(profiles))
		for i := range profiles {
			resp = append(resp, toProfileResponse(&profiles[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func childAgeHandler(cat catalog.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		childID, err := uuid.Parse(chi.URLParam(r, "childID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_child_id", "childID must be a valid UUID")
			return
		}

		child, err := cat.GetChildByID(r.Context(), childID)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		age := ledger.ChildAge(child.BirthDate, time.Now())
		writeJSON(w, http.StatusOK, ChildAgeResponse{Value: age.Value, Unit: string(age.Unit)})
	}
}
