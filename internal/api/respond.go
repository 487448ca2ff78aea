package api

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/vaccicare/vaccination-scheduling/internal/errs"
	"github.com/vaccicare/vaccination-scheduling/internal/redisclient"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write response body")
	}
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// writeServiceError maps the error taxonomy onto HTTP statuses. Dose
// sequencing and timing violations use 422: the request was well formed
// but the ledger refuses it.
func writeServiceError(w http.ResponseWriter, err error) {
	if err == redisclient.ErrLockNotAcquired {
		writeError(w, http.StatusConflict, "slot_being_booked", "slot is currently being booked, please retry shortly")
		return
	}

	kind := errs.KindOf(err)
	switch kind {
	case errs.KindValidation:
		writeError(w, http.StatusBadRequest, kind.String(), err.Error())
	case errs.KindNotFound:
		writeError(w, http.StatusNotFound, kind.String(), err.Error())
	case errs.KindConflict, errs.KindInvalidTransition, errs.KindCapacityExceeded:
		writeError(w, http.StatusConflict, kind.String(), err.Error())
	case errs.KindDoseSequence, errs.KindTooEarly:
		writeError(w, http.StatusUnprocessableEntity, kind.String(), err.Error())
	default:
		log.Error().Err(err).Msg("unhandled service error")
		writeError(w, http.StatusInternalServerError, "internal_error", "something went wrong")
	}
}
