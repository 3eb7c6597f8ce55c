package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"ledgerbank/internal/services"
	"ledgerbank/internal/validator"
)

const maxBodyBytes = 1 << 20

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func respondMessage(w http.ResponseWriter, message string) {
	respondJSON(w, http.StatusOK, map[string]string{"message": message})
}

// decodeAndValidate reads a JSON body into dest and runs its struct rules.
// It writes the 400 response itself and reports false on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dest any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := decoder.Decode(dest); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return false
	}
	if err := validator.Struct(dest); err != nil {
		var verr *validator.Error
		if errors.As(err, &verr) {
			respondJSON(w, http.StatusBadRequest, map[string]any{
				"error":   "invalid request",
				"details": verr.Fields,
			})
			return false
		}
		respondError(w, http.StatusBadRequest, "invalid request")
		return false
	}
	return true
}

// respondServiceError maps the service taxonomy onto HTTP statuses. Storage
// failures never leak their cause.
func respondServiceError(w http.ResponseWriter, err error) {
	switch services.KindOf(err) {
	case services.KindValidation:
		respondError(w, http.StatusBadRequest, services.ReasonOf(err))
	case services.KindBusinessRule:
		reason := services.ReasonOf(err)
		if reason == services.ReasonDuplicateEmail || reason == services.ReasonDuplicateAccountNumber {
			respondError(w, http.StatusConflict, reason)
			return
		}
		respondError(w, http.StatusUnprocessableEntity, reason)
	case services.KindNotFound:
		respondError(w, http.StatusNotFound, services.ReasonOf(err))
	case services.KindAuthentication:
		respondError(w, http.StatusUnauthorized, services.ReasonOf(err))
	default:
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}
