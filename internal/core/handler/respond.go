package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mkhonta/esave/internal/core/models"
	"github.com/mkhonta/esave/internal/core/momo"
	"github.com/mkhonta/esave/internal/core/quote"
	"github.com/mkhonta/esave/internal/core/repository"
	"github.com/mkhonta/esave/internal/core/usecase"
)

// apiResponse is the envelope every endpoint returns; the mobile client reads
// data and success off it.
type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func respondWithData(w http.ResponseWriter, code int, data interface{}) {
	respondWithJSON(w, code, apiResponse{Success: true, Data: data})
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, apiResponse{Success: false, Error: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload apiResponse) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"success":false,"error":"Internal Server Error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// statusForError maps the domain error taxonomy onto HTTP codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, models.ErrAmountBelowMinimum),
		errors.Is(err, models.ErrInvalidLockPeriod),
		errors.Is(err, usecase.ErrNoDepositsSelected),
		errors.Is(err, usecase.ErrPhoneNumberRequired),
		errors.Is(err, quote.ErrNotWithdrawable):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrVaultNotFound),
		errors.Is(err, repository.ErrDepositNotFound),
		errors.Is(err, quote.ErrQuoteNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrDepositConflict):
		return http.StatusConflict
	case errors.Is(err, momo.ErrGateway):
		return http.StatusBadGateway
	default:
		// Includes models.ErrInvariantViolation: data corruption is internal.
		return http.StatusInternalServerError
	}
}
