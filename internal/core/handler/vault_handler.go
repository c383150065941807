package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/mkhonta/esave/internal/core/auth"
	"github.com/mkhonta/esave/internal/core/logger"
	"github.com/mkhonta/esave/internal/core/models"
	"github.com/mkhonta/esave/internal/core/repository"
	"github.com/mkhonta/esave/internal/core/usecase"
)

type VaultHandler struct {
	usecase usecase.VaultUsecase
	log     logger.Logger
}

func NewVaultHandler(uc usecase.VaultUsecase, log logger.Logger) *VaultHandler {
	return &VaultHandler{usecase: uc, log: log}
}

// GetVaultInfo serves GET /api/vault-info.
func (h *VaultHandler) GetVaultInfo(w http.ResponseWriter, r *http.Request) {
	session, err := auth.SessionFrom(r.Context())
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	info, err := h.usecase.VaultInfo(r.Context(), session.UserID, time.Now())
	if err != nil {
		h.log.Error("Failed to load vault info",
			logger.StringField("user_id", session.UserID.String()),
			logger.ErrorField("error", err))
		respondWithError(w, statusForError(err), "Failed to load vault information")
		return
	}

	respondWithData(w, http.StatusOK, info)
}

// GetWithdrawableDeposits serves GET /api/withdrawable-deposits.
func (h *VaultHandler) GetWithdrawableDeposits(w http.ResponseWriter, r *http.Request) {
	session, err := auth.SessionFrom(r.Context())
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	quotes, err := h.usecase.ListWithdrawable(r.Context(), session.UserID, time.Now())
	if err != nil {
		h.log.Error("Failed to list withdrawable deposits",
			logger.StringField("user_id", session.UserID.String()),
			logger.ErrorField("error", err))
		respondWithError(w, statusForError(err), "Failed to load withdrawable deposits")
		return
	}

	respondWithData(w, http.StatusOK, quotes)
}

type withdrawRequest struct {
	PhoneNumber string   `json:"phoneNumber"`
	DepositIDs  []string `json:"depositIds"`
}

// Withdraw serves POST /api/withdraw.
func (h *VaultHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	session, err := auth.SessionFrom(r.Context())
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req withdrawRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Warn("Failed to decode withdraw request", logger.ErrorField("error", err))
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	defer r.Body.Close()

	depositIDs, err := parseDepositIDs(req.DepositIDs)
	if err != nil {
		h.log.Warn("Invalid deposit ids in withdraw request", logger.ErrorField("error", err))
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.usecase.Withdraw(r.Context(), session.UserID, req.PhoneNumber, depositIDs, time.Now())
	if err != nil {
		h.handleWithdrawError(w, session.UserID, err)
		return
	}

	respondWithData(w, http.StatusOK, result)
}

func (h *VaultHandler) handleWithdrawError(w http.ResponseWriter, userID uuid.UUID, err error) {
	switch {
	case errors.Is(err, usecase.ErrPhoneNumberRequired):
		respondWithError(w, http.StatusBadRequest, "Phone number is required")
	case errors.Is(err, usecase.ErrNoDepositsSelected):
		respondWithError(w, http.StatusBadRequest, "Select at least one deposit to withdraw")
	case errors.Is(err, repository.ErrDepositNotFound):
		h.log.Warn("Withdraw referenced unknown deposit",
			logger.StringField("user_id", userID.String()))
		respondWithError(w, http.StatusNotFound, "One or more selected deposits were not found")
	case errors.Is(err, repository.ErrDepositConflict):
		h.log.Warn("Withdraw hit already-withdrawn deposit",
			logger.StringField("user_id", userID.String()))
		respondWithError(w, http.StatusConflict, "One or more selected deposits were already withdrawn; refresh and re-select")
	case errors.Is(err, models.ErrInvariantViolation):
		h.log.Error("Ledger corruption detected during withdraw",
			logger.StringField("user_id", userID.String()),
			logger.ErrorField("error", err))
		respondWithError(w, http.StatusInternalServerError, "Internal ledger error")
	default:
		h.log.Error("Failed to process withdrawal",
			logger.StringField("user_id", userID.String()),
			logger.ErrorField("error", err))
		respondWithError(w, statusForError(err), "Withdrawal failed")
	}
}

func parseDepositIDs(raw []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("invalid deposit id %q", s)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
