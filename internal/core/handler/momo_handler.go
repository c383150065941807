package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mkhonta/esave/internal/core/auth"
	"github.com/mkhonta/esave/internal/core/logger"
	"github.com/mkhonta/esave/internal/core/models"
	"github.com/mkhonta/esave/internal/core/momo"
	"github.com/mkhonta/esave/internal/core/usecase"
)

type MomoHandler struct {
	gateway momo.Gateway
	usecase usecase.VaultUsecase
	log     logger.Logger
}

func NewMomoHandler(gateway momo.Gateway, uc usecase.VaultUsecase, log logger.Logger) *MomoHandler {
	return &MomoHandler{gateway: gateway, usecase: uc, log: log}
}

type tokenData struct {
	AccessToken string `json:"access_token"`
}

// Token serves POST /momo/token.
func (h *MomoHandler) Token(w http.ResponseWriter, r *http.Request) {
	token, err := h.gateway.Token(r.Context())
	if err != nil {
		h.log.Error("MoMo token fetch failed", logger.ErrorField("error", err))
		respondWithError(w, statusForError(err), "Failed to obtain payment token")
		return
	}

	respondWithData(w, http.StatusOK, tokenData{AccessToken: token})
}

type collectRequest struct {
	UserID           string          `json:"userId"`
	Amount           decimal.Decimal `json:"amount"`
	LockPeriodInDays int             `json:"lockPeriodInDays"`
	PhoneNumber      string          `json:"phoneNumber"`
	OrderID          string          `json:"orderId"`
}

// Collect serves POST /momo/money-collect: charge the subscriber through the
// gateway, then record the deposit. A gateway failure leaves the ledger
// untouched.
func (h *MomoHandler) Collect(w http.ResponseWriter, r *http.Request) {
	session, err := auth.SessionFrom(r.Context())
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req collectRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Warn("Failed to decode collect request", logger.ErrorField("error", err))
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	defer r.Body.Close()

	if req.UserID != "" && req.UserID != session.UserID.String() {
		respondWithError(w, http.StatusBadRequest, "userId does not match the authenticated user")
		return
	}
	if strings.TrimSpace(req.PhoneNumber) == "" {
		respondWithError(w, http.StatusBadRequest, "Phone number is required")
		return
	}
	if strings.TrimSpace(req.OrderID) == "" {
		respondWithError(w, http.StatusBadRequest, "Order id is required")
		return
	}

	// Reject invalid deposits before money moves; charging first and
	// refusing the ledger entry after would strand the collection.
	if req.Amount.LessThan(models.MinDepositAmount) {
		respondWithError(w, http.StatusBadRequest, "Minimum deposit amount is E"+models.MinDepositAmount.String())
		return
	}
	if req.LockPeriodInDays <= 0 {
		respondWithError(w, http.StatusBadRequest, "Lock period must be a positive number of days")
		return
	}

	collected, err := h.gateway.Collect(r.Context(), momo.CollectRequest{
		Amount:      req.Amount,
		PhoneNumber: req.PhoneNumber,
		OrderID:     req.OrderID,
	})
	if err != nil {
		h.log.Error("MoMo collection failed",
			logger.StringField("user_id", session.UserID.String()),
			logger.StringField("order_id", req.OrderID),
			logger.ErrorField("error", err))
		respondWithError(w, statusForError(err), "Payment collection failed")
		return
	}

	deposit, err := h.usecase.Deposit(r.Context(), session.UserID, req.Amount, req.LockPeriodInDays, collected.TransactionID, time.Now())
	if err != nil {
		h.log.Error("Failed to record deposit after collection",
			logger.StringField("user_id", session.UserID.String()),
			logger.StringField("order_id", req.OrderID),
			logger.StringField("momo_transaction_id", collected.TransactionID),
			logger.ErrorField("error", err))
		respondWithError(w, statusForError(err), "Failed to record deposit")
		return
	}

	respondWithData(w, http.StatusOK, deposit)
}
