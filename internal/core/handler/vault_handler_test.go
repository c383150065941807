package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkhonta/esave/internal/core/auth"
	"github.com/mkhonta/esave/internal/core/handler"
	"github.com/mkhonta/esave/internal/core/logger"
	"github.com/mkhonta/esave/internal/core/quote"
	"github.com/mkhonta/esave/internal/core/repository/memory"
	"github.com/mkhonta/esave/internal/core/usecase"
)

type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func newVaultHandler(t *testing.T) (*handler.VaultHandler, usecase.VaultUsecase) {
	t.Helper()
	repo := memory.NewMemoryVaultRepo(logger.NewNop())
	uc := usecase.NewVaultUsecase(repo, quote.DefaultPolicy, logger.NewNop())
	return handler.NewVaultHandler(uc, logger.NewNop()), uc
}

func authedRequest(method, target string, body []byte, userID uuid.UUID) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	session := &auth.Session{UserID: userID, Role: auth.RoleUser}
	return req.WithContext(auth.WithSession(req.Context(), session))
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) apiEnvelope {
	t.Helper()
	var env apiEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestGetVaultInfo(t *testing.T) {
	h, uc := newVaultHandler(t)
	userID := uuid.New()
	now := time.Now().Add(-time.Hour)

	_, err := uc.Deposit(context.Background(), userID, decimal.NewFromInt(100), 7, "MOMO-1", now)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.GetVaultInfo(rec, authedRequest(http.MethodGet, "/api/vault-info", nil, userID))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	env := decodeEnvelope(t, rec)
	require.True(t, env.Success)

	var info struct {
		Vault struct {
			Balance decimal.Decimal `json:"balance"`
		} `json:"vault"`
		LockedDeposits []struct {
			Status string `json:"status"`
		} `json:"lockedDeposits"`
		DepositSummary struct {
			TotalDeposits             int `json:"totalDeposits"`
			WithdrawableDepositsCount int `json:"withdrawableDepositsCount"`
		} `json:"depositSummary"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &info))
	assert.Equal(t, "100.00", info.Vault.Balance.StringFixedBank(2))
	require.Len(t, info.LockedDeposits, 1)
	assert.Equal(t, "LOCKED", info.LockedDeposits[0].Status)
	assert.Equal(t, 1, info.DepositSummary.TotalDeposits)
	assert.Equal(t, 1, info.DepositSummary.WithdrawableDepositsCount)
}

func TestGetVaultInfoNewUser(t *testing.T) {
	h, _ := newVaultHandler(t)

	rec := httptest.NewRecorder()
	h.GetVaultInfo(rec, authedRequest(http.MethodGet, "/api/vault-info", nil, uuid.New()))

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)
	assert.Contains(t, string(env.Data), `"lockedDeposits":[]`)
}

func TestGetVaultInfoWithoutSession(t *testing.T) {
	h, _ := newVaultHandler(t)

	rec := httptest.NewRecorder()
	h.GetVaultInfo(rec, httptest.NewRequest(http.MethodGet, "/api/vault-info", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
}

func TestGetWithdrawableDeposits(t *testing.T) {
	h, uc := newVaultHandler(t)
	userID := uuid.New()
	now := time.Now().Add(-time.Hour)

	_, err := uc.Deposit(context.Background(), userID, decimal.NewFromInt(100), 7, "", now)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.GetWithdrawableDeposits(rec, authedRequest(http.MethodGet, "/api/withdrawable-deposits", nil, userID))

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	require.True(t, env.Success)

	var quotes []struct {
		Amount      decimal.Decimal `json:"amount"`
		Penalty     decimal.Decimal `json:"penalty"`
		FlatFee     decimal.Decimal `json:"flatFee"`
		NetAmount   decimal.Decimal `json:"netAmount"`
		CanWithdraw bool            `json:"canWithdraw"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &quotes))
	require.Len(t, quotes, 1)
	assert.Equal(t, "10.00", quotes[0].Penalty.StringFixedBank(2))
	assert.Equal(t, "5.00", quotes[0].FlatFee.StringFixedBank(2))
	assert.Equal(t, "85.00", quotes[0].NetAmount.StringFixedBank(2))
	assert.True(t, quotes[0].CanWithdraw)
}

func TestWithdraw(t *testing.T) {
	h, uc := newVaultHandler(t)
	userID := uuid.New()
	now := time.Now().Add(-time.Hour)

	d, err := uc.Deposit(context.Background(), userID, decimal.NewFromInt(100), 7, "", now)
	require.NoError(t, err)

	body := fmt.Sprintf(`{"phoneNumber":"76123456","depositIds":[%q]}`, d.ID)
	rec := httptest.NewRecorder()
	h.Withdraw(rec, authedRequest(http.MethodPost, "/api/withdraw", []byte(body), userID))

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	require.True(t, env.Success)

	var result struct {
		TotalWithdrawn    decimal.Decimal `json:"totalWithdrawn"`
		TotalFees         decimal.Decimal `json:"totalFees"`
		TotalPenalties    decimal.Decimal `json:"totalPenalties"`
		DepositsProcessed int             `json:"depositsProcessed"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, "85.00", result.TotalWithdrawn.StringFixedBank(2))
	assert.Equal(t, "5.00", result.TotalFees.StringFixedBank(2))
	assert.Equal(t, "10.00", result.TotalPenalties.StringFixedBank(2))
	assert.Equal(t, 1, result.DepositsProcessed)
}

func TestWithdrawErrorMapping(t *testing.T) {
	h, uc := newVaultHandler(t)
	userID := uuid.New()
	now := time.Now().Add(-time.Hour)

	d, err := uc.Deposit(context.Background(), userID, decimal.NewFromInt(100), 7, "", now)
	require.NoError(t, err)
	_, err = uc.Withdraw(context.Background(), userID, "76123456", []uuid.UUID{d.ID}, time.Now())
	require.NoError(t, err)

	cases := []struct {
		name string
		body string
		code int
	}{
		{"malformed json", `{"phoneNumber":`, http.StatusBadRequest},
		{"invalid deposit id", `{"phoneNumber":"76123456","depositIds":["not-a-uuid"]}`, http.StatusBadRequest},
		{"missing phone", fmt.Sprintf(`{"depositIds":[%q]}`, uuid.New()), http.StatusBadRequest},
		{"empty selection", `{"phoneNumber":"76123456","depositIds":[]}`, http.StatusBadRequest},
		{"unknown deposit", fmt.Sprintf(`{"phoneNumber":"76123456","depositIds":[%q]}`, uuid.New()), http.StatusNotFound},
		{"already withdrawn", fmt.Sprintf(`{"phoneNumber":"76123456","depositIds":[%q]}`, d.ID), http.StatusConflict},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Withdraw(rec, authedRequest(http.MethodPost, "/api/withdraw", []byte(tc.body), userID))

			assert.Equal(t, tc.code, rec.Code)
			env := decodeEnvelope(t, rec)
			assert.False(t, env.Success)
			assert.NotEmpty(t, env.Error)
		})
	}
}
