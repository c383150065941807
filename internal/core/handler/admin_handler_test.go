package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/mkhonta/esave/internal/core/handler"
	"github.com/mkhonta/esave/internal/core/logger"
	"github.com/mkhonta/esave/internal/core/quote"
	"github.com/mkhonta/esave/internal/core/repository/memory"
	"github.com/mkhonta/esave/internal/core/usecase"
)

func newAdminHandler(t *testing.T) (*handler.AdminHandler, usecase.VaultUsecase) {
	t.Helper()
	repo := memory.NewMemoryVaultRepo(logger.NewNop())
	uc := usecase.NewVaultUsecase(repo, quote.DefaultPolicy, logger.NewNop())
	return handler.NewAdminHandler(uc, logger.NewNop()), uc
}

func seedRevenue(t *testing.T, uc usecase.VaultUsecase) {
	t.Helper()
	ctx := context.Background()
	userID := uuid.New()
	now := time.Now().Add(-2 * time.Hour)

	d, err := uc.Deposit(ctx, userID, decimal.NewFromInt(100), 7, "MOMO-1", now)
	require.NoError(t, err)
	_, err = uc.Deposit(ctx, userID, decimal.NewFromInt(200), 30, "MOMO-2", now)
	require.NoError(t, err)
	_, err = uc.Withdraw(ctx, userID, "76123456", []uuid.UUID{d.ID}, now.Add(time.Hour))
	require.NoError(t, err)
}

func TestGetRevenue(t *testing.T) {
	h, uc := newAdminHandler(t)
	seedRevenue(t, uc)

	rec := httptest.NewRecorder()
	h.GetRevenue(rec, httptest.NewRequest(http.MethodGet, "/api/admin/revenue", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	require.True(t, env.Success)

	var report struct {
		RevenueBreakdown struct {
			TotalRevenue                    decimal.Decimal `json:"totalRevenue"`
			FlatFeesRevenue                 decimal.Decimal `json:"flatFeesRevenue"`
			FlatFeesCount                   int             `json:"flatFeesCount"`
			EarlyWithdrawalPenaltiesRevenue decimal.Decimal `json:"earlyWithdrawalPenaltiesRevenue"`
		} `json:"revenueBreakdown"`
		SystemStats struct {
			TotalUsers         int             `json:"totalUsers"`
			TotalDeposits      int             `json:"totalDeposits"`
			CurrentLockedFunds decimal.Decimal `json:"currentLockedFunds"`
			NetUserFunds       decimal.Decimal `json:"netUserFunds"`
		} `json:"systemStats"`
		SystemProfit decimal.Decimal `json:"systemProfit"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &report))

	assert.Equal(t, "5.00", report.RevenueBreakdown.FlatFeesRevenue.StringFixedBank(2))
	assert.Equal(t, 1, report.RevenueBreakdown.FlatFeesCount)
	assert.Equal(t, "10.00", report.RevenueBreakdown.EarlyWithdrawalPenaltiesRevenue.StringFixedBank(2))
	assert.Equal(t, "15.00", report.RevenueBreakdown.TotalRevenue.StringFixedBank(2))
	assert.Equal(t, "15.00", report.SystemProfit.StringFixedBank(2))
	assert.Equal(t, 1, report.SystemStats.TotalUsers)
	assert.Equal(t, 2, report.SystemStats.TotalDeposits)
	assert.Equal(t, "200.00", report.SystemStats.CurrentLockedFunds.StringFixedBank(2))
	assert.Equal(t, "185.00", report.SystemStats.NetUserFunds.StringFixedBank(2))
}

func TestExportRevenue(t *testing.T) {
	h, uc := newAdminHandler(t)
	seedRevenue(t, uc)

	rec := httptest.NewRecorder()
	h.ExportRevenue(rec, httptest.NewRequest(http.MethodGet, "/api/admin/revenue/export", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".xlsx")

	workbook, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer workbook.Close()

	assert.Contains(t, workbook.GetSheetList(), "Revenue")
	assert.Contains(t, workbook.GetSheetList(), "Transactions")

	rows, err := workbook.GetRows("Transactions")
	require.NoError(t, err)
	// Header plus deposit, deposit, withdrawal and penalty entries.
	assert.Len(t, rows, 5)
}
