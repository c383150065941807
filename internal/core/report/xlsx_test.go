package report_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkhonta/esave/internal/core/models"
	"github.com/mkhonta/esave/internal/core/report"
	"github.com/mkhonta/esave/internal/core/usecase"
)

func TestBuildRevenueWorkbook(t *testing.T) {
	rep := &usecase.RevenueReport{
		RevenueBreakdown: usecase.RevenueBreakdown{
			TotalRevenue:                    decimal.NewFromInt(15),
			FlatFeesRevenue:                 decimal.NewFromInt(5),
			FlatFeesCount:                   1,
			EarlyWithdrawalPenaltiesRevenue: decimal.NewFromInt(10),
			EarlyWithdrawalPenaltiesCount:   1,
		},
		SystemStats: usecase.SystemStats{
			TotalUsers:             1,
			TotalDeposits:          2,
			TotalWithdrawals:       1,
			CurrentLockedFunds:     decimal.NewFromInt(200),
			TotalDepositsAmount:    decimal.NewFromInt(300),
			TotalWithdrawalsAmount: decimal.NewFromInt(85),
			NetUserFunds:           decimal.NewFromInt(185),
		},
		SystemProfit: decimal.NewFromInt(15),
	}

	vaultID := uuid.New()
	created := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	txs := []models.Transaction{
		{
			ID:                uuid.New(),
			VaultID:           vaultID,
			Type:              models.TransactionDeposit,
			Amount:            decimal.NewFromInt(100),
			MomoTransactionID: "MOMO-1",
			CreatedAt:         created,
		},
		{
			ID:            uuid.New(),
			VaultID:       vaultID,
			Type:          models.TransactionWithdrawal,
			Amount:        decimal.NewFromInt(85),
			FeeAmount:     decimal.NewFromInt(5),
			DepositsCount: 1,
			CreatedAt:     created.Add(time.Hour),
		},
	}

	f, err := report.BuildRevenueWorkbook(rep, txs)
	require.NoError(t, err)
	defer f.Close()

	require.ElementsMatch(t, []string{"Revenue", "Transactions"}, f.GetSheetList())

	metric, err := f.GetCellValue("Revenue", "A2")
	require.NoError(t, err)
	assert.Equal(t, "Total revenue", metric)
	total, err := f.GetCellValue("Revenue", "B2")
	require.NoError(t, err)
	assert.Equal(t, "15.00", total)

	rows, err := f.GetRows("Transactions")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "ID", rows[0][0])
	assert.Equal(t, "deposit", rows[1][2])
	assert.Equal(t, "100.00", rows[1][3])
	assert.Equal(t, "MOMO-1", rows[1][7])
	assert.Equal(t, "withdrawal", rows[2][2])
	assert.Equal(t, "5.00", rows[2][5])
}

func TestBuildRevenueWorkbookNoTransactions(t *testing.T) {
	rep := &usecase.RevenueReport{}

	f, err := report.BuildRevenueWorkbook(rep, nil)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Transactions")
	require.NoError(t, err)
	require.Len(t, rows, 1)
}
