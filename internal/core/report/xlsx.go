package report

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/mkhonta/esave/internal/core/models"
	"github.com/mkhonta/esave/internal/core/usecase"
)

const (
	revenueSheet      = "Revenue"
	transactionsSheet = "Transactions"
)

// BuildRevenueWorkbook renders the admin revenue projection and the full
// transaction log as a two-sheet workbook.
func BuildRevenueWorkbook(report *usecase.RevenueReport, txs []models.Transaction) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", revenueSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	rows := [][]interface{}{
		{"Metric", "Value"},
		{"Total revenue", report.RevenueBreakdown.TotalRevenue.StringFixedBank(2)},
		{"Flat fees revenue", report.RevenueBreakdown.FlatFeesRevenue.StringFixedBank(2)},
		{"Flat fees count", report.RevenueBreakdown.FlatFeesCount},
		{"Early-withdrawal penalties revenue", report.RevenueBreakdown.EarlyWithdrawalPenaltiesRevenue.StringFixedBank(2)},
		{"Early-withdrawal penalties count", report.RevenueBreakdown.EarlyWithdrawalPenaltiesCount},
		{"System profit", report.SystemProfit.StringFixedBank(2)},
		{"Total users", report.SystemStats.TotalUsers},
		{"Total deposits", report.SystemStats.TotalDeposits},
		{"Total withdrawals", report.SystemStats.TotalWithdrawals},
		{"Current locked funds", report.SystemStats.CurrentLockedFunds.StringFixedBank(2)},
		{"Total deposits amount", report.SystemStats.TotalDepositsAmount.StringFixedBank(2)},
		{"Total withdrawals amount", report.SystemStats.TotalWithdrawalsAmount.StringFixedBank(2)},
		{"Net user funds", report.SystemStats.NetUserFunds.StringFixedBank(2)},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, fmt.Errorf("cell name: %w", err)
		}
		if err := f.SetSheetRow(revenueSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write revenue row: %w", err)
		}
	}

	if _, err := f.NewSheet(transactionsSheet); err != nil {
		return nil, fmt.Errorf("create transactions sheet: %w", err)
	}

	header := []interface{}{"ID", "Vault", "Type", "Amount", "Penalty fee", "Fee amount", "Deposits", "MoMo transaction", "Created at"}
	if err := f.SetSheetRow(transactionsSheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for i := range txs {
		tx := &txs[i]
		row := []interface{}{
			tx.ID.String(),
			tx.VaultID.String(),
			string(tx.Type),
			tx.Amount.StringFixedBank(2),
			tx.PenaltyFee.StringFixedBank(2),
			tx.FeeAmount.StringFixedBank(2),
			tx.DepositsCount,
			tx.MomoTransactionID,
			tx.CreatedAt.Format(time.RFC3339),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("cell name: %w", err)
		}
		if err := f.SetSheetRow(transactionsSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write transaction row: %w", err)
		}
	}

	return f, nil
}
