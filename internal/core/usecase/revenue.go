package usecase

import (
	"github.com/shopspring/decimal"

	"github.com/mkhonta/esave/internal/core/models"
	"github.com/mkhonta/esave/internal/core/repository"
)

// RevenueBreakdown splits system revenue into its two sources.
type RevenueBreakdown struct {
	TotalRevenue                    decimal.Decimal `json:"totalRevenue"`
	FlatFeesRevenue                 decimal.Decimal `json:"flatFeesRevenue"`
	FlatFeesCount                   int             `json:"flatFeesCount"`
	EarlyWithdrawalPenaltiesRevenue decimal.Decimal `json:"earlyWithdrawalPenaltiesRevenue"`
	EarlyWithdrawalPenaltiesCount   int             `json:"earlyWithdrawalPenaltiesCount"`
}

// SystemStats are the aggregate counters the admin dashboard displays.
type SystemStats struct {
	TotalUsers             int             `json:"totalUsers"`
	TotalDeposits          int             `json:"totalDeposits"`
	TotalWithdrawals       int             `json:"totalWithdrawals"`
	CurrentLockedFunds     decimal.Decimal `json:"currentLockedFunds"`
	TotalDepositsAmount    decimal.Decimal `json:"totalDepositsAmount"`
	TotalWithdrawalsAmount decimal.Decimal `json:"totalWithdrawalsAmount"`
	NetUserFunds           decimal.Decimal `json:"netUserFunds"`
}

// RevenueReport is a read-only projection recomputed from the transaction
// log on every request. Nothing here is stored, so it cannot drift from the
// ledger.
type RevenueReport struct {
	RevenueBreakdown RevenueBreakdown `json:"revenueBreakdown"`
	SystemStats      SystemStats      `json:"systemStats"`
	SystemProfit     decimal.Decimal  `json:"systemProfit"`
}

// ProjectRevenue folds the ledger snapshot into the admin report. Flat fees
// count per deposit withdrawn; penalties count per penalty entry.
func ProjectRevenue(snap *repository.LedgerSnapshot) *RevenueReport {
	report := &RevenueReport{
		RevenueBreakdown: RevenueBreakdown{
			TotalRevenue:                    decimal.Zero,
			FlatFeesRevenue:                 decimal.Zero,
			EarlyWithdrawalPenaltiesRevenue: decimal.Zero,
		},
		SystemStats: SystemStats{
			TotalUsers:             snap.VaultCount,
			CurrentLockedFunds:     decimal.Zero,
			TotalDepositsAmount:    decimal.Zero,
			TotalWithdrawalsAmount: decimal.Zero,
		},
	}

	for i := range snap.Transactions {
		tx := &snap.Transactions[i]
		switch tx.Type {
		case models.TransactionDeposit:
			report.SystemStats.TotalDeposits++
			report.SystemStats.TotalDepositsAmount = report.SystemStats.TotalDepositsAmount.Add(tx.Amount)
		case models.TransactionWithdrawal:
			report.SystemStats.TotalWithdrawals++
			report.SystemStats.TotalWithdrawalsAmount = report.SystemStats.TotalWithdrawalsAmount.Add(tx.Amount)
			report.RevenueBreakdown.FlatFeesRevenue = report.RevenueBreakdown.FlatFeesRevenue.Add(tx.FeeAmount)
			report.RevenueBreakdown.FlatFeesCount += tx.DepositsCount
		case models.TransactionPenalty:
			report.RevenueBreakdown.EarlyWithdrawalPenaltiesRevenue = report.RevenueBreakdown.EarlyWithdrawalPenaltiesRevenue.Add(tx.PenaltyFee)
			report.RevenueBreakdown.EarlyWithdrawalPenaltiesCount++
		}
	}

	for i := range snap.ActiveDeposits {
		report.SystemStats.CurrentLockedFunds = report.SystemStats.CurrentLockedFunds.Add(snap.ActiveDeposits[i].Amount)
	}

	report.RevenueBreakdown.TotalRevenue = report.RevenueBreakdown.FlatFeesRevenue.
		Add(report.RevenueBreakdown.EarlyWithdrawalPenaltiesRevenue)
	report.SystemProfit = report.RevenueBreakdown.TotalRevenue
	report.SystemStats.NetUserFunds = report.SystemStats.CurrentLockedFunds.
		Sub(report.RevenueBreakdown.TotalRevenue)

	return report
}
