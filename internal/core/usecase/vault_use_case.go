package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mkhonta/esave/internal/core/logger"
	"github.com/mkhonta/esave/internal/core/models"
	"github.com/mkhonta/esave/internal/core/quote"
	"github.com/mkhonta/esave/internal/core/repository"
)

const recentTransactionsLimit = 10

// VaultView is the vault slice of the vault-info payload.
type VaultView struct {
	Balance decimal.Decimal `json:"balance"`
}

// VaultInfo is the aggregate the info endpoint returns: current balance,
// the deposit list with lazily resolved statuses, the latest ledger entries
// and the summary rollup.
type VaultInfo struct {
	Vault              VaultView             `json:"vault"`
	LockedDeposits     []models.Deposit      `json:"lockedDeposits"`
	RecentTransactions []models.Transaction  `json:"recentTransactions"`
	DepositSummary     models.DepositSummary `json:"depositSummary"`
}

type VaultUsecase interface {
	// Deposit records a completed collection as a new locked deposit.
	Deposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, lockPeriodDays int, momoTransactionID string, now time.Time) (*models.Deposit, error)
	// VaultInfo assembles the full vault view for a user. A user without a
	// vault gets an empty view, not an error.
	VaultInfo(ctx context.Context, userID uuid.UUID, now time.Time) (*VaultInfo, error)
	// ListWithdrawable quotes every non-withdrawn deposit at now.
	ListWithdrawable(ctx context.Context, userID uuid.UUID, now time.Time) ([]quote.Quote, error)
	// Withdraw commits an all-or-nothing withdrawal of the selected deposits.
	Withdraw(ctx context.Context, userID uuid.UUID, phoneNumber string, depositIDs []uuid.UUID, now time.Time) (*models.WithdrawalResult, error)
	// Revenue projects the admin revenue report from the transaction log.
	Revenue(ctx context.Context, now time.Time) (*RevenueReport, error)
	// RevenueExport returns the report together with the full transaction
	// log, for the spreadsheet download.
	RevenueExport(ctx context.Context, now time.Time) (*RevenueReport, []models.Transaction, error)
}

type vaultUsecase struct {
	repo   repository.VaultRepository
	policy quote.Policy
	log    logger.Logger
}

func NewVaultUsecase(repo repository.VaultRepository, policy quote.Policy, log logger.Logger) VaultUsecase {
	return &vaultUsecase{repo: repo, policy: policy, log: log}
}

func (uc *vaultUsecase) Deposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, lockPeriodDays int, momoTransactionID string, now time.Time) (*models.Deposit, error) {
	uc.log.Info("Recording deposit",
		logger.StringField("user_id", userID.String()),
		logger.StringField("amount", amount.String()),
		logger.IntField("lock_period_days", lockPeriodDays))

	deposit, err := uc.repo.CreateDeposit(ctx, userID, amount, lockPeriodDays, momoTransactionID, now)
	if err != nil {
		uc.log.Warn("Deposit rejected",
			logger.StringField("user_id", userID.String()),
			logger.ErrorField("error", err))
		return nil, fmt.Errorf("create deposit: %w", err)
	}

	uc.log.Info("Deposit recorded",
		logger.StringField("deposit_id", deposit.ID.String()),
		logger.StringField("amount", deposit.Amount.StringFixedBank(2)),
		logger.StringField("end_date", deposit.EndDate.Format(time.RFC3339)))
	return deposit, nil
}

func (uc *vaultUsecase) VaultInfo(ctx context.Context, userID uuid.UUID, now time.Time) (*VaultInfo, error) {
	vault, err := uc.repo.GetVault(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrVaultNotFound) {
			return emptyVaultInfo(), nil
		}
		return nil, fmt.Errorf("get vault: %w", err)
	}

	info := &VaultInfo{
		Vault:              VaultView{Balance: vault.Balance},
		LockedDeposits:     []models.Deposit{},
		RecentTransactions: []models.Transaction{},
		DepositSummary: models.DepositSummary{
			TotalLockedAmount: decimal.Zero,
		},
	}

	for i := range vault.Deposits {
		d := vault.Deposits[i]
		if d.Status == models.DepositStatusWithdrawn {
			continue
		}
		d.Status = d.EffectiveStatus(now)
		info.LockedDeposits = append(info.LockedDeposits, d)

		info.DepositSummary.TotalLockedAmount = info.DepositSummary.TotalLockedAmount.Add(d.Amount)
		info.DepositSummary.TotalDeposits++
		if uc.policy.WithdrawLockedEnabled || d.Matured(now) {
			info.DepositSummary.WithdrawableDepositsCount++
		}
	}

	txs, err := uc.repo.RecentTransactions(ctx, userID, recentTransactionsLimit)
	if err != nil {
		return nil, fmt.Errorf("recent transactions: %w", err)
	}
	if txs != nil {
		info.RecentTransactions = txs
	}

	return info, nil
}

func (uc *vaultUsecase) ListWithdrawable(ctx context.Context, userID uuid.UUID, now time.Time) ([]quote.Quote, error) {
	vault, err := uc.repo.GetVault(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrVaultNotFound) {
			return []quote.Quote{}, nil
		}
		return nil, fmt.Errorf("get vault: %w", err)
	}

	quotes := make([]quote.Quote, 0, len(vault.Deposits))
	for i := range vault.Deposits {
		if vault.Deposits[i].Status == models.DepositStatusWithdrawn {
			continue
		}
		q, err := quote.Evaluate(&vault.Deposits[i], now, uc.policy)
		if err != nil {
			uc.log.Error("Quote evaluation failed",
				logger.StringField("deposit_id", vault.Deposits[i].ID.String()),
				logger.ErrorField("error", err))
			return nil, err
		}
		quotes = append(quotes, q)
	}

	return quotes, nil
}

func (uc *vaultUsecase) Withdraw(ctx context.Context, userID uuid.UUID, phoneNumber string, depositIDs []uuid.UUID, now time.Time) (*models.WithdrawalResult, error) {
	if strings.TrimSpace(phoneNumber) == "" {
		return nil, ErrPhoneNumberRequired
	}
	if len(depositIDs) == 0 {
		return nil, ErrNoDepositsSelected
	}

	uc.log.Info("Committing withdrawal",
		logger.StringField("user_id", userID.String()),
		logger.IntField("deposits_selected", len(depositIDs)))

	result, err := uc.repo.CommitWithdrawal(ctx, userID, depositIDs, now, uc.policy)
	if err != nil {
		uc.log.Warn("Withdrawal rejected",
			logger.StringField("user_id", userID.String()),
			logger.ErrorField("error", err))
		return nil, fmt.Errorf("commit withdrawal: %w", err)
	}

	uc.log.Info("Withdrawal committed",
		logger.StringField("user_id", userID.String()),
		logger.StringField("total_withdrawn", result.TotalWithdrawn.StringFixedBank(2)),
		logger.StringField("total_penalties", result.TotalPenalties.StringFixedBank(2)),
		logger.IntField("deposits_processed", result.DepositsProcessed),
		logger.StringField("reference_id", result.ReferenceID.String()))
	return result, nil
}

func (uc *vaultUsecase) Revenue(ctx context.Context, now time.Time) (*RevenueReport, error) {
	snap, err := uc.repo.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger snapshot: %w", err)
	}
	return ProjectRevenue(snap), nil
}

func (uc *vaultUsecase) RevenueExport(ctx context.Context, now time.Time) (*RevenueReport, []models.Transaction, error) {
	snap, err := uc.repo.Snapshot(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("ledger snapshot: %w", err)
	}
	return ProjectRevenue(snap), snap.Transactions, nil
}

func emptyVaultInfo() *VaultInfo {
	return &VaultInfo{
		Vault:              VaultView{Balance: decimal.Zero},
		LockedDeposits:     []models.Deposit{},
		RecentTransactions: []models.Transaction{},
		DepositSummary: models.DepositSummary{
			TotalLockedAmount: decimal.Zero,
		},
	}
}
