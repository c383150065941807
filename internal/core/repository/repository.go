package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mkhonta/esave/internal/core/models"
	"github.com/mkhonta/esave/internal/core/quote"
)

var (
	ErrVaultNotFound   = errors.New("vault not found")
	ErrDepositNotFound = errors.New("deposit not found in vault")
	// ErrDepositConflict is returned when a deposit named in a commit is
	// already withdrawn, whether by an earlier request or a concurrent one.
	// The whole batch is rejected; nothing is persisted.
	ErrDepositConflict = errors.New("deposit already withdrawn")
)

// LedgerSnapshot is a read-only view used by revenue projections. Deposits
// are the still-active ones; Transactions is the full append-only log in
// creation order.
type LedgerSnapshot struct {
	VaultCount     int
	ActiveDeposits []models.Deposit
	Transactions   []models.Transaction
}

// VaultRepository owns persistence of vaults, deposits and the transaction
// log. Implementations serialize mutations per vault and re-verify deposit
// state inside the same transaction that marks it withdrawn.
type VaultRepository interface {
	// GetVault loads a user's vault with its deposits in creation order.
	GetVault(ctx context.Context, userID uuid.UUID) (*models.Vault, error)

	// CreateDeposit appends a new LOCKED deposit to the user's vault
	// (creating the vault on first use), reconciles the balance and
	// records the deposit transaction atomically.
	CreateDeposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, lockPeriodDays int, momoTransactionID string, now time.Time) (*models.Deposit, error)

	// CommitWithdrawal authoritatively re-evaluates every named deposit at
	// now under the given policy, marks them withdrawn, reconciles the
	// balance and appends the withdrawal and penalty transactions. All or
	// nothing: any invalid id fails the batch.
	CommitWithdrawal(ctx context.Context, userID uuid.UUID, depositIDs []uuid.UUID, now time.Time, policy quote.Policy) (*models.WithdrawalResult, error)

	// RecentTransactions returns the user's latest ledger entries, newest
	// first.
	RecentTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]models.Transaction, error)

	// Snapshot returns the system-wide view the revenue aggregator projects
	// from.
	Snapshot(ctx context.Context) (*LedgerSnapshot, error)
}
