package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Vault is the per-user container of deposits. Balance is derived state:
// it must always equal the sum of the amounts of the non-withdrawn deposits,
// and every mutation reconciles it against the deposit set.
type Vault struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	UserID    uuid.UUID       `json:"userId" db:"user_id"`
	Balance   decimal.Decimal `json:"balance" db:"balance"`
	CreatedAt time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time       `json:"updatedAt" db:"updated_at"`

	// Deposits in creation order. Populated on aggregate loads, not by
	// every query.
	Deposits []Deposit `json:"-" db:"-"`
}

// ActiveBalance recomputes the derived balance from the deposit set.
func (v *Vault) ActiveBalance() decimal.Decimal {
	total := decimal.Zero
	for i := range v.Deposits {
		if v.Deposits[i].Status != DepositStatusWithdrawn {
			total = total.Add(v.Deposits[i].Amount)
		}
	}
	return total
}

// DepositSummary is the rollup the vault-info endpoint returns alongside the
// raw deposit list.
type DepositSummary struct {
	TotalLockedAmount         decimal.Decimal `json:"totalLockedAmount"`
	TotalDeposits             int             `json:"totalDeposits"`
	WithdrawableDepositsCount int             `json:"withdrawableDepositsCount"`
}

// WithdrawalResult is the authoritative outcome of a committed withdrawal
// batch.
type WithdrawalResult struct {
	TotalWithdrawn    decimal.Decimal `json:"totalWithdrawn"`
	TotalFees         decimal.Decimal `json:"totalFees"`
	TotalPenalties    decimal.Decimal `json:"totalPenalties"`
	DepositsProcessed int             `json:"depositsProcessed"`
	ReferenceID       uuid.UUID       `json:"referenceId"`
}
