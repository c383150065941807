package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MinDepositAmount is the smallest deposit the product accepts, in E.
var MinDepositAmount = decimal.NewFromInt(10)

var (
	ErrAmountBelowMinimum = errors.New("amount below minimum deposit")
	ErrInvalidLockPeriod  = errors.New("lock period must be positive")
	ErrAlreadyWithdrawn   = errors.New("deposit already withdrawn")
	ErrInvariantViolation = errors.New("ledger invariant violation")
)

// DepositStatus advances LOCKED -> WITHDRAWABLE -> WITHDRAWN, or LOCKED -> WITHDRAWN
// on early withdrawal. It never reverses.
type DepositStatus string

const (
	DepositStatusLocked       DepositStatus = "LOCKED"
	DepositStatusWithdrawable DepositStatus = "WITHDRAWABLE"
	DepositStatusWithdrawn    DepositStatus = "WITHDRAWN"
)

// Deposit is one lock event. Amount, lock period and dates are fixed at
// creation; only the status and the withdrawal timestamp ever change.
type Deposit struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	VaultID        uuid.UUID       `json:"vaultId" db:"vault_id"`
	Amount         decimal.Decimal `json:"amount" db:"amount"`
	LockPeriodDays int             `json:"lockPeriodDays" db:"lock_period_days"`
	StartDate      time.Time       `json:"startDate" db:"start_date"`
	EndDate        time.Time       `json:"endDate" db:"end_date"`
	Status         DepositStatus   `json:"status" db:"status"`
	WithdrawnAt    *time.Time      `json:"withdrawnAt,omitempty" db:"withdrawn_at"`
}

// NewDeposit validates the creation parameters and builds a LOCKED deposit.
func NewDeposit(vaultID uuid.UUID, amount decimal.Decimal, lockPeriodDays int, now time.Time) (*Deposit, error) {
	if amount.LessThan(MinDepositAmount) {
		return nil, fmt.Errorf("%w: got %s, minimum is %s", ErrAmountBelowMinimum, amount.String(), MinDepositAmount.String())
	}
	if lockPeriodDays <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidLockPeriod, lockPeriodDays)
	}

	start := now.UTC()
	return &Deposit{
		ID:             uuid.New(),
		VaultID:        vaultID,
		Amount:         amount,
		LockPeriodDays: lockPeriodDays,
		StartDate:      start,
		EndDate:        start.AddDate(0, 0, lockPeriodDays),
		Status:         DepositStatusLocked,
	}, nil
}

// Validate checks the invariants a stored deposit must hold. A failure here
// means the ledger data is corrupt and the operation must not proceed.
func (d *Deposit) Validate() error {
	if d.ID == uuid.Nil {
		return fmt.Errorf("%w: deposit has no id", ErrInvariantViolation)
	}
	if !d.Amount.IsPositive() {
		return fmt.Errorf("%w: deposit %s has non-positive amount %s", ErrInvariantViolation, d.ID, d.Amount.String())
	}
	if d.LockPeriodDays <= 0 {
		return fmt.Errorf("%w: deposit %s has lock period %d", ErrInvariantViolation, d.ID, d.LockPeriodDays)
	}
	if d.StartDate.IsZero() || d.EndDate.IsZero() || d.EndDate.Before(d.StartDate) {
		return fmt.Errorf("%w: deposit %s has inconsistent dates", ErrInvariantViolation, d.ID)
	}
	return nil
}

// Matured reports whether the lock period has elapsed.
func (d *Deposit) Matured(now time.Time) bool {
	return !now.Before(d.EndDate)
}

// EffectiveStatus resolves the lazily observed LOCKED -> WITHDRAWABLE transition.
// The stored status only moves to WITHDRAWN on an explicit commit.
func (d *Deposit) EffectiveStatus(now time.Time) DepositStatus {
	if d.Status == DepositStatusWithdrawn {
		return DepositStatusWithdrawn
	}
	if d.Matured(now) {
		return DepositStatusWithdrawable
	}
	return DepositStatusLocked
}

// MarkWithdrawn advances the deposit to WITHDRAWN. The transition is terminal.
func (d *Deposit) MarkWithdrawn(now time.Time) error {
	if d.Status == DepositStatusWithdrawn {
		return fmt.Errorf("%w: deposit %s", ErrAlreadyWithdrawn, d.ID)
	}
	ts := now.UTC()
	d.Status = DepositStatusWithdrawn
	d.WithdrawnAt = &ts
	return nil
}
