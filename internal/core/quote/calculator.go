package quote

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mkhonta/esave/internal/core/models"
)

var (
	// FlatFee is charged per deposit withdrawn, independent of any penalty.
	FlatFee = decimal.NewFromInt(5)
	// PenaltyRate applies to every withdrawal before maturity, regardless of
	// lock-period tier.
	PenaltyRate = decimal.New(1, -1) // 0.1
)

// Policy is the configurable part of quoting. The product advertises
// immediate withdrawability, so WithdrawLockedEnabled defaults to true;
// turning it off makes unmatured deposits non-withdrawable instead of
// penalized.
type Policy struct {
	WithdrawLockedEnabled bool
}

// DefaultPolicy matches the observed product behaviour.
var DefaultPolicy = Policy{WithdrawLockedEnabled: true}

// Quote is the ephemeral, per-deposit withdrawal terms at a point in time.
// It is recomputed on every request and never persisted.
type Quote struct {
	DepositID          uuid.UUID       `json:"depositId"`
	Amount             decimal.Decimal `json:"amount"`
	LockPeriodDays     int             `json:"lockPeriodDays"`
	StartDate          time.Time       `json:"startDate"`
	EndDate            time.Time       `json:"endDate"`
	Penalty            decimal.Decimal `json:"penalty"`
	FlatFee            decimal.Decimal `json:"flatFee"`
	NetAmount          decimal.Decimal `json:"netAmount"`
	CanWithdraw        bool            `json:"canWithdraw"`
	IsEarlyWithdrawal  bool            `json:"isEarlyWithdrawal"`
	HoursUntilMaturity int64           `json:"hoursUntilMaturity"`
}

// Evaluate is a pure function of the deposit and the clock: same inputs,
// same quote. A malformed deposit is upstream corruption and is surfaced as
// models.ErrInvariantViolation, never defaulted.
func Evaluate(d *models.Deposit, now time.Time, policy Policy) (Quote, error) {
	if err := d.Validate(); err != nil {
		return Quote{}, err
	}

	early := now.Before(d.EndDate)

	penalty := decimal.Zero
	if early {
		penalty = d.Amount.Mul(PenaltyRate)
	}

	q := Quote{
		DepositID:          d.ID,
		Amount:             d.Amount,
		LockPeriodDays:     d.LockPeriodDays,
		StartDate:          d.StartDate,
		EndDate:            d.EndDate,
		Penalty:            penalty,
		FlatFee:            FlatFee,
		NetAmount:          d.Amount.Sub(penalty).Sub(FlatFee),
		CanWithdraw:        policy.WithdrawLockedEnabled || !early,
		IsEarlyWithdrawal:  early,
		HoursUntilMaturity: hoursUntil(d.EndDate, now),
	}
	return q, nil
}

func hoursUntil(endDate, now time.Time) int64 {
	remaining := endDate.Sub(now)
	if remaining <= 0 {
		return 0
	}
	// Round up to whole hours.
	return int64((remaining + time.Hour - 1) / time.Hour)
}
