package quote_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkhonta/esave/internal/core/models"
	"github.com/mkhonta/esave/internal/core/quote"
)

func newDeposit(t *testing.T, amount string, lockDays int, start time.Time) *models.Deposit {
	t.Helper()
	d, err := models.NewDeposit(uuid.New(), decimal.RequireFromString(amount), lockDays, start)
	require.NoError(t, err)
	return d
}

func TestEvaluateEarlyWithdrawal(t *testing.T) {
	start := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	d := newDeposit(t, "100", 7, start)

	q, err := quote.Evaluate(d, start.Add(time.Hour), quote.DefaultPolicy)
	require.NoError(t, err)

	assert.True(t, q.IsEarlyWithdrawal)
	assert.True(t, q.CanWithdraw)
	assert.Equal(t, "10.00", q.Penalty.StringFixedBank(2))
	assert.Equal(t, "5.00", q.FlatFee.StringFixedBank(2))
	assert.Equal(t, "85.00", q.NetAmount.StringFixedBank(2))
}

func TestEvaluateAfterMaturity(t *testing.T) {
	start := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	d := newDeposit(t, "100", 7, start)

	q, err := quote.Evaluate(d, start.AddDate(0, 0, 8), quote.DefaultPolicy)
	require.NoError(t, err)

	assert.False(t, q.IsEarlyWithdrawal)
	assert.True(t, q.CanWithdraw)
	assert.True(t, q.Penalty.IsZero())
	assert.Equal(t, "95.00", q.NetAmount.StringFixedBank(2))
	assert.EqualValues(t, 0, q.HoursUntilMaturity)
}

// The penalty is a step function of the clock: a flat 10% strictly before
// maturity, zero from maturity on, for every lock-period tier.
func TestEvaluatePenaltySchedule(t *testing.T) {
	start := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	for _, lockDays := range []int{1, 2, 3, 7, 30, 45} {
		d := newDeposit(t, "200", lockDays, start)

		for _, tc := range []struct {
			name    string
			now     time.Time
			penalty string
		}{
			{"immediately after deposit", start.Add(time.Minute), "20.00"},
			{"one second before maturity", d.EndDate.Add(-time.Second), "20.00"},
			{"at maturity", d.EndDate, "0.00"},
			{"after maturity", d.EndDate.Add(72 * time.Hour), "0.00"},
		} {
			q, err := quote.Evaluate(d, tc.now, quote.DefaultPolicy)
			require.NoError(t, err, "%d days, %s", lockDays, tc.name)
			assert.Equal(t, tc.penalty, q.Penalty.StringFixedBank(2), "%d days, %s", lockDays, tc.name)
		}
	}
}

func TestEvaluateHoursUntilMaturity(t *testing.T) {
	start := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	d := newDeposit(t, "100", 1, start)

	cases := []struct {
		now   time.Time
		hours int64
	}{
		{start, 24},
		{start.Add(30 * time.Minute), 24}, // partial hours round up
		{start.Add(time.Hour), 23},
		{start.Add(23*time.Hour + 59*time.Minute), 1},
		{d.EndDate, 0},
		{d.EndDate.Add(time.Hour), 0},
	}
	for _, tc := range cases {
		q, err := quote.Evaluate(d, tc.now, quote.DefaultPolicy)
		require.NoError(t, err)
		assert.Equal(t, tc.hours, q.HoursUntilMaturity, "at %s", tc.now)
	}
}

func TestEvaluateIsPure(t *testing.T) {
	start := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	d := newDeposit(t, "123.45", 3, start)
	now := start.Add(36 * time.Hour)

	first, err := quote.Evaluate(d, now, quote.DefaultPolicy)
	require.NoError(t, err)
	second, err := quote.Evaluate(d, now, quote.DefaultPolicy)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	// The deposit itself is untouched.
	assert.Equal(t, models.DepositStatusLocked, d.Status)
}

func TestEvaluateMalformedDeposit(t *testing.T) {
	start := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	d := newDeposit(t, "100", 7, start)
	d.Amount = decimal.Zero

	_, err := quote.Evaluate(d, start.Add(time.Hour), quote.DefaultPolicy)
	assert.ErrorIs(t, err, models.ErrInvariantViolation)
}

func TestEvaluateLockedPolicy(t *testing.T) {
	start := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	d := newDeposit(t, "100", 7, start)
	policy := quote.Policy{WithdrawLockedEnabled: false}

	q, err := quote.Evaluate(d, start.Add(time.Hour), policy)
	require.NoError(t, err)
	assert.False(t, q.CanWithdraw)

	q, err = quote.Evaluate(d, d.EndDate, policy)
	require.NoError(t, err)
	assert.True(t, q.CanWithdraw)
}
