package quote

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrQuoteNotFound   = errors.New("selected deposit has no quote")
	ErrNotWithdrawable = errors.New("selected deposit is not withdrawable")
)

// Totals is the payout summary over a selected subset of quotes. The net
// identity totalNet == totalOriginal - totalFees - totalPenalties holds
// exactly.
type Totals struct {
	TotalOriginal  decimal.Decimal `json:"totalOriginal"`
	TotalFees      decimal.Decimal `json:"totalFees"`
	TotalPenalties decimal.Decimal `json:"totalPenalties"`
	TotalNet       decimal.Decimal `json:"totalNet"`
	DepositsCount  int             `json:"depositsCount"`
}

// Aggregate sums the quotes named by the selection. Every selected id must
// have a quote and be withdrawable; any miss rejects the whole selection.
// The commit path re-derives quotes itself and runs this same computation,
// so a preview and its authoritative recomputation can only disagree if the
// clock moved a deposit across maturity in between.
func Aggregate(quotes []Quote, selected []uuid.UUID) (Totals, error) {
	byID := make(map[uuid.UUID]*Quote, len(quotes))
	for i := range quotes {
		byID[quotes[i].DepositID] = &quotes[i]
	}

	totals := Totals{
		TotalOriginal:  decimal.Zero,
		TotalFees:      decimal.Zero,
		TotalPenalties: decimal.Zero,
		TotalNet:       decimal.Zero,
	}

	seen := make(map[uuid.UUID]bool, len(selected))
	for _, id := range selected {
		if seen[id] {
			continue
		}
		seen[id] = true

		q, ok := byID[id]
		if !ok {
			return Totals{}, fmt.Errorf("%w: %s", ErrQuoteNotFound, id)
		}
		if !q.CanWithdraw {
			return Totals{}, fmt.Errorf("%w: %s", ErrNotWithdrawable, id)
		}

		totals.TotalOriginal = totals.TotalOriginal.Add(q.Amount)
		totals.TotalFees = totals.TotalFees.Add(q.FlatFee)
		totals.TotalPenalties = totals.TotalPenalties.Add(q.Penalty)
		totals.TotalNet = totals.TotalNet.Add(q.NetAmount)
		totals.DepositsCount++
	}

	return totals, nil
}
