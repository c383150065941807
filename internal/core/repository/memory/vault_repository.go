package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mkhonta/esave/internal/core/logger"
	"github.com/mkhonta/esave/internal/core/models"
	"github.com/mkhonta/esave/internal/core/quote"
	"github.com/mkhonta/esave/internal/core/repository"
)

// vaultState holds one user's ledger. Its mutex is the single-writer lock
// for that vault; the map-level mutex only guards vault lookup/creation.
type vaultState struct {
	mu       sync.Mutex
	vault    models.Vault
	deposits []*models.Deposit
}

type memoryVaultRepo struct {
	mu     sync.RWMutex
	vaults map[uuid.UUID]*vaultState // keyed by userID

	txMu sync.Mutex
	txs  []models.Transaction

	log logger.Logger
}

// NewMemoryVaultRepo returns an in-process VaultRepository. Used by tests and
// as the VAULT_STORE=memory backend for local runs.
func NewMemoryVaultRepo(log logger.Logger) repository.VaultRepository {
	return &memoryVaultRepo{
		vaults: make(map[uuid.UUID]*vaultState),
		log:    log,
	}
}

func (r *memoryVaultRepo) getState(userID uuid.UUID) (*vaultState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.vaults[userID]
	return st, ok
}

func (r *memoryVaultRepo) getOrCreateState(userID uuid.UUID, now time.Time) *vaultState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.vaults[userID]; ok {
		return st
	}
	st := &vaultState{
		vault: models.Vault{
			ID:        uuid.New(),
			UserID:    userID,
			Balance:   decimal.Zero,
			CreatedAt: now.UTC(),
			UpdatedAt: now.UTC(),
		},
	}
	r.vaults[userID] = st
	return st
}

func (r *memoryVaultRepo) GetVault(ctx context.Context, userID uuid.UUID) (*models.Vault, error) {
	st, ok := r.getState(userID)
	if !ok {
		return nil, fmt.Errorf("%w: user %s", repository.ErrVaultNotFound, userID)
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	v := st.vault
	v.Deposits = make([]models.Deposit, len(st.deposits))
	for i, d := range st.deposits {
		v.Deposits[i] = *d
	}
	return &v, nil
}

func (r *memoryVaultRepo) CreateDeposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, lockPeriodDays int, momoTransactionID string, now time.Time) (*models.Deposit, error) {
	deposit, err := models.NewDeposit(uuid.Nil, amount, lockPeriodDays, now)
	if err != nil {
		return nil, err
	}

	st := r.getOrCreateState(userID, now)

	st.mu.Lock()
	defer st.mu.Unlock()

	deposit.VaultID = st.vault.ID
	st.deposits = append(st.deposits, deposit)
	st.vault.UpdatedAt = now.UTC()
	r.reconcileBalance(st)

	r.appendTransaction(models.Transaction{
		ID:                uuid.New(),
		VaultID:           st.vault.ID,
		Type:              models.TransactionDeposit,
		Amount:            deposit.Amount,
		PenaltyFee:        decimal.Zero,
		FeeAmount:         decimal.Zero,
		MomoTransactionID: momoTransactionID,
		CreatedAt:         now.UTC(),
	})

	out := *deposit
	return &out, nil
}

func (r *memoryVaultRepo) CommitWithdrawal(ctx context.Context, userID uuid.UUID, depositIDs []uuid.UUID, now time.Time, policy quote.Policy) (*models.WithdrawalResult, error) {
	st, ok := r.getState(userID)
	if !ok {
		return nil, fmt.Errorf("%w: user %s", repository.ErrVaultNotFound, userID)
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	byID := make(map[uuid.UUID]*models.Deposit, len(st.deposits))
	for _, d := range st.deposits {
		byID[d.ID] = d
	}

	// Verify the whole batch before touching anything: unknown id rejects,
	// already-withdrawn rejects, a quote failure rejects.
	selected := make([]*models.Deposit, 0, len(depositIDs))
	quotes := make([]quote.Quote, 0, len(depositIDs))
	seen := make(map[uuid.UUID]bool, len(depositIDs))
	for _, id := range depositIDs {
		if seen[id] {
			continue
		}
		seen[id] = true

		d, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", repository.ErrDepositNotFound, id)
		}
		if d.Status == models.DepositStatusWithdrawn {
			return nil, fmt.Errorf("%w: %s", repository.ErrDepositConflict, id)
		}
		q, err := quote.Evaluate(d, now, policy)
		if err != nil {
			return nil, err
		}
		selected = append(selected, d)
		quotes = append(quotes, q)
	}

	ids := make([]uuid.UUID, len(quotes))
	for i := range quotes {
		ids[i] = quotes[i].DepositID
	}
	totals, err := quote.Aggregate(quotes, ids)
	if err != nil {
		return nil, err
	}

	for _, d := range selected {
		if err := d.MarkWithdrawn(now); err != nil {
			return nil, fmt.Errorf("%w: %s", repository.ErrDepositConflict, d.ID)
		}
	}
	st.vault.UpdatedAt = now.UTC()
	r.reconcileBalance(st)

	r.appendTransaction(models.Transaction{
		ID:            uuid.New(),
		VaultID:       st.vault.ID,
		Type:          models.TransactionWithdrawal,
		Amount:        totals.TotalNet,
		PenaltyFee:    totals.TotalPenalties,
		FeeAmount:     totals.TotalFees,
		DepositsCount: totals.DepositsCount,
		CreatedAt:     now.UTC(),
	})
	for i := range quotes {
		if quotes[i].Penalty.IsZero() {
			continue
		}
		r.appendTransaction(models.Transaction{
			ID:         uuid.New(),
			VaultID:    st.vault.ID,
			Type:       models.TransactionPenalty,
			Amount:     quotes[i].Penalty,
			PenaltyFee: quotes[i].Penalty,
			FeeAmount:  decimal.Zero,
			CreatedAt:  now.UTC(),
		})
	}

	return &models.WithdrawalResult{
		TotalWithdrawn:    totals.TotalNet,
		TotalFees:         totals.TotalFees,
		TotalPenalties:    totals.TotalPenalties,
		DepositsProcessed: totals.DepositsCount,
		ReferenceID:       uuid.New(),
	}, nil
}

func (r *memoryVaultRepo) RecentTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]models.Transaction, error) {
	st, ok := r.getState(userID)
	if !ok {
		return nil, nil
	}

	st.mu.Lock()
	vaultID := st.vault.ID
	st.mu.Unlock()

	r.txMu.Lock()
	defer r.txMu.Unlock()

	out := make([]models.Transaction, 0, limit)
	for i := len(r.txs) - 1; i >= 0 && len(out) < limit; i-- {
		if r.txs[i].VaultID == vaultID {
			out = append(out, r.txs[i])
		}
	}
	return out, nil
}

func (r *memoryVaultRepo) Snapshot(ctx context.Context) (*repository.LedgerSnapshot, error) {
	r.mu.RLock()
	states := make([]*vaultState, 0, len(r.vaults))
	for _, st := range r.vaults {
		states = append(states, st)
	}
	r.mu.RUnlock()

	snap := &repository.LedgerSnapshot{VaultCount: len(states)}
	for _, st := range states {
		st.mu.Lock()
		for _, d := range st.deposits {
			if d.Status != models.DepositStatusWithdrawn {
				snap.ActiveDeposits = append(snap.ActiveDeposits, *d)
			}
		}
		st.mu.Unlock()
	}

	r.txMu.Lock()
	snap.Transactions = append([]models.Transaction(nil), r.txs...)
	r.txMu.Unlock()

	return snap, nil
}

// reconcileBalance recomputes the derived balance from the deposit set.
// Caller holds st.mu.
func (r *memoryVaultRepo) reconcileBalance(st *vaultState) {
	total := decimal.Zero
	for _, d := range st.deposits {
		if d.Status != models.DepositStatusWithdrawn {
			total = total.Add(d.Amount)
		}
	}
	st.vault.Balance = total
}

func (r *memoryVaultRepo) appendTransaction(tx models.Transaction) {
	r.txMu.Lock()
	r.txs = append(r.txs, tx)
	r.txMu.Unlock()
}
