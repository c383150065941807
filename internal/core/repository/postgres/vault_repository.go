package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/mkhonta/esave/internal/core/logger"
	"github.com/mkhonta/esave/internal/core/models"
	"github.com/mkhonta/esave/internal/core/quote"
	"github.com/mkhonta/esave/internal/core/repository"
)

type postgresVaultRepo struct {
	db  *sqlx.DB
	log logger.Logger
}

func NewPostgresVaultRepo(db *sqlx.DB, log logger.Logger) repository.VaultRepository {
	return &postgresVaultRepo{
		db:  db,
		log: log,
	}
}

func (r *postgresVaultRepo) GetVault(ctx context.Context, userID uuid.UUID) (*models.Vault, error) {
	var vault models.Vault
	query := `SELECT id, user_id, balance, created_at, updated_at FROM vaults WHERE user_id = $1`
	err := r.db.GetContext(ctx, &vault, query, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: user %s", repository.ErrVaultNotFound, userID)
		}
		return nil, fmt.Errorf("error getting vault: %w", err)
	}

	depositsQuery := `
		SELECT id, vault_id, amount, lock_period_days, start_date, end_date, status, withdrawn_at
		FROM deposits
		WHERE vault_id = $1
		ORDER BY start_date, id`
	if err := r.db.SelectContext(ctx, &vault.Deposits, depositsQuery, vault.ID); err != nil {
		return nil, fmt.Errorf("error listing deposits: %w", err)
	}

	return &vault, nil
}

func (r *postgresVaultRepo) CreateDeposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, lockPeriodDays int, momoTransactionID string, now time.Time) (deposit *models.Deposit, err error) {
	deposit, err = models.NewDeposit(uuid.Nil, amount, lockPeriodDays, now)
	if err != nil {
		return nil, err
	}

	var isCommitted bool
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		r.log.Error("Error beginning transaction",
			logger.ErrorField("error", err))
		return nil, fmt.Errorf("error beginning transaction: %w", err)
	}

	defer func() {
		if err != nil && !isCommitted {
			if rbErr := tx.Rollback(); rbErr != nil {
				r.log.Error("Transaction rollback failed",
					logger.ErrorField("error", rbErr))
				err = fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
			} else {
				r.log.Warn("Transaction rolled back due to error",
					logger.ErrorField("error", err))
			}
		}
	}()

	vaultID, err := r.lockVaultForUser(ctx, tx, userID, now, true)
	if err != nil {
		return nil, err
	}
	deposit.VaultID = vaultID

	const insertDeposit = `
		INSERT INTO deposits (id, vault_id, amount, lock_period_days, start_date, end_date, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err = tx.ExecContext(ctx, insertDeposit,
		deposit.ID, deposit.VaultID, deposit.Amount, deposit.LockPeriodDays,
		deposit.StartDate, deposit.EndDate, deposit.Status,
	); err != nil {
		return nil, fmt.Errorf("insert deposit: %w", err)
	}

	if err = r.reconcileBalance(ctx, tx, vaultID, now); err != nil {
		return nil, err
	}

	if err = r.insertTransaction(ctx, tx, &models.Transaction{
		ID:                uuid.New(),
		VaultID:           vaultID,
		Type:              models.TransactionDeposit,
		Amount:            deposit.Amount,
		PenaltyFee:        decimal.Zero,
		FeeAmount:         decimal.Zero,
		MomoTransactionID: momoTransactionID,
		CreatedAt:         now.UTC(),
	}); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		r.log.Error("Error committing transaction",
			logger.ErrorField("error", err))
		return nil, fmt.Errorf("commit failed: %w", err)
	}

	isCommitted = true
	return deposit, nil
}

func (r *postgresVaultRepo) CommitWithdrawal(ctx context.Context, userID uuid.UUID, depositIDs []uuid.UUID, now time.Time, policy quote.Policy) (result *models.WithdrawalResult, err error) {
	var isCommitted bool
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		r.log.Error("Error beginning transaction",
			logger.ErrorField("error", err))
		return nil, fmt.Errorf("error beginning transaction: %w", err)
	}

	defer func() {
		if err != nil && !isCommitted {
			if rbErr := tx.Rollback(); rbErr != nil {
				r.log.Error("Transaction rollback failed",
					logger.ErrorField("error", rbErr))
				err = fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
			} else {
				r.log.Warn("Transaction rolled back due to error",
					logger.ErrorField("error", err))
			}
		}
	}()

	vaultID, err := r.lockVaultForUser(ctx, tx, userID, now, false)
	if err != nil {
		return nil, err
	}

	ids := dedupe(depositIDs)

	var deposits []models.Deposit
	const selectDeposits = `
		SELECT id, vault_id, amount, lock_period_days, start_date, end_date, status, withdrawn_at
		FROM deposits
		WHERE vault_id = $1 AND id = ANY($2)
		FOR UPDATE`
	if err = tx.SelectContext(ctx, &deposits, selectDeposits, vaultID, pq.Array(uuidStrings(ids))); err != nil {
		return nil, fmt.Errorf("select deposits: %w", err)
	}
	if len(deposits) != len(ids) {
		err = fmt.Errorf("%w: %d of %d selected deposits belong to the vault",
			repository.ErrDepositNotFound, len(deposits), len(ids))
		return nil, err
	}

	// Re-verify state inside the lock: a deposit withdrawn since the quotes
	// were read fails the batch, it is never silently skipped.
	quotes := make([]quote.Quote, 0, len(deposits))
	for i := range deposits {
		if deposits[i].Status == models.DepositStatusWithdrawn {
			err = fmt.Errorf("%w: %s", repository.ErrDepositConflict, deposits[i].ID)
			return nil, err
		}
		var q quote.Quote
		q, err = quote.Evaluate(&deposits[i], now, policy)
		if err != nil {
			return nil, err
		}
		quotes = append(quotes, q)
	}

	totals, err := quote.Aggregate(quotes, ids)
	if err != nil {
		return nil, err
	}

	const markWithdrawn = `
		UPDATE deposits
		SET status = $1, withdrawn_at = $2
		WHERE vault_id = $3 AND id = ANY($4) AND status <> $1`
	res, err := tx.ExecContext(ctx, markWithdrawn,
		models.DepositStatusWithdrawn, now.UTC(), vaultID, pq.Array(uuidStrings(ids)))
	if err != nil {
		return nil, fmt.Errorf("mark withdrawn: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("mark withdrawn: %w", err)
	}
	if affected != int64(len(ids)) {
		err = fmt.Errorf("%w: expected %d updates, got %d", repository.ErrDepositConflict, len(ids), affected)
		return nil, err
	}

	if err = r.reconcileBalance(ctx, tx, vaultID, now); err != nil {
		return nil, err
	}

	if err = r.insertTransaction(ctx, tx, &models.Transaction{
		ID:            uuid.New(),
		VaultID:       vaultID,
		Type:          models.TransactionWithdrawal,
		Amount:        totals.TotalNet,
		PenaltyFee:    totals.TotalPenalties,
		FeeAmount:     totals.TotalFees,
		DepositsCount: totals.DepositsCount,
		CreatedAt:     now.UTC(),
	}); err != nil {
		return nil, err
	}
	for i := range quotes {
		if quotes[i].Penalty.IsZero() {
			continue
		}
		if err = r.insertTransaction(ctx, tx, &models.Transaction{
			ID:         uuid.New(),
			VaultID:    vaultID,
			Type:       models.TransactionPenalty,
			Amount:     quotes[i].Penalty,
			PenaltyFee: quotes[i].Penalty,
			FeeAmount:  decimal.Zero,
			CreatedAt:  now.UTC(),
		}); err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(); err != nil {
		r.log.Error("Error committing transaction",
			logger.ErrorField("error", err))
		return nil, fmt.Errorf("commit failed: %w", err)
	}

	isCommitted = true
	return &models.WithdrawalResult{
		TotalWithdrawn:    totals.TotalNet,
		TotalFees:         totals.TotalFees,
		TotalPenalties:    totals.TotalPenalties,
		DepositsProcessed: totals.DepositsCount,
		ReferenceID:       uuid.New(),
	}, nil
}

func (r *postgresVaultRepo) RecentTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]models.Transaction, error) {
	var txs []models.Transaction
	query := `
		SELECT t.id, t.vault_id, t.type, t.amount, t.penalty_fee, t.fee_amount,
		       t.deposits_count, t.momo_transaction_id, t.created_at
		FROM transactions t
		JOIN vaults v ON v.id = t.vault_id
		WHERE v.user_id = $1
		ORDER BY t.created_at DESC, t.id DESC
		LIMIT $2`
	if err := r.db.SelectContext(ctx, &txs, query, userID, limit); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

func (r *postgresVaultRepo) Snapshot(ctx context.Context) (*repository.LedgerSnapshot, error) {
	snap := &repository.LedgerSnapshot{}

	if err := r.db.GetContext(ctx, &snap.VaultCount, `SELECT COUNT(*) FROM vaults`); err != nil {
		return nil, fmt.Errorf("count vaults: %w", err)
	}

	const activeDeposits = `
		SELECT id, vault_id, amount, lock_period_days, start_date, end_date, status, withdrawn_at
		FROM deposits
		WHERE status <> $1
		ORDER BY start_date, id`
	if err := r.db.SelectContext(ctx, &snap.ActiveDeposits, activeDeposits, models.DepositStatusWithdrawn); err != nil {
		return nil, fmt.Errorf("list active deposits: %w", err)
	}

	const allTransactions = `
		SELECT id, vault_id, type, amount, penalty_fee, fee_amount,
		       deposits_count, momo_transaction_id, created_at
		FROM transactions
		ORDER BY created_at, id`
	if err := r.db.SelectContext(ctx, &snap.Transactions, allTransactions); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	return snap, nil
}

// lockVaultForUser takes the per-vault write lock. With create set, a missing
// vault is created first (first deposit of a new user).
func (r *postgresVaultRepo) lockVaultForUser(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, now time.Time, create bool) (uuid.UUID, error) {
	if create {
		const upsert = `
			INSERT INTO vaults (id, user_id, balance, created_at, updated_at)
			VALUES ($1, $2, 0, $3, $3)
			ON CONFLICT (user_id) DO NOTHING`
		if _, err := tx.ExecContext(ctx, upsert, uuid.New(), userID, now.UTC()); err != nil {
			return uuid.Nil, fmt.Errorf("create vault: %w", err)
		}
	}

	var vaultID uuid.UUID
	err := tx.GetContext(ctx, &vaultID, `SELECT id FROM vaults WHERE user_id = $1 FOR UPDATE`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, fmt.Errorf("%w: user %s", repository.ErrVaultNotFound, userID)
		}
		return uuid.Nil, fmt.Errorf("lock vault: %w", err)
	}
	return vaultID, nil
}

// reconcileBalance recomputes the derived balance from the deposit set
// inside the same transaction that mutated it.
func (r *postgresVaultRepo) reconcileBalance(ctx context.Context, tx *sqlx.Tx, vaultID uuid.UUID, now time.Time) error {
	const query = `
		UPDATE vaults
		SET balance = (
			SELECT COALESCE(SUM(amount), 0)
			FROM deposits
			WHERE vault_id = $1 AND status <> $2
		), updated_at = $3
		WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, vaultID, models.DepositStatusWithdrawn, now.UTC()); err != nil {
		return fmt.Errorf("reconcile balance: %w", err)
	}
	return nil
}

func (r *postgresVaultRepo) insertTransaction(ctx context.Context, tx *sqlx.Tx, record *models.Transaction) error {
	const query = `
		INSERT INTO transactions
			(id, vault_id, type, amount, penalty_fee, fee_amount, deposits_count, momo_transaction_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	if _, err := tx.ExecContext(ctx, query,
		record.ID,
		record.VaultID,
		record.Type,
		record.Amount,
		record.PenaltyFee,
		record.FeeAmount,
		record.DepositsCount,
		record.MomoTransactionID,
		record.CreatedAt,
	); err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}

	return nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
