package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType classifies ledger entries.
type TransactionType string

const (
	// TransactionDeposit records funds locked into a vault.
	TransactionDeposit TransactionType = "deposit"
	// TransactionWithdrawal records one withdrawal batch; Amount is the net
	// disbursed, FeeAmount the flat fees collected, DepositsCount the number
	// of deposits in the batch.
	TransactionWithdrawal TransactionType = "withdrawal"
	// TransactionPenalty records the early-withdrawal penalty taken from a
	// single deposit.
	TransactionPenalty TransactionType = "penalty"
)

// Transaction is an append-only ledger entry. It is never mutated after
// creation; display and revenue rollups recompute from the log.
type Transaction struct {
	ID                uuid.UUID       `json:"id" db:"id"`
	VaultID           uuid.UUID       `json:"vaultId" db:"vault_id"`
	Type              TransactionType `json:"type" db:"type"`
	Amount            decimal.Decimal `json:"amount" db:"amount"`
	PenaltyFee        decimal.Decimal `json:"penaltyFee" db:"penalty_fee"`
	FeeAmount         decimal.Decimal `json:"feeAmount" db:"fee_amount"`
	DepositsCount     int             `json:"depositsCount" db:"deposits_count"`
	MomoTransactionID string          `json:"momoTransactionId" db:"momo_transaction_id"`
	CreatedAt         time.Time       `json:"createdAt" db:"created_at"`
}
