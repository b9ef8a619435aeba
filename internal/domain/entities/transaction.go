package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionStatus is the settlement state of a transaction record.
type TransactionStatus string

const (
	// StatusProcessing is the write-ahead state: the record exists but no
	// terminal outcome has been observed yet.
	StatusProcessing TransactionStatus = "processing"

	// StatusPending means a transfer was submitted and its hash is known,
	// but confirmation could not be observed within the timeout. The record
	// stays pending until the reconciler resolves it.
	StatusPending TransactionStatus = "pending"

	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
)

// TransactionKind distinguishes ledger credits from on-chain withdrawals.
type TransactionKind string

const (
	KindPayout     TransactionKind = "payout"
	KindWithdrawal TransactionKind = "withdrawal"
)

// TransactionRecord is one row of game_transactions: a single settlement
// attempt. Records are inserted in `processing` before any chain action and
// transition exactly once to a terminal state, or to `pending` when the
// outcome is unknown.
type TransactionRecord struct {
	ID            uuid.UUID         `db:"id" json:"id"`
	PlayerAddress string            `db:"player_address" json:"playerAddress"`
	Amount        decimal.Decimal   `db:"amount" json:"amount"`
	TokenType     TokenType         `db:"token_type" json:"tokenType"`
	CorrelationID string            `db:"correlation_id" json:"correlationId"`
	Kind          TransactionKind   `db:"kind" json:"kind"`
	Status        TransactionStatus `db:"status" json:"status"`
	TxHash        *string           `db:"tx_hash" json:"transactionHash,omitempty"`
	FailReason    *string           `db:"fail_reason" json:"failReason,omitempty"`
	CreatedAt     time.Time         `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time         `db:"updated_at" json:"updatedAt"`
}
