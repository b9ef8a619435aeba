package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/escrow-service/escrow_service/internal/domain/entities"
	domainerrors "github.com/escrow-service/escrow_service/internal/domain/errors"
)

// SettlementRepository bundles the ledger writes that must land together:
// the balance mutation and the transaction-record transition commit or roll
// back as one database transaction, so a record can never read `completed`
// while the balance was left untouched (or vice versa).
type SettlementRepository struct {
	db           *sqlx.DB
	players      *PlayerRepository
	transactions *TransactionRepository
}

// NewSettlementRepository creates a new settlement repository
func NewSettlementRepository(db *sqlx.DB, players *PlayerRepository, transactions *TransactionRepository) *SettlementRepository {
	return &SettlementRepository{
		db:           db,
		players:      players,
		transactions: transactions,
	}
}

// GetPlayer reads a ledger entry.
func (r *SettlementRepository) GetPlayer(ctx context.Context, wallet string) (*entities.PlayerLedgerEntry, error) {
	return r.players.GetByWallet(ctx, wallet)
}

// InsertRecord writes a standalone transaction record (the withdrawal
// write-ahead insert).
func (r *SettlementRepository) InsertRecord(ctx context.Context, record *entities.TransactionRecord) error {
	return r.transactions.Insert(ctx, r.db, record)
}

// GetRecord fetches a record by correlation id.
func (r *SettlementRepository) GetRecord(ctx context.Context, correlationID string) (*entities.TransactionRecord, error) {
	return r.transactions.GetByCorrelationID(ctx, correlationID)
}

// MarkRecord transitions a record's status outside of a ledger mutation.
func (r *SettlementRepository) MarkRecord(ctx context.Context, id uuid.UUID, status entities.TransactionStatus, txHash, failReason *string) error {
	return r.transactions.UpdateStatus(ctx, r.db, id, status, txHash, failReason)
}

// ListRecordsByStatus lists records in a status, oldest first.
func (r *SettlementRepository) ListRecordsByStatus(ctx context.Context, status entities.TransactionStatus, limit int) ([]*entities.TransactionRecord, error) {
	return r.transactions.ListByStatus(ctx, status, limit)
}

// CommitWithdrawal finalizes a confirmed withdrawal: debit the balance and
// mark the record completed, atomically. Returns false without committing
// anything if the conditional debit found insufficient funds; the caller
// then parks the record for reconciliation instead of completing it.
func (r *SettlementRepository) CommitWithdrawal(ctx context.Context, recordID uuid.UUID, wallet string, token entities.TokenType, amount decimal.Decimal, txHash string) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	debited, err := r.players.DebitWinnings(ctx, tx, wallet, token, amount)
	if err != nil {
		return false, fmt.Errorf("commit withdrawal: %w", err)
	}
	if !debited {
		return false, nil
	}

	if err := r.transactions.UpdateStatus(ctx, tx, recordID, entities.StatusCompleted, &txHash, nil); err != nil {
		return false, fmt.Errorf("commit withdrawal: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit transaction: %w", err)
	}

	return true, nil
}

// SettlePayout credits a win in one atomic unit: insert the record keyed by
// the game's correlation id, upsert the winnings, and complete the record.
// A resubmitted game id rolls the whole unit back and returns the original
// record alongside ErrDuplicateGame; the ledger is never credited twice.
func (r *SettlementRepository) SettlePayout(ctx context.Context, record *entities.TransactionRecord) (*entities.TransactionRecord, error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	record.Status = entities.StatusProcessing
	if err := r.transactions.Insert(ctx, tx, record); err != nil {
		if errors.Is(err, domainerrors.ErrAlreadyExists) {
			existing, getErr := r.transactions.GetByCorrelationID(ctx, record.CorrelationID)
			if getErr != nil {
				return nil, fmt.Errorf("fetch duplicate payout: %w", getErr)
			}
			return existing, fmt.Errorf("game %s: %w", record.CorrelationID, domainerrors.ErrDuplicateGame)
		}
		return nil, fmt.Errorf("settle payout: %w", err)
	}

	if err := r.players.CreditWinnings(ctx, tx, record.PlayerAddress, record.TokenType, record.Amount); err != nil {
		return nil, fmt.Errorf("settle payout: %w", err)
	}

	if err := r.transactions.UpdateStatus(ctx, tx, record.ID, entities.StatusCompleted, record.TxHash, nil); err != nil {
		return nil, fmt.Errorf("settle payout: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit payout: %w", err)
	}

	record.Status = entities.StatusCompleted
	return record, nil
}
