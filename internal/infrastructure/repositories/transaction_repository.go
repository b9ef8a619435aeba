package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/escrow-service/escrow_service/internal/domain/entities"
	domainerrors "github.com/escrow-service/escrow_service/internal/domain/errors"
)

// TransactionRepository handles the game_transactions log. The UNIQUE
// constraint on correlation_id is what makes payout retries idempotent.
type TransactionRepository struct {
	db *sqlx.DB
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *sqlx.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

const transactionColumns = `id, player_address, amount, token_type, correlation_id,
	kind, status, tx_hash, fail_reason, created_at, updated_at`

// Insert writes the record. Duplicate correlation ids fail with
// ErrAlreadyExists so callers can fall back to the original record.
func (r *TransactionRepository) Insert(ctx context.Context, ext sqlx.ExtContext, record *entities.TransactionRecord) error {
	query := `
		INSERT INTO game_transactions (id, player_address, amount, token_type, correlation_id, kind, status, tx_hash, fail_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
	`

	now := time.Now()
	record.CreatedAt = now
	record.UpdatedAt = now
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	_, err := ext.ExecContext(ctx, query,
		record.ID,
		record.PlayerAddress,
		record.Amount,
		record.TokenType,
		record.CorrelationID,
		record.Kind,
		record.Status,
		record.TxHash,
		record.FailReason,
		now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("correlation id %s: %w", record.CorrelationID, domainerrors.ErrAlreadyExists)
		}
		return fmt.Errorf("insert transaction record: %w", err)
	}

	return nil
}

// GetByCorrelationID retrieves a record by its correlation id.
func (r *TransactionRepository) GetByCorrelationID(ctx context.Context, correlationID string) (*entities.TransactionRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM game_transactions WHERE correlation_id = $1`, transactionColumns)

	var record entities.TransactionRecord
	err := r.db.GetContext(ctx, &record, query, correlationID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("transaction %s: %w", correlationID, domainerrors.ErrNotFound)
		}
		return nil, fmt.Errorf("get transaction record: %w", err)
	}

	return &record, nil
}

// UpdateStatus moves a record to a new status, optionally attaching the
// chain hash and a failure reason. Guarded so terminal records never
// transition again; re-running a finished update is a no-op, which keeps
// the commit step retryable.
func (r *TransactionRepository) UpdateStatus(ctx context.Context, ext sqlx.ExtContext, id uuid.UUID, status entities.TransactionStatus, txHash, failReason *string) error {
	query := `
		UPDATE game_transactions
		SET status      = $2,
		    tx_hash     = COALESCE($3, tx_hash),
		    fail_reason = COALESCE($4, fail_reason),
		    updated_at  = $5
		WHERE id = $1 AND (status NOT IN ('completed', 'failed') OR status = $2)
	`
	if _, err := ext.ExecContext(ctx, query, id, status, txHash, failReason, time.Now()); err != nil {
		return fmt.Errorf("update transaction status: %w", err)
	}

	return nil
}

// ListByStatus returns records in the given status, oldest first.
func (r *TransactionRepository) ListByStatus(ctx context.Context, status entities.TransactionStatus, limit int) ([]*entities.TransactionRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	query := fmt.Sprintf(`
		SELECT %s FROM game_transactions
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
	`, transactionColumns)

	var records []*entities.TransactionRecord
	if err := r.db.SelectContext(ctx, &records, query, status, limit); err != nil {
		return nil, fmt.Errorf("list transactions by status: %w", err)
	}

	return records, nil
}

// ListByPlayer returns a player's settlement history, newest first.
func (r *TransactionRepository) ListByPlayer(ctx context.Context, wallet string, limit, offset int) ([]*entities.TransactionRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	query := fmt.Sprintf(`
		SELECT %s FROM game_transactions
		WHERE player_address = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, transactionColumns)

	var records []*entities.TransactionRecord
	if err := r.db.SelectContext(ctx, &records, query, entities.NormalizeAddress(wallet), limit, offset); err != nil {
		return nil, fmt.Errorf("list transactions by player: %w", err)
	}

	return records, nil
}
