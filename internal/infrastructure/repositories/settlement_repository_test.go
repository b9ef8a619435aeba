package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/escrow-service/escrow_service/internal/domain/entities"
	domainerrors "github.com/escrow-service/escrow_service/internal/domain/errors"
)

func newSettlementRepo(t *testing.T) (*SettlementRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newMockDB(t)
	return NewSettlementRepository(db, NewPlayerRepository(db), NewTransactionRepository(db)), mock
}

func payoutRecord(gameID string) *entities.TransactionRecord {
	hash := "0xsynthetic"
	return &entities.TransactionRecord{
		PlayerAddress: "0xabc",
		Amount:        decimal.NewFromInt(3),
		TokenType:     entities.TokenAPT,
		CorrelationID: gameID,
		Kind:          entities.KindPayout,
		TxHash:        &hash,
	}
}

func TestSettlePayoutCreditsAndCompletes(t *testing.T) {
	repo, mock := newSettlementRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO game_transactions`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO player_stats`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE game_transactions`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	settled, err := repo.SettlePayout(context.Background(), payoutRecord("game-7"))
	assert.NoError(t, err)
	assert.Equal(t, entities.StatusCompleted, settled.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettlePayoutDuplicateRollsBackWithoutCredit(t *testing.T) {
	repo, mock := newSettlementRepo(t)

	originalHash := "0xoriginal"
	now := time.Now()
	existing := sqlmock.NewRows([]string{
		"id", "player_address", "amount", "token_type", "correlation_id",
		"kind", "status", "tx_hash", "fail_reason", "created_at", "updated_at",
	}).AddRow(uuid.NewString(), "0xabc", "3", "APT", "game-7",
		"payout", "completed", originalHash, nil, now, now)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO game_transactions`).
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectQuery(`SELECT .+ FROM game_transactions WHERE correlation_id = \$1`).
		WithArgs("game-7").
		WillReturnRows(existing)
	// no credit, no status write: the whole unit rolls back
	mock.ExpectRollback()

	settled, err := repo.SettlePayout(context.Background(), payoutRecord("game-7"))
	assert.ErrorIs(t, err, domainerrors.ErrDuplicateGame)
	assert.NotNil(t, settled)
	assert.Equal(t, "game-7", settled.CorrelationID)
	assert.Equal(t, entities.StatusCompleted, settled.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommitWithdrawalDebitsAndCompletesAtomically(t *testing.T) {
	repo, mock := newSettlementRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(debitPattern).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE game_transactions`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	debited, err := repo.CommitWithdrawal(context.Background(), uuid.New(), "0xabc", entities.TokenAPT, decimal.NewFromInt(2), "0xhash")
	assert.NoError(t, err)
	assert.True(t, debited)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommitWithdrawalRejectedDebitRollsBack(t *testing.T) {
	repo, mock := newSettlementRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(debitPattern).
		WillReturnResult(sqlmock.NewResult(0, 0))
	// the record is never marked completed when the guard rejects the debit
	mock.ExpectRollback()

	debited, err := repo.CommitWithdrawal(context.Background(), uuid.New(), "0xabc", entities.TokenAPT, decimal.NewFromInt(2), "0xhash")
	assert.NoError(t, err)
	assert.False(t, debited)
	assert.NoError(t, mock.ExpectationsWereMet())
}
