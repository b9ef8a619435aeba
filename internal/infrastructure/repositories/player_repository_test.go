package repositories

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/escrow-service/escrow_service/internal/domain/entities"
	domainerrors "github.com/escrow-service/escrow_service/internal/domain/errors"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

const debitPattern = `UPDATE player_stats SET apt_won = apt_won - \$2, updated_at = \$3 WHERE wallet_address = \$1 AND apt_won >= \$2`

func TestDebitWinningsGuardRejectsOverdraw(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPlayerRepository(db)

	// the balance no longer covers the amount, so the guard matches no row
	mock.ExpectExec(debitPattern).
		WithArgs("0xabc", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	debited, err := repo.DebitWinnings(context.Background(), db, "0xABC", entities.TokenAPT, decimal.NewFromInt(5))
	assert.NoError(t, err)
	assert.False(t, debited)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDebitWinningsDebitsCoveredBalance(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPlayerRepository(db)

	mock.ExpectExec(debitPattern).
		WithArgs("0xabc", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	debited, err := repo.DebitWinnings(context.Background(), db, "0xabc", entities.TokenAPT, decimal.NewFromInt(2))
	assert.NoError(t, err)
	assert.True(t, debited)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDebitWinningsUnsupportedTokenNeverHitsDatabase(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPlayerRepository(db)

	_, err := repo.DebitWinnings(context.Background(), db, "0xabc", entities.TokenType("DOGE"), decimal.NewFromInt(1))
	assert.ErrorIs(t, err, domainerrors.ErrUnsupportedToken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkReferredOnlyOnce(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPlayerRepository(db)

	mock.ExpectExec(`UPDATE player_stats SET referred_by = \$2, updated_at = \$3 WHERE wallet_address = \$1 AND referred_by IS NULL`).
		WithArgs("0xabc", "0xref", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	linked, err := repo.MarkReferred(context.Background(), "0xabc", "0xREF")
	assert.NoError(t, err)
	assert.False(t, linked)
	assert.NoError(t, mock.ExpectationsWereMet())
}
