package repositories

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/escrow-service/escrow_service/internal/domain/entities"
	domainerrors "github.com/escrow-service/escrow_service/internal/domain/errors"
)

// PlayerRepository handles player_stats persistence. All writes recompute
// win_rate from the counters; it is never set directly.
type PlayerRepository struct {
	db *sqlx.DB
}

// NewPlayerRepository creates a new player repository
func NewPlayerRepository(db *sqlx.DB) *PlayerRepository {
	return &PlayerRepository{db: db}
}

const playerColumns = `wallet_address, games_played, wins, losses, win_rate,
	apt_won, emoji_won, referrals, referral_code, referred_by, created_at, updated_at`

// GetByWallet retrieves a ledger entry by wallet address (case-insensitive).
func (r *PlayerRepository) GetByWallet(ctx context.Context, wallet string) (*entities.PlayerLedgerEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM player_stats WHERE wallet_address = $1`, playerColumns)

	var entry entities.PlayerLedgerEntry
	err := r.db.GetContext(ctx, &entry, query, entities.NormalizeAddress(wallet))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("player %s: %w", wallet, domainerrors.ErrNotFound)
		}
		return nil, fmt.Errorf("get player: %w", err)
	}

	return &entry, nil
}

// GetOrCreate fetches the ledger entry, lazily creating a zeroed row (with a
// fresh referral code) for wallets seen for the first time.
func (r *PlayerRepository) GetOrCreate(ctx context.Context, wallet string) (*entities.PlayerLedgerEntry, error) {
	addr := entities.NormalizeAddress(wallet)

	insert := `
		INSERT INTO player_stats (wallet_address, referral_code, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (wallet_address) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, insert, addr, newReferralCode(), time.Now()); err != nil {
		return nil, fmt.Errorf("create player: %w", err)
	}

	return r.GetByWallet(ctx, addr)
}

// ApplyStatsDeltas adds the game/win/loss deltas in a single upsert and
// recomputes win_rate from the resulting counters.
func (r *PlayerRepository) ApplyStatsDeltas(ctx context.Context, wallet string, games, wins, losses int64) error {
	addr := entities.NormalizeAddress(wallet)

	query := `
		INSERT INTO player_stats (wallet_address, games_played, wins, losses, win_rate, referral_code, created_at, updated_at)
		VALUES ($1, GREATEST($2, 0), GREATEST($3, 0), GREATEST($4, 0),
			CASE WHEN $2 > 0 THEN ROUND(100.0 * GREATEST($3, 0) / $2) ELSE 0 END,
			$5, $6, $6)
		ON CONFLICT (wallet_address) DO UPDATE SET
			games_played = player_stats.games_played + GREATEST($2, 0),
			wins         = player_stats.wins + GREATEST($3, 0),
			losses       = player_stats.losses + GREATEST($4, 0),
			win_rate     = CASE WHEN player_stats.games_played + GREATEST($2, 0) > 0
				THEN ROUND(100.0 * (player_stats.wins + GREATEST($3, 0)) / (player_stats.games_played + GREATEST($2, 0)))
				ELSE 0 END,
			updated_at   = $6
	`
	if _, err := r.db.ExecContext(ctx, query, addr, games, wins, losses, newReferralCode(), time.Now()); err != nil {
		return fmt.Errorf("apply stats deltas: %w", err)
	}

	return nil
}

// CreditWinnings upserts the payout credit. A first-time wallet gets a row
// with gamesPlayed=1, wins=1, winRate=100 and the won field set to amount;
// an existing row only has its token field incremented (games and wins are
// owned by the stats sync, not the payout path).
func (r *PlayerRepository) CreditWinnings(ctx context.Context, ext sqlx.ExtContext, wallet string, token entities.TokenType, amount decimal.Decimal) error {
	column, err := balanceColumn(token)
	if err != nil {
		return err
	}

	// column comes from the token table above, never from request input
	query := fmt.Sprintf(`
		INSERT INTO player_stats (wallet_address, games_played, wins, losses, win_rate, %s, referral_code, created_at, updated_at)
		VALUES ($1, 1, 1, 0, 100, $2, $3, $4, $4)
		ON CONFLICT (wallet_address) DO UPDATE SET
			%s         = player_stats.%s + $2,
			updated_at = $4
	`, column, column, column)

	if _, err := ext.ExecContext(ctx, query, entities.NormalizeAddress(wallet), amount, newReferralCode(), time.Now()); err != nil {
		return fmt.Errorf("credit winnings: %w", err)
	}

	return nil
}

// DebitWinnings decrements the player's balance only if it still covers the
// amount. The WHERE guard is atomic, so two racing withdrawals can never
// both drain the same funds. Returns false when the guard rejected the
// debit.
func (r *PlayerRepository) DebitWinnings(ctx context.Context, ext sqlx.ExtContext, wallet string, token entities.TokenType, amount decimal.Decimal) (bool, error) {
	column, err := balanceColumn(token)
	if err != nil {
		return false, err
	}

	query := fmt.Sprintf(`
		UPDATE player_stats
		SET %s = %s - $2, updated_at = $3
		WHERE wallet_address = $1 AND %s >= $2
	`, column, column, column)

	res, err := ext.ExecContext(ctx, query, entities.NormalizeAddress(wallet), amount, time.Now())
	if err != nil {
		return false, fmt.Errorf("debit winnings: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("debit winnings rows affected: %w", err)
	}

	return affected == 1, nil
}

// GetByReferralCode resolves the owner of an exact referral code.
func (r *PlayerRepository) GetByReferralCode(ctx context.Context, code string) (*entities.PlayerLedgerEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM player_stats WHERE referral_code = $1`, playerColumns)

	var entry entities.PlayerLedgerEntry
	err := r.db.GetContext(ctx, &entry, query, code)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("referral code: %w", domainerrors.ErrNotFound)
		}
		return nil, fmt.Errorf("get player by referral code: %w", err)
	}

	return &entry, nil
}

// MarkReferred stamps referred_by exactly once. Returns false if the player
// was already referred.
func (r *PlayerRepository) MarkReferred(ctx context.Context, wallet, referrer string) (bool, error) {
	query := `
		UPDATE player_stats
		SET referred_by = $2, updated_at = $3
		WHERE wallet_address = $1 AND referred_by IS NULL
	`
	res, err := r.db.ExecContext(ctx, query, entities.NormalizeAddress(wallet), entities.NormalizeAddress(referrer), time.Now())
	if err != nil {
		return false, fmt.Errorf("mark referred: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark referred rows affected: %w", err)
	}

	return affected == 1, nil
}

// IncrementReferrals bumps the referrer's counter.
func (r *PlayerRepository) IncrementReferrals(ctx context.Context, wallet string) error {
	query := `
		UPDATE player_stats
		SET referrals = referrals + 1, updated_at = $2
		WHERE wallet_address = $1
	`
	if _, err := r.db.ExecContext(ctx, query, entities.NormalizeAddress(wallet), time.Now()); err != nil {
		return fmt.Errorf("increment referrals: %w", err)
	}

	return nil
}

// Leaderboard returns the top entries ordered by APT winnings.
func (r *PlayerRepository) Leaderboard(ctx context.Context, limit int) ([]*entities.PlayerLedgerEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	query := fmt.Sprintf(`
		SELECT %s FROM player_stats
		ORDER BY apt_won DESC, wins DESC
		LIMIT $1
	`, playerColumns)

	var entries []*entities.PlayerLedgerEntry
	if err := r.db.SelectContext(ctx, &entries, query, limit); err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}

	return entries, nil
}

// balanceColumn maps a token type to its ledger column.
func balanceColumn(token entities.TokenType) (string, error) {
	switch token {
	case entities.TokenAPT:
		return "apt_won", nil
	case entities.TokenEmojicoin:
		return "emoji_won", nil
	default:
		return "", fmt.Errorf("token %q: %w", token, domainerrors.ErrUnsupportedToken)
	}
}

// newReferralCode generates the player's referral token. Codes are unique
// by constraint; a collision on the 12-hex-char space would surface as a
// retryable insert error.
func newReferralCode() string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		// rand.Read failing means the process is in far deeper trouble
		panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
	}
	return hex.EncodeToString(buf)
}

// isUniqueViolation reports whether err is a postgres duplicate-key error.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505" // unique_violation
	}
	return false
}
