package entities

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PlayerLedgerEntry is one row of the player_stats ledger, keyed by wallet
// address. Balances are virtual token holdings credited by payouts and
// debited by confirmed withdrawals; they never go negative.
type PlayerLedgerEntry struct {
	WalletAddress string          `db:"wallet_address" json:"walletAddress"`
	GamesPlayed   int64           `db:"games_played" json:"gamesPlayed"`
	Wins          int64           `db:"wins" json:"wins"`
	Losses        int64           `db:"losses" json:"losses"`
	WinRate       int64           `db:"win_rate" json:"winRate"`
	AptWon        decimal.Decimal `db:"apt_won" json:"aptWon"`
	EmojiWon      decimal.Decimal `db:"emoji_won" json:"emojiWon"`
	Referrals     int64           `db:"referrals" json:"referrals"`
	ReferralCode  string          `db:"referral_code" json:"referralCode"`
	ReferredBy    *string         `db:"referred_by" json:"referredBy,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updatedAt"`
}

// BalanceFor returns the virtual balance held for the given token.
func (p *PlayerLedgerEntry) BalanceFor(token TokenType) (decimal.Decimal, error) {
	switch token {
	case TokenAPT:
		return p.AptWon, nil
	case TokenEmojicoin:
		return p.EmojiWon, nil
	default:
		return decimal.Zero, fmt.Errorf("unsupported token type %q", token)
	}
}

// NormalizeAddress lowercases a wallet address so ledger lookups are
// case-insensitive.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// ComputeWinRate derives the rounded win percentage. Zero games means zero
// percent; the value is never stored independently of the counters.
func ComputeWinRate(wins, gamesPlayed int64) int64 {
	if gamesPlayed <= 0 {
		return 0
	}
	return int64(math.Round(float64(wins) / float64(gamesPlayed) * 100))
}
