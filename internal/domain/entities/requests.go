package entities

import (
	"github.com/shopspring/decimal"
)

// WithdrawRequest is the body of POST /payout/withdraw.
type WithdrawRequest struct {
	PlayerAddress string          `json:"playerAddress" binding:"required"`
	Amount        decimal.Decimal `json:"amount" binding:"required"`
	TokenType     TokenType       `json:"tokenType" binding:"required,tokentype"`
}

// PayoutRequest is the body of POST /payout. GameID is the idempotency
// correlation id; resubmitting the same GameID never credits twice.
type PayoutRequest struct {
	PlayerAddress string          `json:"playerAddress" binding:"required"`
	Amount        decimal.Decimal `json:"amount" binding:"required"`
	TokenType     TokenType       `json:"tokenType" binding:"required,tokentype"`
	GameID        string          `json:"gameId" binding:"required"`
}

// StatsDeltaRequest is the body of POST /stats. Counters are delta-based so
// retries are idempotent at the caller's discretion.
type StatsDeltaRequest struct {
	PlayerAddress string `json:"playerAddress" binding:"required"`
	GamesDelta    int64  `json:"gamesDelta"`
	WinsDelta     int64  `json:"winsDelta"`
	LossesDelta   int64  `json:"lossesDelta"`
}

// ReferralRequest is the body of POST /referral. Code is the referrer's
// exact referral token.
type ReferralRequest struct {
	PlayerAddress string `json:"playerAddress" binding:"required"`
	Code          string `json:"code" binding:"required"`
}

// SettlementResponse is the success shape returned by the payout and
// withdrawal endpoints.
type SettlementResponse struct {
	Success         bool   `json:"success"`
	TransactionHash string `json:"transactionHash,omitempty"`
	ExplorerURL     string `json:"explorerUrl,omitempty"`
	Message         string `json:"message,omitempty"`
	CorrelationID   string `json:"correlationId,omitempty"`
}

// ErrorResponse is the failure shape shared by all endpoints.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// EscrowFundingSnapshot reports the escrow account's balances and which
// tokens are currently funded well enough to accept new bets. It is
// recomputed on each poll and never persisted.
type EscrowFundingSnapshot struct {
	Balances        map[TokenType]decimal.Decimal `json:"balances"`
	AvailableTokens []TokenType                   `json:"availableTokens"`
}

// Available reports whether the given token cleared its funding threshold.
func (s *EscrowFundingSnapshot) Available(token TokenType) bool {
	for _, t := range s.AvailableTokens {
		if t == token {
			return true
		}
	}
	return false
}
