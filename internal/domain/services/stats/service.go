// Package stats maintains player game statistics and the referral graph.
package stats

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/escrow-service/escrow_service/internal/domain/entities"
	domainerrors "github.com/escrow-service/escrow_service/internal/domain/errors"
	"github.com/escrow-service/escrow_service/internal/infrastructure/repositories"
	"github.com/escrow-service/escrow_service/pkg/logger"
)

// Service handles stats and referral operations.
type Service struct {
	players      *repositories.PlayerRepository
	transactions *repositories.TransactionRepository
	logger       *logger.Logger
}

// NewService creates a new stats service
func NewService(players *repositories.PlayerRepository, transactions *repositories.TransactionRepository, log *logger.Logger) *Service {
	return &Service{
		players:      players,
		transactions: transactions,
		logger:       log,
	}
}

// ApplyDeltas records game results as counter increments. Deltas below zero
// are rejected; counters only move forward.
func (s *Service) ApplyDeltas(ctx context.Context, req *entities.StatsDeltaRequest) (*entities.PlayerLedgerEntry, error) {
	if req.GamesDelta < 0 || req.WinsDelta < 0 || req.LossesDelta < 0 {
		return nil, domainerrors.ValidationError("deltas", "must be non-negative")
	}

	wallet := entities.NormalizeAddress(req.PlayerAddress)
	if err := s.players.ApplyStatsDeltas(ctx, wallet, req.GamesDelta, req.WinsDelta, req.LossesDelta); err != nil {
		return nil, fmt.Errorf("apply stats deltas: %w", err)
	}

	return s.players.GetByWallet(ctx, wallet)
}

// GetStats returns a player's ledger entry, creating a zeroed one on first
// sight so the frontend always has a row to render.
func (s *Service) GetStats(ctx context.Context, wallet string) (*entities.PlayerLedgerEntry, error) {
	return s.players.GetOrCreate(ctx, entities.NormalizeAddress(wallet))
}

// ApplyReferral links a player to the owner of the submitted referral code.
// The link is written once: a second code for the same player is rejected,
// as is the player's own code.
func (s *Service) ApplyReferral(ctx context.Context, req *entities.ReferralRequest) error {
	wallet := entities.NormalizeAddress(req.PlayerAddress)
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return domainerrors.ValidationError("code", "referral code is required")
	}

	referrer, err := s.players.GetByReferralCode(ctx, code)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return domainerrors.ErrReferralCodeNotFound
		}
		return fmt.Errorf("lookup referral code: %w", err)
	}

	if referrer.WalletAddress == wallet {
		return domainerrors.ErrSelfReferral
	}

	// make sure the referred player has a row before linking
	if _, err := s.players.GetOrCreate(ctx, wallet); err != nil {
		return fmt.Errorf("ensure player: %w", err)
	}

	linked, err := s.players.MarkReferred(ctx, wallet, referrer.WalletAddress)
	if err != nil {
		return fmt.Errorf("mark referred: %w", err)
	}
	if !linked {
		return domainerrors.ErrReferralAlreadyApplied
	}

	if err := s.players.IncrementReferrals(ctx, referrer.WalletAddress); err != nil {
		// the link is already written; the referrer's counter can be
		// corrected from referred_by rows if this ever drops
		s.logger.Error("Failed to increment referral counter",
			"referrer", referrer.WalletAddress,
			"referred", wallet,
			"error", err)
	}

	s.logger.Info("Referral applied",
		"referrer", referrer.WalletAddress,
		"referred", wallet)

	return nil
}

// Leaderboard returns the top players ranked by APT winnings.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]*entities.PlayerLedgerEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	return s.players.Leaderboard(ctx, limit)
}

// PlayerTransactions lists a player's settlement history, newest first.
func (s *Service) PlayerTransactions(ctx context.Context, wallet string, limit, offset int) ([]*entities.TransactionRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	if offset < 0 {
		offset = 0
	}
	return s.transactions.ListByPlayer(ctx, entities.NormalizeAddress(wallet), limit, offset)
}
