// Package funding watches the escrow account's on-chain balances and
// decides which tokens are funded well enough to accept new bets.
package funding

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/escrow-service/escrow_service/internal/domain/entities"
	domainerrors "github.com/escrow-service/escrow_service/internal/domain/errors"
	"github.com/escrow-service/escrow_service/internal/infrastructure/cache"
	"github.com/escrow-service/escrow_service/internal/infrastructure/config"
	"github.com/escrow-service/escrow_service/pkg/logger"
	"github.com/escrow-service/escrow_service/pkg/metrics"
)

const snapshotCacheKey = "escrow:funding:snapshot"

// BalanceReader reads an account's coin balance in base units.
type BalanceReader interface {
	AccountBalance(ctx context.Context, address, coinType string) (uint64, error)
	EscrowAddress() string
}

// Service computes escrow funding snapshots.
type Service struct {
	chain       BalanceReader
	cache       cache.RedisClient
	thresholds  map[entities.TokenType]decimal.Decimal
	snapshotTTL time.Duration
	logger      *logger.Logger
}

// NewService creates a new funding service
func NewService(chain BalanceReader, redis cache.RedisClient, cfg config.EscrowConfig, snapshotTTL time.Duration, log *logger.Logger) *Service {
	return &Service{
		chain: chain,
		cache: redis,
		thresholds: map[entities.TokenType]decimal.Decimal{
			entities.TokenAPT:       decimal.NewFromFloat(cfg.MinAPTBalance),
			entities.TokenEmojicoin: decimal.NewFromFloat(cfg.MinEmojiBalance),
		},
		snapshotTTL: snapshotTTL,
		logger:      log,
	}
}

// Snapshot reads the escrow balances for every supported token and reports
// which ones clear their funding threshold. A read failure for one token
// marks that token unavailable without failing the whole snapshot; the
// frontend needs a usable answer even when one coin store read is flaky.
func (s *Service) Snapshot(ctx context.Context) (*entities.EscrowFundingSnapshot, error) {
	snapshot := &entities.EscrowFundingSnapshot{
		Balances:        make(map[entities.TokenType]decimal.Decimal, len(s.thresholds)),
		AvailableTokens: make([]entities.TokenType, 0, len(s.thresholds)),
	}

	var lastErr error
	failures := 0
	for _, token := range entities.SupportedTokens() {
		spec, err := entities.SpecFor(token)
		if err != nil {
			continue
		}

		base, err := s.chain.AccountBalance(ctx, s.chain.EscrowAddress(), spec.CoinType)
		if err != nil {
			lastErr = err
			failures++
			s.logger.Warn("Escrow balance read failed",
				"token", token,
				"error", err)
			// unknown, not zero: the token is simply absent from Balances
			metrics.EscrowTokenAvailable.WithLabelValues(string(token)).Set(0)
			continue
		}

		balance := spec.FromBaseUnits(base)
		snapshot.Balances[token] = balance

		bal, _ := balance.Float64()
		metrics.EscrowBalanceGauge.WithLabelValues(string(token)).Set(bal)

		if threshold, ok := s.thresholds[token]; ok && balance.GreaterThanOrEqual(threshold) {
			snapshot.AvailableTokens = append(snapshot.AvailableTokens, token)
			metrics.EscrowTokenAvailable.WithLabelValues(string(token)).Set(1)
		} else {
			metrics.EscrowTokenAvailable.WithLabelValues(string(token)).Set(0)
		}
	}

	if failures == len(entities.SupportedTokens()) && lastErr != nil {
		s.logger.Error("All escrow balance reads failed", "error", lastErr)
		return nil, domainerrors.ServiceUnavailableError("escrow balance lookup")
	}

	if err := s.cache.Set(ctx, snapshotCacheKey, snapshot, s.snapshotTTL); err != nil {
		s.logger.Warn("Failed to cache funding snapshot", "error", err)
	}

	return snapshot, nil
}

// CachedSnapshot returns the last cached snapshot, falling back to a fresh
// read on a cache miss. The balances endpoint serves from here so frontend
// polling does not translate into fullnode traffic.
func (s *Service) CachedSnapshot(ctx context.Context) (*entities.EscrowFundingSnapshot, error) {
	var snapshot entities.EscrowFundingSnapshot
	err := s.cache.Get(ctx, snapshotCacheKey, &snapshot)
	if err == nil {
		return &snapshot, nil
	}
	if err != cache.ErrCacheMiss {
		s.logger.Warn("Funding snapshot cache read failed", "error", err)
	}
	return s.Snapshot(ctx)
}
