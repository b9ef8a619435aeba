// Package settlement orchestrates game settlements: verified ledger debits
// paid out on-chain from the escrow account, and idempotent ledger credits
// for game wins.
package settlement

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/sha3"

	"github.com/escrow-service/escrow_service/internal/domain/entities"
	domainerrors "github.com/escrow-service/escrow_service/internal/domain/errors"
	"github.com/escrow-service/escrow_service/internal/infrastructure/aptos"
	"github.com/escrow-service/escrow_service/internal/infrastructure/lock"
	"github.com/escrow-service/escrow_service/pkg/logger"
	"github.com/escrow-service/escrow_service/pkg/metrics"
)

// LedgerStore is the persistence surface the orchestrator needs: player
// reads plus the atomic settlement writes.
type LedgerStore interface {
	GetPlayer(ctx context.Context, wallet string) (*entities.PlayerLedgerEntry, error)
	InsertRecord(ctx context.Context, record *entities.TransactionRecord) error
	GetRecord(ctx context.Context, correlationID string) (*entities.TransactionRecord, error)
	MarkRecord(ctx context.Context, id uuid.UUID, status entities.TransactionStatus, txHash, failReason *string) error
	ListRecordsByStatus(ctx context.Context, status entities.TransactionStatus, limit int) ([]*entities.TransactionRecord, error)
	CommitWithdrawal(ctx context.Context, recordID uuid.UUID, wallet string, token entities.TokenType, amount decimal.Decimal, txHash string) (bool, error)
	SettlePayout(ctx context.Context, record *entities.TransactionRecord) (*entities.TransactionRecord, error)
}

// ChainClient is the on-chain surface: submit a transfer and observe its
// outcome.
type ChainClient interface {
	Transfer(ctx context.Context, recipient string, amountBaseUnits uint64, coinType string) (string, error)
	AwaitConfirmation(ctx context.Context, hash string, timeout time.Duration) (aptos.TransactionOutcome, error)
	CheckTransaction(ctx context.Context, hash string) (aptos.TransactionOutcome, error)
	ExplorerURL(hash string) string
}

// Service is the settlement orchestrator.
type Service struct {
	ledger              LedgerStore
	chain               ChainClient
	locker              lock.WalletLocker
	confirmationTimeout time.Duration
	logger              *logger.Logger
}

// NewService creates a new settlement service
func NewService(ledger LedgerStore, chain ChainClient, locker lock.WalletLocker, confirmationTimeout time.Duration, log *logger.Logger) *Service {
	return &Service{
		ledger:              ledger,
		chain:               chain,
		locker:              locker,
		confirmationTimeout: confirmationTimeout,
		logger:              log,
	}
}

// VerifyBalance checks that a player's virtual balance covers the requested
// amount. It never mutates anything; the authoritative guard is the
// conditional debit at commit time.
func (s *Service) VerifyBalance(ctx context.Context, wallet string, token entities.TokenType, amount decimal.Decimal) (*entities.PlayerLedgerEntry, error) {
	player, err := s.ledger.GetPlayer(ctx, entities.NormalizeAddress(wallet))
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			// no ledger entry means no winnings to withdraw
			return nil, fmt.Errorf("%w: no balance for wallet", domainerrors.ErrInsufficientBalance)
		}
		return nil, fmt.Errorf("%w: %v", domainerrors.ErrLedgerLookup, err)
	}

	balance, err := player.BalanceFor(token)
	if err != nil {
		return nil, err
	}
	if balance.LessThan(amount) {
		return nil, fmt.Errorf("%w: have %s, want %s %s",
			domainerrors.ErrInsufficientBalance, balance.String(), amount.String(), token)
	}

	return player, nil
}

// Withdraw settles a cash-out: verify the virtual balance, transfer real
// tokens from escrow to the player's wallet, and debit the ledger once the
// transfer is confirmed. The ledger is only ever debited after on-chain
// confirmation; a failed or rejected transfer leaves the balance untouched.
//
// A non-nil response may accompany ErrConfirmationTimeout: the transfer was
// submitted and its hash is known, but the outcome is not. The record is
// parked in `pending` for the reconciler.
func (s *Service) Withdraw(ctx context.Context, req *entities.WithdrawRequest) (*entities.SettlementResponse, error) {
	start := time.Now()
	wallet := entities.NormalizeAddress(req.PlayerAddress)

	spec, err := entities.SpecFor(req.TokenType)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domainerrors.ErrUnsupportedToken, req.TokenType)
	}
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", domainerrors.ErrInvalidInput)
	}
	baseUnits, err := spec.ToBaseUnits(req.Amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domainerrors.ErrInvalidInput, err)
	}

	release, err := s.locker.Acquire(ctx, wallet)
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			metrics.WalletLockContentionTotal.Inc()
			return nil, domainerrors.ErrWithdrawalInProgress
		}
		return nil, fmt.Errorf("acquire wallet lock: %w", err)
	}
	defer func() {
		if relErr := release(context.WithoutCancel(ctx)); relErr != nil {
			s.logger.Warn("Failed to release wallet lock", "wallet", wallet, "error", relErr)
		}
	}()

	if _, err := s.VerifyBalance(ctx, wallet, req.TokenType, req.Amount); err != nil {
		metrics.SettlementsTotal.WithLabelValues(string(entities.KindWithdrawal), "rejected").Inc()
		return nil, err
	}

	record := &entities.TransactionRecord{
		PlayerAddress: wallet,
		Amount:        req.Amount,
		TokenType:     req.TokenType,
		CorrelationID: newCorrelationID("wd"),
		Kind:          entities.KindWithdrawal,
		Status:        entities.StatusProcessing,
	}
	if err := s.ledger.InsertRecord(ctx, record); err != nil {
		return nil, fmt.Errorf("%w: %v", domainerrors.ErrLedgerWrite, err)
	}

	s.logger.Info("Withdrawal started",
		"correlation_id", record.CorrelationID,
		"wallet", wallet,
		"amount", req.Amount.String(),
		"token", req.TokenType)

	// Ledger writes from here on must land even when the caller goes away.
	// A client disconnect during the confirmation wait cancels the request
	// context, and a status write lost to that cancellation would strand
	// the record in processing.
	writeCtx := context.WithoutCancel(ctx)

	hash, err := s.chain.Transfer(ctx, wallet, baseUnits, spec.CoinType)
	if err != nil {
		// nothing reached the chain; the record fails cleanly and the
		// balance was never touched
		s.failRecord(writeCtx, record, nil, err.Error())
		metrics.SettlementsTotal.WithLabelValues(string(entities.KindWithdrawal), "failed").Inc()
		return nil, err
	}

	// persist the hash before waiting, so a record stranded by a crash can
	// still be resolved against the chain
	if err := s.ledger.MarkRecord(writeCtx, record.ID, entities.StatusProcessing, &hash, nil); err != nil {
		s.logger.Warn("Failed to record transaction hash",
			"correlation_id", record.CorrelationID,
			"hash", hash,
			"error", err)
	}

	outcome, err := s.chain.AwaitConfirmation(ctx, hash, s.confirmationTimeout)
	if err != nil {
		outcome = aptos.TransactionOutcome{Status: aptos.OutcomeUnknown, Hash: hash}
	}

	switch outcome.Status {
	case aptos.OutcomeReverted:
		s.failRecord(writeCtx, record, &hash, fmt.Sprintf("transaction reverted: %s", outcome.VMStatus))
		metrics.SettlementsTotal.WithLabelValues(string(entities.KindWithdrawal), "failed").Inc()
		return nil, fmt.Errorf("%w: %s", domainerrors.ErrChainExecution, outcome.VMStatus)

	case aptos.OutcomeUnknown:
		s.parkPending(writeCtx, record, hash)
		metrics.SettlementsTotal.WithLabelValues(string(entities.KindWithdrawal), "pending").Inc()
		return &entities.SettlementResponse{
			Success:         false,
			TransactionHash: hash,
			ExplorerURL:     s.chain.ExplorerURL(hash),
			CorrelationID:   record.CorrelationID,
			Message:         "transfer submitted; confirmation still pending",
		}, domainerrors.ErrConfirmationTimeout
	}

	// confirmed on-chain: debit the ledger and complete the record in one
	// database transaction
	debited, err := s.ledger.CommitWithdrawal(writeCtx, record.ID, wallet, req.TokenType, req.Amount, hash)
	if err != nil || !debited {
		// funds already moved on-chain; never retry the transfer and never
		// leave the record terminal without the debit. Park it for the
		// reconciler instead.
		s.parkPending(writeCtx, record, hash)
		metrics.SettlementsTotal.WithLabelValues(string(entities.KindWithdrawal), "pending").Inc()
		if err != nil {
			s.logger.Error("Ledger debit failed after confirmed transfer",
				"correlation_id", record.CorrelationID,
				"hash", hash,
				"error", err)
			return nil, fmt.Errorf("%w: debit after confirmation: %v", domainerrors.ErrLedgerWrite, err)
		}
		s.logger.Error("Balance check passed but conditional debit found insufficient funds",
			"correlation_id", record.CorrelationID,
			"hash", hash,
			"wallet", wallet)
		return nil, fmt.Errorf("%w: conditional debit rejected", domainerrors.ErrLedgerWrite)
	}

	metrics.SettlementsTotal.WithLabelValues(string(entities.KindWithdrawal), "completed").Inc()
	metrics.SettlementDuration.WithLabelValues(string(entities.KindWithdrawal)).Observe(time.Since(start).Seconds())

	s.logger.Info("Withdrawal completed",
		"correlation_id", record.CorrelationID,
		"wallet", wallet,
		"hash", hash,
		"duration_ms", time.Since(start).Milliseconds())

	return &entities.SettlementResponse{
		Success:         true,
		TransactionHash: hash,
		ExplorerURL:     s.chain.ExplorerURL(hash),
		CorrelationID:   record.CorrelationID,
		Message:         "withdrawal completed",
	}, nil
}

// Payout credits a win to the player's virtual balance. The game id is the
// idempotency key: resubmitting a settled game returns the original record
// without a second credit. No chain interaction happens here; real tokens
// only move at withdrawal time.
func (s *Service) Payout(ctx context.Context, req *entities.PayoutRequest) (*entities.SettlementResponse, error) {
	start := time.Now()
	wallet := entities.NormalizeAddress(req.PlayerAddress)

	if !req.TokenType.Valid() {
		return nil, fmt.Errorf("%w: %s", domainerrors.ErrUnsupportedToken, req.TokenType)
	}
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", domainerrors.ErrInvalidInput)
	}

	// Payouts never touch the chain, but clients render every settlement the
	// same way; a deterministic synthetic hash keeps the record shape uniform.
	payoutHash := syntheticPayoutHash(req.GameID)
	record := &entities.TransactionRecord{
		PlayerAddress: wallet,
		Amount:        req.Amount,
		TokenType:     req.TokenType,
		CorrelationID: req.GameID,
		Kind:          entities.KindPayout,
		TxHash:        &payoutHash,
	}

	settled, err := s.ledger.SettlePayout(ctx, record)
	if err != nil {
		if errors.Is(err, domainerrors.ErrDuplicateGame) && settled != nil {
			metrics.SettlementsTotal.WithLabelValues(string(entities.KindPayout), "duplicate").Inc()
			s.logger.Info("Duplicate payout ignored",
				"game_id", req.GameID,
				"wallet", wallet,
				"original_status", settled.Status)
			resp := &entities.SettlementResponse{
				Success:       true,
				CorrelationID: settled.CorrelationID,
				Message:       "game already settled",
			}
			if settled.TxHash != nil {
				resp.TransactionHash = *settled.TxHash
			}
			return resp, nil
		}
		metrics.SettlementsTotal.WithLabelValues(string(entities.KindPayout), "failed").Inc()
		return nil, fmt.Errorf("%w: %v", domainerrors.ErrLedgerWrite, err)
	}

	metrics.SettlementsTotal.WithLabelValues(string(entities.KindPayout), "completed").Inc()
	metrics.SettlementDuration.WithLabelValues(string(entities.KindPayout)).Observe(time.Since(start).Seconds())

	s.logger.Info("Payout settled",
		"game_id", req.GameID,
		"wallet", wallet,
		"amount", req.Amount.String(),
		"token", req.TokenType)

	return &entities.SettlementResponse{
		Success:         true,
		TransactionHash: payoutHash,
		CorrelationID:   settled.CorrelationID,
		Message:         "payout credited",
	}, nil
}

func syntheticPayoutHash(gameID string) string {
	sum := sha3.Sum256([]byte("payout:" + gameID))
	return "0x" + hex.EncodeToString(sum[:])
}

// GetRecord fetches a transaction record by correlation id.
func (s *Service) GetRecord(ctx context.Context, correlationID string) (*entities.TransactionRecord, error) {
	return s.ledger.GetRecord(ctx, correlationID)
}

// ResolvePending sweeps records parked in `pending`, plus `processing`
// records old enough that their request can no longer be live, and finalizes
// the ones whose on-chain outcome has since become observable. Records still
// unknown after maxAge are counted as stuck and logged for operator
// attention.
func (s *Service) ResolvePending(ctx context.Context, maxAge time.Duration) (resolved, stuck int, err error) {
	records, err := s.ledger.ListRecordsByStatus(ctx, entities.StatusPending, 100)
	if err != nil {
		return 0, 0, fmt.Errorf("list pending records: %w", err)
	}

	metrics.PendingSettlementsGauge.Set(float64(len(records)))

	// A withdrawal holds `processing` for at most the confirmation window;
	// anything older is a stranded write-ahead record whose request died
	// before its status write landed.
	processing, err := s.ledger.ListRecordsByStatus(ctx, entities.StatusProcessing, 100)
	if err != nil {
		return 0, 0, fmt.Errorf("list processing records: %w", err)
	}
	staleCutoff := s.confirmationTimeout + time.Minute
	for _, record := range processing {
		if time.Since(record.CreatedAt) > staleCutoff {
			records = append(records, record)
		}
	}

	for _, record := range records {
		if record.TxHash == nil {
			// no hash means nothing can be resolved against the chain
			reason := "record has no transaction hash"
			if markErr := s.ledger.MarkRecord(ctx, record.ID, entities.StatusFailed, nil, &reason); markErr == nil {
				resolved++
			}
			continue
		}

		outcome, checkErr := s.chain.CheckTransaction(ctx, *record.TxHash)
		if checkErr != nil {
			s.logger.Warn("Reconciliation probe failed",
				"correlation_id", record.CorrelationID,
				"hash", *record.TxHash,
				"error", checkErr)
			continue
		}

		switch outcome.Status {
		case aptos.OutcomeCommitted:
			debited, commitErr := s.ledger.CommitWithdrawal(ctx, record.ID, record.PlayerAddress, record.TokenType, record.Amount, *record.TxHash)
			if commitErr != nil {
				s.logger.Error("Reconciliation commit failed",
					"correlation_id", record.CorrelationID,
					"error", commitErr)
				continue
			}
			if !debited {
				s.logger.Error("Reconciliation cannot debit confirmed withdrawal",
					"correlation_id", record.CorrelationID,
					"wallet", record.PlayerAddress)
				stuck++
				continue
			}
			metrics.ReconciliationResolvedTotal.WithLabelValues("completed").Inc()
			resolved++

		case aptos.OutcomeReverted:
			reason := fmt.Sprintf("transaction reverted: %s", outcome.VMStatus)
			if markErr := s.ledger.MarkRecord(ctx, record.ID, entities.StatusFailed, record.TxHash, &reason); markErr != nil {
				s.logger.Error("Reconciliation mark failed",
					"correlation_id", record.CorrelationID,
					"error", markErr)
				continue
			}
			metrics.ReconciliationResolvedTotal.WithLabelValues("failed").Inc()
			resolved++

		case aptos.OutcomeUnknown:
			if time.Since(record.CreatedAt) > maxAge {
				s.logger.Error("Pending settlement exceeded reconciliation window",
					"correlation_id", record.CorrelationID,
					"hash", *record.TxHash,
					"age", time.Since(record.CreatedAt).String())
				stuck++
			}
		}
	}

	return resolved, stuck, nil
}

// failRecord moves a record to failed. Status writes here are best-effort;
// a record stranded in processing by a failed write is picked up by the
// reconciler's stale-processing sweep.
func (s *Service) failRecord(ctx context.Context, record *entities.TransactionRecord, txHash *string, reason string) {
	if err := s.ledger.MarkRecord(ctx, record.ID, entities.StatusFailed, txHash, &reason); err != nil {
		s.logger.Error("Failed to mark record failed",
			"correlation_id", record.CorrelationID,
			"error", err)
	}
}

func (s *Service) parkPending(ctx context.Context, record *entities.TransactionRecord, txHash string) {
	if err := s.ledger.MarkRecord(ctx, record.ID, entities.StatusPending, &txHash, nil); err != nil {
		s.logger.Error("Failed to park record pending",
			"correlation_id", record.CorrelationID,
			"hash", txHash,
			"error", err)
	}
}

func newCorrelationID(prefix string) string {
	return fmt.Sprintf("%s_%d_%s", prefix, time.Now().UnixMilli(), uuid.NewString()[:8])
}
