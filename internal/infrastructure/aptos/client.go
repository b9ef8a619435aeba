// Package aptos implements the escrow side of on-chain settlement: balance
// reads, transfer submission, and bounded confirmation polling against an
// Aptos fullnode's REST API.
package aptos

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	domainerrors "github.com/escrow-service/escrow_service/internal/domain/errors"
	"github.com/escrow-service/escrow_service/internal/infrastructure/config"
)

const (
	defaultTimeout = 30 * time.Second
	maxRetries     = 3
	baseBackoff    = 500 * time.Millisecond
	maxBackoff     = 8 * time.Second

	bcsContentType = "application/x.aptos.signed_transaction+bcs"

	// transfer_coins registers the CoinStore on the recipient side when
	// needed, so fresh wallets can receive without opting in first.
	transferModule   = "aptos_account"
	transferFunction = "transfer_coins"
)

// Client talks to a single fullnode on behalf of the escrow account.
type Client struct {
	cfg            config.AptosConfig
	signer         *Signer
	httpClient     *http.Client
	circuitBreaker *gobreaker.CircuitBreaker
	logger         *zap.Logger
}

// NewClient creates a fullnode client bound to the escrow signer.
func NewClient(cfg config.AptosConfig, signer *Signer, logger *zap.Logger) *Client {
	timeout := defaultTimeout
	if cfg.RequestTimeout > 0 {
		timeout = time.Duration(cfg.RequestTimeout) * time.Second
	}

	httpClient := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	st := gobreaker.Settings{
		Name:        "AptosFullnode",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &Client{
		cfg:            cfg,
		signer:         signer,
		httpClient:     httpClient,
		circuitBreaker: gobreaker.NewCircuitBreaker(st),
		logger:         logger,
	}
}

// EscrowAddress returns the escrow account address in full hex form.
func (c *Client) EscrowAddress() string {
	return c.signer.Address().Hex()
}

// ExplorerURL builds the public explorer link for a transaction hash.
func (c *Client) ExplorerURL(hash string) string {
	base := strings.TrimRight(c.cfg.ExplorerBaseURL, "/")
	return fmt.Sprintf("%s/txn/%s?network=%s", base, hash, c.cfg.Network)
}

// AccountBalance reads the CoinStore balance for the given coin type in
// base units. A missing CoinStore resource reads as zero: accounts that
// never registered the coin simply hold none of it.
func (c *Client) AccountBalance(ctx context.Context, address, coinType string) (uint64, error) {
	addr, err := ParseAddress(address)
	if err != nil {
		return 0, fmt.Errorf("account balance: %w", err)
	}

	resourceType := fmt.Sprintf("0x1::coin::CoinStore<%s>", coinType)
	endpoint := fmt.Sprintf("/v1/accounts/%s/resource/%s", addr.Hex(), resourceType)

	var resource coinStoreResource
	_, err = c.circuitBreaker.Execute(func() (interface{}, error) {
		return nil, c.doRequestWithRetry(ctx, http.MethodGet, endpoint, nil, "", &resource)
	})
	if err != nil {
		if isResourceNotFound(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("fetch coin store: %w", err)
	}

	value, err := strconv.ParseUint(resource.Data.Coin.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse coin value %q: %w", resource.Data.Coin.Value, err)
	}

	return value, nil
}

// sequenceNumber fetches the escrow account's next sequence number.
func (c *Client) sequenceNumber(ctx context.Context) (uint64, error) {
	endpoint := fmt.Sprintf("/v1/accounts/%s", c.signer.Address().Hex())

	var account accountData
	_, err := c.circuitBreaker.Execute(func() (interface{}, error) {
		return nil, c.doRequestWithRetry(ctx, http.MethodGet, endpoint, nil, "", &account)
	})
	if err != nil {
		return 0, fmt.Errorf("fetch account: %w", err)
	}

	seq, err := strconv.ParseUint(account.SequenceNumber, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse sequence number %q: %w", account.SequenceNumber, err)
	}

	return seq, nil
}

// Transfer builds, signs, and submits a coin transfer from the escrow
// account. It returns as soon as the fullnode accepts the transaction;
// confirmation is a separate AwaitConfirmation call. Submission failures
// wrap ErrChainSubmission.
func (c *Client) Transfer(ctx context.Context, recipient string, amountBaseUnits uint64, coinType string) (string, error) {
	recipientAddr, err := ParseAddress(recipient)
	if err != nil {
		return "", fmt.Errorf("%w: recipient address: %v", domainerrors.ErrChainSubmission, err)
	}

	coinTag, err := parseStructTag(coinType)
	if err != nil {
		return "", fmt.Errorf("%w: coin type: %v", domainerrors.ErrChainSubmission, err)
	}

	seq, err := c.sequenceNumber(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domainerrors.ErrChainSubmission, err)
	}

	frameworkAddr, err := ParseAddress("0x1")
	if err != nil {
		return "", fmt.Errorf("%w: %v", domainerrors.ErrChainSubmission, err)
	}

	raw := rawTransaction{
		Sender:         c.signer.Address(),
		SequenceNumber: seq,
		Payload: entryFunctionPayload{
			ModuleAddress: frameworkAddr,
			ModuleName:    transferModule,
			FunctionName:  transferFunction,
			TypeArgs:      []structTag{coinTag},
			Args: [][]byte{
				bcsAddress(recipientAddr),
				bcsU64(amountBaseUnits),
			},
		},
		MaxGasAmount:   c.cfg.MaxGasAmount,
		GasUnitPrice:   c.cfg.GasUnitPrice,
		ExpirationSecs: uint64(time.Now().Unix()) + c.cfg.ExpirationSecs,
		ChainID:        c.cfg.ChainID,
	}

	rawBytes := encodeRawTransaction(raw)
	signature := c.signer.SignRawTransaction(rawBytes)
	signedBytes := encodeSignedTransaction(rawBytes, c.signer.PublicKey(), signature)

	c.logger.Info("Submitting escrow transfer",
		zap.String("recipient", recipientAddr.Hex()),
		zap.Uint64("amount_base_units", amountBaseUnits),
		zap.String("coin_type", coinType),
		zap.Uint64("sequence_number", seq))

	var pending pendingTransaction
	_, err = c.circuitBreaker.Execute(func() (interface{}, error) {
		return nil, c.doRequestWithRetry(ctx, http.MethodPost, "/v1/transactions", signedBytes, bcsContentType, &pending)
	})
	if err != nil {
		c.logger.Error("Transfer submission failed",
			zap.String("recipient", recipientAddr.Hex()),
			zap.Error(err))
		return "", fmt.Errorf("%w: %v", domainerrors.ErrChainSubmission, err)
	}

	c.logger.Info("Transfer submitted",
		zap.String("hash", pending.Hash),
		zap.String("recipient", recipientAddr.Hex()))

	return pending.Hash, nil
}

// AwaitConfirmation polls the transaction by hash until it commits,
// reverts, or the timeout elapses. An elapsed timeout yields
// OutcomeUnknown, never an error: the transaction may still land.
func (c *Client) AwaitConfirmation(ctx context.Context, hash string, timeout time.Duration) (TransactionOutcome, error) {
	interval := time.Duration(c.cfg.ConfirmationInterval) * time.Second
	if interval <= 0 {
		interval = time.Second
	}

	deadline := time.Now().Add(timeout)
	endpoint := fmt.Sprintf("/v1/transactions/by_hash/%s", hash)

	for {
		var tx transactionByHash
		err := c.doRequest(ctx, http.MethodGet, endpoint, nil, "", &tx, uuid.NewString())
		switch {
		case err == nil && tx.Type != "pending_transaction" && tx.Success != nil:
			if *tx.Success {
				return TransactionOutcome{Status: OutcomeCommitted, Hash: hash, VMStatus: tx.VMStatus}, nil
			}
			return TransactionOutcome{Status: OutcomeReverted, Hash: hash, VMStatus: tx.VMStatus}, nil
		case err != nil && !isTransactionNotFound(err):
			c.logger.Warn("Confirmation poll failed",
				zap.String("hash", hash),
				zap.Error(err))
			// transient; keep polling until the deadline
		}

		if time.Now().After(deadline) {
			c.logger.Warn("Confirmation window elapsed",
				zap.String("hash", hash),
				zap.Duration("timeout", timeout))
			return TransactionOutcome{Status: OutcomeUnknown, Hash: hash}, nil
		}

		select {
		case <-ctx.Done():
			return TransactionOutcome{Status: OutcomeUnknown, Hash: hash}, ctx.Err()
		case <-time.After(interval):
		}
	}
}

// CheckTransaction is a single non-blocking status probe, used by the
// reconciler. A transaction the node has never seen reports
// OutcomeUnknown.
func (c *Client) CheckTransaction(ctx context.Context, hash string) (TransactionOutcome, error) {
	endpoint := fmt.Sprintf("/v1/transactions/by_hash/%s", hash)

	var tx transactionByHash
	err := c.doRequest(ctx, http.MethodGet, endpoint, nil, "", &tx, uuid.NewString())
	if err != nil {
		if isTransactionNotFound(err) {
			return TransactionOutcome{Status: OutcomeUnknown, Hash: hash}, nil
		}
		return TransactionOutcome{}, fmt.Errorf("check transaction: %w", err)
	}

	if tx.Type == "pending_transaction" || tx.Success == nil {
		return TransactionOutcome{Status: OutcomeUnknown, Hash: hash}, nil
	}
	if *tx.Success {
		return TransactionOutcome{Status: OutcomeCommitted, Hash: hash, VMStatus: tx.VMStatus}, nil
	}
	return TransactionOutcome{Status: OutcomeReverted, Hash: hash, VMStatus: tx.VMStatus}, nil
}

// GetMetrics returns circuit breaker metrics for monitoring
func (c *Client) GetMetrics() map[string]interface{} {
	counts := c.circuitBreaker.Counts()
	return map[string]interface{}{
		"circuit_breaker_state": c.circuitBreaker.State().String(),
		"requests":              counts.Requests,
		"consecutive_successes": counts.ConsecutiveSuccesses,
		"consecutive_failures":  counts.ConsecutiveFailures,
		"total_successes":       counts.TotalSuccesses,
		"total_failures":        counts.TotalFailures,
	}
}

// apiError is a typed fullnode error carrying the node's error code.
type apiError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("fullnode error %d (%s): %s", e.StatusCode, e.Code, e.Message)
}

func isResourceNotFound(err error) bool {
	if api, ok := unwrapAPIError(err); ok {
		return api.StatusCode == http.StatusNotFound
	}
	return false
}

func isTransactionNotFound(err error) bool {
	if api, ok := unwrapAPIError(err); ok {
		return api.StatusCode == http.StatusNotFound
	}
	return false
}

func unwrapAPIError(err error) (*apiError, bool) {
	for err != nil {
		if api, ok := err.(*apiError); ok {
			return api, true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil, false
		}
		err = unwrapper.Unwrap()
	}
	return nil, false
}

// doRequestWithRetry performs an HTTP request with exponential backoff and
// jitterless capping. Client errors (4xx) are never retried; a rejected
// submission will not become valid by resubmitting it.
func (c *Client) doRequestWithRetry(ctx context.Context, method, endpoint string, body []byte, contentType string, responseBody interface{}) error {
	var lastErr error
	requestID := uuid.NewString()

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := calculateBackoff(attempt - 1)

			c.logger.Info("Retrying fullnode request",
				zap.String("request_id", requestID),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.String("method", method),
				zap.String("endpoint", endpoint))

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		err := c.doRequest(ctx, method, endpoint, body, contentType, responseBody, requestID)
		if err == nil {
			return nil
		}

		lastErr = err

		if !shouldRetry(err) {
			return err
		}

		c.logger.Warn("Fullnode request failed, will retry",
			zap.String("request_id", requestID),
			zap.Error(err),
			zap.Int("attempt", attempt+1),
			zap.String("method", method),
			zap.String("endpoint", endpoint))
	}

	return fmt.Errorf("request failed after %d attempts: %w", maxRetries+1, lastErr)
}

// doRequest performs a single HTTP request
func (c *Client) doRequest(ctx context.Context, method, endpoint string, body []byte, contentType string, responseBody interface{}, requestID string) error {
	url := strings.TrimRight(c.cfg.NodeURL, "/") + endpoint

	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		var restErr restError
		if jsonErr := json.Unmarshal(respBytes, &restErr); jsonErr != nil {
			return &apiError{StatusCode: resp.StatusCode, Message: string(respBytes)}
		}
		return &apiError{StatusCode: resp.StatusCode, Code: restErr.ErrorCode, Message: restErr.Message}
	}

	if responseBody != nil && len(respBytes) > 0 {
		if err := json.Unmarshal(respBytes, responseBody); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}

	return nil
}

func shouldRetry(err error) bool {
	if api, ok := unwrapAPIError(err); ok {
		// 429 and 5xx are transient; other 4xx are not
		return api.StatusCode == http.StatusTooManyRequests || api.StatusCode >= 500
	}
	// network-level failures are retryable
	return true
}

func calculateBackoff(attempt int) time.Duration {
	exponent := math.Pow(2, float64(attempt))
	delay := time.Duration(exponent) * baseBackoff
	if delay > maxBackoff {
		delay = maxBackoff
	}
	return delay
}
