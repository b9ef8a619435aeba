package aptos

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	domainerrors "github.com/escrow-service/escrow_service/internal/domain/errors"
	"github.com/escrow-service/escrow_service/internal/infrastructure/config"
)

func newTestClient(t *testing.T, nodeURL string) *Client {
	t.Helper()

	signer, err := NewSigner(testSeedHex, testAddress)
	assert.NoError(t, err)

	cfg := config.AptosConfig{
		NodeURL:              nodeURL,
		ExplorerBaseURL:      "https://explorer.aptoslabs.com",
		Network:              "testnet",
		ChainID:              2,
		MaxGasAmount:         20000,
		GasUnitPrice:         100,
		ExpirationSecs:       600,
		RequestTimeout:       5,
		ConfirmationTimeout:  2,
		ConfirmationInterval: 1,
	}

	return NewClient(cfg, signer, zap.NewNop())
}

func TestAccountBalance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/v1/accounts/")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"type": "0x1::coin::CoinStore<0x1::aptos_coin::AptosCoin>",
			"data": map[string]interface{}{
				"coin": map[string]interface{}{"value": "250000000"},
			},
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	balance, err := client.AccountBalance(context.Background(), testAddress, "0x1::aptos_coin::AptosCoin")
	assert.NoError(t, err)
	assert.Equal(t, uint64(250000000), balance)
}

func TestAccountBalanceMissingCoinStoreReadsZero(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{
			"message":    "Resource not found",
			"error_code": "resource_not_found",
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	balance, err := client.AccountBalance(context.Background(), testAddress, "0x1::aptos_coin::AptosCoin")
	assert.NoError(t, err)
	assert.Equal(t, uint64(0), balance)
}

func TestTransferSubmitsBCS(t *testing.T) {
	var submitted atomic.Bool

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			json.NewEncoder(w).Encode(map[string]string{
				"sequence_number":    "12",
				"authentication_key": "0x00",
			})
		case r.Method == http.MethodPost && r.URL.Path == "/v1/transactions":
			assert.Equal(t, bcsContentType, r.Header.Get("Content-Type"))
			submitted.Store(true)
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(map[string]string{"hash": "0xhash123"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	hash, err := client.Transfer(context.Background(), "0xb0b", 100_000_000, "0x1::aptos_coin::AptosCoin")
	assert.NoError(t, err)
	assert.Equal(t, "0xhash123", hash)
	assert.True(t, submitted.Load())
}

func TestTransferRejectionWrapsChainSubmission(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			json.NewEncoder(w).Encode(map[string]string{"sequence_number": "0"})
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"message":    "Invalid transaction",
			"error_code": "vm_error",
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	_, err := client.Transfer(context.Background(), "0xb0b", 1, "0x1::aptos_coin::AptosCoin")
	assert.True(t, errors.Is(err, domainerrors.ErrChainSubmission))
}

func TestTransferBadCoinTypeFailsBeforeSubmission(t *testing.T) {
	client := newTestClient(t, "http://unused.invalid")

	_, err := client.Transfer(context.Background(), "0xb0b", 1, "not-a-coin-type")
	assert.True(t, errors.Is(err, domainerrors.ErrChainSubmission))
}

func TestAwaitConfirmationCommitted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		success := true
		json.NewEncoder(w).Encode(transactionByHash{
			Type:     "user_transaction",
			Hash:     "0xhash",
			Success:  &success,
			VMStatus: "Executed successfully",
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	outcome, err := client.AwaitConfirmation(context.Background(), "0xhash", 5*time.Second)
	assert.NoError(t, err)
	assert.Equal(t, OutcomeCommitted, outcome.Status)
	assert.Equal(t, "0xhash", outcome.Hash)
}

func TestAwaitConfirmationReverted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		success := false
		json.NewEncoder(w).Encode(transactionByHash{
			Type:     "user_transaction",
			Hash:     "0xhash",
			Success:  &success,
			VMStatus: "Move abort: insufficient balance",
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	outcome, err := client.AwaitConfirmation(context.Background(), "0xhash", 5*time.Second)
	assert.NoError(t, err)
	assert.Equal(t, OutcomeReverted, outcome.Status)
	assert.Contains(t, outcome.VMStatus, "Move abort")
}

func TestAwaitConfirmationTimeoutYieldsUnknown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(transactionByHash{
			Type: "pending_transaction",
			Hash: "0xhash",
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	outcome, err := client.AwaitConfirmation(context.Background(), "0xhash", 100*time.Millisecond)
	assert.NoError(t, err, "an elapsed window is not an error")
	assert.Equal(t, OutcomeUnknown, outcome.Status)
	assert.Equal(t, "0xhash", outcome.Hash)
}

func TestCheckTransactionUnknownWhenNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{
			"message":    "Transaction not found",
			"error_code": "transaction_not_found",
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	outcome, err := client.CheckTransaction(context.Background(), "0xmissing")
	assert.NoError(t, err)
	assert.Equal(t, OutcomeUnknown, outcome.Status)
}

func TestExplorerURL(t *testing.T) {
	client := newTestClient(t, "http://unused.invalid")

	url := client.ExplorerURL("0xabc")
	assert.Equal(t, "https://explorer.aptoslabs.com/txn/0xabc?network=testnet", url)
}
