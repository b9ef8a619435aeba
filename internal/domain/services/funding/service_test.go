package funding

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/escrow-service/escrow_service/internal/domain/entities"
	domainerrors "github.com/escrow-service/escrow_service/internal/domain/errors"
	"github.com/escrow-service/escrow_service/internal/infrastructure/cache"
	"github.com/escrow-service/escrow_service/internal/infrastructure/config"
	"github.com/escrow-service/escrow_service/pkg/logger"
)

type stubBalanceReader struct {
	balances map[string]uint64
	errs     map[string]error
}

func (s *stubBalanceReader) AccountBalance(ctx context.Context, address, coinType string) (uint64, error) {
	if err, ok := s.errs[coinType]; ok {
		return 0, err
	}
	return s.balances[coinType], nil
}

func (s *stubBalanceReader) EscrowAddress() string {
	return "0xescrow"
}

type memoryCache struct {
	mu    sync.Mutex
	items map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{items: make(map[string][]byte)}
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = data
	return nil
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.items[key]
	if !ok {
		return cache.ErrCacheMiss
	}
	return json.Unmarshal(data, dest)
}

func (m *memoryCache) Del(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

func (m *memoryCache) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.items[key]
	return ok, nil
}

func (m *memoryCache) Ping(ctx context.Context) error { return nil }
func (m *memoryCache) Close() error                   { return nil }

const (
	aptCoinType   = "0x1::aptos_coin::AptosCoin"
	emojiCoinType = "0x173fcd3fda2c89d4702e3d307d4dcc8358b03d9f36189179d2bddd9585e96e27::coin_factory::Emojicoin"
)

func testEscrowConfig() config.EscrowConfig {
	return config.EscrowConfig{
		Address:         "0xescrow",
		MinAPTBalance:   1.0,
		MinEmojiBalance: 1000.0,
	}
}

func TestSnapshotAppliesThresholds(t *testing.T) {
	chain := &stubBalanceReader{balances: map[string]uint64{
		aptCoinType:   250_000_000,    // 2.5 APT, above the 1.0 threshold
		emojiCoinType: 50_000_000_000, // 500 EMOJICOIN, below the 1000 threshold
	}}

	svc := NewService(chain, newMemoryCache(), testEscrowConfig(), time.Minute, logger.NewNop())

	snapshot, err := svc.Snapshot(context.Background())
	assert.NoError(t, err)

	assert.True(t, snapshot.Available(entities.TokenAPT))
	assert.False(t, snapshot.Available(entities.TokenEmojicoin))
	assert.True(t, snapshot.Balances[entities.TokenAPT].Equal(decimal.RequireFromString("2.5")))
	assert.True(t, snapshot.Balances[entities.TokenEmojicoin].Equal(decimal.RequireFromString("500")))
}

func TestSnapshotToleratesSingleTokenFailure(t *testing.T) {
	chain := &stubBalanceReader{
		balances: map[string]uint64{aptCoinType: 500_000_000},
		errs:     map[string]error{emojiCoinType: errors.New("fullnode timeout")},
	}

	svc := NewService(chain, newMemoryCache(), testEscrowConfig(), time.Minute, logger.NewNop())

	snapshot, err := svc.Snapshot(context.Background())
	assert.NoError(t, err, "one flaky coin store must not fail the snapshot")

	assert.True(t, snapshot.Available(entities.TokenAPT))
	assert.False(t, snapshot.Available(entities.TokenEmojicoin))

	// an unreadable balance is unknown, not an authoritative zero
	_, reported := snapshot.Balances[entities.TokenEmojicoin]
	assert.False(t, reported)
}

func TestSnapshotFailsWhenAllReadsFail(t *testing.T) {
	chain := &stubBalanceReader{errs: map[string]error{
		aptCoinType:   errors.New("down"),
		emojiCoinType: errors.New("down"),
	}}

	svc := NewService(chain, newMemoryCache(), testEscrowConfig(), time.Minute, logger.NewNop())

	_, err := svc.Snapshot(context.Background())
	assert.True(t, errors.Is(err, domainerrors.ErrServiceUnavailable))
}

func TestCachedSnapshotServesFromCache(t *testing.T) {
	chain := &stubBalanceReader{balances: map[string]uint64{
		aptCoinType:   200_000_000,
		emojiCoinType: 0,
	}}
	mem := newMemoryCache()

	svc := NewService(chain, mem, testEscrowConfig(), time.Minute, logger.NewNop())

	first, err := svc.Snapshot(context.Background())
	assert.NoError(t, err)

	// mutate the chain state; the cached answer must win
	chain.balances[aptCoinType] = 0

	cached, err := svc.CachedSnapshot(context.Background())
	assert.NoError(t, err)
	assert.True(t, cached.Balances[entities.TokenAPT].Equal(first.Balances[entities.TokenAPT]))
}

func TestCachedSnapshotFallsBackOnMiss(t *testing.T) {
	chain := &stubBalanceReader{balances: map[string]uint64{
		aptCoinType:   100_000_000,
		emojiCoinType: 0,
	}}

	svc := NewService(chain, newMemoryCache(), testEscrowConfig(), time.Minute, logger.NewNop())

	snapshot, err := svc.CachedSnapshot(context.Background())
	assert.NoError(t, err)
	assert.True(t, snapshot.Available(entities.TokenAPT))
}
