package entities

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestSpecFor(t *testing.T) {
	spec, err := SpecFor(TokenAPT)
	assert.NoError(t, err)
	assert.Equal(t, "0x1::aptos_coin::AptosCoin", spec.CoinType)
	assert.Equal(t, int32(8), spec.Decimals)

	spec, err = SpecFor(TokenEmojicoin)
	assert.NoError(t, err)
	assert.Contains(t, spec.CoinType, "::coin_factory::Emojicoin")

	_, err = SpecFor(TokenType("DOGE"))
	assert.Error(t, err)
}

func TestToBaseUnits(t *testing.T) {
	spec, _ := SpecFor(TokenAPT)

	base, err := spec.ToBaseUnits(decimal.NewFromFloat(1.5))
	assert.NoError(t, err)
	assert.Equal(t, uint64(150_000_000), base)

	base, err = spec.ToBaseUnits(decimal.Zero)
	assert.NoError(t, err)
	assert.Equal(t, uint64(0), base)

	// sub-base-unit precision rounds at the 8th decimal
	base, err = spec.ToBaseUnits(decimal.RequireFromString("0.000000015"))
	assert.NoError(t, err)
	assert.Equal(t, uint64(2), base)

	_, err = spec.ToBaseUnits(decimal.NewFromInt(-1))
	assert.Error(t, err)
}

func TestBaseUnitsRoundTrip(t *testing.T) {
	spec, _ := SpecFor(TokenAPT)

	amount := decimal.RequireFromString("12.34567891")
	base, err := spec.ToBaseUnits(amount)
	assert.NoError(t, err)
	assert.True(t, amount.Equal(spec.FromBaseUnits(base)))
}

func TestNormalizeAddress(t *testing.T) {
	assert.Equal(t, "0xabc", NormalizeAddress("  0xABC "))
	assert.Equal(t, "0xabc", NormalizeAddress("0xabc"))
}

func TestComputeWinRate(t *testing.T) {
	assert.Equal(t, int64(0), ComputeWinRate(0, 0))
	assert.Equal(t, int64(50), ComputeWinRate(1, 2))
	assert.Equal(t, int64(33), ComputeWinRate(1, 3))
	assert.Equal(t, int64(67), ComputeWinRate(2, 3))
	assert.Equal(t, int64(100), ComputeWinRate(5, 5))
}

func TestBalanceFor(t *testing.T) {
	p := &PlayerLedgerEntry{
		AptWon:   decimal.NewFromInt(3),
		EmojiWon: decimal.NewFromInt(700),
	}

	apt, err := p.BalanceFor(TokenAPT)
	assert.NoError(t, err)
	assert.True(t, apt.Equal(decimal.NewFromInt(3)))

	emoji, err := p.BalanceFor(TokenEmojicoin)
	assert.NoError(t, err)
	assert.True(t, emoji.Equal(decimal.NewFromInt(700)))

	_, err = p.BalanceFor(TokenType("DOGE"))
	assert.Error(t, err)
}
