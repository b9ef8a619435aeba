package entities

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// TokenType identifies a supported settlement token.
type TokenType string

const (
	TokenAPT       TokenType = "APT"
	TokenEmojicoin TokenType = "EMOJICOIN"
)

// TokenSpec carries the on-chain metadata for a supported token. Every
// token the service settles must have an entry here; amount conversion and
// transfer building go through the TokenSpec, never through string comparisons
// on the symbol.
type TokenSpec struct {
	Symbol   TokenType
	CoinType string // fully qualified Move struct tag, e.g. 0x1::aptos_coin::AptosCoin
	Decimals int32
}

// Registered token table. Emojicoin carries its own coin type and decimals
// rather than piggybacking on APT.
var tokenSpecs = map[TokenType]TokenSpec{
	TokenAPT: {
		Symbol:   TokenAPT,
		CoinType: "0x1::aptos_coin::AptosCoin",
		Decimals: 8,
	},
	TokenEmojicoin: {
		Symbol:   TokenEmojicoin,
		CoinType: "0x173fcd3fda2c89d4702e3d307d4dcc8358b03d9f36189179d2bddd9585e96e27::coin_factory::Emojicoin",
		Decimals: 8,
	},
}

// SpecFor resolves the metadata for a token type. Unknown types fail fast.
func SpecFor(token TokenType) (TokenSpec, error) {
	spec, ok := tokenSpecs[token]
	if !ok {
		return TokenSpec{}, fmt.Errorf("unsupported token type %q", token)
	}
	return spec, nil
}

// SupportedTokens returns the registered token types in a stable order.
func SupportedTokens() []TokenType {
	return []TokenType{TokenAPT, TokenEmojicoin}
}

// Valid reports whether the token type is registered.
func (t TokenType) Valid() bool {
	_, ok := tokenSpecs[t]
	return ok
}

// ToBaseUnits converts a human-readable amount to on-chain base units,
// rounding half-up at the token's precision.
func (s TokenSpec) ToBaseUnits(amount decimal.Decimal) (uint64, error) {
	if amount.IsNegative() {
		return 0, fmt.Errorf("amount must be non-negative, got %s", amount)
	}
	base := amount.Shift(s.Decimals).Round(0)
	if !base.IsInteger() || base.BigInt().Sign() < 0 || !base.BigInt().IsUint64() {
		return 0, fmt.Errorf("amount %s does not fit in %d-decimal base units", amount, s.Decimals)
	}
	return base.BigInt().Uint64(), nil
}

// FromBaseUnits converts an on-chain base-unit amount back to human units.
func (s TokenSpec) FromBaseUnits(base uint64) decimal.Decimal {
	return decimal.NewFromUint64(base).Shift(-s.Decimals)
}
