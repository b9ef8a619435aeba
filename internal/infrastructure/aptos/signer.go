package aptos

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// rawTransactionSalt prefixes every signing message so a signature over a
// transaction can never be replayed as a signature over other data.
const rawTransactionSalt = "APTOS::RawTransaction"

// Signer holds the escrow account's ed25519 keypair. The private key never
// leaves this struct; callers only see public material and signatures.
type Signer struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
	address    AccountAddress
}

// NewSigner builds a signer from a 32-byte hex seed. The account address
// must be supplied explicitly: addresses can be rotated independently of
// the authentication key, so deriving it here would be wrong for rotated
// accounts.
func NewSigner(privateKeyHex, address string) (*Signer, error) {
	keyHex := strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x")
	seed, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid private key hex: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("private key must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}

	addr, err := ParseAddress(address)
	if err != nil {
		return nil, fmt.Errorf("escrow address: %w", err)
	}

	privateKey := ed25519.NewKeyFromSeed(seed)
	return &Signer{
		privateKey: privateKey,
		publicKey:  privateKey.Public().(ed25519.PublicKey),
		address:    addr,
	}, nil
}

// Address returns the signing account's address.
func (s *Signer) Address() AccountAddress {
	return s.address
}

// PublicKey returns the 32-byte ed25519 public key.
func (s *Signer) PublicKey() []byte {
	return append([]byte(nil), s.publicKey...)
}

// SignRawTransaction signs sha3-256(salt) || bcs(rawTransaction), matching
// the fullnode's signature check.
func (s *Signer) SignRawTransaction(rawBytes []byte) []byte {
	prefix := sha3.Sum256([]byte(rawTransactionSalt))
	message := make([]byte, 0, len(prefix)+len(rawBytes))
	message = append(message, prefix[:]...)
	message = append(message, rawBytes...)
	return ed25519.Sign(s.privateKey, message)
}
