package aptos

import (
	"crypto/ed25519"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/sha3"
)

const (
	testSeedHex = "0x1111111111111111111111111111111111111111111111111111111111111111"
	testAddress = "0xa550c18"
)

func TestNewSignerValidatesKey(t *testing.T) {
	_, err := NewSigner("not-hex", testAddress)
	assert.Error(t, err)

	_, err = NewSigner("0xabcd", testAddress)
	assert.Error(t, err, "seed shorter than 32 bytes must be rejected")

	_, err = NewSigner(testSeedHex, "")
	assert.Error(t, err, "missing escrow address must be rejected")

	signer, err := NewSigner(testSeedHex, testAddress)
	assert.NoError(t, err)
	assert.Equal(t, "0x000000000000000000000000000000000000000000000000000000000a550c18", signer.Address().Hex())
}

func TestSignRawTransactionVerifies(t *testing.T) {
	signer, err := NewSigner(testSeedHex, testAddress)
	assert.NoError(t, err)

	rawBytes := []byte("raw transaction bytes")
	signature := signer.SignRawTransaction(rawBytes)
	assert.Len(t, signature, ed25519.SignatureSize)

	prefix := sha3.Sum256([]byte("APTOS::RawTransaction"))
	message := append(prefix[:], rawBytes...)

	publicKey := ed25519.PublicKey(signer.PublicKey())
	assert.True(t, ed25519.Verify(publicKey, message, signature))

	// a different message must not verify
	assert.False(t, ed25519.Verify(publicKey, rawBytes, signature))
}

func TestPublicKeyReturnsCopy(t *testing.T) {
	signer, err := NewSigner(testSeedHex, testAddress)
	assert.NoError(t, err)

	pk := signer.PublicKey()
	pk[0] ^= 0xff

	assert.NotEqual(t, pk[0], signer.PublicKey()[0])
}

func TestSignerNeverExposesSeed(t *testing.T) {
	signer, err := NewSigner(testSeedHex, testAddress)
	assert.NoError(t, err)

	seed := strings.TrimPrefix(testSeedHex, "0x")
	assert.NotContains(t, hex.EncodeToString(signer.PublicKey()), seed)
	assert.NotContains(t, signer.Address().Hex(), seed)
}
