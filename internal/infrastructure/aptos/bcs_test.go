package aptos

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriteUleb128(t *testing.T) {
	cases := []struct {
		name     string
		value    uint32
		expected []byte
	}{
		{"zero", 0, []byte{0x00}},
		{"one", 1, []byte{0x01}},
		{"boundary_127", 127, []byte{0x7f}},
		{"boundary_128", 128, []byte{0x80, 0x01}},
		{"two_bytes", 300, []byte{0xac, 0x02}},
		{"three_bytes", 16384, []byte{0x80, 0x80, 0x01}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := newBCSWriter()
			w.writeUleb128(tc.value)
			assert.Equal(t, tc.expected, w.bytes())
		})
	}
}

func TestWriteU64LittleEndian(t *testing.T) {
	w := newBCSWriter()
	w.writeU64(1)
	assert.Equal(t, []byte{0x01, 0, 0, 0, 0, 0, 0, 0}, w.bytes())

	w = newBCSWriter()
	w.writeU64(0x0102030405060708)
	assert.Equal(t, []byte{0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01}, w.bytes())
}

func TestWriteString(t *testing.T) {
	w := newBCSWriter()
	w.writeString("coin")
	assert.Equal(t, []byte{0x04, 'c', 'o', 'i', 'n'}, w.bytes())
}

func TestParseAddressPadsShortForms(t *testing.T) {
	addr, err := ParseAddress("0x1")
	assert.NoError(t, err)

	var expected AccountAddress
	expected[31] = 0x01
	assert.Equal(t, expected, addr)
	assert.Equal(t, "0x0000000000000000000000000000000000000000000000000000000000000001", addr.Hex())
}

func TestParseAddressFullWidth(t *testing.T) {
	hex := "0x173fcd3fda2c89d4702e3d307d4dcc8358b03d9f36189179d2bddd9585e96e27"
	addr, err := ParseAddress(hex)
	assert.NoError(t, err)
	assert.Equal(t, hex, addr.Hex())
}

func TestParseAddressRejectsBadInput(t *testing.T) {
	_, err := ParseAddress("")
	assert.Error(t, err)

	_, err = ParseAddress("0xзз")
	assert.Error(t, err)

	_, err = ParseAddress("0x" + string(bytes.Repeat([]byte{'f'}, 66)))
	assert.Error(t, err)
}

func TestParseStructTag(t *testing.T) {
	tag, err := parseStructTag("0x1::aptos_coin::AptosCoin")
	assert.NoError(t, err)
	assert.Equal(t, "aptos_coin", tag.Module)
	assert.Equal(t, "AptosCoin", tag.Name)
	assert.Equal(t, byte(0x01), tag.Address[31])

	_, err = parseStructTag("aptos_coin::AptosCoin")
	assert.Error(t, err)

	_, err = parseStructTag("")
	assert.Error(t, err)
}

func TestEncodeRawTransactionLayout(t *testing.T) {
	sender, err := ParseAddress("0xa")
	assert.NoError(t, err)
	framework, err := ParseAddress("0x1")
	assert.NoError(t, err)
	recipient, err := ParseAddress("0xb")
	assert.NoError(t, err)
	coinTag, err := parseStructTag("0x1::aptos_coin::AptosCoin")
	assert.NoError(t, err)

	raw := rawTransaction{
		Sender:         sender,
		SequenceNumber: 7,
		Payload: entryFunctionPayload{
			ModuleAddress: framework,
			ModuleName:    "aptos_account",
			FunctionName:  "transfer_coins",
			TypeArgs:      []structTag{coinTag},
			Args: [][]byte{
				bcsAddress(recipient),
				bcsU64(100_000_000),
			},
		},
		MaxGasAmount:   20000,
		GasUnitPrice:   100,
		ExpirationSecs: 1_700_000_000,
		ChainID:        2,
	}

	encoded := encodeRawTransaction(raw)

	// sender address leads the encoding
	assert.Equal(t, sender[:], encoded[:32])

	// sequence number follows in little-endian
	assert.Equal(t, []byte{0x07, 0, 0, 0, 0, 0, 0, 0}, encoded[32:40])

	// entry-function variant index
	assert.Equal(t, byte(payloadVariantEntryFunction), encoded[40])

	// chain id is the final byte
	assert.Equal(t, byte(2), encoded[len(encoded)-1])

	// encoding is deterministic
	assert.Equal(t, encoded, encodeRawTransaction(raw))
}

func TestEncodeSignedTransactionAppendsAuthenticator(t *testing.T) {
	rawBytes := []byte{0xde, 0xad, 0xbe, 0xef}
	publicKey := bytes.Repeat([]byte{0x11}, 32)
	signature := bytes.Repeat([]byte{0x22}, 64)

	signed := encodeSignedTransaction(rawBytes, publicKey, signature)

	assert.Equal(t, rawBytes, signed[:4])
	assert.Equal(t, byte(authenticatorVariantEd25519), signed[4])
	assert.Equal(t, byte(32), signed[5]) // public key length prefix
	assert.Equal(t, publicKey, signed[6:38])
	assert.Equal(t, byte(64), signed[38]) // signature length prefix
	assert.Equal(t, signature, signed[39:])
}
