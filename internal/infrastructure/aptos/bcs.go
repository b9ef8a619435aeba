package aptos

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
)

// Minimal BCS (Binary Canonical Serialization) writer covering the subset
// needed to encode coin-transfer transactions: fixed-width integers in
// little-endian, ULEB128 lengths, length-prefixed byte strings, and the
// enum/struct layouts of RawTransaction.
type bcsWriter struct {
	buf []byte
}

func newBCSWriter() *bcsWriter {
	return &bcsWriter{buf: make([]byte, 0, 256)}
}

func (w *bcsWriter) bytes() []byte {
	return w.buf
}

func (w *bcsWriter) writeU8(v uint8) {
	w.buf = append(w.buf, v)
}

func (w *bcsWriter) writeU64(v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

// writeUleb128 encodes v as a ULEB128 variable-length integer, used by BCS
// for sequence lengths and enum variant indexes.
func (w *bcsWriter) writeUleb128(v uint32) {
	for v >= 0x80 {
		w.buf = append(w.buf, byte(v&0x7f)|0x80)
		v >>= 7
	}
	w.buf = append(w.buf, byte(v))
}

// writeBytes writes a ULEB128 length followed by the raw bytes.
func (w *bcsWriter) writeBytes(b []byte) {
	w.writeUleb128(uint32(len(b)))
	w.buf = append(w.buf, b...)
}

// writeFixedBytes writes raw bytes with no length prefix (account
// addresses are fixed 32 bytes in BCS).
func (w *bcsWriter) writeFixedBytes(b []byte) {
	w.buf = append(w.buf, b...)
}

func (w *bcsWriter) writeString(s string) {
	w.writeBytes([]byte(s))
}

// AccountAddress is a 32-byte Aptos account address.
type AccountAddress [32]byte

// ParseAddress decodes a 0x-prefixed hex address, left-padding short forms
// (e.g. 0x1) to the full 32 bytes.
func ParseAddress(s string) (AccountAddress, error) {
	var addr AccountAddress

	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if s == "" {
		return addr, fmt.Errorf("empty address")
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return addr, fmt.Errorf("invalid address hex: %w", err)
	}
	if len(raw) > 32 {
		return addr, fmt.Errorf("address longer than 32 bytes")
	}

	copy(addr[32-len(raw):], raw)
	return addr, nil
}

// Hex returns the full-width 0x-prefixed representation.
func (a AccountAddress) Hex() string {
	return "0x" + hex.EncodeToString(a[:])
}

// structTag is a parsed Move struct tag like 0x1::aptos_coin::AptosCoin.
type structTag struct {
	Address AccountAddress
	Module  string
	Name    string
}

// parseStructTag parses a fully qualified coin type. Nested generic type
// parameters are not supported; none of the registered tokens need them.
func parseStructTag(s string) (structTag, error) {
	var tag structTag

	parts := strings.Split(strings.TrimSpace(s), "::")
	if len(parts) != 3 {
		return tag, fmt.Errorf("malformed struct tag %q", s)
	}

	addr, err := ParseAddress(parts[0])
	if err != nil {
		return tag, fmt.Errorf("struct tag address: %w", err)
	}

	tag.Address = addr
	tag.Module = parts[1]
	tag.Name = parts[2]
	return tag, nil
}

// TypeTag enum variant indexes per the Move BCS layout.
const (
	typeTagVariantStruct = 7
)

// TransactionPayload enum variant indexes.
const (
	payloadVariantEntryFunction = 2
)

// TransactionAuthenticator enum variant indexes.
const (
	authenticatorVariantEd25519 = 0
)

func (w *bcsWriter) writeStructTypeTag(tag structTag) {
	w.writeUleb128(typeTagVariantStruct)
	w.writeFixedBytes(tag.Address[:])
	w.writeString(tag.Module)
	w.writeString(tag.Name)
	w.writeUleb128(0) // no generic type parameters
}

// rawTransaction is the unsigned transaction body.
type rawTransaction struct {
	Sender         AccountAddress
	SequenceNumber uint64
	Payload        entryFunctionPayload
	MaxGasAmount   uint64
	GasUnitPrice   uint64
	ExpirationSecs uint64
	ChainID        uint8
}

// entryFunctionPayload calls a Move entry function with BCS-encoded
// arguments.
type entryFunctionPayload struct {
	ModuleAddress AccountAddress
	ModuleName    string
	FunctionName  string
	TypeArgs      []structTag
	Args          [][]byte // each element already BCS-encoded
}

func (w *bcsWriter) writeEntryFunction(p entryFunctionPayload) {
	w.writeUleb128(payloadVariantEntryFunction)
	w.writeFixedBytes(p.ModuleAddress[:])
	w.writeString(p.ModuleName)
	w.writeString(p.FunctionName)

	w.writeUleb128(uint32(len(p.TypeArgs)))
	for _, tag := range p.TypeArgs {
		w.writeStructTypeTag(tag)
	}

	w.writeUleb128(uint32(len(p.Args)))
	for _, arg := range p.Args {
		w.writeBytes(arg)
	}
}

// encodeRawTransaction serializes the transaction body for signing and
// submission.
func encodeRawTransaction(tx rawTransaction) []byte {
	w := newBCSWriter()
	w.writeFixedBytes(tx.Sender[:])
	w.writeU64(tx.SequenceNumber)
	w.writeEntryFunction(tx.Payload)
	w.writeU64(tx.MaxGasAmount)
	w.writeU64(tx.GasUnitPrice)
	w.writeU64(tx.ExpirationSecs)
	w.writeU8(tx.ChainID)
	return w.bytes()
}

// encodeSignedTransaction appends the ed25519 authenticator to the raw
// transaction bytes, producing the body for BCS submission.
func encodeSignedTransaction(rawBytes, publicKey, signature []byte) []byte {
	w := newBCSWriter()
	w.writeFixedBytes(rawBytes)
	w.writeUleb128(authenticatorVariantEd25519)
	w.writeBytes(publicKey)
	w.writeBytes(signature)
	return w.bytes()
}

// bcsU64 encodes a u64 entry-function argument.
func bcsU64(v uint64) []byte {
	w := newBCSWriter()
	w.writeU64(v)
	return w.bytes()
}

// bcsAddress encodes an address entry-function argument.
func bcsAddress(a AccountAddress) []byte {
	return append([]byte(nil), a[:]...)
}
