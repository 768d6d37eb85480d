package value

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
)

// TokenType tags which ledger a 35-byte token identifier belongs to; the
// leading tag byte (§6.2) makes the three encodings distinguishable without
// external context.
type TokenType [35]byte

const (
	tokenTagShielded   byte = 0x01
	tokenTagUnshielded byte = 0x02
	tokenTagDust       byte = 0x03
)

func newTokenType(tag byte, id [34]byte) TokenType {
	var t TokenType
	t[0] = tag
	copy(t[1:], id[:])
	return t
}

func ShieldedToken(id [34]byte) TokenType   { return newTokenType(tokenTagShielded, id) }
func UnshieldedToken(id [34]byte) TokenType { return newTokenType(tokenTagUnshielded, id) }
func DustToken(id [34]byte) TokenType       { return newTokenType(tokenTagDust, id) }

func (t TokenType) IsShielded() bool   { return t[0] == tokenTagShielded }
func (t TokenType) IsUnshielded() bool { return t[0] == tokenTagUnshielded }
func (t TokenType) IsDust() bool       { return t[0] == tokenTagDust }

// Address is a 32-byte user (coin) public key or contract address.
type Address [32]byte

func (a Address) Bytes() []byte { return a[:] }
func (a Address) String() string {
	return fmt.Sprintf("%x", a[:])
}

// Signature is an Ed25519 signature wrapper used by both intents (native
// signing key) and the maintenance committee (one signature per member).
type Signature []byte

// Uint128 is a little-endian encoded unsigned 128-bit quantity matching the
// `value:u128` fields throughout §3.
type Uint128 [16]byte

func Uint128FromUint64(v uint64) Uint128 {
	var out Uint128
	binary.LittleEndian.PutUint64(out[:8], v)
	return out
}

func (u Uint128) Uint64() (uint64, bool) {
	for _, b := range u[8:] {
		if b != 0 {
			return 0, false
		}
	}
	return binary.LittleEndian.Uint64(u[:8]), true
}

// EncodeRLP produces the canonical Uint8Array encoding of any RLP-encodable
// domain type. The teacher (core/ledger.go: DecodeBlockRLP) leans on
// go-ethereum's RLP codec for canonical byte forms; we reuse it here so the
// serialization round-trip property (§8 item 1) holds for every type that
// embeds these helpers.
func EncodeRLP(v interface{}) ([]byte, error) {
	return rlp.EncodeToBytes(v)
}

// DecodeRLP reverses EncodeRLP into the provided pointer.
func DecodeRLP(data []byte, out interface{}) error {
	return rlp.DecodeBytes(data, out)
}

var ErrBadHeaderTag = errors.New("value: bad header tag")

// HeaderTag is prefixed to every versioned serialized blob (§6.1); encoded
// forms self-describe their type and fail closed on mismatch.
type HeaderTag string

const VerifierKeyHeaderTag HeaderTag = "midnight:verifier-key"

// WriteHeader prepends a length-delimited tag to a payload.
func WriteHeader(tag HeaderTag, payload []byte) []byte {
	out := make([]byte, 0, 2+len(tag)+len(payload))
	out = append(out, byte(len(tag)))
	out = append(out, []byte(tag)...)
	out = append(out, payload...)
	return out
}

// ReadHeader validates and strips the expected tag, returning the payload.
func ReadHeader(expected HeaderTag, blob []byte) ([]byte, error) {
	if len(blob) < 1 || int(blob[0]) > len(blob)-1 {
		return nil, ErrBadHeaderTag
	}
	n := int(blob[0])
	got := HeaderTag(blob[1 : 1+n])
	if got != expected {
		return nil, fmt.Errorf("%w: expected header tag '%s', got '%s'", ErrBadHeaderTag, expected, got)
	}
	return blob[1+n:], nil
}
