// Package crypto implements the domain-separated hashing, commitment, and
// signature primitives the ledger builds on (spec §4.1). Ed25519 signing
// follows the teacher's wallet/security stack
// (orbas1-Synnergy/synnergy-network/core/wallet.go,
// core/security.go) rather than rolling a bespoke scheme.
package crypto

import (
	"crypto/ed25519"
	"crypto/sha256"
	"errors"
	"math/big"

	"shielded-ledger/value"
)

var (
	ErrCompressInHash = errors.New("crypto: persistentHash input has compress alignment")
	ErrNotField       = errors.New("crypto: upgradeFromTransient requires a field atom")
)

// domain separation tags, one per call-site, so hashes for distinct purposes
// never collide even on identical byte inputs.
const (
	domHash      = "midnight:persistent-hash"
	domCommit    = "midnight:persistent-commit"
	domLeaf      = "midnight:leaf-hash"
	domCoinCom   = "midnight:coin-commitment"
	domCoinNull  = "midnight:coin-nullifier"
)

func canonicalBytes(dom string, av value.AlignedValue) []byte {
	h := sha256.New()
	h.Write([]byte(dom))
	for _, b := range av.Value {
		var lenBuf [4]byte
		lenBuf[0] = byte(len(b))
		lenBuf[1] = byte(len(b) >> 8)
		h.Write(lenBuf[:2])
		h.Write(b)
	}
	return h.Sum(nil)
}

// PersistentHash is a domain-separated collision-resistant hash over an
// AlignedValue. It fails if any component carries compress alignment (§3.1
// invariant 2).
func PersistentHash(av value.AlignedValue) ([]byte, error) {
	if av.Alignment.HasCompress() {
		return nil, ErrCompressInHash
	}
	return canonicalBytes(domHash, av), nil
}

// PersistentCommit is a keyed commitment: Commit(msg, key) binds msg under key
// so that the same msg under two different keys produces unlinkable outputs.
func PersistentCommit(msg value.AlignedValue, key []byte) ([]byte, error) {
	if msg.Alignment.HasCompress() {
		return nil, ErrCompressInHash
	}
	h := sha256.New()
	h.Write([]byte(domCommit))
	h.Write(key)
	h.Write(canonicalBytes(domHash, msg))
	return h.Sum(nil), nil
}

// LeafHash computes the Poseidon-style leaf hash used for Merkle insertion.
// A real deployment swaps this for an arithmetic-circuit-friendly hash; the
// engine only requires it to be a deterministic, collision-resistant
// field-valued function of the input, which sha256-reduced-mod-p satisfies
// for this reference implementation.
func LeafHash(av value.AlignedValue) (value.AlignedValue, error) {
	raw, err := PersistentHash(av)
	if err != nil {
		return value.AlignedValue{}, err
	}
	n := new(big.Int).SetBytes(raw)
	n.Mod(n, value.FieldModulus)
	return value.NewFieldCell(n), nil
}

// CoinRecipient is the tagged recipient of a shielded coin: either a user's
// coin public key or a contract address (§3.2).
type CoinRecipient struct {
	IsContract bool
	Key        value.Address
}

// ShieldedCoin mirrors ShieldedCoinInfo (§3.2): a 35-byte token id, a 32-byte
// nonce, and a u128 value.
type ShieldedCoin struct {
	Type  value.TokenType
	Nonce [32]byte
	Value value.Uint128
}

func (c ShieldedCoin) aligned() value.AlignedValue {
	av := value.NewCell(c.Type[:])
	av = value.Concat(av, value.NewCell(c.Nonce[:]))
	av = value.Concat(av, value.NewCell(c.Value[:]))
	return av
}

// CoinCommitment computes commitment = H_commit(coin, recipient).
func CoinCommitment(coin ShieldedCoin, recipient CoinRecipient) ([]byte, error) {
	tag := byte(0)
	if recipient.IsContract {
		tag = 1
	}
	rec := value.NewCell([]byte{tag})
	rec = value.Concat(rec, value.NewCell(recipient.Key[:]))
	msg := value.Concat(coin.aligned(), rec)
	h := sha256.New()
	h.Write([]byte(domCoinCom))
	h.Write(canonicalBytes(domHash, msg))
	return h.Sum(nil), nil
}

// CoinNullifier computes nullifier = H_null(coin, senderEvidence).
func CoinNullifier(coin ShieldedCoin, senderEvidence []byte) ([]byte, error) {
	msg := value.Concat(coin.aligned(), value.NewCell(senderEvidence))
	h := sha256.New()
	h.Write([]byte(domCoinNull))
	h.Write(canonicalBytes(domHash, msg))
	return h.Sum(nil), nil
}

// RuntimeCoinCommitment / RuntimeCoinNullifier are the VM-visible wrappers
// invoked from inside contract transcripts; their output is bit-identical to
// the off-chain CoinCommitment/CoinNullifier above, which is load-bearing for
// contract-owned coin discovery (§4.1).
func RuntimeCoinCommitment(coin ShieldedCoin, recipient CoinRecipient) ([]byte, error) {
	return CoinCommitment(coin, recipient)
}

func RuntimeCoinNullifier(coin ShieldedCoin, senderEvidence []byte) ([]byte, error) {
	return CoinNullifier(coin, senderEvidence)
}

// UpgradeFromTransient raises a transient field element to its canonical
// (reduced modulo FieldModulus, 32-byte field cell) AlignedValue form.
func UpgradeFromTransient(av value.AlignedValue) (value.AlignedValue, error) {
	leaves := av.Alignment.Leaves()
	if len(leaves) != 1 || leaves[0].Kind != value.AtomField {
		return value.AlignedValue{}, ErrNotField
	}
	n := new(big.Int).SetBytes(av.Value[0])
	n.Mod(n, value.FieldModulus)
	return value.NewFieldCell(n), nil
}

// SigningKey / VerifyingKey wrap Ed25519 key material the way
// core/wallet.go's HDWallet does, minus HD derivation (out of scope here;
// key management belongs to the wallet, an external collaborator per §1).
type SigningKey struct{ priv ed25519.PrivateKey }

type VerifyingKey struct{ pub ed25519.PublicKey }

func GenerateSigningKey() (SigningKey, error) {
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return SigningKey{}, err
	}
	return SigningKey{priv: priv}, nil
}

func SigningKeyFromSeed(seed [32]byte) SigningKey {
	return SigningKey{priv: ed25519.NewKeyFromSeed(seed[:])}
}

// SignatureVerifyingKey derives the public verifying key for a signing key.
func SignatureVerifyingKey(sk SigningKey) VerifyingKey {
	pub := sk.priv.Public().(ed25519.PublicKey)
	return VerifyingKey{pub: pub}
}

func (vk VerifyingKey) Bytes() []byte { return vk.pub }

func VerifyingKeyFromBytes(b []byte) (VerifyingKey, error) {
	if len(b) != ed25519.PublicKeySize {
		return VerifyingKey{}, errors.New("crypto: bad verifying key length")
	}
	return VerifyingKey{pub: ed25519.PublicKey(b)}, nil
}

// SignData signs bytes with the intent's signing key.
func SignData(sk SigningKey, data []byte) (value.Signature, error) {
	if sk.priv == nil {
		return nil, errors.New("crypto: nil signing key")
	}
	return value.Signature(ed25519.Sign(sk.priv, data)), nil
}

// VerifySignature checks a signature produced by SignData.
func VerifySignature(vk VerifyingKey, data []byte, sig value.Signature) bool {
	if len(vk.pub) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(vk.pub, data, []byte(sig))
}

// HashBytes is the plain, non-domain-separated sha256 used for addresses and
// coarse identifiers (e.g. intent_hash, contract address derivation) where no
// alignment typing is involved.
func HashBytes(parts ...[]byte) [32]byte {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
