// Package dust implements the dust fee-token generation and spend model
// (spec §3.6, §4.6): a value that accrues over time from locked NIGHT
// holdings, spent to pay transaction fees, and replayed locally by wallets
// from ledger events. Nothing in the teacher corpus models a time-decayed
// fee-generation curve directly; the piecewise accrual below follows the
// teacher's halving-curve style seen in
// orbas1-Synnergy/synnergy-network/core/coin.go (BlockRewardAt, a
// deterministic function of a single time-like input with geometric decay)
// generalized from a step halving to a continuous decay-to-cap integral.
package dust

import (
	"crypto/rand"
	"errors"
	"math"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"golang.org/x/crypto/chacha20poly1305"

	"shielded-ledger/crypto"
	"shielded-ledger/value"
)

// Params mirrors the LedgerParameters dust coefficients (spec §6.4).
type Params struct {
	NightDustRatio      float64
	GenerationDecayRate float64
	GracePeriodSeconds  int64
}

// DefaultParams matches LedgerParameters.initialParameters() for dust.
func DefaultParams() Params {
	return Params{
		NightDustRatio:      5.0,
		GenerationDecayRate: 0.0001,
		GracePeriodSeconds:  432_000, // 5 days
	}
}

// GenInfo is the backing NIGHT amount driving an output's generation curve.
type GenInfo struct {
	NightAmount uint64
}

// Output is a single dust output (spec §3.6).
type Output struct {
	InitialValue value.Uint128
	Nonce        [32]byte
	Seq          uint64
	Ctime        int64
	BackingNight [32]byte
	TTL          int64
	Gen          GenInfo
}

// QualifiedOutput adds the output's position in the dust commitment index,
// mirroring QualifiedShieldedCoinInfo's mt_index field (spec §3.2 analogue).
type QualifiedOutput struct {
	Output
	MtIndex uint64
}

// UpdatedValue computes the output's current value at time t: its initial
// value plus the decaying-rate generation integral capped at the grace
// period, i.e. generation(elapsed) = (rate/decay) * (1 - e^{-decay*elapsed})
// for elapsed clamped to [0, GracePeriodSeconds] (spec §3.6).
func UpdatedValue(o Output, t int64, p Params) uint64 {
	initial, _ := o.InitialValue.Uint64()
	elapsed := t - o.Ctime
	if elapsed <= 0 {
		return initial
	}
	if elapsed > p.GracePeriodSeconds {
		elapsed = p.GracePeriodSeconds
	}
	rate := p.NightDustRatio * float64(o.Gen.NightAmount)
	var generated float64
	if p.GenerationDecayRate <= 0 {
		generated = rate * float64(elapsed)
	} else {
		generated = (rate / p.GenerationDecayRate) * (1 - math.Exp(-p.GenerationDecayRate*float64(elapsed)))
	}
	return initial + uint64(generated)
}

var (
	ErrInsufficientDust = errors.New("dust: output value below requested fee")
	ErrExpired          = errors.New("dust: output ttl has expired")
)

// Spend is the record embedded in an intent's DustActions, proving a fee
// payment without revealing the spender's other dust holdings.
type Spend struct {
	Nullifier [32]byte
	Fee       value.Uint128
}

// LocalState is the wallet-side DustLocalState (spec §4.6): the set of held
// outputs and the wallet's view of time-bounded validity.
type LocalState struct {
	Utxos []QualifiedOutput
}

func NewLocalState() *LocalState { return &LocalState{} }

// WalletBalance sums UpdatedValue over every held output at time t.
func (s *LocalState) WalletBalance(t int64, p Params) uint64 {
	var total uint64
	for _, o := range s.Utxos {
		total += UpdatedValue(o.Output, t, p)
	}
	return total
}

// Spend decrements the chosen output by vFee, producing the DustSpend record
// the intent embeds, and returns the updated local state (copy-on-write: the
// receiver is left unmodified).
func (s *LocalState) Spend(sk crypto.SigningKey, qdo QualifiedOutput, vFee uint64, t int64, p Params) (*LocalState, Spend, error) {
	if qdo.TTL != 0 && t > qdo.TTL {
		return nil, Spend{}, ErrExpired
	}
	cur := UpdatedValue(qdo.Output, t, p)
	if cur < vFee {
		return nil, Spend{}, ErrInsufficientDust
	}
	vk := crypto.SignatureVerifyingKey(sk)
	nullifier := crypto.HashBytes(qdo.Nonce[:], []byte{byte(qdo.Seq)}, vk.Bytes())

	out := &LocalState{}
	remaining := cur - vFee
	for _, o := range s.Utxos {
		if o == qdo {
			if remaining > 0 {
				updated := o
				updated.InitialValue = value.Uint128FromUint64(remaining)
				updated.Ctime = t
				updated.Seq++
				out.Utxos = append(out.Utxos, updated)
			}
			continue
		}
		out.Utxos = append(out.Utxos, o)
	}
	return out, Spend{Nullifier: nullifier, Fee: value.Uint128FromUint64(vFee)}, nil
}

// ProcessTtls drops expired entries and returns the updated state.
func (s *LocalState) ProcessTtls(t int64) *LocalState {
	out := &LocalState{}
	for _, o := range s.Utxos {
		if o.TTL == 0 || t <= o.TTL {
			out.Utxos = append(out.Utxos, o)
		}
	}
	return out
}

// Event is the subset of a TransactionResult's event log dust replay cares
// about: new outputs generated for this wallet, or a spend nullifier the
// ledger confirmed. ReplayEvents matches a spent nullifier against held
// outputs through its nullifierOf argument, not through a field of Event.
type Event struct {
	NewOutput      *QualifiedOutput
	SpentNullifier *[32]byte
}

// ReplayEvents walks ledger events and folds them into the local state the
// way a wallet reconstructs its balance without a trusted third party. Spend
// matching is by nullifier, which the caller supplies per held output via
// nullifierOf since deriving it requires the owning signing key.
func (s *LocalState) ReplayEvents(events []Event, nullifierOf func(QualifiedOutput) [32]byte) *LocalState {
	out := &LocalState{Utxos: append([]QualifiedOutput{}, s.Utxos...)}
	for _, e := range events {
		if e.NewOutput != nil {
			out.Utxos = append(out.Utxos, *e.NewOutput)
		}
		if e.SpentNullifier != nil {
			filtered := out.Utxos[:0]
			for _, o := range out.Utxos {
				if nullifierOf(o) == *e.SpentNullifier {
					continue
				}
				filtered = append(filtered, o)
			}
			out.Utxos = filtered
		}
	}
	return out
}

// NightKey is the secp256k1 key backing a wallet's locked NIGHT holdings,
// distinct from the ed25519 key used for shielded/unshielded signing. Dust
// registrations bind a NightKey to a DustAddress, mirroring how the teacher
// keeps a separate secp256k1 identity for chain-external custody
// (orbas1-Synnergy/synnergy-network/core/wallet.go's BIP-32-style key
// derivation) apart from its transaction-signing key.
type NightKey struct {
	priv *btcec.PrivateKey
}

func GenerateNightKey() (NightKey, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return NightKey{}, err
	}
	return NightKey{priv: priv}, nil
}

func (k NightKey) PublicKeyBytes() []byte { return k.priv.PubKey().SerializeCompressed() }

func (k NightKey) Sign(data []byte) []byte {
	digest := crypto.HashBytes(data)
	return ecdsa.Sign(k.priv, digest[:]).Serialize()
}

// VerifyNightSignature verifies a signature produced by NightKey.Sign against
// a compressed secp256k1 public key.
func VerifyNightSignature(pubKey, data, sig []byte) bool {
	pk, err := btcec.ParsePubKey(pubKey)
	if err != nil {
		return false
	}
	parsedSig, err := ecdsa.ParseDERSignature(sig)
	if err != nil {
		return false
	}
	digest := crypto.HashBytes(data)
	return parsedSig.Verify(digest[:], pk)
}

// Registration binds a NightKey to a DustAddress for fee payment, signed by
// the night key.
type Registration struct {
	NightPublicKey []byte
	DustAddress    value.Address
	Signature      []byte
}

// RegistrationData is the canonical byte string a night key signs to
// authorize a dust registration.
func RegistrationData(nightPubKey []byte, dustAddr value.Address) []byte {
	h := crypto.HashBytes(nightPubKey, dustAddr[:])
	return h[:]
}

// VerifyRegistration checks r.Signature against RegistrationData.
func VerifyRegistration(r Registration) bool {
	return VerifyNightSignature(r.NightPublicKey, RegistrationData(r.NightPublicKey, r.DustAddress), r.Signature)
}

// SealedMetadata is registration metadata (e.g. a wallet label or recovery
// hint) encrypted at rest alongside a DustActions entry, so it travels with
// the transaction without being readable by anyone but the registering
// wallet. Follows the teacher's chacha20poly1305 use in
// core/security.go (EncryptAESGCM's sibling cipher for payload sealing).
type SealedMetadata struct {
	Nonce      []byte
	Ciphertext []byte
}

// SealMetadata encrypts plaintext under key (must be 32 bytes) using
// chacha20poly1305, binding dustAddr as associated data so a sealed blob
// cannot be replayed against a different registration.
func SealMetadata(key [32]byte, dustAddr value.Address, plaintext []byte) (SealedMetadata, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return SealedMetadata{}, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return SealedMetadata{}, err
	}
	ct := aead.Seal(nil, nonce, plaintext, dustAddr[:])
	return SealedMetadata{Nonce: nonce, Ciphertext: ct}, nil
}

// OpenMetadata reverses SealMetadata.
func OpenMetadata(key [32]byte, dustAddr value.Address, sealed SealedMetadata) ([]byte, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, err
	}
	return aead.Open(nil, sealed.Nonce, sealed.Ciphertext, dustAddr[:])
}
