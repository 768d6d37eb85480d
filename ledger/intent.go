// Package ledger implements the transaction envelope, the apply pipeline,
// claim-rewards transactions, and replay protection (spec §3.7, §4.7-4.9,
// C10-C13). Phase markers are modelled as tagged variants per the spec's own
// design note (§9), the way the teacher tags its block/transaction variants
// in orbas1-Synnergy/synnergy-network/core/ledger.go rather than via generics.
package ledger

import (
	"errors"

	"shielded-ledger/contract"
	"shielded-ledger/crypto"
	"shielded-ledger/dust"
	"shielded-ledger/utxo"
	"shielded-ledger/value"
)

// BindingPhase tags an intent's Pedersen-binding lifecycle stage.
type BindingPhase int

const (
	PreBinding BindingPhase = iota
	Binding
	NoBinding
)

// SignaturePhase tags whether an intent's signatures are present or erased.
type SignaturePhase int

const (
	SignatureEnabled SignaturePhase = iota
	SignatureErased
)

// ProofPhase tags an intent's proof lifecycle stage.
type ProofPhase int

const (
	PreProof ProofPhase = iota
	Proof
	NoProof
)

// ActionKind tags which of deploy | call | maintain a ContractAction is.
type ActionKind int

const (
	ActionDeploy ActionKind = iota
	ActionCall
	ActionMaintain
)

// ContractAction is one entry in Intent.Actions (spec §3.7).
type ContractAction struct {
	Kind ActionKind

	DeployState      *contract.State
	DeployRandomness [32]byte

	Call *contract.CallPrototype

	MaintainAddress value.Address
	MaintainOps     []contract.MaintenanceOp
	MaintainSigs    []value.Signature
}

// DustActions bundles an intent's dust spends (spec §3.7, §4.6).
type DustActions struct {
	Spends        []dust.Spend
	Registrations []dust.Registration
}

// Intent is the signed, replay-protected per-segment body of a transaction
// (spec §3.7).
type Intent struct {
	TTL     int64
	Actions []ContractAction

	GuaranteedUnshieldedOffer *utxo.Offer
	FallibleUnshieldedOffer   *utxo.Offer
	DustActionsField          *DustActions

	Binding       BindingPhase
	SegmentID     uint16
	SignaturePhase SignaturePhase
	ProofPhase    ProofPhase

	Signatures []value.Signature
}

var (
	ErrSegmentZero      = errors.New("Segment ID cannot be 0")
	ErrAlreadyBound     = errors.New("Intent cannot be bound.")
	ErrDeserializeBad   = errors.New("Unable to deserialize Intent")
	ErrUnsupportedType  = errors.New("Unsupported intent type provided.")
)

// NewIntent returns an empty pre-binding intent with the given TTL.
func NewIntent(ttl int64) *Intent {
	return &Intent{TTL: ttl, Binding: PreBinding, SignaturePhase: SignatureEnabled, ProofPhase: PreProof}
}

// WithAction returns a new intent with action appended (construction is
// copy-on-write, per spec §5).
func (it *Intent) WithAction(a ContractAction) *Intent {
	out := it.clone()
	out.Actions = append(out.Actions, a)
	return out
}

func (it *Intent) clone() *Intent {
	out := *it
	out.Actions = append([]ContractAction{}, it.Actions...)
	out.Signatures = append([]value.Signature{}, it.Signatures...)
	return &out
}

// Bind transitions the intent to the Binding phase for segmentId, rejecting
// segment 0 and rejecting an already-bound intent.
func (it *Intent) Bind(segmentID uint16) (*Intent, error) {
	if segmentID == 0 {
		return nil, ErrSegmentZero
	}
	if it.Binding != PreBinding {
		return nil, ErrAlreadyBound
	}
	out := it.clone()
	out.Binding = Binding
	out.SegmentID = segmentID
	return out, nil
}

// SignatureData returns the canonical byte string an intent's signers sign:
// the intent's erased form plus its target segment (spec §9, "sign their
// erased form to avoid self-reference").
func (it *Intent) SignatureData(segmentID uint16) []byte {
	erased := it.Erase()
	return crypto.HashBytes(erased.canonicalBytes(), segmentBytes(segmentID))[:]
}

func segmentBytes(segment uint16) []byte {
	return []byte{byte(segment >> 8), byte(segment)}
}

// Erase returns the SignatureErased view of the intent: same content, with
// the Signatures field cleared. Modelled as an explicit view rather than
// in-place mutation, per spec §9.
func (it *Intent) Erase() *Intent {
	out := it.clone()
	out.Signatures = nil
	out.SignaturePhase = SignatureErased
	return out
}

// canonicalBytes is a deterministic flattening of the intent's content used
// both for signing and for the replay-protection intent hash.
func (it *Intent) canonicalBytes() []byte {
	var parts [][]byte
	var ttlBuf [8]byte
	for i := 0; i < 8; i++ {
		ttlBuf[i] = byte(it.TTL >> (8 * i))
	}
	parts = append(parts, ttlBuf[:])
	for _, a := range it.Actions {
		parts = append(parts, []byte{byte(a.Kind)})
	}
	if it.GuaranteedUnshieldedOffer != nil {
		parts = append(parts, []byte("guaranteed-unshielded-offer"))
	}
	if it.FallibleUnshieldedOffer != nil {
		parts = append(parts, []byte("fallible-unshielded-offer"))
	}
	h := crypto.HashBytes(parts...)
	return h[:]
}

// AddSignature appends a signature over SignatureData(segmentID).
func (it *Intent) AddSignature(sk crypto.SigningKey, segmentID uint16) (*Intent, error) {
	sig, err := crypto.SignData(sk, it.SignatureData(segmentID))
	if err != nil {
		return nil, err
	}
	out := it.clone()
	out.Signatures = append(out.Signatures, sig)
	return out, nil
}

// VerifySignatures checks every signature in it.Signatures against keys,
// positionally.
func (it *Intent) VerifySignatures(keys []crypto.VerifyingKey, segmentID uint16) bool {
	if len(keys) != len(it.Signatures) {
		return false
	}
	data := it.SignatureData(segmentID)
	for i, vk := range keys {
		if !crypto.VerifySignature(vk, data, it.Signatures[i]) {
			return false
		}
	}
	return true
}

// unshieldedOffers is a small indirection returning the intent's guaranteed
// and fallible unshielded offers, to keep apply.go's pipeline readable.
func (it *Intent) unshieldedOffers() (guaranteed, fallible *utxo.Offer) {
	return it.GuaranteedUnshieldedOffer, it.FallibleUnshieldedOffer
}
