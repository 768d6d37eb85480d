// Package utxo implements the unshielded UTXO set (spec §3.3, §4.5),
// generalizing the teacher's flat `map[string]UTXO` keyed by
// "txid:index" (orbas1-Synnergy/synnergy-network/core/ledger.go, the
// applyBlock UTXO-update block) into the 5-tuple identity
// (value, owner, type, intentHash, outputNo) the spec requires, with
// signature-covered inputs instead of bare references.
package utxo

import (
	"errors"
	"sort"

	"shielded-ledger/crypto"
	"shielded-ledger/value"
)

// Utxo identifies an unshielded output by its full 5-tuple (spec §3.3).
type Utxo struct {
	Value      value.Uint128
	Owner      [32]byte // hash(VerifyingKey)
	Type       value.TokenType
	IntentHash [32]byte
	OutputNo   uint32
}

// Meta carries the UTXO's creation time.
type Meta struct {
	Ctime int64
}

// State is the UtxoState: utxos -> meta.
type State struct {
	utxos map[Utxo]Meta
}

func New() *State { return &State{utxos: map[Utxo]Meta{}} }

func (s *State) clone() *State {
	out := &State{utxos: make(map[Utxo]Meta, len(s.utxos))}
	for k, v := range s.utxos {
		out.utxos[k] = v
	}
	return out
}

// Spend references an existing Utxo by the fields needed to re-derive its
// owner hash from a verifying key, i.e. the input side of an offer.
type Spend struct {
	Utxo      Utxo
	OwnerKey  crypto.VerifyingKey
}

// OutputSpec is one requested output of an offer, prior to intentHash/
// outputNo assignment.
type OutputSpec struct {
	Value value.Uint128
	Owner [32]byte
	Type  value.TokenType
}

var (
	ErrInputMissing     = errors.New("utxo: input utxo not found")
	ErrDuplicateInput   = errors.New("utxo: duplicate input in offer")
	ErrSignatureCount   = errors.New("utxo: signature count does not match input count")
)

// Offer mirrors UnshieldedOffer<S> (spec §4.5): canonically sorted inputs and
// outputs, one signature per input.
type Offer struct {
	Inputs     []Spend
	Outputs    []OutputSpec
	Signatures []value.Signature
}

// Balance returns the net per-token delta (inputs minus outputs); negative
// means the offer's outputs exceed its inputs for that token.
func (o Offer) Balance() map[value.TokenType]int64 {
	bal := map[value.TokenType]int64{}
	for _, in := range o.Inputs {
		v, _ := in.Utxo.Value.Uint64()
		bal[in.Utxo.Type] += int64(v)
	}
	for _, out := range o.Outputs {
		v, _ := out.Value.Uint64()
		bal[out.Type] -= int64(v)
	}
	return bal
}

// sortedOutputs returns outputs in canonical order (by owner, then type,
// then value), which fixes each output's outputNo.
func sortedOutputs(outs []OutputSpec) []OutputSpec {
	out := append([]OutputSpec{}, outs...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Owner != out[j].Owner {
			return lessBytes(out[i].Owner[:], out[j].Owner[:])
		}
		if out[i].Type != out[j].Type {
			return lessBytes(out[i].Type[:], out[j].Type[:])
		}
		vi, _ := out[i].Value.Uint64()
		vj, _ := out[j].Value.Uint64()
		return vi < vj
	})
	return out
}

func lessBytes(a, b []byte) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

// Apply applies an offer for the given (segment, erasedIntent) pair against
// the state (spec §4.5). All inputs must exist and are removed; each output
// is synthesized into a new Utxo whose IntentHash = hash(segment,
// erasedIntent) and whose OutputNo is its position in the canonically sorted
// outputs list. Apply checks only that there is one signature per input; it
// does not verify the signatures, nor that an input's OwnerKey hashes to its
// Owner.
func Apply(s *State, segment uint16, erasedIntent []byte, offer Offer, tnow int64) (*State, error) {
	if len(offer.Signatures) != len(offer.Inputs) {
		return nil, ErrSignatureCount
	}
	seen := map[Utxo]bool{}
	for _, in := range offer.Inputs {
		if seen[in.Utxo] {
			return nil, ErrDuplicateInput
		}
		seen[in.Utxo] = true
		if _, ok := s.utxos[in.Utxo]; !ok {
			return nil, ErrInputMissing
		}
	}

	next := s.clone()
	for _, in := range offer.Inputs {
		delete(next.utxos, in.Utxo)
	}

	intentHash := crypto.HashBytes(segmentBytes(segment), erasedIntent)
	for i, out := range sortedOutputs(offer.Outputs) {
		u := Utxo{
			Value:      out.Value,
			Owner:      out.Owner,
			Type:       out.Type,
			IntentHash: intentHash,
			OutputNo:   uint32(i),
		}
		next.utxos[u] = Meta{Ctime: tnow}
	}
	return next, nil
}

func segmentBytes(segment uint16) []byte {
	return []byte{byte(segment >> 8), byte(segment)}
}

// Filter returns UTXOs owned by address.
func (s *State) Filter(owner [32]byte) []Utxo {
	var out []Utxo
	for u := range s.utxos {
		if u.Owner == owner {
			out = append(out, u)
		}
	}
	return out
}

// Has reports whether a UTXO is present.
func (s *State) Has(u Utxo) bool { _, ok := s.utxos[u]; return ok }

// MetaOf returns the metadata for a present UTXO.
func (s *State) MetaOf(u Utxo) (Meta, bool) { m, ok := s.utxos[u]; return m, ok }

// Delta returns the symmetric difference between s and other, optionally
// filtered by predicate (spec §4.5 UtxoState.delta).
func Delta(s, other *State, predicate func(Utxo) bool) (added, removed []Utxo) {
	for u := range other.utxos {
		if _, ok := s.utxos[u]; !ok {
			if predicate == nil || predicate(u) {
				added = append(added, u)
			}
		}
	}
	for u := range s.utxos {
		if _, ok := other.utxos[u]; !ok {
			if predicate == nil || predicate(u) {
				removed = append(removed, u)
			}
		}
	}
	return added, removed
}
