package vm

import "shielded-ledger/value"

// TokenAddrKey is the (TokenType, PublicAddress) pairing used to key claimed
// unshielded spend effects.
type TokenAddrKey struct {
	Token value.TokenType
	Addr  value.Address
}

// Effects records the side-effects a transcript declares; the apply pipeline
// cross-checks these against what the larger transaction actually realizes
// (spec §4.3).
type Effects struct {
	ClaimedNullifiers       [][]byte
	ClaimedShieldedSpends   [][]byte
	ClaimedShieldedReceives [][]byte
	ClaimedContractCalls    []ContractCallRef

	ShieldedMints     map[value.TokenType]value.Uint128
	UnshieldedMints   map[value.TokenType]value.Uint128
	UnshieldedInputs  map[value.TokenType]value.Uint128
	UnshieldedOutputs map[value.TokenType]value.Uint128

	ClaimedUnshieldedSpends map[TokenAddrKey]value.Uint128
}

// ContractCallRef identifies a claimed inter-contract call by callee address
// and the sequence number of the call within the calling transcript.
type ContractCallRef struct {
	Address value.Address
	Seq     uint64
}

// NewEffects returns a zero-valued, fully-initialized Effects.
func NewEffects() Effects {
	return Effects{
		ShieldedMints:           map[value.TokenType]value.Uint128{},
		UnshieldedMints:         map[value.TokenType]value.Uint128{},
		UnshieldedInputs:        map[value.TokenType]value.Uint128{},
		UnshieldedOutputs:       map[value.TokenType]value.Uint128{},
		ClaimedUnshieldedSpends: map[TokenAddrKey]value.Uint128{},
	}
}

// Merge combines two Effects, used when reassembling partitioned transcripts
// (spec §4.3 "reassembled, produces the same final state").
func (e Effects) Merge(o Effects) Effects {
	out := NewEffects()
	out.ClaimedNullifiers = append(append(out.ClaimedNullifiers, e.ClaimedNullifiers...), o.ClaimedNullifiers...)
	out.ClaimedShieldedSpends = append(append(out.ClaimedShieldedSpends, e.ClaimedShieldedSpends...), o.ClaimedShieldedSpends...)
	out.ClaimedShieldedReceives = append(append(out.ClaimedShieldedReceives, e.ClaimedShieldedReceives...), o.ClaimedShieldedReceives...)
	out.ClaimedContractCalls = append(append(out.ClaimedContractCalls, e.ClaimedContractCalls...), o.ClaimedContractCalls...)
	for _, m := range []map[value.TokenType]value.Uint128{e.ShieldedMints, o.ShieldedMints} {
		for k, v := range m {
			out.ShieldedMints[k] = addU128(out.ShieldedMints[k], v)
		}
	}
	for _, m := range []map[value.TokenType]value.Uint128{e.UnshieldedMints, o.UnshieldedMints} {
		for k, v := range m {
			out.UnshieldedMints[k] = addU128(out.UnshieldedMints[k], v)
		}
	}
	for _, m := range []map[value.TokenType]value.Uint128{e.UnshieldedInputs, o.UnshieldedInputs} {
		for k, v := range m {
			out.UnshieldedInputs[k] = addU128(out.UnshieldedInputs[k], v)
		}
	}
	for _, m := range []map[value.TokenType]value.Uint128{e.UnshieldedOutputs, o.UnshieldedOutputs} {
		for k, v := range m {
			out.UnshieldedOutputs[k] = addU128(out.UnshieldedOutputs[k], v)
		}
	}
	for _, m := range []map[TokenAddrKey]value.Uint128{e.ClaimedUnshieldedSpends, o.ClaimedUnshieldedSpends} {
		for k, v := range m {
			out.ClaimedUnshieldedSpends[k] = addU128(out.ClaimedUnshieldedSpends[k], v)
		}
	}
	return out
}

func addU128(a, b value.Uint128) value.Uint128 {
	av, _ := a.Uint64()
	bv, _ := b.Uint64()
	return value.Uint128FromUint64(av + bv)
}

// touchesOnlyGuaranteed reports whether this effect set only touches
// "guaranteed" bookkeeping (nullifiers/contract calls/shielded spend-receive)
// with no shielded mint or unshielded movement. PartitionTranscripts does not
// call it; it routes effect fields through splitEffects.
func (e Effects) touchesOnlyGuaranteed() bool {
	return len(e.ShieldedMints) == 0 && len(e.UnshieldedMints) == 0 &&
		len(e.UnshieldedInputs) == 0 && len(e.UnshieldedOutputs) == 0 &&
		len(e.ClaimedUnshieldedSpends) == 0
}
