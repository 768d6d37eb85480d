package ledger

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"shielded-ledger/contract"
	"shielded-ledger/utxo"
	"shielded-ledger/value"
	"shielded-ledger/vm"
	"shielded-ledger/zswap"
)

// ReservePool is the genesis reserve balance (spec §6.5).
const ReservePool uint64 = 24_000_000_000_000_000

var logger = log.WithField("component", "ledger")

// DustState is the ledger-side record of dust activity: which dust
// nullifiers have been spent (for replay protection of fee payments) and
// which NightKey->DustAddress registrations are active. The per-wallet
// accrual curve itself lives in the dust package's LocalState; this is the
// chain's authoritative view.
type DustState struct {
	SpentNullifiers map[[32]byte]bool
	Registrations   map[[33]byte]value.Address // compressed secp256k1 pubkey -> dust address
}

func newDustState() *DustState {
	return &DustState{SpentNullifiers: map[[32]byte]bool{}, Registrations: map[[33]byte]value.Address{}}
}

func (d *DustState) clone() *DustState {
	out := newDustState()
	for k, v := range d.SpentNullifiers {
		out.SpentNullifiers[k] = v
	}
	for k, v := range d.Registrations {
		out.Registrations[k] = v
	}
	return out
}

// replayEntry records the TTL an intent hash was sealed under, so
// postBlockUpdate can prune it once no longer reachable.
type replayEntry struct {
	ttl int64
}

// State is LedgerState (spec §6.5).
type State struct {
	NetworkID       string
	Zswap           *zswap.State
	Utxo            *utxo.State
	Dust            *DustState
	Contracts       *contract.Registry
	BlockRewardPool value.Uint128
	ReservePool     value.Uint128
	replaySet       map[[32]byte]replayEntry
}

// Blank returns the genesis ledger state for networkID (spec §6.5).
func Blank(networkID string) *State {
	return &State{
		NetworkID:       networkID,
		Zswap:           zswap.New(),
		Utxo:            utxo.New(),
		Dust:            newDustState(),
		Contracts:       contract.NewRegistry(),
		BlockRewardPool: value.Uint128{},
		ReservePool:     value.Uint128FromUint64(ReservePool),
		replaySet:       map[[32]byte]replayEntry{},
	}
}

func (s *State) clone() *State {
	return &State{
		NetworkID:       s.NetworkID,
		Zswap:           s.Zswap,
		Utxo:            s.Utxo,
		Dust:            s.Dust,
		Contracts:       s.Contracts,
		BlockRewardPool: s.BlockRewardPool,
		ReservePool:     s.ReservePool,
		replaySet:       s.replaySet,
	}
}

// BlockContext supplies the single source of time apply consults (spec §5:
// "No ambient clock is consulted").
type BlockContext struct {
	SecondsSinceEpoch int64
}

// WellFormedStrictness toggles the five independent structural/crypto/
// resource checks wellFormed performs (spec §4.8).
type WellFormedStrictness struct {
	VerifySignatures      bool
	VerifyNativeProofs    bool
	VerifyContractProofs  bool
	EnforceBalancing      bool
	EnforceLimits         bool
}

// FullStrictness enables every check; used by production block validation.
func FullStrictness() WellFormedStrictness {
	return WellFormedStrictness{true, true, true, true, true}
}

// VerifiedTransaction is the output of WellFormed: a transaction that has
// passed every enabled structural check and is now eligible for Apply.
type VerifiedTransaction struct {
	Tx *Transaction
}

const (
	maxBlockGas   = 50_000_000
	maxBlockBytes = 2_000_000
)

// WellFormed validates tx against the ledger state and strictness flags
// (spec §4.8 step 1). It raises (returns a non-nil error) for any violated
// class; it is the caller's job to have already chosen which classes matter.
func WellFormed(state *State, tx *Transaction, strictness WellFormedStrictness, params Parameters, ctx BlockContext) (*VerifiedTransaction, error) {
	if tx.NetworkID != state.NetworkID {
		return nil, fmt.Errorf("ledger: network id mismatch: tx=%q state=%q", tx.NetworkID, state.NetworkID)
	}

	var totalGas uint64
	var totalBytes int

	for _, it := range tx.Intents {
		if strictness.VerifySignatures && it.SignaturePhase == SignatureErased {
			return nil, errors.New("ledger: signature-erased intent cannot be well-formed under verifySignatures")
		}
		for _, a := range it.Actions {
			if a.Kind != ActionCall || a.Call == nil {
				continue
			}
			if strictness.VerifyContractProofs && !a.Call.ProofOk {
				return nil, errors.New("ledger: contract call proof verification failed")
			}
			full := append(append(vm.Program{}, opsOf(a.Call.GuaranteedOps)...), opsOf(a.Call.FallibleOps)...)
			if !full.IsResultAnnotated() {
				return nil, errors.New("ledger: transcript is not result-annotated")
			}
			limit := a.Call.GasLimit
			totalGas += limit.ReadTime + limit.ComputeTime + limit.BytesWritten + limit.BytesDeleted
		}
		totalBytes += len(it.canonicalBytes())
	}

	if strictness.EnforceLimits {
		if totalGas > maxBlockGas {
			return nil, errors.New("ledger: transaction exceeds per-block gas limit")
		}
		if totalBytes > maxBlockBytes {
			return nil, errors.New("ledger: transaction exceeds per-block byte limit")
		}
	}

	if strictness.EnforceBalancing {
		for seg := range allSegments(tx) {
			for tok, imb := range tx.Imbalances(seg, nil) {
				if imb > 0 {
					return nil, fmt.Errorf("ledger: unbalanced segment %d for token %x", seg, tok)
				}
			}
		}
	}

	logger.WithFields(log.Fields{"network": tx.NetworkID, "intents": len(tx.Intents)}).Debug("transaction passed wellFormed checks")
	return &VerifiedTransaction{Tx: tx}, nil
}

func opsOf(tagged []vm.TaggedOp) vm.Program {
	out := make(vm.Program, len(tagged))
	for i, t := range tagged {
		out[i] = t.Op
	}
	return out
}

func allSegments(tx *Transaction) map[uint16]bool {
	out := map[uint16]bool{0: true}
	for seg := range tx.FallibleOffers {
		out[seg] = true
	}
	for seg := range tx.Intents {
		out[seg] = true
	}
	return out
}
