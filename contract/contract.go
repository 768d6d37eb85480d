// Package contract implements per-address contract state and the deploy /
// call / maintenance-update action semantics (spec §3.4, §4.9). The
// maintenance-authority threshold check follows the teacher's multisig
// committee pattern in
// orbas1-Synnergy/synnergy-network/core/compliance_management.go
// (threshold-of-committee signer verification), generalized from a fixed
// quorum to an arbitrary (committee, threshold, counter) tuple.
package contract

import (
	"errors"
	"reflect"
	"sort"

	"shielded-ledger/crypto"
	"shielded-ledger/statevalue"
	"shielded-ledger/value"
	"shielded-ledger/vm"
)

// OperationName names one of a contract's callable entry points.
type OperationName string

// MaintenanceAuthority gates who may alter a contract's operation table.
type MaintenanceAuthority struct {
	Committee []crypto.VerifyingKey
	Threshold uint32
	Counter   uint64
}

// State is ContractState (spec §3.4): storage tree, operation table,
// maintenance authority, and per-token balances.
type State struct {
	Data                 *statevalue.ChargedState
	Operations           map[OperationName]value.Signature // verifier key bytes
	MaintenanceAuthority  MaintenanceAuthority
	Balance              map[value.TokenType]value.Uint128
}

// NewState returns an empty contract record over an empty storage tree.
func NewState(authority MaintenanceAuthority) *State {
	return &State{
		Data:                 statevalue.NewChargedState(statevalue.NewNull()),
		Operations:           map[OperationName]value.Signature{},
		MaintenanceAuthority: authority,
		Balance:              map[value.TokenType]value.Uint128{},
	}
}

func (s *State) clone() *State {
	out := &State{
		Data: statevalue.NewChargedState(s.Data.Value),
		Operations: make(map[OperationName]value.Signature, len(s.Operations)),
		MaintenanceAuthority: MaintenanceAuthority{
			Committee: append([]crypto.VerifyingKey{}, s.MaintenanceAuthority.Committee...),
			Threshold: s.MaintenanceAuthority.Threshold,
			Counter:   s.MaintenanceAuthority.Counter,
		},
		Balance: make(map[value.TokenType]value.Uint128, len(s.Balance)),
	}
	for k, v := range s.Operations {
		out.Operations[k] = v
	}
	for k, v := range s.Balance {
		out.Balance[k] = v
	}
	return out
}

// Registry is LedgerState.contracts: a map from contract address to its
// state.
type Registry struct {
	contracts map[value.Address]*State
}

func NewRegistry() *Registry { return &Registry{contracts: map[value.Address]*State{}} }

func (r *Registry) clone() *Registry {
	out := &Registry{contracts: make(map[value.Address]*State, len(r.contracts))}
	for k, v := range r.contracts {
		out.contracts[k] = v.clone()
	}
	return out
}

func (r *Registry) Get(addr value.Address) (*State, bool) {
	s, ok := r.contracts[addr]
	return s, ok
}

var (
	ErrAlreadyExists    = errors.New("contract: address already exists")
	ErrNotFound         = errors.New("contract: address not found")
	ErrUnknownOperation = errors.New("contract: unknown operation")
	ErrProofInvalid     = errors.New("contract: call proof verification failed")
	ErrCounterMismatch  = errors.New("contract: maintenance op counter mismatch")
	ErrThreshold        = errors.New("contract: insufficient maintenance signatures")
	ErrEffectMismatch   = errors.New("contract: declared effects do not match emitted effects")
)

// Deploy inserts a new contract keyed by a deterministic address: the hash
// of randomness alone. The content of initial does not enter the address, so
// two deployments with the same randomness collide whatever their initial
// states. Fails if the address already exists.
func Deploy(r *Registry, initial *State, randomness [32]byte) (*Registry, value.Address, error) {
	digest := crypto.HashBytes(randomness[:])
	var addr value.Address
	copy(addr[:], digest[:])
	if _, exists := r.contracts[addr]; exists {
		return nil, value.Address{}, ErrAlreadyExists
	}
	next := r.clone()
	next.contracts[addr] = initial.clone()
	return next, addr, nil
}

// CallPrototype is the caller-supplied description of a contract call
// (spec §4.9, ContractCallPrototype): which operation, which segment-
// partitioned transcripts to run, and the effects the prover claims the
// circuit will produce.
type CallPrototype struct {
	Address          value.Address
	Operation        OperationName
	ProofOk          bool // verification result of the accompanying ZK proof
	GuaranteedOps    []vm.TaggedOp
	FallibleOps      []vm.TaggedOp
	DeclaredEffects  vm.Effects
	GasLimit         vm.GasCost
}

// Call executes a contract call (spec §4.9): verifies the operation exists
// and the proof is valid, runs guaranteed and fallible transcripts against
// the contract's current storage, checks the emitted effects unify with the
// declared ones, and commits the resulting storage tree.
func Call(r *Registry, p CallPrototype, cm vm.CostModel) (*Registry, vm.Effects, error) {
	st, ok := r.Get(p.Address)
	if !ok {
		return nil, vm.Effects{}, ErrNotFound
	}
	if _, ok := st.Operations[p.Operation]; !ok {
		return nil, vm.Effects{}, ErrUnknownOperation
	}
	if !p.ProofOk {
		return nil, vm.Effects{}, ErrProofInvalid
	}

	guaranteed, fallible := vm.PartitionTranscripts(append(p.GuaranteedOps, p.FallibleOps...), cm, p.DeclaredEffects)

	qc := vm.NewQueryContext(statevalue.NewChargedState(st.Data.Value))
	qc, err := qc.RunTranscript(guaranteed, cm)
	if err != nil {
		return nil, vm.Effects{}, err
	}
	qc, err = qc.RunTranscript(fallible, cm)
	if err != nil {
		return nil, vm.Effects{}, err
	}

	emitted := vm.NewEffects().Merge(guaranteed.Effects).Merge(fallible.Effects)
	if !effectsUnify(emitted, p.DeclaredEffects) {
		return nil, vm.Effects{}, ErrEffectMismatch
	}

	next := r.clone()
	nst := next.contracts[p.Address]
	nst.Data = qc.Root
	return next, emitted, nil
}

// effectsUnify checks that every field of emitted matches what was declared
// (nullifiers claimed, outputs produced, unshielded balances moved). In Call,
// emitted is the declared effect set as split by PartitionTranscripts and
// merged back; the VM does not derive effects from executing the transcript
// programs, so this check does not compare the declaration with what the
// programs did.
func effectsUnify(emitted, declared vm.Effects) bool {
	return byteSetsEqual(emitted.ClaimedNullifiers, declared.ClaimedNullifiers) &&
		byteSetsEqual(emitted.ClaimedShieldedSpends, declared.ClaimedShieldedSpends) &&
		byteSetsEqual(emitted.ClaimedShieldedReceives, declared.ClaimedShieldedReceives) &&
		callRefSetsEqual(emitted.ClaimedContractCalls, declared.ClaimedContractCalls) &&
		u128MapsEqual(emitted.ShieldedMints, declared.ShieldedMints) &&
		u128MapsEqual(emitted.UnshieldedMints, declared.UnshieldedMints) &&
		u128MapsEqual(emitted.UnshieldedInputs, declared.UnshieldedInputs) &&
		u128MapsEqual(emitted.UnshieldedOutputs, declared.UnshieldedOutputs) &&
		unshieldedSpendsEqual(emitted.ClaimedUnshieldedSpends, declared.ClaimedUnshieldedSpends)
}

func byteSetsEqual(a, b [][]byte) bool {
	count := func(s [][]byte) map[string]int {
		m := make(map[string]int, len(s))
		for _, e := range s {
			m[string(e)]++
		}
		return m
	}
	return reflect.DeepEqual(count(a), count(b))
}

func callRefSetsEqual(a, b []vm.ContractCallRef) bool {
	count := func(s []vm.ContractCallRef) map[vm.ContractCallRef]int {
		m := make(map[vm.ContractCallRef]int, len(s))
		for _, e := range s {
			m[e]++
		}
		return m
	}
	return reflect.DeepEqual(count(a), count(b))
}

func u128MapsEqual(a, b map[value.TokenType]value.Uint128) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || av != bv {
			return false
		}
	}
	return true
}

func unshieldedSpendsEqual(a, b map[vm.TokenAddrKey]value.Uint128) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || av != bv {
			return false
		}
	}
	return true
}

// MaintenanceOp is one ordered operation in a maintenance update (spec
// §4.9).
type MaintenanceOp struct {
	InsertOperation *struct {
		Name OperationName
		Key  value.Signature
	}
	RemoveOperation *OperationName
	ReplaceAuthority *MaintenanceAuthority
	Counter          uint64
}

// ApplyMaintenance applies an ordered list of maintenance operations,
// checking each op's counter against the authority's current counter before
// advancing it, and verifying threshold signatures over the op batch.
func ApplyMaintenance(r *Registry, addr value.Address, ops []MaintenanceOp, sigs []value.Signature, data []byte) (*Registry, error) {
	st, ok := r.Get(addr)
	if !ok {
		return nil, ErrNotFound
	}
	if !verifyThreshold(st.MaintenanceAuthority, sigs, data) {
		return nil, ErrThreshold
	}

	next := r.clone()
	nst := next.contracts[addr]
	for _, op := range ops {
		if op.Counter != nst.MaintenanceAuthority.Counter {
			return nil, ErrCounterMismatch
		}
		switch {
		case op.InsertOperation != nil:
			nst.Operations[op.InsertOperation.Name] = op.InsertOperation.Key
		case op.RemoveOperation != nil:
			delete(nst.Operations, *op.RemoveOperation)
		case op.ReplaceAuthority != nil:
			nst.MaintenanceAuthority = *op.ReplaceAuthority
			continue // a fresh authority's counter replaces, rather than increments
		}
		nst.MaintenanceAuthority.Counter++
	}
	return next, nil
}

func verifyThreshold(auth MaintenanceAuthority, sigs []value.Signature, data []byte) bool {
	if len(sigs) == 0 {
		return auth.Threshold == 0
	}
	valid := 0
	used := map[int]bool{}
	for _, sig := range sigs {
		for i, vk := range auth.Committee {
			if used[i] {
				continue
			}
			if crypto.VerifySignature(vk, data, sig) {
				used[i] = true
				valid++
				break
			}
		}
	}
	return uint32(valid) >= auth.Threshold
}

// sortedOperationNames returns a contract's operation names in deterministic
// (lexicographic) order. Nothing in the module calls it.
func sortedOperationNames(ops map[OperationName]value.Signature) []OperationName {
	out := make([]OperationName, 0, len(ops))
	for k := range ops {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
