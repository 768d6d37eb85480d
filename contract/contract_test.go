package contract

import (
	"testing"

	"shielded-ledger/crypto"
	"shielded-ledger/value"
	"shielded-ledger/vm"
)

func newTestRegistry(t *testing.T) (*Registry, value.Address) {
	t.Helper()
	r := NewRegistry()
	st := NewState(MaintenanceAuthority{})
	st.Operations["noop"] = value.Signature{}
	var randomness [32]byte
	randomness[0] = 0x01
	next, addr, err := Deploy(r, st, randomness)
	if err != nil {
		t.Fatalf("Deploy: %v", err)
	}
	return next, addr
}

func TestDeploy_RejectsDuplicateAddress(t *testing.T) {
	r, _ := newTestRegistry(t)
	st := NewState(MaintenanceAuthority{})
	var randomness [32]byte
	randomness[0] = 0x01
	if _, _, err := Deploy(r, st, randomness); err != ErrAlreadyExists {
		t.Fatalf("Deploy duplicate = %v, want %v", err, ErrAlreadyExists)
	}
}

func TestCall_RejectsUnknownOperation(t *testing.T) {
	r, addr := newTestRegistry(t)
	p := CallPrototype{Address: addr, Operation: "missing", ProofOk: true}
	if _, _, err := Call(r, p, vm.InitialCostModel()); err != ErrUnknownOperation {
		t.Fatalf("Call = %v, want %v", err, ErrUnknownOperation)
	}
}

func TestCall_RejectsInvalidProof(t *testing.T) {
	r, addr := newTestRegistry(t)
	p := CallPrototype{Address: addr, Operation: "noop", ProofOk: false}
	if _, _, err := Call(r, p, vm.InitialCostModel()); err != ErrProofInvalid {
		t.Fatalf("Call = %v, want %v", err, ErrProofInvalid)
	}
}

func TestCall_EmptyProgramUnifiesEmptyEffects(t *testing.T) {
	r, addr := newTestRegistry(t)
	p := CallPrototype{
		Address:         addr,
		Operation:       "noop",
		ProofOk:         true,
		DeclaredEffects: vm.NewEffects(),
	}
	_, emitted, err := Call(r, p, vm.InitialCostModel())
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if len(emitted.ClaimedNullifiers) != 0 {
		t.Fatalf("expected no emitted effects from an empty program")
	}
}

// TestEffectsUnify_CatchesEveryField exercises each of the 9 Effects fields
// in turn: a declared effect set that differs from emitted in only that one
// field must be rejected, not just a mismatch on ClaimedNullifiers.
func TestEffectsUnify_CatchesEveryField(t *testing.T) {
	tok := value.ShieldedToken([34]byte{1})
	addrKey := vm.TokenAddrKey{Token: tok}

	base := func() vm.Effects { return vm.NewEffects() }

	cases := []struct {
		name    string
		mutate  func(*vm.Effects)
	}{
		{"nullifiers", func(e *vm.Effects) { e.ClaimedNullifiers = [][]byte{{1}} }},
		{"shielded-spends", func(e *vm.Effects) { e.ClaimedShieldedSpends = [][]byte{{2}} }},
		{"shielded-receives", func(e *vm.Effects) { e.ClaimedShieldedReceives = [][]byte{{3}} }},
		{"contract-calls", func(e *vm.Effects) {
			e.ClaimedContractCalls = []vm.ContractCallRef{{Seq: 1}}
		}},
		{"shielded-mints", func(e *vm.Effects) { e.ShieldedMints[tok] = value.Uint128FromUint64(1) }},
		{"unshielded-mints", func(e *vm.Effects) { e.UnshieldedMints[tok] = value.Uint128FromUint64(1) }},
		{"unshielded-inputs", func(e *vm.Effects) { e.UnshieldedInputs[tok] = value.Uint128FromUint64(1) }},
		{"unshielded-outputs", func(e *vm.Effects) { e.UnshieldedOutputs[tok] = value.Uint128FromUint64(1) }},
		{"unshielded-spends", func(e *vm.Effects) {
			e.ClaimedUnshieldedSpends[addrKey] = value.Uint128FromUint64(1)
		}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			emitted := base()
			declared := base()
			c.mutate(&declared)
			if effectsUnify(emitted, declared) {
				t.Fatalf("effectsUnify should reject a mismatch confined to %s", c.name)
			}
			// a second declared set differing only in the same way as emitted
			// must unify.
			c.mutate(&emitted)
			if !effectsUnify(emitted, declared) {
				t.Fatalf("effectsUnify should accept identical %s", c.name)
			}
		})
	}
}

func TestApplyMaintenance_RejectsCounterMismatch(t *testing.T) {
	r, addr := newTestRegistry(t)
	op := MaintenanceOp{Counter: 5}
	if _, err := ApplyMaintenance(r, addr, []MaintenanceOp{op}, nil, nil); err != ErrCounterMismatch {
		t.Fatalf("ApplyMaintenance = %v, want %v", err, ErrCounterMismatch)
	}
}

func TestApplyMaintenance_ThresholdSignaturesRequired(t *testing.T) {
	sk, err := crypto.GenerateSigningKey()
	if err != nil {
		t.Fatalf("GenerateSigningKey: %v", err)
	}
	vk := crypto.SignatureVerifyingKey(sk)

	r := NewRegistry()
	st := NewState(MaintenanceAuthority{Committee: []crypto.VerifyingKey{vk}, Threshold: 1})
	var randomness [32]byte
	randomness[0] = 0x02
	r, addr, err := Deploy(r, st, randomness)
	if err != nil {
		t.Fatalf("Deploy: %v", err)
	}

	data := []byte("maintenance batch")
	op := MaintenanceOp{Counter: 0}

	if _, err := ApplyMaintenance(r, addr, []MaintenanceOp{op}, nil, data); err != ErrThreshold {
		t.Fatalf("ApplyMaintenance with no sigs = %v, want %v", err, ErrThreshold)
	}

	sig, err := crypto.SignData(sk, data)
	if err != nil {
		t.Fatalf("SignData: %v", err)
	}
	next, err := ApplyMaintenance(r, addr, []MaintenanceOp{op}, []value.Signature{sig}, data)
	if err != nil {
		t.Fatalf("ApplyMaintenance with valid sig: %v", err)
	}
	nst, ok := next.Get(addr)
	if !ok {
		t.Fatalf("contract missing after ApplyMaintenance")
	}
	if nst.MaintenanceAuthority.Counter != 1 {
		t.Fatalf("counter = %d, want 1", nst.MaintenanceAuthority.Counter)
	}
}
