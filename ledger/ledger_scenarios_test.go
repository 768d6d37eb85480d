package ledger

import (
	"testing"

	"shielded-ledger/contract"
	"shielded-ledger/crypto"
	"shielded-ledger/value"
	"shielded-ledger/vm"
	"shielded-ledger/zswap"
)

// TestScenario_DeployThenCall is scenario S1: a single transaction deploys a
// contract and, in the same intent, calls one of its declared operations.
func TestScenario_DeployThenCall(t *testing.T) {
	state := Blank("test-net")
	params := freshParams()

	var randomness [32]byte
	randomness[0] = 0x7E
	addr := crypto.HashBytes(randomness[:])

	initial := contract.NewState(contract.MaintenanceAuthority{})
	initial.Operations["increment"] = value.Signature{}

	intent := NewIntent(1_000)
	intent = intent.WithAction(ContractAction{
		Kind:             ActionDeploy,
		DeployState:      initial,
		DeployRandomness: randomness,
	})
	intent = intent.WithAction(ContractAction{
		Kind: ActionCall,
		Call: &contract.CallPrototype{
			Address:         value.Address(addr),
			Operation:       "increment",
			ProofOk:         true,
			DeclaredEffects: vm.NewEffects(),
		},
	})

	tx, err := FromParts("test-net", nil, nil, map[uint16]*Intent{0: intent})
	if err != nil {
		t.Fatalf("FromParts: %v", err)
	}
	ctx := BlockContext{SecondsSinceEpoch: 10}
	vtx, err := WellFormed(state, tx, WellFormedStrictness{}, params, ctx)
	if err != nil {
		t.Fatalf("WellFormed: %v", err)
	}

	next, res := Apply(state, vtx, ctx, params)
	if res.Type != ResultSuccess {
		t.Fatalf("apply: got %v, error %q", res.Type, res.Error)
	}
	if _, ok := next.Contracts.Get(value.Address(addr)); !ok {
		t.Fatalf("deployed contract should be present after apply")
	}
}

// TestScenario_ShieldedRoundTrip is scenario S6: a coin minted in one
// transaction's shielded offer is spent in a later transaction against the
// root the first transaction produced.
func TestScenario_ShieldedRoundTrip(t *testing.T) {
	state := Blank("test-net")
	params := freshParams()

	coin := crypto.ShieldedCoin{
		Type:  value.ShieldedToken([34]byte{9}),
		Value: value.Uint128FromUint64(50),
	}
	var recipientKey value.Address
	recipientKey[0] = 0x01
	recipient := crypto.CoinRecipient{IsContract: false, Key: recipientKey}

	commitmentBytes, err := crypto.CoinCommitment(coin, recipient)
	if err != nil {
		t.Fatalf("CoinCommitment: %v", err)
	}
	var commitment [32]byte
	copy(commitment[:], commitmentBytes)

	mintIntent := NewIntent(1_000)
	mintTx, err := FromParts("test-net", &zswap.Offer{Outputs: []zswap.Output{{Commitment: commitment}}}, nil, map[uint16]*Intent{0: mintIntent})
	if err != nil {
		t.Fatalf("FromParts (mint): %v", err)
	}
	ctx := BlockContext{SecondsSinceEpoch: 10}
	mintVtx, err := WellFormed(state, mintTx, WellFormedStrictness{}, params, ctx)
	if err != nil {
		t.Fatalf("WellFormed (mint): %v", err)
	}
	afterMint, res := Apply(state, mintVtx, ctx, params)
	if res.Type != ResultSuccess {
		t.Fatalf("apply (mint): got %v, error %q", res.Type, res.Error)
	}

	root, ok := afterMint.Zswap.Tree.Root()
	if !ok {
		t.Fatalf("root should be available after mint")
	}

	senderEvidence := []byte("spender-evidence")
	nullifierBytes, err := crypto.CoinNullifier(coin, senderEvidence)
	if err != nil {
		t.Fatalf("CoinNullifier: %v", err)
	}
	var nullifier [32]byte
	copy(nullifier[:], nullifierBytes)

	spendIntent := NewIntent(2_000)
	spendTx, err := FromParts("test-net", &zswap.Offer{Inputs: []zswap.Input{{Root: root, Nullifier: nullifier}}}, nil, map[uint16]*Intent{0: spendIntent})
	if err != nil {
		t.Fatalf("FromParts (spend): %v", err)
	}
	spendVtx, err := WellFormed(afterMint, spendTx, WellFormedStrictness{}, params, ctx)
	if err != nil {
		t.Fatalf("WellFormed (spend): %v", err)
	}
	afterSpend, res := Apply(afterMint, spendVtx, ctx, params)
	if res.Type != ResultSuccess {
		t.Fatalf("apply (spend): got %v, error %q", res.Type, res.Error)
	}
	if !afterSpend.Zswap.Nullifiers[nullifier] {
		t.Fatalf("nullifier should be recorded as spent")
	}

	// Spending the same coin a second time against the new root must fail:
	// the nullifier is now in the spent set.
	root2, _ := afterSpend.Zswap.Tree.Root()
	replayIntent := NewIntent(3_000)
	replayTx, err := FromParts("test-net", &zswap.Offer{Inputs: []zswap.Input{{Root: root2, Nullifier: nullifier}}}, nil, map[uint16]*Intent{0: replayIntent})
	if err != nil {
		t.Fatalf("FromParts (replay): %v", err)
	}
	replayVtx, err := WellFormed(afterSpend, replayTx, WellFormedStrictness{}, params, ctx)
	if err != nil {
		t.Fatalf("WellFormed (replay): %v", err)
	}
	if _, res := Apply(afterSpend, replayVtx, ctx, params); res.Type != ResultFailure {
		t.Fatalf("double-spend of the same nullifier should fail, got %v", res.Type)
	}
}
