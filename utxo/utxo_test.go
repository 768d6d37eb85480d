package utxo

import (
	"testing"

	"shielded-ledger/value"
)

func owner(b byte) [32]byte {
	var o [32]byte
	o[0] = b
	return o
}

func TestApply_ProducesOutputsInCanonicalOrder(t *testing.T) {
	s := New()
	tok := value.UnshieldedToken([34]byte{1})
	offer := Offer{
		Outputs: []OutputSpec{
			{Value: value.Uint128FromUint64(5), Owner: owner(2), Type: tok},
			{Value: value.Uint128FromUint64(1), Owner: owner(1), Type: tok},
		},
	}
	next, err := Apply(s, 0, []byte("intent"), offer, 100)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	for _, u := range next.Filter(owner(1)) {
		if u.OutputNo != 0 {
			t.Fatalf("owner(1)'s output should sort first (OutputNo 0), got %d", u.OutputNo)
		}
	}
	for _, u := range next.Filter(owner(2)) {
		if u.OutputNo != 1 {
			t.Fatalf("owner(2)'s output should sort second (OutputNo 1), got %d", u.OutputNo)
		}
	}
}

func TestApply_RejectsSignatureCountMismatch(t *testing.T) {
	s := New()
	offer := Offer{Inputs: []Spend{{Utxo: Utxo{}}}, Signatures: nil}
	if _, err := Apply(s, 0, nil, offer, 0); err != ErrSignatureCount {
		t.Fatalf("Apply = %v, want %v", err, ErrSignatureCount)
	}
}

func TestApply_RejectsMissingInput(t *testing.T) {
	s := New()
	u := Utxo{Value: value.Uint128FromUint64(1), Owner: owner(1)}
	offer := Offer{Inputs: []Spend{{Utxo: u}}, Signatures: []value.Signature{{}}}
	if _, err := Apply(s, 0, nil, offer, 0); err != ErrInputMissing {
		t.Fatalf("Apply = %v, want %v", err, ErrInputMissing)
	}
}

func TestApply_RejectsDuplicateInputInSameOffer(t *testing.T) {
	s := New()
	tok := value.UnshieldedToken([34]byte{1})
	seed, err := Apply(New(), 0, []byte("seed"), Offer{
		Outputs: []OutputSpec{{Value: value.Uint128FromUint64(5), Owner: owner(1), Type: tok}},
	}, 0)
	if err != nil {
		t.Fatalf("seed Apply: %v", err)
	}
	_ = s
	var u Utxo
	for existing := range seed.utxos {
		u = existing
	}
	offer := Offer{
		Inputs:     []Spend{{Utxo: u}, {Utxo: u}},
		Signatures: []value.Signature{{}, {}},
	}
	if _, err := Apply(seed, 0, nil, offer, 0); err != ErrDuplicateInput {
		t.Fatalf("Apply = %v, want %v", err, ErrDuplicateInput)
	}
}

func TestOfferBalance_InputsMinusOutputs(t *testing.T) {
	tok := value.UnshieldedToken([34]byte{1})
	offer := Offer{
		Inputs:  []Spend{{Utxo: Utxo{Value: value.Uint128FromUint64(10), Type: tok}}},
		Outputs: []OutputSpec{{Value: value.Uint128FromUint64(4), Type: tok}},
	}
	bal := offer.Balance()
	if bal[tok] != 6 {
		t.Fatalf("Balance()[tok] = %d, want 6", bal[tok])
	}
}

func TestDelta_SymmetricDifference(t *testing.T) {
	tok := value.UnshieldedToken([34]byte{1})
	base := New()
	withA, err := Apply(base, 0, []byte("a"), Offer{
		Outputs: []OutputSpec{{Value: value.Uint128FromUint64(1), Owner: owner(1), Type: tok}},
	}, 0)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	added, removed := Delta(base, withA, nil)
	if len(added) != 1 || len(removed) != 0 {
		t.Fatalf("Delta(base, withA) = added %d removed %d, want 1, 0", len(added), len(removed))
	}

	added2, removed2 := Delta(withA, base, nil)
	if len(added2) != 0 || len(removed2) != 1 {
		t.Fatalf("Delta(withA, base) = added %d removed %d, want 0, 1", len(added2), len(removed2))
	}
}
