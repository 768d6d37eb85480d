package vm

import (
	"testing"

	"shielded-ledger/value"
)

func TestEffects_MergeSumsBalancesAndConcatenatesClaims(t *testing.T) {
	tok := value.ShieldedToken([34]byte{7})

	a := NewEffects()
	a.ClaimedNullifiers = [][]byte{{1}}
	a.ShieldedMints[tok] = value.Uint128FromUint64(3)

	b := NewEffects()
	b.ClaimedNullifiers = [][]byte{{2}}
	b.ShieldedMints[tok] = value.Uint128FromUint64(4)

	merged := a.Merge(b)

	if len(merged.ClaimedNullifiers) != 2 {
		t.Fatalf("expected claims to concatenate, got %v", merged.ClaimedNullifiers)
	}
	got, ok := merged.ShieldedMints[tok].Uint64()
	if !ok || got != 7 {
		t.Fatalf("expected merged mint balance 7, got %d (ok=%v)", got, ok)
	}
}

func TestEffects_TouchesOnlyGuaranteed(t *testing.T) {
	e := NewEffects()
	e.ClaimedNullifiers = [][]byte{{1}}
	if !e.touchesOnlyGuaranteed() {
		t.Fatalf("an effect set with only claimed nullifiers should be guaranteed-only")
	}
	e.ShieldedMints[value.ShieldedToken([34]byte{1})] = value.Uint128FromUint64(1)
	if e.touchesOnlyGuaranteed() {
		t.Fatalf("a shielded mint must mark the effect set as not guaranteed-only")
	}
}
