package zswap

import (
	"testing"

	"shielded-ledger/merkle"
)

func commitment(b byte) [32]byte {
	var c [32]byte
	c[0] = b
	return c
}

func TestApply_InsertsOutputsAndAdvancesRoot(t *testing.T) {
	s := New()
	rootBefore, _ := s.Tree.Root()

	next, positions, err := Apply(s, Offer{Outputs: []Output{{Commitment: commitment(1)}}}, nil)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if positions[commitment(1)] != 0 {
		t.Fatalf("first output should land at index 0, got %d", positions[commitment(1)])
	}
	rootAfter, ok := next.Tree.Root()
	if !ok {
		t.Fatalf("Root() should be available after Apply rehashes")
	}
	if rootBefore == rootAfter {
		t.Fatalf("root must change after inserting a commitment")
	}
	if next.FirstFree != 1 {
		t.Fatalf("FirstFree = %d, want 1", next.FirstFree)
	}
}

func TestApply_RejectsDuplicateCommitment(t *testing.T) {
	s := New()
	s, _, err := Apply(s, Offer{Outputs: []Output{{Commitment: commitment(1)}}}, nil)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if _, _, err := Apply(s, Offer{Outputs: []Output{{Commitment: commitment(1)}}}, nil); err != ErrCommitmentExists {
		t.Fatalf("duplicate commitment = %v, want %v", err, ErrCommitmentExists)
	}
}

func TestApply_RejectsUnrecognizedRoot(t *testing.T) {
	s := New()
	var bogusRoot, nullifier [32]byte
	bogusRoot[0] = 0xFF
	if _, _, err := Apply(s, Offer{Inputs: []Input{{Root: bogusRoot, Nullifier: nullifier}}}, nil); err != ErrRootNotRecognized {
		t.Fatalf("unrecognized root = %v, want %v", err, ErrRootNotRecognized)
	}
}

func TestApply_RejectsDoubleSpentNullifier(t *testing.T) {
	s := New()
	s, _, err := Apply(s, Offer{Outputs: []Output{{Commitment: commitment(1)}}}, nil)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	root, _ := s.Tree.Root()
	var nullifier [32]byte
	nullifier[0] = 0x01

	s, _, err = Apply(s, Offer{Inputs: []Input{{Root: root, Nullifier: nullifier}}}, nil)
	if err != nil {
		t.Fatalf("Apply spend: %v", err)
	}
	root2, _ := s.Tree.Root()
	if _, _, err := Apply(s, Offer{Inputs: []Input{{Root: root2, Nullifier: nullifier}}}, nil); err != ErrNullifierSpent {
		t.Fatalf("double spend = %v, want %v", err, ErrNullifierSpent)
	}
}

func TestApply_DoesNotMutateInputState(t *testing.T) {
	s := New()
	rootBefore, _ := s.Tree.Root()
	if _, _, err := Apply(s, Offer{Outputs: []Output{{Commitment: commitment(1)}}}, nil); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	rootStill, _ := s.Tree.Root()
	if rootBefore != rootStill {
		t.Fatalf("Apply must not mutate its input state in place")
	}
}

func TestPostBlockUpdate_CollapsesOldRanges(t *testing.T) {
	s := New()
	s.maxRoots = 2
	for i := byte(0); i < 5; i++ {
		var err error
		s, _, err = Apply(s, Offer{Outputs: []Output{{Commitment: commitment(i + 1)}}}, nil)
		if err != nil {
			t.Fatalf("Apply: %v", err)
		}
	}
	next := s.PostBlockUpdate(0)
	if next.FirstFree != s.FirstFree {
		t.Fatalf("PostBlockUpdate should not change FirstFree")
	}
	// FirstFree=5, maxRoots=2: indices 0..2 are collapsed.
	if err := next.Tree.Update(2, commitment(9)); err != merkle.ErrCollapseBounds {
		t.Fatalf("update inside collapsed range = %v, want %v", err, merkle.ErrCollapseBounds)
	}
}
