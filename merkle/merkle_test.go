package merkle

import "testing"

func leafOf(b byte) [32]byte {
	var l [32]byte
	l[0] = b
	return l
}

func TestRoot_UnavailableUntilRehash(t *testing.T) {
	tr := New(4)
	if _, ok := tr.Root(); !ok {
		t.Fatalf("an empty tree is not dirty, Root() should be available")
	}
	if err := tr.Update(0, leafOf(1)); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if _, ok := tr.Root(); ok {
		t.Fatalf("Root() should be unavailable after Update before Rehash")
	}
	if err := tr.Rehash(); err != nil {
		t.Fatalf("Rehash: %v", err)
	}
	if _, ok := tr.Root(); !ok {
		t.Fatalf("Root() should be available after Rehash")
	}
}

// TestUpdateRootRehash_InsertOrderIndependent is spec §8 property 8:
// inserting leaves in different orders at the same indices produces the
// same root once rehashed.
func TestUpdateRootRehash_InsertOrderIndependent(t *testing.T) {
	leaves := map[uint64][32]byte{0: leafOf(1), 1: leafOf(2), 2: leafOf(3), 3: leafOf(4)}

	t1 := New(4)
	for _, idx := range []uint64{0, 1, 2, 3} {
		if err := t1.Update(idx, leaves[idx]); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}
	if err := t1.Rehash(); err != nil {
		t.Fatalf("Rehash: %v", err)
	}
	root1, ok := t1.Root()
	if !ok {
		t.Fatalf("Root() not available")
	}

	t2 := New(4)
	for _, idx := range []uint64{3, 1, 2, 0} {
		if err := t2.Update(idx, leaves[idx]); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}
	if err := t2.Rehash(); err != nil {
		t.Fatalf("Rehash: %v", err)
	}
	root2, ok := t2.Root()
	if !ok {
		t.Fatalf("Root() not available")
	}

	if root1 != root2 {
		t.Fatalf("root must not depend on insertion order: %x != %x", root1, root2)
	}
}

func TestUpdate_RejectsOutOfRangeIndex(t *testing.T) {
	tr := New(2) // capacity 4
	if err := tr.Update(4, leafOf(1)); err != ErrIndexRange {
		t.Fatalf("Update(4, ...) = %v, want %v", err, ErrIndexRange)
	}
}

func TestPathForLeaf_VerifiesAgainstRoot(t *testing.T) {
	tr := New(3) // capacity 8
	for idx := uint64(0); idx < 8; idx++ {
		if err := tr.Update(idx, leafOf(byte(idx+1))); err != nil {
			t.Fatalf("Update(%d): %v", idx, err)
		}
	}
	if err := tr.Rehash(); err != nil {
		t.Fatalf("Rehash: %v", err)
	}
	root, ok := tr.Root()
	if !ok {
		t.Fatalf("Root() not available")
	}

	for idx := uint64(0); idx < 8; idx++ {
		leaf := leafOf(byte(idx + 1))
		path, err := tr.PathForLeaf(idx, leaf)
		if err != nil {
			t.Fatalf("PathForLeaf(%d): %v", idx, err)
		}
		if !VerifyPath(root, leaf, path, idx) {
			t.Fatalf("VerifyPath failed to reconstruct root for leaf %d", idx)
		}
	}
}

func TestVerifyPath_RejectsWrongLeaf(t *testing.T) {
	tr := New(3)
	for idx := uint64(0); idx < 8; idx++ {
		if err := tr.Update(idx, leafOf(byte(idx+1))); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}
	if err := tr.Rehash(); err != nil {
		t.Fatalf("Rehash: %v", err)
	}
	root, _ := tr.Root()
	path, err := tr.PathForLeaf(0, leafOf(1))
	if err != nil {
		t.Fatalf("PathForLeaf: %v", err)
	}
	if VerifyPath(root, leafOf(99), path, 0) {
		t.Fatalf("VerifyPath should reject a leaf that was not committed at this index")
	}
}

func TestCollapse_RejectsOverlapAndOutOfRange(t *testing.T) {
	tr := New(3)
	for idx := uint64(0); idx < 4; idx++ {
		_ = tr.Update(idx, leafOf(byte(idx+1)))
	}
	if err := tr.Collapse(0, 1); err != nil {
		t.Fatalf("Collapse(0,1): %v", err)
	}
	if err := tr.Collapse(1, 2); err != ErrCollapseBounds {
		t.Fatalf("overlapping Collapse(1,2) = %v, want %v", err, ErrCollapseBounds)
	}
	if err := tr.Collapse(2, 100); err != ErrCollapseBounds {
		t.Fatalf("out-of-range Collapse = %v, want %v", err, ErrCollapseBounds)
	}
}

func TestCollapse_RejectsFurtherUpdatesInRange(t *testing.T) {
	tr := New(3)
	_ = tr.Update(0, leafOf(1))
	if err := tr.Collapse(0, 0); err != nil {
		t.Fatalf("Collapse: %v", err)
	}
	if err := tr.Update(0, leafOf(2)); err != ErrCollapseBounds {
		t.Fatalf("Update into a collapsed range = %v, want %v", err, ErrCollapseBounds)
	}
}

func TestClone_Independence(t *testing.T) {
	tr := New(2)
	_ = tr.Update(0, leafOf(1))
	_ = tr.Rehash()
	clone := tr.Clone()

	_ = tr.Update(1, leafOf(2))
	_ = tr.Rehash()

	rootOrig, _ := tr.Root()
	rootClone, ok := clone.Root()
	if !ok {
		t.Fatalf("clone's Root() should still be available")
	}
	if rootOrig == rootClone {
		t.Fatalf("mutating the original must not affect the clone's root")
	}
}

func TestClampHeight_ExtremesFoldToZero(t *testing.T) {
	if New(0).Height() != 0 {
		t.Fatalf("height 0 should clamp to 0")
	}
	if New(256).Height() != 0 {
		t.Fatalf("height 256 should clamp to 0")
	}
	if New(300).Height() != 0 {
		t.Fatalf("height above 256 should clamp to 0")
	}
}
