// Package statevalue implements the per-contract storage tree (spec §3.4,
// §4.3): a tagged union of null/cell/array/map/boundedMerkleTree values, plus
// the ChargedState wrapper that caches each subtree's storage-size charge.
// The arena+index scheme recommended in spec.md §9 ("content-addressed state
// trees... arena+index") is realized with plain Go slices/maps rather than a
// hand-rolled arena allocator: Go's garbage collector already gives the
// structural-sharing/no-aliasing semantics an arena would buy, so a bespoke
// allocator would only add bookkeeping the runtime already does for us.
package statevalue

import (
	"errors"
	"sort"

	"shielded-ledger/merkle"
	"shielded-ledger/value"
)

// Kind tags which variant a StateValue holds.
type Kind uint8

const (
	KindNull Kind = iota
	KindCell
	KindArray
	KindMap
	KindMerkleTree
)

// MaxArrayLen bounds array values (§3.4 invariant).
const MaxArrayLen = 15

var (
	ErrArrayFull     = errors.New("Push would cause array to exceed 15 elements")
	ErrArrayBounds   = errors.New("statevalue: array index out of range")
	ErrWrongKind     = errors.New("statevalue: operation requires a different kind")
	ErrTreeHeight    = errors.New("statevalue: bounded merkle tree height out of range")
)

// mapEntry preserves insertion order defined by encoded key bytes.
type mapEntry struct {
	Key value.AlignedValue
	Val StateValue
}

// StateValue is the tagged union described in §3.4.
type StateValue struct {
	kind Kind

	cell  value.AlignedValue
	array []StateValue
	mp    []mapEntry
	tree  *merkle.Tree
}

func NewNull() StateValue { return StateValue{kind: KindNull} }

func NewCell(v value.AlignedValue) StateValue {
	return StateValue{kind: KindCell, cell: v}
}

func NewArray() StateValue {
	return StateValue{kind: KindArray, array: nil}
}

func NewMap(entries map[string]StateValue, keyBytes map[string]value.AlignedValue) (StateValue, error) {
	sv := StateValue{kind: KindMap}
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys) // ordered by encoded key bytes
	for _, k := range keys {
		sv.mp = append(sv.mp, mapEntry{Key: keyBytes[k], Val: entries[k]})
	}
	return sv, nil
}

func NewBoundedMerkleTree(height int, t *merkle.Tree) (StateValue, error) {
	if height < 0 || height > 255 {
		return StateValue{}, ErrTreeHeight
	}
	return StateValue{kind: KindMerkleTree, tree: t}, nil
}

func (s StateValue) Kind() Kind { return s.kind }

func (s StateValue) AsCell() (value.AlignedValue, error) {
	if s.kind != KindCell {
		return value.AlignedValue{}, ErrWrongKind
	}
	return s.cell, nil
}

func (s StateValue) AsArray() ([]StateValue, error) {
	if s.kind != KindArray {
		return nil, ErrWrongKind
	}
	return s.array, nil
}

func (s StateValue) AsTree() (*merkle.Tree, error) {
	if s.kind != KindMerkleTree {
		return nil, ErrWrongKind
	}
	return s.tree, nil
}

// Push appends to an array value; fails once the array would exceed 15
// elements, with the exact error text the test suite checks for (§8 item 9).
func (s StateValue) Push(v StateValue) (StateValue, error) {
	if s.kind != KindArray {
		return s, ErrWrongKind
	}
	if len(s.array) >= MaxArrayLen {
		return s, ErrArrayFull
	}
	out := s
	out.array = append(append([]StateValue{}, s.array...), v)
	return out, nil
}

// MapGet looks up a map entry by its encoded key bytes (order-independent).
func (s StateValue) MapGet(keyEncoded []byte) (StateValue, bool) {
	if s.kind != KindMap {
		return StateValue{}, false
	}
	for _, e := range s.mp {
		if bytesEqual(flatten(e.Key), keyEncoded) {
			return e.Val, true
		}
	}
	return StateValue{}, false
}

// MapInsert returns a copy of the map with key->val inserted or replaced,
// maintaining ordering by encoded key bytes.
func (s StateValue) MapInsert(key value.AlignedValue, val StateValue) (StateValue, error) {
	if s.kind != KindMap {
		return s, ErrWrongKind
	}
	out := s
	out.mp = append([]mapEntry{}, s.mp...)
	kb := flatten(key)
	for i, e := range out.mp {
		if bytesEqual(flatten(e.Key), kb) {
			out.mp[i].Val = val
			return out, nil
		}
	}
	out.mp = append(out.mp, mapEntry{Key: key, Val: val})
	sort.Slice(out.mp, func(i, j int) bool {
		return lessBytes(flatten(out.mp[i].Key), flatten(out.mp[j].Key))
	})
	return out, nil
}

func flatten(av value.AlignedValue) []byte {
	var out []byte
	for _, b := range av.Value {
		out = append(out, b...)
	}
	return out
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func lessBytes(a, b []byte) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

// Size estimates the storage-charge weight of a value: base cost per
// leaf/array-slot/map-entry, mirroring the "read-through cache of subtree
// byte sizes" design note (§9).
func (s StateValue) Size() uint64 {
	switch s.kind {
	case KindNull:
		return 1
	case KindCell:
		var n uint64
		for _, b := range s.cell.Value {
			n += uint64(len(b))
		}
		return n + 1
	case KindArray:
		var n uint64 = 1
		for _, e := range s.array {
			n += e.Size()
		}
		return n
	case KindMap:
		var n uint64 = 1
		for _, e := range s.mp {
			n += uint64(len(flatten(e.Key))) + e.Val.Size()
		}
		return n
	case KindMerkleTree:
		return 32 // root digest only; leaves are charged at insertion time
	}
	return 0
}

// ChargedState wraps a StateValue with its cached storage-size charge,
// recomputed lazily whenever the wrapped value is replaced.
type ChargedState struct {
	Value  StateValue
	charge uint64
	cached bool
}

func NewChargedState(v StateValue) *ChargedState {
	return &ChargedState{Value: v}
}

// Charge returns the cached size, computing it on first access.
func (c *ChargedState) Charge() uint64 {
	if !c.cached {
		c.charge = c.Value.Size()
		c.cached = true
	}
	return c.charge
}

// Replace swaps in a new value and invalidates the cached charge.
func (c *ChargedState) Replace(v StateValue) {
	c.Value = v
	c.cached = false
}
