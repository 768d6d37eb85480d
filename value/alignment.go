// Package value implements the typed byte-value layer shared by every other
// package in the ledger: Atom/Alignment tagging, the Value/AlignedValue pair,
// and canonical encode/decode of domain types. Everything on the VM stack and
// everything stored in a contract's state tree is an AlignedValue.
package value

import (
	"errors"
	"math/big"
)

// AtomKind tags how a single opaque byte string is interpreted.
type AtomKind uint8

const (
	// AtomBytes is a raw byte string of at most MaxAtomBytes length.
	AtomBytes AtomKind = iota
	// AtomField is a scalar strictly less than FieldModulus.
	AtomField
	// AtomCompress only appears inside hash inputs; PersistentHash rejects it.
	AtomCompress
)

// MaxAtomBytes is the maximum length of a bytes-tagged atom (§3.1).
const MaxAtomBytes = 32

// FieldModulus is the scalar field modulus field atoms are reduced against.
// This is the BLS12-381 scalar field, the one used by the teacher's BLS
// stack (github.com/herumi/bls-eth-go-binary).
var FieldModulus, _ = new(big.Int).SetString(
	"52435875175126190479447740508185965837690552500527637822603658699938581184513", 10)

// Atom is a single typed slot in an Alignment.
type Atom struct {
	Kind AtomKind
	// Length is the exact byte length required for AtomBytes. Ignored for
	// AtomField (32-byte canonical big-endian) and AtomCompress.
	Length int
}

// Elem is one entry of an Alignment: either a leaf Atom or a nested
// Alignment representing a compound (struct/array) field.
type Elem struct {
	Atom   *Atom
	Nested Alignment
}

// Alignment is an ordered sequence of Elems describing the shape of a Value.
type Alignment []Elem

// Leaves returns the flattened sequence of leaf Atoms in traversal order.
func (a Alignment) Leaves() []*Atom {
	var out []*Atom
	for _, e := range a {
		if e.Atom != nil {
			out = append(out, e.Atom)
		} else {
			out = append(out, e.Nested.Leaves()...)
		}
	}
	return out
}

// HasCompress reports whether any leaf atom in the alignment is compress-tagged.
func (a Alignment) HasCompress() bool {
	for _, at := range a.Leaves() {
		if at.Kind == AtomCompress {
			return true
		}
	}
	return false
}

// BytesAtom builds an Elem for a fixed-length byte atom.
func BytesAtom(n int) Elem { return Elem{Atom: &Atom{Kind: AtomBytes, Length: n}} }

// FieldAtom builds an Elem for a field-scalar atom.
func FieldAtom() Elem { return Elem{Atom: &Atom{Kind: AtomField}} }

// CompressAtom builds an Elem for a compress atom (hash-input only).
func CompressAtom() Elem { return Elem{Atom: &Atom{Kind: AtomCompress}} }

// Compound builds an Elem nesting a sub-alignment, used for struct/array types.
func Compound(sub Alignment) Elem { return Elem{Nested: sub} }

// Value is an ordered sequence of opaque byte strings, one per leaf atom.
type Value [][]byte

// AlignedValue pairs a Value with the Alignment describing its shape.
type AlignedValue struct {
	Value     Value
	Alignment Alignment
}

var (
	ErrLengthMismatch = errors.New("value: |value| != |alignment|")
	ErrAtomWidth      = errors.New("value: byte atom has wrong width")
	ErrFieldRange     = errors.New("value: field atom out of range")
)

// Validate checks invariant (1) of §3.1: |value| == |alignment| and every
// byte string obeys its atom's length/field constraints.
func (av AlignedValue) Validate() error {
	leaves := av.Alignment.Leaves()
	if len(leaves) != len(av.Value) {
		return ErrLengthMismatch
	}
	for i, at := range leaves {
		b := av.Value[i]
		switch at.Kind {
		case AtomBytes:
			if len(b) != at.Length || at.Length > MaxAtomBytes {
				return ErrAtomWidth
			}
		case AtomField:
			n := new(big.Int).SetBytes(b)
			if n.Cmp(FieldModulus) >= 0 {
				return ErrFieldRange
			}
		case AtomCompress:
			// no width constraint; compress atoms are opaque hash inputs.
		}
	}
	return nil
}

// NewCell builds a single-atom AlignedValue for a fixed-width byte string.
func NewCell(b []byte) AlignedValue {
	return AlignedValue{Value: Value{b}, Alignment: Alignment{BytesAtom(len(b))}}
}

// NewFieldCell builds a single-atom AlignedValue holding a field scalar,
// left-padded to 32 bytes big-endian. It panics if n does not fit in 32
// bytes.
func NewFieldCell(n *big.Int) AlignedValue {
	b := make([]byte, 32)
	n.FillBytes(b)
	return AlignedValue{Value: Value{b}, Alignment: Alignment{FieldAtom()}}
}

// Concat merges two AlignedValues into a compound value, preserving order.
func Concat(a, b AlignedValue) AlignedValue {
	return AlignedValue{
		Value:     append(append(Value{}, a.Value...), b.Value...),
		Alignment: append(append(Alignment{}, Compound(a.Alignment)), Compound(b.Alignment)),
	}
}
