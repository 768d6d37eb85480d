// Package vm implements the deterministic on-chain stack machine (spec §4.3):
// the Op set, the typed stack of AlignedValues, the gas model, transcript
// recording, and guaranteed/fallible partitioning. Structurally it replaces
// the teacher's string-keyed opcode dispatcher
// (orbas1-Synnergy/synnergy-network/core/opcode_dispatcher.go,
// core/vm_opcodes.go) with a typed Op set operating over StateValue instead
// of an opaque Context.Call(name) façade, but keeps the same
// register-then-dispatch shape: a fixed table maps each Op kind to a handler,
// gas is pre-charged before the handler runs, and unknown/invalid ops are
// fatal for that execution.
package vm

import "shielded-ledger/value"

// OpKind enumerates the instruction set (table in spec §4.3).
type OpKind uint8

const (
	OpNoop OpKind = iota
	OpPush
	OpPop
	OpDup
	OpSwap
	OpIdx
	OpIns
	OpConcat
	OpMember
	OpAddImmediate
	OpAdd
	OpLt
	OpEq
	OpNeg
	OpRoot
	OpBranch
	OpPopeq
)

// Op is one instruction. R distinguishes a *template* program (Result == nil)
// from a *result-annotated* program (Result populated) — the two phases
// named in §4.3 ("Op<R> where R is either null... or AlignedValue").
type Op struct {
	Kind OpKind

	// Noop
	N uint64

	// Push
	Storage bool
	Value   value.AlignedValue

	// Dup / Swap
	Depth uint64

	// Idx / Ins
	Cached   bool
	PushPath bool
	Path     []value.AlignedValue
	Levels   uint64

	// Concat
	MaxBytes uint64

	// AddImmediate
	Immediate int64

	// Branch
	Skip uint64

	// Popeq
	Result *value.AlignedValue
}

func Noop(n uint64) Op                 { return Op{Kind: OpNoop, N: n} }
func Push(storage bool, v value.AlignedValue) Op {
	return Op{Kind: OpPush, Storage: storage, Value: v}
}
func Pop() Op             { return Op{Kind: OpPop} }
func Dup(n uint64) Op     { return Op{Kind: OpDup, Depth: n} }
func Swap(n uint64) Op    { return Op{Kind: OpSwap, Depth: n} }
func Member() Op          { return Op{Kind: OpMember} }
func AddImmediate(n int64) Op { return Op{Kind: OpAddImmediate, Immediate: n} }
func Add() Op              { return Op{Kind: OpAdd} }
func Lt() Op                { return Op{Kind: OpLt} }
func Eq() Op                { return Op{Kind: OpEq} }
func Neg() Op               { return Op{Kind: OpNeg} }
func Root() Op              { return Op{Kind: OpRoot} }
func Branch(skip uint64) Op { return Op{Kind: OpBranch, Skip: skip} }

func Idx(cached, pushPath bool, path []value.AlignedValue) Op {
	return Op{Kind: OpIdx, Cached: cached, PushPath: pushPath, Path: path}
}

func Ins(cached bool, n uint64) Op {
	return Op{Kind: OpIns, Cached: cached, Levels: n}
}

func Concat(cached bool, n uint64) Op {
	return Op{Kind: OpConcat, Cached: cached, MaxBytes: n}
}

func Popeq(cached bool, result value.AlignedValue) Op {
	return Op{Kind: OpPopeq, Cached: cached, Result: &result}
}

// Program is a sequence of Ops, template or result-annotated.
type Program []Op

// IsResultAnnotated reports whether every Popeq in the program carries a
// claimed Result (i.e. this is a transcript ready to run, not a template).
func (p Program) IsResultAnnotated() bool {
	for _, op := range p {
		if op.Kind == OpPopeq && op.Result == nil {
			return false
		}
	}
	return true
}
