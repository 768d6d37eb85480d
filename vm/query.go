package vm

import (
	"bytes"
	"encoding/binary"
	"errors"

	"shielded-ledger/statevalue"
	"shielded-ledger/value"
)

var (
	ErrExpectedCell  = errors.New("expected a cell")
	ErrStackUnderflow = errors.New("vm: stack underflow")
	ErrPopeqMismatch  = errors.New("vm: popeq result does not match executed stack")
	ErrArrayIndex     = errors.New("vm: idx path element out of array bounds")
	ErrMapKeyMissing  = errors.New("vm: idx path key not present in map")
)

// crumb records a single idx descent so a later ins can reconstruct the
// parent container from an updated child.
type crumb struct {
	container statevalue.StateValue
	key       value.AlignedValue
	isArray   bool
	arrayIdx  int
}

// QueryContext is the execution environment for a single program run against
// a contract's (or query-caller's) root state value (spec §4.3 QueryContext).
type QueryContext struct {
	Root   *statevalue.ChargedState
	stack  []statevalue.StateValue
	crumbs []crumb
	meter  Meter
}

// NewQueryContext builds a context rooted at the given charged state.
func NewQueryContext(root *statevalue.ChargedState) *QueryContext {
	return &QueryContext{Root: root}
}

func (qc *QueryContext) push(v statevalue.StateValue) { qc.stack = append(qc.stack, v) }

func (qc *QueryContext) pop() (statevalue.StateValue, error) {
	if len(qc.stack) == 0 {
		return statevalue.StateValue{}, ErrStackUnderflow
	}
	v := qc.stack[len(qc.stack)-1]
	qc.stack = qc.stack[:len(qc.stack)-1]
	return v, nil
}

func (qc *QueryContext) peek(depth uint64) (statevalue.StateValue, error) {
	idx := len(qc.stack) - 1 - int(depth)
	if idx < 0 {
		return statevalue.StateValue{}, ErrStackUnderflow
	}
	return qc.stack[idx], nil
}

// QueryResults is the outcome of executing a program against a QueryContext.
type QueryResults struct {
	Gas   GasCost
	Stack []statevalue.StateValue
}

// Query executes program against the context, charging gas from costModel
// against the optional gasLimit (nil = unbounded). Executing against a
// non-cell root with a program that immediately expects a cell fails with
// ErrExpectedCell; out-of-gas raises ErrOutOfGas and the caller-visible state
// (qc.Root) is left unchanged because all mutation happens on local copies
// until the program completes (see runProgram).
func (qc *QueryContext) Query(program Program, costModel CostModel, gasLimit *GasCost) (QueryResults, error) {
	if gasLimit != nil {
		qc.meter = Meter{Budget: gasLimit}
	} else {
		qc.meter = Meter{}
	}
	qc.push(qc.Root.Value)
	if err := qc.runProgram(program, costModel); err != nil {
		return QueryResults{}, err
	}
	return QueryResults{Gas: qc.meter.Spent, Stack: append([]statevalue.StateValue{}, qc.stack...)}, nil
}

func (qc *QueryContext) runProgram(program Program, cm CostModel) error {
	i := 0
	for i < len(program) {
		op := program[i]
		if err := qc.meter.Charge(cm.Cost(op)); err != nil {
			return err
		}
		skip, err := qc.exec(op)
		if err != nil {
			return err
		}
		i += 1 + int(skip)
	}
	return nil
}

// exec runs a single op, returning how many subsequent ops to additionally
// skip (nonzero only for a taken branch).
func (qc *QueryContext) exec(op Op) (uint64, error) {
	switch op.Kind {
	case OpNoop:
		return 0, nil
	case OpPush:
		qc.push(statevalue.NewCell(op.Value))
		return 0, nil
	case OpPop:
		_, err := qc.pop()
		return 0, err
	case OpDup:
		v, err := qc.peek(op.Depth)
		if err != nil {
			return 0, err
		}
		qc.push(v)
		return 0, nil
	case OpSwap:
		idx := len(qc.stack) - 1 - int(op.Depth)
		if idx < 0 || len(qc.stack) == 0 {
			return 0, ErrStackUnderflow
		}
		top := len(qc.stack) - 1
		qc.stack[top], qc.stack[idx] = qc.stack[idx], qc.stack[top]
		return 0, nil
	case OpIdx:
		return 0, qc.execIdx(op)
	case OpIns:
		return 0, qc.execIns(op)
	case OpConcat:
		return 0, qc.execConcat(op)
	case OpMember:
		return 0, qc.execMember()
	case OpAddImmediate:
		return 0, qc.execArith1(func(a int64) int64 { return a + op.Immediate })
	case OpAdd:
		return 0, qc.execArith2(func(a, b int64) int64 { return a + b })
	case OpLt:
		return 0, qc.execCompare(func(a, b int64) bool { return a < b })
	case OpEq:
		return 0, qc.execCompare(func(a, b int64) bool { return a == b })
	case OpNeg:
		return 0, qc.execArith1(func(a int64) int64 { return -a })
	case OpRoot:
		return 0, qc.execRoot()
	case OpBranch:
		return qc.execBranch(op)
	case OpPopeq:
		return 0, qc.execPopeq(op)
	default:
		return 0, errors.New("vm: unknown opcode")
	}
}

func (qc *QueryContext) execIdx(op Op) error {
	container, err := qc.pop()
	if err != nil {
		return err
	}
	cur := container
	for _, key := range op.Path {
		switch cur.Kind() {
		case statevalue.KindArray:
			arr, _ := cur.AsArray()
			n, ok := decodeInt(key)
			if !ok || n < 0 || n >= int64(len(arr)) {
				return ErrArrayIndex
			}
			qc.crumbs = append(qc.crumbs, crumb{container: cur, isArray: true, arrayIdx: int(n)})
			cur = arr[n]
		case statevalue.KindMap:
			child, ok := cur.MapGet(flatten(key))
			if !ok {
				return ErrMapKeyMissing
			}
			qc.crumbs = append(qc.crumbs, crumb{container: cur, key: key})
			cur = child
		default:
			return ErrExpectedCell
		}
		if op.PushPath {
			qc.push(statevalue.NewCell(key))
		}
	}
	qc.push(cur)
	return nil
}

func (qc *QueryContext) execIns(op Op) error {
	for n := uint64(0); n < op.Levels; n++ {
		if len(qc.crumbs) == 0 {
			return errors.New("vm: ins with no matching idx")
		}
		child, err := qc.pop()
		if err != nil {
			return err
		}
		cr := qc.crumbs[len(qc.crumbs)-1]
		qc.crumbs = qc.crumbs[:len(qc.crumbs)-1]
		var rebuilt statevalue.StateValue
		if cr.isArray {
			arr, _ := cr.container.AsArray()
			newArr := append([]statevalue.StateValue{}, arr...)
			newArr[cr.arrayIdx] = child
			rebuilt = statevalue.NewArray()
			for _, e := range newArr {
				rebuilt, _ = rebuilt.Push(e)
			}
		} else {
			rebuilt, err = cr.container.MapInsert(cr.key, child)
			if err != nil {
				return err
			}
		}
		qc.push(rebuilt)
	}
	return nil
}

func (qc *QueryContext) execConcat(op Op) error {
	b, err := qc.pop()
	if err != nil {
		return err
	}
	a, err := qc.pop()
	if err != nil {
		return err
	}
	ac, err := a.AsCell()
	if err != nil {
		return ErrExpectedCell
	}
	bc, err := b.AsCell()
	if err != nil {
		return ErrExpectedCell
	}
	merged := value.Concat(ac, bc)
	if op.MaxBytes > 0 {
		var total uint64
		for _, bs := range merged.Value {
			total += uint64(len(bs))
		}
		if total > op.MaxBytes {
			return errors.New("vm: concat exceeds max bytes")
		}
	}
	qc.push(statevalue.NewCell(merged))
	return nil
}

func (qc *QueryContext) execMember() error {
	key, err := qc.pop()
	if err != nil {
		return err
	}
	container, err := qc.pop()
	if err != nil {
		return err
	}
	kc, err := key.AsCell()
	if err != nil {
		return ErrExpectedCell
	}
	_, found := container.MapGet(flatten(kc))
	qc.push(boolCell(found))
	return nil
}

func (qc *QueryContext) execArith1(f func(int64) int64) error {
	a, err := qc.pop()
	if err != nil {
		return err
	}
	ac, err := a.AsCell()
	if err != nil {
		return ErrExpectedCell
	}
	n, _ := decodeInt(ac)
	qc.push(statevalue.NewCell(encodeInt(f(n))))
	return nil
}

func (qc *QueryContext) execArith2(f func(int64, int64) int64) error {
	b, err := qc.pop()
	if err != nil {
		return err
	}
	a, err := qc.pop()
	if err != nil {
		return err
	}
	ac, err := a.AsCell()
	if err != nil {
		return ErrExpectedCell
	}
	bc, err := b.AsCell()
	if err != nil {
		return ErrExpectedCell
	}
	an, _ := decodeInt(ac)
	bn, _ := decodeInt(bc)
	qc.push(statevalue.NewCell(encodeInt(f(an, bn))))
	return nil
}

func (qc *QueryContext) execCompare(f func(int64, int64) bool) error {
	b, err := qc.pop()
	if err != nil {
		return err
	}
	a, err := qc.pop()
	if err != nil {
		return err
	}
	ac, err := a.AsCell()
	if err != nil {
		return ErrExpectedCell
	}
	bc, err := b.AsCell()
	if err != nil {
		return ErrExpectedCell
	}
	an, _ := decodeInt(ac)
	bn, _ := decodeInt(bc)
	qc.push(boolCell(f(an, bn)))
	return nil
}

func (qc *QueryContext) execRoot() error {
	top, err := qc.pop()
	if err != nil {
		return err
	}
	tree, err := top.AsTree()
	if err != nil {
		return ErrExpectedCell
	}
	root, ok := tree.Root()
	if !ok {
		return errors.New("vm: merkle tree not rehashed")
	}
	qc.push(statevalue.NewCell(value.NewCell(root[:])))
	return nil
}

func (qc *QueryContext) execBranch(op Op) (uint64, error) {
	top, err := qc.pop()
	if err != nil {
		return 0, err
	}
	c, err := top.AsCell()
	if err != nil {
		return 0, ErrExpectedCell
	}
	n, _ := decodeInt(c)
	if n == 0 {
		return op.Skip, nil
	}
	return 0, nil
}

func (qc *QueryContext) execPopeq(op Op) error {
	top, err := qc.pop()
	if err != nil {
		return err
	}
	cell, err := top.AsCell()
	if err != nil {
		return ErrExpectedCell
	}
	if op.Result == nil {
		return errors.New("vm: popeq executed against a template program")
	}
	if !alignedEqual(cell, *op.Result) {
		return ErrPopeqMismatch
	}
	return nil
}

func flatten(av value.AlignedValue) []byte {
	var out []byte
	for _, b := range av.Value {
		out = append(out, b...)
	}
	return out
}

func decodeInt(av value.AlignedValue) (int64, bool) {
	if len(av.Value) != 1 {
		return 0, false
	}
	b := av.Value[0]
	if len(b) < 8 {
		padded := make([]byte, 8)
		copy(padded[8-len(b):], b)
		b = padded
	}
	return int64(binary.BigEndian.Uint64(b[len(b)-8:])), true
}

func encodeInt(n int64) value.AlignedValue {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(n))
	return value.NewCell(b[:])
}

func boolCell(b bool) statevalue.StateValue {
	v := byte(0)
	if b {
		v = 1
	}
	return statevalue.NewCell(value.NewCell([]byte{v}))
}

func alignedEqual(a, b value.AlignedValue) bool {
	if len(a.Value) != len(b.Value) {
		return false
	}
	for i := range a.Value {
		if !bytes.Equal(a.Value[i], b.Value[i]) {
			return false
		}
	}
	return true
}
