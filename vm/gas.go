package vm

import "errors"

// GasCost tracks the four independently-metered resources an execution
// consumes (spec §4.3). All fields are u64; a negative budget is rejected at
// decode time by the caller, never represented here.
type GasCost struct {
	ReadTime     uint64
	ComputeTime  uint64
	BytesWritten uint64
	BytesDeleted uint64
}

// Add sums two GasCosts component-wise.
func (g GasCost) Add(o GasCost) GasCost {
	return GasCost{
		ReadTime:     g.ReadTime + o.ReadTime,
		ComputeTime:  g.ComputeTime + o.ComputeTime,
		BytesWritten: g.BytesWritten + o.BytesWritten,
		BytesDeleted: g.BytesDeleted + o.BytesDeleted,
	}
}

// LessEq reports whether g is component-wise <= o, used for gas-monotonicity
// (§8 item 10) and budget checks.
func (g GasCost) LessEq(o GasCost) bool {
	return g.ReadTime <= o.ReadTime && g.ComputeTime <= o.ComputeTime &&
		g.BytesWritten <= o.BytesWritten && g.BytesDeleted <= o.BytesDeleted
}

// CostModel is the per-op base gas table. The teacher's gas_table.go keeps a
// single map[Opcode]uint64 behind a punitive DefaultGasCost fallback; here
// each Op carries a full GasCost vector (read/compute/bytes) rather than one
// scalar, since the spec's gas model is itself four-dimensional.
type CostModel struct {
	base map[OpKind]GasCost
}

// InitialCostModel returns the canonical cost model (spec §6.4,
// LedgerParameters.initialParameters -> CostModel.initialCostModel).
func InitialCostModel() CostModel {
	return CostModel{base: map[OpKind]GasCost{
		OpNoop:         {ComputeTime: 1},
		OpPush:         {ComputeTime: 2, BytesWritten: 32},
		OpPop:          {ComputeTime: 1},
		OpDup:          {ComputeTime: 1},
		OpSwap:         {ComputeTime: 1},
		OpIdx:          {ReadTime: 4, ComputeTime: 2},
		OpIns:          {ComputeTime: 3, BytesWritten: 32, BytesDeleted: 32},
		OpConcat:       {ComputeTime: 2, BytesWritten: 32},
		OpMember:       {ReadTime: 3, ComputeTime: 1},
		OpAddImmediate: {ComputeTime: 1},
		OpAdd:          {ComputeTime: 1},
		OpLt:           {ComputeTime: 1},
		OpEq:           {ComputeTime: 1},
		OpNeg:          {ComputeTime: 1},
		OpRoot:         {ReadTime: 8, ComputeTime: 4},
		OpBranch:       {ComputeTime: 1},
		OpPopeq:        {ReadTime: 1, ComputeTime: 1},
	}}
}

// ErrUnpriced is never returned to callers; an unpriced op instead falls
// back to DefaultOpGasCost, matching the teacher's "charge default, log once"
// behaviour (core/gas_table.go).
var ErrUnpriced = errors.New("vm: opcode has no priced entry")

const DefaultOpGasCost = 100_000

// Cost returns the base GasCost for a single op, scaled by its immediate
// operand where relevant (noop{n}, concat{n}).
func (cm CostModel) Cost(op Op) GasCost {
	base, ok := cm.base[op.Kind]
	if !ok {
		return GasCost{ComputeTime: DefaultOpGasCost}
	}
	switch op.Kind {
	case OpNoop:
		base.ComputeTime *= max1(op.N)
	case OpConcat:
		base.BytesWritten = op.MaxBytes
	case OpPush:
		if op.Storage {
			var n uint64
			for _, b := range op.Value.Value {
				n += uint64(len(b))
			}
			base.BytesWritten = n
		} else {
			base.BytesWritten = 0
		}
	}
	return base
}

func max1(n uint64) uint64 {
	if n == 0 {
		return 1
	}
	return n
}

// ErrOutOfGas is raised when any gas component would exceed the caller's
// budget; the exact text is part of the stable error contract (§6.4/§7).
var ErrOutOfGas = errors.New("ran out of gas budget")

// Meter accumulates gas spend against an optional budget.
type Meter struct {
	Spent  GasCost
	Budget *GasCost // nil = unbounded
}

// Charge adds cost to Spent, failing with ErrOutOfGas if Budget is set and
// would be exceeded by any component.
func (m *Meter) Charge(cost GasCost) error {
	next := m.Spent.Add(cost)
	if m.Budget != nil && !next.LessEq(*m.Budget) {
		return ErrOutOfGas
	}
	m.Spent = next
	return nil
}
