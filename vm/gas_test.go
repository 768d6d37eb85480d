package vm

import "testing"

// TestCost_MonotonicInOperandSize is spec §8 property 10: a larger operand
// never costs strictly less than a smaller one.
func TestCost_MonotonicInOperandSize(t *testing.T) {
	cm := InitialCostModel()

	small := cm.Cost(Noop(1))
	large := cm.Cost(Noop(10))
	if !small.LessEq(large) {
		t.Fatalf("Noop(10) cost %+v is not >= Noop(1) cost %+v", large, small)
	}

	smallConcat := cm.Cost(Concat(false, 8))
	largeConcat := cm.Cost(Concat(false, 64))
	if !smallConcat.LessEq(largeConcat) {
		t.Fatalf("Concat(64) cost %+v is not >= Concat(8) cost %+v", largeConcat, smallConcat)
	}
}

func TestCost_UnpricedOpFallsBackToDefault(t *testing.T) {
	cm := CostModel{base: map[OpKind]GasCost{}}
	got := cm.Cost(Op{Kind: OpAdd})
	if got.ComputeTime != DefaultOpGasCost {
		t.Fatalf("unpriced op cost = %+v, want ComputeTime %d", got, DefaultOpGasCost)
	}
}

func TestGasCost_AddIsComponentwise(t *testing.T) {
	a := GasCost{ReadTime: 1, ComputeTime: 2, BytesWritten: 3, BytesDeleted: 4}
	b := GasCost{ReadTime: 10, ComputeTime: 20, BytesWritten: 30, BytesDeleted: 40}
	sum := a.Add(b)
	want := GasCost{ReadTime: 11, ComputeTime: 22, BytesWritten: 33, BytesDeleted: 44}
	if sum != want {
		t.Fatalf("Add() = %+v, want %+v", sum, want)
	}
}

func TestMeter_ChargeRejectsOverBudget(t *testing.T) {
	budget := GasCost{ReadTime: 10}
	m := Meter{Budget: &budget}
	if err := m.Charge(GasCost{ReadTime: 5}); err != nil {
		t.Fatalf("Charge within budget: %v", err)
	}
	if err := m.Charge(GasCost{ReadTime: 6}); err != ErrOutOfGas {
		t.Fatalf("Charge over budget = %v, want %v", err, ErrOutOfGas)
	}
}

func TestMeter_UnboundedBudgetNeverRejects(t *testing.T) {
	m := Meter{}
	if err := m.Charge(GasCost{ReadTime: 1 << 40}); err != nil {
		t.Fatalf("unbounded meter rejected a charge: %v", err)
	}
}
