package vm

import "shielded-ledger/statevalue"

// Transcript is a recorded VM run together with its declared effects (spec
// §4.3). It is the unit the apply pipeline replays deterministically.
type Transcript struct {
	Gas     GasCost
	Effects Effects
	Program Program
}

// RunTranscript executes a full recorded transcript against qc, unifying its
// popeq results with the stack and returning the resulting QueryContext. Each
// run starts from an empty stack holding only qc.Root's current value. The
// caller is responsible for reconciling Effects against what was declared;
// contract.Call does that cross-check, not this function.
func (qc *QueryContext) RunTranscript(t Transcript, cm CostModel) (*QueryContext, error) {
	if !t.Program.IsResultAnnotated() {
		return nil, errUnresultAnnotated
	}
	budget := t.Gas
	qc.meter = Meter{Budget: &budget}
	qc.stack = nil
	qc.push(qc.Root.Value)
	if err := qc.runProgram(t.Program, cm); err != nil {
		return nil, err
	}
	if len(qc.stack) == 1 {
		qc.Root.Replace(qc.stack[0])
	}
	return qc, nil
}

var errUnresultAnnotated = transcriptErr("vm: transcript program is not result-annotated")

type transcriptErr string

func (e transcriptErr) Error() string { return string(e) }

// PreTranscript pairs a program template with its execution context, prior
// to guaranteed/fallible partitioning (spec §4.3).
type PreTranscript struct {
	Context                QueryContext
	Program                Program
	CommitmentCommitmentOpt []byte
}

// newContextForPartition returns a fresh QueryContext rooted at root.
// PartitionTranscripts does not execute either half, so it does not call it.
func newContextForPartition(root *statevalue.ChargedState) *QueryContext {
	return NewQueryContext(root)
}
