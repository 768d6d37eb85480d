package vm

// TaggedOp associates a single instruction with whether it belongs to the
// fallible partition (touches a shielded mint, an unshielded UTXO movement,
// or a claimed unshielded spend) or the guaranteed one (everything else:
// nullifier/shielded-spend/-receive bookkeeping and contract-call claims).
// A ContractCallPrototype builder produces this tagging; the VM package only
// performs the mechanical split.
type TaggedOp struct {
	Op       Op
	Fallible bool
}

// PartitionTranscripts splits a PreTranscript's tagged program and declared
// Effects into a guaranteed Transcript and a fallible Transcript (spec §4.3).
// The split is a deterministic, order-preserving stable partition: reassembled
// (guaranteed ops in original order, then fallible ops in original order,
// each replaying against the state left by the previous partition) it
// produces the same final state as running the untagged program once — this
// is the property §8's partition-determinism test exercises. Each
// transcript's Gas is the real per-op cost from cm, summed over that
// transcript's ops, not a flat per-instruction counter, so the split values
// are what actually executing that partition would charge.
func PartitionTranscripts(ops []TaggedOp, cm CostModel, effects Effects) (guaranteed, fallible Transcript) {
	gEff, fEff := splitEffects(effects)
	var gProg, fProg Program
	var gGas, fGas GasCost
	for _, t := range ops {
		cost := cm.Cost(t.Op)
		if t.Fallible {
			fProg = append(fProg, t.Op)
			fGas = fGas.Add(cost)
		} else {
			gProg = append(gProg, t.Op)
			gGas = gGas.Add(cost)
		}
	}
	guaranteed = Transcript{Program: gProg, Effects: gEff, Gas: gGas}
	fallible = Transcript{Program: fProg, Effects: fEff, Gas: fGas}
	return guaranteed, fallible
}

func splitEffects(e Effects) (guaranteed, fallible Effects) {
	guaranteed = NewEffects()
	fallible = NewEffects()
	guaranteed.ClaimedNullifiers = e.ClaimedNullifiers
	guaranteed.ClaimedShieldedSpends = e.ClaimedShieldedSpends
	guaranteed.ClaimedShieldedReceives = e.ClaimedShieldedReceives
	guaranteed.ClaimedContractCalls = e.ClaimedContractCalls
	for k, v := range e.ShieldedMints {
		fallible.ShieldedMints[k] = v
	}
	for k, v := range e.UnshieldedMints {
		fallible.UnshieldedMints[k] = v
	}
	for k, v := range e.UnshieldedInputs {
		fallible.UnshieldedInputs[k] = v
	}
	for k, v := range e.UnshieldedOutputs {
		fallible.UnshieldedOutputs[k] = v
	}
	for k, v := range e.ClaimedUnshieldedSpends {
		fallible.ClaimedUnshieldedSpends[k] = v
	}
	return guaranteed, fallible
}
