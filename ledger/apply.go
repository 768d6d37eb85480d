package ledger

import (
	"errors"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"shielded-ledger/contract"
	"shielded-ledger/crypto"
	"shielded-ledger/utxo"
	"shielded-ledger/zswap"
)

// ResultType is the outcome tag of a TransactionResult (spec §4.8).
type ResultType int

const (
	ResultSuccess ResultType = iota
	ResultPartialSuccess
	ResultFailure
)

// Event is one wallet-visible side effect recorded during apply, replayed
// locally by ZswapLocalState/DustLocalState (spec §9).
type Event struct {
	Segment         uint16
	NewCommitments  map[[32]byte]uint64
	SpentNullifiers [][32]byte
	NewUtxos        []utxo.Utxo
	SpentUtxos      []utxo.Utxo
	SpentDustNull   [][32]byte
}

// Result is TransactionResult (spec §4.8).
type Result struct {
	Type               ResultType
	SuccessfulSegments map[uint16]bool
	Events             []Event
	Error              string
}

const (
	errIntentAlreadyExists     = "IntentAlreadyExists"
	errIntentTtlExpired        = "IntentTtlExpired"
	errIntentTtlTooFarInFuture = "IntentTtlTooFarInFuture"
)

// Apply runs the apply pipeline (spec §4.8 step 2): replay/TTL checks,
// atomic guaranteed-segment application, per-segment fallible application
// with independent rollback, event recording, and replay-set insertion.
func Apply(state *State, vtx *VerifiedTransaction, ctx BlockContext, params Parameters) (*State, *Result) {
	tx := vtx.Tx
	traceID := uuid.New().String()

	guaranteedIntent, hasGuaranteed := tx.Intents[0]
	if hasGuaranteed {
		erased := guaranteedIntent.Erase()
		intentHash := intentHashOf(0, erased)

		if _, exists := state.replaySet[intentHash]; exists {
			logger.WithField("trace", traceID).Debug("replay protection rejected duplicate intent")
			return state, &Result{Type: ResultFailure, Error: "replay protection has been violated: " + errIntentAlreadyExists}
		}
		if guaranteedIntent.TTL < ctx.SecondsSinceEpoch {
			return state, &Result{Type: ResultFailure, Error: errIntentTtlExpired}
		}
		if guaranteedIntent.TTL > ctx.SecondsSinceEpoch+params.GlobalTTLSeconds {
			return state, &Result{Type: ResultFailure, Error: errIntentTtlTooFarInFuture}
		}
	}

	next := state.clone()
	var events []Event

	if hasGuaranteed {
		var ev Event
		var err error
		next, ev, err = applySegment(next, 0, guaranteedIntent, tx.GuaranteedOffer, ctx.SecondsSinceEpoch, params)
		if err != nil {
			logger.WithFields(log.Fields{"trace": traceID, "err": err}).Debug("guaranteed segment failed")
			return state, &Result{Type: ResultFailure, Error: err.Error()}
		}
		events = append(events, ev)
	}

	successful := map[uint16]bool{}
	anyFallibleFailed := false
	for _, seg := range tx.sortedSegmentIDs() {
		it, ok := tx.Intents[seg]
		if !ok {
			continue
		}
		offer := zswapOfferFor(tx, seg)
		candidate, ev, err := applySegment(next, seg, it, offer, ctx.SecondsSinceEpoch, params)
		if err != nil {
			anyFallibleFailed = true
			logger.WithFields(log.Fields{"trace": traceID, "segment": seg, "err": err}).Debug("fallible segment rolled back")
			successful[seg] = false
			continue
		}
		next = candidate
		successful[seg] = true
		events = append(events, ev)
	}

	if hasGuaranteed {
		erased := guaranteedIntent.Erase()
		intentHash := intentHashOf(0, erased)
		next.replaySet = cloneReplaySet(next.replaySet)
		next.replaySet[intentHash] = replayEntry{ttl: guaranteedIntent.TTL}
	}

	resultType := ResultSuccess
	if anyFallibleFailed {
		resultType = ResultPartialSuccess
	}
	return next, &Result{Type: resultType, SuccessfulSegments: successful, Events: events}
}

func cloneReplaySet(m map[[32]byte]replayEntry) map[[32]byte]replayEntry {
	out := make(map[[32]byte]replayEntry, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

func zswapOfferFor(tx *Transaction, seg uint16) *zswap.Offer {
	if seg == 0 {
		return tx.GuaranteedOffer
	}
	if o, ok := tx.FallibleOffers[seg]; ok {
		return &o
	}
	return nil
}

func intentHashOf(segment uint16, erased *Intent) [32]byte {
	return crypto.HashBytes(segmentBytes(segment), erased.canonicalBytes())
}

// applySegment applies one segment's unshielded offer, zswap offer, and
// contract actions atomically against next, returning the updated state and
// the events it produced, or an error leaving next untouched.
func applySegment(next *State, seg uint16, it *Intent, zOffer *zswap.Offer, tnow int64, params Parameters) (*State, Event, error) {
	ev := Event{Segment: seg}
	result := next.clone()

	var uOffer *utxo.Offer
	if seg == 0 {
		uOffer = it.GuaranteedUnshieldedOffer
	} else {
		uOffer = it.FallibleUnshieldedOffer
	}
	if uOffer != nil {
		preUtxo := result.Utxo
		updatedUtxo, err := utxo.Apply(result.Utxo, seg, it.Erase().canonicalBytes(), *uOffer, tnow)
		if err != nil {
			return next, Event{}, err
		}
		ev.NewUtxos, _ = utxo.Delta(preUtxo, updatedUtxo, nil)
		result.Utxo = updatedUtxo
		for _, spend := range uOffer.Inputs {
			ev.SpentUtxos = append(ev.SpentUtxos, spend.Utxo)
		}
	}

	if zOffer != nil {
		updatedZswap, positions, err := zswap.Apply(result.Zswap, *zOffer, nil)
		if err != nil {
			return next, Event{}, err
		}
		result.Zswap = updatedZswap
		ev.NewCommitments = positions
		for _, in := range zOffer.Inputs {
			ev.SpentNullifiers = append(ev.SpentNullifiers, in.Nullifier)
		}
	}

	for _, action := range it.Actions {
		var err error
		result.Contracts, err = applyAction(result.Contracts, action, params)
		if err != nil {
			return next, Event{}, err
		}
	}

	if it.DustActionsField != nil {
		ds := result.Dust.clone()
		for _, sp := range it.DustActionsField.Spends {
			if ds.SpentNullifiers[sp.Nullifier] {
				return next, Event{}, errDustReplay
			}
			ds.SpentNullifiers[sp.Nullifier] = true
			ev.SpentDustNull = append(ev.SpentDustNull, sp.Nullifier)
		}
		for _, reg := range it.DustActionsField.Registrations {
			var key [33]byte
			copy(key[:], reg.NightPublicKey)
			ds.Registrations[key] = reg.DustAddress
		}
		result.Dust = ds
	}

	return result, ev, nil
}

func applyAction(reg *contract.Registry, a ContractAction, params Parameters) (*contract.Registry, error) {
	switch a.Kind {
	case ActionDeploy:
		next, _, err := contract.Deploy(reg, a.DeployState, a.DeployRandomness)
		return next, err
	case ActionCall:
		next, _, err := contract.Call(reg, *a.Call, params.CostModel)
		return next, err
	case ActionMaintain:
		return contract.ApplyMaintenance(reg, a.MaintainAddress, a.MaintainOps, a.MaintainSigs, nil)
	}
	return reg, nil
}

var errDustReplay = errors.New("ledger: dust nullifier already spent")
