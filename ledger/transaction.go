package ledger

import (
	"errors"
	"sort"

	"shielded-ledger/utxo"
	"shielded-ledger/value"
	"shielded-ledger/zswap"
)

// Transaction is the network-wide envelope (spec §3.7): a guaranteed
// (segment 0) zswap offer, a set of fallible offers keyed by non-zero
// segment id, one intent per segment, and an optional claim-rewards
// transaction.
type Transaction struct {
	NetworkID       string
	GuaranteedOffer *zswap.Offer
	FallibleOffers  map[uint16]zswap.Offer
	Intents         map[uint16]*Intent
	Rewards         *ClaimRewardsTransaction
}

var (
	ErrOfferUnproven       = errors.New("Intent offer must be unproven.")
	ErrFallibleSegmentZero = errors.New("Segment ID cannot be 0 in a fallible offer")
	ErrNonDisjointCoins    = errors.New("attempted to merge non-disjoint coin sets")
	ErrMismatchedSegments  = errors.New("mismatched output segments")
)

// FromParts assembles a transaction from a guaranteed offer, a map of
// fallible offers, and intents keyed by segment id (spec §4.7). Intents that
// are already bound past PreBinding are rejected unconditionally, and any
// fallible offer keyed at segment 0 is rejected.
func FromParts(networkID string, guaranteed *zswap.Offer, fallible map[uint16]zswap.Offer, intents map[uint16]*Intent) (*Transaction, error) {
	for _, it := range intents {
		if it.Binding != PreBinding {
			return nil, ErrOfferUnproven
		}
	}
	for seg := range fallible {
		if seg == 0 {
			return nil, ErrFallibleSegmentZero
		}
	}
	return &Transaction{
		NetworkID:       networkID,
		GuaranteedOffer: guaranteed,
		FallibleOffers:  fallible,
		Intents:         intents,
	}, nil
}

// SegmentIDSource is swapped out in tests wanting deterministic "randomized"
// segment ids; production callers pass a real source of entropy.
type SegmentIDSource func(n int) []uint16

// FromPartsRandomized behaves like FromParts but assigns fallible/intent
// segment ids via src rather than sequentially, so that two independently
// built transactions can later be merged without a segment id collision
// (spec §4.7, §8 property 2).
func FromPartsRandomized(networkID string, guaranteed *zswap.Offer, fallibleBySeq []zswap.Offer, intentsBySeq []*Intent, src SegmentIDSource) (*Transaction, error) {
	n := len(fallibleBySeq)
	if len(intentsBySeq) > n {
		n = len(intentsBySeq)
	}
	ids := src(n)
	fallible := map[uint16]zswap.Offer{}
	intents := map[uint16]*Intent{}
	for i, off := range fallibleBySeq {
		fallible[ids[i]] = off
	}
	for i, it := range intentsBySeq {
		intents[ids[i]] = it
	}
	return FromParts(networkID, guaranteed, fallible, intents)
}

// Merge combines tx1 and tx2's offers and intents (spec §4.7): guaranteed
// deltas sum, each fallible segment's deltas sum, and intents union by
// segment id. Fallible offers on the same segment id are combined. Rejects a
// merge of transactions that share a commitment or nullifier (non-disjoint
// coin sets), whose network ids differ, or whose intents share a segment id.
func Merge(tx1, tx2 *Transaction) (*Transaction, error) {
	if tx1.NetworkID != tx2.NetworkID {
		return nil, ErrMismatchedSegments
	}
	merged := &Transaction{
		NetworkID:      tx1.NetworkID,
		FallibleOffers: map[uint16]zswap.Offer{},
		Intents:        map[uint16]*Intent{},
	}

	g, err := mergeOffers(tx1.GuaranteedOffer, tx2.GuaranteedOffer)
	if err != nil {
		return nil, err
	}
	merged.GuaranteedOffer = g

	for seg, off := range tx1.FallibleOffers {
		merged.FallibleOffers[seg] = off
	}
	for seg, off2 := range tx2.FallibleOffers {
		if off1, ok := merged.FallibleOffers[seg]; ok {
			combined, err := mergeOffers(&off1, &off2)
			if err != nil {
				return nil, err
			}
			merged.FallibleOffers[seg] = *combined
		} else {
			merged.FallibleOffers[seg] = off2
		}
	}

	for seg, it := range tx1.Intents {
		merged.Intents[seg] = it
	}
	for seg, it := range tx2.Intents {
		if _, exists := merged.Intents[seg]; exists {
			return nil, ErrMismatchedSegments
		}
		merged.Intents[seg] = it
	}

	return merged, nil
}

func mergeOffers(a, b *zswap.Offer) (*zswap.Offer, error) {
	if a == nil {
		return b, nil
	}
	if b == nil {
		return a, nil
	}
	seen := map[[32]byte]bool{}
	for _, in := range a.Inputs {
		seen[in.Nullifier] = true
	}
	for _, out := range append(append([]zswap.Output{}, a.Outputs...), a.Transients...) {
		seen[out.Commitment] = true
	}
	for _, in := range b.Inputs {
		if seen[in.Nullifier] {
			return nil, ErrNonDisjointCoins
		}
	}
	for _, out := range append(append([]zswap.Output{}, b.Outputs...), b.Transients...) {
		if seen[out.Commitment] {
			return nil, ErrNonDisjointCoins
		}
	}
	return &zswap.Offer{
		Inputs:     append(append([]zswap.Input{}, a.Inputs...), b.Inputs...),
		Outputs:    append(append([]zswap.Output{}, a.Outputs...), b.Outputs...),
		Transients: append(append([]zswap.Output{}, a.Transients...), b.Transients...),
	}, nil
}

// Fees returns the transaction's total declared fee, dust-denominated,
// summed across every intent's dust spends.
func (tx *Transaction) Fees(params Parameters) uint64 {
	var total uint64
	for _, it := range tx.Intents {
		if it.DustActionsField == nil {
			continue
		}
		for _, sp := range it.DustActionsField.Spends {
			v, _ := sp.Fee.Uint64()
			total += v
		}
	}
	_ = params
	return total
}

// Imbalances returns, for the given segment, the net signed amount each
// token type moves (positive = net inflow to the ledger, i.e. burned;
// negative = net outflow, i.e. minted to users). extraFees is added to
// segment 0's imbalance for every token type it names. A transaction is
// balanced iff every imbalance is ≤ 0 (spec §4.7).
func (tx *Transaction) Imbalances(segmentID uint16, extraFees map[value.TokenType]int64) map[value.TokenType]int64 {
	out := map[value.TokenType]int64{}
	var offer *zswap.Offer
	if segmentID == 0 {
		offer = tx.GuaranteedOffer
	} else if o, ok := tx.FallibleOffers[segmentID]; ok {
		offer = &o
	}
	if offer != nil {
		// shielded offers carry no explicit token-typed amounts in this
		// reference state (coins are opaque commitments); their imbalance
		// contribution is accounted for entirely via the intent's unshielded
		// and dust actions below, matching how the balance check in
		// WellFormed (state.go) treats zswap offers as value-neutral at
		// the ledger level (the ZK proof is what attests to conservation).
		_ = offer
	}
	if it, ok := tx.Intents[segmentID]; ok {
		var u *utxo.Offer
		if segmentID == 0 {
			u = it.GuaranteedUnshieldedOffer
		} else {
			u = it.FallibleUnshieldedOffer
		}
		if u != nil {
			for tok, delta := range u.Balance() {
				out[tok] += delta
			}
		}
	}
	if segmentID == 0 {
		for tok, fee := range extraFees {
			out[tok] += fee
		}
	}
	return out
}

// EraseProofs drops zero-knowledge proofs from every intent's actions for
// downstream observers (spec §4.7). In this reference engine proofs are
// represented only by the ProofPhase marker, so erasure is a phase flip.
func (tx *Transaction) EraseProofs() *Transaction {
	out := *tx
	out.Intents = map[uint16]*Intent{}
	for seg, it := range tx.Intents {
		c := it.clone()
		c.ProofPhase = NoProof
		out.Intents[seg] = c
	}
	return &out
}

// EraseSignatures drops signatures from every intent.
func (tx *Transaction) EraseSignatures() *Transaction {
	out := *tx
	out.Intents = map[uint16]*Intent{}
	for seg, it := range tx.Intents {
		out.Intents[seg] = it.Erase()
	}
	return &out
}

// sortedSegmentIDs returns a transaction's fallible segment ids in
// ascending order, the order apply.go processes them in (spec §4.8).
func (tx *Transaction) sortedSegmentIDs() []uint16 {
	ids := make([]uint16, 0, len(tx.FallibleOffers))
	for seg := range tx.FallibleOffers {
		ids = append(ids, seg)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
