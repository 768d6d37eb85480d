// Package zswap implements the shielded coin chain state (spec §3.5, §4.4):
// the commitment Merkle tree, the nullifier set, and the rolling root
// history. The teacher has no shielded-pool analogue to adapt directly, so
// the shape here loosely follows the teacher's "mutate-then-return-derived-
// info" pattern in orbas1-Synnergy/synnergy-network/core/ledger.go
// (applyBlock). State carries no mutex: Apply and PostBlockUpdate work on a
// clone and return it, leaving their input unchanged.
package zswap

import (
	"errors"

	"shielded-ledger/crypto"
	"shielded-ledger/merkle"
	"shielded-ledger/value"
)

// CommitmentTreeHeight is fixed at 32 (spec §3.5).
const CommitmentTreeHeight = 32

// DefaultPastRootsRetained bounds how many historical roots are kept.
const DefaultPastRootsRetained = 256

var (
	ErrNullifierSpent    = errors.New("zswap: nullifier already spent")
	ErrRootNotRecognized = errors.New("zswap: input commitment root not in past_roots")
	ErrCommitmentExists  = errors.New("zswap: commitment already present")
)

type commitmentKey [32]byte

// State mirrors ZswapChainState (spec §3.5).
type State struct {
	Tree        *merkle.Tree
	coinComsSet map[commitmentKey]bool
	FirstFree   uint64
	Nullifiers  map[commitmentKey]bool
	PastRoots   []commitmentKey // ordered, oldest first
	maxRoots    int
}

// New returns the genesis shielded chain state.
func New() *State {
	s := &State{
		Tree:        merkle.New(CommitmentTreeHeight),
		coinComsSet: map[commitmentKey]bool{},
		Nullifiers:  map[commitmentKey]bool{},
		maxRoots:    DefaultPastRootsRetained,
	}
	_ = s.Tree.Rehash()
	root, _ := s.Tree.Root()
	s.PastRoots = []commitmentKey{root}
	return s
}

// Input describes a spend of an existing shielded coin: its commitment root
// claim and nullifier.
type Input struct {
	Root       [32]byte
	Nullifier  [32]byte
}

// Output describes a newly created shielded coin's commitment.
type Output struct {
	Commitment [32]byte
}

// Offer is the minimal shape Apply needs from a ZswapOffer: its inputs,
// outputs, and any "transient" (created-and-spent within one offer) coins,
// which are checked for commitment-uniqueness exactly like outputs.
type Offer struct {
	Inputs     []Input
	Outputs    []Output
	Transients []Output
}

// Apply applies an offer against the chain state (spec §4.4 steps 1-5). It
// returns the updated state and a map from commitment to the tree position it
// was inserted at. whitelist is accepted but not consulted: every inserted
// commitment appears in the returned position map, and the tree receives
// every commitment.
func Apply(s *State, offer Offer, whitelist map[value.Address]bool) (*State, map[[32]byte]uint64, error) {
	next := s.clone()

	rootSet := make(map[commitmentKey]bool, len(next.PastRoots))
	for _, r := range next.PastRoots {
		rootSet[r] = true
	}

	for _, in := range offer.Inputs {
		var nk commitmentKey
		copy(nk[:], in.Nullifier[:])
		if next.Nullifiers[nk] {
			return nil, nil, ErrNullifierSpent
		}
		var rk commitmentKey
		copy(rk[:], in.Root[:])
		if !rootSet[rk] {
			return nil, nil, ErrRootNotRecognized
		}
	}

	all := append(append([]Output{}, offer.Outputs...), offer.Transients...)
	for _, out := range all {
		var ck commitmentKey
		copy(ck[:], out.Commitment[:])
		if next.coinComsSet[ck] {
			return nil, nil, ErrCommitmentExists
		}
	}

	positions := map[[32]byte]uint64{}
	for _, out := range all {
		idx := next.FirstFree
		if err := next.Tree.Update(idx, out.Commitment); err != nil {
			return nil, nil, err
		}
		var ck commitmentKey
		copy(ck[:], out.Commitment[:])
		next.coinComsSet[ck] = true
		next.FirstFree++
		_ = whitelist // position tracking is unconditional; filtering happens in Filter()
		positions[out.Commitment] = idx
	}

	for _, in := range offer.Inputs {
		var nk commitmentKey
		copy(nk[:], in.Nullifier[:])
		next.Nullifiers[nk] = true
	}

	if err := next.Tree.Rehash(); err != nil {
		return nil, nil, err
	}
	root, ok := next.Tree.Root()
	if ok {
		next.pushRoot(root)
	}

	return next, positions, nil
}

// TryApply takes a whitelist of contract addresses (spec §4.4) and is
// expressed in terms of Apply; since Apply does not consult the whitelist,
// TryApply returns the same state and position map as Apply.
func TryApply(s *State, offer Offer, whitelist map[value.Address]bool) (*State, map[[32]byte]uint64, error) {
	return Apply(s, offer, whitelist)
}

func (s *State) pushRoot(root [32]byte) {
	var rk commitmentKey
	copy(rk[:], root[:])
	s.PastRoots = append(s.PastRoots, rk)
	if len(s.PastRoots) > s.maxRoots {
		s.PastRoots = s.PastRoots[len(s.PastRoots)-s.maxRoots:]
	}
}

func (s *State) clone() *State {
	out := &State{
		Tree:        s.Tree.Clone(),
		coinComsSet: make(map[commitmentKey]bool, len(s.coinComsSet)),
		FirstFree:   s.FirstFree,
		Nullifiers:  make(map[commitmentKey]bool, len(s.Nullifiers)),
		PastRoots:   append([]commitmentKey{}, s.PastRoots...),
		maxRoots:    s.maxRoots,
	}
	for k, v := range s.coinComsSet {
		out.coinComsSet[k] = v
	}
	for k, v := range s.Nullifiers {
		out.Nullifiers[k] = v
	}
	return out
}

// Filter returns a view containing only contract-addressed commitments (used
// by downstream observers to discover coins owned by a given contract).
func (s *State) Filter(addr value.Address, recipients map[[32]byte]crypto.CoinRecipient) map[[32]byte]uint64 {
	out := map[[32]byte]uint64{}
	for commitment := range s.coinComsSet {
		rec, ok := recipients[commitment]
		if !ok || !rec.IsContract || rec.Key != addr {
			continue
		}
		// position is not retained per-commitment in this state; callers that
		// need it should consult the positions map returned by Apply.
		out[commitment] = 0
	}
	return out
}

// PostBlockUpdate collapses obsolete Merkle ranges at time t (spec §4.4):
// when more than maxRoots commitments exist, it folds the range from index 0
// up to the last maxRoots insertions into its subtree digest. Once a range
// starting at 0 is collapsed, a later call's range overlaps it and nothing
// further is collapsed. past_roots is not changed here; Apply trims it to
// maxRoots as it pushes each new root.
func (s *State) PostBlockUpdate(_ int64) *State {
	next := s.clone()
	if next.FirstFree > uint64(next.maxRoots) {
		cut := next.FirstFree - uint64(next.maxRoots)
		_ = next.Tree.Collapse(0, cut-1)
	}
	return next
}
